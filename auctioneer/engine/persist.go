package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/crickora/auction-engine/auctioneer/database/models"
)

// Persister is the storage collaborator. It is invoked after every state
// transition and before the corresponding broadcast. In-memory state stays
// authoritative: a persist failure degrades the auction but never blocks
// live bidding.
type Persister interface {
	PersistAuction(ctx context.Context, a *models.Auction) error
	PersistPlayer(ctx context.Context, p *models.Player) error
	PersistTeam(ctx context.Context, t *models.Team, squad []*models.TeamPlayer) error
	PersistTrade(ctx context.Context, tr *models.TradeProposal) error
	AppendBid(ctx context.Context, b *models.AuctionBid) error
}

const (
	persistTimeout     = 5 * time.Second
	persistBackoffBase = time.Second
	persistBackoffMax  = 30 * time.Second
)

type persistOp struct {
	entity string
	run    func(ctx context.Context) error
}

// persistQueue drains failed persist operations in the background with
// exponential backoff. onStateChange reports degraded transitions back to
// the worker; it runs on whichever goroutine observed the transition and
// must never block.
type persistQueue struct {
	mu            sync.Mutex
	ops           []persistOp
	draining      bool
	closed        bool
	onStateChange func(degraded bool)
}

func newPersistQueue(onStateChange func(degraded bool)) *persistQueue {
	return &persistQueue{onStateChange: onStateChange}
}

// push enqueues a failed op and starts the drainer if idle. The first
// queued op marks the auction degraded.
func (q *persistQueue) push(op persistOp) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.ops = append(q.ops, op)
	if !q.draining {
		q.draining = true
		q.onStateChange(true)
		go q.drain()
	}
}

func (q *persistQueue) drain() {
	backoff := persistBackoffBase
	for {
		q.mu.Lock()
		if len(q.ops) == 0 || q.closed {
			q.draining = false
			closed := q.closed
			q.mu.Unlock()
			if !closed {
				q.onStateChange(false)
			}
			return
		}
		op := q.ops[0]
		q.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		err := op.run(ctx)
		cancel()
		if err != nil {
			slog.Error("Persistence retry failed",
				slog.String("entity", op.entity),
				slog.Duration("backoff", backoff),
				slog.Any("error", err))
			time.Sleep(backoff)
			backoff *= 2
			if backoff > persistBackoffMax {
				backoff = persistBackoffMax
			}
			continue
		}
		backoff = persistBackoffBase
		q.mu.Lock()
		q.ops = q.ops[1:]
		q.mu.Unlock()
	}
}

func (q *persistQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.ops = nil
	q.mu.Unlock()
}
