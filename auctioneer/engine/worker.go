package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/crickora/auction-engine/auctioneer/database/models"
	lru "github.com/hashicorp/golang-lru"
)

const (
	intentQueueSize  = 256
	bidDedupeEntries = 2048
)

// AssetResolver turns a stored image key into a client-facing URL for
// lot reveal payloads. Optional.
type AssetResolver interface {
	ImageURL(key string) string
}

// Deps are the worker's external collaborators.
type Deps struct {
	Persist Persister
	Publish Publisher
	Clock   Clock
	Sched   Scheduler
	Assets  AssetResolver
}

// Seed is the state a worker starts from, loaded from storage or built at
// auction setup.
type Seed struct {
	Auction   *models.Auction
	Teams     []*TeamState
	Pool      []*models.Player // pending players in queue order
	Proposals []*models.TradeProposal
}

// Worker owns all mutable state of one auction. Every mutation (bids,
// admin actions, trades, timer callbacks) is an intent processed one at a
// time by Run, so validation-then-commit is atomic by construction.
type Worker struct {
	auction *models.Auction
	cfg     Config
	ledger  *Ledger
	teams   map[int64]*TeamState
	pool    []*models.Player
	lot     *Lot
	undo    *undoStack
	trades  *tradeBook

	deps    Deps
	intents chan intent
	done    chan struct{}
	closer  sync.Once

	pq       *persistQueue
	degraded bool
	// Persistence state as last reported by the queue. Written from the
	// drain goroutine; dispatch folds it into w.degraded on every turn.
	degradedFlag atomic.Bool

	// requestID -> BidReceipt, makes bid replays a no-op.
	dedupe *lru.Cache

	stopLotTimer    func()
	stopWindowTimer func()

	// Queue position at which the next deferred round begins, 0 if none.
	nextRoundAt int
}

// NewWorker builds a worker from seed state. Run must be started by the
// caller.
func NewWorker(seed Seed, deps Deps) (*Worker, error) {
	if seed.Auction == nil {
		return nil, fmt.Errorf("seed has no auction")
	}
	cfg, err := ConfigFromAuction(seed.Auction)
	if err != nil {
		return nil, err
	}
	if deps.Clock == nil {
		deps.Clock = SystemClock()
	}
	if deps.Sched == nil {
		deps.Sched = SystemScheduler()
	}
	dedupe, err := lru.New(bidDedupeEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to build dedupe cache: %w", err)
	}

	w := &Worker{
		auction: seed.Auction,
		cfg:     cfg,
		teams:   make(map[int64]*TeamState, len(seed.Teams)),
		pool:    seed.Pool,
		undo:    newUndoStack(cfg.UndoDepth),
		deps:    deps,
		intents: make(chan intent, intentQueueSize),
		done:    make(chan struct{}),
		dedupe:  dedupe,
	}
	w.ledger = NewLedger(&w.cfg)
	w.trades = newTradeBook(seed.Proposals)
	w.pq = newPersistQueue(w.persistStateChanged)
	for _, ts := range seed.Teams {
		if err := w.ledger.CheckInvariant(ts); err != nil {
			return nil, fmt.Errorf("seed team state: %w", err)
		}
		w.teams[ts.Team.ID] = ts
	}

	// Rebase the trade window timer after a restart.
	if seed.Auction.Status == models.AuctionStatusTradeWindow && !seed.Auction.TradeWindowEndsAt.IsZero() {
		w.armWindowTimer(seed.Auction.TradeWindowEndsAt.Sub(deps.Clock.Now()))
	}
	return w, nil
}

// Run processes intents until Shutdown. It is the only goroutine allowed
// to touch the worker's state.
func (w *Worker) Run() {
	for {
		select {
		case in := <-w.intents:
			w.dispatch(in)
		case <-w.done:
			return
		}
	}
}

// Shutdown stops the worker. In-flight intents may be dropped; the
// persistence drain is abandoned.
func (w *Worker) Shutdown() {
	w.closer.Do(func() {
		close(w.done)
		if w.stopLotTimer != nil {
			w.stopLotTimer()
		}
		if w.stopWindowTimer != nil {
			w.stopWindowTimer()
		}
		w.pq.close()
	})
}

func (w *Worker) AuctionID() int64 {
	return w.auction.ID
}

func (w *Worker) dispatch(in intent) {
	if d := w.degradedFlag.Load(); d != w.degraded {
		w.handleDegraded(d)
	}
	switch v := in.(type) {
	case bidIntent:
		v.reply <- w.handleBid(v)
	case timerFiredIntent:
		w.handleTimerFired(v.version)
	case windowExpiredIntent:
		w.handleWindowExpired()
	case degradedIntent:
		// State already folded in above; this intent only wakes the loop.
	case advanceIntent:
		v.reply <- w.handleAdvance()
	case lifecycleIntent:
		v.reply <- w.handleLifecycle(v)
	case snapshotIntent:
		v.reply <- w.snapshot()
	case poolIntent:
		v.reply <- w.pendingPool()
	case tradeProposeIntent:
		v.reply <- w.handleTradePropose(v.req)
	case tradeActionIntent:
		v.reply <- w.handleTradeAction(v)
	}
}

// send enqueues an intent, honoring caller cancellation and shutdown.
func (w *Worker) send(ctx context.Context, in intent) error {
	select {
	case w.intents <- in:
		return nil
	case <-w.done:
		return ErrWorkerClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// inject enqueues from the worker's own timer callbacks. Blocks on a full
// queue rather than dropping.
func (w *Worker) inject(in intent) {
	select {
	case w.intents <- in:
	case <-w.done:
	}
}

// persistStateChanged records a persistence transition and wakes the
// worker. It must never block: the first failed save runs on the worker
// goroutine itself, so a full queue here would deadlock the auction. When
// the wake-up is dropped the flag is still folded in on the next dispatch.
func (w *Worker) persistStateChanged(degraded bool) {
	w.degradedFlag.Store(degraded)
	select {
	case w.intents <- degradedIntent{}:
	case <-w.done:
	default:
	}
}

// --- public API -----------------------------------------------------------

// SubmitBid places a raise for teamID. The charged amount is computed
// server-side; the receipt is returned to the bidder before the broadcast
// fan-out. Replaying the same requestID returns the original receipt. A
// nonzero lotVersion is rejected with ErrStaleBid when the lot has moved
// on since the bidder last saw it.
func (w *Worker) SubmitBid(ctx context.Context, teamID int64, requestID string, lotVersion int64) (BidReceipt, error) {
	in := bidIntent{teamID: teamID, requestID: requestID, lotVersion: lotVersion, reply: make(chan bidReply, 1)}
	if err := w.send(ctx, in); err != nil {
		return BidReceipt{}, err
	}
	select {
	case r := <-in.reply:
		return r.receipt, r.err
	case <-ctx.Done():
		return BidReceipt{}, ctx.Err()
	}
}

// Advance pulls the next pending player and reveals it. Fails while the
// current lot is still in play; completes the auction when the pool is
// exhausted.
func (w *Worker) Advance(ctx context.Context) (int64, error) {
	in := advanceIntent{reply: make(chan advanceReply, 1)}
	if err := w.send(ctx, in); err != nil {
		return 0, err
	}
	select {
	case r := <-in.reply:
		return r.playerID, r.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (w *Worker) lifecycle(ctx context.Context, in lifecycleIntent) error {
	in.reply = make(chan error, 1)
	if err := w.send(ctx, in); err != nil {
		return err
	}
	select {
	case err := <-in.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) Start(ctx context.Context) error {
	return w.lifecycle(ctx, lifecycleIntent{kind: opStart})
}

func (w *Worker) End(ctx context.Context) error {
	return w.lifecycle(ctx, lifecycleIntent{kind: opEnd})
}

func (w *Worker) StartBidding(ctx context.Context) error {
	return w.lifecycle(ctx, lifecycleIntent{kind: opStartBidding})
}

func (w *Worker) Pause(ctx context.Context) error {
	return w.lifecycle(ctx, lifecycleIntent{kind: opPause})
}

func (w *Worker) Resume(ctx context.Context) error {
	return w.lifecycle(ctx, lifecycleIntent{kind: opResume})
}

func (w *Worker) ForceSell(ctx context.Context, teamID int64) error {
	return w.lifecycle(ctx, lifecycleIntent{kind: opForceSell, teamID: teamID})
}

func (w *Worker) ForceUnsold(ctx context.Context) error {
	return w.lifecycle(ctx, lifecycleIntent{kind: opForceUnsold})
}

func (w *Worker) Undo(ctx context.Context) error {
	return w.lifecycle(ctx, lifecycleIntent{kind: opUndo})
}

func (w *Worker) OpenTradeWindow(ctx context.Context) error {
	return w.lifecycle(ctx, lifecycleIntent{kind: opOpenTradeWindow})
}

func (w *Worker) Finalize(ctx context.Context) error {
	return w.lifecycle(ctx, lifecycleIntent{kind: opFinalize})
}

// ReorderPool rewrites the pending queue order. Allowed in draft and
// paused only.
func (w *Worker) ReorderPool(ctx context.Context, playerIDs []int64) error {
	return w.lifecycle(ctx, lifecycleIntent{kind: opReorderPool, order: playerIDs})
}

func (w *Worker) Snapshot(ctx context.Context) (Snapshot, error) {
	in := snapshotIntent{reply: make(chan Snapshot, 1)}
	if err := w.send(ctx, in); err != nil {
		return Snapshot{}, err
	}
	select {
	case s := <-in.reply:
		return s, nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

// PendingPool returns a copy of the pending players in queue order.
func (w *Worker) PendingPool(ctx context.Context) ([]*models.Player, error) {
	in := poolIntent{reply: make(chan []*models.Player, 1)}
	if err := w.send(ctx, in); err != nil {
		return nil, err
	}
	select {
	case pool := <-in.reply:
		return pool, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ProposeTrade creates a proposal and soft-locks the named players.
func (w *Worker) ProposeTrade(ctx context.Context, req TradeRequest) (string, error) {
	in := tradeProposeIntent{req: req, reply: make(chan tradeProposeReply, 1)}
	if err := w.send(ctx, in); err != nil {
		return "", err
	}
	select {
	case r := <-in.reply:
		return r.proposalID, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (w *Worker) tradeAction(ctx context.Context, in tradeActionIntent) error {
	in.reply = make(chan error, 1)
	if err := w.send(ctx, in); err != nil {
		return err
	}
	select {
	case err := <-in.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) AcceptTrade(ctx context.Context, proposalID string, teamID int64) error {
	return w.tradeAction(ctx, tradeActionIntent{kind: tradeAccept, proposalID: proposalID, teamID: teamID})
}

func (w *Worker) RejectTrade(ctx context.Context, proposalID string, teamID int64) error {
	return w.tradeAction(ctx, tradeActionIntent{kind: tradeReject, proposalID: proposalID, teamID: teamID})
}

func (w *Worker) WithdrawTrade(ctx context.Context, proposalID string, teamID int64) error {
	return w.tradeAction(ctx, tradeActionIntent{kind: tradeWithdraw, proposalID: proposalID, teamID: teamID})
}

// --- worker-side helpers --------------------------------------------------

func (w *Worker) team(id int64) (*TeamState, error) {
	ts, ok := w.teams[id]
	if !ok || !ts.Team.Active {
		return nil, fmt.Errorf("team %d: %w", id, ErrUnknownTeam)
	}
	return ts, nil
}

func (w *Worker) publish(ev Event) {
	if w.deps.Publish == nil {
		return
	}
	ev.AuctionID = w.auction.ID
	if ev.At.IsZero() {
		ev.At = w.deps.Clock.Now()
	}
	w.deps.Publish.Publish(ev)
}

// save runs a persist op inline once; on failure it hands the op to the
// background drain, which marks the auction degraded until it clears.
func (w *Worker) save(entity string, run func(ctx context.Context) error) {
	if w.deps.Persist == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	err := run(ctx)
	cancel()
	if err == nil {
		return
	}
	slog.Error("Persist failed, queueing retry",
		slog.Int64("auction_id", w.auction.ID),
		slog.String("entity", entity),
		slog.Any("error", err))
	w.pq.push(persistOp{entity: entity, run: run})
}

func (w *Worker) saveAuction() {
	a := *w.auction
	a.UpdatedAt = w.deps.Clock.Now()
	w.save("auction", func(ctx context.Context) error {
		return w.deps.Persist.PersistAuction(ctx, &a)
	})
}

func (w *Worker) saveTeam(ts *TeamState) {
	t := *ts.Team
	t.UpdatedAt = w.deps.Clock.Now()
	squad := make([]*models.TeamPlayer, len(ts.Squad))
	copy(squad, ts.Squad)
	w.save("team", func(ctx context.Context) error {
		return w.deps.Persist.PersistTeam(ctx, &t, squad)
	})
}

func (w *Worker) savePlayer(p *models.Player) {
	cp := *p
	cp.UpdatedAt = w.deps.Clock.Now()
	w.save("player", func(ctx context.Context) error {
		return w.deps.Persist.PersistPlayer(ctx, &cp)
	})
}

func (w *Worker) saveTrade(tr *models.TradeProposal) {
	cp := *tr
	w.save("trade", func(ctx context.Context) error {
		return w.deps.Persist.PersistTrade(ctx, &cp)
	})
}

func (w *Worker) appendBid(b *models.AuctionBid) {
	cp := *b
	w.save("bid", func(ctx context.Context) error {
		return w.deps.Persist.AppendBid(ctx, &cp)
	})
}

// armLotTimer arms the phase timer for duration d, capturing the current
// lot version so a stale fire is a no-op.
func (w *Worker) armLotTimer(d time.Duration) {
	if w.stopLotTimer != nil {
		w.stopLotTimer()
	}
	if d < 0 {
		d = 0
	}
	w.lot.Deadline = w.deps.Clock.Now().Add(d)
	version := w.lot.Version
	w.stopLotTimer = w.deps.Sched.After(d, func() {
		w.inject(timerFiredIntent{version: version})
	})
}

func (w *Worker) disarmLotTimer() {
	if w.stopLotTimer != nil {
		w.stopLotTimer()
		w.stopLotTimer = nil
	}
	if w.lot != nil {
		w.lot.Deadline = time.Time{}
	}
}

func (w *Worker) armWindowTimer(d time.Duration) {
	if w.stopWindowTimer != nil {
		w.stopWindowTimer()
	}
	if d < 0 {
		d = 0
	}
	w.stopWindowTimer = w.deps.Sched.After(d, func() {
		w.inject(windowExpiredIntent{})
	})
}

func (w *Worker) handleDegraded(degraded bool) {
	if w.degraded == degraded {
		return
	}
	w.degraded = degraded
	w.auction.Degraded = degraded
	slog.Warn("Auction persistence state changed",
		slog.Int64("auction_id", w.auction.ID),
		slog.Bool("degraded", degraded))
	w.publish(Event{Type: EventAuctionDegraded, Scope: ScopeAdmin, Payload: map[string]bool{"degraded": degraded}})
	if !degraded {
		w.saveAuction()
	}
}
