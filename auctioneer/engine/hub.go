package engine

import (
	"fmt"
	"log/slog"
	"sync"
)

// Hub tracks the running worker for every open auction. Lookups are
// read-mostly; worker state itself is never touched here.
type Hub struct {
	mu      sync.RWMutex
	workers map[int64]*Worker
	deps    Deps
}

func NewHub(deps Deps) *Hub {
	return &Hub{
		workers: make(map[int64]*Worker),
		deps:    deps,
	}
}

// Open builds and starts a worker from seed state. Opening an auction
// that is already open is an error.
func (h *Hub) Open(seed Seed) (*Worker, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.workers[seed.Auction.ID]; exists {
		return nil, fmt.Errorf("auction %d already open", seed.Auction.ID)
	}
	w, err := NewWorker(seed, h.deps)
	if err != nil {
		return nil, fmt.Errorf("failed to open auction %d: %w", seed.Auction.ID, err)
	}
	h.workers[seed.Auction.ID] = w
	go w.Run()
	slog.Info("Auction worker started",
		slog.Int64("auction_id", seed.Auction.ID),
		slog.String("code", seed.Auction.Code),
		slog.String("status", string(seed.Auction.Status)))
	return w, nil
}

func (h *Hub) Get(auctionID int64) (*Worker, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	w, ok := h.workers[auctionID]
	return w, ok
}

// Close stops one auction's worker.
func (h *Hub) Close(auctionID int64) {
	h.mu.Lock()
	w, ok := h.workers[auctionID]
	delete(h.workers, auctionID)
	h.mu.Unlock()
	if ok {
		w.Shutdown()
	}
}

// Shutdown stops every worker.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	workers := make([]*Worker, 0, len(h.workers))
	for _, w := range h.workers {
		workers = append(workers, w)
	}
	h.workers = make(map[int64]*Worker)
	h.mu.Unlock()
	for _, w := range workers {
		w.Shutdown()
	}
	slog.Info("All auction workers stopped", slog.Int("count", len(workers)))
}
