package ws

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/crickora/auction-engine/auctioneer/engine"
	"github.com/crickora/auction-engine/auctioneer/services"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
)

// Hub fans auction events out to connected clients. It implements the
// engine's publisher, so every worker broadcast lands here and gets routed
// by scope: public events reach everyone in the auction room, team events
// reach the named teams plus admins, admin events reach admins only.
type Hub struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]*Client
	rooms   map[int64]map[uuid.UUID]*Client

	engine *engine.Hub
	search *services.SearchService

	// snapshots caches the last snapshot per auction so a burst of joins
	// does not queue repeated snapshot intents on a busy worker. Any
	// published event for the auction invalidates the entry.
	snapshots *lru.Cache
}

func NewHub(search *services.SearchService) *Hub {
	cache, _ := lru.New(128)
	return &Hub{
		clients:   make(map[uuid.UUID]*Client),
		rooms:     make(map[int64]map[uuid.UUID]*Client),
		search:    search,
		snapshots: cache,
	}
}

// SetEngine binds the worker registry. The gateway is constructed before
// the engine because workers publish through it.
func (h *Hub) SetEngine(engineHub *engine.Hub) {
	h.engine = engineHub
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	h.clients[c.id] = c
	room, ok := h.rooms[c.auctionID]
	if !ok {
		room = make(map[uuid.UUID]*Client)
		h.rooms[c.auctionID] = room
	}
	room[c.id] = c
	h.mu.Unlock()

	slog.Info("Client connected",
		slog.String("type", "WS"),
		slog.String("client_id", c.id.String()),
		slog.Int64("auction_id", c.auctionID),
		slog.String("role", c.role))
}

func (h *Hub) remove(clientID uuid.UUID) {
	h.mu.Lock()
	c, ok := h.clients[clientID]
	if ok {
		delete(h.clients, clientID)
		if room, ok := h.rooms[c.auctionID]; ok {
			delete(room, clientID)
			if len(room) == 0 {
				delete(h.rooms, c.auctionID)
			}
		}
	}
	h.mu.Unlock()

	if ok {
		slog.Info("Client disconnected",
			slog.String("type", "WS"),
			slog.String("client_id", clientID.String()),
			slog.Int64("auction_id", c.auctionID))
	}
}

// Publish routes a worker event to the clients its scope allows. It never
// blocks: a client whose send buffer is full is dropped.
func (h *Hub) Publish(ev engine.Event) {
	h.snapshots.Remove(ev.AuctionID)

	data, err := json.Marshal(ev)
	if err != nil {
		slog.Error("Failed to marshal event",
			slog.String("type", "WS"),
			slog.String("event", string(ev.Type)),
			slog.Any("error", err))
		return
	}

	h.mu.RLock()
	room := h.rooms[ev.AuctionID]
	targets := make([]*Client, 0, len(room))
	for _, c := range room {
		if h.allowed(c, ev) {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.enqueue(data)
	}
}

func (h *Hub) allowed(c *Client, ev engine.Event) bool {
	switch ev.Scope {
	case engine.ScopePublic:
		return true
	case engine.ScopeAdmin:
		return c.role == roleAdmin
	case engine.ScopeTeam:
		if c.role == roleAdmin {
			return true
		}
		for _, id := range ev.TeamIDs {
			if id == c.teamID {
				return true
			}
		}
		return false
	}
	return false
}

// snapshot returns the current auction snapshot, serving a cached copy
// when no event has been published since it was taken.
func (h *Hub) snapshot(c *Client) (engine.Snapshot, error) {
	if cached, ok := h.snapshots.Get(c.auctionID); ok {
		return cached.(engine.Snapshot), nil
	}
	w, ok := h.engine.Get(c.auctionID)
	if !ok {
		return engine.Snapshot{}, engine.ErrWorkerClosed
	}
	ctx, cancel := c.ctx()
	defer cancel()
	snap, err := w.Snapshot(ctx)
	if err != nil {
		return engine.Snapshot{}, err
	}
	h.snapshots.Add(c.auctionID, snap)
	return snap, nil
}

func (h *Hub) worker(auctionID int64) (*engine.Worker, bool) {
	return h.engine.Get(auctionID)
}

// Shutdown closes every connection. Workers are shut down separately by
// the engine hub.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[uuid.UUID]*Client)
	h.rooms = make(map[int64]map[uuid.UUID]*Client)
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}
