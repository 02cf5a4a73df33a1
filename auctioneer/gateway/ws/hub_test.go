package ws

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/crickora/auction-engine/auctioneer/engine"
	"github.com/crickora/auction-engine/auctioneer/services"
)

func newTestHub() *Hub {
	return NewHub(services.NewSearchService())
}

func joinedClient(h *Hub, auctionID, teamID int64, role string) *Client {
	c := newClient(nil, h, &services.Claims{AuctionID: auctionID, TeamID: teamID, Role: role})
	h.add(c)
	return c
}

func pendingMessages(c *Client) int {
	return len(c.send)
}

func TestHub_ScopeRouting(t *testing.T) {
	h := newTestHub()
	admin := joinedClient(h, 1, 0, roleAdmin)
	team2 := joinedClient(h, 1, 2, roleTeam)
	team3 := joinedClient(h, 1, 3, roleTeam)
	viewer := joinedClient(h, 1, 0, roleViewer)
	otherRoom := joinedClient(h, 9, 2, roleTeam)

	tests := []struct {
		name string
		ev   engine.Event
		want map[*Client]int
	}{
		{
			name: "public reaches the whole room",
			ev:   engine.Event{AuctionID: 1, Type: engine.EventBidAccepted, Scope: engine.ScopePublic},
			want: map[*Client]int{admin: 1, team2: 1, team3: 1, viewer: 1, otherRoom: 0},
		},
		{
			name: "team scope reaches named teams and admins",
			ev:   engine.Event{AuctionID: 1, Type: engine.EventTradeProposed, Scope: engine.ScopeTeam, TeamIDs: []int64{2}},
			want: map[*Client]int{admin: 1, team2: 1, team3: 0, viewer: 0, otherRoom: 0},
		},
		{
			name: "admin scope reaches admins only",
			ev:   engine.Event{AuctionID: 1, Type: engine.EventTradeProposed, Scope: engine.ScopeAdmin},
			want: map[*Client]int{admin: 1, team2: 0, team3: 0, viewer: 0, otherRoom: 0},
		},
		{
			name: "events stay inside their auction room",
			ev:   engine.Event{AuctionID: 9, Type: engine.EventBidAccepted, Scope: engine.ScopePublic},
			want: map[*Client]int{admin: 0, team2: 0, team3: 0, viewer: 0, otherRoom: 1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h.Publish(tt.ev)
			for c, want := range tt.want {
				got := pendingMessages(c)
				if got != want {
					t.Errorf("client (team %d, role %s, auction %d): got %d messages, want %d",
						c.teamID, c.role, c.auctionID, got, want)
				}
				for i := 0; i < got; i++ {
					<-c.send
				}
			}
		})
	}
}

func TestHub_PublishInvalidatesSnapshotCache(t *testing.T) {
	h := newTestHub()
	h.snapshots.Add(int64(1), engine.Snapshot{AuctionID: 1})
	h.snapshots.Add(int64(9), engine.Snapshot{AuctionID: 9})

	h.Publish(engine.Event{AuctionID: 1, Type: engine.EventBidAccepted, Scope: engine.ScopePublic})

	if _, ok := h.snapshots.Get(int64(1)); ok {
		t.Error("snapshot for auction 1 survived a published event")
	}
	if _, ok := h.snapshots.Get(int64(9)); !ok {
		t.Error("snapshot for auction 9 was evicted by another auction's event")
	}
}

func TestHub_RemoveCleansEmptyRooms(t *testing.T) {
	h := newTestHub()
	c := joinedClient(h, 1, 2, roleTeam)

	h.remove(c.id)

	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c.id]; ok {
		t.Error("client still registered after remove")
	}
	if _, ok := h.rooms[1]; ok {
		t.Error("empty room was not deleted")
	}
}

func TestClient_CommandContextsDieWithClient(t *testing.T) {
	h := newTestHub()
	c := joinedClient(h, 1, 2, roleTeam)

	ctx, cancel := c.ctx()
	defer cancel()
	select {
	case <-ctx.Done():
		t.Fatal("command context done before the client closed")
	default:
	}

	c.close()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("command context survived the client close")
	}
	if !errors.Is(ctx.Err(), context.Canceled) {
		t.Errorf("ctx.Err() = %v, want context.Canceled", ctx.Err())
	}
}
