package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/crickora/auction-engine/auctioneer/engine"
	"github.com/crickora/auction-engine/auctioneer/services"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Token auth makes the connection origin-agnostic; dashboards are
	// served from tenant domains we do not control.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server upgrades HTTP requests into auction room connections.
type Server struct {
	hub  *Hub
	auth *services.AuthService
}

func NewServer(hub *Hub, auth *services.AuthService) *Server {
	return &Server{hub: hub, auth: auth}
}

// Handler serves GET /ws?token=<jwt>. The token binds the connection to
// one auction, one role and, for teams, one team id. On join the client
// receives a full snapshot before any live event.
func (s *Server) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.authenticate(r)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if _, ok := s.hub.worker(claims.AuctionID); !ok {
			http.Error(w, "auction not found", http.StatusNotFound)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Error("Upgrade failed",
				slog.String("type", "WS"),
				slog.Any("error", err))
			return
		}

		client := newClient(conn, s.hub, claims)
		client.start()
		s.sendJoinSnapshot(client)
	}
}

func (s *Server) authenticate(r *http.Request) (*services.Claims, error) {
	token := r.URL.Query().Get("token")
	if token == "" {
		header := r.Header.Get("Authorization")
		token = strings.TrimPrefix(header, "Bearer ")
	}
	return s.auth.VerifyToken(token)
}

func (s *Server) sendJoinSnapshot(c *Client) {
	snap, err := s.hub.snapshot(c)
	if err != nil {
		slog.Warn("Join snapshot failed",
			slog.String("type", "WS"),
			slog.String("client_id", c.id.String()),
			slog.Any("error", err))
		return
	}
	ev := engine.Event{
		Type:      engine.EventAuctionSnapshot,
		AuctionID: c.auctionID,
		At:        time.Now(),
		Payload:   snap,
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	c.enqueue(data)
}
