package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/crickora/auction-engine/auctioneer/engine"
	"github.com/crickora/auction-engine/auctioneer/services"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	roleAdmin  = services.RoleAdmin
	roleTeam   = services.RoleTeam
	roleViewer = services.RoleViewer

	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	writeWait      = 10 * time.Second
	maxMessageSize = 32 * 1024
	sendBufferSize = 256

	commandTimeout = 10 * time.Second
)

// Command is a client-to-server message. Bid commands carry a client
// generated requestId so reconnect retries stay idempotent, and may pin
// the lot version the bidder last rendered.
type Command struct {
	Action     string `json:"action"`
	RequestID  string `json:"requestId,omitempty"`
	ProposalID string `json:"proposalId,omitempty"`
	TeamID     int64  `json:"teamId,omitempty"`
	LotVersion int64  `json:"lotVersion,omitempty"`
	Query      string `json:"query,omitempty"`

	PlayerIDs          []int64 `json:"playerIds,omitempty"`
	ToTeamID           int64   `json:"toTeamId,omitempty"`
	OfferedPlayerIDs   []int64 `json:"offeredPlayerIds,omitempty"`
	RequestedPlayerIDs []int64 `json:"requestedPlayerIds,omitempty"`
	PurseAdjustment    int64   `json:"purseAdjustment,omitempty"`
}

// playerSummary is the search result row sent back to admin consoles.
type playerSummary struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Role      string `json:"role,omitempty"`
	Country   string `json:"country,omitempty"`
	BasePrice int64  `json:"basePrice"`
	QueuePos  int    `json:"queuePos"`
}

type commandResult struct {
	Type      string `json:"type"`
	Action    string `json:"action"`
	RequestID string `json:"requestId,omitempty"`
	Error     string `json:"error,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

type Client struct {
	id        uuid.UUID
	auctionID int64
	teamID    int64
	role      string

	conn   *websocket.Conn
	send   chan []byte
	hub    *Hub
	closed chan struct{}

	// Parent of every command context; cancelled when the client closes.
	baseCtx context.Context
	cancel  context.CancelFunc
}

func newClient(conn *websocket.Conn, hub *Hub, claims *services.Claims) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		id:        uuid.New(),
		auctionID: claims.AuctionID,
		teamID:    claims.TeamID,
		role:      claims.Role,
		conn:      conn,
		send:      make(chan []byte, sendBufferSize),
		hub:       hub,
		closed:    make(chan struct{}),
		baseCtx:   ctx,
		cancel:    cancel,
	}
}

func (c *Client) start() {
	c.hub.add(c)
	go c.readPump()
	go c.writePump()
}

func (c *Client) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.baseCtx, commandTimeout)
}

// enqueue hands a frame to the write pump. A full buffer means the client
// cannot keep up with the auction and gets disconnected rather than
// stalling the broadcast path.
func (c *Client) enqueue(data []byte) {
	select {
	case c.send <- data:
	default:
		slog.Warn("Send buffer full, dropping client",
			slog.String("type", "WS"),
			slog.String("client_id", c.id.String()))
		c.close()
	}
}

func (c *Client) close() {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}
	c.cancel()
	if c.conn != nil {
		c.conn.Close()
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.remove(c.id)
		c.close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("Unexpected close",
					slog.String("type", "WS"),
					slog.String("client_id", c.id.String()),
					slog.Any("error", err))
			}
			return
		}
		c.handleCommand(message)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *Client) handleCommand(message []byte) {
	var cmd Command
	if err := json.Unmarshal(message, &cmd); err != nil {
		c.reply(commandResult{Type: "error", Error: "malformed command"})
		return
	}

	payload, err := c.dispatch(cmd)
	if err != nil {
		c.reply(commandResult{
			Type:      "error",
			Action:    cmd.Action,
			RequestID: cmd.RequestID,
			Error:     err.Error(),
		})
		return
	}
	c.reply(commandResult{
		Type:      "ack",
		Action:    cmd.Action,
		RequestID: cmd.RequestID,
		Payload:   payload,
	})
}

func (c *Client) dispatch(cmd Command) (any, error) {
	w, ok := c.hub.worker(c.auctionID)
	if !ok {
		return nil, engine.ErrWorkerClosed
	}
	ctx, cancel := c.ctx()
	defer cancel()

	switch cmd.Action {
	case "snapshot":
		return c.hub.snapshot(c)

	case "bid":
		if c.role != roleTeam {
			return nil, errors.New("only team connections can bid")
		}
		if cmd.RequestID == "" {
			return nil, errors.New("bid requires a requestId")
		}
		return w.SubmitBid(ctx, c.teamID, cmd.RequestID, cmd.LotVersion)

	case "trade:propose":
		if c.role != roleTeam {
			return nil, errors.New("only team connections can propose trades")
		}
		proposalID, err := w.ProposeTrade(ctx, engine.TradeRequest{
			FromTeamID:         c.teamID,
			ToTeamID:           cmd.ToTeamID,
			OfferedPlayerIDs:   cmd.OfferedPlayerIDs,
			RequestedPlayerIDs: cmd.RequestedPlayerIDs,
			PurseAdjustment:    cmd.PurseAdjustment,
		})
		if err != nil {
			return nil, err
		}
		return map[string]string{"proposalId": proposalID}, nil

	case "trade:accept":
		if c.role != roleTeam {
			return nil, errors.New("only team connections can act on trades")
		}
		return nil, w.AcceptTrade(ctx, cmd.ProposalID, c.teamID)

	case "trade:reject":
		if c.role != roleTeam {
			return nil, errors.New("only team connections can act on trades")
		}
		return nil, w.RejectTrade(ctx, cmd.ProposalID, c.teamID)

	case "trade:withdraw":
		if c.role != roleTeam {
			return nil, errors.New("only team connections can act on trades")
		}
		return nil, w.WithdrawTrade(ctx, cmd.ProposalID, c.teamID)
	}

	if c.role != roleAdmin {
		return nil, errors.New("admin command on non-admin connection")
	}

	switch cmd.Action {
	case "start":
		return nil, w.Start(ctx)
	case "startBidding":
		return nil, w.StartBidding(ctx)
	case "advance":
		playerID, err := w.Advance(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]int64{"playerId": playerID}, nil
	case "pause":
		return nil, w.Pause(ctx)
	case "resume":
		return nil, w.Resume(ctx)
	case "forceSell":
		return nil, w.ForceSell(ctx, cmd.TeamID)
	case "forceUnsold":
		return nil, w.ForceUnsold(ctx)
	case "undo":
		return nil, w.Undo(ctx)
	case "reorderPool":
		return nil, w.ReorderPool(ctx, cmd.PlayerIDs)
	case "search":
		pool, err := w.PendingPool(ctx)
		if err != nil {
			return nil, err
		}
		results := c.hub.search.SearchPlayers(pool, cmd.Query, "")
		out := make([]playerSummary, len(results))
		for i, p := range results {
			out[i] = playerSummary{
				ID:        p.ID,
				Name:      p.Name,
				Role:      p.Role,
				Country:   p.Country,
				BasePrice: p.BasePrice,
				QueuePos:  p.QueuePos,
			}
		}
		return out, nil
	case "end":
		return nil, w.End(ctx)
	case "openTradeWindow":
		return nil, w.OpenTradeWindow(ctx)
	case "finalize":
		return nil, w.Finalize(ctx)
	}

	return nil, errors.New("unknown action " + cmd.Action)
}

func (c *Client) reply(res commandResult) {
	data, err := json.Marshal(res)
	if err != nil {
		return
	}
	c.enqueue(data)
}
