package engine

import "time"

type Scope string

const (
	ScopeAdmin  Scope = "admin"
	ScopeTeam   Scope = "team"
	ScopePublic Scope = "public"
)

type EventType string

const (
	EventLotRevealed          EventType = "lot:revealed"
	EventBidAccepted          EventType = "bid:accepted"
	EventLotPhaseChanged      EventType = "lot:phaseChanged"
	EventLotSold              EventType = "lot:sold"
	EventLotUnsold            EventType = "lot:unsold"
	EventAuctionStatusChanged EventType = "auction:statusChanged"
	EventAuctionSnapshot      EventType = "auction:snapshot"
	EventAuctionDegraded      EventType = "auction:degraded"
	EventTradeProposed        EventType = "trade:proposed"
	EventTradeAccepted        EventType = "trade:accepted"
	EventTradeRejected        EventType = "trade:rejected"
	EventTradeWithdrawn       EventType = "trade:withdrawn"
	EventTradeCancelled       EventType = "trade:cancelled"
	EventTradeExecuted        EventType = "trade:executed"
)

// Event is a state change fanned out to connected clients after the
// mutation is applied. LotVersion lets stale clients discard out-of-order
// deliveries. Team-scoped events list their recipients in TeamIDs.
type Event struct {
	Type       EventType `json:"type"`
	AuctionID  int64     `json:"auctionId"`
	LotVersion int64     `json:"lotVersion,omitempty"`
	At         time.Time `json:"at"`
	Payload    any       `json:"payload,omitempty"`

	Scope   Scope   `json:"-"`
	TeamIDs []int64 `json:"-"`
}

// Publisher fans events out to admin, team and spectator scopes. Publish
// must not block the caller; the auction worker calls it inline.
type Publisher interface {
	Publish(ev Event)
}

// Event payloads.

type LotRevealedPayload struct {
	PlayerID   int64  `json:"playerId"`
	PlayerName string `json:"playerName"`
	Role       string `json:"role,omitempty"`
	Country    string `json:"country,omitempty"`
	ImageURL   string `json:"imageUrl,omitempty"`
	BasePrice  int64  `json:"basePrice"`
}

type BidAcceptedPayload struct {
	TeamID int64 `json:"teamId"`
	Amount int64 `json:"amount"`
}

type PhaseChangedPayload struct {
	Phase          Phase     `json:"phase"`
	TimerExpiresAt time.Time `json:"timerExpiresAt,omitempty"`
}

type LotSoldPayload struct {
	PlayerID int64 `json:"playerId"`
	TeamID   int64 `json:"teamId"`
	Amount   int64 `json:"amount"`
}

type LotUnsoldPayload struct {
	PlayerID int64 `json:"playerId"`
}

type StatusChangedPayload struct {
	Status            string    `json:"status"`
	TradeWindowEndsAt time.Time `json:"tradeWindowEndsAt,omitempty"`
}

type TradePayload struct {
	ProposalID         string  `json:"proposalId"`
	FromTeamID         int64   `json:"fromTeamId"`
	ToTeamID           int64   `json:"toTeamId"`
	OfferedPlayerIDs   []int64 `json:"offeredPlayerIds,omitempty"`
	RequestedPlayerIDs []int64 `json:"requestedPlayerIds,omitempty"`
	PurseAdjustment    int64   `json:"purseAdjustment,omitempty"`
	Status             string  `json:"status"`
}
