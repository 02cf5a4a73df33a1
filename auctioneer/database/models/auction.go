package models

import (
	"time"

	"github.com/uptrace/bun"
)

type AuctionStatus string

const (
	AuctionStatusDraft       AuctionStatus = "draft"
	AuctionStatusLive        AuctionStatus = "live"
	AuctionStatusPaused      AuctionStatus = "paused"
	AuctionStatusCompleted   AuctionStatus = "completed"
	AuctionStatusTradeWindow AuctionStatus = "trade_window"
	AuctionStatusFinalized   AuctionStatus = "finalized"
)

// IncrementBand is one row of the bid increment table. Step applies to any
// current bid at or above From, up to the next band's From.
type IncrementBand struct {
	From int64 `json:"from"`
	Step int64 `json:"step"`
}

type Auction struct {
	bun.BaseModel `bun:"table:auctions,alias:a"`

	ID           int64         `bun:"id,pk,autoincrement"`
	Code         string        `bun:"code,notnull,unique"`
	Name         string        `bun:"name,notnull"`
	OwnerID      string        `bun:"owner_id,notnull"`
	Status       AuctionStatus `bun:"status,notnull"`
	CurrentRound int           `bun:"current_round,notnull,default:0"`
	Degraded     bool          `bun:"degraded,notnull,default:false"`

	// Per-auction configuration
	BasePriceDefault    int64           `bun:"base_price_default,notnull"`
	MinSquadSize        int             `bun:"min_squad_size,notnull"`
	MaxSquadSize        int             `bun:"max_squad_size,notnull"`
	PurseValue          int64           `bun:"purse_value,notnull"`
	Increments          []IncrementBand `bun:"increments,type:jsonb"`
	BidTimerSeconds     int             `bun:"bid_timer_seconds,notnull"`
	GoingTimerSeconds   int             `bun:"going_timer_seconds,notnull"`
	MaxTradesPerTeam    int             `bun:"max_trades_per_team,notnull"`
	TradeWindowMinutes  int             `bun:"trade_window_minutes,notnull"`
	UndoDepth           int             `bun:"undo_depth,notnull"`
	UnsoldReturnsToPool bool            `bun:"unsold_returns_to_pool,notnull,default:false"`

	TradeWindowEndsAt time.Time `bun:"trade_window_ends_at,nullzero"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

type AuctionBid struct {
	bun.BaseModel `bun:"table:auction_bids,alias:ab"`

	ID         int64     `bun:"id,pk,autoincrement"`
	AuctionID  int64     `bun:"auction_id,notnull"`
	PlayerID   int64     `bun:"player_id,notnull"`
	TeamID     int64     `bun:"team_id,notnull"`
	Amount     int64     `bun:"amount,notnull"`
	LotVersion int64     `bun:"lot_version,notnull"`
	Timestamp  time.Time `bun:"timestamp,notnull"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}
