package models

import (
	"time"

	"github.com/uptrace/bun"
)

type TradeStatus string

const (
	TradeProposed  TradeStatus = "proposed"
	TradeAccepted  TradeStatus = "accepted"
	TradeRejected  TradeStatus = "rejected"
	TradeWithdrawn TradeStatus = "withdrawn"
	TradeCancelled TradeStatus = "cancelled"
	TradeExecuted  TradeStatus = "executed"
)

type TradeProposal struct {
	bun.BaseModel `bun:"table:trade_proposals,alias:tr"`

	ID         int64  `bun:"id,pk,autoincrement"`
	ProposalID string `bun:"proposal_id,notnull,unique"`
	AuctionID  int64  `bun:"auction_id,notnull"`
	FromTeamID int64  `bun:"from_team_id,notnull"`
	ToTeamID   int64  `bun:"to_team_id,notnull"`

	OfferedPlayerIDs   []int64 `bun:"offered_player_ids,array"`
	RequestedPlayerIDs []int64 `bun:"requested_player_ids,array"`

	// Paid by the initiating team to the counterparty when the swapped
	// players are of unequal value. May be negative.
	PurseAdjustment int64 `bun:"purse_adjustment,notnull,default:0"`

	Status TradeStatus `bun:"status,notnull"`

	CreatedAt  time.Time `bun:"created_at,notnull,default:current_timestamp"`
	ResolvedAt time.Time `bun:"resolved_at,nullzero"`
}
