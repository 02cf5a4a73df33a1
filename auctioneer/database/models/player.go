package models

import (
	"time"

	"github.com/uptrace/bun"
)

type PlayerStatus string

const (
	PlayerStatusPending    PlayerStatus = "pending"
	PlayerStatusInProgress PlayerStatus = "in_progress"
	PlayerStatusSold       PlayerStatus = "sold"
	PlayerStatusUnsold     PlayerStatus = "unsold"
)

type Player struct {
	bun.BaseModel `bun:"table:players,alias:p"`

	ID        int64        `bun:"id,pk,autoincrement"`
	AuctionID int64        `bun:"auction_id,notnull"`
	Name      string       `bun:"name,notnull"`
	Role      string       `bun:"role"`
	Country   string       `bun:"country"`
	BasePrice int64        `bun:"base_price,notnull"`
	ImageKey  string       `bun:"image_key"`
	Status    PlayerStatus `bun:"status,notnull"`
	QueuePos  int          `bun:"queue_pos,notnull"`

	// Set when the lot reaches a terminal state.
	SoldToTeamID int64 `bun:"sold_to_team_id,nullzero"`
	SoldAmount   int64 `bun:"sold_amount,nullzero"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}
