package models

import (
	"time"

	"github.com/uptrace/bun"
)

type AcquisitionKind string

const (
	AcquiredByAuction   AcquisitionKind = "auction"
	AcquiredByTrade     AcquisitionKind = "trade"
	AcquiredByRetention AcquisitionKind = "retention"
)

type Team struct {
	bun.BaseModel `bun:"table:teams,alias:t"`

	ID        int64  `bun:"id,pk,autoincrement"`
	AuctionID int64  `bun:"auction_id,notnull"`
	Name      string `bun:"name,notnull"`
	ShortName string `bun:"short_name"`
	Color     string `bun:"color"`

	PurseValue     int64 `bun:"purse_value,notnull"`
	PurseRemaining int64 `bun:"purse_remaining,notnull"`

	// Teams are never deleted, only deactivated.
	Active bool `bun:"active,notnull,default:true"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// TeamPlayer is one squad slot: a player held by a team together with the
// amount charged against the team's purse for him.
type TeamPlayer struct {
	bun.BaseModel `bun:"table:team_players,alias:tp"`

	ID         int64           `bun:"id,pk,autoincrement"`
	AuctionID  int64           `bun:"auction_id,notnull"`
	TeamID     int64           `bun:"team_id,notnull"`
	PlayerID   int64           `bun:"player_id,notnull"`
	PaidAmount int64           `bun:"paid_amount,notnull"`
	Retained   bool            `bun:"retained,notnull,default:false"`
	Captain    bool            `bun:"captain,notnull,default:false"`
	Locked     bool            `bun:"locked,notnull,default:false"`
	AcquiredBy AcquisitionKind `bun:"acquired_by,notnull"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}
