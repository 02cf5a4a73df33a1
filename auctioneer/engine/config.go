package engine

import (
	"fmt"
	"time"

	"github.com/crickora/auction-engine/auctioneer/database/models"
)

// Config is the per-auction rule set, derived from a persisted auction row.
type Config struct {
	BasePriceDefault    int64
	MinSquadSize        int
	MaxSquadSize        int
	PurseValue          int64
	Increments          IncrementTable
	BidTimer            time.Duration
	GoingTimer          time.Duration
	MaxTradesPerTeam    int
	TradeWindow         time.Duration
	UndoDepth           int
	UnsoldReturnsToPool bool
}

const defaultUndoDepth = 3

// ConfigFromAuction materializes the rule set, applying defaults for
// anything the row leaves unset and rejecting bad increment tables.
func ConfigFromAuction(a *models.Auction) (Config, error) {
	cfg := Config{
		BasePriceDefault:    a.BasePriceDefault,
		MinSquadSize:        a.MinSquadSize,
		MaxSquadSize:        a.MaxSquadSize,
		PurseValue:          a.PurseValue,
		Increments:          IncrementTable(a.Increments),
		BidTimer:            time.Duration(a.BidTimerSeconds) * time.Second,
		GoingTimer:          time.Duration(a.GoingTimerSeconds) * time.Second,
		MaxTradesPerTeam:    a.MaxTradesPerTeam,
		TradeWindow:         time.Duration(a.TradeWindowMinutes) * time.Minute,
		UndoDepth:           a.UndoDepth,
		UnsoldReturnsToPool: a.UnsoldReturnsToPool,
	}
	if len(cfg.Increments) == 0 {
		cfg.Increments = DefaultIncrementTable()
	}
	if err := cfg.Increments.Validate(); err != nil {
		return Config{}, fmt.Errorf("auction %d increment table: %w", a.ID, err)
	}
	if cfg.UndoDepth <= 0 {
		cfg.UndoDepth = defaultUndoDepth
	}
	if cfg.GoingTimer <= 0 {
		cfg.GoingTimer = cfg.BidTimer / 2
	}
	if cfg.MinSquadSize > cfg.MaxSquadSize {
		return Config{}, fmt.Errorf("auction %d: min squad %d above max %d", a.ID, cfg.MinSquadSize, cfg.MaxSquadSize)
	}
	return cfg, nil
}
