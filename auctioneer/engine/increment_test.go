package engine

import (
	"testing"

	"github.com/crickora/auction-engine/auctioneer/database/models"
)

func TestIncrementTable_StepFor(t *testing.T) {
	table := DefaultIncrementTable()

	tests := []struct {
		name       string
		currentBid int64
		want       int64
	}{
		{name: "base band", currentBid: 20_000, want: 10_000},
		{name: "just below first boundary", currentBid: 99_999, want: 10_000},
		{name: "exactly on first boundary", currentBid: 100_000, want: 25_000},
		{name: "middle band", currentBid: 300_000, want: 25_000},
		{name: "just below second boundary", currentBid: 499_999, want: 25_000},
		{name: "exactly on second boundary", currentBid: 500_000, want: 50_000},
		{name: "far above all boundaries", currentBid: 5_000_000, want: 50_000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := table.StepFor(tt.currentBid); got != tt.want {
				t.Errorf("StepFor(%d) = %d, want %d", tt.currentBid, got, tt.want)
			}
		})
	}
}

func TestNextMinimumBid(t *testing.T) {
	table := DefaultIncrementTable()

	tests := []struct {
		name       string
		currentBid int64
		hasAnyBid  bool
		basePrice  int64
		want       int64
	}{
		{name: "opening bid is base price", hasAnyBid: false, basePrice: 2_000_000, want: 2_000_000},
		{name: "raise within base band", currentBid: 50_000, hasAnyBid: true, basePrice: 20_000, want: 60_000},
		{name: "raise at band boundary uses new band", currentBid: 100_000, hasAnyBid: true, basePrice: 20_000, want: 125_000},
		{name: "raise in top band", currentBid: 700_000, hasAnyBid: true, basePrice: 20_000, want: 750_000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextMinimumBid(tt.currentBid, tt.hasAnyBid, tt.basePrice, table)
			if got != tt.want {
				t.Errorf("NextMinimumBid(%d, %v, %d) = %d, want %d",
					tt.currentBid, tt.hasAnyBid, tt.basePrice, got, tt.want)
			}
		})
	}
}

func TestIncrementTable_Validate(t *testing.T) {
	tests := []struct {
		name    string
		table   IncrementTable
		wantErr bool
	}{
		{name: "default table", table: DefaultIncrementTable(), wantErr: false},
		{name: "single band", table: IncrementTable{{From: 0, Step: 5_000}}, wantErr: false},
		{name: "empty", table: IncrementTable{}, wantErr: true},
		{name: "first band not at zero", table: IncrementTable{{From: 10, Step: 5_000}}, wantErr: true},
		{
			name:    "zero step",
			table:   IncrementTable{{From: 0, Step: 0}},
			wantErr: true,
		},
		{
			name: "unordered bounds",
			table: IncrementTable{
				{From: 0, Step: 10_000},
				{From: 500_000, Step: 25_000},
				{From: 100_000, Step: 50_000},
			},
			wantErr: true,
		},
		{
			name: "shrinking step",
			table: IncrementTable{
				{From: 0, Step: 25_000},
				{From: 100_000, Step: 10_000},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.table.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigFromAuction_DefaultsAndValidation(t *testing.T) {
	a := &models.Auction{
		ID:               1,
		BasePriceDefault: 20_000,
		MinSquadSize:     18,
		MaxSquadSize:     25,
		PurseValue:       100_000_000,
		BidTimerSeconds:  30,
	}

	cfg, err := ConfigFromAuction(a)
	if err != nil {
		t.Fatalf("ConfigFromAuction() error = %v", err)
	}
	if got := cfg.GoingTimer; got != cfg.BidTimer/2 {
		t.Errorf("GoingTimer = %v, want half of BidTimer %v", got, cfg.BidTimer)
	}
	if cfg.UndoDepth != defaultUndoDepth {
		t.Errorf("UndoDepth = %d, want %d", cfg.UndoDepth, defaultUndoDepth)
	}
	if len(cfg.Increments) != 3 {
		t.Errorf("expected default increment table, got %d bands", len(cfg.Increments))
	}

	a.MinSquadSize = 30
	if _, err := ConfigFromAuction(a); err == nil {
		t.Error("expected error when min squad exceeds max squad")
	}
}
