package engine

import (
	"errors"
	"testing"

	"github.com/crickora/auction-engine/auctioneer/database/models"
)

func testConfig() Config {
	return Config{
		BasePriceDefault:    20_000,
		MinSquadSize:        18,
		MaxSquadSize:        25,
		PurseValue:          100_000_000,
		Increments:          DefaultIncrementTable(),
		UndoDepth:           3,
		UnsoldReturnsToPool: true,
	}
}

func testTeam(id int64, purse int64) *TeamState {
	return &TeamState{
		Team: &models.Team{
			ID:             id,
			AuctionID:      1,
			Name:           "Test XI",
			PurseValue:     purse,
			PurseRemaining: purse,
			Active:         true,
		},
	}
}

func fillSquad(t *TeamState, n int, paidEach int64) {
	for i := 0; i < n; i++ {
		t.Squad = append(t.Squad, &models.TeamPlayer{
			TeamID:     t.Team.ID,
			PlayerID:   int64(1000 + i),
			PaidAmount: paidEach,
			AcquiredBy: models.AcquiredByAuction,
		})
		t.Team.PurseRemaining -= paidEach
	}
}

func TestLedger_MaxLegalBid(t *testing.T) {
	cfg := testConfig()
	ledger := NewLedger(&cfg)

	tests := []struct {
		name      string
		squadSize int
		paidEach  int64
		want      int64
	}{
		{
			// 17 more mandatory slots to reserve at 20k each.
			name:      "empty squad reserves min slots",
			squadSize: 0,
			want:      100_000_000 - 17*20_000,
		},
		{
			// Min squad met: full remaining purse is biddable.
			name:      "min squad met",
			squadSize: 18,
			paidEach:  1_000_000,
			want:      100_000_000 - 18*1_000_000,
		},
		{
			name:      "squad full",
			squadSize: 25,
			paidEach:  100_000,
			want:      0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := testTeam(1, cfg.PurseValue)
			fillSquad(ts, tt.squadSize, tt.paidEach)
			if got := ledger.MaxLegalBid(ts); got != tt.want {
				t.Errorf("MaxLegalBid() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestLedger_CanBid(t *testing.T) {
	cfg := testConfig()
	ledger := NewLedger(&cfg)

	t.Run("squad full beats purse check", func(t *testing.T) {
		ts := testTeam(1, cfg.PurseValue)
		fillSquad(ts, cfg.MaxSquadSize, 10_000)
		if err := ledger.CanBid(ts, 1); !errors.Is(err, ErrSquadFull) {
			t.Errorf("CanBid() = %v, want ErrSquadFull", err)
		}
	})

	t.Run("amount above max legal bid", func(t *testing.T) {
		ts := testTeam(1, 1_000_000)
		if err := ledger.CanBid(ts, 999_999); !errors.Is(err, ErrInsufficientPurse) {
			t.Errorf("CanBid() = %v, want ErrInsufficientPurse", err)
		}
	})

	t.Run("amount at max legal bid", func(t *testing.T) {
		ts := testTeam(1, cfg.PurseValue)
		if err := ledger.CanBid(ts, ledger.MaxLegalBid(ts)); err != nil {
			t.Errorf("CanBid() = %v, want nil", err)
		}
	})
}

func TestLedger_CommitRelease(t *testing.T) {
	cfg := testConfig()
	ledger := NewLedger(&cfg)
	ts := testTeam(7, cfg.PurseValue)

	slot, err := ledger.Commit(ts, 42, 3_000_000, models.AcquiredByAuction)
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if slot.PaidAmount != 3_000_000 || slot.PlayerID != 42 {
		t.Errorf("unexpected slot %+v", slot)
	}
	if ts.Team.PurseRemaining != cfg.PurseValue-3_000_000 {
		t.Errorf("PurseRemaining = %d after commit", ts.Team.PurseRemaining)
	}
	if err := ledger.CheckInvariant(ts); err != nil {
		t.Errorf("CheckInvariant() after commit: %v", err)
	}

	if _, err := ledger.Commit(ts, 42, 1_000, models.AcquiredByAuction); err == nil {
		t.Error("expected error committing a player already on the squad")
	}

	released, err := ledger.Release(ts, 42)
	if err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if released.PaidAmount != 3_000_000 {
		t.Errorf("released slot paid %d, want 3000000", released.PaidAmount)
	}
	if ts.Team.PurseRemaining != cfg.PurseValue {
		t.Errorf("PurseRemaining = %d after release, want full purse", ts.Team.PurseRemaining)
	}
	if ts.SquadSize() != 0 {
		t.Errorf("SquadSize() = %d after release", ts.SquadSize())
	}

	if _, err := ledger.Release(ts, 42); err == nil {
		t.Error("expected error releasing a player not on the squad")
	}
}

func TestLedger_CommitOverPurse(t *testing.T) {
	cfg := testConfig()
	ledger := NewLedger(&cfg)
	ts := testTeam(1, 100_000)

	if _, err := ledger.Commit(ts, 9, 100_001, models.AcquiredByAuction); !errors.Is(err, ErrInsufficientPurse) {
		t.Errorf("Commit() = %v, want ErrInsufficientPurse", err)
	}
	if err := ledger.CheckInvariant(ts); err != nil {
		t.Errorf("failed commit mutated state: %v", err)
	}
}
