package engine

import (
	"fmt"

	"github.com/crickora/auction-engine/auctioneer/database/models"
)

// TeamState is a team's in-memory authoritative state: the persisted row
// plus its current squad. Mutated only by the owning auction worker.
type TeamState struct {
	Team  *models.Team
	Squad []*models.TeamPlayer
}

func (t *TeamState) SquadSize() int {
	return len(t.Squad)
}

// CommittedSpend sums the paid amounts of every squad slot.
func (t *TeamState) CommittedSpend() int64 {
	var total int64
	for _, slot := range t.Squad {
		total += slot.PaidAmount
	}
	return total
}

func (t *TeamState) slot(playerID int64) (int, *models.TeamPlayer) {
	for i, slot := range t.Squad {
		if slot.PlayerID == playerID {
			return i, slot
		}
	}
	return -1, nil
}

// Ledger is the source of truth for bid eligibility and purse movement.
// All methods assume the caller holds the auction's serialization (the
// worker goroutine); the ledger itself carries no locks.
type Ledger struct {
	cfg *Config
}

func NewLedger(cfg *Config) *Ledger {
	return &Ledger{cfg: cfg}
}

func (l *Ledger) Remaining(t *TeamState) int64 {
	return t.Team.PurseRemaining
}

// MaxLegalBid is the team's remaining purse minus the reserve needed to
// still fill mandatory minimum squad slots at base price after winning the
// current lot. Zero when the squad is already full.
func (l *Ledger) MaxLegalBid(t *TeamState) int64 {
	if t.SquadSize() >= l.cfg.MaxSquadSize {
		return 0
	}
	slotsToFill := int64(l.cfg.MinSquadSize - t.SquadSize() - 1)
	if slotsToFill < 0 {
		slotsToFill = 0
	}
	max := t.Team.PurseRemaining - slotsToFill*l.cfg.BasePriceDefault
	if max < 0 {
		return 0
	}
	return max
}

// CanBid reports whether the team may be charged amount for the current
// lot, distinguishing squad and purse failures.
func (l *Ledger) CanBid(t *TeamState, amount int64) error {
	if t.SquadSize() >= l.cfg.MaxSquadSize {
		return ErrSquadFull
	}
	if amount > l.MaxLegalBid(t) {
		return ErrInsufficientPurse
	}
	return nil
}

// Commit atomically appends the player to the squad and charges the purse.
// The purse must stay non-negative even when the caller skipped CanBid.
func (l *Ledger) Commit(t *TeamState, playerID int64, amount int64, via models.AcquisitionKind) (*models.TeamPlayer, error) {
	if t.Team.PurseRemaining-amount < 0 {
		return nil, fmt.Errorf("committing %d for player %d: %w", amount, playerID, ErrInsufficientPurse)
	}
	if _, existing := t.slot(playerID); existing != nil {
		return nil, fmt.Errorf("player %d already on team %d", playerID, t.Team.ID)
	}
	slot := &models.TeamPlayer{
		AuctionID:  t.Team.AuctionID,
		TeamID:     t.Team.ID,
		PlayerID:   playerID,
		PaidAmount: amount,
		AcquiredBy: via,
	}
	t.Squad = append(t.Squad, slot)
	t.Team.PurseRemaining -= amount
	return slot, nil
}

// Release reverses a commit: removes the squad slot and restores the
// purse. Used by undo and by trade execution.
func (l *Ledger) Release(t *TeamState, playerID int64) (*models.TeamPlayer, error) {
	i, slot := t.slot(playerID)
	if slot == nil {
		return nil, fmt.Errorf("releasing player %d from team %d: not on squad", playerID, t.Team.ID)
	}
	t.Squad = append(t.Squad[:i], t.Squad[i+1:]...)
	t.Team.PurseRemaining += slot.PaidAmount
	return slot, nil
}

// CheckInvariant verifies purseRemaining == purseValue − Σ paidAmount and
// non-negativity. Called after every settlement in debug paths and tests.
func (l *Ledger) CheckInvariant(t *TeamState) error {
	want := t.Team.PurseValue - t.CommittedSpend()
	if t.Team.PurseRemaining != want {
		return fmt.Errorf("team %d purse drift: remaining %d, expected %d", t.Team.ID, t.Team.PurseRemaining, want)
	}
	if t.Team.PurseRemaining < 0 {
		return fmt.Errorf("team %d purse negative: %d", t.Team.ID, t.Team.PurseRemaining)
	}
	return nil
}
