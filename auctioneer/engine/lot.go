package engine

import (
	"fmt"
	"time"

	"github.com/crickora/auction-engine/auctioneer/database/models"
)

type Phase string

const (
	PhaseWaiting    Phase = "waiting"
	PhaseRevealed   Phase = "revealed"
	PhaseOpen       Phase = "open"
	PhaseGoingOnce  Phase = "going_once"
	PhaseGoingTwice Phase = "going_twice"
	PhaseSold       Phase = "sold"
	PhaseUnsold     Phase = "unsold"
)

// biddingPhases are the phases in which a raise is accepted.
func (p Phase) AcceptsBids() bool {
	return p == PhaseOpen || p == PhaseGoingOnce || p == PhaseGoingTwice
}

func (p Phase) Terminal() bool {
	return p == PhaseSold || p == PhaseUnsold
}

// Bid is one accepted raise in a lot's history.
type Bid struct {
	TeamID int64     `json:"teamId"`
	Amount int64     `json:"amount"`
	At     time.Time `json:"at"`
}

// Lot is the player currently under the hammer. Every state-changing event
// bumps Version, which tombstones any timer scheduled before the change.
type Lot struct {
	Player         *models.Player
	BasePrice      int64
	CurrentBid     int64
	CurrentBidTeam int64 // 0 when no bid yet
	HasBid         bool
	Bids           []Bid
	Phase          Phase
	Version        int64
	Deadline       time.Time // zero when no timer armed

	// Time left on the armed timer when the auction was paused.
	frozenRemaining time.Duration
}

func newLot(p *models.Player, basePrice int64) *Lot {
	return &Lot{
		Player:    p,
		BasePrice: basePrice,
		Phase:     PhaseWaiting,
	}
}

var lotTransitions = map[Phase][]Phase{
	PhaseWaiting:    {PhaseRevealed},
	PhaseRevealed:   {PhaseOpen, PhaseSold, PhaseUnsold},
	PhaseOpen:       {PhaseGoingOnce, PhaseSold, PhaseUnsold},
	PhaseGoingOnce:  {PhaseOpen, PhaseGoingTwice, PhaseSold, PhaseUnsold},
	PhaseGoingTwice: {PhaseOpen, PhaseSold, PhaseUnsold},
}

// transition moves the lot to the target phase, bumping the version.
// Terminal phases never transition again.
func (l *Lot) transition(to Phase) error {
	for _, allowed := range lotTransitions[l.Phase] {
		if allowed == to {
			l.Phase = to
			l.Version++
			return nil
		}
	}
	return fmt.Errorf("%s -> %s: %w", l.Phase, to, ErrInvalidPhaseTransition)
}

// acceptBid records a raise without changing phase. The caller has already
// validated the amount and the bidder; a raise during going_once or
// going_twice also returns the lot to open.
func (l *Lot) acceptBid(teamID int64, amount int64, at time.Time) error {
	if !l.Phase.AcceptsBids() {
		return ErrLotNotOpen
	}
	if l.Phase != PhaseOpen {
		if err := l.transition(PhaseOpen); err != nil {
			return err
		}
	} else {
		l.Version++
	}
	l.CurrentBid = amount
	l.CurrentBidTeam = teamID
	l.HasBid = true
	l.Bids = append(l.Bids, Bid{TeamID: teamID, Amount: amount, At: at})
	return nil
}

// revertLastBid rewinds the most recent accepted raise. Returns the bid
// that was removed.
func (l *Lot) revertLastBid() (Bid, error) {
	if len(l.Bids) == 0 {
		return Bid{}, ErrNothingToUndo
	}
	removed := l.Bids[len(l.Bids)-1]
	l.Bids = l.Bids[:len(l.Bids)-1]
	if len(l.Bids) == 0 {
		l.CurrentBid = 0
		l.CurrentBidTeam = 0
		l.HasBid = false
	} else {
		prev := l.Bids[len(l.Bids)-1]
		l.CurrentBid = prev.Amount
		l.CurrentBidTeam = prev.TeamID
	}
	l.Version++
	return removed, nil
}
