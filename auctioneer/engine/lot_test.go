package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/crickora/auction-engine/auctioneer/database/models"
)

func testLot() *Lot {
	return newLot(&models.Player{ID: 1, Name: "V Kohli", BasePrice: 2_000_000}, 2_000_000)
}

func TestLot_Transitions(t *testing.T) {
	tests := []struct {
		name    string
		path    []Phase
		wantErr bool
	}{
		{name: "full sold path", path: []Phase{PhaseRevealed, PhaseOpen, PhaseGoingOnce, PhaseGoingTwice, PhaseSold}},
		{name: "unsold without bids", path: []Phase{PhaseRevealed, PhaseOpen, PhaseUnsold}},
		{name: "going once back to open", path: []Phase{PhaseRevealed, PhaseOpen, PhaseGoingOnce, PhaseOpen}},
		{name: "going twice back to open", path: []Phase{PhaseRevealed, PhaseOpen, PhaseGoingOnce, PhaseGoingTwice, PhaseOpen}},
		{name: "skip reveal", path: []Phase{PhaseOpen}, wantErr: true},
		{name: "open straight to going twice", path: []Phase{PhaseRevealed, PhaseOpen, PhaseGoingTwice}, wantErr: true},
		{name: "out of terminal", path: []Phase{PhaseRevealed, PhaseUnsold, PhaseOpen}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lot := testLot()
			var err error
			for _, phase := range tt.path {
				if err = lot.transition(phase); err != nil {
					break
				}
			}
			if (err != nil) != tt.wantErr {
				t.Errorf("transition path %v error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidPhaseTransition) {
				t.Errorf("error = %v, want ErrInvalidPhaseTransition", err)
			}
		})
	}
}

func TestLot_TransitionBumpsVersion(t *testing.T) {
	lot := testLot()
	v0 := lot.Version
	if err := lot.transition(PhaseRevealed); err != nil {
		t.Fatal(err)
	}
	if err := lot.transition(PhaseOpen); err != nil {
		t.Fatal(err)
	}
	if lot.Version != v0+2 {
		t.Errorf("Version = %d, want %d", lot.Version, v0+2)
	}
}

func TestLot_AcceptBid(t *testing.T) {
	lot := testLot()
	if err := lot.acceptBid(1, 2_000_000, time.Now()); !errors.Is(err, ErrLotNotOpen) {
		t.Fatalf("acceptBid before open = %v, want ErrLotNotOpen", err)
	}

	lot.transition(PhaseRevealed)
	lot.transition(PhaseOpen)

	if err := lot.acceptBid(1, 2_000_000, time.Now()); err != nil {
		t.Fatalf("acceptBid() error = %v", err)
	}
	if !lot.HasBid || lot.CurrentBid != 2_000_000 || lot.CurrentBidTeam != 1 {
		t.Errorf("lot state after first bid: %+v", lot)
	}

	// A raise during a going phase pulls the lot back to open.
	lot.transition(PhaseGoingOnce)
	if err := lot.acceptBid(2, 2_010_000, time.Now()); err != nil {
		t.Fatalf("acceptBid() in going_once error = %v", err)
	}
	if lot.Phase != PhaseOpen {
		t.Errorf("Phase = %s after bid in going_once, want open", lot.Phase)
	}
	if len(lot.Bids) != 2 {
		t.Errorf("Bids len = %d, want 2", len(lot.Bids))
	}
}

func TestLot_RevertLastBid(t *testing.T) {
	lot := testLot()
	lot.transition(PhaseRevealed)
	lot.transition(PhaseOpen)

	if _, err := lot.revertLastBid(); !errors.Is(err, ErrNothingToUndo) {
		t.Fatalf("revertLastBid on empty history = %v, want ErrNothingToUndo", err)
	}

	lot.acceptBid(1, 2_000_000, time.Now())
	lot.acceptBid(2, 2_010_000, time.Now())

	removed, err := lot.revertLastBid()
	if err != nil {
		t.Fatalf("revertLastBid() error = %v", err)
	}
	if removed.TeamID != 2 || removed.Amount != 2_010_000 {
		t.Errorf("removed bid = %+v", removed)
	}
	if lot.CurrentBidTeam != 1 || lot.CurrentBid != 2_000_000 {
		t.Errorf("lot after revert: team %d amount %d", lot.CurrentBidTeam, lot.CurrentBid)
	}

	if _, err := lot.revertLastBid(); err != nil {
		t.Fatalf("revertLastBid() error = %v", err)
	}
	if lot.HasBid || lot.CurrentBid != 0 || lot.CurrentBidTeam != 0 {
		t.Errorf("lot not fully rewound: %+v", lot)
	}
}

func TestUndoStack_Bounded(t *testing.T) {
	s := newUndoStack(3)
	var applied []string
	for _, label := range []string{"a", "b", "c", "d"} {
		label := label
		s.push(label, func() error {
			applied = append(applied, label)
			return nil
		})
	}
	if s.depth() != 3 {
		t.Fatalf("depth = %d, want 3", s.depth())
	}
	for {
		e, ok := s.pop()
		if !ok {
			break
		}
		e.revert()
	}
	// "a" was discarded when "d" was pushed.
	want := []string{"d", "c", "b"}
	if len(applied) != len(want) {
		t.Fatalf("applied %v, want %v", applied, want)
	}
	for i := range want {
		if applied[i] != want[i] {
			t.Errorf("applied[%d] = %s, want %s", i, applied[i], want[i])
		}
	}
}
