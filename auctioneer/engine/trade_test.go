package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/crickora/auction-engine/auctioneer/database/models"
)

func tradeAuction() *models.Auction {
	a := testAuction()
	a.Status = models.AuctionStatusTradeWindow
	a.TradeWindowEndsAt = newFakeClock().now.Add(time.Hour)
	a.PurseValue = 10_000_000
	return a
}

func addToSquad(t *testing.T, ts *TeamState, ledger *Ledger, playerID int64, paid int64) *models.TeamPlayer {
	t.Helper()
	slot, err := ledger.Commit(ts, playerID, paid, models.AcquiredByAuction)
	if err != nil {
		t.Fatalf("seeding squad: %v", err)
	}
	return slot
}

// newTradeHarness seeds a trade-window auction with three squads:
// team 1 holds players 11 and 12, team 2 holds 21 and 22, team 3 holds 31.
func newTradeHarness(t *testing.T, a *models.Auction) *testHarness {
	t.Helper()
	pub := &recordPublisher{}
	sched := &fakeScheduler{}
	clock := newFakeClock()

	cfg, err := ConfigFromAuction(a)
	if err != nil {
		t.Fatal(err)
	}
	ledger := NewLedger(&cfg)

	team1 := testTeam(1, a.PurseValue)
	addToSquad(t, team1, ledger, 11, 1_000_000)
	addToSquad(t, team1, ledger, 12, 500_000)
	team2 := testTeam(2, a.PurseValue)
	addToSquad(t, team2, ledger, 21, 2_000_000)
	addToSquad(t, team2, ledger, 22, 300_000)
	team3 := testTeam(3, a.PurseValue)
	addToSquad(t, team3, ledger, 31, 400_000)

	w, err := NewWorker(Seed{
		Auction: a,
		Teams:   []*TeamState{team1, team2, team3},
	}, Deps{Publish: pub, Clock: clock, Sched: sched})
	if err != nil {
		t.Fatalf("NewWorker() error = %v", err)
	}
	go w.Run()
	t.Cleanup(w.Shutdown)
	return &testHarness{w: w, pub: pub, sched: sched, clock: clock}
}

func teamView(t *testing.T, snap Snapshot, id int64) TeamView {
	t.Helper()
	for _, tv := range snap.Teams {
		if tv.ID == id {
			return tv
		}
	}
	t.Fatalf("team %d not in snapshot", id)
	return TeamView{}
}

func TestTrade_ProposeValidation(t *testing.T) {
	h := newTradeHarness(t, tradeAuction())
	ctx := context.Background()

	tests := []struct {
		name    string
		req     TradeRequest
		wantErr error
		wantMsg string
	}{
		{
			name:    "self trade",
			req:     TradeRequest{FromTeamID: 1, ToTeamID: 1, OfferedPlayerIDs: []int64{11}},
			wantMsg: "yourself",
		},
		{
			name:    "empty proposal",
			req:     TradeRequest{FromTeamID: 1, ToTeamID: 2},
			wantMsg: "empty",
		},
		{
			name:    "adjustment needs players on both sides",
			req:     TradeRequest{FromTeamID: 1, ToTeamID: 2, OfferedPlayerIDs: []int64{11}, PurseAdjustment: 100_000},
			wantMsg: "both sides",
		},
		{
			name:    "unknown counterparty",
			req:     TradeRequest{FromTeamID: 1, ToTeamID: 9, OfferedPlayerIDs: []int64{11}},
			wantErr: ErrUnknownTeam,
		},
		{
			name:    "offering a player the team does not own",
			req:     TradeRequest{FromTeamID: 1, ToTeamID: 2, OfferedPlayerIDs: []int64{21}},
			wantErr: ErrProposalConflict,
		},
		{
			name:    "requesting a player the counterparty does not own",
			req:     TradeRequest{FromTeamID: 1, ToTeamID: 2, OfferedPlayerIDs: []int64{11}, RequestedPlayerIDs: []int64{31}},
			wantErr: ErrProposalConflict,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.w.ProposeTrade(ctx, tt.req)
			if err == nil {
				t.Fatal("ProposeTrade() succeeded, want error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("ProposeTrade() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantMsg != "" && !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("ProposeTrade() error = %v, want message containing %q", err, tt.wantMsg)
			}
		})
	}
}

func TestTrade_ProposeOutsideWindow(t *testing.T) {
	h := newTestHarness(t, testAuction()) // live auction, window not open
	_, err := h.w.ProposeTrade(context.Background(), TradeRequest{FromTeamID: 1, ToTeamID: 2, OfferedPlayerIDs: []int64{11}})
	if !errors.Is(err, ErrAuctionNotInTradeWindow) {
		t.Errorf("ProposeTrade() error = %v, want ErrAuctionNotInTradeWindow", err)
	}
}

func TestTrade_LockedPlayerCannotBeTraded(t *testing.T) {
	a := tradeAuction()
	cfg, err := ConfigFromAuction(a)
	if err != nil {
		t.Fatal(err)
	}
	ledger := NewLedger(&cfg)
	team1 := testTeam(1, a.PurseValue)
	locked := addToSquad(t, team1, ledger, 11, 1_000_000)
	locked.Locked = true
	team2 := testTeam(2, a.PurseValue)
	addToSquad(t, team2, ledger, 21, 2_000_000)

	w, err := NewWorker(Seed{
		Auction: a,
		Teams:   []*TeamState{team1, team2},
	}, Deps{Publish: &recordPublisher{}, Clock: newFakeClock(), Sched: &fakeScheduler{}})
	if err != nil {
		t.Fatal(err)
	}
	go w.Run()
	t.Cleanup(w.Shutdown)

	_, err = w.ProposeTrade(context.Background(), TradeRequest{FromTeamID: 1, ToTeamID: 2, OfferedPlayerIDs: []int64{11}})
	if !errors.Is(err, ErrProposalConflict) {
		t.Errorf("ProposeTrade() with locked player = %v, want ErrProposalConflict", err)
	}
}

func TestTrade_AuthorizationRules(t *testing.T) {
	h := newTradeHarness(t, tradeAuction())
	ctx := context.Background()

	id, err := h.w.ProposeTrade(ctx, TradeRequest{FromTeamID: 1, ToTeamID: 2, OfferedPlayerIDs: []int64{11}})
	if err != nil {
		t.Fatalf("ProposeTrade() error = %v", err)
	}

	// Only the counterparty may accept or reject.
	if err := h.w.AcceptTrade(ctx, id, 1); err == nil {
		t.Error("initiator accepted its own proposal")
	}
	if err := h.w.RejectTrade(ctx, id, 1); err == nil {
		t.Error("initiator rejected its own proposal")
	}
	// Only the initiator may withdraw.
	if err := h.w.WithdrawTrade(ctx, id, 2); err == nil {
		t.Error("counterparty withdrew the proposal")
	}
	if err := h.w.AcceptTrade(ctx, "no-such-proposal", 2); !errors.Is(err, ErrProposalNotFound) {
		t.Errorf("accept of unknown proposal = %v, want ErrProposalNotFound", err)
	}

	if err := h.w.WithdrawTrade(ctx, id, 1); err != nil {
		t.Fatalf("WithdrawTrade() error = %v", err)
	}
	// A resolved proposal cannot be acted on again.
	if err := h.w.AcceptTrade(ctx, id, 2); !errors.Is(err, ErrProposalNotPending) {
		t.Errorf("accept of withdrawn proposal = %v, want ErrProposalNotPending", err)
	}
}

func TestTrade_ExecuteWithAdjustment(t *testing.T) {
	h := newTradeHarness(t, tradeAuction())
	ctx := context.Background()

	// Team 1 swaps player 11 (paid 1,000,000) for team 2's player 21
	// (paid 2,000,000) plus 200,000 cash from team 1.
	id, err := h.w.ProposeTrade(ctx, TradeRequest{
		FromTeamID:         1,
		ToTeamID:           2,
		OfferedPlayerIDs:   []int64{11},
		RequestedPlayerIDs: []int64{21},
		PurseAdjustment:    200_000,
	})
	if err != nil {
		t.Fatalf("ProposeTrade() error = %v", err)
	}
	if err := h.w.AcceptTrade(ctx, id, 2); err != nil {
		t.Fatalf("AcceptTrade() error = %v", err)
	}

	snap := h.sync(t)
	// Team 1 started at 10M − 1.5M = 8.5M, gains 1M back, pays 2M + 200k.
	if got := teamView(t, snap, 1).PurseRemaining; got != 7_300_000 {
		t.Errorf("team 1 purse = %d, want 7300000", got)
	}
	// Team 2 started at 10M − 2.3M = 7.7M, gains 2M + 200k, pays 1M − 200k
	// for the incoming slot.
	if got := teamView(t, snap, 2).PurseRemaining; got != 8_900_000 {
		t.Errorf("team 2 purse = %d, want 8900000", got)
	}
	if got := teamView(t, snap, 1).SquadSize; got != 2 {
		t.Errorf("team 1 squad size = %d, want 2", got)
	}

	if h.pub.count(EventTradeAccepted) == 0 || h.pub.count(EventTradeExecuted) == 0 {
		t.Error("trade:accepted and trade:executed were not both published")
	}
	if len(snap.PendingTrades) != 0 {
		t.Errorf("pending trades after execution = %d, want 0", len(snap.PendingTrades))
	}
}

func TestTrade_AdjustmentCannotDrivePaidNegative(t *testing.T) {
	h := newTradeHarness(t, tradeAuction())
	ctx := context.Background()

	// Requested player 22 was paid 300,000; a -400,000 adjustment would
	// leave its slot negative on team 1's books.
	id, err := h.w.ProposeTrade(ctx, TradeRequest{
		FromTeamID:         1,
		ToTeamID:           2,
		OfferedPlayerIDs:   []int64{11},
		RequestedPlayerIDs: []int64{22},
		PurseAdjustment:    -400_000,
	})
	if err != nil {
		t.Fatalf("ProposeTrade() error = %v", err)
	}
	if err := h.w.AcceptTrade(ctx, id, 2); !errors.Is(err, ErrInsufficientPurse) {
		t.Errorf("AcceptTrade() error = %v, want ErrInsufficientPurse", err)
	}

	// Nothing moved.
	snap := h.sync(t)
	if got := teamView(t, snap, 1).PurseRemaining; got != 8_500_000 {
		t.Errorf("team 1 purse after refused trade = %d, want 8500000", got)
	}
	if got := teamView(t, snap, 2).SquadSize; got != 2 {
		t.Errorf("team 2 squad size after refused trade = %d, want 2", got)
	}
}

func TestTrade_ExecutionCancelsConflictingProposals(t *testing.T) {
	h := newTradeHarness(t, tradeAuction())
	ctx := context.Background()

	// Team 3 asks team 1 for player 11 first.
	conflicting, err := h.w.ProposeTrade(ctx, TradeRequest{
		FromTeamID:         3,
		ToTeamID:           1,
		OfferedPlayerIDs:   []int64{31},
		RequestedPlayerIDs: []int64{11},
	})
	if err != nil {
		t.Fatalf("ProposeTrade() error = %v", err)
	}

	// Player 11 then moves to team 2 through a competing trade.
	id, err := h.w.ProposeTrade(ctx, TradeRequest{
		FromTeamID:         1,
		ToTeamID:           2,
		OfferedPlayerIDs:   []int64{11},
		RequestedPlayerIDs: []int64{21},
	})
	if err != nil {
		t.Fatalf("ProposeTrade() error = %v", err)
	}
	if err := h.w.AcceptTrade(ctx, id, 2); err != nil {
		t.Fatalf("AcceptTrade() error = %v", err)
	}

	snap := h.sync(t)
	if len(snap.PendingTrades) != 0 {
		t.Errorf("pending trades = %+v, want conflicting proposal cancelled", snap.PendingTrades)
	}
	if h.pub.count(EventTradeCancelled) != 1 {
		t.Errorf("trade:cancelled published %d times, want 1", h.pub.count(EventTradeCancelled))
	}
	// The cancelled proposal stays resolved even if the counterparty tries.
	if err := h.w.AcceptTrade(ctx, conflicting, 1); !errors.Is(err, ErrProposalNotPending) {
		t.Errorf("accept of cancelled proposal = %v, want ErrProposalNotPending", err)
	}
}

func TestTrade_ExecutedLimitPerTeam(t *testing.T) {
	a := tradeAuction()
	a.MaxTradesPerTeam = 1
	h := newTradeHarness(t, a)
	ctx := context.Background()

	id, err := h.w.ProposeTrade(ctx, TradeRequest{
		FromTeamID:         1,
		ToTeamID:           2,
		OfferedPlayerIDs:   []int64{11},
		RequestedPlayerIDs: []int64{21},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := h.w.AcceptTrade(ctx, id, 2); err != nil {
		t.Fatal(err)
	}

	// Both parties burned their single trade; fresh proposals involving
	// either are refused.
	if _, err := h.w.ProposeTrade(ctx, TradeRequest{FromTeamID: 2, ToTeamID: 3, OfferedPlayerIDs: []int64{22}}); !errors.Is(err, ErrTradeLimitReached) {
		t.Errorf("ProposeTrade() after limit = %v, want ErrTradeLimitReached", err)
	}
	if _, err := h.w.ProposeTrade(ctx, TradeRequest{FromTeamID: 3, ToTeamID: 1, OfferedPlayerIDs: []int64{31}}); !errors.Is(err, ErrTradeLimitReached) {
		t.Errorf("ProposeTrade() to limited team = %v, want ErrTradeLimitReached", err)
	}
}

func TestTrade_OneSidedTransferRespectsSquadCap(t *testing.T) {
	a := tradeAuction()
	a.MaxSquadSize = 2
	h := newTradeHarness(t, a)
	ctx := context.Background()

	// Team 2 already holds two players; a one-way gift would overflow it.
	id, err := h.w.ProposeTrade(ctx, TradeRequest{
		FromTeamID:       1,
		ToTeamID:         2,
		OfferedPlayerIDs: []int64{11},
	})
	if err != nil {
		t.Fatalf("ProposeTrade() error = %v", err)
	}
	if err := h.w.AcceptTrade(ctx, id, 2); !errors.Is(err, ErrSquadFull) {
		t.Errorf("AcceptTrade() error = %v, want ErrSquadFull", err)
	}
}

func TestTrade_FinalizeCancelsPending(t *testing.T) {
	h := newTradeHarness(t, tradeAuction())
	ctx := context.Background()

	if _, err := h.w.ProposeTrade(ctx, TradeRequest{FromTeamID: 1, ToTeamID: 2, OfferedPlayerIDs: []int64{11}}); err != nil {
		t.Fatal(err)
	}
	if err := h.w.Finalize(ctx); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}

	snap := h.sync(t)
	if snap.Status != string(models.AuctionStatusFinalized) {
		t.Errorf("Status = %s, want finalized", snap.Status)
	}
	if len(snap.PendingTrades) != 0 {
		t.Errorf("pending trades after finalize = %d, want 0", len(snap.PendingTrades))
	}
	if h.pub.count(EventTradeCancelled) != 1 {
		t.Errorf("trade:cancelled published %d times, want 1", h.pub.count(EventTradeCancelled))
	}

	// Finalized state is immutable.
	if _, err := h.w.ProposeTrade(ctx, TradeRequest{FromTeamID: 1, ToTeamID: 2, OfferedPlayerIDs: []int64{12}}); !errors.Is(err, ErrAuctionNotInTradeWindow) {
		t.Errorf("ProposeTrade() after finalize = %v, want ErrAuctionNotInTradeWindow", err)
	}
}

func TestTrade_WindowExpiryAutoFinalizes(t *testing.T) {
	h := newTradeHarness(t, tradeAuction())

	// The window timer was armed from the seed's deadline.
	h.sched.fire(t)
	snap := h.sync(t)
	if snap.Status != string(models.AuctionStatusFinalized) {
		t.Errorf("Status after window expiry = %s, want finalized", snap.Status)
	}
}
