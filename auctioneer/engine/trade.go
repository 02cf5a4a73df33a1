package engine

import (
	"fmt"
	"log/slog"

	"github.com/crickora/auction-engine/auctioneer/database/models"
	"github.com/google/uuid"
)

// tradeBook tracks the auction's proposals and per-team executed trade
// counts. Owned by the worker goroutine like everything else.
type tradeBook struct {
	proposals map[string]*models.TradeProposal
	executed  map[int64]int
}

func newTradeBook(seed []*models.TradeProposal) *tradeBook {
	b := &tradeBook{
		proposals: make(map[string]*models.TradeProposal),
		executed:  make(map[int64]int),
	}
	for _, pr := range seed {
		b.proposals[pr.ProposalID] = pr
		if pr.Status == models.TradeExecuted {
			b.executed[pr.FromTeamID]++
			b.executed[pr.ToTeamID]++
		}
	}
	return b
}

func (b *tradeBook) pending() []*models.TradeProposal {
	var out []*models.TradeProposal
	for _, pr := range b.proposals {
		if pr.Status == models.TradeProposed {
			out = append(out, pr)
		}
	}
	return out
}

func references(pr *models.TradeProposal, playerID int64) bool {
	for _, id := range pr.OfferedPlayerIDs {
		if id == playerID {
			return true
		}
	}
	for _, id := range pr.RequestedPlayerIDs {
		if id == playerID {
			return true
		}
	}
	return false
}

// tradeEvent publishes the pair the protocol requires: full detail to the
// two parties, a summary to the admin scope.
func (w *Worker) tradeEvent(t EventType, pr *models.TradeProposal) {
	payload := TradePayload{
		ProposalID:         pr.ProposalID,
		FromTeamID:         pr.FromTeamID,
		ToTeamID:           pr.ToTeamID,
		OfferedPlayerIDs:   pr.OfferedPlayerIDs,
		RequestedPlayerIDs: pr.RequestedPlayerIDs,
		PurseAdjustment:    pr.PurseAdjustment,
		Status:             string(pr.Status),
	}
	w.publish(Event{Type: t, Scope: ScopeTeam, TeamIDs: []int64{pr.FromTeamID, pr.ToTeamID}, Payload: payload})
	w.publish(Event{Type: t, Scope: ScopeAdmin, Payload: TradePayload{
		ProposalID: pr.ProposalID,
		FromTeamID: pr.FromTeamID,
		ToTeamID:   pr.ToTeamID,
		Status:     string(pr.Status),
	}})
}

// ownedSlots resolves playerIDs against a team's squad, refusing locked or
// missing slots.
func (w *Worker) ownedSlots(ts *TeamState, playerIDs []int64) ([]*models.TeamPlayer, error) {
	slots := make([]*models.TeamPlayer, 0, len(playerIDs))
	for _, id := range playerIDs {
		_, slot := ts.slot(id)
		if slot == nil {
			return nil, fmt.Errorf("player %d not on team %d roster: %w", id, ts.Team.ID, ErrProposalConflict)
		}
		if slot.Locked || slot.Retained {
			return nil, fmt.Errorf("player %d is locked on team %d: %w", id, ts.Team.ID, ErrProposalConflict)
		}
		slots = append(slots, slot)
	}
	return slots, nil
}

func (w *Worker) handleTradePropose(req TradeRequest) tradeProposeReply {
	if w.auction.Status != models.AuctionStatusTradeWindow {
		return tradeProposeReply{err: ErrAuctionNotInTradeWindow}
	}
	if req.FromTeamID == req.ToTeamID {
		return tradeProposeReply{err: fmt.Errorf("cannot trade with yourself")}
	}
	if len(req.OfferedPlayerIDs) == 0 && len(req.RequestedPlayerIDs) == 0 {
		return tradeProposeReply{err: fmt.Errorf("empty trade proposal")}
	}
	// A purse adjustment rides on the swapped players' paid amounts, so it
	// needs a carrier on each side.
	if req.PurseAdjustment != 0 && (len(req.OfferedPlayerIDs) == 0 || len(req.RequestedPlayerIDs) == 0) {
		return tradeProposeReply{err: fmt.Errorf("purse adjustment requires players on both sides")}
	}

	from, err := w.team(req.FromTeamID)
	if err != nil {
		return tradeProposeReply{err: err}
	}
	to, err := w.team(req.ToTeamID)
	if err != nil {
		return tradeProposeReply{err: err}
	}
	if w.trades.executed[from.Team.ID] >= w.cfg.MaxTradesPerTeam || w.trades.executed[to.Team.ID] >= w.cfg.MaxTradesPerTeam {
		return tradeProposeReply{err: ErrTradeLimitReached}
	}
	if _, err := w.ownedSlots(from, req.OfferedPlayerIDs); err != nil {
		return tradeProposeReply{err: err}
	}
	if _, err := w.ownedSlots(to, req.RequestedPlayerIDs); err != nil {
		return tradeProposeReply{err: err}
	}

	pr := &models.TradeProposal{
		ProposalID:         uuid.NewString(),
		AuctionID:          w.auction.ID,
		FromTeamID:         req.FromTeamID,
		ToTeamID:           req.ToTeamID,
		OfferedPlayerIDs:   req.OfferedPlayerIDs,
		RequestedPlayerIDs: req.RequestedPlayerIDs,
		PurseAdjustment:    req.PurseAdjustment,
		Status:             models.TradeProposed,
		CreatedAt:          w.deps.Clock.Now(),
	}
	w.trades.proposals[pr.ProposalID] = pr
	w.saveTrade(pr)
	w.tradeEvent(EventTradeProposed, pr)

	slog.Info("Trade proposed",
		slog.Int64("auction_id", w.auction.ID),
		slog.String("proposal_id", pr.ProposalID),
		slog.Int64("from_team", pr.FromTeamID),
		slog.Int64("to_team", pr.ToTeamID))

	return tradeProposeReply{proposalID: pr.ProposalID}
}

func (w *Worker) handleTradeAction(in tradeActionIntent) error {
	pr, ok := w.trades.proposals[in.proposalID]
	if !ok {
		return ErrProposalNotFound
	}
	if pr.Status != models.TradeProposed {
		return ErrProposalNotPending
	}

	switch in.kind {
	case tradeAccept:
		if in.teamID != pr.ToTeamID {
			return fmt.Errorf("only the counterparty may accept: %w", ErrProposalNotFound)
		}
		return w.executeTrade(pr)
	case tradeReject:
		if in.teamID != pr.ToTeamID {
			return fmt.Errorf("only the counterparty may reject: %w", ErrProposalNotFound)
		}
		w.resolveTrade(pr, models.TradeRejected, EventTradeRejected)
		return nil
	case tradeWithdraw:
		if in.teamID != pr.FromTeamID {
			return fmt.Errorf("only the initiator may withdraw: %w", ErrProposalNotFound)
		}
		w.resolveTrade(pr, models.TradeWithdrawn, EventTradeWithdrawn)
		return nil
	default:
		return fmt.Errorf("unknown trade action %d", in.kind)
	}
}

func (w *Worker) resolveTrade(pr *models.TradeProposal, status models.TradeStatus, ev EventType) {
	pr.Status = status
	pr.ResolvedAt = w.deps.Clock.Now()
	w.saveTrade(pr)
	w.tradeEvent(ev, pr)
}

// executeTrade performs the atomic bilateral swap. All invariant checks
// run before any mutation; a failure aborts with no partial transfer.
// Executing a trade cancels every other pending proposal that references
// any traded player.
func (w *Worker) executeTrade(pr *models.TradeProposal) error {
	if w.auction.Status != models.AuctionStatusTradeWindow {
		return ErrAuctionNotInTradeWindow
	}
	from, err := w.team(pr.FromTeamID)
	if err != nil {
		return err
	}
	to, err := w.team(pr.ToTeamID)
	if err != nil {
		return err
	}
	if w.trades.executed[from.Team.ID] >= w.cfg.MaxTradesPerTeam || w.trades.executed[to.Team.ID] >= w.cfg.MaxTradesPerTeam {
		return ErrTradeLimitReached
	}

	// Rosters may have changed since the proposal was created.
	offered, err := w.ownedSlots(from, pr.OfferedPlayerIDs)
	if err != nil {
		return err
	}
	requested, err := w.ownedSlots(to, pr.RequestedPlayerIDs)
	if err != nil {
		return err
	}

	// The adjustment is folded into the first incoming slot on each side so
	// purseRemaining == purseValue − Σ paidAmount keeps holding.
	adj := pr.PurseAdjustment
	var offeredTotal, requestedTotal int64
	for _, s := range offered {
		offeredTotal += s.PaidAmount
	}
	for _, s := range requested {
		requestedTotal += s.PaidAmount
	}
	if len(requested) > 0 && requested[0].PaidAmount+adj < 0 {
		return fmt.Errorf("adjustment drives paid amount negative: %w", ErrInsufficientPurse)
	}
	if len(offered) > 0 && offered[0].PaidAmount-adj < 0 {
		return fmt.Errorf("adjustment drives paid amount negative: %w", ErrInsufficientPurse)
	}

	newFromRemaining := from.Team.PurseRemaining + offeredTotal - requestedTotal - adj
	newToRemaining := to.Team.PurseRemaining + requestedTotal - offeredTotal + adj
	if newFromRemaining < 0 || newToRemaining < 0 {
		return fmt.Errorf("post-trade purse negative: %w", ErrInsufficientPurse)
	}
	fromSize := from.SquadSize() - len(offered) + len(requested)
	toSize := to.SquadSize() - len(requested) + len(offered)
	if fromSize > w.cfg.MaxSquadSize || toSize > w.cfg.MaxSquadSize {
		return ErrSquadFull
	}

	// All checks passed; mutate.
	for _, s := range offered {
		if _, err := w.ledger.Release(from, s.PlayerID); err != nil {
			return err
		}
	}
	for _, s := range requested {
		if _, err := w.ledger.Release(to, s.PlayerID); err != nil {
			return err
		}
	}
	for i, s := range requested {
		paid := s.PaidAmount
		if i == 0 {
			paid += adj
		}
		if _, err := w.ledger.Commit(from, s.PlayerID, paid, models.AcquiredByTrade); err != nil {
			return err
		}
	}
	for i, s := range offered {
		paid := s.PaidAmount
		if i == 0 {
			paid -= adj
		}
		if _, err := w.ledger.Commit(to, s.PlayerID, paid, models.AcquiredByTrade); err != nil {
			return err
		}
	}

	pr.Status = models.TradeExecuted
	pr.ResolvedAt = w.deps.Clock.Now()
	w.trades.executed[from.Team.ID]++
	w.trades.executed[to.Team.ID]++

	// Conflict-cancellation: no queuing of competing proposals.
	traded := append(append([]int64{}, pr.OfferedPlayerIDs...), pr.RequestedPlayerIDs...)
	for _, other := range w.trades.pending() {
		if other.ProposalID == pr.ProposalID {
			continue
		}
		for _, id := range traded {
			if references(other, id) {
				w.resolveTrade(other, models.TradeCancelled, EventTradeCancelled)
				break
			}
		}
	}

	w.saveTeam(from)
	w.saveTeam(to)
	w.saveTrade(pr)
	w.tradeEvent(EventTradeAccepted, pr)
	w.tradeEvent(EventTradeExecuted, pr)

	slog.Info("Trade executed",
		slog.Int64("auction_id", w.auction.ID),
		slog.String("proposal_id", pr.ProposalID),
		slog.Int64("from_team", pr.FromTeamID),
		slog.Int64("to_team", pr.ToTeamID),
		slog.Int64("adjustment", adj))
	return nil
}

func (w *Worker) cancelPendingTrades(reason string) {
	for _, pr := range w.trades.pending() {
		w.resolveTrade(pr, models.TradeCancelled, EventTradeCancelled)
	}
	if n := len(w.trades.proposals); n > 0 {
		slog.Info("Pending trades cancelled",
			slog.Int64("auction_id", w.auction.ID),
			slog.String("reason", reason))
	}
}
