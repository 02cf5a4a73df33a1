package engine

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/crickora/auction-engine/auctioneer/database/models"
)

// recheckInterval is how long the worker waits before re-attempting an
// auto-finalize that was blocked by degraded persistence.
const recheckInterval = 30 * time.Second

// --- bid processor --------------------------------------------------------

// handleBid is the single serialization point every bid attempt passes
// through. Validation order: phase, lot version, self-outbid, purse/squad.
// The charged amount is always the server-computed next minimum bid.
func (w *Worker) handleBid(in bidIntent) bidReply {
	if in.requestID != "" {
		if cached, ok := w.dedupe.Get(in.requestID); ok {
			return cached.(bidReply)
		}
	}

	reply := w.processBid(in.teamID, in.lotVersion)
	if in.requestID != "" {
		w.dedupe.Add(in.requestID, reply)
	}
	return reply
}

func (w *Worker) processBid(teamID int64, lotVersion int64) bidReply {
	if w.auction.Status != models.AuctionStatusLive || w.lot == nil || !w.lot.Phase.AcceptsBids() {
		return bidReply{err: ErrLotNotOpen}
	}
	if lotVersion != 0 && lotVersion != w.lot.Version {
		return bidReply{err: ErrStaleBid}
	}
	ts, err := w.team(teamID)
	if err != nil {
		return bidReply{err: err}
	}
	if w.lot.HasBid && w.lot.CurrentBidTeam == teamID {
		return bidReply{err: ErrAlreadyHighestBidder}
	}
	amount := NextMinimumBid(w.lot.CurrentBid, w.lot.HasBid, w.lot.BasePrice, w.cfg.Increments)
	if err := w.ledger.CanBid(ts, amount); err != nil {
		return bidReply{err: err}
	}

	prevPhase := w.lot.Phase
	now := w.deps.Clock.Now()
	if err := w.lot.acceptBid(teamID, amount, now); err != nil {
		return bidReply{err: err}
	}
	w.armLotTimer(w.cfg.BidTimer)

	w.undo.push("bid", func() error {
		if _, err := w.lot.revertLastBid(); err != nil {
			return err
		}
		w.lot.Phase = prevPhase
		w.armPhaseTimer()
		return nil
	})

	w.appendBid(&models.AuctionBid{
		AuctionID:  w.auction.ID,
		PlayerID:   w.lot.Player.ID,
		TeamID:     teamID,
		Amount:     amount,
		LotVersion: w.lot.Version,
		Timestamp:  now,
	})

	// The accepted bid and the resulting state are published back to back
	// from the worker goroutine, so no reader can observe the new bid
	// without its event.
	w.publish(Event{
		Type:       EventBidAccepted,
		LotVersion: w.lot.Version,
		Scope:      ScopePublic,
		Payload:    BidAcceptedPayload{TeamID: teamID, Amount: amount},
	})
	w.publish(Event{
		Type:       EventLotPhaseChanged,
		LotVersion: w.lot.Version,
		Scope:      ScopePublic,
		Payload:    PhaseChangedPayload{Phase: w.lot.Phase, TimerExpiresAt: w.lot.Deadline},
	})

	slog.Info("Bid accepted",
		slog.Int64("auction_id", w.auction.ID),
		slog.Int64("team_id", teamID),
		slog.Int64("amount", amount),
		slog.Int64("lot_version", w.lot.Version))

	return bidReply{receipt: BidReceipt{Accepted: true, Amount: amount, LotVersion: w.lot.Version}}
}

// armPhaseTimer arms the timer matching the lot's current phase. Used
// after undo restores a prior phase.
func (w *Worker) armPhaseTimer() {
	switch w.lot.Phase {
	case PhaseOpen:
		w.armLotTimer(w.cfg.BidTimer)
	case PhaseGoingOnce, PhaseGoingTwice:
		w.armLotTimer(w.cfg.GoingTimer)
	default:
		w.disarmLotTimer()
	}
}

// --- timer-driven phase transitions --------------------------------------

func (w *Worker) handleTimerFired(version int64) {
	if w.lot == nil || w.lot.Phase.Terminal() || w.auction.Status != models.AuctionStatusLive {
		return
	}
	// Tombstoned: a bid or admin action moved the lot on since this timer
	// was armed.
	if version != w.lot.Version {
		return
	}

	switch w.lot.Phase {
	case PhaseOpen:
		if !w.lot.HasBid {
			w.settleUnsold()
			return
		}
		w.countdown(PhaseGoingOnce)
	case PhaseGoingOnce:
		w.countdown(PhaseGoingTwice)
	case PhaseGoingTwice:
		if w.lot.CurrentBidTeam != 0 {
			if err := w.settleSold(w.lot.CurrentBidTeam, w.lot.CurrentBid); err != nil {
				slog.Error("Failed to settle sale at hammer",
					slog.Int64("auction_id", w.auction.ID),
					slog.Any("error", err))
			}
			return
		}
		w.settleUnsold()
	}
}

func (w *Worker) countdown(to Phase) {
	if err := w.lot.transition(to); err != nil {
		slog.Error("Countdown transition refused",
			slog.Int64("auction_id", w.auction.ID),
			slog.Any("error", err))
		return
	}
	w.armLotTimer(w.cfg.GoingTimer)
	w.publish(Event{
		Type:       EventLotPhaseChanged,
		LotVersion: w.lot.Version,
		Scope:      ScopePublic,
		Payload:    PhaseChangedPayload{Phase: w.lot.Phase, TimerExpiresAt: w.lot.Deadline},
	})
}

// --- settlement -----------------------------------------------------------

// settleSold commits the sale to the winning team's ledger and squad. Commit
// refuses an amount the purse cannot cover, whatever path led here.
func (w *Worker) settleSold(teamID int64, amount int64) error {
	ts, err := w.team(teamID)
	if err != nil {
		return err
	}
	if _, err := w.ledger.Commit(ts, w.lot.Player.ID, amount, models.AcquiredByAuction); err != nil {
		return err
	}
	if err := w.lot.transition(PhaseSold); err != nil {
		// Roll the commit back; the lot state is unchanged.
		w.ledger.Release(ts, w.lot.Player.ID)
		return err
	}
	w.disarmLotTimer()

	player := w.lot.Player
	player.Status = models.PlayerStatusSold
	player.SoldToTeamID = teamID
	player.SoldAmount = amount

	prevLot := w.lot
	w.undo.push("sale", func() error {
		if _, err := w.ledger.Release(ts, player.ID); err != nil {
			return err
		}
		player.Status = models.PlayerStatusInProgress
		player.SoldToTeamID = 0
		player.SoldAmount = 0
		prevLot.Phase = PhaseOpen
		prevLot.Version++
		w.lot = prevLot
		w.armPhaseTimer()
		w.saveTeam(ts)
		w.savePlayer(player)
		return nil
	})

	w.saveTeam(ts)
	w.savePlayer(player)
	w.saveAuction()

	w.publish(Event{
		Type:       EventLotSold,
		LotVersion: w.lot.Version,
		Scope:      ScopePublic,
		Payload:    LotSoldPayload{PlayerID: player.ID, TeamID: teamID, Amount: amount},
	})

	slog.Info("Lot sold",
		slog.Int64("auction_id", w.auction.ID),
		slog.Int64("player_id", player.ID),
		slog.Int64("team_id", teamID),
		slog.Int64("amount", amount))
	return nil
}

func (w *Worker) settleUnsold() {
	prevPhase := w.lot.Phase
	if err := w.lot.transition(PhaseUnsold); err != nil {
		slog.Error("Unsold transition refused",
			slog.Int64("auction_id", w.auction.ID),
			slog.Any("error", err))
		return
	}
	w.disarmLotTimer()

	player := w.lot.Player
	player.Status = models.PlayerStatusUnsold
	requeued := false
	if w.cfg.UnsoldReturnsToPool {
		player.Status = models.PlayerStatusPending
		player.QueuePos = w.maxQueuePos() + 1
		w.pool = append(w.pool, player)
		if w.nextRoundAt == 0 {
			w.nextRoundAt = player.QueuePos
		}
		requeued = true
	}

	prevLot := w.lot
	w.undo.push("unsold", func() error {
		if requeued {
			w.pool = w.pool[:len(w.pool)-1]
		}
		player.Status = models.PlayerStatusInProgress
		prevLot.Phase = prevPhase
		prevLot.Version++
		w.lot = prevLot
		w.armPhaseTimer()
		w.savePlayer(player)
		return nil
	})

	w.savePlayer(player)
	w.saveAuction()

	w.publish(Event{
		Type:       EventLotUnsold,
		LotVersion: w.lot.Version,
		Scope:      ScopePublic,
		Payload:    LotUnsoldPayload{PlayerID: player.ID},
	})

	slog.Info("Lot unsold",
		slog.Int64("auction_id", w.auction.ID),
		slog.Int64("player_id", player.ID),
		slog.Bool("requeued", requeued))
}

func (w *Worker) maxQueuePos() int {
	max := 0
	for _, p := range w.pool {
		if p.QueuePos > max {
			max = p.QueuePos
		}
	}
	if w.lot != nil && w.lot.Player.QueuePos > max {
		max = w.lot.Player.QueuePos
	}
	return max
}

// --- queue advancement ----------------------------------------------------

// handleAdvance draws the next pending player and reveals it without
// opening bidding. When the pool is exhausted the auction completes.
func (w *Worker) handleAdvance() advanceReply {
	if w.auction.Status != models.AuctionStatusLive {
		return advanceReply{err: ErrAuctionNotLive}
	}
	if w.lot != nil && !w.lot.Phase.Terminal() {
		return advanceReply{err: ErrLotNotTerminal}
	}
	if len(w.pool) == 0 {
		w.completeAuction()
		return advanceReply{err: ErrPoolExhausted}
	}

	// Reverts recorded against the previous lot assume it is still
	// current. Drawing the next player invalidates them.
	w.undo.clear()

	player := w.pool[0]
	w.pool = w.pool[1:]
	if w.nextRoundAt != 0 && player.QueuePos >= w.nextRoundAt {
		w.auction.CurrentRound++
		w.nextRoundAt = 0
	}

	basePrice := player.BasePrice
	if basePrice <= 0 {
		basePrice = w.cfg.BasePriceDefault
	}
	w.lot = newLot(player, basePrice)
	if err := w.lot.transition(PhaseRevealed); err != nil {
		return advanceReply{err: err}
	}
	player.Status = models.PlayerStatusInProgress
	w.savePlayer(player)
	w.saveAuction()

	payload := LotRevealedPayload{
		PlayerID:   player.ID,
		PlayerName: player.Name,
		Role:       player.Role,
		Country:    player.Country,
		BasePrice:  basePrice,
	}
	if w.deps.Assets != nil && player.ImageKey != "" {
		payload.ImageURL = w.deps.Assets.ImageURL(player.ImageKey)
	}
	w.publish(Event{
		Type:       EventLotRevealed,
		LotVersion: w.lot.Version,
		Scope:      ScopePublic,
		Payload:    payload,
	})

	slog.Info("Lot revealed",
		slog.Int64("auction_id", w.auction.ID),
		slog.Int64("player_id", player.ID),
		slog.Int64("base_price", basePrice),
		slog.Int("round", w.auction.CurrentRound))

	return advanceReply{playerID: player.ID}
}

func (w *Worker) completeAuction() {
	w.auction.Status = models.AuctionStatusCompleted
	w.lot = nil
	w.undo.clear()
	w.disarmLotTimer()
	w.saveAuction()
	w.publish(Event{
		Type:    EventAuctionStatusChanged,
		Scope:   ScopePublic,
		Payload: StatusChangedPayload{Status: string(w.auction.Status)},
	})
	slog.Info("Auction completed, pool exhausted",
		slog.Int64("auction_id", w.auction.ID))
}

// --- admin lifecycle ------------------------------------------------------

func (w *Worker) handleLifecycle(in lifecycleIntent) error {
	switch in.kind {
	case opStart:
		return w.startAuction()
	case opEnd:
		return w.endAuction()
	case opStartBidding:
		return w.startBidding()
	case opPause:
		return w.pauseAuction()
	case opResume:
		return w.resumeAuction()
	case opForceSell:
		return w.forceSell(in.teamID)
	case opForceUnsold:
		return w.forceUnsold()
	case opUndo:
		return w.applyUndo()
	case opOpenTradeWindow:
		return w.openTradeWindow()
	case opFinalize:
		return w.finalize(false)
	case opReorderPool:
		return w.reorderPool(in.order)
	default:
		return fmt.Errorf("unknown lifecycle op %d", in.kind)
	}
}

func (w *Worker) statusChange(from []models.AuctionStatus, to models.AuctionStatus) error {
	for _, s := range from {
		if w.auction.Status == s {
			w.auction.Status = to
			return nil
		}
	}
	return fmt.Errorf("auction status %s -> %s: %w", w.auction.Status, to, ErrInvalidPhaseTransition)
}

func (w *Worker) publishStatus() {
	p := StatusChangedPayload{Status: string(w.auction.Status)}
	if !w.auction.TradeWindowEndsAt.IsZero() {
		p.TradeWindowEndsAt = w.auction.TradeWindowEndsAt
	}
	w.publish(Event{Type: EventAuctionStatusChanged, Scope: ScopePublic, Payload: p})
}

func (w *Worker) startAuction() error {
	if err := w.statusChange([]models.AuctionStatus{models.AuctionStatusDraft}, models.AuctionStatusLive); err != nil {
		return err
	}
	w.auction.CurrentRound = 1
	w.saveAuction()
	w.publishStatus()
	return nil
}

func (w *Worker) endAuction() error {
	if w.lot != nil && !w.lot.Phase.Terminal() {
		return ErrLotNotTerminal
	}
	if err := w.statusChange([]models.AuctionStatus{models.AuctionStatusLive, models.AuctionStatusPaused}, models.AuctionStatusCompleted); err != nil {
		return err
	}
	w.disarmLotTimer()
	w.lot = nil
	w.undo.clear()
	w.saveAuction()
	w.publishStatus()
	return nil
}

func (w *Worker) startBidding() error {
	if w.auction.Status != models.AuctionStatusLive {
		return ErrAuctionNotLive
	}
	if w.lot == nil {
		return ErrLotNotOpen
	}
	if err := w.lot.transition(PhaseOpen); err != nil {
		return err
	}
	w.armLotTimer(w.cfg.BidTimer)
	w.publish(Event{
		Type:       EventLotPhaseChanged,
		LotVersion: w.lot.Version,
		Scope:      ScopePublic,
		Payload:    PhaseChangedPayload{Phase: w.lot.Phase, TimerExpiresAt: w.lot.Deadline},
	})
	return nil
}

// pauseAuction freezes the active timer without touching bid state. The
// version bump tombstones a fire already in flight.
func (w *Worker) pauseAuction() error {
	if err := w.statusChange([]models.AuctionStatus{models.AuctionStatusLive}, models.AuctionStatusPaused); err != nil {
		return err
	}
	if w.lot != nil && w.lot.Phase.AcceptsBids() && !w.lot.Deadline.IsZero() {
		remaining := w.lot.Deadline.Sub(w.deps.Clock.Now())
		if remaining < 0 {
			remaining = 0
		}
		w.lot.frozenRemaining = remaining
		w.lot.Version++
		w.disarmLotTimer()
	}
	w.saveAuction()
	w.publishStatus()
	return nil
}

func (w *Worker) resumeAuction() error {
	if err := w.statusChange([]models.AuctionStatus{models.AuctionStatusPaused}, models.AuctionStatusLive); err != nil {
		return err
	}
	if w.lot != nil && w.lot.Phase.AcceptsBids() {
		w.armLotTimer(w.lot.frozenRemaining)
		w.lot.frozenRemaining = 0
	}
	w.saveAuction()
	w.publishStatus()
	return nil
}

// forceSell is the administrative hammer for irregular situations. It
// still passes purse validation for the named team.
func (w *Worker) forceSell(teamID int64) error {
	if w.auction.Status != models.AuctionStatusLive && w.auction.Status != models.AuctionStatusPaused {
		return ErrAuctionNotLive
	}
	if w.lot == nil || w.lot.Phase.Terminal() || w.lot.Phase == PhaseWaiting {
		return ErrLotNotOpen
	}
	ts, err := w.team(teamID)
	if err != nil {
		return err
	}
	amount := w.lot.CurrentBid
	if !w.lot.HasBid || w.lot.CurrentBidTeam != teamID {
		amount = NextMinimumBid(w.lot.CurrentBid, w.lot.HasBid, w.lot.BasePrice, w.cfg.Increments)
	}
	if err := w.ledger.CanBid(ts, amount); err != nil {
		return err
	}
	return w.settleSold(teamID, amount)
}

func (w *Worker) forceUnsold() error {
	if w.auction.Status != models.AuctionStatusLive && w.auction.Status != models.AuctionStatusPaused {
		return ErrAuctionNotLive
	}
	if w.lot == nil || w.lot.Phase.Terminal() || w.lot.Phase == PhaseWaiting {
		return ErrLotNotOpen
	}
	w.settleUnsold()
	return nil
}

func (w *Worker) applyUndo() error {
	if w.auction.Status == models.AuctionStatusFinalized {
		return fmt.Errorf("auction finalized: %w", ErrNothingToUndo)
	}
	entry, ok := w.undo.pop()
	if !ok {
		return ErrNothingToUndo
	}
	if err := entry.revert(); err != nil {
		return fmt.Errorf("undo %s: %w", entry.label, err)
	}
	w.saveAuction()
	w.publish(Event{
		Type:       EventAuctionSnapshot,
		LotVersion: w.lotVersion(),
		Scope:      ScopePublic,
		Payload:    w.snapshot(),
	})
	slog.Info("Undo applied",
		slog.Int64("auction_id", w.auction.ID),
		slog.String("action", entry.label),
		slog.Int("stack_depth", w.undo.depth()))
	return nil
}

func (w *Worker) lotVersion() int64 {
	if w.lot == nil {
		return 0
	}
	return w.lot.Version
}

func (w *Worker) reorderPool(order []int64) error {
	if w.auction.Status != models.AuctionStatusDraft && w.auction.Status != models.AuctionStatusPaused {
		return fmt.Errorf("reorder in status %s: %w", w.auction.Status, ErrInvalidPhaseTransition)
	}
	byID := make(map[int64]*models.Player, len(w.pool))
	for _, p := range w.pool {
		byID[p.ID] = p
	}
	reordered := make([]*models.Player, 0, len(w.pool))
	for _, id := range order {
		if p, ok := byID[id]; ok {
			reordered = append(reordered, p)
			delete(byID, id)
		}
	}
	for _, p := range w.pool {
		if _, left := byID[p.ID]; left {
			reordered = append(reordered, p)
		}
	}
	w.pool = reordered
	for i, p := range w.pool {
		p.QueuePos = i + 1
		w.savePlayer(p)
	}
	w.publish(Event{Type: EventAuctionSnapshot, Scope: ScopeAdmin, Payload: w.snapshot()})
	return nil
}

// openTradeWindow starts the post-auction bilateral trade period with a
// hard deadline.
func (w *Worker) openTradeWindow() error {
	if err := w.statusChange([]models.AuctionStatus{models.AuctionStatusCompleted}, models.AuctionStatusTradeWindow); err != nil {
		return err
	}
	w.auction.TradeWindowEndsAt = w.deps.Clock.Now().Add(w.cfg.TradeWindow)
	w.armWindowTimer(w.cfg.TradeWindow)
	w.saveAuction()
	w.publishStatus()
	slog.Info("Trade window opened",
		slog.Int64("auction_id", w.auction.ID),
		slog.Time("ends_at", w.auction.TradeWindowEndsAt))
	return nil
}

func (w *Worker) handleWindowExpired() {
	if w.auction.Status != models.AuctionStatusTradeWindow {
		return
	}
	if err := w.finalize(true); err != nil {
		// Degraded persistence blocks finalization; check again shortly.
		slog.Warn("Auto-finalize deferred",
			slog.Int64("auction_id", w.auction.ID),
			slog.Any("error", err))
		w.armWindowTimer(recheckInterval)
	}
}

// finalize closes the auction for good: pending proposals are
// force-cancelled, undo is disabled, state becomes immutable.
func (w *Worker) finalize(auto bool) error {
	if w.degraded {
		return ErrAuctionDegraded
	}
	if err := w.statusChange([]models.AuctionStatus{models.AuctionStatusTradeWindow}, models.AuctionStatusFinalized); err != nil {
		return err
	}
	if w.stopWindowTimer != nil {
		w.stopWindowTimer()
		w.stopWindowTimer = nil
	}
	w.cancelPendingTrades("auction finalized")
	w.undo.clear()
	w.saveAuction()
	w.publishStatus()
	slog.Info("Auction finalized",
		slog.Int64("auction_id", w.auction.ID),
		slog.Bool("auto", auto))
	return nil
}
