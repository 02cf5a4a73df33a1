package engine

import (
	"sort"
	"time"

	"github.com/crickora/auction-engine/auctioneer/database/models"
)

// LotView is the client-facing rendering of the current lot.
type LotView struct {
	PlayerID       int64     `json:"playerId"`
	PlayerName     string    `json:"playerName"`
	BasePrice      int64     `json:"basePrice"`
	Phase          Phase     `json:"phase"`
	CurrentBid     int64     `json:"currentBid,omitempty"`
	CurrentBidTeam int64     `json:"currentBidTeam,omitempty"`
	BidCount       int       `json:"bidCount"`
	Version        int64     `json:"version"`
	TimerExpiresAt time.Time `json:"timerExpiresAt,omitempty"`
}

type TeamView struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	PurseValue     int64  `json:"purseValue"`
	PurseRemaining int64  `json:"purseRemaining"`
	MaxBid         int64  `json:"maxBid"`
	SquadSize      int    `json:"squadSize"`
}

// Snapshot is the full re-renderable state sent to newly connected
// clients and after an undo.
type Snapshot struct {
	AuctionID         int64          `json:"auctionId"`
	Code              string         `json:"code"`
	Status            string         `json:"status"`
	Round             int            `json:"round"`
	Degraded          bool           `json:"degraded,omitempty"`
	Lot               *LotView       `json:"lot,omitempty"`
	Teams             []TeamView     `json:"teams"`
	PendingPlayers    int            `json:"pendingPlayers"`
	TradeWindowEndsAt time.Time      `json:"tradeWindowEndsAt,omitempty"`
	PendingTrades     []TradePayload `json:"pendingTrades,omitempty"`
}

// pendingPool copies the queue so callers outside the worker goroutine can
// read it freely.
func (w *Worker) pendingPool() []*models.Player {
	out := make([]*models.Player, len(w.pool))
	for i, p := range w.pool {
		cp := *p
		out[i] = &cp
	}
	return out
}

func (w *Worker) snapshot() Snapshot {
	s := Snapshot{
		AuctionID:      w.auction.ID,
		Code:           w.auction.Code,
		Status:         string(w.auction.Status),
		Round:          w.auction.CurrentRound,
		Degraded:       w.degraded,
		PendingPlayers: len(w.pool),
	}
	if !w.auction.TradeWindowEndsAt.IsZero() {
		s.TradeWindowEndsAt = w.auction.TradeWindowEndsAt
	}
	if w.lot != nil {
		s.Lot = &LotView{
			PlayerID:       w.lot.Player.ID,
			PlayerName:     w.lot.Player.Name,
			BasePrice:      w.lot.BasePrice,
			Phase:          w.lot.Phase,
			CurrentBid:     w.lot.CurrentBid,
			CurrentBidTeam: w.lot.CurrentBidTeam,
			BidCount:       len(w.lot.Bids),
			Version:        w.lot.Version,
			TimerExpiresAt: w.lot.Deadline,
		}
	}
	for _, ts := range w.teams {
		s.Teams = append(s.Teams, TeamView{
			ID:             ts.Team.ID,
			Name:           ts.Team.Name,
			PurseValue:     ts.Team.PurseValue,
			PurseRemaining: ts.Team.PurseRemaining,
			MaxBid:         w.ledger.MaxLegalBid(ts),
			SquadSize:      ts.SquadSize(),
		})
	}
	sort.Slice(s.Teams, func(i, j int) bool { return s.Teams[i].ID < s.Teams[j].ID })
	for _, pr := range w.trades.pending() {
		s.PendingTrades = append(s.PendingTrades, TradePayload{
			ProposalID:         pr.ProposalID,
			FromTeamID:         pr.FromTeamID,
			ToTeamID:           pr.ToTeamID,
			OfferedPlayerIDs:   pr.OfferedPlayerIDs,
			RequestedPlayerIDs: pr.RequestedPlayerIDs,
			PurseAdjustment:    pr.PurseAdjustment,
			Status:             string(pr.Status),
		})
	}
	sort.Slice(s.PendingTrades, func(i, j int) bool { return s.PendingTrades[i].ProposalID < s.PendingTrades[j].ProposalID })
	return s
}
