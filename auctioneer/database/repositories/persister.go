package repositories

import (
	"context"

	"github.com/crickora/auction-engine/auctioneer/database/models"
	"github.com/uptrace/bun"
)

// Store bundles the repositories behind the engine's Persister contract so a
// worker can be handed a single storage collaborator.
type Store struct {
	Auctions AuctionRepository
	Players  PlayerRepository
	Teams    TeamRepository
	Trades   TradeRepository
}

func NewStore(db *bun.DB) *Store {
	return &Store{
		Auctions: NewAuctionRepository(db),
		Players:  NewPlayerRepository(db),
		Teams:    NewTeamRepository(db),
		Trades:   NewTradeRepository(db),
	}
}

func (s *Store) PersistAuction(ctx context.Context, a *models.Auction) error {
	return s.Auctions.Update(ctx, a)
}

func (s *Store) PersistPlayer(ctx context.Context, p *models.Player) error {
	return s.Players.Upsert(ctx, p)
}

func (s *Store) PersistTeam(ctx context.Context, t *models.Team, squad []*models.TeamPlayer) error {
	return s.Teams.ReplaceSquad(ctx, t, squad)
}

func (s *Store) PersistTrade(ctx context.Context, tr *models.TradeProposal) error {
	return s.Trades.Upsert(ctx, tr)
}

func (s *Store) AppendBid(ctx context.Context, b *models.AuctionBid) error {
	return s.Auctions.AppendBid(ctx, b)
}
