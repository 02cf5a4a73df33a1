package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/crickora/auction-engine/auctioneer/database/models"
	"github.com/uptrace/bun"
)

type TradeRepository interface {
	Upsert(ctx context.Context, trade *models.TradeProposal) error
	GetByProposalID(ctx context.Context, proposalID string) (*models.TradeProposal, error)
	GetPending(ctx context.Context, auctionID int64) ([]*models.TradeProposal, error)
	GetByAuction(ctx context.Context, auctionID int64) ([]*models.TradeProposal, error)
}

type tradeRepository struct {
	db *bun.DB
}

func NewTradeRepository(db *bun.DB) TradeRepository {
	return &tradeRepository{db: db}
}

func (r *tradeRepository) Upsert(ctx context.Context, trade *models.TradeProposal) error {
	if trade.CreatedAt.IsZero() {
		trade.CreatedAt = time.Now()
	}
	_, err := r.db.NewInsert().
		Model(trade).
		On("CONFLICT (proposal_id) DO UPDATE").
		Set("status = EXCLUDED.status").
		Set("resolved_at = EXCLUDED.resolved_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to upsert trade %s: %w", trade.ProposalID, err)
	}
	return nil
}

func (r *tradeRepository) GetByProposalID(ctx context.Context, proposalID string) (*models.TradeProposal, error) {
	trade := new(models.TradeProposal)
	err := r.db.NewSelect().
		Model(trade).
		Where("proposal_id = ?", proposalID).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("trade %s not found", proposalID)
		}
		return nil, fmt.Errorf("failed to get trade: %w", err)
	}
	return trade, nil
}

func (r *tradeRepository) GetPending(ctx context.Context, auctionID int64) ([]*models.TradeProposal, error) {
	var trades []*models.TradeProposal
	err := r.db.NewSelect().
		Model(&trades).
		Where("auction_id = ?", auctionID).
		Where("status = ?", models.TradeProposed).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending trades: %w", err)
	}
	return trades, nil
}

func (r *tradeRepository) GetByAuction(ctx context.Context, auctionID int64) ([]*models.TradeProposal, error) {
	var trades []*models.TradeProposal
	err := r.db.NewSelect().
		Model(&trades).
		Where("auction_id = ?", auctionID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get trades: %w", err)
	}
	return trades, nil
}
