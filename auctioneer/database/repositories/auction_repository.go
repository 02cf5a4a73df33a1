package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/crickora/auction-engine/auctioneer/database/models"
	"github.com/uptrace/bun"
)

type AuctionRepository interface {
	DB() *bun.DB
	Create(ctx context.Context, auction *models.Auction) error
	GetByID(ctx context.Context, id int64) (*models.Auction, error)
	GetByCode(ctx context.Context, code string) (*models.Auction, error)
	GetOpen(ctx context.Context) ([]*models.Auction, error)
	Update(ctx context.Context, auction *models.Auction) error
	AppendBid(ctx context.Context, bid *models.AuctionBid) error
	GetBids(ctx context.Context, auctionID int64, playerID int64) ([]*models.AuctionBid, error)
}

type auctionRepository struct {
	db *bun.DB
}

func NewAuctionRepository(db *bun.DB) AuctionRepository {
	return &auctionRepository{db: db}
}

func (r *auctionRepository) DB() *bun.DB {
	return r.db
}

func (r *auctionRepository) Create(ctx context.Context, auction *models.Auction) error {
	auction.CreatedAt = time.Now()
	auction.UpdatedAt = time.Now()
	if auction.Status == "" {
		auction.Status = models.AuctionStatusDraft
	}
	_, err := r.db.NewInsert().Model(auction).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create auction: %w", err)
	}
	return nil
}

func (r *auctionRepository) GetByID(ctx context.Context, id int64) (*models.Auction, error) {
	auction := new(models.Auction)
	err := r.db.NewSelect().
		Model(auction).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("auction %d not found", id)
		}
		return nil, fmt.Errorf("failed to get auction: %w", err)
	}
	return auction, nil
}

func (r *auctionRepository) GetByCode(ctx context.Context, code string) (*models.Auction, error) {
	auction := new(models.Auction)
	err := r.db.NewSelect().
		Model(auction).
		Where("code = ?", code).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("auction %s not found", code)
		}
		return nil, fmt.Errorf("failed to get auction: %w", err)
	}
	return auction, nil
}

// GetOpen returns every auction that still needs a running worker.
func (r *auctionRepository) GetOpen(ctx context.Context) ([]*models.Auction, error) {
	var auctions []*models.Auction
	err := r.db.NewSelect().
		Model(&auctions).
		Where("status NOT IN (?)", bun.In([]models.AuctionStatus{models.AuctionStatusFinalized})).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get open auctions: %w", err)
	}
	return auctions, nil
}

func (r *auctionRepository) Update(ctx context.Context, auction *models.Auction) error {
	auction.UpdatedAt = time.Now()
	_, err := r.db.NewUpdate().
		Model(auction).
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update auction %d: %w", auction.ID, err)
	}
	return nil
}

func (r *auctionRepository) AppendBid(ctx context.Context, bid *models.AuctionBid) error {
	bid.CreatedAt = time.Now()
	_, err := r.db.NewInsert().Model(bid).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to append bid: %w", err)
	}
	return nil
}

func (r *auctionRepository) GetBids(ctx context.Context, auctionID int64, playerID int64) ([]*models.AuctionBid, error) {
	var bids []*models.AuctionBid
	q := r.db.NewSelect().
		Model(&bids).
		Where("auction_id = ?", auctionID).
		Order("timestamp ASC")
	if playerID != 0 {
		q = q.Where("player_id = ?", playerID)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to get bids: %w", err)
	}
	return bids, nil
}
