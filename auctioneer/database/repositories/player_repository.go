package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/crickora/auction-engine/auctioneer/database/models"
	"github.com/uptrace/bun"
)

type PlayerRepository interface {
	Create(ctx context.Context, player *models.Player) error
	CreateBatch(ctx context.Context, players []*models.Player) error
	GetByID(ctx context.Context, id int64) (*models.Player, error)
	GetByAuction(ctx context.Context, auctionID int64) ([]*models.Player, error)
	GetPending(ctx context.Context, auctionID int64) ([]*models.Player, error)
	Update(ctx context.Context, player *models.Player) error
	Upsert(ctx context.Context, player *models.Player) error
}

type playerRepository struct {
	db *bun.DB
}

func NewPlayerRepository(db *bun.DB) PlayerRepository {
	return &playerRepository{db: db}
}

func (r *playerRepository) Create(ctx context.Context, player *models.Player) error {
	player.CreatedAt = time.Now()
	player.UpdatedAt = time.Now()
	_, err := r.db.NewInsert().Model(player).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create player: %w", err)
	}
	return nil
}

// CreateBatch inserts players in chunks to keep statement size bounded
// during roster imports.
func (r *playerRepository) CreateBatch(ctx context.Context, players []*models.Player) error {
	if len(players) == 0 {
		return nil
	}
	const batchSize = 100
	now := time.Now()
	for i := range players {
		players[i].CreatedAt = now
		players[i].UpdatedAt = now
	}
	for i := 0; i < len(players); i += batchSize {
		end := i + batchSize
		if end > len(players) {
			end = len(players)
		}
		batch := players[i:end]
		_, err := r.db.NewInsert().Model(&batch).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to insert player batch [%d:%d]: %w", i, end, err)
		}
	}
	return nil
}

func (r *playerRepository) GetByID(ctx context.Context, id int64) (*models.Player, error) {
	player := new(models.Player)
	err := r.db.NewSelect().
		Model(player).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("player %d not found", id)
		}
		return nil, fmt.Errorf("failed to get player: %w", err)
	}
	return player, nil
}

func (r *playerRepository) GetByAuction(ctx context.Context, auctionID int64) ([]*models.Player, error) {
	var players []*models.Player
	err := r.db.NewSelect().
		Model(&players).
		Where("auction_id = ?", auctionID).
		Order("queue_pos ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get players for auction %d: %w", auctionID, err)
	}
	return players, nil
}

func (r *playerRepository) GetPending(ctx context.Context, auctionID int64) ([]*models.Player, error) {
	var players []*models.Player
	err := r.db.NewSelect().
		Model(&players).
		Where("auction_id = ?", auctionID).
		Where("status IN (?)", bun.In([]models.PlayerStatus{models.PlayerStatusPending, models.PlayerStatusInProgress})).
		Order("queue_pos ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending players: %w", err)
	}
	return players, nil
}

func (r *playerRepository) Update(ctx context.Context, player *models.Player) error {
	player.UpdatedAt = time.Now()
	_, err := r.db.NewUpdate().
		Model(player).
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update player %d: %w", player.ID, err)
	}
	return nil
}

func (r *playerRepository) Upsert(ctx context.Context, player *models.Player) error {
	player.UpdatedAt = time.Now()
	_, err := r.db.NewInsert().
		Model(player).
		On("CONFLICT (id) DO UPDATE").
		Set("status = EXCLUDED.status").
		Set("queue_pos = EXCLUDED.queue_pos").
		Set("sold_to_team_id = EXCLUDED.sold_to_team_id").
		Set("sold_amount = EXCLUDED.sold_amount").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to upsert player %d: %w", player.ID, err)
	}
	return nil
}
