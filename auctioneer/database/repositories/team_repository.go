package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/crickora/auction-engine/auctioneer/database/models"
	"github.com/uptrace/bun"
)

type TeamRepository interface {
	Create(ctx context.Context, team *models.Team) error
	GetByID(ctx context.Context, id int64) (*models.Team, error)
	GetByAuction(ctx context.Context, auctionID int64) ([]*models.Team, error)
	Update(ctx context.Context, team *models.Team) error
	GetSquad(ctx context.Context, teamID int64) ([]*models.TeamPlayer, error)
	ReplaceSquad(ctx context.Context, team *models.Team, squad []*models.TeamPlayer) error
}

type teamRepository struct {
	db *bun.DB
}

func NewTeamRepository(db *bun.DB) TeamRepository {
	return &teamRepository{db: db}
}

func (r *teamRepository) Create(ctx context.Context, team *models.Team) error {
	team.CreatedAt = time.Now()
	team.UpdatedAt = time.Now()
	_, err := r.db.NewInsert().Model(team).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create team: %w", err)
	}
	return nil
}

func (r *teamRepository) GetByID(ctx context.Context, id int64) (*models.Team, error) {
	team := new(models.Team)
	err := r.db.NewSelect().
		Model(team).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("team %d not found", id)
		}
		return nil, fmt.Errorf("failed to get team: %w", err)
	}
	return team, nil
}

func (r *teamRepository) GetByAuction(ctx context.Context, auctionID int64) ([]*models.Team, error) {
	var teams []*models.Team
	err := r.db.NewSelect().
		Model(&teams).
		Where("auction_id = ?", auctionID).
		Where("active = TRUE").
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get teams for auction %d: %w", auctionID, err)
	}
	return teams, nil
}

func (r *teamRepository) Update(ctx context.Context, team *models.Team) error {
	team.UpdatedAt = time.Now()
	_, err := r.db.NewUpdate().
		Model(team).
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update team %d: %w", team.ID, err)
	}
	return nil
}

func (r *teamRepository) GetSquad(ctx context.Context, teamID int64) ([]*models.TeamPlayer, error) {
	var squad []*models.TeamPlayer
	err := r.db.NewSelect().
		Model(&squad).
		Where("team_id = ?", teamID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get squad for team %d: %w", teamID, err)
	}
	return squad, nil
}

// ReplaceSquad writes a team and its full roster in one transaction.
// The engine owns squad composition, so the stored rows are replaced
// wholesale rather than diffed.
func (r *teamRepository) ReplaceSquad(ctx context.Context, team *models.Team, squad []*models.TeamPlayer) error {
	return r.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		team.UpdatedAt = time.Now()
		if _, err := tx.NewUpdate().Model(team).WherePK().Exec(ctx); err != nil {
			return fmt.Errorf("failed to update team %d: %w", team.ID, err)
		}
		if _, err := tx.NewDelete().
			Model((*models.TeamPlayer)(nil)).
			Where("team_id = ?", team.ID).
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to clear squad for team %d: %w", team.ID, err)
		}
		if len(squad) == 0 {
			return nil
		}
		if _, err := tx.NewInsert().Model(&squad).Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert squad for team %d: %w", team.ID, err)
		}
		return nil
	})
}
