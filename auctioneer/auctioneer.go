package auctioneer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/crickora/auction-engine/auctioneer/database"
	"github.com/crickora/auction-engine/auctioneer/database/models"
	"github.com/crickora/auction-engine/auctioneer/database/repositories"
	"github.com/crickora/auction-engine/auctioneer/engine"
	"github.com/crickora/auction-engine/auctioneer/gateway/ws"
	"github.com/crickora/auction-engine/auctioneer/services"
)

func New(cfg Config, version string, commit string) *App {
	return &App{
		Cfg:     cfg,
		Version: version,
		Commit:  commit,
	}
}

// App wires the auction engine to storage, auth and the websocket gateway.
type App struct {
	Cfg     Config
	Version string
	Commit  string

	DB        *database.DB
	Store     *repositories.Store
	Engine    *engine.Hub
	Gateway   *ws.Hub
	WSServer  *ws.Server
	Auth      *services.AuthService
	Search    *services.SearchService
	Spaces    *services.SpacesService
}

// Setup connects storage and builds the service graph. The websocket hub
// is registered as the engine's publisher before any worker starts.
func (a *App) Setup(ctx context.Context) error {
	db, err := database.New(ctx, a.Cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	a.DB = db

	if err := db.InitializeSchema(ctx); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	a.Store = repositories.NewStore(db.BunDB())
	a.Auth = services.NewAuthService(a.Cfg.Auth.Secret, time.Duration(a.Cfg.Auth.TokenTTL)*time.Hour)
	a.Search = services.NewSearchService()

	if a.Cfg.Spaces.Key != "" {
		spaces, err := services.NewSpacesService(
			a.Cfg.Spaces.Key,
			a.Cfg.Spaces.Secret,
			a.Cfg.Spaces.Region,
			a.Cfg.Spaces.Bucket,
			a.Cfg.Spaces.ImageRoot,
		)
		if err != nil {
			return fmt.Errorf("failed to set up Spaces: %w", err)
		}
		a.Spaces = spaces
	}

	a.Gateway = ws.NewHub(a.Search)
	a.Engine = engine.NewHub(a.workerDeps())
	a.Gateway.SetEngine(a.Engine)
	a.WSServer = ws.NewServer(a.Gateway, a.Auth)
	return nil
}

// Recover reloads every non-finalized auction into a running worker. A lot
// that was mid-bidding when the process died goes back to the front of the
// queue; its bid history is already on record.
func (a *App) Recover(ctx context.Context) error {
	auctions, err := a.Store.Auctions.GetOpen(ctx)
	if err != nil {
		return err
	}

	for _, auction := range auctions {
		seed, err := a.loadSeed(ctx, auction)
		if err != nil {
			slog.Error("Failed to load auction state, skipping",
				slog.String("type", "SYS"),
				slog.Int64("auction_id", auction.ID),
				slog.Any("error", err))
			continue
		}
		if _, err := a.Engine.Open(*seed); err != nil {
			slog.Error("Failed to start auction worker",
				slog.String("type", "SYS"),
				slog.Int64("auction_id", auction.ID),
				slog.Any("error", err))
			continue
		}
		slog.Info("Recovered auction",
			slog.String("type", "SYS"),
			slog.Int64("auction_id", auction.ID),
			slog.String("status", string(auction.Status)))
	}
	return nil
}

// OpenAuction starts a worker for one auction, loading its state from
// storage.
func (a *App) OpenAuction(ctx context.Context, auctionID int64) (*engine.Worker, error) {
	auction, err := a.Store.Auctions.GetByID(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	seed, err := a.loadSeed(ctx, auction)
	if err != nil {
		return nil, err
	}
	return a.Engine.Open(*seed)
}

func (a *App) workerDeps() engine.Deps {
	deps := engine.Deps{
		Persist: a.Store,
		Publish: a.Gateway,
	}
	if a.Spaces != nil {
		deps.Assets = a.Spaces
	}
	return deps
}

func (a *App) loadSeed(ctx context.Context, auction *models.Auction) (*engine.Seed, error) {
	teams, err := a.Store.Teams.GetByAuction(ctx, auction.ID)
	if err != nil {
		return nil, err
	}
	teamStates := make([]*engine.TeamState, 0, len(teams))
	for _, t := range teams {
		squad, err := a.Store.Teams.GetSquad(ctx, t.ID)
		if err != nil {
			return nil, err
		}
		teamStates = append(teamStates, &engine.TeamState{Team: t, Squad: squad})
	}

	pool, err := a.Store.Players.GetPending(ctx, auction.ID)
	if err != nil {
		return nil, err
	}
	for _, p := range pool {
		if p.Status == models.PlayerStatusInProgress {
			p.Status = models.PlayerStatusPending
		}
	}

	proposals, err := a.Store.Trades.GetPending(ctx, auction.ID)
	if err != nil {
		return nil, err
	}

	return &engine.Seed{
		Auction:   auction,
		Teams:     teamStates,
		Pool:      pool,
		Proposals: proposals,
	}, nil
}

// Shutdown closes the gateway first so no commands arrive while workers
// flush their final state.
func (a *App) Shutdown(ctx context.Context) {
	if a.Gateway != nil {
		a.Gateway.Shutdown()
	}
	if a.Engine != nil {
		a.Engine.Shutdown()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
