package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/crickora/auction-engine/auctioneer"
	"github.com/crickora/auction-engine/auctioneer/importer"
	"github.com/crickora/auction-engine/auctioneer/logger"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	path := flag.String("config", "config.toml", "path to config")
	importAuction := flag.Int64("import", 0, "import the legacy roster into the given draft auction and exit")
	flag.Parse()

	cfg, err := auctioneer.LoadConfig(*path)
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(-1)
	}

	slog.SetDefault(slog.New(logger.NewHandler(cfg.Log.Level)))
	slog.Info("Starting Crickora auction engine",
		slog.String("version", version),
		slog.String("commit", commit))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	app := auctioneer.New(*cfg, version, commit)
	if err := app.Setup(ctx); err != nil {
		cancel()
		slog.Error("Setup failed", slog.Any("error", err))
		os.Exit(-1)
	}
	cancel()
	defer app.Shutdown(context.Background())

	if *importAuction != 0 {
		if err := runImport(app, *importAuction); err != nil {
			slog.Error("Roster import failed", slog.Any("error", err))
			os.Exit(-1)
		}
		return
	}

	recoverCtx, recoverCancel := context.WithTimeout(context.Background(), 5*time.Minute)
	if err := app.Recover(recoverCtx); err != nil {
		recoverCancel()
		slog.Error("Recovery failed", slog.Any("error", err))
		os.Exit(-1)
	}
	recoverCancel()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", app.WSServer.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	addr := cfg.Server.Addr
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(rootCtx)
	g.Go(func() error {
		slog.Info("Gateway listening", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("Server error", slog.Any("error", err))
		os.Exit(-1)
	}
}

func runImport(app *auctioneer.App, auctionID int64) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(app.Cfg.Mongo.URI))
	if err != nil {
		return err
	}
	defer client.Disconnect(ctx)

	im := importer.New(app.Store, client, app.Cfg.Mongo.Database)
	if app.Spaces != nil {
		im.SetImageChecker(app.Spaces)
	}
	stats, err := im.Import(ctx, auctionID)
	if err != nil {
		return err
	}
	slog.Info("Import finished",
		slog.Int("teams", stats.TeamsImported),
		slog.Int("players", stats.PlayersImported))
	return nil
}
