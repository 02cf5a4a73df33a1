package importer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/crickora/auction-engine/auctioneer/database/models"
	"github.com/crickora/auction-engine/auctioneer/database/repositories"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Importer copies a tenant roster out of the legacy MongoDB store into the
// auction tables. Tenants registered before the auction module shipped keep
// their player and team masters in Mongo; an import seeds a draft auction
// from them.
type Importer struct {
	store     *repositories.Store
	mongoDB   *mongo.Database
	batchSize int
	collNames map[string]string
	images    ImageChecker

	stats ImportStats
}

// ImageChecker verifies that a stored headshot key resolves to a real
// object before the import records it.
type ImageChecker interface {
	HasImage(ctx context.Context, key string) bool
}

type ImportStats struct {
	TeamsImported   int
	PlayersImported int
	PlayersSkipped  int
	StartTime       time.Time
	EndTime         time.Time
}

// MongoTeam mirrors the legacy team master document.
type MongoTeam struct {
	Name      string `bson:"name"`
	ShortName string `bson:"short_name"`
	Purse     int64  `bson:"purse"`
	Active    bool   `bson:"active"`
}

// MongoPlayer mirrors the legacy player master document.
type MongoPlayer struct {
	Name      string `bson:"name"`
	Role      string `bson:"role"`
	Country   string `bson:"country"`
	BasePrice int64  `bson:"base_price"`
	SetNo     int    `bson:"set_no"`
	ImageKey  string `bson:"image_key"`
}

func New(store *repositories.Store, client *mongo.Client, dbName string) *Importer {
	return &Importer{
		store:     store,
		mongoDB:   client.Database(dbName),
		batchSize: 500,
		collNames: map[string]string{
			"teams":   "teams",
			"players": "players",
		},
	}
}

// SetCollectionName overrides a legacy collection name. Older tenants used
// "squads" instead of "teams".
func (im *Importer) SetCollectionName(kind, name string) {
	if kind != "" && name != "" {
		im.collNames[kind] = name
	}
}

// SetImageChecker enables headshot verification during the import.
func (im *Importer) SetImageChecker(c ImageChecker) {
	im.images = c
}

// imageKey drops keys whose object is missing so a reveal never carries a
// broken headshot URL. Without a checker keys pass through untouched.
func (im *Importer) imageKey(ctx context.Context, key string) string {
	if key == "" || im.images == nil {
		return key
	}
	if !im.images.HasImage(ctx, key) {
		slog.Warn("Dropping missing headshot",
			slog.String("type", "SYS"),
			slog.String("image_key", key))
		return ""
	}
	return key
}

// Import seeds an existing draft auction with the tenant's roster. Teams
// come first so players and pool ordering land against known purses.
func (im *Importer) Import(ctx context.Context, auctionID int64) (*ImportStats, error) {
	auction, err := im.store.Auctions.GetByID(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if auction.Status != models.AuctionStatusDraft {
		return nil, fmt.Errorf("auction %d is %s, roster import requires draft", auctionID, auction.Status)
	}

	im.stats = ImportStats{StartTime: time.Now()}

	slog.Info("Starting roster import",
		slog.String("type", "SYS"),
		slog.Int64("auction_id", auctionID),
		slog.String("mongo_db", im.mongoDB.Name()))

	if err := im.importTeams(ctx, auction); err != nil {
		return nil, fmt.Errorf("roster import failed at teams: %w", err)
	}
	if err := im.importPlayers(ctx, auction); err != nil {
		return nil, fmt.Errorf("roster import failed at players: %w", err)
	}

	im.stats.EndTime = time.Now()
	slog.Info("Roster import completed",
		slog.String("type", "SYS"),
		slog.Int("teams", im.stats.TeamsImported),
		slog.Int("players", im.stats.PlayersImported),
		slog.Int("skipped", im.stats.PlayersSkipped),
		slog.Duration("took", im.stats.EndTime.Sub(im.stats.StartTime)))
	return &im.stats, nil
}

func (im *Importer) importTeams(ctx context.Context, auction *models.Auction) error {
	coll := im.mongoDB.Collection(im.collNames["teams"])
	cur, err := coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return fmt.Errorf("failed to query teams: %w", err)
	}
	defer cur.Close(ctx)

	seen := make(map[string]bool)
	for cur.Next(ctx) {
		var mt MongoTeam
		if err := cur.Decode(&mt); err != nil {
			slog.Warn("Skipping undecodable team document",
				slog.String("type", "SYS"),
				slog.Any("error", err))
			continue
		}
		if mt.Name == "" || seen[mt.Name] {
			continue
		}
		seen[mt.Name] = true

		purse := mt.Purse
		if purse <= 0 {
			purse = auction.PurseValue
		}
		team := &models.Team{
			AuctionID:      auction.ID,
			Name:           mt.Name,
			ShortName:      mt.ShortName,
			PurseValue:     purse,
			PurseRemaining: purse,
			Active:         true,
		}
		if err := im.store.Teams.Create(ctx, team); err != nil {
			return err
		}
		im.stats.TeamsImported++
	}
	return cur.Err()
}

func (im *Importer) importPlayers(ctx context.Context, auction *models.Auction) error {
	coll := im.mongoDB.Collection(im.collNames["players"])
	cur, err := coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "set_no", Value: 1}, {Key: "name", Value: 1}}))
	if err != nil {
		return fmt.Errorf("failed to query players: %w", err)
	}
	defer cur.Close(ctx)

	var batch []*models.Player
	queuePos := 1
	seen := make(map[string]bool)
	for cur.Next(ctx) {
		var mp MongoPlayer
		if err := cur.Decode(&mp); err != nil {
			im.stats.PlayersSkipped++
			continue
		}
		if mp.Name == "" || seen[mp.Name] {
			im.stats.PlayersSkipped++
			continue
		}
		seen[mp.Name] = true

		basePrice := mp.BasePrice
		if basePrice <= 0 {
			basePrice = auction.BasePriceDefault
		}
		batch = append(batch, &models.Player{
			AuctionID: auction.ID,
			Name:      mp.Name,
			Role:      mp.Role,
			Country:   mp.Country,
			BasePrice: basePrice,
			Status:    models.PlayerStatusPending,
			QueuePos:  queuePos,
			ImageKey:  im.imageKey(ctx, mp.ImageKey),
		})
		queuePos++

		if len(batch) >= im.batchSize {
			if err := im.store.Players.CreateBatch(ctx, batch); err != nil {
				return err
			}
			im.stats.PlayersImported += len(batch)
			batch = batch[:0]
		}
	}
	if err := cur.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		if err := im.store.Players.CreateBatch(ctx, batch); err != nil {
			return err
		}
		im.stats.PlayersImported += len(batch)
	}
	return nil
}
