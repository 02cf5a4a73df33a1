package auctioneer

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/crickora/auction-engine/auctioneer/database"
	"github.com/pelletier/go-toml/v2"
)

func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err = toml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type Config struct {
	Log    LogConfig         `toml:"log"`
	Server ServerConfig      `toml:"server"`
	Auth   AuthConfig        `toml:"auth"`
	DB     database.DBConfig `toml:"db"`
	Spaces SpacesConfig      `toml:"spaces"`
	Mongo  MongoConfig       `toml:"mongo"`
}

type LogConfig struct {
	Level     slog.Level `toml:"level"`
	Format    string     `toml:"format"`
	AddSource bool       `toml:"add_source"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type AuthConfig struct {
	Secret   string `toml:"secret"`
	TokenTTL int    `toml:"token_ttl_hours"`
}

type SpacesConfig struct {
	Key       string `toml:"key"`
	Secret    string `toml:"secret"`
	Region    string `toml:"region"`
	Bucket    string `toml:"bucket"`
	ImageRoot string `toml:"imageroot"`
}

// MongoConfig points at a tenant's legacy roster store. Only used by the
// roster import flag.
type MongoConfig struct {
	URI      string `toml:"uri"`
	Database string `toml:"database"`
}
