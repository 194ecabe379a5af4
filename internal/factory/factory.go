package factory

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mcoot/pairplay/internal/dependencies/clock"
	"github.com/mcoot/pairplay/internal/dependencies/random"
	"github.com/mcoot/pairplay/internal/notify"
	"github.com/mcoot/pairplay/internal/services/game"
	"github.com/mcoot/pairplay/internal/services/keyexchange"
	"github.com/mcoot/pairplay/internal/services/matchmaker"
	"github.com/mcoot/pairplay/internal/services/move"
	"github.com/mcoot/pairplay/internal/services/session"
	"github.com/mcoot/pairplay/internal/services/user"
	"github.com/mcoot/pairplay/internal/storage"
	"github.com/mcoot/pairplay/internal/storage/memory"
	redisstorage "github.com/mcoot/pairplay/internal/storage/redis"
	"github.com/mcoot/pairplay/internal/storage/sqlite"
)

// Storage type constants
const (
	StorageTypeMemory = "memory"
	StorageTypeRedis  = "redis"
	StorageTypeSQLite = "sqlite"
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock  clock.Clock
	Random random.Random

	// Services
	Authority   *session.Authority
	KeyExchange *keyexchange.Service
	Users       *user.Service
	Games       *game.Service
	Matchmaker  *matchmaker.Matchmaker
	Moves       *move.Consensus
	Hub         *notify.Hub

	closer io.Closer
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory", "redis" or "sqlite")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// SQLitePath is the database file (required if StorageType is "sqlite")
	SQLitePath string
	// KeyExchangeConfig sizes the Diffie-Hellman modulus
	// If zero value, defaults to keyexchange.DefaultConfig()
	KeyExchangeConfig keyexchange.Config
	// UserConfig holds configuration for the user service
	// If zero value, defaults to user.DefaultConfig()
	UserConfig user.Config
}

// New creates a new application with all dependencies wired
func New(cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	store, closer, err := openStorage(cfg)
	if err != nil {
		return nil, err
	}

	app, err := newWithDependencies(store, clock.New(), random.New(), cfg.KeyExchangeConfig, cfg.UserConfig, logger)
	if err != nil {
		if closer != nil {
			_ = closer.Close()
		}
		return nil, err
	}
	app.closer = closer
	return app, nil
}

func openStorage(cfg Config) (storage.Storage, io.Closer, error) {
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		return memory.New(), nil, nil
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, nil, errors.New("RedisConfig required when StorageType is redis")
		}
		store, err := redisstorage.New(*cfg.RedisConfig)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to redis: %w", err)
		}
		return store, store, nil
	case StorageTypeSQLite:
		if cfg.SQLitePath == "" {
			return nil, nil, errors.New("SQLitePath required when StorageType is sqlite")
		}
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		return store, store, nil
	default:
		return nil, nil, errors.New("invalid StorageType: must be 'memory', 'redis' or 'sqlite'")
	}
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(
	store storage.Storage,
	clk clock.Clock,
	rnd random.Random,
	kexCfg keyexchange.Config,
	userCfg user.Config,
	logger *slog.Logger,
) (*App, error) {
	if userCfg.BcryptCost == 0 {
		userCfg = user.DefaultConfig()
	}

	kex, err := keyexchange.New(rnd, kexCfg, logger)
	if err != nil {
		return nil, err
	}

	authority := session.New(store)
	hub := notify.NewHub(clk, logger)
	users := user.New(store, authority, kex, clk, userCfg, logger)
	games := game.New(store, users, clk, logger)
	mm := matchmaker.New(games, hub, logger)
	moves := move.New(authority, store, games, hub, clk, logger)

	return &App{
		Storage:     store,
		Clock:       clk,
		Random:      rnd,
		Authority:   authority,
		KeyExchange: kex,
		Users:       users,
		Games:       games,
		Matchmaker:  mm,
		Moves:       moves,
		Hub:         hub,
	}, nil
}

// Close disconnects notification endpoints and releases the storage backend
func (a *App) Close() error {
	a.Hub.Close()
	if a.closer != nil {
		return a.closer.Close()
	}
	return nil
}
