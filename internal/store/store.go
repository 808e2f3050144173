// Package store persists the console's single credential slot.
//
// Every backend holds exactly one value under the name "token". An empty slot
// is a normal state: Load returns "" and a nil error.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/mehmetcc/polyconsole/internal/config"
	"go.uber.org/zap"
)

// Slot is the name of the one value every backend keeps.
const Slot = "token"

var (
	ErrClosed      = errors.New("store closed")
	ErrNotMigrated = errors.New("credential table missing, run migrations")
)

type Store interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, token string) error
	Clear(ctx context.Context) error
	Close() error
}

// Watcher is implemented by stores that can report changes made by other
// processes sharing the same backing storage.
type Watcher interface {
	// Watch calls onChange after each external change until ctx is done.
	Watch(ctx context.Context, onChange func()) error
}

// Open builds the backend selected by cfg.StoreConfig.Backend.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Store, error) {
	sc := cfg.StoreConfig
	switch sc.Backend {
	case "memory":
		return NewMemory(), nil
	case "file", "":
		return NewFile(sc.Path, logger)
	case "bolt":
		return NewBolt(sc.BoltPath)
	case "redis":
		return NewRedis(ctx, RedisConfig{Addr: sc.RedisAddr, DB: sc.RedisDB, Key: sc.RedisKey})
	case "postgres":
		return OpenPostgres(ctx, &cfg.DbConfig, logger)
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownBackend, sc.Backend)
	}
}
