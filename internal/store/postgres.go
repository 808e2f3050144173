package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mehmetcc/polyconsole/internal/config"
	"github.com/mehmetcc/polyconsole/internal/database"
	"go.uber.org/zap"
)

const (
	selectTokenQuery = `
						SELECT token FROM console_credentials WHERE slot = $1
						`
	upsertTokenQuery = `
						INSERT INTO console_credentials (slot, token, updated_at)
						VALUES ($1, $2, now())
						ON CONFLICT (slot) DO UPDATE SET token = EXCLUDED.token, updated_at = now()
						`
	deleteTokenQuery = `
						DELETE FROM console_credentials WHERE slot = $1
						`
)

// Postgres keeps the slot as one row of console_credentials.
type Postgres struct {
	db     *sql.DB
	logger *zap.Logger
	owned  bool
}

// OpenPostgres connects with cfg and applies the embedded migrations.
func OpenPostgres(ctx context.Context, cfg *config.DbConfig, logger *zap.Logger) (*Postgres, error) {
	db, err := database.Init(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: %w", err)
	}
	if err := database.Migrate(ctx, db, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres store: %w", err)
	}
	p := NewPostgres(db, logger)
	p.owned = true
	return p, nil
}

// NewPostgres wraps an existing, already migrated database handle.
func NewPostgres(db *sql.DB, logger *zap.Logger) *Postgres {
	return &Postgres{db: db, logger: logger}
}

func (p *Postgres) Load(ctx context.Context) (string, error) {
	var token string
	err := p.db.QueryRowContext(ctx, selectTokenQuery, Slot).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", p.wrap("load", err)
	}
	return token, nil
}

func (p *Postgres) Save(ctx context.Context, token string) error {
	_, err := p.db.ExecContext(ctx, upsertTokenQuery, Slot, token)
	return p.wrap("save", err)
}

func (p *Postgres) Clear(ctx context.Context) error {
	res, err := p.db.ExecContext(ctx, deleteTokenQuery, Slot)
	if err != nil {
		return p.wrap("clear", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		p.logger.Debug("no stored credential to clear")
	}
	return nil
}

func (p *Postgres) Close() error {
	if !p.owned {
		return nil
	}
	return p.db.Close()
}

func (p *Postgres) wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		p.logger.Warn("credential query canceled/timed out", zap.String("op", op), zap.Error(err))
		return err
	}
	if errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("postgres store: %s: %w", op, ErrClosed)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == pgerrcode.UndefinedTable {
			return fmt.Errorf("postgres store: %s: %w", op, ErrNotMigrated)
		}
		p.logger.Error("postgres error",
			zap.String("op", op),
			zap.String("code", pgErr.Code),
			zap.String("msg", pgErr.Message),
		)
	}
	return fmt.Errorf("postgres store: %s: %w", op, err)
}
