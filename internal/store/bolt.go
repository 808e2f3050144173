package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

var (
	bucketConsole = []byte("console")
	keyToken      = []byte(Slot)
)

// Bolt keeps the slot in a bbolt database. bbolt holds an exclusive file
// lock, so only one console process can use a given database at a time.
type Bolt struct {
	db *bbolt.DB
}

func NewBolt(path string) (*Bolt, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("bolt store: create directory: %w", err)
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("bolt store: open database: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketConsole)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("bolt store: create bucket: %w", err)
	}
	return &Bolt{db: db}, nil
}

func (b *Bolt) Load(ctx context.Context) (string, error) {
	var token string
	err := b.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(bucketConsole).Get(keyToken); v != nil {
			token = string(v) // v is only valid inside the transaction
		}
		return nil
	})
	if err != nil {
		return "", b.wrap("load", err)
	}
	return token, nil
}

func (b *Bolt) Save(ctx context.Context, token string) error {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketConsole).Put(keyToken, []byte(token))
	})
	return b.wrap("save", err)
}

func (b *Bolt) Clear(ctx context.Context) error {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketConsole).Delete(keyToken)
	})
	return b.wrap("clear", err)
}

func (b *Bolt) Close() error { return b.db.Close() }

func (b *Bolt) wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, bbolt.ErrDatabaseNotOpen) {
		return fmt.Errorf("bolt store: %s: %w", op, ErrClosed)
	}
	return fmt.Errorf("bolt store: %s: %w", op, err)
}
