package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// File keeps the slot in a single 0600 file. Writes go through a temp file
// and a rename so readers never observe a partial token.
type File struct {
	path   string
	logger *zap.Logger

	mu   sync.Mutex
	last string // last value this process read or wrote
}

var _ Watcher = (*File)(nil)

func NewFile(path string, logger *zap.Logger) (*File, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("file store: empty path")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("file store: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o700); err != nil {
		return nil, fmt.Errorf("file store: create directory: %w", err)
	}
	return &File{path: abs, logger: logger}, nil
}

func (f *File) Path() string { return f.path }

func (f *File) Load(ctx context.Context) (string, error) {
	token, err := f.read()
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	f.last = token
	f.mu.Unlock()
	return token, nil
}

func (f *File) read() (string, error) {
	b, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("file store: read: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

func (f *File) Save(ctx context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(f.path), "."+filepath.Base(f.path)+".*")
	if err != nil {
		return fmt.Errorf("file store: create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("file store: chmod: %w", err)
	}
	if _, err := tmp.WriteString(token); err != nil {
		tmp.Close()
		return fmt.Errorf("file store: write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("file store: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("file store: close: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("file store: rename: %w", err)
	}
	f.last = token
	return nil
}

func (f *File) Clear(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("file store: remove: %w", err)
	}
	f.last = ""
	return nil
}

func (f *File) Close() error { return nil }

// Watch reports changes to the token file made outside this File value.
// Changes this process wrote itself are filtered out.
func (f *File) Watch(ctx context.Context, onChange func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("file store: watcher: %w", err)
	}
	defer w.Close()

	// Watch the directory: the file itself is replaced on every save.
	if err := w.Add(filepath.Dir(f.path)); err != nil {
		return fmt.Errorf("file store: watch %s: %w", filepath.Dir(f.path), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != f.path {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			current, err := f.read()
			if err != nil {
				f.logger.Warn("token file unreadable after change", zap.Error(err))
				continue
			}
			f.mu.Lock()
			changed := current != f.last
			f.last = current
			f.mu.Unlock()
			if changed {
				f.logger.Debug("token file changed externally", zap.String("op", ev.Op.String()))
				onChange()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			f.logger.Warn("token file watcher error", zap.Error(err))
		}
	}
}
