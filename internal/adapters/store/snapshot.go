package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mikey/mail-classifier/internal/core"
)

// WriteSnapshot writes a model state to a SQLite snapshot file at path,
// replacing any previous snapshot contents. Callers obtain the state from
// the classifier, which takes every table lock for the dump.
func WriteSnapshot(ctx context.Context, state *core.ModelState, path string, logger *zap.Logger) error {
	snap, err := NewSQLiteStore(path, logger)
	if err != nil {
		return err
	}
	defer snap.Close()
	if err := snap.Load(ctx, state); err != nil {
		return fmt.Errorf("failed to write snapshot %s: %w", path, err)
	}
	return nil
}

// ReadSnapshot reads a model state back from the SQLite snapshot file at
// path.
func ReadSnapshot(ctx context.Context, path string, logger *zap.Logger) (*core.ModelState, error) {
	snap, err := NewSQLiteStore(path, logger)
	if err != nil {
		return nil, err
	}
	defer snap.Close()
	state, err := snap.Dump(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot %s: %w", path, err)
	}
	return state, nil
}
