package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/mikey/mail-classifier/internal/core"
)

// queryChunk bounds IN-clause parameter lists below SQLite's variable limit.
const queryChunk = 500

// SQLiteStore is a SQLite implementation of the TableStore interface,
// keeping the model on disk between runs. Access is serialized by the
// owning classifier's lock discipline.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteStore opens (or creates) a SQLite-backed table store at dbPath.
func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Create tables if they don't exist
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS categories (
			name TEXT PRIMARY KEY,
			messages INTEGER NOT NULL DEFAULT 0
		);
		CREATE TABLE IF NOT EXISTS frequencies (
			token TEXT NOT NULL,
			category TEXT NOT NULL,
			count INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (token, category)
		);
		CREATE TABLE IF NOT EXISTS predictors (
			token TEXT NOT NULL,
			category TEXT NOT NULL,
			prob REAL NOT NULL,
			sig REAL NOT NULL,
			PRIMARY KEY (token, category)
		);
		CREATE TABLE IF NOT EXISTS bias (
			category TEXT PRIMARY KEY,
			multiplier REAL NOT NULL
		);
		CREATE TABLE IF NOT EXISTS meta (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			processed INTEGER NOT NULL DEFAULT 0,
			scored_as_of INTEGER NOT NULL DEFAULT 0
		);
		INSERT OR IGNORE INTO meta (id, processed, scored_as_of) VALUES (1, 0, 0);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

// Categories returns every known category with its message count.
func (s *SQLiteStore) Categories(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, messages FROM categories`)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var name string
		var messages int
		if err := rows.Scan(&name, &messages); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		out[name] = messages
	}
	return out, rows.Err()
}

// AdjustCategory changes a category's message count by delta, clamping at
// zero. The category row stays present even at zero.
func (s *SQLiteStore) AdjustCategory(ctx context.Context, category string, delta int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (name, messages) VALUES (?, MAX(0, ?))
		ON CONFLICT(name) DO UPDATE SET messages = MAX(0, messages + ?)
	`, category, delta, delta)
	if err != nil {
		return fmt.Errorf("failed to adjust category count: %w", err)
	}
	return nil
}

// AdjustTokens changes each token's occurrence count for the category by
// delta inside one transaction. Counts clamp at zero and zeroed rows are
// removed.
func (s *SQLiteStore) AdjustTokens(ctx context.Context, category string, tokens []string, delta int) error {
	if len(tokens) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO frequencies (token, category, count) VALUES (?, ?, MAX(0, ?))
		ON CONFLICT(token, category) DO UPDATE SET count = MAX(0, count + ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare token update: %w", err)
	}
	defer stmt.Close()

	for _, token := range tokens {
		if _, err := stmt.ExecContext(ctx, token, category, delta, delta); err != nil {
			return fmt.Errorf("failed to adjust token count: %w", err)
		}
	}
	if delta < 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM frequencies WHERE count <= 0`); err != nil {
			return fmt.Errorf("failed to drop zeroed counts: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit token counts: %w", err)
	}
	return nil
}

// Frequencies returns the complete token frequency table.
func (s *SQLiteStore) Frequencies(ctx context.Context) (map[string]map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT token, category, count FROM frequencies WHERE count > 0`)
	if err != nil {
		return nil, fmt.Errorf("failed to query frequencies: %w", err)
	}
	defer rows.Close()

	out := make(map[string]map[string]int)
	for rows.Next() {
		var token, category string
		var count int
		if err := rows.Scan(&token, &category, &count); err != nil {
			return nil, fmt.Errorf("failed to scan frequency: %w", err)
		}
		row := out[token]
		if row == nil {
			row = make(map[string]int)
			out[token] = row
		}
		row[category] = count
	}
	return out, rows.Err()
}

// PredictorRows returns the cached predictor rows for the given tokens,
// querying in chunks to stay under the parameter limit.
func (s *SQLiteStore) PredictorRows(ctx context.Context, tokens []string) (map[string]map[string]core.Predictor, error) {
	out := make(map[string]map[string]core.Predictor)
	for start := 0; start < len(tokens); start += queryChunk {
		end := start + queryChunk
		if end > len(tokens) {
			end = len(tokens)
		}
		if err := s.predictorChunk(ctx, tokens[start:end], out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *SQLiteStore) predictorChunk(ctx context.Context, tokens []string, out map[string]map[string]core.Predictor) error {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(tokens)), ",")
	args := make([]any, len(tokens))
	for i, token := range tokens {
		args[i] = token
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT token, category, prob, sig FROM predictors WHERE token IN (%s)
	`, placeholders), args...)
	if err != nil {
		return fmt.Errorf("failed to query predictors: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var token, category string
		var p core.Predictor
		if err := rows.Scan(&token, &category, &p.Prob, &p.Sig); err != nil {
			return fmt.Errorf("failed to scan predictor: %w", err)
		}
		row := out[token]
		if row == nil {
			row = make(map[string]core.Predictor)
			out[token] = row
		}
		row[category] = p
	}
	return rows.Err()
}

// ReplacePredictors swaps in a freshly rebuilt predictor table inside one
// transaction.
func (s *SQLiteStore) ReplacePredictors(ctx context.Context, rows map[string]map[string]core.Predictor) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM predictors`); err != nil {
		return fmt.Errorf("failed to clear predictors: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO predictors (token, category, prob, sig) VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare predictor insert: %w", err)
	}
	defer stmt.Close()

	for token, row := range rows {
		for category, p := range row {
			if _, err := stmt.ExecContext(ctx, token, category, p.Prob, p.Sig); err != nil {
				return fmt.Errorf("failed to insert predictor: %w", err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit predictors: %w", err)
	}
	return nil
}

// Bias returns the per-category weight multipliers.
func (s *SQLiteStore) Bias(ctx context.Context) (map[string]float64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT category, multiplier FROM bias`)
	if err != nil {
		return nil, fmt.Errorf("failed to query bias: %w", err)
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var category string
		var multiplier float64
		if err := rows.Scan(&category, &multiplier); err != nil {
			return nil, fmt.Errorf("failed to scan bias: %w", err)
		}
		out[category] = multiplier
	}
	return out, rows.Err()
}

// SetBias stores a category's weight multiplier.
func (s *SQLiteStore) SetBias(ctx context.Context, category string, multiplier float64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO bias (category, multiplier) VALUES (?, ?)
	`, category, multiplier)
	if err != nil {
		return fmt.Errorf("failed to set bias: %w", err)
	}
	return nil
}

// Meta returns the staleness counters.
func (s *SQLiteStore) Meta(ctx context.Context) (core.Meta, error) {
	var processed, scoredAsOf int64
	err := s.db.QueryRowContext(ctx, `
		SELECT processed, scored_as_of FROM meta WHERE id = 1
	`).Scan(&processed, &scoredAsOf)
	if err != nil {
		return core.Meta{}, fmt.Errorf("failed to query meta: %w", err)
	}
	return core.Meta{Processed: uint64(processed), ScoredAsOf: uint64(scoredAsOf)}, nil
}

// SetMeta stores the staleness counters.
func (s *SQLiteStore) SetMeta(ctx context.Context, meta core.Meta) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE meta SET processed = ?, scored_as_of = ? WHERE id = 1
	`, int64(meta.Processed), int64(meta.ScoredAsOf))
	if err != nil {
		return fmt.Errorf("failed to set meta: %w", err)
	}
	return nil
}

// Dump copies the complete model state out of the store.
func (s *SQLiteStore) Dump(ctx context.Context) (*core.ModelState, error) {
	state := core.NewModelState()
	var err error
	if state.Categories, err = s.Categories(ctx); err != nil {
		return nil, err
	}
	if state.Frequencies, err = s.Frequencies(ctx); err != nil {
		return nil, err
	}
	if state.Bias, err = s.Bias(ctx); err != nil {
		return nil, err
	}
	if state.Meta, err = s.Meta(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT token, category, prob, sig FROM predictors`)
	if err != nil {
		return nil, fmt.Errorf("failed to query predictors: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var token, category string
		var p core.Predictor
		if err := rows.Scan(&token, &category, &p.Prob, &p.Sig); err != nil {
			return nil, fmt.Errorf("failed to scan predictor: %w", err)
		}
		row := state.Predictors[token]
		if row == nil {
			row = make(map[string]core.Predictor)
			state.Predictors[token] = row
		}
		row[category] = p
	}
	return state, rows.Err()
}

// Load replaces the store's contents with the given state inside one
// transaction.
func (s *SQLiteStore) Load(ctx context.Context, state *core.ModelState) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := clearTables(ctx, tx); err != nil {
		return err
	}
	for name, messages := range state.Categories {
		if _, err := tx.ExecContext(ctx, `INSERT INTO categories (name, messages) VALUES (?, ?)`, name, messages); err != nil {
			return fmt.Errorf("failed to load category: %w", err)
		}
	}
	for token, row := range state.Frequencies {
		for category, count := range row {
			if _, err := tx.ExecContext(ctx, `INSERT INTO frequencies (token, category, count) VALUES (?, ?, ?)`, token, category, count); err != nil {
				return fmt.Errorf("failed to load frequency: %w", err)
			}
		}
	}
	for token, row := range state.Predictors {
		for category, p := range row {
			if _, err := tx.ExecContext(ctx, `INSERT INTO predictors (token, category, prob, sig) VALUES (?, ?, ?, ?)`, token, category, p.Prob, p.Sig); err != nil {
				return fmt.Errorf("failed to load predictor: %w", err)
			}
		}
	}
	for category, multiplier := range state.Bias {
		if _, err := tx.ExecContext(ctx, `INSERT INTO bias (category, multiplier) VALUES (?, ?)`, category, multiplier); err != nil {
			return fmt.Errorf("failed to load bias: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, `UPDATE meta SET processed = ?, scored_as_of = ? WHERE id = 1`,
		int64(state.Meta.Processed), int64(state.Meta.ScoredAsOf)); err != nil {
		return fmt.Errorf("failed to load meta: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit model state: %w", err)
	}
	s.logger.Debug("Loaded model state",
		zap.Int("categories", len(state.Categories)),
		zap.Int("tokens", len(state.Frequencies)))
	return nil
}

// Reset drops every table and zeroes the staleness counters.
func (s *SQLiteStore) Reset(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()
	if err := clearTables(ctx, tx); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE meta SET processed = 0, scored_as_of = 0 WHERE id = 1`); err != nil {
		return fmt.Errorf("failed to reset meta: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reset: %w", err)
	}
	return nil
}

func clearTables(ctx context.Context, tx *sql.Tx) error {
	for _, table := range []string{"categories", "frequencies", "predictors", "bias"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close SQLite database: %w", err)
	}
	return nil
}
