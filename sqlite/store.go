// Package sqlite persists rule sets in a SQLite database. Each rule set is
// stored as a row holding its YAML encoding, keyed by a generated ID and
// unique by name.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/asaidimu/go-rulesengine/core/ruleset"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNotFound is returned when no stored rule set matches a lookup.
var ErrNotFound = errors.New("rule set not found")

// StoreOptions controls the table the store manages.
type StoreOptions struct {
	// Table is the unquoted table name.
	Table string
	// IfNotExists makes Init tolerate an existing table.
	IfNotExists bool
	// DropIfExists makes Init drop the table before creating it.
	DropIfExists bool
}

// DefaultStoreOptions returns the options used when none are given.
func DefaultStoreOptions() *StoreOptions {
	return &StoreOptions{
		Table:       "rule_sets",
		IfNotExists: true,
	}
}

// Record is a stored rule set.
type Record struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Set       *ruleset.RuleSet `json:"set"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// dbRunner is satisfied by both *sql.DB and *sql.Tx.
type dbRunner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// RuleStore reads and writes rule sets.
type RuleStore struct {
	db      *sql.DB
	logger  *zap.Logger
	options *StoreOptions
	now     func() time.Time
}

// NewRuleStore creates a store over db. A nil logger or options fall back to
// a no-op logger and DefaultStoreOptions.
func NewRuleStore(db *sql.DB, logger *zap.Logger, options *StoreOptions) *RuleStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if options == nil {
		options = DefaultStoreOptions()
	}
	if options.Table == "" {
		options.Table = DefaultStoreOptions().Table
	}
	return &RuleStore{db: db, logger: logger, options: options, now: time.Now}
}

func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (s *RuleStore) table() string {
	return quoteIdentifier(s.options.Table)
}

func (s *RuleStore) exec(ctx context.Context, r dbRunner, query string, args ...any) (sql.Result, error) {
	s.logger.Debug("Executing SQL statement", zap.String("sql", query), zap.Int("args", len(args)))
	res, err := r.ExecContext(ctx, query, args...)
	if err != nil {
		s.logger.Error("Failed to execute SQL statement", zap.String("sql", query), zap.Error(err))
		return nil, err
	}
	return res, nil
}

// Init creates the backing table and its name index.
func (s *RuleStore) Init(ctx context.Context) error {
	var statements []string
	if s.options.DropIfExists {
		statements = append(statements, fmt.Sprintf("DROP TABLE IF EXISTS %s", s.table()))
	}
	ifNotExists := ""
	if s.options.IfNotExists {
		ifNotExists = "IF NOT EXISTS "
	}
	statements = append(statements,
		fmt.Sprintf(`CREATE TABLE %s%s (
    "id" TEXT PRIMARY KEY,
    "name" TEXT NOT NULL UNIQUE,
    "body" TEXT NOT NULL,
    "created_at" INTEGER NOT NULL,
    "updated_at" INTEGER NOT NULL
)`, ifNotExists, s.table()),
	)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range statements {
		if _, err := s.exec(ctx, tx, stmt); err != nil {
			return fmt.Errorf("failed to create rule set table: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.logger.Info("Rule set table ready", zap.String("table", s.options.Table))
	return nil
}

// Save inserts set, or replaces the stored set with the same name. It
// returns the record ID, which stays stable across replacements.
func (s *RuleStore) Save(ctx context.Context, set *ruleset.RuleSet) (string, error) {
	if set == nil {
		return "", fmt.Errorf("%w: nil rule set", ruleset.ErrInvalidRuleSet)
	}
	if err := set.Validate(); err != nil {
		return "", err
	}
	body, err := set.Marshal()
	if err != nil {
		return "", fmt.Errorf("failed to encode rule set %q: %w", set.Name, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := s.now().UnixMilli()
	var id string
	err = tx.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT "id" FROM %s WHERE "name" = ?`, s.table()), set.Name,
	).Scan(&id)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		id = uuid.New().String()
		_, err = s.exec(ctx, tx,
			fmt.Sprintf(`INSERT INTO %s ("id", "name", "body", "created_at", "updated_at") VALUES (?, ?, ?, ?, ?)`, s.table()),
			id, set.Name, string(body), now, now,
		)
		if err != nil {
			return "", fmt.Errorf("failed to insert rule set %q: %w", set.Name, err)
		}
	case err != nil:
		return "", fmt.Errorf("failed to look up rule set %q: %w", set.Name, err)
	default:
		_, err = s.exec(ctx, tx,
			fmt.Sprintf(`UPDATE %s SET "body" = ?, "updated_at" = ? WHERE "id" = ?`, s.table()),
			string(body), now, id,
		)
		if err != nil {
			return "", fmt.Errorf("failed to update rule set %q: %w", set.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.logger.Debug("Saved rule set", zap.String("id", id), zap.String("name", set.Name))
	return id, nil
}

// Get returns the record with the given ID.
func (s *RuleStore) Get(ctx context.Context, id string) (*Record, error) {
	return s.getOne(ctx, `"id" = ?`, id)
}

// GetByName returns the record with the given rule set name.
func (s *RuleStore) GetByName(ctx context.Context, name string) (*Record, error) {
	return s.getOne(ctx, `"name" = ?`, name)
}

func (s *RuleStore) getOne(ctx context.Context, where string, arg any) (*Record, error) {
	records, err := s.query(ctx, s.db, where, arg)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, arg)
	}
	return records[0], nil
}

// List returns every stored record ordered by name.
func (s *RuleStore) List(ctx context.Context) ([]*Record, error) {
	return s.query(ctx, s.db, "")
}

// Delete removes the record with the given ID and reports whether one
// existed.
func (s *RuleStore) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.exec(ctx, s.db, fmt.Sprintf(`DELETE FROM %s WHERE "id" = ?`, s.table()), id)
	if err != nil {
		return false, fmt.Errorf("failed to delete rule set %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

func (s *RuleStore) query(ctx context.Context, r dbRunner, where string, args ...any) ([]*Record, error) {
	q := fmt.Sprintf(`SELECT "id", "name", "body", "created_at", "updated_at" FROM %s`, s.table())
	if where != "" {
		q += " WHERE " + where
	}
	q += ` ORDER BY "name"`

	s.logger.Debug("Executing SQL query", zap.String("sql", q))
	rows, err := r.QueryContext(ctx, q, args...)
	if err != nil {
		s.logger.Error("Failed to execute SQL query", zap.String("sql", q), zap.Error(err))
		return nil, fmt.Errorf("failed to query rule sets: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		var (
			rec              Record
			body             string
			created, updated int64
		)
		if err := rows.Scan(&rec.ID, &rec.Name, &body, &created, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan rule set row: %w", err)
		}
		set, err := ruleset.Parse([]byte(body))
		if err != nil {
			return nil, fmt.Errorf("stored rule set %s is corrupt: %w", rec.ID, err)
		}
		rec.Set = set
		rec.CreatedAt = time.UnixMilli(created)
		rec.UpdatedAt = time.UnixMilli(updated)
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return records, nil
}
