package diag

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // Pure Go SQLite driver, registers as "sqlite".
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is a SQLite-backed diagnostics ledger. All writes are
// best-effort: failures are logged and dropped so a broken ledger never
// stalls a sync loop.
type Store struct {
	db     *sql.DB
	logger *slog.Logger

	insertStmt *sql.Stmt
}

// NewStore opens (or creates) the ledger database at dbPath, applying
// migrations. Use ":memory:" for tests.
func NewStore(dbPath string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("diag: open sqlite: %w", err)
	}

	ctx := context.Background()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL"); err != nil {
		db.Close()

		return nil, fmt.Errorf("diag: setting WAL mode: %w", err)
	}

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()

		return nil, err
	}

	insertStmt, err := db.PrepareContext(ctx, `
		INSERT INTO events (kind, item_id, content_type, bytes, elapsed_ms, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		db.Close()

		return nil, fmt.Errorf("diag: preparing insert: %w", err)
	}

	logger.Debug("diagnostics ledger ready", slog.String("path", dbPath))

	return &Store{db: db, logger: logger, insertStmt: insertStmt}, nil
}

// runMigrations applies all pending schema migrations using the goose
// v3 Provider API (no global state, context-aware).
func runMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	subFS, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("diag: creating migration sub-filesystem: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, subFS)
	if err != nil {
		return fmt.Errorf("diag: creating migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("diag: running migrations: %w", err)
	}

	for _, r := range results {
		logger.Info("applied migration",
			slog.String("source", r.Source.Path),
			slog.Int64("duration_ms", r.Duration.Milliseconds()),
		)
	}

	return nil
}

// Record implements Sink. Write failures are logged, never returned.
func (s *Store) Record(ev Event) {
	createdAt := ev.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.insertStmt.Exec(
		ev.Kind, ev.ItemID, ev.ContentType, ev.Bytes,
		ev.Elapsed.Milliseconds(), ev.Error, createdAt.UTC(),
	)
	if err != nil {
		s.logger.Warn("diagnostics write failed",
			slog.String("kind", ev.Kind),
			slog.String("error", err.Error()),
		)
	}
}

// Summarize aggregates per-kind counts and last-seen timestamps.
func (s *Store) Summarize(ctx context.Context) (*Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, COUNT(*), MAX(created_at)
		FROM events
		GROUP BY kind`)
	if err != nil {
		return nil, fmt.Errorf("diag: querying summary: %w", err)
	}
	defer rows.Close()

	sum := &Summary{}

	for rows.Next() {
		var (
			kind  string
			count int64
			last  sql.NullTime
		)

		if err := rows.Scan(&kind, &count, &last); err != nil {
			return nil, fmt.Errorf("diag: scanning summary row: %w", err)
		}

		switch kind {
		case KindCapture:
			sum.Captures = count
			sum.LastCapture = last.Time
		case KindUpload:
			sum.Uploads = count
			sum.LastUpload = last.Time
		case KindFailure:
			sum.Failures = count
			sum.LastFailure = last.Time
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("diag: reading summary rows: %w", err)
	}

	return sum, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s.insertStmt != nil {
		s.insertStmt.Close()
	}

	return s.db.Close()
}
