package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/limitwatch/limitwatch/internal/core"
	"go.uber.org/zap"
)

// SQLitePatternStore is a SQLite implementation of the PatternStore interface
type SQLitePatternStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLitePatternStore creates a new SQLite pattern store
func NewSQLitePatternStore(dbPath string, logger *zap.Logger) (*SQLitePatternStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS notification_patterns (
			pattern_hash TEXT PRIMARY KEY,
			platform TEXT NOT NULL,
			category TEXT NOT NULL,
			subcategory TEXT,
			severity TEXT,
			detection_rules TEXT NOT NULL,
			extraction_rules TEXT NOT NULL,
			summary_template TEXT,
			example_subject TEXT,
			example_body TEXT,
			match_count INTEGER NOT NULL DEFAULT 1,
			created_at TIMESTAMP NOT NULL,
			last_matched_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create patterns table: %w", err)
	}

	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_patterns_platform ON notification_patterns(platform)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create platform index: %w", err)
	}

	return &SQLitePatternStore{
		db:     db,
		logger: logger,
	}, nil
}

// GetByHash retrieves the bundle stored under an exact pattern hash
func (s *SQLitePatternStore) GetByHash(ctx context.Context, hash string) (*core.PatternBundle, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT pattern_hash, platform, category, subcategory, severity,
		       detection_rules, extraction_rules, summary_template,
		       example_subject, example_body, match_count, created_at, last_matched_at
		FROM notification_patterns
		WHERE pattern_hash = ?
	`, hash)

	bundle, err := scanBundle(row)
	if err == sql.ErrNoRows {
		return nil, core.ErrPatternNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query pattern: %w", err)
	}
	return bundle, nil
}

// GetByPlatform retrieves all bundles for a platform ordered by descending
// match count, oldest first on ties
func (s *SQLitePatternStore) GetByPlatform(ctx context.Context, platform core.Platform) ([]*core.PatternBundle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT pattern_hash, platform, category, subcategory, severity,
		       detection_rules, extraction_rules, summary_template,
		       example_subject, example_body, match_count, created_at, last_matched_at
		FROM notification_patterns
		WHERE platform = ?
		ORDER BY match_count DESC, created_at ASC
	`, string(platform))
	if err != nil {
		return nil, fmt.Errorf("failed to query patterns: %w", err)
	}
	defer rows.Close()

	var bundles []*core.PatternBundle
	for rows.Next() {
		bundle, err := scanBundle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pattern row: %w", err)
		}
		bundles = append(bundles, bundle)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate patterns: %w", err)
	}

	return bundles, nil
}

// Upsert inserts a new bundle, or increments match count and touches
// last-matched on conflict by hash
func (s *SQLitePatternStore) Upsert(ctx context.Context, bundle *core.PatternBundle) error {
	detection, err := json.Marshal(bundle.DetectionRules)
	if err != nil {
		return fmt.Errorf("failed to marshal detection rules: %w", err)
	}
	extraction, err := json.Marshal(bundle.ExtractionRules)
	if err != nil {
		return fmt.Errorf("failed to marshal extraction rules: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO notification_patterns (
			pattern_hash, platform, category, subcategory, severity,
			detection_rules, extraction_rules, summary_template,
			example_subject, example_body, match_count, created_at, last_matched_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(pattern_hash) DO UPDATE SET
			match_count = match_count + 1,
			last_matched_at = excluded.last_matched_at
	`,
		bundle.PatternHash,
		string(bundle.Platform),
		string(bundle.Category),
		bundle.Subcategory,
		string(bundle.Severity),
		string(detection),
		string(extraction),
		bundle.SummaryTemplate,
		bundle.ExampleSubject,
		bundle.ExampleBody,
		bundle.MatchCount,
		bundle.CreatedAt.Format(time.RFC3339),
		bundle.LastMatchedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert pattern: %w", err)
	}
	return nil
}

// IncrementMatch bumps the match count for a hash. The single UPDATE keeps the
// increment atomic under concurrent matches.
func (s *SQLitePatternStore) IncrementMatch(ctx context.Context, hash string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE notification_patterns
		SET match_count = match_count + 1, last_matched_at = ?
		WHERE pattern_hash = ?
	`, time.Now().Format(time.RFC3339), hash)
	if err != nil {
		return fmt.Errorf("failed to increment match count: %w", err)
	}

	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return core.ErrPatternNotFound
	}
	return nil
}

// Close closes the database connection
func (s *SQLitePatternStore) Close() error {
	return s.db.Close()
}

// rowScanner covers both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanBundle(row rowScanner) (*core.PatternBundle, error) {
	var bundle core.PatternBundle
	var platform, category, severity string
	var detection, extraction string
	var createdAt, lastMatchedAt string

	err := row.Scan(
		&bundle.PatternHash,
		&platform,
		&category,
		&bundle.Subcategory,
		&severity,
		&detection,
		&extraction,
		&bundle.SummaryTemplate,
		&bundle.ExampleSubject,
		&bundle.ExampleBody,
		&bundle.MatchCount,
		&createdAt,
		&lastMatchedAt,
	)
	if err != nil {
		return nil, err
	}

	bundle.Platform = core.Platform(platform)
	bundle.Category = core.Category(category)
	bundle.Severity = core.Severity(severity)

	if err := json.Unmarshal([]byte(detection), &bundle.DetectionRules); err != nil {
		return nil, fmt.Errorf("failed to unmarshal detection rules: %w", err)
	}
	if err := json.Unmarshal([]byte(extraction), &bundle.ExtractionRules); err != nil {
		return nil, fmt.Errorf("failed to unmarshal extraction rules: %w", err)
	}

	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		bundle.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339, lastMatchedAt); err == nil {
		bundle.LastMatchedAt = t
	}

	return &bundle, nil
}
