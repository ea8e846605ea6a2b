package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/limitwatch/limitwatch/internal/core"
	"go.uber.org/zap"
)

// MySQLPatternStore is a MySQL implementation of the PatternStore interface
type MySQLPatternStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewMySQLPatternStore creates a new MySQL pattern store
func NewMySQLPatternStore(dsn string, logger *zap.Logger) (*MySQLPatternStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS notification_patterns (
			pattern_hash VARCHAR(64) PRIMARY KEY,
			platform VARCHAR(32) NOT NULL,
			category VARCHAR(32) NOT NULL,
			subcategory VARCHAR(255),
			severity VARCHAR(16),
			detection_rules TEXT NOT NULL,
			extraction_rules TEXT NOT NULL,
			summary_template TEXT,
			example_subject VARCHAR(255),
			example_body TEXT,
			match_count BIGINT NOT NULL DEFAULT 1,
			created_at TIMESTAMP NOT NULL,
			last_matched_at TIMESTAMP NOT NULL,
			INDEX idx_patterns_platform (platform)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create patterns table: %w", err)
	}

	return &MySQLPatternStore{
		db:     db,
		logger: logger,
	}, nil
}

// GetByHash retrieves the bundle stored under an exact pattern hash
func (s *MySQLPatternStore) GetByHash(ctx context.Context, hash string) (*core.PatternBundle, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT pattern_hash, platform, category, subcategory, severity,
		       detection_rules, extraction_rules, summary_template,
		       example_subject, example_body, match_count, created_at, last_matched_at
		FROM notification_patterns
		WHERE pattern_hash = ?
	`, hash)

	bundle, err := scanMySQLBundle(row)
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
func (s *MySQLPatternStore) GetByPlatform(ctx context.Context, platform core.Platform) ([]*core.PatternBundle, error) {
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
		bundle, err := scanMySQLBundle(rows)
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
func (s *MySQLPatternStore) Upsert(ctx context.Context, bundle *core.PatternBundle) error {
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
		ON DUPLICATE KEY UPDATE
			match_count = match_count + 1,
			last_matched_at = VALUES(last_matched_at)
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
		bundle.CreatedAt,
		bundle.LastMatchedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert pattern: %w", err)
	}
	return nil
}

// IncrementMatch bumps the match count for a hash
func (s *MySQLPatternStore) IncrementMatch(ctx context.Context, hash string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE notification_patterns
		SET match_count = match_count + 1, last_matched_at = NOW()
		WHERE pattern_hash = ?
	`, hash)
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
func (s *MySQLPatternStore) Close() error {
	return s.db.Close()
}

func scanMySQLBundle(row rowScanner) (*core.PatternBundle, error) {
	var bundle core.PatternBundle
	var platform, category, severity string
	var detection, extraction string
	var createdAt, lastMatchedAt time.Time

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
	bundle.CreatedAt = createdAt
	bundle.LastMatchedAt = lastMatchedAt

	if err := json.Unmarshal([]byte(detection), &bundle.DetectionRules); err != nil {
		return nil, fmt.Errorf("failed to unmarshal detection rules: %w", err)
	}
	if err := json.Unmarshal([]byte(extraction), &bundle.ExtractionRules); err != nil {
		return nil, fmt.Errorf("failed to unmarshal extraction rules: %w", err)
	}

	return &bundle, nil
}
