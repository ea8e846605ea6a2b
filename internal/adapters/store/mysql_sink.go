package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"

	"github.com/limitwatch/limitwatch/internal/core"
	"go.uber.org/zap"
)

// MySQLAlertStore is a MySQL implementation of AlertSink and ReadingSource
type MySQLAlertStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewMySQLAlertStore creates a new MySQL alert store. The DSN must include
// parseTime=true so timestamp columns scan into time.Time.
func NewMySQLAlertStore(dsn string, logger *zap.Logger) (*MySQLAlertStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS alerts (
			user_id VARCHAR(128) NOT NULL,
			source_id VARCHAR(255) NOT NULL,
			platform VARCHAR(32) NOT NULL,
			category VARCHAR(32) NOT NULL,
			subcategory VARCHAR(128),
			severity VARCHAR(16),
			summary TEXT,
			item_name TEXT,
			error_message TEXT,
			threshold INT,
			pattern_hash VARCHAR(32),
			provenance VARCHAR(16),
			subject TEXT,
			received_at TIMESTAMP NOT NULL,
			PRIMARY KEY (user_id, source_id),
			INDEX idx_alerts_user_platform (user_id, platform)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create alerts table: %w", err)
	}

	return &MySQLAlertStore{
		db:     db,
		logger: logger,
	}, nil
}

// SaveAlert stores an alert, replacing any previous row for the same
// (userID, sourceID)
func (s *MySQLAlertStore) SaveAlert(ctx context.Context, userID string, alert *core.ClassifiedAlert) error {
	var threshold sql.NullInt64
	if alert.Threshold != nil {
		threshold = sql.NullInt64{Int64: int64(*alert.Threshold), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO alerts (
			user_id, source_id, platform, category, subcategory, severity,
			summary, item_name, error_message, threshold, pattern_hash,
			provenance, subject, received_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			category = VALUES(category),
			subcategory = VALUES(subcategory),
			severity = VALUES(severity),
			summary = VALUES(summary),
			item_name = VALUES(item_name),
			error_message = VALUES(error_message),
			threshold = VALUES(threshold),
			pattern_hash = VALUES(pattern_hash),
			provenance = VALUES(provenance)
	`,
		userID,
		alert.SourceID,
		string(alert.Platform),
		string(alert.Category),
		alert.Subcategory,
		string(alert.Severity),
		alert.Summary,
		alert.ItemName,
		alert.ErrorMessage,
		threshold,
		alert.PatternHash,
		string(alert.Provenance),
		alert.Subject,
		alert.ReceivedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save alert: %w", err)
	}
	return nil
}

// ThresholdReadings returns the usage-alert reading series for one user and
// platform, ordered by observation time ascending
func (s *MySQLAlertStore) ThresholdReadings(ctx context.Context, userID string, platform core.Platform) ([]core.ThresholdReading, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT threshold, received_at
		FROM alerts
		WHERE user_id = ? AND platform = ? AND category = ? AND threshold IS NOT NULL
		ORDER BY received_at ASC
	`, userID, string(platform), string(core.CategoryUsageAlert))
	if err != nil {
		return nil, fmt.Errorf("failed to query threshold readings: %w", err)
	}
	defer rows.Close()

	var readings []core.ThresholdReading
	for rows.Next() {
		var reading core.ThresholdReading
		if err := rows.Scan(&reading.ThresholdPercent, &reading.ObservedAt); err != nil {
			return nil, fmt.Errorf("failed to scan reading row: %w", err)
		}
		reading.Platform = platform
		readings = append(readings, reading)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate readings: %w", err)
	}

	return readings, nil
}

// Close closes the database connection
func (s *MySQLAlertStore) Close() error {
	return s.db.Close()
}
