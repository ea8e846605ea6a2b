package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/limitwatch/limitwatch/internal/core"
	"go.uber.org/zap"
)

// SQLiteAlertStore is a SQLite implementation of AlertSink and ReadingSource.
// Alerts are keyed by (user_id, source_id) so re-processing the same
// notification never double-counts.
type SQLiteAlertStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteAlertStore creates a new SQLite alert store
func NewSQLiteAlertStore(dbPath string, logger *zap.Logger) (*SQLiteAlertStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS alerts (
			user_id TEXT NOT NULL,
			source_id TEXT NOT NULL,
			platform TEXT NOT NULL,
			category TEXT NOT NULL,
			subcategory TEXT,
			severity TEXT,
			summary TEXT,
			item_name TEXT,
			error_message TEXT,
			threshold INTEGER,
			pattern_hash TEXT,
			provenance TEXT,
			subject TEXT,
			received_at TIMESTAMP NOT NULL,
			PRIMARY KEY (user_id, source_id)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create alerts table: %w", err)
	}

	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_alerts_user_platform ON alerts(user_id, platform)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create alerts index: %w", err)
	}

	return &SQLiteAlertStore{
		db:     db,
		logger: logger,
	}, nil
}

// SaveAlert stores an alert, replacing any previous row for the same
// (userID, sourceID)
func (s *SQLiteAlertStore) SaveAlert(ctx context.Context, userID string, alert *core.ClassifiedAlert) error {
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
		ON CONFLICT(user_id, source_id) DO UPDATE SET
			category = excluded.category,
			subcategory = excluded.subcategory,
			severity = excluded.severity,
			summary = excluded.summary,
			item_name = excluded.item_name,
			error_message = excluded.error_message,
			threshold = excluded.threshold,
			pattern_hash = excluded.pattern_hash,
			provenance = excluded.provenance
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
		alert.ReceivedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save alert: %w", err)
	}
	return nil
}

// ThresholdReadings returns the usage-alert reading series for one user and
// platform, ordered by observation time ascending
func (s *SQLiteAlertStore) ThresholdReadings(ctx context.Context, userID string, platform core.Platform) ([]core.ThresholdReading, error) {
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
		var threshold int
		var receivedAt string
		if err := rows.Scan(&threshold, &receivedAt); err != nil {
			return nil, fmt.Errorf("failed to scan reading row: %w", err)
		}
		observedAt, err := time.Parse(time.RFC3339, receivedAt)
		if err != nil {
			s.logger.Warn("Skipping reading with unparseable timestamp",
				zap.String("received_at", receivedAt),
				zap.Error(err))
			continue
		}
		readings = append(readings, core.ThresholdReading{
			Platform:         platform,
			ThresholdPercent: threshold,
			ObservedAt:       observedAt,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate readings: %w", err)
	}

	return readings, nil
}

// Close closes the database connection
func (s *SQLiteAlertStore) Close() error {
	return s.db.Close()
}
