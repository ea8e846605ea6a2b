package store

import (
	"context"
	"sort"
	"sync"

	"github.com/limitwatch/limitwatch/internal/core"
)

type alertKey struct {
	userID   string
	sourceID string
}

// MemoryAlertStore is an in-memory AlertSink and ReadingSource. Saving the
// same (userID, sourceID) twice overwrites rather than duplicates, matching
// the idempotent upsert contract.
type MemoryAlertStore struct {
	alerts map[alertKey]*core.ClassifiedAlert
	mu     sync.RWMutex
}

// NewMemoryAlertStore creates a new in-memory alert store
func NewMemoryAlertStore() *MemoryAlertStore {
	return &MemoryAlertStore{
		alerts: make(map[alertKey]*core.ClassifiedAlert),
	}
}

// SaveAlert stores an alert keyed by (userID, sourceID)
func (s *MemoryAlertStore) SaveAlert(ctx context.Context, userID string, alert *core.ClassifiedAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *alert
	s.alerts[alertKey{userID: userID, sourceID: alert.SourceID}] = &copied
	return nil
}

// ThresholdReadings returns the usage-alert reading series for one user and
// platform, ordered by observation time ascending
func (s *MemoryAlertStore) ThresholdReadings(ctx context.Context, userID string, platform core.Platform) ([]core.ThresholdReading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var readings []core.ThresholdReading
	for key, alert := range s.alerts {
		if key.userID != userID || alert.Platform != platform {
			continue
		}
		if alert.Category != core.CategoryUsageAlert || alert.Threshold == nil {
			continue
		}
		readings = append(readings, core.ThresholdReading{
			Platform:         alert.Platform,
			ThresholdPercent: *alert.Threshold,
			ObservedAt:       alert.ReceivedAt,
		})
	}

	sort.SliceStable(readings, func(i, j int) bool {
		return readings[i].ObservedAt.Before(readings[j].ObservedAt)
	})

	return readings, nil
}

// Len reports the number of stored alerts
func (s *MemoryAlertStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.alerts)
}
