package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/limitwatch/limitwatch/internal/core"
	"go.uber.org/zap"
)

// MemoryPatternStore is an in-memory implementation of the PatternStore
// interface, used by the CLI and in tests. The mutex makes match-count
// increments atomic per hash.
type MemoryPatternStore struct {
	bundles map[string]*core.PatternBundle
	order   map[string]int // insertion order, for deterministic tie-breaks
	next    int
	mu      sync.RWMutex
	logger  *zap.Logger
}

// NewMemoryPatternStore creates a new in-memory pattern store
func NewMemoryPatternStore(logger *zap.Logger) *MemoryPatternStore {
	return &MemoryPatternStore{
		bundles: make(map[string]*core.PatternBundle),
		order:   make(map[string]int),
		logger:  logger,
	}
}

// GetByHash retrieves the bundle stored under an exact pattern hash
func (s *MemoryPatternStore) GetByHash(ctx context.Context, hash string) (*core.PatternBundle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bundle, ok := s.bundles[hash]
	if !ok {
		return nil, core.ErrPatternNotFound
	}
	copied := *bundle
	return &copied, nil
}

// GetByPlatform retrieves all bundles for a platform ordered by descending
// match count, oldest first on ties
func (s *MemoryPatternStore) GetByPlatform(ctx context.Context, platform core.Platform) ([]*core.PatternBundle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var bundles []*core.PatternBundle
	for _, bundle := range s.bundles {
		if bundle.Platform == platform {
			copied := *bundle
			bundles = append(bundles, &copied)
		}
	}

	sort.SliceStable(bundles, func(i, j int) bool {
		if bundles[i].MatchCount != bundles[j].MatchCount {
			return bundles[i].MatchCount > bundles[j].MatchCount
		}
		return s.order[bundles[i].PatternHash] < s.order[bundles[j].PatternHash]
	})

	return bundles, nil
}

// Upsert inserts a new bundle, or increments match count and touches
// last-matched on conflict by hash
func (s *MemoryPatternStore) Upsert(ctx context.Context, bundle *core.PatternBundle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.bundles[bundle.PatternHash]; ok {
		existing.MatchCount++
		existing.LastMatchedAt = time.Now()
		return nil
	}

	copied := *bundle
	s.bundles[bundle.PatternHash] = &copied
	s.order[bundle.PatternHash] = s.next
	s.next++
	return nil
}

// IncrementMatch bumps the match count for a hash
func (s *MemoryPatternStore) IncrementMatch(ctx context.Context, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bundle, ok := s.bundles[hash]
	if !ok {
		return core.ErrPatternNotFound
	}
	bundle.MatchCount++
	bundle.LastMatchedAt = time.Now()
	return nil
}

// Len reports the number of stored bundles
func (s *MemoryPatternStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bundles)
}
