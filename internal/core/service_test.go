package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubStore struct {
	bundles []*PatternBundle
	upserts int
}

func (s *stubStore) GetByHash(_ context.Context, hash string) (*PatternBundle, error) {
	for _, b := range s.bundles {
		if b.PatternHash == hash {
			return b, nil
		}
	}
	return nil, ErrPatternNotFound
}

func (s *stubStore) GetByPlatform(_ context.Context, platform Platform) ([]*PatternBundle, error) {
	var out []*PatternBundle
	for _, b := range s.bundles {
		if b.Platform == platform {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *stubStore) Upsert(_ context.Context, bundle *PatternBundle) error {
	s.upserts++
	for i, b := range s.bundles {
		if b.PatternHash == bundle.PatternHash {
			s.bundles[i].MatchCount++
			s.bundles[i].LastMatchedAt = bundle.LastMatchedAt
			return nil
		}
	}
	s.bundles = append(s.bundles, bundle)
	return nil
}

func (s *stubStore) IncrementMatch(_ context.Context, hash string) error {
	for _, b := range s.bundles {
		if b.PatternHash == hash {
			b.MatchCount++
			return nil
		}
	}
	return ErrPatternNotFound
}

type fakeFallback struct {
	resp  *ClassificationResponse
	err   error
	calls int
}

func (f *fakeFallback) ClassifyNotification(_ context.Context, _ *ClassificationRequest) (*ClassificationResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func usageAlertResponse() *ClassificationResponse {
	return &ClassificationResponse{
		Pattern: PatternSpec{
			Category:    CategoryUsageAlert,
			Subcategory: "task_limit",
			Severity:    SeverityWarning,
			DetectionRules: DetectionRules{
				SenderContains:  []string{"zapier.com"},
				SubjectContains: []string{"task"},
			},
			ExtractionRules: map[string]ExtractionRule{
				"threshold": {Regex: `used (\d+)% of`, Source: "body"},
			},
			SummaryTemplate: "Zapier tasks at {threshold}%",
		},
		Extracted: ExtractedFields{
			Threshold: "85",
			Summary:   "Zapier task usage at 85%",
		},
	}
}

func zapierNotification() *Notification {
	return &Notification{
		SourceID:   "msg-1",
		Sender:     "notifications@zapier.com",
		Subject:    "Task usage alert",
		Body:       "Your account has used 85% of your tasks this billing period.",
		ReceivedAt: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
	}
}

func TestClassifyUnknownPlatformIsDiscarded(t *testing.T) {
	store := &stubStore{}
	fallback := &fakeFallback{}
	svc := NewClassifierService(store, fallback, zap.NewNop(), nil)

	alert, err := svc.Classify(context.Background(), &Notification{
		Sender:  "boss@corp.example",
		Subject: "quarterly numbers",
		Body:    "see attached",
	})

	require.NoError(t, err)
	assert.Nil(t, alert)
	assert.Zero(t, fallback.calls)
}

func TestClassifyMutedSenderIsDiscarded(t *testing.T) {
	store := &stubStore{}
	fallback := &fakeFallback{}
	svc := NewClassifierService(store, fallback, zap.NewNop(), []string{"Zapier.com"})

	alert, err := svc.Classify(context.Background(), zapierNotification())

	require.NoError(t, err)
	assert.Nil(t, alert)
	assert.Zero(t, fallback.calls)
}

func TestClassifyLearnsNewPattern(t *testing.T) {
	store := &stubStore{}
	fallback := &fakeFallback{resp: usageAlertResponse()}
	svc := NewClassifierService(store, fallback, zap.NewNop(), nil)

	n := zapierNotification()
	alert, err := svc.Classify(context.Background(), n)

	require.NoError(t, err)
	require.NotNil(t, alert)
	assert.Equal(t, 1, fallback.calls)
	assert.Equal(t, PlatformZapier, alert.Platform)
	assert.Equal(t, CategoryUsageAlert, alert.Category)
	assert.Equal(t, "task_limit", alert.Subcategory)
	assert.Equal(t, ProvenanceLearned, alert.Provenance)
	assert.Equal(t, "Zapier task usage at 85%", alert.Summary)
	require.NotNil(t, alert.Threshold)
	assert.Equal(t, 85, *alert.Threshold)
	assert.Equal(t, PatternHash(n), alert.PatternHash)

	require.Len(t, store.bundles, 1)
	bundle := store.bundles[0]
	assert.Equal(t, PatternHash(n), bundle.PatternHash)
	assert.Equal(t, int64(1), bundle.MatchCount)
	assert.Equal(t, n.Subject, bundle.ExampleSubject)
}

func TestClassifySecondTimeHitsCache(t *testing.T) {
	store := &stubStore{}
	fallback := &fakeFallback{resp: usageAlertResponse()}
	svc := NewClassifierService(store, fallback, zap.NewNop(), nil)

	ctx := context.Background()
	_, err := svc.Classify(ctx, zapierNotification())
	require.NoError(t, err)

	alert, err := svc.Classify(ctx, zapierNotification())

	require.NoError(t, err)
	require.NotNil(t, alert)
	assert.Equal(t, 1, fallback.calls, "cache hit must not invoke the fallback again")
	assert.Equal(t, ProvenanceCache, alert.Provenance)
	assert.Equal(t, CategoryUsageAlert, alert.Category)
	require.NotNil(t, alert.Threshold)
	assert.Equal(t, 85, *alert.Threshold)
	assert.Equal(t, int64(2), store.bundles[0].MatchCount)
}

func TestClassifyMatchesStoredRuleOnNewShape(t *testing.T) {
	store := &stubStore{}
	fallback := &fakeFallback{resp: usageAlertResponse()}
	svc := NewClassifierService(store, fallback, zap.NewNop(), nil)

	ctx := context.Background()
	_, err := svc.Classify(ctx, zapierNotification())
	require.NoError(t, err)

	// Same structural rules, different wording, so the hash misses
	other := &Notification{
		SourceID: "msg-2",
		Sender:   "billing@zapier.com",
		Subject:  "Heads up about task limits",
		Body:     "Looks like you have used 92% of your tasks already this cycle.",
	}
	alert, err := svc.Classify(ctx, other)

	require.NoError(t, err)
	require.NotNil(t, alert)
	assert.Equal(t, 1, fallback.calls)
	assert.Equal(t, ProvenanceRule, alert.Provenance)
	assert.Equal(t, "Zapier tasks at 92%", alert.Summary)
	require.NotNil(t, alert.Threshold)
	assert.Equal(t, 92, *alert.Threshold)
	assert.Equal(t, int64(2), store.bundles[0].MatchCount)
}

func TestClassifyLearnsNoiseAndSkipsItAfterwards(t *testing.T) {
	store := &stubStore{}
	fallback := &fakeFallback{resp: &ClassificationResponse{
		Pattern: PatternSpec{
			Category:    CategoryNotRelevant,
			Subcategory: "newsletter",
			DetectionRules: DetectionRules{
				SenderContains:  []string{"zapier.com"},
				SubjectContains: []string{"automation inspiration"},
			},
			Reason: "marketing digest",
		},
	}}
	svc := NewClassifierService(store, fallback, zap.NewNop(), nil)

	ctx := context.Background()
	first := &Notification{
		SourceID: "news-1",
		Sender:   "hello@zapier.com",
		Subject:  "Your weekly automation inspiration",
		Body:     "Five Zaps our community loved this week.",
	}
	alert, err := svc.Classify(ctx, first)
	require.NoError(t, err)
	assert.Nil(t, alert)
	assert.Equal(t, 1, fallback.calls)
	require.Len(t, store.bundles, 1)
	assert.Equal(t, CategoryNotRelevant, store.bundles[0].Category)

	second := &Notification{
		SourceID: "news-2",
		Sender:   "hello@zapier.com",
		Subject:  "Your weekly automation inspiration",
		Body:     "Three more Zaps to try before the weekend.",
	}
	alert, err = svc.Classify(ctx, second)
	require.NoError(t, err)
	assert.Nil(t, alert)
	assert.Equal(t, 1, fallback.calls, "known noise must not reach the fallback")
	assert.Equal(t, int64(2), store.bundles[0].MatchCount)
}

func TestClassifyDegradesWhenFallbackFails(t *testing.T) {
	store := &stubStore{}
	fallback := &fakeFallback{err: errors.New("rate limited")}
	svc := NewClassifierService(store, fallback, zap.NewNop(), nil)

	alert, err := svc.Classify(context.Background(), zapierNotification())

	require.NoError(t, err)
	require.NotNil(t, alert)
	assert.Equal(t, ProvenanceDegraded, alert.Provenance)
	assert.Equal(t, CategoryUnknown, alert.Category)
	assert.Equal(t, "Unclassified zapier notification", alert.Summary)
	assert.Equal(t, "rate limited", alert.ErrorNote)
	assert.Empty(t, store.bundles, "a failed fallback must not learn anything")
}

func TestClassifyAllSkipsDiscardedNotifications(t *testing.T) {
	store := &stubStore{}
	fallback := &fakeFallback{resp: usageAlertResponse()}
	svc := NewClassifierService(store, fallback, zap.NewNop(), nil)

	alerts := svc.ClassifyAll(context.Background(), []*Notification{
		{Sender: "friend@example.com", Subject: "hi", Body: "catching up"},
		zapierNotification(),
	})

	require.Len(t, alerts, 1)
	assert.Equal(t, "msg-1", alerts[0].SourceID)
}

func TestParseThreshold(t *testing.T) {
	tests := []struct {
		raw  string
		want *int
	}{
		{"85", intPtr(85)},
		{" 85% ", intPtr(85)},
		{"0", intPtr(0)},
		{"100", intPtr(100)},
		{"", nil},
		{"101", nil},
		{"-5", nil},
		{"eighty", nil},
	}

	for _, tt := range tests {
		got := parseThreshold(tt.raw)
		if tt.want == nil {
			assert.Nil(t, got, "raw=%q", tt.raw)
		} else {
			require.NotNil(t, got, "raw=%q", tt.raw)
			assert.Equal(t, *tt.want, *got)
		}
	}
}

func TestTruncateRespectsUTF8Boundaries(t *testing.T) {
	text := "abécd" // é is two bytes
	assert.Equal(t, "ab", truncate(text, 3))
	assert.Equal(t, text, truncate(text, 100))
	assert.Equal(t, text, truncate(text, 0))
}

func intPtr(v int) *int { return &v }
