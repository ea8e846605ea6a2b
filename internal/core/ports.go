package core

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// ErrPatternNotFound is returned by pattern stores when no bundle exists for a hash
var ErrPatternNotFound = errors.New("pattern not found")

// PatternStore is the keyed cache of learned pattern bundles. Implementations
// must make IncrementMatch atomic per hash so concurrent matches never lose
// updates.
type PatternStore interface {
	// GetByHash retrieves the bundle stored under an exact pattern hash,
	// or ErrPatternNotFound
	GetByHash(ctx context.Context, hash string) (*PatternBundle, error)

	// GetByPlatform retrieves all bundles for a platform, ordered by
	// descending match count so hot rules are checked first
	GetByPlatform(ctx context.Context, platform Platform) ([]*PatternBundle, error)

	// Upsert inserts a new bundle, or increments match count and touches
	// last-matched on conflict by hash
	Upsert(ctx context.Context, bundle *PatternBundle) error

	// IncrementMatch bumps the match count for a hash
	IncrementMatch(ctx context.Context, hash string) error
}

// ClassificationRequest is the bounded payload sent to the fallback classifier
type ClassificationRequest struct {
	PlatformHint Platform
	Sender       string
	Subject      string
	Body         string
}

// PatternSpec is the reusable rule bundle returned by the fallback classifier
type PatternSpec struct {
	Category        Category                  `json:"category"`
	Subcategory     string                    `json:"subcategory"`
	Severity        Severity                  `json:"severity"`
	DetectionRules  DetectionRules            `json:"detection_rules"`
	ExtractionRules map[string]ExtractionRule `json:"extraction_rules"`
	SummaryTemplate string                    `json:"summary_template"`
	Reason          string                    `json:"reason,omitempty"`
}

// LooseString accepts both JSON strings and bare numbers, since classifier
// output is not guaranteed to quote numeric fields
type LooseString string

// UnmarshalJSON implements json.Unmarshaler
func (s *LooseString) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*s = ""
		return nil
	}
	if strings.HasPrefix(trimmed, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = LooseString(str)
		return nil
	}
	*s = LooseString(trimmed)
	return nil
}

// ExtractedFields holds the per-notification values the fallback classifier
// pulled out of this specific notification
type ExtractedFields struct {
	ItemName     string      `json:"item_name,omitempty"`
	ErrorMessage string      `json:"error_message,omitempty"`
	Threshold    LooseString `json:"threshold,omitempty"`
	Summary      string      `json:"summary,omitempty"`
}

// ClassificationResponse is the structured fallback classifier output
type ClassificationResponse struct {
	Pattern   PatternSpec     `json:"pattern"`
	Extracted ExtractedFields `json:"extracted"`
}

// FallbackClassifier is the expensive general-purpose classifier invoked only
// on a cache miss. It must be treated as unreliable: transient errors, rate
// limits and malformed output are all expected.
type FallbackClassifier interface {
	ClassifyNotification(ctx context.Context, req *ClassificationRequest) (*ClassificationResponse, error)
}

// AlertSink receives classified alerts for durable storage, keyed for
// idempotent upsert by (userID, sourceID)
type AlertSink interface {
	SaveAlert(ctx context.Context, userID string, alert *ClassifiedAlert) error
}

// ReadingSource supplies the predictor's input series: all usage-alert
// threshold readings for one platform, for one user
type ReadingSource interface {
	ThresholdReadings(ctx context.Context, userID string, platform Platform) ([]ThresholdReading, error)
}
