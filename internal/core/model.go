package core

import (
	"encoding/json"
	"time"
)

// Platform identifies which automation platform a notification came from
type Platform string

const (
	PlatformZapier   Platform = "zapier"
	PlatformMake     Platform = "make"
	PlatformAirtable Platform = "airtable"
	PlatformBubble   Platform = "bubble"
	PlatformUnknown  Platform = "unknown"
)

// Category classifies what kind of notification this is
type Category string

const (
	CategoryUsageAlert  Category = "usage_alert"
	CategoryError       Category = "error"
	CategoryWarning     Category = "warning"
	CategoryBilling     Category = "billing"
	CategoryInfo        Category = "info"
	CategoryNotRelevant Category = "not_relevant"
	CategoryUnknown     Category = "unknown"
)

// Severity indicates how urgent an alert is
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
	SeverityNone     Severity = ""
)

// UnmarshalJSON accepts JSON null and the literal string "null" as no severity,
// since LLM responses use either form interchangeably.
func (s *Severity) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = SeverityNone
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == "null" {
		raw = ""
	}
	*s = Severity(raw)
	return nil
}

// Notification represents a single raw notification pulled from a user's inbox.
// It is immutable once received.
type Notification struct {
	SourceID   string
	Sender     string
	Subject    string
	Body       string
	ReceivedAt time.Time
}

// DetectionRules is the stored predicate used to recognize future notifications
// of the same shape. Kinds are combined with AND; an absent kind is vacuously
// satisfied.
type DetectionRules struct {
	// SenderContains matches if ANY listed term appears in the sender
	SenderContains []string `json:"sender_contains,omitempty"`
	// SubjectContains matches only if EVERY listed term appears in the subject
	SubjectContains []string `json:"subject_contains,omitempty"`
	// BodyContains matches only if EVERY listed term appears in the body
	BodyContains []string `json:"body_contains,omitempty"`
	// SubjectOr matches if ANY listed term appears in the subject
	SubjectOr []string `json:"subject_or,omitempty"`
	// BodyOr matches if ANY listed term appears in the body
	BodyOr []string `json:"body_or,omitempty"`
}

// Empty reports whether no predicate kinds are present. An empty rule matches
// everything, so callers must not store one.
func (r DetectionRules) Empty() bool {
	return len(r.SenderContains) == 0 &&
		len(r.SubjectContains) == 0 &&
		len(r.BodyContains) == 0 &&
		len(r.SubjectOr) == 0 &&
		len(r.BodyOr) == 0
}

// ExtractionRule pulls a single named value out of a notification
type ExtractionRule struct {
	Regex       string `json:"regex"`
	Source      string `json:"source"` // "subject" or "body"
	Description string `json:"description,omitempty"`
}

// PatternBundle is the unit persisted in the pattern store: a learned
// classification together with the rules needed to recognize and extract from
// future notifications of the same shape.
type PatternBundle struct {
	PatternHash     string
	Platform        Platform
	Category        Category
	Subcategory     string
	Severity        Severity
	DetectionRules  DetectionRules
	ExtractionRules map[string]ExtractionRule
	SummaryTemplate string
	ExampleSubject  string
	ExampleBody     string
	MatchCount      int64
	CreatedAt       time.Time
	LastMatchedAt   time.Time
}

// Provenance records which path produced a classified alert
type Provenance string

const (
	// ProvenanceCache means an exact pattern-hash hit
	ProvenanceCache Provenance = "cache"
	// ProvenanceRule means a stored detection rule matched structurally
	ProvenanceRule Provenance = "rule"
	// ProvenanceLearned means the fallback classifier created a new pattern
	ProvenanceLearned Provenance = "learned"
	// ProvenanceParser means the deterministic platform parser produced it
	ProvenanceParser Provenance = "parser"
	// ProvenanceDegraded means the fallback classifier failed and this is a
	// minimal placeholder alert
	ProvenanceDegraded Provenance = "degraded"
)

// ClassifiedAlert is the structured output of classification
type ClassifiedAlert struct {
	SourceID     string
	Platform     Platform
	Category     Category
	Subcategory  string
	Severity     Severity
	Summary      string
	ItemName     string
	ErrorMessage string
	// Threshold is the usage percentage (0-100) for usage alerts, nil otherwise
	Threshold   *int
	Fields      map[string]string
	PatternHash string
	Provenance  Provenance
	// ErrorNote carries the fallback failure description on degraded alerts
	ErrorNote  string
	Subject    string
	ReceivedAt time.Time
}

// ThresholdReading is one observed usage-percentage data point
type ThresholdReading struct {
	Platform         Platform
	ThresholdPercent int
	ObservedAt       time.Time
}

// Confidence is the qualitative reliability tier of a prediction
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// StatusBand is the urgency classification derived from days until breach
type StatusBand string

const (
	StatusHealthy  StatusBand = "healthy"
	StatusWarning  StatusBand = "warning"
	StatusCritical StatusBand = "critical"
	StatusOverage  StatusBand = "overage"
)

// Prediction is the projected limit breach for one platform. It is recomputed
// from scratch on every run and is idempotent given the same input series.
type Prediction struct {
	Platform            Platform
	Confidence          Confidence
	Message             string
	DataPoints          int
	ProjectedBreachDate *time.Time
	VelocityPerDay      *float64
	DaysUntilBreach     int
	Status              StatusBand
	LastThreshold       int
	LastReadingAt       time.Time
}

// TrendDirection classifies how the usage growth rate is changing
type TrendDirection string

const (
	TrendAccelerating TrendDirection = "accelerating"
	TrendDecelerating TrendDirection = "decelerating"
	TrendStable       TrendDirection = "stable"
	TrendInsufficient TrendDirection = "insufficient_data"
)

// SeasonalityReport flags recurring monthly usage peaks
type SeasonalityReport struct {
	Seasonal  bool
	PeakMonth string
	Message   string
}

// Recommendation is the suggested action for a prediction
type Recommendation struct {
	Action  string
	Message string
}
