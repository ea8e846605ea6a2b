package core

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
)

const (
	// fallbackBodyLimit bounds how much body text is sent to the fallback classifier
	fallbackBodyLimit = 2000
	// exampleSubjectLimit / exampleBodyLimit bound the human-audit snippets stored
	// on a learned pattern
	exampleSubjectLimit = 200
	exampleBodyLimit    = 500
)

// ClassifierService is the core classification orchestrator. It sequences
// platform detection, the learned pattern cache and the fallback classifier,
// and writes newly learned patterns back so the same notification shape is
// recognized for free next time.
type ClassifierService struct {
	store        PatternStore
	fallback     FallbackClassifier
	logger       *zap.Logger
	mutedSenders []string
}

// NewClassifierService creates a new classifier service
func NewClassifierService(
	store PatternStore,
	fallback FallbackClassifier,
	logger *zap.Logger,
	mutedSenders []string,
) *ClassifierService {
	return &ClassifierService{
		store:        store,
		fallback:     fallback,
		logger:       logger,
		mutedSenders: mutedSenders,
	}
}

// isMuted checks if the sender matches a user-configured muted sender
func (s *ClassifierService) isMuted(sender string) bool {
	from := strings.ToLower(sender)
	for _, muted := range s.mutedSenders {
		if muted != "" && strings.Contains(from, strings.ToLower(muted)) {
			return true
		}
	}
	return false
}

// Classify runs one notification through the classification state machine.
// A nil alert with a nil error means the notification was discarded as not
// actionable.
func (s *ClassifierService) Classify(ctx context.Context, n *Notification) (*ClassifiedAlert, error) {
	platform := DetectPlatform(n)
	if platform == PlatformUnknown {
		s.logger.Debug("Skipping notification with no platform keywords",
			zap.String("source_id", n.SourceID),
			zap.String("sender", n.Sender))
		return nil, nil
	}

	if s.isMuted(n.Sender) {
		s.logger.Info("Skipping notification from muted sender",
			zap.String("source_id", n.SourceID),
			zap.String("sender", n.Sender))
		return nil, nil
	}

	// One snapshot of this platform's bundles serves both the noise check and
	// the rule scan, so a run sees a consistent view of the store
	bundles, err := s.store.GetByPlatform(ctx, platform)
	if err != nil {
		s.logger.Error("Failed to load patterns for platform",
			zap.String("platform", string(platform)),
			zap.Error(err))
		bundles = nil
	}

	// Learned noise is free: no hash, no extraction, no fallback call
	for _, bundle := range bundles {
		if bundle.Category != CategoryNotRelevant {
			continue
		}
		if MatchesDetectionRules(n, bundle.DetectionRules) {
			s.recordMatch(ctx, bundle.PatternHash)
			s.logger.Debug("Skipping known noise",
				zap.String("source_id", n.SourceID),
				zap.String("subcategory", bundle.Subcategory),
				zap.Int64("match_count", bundle.MatchCount+1))
			return nil, nil
		}
	}

	hash := PatternHash(n)

	if bundle, err := s.store.GetByHash(ctx, hash); err == nil {
		s.recordMatch(ctx, hash)
		if bundle.Category == CategoryNotRelevant {
			s.logger.Debug("Exact pattern match is not relevant, skipping",
				zap.String("source_id", n.SourceID),
				zap.String("pattern_hash", hash))
			return nil, nil
		}
		s.logger.Debug("Exact pattern match",
			zap.String("source_id", n.SourceID),
			zap.String("pattern_hash", hash),
			zap.String("category", string(bundle.Category)))
		return s.alertFromBundle(n, bundle, ProvenanceCache), nil
	} else if err != ErrPatternNotFound {
		s.logger.Error("Failed to look up pattern by hash", zap.Error(err))
	}

	// Bundles arrive ordered by descending match count; first structural
	// match wins
	for _, bundle := range bundles {
		if bundle.Category == CategoryNotRelevant {
			continue
		}
		if MatchesDetectionRules(n, bundle.DetectionRules) {
			s.recordMatch(ctx, bundle.PatternHash)
			s.logger.Debug("Detection rule match",
				zap.String("source_id", n.SourceID),
				zap.String("pattern_hash", bundle.PatternHash),
				zap.String("category", string(bundle.Category)))
			return s.alertFromBundle(n, bundle, ProvenanceRule), nil
		}
	}

	return s.classifyWithFallback(ctx, n, platform, hash)
}

// ClassifyAll processes a batch. Notifications are independent: a failure on
// one never aborts the others, and discarded notifications are simply absent
// from the output.
func (s *ClassifierService) ClassifyAll(ctx context.Context, notifications []*Notification) []*ClassifiedAlert {
	alerts := make([]*ClassifiedAlert, 0, len(notifications))

	for _, n := range notifications {
		alert, err := s.Classify(ctx, n)
		if err != nil {
			s.logger.Error("Failed to classify notification",
				zap.String("source_id", n.SourceID),
				zap.Error(err))
			continue
		}
		if alert != nil {
			alerts = append(alerts, alert)
		}
	}

	return alerts
}

// classifyWithFallback invokes the fallback classifier and persists whatever
// pattern it returns, including not_relevant ones. This is the only way new
// knowledge enters the pattern store.
func (s *ClassifierService) classifyWithFallback(ctx context.Context, n *Notification, platform Platform, hash string) (*ClassifiedAlert, error) {
	req := &ClassificationRequest{
		PlatformHint: platform,
		Sender:       n.Sender,
		Subject:      n.Subject,
		Body:         truncate(n.Body, fallbackBodyLimit),
	}

	resp, err := s.fallback.ClassifyNotification(ctx, req)
	if err != nil {
		s.logger.Error("Fallback classification failed",
			zap.String("source_id", n.SourceID),
			zap.String("platform", string(platform)),
			zap.Error(err))
		return &ClassifiedAlert{
			SourceID:   n.SourceID,
			Platform:   platform,
			Category:   CategoryUnknown,
			Summary:    fmt.Sprintf("Unclassified %s notification", platform),
			Provenance: ProvenanceDegraded,
			ErrorNote:  err.Error(),
			Subject:    n.Subject,
			ReceivedAt: n.ReceivedAt,
		}, nil
	}

	now := time.Now()
	bundle := &PatternBundle{
		PatternHash:     hash,
		Platform:        platform,
		Category:        resp.Pattern.Category,
		Subcategory:     resp.Pattern.Subcategory,
		Severity:        resp.Pattern.Severity,
		DetectionRules:  resp.Pattern.DetectionRules,
		ExtractionRules: resp.Pattern.ExtractionRules,
		SummaryTemplate: resp.Pattern.SummaryTemplate,
		ExampleSubject:  truncate(n.Subject, exampleSubjectLimit),
		ExampleBody:     truncate(n.Body, exampleBodyLimit),
		MatchCount:      1,
		CreatedAt:       now,
		LastMatchedAt:   now,
	}

	// Losing a learned pattern only costs a repeated fallback call later, so a
	// store failure must not fail this notification
	if err := s.store.Upsert(ctx, bundle); err != nil {
		s.logger.Error("Failed to persist learned pattern",
			zap.String("pattern_hash", hash),
			zap.Error(err))
	}

	if resp.Pattern.Category == CategoryNotRelevant {
		s.logger.Info("Learned noise pattern",
			zap.String("sender", n.Sender),
			zap.String("subcategory", resp.Pattern.Subcategory),
			zap.String("reason", resp.Pattern.Reason))
		return nil, nil
	}

	s.logger.Info("New pattern created",
		zap.String("pattern_hash", hash),
		zap.String("category", string(resp.Pattern.Category)),
		zap.String("subcategory", resp.Pattern.Subcategory))

	summary := resp.Extracted.Summary
	if summary == "" {
		summary = fmt.Sprintf("%s from %s", resp.Pattern.Category, platform)
	}

	return &ClassifiedAlert{
		SourceID:     n.SourceID,
		Platform:     platform,
		Category:     resp.Pattern.Category,
		Subcategory:  resp.Pattern.Subcategory,
		Severity:     resp.Pattern.Severity,
		Summary:      summary,
		ItemName:     resp.Extracted.ItemName,
		ErrorMessage: resp.Extracted.ErrorMessage,
		Threshold:    parseThreshold(string(resp.Extracted.Threshold)),
		PatternHash:  hash,
		Provenance:   ProvenanceLearned,
		Subject:      n.Subject,
		ReceivedAt:   n.ReceivedAt,
	}, nil
}

// alertFromBundle builds an alert from a matched bundle by running its
// extraction rules
func (s *ClassifierService) alertFromBundle(n *Notification, bundle *PatternBundle, provenance Provenance) *ClassifiedAlert {
	fields, summary := ApplyExtraction(n, bundle)

	return &ClassifiedAlert{
		SourceID:     n.SourceID,
		Platform:     bundle.Platform,
		Category:     bundle.Category,
		Subcategory:  bundle.Subcategory,
		Severity:     bundle.Severity,
		Summary:      summary,
		ItemName:     fields["item_name"],
		ErrorMessage: fields["error_message"],
		Threshold:    parseThreshold(fields["threshold"]),
		Fields:       fields,
		PatternHash:  bundle.PatternHash,
		Provenance:   provenance,
		Subject:      n.Subject,
		ReceivedAt:   n.ReceivedAt,
	}
}

// recordMatch increments a bundle's match count, logging rather than failing
// on error
func (s *ClassifierService) recordMatch(ctx context.Context, hash string) {
	if err := s.store.IncrementMatch(ctx, hash); err != nil {
		s.logger.Error("Failed to increment pattern match count",
			zap.String("pattern_hash", hash),
			zap.Error(err))
	}
}

func parseThreshold(raw string) *int {
	raw = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), "%"))
	if raw == "" {
		return nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 || value > 100 {
		return nil
	}
	return &value
}

// truncate cuts text to a byte budget without splitting a UTF-8 sequence
func truncate(text string, limit int) string {
	if limit <= 0 || len(text) <= limit {
		return text
	}
	truncated := text[:limit]
	for !utf8.ValidString(truncated) && len(truncated) > 0 {
		truncated = truncated[:len(truncated)-1]
	}
	return truncated
}
