// Package parsers holds the deterministic, regex-based fallback parsers used
// when no learned pattern cache or fallback classifier is available. Both this
// path and the learned-cache path produce the same ClassifiedAlert shape.
package parsers

import (
	"sort"
	"strconv"
	"strings"

	"github.com/limitwatch/limitwatch/internal/core"
)

// IdentifyPlatform routes a notification to the platform whose deterministic
// parser claims it
func IdentifyPlatform(n *core.Notification) core.Platform {
	switch {
	case isZapierNotification(n):
		return core.PlatformZapier
	case isMakeNotification(n):
		return core.PlatformMake
	case isAirtableNotification(n):
		return core.PlatformAirtable
	case isBubbleNotification(n):
		return core.PlatformBubble
	default:
		return core.PlatformUnknown
	}
}

// Parse runs the platform-specific parser for a single notification. Returns
// nil when the notification is not an actionable alert.
func Parse(n *core.Notification) *core.ClassifiedAlert {
	switch IdentifyPlatform(n) {
	case core.PlatformZapier:
		return parseZapier(n)
	case core.PlatformMake:
		return parseMake(n)
	case core.PlatformAirtable:
		return parseAirtable(n)
	case core.PlatformBubble:
		return parseBubble(n)
	default:
		return nil
	}
}

// ParseAll parses a batch, dropping non-actionable notifications
func ParseAll(notifications []*core.Notification) []*core.ClassifiedAlert {
	var alerts []*core.ClassifiedAlert
	for _, n := range notifications {
		if alert := Parse(n); alert != nil {
			alerts = append(alerts, alert)
		}
	}
	return alerts
}

// GroupByPlatform buckets alerts by their platform
func GroupByPlatform(alerts []*core.ClassifiedAlert) map[core.Platform][]*core.ClassifiedAlert {
	grouped := make(map[core.Platform][]*core.ClassifiedAlert)
	for _, alert := range alerts {
		grouped[alert.Platform] = append(grouped[alert.Platform], alert)
	}
	return grouped
}

// Latest returns the most recent alert per platform
func Latest(alerts []*core.ClassifiedAlert) map[core.Platform]*core.ClassifiedAlert {
	grouped := GroupByPlatform(alerts)
	latest := make(map[core.Platform]*core.ClassifiedAlert, len(grouped))

	for platform, platformAlerts := range grouped {
		sorted := make([]*core.ClassifiedAlert, len(platformAlerts))
		copy(sorted, platformAlerts)
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].ReceivedAt.After(sorted[j].ReceivedAt)
		})
		latest[platform] = sorted[0]
	}

	return latest
}

// alert assembles the common parser output shape
func alert(n *core.Notification, platform core.Platform, category core.Category, subcategory string, severity core.Severity) *core.ClassifiedAlert {
	return &core.ClassifiedAlert{
		SourceID:    n.SourceID,
		Platform:    platform,
		Category:    category,
		Subcategory: subcategory,
		Severity:    severity,
		Fields:      make(map[string]string),
		Provenance:  core.ProvenanceParser,
		Subject:     n.Subject,
		ReceivedAt:  n.ReceivedAt,
	}
}

func intPtr(v int) *int {
	return &v
}

// parseCount strips thousands separators and parses an integer
func parseCount(raw string) (int, bool) {
	cleaned := strings.NewReplacer(",", "", ".", "").Replace(raw)
	value, err := strconv.Atoi(cleaned)
	if err != nil {
		return 0, false
	}
	return value, true
}
