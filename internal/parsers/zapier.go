package parsers

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/limitwatch/limitwatch/internal/core"
)

// Zapier sends usage alerts from contact@zapier.com at the 80% warning,
// 100% limit-reached and overage marks.

var (
	zapierUsagePattern = regexp.MustCompile(`(?i)([\d,]+)\s*(?:of|/)\s*([\d,]+)\s*(?:task|zap)`)
	zapierPlanPattern  = regexp.MustCompile(`(?i)\b(Free|Starter|Professional|Team|Company|Enterprise)\s*(?:plan)?`)
)

func isZapierNotification(n *core.Notification) bool {
	from := strings.ToLower(n.Sender)
	return strings.Contains(from, "contact@zapier.com") || strings.Contains(from, "zapier.com")
}

func parseZapier(n *core.Notification) *core.ClassifiedAlert {
	subject := n.Subject
	body := n.Body

	var threshold int
	var subcategory string

	switch {
	case strings.Contains(subject, "Nearing") ||
		strings.Contains(body, "80% of your") || strings.Contains(body, "over 80%"):
		threshold = 80
		subcategory = "warning"
	case strings.Contains(subject, "reached your task limit") ||
		strings.Contains(body, "reached your task limit"):
		threshold = 100
		subcategory = "limit_reached"
	case strings.Contains(subject, "above your plan") || strings.Contains(body, "surpassed your"):
		threshold = 100
		subcategory = "overage"
	default:
		return nil // not a usage alert
	}

	severity := core.SeverityWarning
	if threshold >= 100 {
		severity = core.SeverityCritical
	}

	a := alert(n, core.PlatformZapier, core.CategoryUsageAlert, subcategory, severity)
	a.Threshold = intPtr(threshold)
	a.Summary = fmt.Sprintf("Zapier task usage at %d%%", threshold)

	if m := zapierUsagePattern.FindStringSubmatch(body); m != nil {
		if current, ok := parseCount(m[1]); ok {
			a.Fields["usage_current"] = fmt.Sprintf("%d", current)
		}
		if limit, ok := parseCount(m[2]); ok {
			a.Fields["usage_limit"] = fmt.Sprintf("%d", limit)
		}
	}
	if m := zapierPlanPattern.FindStringSubmatch(body); m != nil {
		a.Fields["plan_name"] = m[1]
	}

	return a
}
