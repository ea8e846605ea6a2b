package parsers

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/limitwatch/limitwatch/internal/core"
)

// Bubble delivers via SendGrid, so sender matching alone is not enough; the
// body must carry a Bubble signature. Alerts cover workload-unit thresholds
// (75%, 100%), capacity and spike detection.

var (
	bubblePercentPattern  = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%`)
	bubbleWUPattern       = regexp.MustCompile(`(?i)([\d,]+)\s*(?:WU|workload\s*unit)`)
	bubbleCapacityPattern = regexp.MustCompile(`(?i)(\d+)\s*minutes?\s*(?:over\s*the\s*last|in\s*the\s*past)`)
	bubbleAppPattern      = regexp.MustCompile(`(?i)application\s+["']?([^"'\n]+?)["']?\s+has`)
	bubbleAppFallback     = regexp.MustCompile(`(?i)app\s+["']?([^"'\n]+)["']?`)
	bubblePlanPattern     = regexp.MustCompile(`(?i)\b(Free|Personal|Professional|Production|Dedicated)\s*(?:plan)?`)
)

func isBubbleNotification(n *core.Notification) bool {
	from := strings.ToLower(n.Sender)
	body := strings.ToLower(n.Body)

	return (strings.Contains(from, "bubble.io") || strings.Contains(from, "sendgrid")) &&
		(strings.Contains(body, "bubble") || strings.Contains(body, "workload") ||
			strings.Contains(body, "capacity"))
}

func parseBubble(n *core.Notification) *core.ClassifiedAlert {
	subjectLower := strings.ToLower(n.Subject)
	bodyLower := strings.ToLower(n.Body)

	var threshold int
	var subcategory string

	if m := bubblePercentPattern.FindStringSubmatch(n.Body); m != nil {
		percent, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			switch {
			case percent >= 100:
				threshold = 100
				subcategory = "limit_reached"
			case percent >= 75:
				threshold = 75
				subcategory = "warning"
			}
		}
	}

	switch {
	case strings.Contains(bodyLower, "maximum capacity") || strings.Contains(bodyLower, "hit its maximum"):
		if threshold == 0 {
			threshold = 100
		}
		subcategory = "capacity_exceeded"
	case strings.Contains(bodyLower, "spike") || strings.Contains(subjectLower, "spike"):
		subcategory = "spike_detection"
		if threshold == 0 {
			threshold = 75
		}
	case strings.Contains(bodyLower, "workload") &&
		(strings.Contains(bodyLower, "approaching") || strings.Contains(bodyLower, "nearing")):
		if threshold == 0 {
			threshold = 75
		}
		subcategory = "warning"
	}

	if threshold == 0 && subcategory == "" {
		return nil
	}
	if threshold == 0 {
		threshold = 100
	}

	// Capacity exhaustion means the app is refusing work right now
	severity := core.SeverityWarning
	if threshold >= 100 || subcategory == "capacity_exceeded" {
		severity = core.SeverityCritical
	}

	a := alert(n, core.PlatformBubble, core.CategoryUsageAlert, subcategory, severity)
	a.Threshold = intPtr(threshold)
	a.Summary = fmt.Sprintf("Bubble workload at %d%%", threshold)

	if m := bubbleWUPattern.FindStringSubmatch(n.Body); m != nil {
		if current, ok := parseCount(m[1]); ok {
			a.Fields["usage_current"] = fmt.Sprintf("%d", current)
		}
	}
	if m := bubbleCapacityPattern.FindStringSubmatch(n.Body); m != nil {
		a.Fields["capacity_minutes"] = m[1]
	}
	if m := bubbleAppPattern.FindStringSubmatch(n.Body); m != nil {
		a.ItemName = strings.TrimSpace(m[1])
	} else if m := bubbleAppFallback.FindStringSubmatch(n.Body); m != nil {
		a.ItemName = strings.TrimSpace(m[1])
	}
	if m := bubblePlanPattern.FindStringSubmatch(n.Body); m != nil {
		a.Fields["plan_name"] = m[1]
	}

	return a
}
