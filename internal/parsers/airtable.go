package parsers

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/limitwatch/limitwatch/internal/core"
)

// Airtable sends from airtable.com (including sync.airtable.com) and
// airtableemail.com for automation-generated mail. Automations alert at 80%,
// 90% and 100%; AI credits at 75%. Error mail covers automation failures, API
// limits, payment and deprecations.

var (
	airtablePercentPattern    = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%`)
	airtableUsagePattern      = regexp.MustCompile(`([\d,]+)\s*(?:of|/)\s*([\d,]+)`)
	airtablePlanPattern       = regexp.MustCompile(`(?i)\b(Free|Plus|Pro|Enterprise)\s*(?:plan)?`)
	airtableAutomationPattern = regexp.MustCompile(`(?i)automation\s+['"]?([^'"\n]+?)['"]?\s+has\s+failed`)
	airtableErrorCountPattern = regexp.MustCompile(`(?i)failed\s+(\d+)\s+times?`)
)

func isAirtableNotification(n *core.Notification) bool {
	from := strings.ToLower(n.Sender)
	return strings.Contains(from, "airtable.com") || strings.Contains(from, "airtableemail.com")
}

func parseAirtable(n *core.Notification) *core.ClassifiedAlert {
	if a := parseAirtableError(n); a != nil {
		return a
	}

	bodyLower := strings.ToLower(n.Body)

	var threshold int
	var subcategory string

	if m := airtablePercentPattern.FindStringSubmatch(n.Body); m != nil {
		percent, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			switch {
			case percent >= 100:
				threshold = 100
				subcategory = "limit_reached"
			case percent >= 90:
				threshold = 90
				subcategory = "critical"
			case percent >= 80:
				threshold = 80
				subcategory = "warning"
			}
		}
	}

	if strings.Contains(bodyLower, "daily limit") || strings.Contains(bodyLower, "sending limit") {
		if threshold == 0 {
			threshold = 100
		}
		subcategory = "email_limit"
	} else if strings.Contains(bodyLower, "usage") &&
		(strings.Contains(bodyLower, "approaching") || strings.Contains(bodyLower, "nearing")) {
		if threshold == 0 {
			threshold = 80
		}
		subcategory = "warning"
	}

	if threshold == 0 {
		return nil
	}

	severity := core.SeverityWarning
	if threshold >= 100 {
		severity = core.SeverityCritical
	}

	a := alert(n, core.PlatformAirtable, core.CategoryUsageAlert, subcategory, severity)
	a.Threshold = intPtr(threshold)
	a.Summary = fmt.Sprintf("Airtable usage at %d%%", threshold)

	if m := airtableUsagePattern.FindStringSubmatch(n.Body); m != nil {
		if current, ok := parseCount(m[1]); ok {
			a.Fields["usage_current"] = fmt.Sprintf("%d", current)
		}
		if limit, ok := parseCount(m[2]); ok {
			a.Fields["usage_limit"] = fmt.Sprintf("%d", limit)
		}
	}
	if m := airtablePlanPattern.FindStringSubmatch(n.Body); m != nil {
		a.Fields["plan_name"] = m[1]
	}

	return a
}

func parseAirtableError(n *core.Notification) *core.ClassifiedAlert {
	subjectLower := strings.ToLower(n.Subject)
	bodyLower := strings.ToLower(n.Body)

	// Payment failed: workspace downgrades to Free after 14 days
	if strings.Contains(subjectLower, "unable to process") ||
		strings.Contains(subjectLower, "payment") ||
		strings.Contains(bodyLower, "moved to the airtable free plan") ||
		strings.Contains(bodyLower, "no longer have access to paid") {
		a := alert(n, core.PlatformAirtable, core.CategoryBilling, "payment_failed", core.SeverityCritical)
		a.ErrorMessage = "Payment failed - workspace downgraded to Free plan"
		a.Summary = a.ErrorMessage
		return a
	}

	if strings.Contains(subjectLower, "api key deprecation") ||
		strings.Contains(subjectLower, "deprecation") ||
		strings.Contains(bodyLower, "legacy airtable api key") ||
		strings.Contains(bodyLower, "no longer be able to create") {
		a := alert(n, core.PlatformAirtable, core.CategoryError, "api_deprecation", core.SeverityWarning)
		a.ErrorMessage = "API key deprecation - migration to new authentication required"
		a.Summary = a.ErrorMessage
		return a
	}

	if strings.Contains(bodyLower, "ai credit") &&
		(strings.Contains(bodyLower, "75%") || strings.Contains(bodyLower, "exceeds")) {
		a := alert(n, core.PlatformAirtable, core.CategoryError, "ai_credit_limit", core.SeverityWarning)
		a.ErrorMessage = "AI credit usage exceeded 75% of workspace limit"
		a.Summary = a.ErrorMessage
		return a
	}

	if strings.Contains(bodyLower, "email") &&
		(strings.Contains(bodyLower, "limit") || strings.Contains(bodyLower, "daily limit")) {
		a := alert(n, core.PlatformAirtable, core.CategoryError, "email_limit", core.SeverityWarning)
		a.ErrorMessage = "Approaching daily email send limit"
		a.Summary = a.ErrorMessage
		return a
	}

	// Automation failure notifications cannot be disabled while the
	// automation is on, so these arrive reliably
	if strings.Contains(subjectLower, "failed") ||
		(strings.Contains(bodyLower, "automation") && strings.Contains(bodyLower, "failed")) {
		a := alert(n, core.PlatformAirtable, core.CategoryError, "automation_failure", core.SeverityCritical)
		a.ItemName = extractAirtableAutomationName(n.Subject, n.Body)
		if count := extractAirtableErrorCount(n.Body); count > 0 {
			a.ErrorMessage = fmt.Sprintf("Automation failed %d times", count)
			a.Fields["error_count"] = fmt.Sprintf("%d", count)
		} else {
			a.ErrorMessage = "Automation execution failed"
		}
		a.Summary = a.ErrorMessage
		return a
	}

	if strings.Contains(subjectLower, "api") &&
		(strings.Contains(subjectLower, "limit") || strings.Contains(bodyLower, "limit")) {
		a := alert(n, core.PlatformAirtable, core.CategoryError, "api_limit", core.SeverityWarning)
		a.ErrorMessage = "API billing plan limit exceeded"
		a.Summary = a.ErrorMessage
		return a
	}

	return nil
}

func extractAirtableAutomationName(subject, body string) string {
	if m := airtableAutomationPattern.FindStringSubmatch(subject); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := airtableAutomationPattern.FindStringSubmatch(body); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func extractAirtableErrorCount(body string) int {
	m := airtableErrorCountPattern.FindStringSubmatch(body)
	if m == nil {
		return 0
	}
	count, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return count
}
