package parsers

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/limitwatch/limitwatch/internal/core"
)

// Make (formerly Integromat) sends from make.com and its regional zones, plus
// integromat.com for legacy accounts. Usage alerts fire at 75%, 90% and 100%;
// error mail covers scenario failures, connection issues and payment problems.
// "Operations" were renamed to "credits" in August 2024, so both terms match.

var (
	makePercentPattern  = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%`)
	makeUsagePattern    = regexp.MustCompile(`(?i)([\d,.]+)\s*(?:of|/)\s*([\d,.]+)\s*(?:operation|credit|ops)`)
	makePlanPattern     = regexp.MustCompile(`(?i)\b(Free|Core|Pro|Teams|Enterprise)\s*(?:plan)?`)
	makeOrgPattern      = regexp.MustCompile(`(?i)organization[:\s]+["']?([^"'\n]+)["']?`)
	makeScenarioPattern = regexp.MustCompile(`(?i)scenario\s+['"]([^'"]+)['"]`)
	makeQuotedFailure   = regexp.MustCompile(`(?i)['"]([^'"]+)['"]\s+(?:failed|error)`)
	makeConnPattern     = regexp.MustCompile(`(?i)connection\s+['"]([^'"]+)['"]`)
	makeConnSuffix      = regexp.MustCompile(`(?i)['"]([^'"]+)['"]\s+(?:connection|account)`)
	makeErrorMsgPattern = regexp.MustCompile(`(?i)(?:error|failed|reason)[:\s]+([^\n]+)`)
)

func isMakeNotification(n *core.Notification) bool {
	from := strings.ToLower(n.Sender)
	body := strings.ToLower(n.Body)

	fromMake := strings.Contains(from, "make.com") || strings.Contains(from, "integromat.com")

	// Forwarded mail keeps the platform's links in the body even when the
	// sender is rewritten
	bodyHasMake := strings.Contains(body, "us1.make.com") ||
		strings.Contains(body, "eu1.make.com") ||
		strings.Contains(body, "mail1.make.com") ||
		strings.Contains(body, "cdn.make.com") ||
		(strings.Contains(body, "make.com") && strings.Contains(body, "scenario"))

	return fromMake || bodyHasMake
}

func parseMake(n *core.Notification) *core.ClassifiedAlert {
	// Errors take priority over usage alerts
	if a := parseMakeError(n); a != nil {
		return a
	}

	subjectLower := strings.ToLower(n.Subject)
	bodyLower := strings.ToLower(n.Body)

	var threshold int
	var subcategory string

	if m := makePercentPattern.FindStringSubmatch(n.Body); m != nil {
		percent, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			switch {
			case percent >= 100:
				threshold = 100
				subcategory = "limit_reached"
			case percent >= 90:
				threshold = 90
				subcategory = "critical"
			case percent >= 75:
				threshold = 75
				subcategory = "warning"
			}
		}
	}

	if threshold == 0 {
		switch {
		case strings.Contains(subjectLower, "reached") ||
			strings.Contains(subjectLower, "exceeded") ||
			strings.Contains(bodyLower, "paused"):
			threshold = 100
			subcategory = "limit_reached"
		case strings.Contains(subjectLower, "approaching") ||
			strings.Contains(subjectLower, "nearing"):
			threshold = 75
			subcategory = "warning"
		}
	}

	if threshold == 0 {
		return nil // not a usage alert or error
	}

	severity := core.SeverityWarning
	if threshold >= 100 {
		severity = core.SeverityCritical
	}

	a := alert(n, core.PlatformMake, core.CategoryUsageAlert, subcategory, severity)
	a.Threshold = intPtr(threshold)
	a.Summary = fmt.Sprintf("Make usage at %d%%", threshold)

	if m := makeUsagePattern.FindStringSubmatch(n.Body); m != nil {
		if current, ok := parseCount(m[1]); ok {
			a.Fields["usage_current"] = fmt.Sprintf("%d", current)
		}
		if limit, ok := parseCount(m[2]); ok {
			a.Fields["usage_limit"] = fmt.Sprintf("%d", limit)
		}
	}
	if m := makePlanPattern.FindStringSubmatch(n.Body); m != nil {
		a.Fields["plan_name"] = m[1]
	}
	if m := makeOrgPattern.FindStringSubmatch(n.Body); m != nil {
		a.Fields["organization"] = strings.TrimSpace(m[1])
	}

	return a
}

func parseMakeError(n *core.Notification) *core.ClassifiedAlert {
	subjectLower := strings.ToLower(n.Subject)
	bodyLower := strings.ToLower(n.Body)

	// Connection reauthorization needed: scenarios will start failing
	if strings.Contains(bodyLower, "failed to verify connection") ||
		strings.Contains(bodyLower, "invalid refresh token") ||
		strings.Contains(bodyLower, "please reauthorize") ||
		strings.Contains(subjectLower, "reauthorize") {
		a := alert(n, core.PlatformMake, core.CategoryError, "connection_reauth", core.SeverityCritical)
		a.ItemName = extractMakeConnectionName(n.Body)
		a.ErrorMessage = "Connection authentication failed - reauthorization required"
		a.Summary = a.ErrorMessage
		return a
	}

	// Scenario deactivated: automations stopped
	if strings.Contains(subjectLower, "has been stopped") ||
		strings.Contains(subjectLower, "deactivated") ||
		strings.Contains(bodyLower, "scenario has been stopped") ||
		strings.Contains(bodyLower, "disabled due to") {
		a := alert(n, core.PlatformMake, core.CategoryError, "scenario_deactivated", core.SeverityCritical)
		a.ItemName = extractMakeScenarioName(n.Subject, n.Body)
		a.ErrorMessage = "Scenario was automatically stopped due to repeated errors"
		a.Summary = a.ErrorMessage
		return a
	}

	// Payment failed: 7-day grace period before suspension
	if (strings.Contains(subjectLower, "payment") &&
		(strings.Contains(subjectLower, "failed") || strings.Contains(subjectLower, "problem"))) ||
		strings.Contains(bodyLower, "could not be processed") ||
		strings.Contains(bodyLower, "payment method") {
		a := alert(n, core.PlatformMake, core.CategoryBilling, "payment_failed", core.SeverityCritical)
		a.ErrorMessage = "Payment failed - 7-day grace period to update payment method"
		a.Summary = a.ErrorMessage
		return a
	}

	if strings.Contains(bodyLower, "limit on extra operations") ||
		strings.Contains(bodyLower, "auto-purchasing") {
		a := alert(n, core.PlatformMake, core.CategoryError, "extra_ops_limit", core.SeverityWarning)
		a.ErrorMessage = "Extra operations auto-purchasing limit reached"
		a.Summary = a.ErrorMessage
		return a
	}

	if strings.Contains(subjectLower, "failed") || strings.Contains(subjectLower, "error") ||
		strings.Contains(bodyLower, "execution failed") ||
		strings.Contains(bodyLower, "encountered an error") {
		subcategory := "scenario_failure"
		if strings.Contains(bodyLower, "incomplete") {
			subcategory = "incomplete_execution"
		}
		a := alert(n, core.PlatformMake, core.CategoryError, subcategory, core.SeverityWarning)
		a.ItemName = extractMakeScenarioName(n.Subject, n.Body)
		a.ErrorMessage = extractMakeErrorMessage(n.Body)
		if a.ErrorMessage == "" {
			a.ErrorMessage = "Scenario execution failed"
		}
		a.Summary = a.ErrorMessage
		return a
	}

	if strings.Contains(subjectLower, "warning") || strings.Contains(bodyLower, "warning in") {
		a := alert(n, core.PlatformMake, core.CategoryError, "scenario_warning", core.SeverityWarning)
		a.ItemName = extractMakeScenarioName(n.Subject, n.Body)
		a.ErrorMessage = "Scenario encountered a warning - review recommended"
		a.Summary = a.ErrorMessage
		return a
	}

	return nil
}

func extractMakeScenarioName(subject, body string) string {
	if m := makeScenarioPattern.FindStringSubmatch(subject); m != nil {
		return m[1]
	}
	if m := makeScenarioPattern.FindStringSubmatch(body); m != nil {
		return m[1]
	}
	if m := makeQuotedFailure.FindStringSubmatch(subject); m != nil {
		return m[1]
	}
	return ""
}

func extractMakeConnectionName(body string) string {
	if m := makeConnPattern.FindStringSubmatch(body); m != nil {
		return m[1]
	}
	if m := makeConnSuffix.FindStringSubmatch(body); m != nil {
		return m[1]
	}
	return ""
}

func extractMakeErrorMessage(body string) string {
	m := makeErrorMsgPattern.FindStringSubmatch(body)
	if m == nil {
		return ""
	}
	msg := strings.TrimSpace(m[1])
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
