package core

import (
	"fmt"
	"regexp"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\{[A-Za-z0-9_]+\}`)

// ApplyExtraction runs a bundle's extraction rules against a notification and
// renders the summary template. Extraction is best-effort: a rule that fails
// to match or fails to compile simply omits its field.
func ApplyExtraction(n *Notification, bundle *PatternBundle) (map[string]string, string) {
	fields := make(map[string]string)

	for name, rule := range bundle.ExtractionRules {
		if rule.Regex == "" {
			continue
		}
		re, err := regexp.Compile("(?i)" + rule.Regex)
		if err != nil {
			continue
		}
		source := n.Body
		if rule.Source == "subject" {
			source = n.Subject
		}
		m := re.FindStringSubmatch(source)
		if len(m) > 1 && m[1] != "" {
			fields[name] = strings.TrimSpace(m[1])
		}
	}

	return fields, RenderSummary(bundle, fields)
}

// RenderSummary substitutes extracted field values into the bundle's summary
// template, then the fixed {platform}, {severity} and {category} placeholders.
// Placeholders with no value are replaced by the empty string.
func RenderSummary(bundle *PatternBundle, fields map[string]string) string {
	summary := bundle.SummaryTemplate
	if summary == "" {
		summary = fmt.Sprintf("%s from %s", bundle.Category, bundle.Platform)
	}

	for name, value := range fields {
		summary = strings.ReplaceAll(summary, "{"+name+"}", value)
	}
	summary = strings.ReplaceAll(summary, "{platform}", string(bundle.Platform))
	summary = strings.ReplaceAll(summary, "{severity}", string(bundle.Severity))
	summary = strings.ReplaceAll(summary, "{category}", string(bundle.Category))

	// Fields the rules never produced leave their placeholders behind
	summary = placeholderPattern.ReplaceAllString(summary, "")

	return strings.TrimSpace(summary)
}
