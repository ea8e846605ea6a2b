package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyExtraction(t *testing.T) {
	n := &Notification{
		Subject: "You've used 80% of your Zapier tasks",
		Body:    "Your account has used 600 of 750 tasks on the Starter plan.",
	}
	bundle := &PatternBundle{
		Platform: PlatformZapier,
		Category: CategoryUsageAlert,
		Severity: SeverityWarning,
		ExtractionRules: map[string]ExtractionRule{
			"threshold": {Regex: `used (\d+)% of`, Source: "subject"},
			"current":   {Regex: `used (\d+) of`, Source: "body"},
			"limit":     {Regex: `of (\d+) tasks`, Source: "body"},
			"plan":      {Regex: `on the (\w+) plan`, Source: "body"},
			"broken":    {Regex: `((unbalanced`, Source: "body"},
			"missing":   {Regex: `operations (\d+)`, Source: "body"},
		},
		SummaryTemplate: "{platform} tasks at {threshold}% ({current}/{limit}, {plan} plan){missing}",
	}

	fields, summary := ApplyExtraction(n, bundle)

	assert.Equal(t, "80", fields["threshold"])
	assert.Equal(t, "600", fields["current"])
	assert.Equal(t, "750", fields["limit"])
	assert.Equal(t, "Starter", fields["plan"])
	assert.NotContains(t, fields, "broken")
	assert.NotContains(t, fields, "missing")
	assert.Equal(t, "zapier tasks at 80% (600/750, Starter plan)", summary)
}

func TestApplyExtractionCaseInsensitiveRegex(t *testing.T) {
	n := &Notification{Body: "WORKLOAD AT 75% CAPACITY"}
	bundle := &PatternBundle{
		ExtractionRules: map[string]ExtractionRule{
			"threshold": {Regex: `workload at (\d+)%`},
		},
		SummaryTemplate: "capacity {threshold}%",
	}

	fields, summary := ApplyExtraction(n, bundle)

	assert.Equal(t, "75", fields["threshold"])
	assert.Equal(t, "capacity 75%", summary)
}

func TestRenderSummaryDefaultsWhenTemplateEmpty(t *testing.T) {
	bundle := &PatternBundle{Platform: PlatformMake, Category: CategoryError}

	assert.Equal(t, "error from make", RenderSummary(bundle, nil))
}

func TestRenderSummaryFixedPlaceholders(t *testing.T) {
	bundle := &PatternBundle{
		Platform:        PlatformBubble,
		Category:        CategoryWarning,
		Severity:        SeverityCritical,
		SummaryTemplate: "{severity} {category} on {platform}: {item}",
	}

	summary := RenderSummary(bundle, map[string]string{"item": "my-app"})

	assert.Equal(t, "critical warning on bubble: my-app", summary)
}

func TestRenderSummaryBlanksUnresolvedPlaceholders(t *testing.T) {
	bundle := &PatternBundle{SummaryTemplate: "usage at {threshold}% of {limit}"}

	assert.Equal(t, "usage at % of", RenderSummary(bundle, nil))
}
