package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/limitwatch/limitwatch/internal/core"
)

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt(&core.ClassificationRequest{
		PlatformHint: core.PlatformZapier,
		Sender:       "contact@zapier.com",
		Subject:      "Task usage alert",
		Body:         "You've used 80% of your tasks.",
	})

	assert.Contains(t, prompt, "Platform (detected as): zapier")
	assert.Contains(t, prompt, "Sender: contact@zapier.com")
	assert.Contains(t, prompt, "Subject: Task usage alert")
	assert.Contains(t, prompt, "You've used 80% of your tasks.")
	assert.Contains(t, prompt, "Return ONLY the JSON")
}

func TestBuildPromptFillsBlanks(t *testing.T) {
	prompt := BuildPrompt(&core.ClassificationRequest{PlatformHint: core.PlatformMake})

	assert.Contains(t, prompt, "Sender: (unknown sender)")
	assert.Contains(t, prompt, "Subject: (no subject)")
}

const validResponse = `{
  "pattern": {
    "category": "usage_alert",
    "subcategory": "limit_80",
    "severity": "warning",
    "detection_rules": {
      "sender_contains": ["zapier.com"],
      "subject_contains": ["task"]
    },
    "extraction_rules": {
      "threshold": {"regex": "(\\d+)%", "source": "body", "description": "usage percentage"}
    },
    "summary_template": "Zapier tasks at {threshold}%"
  },
  "extracted": {
    "threshold": "80",
    "summary": "Zapier task usage at 80%"
  }
}`

func TestParseResponsePlainJSON(t *testing.T) {
	resp, err := ParseResponse(validResponse)

	require.NoError(t, err)
	assert.Equal(t, core.CategoryUsageAlert, resp.Pattern.Category)
	assert.Equal(t, "limit_80", resp.Pattern.Subcategory)
	assert.Equal(t, core.SeverityWarning, resp.Pattern.Severity)
	assert.Equal(t, []string{"zapier.com"}, resp.Pattern.DetectionRules.SenderContains)
	assert.Equal(t, "(\\d+)%", resp.Pattern.ExtractionRules["threshold"].Regex)
	assert.Equal(t, core.LooseString("80"), resp.Extracted.Threshold)
}

func TestParseResponseStripsMarkdownFences(t *testing.T) {
	for _, wrapped := range []string{
		"```json\n" + validResponse + "\n```",
		"```\n" + validResponse + "\n```",
	} {
		resp, err := ParseResponse(wrapped)
		require.NoError(t, err)
		assert.Equal(t, core.CategoryUsageAlert, resp.Pattern.Category)
	}
}

func TestParseResponseSalvagesBraceSpan(t *testing.T) {
	chatty := "Sure, here is the classification you asked for:\n" + validResponse + "\nLet me know if you need anything else."

	resp, err := ParseResponse(chatty)

	require.NoError(t, err)
	assert.Equal(t, core.CategoryUsageAlert, resp.Pattern.Category)
}

func TestParseResponseAcceptsNumericThreshold(t *testing.T) {
	resp, err := ParseResponse(`{
	  "pattern": {"category": "usage_alert"},
	  "extracted": {"threshold": 85}
	}`)

	require.NoError(t, err)
	assert.Equal(t, core.LooseString("85"), resp.Extracted.Threshold)
}

func TestParseResponseAcceptsNullSeverity(t *testing.T) {
	resp, err := ParseResponse(`{"pattern": {"category": "not_relevant", "severity": null}}`)

	require.NoError(t, err)
	assert.Equal(t, core.SeverityNone, resp.Pattern.Severity)
}

func TestParseResponseRejectsMissingCategory(t *testing.T) {
	_, err := ParseResponse(`{"pattern": {"subcategory": "newsletter"}}`)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing category")
}

func TestParseResponseRejectsGarbage(t *testing.T) {
	_, err := ParseResponse("I could not classify this email.")

	assert.Error(t, err)
}
