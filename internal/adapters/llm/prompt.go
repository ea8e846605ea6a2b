// Package llm holds the instruction schema and response parsing shared by the
// fallback classifier providers. The instruction is a schema contract, not a
// vendor calling convention; each provider wraps it in its own API.
package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/limitwatch/limitwatch/internal/core"
)

const classificationInstructions = `You are analyzing an email that MIGHT be from a no-code/automation platform. Your job is to:
1. FIRST: Determine if this email is actually FROM the platform (relevant) or just MENTIONS it (not relevant)
2. If relevant: Classify the email type and create extraction patterns
3. If not relevant: Mark as not_relevant so we skip similar emails in the future

Return ONLY valid JSON with this exact structure:
{
  "pattern": {
    "category": "usage_alert|error|warning|billing|info|not_relevant",
    "subcategory": "string describing specific type (e.g., 'scenario_warning', 'limit_80', 'job_alert', 'newsletter')",
    "severity": "critical|warning|info|null",
    "detection_rules": {
      "sender_contains": ["keywords in sender email (for not_relevant, helps filter future emails)"],
      "subject_contains": ["keywords that MUST be in subject"],
      "body_contains": ["keywords that MUST be in body"],
      "subject_or": ["at least ONE of these in subject (optional)"],
      "body_or": ["at least ONE of these in body (optional)"]
    },
    "extraction_rules": {
      "item_name": {
        "regex": "regex with capturing group",
        "source": "body|subject",
        "description": "what this extracts"
      },
      "error_message": {
        "regex": "regex pattern",
        "source": "body",
        "description": "what this extracts"
      },
      "threshold": {
        "regex": "(\\d+)%",
        "source": "body",
        "description": "usage percentage"
      }
    },
    "summary_template": "Human-readable summary using {field_name} placeholders",
    "reason": "Why this was classified this way (especially important for not_relevant)"
  },
  "extracted": {
    "item_name": "actual value from this email",
    "error_message": "actual error if applicable",
    "threshold": "number if applicable",
    "summary": "human-readable one-liner for this specific email"
  }
}

Categories - BE STRICT, we only want actionable alerts:
- usage_alert: Hitting usage limits (80%, 90%, 100% of quota)
- error: Something FAILED (scenario error, zap failed, automation error, execution failed)
- warning: Specific issues needing attention (deprecated feature, breaking change)
- billing: Payment FAILED, subscription ending, overdue invoice
- not_relevant: EVERYTHING ELSE - this is the default for most emails

CRITICAL - Mark as "not_relevant" if ANY of these apply:
- Marketing emails (promotions, new features, announcements)
- Onboarding emails (welcome, verification, getting started)
- Community emails (newsletters, digests, support community updates)
- Invitations (invited to org, invited to collaborate)
- Informational (API token created, settings changed, general notifications)
- Success confirmations (scenario ran successfully, export complete)
- Job listings mentioning platforms
- Any email that doesn't indicate a PROBLEM or UPCOMING PROBLEM

We ONLY want emails that tell the user:
1. Something broke or failed
2. They're running out of quota
3. They're about to be charged unexpectedly
4. Something requires immediate action to prevent issues

For detection_rules:
- Include sender_contains for sender matching
- Include subject keywords that identify the email type
- Be specific so we can skip similar emails without AI next time

IMPORTANT: The summary should be SHORT (under 60 chars) and human-readable.`

// BuildPrompt renders the full classification prompt for one notification
func BuildPrompt(req *core.ClassificationRequest) string {
	sender := req.Sender
	if sender == "" {
		sender = "(unknown sender)"
	}
	subject := req.Subject
	if subject == "" {
		subject = "(no subject)"
	}

	return fmt.Sprintf(`%s

Platform (detected as): %s
Sender: %s
Subject: %s
Body (first 2000 chars):
%s

Return ONLY the JSON, no markdown, no explanation.`,
		classificationInstructions, req.PlatformHint, sender, subject, req.Body)
}

// ParseResponse decodes the model's JSON output. Markdown fences are stripped
// first; if the text still fails to decode, the outermost brace span is tried
// before giving up.
func ParseResponse(text string) (*core.ClassificationResponse, error) {
	cleaned := stripFences(strings.TrimSpace(text))

	var resp core.ClassificationResponse
	if err := json.Unmarshal([]byte(cleaned), &resp); err == nil {
		return validate(&resp)
	}

	jsonStart := strings.Index(cleaned, "{")
	jsonEnd := strings.LastIndex(cleaned, "}")
	if jsonStart < 0 || jsonEnd <= jsonStart {
		return nil, fmt.Errorf("failed to extract JSON from classifier response")
	}

	if err := json.Unmarshal([]byte(cleaned[jsonStart:jsonEnd+1]), &resp); err != nil {
		return nil, fmt.Errorf("failed to parse classifier response as JSON: %w", err)
	}
	return validate(&resp)
}

func validate(resp *core.ClassificationResponse) (*core.ClassificationResponse, error) {
	if resp.Pattern.Category == "" {
		return nil, fmt.Errorf("classifier response missing category")
	}
	return resp, nil
}

func stripFences(text string) string {
	if strings.HasPrefix(text, "```json") {
		text = text[len("```json"):]
	} else if strings.HasPrefix(text, "```") {
		text = text[len("```"):]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
