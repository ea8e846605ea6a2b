package core

import "strings"

// MatchesDetectionRules evaluates a notification against a stored detection
// rule. All comparisons are case-insensitive substring tests; each present
// predicate kind must pass.
func MatchesDetectionRules(n *Notification, rules DetectionRules) bool {
	from := strings.ToLower(n.Sender)
	subject := strings.ToLower(n.Subject)
	body := strings.ToLower(n.Body)

	if len(rules.SenderContains) > 0 && !containsAny(from, rules.SenderContains) {
		return false
	}
	if len(rules.SubjectContains) > 0 && !containsAll(subject, rules.SubjectContains) {
		return false
	}
	if len(rules.BodyContains) > 0 && !containsAll(body, rules.BodyContains) {
		return false
	}
	if len(rules.SubjectOr) > 0 && !containsAny(subject, rules.SubjectOr) {
		return false
	}
	if len(rules.BodyOr) > 0 && !containsAny(body, rules.BodyOr) {
		return false
	}

	return true
}

func containsAll(haystack string, terms []string) bool {
	for _, term := range terms {
		if !strings.Contains(haystack, strings.ToLower(term)) {
			return false
		}
	}
	return true
}

func containsAny(haystack string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(haystack, strings.ToLower(term)) {
			return true
		}
	}
	return false
}
