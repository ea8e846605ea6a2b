package core

import (
	"crypto/md5"
	"encoding/hex"
	"regexp"
	"strings"
)

// normalizedPrefixLen is how much of the normalized text feeds the hash.
// Truncating keeps long bodies with identical openings hashing identically.
const normalizedPrefixLen = 500

var (
	datePattern    = regexp.MustCompile(`\d{1,2}[/\-]\d{1,2}[/\-]\d{2,4}`)
	timePattern    = regexp.MustCompile(`\d{1,2}:\d{2}(:\d{2})?\s*(am|pm)?`)
	percentPattern = regexp.MustCompile(`\d+([,.]\d+)*%`)
	moneyPattern   = regexp.MustCompile(`\$[\d,.]+`)
	idPattern      = regexp.MustCompile(`\d{4,}`)
	urlPattern     = regexp.MustCompile(`https?://[^\s<>"]+`)
	emailPattern   = regexp.MustCompile(`[\w.\-]+@[\w.\-]+`)
	spacePattern   = regexp.MustCompile(`\s+`)
)

// NormalizeForHash strips dynamic content (dates, times, percentages, money,
// long numeric IDs, URLs, email addresses) so that two notifications with the
// same structural shape but different values normalize to the same text.
func NormalizeForHash(subject, body string) string {
	text := strings.ToLower(subject + "\n" + body)

	text = datePattern.ReplaceAllString(text, "[DATE]")
	text = timePattern.ReplaceAllString(text, "[TIME]")
	text = percentPattern.ReplaceAllString(text, "[PERCENT]")
	text = moneyPattern.ReplaceAllString(text, "[MONEY]")
	text = idPattern.ReplaceAllString(text, "[ID]")
	text = urlPattern.ReplaceAllString(text, "[URL]")
	text = emailPattern.ReplaceAllString(text, "[EMAIL]")

	text = strings.TrimSpace(spacePattern.ReplaceAllString(text, " "))

	runes := []rune(text)
	if len(runes) > normalizedPrefixLen {
		runes = runes[:normalizedPrefixLen]
	}
	return string(runes)
}

// PatternHash computes the deterministic fingerprint of a notification's
// structural shape
func PatternHash(n *Notification) string {
	normalized := NormalizeForHash(n.Subject, n.Body)
	sum := md5.Sum([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
