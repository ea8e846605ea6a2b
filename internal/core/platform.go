package core

import "strings"

// DetectPlatform scans sender, subject and body for platform-identifying
// substrings. Detection is intentionally broad; the classifier decides actual
// relevance afterwards.
func DetectPlatform(n *Notification) Platform {
	from := strings.ToLower(n.Sender)
	subject := strings.ToLower(n.Subject)
	body := strings.ToLower(n.Body)
	combined := from + " " + subject + " " + body

	// Make (formerly Integromat), including forwarded mail that only carries
	// regional or CDN links in the body
	if strings.Contains(from, "make.com") || strings.Contains(from, "integromat.com") ||
		strings.Contains(combined, "us1.make.com") || strings.Contains(combined, "eu1.make.com") ||
		strings.Contains(combined, "mail1.make.com") || strings.Contains(combined, "cdn.make.com") ||
		(strings.Contains(combined, "make.com") && strings.Contains(combined, "scenario")) {
		return PlatformMake
	}

	if strings.Contains(from, "zapier.com") || strings.Contains(from, "zapiermail.com") ||
		(strings.Contains(combined, "zapier.com") && strings.Contains(combined, "zap")) {
		return PlatformZapier
	}

	if strings.Contains(from, "airtable.com") || strings.Contains(from, "airtableemail.com") ||
		(strings.Contains(combined, "airtable.com") && strings.Contains(combined, "automation")) {
		return PlatformAirtable
	}

	if strings.Contains(from, "bubble.io") || strings.Contains(from, "bubbleapps.io") ||
		strings.Contains(from, "bubble.is") || strings.Contains(combined, "bubble.io") {
		return PlatformBubble
	}

	return PlatformUnknown
}
