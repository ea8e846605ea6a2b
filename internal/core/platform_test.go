package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectPlatform(t *testing.T) {
	tests := []struct {
		name    string
		sender  string
		subject string
		body    string
		want    Platform
	}{
		{
			name:   "zapier sender",
			sender: "contact@zapier.com",
			want:   PlatformZapier,
		},
		{
			name:   "zapier mail domain",
			sender: "notifications@zapiermail.com",
			want:   PlatformZapier,
		},
		{
			name:    "zapier forwarded body needs zap mention",
			sender:  "me@example.com",
			subject: "Fwd: Task usage",
			body:    "Your Zap paused. Manage it at https://zapier.com/app",
			want:    PlatformZapier,
		},
		{
			name:   "make sender",
			sender: "no-reply@make.com",
			want:   PlatformMake,
		},
		{
			name:   "integromat legacy sender",
			sender: "postman@integromat.com",
			want:   PlatformMake,
		},
		{
			name:   "make regional link in body",
			sender: "fwd@example.com",
			body:   "See the run at https://us1.make.com/scenario/123",
			want:   PlatformMake,
		},
		{
			name:    "make body with scenario keyword",
			sender:  "fwd@example.com",
			subject: "Scenario warning",
			body:    "Check your dashboard at make.com",
			want:    PlatformMake,
		},
		{
			name:   "airtable sender",
			sender: "noreply@airtable.com",
			want:   PlatformAirtable,
		},
		{
			name:   "airtable body with automation keyword",
			sender: "fwd@example.com",
			body:   "Your automation failed, see airtable.com/workspaces",
			want:   PlatformAirtable,
		},
		{
			name:   "bubble sender",
			sender: "support@bubble.io",
			want:   PlatformBubble,
		},
		{
			name:   "bubble mention in body",
			sender: "alerts@sendgrid.net",
			body:   "Your app on bubble.io is near capacity",
			want:   PlatformBubble,
		},
		{
			name:    "unknown",
			sender:  "boss@corp.example",
			subject: "lunch?",
			body:    "see you at noon",
			want:    PlatformUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &Notification{Sender: tt.sender, Subject: tt.subject, Body: tt.body}
			assert.Equal(t, tt.want, DetectPlatform(n))
		})
	}
}

func TestDetectPlatformPrefersMakeOverGenericMatches(t *testing.T) {
	// A Make digest can mention Zapier in passing; the sender wins.
	n := &Notification{
		Sender:  "no-reply@make.com",
		Subject: "Operations usage",
		Body:    "Unlike zapier.com, your zap-free scenarios run on Make.",
	}
	assert.Equal(t, PlatformMake, DetectPlatform(n))
}
