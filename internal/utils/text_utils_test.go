package utils

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestTruncateText(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	assert.Equal(t, "short", tp.TruncateText("short", 100))
	assert.Equal(t, "short", tp.TruncateText("short", 0))
	assert.Equal(t, "abc", tp.TruncateText("abcdef", 3))
}

func TestTruncateTextKeepsUTF8Valid(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	text := "abécd" // é occupies two bytes; a cut at 3 lands mid-rune
	got := tp.TruncateText(text, 3)

	assert.Equal(t, "ab", got)
	assert.True(t, utf8.ValidString(got))
}

func TestSanitizeUTF8(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	assert.Equal(t, "clean", tp.SanitizeUTF8("clean"))
	assert.Equal(t, "abcd", tp.SanitizeUTF8("ab\xffcd"))
}

func TestStripHTML(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "plain text passes through",
			in:   "no markup here",
			want: "no markup here",
		},
		{
			name: "tags dropped",
			in:   "<p>You have used <b>80%</b> of your tasks</p>",
			want: "You have used 80% of your tasks",
		},
		{
			name: "script and style contents removed",
			in:   "<style>.a{color:red}</style><script>alert(1)</script><div>usage alert</div>",
			want: "usage alert",
		},
		{
			name: "entities decoded",
			in:   "<p>Tom &amp; Jerry&nbsp;&lt;ops&gt;</p>",
			want: "Tom & Jerry <ops>",
		},
		{
			name: "whitespace collapsed",
			in:   "<div>line one</div>\n\n<div>line   two</div>",
			want: "line one line two",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tp.StripHTML(tt.in))
		})
	}
}

func TestProcessText(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	long := strings.Repeat("x", 50) + "\xff"
	got := tp.ProcessText(long, 30)

	assert.Equal(t, strings.Repeat("x", 30), got)
	assert.True(t, utf8.ValidString(got))
}
