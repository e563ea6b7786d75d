package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyCallStatus(t *testing.T) {
	tests := []struct {
		status       string
		class        Class
		tag          string
		intermediate bool
	}{
		{"completed", ClassSuccess, "completed", false},
		{"answered", ClassSuccess, "answered", false},
		{"no-answer", ClassRetryable, "no_answer", false},
		{"busy", ClassRetryable, "busy", false},
		{"failed", ClassRetryable, "failed", false},
		{"canceled", ClassPermanent, "canceled", false},
		{"initiated", ClassIgnore, "initiated", true},
		{"queued", ClassIgnore, "queued", true},
		{"ringing", ClassIgnore, "ringing", true},
		{"in-progress", ClassIgnore, "in-progress", true},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			out := ClassifyCallStatus(tt.status)
			assert.Equal(t, tt.class, out.Class)
			assert.Equal(t, tt.tag, out.Tag)
			assert.Equal(t, tt.intermediate, out.Intermediate)
		})
	}
}

func TestClassifyCallStatusNormalizesInput(t *testing.T) {
	out := ClassifyCallStatus("  Completed ")
	assert.Equal(t, ClassSuccess, out.Class)

	out = ClassifyCallStatus("NO-ANSWER")
	assert.Equal(t, ClassRetryable, out.Class)
	assert.Equal(t, "no_answer", out.Tag)
}

func TestClassifyCallStatusUnknownIsPermanent(t *testing.T) {
	// never retry on a status we cannot interpret
	for _, s := range []string{"weird-status", "cancelled", ""} {
		out := ClassifyCallStatus(s)
		assert.Equal(t, ClassPermanent, out.Class, "status %q", s)
		assert.False(t, out.Intermediate)
	}
}
