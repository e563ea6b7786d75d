package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidE164(t *testing.T) {
	valid := []string{"+12345678901", "+989121234567", "+442071838750"}
	for _, p := range valid {
		assert.True(t, ValidE164(p), p)
	}

	invalid := []string{
		"",
		"12345678901",    // missing +
		"+0123456789012", // leading zero
		"+12345",         // too short
		"+1234567890123456", // too long
		"+1 234 567 8901",
	}
	for _, p := range invalid {
		assert.False(t, ValidE164(p), p)
	}
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"+1 (234) 567-8901", "+12345678901"},
		{"  +12345678901  ", "+12345678901"},
		{"0012345678901", "+12345678901"},
		{"+98-912-123-4567", "+989121234567"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizePhone(tt.raw), tt.raw)
	}
}
