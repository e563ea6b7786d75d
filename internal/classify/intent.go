package classify

import (
	"strings"

	"github.com/jmehdipour/reminder-gateway/internal/model"
)

// ClassifyInput maps free-form gather input (speech transcript or keypad
// digits) to a user intent. Confirm patterns are checked first so that
// ambiguous input resolves in favor of acknowledgment.
func ClassifyInput(input string) model.Intent {
	s := strings.ToLower(strings.TrimSpace(input))
	if s == "" {
		return model.IntentUnknown
	}

	if s == "1" ||
		strings.Contains(s, "confirm") ||
		strings.Contains(s, "yes") ||
		strings.Contains(s, "acknowledge") {
		return model.IntentConfirm
	}

	if s == "2" ||
		strings.Contains(s, "snooze") ||
		strings.Contains(s, "later") ||
		strings.Contains(s, "hour") {
		return model.IntentSnooze
	}

	return model.IntentUnknown
}
