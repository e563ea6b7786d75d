package classify

import "strings"

// Class is the normalized category of a provider-reported call status.
type Class string

const (
	ClassSuccess   Class = "success"
	ClassRetryable Class = "retryable_failure"
	ClassPermanent Class = "permanent_failure"
	ClassIgnore    Class = "ignore"
)

func (c Class) String() string { return string(c) }

// CallOutcome is the classification of a raw Twilio call status.
type CallOutcome struct {
	Class        Class
	Tag          string // normalized tag for audit rows, e.g. "no_answer"
	Intermediate bool   // progress-only status: log, no transition
}

// ClassifyCallStatus maps a provider status string (case-insensitive) to an
// outcome. Unknown statuses are treated as permanent failures: never retry
// on a signal we do not understand.
func ClassifyCallStatus(status string) CallOutcome {
	s := strings.ToLower(strings.TrimSpace(status))
	switch s {
	case "completed":
		return CallOutcome{Class: ClassSuccess, Tag: "completed"}
	case "answered":
		return CallOutcome{Class: ClassSuccess, Tag: "answered"}
	case "no-answer":
		return CallOutcome{Class: ClassRetryable, Tag: "no_answer"}
	case "busy":
		return CallOutcome{Class: ClassRetryable, Tag: "busy"}
	case "failed":
		return CallOutcome{Class: ClassRetryable, Tag: "failed"}
	case "canceled":
		return CallOutcome{Class: ClassPermanent, Tag: "canceled"}
	case "initiated", "queued", "ringing", "in-progress":
		return CallOutcome{Class: ClassIgnore, Tag: s, Intermediate: true}
	default:
		return CallOutcome{Class: ClassPermanent, Tag: s}
	}
}
