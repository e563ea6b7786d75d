package http

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/jmehdipour/reminder-gateway/internal/processor"
	echo "github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"github.com/twilio/twilio-go/twiml"
)

const promptVoice = "alice"

const gatherInstructions = "Please say confirm or press 1 to acknowledge this reminder. " +
	"Say snooze or press 2 to reschedule for one hour from now."

// gatherVerb builds the input-soliciting verb shared by the voice prompt
// and the unknown-input re-prompt.
func gatherVerb(reminderID, inner string) *twiml.VoiceGather {
	return &twiml.VoiceGather{
		Input:         "speech dtmf",
		Action:        "/twilio/gather?reminderId=" + url.QueryEscape(reminderID),
		Method:        "POST",
		Timeout:       "5",
		NumDigits:     "1",
		SpeechTimeout: "auto",
		Hints:         "confirm, snooze, yes, later, acknowledge",
		InnerElements: []twiml.Element{
			&twiml.VoiceSay{Message: inner, Voice: promptVoice},
		},
	}
}

func renderTwiML(c echo.Context, verbs []twiml.Element) error {
	doc, err := twiml.Voice(verbs)
	if err != nil {
		log.Errorf("twiml render failed: %v", err)
		fallback, _ := twiml.Voice([]twiml.Element{
			&twiml.VoiceSay{Message: "Sorry, there was an error processing your reminder. Goodbye.", Voice: promptVoice},
			&twiml.VoiceHangup{},
		})
		return c.Blob(http.StatusOK, "text/xml", []byte(fallback))
	}
	return c.Blob(http.StatusOK, "text/xml", []byte(doc))
}

// voiceHandler returns the opening prompt: announce the reminder and
// solicit speech or keypad input, with a goodbye when nothing arrives.
func voiceHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		reminderID := c.QueryParam("reminderId")
		title := c.QueryParam("title")
		if title == "" {
			title = "your reminder"
		}

		return renderTwiML(c, []twiml.Element{
			&twiml.VoiceSay{
				Message: fmt.Sprintf("Hello! This is a reminder about: %s.", title),
				Voice:   promptVoice,
			},
			gatherVerb(reminderID, gatherInstructions),
			&twiml.VoiceSay{Message: "We did not receive your response. Goodbye.", Voice: promptVoice},
		})
	}
}

// gatherHandler processes the user's spoken or keyed response.
func gatherHandler(resp *processor.ResponseProcessor) echo.HandlerFunc {
	return func(c echo.Context) error {
		input := c.FormValue("SpeechResult")
		if input == "" {
			input = c.FormValue("Digits")
		}

		ev := processor.GatherEvent{
			ReminderID: c.QueryParam("reminderId"),
			Input:      input,
			CallSID:    c.FormValue("CallSid"),
		}

		reply, err := resp.Process(c.Request().Context(), ev)
		if err != nil {
			// never surface internal failure to the telephony transport
			log.Errorf("gather processing failed: %v", err)
			reply = processor.ReplyFailed
		}

		switch reply {
		case processor.ReplyConfirmed:
			return renderTwiML(c, []twiml.Element{
				&twiml.VoiceSay{Message: "Thank you! Your reminder has been acknowledged. Have a great day!", Voice: promptVoice},
				&twiml.VoiceHangup{},
			})
		case processor.ReplySnoozed:
			return renderTwiML(c, []twiml.Element{
				&twiml.VoiceSay{Message: "Understood! I will call you back in one hour. Goodbye!", Voice: promptVoice},
				&twiml.VoiceHangup{},
			})
		case processor.ReplyReprompt:
			return renderTwiML(c, []twiml.Element{
				&twiml.VoiceSay{
					Message: "Sorry, I did not understand your response. Please try again. " + gatherInstructions,
					Voice:   promptVoice,
				},
				gatherVerb(ev.ReminderID, "Waiting for your response."),
				&twiml.VoiceSay{Message: "We did not receive your response. Goodbye.", Voice: promptVoice},
			})
		default:
			return renderTwiML(c, []twiml.Element{
				&twiml.VoiceSay{Message: "Sorry, we could not process your response. Goodbye.", Voice: promptVoice},
				&twiml.VoiceHangup{},
			})
		}
	}
}

// callStatusHandler consumes provider status callbacks. It always returns
// a benign acknowledgment, even for malformed payloads or internal errors,
// so the provider never retry-storms a delivery we cannot act on.
func callStatusHandler(outcome *processor.OutcomeProcessor) echo.HandlerFunc {
	return func(c echo.Context) error {
		ev := processor.StatusEvent{
			ReminderID: c.QueryParam("reminderId"),
			CallStatus: c.FormValue("CallStatus"),
			CallSID:    c.FormValue("CallSid"),
			Duration:   c.FormValue("CallDuration"),
		}

		if ev.ReminderID == "" || ev.CallStatus == "" || ev.CallSID == "" {
			return c.String(http.StatusOK, "OK")
		}

		if err := outcome.Process(c.Request().Context(), ev); err != nil {
			log.Errorf("call-status processing failed: %v", err)
		}
		return c.String(http.StatusOK, "OK")
	}
}
