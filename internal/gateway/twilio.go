package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/jmehdipour/reminder-gateway/internal/config"
	twilio "github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

var (
	ErrNotConfigured = errors.New("voice gateway not configured")
	ErrNotReady      = errors.New("voice gateway circuit open")
)

// Call describes one outbound attempt.
type Call struct {
	ReminderID string
	To         string
	Title      string
}

// Caller places an outbound reminder call and returns the provider call SID.
// The outcome of the physical call is delivered later through the status
// webhook, never by the caller itself.
type Caller interface {
	Place(ctx context.Context, c Call) (string, error)
}

// TwilioCaller drives the Twilio Programmable Voice API.
type TwilioCaller struct {
	client     *twilio.RestClient
	from       string
	baseURL    string
	timeoutSec int
	br         *MicroBreaker
}

func NewTwilioCaller(cfg config.TwilioConfig) *TwilioCaller {
	t := &TwilioCaller{
		from:       cfg.FromNumber,
		baseURL:    cfg.BaseURL,
		timeoutSec: cfg.CallTimeoutSec,
		br:         NewMicroBreaker(3, 15*time.Second),
	}
	if t.timeoutSec <= 0 {
		t.timeoutSec = 30
	}
	if cfg.Configured() {
		t.client = twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: cfg.AccountSID,
			Password: cfg.AuthToken,
		})
	}
	return t
}

// WebhookURL builds an absolute callback URL under the configured base.
func (t *TwilioCaller) WebhookURL(path string) string {
	return t.baseURL + path
}

func (t *TwilioCaller) Place(ctx context.Context, c Call) (string, error) {
	if t.client == nil || t.from == "" {
		return "", ErrNotConfigured
	}
	if !t.br.TryAcquire() {
		return "", ErrNotReady
	}

	voiceURL := t.WebhookURL(fmt.Sprintf("/twilio/voice?reminderId=%s&title=%s",
		url.QueryEscape(c.ReminderID), url.QueryEscape(c.Title)))
	statusURL := t.WebhookURL(fmt.Sprintf("/twilio/call-status?reminderId=%s",
		url.QueryEscape(c.ReminderID)))

	params := &openapi.CreateCallParams{}
	params.SetTo(c.To)
	params.SetFrom(t.from)
	params.SetUrl(voiceURL)
	params.SetMethod("POST")
	params.SetStatusCallback(statusURL)
	params.SetStatusCallbackEvent([]string{"initiated", "answered", "completed", "no-answer", "busy", "failed"})
	params.SetStatusCallbackMethod("POST")
	params.SetTimeout(t.timeoutSec)
	params.SetRecord(false)

	resp, err := t.client.Api.CreateCall(params)
	if err != nil {
		t.br.OnFailure()
		return "", fmt.Errorf("twilio create call: %w", err)
	}
	t.br.OnSuccess()

	if resp.Sid == nil {
		return "", errors.New("twilio create call: empty sid")
	}
	return *resp.Sid, nil
}
