package middleware

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echo "github.com/labstack/echo/v4"
)

// twilioSign computes the documented callback signature: HMAC-SHA1 of the
// full URL concatenated with the sorted form keys and values, base64.
func twilioSign(authToken, fullURL string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	payload := fullURL
	for _, k := range keys {
		payload += k + params[k]
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func okHandler(c echo.Context) error { return c.String(http.StatusOK, "ok") }

func invoke(t *testing.T, mw echo.MiddlewareFunc, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	require.NoError(t, mw(okHandler)(e.NewContext(req, rec)))
	return rec
}

func TestAPIKeyMiddleware(t *testing.T) {
	mw := APIKeyMiddleware("secret")

	req := httptest.NewRequest(http.MethodGet, "/v1/reminders", nil)
	rec := invoke(t, mw, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/reminders", nil)
	req.Header.Set("X-API-Key", "wrong")
	rec = invoke(t, mw, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/reminders", nil)
	req.Header.Set("X-API-Key", "secret")
	rec = invoke(t, mw, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIKeyMiddlewareDisabledWhenUnset(t *testing.T) {
	mw := APIKeyMiddleware("")
	req := httptest.NewRequest(http.MethodGet, "/v1/reminders", nil)
	rec := invoke(t, mw, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitMiddlewareBlocksOverLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	mw := RateLimitMiddleware(RateLimitConfig{
		Redis:     rdb,
		RPS:       2,
		KeyPrefix: "rl:test:",
		Window:    time.Second,
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/v1/reminders", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		codes = append(codes, invoke(t, mw, req).Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimitMiddlewarePassThroughWithoutRedis(t *testing.T) {
	mw := RateLimitMiddleware(RateLimitConfig{RPS: 1})
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/v1/reminders", nil)
		assert.Equal(t, http.StatusOK, invoke(t, mw, req).Code)
	}
}

func TestTwilioSignatureMiddleware(t *testing.T) {
	const token = "twilio-auth-token"
	const baseURL = "https://gw.example.com"

	form := url.Values{"CallStatus": {"completed"}, "CallSid": {"CA1"}}
	target := "/twilio/call-status?reminderId=rem-1"

	sig := twilioSign(token, baseURL+target, map[string]string{
		"CallStatus": "completed",
		"CallSid":    "CA1",
	})

	mw := TwilioSignatureMiddleware(token, baseURL, true)

	newReq := func() *http.Request {
		req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
		return req
	}

	req := newReq()
	rec := invoke(t, mw, req)
	assert.Equal(t, http.StatusForbidden, rec.Code, "missing signature rejected")

	req = newReq()
	req.Header.Set("X-Twilio-Signature", "bogus")
	rec = invoke(t, mw, req)
	assert.Equal(t, http.StatusForbidden, rec.Code, "invalid signature rejected")

	req = newReq()
	req.Header.Set("X-Twilio-Signature", sig)
	rec = invoke(t, mw, req)
	assert.Equal(t, http.StatusOK, rec.Code, "valid signature accepted")
}

func TestTwilioSignatureMiddlewareDisabled(t *testing.T) {
	mw := TwilioSignatureMiddleware("token", "https://gw.example.com", false)
	req := httptest.NewRequest(http.MethodPost, "/twilio/voice", nil)
	rec := invoke(t, mw, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
