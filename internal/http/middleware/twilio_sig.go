package middleware

import (
	"net/http"

	echo "github.com/labstack/echo/v4"
	twclient "github.com/twilio/twilio-go/client"
)

// TwilioSignatureMiddleware validates the X-Twilio-Signature header on
// telephony callbacks against the public callback URL. Disabled (enabled
// false) it is a pass-through for local development, where the tunnel URL
// rarely matches.
func TwilioSignatureMiddleware(authToken, baseURL string, enabled bool) echo.MiddlewareFunc {
	validator := twclient.NewRequestValidator(authToken)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !enabled || authToken == "" {
				return next(c)
			}

			sig := c.Request().Header.Get("X-Twilio-Signature")
			if sig == "" {
				return c.String(http.StatusForbidden, "missing signature")
			}

			params := map[string]string{}
			if err := c.Request().ParseForm(); err == nil {
				for k, vs := range c.Request().PostForm {
					if len(vs) > 0 {
						params[k] = vs[0]
					}
				}
			}

			url := baseURL + c.Request().URL.RequestURI()
			if !validator.Validate(url, params, sig) {
				return c.String(http.StatusForbidden, "invalid signature")
			}
			return next(c)
		}
	}
}
