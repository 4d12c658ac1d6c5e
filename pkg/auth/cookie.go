package auth

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// SessionCookieName is the cookie the session token travels in.
const SessionCookieName = "pairchat_session"

// SetSessionCookie attaches the token as an HTTP-only cookie whose max-age
// matches the token expiry.
func SetSessionCookie(c *gin.Context, token string, ttl time.Duration, domain string, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookieName, token, int(ttl.Seconds()), "/", domain, secure, true)
}

// ClearSessionCookie overwrites the cookie with an expired empty value.
func ClearSessionCookie(c *gin.Context, domain string, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookieName, "", -1, "/", domain, secure, true)
}

// SessionFromRequest extracts the raw token from the request cookie.
func SessionFromRequest(r *http.Request) (string, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return "", err
	}
	return cookie.Value, nil
}
