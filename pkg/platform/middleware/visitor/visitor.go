// Package visitor identifies the browsing context a request belongs to.
//
// Each visitor owns an isolated consent key space, the server-side analogue
// of a browser's local storage.
package visitor

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"consentstate/pkg/requestcontext"
)

// HeaderName lets non-browser clients pass the visitor ID explicitly.
const HeaderName = "X-Visitor-ID"

// DefaultCookieName is used when Config.CookieName is empty.
const DefaultCookieName = "consent_visitor"

// Config holds configuration for the visitor middleware.
type Config struct {
	CookieName string
	// CookieMaxAge is how long an issued visitor cookie lives.
	CookieMaxAge time.Duration
	// Secure marks issued cookies Secure (HTTPS only).
	Secure bool
	// NewID generates visitor IDs; defaults to uuid.NewString.
	NewID func() string
}

// Middleware resolves the visitor ID from the X-Visitor-ID header or the
// visitor cookie, in that order. Values that are not UUIDs are ignored. When
// no usable ID arrives, a new one is generated and set as a cookie on the
// response.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	cookieName := cfg.CookieName
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	newID := cfg.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	maxAge := cfg.CookieMaxAge
	if maxAge <= 0 {
		maxAge = 365 * 24 * time.Hour
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			visitorID := fromRequest(r, cookieName)
			if visitorID == "" {
				visitorID = newID()
				http.SetCookie(w, &http.Cookie{
					Name:     cookieName,
					Value:    visitorID,
					Path:     "/",
					MaxAge:   int(maxAge.Seconds()),
					HttpOnly: true,
					Secure:   cfg.Secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			ctx := requestcontext.WithVisitorID(r.Context(), visitorID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func fromRequest(r *http.Request, cookieName string) string {
	if id := normalize(r.Header.Get(HeaderName)); id != "" {
		return id
	}
	if cookie, err := r.Cookie(cookieName); err == nil && cookie != nil {
		return normalize(cookie.Value)
	}
	return ""
}

func normalize(raw string) string {
	if raw == "" {
		return ""
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return ""
	}
	return parsed.String()
}
