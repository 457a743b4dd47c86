// pkg/middleware/appsession.go
package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// CookieName carries the signed app-session token between requests.
const CookieName = "shopbridge_session"

type ctxAppSessionKey struct{}

// AppSession identifies which stored session a request belongs to. The cookie
// holds an HS256 JWT signed with the app's shared secret; the access token
// itself never leaves the encrypted store.
type AppSession struct {
	SessionID string
	Shop      string
}

// MintSessionCookie builds the signed cookie set after OAuth completes.
func MintSessionCookie(secret, sessionID, shop string, secure bool) (*http.Cookie, error) {
	tok, err := jwt.NewBuilder().
		Claim("sid", sessionID).
		Claim("shop", shop).
		IssuedAt(time.Now()).
		Build()
	if err != nil {
		return nil, err
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, []byte(secret)))
	if err != nil {
		return nil, err
	}
	return &http.Cookie{
		Name:     CookieName,
		Value:    string(signed),
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteNoneMode,
	}, nil
}

// WithAppSession verifies the session cookie and stores the claims in
// context. Requests without a valid cookie pass through untouched; gating is
// each handler's call (they redirect into OAuth).
func WithAppSession(secret string) func(http.Handler) http.Handler {
	key := []byte(secret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, err := r.Cookie(CookieName)
			if err != nil || c.Value == "" {
				next.ServeHTTP(w, r)
				return
			}
			tok, err := jwt.Parse([]byte(c.Value), jwt.WithKey(jwa.HS256, key), jwt.WithValidate(true))
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			sid, _ := tok.Get("sid")
			shop, _ := tok.Get("shop")
			s, _ := sid.(string)
			sh, _ := shop.(string)
			if s == "" || sh == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := context.WithValue(r.Context(), ctxAppSessionKey{}, AppSession{SessionID: s, Shop: sh})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AppSessionFrom extracts the verified app session, if present.
func AppSessionFrom(ctx context.Context) (AppSession, bool) {
	if v := ctx.Value(ctxAppSessionKey{}); v != nil {
		if s, ok := v.(AppSession); ok {
			return s, true
		}
	}
	return AppSession{}, false
}
