// pkg/platform/hmac.go
package platform

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// VerifyWebhookSignature checks the platform's webhook header: base64 of
// HMAC-SHA256 over the raw body with the app's shared secret. Constant-time.
func VerifyWebhookSignature(secret string, body []byte, headerB64 string) bool {
	if headerB64 == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := mac.Sum(nil)
	got, err := base64.StdEncoding.DecodeString(headerB64)
	if err != nil {
		return false
	}
	return hmac.Equal(expected, got)
}

// SignWebhookBody produces the header value the platform would send for body.
// Exported for tests and local tooling.
func SignWebhookBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// SignCallbackQuery computes the hex hmac the platform would append to an
// OAuth redirect for the given query. Exported for tests and local tooling.
func SignCallbackQuery(secret string, query url.Values) string {
	keys := make([]string, 0, len(query))
	for k := range query {
		if k == "hmac" || k == "signature" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+strings.Join(query[k], ","))
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strings.Join(pairs, "&")))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyCallbackSignature checks the hex `hmac` parameter the platform
// appends to OAuth redirects: HMAC-SHA256 over the remaining query
// parameters, sorted and joined as key=value pairs with '&'.
func VerifyCallbackSignature(secret string, query url.Values) bool {
	sig := query.Get("hmac")
	if sig == "" {
		return false
	}
	expected := SignCallbackQuery(secret, query)
	return hmac.Equal([]byte(expected), []byte(sig))
}
