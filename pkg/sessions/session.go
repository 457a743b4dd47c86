// pkg/sessions/session.go
package sessions

import (
	"encoding/json"
	"fmt"
	"time"
)

// Session is the credential bundle one shop ends up with after OAuth.
// A shop may hold more than one live session (online and offline tokens),
// which is why storage is keyed by session ID rather than by shop.
type Session struct {
	ID          string     `json:"id"`
	Shop        string     `json:"shop"`
	AccessToken string     `json:"access_token"`
	Scope       []string   `json:"scope"`
	IsOnline    bool       `json:"is_online"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// OfflineSessionID is the canonical ID for a shop's offline (per-install) session.
func OfflineSessionID(shop string) string {
	return "offline_" + shop
}

func (s *Session) encode() ([]byte, error) {
	return json.Marshal(s)
}

func decodeSession(b []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptedPayload, err)
	}
	return &s, nil
}
