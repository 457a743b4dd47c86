// internal/webhooks/handler.go
package webhooks

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"shopbridge/pkg/authcache"
	"shopbridge/pkg/platform"
	"shopbridge/pkg/sessions"
)

const maxBodyBytes = 1 << 20

const (
	headerHmac   = "X-Shopify-Hmac-Sha256"
	headerTopic  = "X-Shopify-Topic"
	headerDomain = "X-Shopify-Shop-Domain"
)

// Handler verifies and dispatches inbound platform events. Stateless per
// invocation; the only state it touches is the authorization cache and, on
// uninstall, the shop's persisted sessions.
type Handler struct {
	log    *zap.SugaredLogger
	secret string
	cache  *authcache.Cache
	store  sessions.Store
}

func NewHandler(log *zap.SugaredLogger, secret string, cache *authcache.Cache, store sessions.Store) *Handler {
	return &Handler{log: log, secret: secret, cache: cache, store: store}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/webhooks", h.Receive)
}

// Receive handles POST /webhooks. Verification failure makes no state change
// and rejects with 401. Verified events are always acknowledged with 200,
// including malformed payloads, so the platform does not retry forever.
func (h *Handler) Receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "body read failed", http.StatusBadRequest)
		return
	}
	if !platform.VerifyWebhookSignature(h.secret, body, r.Header.Get(headerHmac)) {
		http.Error(w, "signature verification failed", http.StatusUnauthorized)
		return
	}

	topic := ParseTopic(r.Header.Get(headerTopic))
	shop := r.Header.Get(headerDomain)
	if shop == "" {
		// Older payload shapes carry the domain in the body.
		var p struct {
			Domain string `json:"myshopify_domain"`
		}
		if err := json.Unmarshal(body, &p); err == nil {
			shop = p.Domain
		}
	}

	switch topic {
	case TopicAppUninstalled:
		if shop == "" {
			h.log.Warnw("uninstall webhook without shop domain", "topic", topic.String())
			break
		}
		h.cache.Revoke(shop)
		if err := h.store.DeleteByShop(r.Context(), shop); err != nil {
			// The cache entry is already gone, which is what gates requests;
			// leftover records only cost storage.
			h.log.Errorw("session cleanup after uninstall", "shop", shop, "err", err)
		}
		h.log.Infow("shop revoked", "shop", shop)
	default:
		h.log.Debugw("webhook ignored", "topic", r.Header.Get(headerTopic), "shop", shop)
	}

	w.WriteHeader(http.StatusOK)
}
