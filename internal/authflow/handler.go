// internal/authflow/handler.go
package authflow

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"shopbridge/pkg/authcache"
	"shopbridge/pkg/config"
	"shopbridge/pkg/middleware"
	"shopbridge/pkg/platform"
	"shopbridge/pkg/sessions"
)

// Handler runs the OAuth handshake with the platform: /auth sends a shop to
// the authorize URL, /auth/callback exchanges the code and onboards the shop.
type Handler struct {
	log    *zap.SugaredLogger
	cfg    config.Config
	cache  *authcache.Cache
	store  sessions.Store
	client *platform.Client
	subs   []platform.Subscription
	states *stateTable
}

func NewHandler(log *zap.SugaredLogger, cfg config.Config, cache *authcache.Cache, store sessions.Store, client *platform.Client, subs []platform.Subscription) *Handler {
	return &Handler{
		log:    log,
		cfg:    cfg,
		cache:  cache,
		store:  store,
		client: client,
		subs:   subs,
		states: newStateTable(),
	}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/auth", h.Begin)
	r.Get("/auth/callback", h.Callback)
}

func (h *Handler) oauthConfig(shop string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     h.cfg.APIKey,
		ClientSecret: h.cfg.APISecret,
		Scopes:       h.cfg.Scopes,
		RedirectURL:  h.cfg.AppHost + "/auth/callback",
		Endpoint: oauth2.Endpoint{
			AuthURL:   fmt.Sprintf("https://%s/admin/oauth/authorize", shop),
			TokenURL:  fmt.Sprintf("https://%s/admin/oauth/access_token", shop),
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// Begin handles GET /auth?shop=: issue a state nonce and redirect the shop to
// the platform's authorize URL.
func (h *Handler) Begin(w http.ResponseWriter, r *http.Request) {
	shop := r.URL.Query().Get("shop")
	if !platform.ValidShopDomain(shop) {
		http.Error(w, "invalid shop parameter", http.StatusBadRequest)
		return
	}
	state := h.states.issue(shop)
	http.Redirect(w, r, h.oauthConfig(shop).AuthCodeURL(state), http.StatusFound)
}

// Callback handles the redirect back from the platform. Order matters: the
// HMAC and state nonce are checked before the code is exchanged, and nothing
// is granted or persisted until the exchange succeeds.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	shop := q.Get("shop")
	if !platform.ValidShopDomain(shop) {
		http.Error(w, "invalid shop parameter", http.StatusBadRequest)
		return
	}
	if !platform.VerifyCallbackSignature(h.cfg.APISecret, q) {
		http.Error(w, "hmac verification failed", http.StatusUnauthorized)
		return
	}
	if !h.states.consume(q.Get("state"), shop) {
		http.Error(w, "invalid state", http.StatusUnauthorized)
		return
	}

	tok, err := h.oauthConfig(shop).Exchange(r.Context(), q.Get("code"))
	if err != nil {
		h.log.Errorw("code exchange", "shop", shop, "err", err)
		http.Error(w, "token exchange failed", http.StatusBadGateway)
		return
	}
	scopes := grantedScopes(tok)

	sessionID, err := h.Complete(r.Context(), shop, tok.AccessToken, scopes)
	if err != nil {
		h.log.Errorw("onboarding", "shop", shop, "err", err)
		http.Error(w, "session persistence failed", http.StatusInternalServerError)
		return
	}

	cookie, err := middleware.MintSessionCookie(h.cfg.APISecret, sessionID, shop, h.cfg.Env == "prod")
	if err != nil {
		h.log.Errorw("cookie mint", "shop", shop, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, cookie)

	dest := "/?shop=" + url.QueryEscape(shop)
	if host := q.Get("host"); host != "" {
		dest += "&host=" + url.QueryEscape(host)
	}
	http.Redirect(w, r, dest, http.StatusFound)
}

// Complete onboards a shop once the handshake has produced an access token:
// grant the cache entry, persist the encrypted session, then register the
// webhook subscriptions. Registration failures are logged and do not abort:
// the shop stays authorized even if revocation events can't be delivered.
func (h *Handler) Complete(ctx context.Context, shop, accessToken string, scopes []string) (string, error) {
	h.cache.Grant(shop, scopes)

	s := &sessions.Session{
		ID:          sessions.OfflineSessionID(shop),
		Shop:        shop,
		AccessToken: accessToken,
		Scope:       scopes,
		IsOnline:    false,
	}
	if err := h.store.Store(ctx, s); err != nil {
		return "", err
	}

	for _, sub := range h.subs {
		address := h.cfg.AppHost + sub.Path
		if err := h.client.RegisterWebhook(ctx, shop, accessToken, sub.Topic, address); err != nil {
			h.log.Warnw("webhook registration", "shop", shop, "topic", sub.Topic, "err", err)
		}
	}

	h.log.Infow("shop onboarded", "shop", shop, "scopes", strings.Join(scopes, ","))
	return s.ID, nil
}

func grantedScopes(tok *oauth2.Token) []string {
	raw, _ := tok.Extra("scope").(string)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
