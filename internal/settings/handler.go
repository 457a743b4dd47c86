// internal/settings/handler.go
package settings

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"shopbridge/pkg/authcache"
	"shopbridge/pkg/middleware"
	"shopbridge/pkg/platform"
	"shopbridge/pkg/problems"
	"shopbridge/pkg/sessions"
)

const (
	statusEmpty = "EMPTY_SETTINGS"
	statusOK    = "OK_SETTINGS"
)

// ErrMalformedSelectionID rejects a settings write whose trailing product ID
// segment is not a positive integer. Nothing is persisted in that case.
var ErrMalformedSelectionID = errors.New("malformed selection id")

type response struct {
	Status string            `json:"status"`
	Data   *platform.Product `json:"data,omitempty"`
}

// Handler serves the tenant settings resource. Every request first resolves
// the current session and checks the authorization cache; either failing
// sends the shop back through the handshake instead of serving data.
type Handler struct {
	log     *zap.SugaredLogger
	cache   *authcache.Cache
	store   sessions.Store
	setting Store
	client  *platform.Client
}

func NewHandler(log *zap.SugaredLogger, cache *authcache.Cache, store sessions.Store, setting Store, client *platform.Client) *Handler {
	return &Handler{log: log, cache: cache, store: store, setting: setting, client: client}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/settings", h.Get)
	r.Post("/settings", h.Put)
}

// resolve returns the live session for the request, or nil after writing the
// appropriate response (redirect into OAuth, or 500 on storage failure).
func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) *sessions.Session {
	as, ok := middleware.AppSessionFrom(r.Context())
	if !ok {
		shop := r.URL.Query().Get("shop")
		http.Redirect(w, r, "/auth?shop="+url.QueryEscape(shop), http.StatusFound)
		return nil
	}
	s, err := h.store.Load(r.Context(), as.SessionID)
	switch {
	case err == nil:
	case errors.Is(err, sessions.ErrNotFound):
		http.Redirect(w, r, "/auth?shop="+url.QueryEscape(as.Shop), http.StatusFound)
		return nil
	case errors.Is(err, sessions.ErrCorruptedPayload):
		// Unrecoverable: the record is garbage, so force a fresh handshake.
		h.log.Errorw("corrupted session record", "shop", as.Shop, "sid", as.SessionID, "err", err)
		http.Redirect(w, r, "/auth?shop="+url.QueryEscape(as.Shop), http.StatusFound)
		return nil
	default:
		problems.Write(w, http.StatusInternalServerError, "storage-unavailable", "Session storage unavailable", "")
		return nil
	}
	if !h.cache.IsAuthorized(s.Shop) {
		http.Redirect(w, r, "/auth?shop="+url.QueryEscape(s.Shop), http.StatusFound)
		return nil
	}
	return s
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	s := h.resolve(w, r)
	if s == nil {
		return
	}
	cur, err := h.setting.Get(r.Context(), s.Shop)
	if err != nil {
		problems.Write(w, http.StatusInternalServerError, "storage-unavailable", "Settings storage unavailable", "")
		return
	}
	if cur.ProductID == nil {
		writeJSON(w, response{Status: statusEmpty}, http.StatusOK)
		return
	}
	product, err := h.client.GetProduct(r.Context(), s.Shop, s.AccessToken, *cur.ProductID)
	if err != nil {
		if errors.Is(err, platform.ErrProductNotFound) {
			// The selection dangles (product deleted upstream); report empty
			// rather than erroring on every read.
			h.log.Warnw("selected product gone", "shop", s.Shop, "product_id", *cur.ProductID)
			writeJSON(w, response{Status: statusEmpty}, http.StatusOK)
			return
		}
		h.log.Errorw("product fetch", "shop", s.Shop, "err", err)
		problems.Write(w, http.StatusBadGateway, "upstream-unavailable", "Product fetch failed", "")
		return
	}
	writeJSON(w, response{Status: statusOK, Data: product}, http.StatusOK)
}

func (h *Handler) Put(w http.ResponseWriter, r *http.Request) {
	s := h.resolve(w, r)
	if s == nil {
		return
	}
	var body struct {
		ProductID string `json:"productId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		problems.Write(w, http.StatusBadRequest, "malformed-body", "Malformed request body", "")
		return
	}
	id, err := ParseSelectionID(body.ProductID)
	if err != nil {
		problems.Write(w, http.StatusUnprocessableEntity, "malformed-selection", "Malformed selection id", "productId must end in a positive integer segment")
		return
	}
	if err := h.setting.SetProduct(r.Context(), s.Shop, id); err != nil {
		problems.Write(w, http.StatusInternalServerError, "storage-unavailable", "Settings storage unavailable", "")
		return
	}
	product, err := h.client.GetProduct(r.Context(), s.Shop, s.AccessToken, id)
	if err != nil {
		h.log.Errorw("product fetch", "shop", s.Shop, "err", err)
		problems.Write(w, http.StatusBadGateway, "upstream-unavailable", "Product fetch failed", "")
		return
	}
	writeJSON(w, response{Status: statusOK, Data: product}, http.StatusOK)
}

// ParseSelectionID extracts the numeric resource ID from a platform-qualified
// ID such as "gid://shopify/Product/987654": the segment after the last '/'.
func ParseSelectionID(qualified string) (int64, error) {
	seg := qualified
	if i := strings.LastIndex(qualified, "/"); i >= 0 {
		seg = qualified[i+1:]
	}
	id, err := strconv.ParseInt(seg, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrMalformedSelectionID
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
