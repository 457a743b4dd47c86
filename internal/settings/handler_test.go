package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"shopbridge/pkg/authcache"
	"shopbridge/pkg/middleware"
	"shopbridge/pkg/platform"
	"shopbridge/pkg/sessions"
)

const (
	testSecret = "hush"
	testShop   = "shop-a.myshopify.com"
)

type testApp struct {
	router  http.Handler
	cache   *authcache.Cache
	store   sessions.Store
	setting Store
	client  *platform.Client
}

func newTestApp(t *testing.T, sessionStore sessions.Store) *testApp {
	t.Helper()
	if sessionStore == nil {
		codec, err := sessions.NewCodec("test-secret")
		require.NoError(t, err)
		sessionStore = sessions.NewMemoryStore(codec)
	}
	a := &testApp{
		cache:   authcache.New(),
		store:   sessionStore,
		setting: NewMemoryStore(),
		client:  platform.NewClient("2024-01"),
	}
	r := chi.NewRouter()
	r.Use(middleware.WithAppSession(testSecret))
	NewHandler(zap.NewNop().Sugar(), a.cache, a.store, a.setting, a.client).Register(r)
	a.router = r
	return a
}

// onboard stores a session, grants the cache entry and returns the cookie a
// completed handshake would have set.
func (a *testApp) onboard(t *testing.T) *http.Cookie {
	t.Helper()
	s := &sessions.Session{
		ID:          sessions.OfflineSessionID(testShop),
		Shop:        testShop,
		AccessToken: "shpat_tok",
		Scope:       []string{"read_products"},
	}
	require.NoError(t, a.store.Store(context.Background(), s))
	a.cache.Grant(testShop, s.Scope)
	cookie, err := middleware.MintSessionCookie(testSecret, s.ID, testShop, false)
	require.NoError(t, err)
	return cookie
}

func (a *testApp) do(method, target string, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func TestGetWithoutSessionRedirectsToAuth(t *testing.T) {
	a := newTestApp(t, nil)
	rec := a.do(http.MethodGet, "/settings?shop="+testShop, "", nil)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/auth?shop="+testShop, rec.Header().Get("Location"))
}

func TestGetWithStaleCookieRedirectsToAuth(t *testing.T) {
	a := newTestApp(t, nil)
	// Valid cookie, but no stored session behind it.
	cookie, err := middleware.MintSessionCookie(testSecret, "offline_"+testShop, testShop, false)
	require.NoError(t, err)
	rec := a.do(http.MethodGet, "/settings", "", cookie)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), "/auth?shop=")
}

func TestGetRevokedShopRedirectsToAuth(t *testing.T) {
	a := newTestApp(t, nil)
	cookie := a.onboard(t)
	a.cache.Revoke(testShop)

	rec := a.do(http.MethodGet, "/settings", "", cookie)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), "/auth?shop=")
}

// sessionStore aliases sessions.Store so it can be embedded without the
// field name shadowing the interface's Store method.
type sessionStore = sessions.Store

// corruptStore simulates an undecryptable record behind a valid cookie.
type corruptStore struct{ sessionStore }

func (corruptStore) Load(ctx context.Context, id string) (*sessions.Session, error) {
	return nil, fmt.Errorf("%w: gcm open failed", sessions.ErrCorruptedPayload)
}

func TestGetCorruptedSessionForcesReauth(t *testing.T) {
	codec, err := sessions.NewCodec("test-secret")
	require.NoError(t, err)
	a := newTestApp(t, corruptStore{sessions.NewMemoryStore(codec)})
	cookie, err := middleware.MintSessionCookie(testSecret, "offline_"+testShop, testShop, false)
	require.NoError(t, err)

	rec := a.do(http.MethodGet, "/settings", "", cookie)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), "/auth?shop=")
}

// failingStore simulates backend unavailability.
type failingStore struct{ sessionStore }

func (failingStore) Load(ctx context.Context, id string) (*sessions.Session, error) {
	return nil, fmt.Errorf("%w: connection refused", sessions.ErrStorageUnavailable)
}

func TestGetStorageFailureIsServerError(t *testing.T) {
	codec, err := sessions.NewCodec("test-secret")
	require.NoError(t, err)
	a := newTestApp(t, failingStore{sessions.NewMemoryStore(codec)})
	cookie, err := middleware.MintSessionCookie(testSecret, "offline_"+testShop, testShop, false)
	require.NoError(t, err)

	rec := a.do(http.MethodGet, "/settings", "", cookie)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetEmptySettings(t *testing.T) {
	a := newTestApp(t, nil)
	cookie := a.onboard(t)

	rec := a.do(http.MethodGet, "/settings", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "EMPTY_SETTINGS", resp.Status)
	assert.Empty(t, resp.Data)
}

func TestPutThenGetSettings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/admin/api/2024-01/products/987654.json", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"product":{"id":987654,"title":"Gift Card","handle":"gift-card","status":"active"}}`))
	}))
	defer srv.Close()

	a := newTestApp(t, nil)
	a.client.SetBaseURL(srv.URL)
	cookie := a.onboard(t)

	rec := a.do(http.MethodPost, "/settings", `{"productId":"gid://shopify/Product/987654"}`, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Status string           `json:"status"`
		Data   platform.Product `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "OK_SETTINGS", resp.Status)
	assert.Equal(t, int64(987654), resp.Data.ID)

	st, err := a.setting.Get(context.Background(), testShop)
	require.NoError(t, err)
	require.NotNil(t, st.ProductID)
	assert.Equal(t, int64(987654), *st.ProductID)

	rec = a.do(http.MethodGet, "/settings", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "OK_SETTINGS", resp.Status)
	assert.Equal(t, "Gift Card", resp.Data.Title)
}

func TestGetDanglingSelectionReportsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	a := newTestApp(t, nil)
	a.client.SetBaseURL(srv.URL)
	cookie := a.onboard(t)
	require.NoError(t, a.setting.SetProduct(context.Background(), testShop, 42))

	rec := a.do(http.MethodGet, "/settings", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "EMPTY_SETTINGS")
}

func TestPutMalformedSelectionIDRejected(t *testing.T) {
	a := newTestApp(t, nil)
	cookie := a.onboard(t)

	for _, body := range []string{
		`{"productId":"gid://shopify/Product/notanumber"}`,
		`{"productId":""}`,
		`{"productId":"gid://shopify/Product/-4"}`,
		`{"productId":"gid://shopify/Product/"}`,
	} {
		rec := a.do(http.MethodPost, "/settings", body, cookie)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, body)
	}

	// Nothing persisted on rejection.
	st, err := a.setting.Get(context.Background(), testShop)
	require.NoError(t, err)
	assert.Nil(t, st.ProductID)
}

func TestParseSelectionID(t *testing.T) {
	cases := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"gid://shopify/Product/987654", 987654, false},
		{"987654", 987654, false},
		{"gid://shopify/Product/0", 0, true},
		{"gid://shopify/Product/12x", 0, true},
		{"", 0, true},
		{"gid://shopify/Product/", 0, true},
	}
	for _, c := range cases {
		got, err := ParseSelectionID(c.in)
		if c.wantErr {
			assert.ErrorIs(t, err, ErrMalformedSelectionID, c.in)
		} else {
			require.NoError(t, err, c.in)
			assert.Equal(t, c.want, got, c.in)
		}
	}
}
