package webhooks

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"shopbridge/pkg/authcache"
	"shopbridge/pkg/platform"
	"shopbridge/pkg/sessions"
)

const testSecret = "hush"

func newTestHandler(t *testing.T) (*Handler, *authcache.Cache, sessions.Store) {
	t.Helper()
	codec, err := sessions.NewCodec("test-secret")
	require.NoError(t, err)
	store := sessions.NewMemoryStore(codec)
	cache := authcache.New()
	return NewHandler(zap.NewNop().Sugar(), testSecret, cache, store), cache, store
}

func webhookRequest(body []byte, topic, shop, sig string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhooks", bytes.NewReader(body))
	if sig != "" {
		req.Header.Set(headerHmac, sig)
	}
	if topic != "" {
		req.Header.Set(headerTopic, topic)
	}
	if shop != "" {
		req.Header.Set(headerDomain, shop)
	}
	return req
}

func TestInvalidSignatureMakesNoStateChange(t *testing.T) {
	h, cache, _ := newTestHandler(t)
	cache.Grant("shop-a.example", []string{"read_products"})

	body := []byte(`{}`)
	cases := map[string]string{
		"missing":      "",
		"garbage":      "AAAA",
		"wrong secret": platform.SignWebhookBody("other", body),
	}
	for name, sig := range cases {
		rec := httptest.NewRecorder()
		h.Receive(rec, webhookRequest(body, "app/uninstalled", "shop-a.example", sig))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, name)
		assert.True(t, cache.IsAuthorized("shop-a.example"), name)
	}
}

func TestUninstallRevokesOnlyThatShop(t *testing.T) {
	h, cache, store := newTestHandler(t)
	ctx := context.Background()
	cache.Grant("shop-a.example", []string{"read_products"})
	cache.Grant("shop-b.example", []string{"read_products"})
	require.NoError(t, store.Store(ctx, &sessions.Session{ID: "offline_shop-a.example", Shop: "shop-a.example", AccessToken: "tok"}))

	body := []byte(`{"myshopify_domain":"shop-a.example"}`)
	rec := httptest.NewRecorder()
	h.Receive(rec, webhookRequest(body, "app/uninstalled", "shop-a.example", platform.SignWebhookBody(testSecret, body)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, cache.IsAuthorized("shop-a.example"))
	assert.True(t, cache.IsAuthorized("shop-b.example"))
	_, err := store.Load(ctx, "offline_shop-a.example")
	assert.ErrorIs(t, err, sessions.ErrNotFound)
}

func TestUnknownTopicAcknowledgedUntouched(t *testing.T) {
	h, cache, _ := newTestHandler(t)
	cache.Grant("shop-a.example", []string{"read_products"})

	body := []byte(`{"id":42}`)
	rec := httptest.NewRecorder()
	h.Receive(rec, webhookRequest(body, "orders/create", "shop-a.example", platform.SignWebhookBody(testSecret, body)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, cache.IsAuthorized("shop-a.example"))
}

func TestMalformedVerifiedPayloadAcknowledged(t *testing.T) {
	h, cache, _ := newTestHandler(t)
	cache.Grant("shop-a.example", []string{"read_products"})

	// Verified uninstall with no domain header and an unparseable body: logged
	// and acked so the platform does not retry forever.
	body := []byte(`not json at all`)
	rec := httptest.NewRecorder()
	h.Receive(rec, webhookRequest(body, "app/uninstalled", "", platform.SignWebhookBody(testSecret, body)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, cache.IsAuthorized("shop-a.example"))
}

func TestShopFromBodyFallback(t *testing.T) {
	h, cache, _ := newTestHandler(t)
	cache.Grant("shop-a.example", []string{"read_products"})

	body := []byte(`{"myshopify_domain":"shop-a.example"}`)
	rec := httptest.NewRecorder()
	h.Receive(rec, webhookRequest(body, "app/uninstalled", "", platform.SignWebhookBody(testSecret, body)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, cache.IsAuthorized("shop-a.example"))
}

func TestParseTopic(t *testing.T) {
	assert.Equal(t, TopicAppUninstalled, ParseTopic("app/uninstalled"))
	assert.Equal(t, TopicUnknown, ParseTopic("orders/create"))
	assert.Equal(t, TopicUnknown, ParseTopic(""))
	assert.Equal(t, "app/uninstalled", TopicAppUninstalled.String())
	assert.Equal(t, "unknown", TopicUnknown.String())
}
