package settings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreLazyGet(t *testing.T) {
	s := NewMemoryStore()
	got, err := s.Get(context.Background(), "a.myshopify.com")
	require.NoError(t, err)
	assert.Equal(t, "a.myshopify.com", got.Shop)
	assert.Nil(t, got.ProductID)
}

func TestMemoryStoreSetProduct(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.SetProduct(ctx, "a.myshopify.com", 11))
	require.NoError(t, s.SetProduct(ctx, "a.myshopify.com", 22))

	got, err := s.Get(ctx, "a.myshopify.com")
	require.NoError(t, err)
	require.NotNil(t, got.ProductID)
	assert.Equal(t, int64(22), *got.ProductID)

	// Other shops are unaffected.
	other, err := s.Get(ctx, "b.myshopify.com")
	require.NoError(t, err)
	assert.Nil(t, other.ProductID)
}
