package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewClient_StoreUsesPrefix(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	c, err := NewClient(ctx, Options{Addr: mr.Addr(), Prefix: "adstore:"}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	require.NoError(t, c.Store().Set(ctx, "site_ads_v1", "[]"))
	v, err := mr.Get("adstore:site_ads_v1")
	require.NoError(t, err)
	assert.Equal(t, "[]", v)
}

func TestNewClient_UnreachableServer(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewClient(context.Background(), Options{Addr: addr}, zap.NewNop())
	assert.Error(t, err)
}
