package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestNewAndHealthy(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	client, err := New(ctx, mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, Healthy(ctx, client))

	mr.Close()
	require.Error(t, Healthy(ctx, client))
}

func TestNewFailsWithoutServer(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := New(context.Background(), addr)
	require.Error(t, err)
}

func TestHealthyNilClient(t *testing.T) {
	require.Error(t, Healthy(context.Background(), nil))
}
