package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConnectWithRetryGivesUp(t *testing.T) {
	start := time.Now()
	_, err := ConnectWithRetry(context.Background(), "not-a-mongo-uri", 100*time.Millisecond, 3, time.Millisecond)
	require.Error(t, err)
	require.Contains(t, err.Error(), "giving up after 3 attempts")
	require.Less(t, time.Since(start), 5*time.Second)
}

func TestConnectWithRetryHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ConnectWithRetry(ctx, "not-a-mongo-uri", 100*time.Millisecond, 3, time.Second)
	require.ErrorIs(t, err, context.Canceled)
}
