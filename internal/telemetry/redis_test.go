package telemetry_test

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/giveboard/internal/telemetry"
)

type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func TestMonitorRedis(t *testing.T) {
	var logs syncBuffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	ctx := context.Background()
	mr := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	t.Cleanup(func() { _ = rc.Close() })

	require.NoError(t, telemetry.MonitorRedis(rc))

	// a miss is not a failure
	require.ErrorIs(t, rc.Get(ctx, "missing").Err(), redis.Nil)
	assert.Contains(t, logs.String(), `"msg":"redis: command","cmd":"get"`)
	assert.NotContains(t, logs.String(), "redis: command failed")

	mr.SetError("boom")
	require.Error(t, rc.Set(ctx, "k", "v", 0).Err())
	assert.Contains(t, logs.String(), "redis: command failed")
}
