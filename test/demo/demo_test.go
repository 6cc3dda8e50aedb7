//go:build integration_test

package demo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/victornm/giveboard/internal/api"
	"github.com/victornm/giveboard/internal/domain"
)

const (
	httpAddr = "http://localhost:8080"
	grpcAddr = "localhost:8081"
	prefix   = "local:pubsub"
)

func TestDashboard(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// The server reports serving only when the giveaway backend answers
	{
		resp, err := makeHealthClient(t).Check(ctx, &healthpb.HealthCheckRequest{})
		require.NoError(t, err)
		require.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)
	}

	wheel := subscribeRedis(t, makeRedis(t), fmt.Sprintf("%s:wheel", prefix))

	// Every panel loads, or reports its own error
	{
		var o api.Overview
		getJSON(t, ctx, "/api/overview", &o)

		if o.Leaderboard.Data != nil {
			t.Logf("leaderboard:\n%s", formatLeaderboard(*o.Leaderboard.Data))
		} else {
			t.Logf("leaderboard failed: %s", o.Leaderboard.Error.Message)
		}

		if o.RecentEntries.Data != nil {
			for _, e := range *o.RecentEntries.Data {
				t.Logf("%s redeemed on %s %s", e.ViewerUsername, e.StreamerUsername, e.RedeemedAgo)
			}
		}
	}

	// Spin the wheel and wait for the announcement
	{
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, httpAddr+"/api/wheel/spin", nil)
		require.NoError(t, err)

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			t.Skip("no entries to draw from")
		}
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var d api.Draw
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&d))
		t.Logf("winner: %s with %s%% chance", d.Winner, d.ChanceDisplay)

		select {
		case msg := <-wheel:
			var n struct {
				Event string   `json:"event"`
				Data  api.Draw `json:"data"`
			}
			require.NoError(t, json.Unmarshal([]byte(msg.Payload), &n))
			require.Equal(t, domain.EventNameWheelSpun, n.Event)
			require.Equal(t, d.DrawID, n.Data.DrawID)
		case <-ctx.Done():
			t.Fatal("no wheel notification")
		}
	}
}

func getJSON(t *testing.T, ctx context.Context, path string, v any) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, httpAddr+path, nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func makeHealthClient(t *testing.T) healthpb.HealthClient {
	conn, err := grpc.NewClient(grpcAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return healthpb.NewHealthClient(conn)
}

func subscribeRedis(t *testing.T, rc redis.UniversalClient, channel string) <-chan *redis.Message {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub := rc.Subscribe(ctx, channel)
	t.Cleanup(func() { sub.Close() })

	if _, err := sub.Receive(ctx); err != nil {
		t.Fatal(err)
	}

	return sub.Channel()
}

func makeRedis(t *testing.T) redis.UniversalClient {
	r := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{"localhost:6379"},
	})
	t.Cleanup(func() { r.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.Ping(ctx).Err(); err != nil {
		t.Fatal(err)
	}

	return r
}

func formatLeaderboard(l api.Leaderboard) string {
	var s string
	for _, r := range l.Rows {
		s += fmt.Sprintf("%d. %s: %d entries, %s%%\n", r.Rank, r.Username, r.Entries, r.ChanceDisplay)
	}
	return s
}
