package activity_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/giveboard/internal/activity"
	"github.com/victornm/giveboard/internal/cache"
	"github.com/victornm/giveboard/internal/domain"
	"github.com/victornm/giveboard/internal/errors"
)

func TestService_RecentEntries(t *testing.T) {
	now := time.Date(2025, time.March, 14, 18, 30, 0, 0, time.UTC)

	tests := map[string]struct {
		body    string
		want    []activity.RecentEntry
		wantErr bool
	}{
		"should describe each entry relative to now": {
			body: `[
				{"message_id":"m1","redeemed_at":"2025-03-14T18:29:55Z","streamer_username":"s1","viewer_username":"v1"},
				{"message_id":"m2","redeemed_at":"2025-03-14T17:30:00Z","streamer_username":"s2","viewer_username":"v2"}
			]`,
			want: []activity.RecentEntry{
				{
					MessageID:        "m1",
					ViewerUsername:   "v1",
					StreamerUsername: "s1",
					RedeemedAt:       time.Date(2025, time.March, 14, 18, 29, 55, 0, time.UTC),
					RedeemedAgo:      "5 seconds ago",
				},
				{
					MessageID:        "m2",
					ViewerUsername:   "v2",
					StreamerUsername: "s2",
					RedeemedAt:       time.Date(2025, time.March, 14, 17, 30, 0, 0, time.UTC),
					RedeemedAgo:      "1 hour ago",
				},
			},
		},
		"should return an empty list": {
			body: `[]`,
			want: []activity.RecentEntry{},
		},
		"should fail on a malformed timestamp": {
			body:    `[{"message_id":"m1","redeemed_at":"soon"}]`,
			wantErr: true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			s := activity.NewService(activity.Config{Cache: makeCache(t, domain.ResourceRecentEntries, tt.body)})

			got, err := s.RecentEntries(context.Background(), now)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, errors.CodeUnavailable))
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestService_Streamers(t *testing.T) {
	s := activity.NewService(activity.Config{Cache: makeCache(t, domain.ResourceStreamers, `[
		{"username":"offline","twitch_id":"1","profile_image_url":"https://img/1","is_live":"false"},
		{"username":"z","twitch_id":"2","profile_image_url":"https://img/2","is_live":true},
		{"username":"ümlaut","twitch_id":"3","profile_image_url":"","is_live":""}
	]`)})

	got, err := s.Streamers(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []activity.Streamer{
		{Username: "z", TwitchID: "2", ProfileImageURL: "https://img/2", Initials: "z", IsLive: true},
		{Username: "offline", TwitchID: "1", ProfileImageURL: "https://img/1", Initials: "of"},
		{Username: "ümlaut", TwitchID: "3", Initials: "üm"},
	}, got)
}

func makeCache(t *testing.T, key, body string) *cache.Cache {
	t.Helper()

	c := cache.New(cache.Config{})
	t.Cleanup(c.Close)
	c.Register(key, func(context.Context) ([]byte, error) {
		return []byte(body), nil
	}, cache.DefaultOptions())

	return c
}
