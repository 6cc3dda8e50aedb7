// Package activity serves the recent redemptions and the streamers hosting the giveaway.
package activity

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/victornm/giveboard/internal/cache"
	"github.com/victornm/giveboard/internal/domain"
	"github.com/victornm/giveboard/internal/relative"
)

type Config struct {
	Cache *cache.Cache
}

type Service struct {
	cache *cache.Cache
}

func NewService(c Config) *Service {
	return &Service{
		cache: c.Cache,
	}
}

type RecentEntry struct {
	MessageID        string
	ViewerUsername   string
	StreamerUsername string
	RedeemedAt       time.Time
	RedeemedAgo      string
}

// RecentEntries returns the latest redemptions in backend order, each described relative to now.
func (s *Service) RecentEntries(ctx context.Context, now time.Time) ([]RecentEntry, error) {
	entries, _, err := cache.Load[[]domain.Entry](ctx, s.cache, domain.ResourceRecentEntries)
	if err != nil {
		return nil, fmt.Errorf("recent entries: %w", err)
	}

	out := make([]RecentEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, RecentEntry{
			MessageID:        e.MessageID,
			ViewerUsername:   e.ViewerUsername,
			StreamerUsername: e.StreamerUsername,
			RedeemedAt:       e.RedeemedAt,
			RedeemedAgo:      relative.Format(e.RedeemedAt, now),
		})
	}

	return out, nil
}

type Streamer struct {
	Username        string
	TwitchID        string
	ProfileImageURL string
	Initials        string
	IsLive          bool
}

// Streamers returns the hosting streamers, live channels first.
func (s *Service) Streamers(ctx context.Context) ([]Streamer, error) {
	streamers, _, err := cache.Load[[]domain.Streamer](ctx, s.cache, domain.ResourceStreamers)
	if err != nil {
		return nil, fmt.Errorf("streamers: %w", err)
	}

	out := make([]Streamer, 0, len(streamers))
	for _, st := range streamers {
		out = append(out, Streamer{
			Username:        st.Username,
			TwitchID:        st.TwitchID,
			ProfileImageURL: st.ProfileImageURL,
			Initials:        initials(st.Username),
			IsLive:          bool(st.IsLive),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].IsLive && !out[j].IsLive
	})

	return out, nil
}

// initials is the avatar fallback: the first two characters of the username.
func initials(username string) string {
	r := []rune(username)
	if len(r) > 2 {
		r = r[:2]
	}

	return string(r)
}
