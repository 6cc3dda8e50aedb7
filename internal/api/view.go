package api

import (
	"time"

	"github.com/victornm/giveboard/internal/activity"
	"github.com/victornm/giveboard/internal/cache"
	"github.com/victornm/giveboard/internal/domain"
	"github.com/victornm/giveboard/internal/errors"
	"github.com/victornm/giveboard/internal/leaderboard"
)

type (
	Leaderboard struct {
		Rows         []LeaderboardRow `json:"rows"`
		TotalEntries int64            `json:"total_entries"`
		UpdatedAt    time.Time        `json:"updated_at"`
	}

	LeaderboardRow struct {
		Rank          int     `json:"rank"`
		Username      string  `json:"username"`
		Entries       int64   `json:"entries"`
		Chance        float64 `json:"chance"`
		ChanceDisplay string  `json:"chance_display"`
		Medal         string  `json:"medal,omitempty"`
	}

	Stats struct {
		TotalParticipants        int64  `json:"total_participants"`
		TotalEntries             int64  `json:"total_entries"`
		TotalParticipantsDisplay string `json:"total_participants_display"`
		TotalEntriesDisplay      string `json:"total_entries_display"`
	}

	RecentEntry struct {
		MessageID        string    `json:"message_id"`
		ViewerUsername   string    `json:"viewer_username"`
		StreamerUsername string    `json:"streamer_username"`
		RedeemedAt       time.Time `json:"redeemed_at"`
		RedeemedAgo      string    `json:"redeemed_ago"`
	}

	Streamer struct {
		Username        string `json:"username"`
		TwitchID        string `json:"twitch_id"`
		ProfileImageURL string `json:"profile_image_url,omitempty"`
		Initials        string `json:"initials"`
		IsLive          bool   `json:"is_live"`
	}

	Me struct {
		User *User `json:"user"`
	}

	User struct {
		TwitchID        string `json:"twitch_id"`
		Username        string `json:"username"`
		ProfileImageURL string `json:"profile_image_url"`
	}

	ResourceState struct {
		Key          string        `json:"key"`
		UpdatedAt    *time.Time    `json:"updated_at,omitempty"`
		IsValidating bool          `json:"is_validating"`
		Error        *errors.Error `json:"error,omitempty"`
	}

	Revalidating struct {
		Count int `json:"revalidating"`
	}

	Draw struct {
		DrawID        string    `json:"draw_id"`
		Winner        string    `json:"winner"`
		Weight        int64     `json:"weight"`
		TotalWeight   int64     `json:"total_weight"`
		Chance        float64   `json:"chance,omitempty"`
		ChanceDisplay string    `json:"chance_display,omitempty"`
		DrawTime      time.Time `json:"draw_time"`
	}
)

func toLeaderboard(b *leaderboard.Board) Leaderboard {
	l := Leaderboard{
		Rows:         make([]LeaderboardRow, 0, len(b.Rows)),
		TotalEntries: b.TotalEntries,
		UpdatedAt:    b.UpdatedAt,
	}

	for _, r := range b.Rows {
		l.Rows = append(l.Rows, LeaderboardRow{
			Rank:          r.Rank,
			Username:      r.Username,
			Entries:       r.Entries,
			Chance:        r.Chance,
			ChanceDisplay: r.ChanceDisplay,
			Medal:         string(r.Medal),
		})
	}

	return l
}

func toStats(s *leaderboard.Stats) Stats {
	return Stats{
		TotalParticipants:        s.TotalParticipants,
		TotalEntries:             s.TotalEntries,
		TotalParticipantsDisplay: s.TotalParticipantsDisplay,
		TotalEntriesDisplay:      s.TotalEntriesDisplay,
	}
}

func toRecentEntries(entries []activity.RecentEntry) []RecentEntry {
	out := make([]RecentEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, RecentEntry(e))
	}

	return out
}

func toStreamers(streamers []activity.Streamer) []Streamer {
	out := make([]Streamer, 0, len(streamers))
	for _, s := range streamers {
		out = append(out, Streamer(s))
	}

	return out
}

func toResourceState(key string, s cache.State) ResourceState {
	rs := ResourceState{
		Key:          key,
		IsValidating: s.IsValidating,
	}
	if !s.UpdatedAt.IsZero() {
		rs.UpdatedAt = &s.UpdatedAt
	}
	if s.Err != nil {
		rs.Error = errors.Convert(s.Err)
	}

	return rs
}

func toDraw(d domain.Draw) Draw {
	return Draw{
		DrawID:      d.DrawID,
		Winner:      d.Winner,
		Weight:      d.Weight,
		TotalWeight: d.TotalWeight,
		DrawTime:    d.DrawTime,
	}
}
