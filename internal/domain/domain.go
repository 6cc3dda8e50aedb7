package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Streamer is a channel hosting the giveaway.
type Streamer struct {
	Username        string `json:"username"`
	TwitchID        string `json:"twitch_id"`
	ProfileImageURL string `json:"profile_image_url"`
	IsLive          Flag   `json:"is_live"`
}

// Entry is a single reward redemption by a viewer on a streamer's channel.
type Entry struct {
	MessageID        string    `json:"message_id"`
	RedeemedAt       time.Time `json:"redeemed_at"`
	StreamerUsername string    `json:"streamer_username"`
	ViewerUsername   string    `json:"viewer_username"`
}

// LeaderboardRecord is the number of redemptions of a viewer across all streamers.
type LeaderboardRecord struct {
	Username         string `json:"username"`
	TotalRedemptions int64  `json:"total_redemptions"`
}

type ParticipantsCount struct {
	TotalParticipants int64 `json:"total_participants"`
}

type EntriesCount struct {
	TotalEntries int64 `json:"total_entries"`
}

// Totals are the aggregate counts used as denominators.
type Totals struct {
	TotalParticipants int64
	TotalEntries      int64
}

// User is the streamer signed in to the dashboard.
type User struct {
	TwitchID        string `json:"twitch_id"`
	Username        string `json:"username"`
	ProfileImageURL string `json:"profile_image_url"`
}

// Draw is the outcome of a prize wheel spin.
type Draw struct {
	DrawID      string
	Winner      string
	Weight      int64
	TotalWeight int64
	DrawTime    time.Time
}

// Flag decodes a boolean the backend sends either as a JSON bool or as a string.
type Flag bool

func (f *Flag) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch v := v.(type) {
	case nil:
		*f = false
	case bool:
		*f = Flag(v)
	case string:
		if v == "" {
			*f = false
			return nil
		}

		p, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("flag: %w", err)
		}
		*f = Flag(p)
	default:
		return fmt.Errorf("flag: unexpected %T", v)
	}

	return nil
}
