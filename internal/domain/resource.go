package domain

// Keys of the backend resources held in the dashboard cache.
const (
	ResourceStreamers         = "streamers"
	ResourceParticipantsCount = "participants-count"
	ResourceEntriesCount      = "entries-count"
	ResourceLeaderboard       = "leaderboard"
	ResourceRecentEntries     = "recent-entries"
)
