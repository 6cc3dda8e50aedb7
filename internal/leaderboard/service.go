package leaderboard

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/victornm/giveboard/internal/cache"
	"github.com/victornm/giveboard/internal/domain"
	"github.com/victornm/giveboard/internal/odds"
)

const chancePlaces = 2

type Medal string

const (
	MedalNone   Medal = ""
	MedalCrown  Medal = "crown"
	MedalSilver Medal = "silver"
	MedalBronze Medal = "bronze"
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

// Board is the ranked leaderboard, sorted by entries in descending order.
type Board struct {
	Rows         []Row
	TotalEntries int64
	UpdatedAt    time.Time
}

type Row struct {
	Rank          int
	Username      string
	Entries       int64
	Chance        float64
	ChanceDisplay string
	Medal         Medal
}

// Board returns the leaderboard with each viewer's chance to win against the total number of entries.
func (s *Service) Board(ctx context.Context) (*Board, error) {
	var (
		records []domain.LeaderboardRecord
		count   domain.EntriesCount
		state   cache.State
	)

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() (err error) {
		records, state, err = cache.Load[[]domain.LeaderboardRecord](ctx, s.cache, domain.ResourceLeaderboard)
		if err != nil {
			return fmt.Errorf("leaderboard: %w", err)
		}
		return nil
	})
	eg.Go(func() (err error) {
		count, _, err = cache.Load[domain.EntriesCount](ctx, s.cache, domain.ResourceEntriesCount)
		if err != nil {
			return fmt.Errorf("entries count: %w", err)
		}
		return nil
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return &Board{
		Rows:         Rank(records, count.TotalEntries),
		TotalEntries: count.TotalEntries,
		UpdatedAt:    state.UpdatedAt,
	}, nil
}

// Records returns the leaderboard records as the backend sent them.
func (s *Service) Records(ctx context.Context) ([]domain.LeaderboardRecord, error) {
	records, _, err := cache.Load[[]domain.LeaderboardRecord](ctx, s.cache, domain.ResourceLeaderboard)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}

	return records, nil
}

// Rank orders records by entries, ties broken by username, and computes each chance to win.
func Rank(records []domain.LeaderboardRecord, totalEntries int64) []Row {
	sorted := make([]domain.LeaderboardRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].TotalRedemptions != sorted[j].TotalRedemptions {
			return sorted[i].TotalRedemptions > sorted[j].TotalRedemptions
		}
		return sorted[i].Username < sorted[j].Username
	})

	rows := make([]Row, 0, len(sorted))
	for i, r := range sorted {
		chance := odds.Chance(r.TotalRedemptions, totalEntries)
		rows = append(rows, Row{
			Rank:          i + 1,
			Username:      r.Username,
			Entries:       r.TotalRedemptions,
			Chance:        chance,
			ChanceDisplay: odds.Percent(chance, chancePlaces),
			Medal:         medal(i + 1),
		})
	}

	return rows
}

func medal(rank int) Medal {
	switch rank {
	case 1:
		return MedalCrown
	case 2:
		return MedalSilver
	case 3:
		return MedalBronze
	default:
		return MedalNone
	}
}

type Stats struct {
	TotalParticipants        int64
	TotalEntries             int64
	TotalParticipantsDisplay string
	TotalEntriesDisplay      string
}

// Stats returns the aggregate counts, with thousands separators for display.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	t, err := s.Totals(ctx)
	if err != nil {
		return nil, err
	}

	return &Stats{
		TotalParticipants:        t.TotalParticipants,
		TotalEntries:             t.TotalEntries,
		TotalParticipantsDisplay: humanize.Comma(t.TotalParticipants),
		TotalEntriesDisplay:      humanize.Comma(t.TotalEntries),
	}, nil
}

func (s *Service) Totals(ctx context.Context) (*domain.Totals, error) {
	var (
		participants domain.ParticipantsCount
		entries      domain.EntriesCount
	)

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() (err error) {
		participants, _, err = cache.Load[domain.ParticipantsCount](ctx, s.cache, domain.ResourceParticipantsCount)
		if err != nil {
			return fmt.Errorf("participants count: %w", err)
		}
		return nil
	})
	eg.Go(func() (err error) {
		entries, _, err = cache.Load[domain.EntriesCount](ctx, s.cache, domain.ResourceEntriesCount)
		if err != nil {
			return fmt.Errorf("entries count: %w", err)
		}
		return nil
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return &domain.Totals{
		TotalParticipants: participants.TotalParticipants,
		TotalEntries:      entries.TotalEntries,
	}, nil
}
