// Package wheel draws a giveaway winner, each viewer weighted by their number of entries.
package wheel

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/victornm/giveboard/internal/domain"
	"github.com/victornm/giveboard/internal/errors"
	"github.com/victornm/giveboard/internal/event"
	"github.com/victornm/giveboard/internal/odds"
)

const (
	chancePlaces       = 2
	defaultHistorySize = 20
	maxHistorySize     = 100
)

type Records interface {
	Records(ctx context.Context) ([]domain.LeaderboardRecord, error)
}

type DrawStore interface {
	InsertDraw(ctx context.Context, d domain.Draw) error
	ListDraws(ctx context.Context, limit int) ([]domain.Draw, error)
}

type Config struct {
	EventBus *event.Bus
	Records  Records
	Store    DrawStore
	// PickFunc returns a uniform number in [0, n). Defaults to crypto/rand.
	PickFunc func(n int64) (int64, error)
	Now      func() time.Time
}

type Service struct {
	eb      *event.Bus
	records Records
	store   DrawStore
	pick    func(n int64) (int64, error)
	now     func() time.Time
}

func NewService(c Config) *Service {
	s := &Service{
		eb:      c.EventBus,
		records: c.Records,
		store:   c.Store,
		pick:    c.PickFunc,
		now:     c.Now,
	}

	if s.pick == nil {
		s.pick = cryptoPick
	}
	if s.now == nil {
		s.now = time.Now
	}

	return s
}

type Result struct {
	Draw          domain.Draw
	Chance        float64
	ChanceDisplay string
}

// Spin draws a winner among the current leaderboard and records the draw.
func (s *Service) Spin(ctx context.Context) (*Result, error) {
	records, err := s.records.Records(ctx)
	if err != nil {
		return nil, err
	}

	winner, total, err := s.draw(records)
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate draw ID: %w", err)
	}

	d := domain.Draw{
		DrawID:      id.String(),
		Winner:      winner.Username,
		Weight:      winner.TotalRedemptions,
		TotalWeight: total,
		DrawTime:    s.now().UTC(),
	}

	if err := s.store.InsertDraw(ctx, d); err != nil {
		return nil, fmt.Errorf("insert draw: %w", err)
	}

	s.eb.Publish(ctx, domain.EventWheelSpun{Draw: d})

	chance := odds.Chance(d.Weight, d.TotalWeight)
	return &Result{
		Draw:          d,
		Chance:        chance,
		ChanceDisplay: odds.Percent(chance, chancePlaces),
	}, nil
}

// History returns the most recent draws first. A non-positive limit uses the default.
func (s *Service) History(ctx context.Context, limit int) ([]domain.Draw, error) {
	switch {
	case limit <= 0:
		limit = defaultHistorySize
	case limit > maxHistorySize:
		limit = maxHistorySize
	}

	draws, err := s.store.ListDraws(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list draws: %w", err)
	}

	return draws, nil
}

// draw walks the wheel segments in order until the picked ticket falls inside one.
// Viewers without entries own no segment.
func (s *Service) draw(records []domain.LeaderboardRecord) (domain.LeaderboardRecord, int64, error) {
	var total int64
	for _, r := range records {
		if r.TotalRedemptions > 0 {
			total += r.TotalRedemptions
		}
	}

	if total == 0 {
		return domain.LeaderboardRecord{}, 0, errors.New(errors.CodeNotFound, errors.WithMessagef("no entries to draw from"))
	}

	ticket, err := s.pick(total)
	if err != nil {
		return domain.LeaderboardRecord{}, 0, fmt.Errorf("pick ticket: %w", err)
	}

	for _, r := range records {
		if r.TotalRedemptions <= 0 {
			continue
		}
		if ticket < r.TotalRedemptions {
			return r, total, nil
		}
		ticket -= r.TotalRedemptions
	}

	return domain.LeaderboardRecord{}, 0, errors.Internal(fmt.Errorf("ticket %d out of range %d", ticket, total))
}

func cryptoPick(n int64) (int64, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(n))
	if err != nil {
		return 0, err
	}

	return v.Int64(), nil
}
