package wheel

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/victornm/giveboard/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS draws (
	draw_id      UUID PRIMARY KEY,
	winner       TEXT NOT NULL,
	weight       BIGINT NOT NULL,
	total_weight BIGINT NOT NULL,
	draw_time    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS draws_draw_time_idx ON draws (draw_time DESC);`

type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the draws table when it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate draws: %w", err)
	}

	return nil
}

func (s *PostgresStore) InsertDraw(ctx context.Context, d domain.Draw) error {
	const stmt = `INSERT INTO draws (draw_id, winner, weight, total_weight, draw_time) VALUES ($1, $2, $3, $4, $5);`

	_, err := s.db.Exec(ctx, stmt, d.DrawID, d.Winner, d.Weight, d.TotalWeight, d.DrawTime)
	return err
}

func (s *PostgresStore) ListDraws(ctx context.Context, limit int) ([]domain.Draw, error) {
	const stmt = `
SELECT draw_id::text, winner, weight, total_weight, draw_time
FROM draws
ORDER BY draw_time DESC
LIMIT $1;`

	rows, err := s.db.Query(ctx, stmt, limit)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Draw, error) {
		var d domain.Draw
		if err := r.Scan(&d.DrawID, &d.Winner, &d.Weight, &d.TotalWeight, &d.DrawTime); err != nil {
			return domain.Draw{}, err
		}
		return d, nil
	})
}
