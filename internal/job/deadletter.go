package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrDeadLetterNotFound is returned when no dead letter exists for an id.
var ErrDeadLetterNotFound = errors.New("dead letter not found")

// DeadLetter is a crawl job that exhausted its attempt, parked for
// operator review. Retrying re-enqueues the original job.
type DeadLetter struct {
	ID       string    `json:"id"`
	Job      CrawlJob  `json:"job"`
	Reason   string    `json:"reason"`
	FailedAt time.Time `json:"failed_at"`
}

type DeadLetterStore interface {
	Save(ctx context.Context, d DeadLetter) error
	Get(ctx context.Context, id string) (*DeadLetter, error)
	List(ctx context.Context, limit int) ([]DeadLetter, error)
	Delete(ctx context.Context, id string) error
}

// PGDeadLetterStore persists dead letters in Postgres with the job
// payload stored as jsonb.
type PGDeadLetterStore struct {
	pool *pgxpool.Pool
}

func NewPGDeadLetterStore(pool *pgxpool.Pool) *PGDeadLetterStore {
	return &PGDeadLetterStore{pool: pool}
}

const deadLetterSchema = `
CREATE TABLE IF NOT EXISTS dead_letters (
	id        TEXT PRIMARY KEY,
	job       JSONB NOT NULL,
	reason    TEXT NOT NULL,
	failed_at TIMESTAMPTZ NOT NULL
)`

func (s *PGDeadLetterStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, deadLetterSchema); err != nil {
		return fmt.Errorf("failed to create dead_letters table: %w", err)
	}
	return nil
}

func (s *PGDeadLetterStore) Save(ctx context.Context, d DeadLetter) error {
	payload, err := json.Marshal(d.Job)
	if err != nil {
		return fmt.Errorf("failed to encode job %s: %w", d.Job.ID, err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO dead_letters (id, job, reason, failed_at) VALUES ($1, $2, $3, $4)`,
		d.ID, payload, d.Reason, d.FailedAt)
	return err
}

func (s *PGDeadLetterStore) Get(ctx context.Context, id string) (*DeadLetter, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, job, reason, failed_at FROM dead_letters WHERE id = $1`, id)
	return scanDeadLetter(row)
}

func (s *PGDeadLetterStore) List(ctx context.Context, limit int) ([]DeadLetter, error) {
	query := `SELECT id, job, reason, failed_at FROM dead_letters ORDER BY failed_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DeadLetter
	for rows.Next() {
		d, err := scanDeadLetter(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (s *PGDeadLetterStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM dead_letters WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDeadLetterNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDeadLetter(row rowScanner) (*DeadLetter, error) {
	var d DeadLetter
	var payload []byte
	if err := row.Scan(&d.ID, &payload, &d.Reason, &d.FailedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDeadLetterNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(payload, &d.Job); err != nil {
		return nil, fmt.Errorf("failed to decode job payload: %w", err)
	}
	return &d, nil
}
