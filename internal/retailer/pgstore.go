package retailer

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS retailers (
	id                   BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	name                 TEXT NOT NULL,
	slug                 TEXT NOT NULL UNIQUE,
	base_url             TEXT NOT NULL,
	extractor_key        TEXT NOT NULL DEFAULT '',
	rate_limit_ms        BIGINT NOT NULL DEFAULT 1000,
	status               TEXT NOT NULL DEFAULT 'active',
	pause_expiry         TIMESTAMPTZ,
	last_crawled_at      TIMESTAMPTZ,
	last_failure_at      TIMESTAMPTZ,
	consecutive_failures INT NOT NULL DEFAULT 0 CHECK (consecutive_failures >= 0)
);
`

const retailerColumns = `id, name, slug, base_url, extractor_key, rate_limit_ms,
	status, pause_expiry, last_crawled_at, last_failure_at, consecutive_failures`

// PGStore implements Store on PostgreSQL. All outcome reporting is done in
// single-statement read-modify-writes so concurrent failure reports cannot
// race into a lost increment or an invalid status.
type PGStore struct {
	db         *pgxpool.Pool
	thresholds Thresholds
}

// NewPGStore creates a retailer store backed by the given pool
func NewPGStore(db *pgxpool.Pool, thresholds Thresholds) *PGStore {
	return &PGStore{db: db, thresholds: thresholds}
}

// EnsureSchema creates the retailers table if it does not exist
func (s *PGStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, schema)
	return err
}

func scanRetailer(row pgx.Row) (*Retailer, error) {
	var r Retailer
	var rateLimitMs int64
	err := row.Scan(&r.ID, &r.Name, &r.Slug, &r.BaseURL, &r.ExtractorKey,
		&rateLimitMs, &r.Status, &r.PauseExpiry, &r.LastCrawledAt,
		&r.LastFailureAt, &r.ConsecutiveFailures)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	r.RateLimit = time.Duration(rateLimitMs) * time.Millisecond
	return &r, nil
}

func (s *PGStore) Create(ctx context.Context, r *Retailer) error {
	if r.Status == "" {
		r.Status = StatusActive
	}
	query := `
		INSERT INTO retailers (name, slug, base_url, extractor_key, rate_limit_ms, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (slug) DO UPDATE SET
			name = EXCLUDED.name,
			base_url = EXCLUDED.base_url,
			extractor_key = EXCLUDED.extractor_key,
			rate_limit_ms = EXCLUDED.rate_limit_ms
		RETURNING id;
	`
	return s.db.QueryRow(ctx, query, r.Name, r.Slug, r.BaseURL, r.ExtractorKey,
		r.RateLimit.Milliseconds(), r.Status).Scan(&r.ID)
}

func (s *PGStore) GetBySlug(ctx context.Context, slug string) (*Retailer, error) {
	query := `SELECT ` + retailerColumns + ` FROM retailers WHERE slug = $1;`
	return scanRetailer(s.db.QueryRow(ctx, query, slug))
}

func (s *PGStore) List(ctx context.Context) ([]*Retailer, error) {
	query := `SELECT ` + retailerColumns + ` FROM retailers ORDER BY slug;`
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var retailers []*Retailer
	for rows.Next() {
		r, err := scanRetailer(rows)
		if err != nil {
			return nil, err
		}
		retailers = append(retailers, r)
	}
	return retailers, rows.Err()
}

// guardedUpdate runs an UPDATE whose WHERE clause encodes the transition
// guard. Zero affected rows means either an unknown slug or a guard
// rejection; the follow-up read tells the two apart.
func (s *PGStore) guardedUpdate(ctx context.Context, slug, query string, args ...any) (*Retailer, error) {
	r, err := scanRetailer(s.db.QueryRow(ctx, query, args...))
	if err == nil {
		return r, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if _, getErr := s.GetBySlug(ctx, slug); getErr != nil {
		return nil, getErr
	}
	return nil, ErrInvalidTransition
}

func (s *PGStore) Pause(ctx context.Context, slug string, until time.Time) (*Retailer, error) {
	query := `
		UPDATE retailers
		SET status = 'paused', pause_expiry = $2
		WHERE slug = $1 AND status IN ('active', 'degraded', 'failed')
		RETURNING ` + retailerColumns + `;`
	return s.guardedUpdate(ctx, slug, query, slug, until)
}

func (s *PGStore) Resume(ctx context.Context, slug string) (*Retailer, error) {
	query := `
		UPDATE retailers
		SET status = 'active', pause_expiry = NULL
		WHERE slug = $1 AND status = 'paused'
		RETURNING ` + retailerColumns + `;`
	return s.guardedUpdate(ctx, slug, query, slug)
}

func (s *PGStore) Disable(ctx context.Context, slug string) (*Retailer, error) {
	query := `
		UPDATE retailers
		SET status = 'disabled', pause_expiry = NULL
		WHERE slug = $1 AND status <> 'disabled'
		RETURNING ` + retailerColumns + `;`
	return s.guardedUpdate(ctx, slug, query, slug)
}

func (s *PGStore) Enable(ctx context.Context, slug string) (*Retailer, error) {
	query := `
		UPDATE retailers
		SET status = 'active', pause_expiry = NULL, consecutive_failures = 0
		WHERE slug = $1 AND status = 'disabled'
		RETURNING ` + retailerColumns + `;`
	return s.guardedUpdate(ctx, slug, query, slug)
}

func (s *PGStore) RecordSuccess(ctx context.Context, slug string) (*Retailer, error) {
	query := `
		UPDATE retailers
		SET consecutive_failures = 0,
			last_crawled_at = NOW(),
			status = CASE
				WHEN status IN ('active', 'degraded', 'failed') THEN 'active'
				ELSE status
			END
		WHERE slug = $1
		RETURNING ` + retailerColumns + `;`
	return scanRetailer(s.db.QueryRow(ctx, query, slug))
}

func (s *PGStore) RecordFailure(ctx context.Context, slug string) (*Retailer, error) {
	query := `
		UPDATE retailers
		SET consecutive_failures = consecutive_failures + 1,
			last_failure_at = NOW(),
			status = CASE
				WHEN status NOT IN ('active', 'degraded', 'failed') THEN status
				WHEN consecutive_failures + 1 >= $2 THEN 'failed'
				WHEN consecutive_failures + 1 >= $3 THEN 'degraded'
				ELSE 'active'
			END
		WHERE slug = $1
		RETURNING ` + retailerColumns + `;`
	return scanRetailer(s.db.QueryRow(ctx, query, slug, s.thresholds.Failed, s.thresholds.Degraded))
}

func (s *PGStore) TouchLastCrawled(ctx context.Context, slug string) error {
	_, err := s.db.Exec(ctx, `UPDATE retailers SET last_crawled_at = NOW() WHERE slug = $1;`, slug)
	return err
}

func (s *PGStore) ResumeExpired(ctx context.Context, now time.Time) ([]string, error) {
	query := `
		UPDATE retailers
		SET status = 'active', pause_expiry = NULL
		WHERE status = 'paused' AND pause_expiry <= $1
		RETURNING slug;`
	rows, err := s.db.Query(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slugs []string
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return nil, err
		}
		slugs = append(slugs, slug)
	}
	return slugs, rows.Err()
}
