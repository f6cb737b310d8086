package stats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS crawl_statistics (
	retailer_id         BIGINT NOT NULL,
	stat_date           DATE NOT NULL,
	crawls_started      BIGINT NOT NULL DEFAULT 0 CHECK (crawls_started >= 0),
	crawls_completed    BIGINT NOT NULL DEFAULT 0 CHECK (crawls_completed >= 0),
	crawls_failed       BIGINT NOT NULL DEFAULT 0 CHECK (crawls_failed >= 0),
	listings_discovered BIGINT NOT NULL DEFAULT 0 CHECK (listings_discovered >= 0),
	details_extracted   BIGINT NOT NULL DEFAULT 0 CHECK (details_extracted >= 0),
	PRIMARY KEY (retailer_id, stat_date)
);
`

// validCounters guards the column name interpolated into the upsert
var validCounters = map[Counter]struct{}{
	CrawlsStarted:      {},
	CrawlsCompleted:    {},
	CrawlsFailed:       {},
	ListingsDiscovered: {},
	DetailsExtracted:   {},
}

// PGStore implements Store on PostgreSQL with increment-in-place upserts,
// safe under concurrent writers.
type PGStore struct {
	db *pgxpool.Pool
}

// NewPGStore creates a statistics store backed by the given pool
func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

// EnsureSchema creates the crawl_statistics table if it does not exist
func (s *PGStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, schema)
	return err
}

func (s *PGStore) Increment(ctx context.Context, retailerID int64, counter Counter, n int64) error {
	if _, ok := validCounters[counter]; !ok {
		return fmt.Errorf("unknown statistic counter %q", counter)
	}
	if n <= 0 {
		return nil
	}
	query := fmt.Sprintf(`
		INSERT INTO crawl_statistics (retailer_id, stat_date, %[1]s)
		VALUES ($1, CURRENT_DATE, $2)
		ON CONFLICT (retailer_id, stat_date) DO UPDATE SET
			%[1]s = crawl_statistics.%[1]s + EXCLUDED.%[1]s;
	`, counter)
	_, err := s.db.Exec(ctx, query, retailerID, n)
	return err
}

func (s *PGStore) ForDate(ctx context.Context, retailerID int64, date time.Time) (*Stat, error) {
	query := `
		SELECT retailer_id, stat_date, crawls_started, crawls_completed,
			crawls_failed, listings_discovered, details_extracted
		FROM crawl_statistics
		WHERE retailer_id = $1 AND stat_date = $2;
	`
	var st Stat
	err := s.db.QueryRow(ctx, query, retailerID, date).Scan(
		&st.RetailerID, &st.Date, &st.CrawlsStarted, &st.CrawlsCompleted,
		&st.CrawlsFailed, &st.ListingsDiscovered, &st.DetailsExtracted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// No events yet for the day: an all-zero row, not an error
			return &Stat{RetailerID: retailerID, Date: date}, nil
		}
		return nil, err
	}
	return &st, nil
}
