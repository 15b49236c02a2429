// internal/app/store/fairdata/postgres.go
package fairdata

import (
	"context"

	"github.com/dalemusser/stratapulse/internal/domain/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	summarySQL = `SELECT
       total_registered::float8 AS total_registered,
       visitors::float8 AS visitors,
       applied_to_job::float8 AS applied_to_job,
       application::float8 AS application,
       unique_applicant::float8 AS unique_applicant,
       total_companies_jobs_apply::float8 AS total_companies_jobs_apply,
       direct_payment_for_job_apply::float8 AS direct_payment_for_job_apply,
       paid_by_applicants::float8 AS paid_by_applicants,
       became_pro_user_today::float8 AS became_pro_user_today,
       amount_from_today_pro_users::float8 AS amount_from_today_pro_users,
       pro_job_seeker_count::float8 AS pro_job_seeker_count,
       total_amount_collected::float8 AS total_amount_collected
  FROM public.fair_summary_data
 LIMIT 1`

	intervalsSQL = `SELECT intervalstart::text AS intervalstart, opidcount::bigint AS opidcount
  FROM public.opidintervalcounts
 ORDER BY intervalstart`

	transactionsSQL = `SELECT hour::int AS hour, amount::float8 AS amount
  FROM transactions
 ORDER BY hour`
)

// Querier is the subset of *pgxpool.Pool used by Postgres.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
}

// Postgres reads the fair tables from PostgreSQL.
type Postgres struct {
	q Querier
}

// NewPostgres creates a source backed by a pgx pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{q: pool}
}

// NewPostgresQuerier creates a source over any Querier.
func NewPostgresQuerier(q Querier) *Postgres {
	return &Postgres{q: q}
}

// Connect opens a pgx pool for dsn. maxConns <= 0 keeps the pgx default.
func Connect(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// Summary returns the single summary row, if any.
func (s *Postgres) Summary(ctx context.Context) ([]models.SummaryRecord, error) {
	rows, err := s.q.Query(ctx, summarySQL)
	if err != nil {
		return nil, fetchErr(QuerySummary, err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowToStructByName[models.SummaryRecord])
	if err != nil {
		return nil, fetchErr(QuerySummary, err)
	}
	return out, nil
}

// Intervals returns the interval counts ordered by start.
func (s *Postgres) Intervals(ctx context.Context) ([]models.IntervalRow, error) {
	rows, err := s.q.Query(ctx, intervalsSQL)
	if err != nil {
		return nil, fetchErr(QueryIntervals, err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowToStructByName[models.IntervalRow])
	if err != nil {
		return nil, fetchErr(QueryIntervals, err)
	}
	return out, nil
}

// Transactions returns the hourly amounts ordered by hour.
func (s *Postgres) Transactions(ctx context.Context) ([]models.TransactionRow, error) {
	rows, err := s.q.Query(ctx, transactionsSQL)
	if err != nil {
		return nil, fetchErr(QueryTransactions, err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowToStructByName[models.TransactionRow])
	if err != nil {
		return nil, fetchErr(QueryTransactions, err)
	}
	return out, nil
}

// Ping checks the pool.
func (s *Postgres) Ping(ctx context.Context) error {
	return s.q.Ping(ctx)
}
