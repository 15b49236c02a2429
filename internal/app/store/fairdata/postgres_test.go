package fairdata

import (
	"context"
	"errors"
	"os"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/stratapulse/internal/app/system/transforms"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// fakeRows serves fixed rows through the pgx.Rows interface.
type fakeRows struct {
	cols   []string
	data   [][]any
	pos    int
	err    error
	closed bool
}

func (r *fakeRows) Close()                        { r.closed = true }
func (r *fakeRows) Err() error                    { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag { return pgconn.NewCommandTag("SELECT") }
func (r *fakeRows) Conn() *pgx.Conn               { return nil }
func (r *fakeRows) RawValues() [][]byte           { return nil }

func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription {
	out := make([]pgconn.FieldDescription, len(r.cols))
	for i, c := range r.cols {
		out[i] = pgconn.FieldDescription{Name: c}
	}
	return out
}

func (r *fakeRows) Next() bool {
	if r.closed || r.pos >= len(r.data) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Values() ([]any, error) { return r.data[r.pos-1], nil }

// Scan assigns the current row into dest, allocating pointer targets for
// non-NULL values the way pgx does for nullable columns.
func (r *fakeRows) Scan(dest ...any) error {
	row := r.data[r.pos-1]
	if len(dest) != len(row) {
		return errors.New("fakeRows: wrong number of scan targets")
	}
	for i, d := range dest {
		target := reflect.ValueOf(d).Elem()
		if row[i] == nil {
			target.Set(reflect.Zero(target.Type()))
			continue
		}
		v := reflect.ValueOf(row[i])
		if target.Kind() == reflect.Pointer {
			p := reflect.New(target.Type().Elem())
			p.Elem().Set(v.Convert(target.Type().Elem()))
			target.Set(p)
			continue
		}
		target.Set(v.Convert(target.Type()))
	}
	return nil
}

// fakeQuerier returns canned rows per query text.
type fakeQuerier struct {
	rows    map[string]*fakeRows
	err     error
	pingErr error
	queries []string
}

func (q *fakeQuerier) Query(_ context.Context, sql string, _ ...any) (pgx.Rows, error) {
	q.queries = append(q.queries, sql)
	if q.err != nil {
		return nil, q.err
	}
	return q.rows[sql], nil
}

func (q *fakeQuerier) Ping(context.Context) error { return q.pingErr }

var summaryCols = []string{
	"total_registered", "visitors", "applied_to_job", "application", "unique_applicant",
	"total_companies_jobs_apply", "direct_payment_for_job_apply", "paid_by_applicants",
	"became_pro_user_today", "amount_from_today_pro_users", "pro_job_seeker_count",
	"total_amount_collected",
}

func TestPostgresSummaryMapsEveryColumn(t *testing.T) {
	row := []any{4820.0, 3100.0, 1260.0, 2240.0, 1180.0, 310.0, 25500.0, 980.0, 145.0, 35150.0, nil, 60650.0}
	q := &fakeQuerier{rows: map[string]*fakeRows{
		summarySQL: {cols: summaryCols, data: [][]any{row}},
	}}

	got, err := NewPostgresQuerier(q).Summary(context.Background())
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len(Summary()) = %d, want 1", len(got))
	}
	rec := got[0]
	fields := []*float64{
		rec.TotalRegistered, rec.Visitors, rec.AppliedToJob, rec.Application, rec.UniqueApplicant,
		rec.TotalCompaniesJobsApply, rec.DirectPaymentForJobApply, rec.PaidByApplicants,
		rec.BecameProUserToday, rec.AmountFromTodayProUsers, rec.ProJobSeekerCount,
		rec.TotalAmountCollected,
	}
	for i, f := range fields {
		want, _ := row[i].(float64)
		switch {
		case row[i] == nil && f != nil:
			t.Errorf("%s = %v, want nil", summaryCols[i], *f)
		case row[i] != nil && (f == nil || *f != want):
			t.Errorf("%s = %v, want %v", summaryCols[i], f, want)
		}
	}
	if !q.rows[summarySQL].closed {
		t.Error("summary rows were not closed")
	}
}

func TestPostgresSummaryEmpty(t *testing.T) {
	q := &fakeQuerier{rows: map[string]*fakeRows{
		summarySQL: {cols: summaryCols},
	}}
	got, err := NewPostgresQuerier(q).Summary(context.Background())
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Summary() = %+v, want no records", got)
	}
}

func TestPostgresSeries(t *testing.T) {
	q := &fakeQuerier{rows: map[string]*fakeRows{
		intervalsSQL: {
			cols: []string{"intervalstart", "opidcount"},
			data: [][]any{
				{"2025-04-23 09:05:00+06", int64(3)},
				{"2025-04-23 10:10:00+06", int64(5)},
			},
		},
		transactionsSQL: {
			cols: []string{"hour", "amount"},
			data: [][]any{{9, 10.0}, {10, 20.5}, {10, 4.5}},
		},
	}}
	src := NewPostgresQuerier(q)
	ctx := context.Background()

	intervals, err := src.Intervals(ctx)
	if err != nil {
		t.Fatalf("Intervals() error = %v", err)
	}
	if len(intervals) != 2 || intervals[1].Start != "2025-04-23 10:10:00+06" || intervals[1].Count != 5 {
		t.Errorf("Intervals() = %+v", intervals)
	}
	hourly, err := transforms.HourlyAggregate(intervals)
	if err != nil {
		t.Fatalf("HourlyAggregate() error = %v", err)
	}
	if len(hourly) != 2 || hourly[0].Hour != 9 || hourly[1].Hour != 10 {
		t.Errorf("HourlyAggregate() = %+v, want hours 9 and 10", hourly)
	}

	txns, err := src.Transactions(ctx)
	if err != nil {
		t.Fatalf("Transactions() error = %v", err)
	}
	if len(txns) != 3 || txns[1].Hour != 10 || txns[1].Amount != 20.5 || txns[2].Amount != 4.5 {
		t.Errorf("Transactions() = %+v", txns)
	}
}

func TestPostgresErrorsAreFetchErrors(t *testing.T) {
	ctx := context.Background()
	refused := errors.New("connection refused")

	tests := []struct {
		name  string
		q     *fakeQuerier
		query string
		call  func(*Postgres) error
	}{
		{
			name:  "summary query fails",
			q:     &fakeQuerier{err: refused},
			query: QuerySummary,
			call:  func(p *Postgres) error { _, err := p.Summary(ctx); return err },
		},
		{
			name:  "intervals query fails",
			q:     &fakeQuerier{err: refused},
			query: QueryIntervals,
			call:  func(p *Postgres) error { _, err := p.Intervals(ctx); return err },
		},
		{
			name: "transactions iteration fails",
			q: &fakeQuerier{rows: map[string]*fakeRows{
				transactionsSQL: {cols: []string{"hour", "amount"}, err: refused},
			}},
			query: QueryTransactions,
			call:  func(p *Postgres) error { _, err := p.Transactions(ctx); return err },
		},
		{
			name: "summary column missing",
			q: &fakeQuerier{rows: map[string]*fakeRows{
				summarySQL: {cols: summaryCols[:11], data: [][]any{make([]any, 11)}},
			}},
			query: QuerySummary,
			call:  func(p *Postgres) error { _, err := p.Summary(ctx); return err },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call(NewPostgresQuerier(tt.q))
			if err == nil {
				t.Fatal("error = nil, want a fetch error")
			}
			q, ok := IsFetchError(err)
			if !ok || q != tt.query {
				t.Errorf("IsFetchError(%v) = %q, %v; want %q, true", err, q, ok, tt.query)
			}
		})
	}

	_, err := NewPostgresQuerier(&fakeQuerier{err: refused}).Summary(ctx)
	if !errors.Is(err, refused) {
		t.Errorf("Summary() error = %v, want it to wrap %v", err, refused)
	}
}

func TestPostgresPing(t *testing.T) {
	down := errors.New("down")
	if err := NewPostgresQuerier(&fakeQuerier{pingErr: down}).Ping(context.Background()); !errors.Is(err, down) {
		t.Errorf("Ping() error = %v, want %v", err, down)
	}
}

// txQuerier runs queries inside a transaction that the test rolls back.
type txQuerier struct {
	pgx.Tx
	pool *pgxpool.Pool
}

func (q txQuerier) Ping(ctx context.Context) error { return q.pool.Ping(ctx) }

// TestPostgresLive runs the real queries against STRATAPULSE_TEST_POSTGRES_DSN.
// The tables are created inside a transaction that is rolled back.
func TestPostgresLive(t *testing.T) {
	dsn := os.Getenv("STRATAPULSE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("STRATAPULSE_TEST_POSTGRES_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := Connect(ctx, dsn, 2)
	if err != nil {
		t.Skipf("test PostgreSQL not available: %v", err)
	}
	defer pool.Close()

	tx, err := pool.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback(context.Background())

	ddl := []string{
		`SET LOCAL TIME ZONE '+06'`,
		`CREATE TABLE public.fair_summary_data (` + strings.Join(summaryCols, " numeric, ") + ` numeric)`,
		`CREATE TABLE public.opidintervalcounts (intervalstart timestamptz, opidcount integer)`,
		`CREATE TABLE transactions (hour integer, amount numeric)`,
		`INSERT INTO public.fair_summary_data (visitors, total_registered) VALUES (12, 40)`,
		`INSERT INTO public.opidintervalcounts VALUES ('2025-04-23 10:10+06', 5), ('2025-04-23 09:05+06', 3)`,
		`INSERT INTO transactions VALUES (10, 20.5), (9, 10)`,
	}
	for _, stmt := range ddl {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			t.Skipf("cannot prepare fair tables (%s): %v", stmt, err)
		}
	}

	src := NewPostgresQuerier(txQuerier{Tx: tx, pool: pool})

	sum, err := src.Summary(ctx)
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if len(sum) != 1 || sum[0].Visitors == nil || *sum[0].Visitors != 12 || sum[0].Application != nil {
		t.Errorf("Summary() = %+v", sum)
	}

	intervals, err := src.Intervals(ctx)
	if err != nil {
		t.Fatalf("Intervals() error = %v", err)
	}
	hourly, err := transforms.HourlyAggregate(intervals)
	if err != nil {
		t.Fatalf("HourlyAggregate(%+v) error = %v", intervals, err)
	}
	if len(hourly) != 2 || hourly[0].Hour != 9 || hourly[0].Count != 3 {
		t.Errorf("HourlyAggregate() = %+v", hourly)
	}

	txns, err := src.Transactions(ctx)
	if err != nil {
		t.Fatalf("Transactions() error = %v", err)
	}
	if len(txns) != 2 || txns[0].Hour != 9 || txns[1].Amount != 20.5 {
		t.Errorf("Transactions() = %+v", txns)
	}
}
