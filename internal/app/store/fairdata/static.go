// internal/app/store/fairdata/static.go
package fairdata

import (
	"context"
	"sync"

	"github.com/dalemusser/stratapulse/internal/domain/models"
)

// Static is an in-memory source. It backs the "static" datasource used for
// local runs without a database, and stands in for the store in tests.
type Static struct {
	mu           sync.Mutex
	summary      []models.SummaryRecord
	intervals    []models.IntervalRow
	transactions []models.TransactionRow
	errs         map[string]error
	calls        map[string]int
	gate         chan struct{}
}

// NewStatic creates an empty in-memory source.
func NewStatic() *Static {
	return &Static{
		errs:  make(map[string]error),
		calls: make(map[string]int),
	}
}

// SetSummary replaces the summary records.
func (s *Static) SetSummary(records ...models.SummaryRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summary = append([]models.SummaryRecord(nil), records...)
}

// SetIntervals replaces the interval rows.
func (s *Static) SetIntervals(rows ...models.IntervalRow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intervals = append([]models.IntervalRow(nil), rows...)
}

// SetTransactions replaces the transaction rows.
func (s *Static) SetTransactions(rows ...models.TransactionRow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions = append([]models.TransactionRow(nil), rows...)
}

// Fail makes query return err until cleared with a nil err.
func (s *Static) Fail(query string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.errs, query)
		return
	}
	s.errs[query] = err
}

// Hold makes every query block until Resume is called or the context ends.
func (s *Static) Hold() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gate == nil {
		s.gate = make(chan struct{})
	}
}

// Resume releases queries blocked by Hold.
func (s *Static) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gate != nil {
		close(s.gate)
		s.gate = nil
	}
}

// Calls returns how many times query has been issued.
func (s *Static) Calls(query string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[query]
}

func (s *Static) begin(ctx context.Context, query string) error {
	s.mu.Lock()
	s.calls[query]++
	gate := s.gate
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return fetchErr(query, ctx.Err())
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return fetchErr(query, s.errs[query])
}

// Summary returns the configured summary records.
func (s *Static) Summary(ctx context.Context) ([]models.SummaryRecord, error) {
	if err := s.begin(ctx, QuerySummary); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.SummaryRecord{}, s.summary...), nil
}

// Intervals returns the configured interval rows.
func (s *Static) Intervals(ctx context.Context) ([]models.IntervalRow, error) {
	if err := s.begin(ctx, QueryIntervals); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.IntervalRow{}, s.intervals...), nil
}

// Transactions returns the configured transaction rows.
func (s *Static) Transactions(ctx context.Context) ([]models.TransactionRow, error) {
	if err := s.begin(ctx, QueryTransactions); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.TransactionRow{}, s.transactions...), nil
}

// Ping always succeeds.
func (s *Static) Ping(context.Context) error { return nil }

// Sample returns a source seeded with a plausible fair day, used when the
// dashboard runs without a database.
func Sample() *Static {
	v := func(f float64) *float64 { return &f }
	s := NewStatic()
	s.SetSummary(models.SummaryRecord{
		TotalRegistered:          v(4820),
		Visitors:                 v(2915),
		AppliedToJob:             v(1340),
		Application:              v(3877),
		UniqueApplicant:          v(1206),
		TotalCompaniesJobsApply:  v(148),
		DirectPaymentForJobApply: v(18250),
		PaidByApplicants:         v(365),
		BecameProUserToday:       v(212),
		AmountFromTodayProUsers:  v(42400),
		ProJobSeekerCount:        v(987),
		TotalAmountCollected:     v(60650),
	})
	s.SetIntervals(
		models.IntervalRow{Start: "2025-04-23 09:00:00", Count: 4},
		models.IntervalRow{Start: "2025-04-23 09:05:00", Count: 7},
		models.IntervalRow{Start: "2025-04-23 10:00:00", Count: 12},
		models.IntervalRow{Start: "2025-04-23 11:30:00", Count: 9},
		models.IntervalRow{Start: "2025-04-23 13:15:00", Count: 15},
		models.IntervalRow{Start: "2025-04-23 15:45:00", Count: 6},
	)
	s.SetTransactions(
		models.TransactionRow{Hour: 9, Amount: 3200},
		models.TransactionRow{Hour: 10, Amount: 7450},
		models.TransactionRow{Hour: 11, Amount: 9800},
		models.TransactionRow{Hour: 12, Amount: 6100},
		models.TransactionRow{Hour: 13, Amount: 11250},
		models.TransactionRow{Hour: 14, Amount: 10400},
		models.TransactionRow{Hour: 15, Amount: 8350},
		models.TransactionRow{Hour: 16, Amount: 4100},
	)
	return s
}
