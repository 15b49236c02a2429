// internal/app/store/fairdata/source.go
package fairdata

import (
	"context"
	"errors"
	"fmt"

	"github.com/dalemusser/stratapulse/internal/domain/models"
)

// Query identifiers. They label fetch errors, logs and metrics.
const (
	QuerySummary      = "initial-summary"
	QueryIntervals    = "interval-series"
	QueryTransactions = "transaction-series"
)

// Queries returns every query identifier.
func Queries() []string {
	return []string{QuerySummary, QueryIntervals, QueryTransactions}
}

// Source reads the fair tables. Implementations must be safe for concurrent use.
type Source interface {
	// Summary returns zero or one summary record.
	Summary(ctx context.Context) ([]models.SummaryRecord, error)
	// Intervals returns the pro-purchase interval series ordered by start.
	Intervals(ctx context.Context) ([]models.IntervalRow, error)
	// Transactions returns the hourly transaction amounts ordered by hour.
	Transactions(ctx context.Context) ([]models.TransactionRow, error)
	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error
}

// ErrUnavailable is wrapped by fetch errors from a source that is not connected.
var ErrUnavailable = errors.New("fairdata: store unavailable")

// FetchError reports a failed query.
type FetchError struct {
	Query string
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fairdata: %s: %v", e.Query, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func fetchErr(query string, err error) error {
	if err == nil {
		return nil
	}
	return &FetchError{Query: query, Err: err}
}

// IsFetchError reports whether err came from a failed query, and which one.
func IsFetchError(err error) (string, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Query, true
	}
	return "", false
}
