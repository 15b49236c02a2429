package transforms

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dalemusser/stratapulse/internal/domain/models"
)

// TimestampError reports an interval row whose start could not be parsed.
type TimestampError struct {
	Row   int
	Value string
	Err   error
}

func (e *TimestampError) Error() string {
	return fmt.Sprintf("transforms: row %d: unparsable timestamp %q", e.Row, e.Value)
}

func (e *TimestampError) Unwrap() error { return e.Err }

// HourCount is the summed count for one hour of the day.
type HourCount struct {
	Hour  int
	Count int64
}

// Point is one sample of the transaction series.
type Point struct {
	Hour   int
	Amount float64
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z07",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
}

// ParseTimestamp parses the timestamp renderings produced by the supported
// stores. The hour of day is taken in the timestamp's own offset.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var firstErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

// HourlyAggregate sums interval counts per hour of day, ordered by hour.
// A row whose timestamp cannot be parsed fails the whole aggregate with a
// *TimestampError; rows are never dropped.
func HourlyAggregate(rows []models.IntervalRow) ([]HourCount, error) {
	buckets := make(map[int]int64)
	for i, r := range rows {
		t, err := ParseTimestamp(r.Start)
		if err != nil {
			return nil, &TimestampError{Row: i, Value: r.Start, Err: err}
		}
		buckets[t.Hour()] += r.Count
	}
	out := make([]HourCount, 0, len(buckets))
	for h, c := range buckets {
		out = append(out, HourCount{Hour: h, Count: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hour < out[j].Hour })
	return out, nil
}

// WindowedSeries sorts rows by hour (stable) and keeps those at or before
// cutoff.
func WindowedSeries(rows []models.TransactionRow, cutoff int) []Point {
	sorted := make([]models.TransactionRow, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Hour < sorted[j].Hour })

	out := make([]Point, 0, len(sorted))
	for _, r := range sorted {
		if r.Hour > cutoff {
			break
		}
		out = append(out, Point{Hour: r.Hour, Amount: r.Amount})
	}
	return out
}
