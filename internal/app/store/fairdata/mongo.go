// internal/app/store/fairdata/mongo.go
package fairdata

import (
	"context"
	"fmt"
	"time"

	"github.com/dalemusser/stratapulse/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Collection names used by the Mongo source.
const (
	SummaryCollection     = "fair_summary_data"
	IntervalCollection    = "opidintervalcounts"
	TransactionCollection = "transactions"
)

// Mongo reads the fair collections from MongoDB.
type Mongo struct {
	db           *mongo.Database
	loc          *time.Location
	summary      *mongo.Collection
	intervals    *mongo.Collection
	transactions *mongo.Collection
}

// NewMongo creates a source over db. Interval starts stored as BSON dates
// are rendered in loc, the fair's local zone, so they bucket by local hour.
// A nil loc means UTC.
func NewMongo(db *mongo.Database, loc *time.Location) *Mongo {
	if loc == nil {
		loc = time.UTC
	}
	return &Mongo{
		db:           db,
		loc:          loc,
		summary:      db.Collection(SummaryCollection),
		intervals:    db.Collection(IntervalCollection),
		transactions: db.Collection(TransactionCollection),
	}
}

// Summary returns the most recently inserted summary document, if any.
func (s *Mongo) Summary(ctx context.Context) ([]models.SummaryRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: -1}}).SetLimit(1)
	cur, err := s.summary.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fetchErr(QuerySummary, err)
	}
	defer cur.Close(ctx)

	out := []models.SummaryRecord{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fetchErr(QuerySummary, err)
	}
	return out, nil
}

// Intervals returns the interval counts ordered by start. Starts stored as
// BSON dates are rendered as RFC 3339 text in the source's zone.
func (s *Mongo) Intervals(ctx context.Context) ([]models.IntervalRow, error) {
	opts := options.Find().SetSort(bson.D{{Key: "intervalstart", Value: 1}})
	cur, err := s.intervals.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fetchErr(QueryIntervals, err)
	}
	defer cur.Close(ctx)

	out := []models.IntervalRow{}
	for cur.Next(ctx) {
		row, err := decodeInterval(cur.Current, s.loc)
		if err != nil {
			return nil, fetchErr(QueryIntervals, err)
		}
		out = append(out, row)
	}
	if err := cur.Err(); err != nil {
		return nil, fetchErr(QueryIntervals, err)
	}
	return out, nil
}

func decodeInterval(doc bson.Raw, loc *time.Location) (models.IntervalRow, error) {
	var row models.IntervalRow

	start, err := doc.LookupErr("intervalstart")
	if err != nil {
		return row, fmt.Errorf("intervalstart: %w", err)
	}
	if t, ok := start.TimeOK(); ok {
		row.Start = t.In(loc).Format(time.RFC3339)
	} else if str, ok := start.StringValueOK(); ok {
		row.Start = str
	} else {
		return row, fmt.Errorf("intervalstart: unsupported type %s", start.Type)
	}

	count, err := doc.LookupErr("opidcount")
	if err != nil {
		return row, fmt.Errorf("opidcount: %w", err)
	}
	n, ok := count.AsInt64OK()
	if !ok {
		return row, fmt.Errorf("opidcount: unsupported type %s", count.Type)
	}
	row.Count = n
	return row, nil
}

// Transactions returns the hourly amounts ordered by hour.
func (s *Mongo) Transactions(ctx context.Context) ([]models.TransactionRow, error) {
	opts := options.Find().SetSort(bson.D{{Key: "hour", Value: 1}})
	cur, err := s.transactions.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fetchErr(QueryTransactions, err)
	}
	defer cur.Close(ctx)

	out := []models.TransactionRow{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fetchErr(QueryTransactions, err)
	}
	return out, nil
}

// Ping checks the primary.
func (s *Mongo) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, readpref.Primary())
}
