// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// collectionIndexes is the desired index set for the fair collections, keyed
// by collection name. The summary collection is read whole and needs none.
// Indexes only serve the sorted reads; none constrains the data, since
// several transaction rows may share an hour.
var collectionIndexes = map[string][]mongo.IndexModel{
	"opidintervalcounts": {
		{
			Keys:    bson.D{{Key: "intervalstart", Value: 1}},
			Options: options.Index().SetName("idx_intervals_start"),
		},
	},
	"transactions": {
		{
			Keys:    bson.D{{Key: "hour", Value: 1}},
			Options: options.Index().SetName("idx_transactions_hour"),
		},
	},
}

/*
EnsureAll is called at startup when the mongo datasource is selected. It is
idempotent: indexes whose key pattern already exists are left alone. Errors
are aggregated into one message for the caller to log.
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string
	for _, name := range []string{"opidintervalcounts", "transactions"} {
		if err := ensure(ctx, db.Collection(name), collectionIndexes[name]); err != nil {
			problems = append(problems, name+": "+err.Error())
		}
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

type existingIndex struct {
	Name string `bson:"name"`
	Key  bson.D `bson:"key"`
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

func existingSigs(ctx context.Context, coll *mongo.Collection) (map[string]string, error) {
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	sigs := map[string]string{}
	for cur.Next(ctx) {
		var idx existingIndex
		if err := cur.Decode(&idx); err != nil {
			zap.L().Warn("failed to decode existing index",
				zap.String("collection", coll.Name()),
				zap.Error(err))
			continue
		}
		sigs[keySig(idx.Key)] = idx.Name
	}
	return sigs, cur.Err()
}

func ensure(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	start := time.Now()
	have, err := existingSigs(ctx, coll)
	if err != nil {
		// A missing collection lists nothing; CreateOne creates it.
		have = map[string]string{}
	}

	var errs []string
	for _, m := range models {
		sig := keySig(m.Keys.(bson.D))
		if name, ok := have[sig]; ok {
			zap.L().Debug("index present",
				zap.String("collection", coll.Name()),
				zap.String("name", name),
				zap.String("keys", sig))
			continue
		}
		created, err := coll.Indexes().CreateOne(ctx, m)
		if err != nil {
			zap.L().Warn("index ensure failed",
				zap.String("collection", coll.Name()),
				zap.String("keys", sig),
				zap.Error(err))
			errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), sig, err))
			continue
		}
		zap.L().Info("index ensured",
			zap.String("collection", coll.Name()),
			zap.String("name", created),
			zap.String("keys", sig),
			zap.Duration("took", time.Since(start)))
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}
