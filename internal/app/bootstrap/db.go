// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"fmt"

	"github.com/dalemusser/stratapulse/internal/app/store/fairdata"
	"github.com/dalemusser/stratapulse/internal/app/system/indexes"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// ConnectDB connects the configured datasource.
//
// WAFFLE calls this after configuration is loaded but before EnsureSchema and
// Startup. The datasource key picks one backend:
//   - postgres: a pgx pool over the fair tables
//   - mongo: the fair collections in one database
//   - static: built-in sample figures, no connection at all
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	switch appCfg.Datasource {
	case DatasourcePostgres:
		pool, err := fairdata.Connect(ctx, appCfg.PostgresDSN, appCfg.PostgresMaxConns)
		if err != nil {
			return DBDeps{}, fmt.Errorf("connect postgres: %w", err)
		}
		logger.Info("connected to PostgreSQL",
			zap.Int32("max_conns", pool.Config().MaxConns),
		)
		return DBDeps{
			Source:     fairdata.NewPostgres(pool),
			SourceName: "postgres",
			PGPool:     pool,
		}, nil

	case DatasourceMongo:
		poolCfg := wafflemongo.DefaultPoolConfig()
		if appCfg.MongoMaxPoolSize > 0 {
			poolCfg.MaxPoolSize = appCfg.MongoMaxPoolSize
		}
		if appCfg.MongoMinPoolSize > 0 {
			poolCfg.MinPoolSize = appCfg.MongoMinPoolSize
		}

		clock, err := appCfg.Clock()
		if err != nil {
			return DBDeps{}, err
		}
		client, err := wafflemongo.ConnectWithPool(ctx, appCfg.MongoURI, appCfg.MongoDatabase, poolCfg)
		if err != nil {
			return DBDeps{}, err
		}
		db := client.Database(appCfg.MongoDatabase)

		logger.Info("connected to MongoDB",
			zap.String("database", appCfg.MongoDatabase),
			zap.Uint64("max_pool_size", poolCfg.MaxPoolSize),
			zap.Uint64("min_pool_size", poolCfg.MinPoolSize),
		)
		return DBDeps{
			Source:        fairdata.NewMongo(db, clock.Start().Location()),
			SourceName:    "mongodb",
			MongoClient:   client,
			MongoDatabase: db,
		}, nil

	default:
		logger.Info("using static sample datasource")
		return DBDeps{
			Source:     fairdata.Sample(),
			SourceName: "static",
		}, nil
	}
}

// EnsureSchema creates the indexes the mongo datasource sorts on, when
// mongo_ensure_indexes is set. The fair's backend owns both stores, so a
// failure here (read-only user, unreachable primary) is logged and startup
// continues; queries still work without the indexes. The postgres tables are
// left alone.
//
// The context has a timeout based on coreCfg.IndexBootTimeout, so long-running
// work should respect context cancellation.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if deps.MongoDatabase == nil || !appCfg.MongoEnsureIndexes {
		return nil
	}

	logger.Info("ensuring database indexes")
	if err := indexes.EnsureAll(ctx, deps.MongoDatabase); err != nil {
		logger.Warn("could not ensure indexes, continuing without them", zap.Error(err))
		return nil
	}

	logger.Info("database indexes ensured")
	return nil
}
