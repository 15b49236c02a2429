// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"github.com/dalemusser/stratapulse/internal/app/store/fairdata"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds database and backend dependencies for this WAFFLE app.
//
// This struct is created in ConnectDB and passed to subsequent lifecycle
// hooks: EnsureSchema, Startup, BuildHandler, and Shutdown. Exactly one
// backend is connected; Source reads from it whichever it is.
//
// The Shutdown hook is responsible for closing these connections gracefully
// when the application terminates.
type DBDeps struct {
	// Source serves the fair tables to every dashboard session.
	Source     fairdata.Source
	SourceName string // label for health output and logs

	// PostgreSQL pool (datasource postgres)
	PGPool *pgxpool.Pool

	// MongoDB client and database (datasource mongo)
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database
}
