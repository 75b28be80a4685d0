package store

import (
	"context"
	"database/sql"
	"strings"

	"github.com/cockroachdb/errors"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/spigell/jobseekr/internal/config"
	"github.com/spigell/jobseekr/internal/jobs"
)

const sqliteParams = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_time_format=sqlite"

// Open connects to the configured database, verifies the connection and
// ensures the schema exists.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*SQLStore, error) {
	var (
		driver, dsn string
		dialect     Dialect
	)

	switch cfg.Type {
	case config.DatabasePostgres:
		driver, dsn, dialect = "pgx", cfg.URL, Postgres
	case config.DatabaseSQLite, "":
		driver, dsn, dialect = "sqlite", sqliteDSN(cfg.Path), SQLite
	default:
		return nil, jobs.NewConfigurationError("database.type", "use sqlite or postgres", errors.Newf("unsupported database type %q", cfg.Type))
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s database", dialect)
	}

	if dialect == SQLite {
		// one writer at a time keeps concurrent upserts from failing with SQLITE_BUSY
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.WithHint(errors.Wrapf(err, "pinging %s database", dialect), "check database.path or DATABASE_URL")
	}

	s := New(db, dialect, logger)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func sqliteDSN(path string) string {
	if path == "" {
		path = "jobs.db"
	}
	if strings.Contains(path, "?") {
		return path + "&" + sqliteParams
	}
	return "file:" + path + "?" + sqliteParams
}

// NewRedisClient parses redisURL and verifies connectivity.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, jobs.NewConfigurationError("cache.redis-url", "use redis://[user:pass@]host:port/db", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrap(err, "redis ping failed")
	}

	return client, nil
}
