package db

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/stdlib"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const pingTimeout = 5 * time.Second

func init() {
	logger.Default = logger.New(
		log.StandardLogger(),
		logger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

// PoolOptions tunes the connection pool. Zero fields take the per-dialect defaults.
type PoolOptions struct {
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

func (o PoolOptions) withDefaults(dialect string) PoolOptions {
	if o.MaxOpenConns <= 0 {
		o.MaxOpenConns = 25
		if dialect == DialectSQLite {
			o.MaxOpenConns = 10
		}
	}
	if o.ConnMaxLifetime <= 0 {
		o.ConnMaxLifetime = 30 * time.Minute
	}
	return o
}

// Open opens dsn with the default pool. PostgreSQL URLs and keyword DSNs, MySQL DSNs
// (mysql:// or user:pass@tcp(host)/db) and SQLite files are supported.
func Open(dsn string) (*gorm.DB, error) {
	return OpenWithPool(dsn, PoolOptions{})
}

// OpenWithPool opens dsn, sizes the pool and pings the server. Every dialect reads and writes
// times in UTC.
func OpenWithPool(dsn string, pool PoolOptions) (*gorm.DB, error) {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return nil, errors.New("db: empty dsn")
	}
	dialect, err := detectDialectFromDSN(trimmed)
	if err != nil {
		return nil, err
	}
	dialector, err := dialectorFor(dialect, trimmed)
	if err != nil {
		return nil, err
	}

	conn, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default})
	if err != nil {
		return nil, fmt.Errorf("db: open %s: %w", dialect, err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("db: open %s: %w", dialect, err)
	}
	pool = pool.withDefaults(dialect)
	sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	sqlDB.SetMaxIdleConns(pool.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(pool.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if errPing := sqlDB.PingContext(ctx); errPing != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("db: ping %s: %w", dialect, errPing)
	}
	log.WithFields(log.Fields{"dialect": dialect, "max_open_conns": pool.MaxOpenConns}).Debug("database connected")
	return conn, nil
}

// detectDialectFromDSN infers the dialect from a DSN string.
func detectDialectFromDSN(dsn string) (string, error) {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	switch {
	case strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://"):
		return DialectPostgres, nil
	case strings.Contains(lower, "host=") || strings.Contains(lower, "user=") || strings.Contains(lower, "dbname=") || strings.Contains(lower, "sslmode="):
		return DialectPostgres, nil
	case strings.HasPrefix(lower, "mysql://") || strings.Contains(lower, "@tcp(") || strings.Contains(lower, "@unix("):
		return DialectMySQL, nil
	case strings.HasPrefix(lower, "file:"),
		strings.HasPrefix(lower, "sqlite://"),
		strings.HasPrefix(lower, "sqlite3://"),
		!strings.Contains(lower, "://"):
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("db: unsupported dsn: %s", dsn)
	}
}

func dialectorFor(dialect, dsn string) (gorm.Dialector, error) {
	switch dialect {
	case DialectPostgres:
		cfg, errParse := pgx.ParseConfig(dsn)
		if errParse != nil {
			return nil, fmt.Errorf("db: parse dsn: %w", errParse)
		}
		cfg.RuntimeParams["timezone"] = "UTC"
		return postgres.New(postgres.Config{Conn: stdlib.OpenDB(*cfg, stdlib.OptionAfterConnect(scanTimestampsInUTC))}), nil
	case DialectMySQL:
		return mysql.Open(normalizeMySQLDSN(dsn)), nil
	case DialectSQLite:
		target, path := sqliteTarget(dsn)
		if dir := filepath.Dir(path); path != "" && dir != "." {
			if errMkdir := os.MkdirAll(dir, 0o755); errMkdir != nil {
				return nil, fmt.Errorf("db: create sqlite dir: %w", errMkdir)
			}
		}
		return sqlite.Open(target), nil
	default:
		return nil, fmt.Errorf("db: unsupported dialect: %s", dialect)
	}
}

// scanTimestampsInUTC makes pgx return timestamp columns in UTC instead of the local zone.
func scanTimestampsInUTC(_ context.Context, conn *pgx.Conn) error {
	types := conn.TypeMap()
	types.RegisterType(&pgtype.Type{
		Name:  "timestamp",
		OID:   pgtype.TimestampOID,
		Codec: &pgtype.TimestampCodec{ScanLocation: time.UTC},
	})
	types.RegisterType(&pgtype.Type{
		Name:  "timestamptz",
		OID:   pgtype.TimestamptzOID,
		Codec: &pgtype.TimestamptzCodec{ScanLocation: time.UTC},
	})
	return nil
}

// normalizeMySQLDSN strips the mysql:// scheme and forces parseTime and UTC locations.
func normalizeMySQLDSN(dsn string) string {
	trimmed := strings.TrimSpace(dsn)
	if strings.HasPrefix(strings.ToLower(trimmed), "mysql://") {
		trimmed = trimmed[len("mysql://"):]
	}
	lower := strings.ToLower(trimmed)
	var add []string
	if !strings.Contains(lower, "parsetime=") {
		add = append(add, "parseTime=true")
	}
	if !strings.Contains(lower, "loc=") {
		add = append(add, "loc=UTC")
	}
	return appendParams(trimmed, add)
}

// sqlitePragmas are applied on every pooled connection through the DSN.
var sqlitePragmas = []struct{ name, value string }{
	{"busy_timeout", "5000"},
	{"foreign_keys", "1"},
	{"journal_mode", "WAL"},
	{"synchronous", "NORMAL"},
}

// sqliteTarget rewrites sqlite:// URLs to file: DSNs, adds the missing pragmas and returns the
// database file path ("" for in-memory databases).
func sqliteTarget(dsn string) (string, string) {
	target := strings.TrimSpace(dsn)
	if scheme, rest, found := strings.Cut(target, "://"); found && strings.HasPrefix(strings.ToLower(scheme), "sqlite") {
		target = "file:" + rest
	}

	lower := strings.ToLower(target)
	var add []string
	for _, pragma := range sqlitePragmas {
		if !strings.Contains(lower, "_pragma="+pragma.name) {
			add = append(add, fmt.Sprintf("_pragma=%s(%s)", pragma.name, pragma.value))
		}
	}
	target = appendParams(target, add)

	path, _, _ := strings.Cut(strings.TrimPrefix(target, "file:"), "?")
	path = strings.TrimPrefix(path, "//")
	if path == ":memory:" || strings.Contains(lower, "mode=memory") {
		path = ""
	}
	return target, path
}

func appendParams(dsn string, params []string) string {
	if len(params) == 0 {
		return dsn
	}
	separator := "?"
	if strings.Contains(dsn, "?") {
		separator = "&"
	}
	return dsn + separator + strings.Join(params, "&")
}
