package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

func (d dialect) String() string {
	if d == dialectPostgres {
		return "postgres"
	}
	return "sqlite3"
}

// dialectFor treats postgres:// and postgresql:// URLs as PostgreSQL and
// anything else as a SQLite file path.
func dialectFor(location string) dialect {
	if strings.HasPrefix(location, "postgres://") || strings.HasPrefix(location, "postgresql://") {
		return dialectPostgres
	}
	return dialectSQLite
}

// sqliteDSN enables a busy timeout so a second process waits instead of
// failing, and enforces foreign keys the way PostgreSQL does.
func sqliteDSN(path string) string {
	return "file:" + path + "?_busy_timeout=5000&_foreign_keys=1"
}

// Open connects to the cache at location, creating the SQLite file and its
// parent directory when needed, and brings the schema up to date.
// Caller must call Close when done.
func Open(ctx context.Context, location string, log zerolog.Logger) (*SQLStore, error) {
	if location == "" {
		return nil, fmt.Errorf("open store: %w: empty location", ErrInvalidInput)
	}
	d := dialectFor(location)
	log = log.With().Str("component", "store").Str("dialect", d.String()).Logger()

	var (
		db  *sql.DB
		err error
	)
	switch d {
	case dialectPostgres:
		db, err = sql.Open("pgx", location)
	default:
		if dir := filepath.Dir(location); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create cache dir: %w", err)
			}
		}
		db, err = sql.Open("sqlite3", sqliteDSN(location))
		if err == nil {
			// Serialise writers on the single file.
			db.SetMaxOpenConns(1)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	if err := RunMigrations(ctx, d, location, log); err != nil {
		db.Close()
		return nil, err
	}
	log.Debug().Msg("cache ready")
	return &SQLStore{db: db, dialect: d, log: log}, nil
}
