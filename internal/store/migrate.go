package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
)

//go:embed migrations
var migrationsFS embed.FS

// RunMigrations brings the schema at location up to the latest version.
// A SQLite file created before versioned migrations existed is baselined
// from the columns it already has, then upgraded.
func RunMigrations(ctx context.Context, d dialect, location string, log zerolog.Logger) error {
	if d == dialectPostgres {
		return migratePostgres(location)
	}
	return migrateSQLite(ctx, location, log)
}

func migratePostgres(dsn string) error {
	src, err := iofs.New(migrationsFS, "migrations/postgres")
	if err != nil {
		return fmt.Errorf("migrations source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return fmt.Errorf("migrate.New: %w", err)
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate.Up: %w", err)
	}
	return nil
}

func migrateSQLite(ctx context.Context, path string, log zerolog.Logger) error {
	// The migrate driver closes the handle it is given, so it gets its own.
	db, err := sql.Open("sqlite3", sqliteDSN(path))
	if err != nil {
		return fmt.Errorf("open for migrate: %w", err)
	}
	defer db.Close()

	baseline, err := legacyVersion(ctx, db)
	if err != nil {
		return fmt.Errorf("inspect schema: %w", err)
	}

	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("migrate driver: %w", err)
	}
	src, err := iofs.New(migrationsFS, "migrations/sqlite")
	if err != nil {
		return fmt.Errorf("migrations source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("migrate.New: %w", err)
	}
	defer m.Close()

	if baseline > 0 {
		log.Info().Int("version", baseline).Msg("baselining existing cache schema")
		if err := m.Force(baseline); err != nil {
			return fmt.Errorf("migrate.Force: %w", err)
		}
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate.Up: %w", err)
	}
	return nil
}

// legacyVersion reports which migration an unversioned cache file already
// matches, or 0 when the file is new or already versioned.
func legacyVersion(ctx context.Context, db *sql.DB) (int, error) {
	has, err := tableExists(ctx, db, "schema_migrations")
	if err != nil || has {
		return 0, err
	}
	for _, t := range []string{"channels", "videos", "playlists", "playlist_items"} {
		ok, err := tableExists(ctx, db, t)
		if err != nil || !ok {
			return 0, err
		}
	}

	videoCols, err := columns(ctx, db, "videos")
	if err != nil {
		return 0, err
	}
	channelCols, err := columns(ctx, db, "channels")
	if err != nil {
		return 0, err
	}

	version := 1
	steps := []bool{
		videoCols["is_unlisted"],
		videoCols["is_private"],
		channelCols["title"],
		videoCols["resolution"],
	}
	for _, ok := range steps {
		if !ok {
			break
		}
		version++
	}
	return version, nil
}

func tableExists(ctx context.Context, db *sql.DB, name string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func columns(ctx context.Context, db *sql.DB, table string) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, `SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		cols[name] = true
	}
	return cols, rows.Err()
}
