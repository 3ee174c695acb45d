package store

import (
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/mpontes/nudge/internal/store/migrations"
)

// ftsMigrationVersion is the schema version that introduces the FTS5
// virtual table and its triggers. Everything below it works on any SQLite
// build.
const ftsMigrationVersion = 2

// MigrateResult describes what happened during migration.
type MigrateResult struct {
	Version uint
	Dirty   bool
	Changed bool
	// FTS reports whether full-text search is provisioned. False when the
	// linked SQLite lacks the FTS5 module (mattn/go-sqlite3 compiles it
	// only under the sqlite_fts5 build tag); the store then stops at the
	// pre-FTS schema and SearchMessages returns ErrSearchUnavailable.
	FTS bool
}

// Migrate runs all pending migrations the linked SQLite can support.
func (db *DB) Migrate() (*MigrateResult, error) {
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, storageErr("migration source", err)
	}

	driver, err := sqlite3.WithInstance(db.DB, &sqlite3.Config{})
	if err != nil {
		return nil, storageErr("migration driver", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return nil, storageErr("migration instance", err)
	}

	fts, err := db.fts5Available()
	if err != nil {
		return nil, storageErr("probe fts5", err)
	}

	if fts {
		err = m.Up()
	} else {
		// A database provisioned by an FTS5-capable build cannot be
		// downgraded here: the virtual table is undroppable without the
		// module, and its triggers would break every insert.
		current, _, verr := m.Version()
		if verr == nil && current >= ftsMigrationVersion {
			return nil, storageErr("migrate",
				fmt.Errorf("database has the full-text schema but this SQLite lacks FTS5; rebuild with -tags sqlite_fts5"))
		}
		err = m.Migrate(ftsMigrationVersion - 1)
	}
	changed := true
	if err == migrate.ErrNoChange {
		changed = false
		err = nil
	}
	if err != nil {
		return nil, storageErr("migration up", err)
	}

	version, dirty, _ := m.Version()
	return &MigrateResult{
		Version: version,
		Dirty:   dirty,
		Changed: changed,
		FTS:     fts,
	}, nil
}

// fts5Available reports whether the linked SQLite was compiled with the
// FTS5 module.
func (db *DB) fts5Available() (bool, error) {
	var one int
	err := db.QueryRow(`SELECT 1 FROM pragma_compile_options WHERE compile_options = 'ENABLE_FTS5'`).Scan(&one)
	if isNoRows(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
