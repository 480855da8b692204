// Package sqlite implements backend.Backend, backend.Factory, and
// backend.FactoryBuilder against a single SQLite file, following
// original_source/src/backend/sqlite.rs's Connection/Factory/FactoryBuilder
// chain. It uses database/sql with the pure-Go modernc.org/sqlite driver
// (the corpus's other_examples sqlite-over-database/sql wiring is the
// grounding for that choice, since no in-pack repo drives SQLite directly).
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "modernc.org/sqlite"

	"diskuto/backend"
	"diskuto/internal/apperr"
	"diskuto/internal/logging"
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

var log = logging.For("store.sqlite")

// Builder resolves a file path into a connection-pool-backed Factory,
// creating or upgrading the schema as needed.
type Builder struct {
	Path         string
	MaxOpenConns int
	MaxIdleConns int
}

var _ backend.FactoryBuilder = (*Builder)(nil)

// Exists reports whether a file already sits at Path. It does not open it,
// so a zero-length or foreign file also reports true; Factory() is where
// schema validity is actually checked.
func (b *Builder) Exists() (bool, error) {
	_, err := os.Stat(b.Path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// NeedsUpgrade opens the store read-only-ish and compares its stamped
// version against CurrentVersion.
func (b *Builder) NeedsUpgrade() (bool, error) {
	db, err := open(b.Path)
	if err != nil {
		return false, err
	}
	defer db.Close()

	v, err := getVersion(context.Background(), db)
	if err != nil {
		return false, err
	}
	return v < CurrentVersion, nil
}

// Create initializes a brand-new store: runs schemaDDL and stamps version
// as CurrentVersion directly, skipping upgraders entirely.
func (b *Builder) Create(ctx context.Context) error {
	db, err := open(b.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, schemaDDL); err != nil {
		return apperr.Wrap(apperr.KindStorage, "creating schema", err)
	}
	if err := setVersion(ctx, db, CurrentVersion); err != nil {
		return err
	}
	log.WithField("path", b.Path).Info("initialized new store")
	return nil
}

// Upgrade runs every pending upgrader in order, one version at a time.
func (b *Builder) Upgrade(ctx context.Context) error {
	db, err := open(b.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	v, err := getVersion(ctx, db)
	if err != nil {
		return err
	}
	for v < CurrentVersion {
		if v < 1 || v-1 >= len(upgraders) {
			return apperr.New(apperr.KindStorage, fmt.Sprintf("no upgrader registered for version %d", v))
		}
		if err := upgraders[v-1](db); err != nil {
			return apperr.Wrap(apperr.KindStorage, fmt.Sprintf("upgrading from version %d", v), err)
		}
		v++
		if err := setVersion(ctx, db, v); err != nil {
			return err
		}
		log.WithField("version", v).Info("upgraded store schema")
	}
	return nil
}

// Factory validates the store and returns a ready-to-use Factory backed by
// a shared connection pool.
func (b *Builder) Factory() (backend.Factory, error) {
	exists, err := b.Exists()
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, apperr.New(apperr.KindStorage, fmt.Sprintf("store %q does not exist", b.Path))
	}
	needsUpgrade, err := b.NeedsUpgrade()
	if err != nil {
		return nil, err
	}
	if needsUpgrade {
		return nil, apperr.New(apperr.KindStorage, fmt.Sprintf("store %q is behind current schema version, run `feedctl db upgrade`", b.Path))
	}

	db, err := open(b.Path)
	if err != nil {
		return nil, err
	}
	maxOpen := b.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 10
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(b.MaxIdleConns)

	return &Factory{db: db, path: b.Path}, nil
}

// Factory is a shared connection pool. Open checks out one connection for
// the life of a single Backend session, the way a request handler or a CLI
// subcommand holds one for the duration of its work.
type Factory struct {
	db   *sql.DB
	path string
}

var _ backend.Factory = (*Factory)(nil)

// Open checks out one pooled connection and wraps it as a Backend session.
func (f *Factory) Open(ctx context.Context) (backend.Backend, error) {
	conn, err := f.db.Conn(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, "checking out connection", err)
	}
	return &Connection{conn: conn, db: f.db}, nil
}

// Close shuts down the entire pool. Only called at process exit.
func (f *Factory) Close() error {
	return f.db.Close()
}

// open opens the sqlite file with the pragmas diskuto needs: WAL journaling
// for concurrent readers alongside a writer, foreign keys on, and a busy
// timeout so concurrent writers block briefly instead of failing outright.
func open(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, "opening sqlite database", err)
	}
	return db, nil
}

func getVersion(ctx context.Context, db *sql.DB) (int, error) {
	row := db.QueryRowContext(ctx, `SELECT version FROM version LIMIT 1`)
	var v int
	if err := row.Scan(&v); err != nil {
		return 0, apperr.Wrap(apperr.KindStorage, "reading schema version", err)
	}
	return v, nil
}

func setVersion(ctx context.Context, db *sql.DB, v int) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM version`); err != nil {
		return apperr.Wrap(apperr.KindStorage, "clearing schema version", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO version (version) VALUES (?)`, v); err != nil {
		return apperr.Wrap(apperr.KindStorage, "stamping schema version", err)
	}
	return nil
}
