package database

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/jmoiron/sqlx"
)

type Option func(*Database)

// WithRegistry makes InitDB ensure the models of r instead of
// DefaultRegistry.
func WithRegistry(r *Registry) Option {
	return func(d *Database) {
		d.registry = r
	}
}

// WithRequiredModels names models that must be registered when InitDB
// runs. A missing one fails InitDB with a ResolutionError.
func WithRequiredModels(tables ...string) Option {
	return func(d *Database) {
		d.required = append(d.required, tables...)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(d *Database) {
		d.logger = logger
	}
}

// WithMaxOpenConns caps the connection pool of file databases. In-memory
// databases always use a single connection.
func WithMaxOpenConns(n int) Option {
	return func(d *Database) {
		d.maxOpenConns = n
	}
}

// Database is the process-wide persistence handle: the connection target,
// the sqlx connection pool bound to it, and the session factory.
type Database struct {
	db      *sqlx.DB
	target  Target
	raw     string
	openErr error

	registry     *Registry
	required     []string
	logger       *slog.Logger
	maxOpenConns int

	factory *SessionFactory
	scoped  *ScopedSession

	// initMu serializes InitDB calls.
	initMu sync.Mutex

	mu      sync.RWMutex
	ensured map[string]bool
	closed  bool
}

// Open binds a Database to the connection target. No I/O happens here: a
// malformed target is reported by the first operation that needs storage,
// as a PersistenceError.
func Open(target string, opts ...Option) *Database {
	t, err := ParseTarget(target)
	if err != nil {
		d := newDatabase(target, nil, opts...)
		d.openErr = err
		return d
	}

	db, err := sqlx.Open(t.DriverName(), t.DSN())
	d := newDatabase(target, db, opts...)
	d.target = t
	if err != nil {
		d.openErr = err
		return d
	}
	if t.Memory {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	} else if d.maxOpenConns > 0 {
		db.SetMaxOpenConns(d.maxOpenConns)
	}
	return d
}

func newDatabase(raw string, db *sqlx.DB, opts ...Option) *Database {
	d := &Database{
		db:       db,
		raw:      raw,
		registry: DefaultRegistry,
		logger:   slog.Default(),
		ensured:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.factory = &SessionFactory{database: d}
	d.scoped = &ScopedSession{factory: d.factory}
	return d
}

// conn returns the connection pool, or a PersistenceError if the target
// could not be bound or the database has been closed.
func (d *Database) conn(op string) (*sqlx.DB, error) {
	if d.openErr != nil {
		return nil, persistenceErr(op, d.raw, d.openErr)
	}
	d.mu.RLock()
	closed := d.closed
	d.mu.RUnlock()
	if closed {
		return nil, persistenceErr(op, d.raw, errors.New("database is closed"))
	}
	return d.db, nil
}

// Target returns the parsed connection target. It is the zero Target when
// the raw target was malformed.
func (d *Database) Target() Target {
	return d.target
}

// RawTarget returns the connection target as given to Open.
func (d *Database) RawTarget() string {
	return d.raw
}

// Factory returns the session factory bound to this database.
func (d *Database) Factory() *SessionFactory {
	return d.factory
}

// Scoped returns the scoped session handle that gives every unit of work
// its own session.
func (d *Database) Scoped() *ScopedSession {
	return d.scoped
}

func (d *Database) Registry() *Registry {
	return d.registry
}

func (d *Database) GetDB() *sqlx.DB {
	return d.db
}

// Ping opens a connection to the target, creating the database file if it
// does not exist yet.
func (d *Database) Ping(ctx context.Context) error {
	db, err := d.conn("ping")
	if err != nil {
		return err
	}
	return persistenceErr("ping", d.raw, db.PingContext(ctx))
}

// Tables lists the user tables present in the target.
func (d *Database) Tables(ctx context.Context) ([]string, error) {
	db, err := d.conn("list tables")
	if err != nil {
		return nil, err
	}
	var tables []string
	err = db.SelectContext(ctx, &tables,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, persistenceErr("list tables", d.raw, err)
	}
	return tables, nil
}

// Ensured reports whether InitDB has created or verified the table in this
// process.
func (d *Database) Ensured(table string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.ensured[table]
}

// Close closes the connection pool. Sessions still open fail afterwards.
func (d *Database) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	if d.db == nil {
		return nil
	}
	return d.db.Close()
}
