package database

import (
	"context"
	"database/sql"
	"sync"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// SessionFactory produces sessions bound to one Database.
type SessionFactory struct {
	database *Database
}

// NewSession returns a session with no transaction open yet.
func (f *SessionFactory) NewSession() *Session {
	sessionsTotal.WithLabelValues("opened").Inc()
	return &Session{
		id:       uuid.New().String(),
		database: f.database,
	}
}

// Session is a unit of work against the database. Nothing is committed
// implicitly: the first statement begins a transaction, and its writes stay
// invisible to other sessions until Commit. After Commit or Rollback the
// next statement begins a new transaction. A Session is not safe for
// concurrent use.
type Session struct {
	id       string
	database *Database

	mu     sync.Mutex
	tx     *sqlx.Tx
	closed bool
}

func (s *Session) ID() string {
	return s.id
}

// InTransaction reports whether a transaction is open.
func (s *Session) InTransaction() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx != nil
}

// Tx returns the session's transaction, beginning one if needed.
func (s *Session) Tx(ctx context.Context) (*sqlx.Tx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSessionClosed
	}
	if s.tx != nil {
		return s.tx, nil
	}

	db, err := s.database.conn("begin")
	if err != nil {
		return nil, err
	}
	// The transaction outlives the statement that opened it: it ends with
	// Commit, Rollback or Close, never with ctx.
	tx, err := db.BeginTxx(context.WithoutCancel(ctx), nil)
	if err != nil {
		return nil, persistenceErr("begin", s.database.raw, err)
	}
	s.tx = tx
	return tx, nil
}

func (s *Session) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	tx, err := s.Tx(ctx)
	if err != nil {
		return nil, err
	}
	return tx.ExecContext(ctx, query, args...)
}

func (s *Session) NamedExec(ctx context.Context, query string, arg any) (sql.Result, error) {
	tx, err := s.Tx(ctx)
	if err != nil {
		return nil, err
	}
	return tx.NamedExecContext(ctx, query, arg)
}

func (s *Session) Get(ctx context.Context, dest any, query string, args ...any) error {
	tx, err := s.Tx(ctx)
	if err != nil {
		return err
	}
	return tx.GetContext(ctx, dest, query, args...)
}

func (s *Session) Select(ctx context.Context, dest any, query string, args ...any) error {
	tx, err := s.Tx(ctx)
	if err != nil {
		return err
	}
	return tx.SelectContext(ctx, dest, query, args...)
}

// Commit commits the open transaction, if any.
func (s *Session) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if s.tx == nil {
		return nil
	}
	err := s.tx.Commit()
	s.tx = nil
	if err != nil {
		sessionsTotal.WithLabelValues("rolled_back").Inc()
		return persistenceErr("commit", s.database.raw, err)
	}
	sessionsTotal.WithLabelValues("committed").Inc()
	return nil
}

// Rollback discards the open transaction, if any.
func (s *Session) Rollback() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	return s.rollbackLocked()
}

func (s *Session) rollbackLocked() error {
	if s.tx == nil {
		return nil
	}
	err := s.tx.Rollback()
	s.tx = nil
	sessionsTotal.WithLabelValues("rolled_back").Inc()
	if err != nil && err != sql.ErrTxDone {
		return err
	}
	return nil
}

// Close rolls back anything uncommitted and releases the session. Closing
// twice is a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.rollbackLocked()
}
