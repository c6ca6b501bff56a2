package database

import (
	"context"
	"errors"
	"fmt"
)

type scopeKey struct{}

// ScopedSession hands out one session per unit of work. A scope begins by
// attaching a fresh session to a context and ends by committing or rolling
// it back; code running inside the scope finds its session with Get.
type ScopedSession struct {
	factory *SessionFactory
}

// Begin starts a scope and returns the context carrying its session.
func (s *ScopedSession) Begin(ctx context.Context) (context.Context, *Session) {
	sess := s.factory.NewSession()
	return context.WithValue(ctx, scopeKey{}, sess), sess
}

// Get returns the session of the scope ctx belongs to.
func (s *ScopedSession) Get(ctx context.Context) (*Session, error) {
	sess, ok := ctx.Value(scopeKey{}).(*Session)
	if !ok || sess.database != s.factory.database {
		return nil, ErrNoScope
	}
	return sess, nil
}

// End finishes the scope: the session is committed when outcome is nil and
// rolled back otherwise, then closed.
func (s *ScopedSession) End(ctx context.Context, outcome error) error {
	sess, err := s.Get(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	if outcome != nil {
		return sess.Rollback()
	}
	return sess.Commit()
}

// Run calls fn inside a new scope. The scope commits if fn returns nil and
// rolls back if it returns an error or panics.
func (s *ScopedSession) Run(ctx context.Context, fn func(ctx context.Context, sess *Session) error) error {
	ctx, sess := s.Begin(ctx)
	defer func() {
		if r := recover(); r != nil {
			sess.Close()
			panic(r)
		}
	}()

	if err := fn(ctx, sess); err != nil {
		if endErr := s.End(ctx, err); endErr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", endErr))
		}
		return err
	}
	return s.End(ctx, nil)
}
