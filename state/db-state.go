package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tomyedwab/opecstate/database"
)

var ErrNotFound = errors.New("state not found")

// State is a saved portal state. Value holds the serialized view the front
// end resumes from.
type State struct {
	ID    int64  `db:"id,pk,autoincrement" json:"id"`
	Value string `db:"value" json:"value"`
}

// Model registers the state table with the database package.
var Model = database.Register(database.MustModelOf[State]("state"))

const insertStateSql = `
INSERT INTO "state" (value) VALUES (?);
`

const upsertStateSql = `
INSERT INTO "state" (id, value)
VALUES (:id, :value)
ON CONFLICT (id) DO UPDATE SET value = excluded.value;
`

const getStateSql = `
SELECT id, value FROM "state" WHERE id = ?;
`

const listStatesSql = `
SELECT id, value FROM "state" ORDER BY id;
`

const deleteStateSql = `
DELETE FROM "state" WHERE id = ?;
`

// -- DB Helpers --

// Create saves a new state and returns it with its assigned ID.
func Create(ctx context.Context, sess *database.Session, value string) (*State, error) {
	res, err := sess.Exec(ctx, insertStateSql, value)
	if err != nil {
		return nil, fmt.Errorf("failed to insert state: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read state ID: %w", err)
	}
	return &State{ID: id, Value: value}, nil
}

// Put stores st under its ID, replacing any previous value.
func Put(ctx context.Context, sess *database.Session, st State) error {
	if _, err := sess.NamedExec(ctx, upsertStateSql, st); err != nil {
		return fmt.Errorf("failed to save state %d: %w", st.ID, err)
	}
	return nil
}

func Get(ctx context.Context, sess *database.Session, id int64) (*State, error) {
	var st State
	err := sess.Get(ctx, &st, getStateSql, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get state %d: %w", id, err)
	}
	return &st, nil
}

func List(ctx context.Context, sess *database.Session) ([]State, error) {
	states := []State{}
	if err := sess.Select(ctx, &states, listStatesSql); err != nil {
		return nil, fmt.Errorf("failed to list states: %w", err)
	}
	return states, nil
}

// Delete removes the state with the given ID. It reports whether a row was
// deleted.
func Delete(ctx context.Context, sess *database.Session, id int64) (bool, error) {
	res, err := sess.Exec(ctx, deleteStateSql, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete state %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
