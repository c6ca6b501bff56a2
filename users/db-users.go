package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tomyedwab/opecstate/database"
)

var ErrNotFound = errors.New("user not found")

type User struct {
	ID   int64  `db:"id,pk,autoincrement" json:"id"`
	Name string `db:"name,unique" json:"name"`
}

// Model registers the user table with the database package.
var Model = database.Register(database.MustModelOf[User]("user"))

// -- DB Helpers --

func Create(ctx context.Context, sess *database.Session, name string) (*User, error) {
	if name == "" {
		return nil, fmt.Errorf("user name must not be empty")
	}
	res, err := sess.Exec(ctx, `INSERT INTO "user" (name) VALUES (?)`, name)
	if err != nil {
		// Duplicate names fail here on the UNIQUE constraint.
		return nil, fmt.Errorf("failed to insert user %s: %w", name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read user ID: %w", err)
	}
	return &User{ID: id, Name: name}, nil
}

func Get(ctx context.Context, sess *database.Session, id int64) (*User, error) {
	var user User
	err := sess.Get(ctx, &user, `SELECT id, name FROM "user" WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", id, err)
	}
	return &user, nil
}

func GetByName(ctx context.Context, sess *database.Session, name string) (*User, error) {
	var user User
	err := sess.Get(ctx, &user, `SELECT id, name FROM "user" WHERE name = ?`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", name, err)
	}
	return &user, nil
}

func List(ctx context.Context, sess *database.Session) ([]User, error) {
	users := []User{}
	if err := sess.Select(ctx, &users, `SELECT id, name FROM "user" ORDER BY id`); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}
