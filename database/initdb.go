package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

const tableExistsSql = `
SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ? COLLATE NOCASE;
`

const tableInfoSql = `
SELECT cid, name, type, "notnull", dflt_value, pk FROM pragma_table_info(?);
`

type columnInfo struct {
	CID     int            `db:"cid"`
	Name    string         `db:"name"`
	Type    string         `db:"type"`
	NotNull int            `db:"notnull"`
	Default sql.NullString `db:"dflt_value"`
	PK      int            `db:"pk"`
}

// InitDB ensures a table exists for every registered model. Missing tables
// are created from the model; existing ones are checked and left untouched,
// so calling InitDB again is a no-op. Everything happens in one transaction:
// on any error nothing is created.
func (d *Database) InitDB(ctx context.Context) error {
	d.initMu.Lock()
	defer d.initMu.Unlock()

	start := time.Now()
	models, err := d.resolveModels()
	if err != nil {
		return err
	}

	db, err := d.conn("init")
	if err != nil {
		return err
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return persistenceErr("begin init", d.raw, err)
	}
	defer tx.Rollback()

	var created, verified []string
	for _, m := range models {
		exists, err := tableExists(ctx, tx, m.Table)
		if err != nil {
			return persistenceErr("inspect table "+m.Table, d.raw, err)
		}
		if exists {
			if err := verifyTable(ctx, tx, m); err != nil {
				var conflict *SchemaConflictError
				if errors.As(err, &conflict) {
					return err
				}
				return persistenceErr("verify table "+m.Table, d.raw, err)
			}
			verified = append(verified, m.Table)
			continue
		}

		if _, err := tx.ExecContext(ctx, m.CreateSQL()); err != nil {
			return persistenceErr("create table "+m.Table, d.raw, err)
		}
		created = append(created, m.Table)
	}

	if err := tx.Commit(); err != nil {
		return persistenceErr("commit init", d.raw, err)
	}

	d.mu.Lock()
	for _, m := range models {
		d.ensured[m.Table] = true
	}
	d.mu.Unlock()

	initTablesTotal.WithLabelValues("created").Add(float64(len(created)))
	initTablesTotal.WithLabelValues("verified").Add(float64(len(verified)))
	initDuration.Observe(time.Since(start).Seconds())

	d.logger.Info("Database initialized",
		"target", d.raw,
		"created", created,
		"verified", verified,
	)
	return nil
}

func (d *Database) resolveModels() ([]Model, error) {
	if d.registry == nil {
		if len(d.required) > 0 {
			return nil, &ResolutionError{Name: d.required[0]}
		}
		return nil, nil
	}
	for _, name := range d.required {
		if _, ok := d.registry.Lookup(name); !ok {
			return nil, &ResolutionError{Name: name}
		}
	}
	return d.registry.Models(), nil
}

func tableExists(ctx context.Context, tx *sqlx.Tx, table string) (bool, error) {
	var count int
	if err := tx.GetContext(ctx, &count, tableExistsSql, table); err != nil {
		return false, err
	}
	return count > 0, nil
}

// verifyTable checks that an existing table can hold rows written through
// the model: every model column exists with the same declared type and
// primary key flag, and any extra column accepts being left out.
func verifyTable(ctx context.Context, tx *sqlx.Tx, m Model) error {
	var infos []columnInfo
	if err := tx.SelectContext(ctx, &infos, tableInfoSql, m.Table); err != nil {
		return err
	}

	existing := make(map[string]columnInfo, len(infos))
	for _, info := range infos {
		existing[strings.ToLower(info.Name)] = info
	}

	for _, c := range m.Columns {
		info, ok := existing[strings.ToLower(c.Name)]
		if !ok {
			return &SchemaConflictError{Table: m.Table, Column: c.Name, Reason: "column is missing"}
		}
		if got := normalizeType(info.Type); got != normalizeType(c.Type) {
			return &SchemaConflictError{
				Table:  m.Table,
				Column: c.Name,
				Reason: fmt.Sprintf("declared type %s, model wants %s", got, normalizeType(c.Type)),
			}
		}
		if (info.PK > 0) != c.PrimaryKey {
			return &SchemaConflictError{Table: m.Table, Column: c.Name, Reason: "primary key mismatch"}
		}
		delete(existing, strings.ToLower(c.Name))
	}

	for _, info := range existing {
		if info.NotNull != 0 && !info.Default.Valid && info.PK == 0 {
			return &SchemaConflictError{
				Table:  m.Table,
				Column: info.Name,
				Reason: "NOT NULL column without default is not part of the model",
			}
		}
	}
	return nil
}

func normalizeType(t string) string {
	return strings.ToUpper(strings.Join(strings.Fields(t), " "))
}
