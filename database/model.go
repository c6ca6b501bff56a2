package database

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx/reflectx"
)

// Column describes one column of a model's table.
type Column struct {
	Name          string
	Type          string
	PrimaryKey    bool
	AutoIncrement bool
	NotNull       bool
	Unique        bool
	Default       string
}

// Model is the descriptor every entity provides to take part in InitDB: the
// table name and the columns derived from the entity's struct fields.
type Model struct {
	Table   string
	Columns []Column
}

// Column returns the named column.
func (m Model) Column(name string) (Column, bool) {
	for _, c := range m.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnNames returns the column names in declaration order.
func (m Model) ColumnNames() []string {
	names := make([]string, len(m.Columns))
	for i, c := range m.Columns {
		names[i] = c.Name
	}
	return names
}

func (m Model) primaryKeys() []Column {
	var pks []Column
	for _, c := range m.Columns {
		if c.PrimaryKey {
			pks = append(pks, c)
		}
	}
	return pks
}

// CreateSQL returns the CREATE TABLE statement for the model.
func (m Model) CreateSQL() string {
	pks := m.primaryKeys()
	inlinePK := len(pks) == 1

	var defs []string
	for _, c := range m.Columns {
		def := quoteIdent(c.Name) + " " + c.Type
		if c.PrimaryKey && inlinePK {
			def += " PRIMARY KEY"
			if c.AutoIncrement {
				def += " AUTOINCREMENT"
			}
		}
		if c.NotNull {
			def += " NOT NULL"
		}
		if c.Unique {
			def += " UNIQUE"
		}
		if c.Default != "" {
			def += " DEFAULT " + c.Default
		}
		defs = append(defs, def)
	}
	if len(pks) > 1 {
		names := make([]string, len(pks))
		for i, c := range pks {
			names[i] = quoteIdent(c.Name)
		}
		defs = append(defs, "PRIMARY KEY ("+strings.Join(names, ", ")+")")
	}

	return fmt.Sprintf("CREATE TABLE %s (\n\t%s\n)", quoteIdent(m.Table), strings.Join(defs, ",\n\t"))
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

var (
	mapper = reflectx.NewMapperFunc("db", strings.ToLower)

	timeType    = reflect.TypeOf(time.Time{})
	bytesType   = reflect.TypeOf([]byte(nil))
	valuerType  = reflect.TypeOf((*driver.Valuer)(nil)).Elem()
	scannerType = reflect.TypeOf((*sql.Scanner)(nil)).Elem()

	nullTypes = map[reflect.Type]string{
		reflect.TypeOf(sql.NullString{}):  "TEXT",
		reflect.TypeOf(sql.NullInt64{}):   "INTEGER",
		reflect.TypeOf(sql.NullInt32{}):   "INTEGER",
		reflect.TypeOf(sql.NullInt16{}):   "INTEGER",
		reflect.TypeOf(sql.NullByte{}):    "INTEGER",
		reflect.TypeOf(sql.NullFloat64{}): "REAL",
		reflect.TypeOf(sql.NullBool{}):    "BOOLEAN",
		reflect.TypeOf(sql.NullTime{}):    "TIMESTAMP",
	}
)

// ModelOf derives a model from the db struct tags of T. The tag holds the
// column name followed by options:
//
//	pk             part of the primary key
//	autoincrement  AUTOINCREMENT on a single INTEGER primary key
//	unique         UNIQUE constraint
//	null           allow NULL for a non-pointer field
//	type=<SQL>     explicit column type
//	default=<lit>  DEFAULT clause
//
// Pointer and sql.Null* fields are nullable. Embedded structs contribute
// their fields; db:"-" skips a field.
func ModelOf[T any](table string) (Model, error) {
	var zero T
	t := reflectx.Deref(reflect.TypeOf(&zero).Elem())
	if t.Kind() != reflect.Struct {
		return Model{}, fmt.Errorf("model %s: %s is not a struct", table, t)
	}
	if table == "" {
		return Model{}, fmt.Errorf("model for %s: empty table name", t)
	}

	m := Model{Table: table}
	if err := collectColumns(&m, mapper.TypeMap(t).Tree); err != nil {
		return Model{}, fmt.Errorf("model %s: %w", table, err)
	}
	if len(m.Columns) == 0 {
		return Model{}, fmt.Errorf("model %s: no columns", table)
	}

	seen := make(map[string]bool, len(m.Columns))
	for _, c := range m.Columns {
		if seen[c.Name] {
			return Model{}, fmt.Errorf("model %s: duplicate column %q", table, c.Name)
		}
		seen[c.Name] = true
	}
	pks := m.primaryKeys()
	for _, c := range m.Columns {
		if c.AutoIncrement && (len(pks) != 1 || !c.PrimaryKey || c.Type != "INTEGER") {
			return Model{}, fmt.Errorf("model %s: autoincrement requires a single INTEGER primary key", table)
		}
	}
	return m, nil
}

// MustModelOf is like ModelOf but panics on error. It is meant for package
// level model declarations.
func MustModelOf[T any](table string) Model {
	m, err := ModelOf[T](table)
	if err != nil {
		panic(err)
	}
	return m
}

func collectColumns(m *Model, fi *reflectx.FieldInfo) error {
	for _, child := range fi.Children {
		if child == nil {
			continue
		}
		ft := child.Field.Type
		if child.Embedded && isComposite(ft) {
			if err := collectColumns(m, child); err != nil {
				return err
			}
			continue
		}
		col, err := columnFor(child)
		if err != nil {
			return err
		}
		m.Columns = append(m.Columns, col)
	}
	return nil
}

// isComposite reports whether a struct type should be flattened into its
// fields rather than stored as one column.
func isComposite(t reflect.Type) bool {
	t = reflectx.Deref(t)
	if t.Kind() != reflect.Struct || t == timeType {
		return false
	}
	if _, ok := nullTypes[t]; ok {
		return false
	}
	return !t.Implements(valuerType) && !reflect.PointerTo(t).Implements(scannerType)
}

func columnFor(fi *reflectx.FieldInfo) (Column, error) {
	col := Column{Name: fi.Name}
	_, col.PrimaryKey = fi.Options["pk"]
	_, col.AutoIncrement = fi.Options["autoincrement"]
	_, col.Unique = fi.Options["unique"]
	_, explicitNull := fi.Options["null"]
	col.Default = fi.Options["default"]

	typ, nullable, ok := sqlType(fi.Field.Type)
	if explicit, has := fi.Options["type"]; has && explicit != "" {
		typ, ok = strings.ToUpper(explicit), true
	}
	if !ok {
		return Column{}, fmt.Errorf("field %s: no SQL type for %s, set type= in the db tag", fi.Field.Name, fi.Field.Type)
	}
	col.Type = typ
	// SQLite reports NOT NULL for primary keys only when declared, and an
	// INTEGER PRIMARY KEY is the rowid, which is never NULL.
	col.NotNull = !nullable && !explicitNull && !col.PrimaryKey
	return col, nil
}

func sqlType(t reflect.Type) (typ string, nullable bool, ok bool) {
	if t.Kind() == reflect.Pointer {
		typ, _, ok = sqlType(t.Elem())
		return typ, true, ok
	}
	if typ, found := nullTypes[t]; found {
		return typ, true, true
	}
	if t == timeType {
		return "TIMESTAMP", false, true
	}
	if t == bytesType || (t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8) {
		return "BLOB", false, true
	}
	switch t.Kind() {
	case reflect.Bool:
		return "BOOLEAN", false, true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "INTEGER", false, true
	case reflect.Float32, reflect.Float64:
		return "REAL", false, true
	case reflect.String:
		return "TEXT", false, true
	}
	return "", false, false
}

// Registry holds the models InitDB ensures, in registration order.
type Registry struct {
	mu     sync.RWMutex
	models []Model
	index  map[string]int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]int)}
}

// DefaultRegistry is the registry entity packages register into.
var DefaultRegistry = NewRegistry()

// Add registers a model. Table names are unique within a registry.
func (r *Registry) Add(m Model) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m.Table == "" {
		return fmt.Errorf("cannot register model with empty table name")
	}
	if _, exists := r.index[m.Table]; exists {
		return fmt.Errorf("model %q already registered", m.Table)
	}
	r.index[m.Table] = len(r.models)
	r.models = append(r.models, m)
	return nil
}

// Lookup returns the model registered for table.
func (r *Registry) Lookup(table string) (Model, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.index[table]
	if !ok {
		return Model{}, false
	}
	return r.models[i], true
}

// Models returns a snapshot of the registered models.
func (r *Registry) Models() []Model {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Model, len(r.models))
	copy(out, r.models)
	return out
}

// Register adds m to DefaultRegistry and returns it, panicking if the table
// is already registered. Entity packages call it from a package-level var
// declaration so the model is known as soon as the package is linked in.
func Register(m Model) Model {
	if err := DefaultRegistry.Add(m); err != nil {
		panic(err)
	}
	return m
}
