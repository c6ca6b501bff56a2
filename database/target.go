package database

import (
	"fmt"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

const (
	DialectSQLite = "sqlite"

	DriverMattn   = "mattn"
	DriverModernc = "modernc"
)

// busyTimeoutMillis is how long a connection waits on a locked database
// before giving up.
const busyTimeoutMillis = 5000

// Target is a parsed connection target of the form
// <dialect>[+<driver>]://<path>. Four slashes after the colon give an
// absolute path, three a relative one, and an empty path (or :memory:) an
// in-memory database.
type Target struct {
	Raw     string
	Dialect string
	Driver  string
	Path    string
	Memory  bool
}

// ParseTarget parses a connection target string.
func ParseTarget(raw string) (Target, error) {
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return Target{}, fmt.Errorf("malformed connection target %q: missing ://", raw)
	}

	dialect, driver, _ := strings.Cut(strings.ToLower(scheme), "+")
	if dialect != DialectSQLite {
		return Target{}, fmt.Errorf("unsupported dialect %q in %q", dialect, raw)
	}
	switch driver {
	case "":
		driver = DriverMattn
	case DriverMattn, DriverModernc:
	default:
		return Target{}, fmt.Errorf("unsupported driver %q for dialect %s", driver, dialect)
	}

	t := Target{Raw: raw, Dialect: dialect, Driver: driver}

	// The authority section is always empty for file databases, so what
	// follows "://" must be empty or start with the separating slash.
	if rest == "" || rest == "/:memory:" {
		t.Memory = true
		return t, nil
	}
	if !strings.HasPrefix(rest, "/") {
		return Target{}, fmt.Errorf("malformed connection target %q: host part must be empty", raw)
	}
	path := strings.TrimPrefix(rest, "/")
	if strings.ContainsAny(path, "?#") {
		return Target{}, fmt.Errorf("malformed connection target %q: query parameters are not supported", raw)
	}
	if path == "" || path == "/" {
		return Target{}, fmt.Errorf("malformed connection target %q: empty path", raw)
	}
	t.Path = filepath.Clean(path)
	return t, nil
}

// String returns the target in its canonical form.
func (t Target) String() string {
	scheme := t.Dialect
	if t.Driver != "" && t.Driver != DriverMattn {
		scheme += "+" + t.Driver
	}
	if t.Memory {
		return scheme + "://"
	}
	return scheme + ":///" + t.Path
}

// DriverName returns the database/sql driver registered for the target.
func (t Target) DriverName() string {
	if t.Driver == DriverModernc {
		return "sqlite"
	}
	return "sqlite3"
}

// DSN returns the data source name passed to the driver. File databases get
// foreign keys, WAL journaling and a busy timeout so that concurrent
// sessions only ever see each other's committed writes.
func (t Target) DSN() string {
	if t.Driver == DriverModernc {
		if t.Memory {
			return ":memory:?_pragma=foreign_keys(1)"
		}
		return fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)",
			t.Path, busyTimeoutMillis)
	}
	if t.Memory {
		return ":memory:?_foreign_keys=on"
	}
	return fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=%d", t.Path, busyTimeoutMillis)
}
