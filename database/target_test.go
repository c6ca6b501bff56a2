package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTarget(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Target
		wantErr string
	}{
		{
			name: "absolute path",
			raw:  "sqlite:////var/www/html/rbb/opecvis/states.db",
			want: Target{Dialect: "sqlite", Driver: DriverMattn, Path: "/var/www/html/rbb/opecvis/states.db"},
		},
		{
			name: "relative path",
			raw:  "sqlite:///data/states.db",
			want: Target{Dialect: "sqlite", Driver: DriverMattn, Path: "data/states.db"},
		},
		{
			name: "explicit modernc driver",
			raw:  "sqlite+modernc:////tmp/states.db",
			want: Target{Dialect: "sqlite", Driver: DriverModernc, Path: "/tmp/states.db"},
		},
		{
			name: "dialect is case insensitive",
			raw:  "SQLite+Mattn:////tmp/states.db",
			want: Target{Dialect: "sqlite", Driver: DriverMattn, Path: "/tmp/states.db"},
		},
		{
			name: "empty path is in-memory",
			raw:  "sqlite://",
			want: Target{Dialect: "sqlite", Driver: DriverMattn, Memory: true},
		},
		{
			name: "explicit memory",
			raw:  "sqlite:///:memory:",
			want: Target{Dialect: "sqlite", Driver: DriverMattn, Memory: true},
		},
		{name: "missing scheme separator", raw: "/var/states.db", wantErr: "missing ://"},
		{name: "unknown dialect", raw: "postgresql:////tmp/x", wantErr: `unsupported dialect "postgresql"`},
		{name: "unknown driver", raw: "sqlite+pysqlite:////tmp/x", wantErr: `unsupported driver "pysqlite"`},
		{name: "host part", raw: "sqlite://localhost/tmp/x", wantErr: "host part must be empty"},
		{name: "root only", raw: "sqlite:////", wantErr: "empty path"},
		{name: "query string", raw: "sqlite:////tmp/x.db?mode=ro", wantErr: "query parameters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTarget(tt.raw)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.want.Raw = tt.raw
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTarget_String(t *testing.T) {
	for _, raw := range []string{
		"sqlite:////var/lib/opecstate/states.db",
		"sqlite:///states.db",
		"sqlite+modernc:////tmp/states.db",
		"sqlite://",
	} {
		target, err := ParseTarget(raw)
		require.NoError(t, err)
		assert.Equal(t, raw, target.String())
	}
}

func TestTarget_DriverAndDSN(t *testing.T) {
	mattn, err := ParseTarget("sqlite:////tmp/states.db")
	require.NoError(t, err)
	assert.Equal(t, "sqlite3", mattn.DriverName())
	assert.Equal(t, "/tmp/states.db?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000", mattn.DSN())

	modernc, err := ParseTarget("sqlite+modernc:////tmp/states.db")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", modernc.DriverName())
	assert.Contains(t, modernc.DSN(), "_pragma=journal_mode(WAL)")

	memory, err := ParseTarget("sqlite://")
	require.NoError(t, err)
	assert.Equal(t, ":memory:?_foreign_keys=on", memory.DSN())
}
