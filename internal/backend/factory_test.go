package backend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budget/internal/config"
	"budget/internal/core"
)

func TestFromAppConfig(t *testing.T) {
	cfg, err := FromAppConfig(&config.Config{DataBackend: "sqlite", SQLiteDBPath: "data/x.db"})
	require.NoError(t, err)
	assert.Equal(t, SQLiteBackend, cfg.Type)
	assert.Equal(t, "data/x.db", cfg.SQLiteDBPath)

	cfg, err = FromAppConfig(&config.Config{DataBackend: "postgres", DatabaseURL: "postgres://u:p@db:5432/budget"})
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@db:5432/budget", cfg.PostgresDSN)

	_, err = FromAppConfig(&config.Config{DataBackend: "sheets"})
	assert.Error(t, err)

	_, err = FromAppConfig(nil)
	assert.Error(t, err)
}

func TestCreateBackend(t *testing.T) {
	ctx := context.Background()
	factory := NewFactory(nil)

	tests := []struct {
		name string
		cfg  Config
	}{
		{"memory", Config{Type: MemoryBackend}},
		{"sqlite", Config{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(t.TempDir(), "nested", "budget.db")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := factory.CreateBackend(ctx, tt.cfg)
			require.NoError(t, err)
			t.Cleanup(func() { _ = res.Cleanup() })

			require.NoError(t, res.Backend.Ping(ctx))
			entry := core.Entry{
				Type:        core.Income,
				Amount:      decimal.NewFromInt(100),
				Date:        core.NewDate(2025, 1, 15),
				Description: "salary",
			}
			require.NoError(t, res.Backend.ReplaceEntries(ctx, []core.Entry{entry}))
			got, err := res.Backend.ListEntries(ctx)
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, "salary", got[0].Description)
		})
	}
}

func TestCreateBackend_Invalid(t *testing.T) {
	_, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: "sheets"})
	assert.Error(t, err)

	_, err = NewFactory(nil).CreateBackend(context.Background(), Config{Type: SQLiteBackend})
	assert.Error(t, err)
}
