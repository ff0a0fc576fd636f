package config

import (
	"context"
	"testing"
	"time"

	"pledge-desk/internal/adapters/persistence/repositories"
	"pledge-desk/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_MODE", "dev")
	t.Setenv("LEDGER_STORE", "memory")
	t.Setenv("LEDGER_BASE_URL", "http://ledger.local/api/v1/")
	t.Setenv("SEED_DEMO_DATA", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsDev())
	assert.True(t, cfg.UsesMemoryStore())
	assert.True(t, cfg.Seed)
	assert.Equal(t, "http://ledger.local/api/v1", cfg.Ledger.BaseURL)
	assert.Equal(t, 20*time.Second, cfg.Ledger.Timeout())
	assert.Equal(t, "30 0 * * *", cfg.Cron.OverdueSpec)
	assert.Equal(t, "1", cfg.Interest.PenaltyPerMillePerDay.String())
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "*", cfg.GetAllowedOrigins())
}

func TestLoad_ProdPrefix(t *testing.T) {
	t.Setenv("APP_MODE", "prod")
	t.Setenv("PROD_DB_HOST", "db.internal")
	t.Setenv("PROD_JWT_SECRET", "s3cret")
	t.Setenv("SEED_DEMO_DATA", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreMySQL, cfg.Store)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "s3cret", cfg.JWT.Secret)
	assert.False(t, cfg.Seed)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_Rejects(t *testing.T) {
	tests := map[string][2]string{
		"mode":    {"APP_MODE", "staging"},
		"store":   {"LEDGER_STORE", "redis"},
		"penalty": {"PENALTY_PER_MILLE_PER_DAY", "-1"},
	}
	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			t.Setenv(env[0], env[1])
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestSeeder_Idempotent(t *testing.T) {
	users := repositories.NewMemoryUserRepository()
	pledges := repositories.NewMemoryPledgeRepository()
	s := NewSeeder(users, pledges, zaptest.NewLogger(t))
	s.now = func() time.Time { return time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	require.NoError(t, s.Run(ctx))
	require.NoError(t, s.Run(ctx))

	clerk, err := users.GetByUsername(ctx, "clerk")
	require.NoError(t, err)
	assert.Equal(t, "CLERK", clerk.Role)

	p2, err := pledges.GetByID(ctx, "P2")
	require.NoError(t, err)
	assert.Equal(t, string(domain.StatusLiquidated), p2.Status)

	entries, total, err := pledges.ListEntries(ctx, "P1", 0, -1)
	require.NoError(t, err)
	assert.EqualValues(t, 6, total)
	assert.Equal(t, string(domain.PeriodPaid), entries[0].Status)

	txs, total, err := pledges.ListTransactions(ctx, "P1", 0, -1)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, entries[0].TotalAmount.String(), txs[0].Amount.String())

	_, fees, err := pledges.ListFees(ctx, "P2", 0, -1)
	require.NoError(t, err)
	assert.EqualValues(t, 1, fees)
}
