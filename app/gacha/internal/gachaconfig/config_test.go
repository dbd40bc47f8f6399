package gachaconfig

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/model"
	"github.com/lk2023060901/xdooria-gacha/pkg/config"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, config.NewValidator().Validate(cfg))
	require.NoError(t, cfg.Check())
}

func TestPityRules(t *testing.T) {
	tests := []struct {
		name       string
		soft, hard int
		step       float64
		want       PityRules
	}{
		{"defaults", 700, 1000, 0.05, PityRules{700, 1000, 0.05, 999}},
		{"soft floor", 0, 10, 1, PityRules{1, 10, 1, 9}},
		{"hard below soft", 50, 20, 0.1, PityRules{50, 50, 0.1, 49}},
		{"negative step", 5, 10, -1, PityRules{5, 10, 0, 9}},
		{"hard of one", 1, 1, 0, PityRules{1, 1, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{MythicSoftPityRolls: tt.soft, MythicHardPityRolls: tt.hard, MythicSoftPityRateStepPercent: tt.step}
			assert.Equal(t, tt.want, cfg.PityRules())
		})
	}
}

func TestIntervals(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, time.Hour, cfg.BoardRefreshInterval())
	assert.Equal(t, 5*time.Minute, cfg.BoardPrefetchWindow())
	assert.Equal(t, 10*time.Minute, cfg.DailyCooldown())
	assert.Equal(t, 2*time.Hour, cfg.TradeExpiry())

	cfg.BoardRefreshMinutes = 3
	assert.Equal(t, 3*time.Minute, cfg.BoardPrefetchWindow())

	cfg.MythicCatalogRefreshMinutes = 1
	assert.Equal(t, 10*time.Minute, cfg.MythicCatalogRefreshInterval())
}

func TestContractRules(t *testing.T) {
	rules := DefaultConfig().ContractRules()
	require.Len(t, rules, 4)
	assert.Equal(t, model.ContractRule{From: model.RarityCommon, To: model.RarityRare, Cost: 100}, rules[0])
	assert.Equal(t, model.ContractRule{From: model.RarityLegendary, To: model.RarityMythic, Cost: 5}, rules[3])

	_, ok := DefaultConfig().ContractRule(model.RarityMythic)
	assert.False(t, ok)
}

func TestDayKey(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timezone = "Asia/Shanghai"
	ts := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)
	assert.Equal(t, "2025-03-02", cfg.DayKey(ts))

	cfg.Timezone = "Not/AZone"
	assert.Equal(t, "2025-03-01", cfg.DayKey(ts))
	assert.Error(t, cfg.Check())
}

func TestIsAdmin(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AdminUserIDs = []string{" 42 "}
	assert.True(t, cfg.IsAdmin("42"))
	assert.False(t, cfg.IsAdmin("7"))
	assert.False(t, cfg.IsAdmin(""))
}
