package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tradeSection struct {
	ExpiryMinutes int `mapstructure:"expiry_minutes" validate:"gte=1"`
	MaxPending    int `mapstructure:"max_pending" validate:"gte=1"`
}

type sampleConfig struct {
	Name     string            `mapstructure:"name" validate:"required"`
	Enabled  bool              `mapstructure:"enabled"`
	Timeout  time.Duration     `mapstructure:"timeout"`
	Weights  map[string]int    `mapstructure:"weights"`
	Admins   []string          `mapstructure:"admins"`
	Trade    tradeSection      `mapstructure:"trade"`
	Optional *tradeSection     `mapstructure:"optional"`
	Labels   map[string]string `mapstructure:"labels"`
	Epoch    time.Time         `mapstructure:"epoch"`
}

func defaultSample() *sampleConfig {
	return &sampleConfig{
		Name:    "gacha",
		Enabled: true,
		Timeout: 15 * time.Second,
		Weights: map[string]int{"common": 60, "rare": 27},
		Admins:  []string{"root"},
		Trade:   tradeSection{ExpiryMinutes: 120, MaxPending: 15},
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestMergeConfig(t *testing.T) {
	tests := []struct {
		name   string
		src    *sampleConfig
		assert func(t *testing.T, got *sampleConfig)
	}{
		{
			name: "nil src keeps defaults",
			src:  nil,
			assert: func(t *testing.T, got *sampleConfig) {
				assert.Equal(t, defaultSample(), got)
			},
		},
		{
			name: "zero values do not override",
			src:  &sampleConfig{Trade: tradeSection{MaxPending: 3}},
			assert: func(t *testing.T, got *sampleConfig) {
				assert.Equal(t, "gacha", got.Name)
				assert.True(t, got.Enabled)
				assert.Equal(t, 120, got.Trade.ExpiryMinutes)
				assert.Equal(t, 3, got.Trade.MaxPending)
			},
		},
		{
			name: "maps merge per key and slices replace",
			src: &sampleConfig{
				Weights: map[string]int{"rare": 30, "epic": 10},
				Admins:  []string{"alice", "bob"},
			},
			assert: func(t *testing.T, got *sampleConfig) {
				assert.Equal(t, map[string]int{"common": 60, "rare": 30, "epic": 10}, got.Weights)
				assert.Equal(t, []string{"alice", "bob"}, got.Admins)
			},
		},
		{
			name: "nil pointer in dst is allocated",
			src:  &sampleConfig{Optional: &tradeSection{ExpiryMinutes: 5}},
			assert: func(t *testing.T, got *sampleConfig) {
				require.NotNil(t, got.Optional)
				assert.Equal(t, 5, got.Optional.ExpiryMinutes)
			},
		},
		{
			name: "opaque structs replace whole",
			src:  &sampleConfig{Epoch: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
			assert: func(t *testing.T, got *sampleConfig) {
				assert.True(t, got.Epoch.Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))
				assert.Equal(t, "gacha", got.Name)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MergeConfig(defaultSample(), tt.src)
			require.NoError(t, err)
			tt.assert(t, got)
		})
	}
}

func TestMergeConfigNil(t *testing.T) {
	_, err := MergeConfig[sampleConfig](nil, nil)
	assert.ErrorIs(t, err, ErrNilConfig)

	src := defaultSample()
	got, err := MergeConfig(nil, src)
	require.NoError(t, err)
	assert.Same(t, src, got)
}

func TestValidator(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name    string
		cfg     any
		wantErr error
		wantMsg string
	}{
		{name: "valid", cfg: defaultSample()},
		{name: "nil", cfg: nil, wantErr: ErrNilConfig},
		{
			name:    "required field",
			cfg:     &sampleConfig{Trade: tradeSection{ExpiryMinutes: 1, MaxPending: 1}},
			wantErr: ErrValidationFailed,
			wantMsg: "is required",
		},
		{
			name:    "nested gte",
			cfg:     &sampleConfig{Name: "x", Trade: tradeSection{ExpiryMinutes: 0, MaxPending: 1}},
			wantErr: ErrValidationFailed,
			wantMsg: "sampleConfig.Trade.ExpiryMinutes",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.cfg)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestManagerLoadAndUnmarshal(t *testing.T) {
	path := writeFile(t, `
name: board
enabled: true
timeout: 30s
trade:
  expiry_minutes: 60
  max_pending: 4
`)

	mgr := NewManager()
	require.NoError(t, mgr.LoadFile(path))

	var cfg sampleConfig
	require.NoError(t, mgr.Unmarshal(&cfg))
	assert.Equal(t, "board", cfg.Name)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 4, cfg.Trade.MaxPending)

	var trade tradeSection
	require.NoError(t, mgr.UnmarshalKey("trade", &trade))
	assert.Equal(t, 60, trade.ExpiryMinutes)

	assert.Equal(t, "board", mgr.GetString("name"))
	assert.Equal(t, 4, mgr.GetInt("trade.max_pending"))
	assert.True(t, mgr.GetBool("enabled"))
	assert.True(t, mgr.IsSet("trade.expiry_minutes"))
	assert.False(t, mgr.IsSet("missing"))
	assert.Contains(t, mgr.AllSettings(), "trade")
}

func TestManagerEnvOverride(t *testing.T) {
	path := writeFile(t, "trade:\n  max_pending: 4\n")
	t.Setenv("GACHATEST_TRADE_MAX_PENDING", "9")

	mgr := NewManager(WithEnvPrefix("GACHATEST"))
	require.NoError(t, mgr.LoadFile(path))
	assert.Equal(t, 9, mgr.GetInt("trade.max_pending"))
}

func TestManagerLoadMissingFile(t *testing.T) {
	mgr := NewManager()
	assert.Error(t, mgr.LoadFile(filepath.Join(t.TempDir(), "absent.yaml")))
	assert.ErrorIs(t, mgr.Watch(func() {}), ErrNoConfigFile)
}

func TestWatcherInitialLoad(t *testing.T) {
	path := writeFile(t, "trade:\n  max_pending: 7\n")
	mgr := NewManager()
	require.NoError(t, mgr.LoadFile(path))

	w, err := NewWatcher(mgr, "trade", func() *tradeSection {
		return &tradeSection{ExpiryMinutes: 120, MaxPending: 15}
	}, nil)
	require.NoError(t, err)

	got := w.Current()
	assert.Equal(t, 120, got.ExpiryMinutes)
	assert.Equal(t, 7, got.MaxPending)
}

func TestWatcherRejectsInvalid(t *testing.T) {
	path := writeFile(t, "trade:\n  max_pending: 7\n")
	mgr := NewManager()
	require.NoError(t, mgr.LoadFile(path))

	_, err := NewWatcher(mgr, "trade", func() *tradeSection { return &tradeSection{} }, nil)
	assert.ErrorIs(t, err, ErrValidationFailed)
}
