package optimize

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/cta-backtest/internal/config"
	"github.com/your-org/cta-backtest/internal/report"
)

func TestSetting_StringIsDeterministic(t *testing.T) {
	s := Setting{"slow": 60, "fast": 10}
	assert.Equal(t, "fast=10 slow=60", s.String())
}

func TestGrid_Settings(t *testing.T) {
	grid := NewGrid().
		Add("fast", 5, 10).
		AddRange("slow", 20, 60, 20)

	settings := grid.Settings()
	require.Len(t, settings, 6)

	// Insertion-ordered cartesian product: the last parameter varies fastest.
	assert.Equal(t, Setting{"fast": 5, "slow": 20}, settings[0])
	assert.Equal(t, Setting{"fast": 5, "slow": 40}, settings[1])
	assert.Equal(t, Setting{"fast": 5, "slow": 60}, settings[2])
	assert.Equal(t, Setting{"fast": 10, "slow": 20}, settings[3])
}

func TestGrid_AddRangeZeroStep(t *testing.T) {
	settings := NewGrid().AddRange("window", 20, 60, 0).Settings()
	require.Len(t, settings, 1)
	assert.Equal(t, Setting{"window": 20}, settings[0])
}

func TestGrid_EmptyHasNoSettings(t *testing.T) {
	assert.Nil(t, NewGrid().Settings())
}

func TestRun_RanksBestFirst(t *testing.T) {
	grid := NewGrid().Add("fast", 1, 2, 3)

	// Target value grows with the parameter; no real backtests involved.
	run := func(ctx context.Context, cfg *config.Config, s Setting) (report.Summary, error) {
		return report.Summary{SharpeRatio: s["fast"]}, nil
	}
	target := func(s report.Summary) float64 { return s.SharpeRatio }

	results, err := Run(context.Background(), &config.Config{}, grid, 2, run, target)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, 3.0, results[0].Value)
	assert.Equal(t, 2.0, results[1].Value)
	assert.Equal(t, 1.0, results[2].Value)
}

func TestRun_FailedSettingsSortLast(t *testing.T) {
	grid := NewGrid().Add("fast", 1, 2, 3)

	boom := errors.New("bad parameters")
	run := func(ctx context.Context, cfg *config.Config, s Setting) (report.Summary, error) {
		if s["fast"] == 3 {
			return report.Summary{}, boom
		}
		return report.Summary{SharpeRatio: s["fast"]}, nil
	}
	target := func(s report.Summary) float64 { return s.SharpeRatio }

	results, err := Run(context.Background(), &config.Config{}, grid, 1, run, target)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	assert.NoError(t, results[1].Err)
	assert.ErrorIs(t, results[2].Err, boom)
	assert.Equal(t, 2.0, results[0].Value)
}

func TestRun_EmptyGridFails(t *testing.T) {
	_, err := Run(context.Background(), &config.Config{}, NewGrid(), 1, nil, nil)
	assert.Error(t, err)
}
