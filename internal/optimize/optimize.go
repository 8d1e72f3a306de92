// Package optimize runs a backtest across a grid of strategy parameter
// settings and ranks the outcomes.
package optimize

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/your-org/cta-backtest/internal/config"
	"github.com/your-org/cta-backtest/internal/report"
	"github.com/your-org/cta-backtest/pkg/logger"
)

// Setting is one point of the parameter grid.
type Setting map[string]float64

// String renders the setting with deterministic key order.
func (s Setting) String() string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, s[k]))
	}
	return strings.Join(parts, " ")
}

type param struct {
	name   string
	values []float64
}

// Grid is an ordered set of parameters whose cartesian product forms the
// optimization space.
type Grid struct {
	params []param
}

func NewGrid() *Grid {
	return &Grid{}
}

// Add appends a parameter with explicit candidate values.
func (g *Grid) Add(name string, values ...float64) *Grid {
	g.params = append(g.params, param{name: name, values: values})
	return g
}

// AddRange appends a parameter sweeping [start, end] inclusive by step.
func (g *Grid) AddRange(name string, start, end, step float64) *Grid {
	if step <= 0 {
		return g.Add(name, start)
	}
	var values []float64
	for v := start; v <= end; v += step {
		values = append(values, v)
	}
	return g.Add(name, values...)
}

// Settings expands the grid into the full cartesian product, in a
// deterministic order following parameter insertion.
func (g *Grid) Settings() []Setting {
	settings := []Setting{{}}
	for _, p := range g.params {
		next := make([]Setting, 0, len(settings)*len(p.values))
		for _, s := range settings {
			for _, v := range p.values {
				ns := make(Setting, len(s)+1)
				for k, val := range s {
					ns[k] = val
				}
				ns[p.name] = v
				next = append(next, ns)
			}
		}
		settings = next
	}
	if len(g.params) == 0 {
		return nil
	}
	return settings
}

// Target extracts the figure to maximize from a run summary.
type Target func(report.Summary) float64

// RunFunc executes one full backtest for a setting. Implementations must
// build a fresh engine and fresh strategies per call; runs execute
// concurrently.
type RunFunc func(ctx context.Context, cfg *config.Config, setting Setting) (report.Summary, error)

// Result is the outcome of one grid point. Err is set when the run failed;
// failed runs sort last.
type Result struct {
	Setting Setting
	Value   float64
	Summary report.Summary
	Err     error
}

// Run evaluates every setting of the grid with at most workers concurrent
// backtests and returns the results ranked by target value, best first.
func Run(ctx context.Context, cfg *config.Config, grid *Grid, workers int, run RunFunc, target Target) ([]Result, error) {
	settings := grid.Settings()
	if len(settings) == 0 {
		return nil, fmt.Errorf("optimize: empty parameter grid")
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	logger.Infof("optimizing %d settings with %d workers", len(settings), workers)

	results := make([]Result, len(settings))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i, setting := range settings {
		i, setting := i, setting
		eg.Go(func() error {
			summary, err := run(ctx, cfg, setting)
			if err != nil {
				logger.Errorf("setting %s failed: %v", setting, err)
				results[i] = Result{Setting: setting, Err: err}
				return nil
			}
			results[i] = Result{Setting: setting, Value: target(summary), Summary: summary}
			logger.Infof("setting %s done: target %.4f", setting, results[i].Value)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(a, b int) bool {
		if (results[a].Err == nil) != (results[b].Err == nil) {
			return results[a].Err == nil
		}
		return results[a].Value > results[b].Value
	})
	return results, nil
}
