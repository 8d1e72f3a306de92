// Package main is the entry point of the parameter grid optimizer.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/your-org/cta-backtest/internal/config"
	"github.com/your-org/cta-backtest/internal/engine"
	"github.com/your-org/cta-backtest/internal/optimize"
	"github.com/your-org/cta-backtest/internal/report"
	_ "github.com/your-org/cta-backtest/internal/strategy"
	"github.com/your-org/cta-backtest/pkg/logger"
)

// paramFlags collects repeated -param specs of the form
// "name=start:end:step" or "name=v1,v2,v3".
type paramFlags []string

func (p *paramFlags) String() string { return strings.Join(*p, " ") }

func (p *paramFlags) Set(v string) error {
	*p = append(*p, v)
	return nil
}

var targets = map[string]optimize.Target{
	"net":      func(s report.Summary) float64 { return s.FinalNet.InexactFloat64() },
	"return":   func(s report.Summary) float64 { return s.TotalReturnRate },
	"sharpe":   func(s report.Summary) float64 { return s.SharpeRatio },
	"drawdown": func(s report.Summary) float64 { return -s.MaxDrawdownRate },
}

func main() {
	configPath := flag.String("config", "config/backtest.yaml", "Path to the run configuration file")
	workers := flag.Int("workers", 0, "Concurrent runs, 0 means GOMAXPROCS")
	targetName := flag.String("target", "net", "Figure to maximize: net, return, sharpe or drawdown")
	top := flag.Int("top", 10, "Number of best settings to print")
	var params paramFlags
	flag.Var(&params, "param", "Parameter sweep, e.g. -param fast=2:10:2 -param slow=20,40,60 (repeatable)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger.SetGlobalLogLevel(cfg.LogLevel)

	target, ok := targets[*targetName]
	if !ok {
		logger.Fatalf("Unknown target %q", *targetName)
	}

	grid, err := buildGrid(params)
	if err != nil {
		logger.Fatalf("Bad parameter spec: %v", err)
	}

	results, err := optimize.Run(ctx, cfg, grid, *workers, runOne, target)
	if err != nil {
		logger.Fatalf("Optimization failed: %v", err)
	}

	logger.Infof("---- top settings by %s ----", *targetName)
	for i, r := range results {
		if i >= *top {
			break
		}
		if r.Err != nil {
			logger.Infof("%2d. %s  FAILED: %v", i+1, r.Setting, r.Err)
			continue
		}
		logger.Infof("%2d. %s  target=%.4f net=%s sharpe=%.2f",
			i+1, r.Setting, r.Value, r.Summary.FinalNet.StringFixed(2), r.Summary.SharpeRatio)
	}
}

// runOne executes a full backtest for one grid point with a fresh engine.
func runOne(ctx context.Context, cfg *config.Config, setting optimize.Setting) (report.Summary, error) {
	eng := engine.New(cfg)
	if err := eng.LoadStrategies(setting); err != nil {
		return report.Summary{}, err
	}
	if err := eng.Run(ctx); err != nil {
		return report.Summary{}, err
	}
	return report.Build(cfg.Name, eng.RunID, eng.Accountant())
}

func buildGrid(specs paramFlags) (*optimize.Grid, error) {
	grid := optimize.NewGrid()
	for _, spec := range specs {
		name, expr, ok := strings.Cut(spec, "=")
		if !ok {
			return nil, fmt.Errorf("missing '=' in %q", spec)
		}
		if strings.Contains(expr, ":") {
			parts := strings.Split(expr, ":")
			if len(parts) != 3 {
				return nil, fmt.Errorf("range %q wants start:end:step", expr)
			}
			vals := make([]float64, 3)
			for i, p := range parts {
				v, err := strconv.ParseFloat(p, 64)
				if err != nil {
					return nil, fmt.Errorf("range %q: %w", expr, err)
				}
				vals[i] = v
			}
			grid.AddRange(name, vals[0], vals[1], vals[2])
			continue
		}
		var values []float64
		for _, p := range strings.Split(expr, ",") {
			v, err := strconv.ParseFloat(p, 64)
			if err != nil {
				return nil, fmt.Errorf("value list %q: %w", expr, err)
			}
			values = append(values, v)
		}
		grid.Add(name, values...)
	}
	return grid, nil
}
