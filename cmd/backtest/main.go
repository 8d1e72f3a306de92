// Package main is the entry point of the backtest runner.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/your-org/cta-backtest/db/schema"
	"github.com/your-org/cta-backtest/internal/account"
	"github.com/your-org/cta-backtest/internal/config"
	"github.com/your-org/cta-backtest/internal/csvwriter"
	"github.com/your-org/cta-backtest/internal/engine"
	"github.com/your-org/cta-backtest/internal/report"
	_ "github.com/your-org/cta-backtest/internal/strategy"
	"github.com/your-org/cta-backtest/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config/backtest.yaml", "Path to the run configuration file")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.SetGlobalLogLevel(cfg.LogLevel)
	logger.Infof("Loaded configuration from: %s", *configPath)

	eng := engine.New(cfg)
	if err := eng.LoadStrategies(nil); err != nil {
		logger.Fatalf("Failed to load strategies: %v", err)
	}

	runErr := eng.Run(ctx)
	if runErr != nil {
		logger.Errorf("Run aborted: %v", runErr)
		if errors.Is(runErr, context.Canceled) {
			os.Exit(1)
		}
		// Fatal accounting errors still flush the partial artifacts below.
	}

	acct := eng.Accountant()
	writeArtifacts(cfg, acct)

	summary, err := report.Build(cfg.Name, eng.RunID, acct)
	if err != nil {
		logger.Warnf("No summary produced: %v", err)
	} else {
		summary.Log()
		saveSummary(ctx, cfg, summary)
	}

	if runErr != nil {
		os.Exit(1)
	}
}

func writeArtifacts(cfg *config.Config, acct *account.Accountant) {
	outDir := cfg.OutputDir
	if outDir == "" {
		outDir = "output"
	}
	strategies := make([]string, 0, len(cfg.Strategies))
	for name := range cfg.Strategies {
		strategies = append(strategies, name)
	}
	sort.Strings(strategies)

	tradesPath := filepath.Join(outDir, cfg.Name+"_trade_list.csv")
	if err := csvwriter.WriteTradeList(tradesPath, acct.TradeRecords(), logger.Zap()); err != nil {
		logger.Errorf("Failed to write trade list: %v", err)
	}
	dailyPath := filepath.Join(outDir, cfg.Name+"_daily_list.csv")
	if err := csvwriter.WriteDailyRecords(dailyPath, acct.DailyRecords(), strategies, logger.Zap()); err != nil {
		logger.Errorf("Failed to write daily records: %v", err)
	}
}

func saveSummary(ctx context.Context, cfg *config.Config, summary report.Summary) {
	if cfg.DBConnStr == "" {
		return
	}
	if err := schema.Migrate(cfg.DBConnStr); err != nil {
		logger.Errorf("Failed to migrate database schema: %v", err)
		return
	}
	pool, err := pgxpool.New(ctx, cfg.DBConnStr)
	if err != nil {
		logger.Errorf("Failed to connect to database: %v", err)
		return
	}
	defer pool.Close()

	if err := report.NewStore(pool).SaveSummary(ctx, summary); err != nil {
		logger.Errorf("Failed to save summary: %v", err)
		return
	}
	logger.Info("Summary saved to database")
}
