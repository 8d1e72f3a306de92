// Package csvwriter writes the run artifacts (trade lists, daily equity
// curves) as CSV files.
package csvwriter

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/cta-backtest/internal/account"
)

// Writer is a simple CSV writer.
type Writer struct {
	file   *os.File
	writer *csv.Writer
	logger *zap.Logger
	mu     sync.Mutex
}

// NewWriter creates a new CSV writer, creating parent directories as needed.
func NewWriter(filePath string, logger *zap.Logger) (*Writer, error) {
	if dir := filepath.Dir(filePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	file, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create CSV file: %w", err)
	}

	return &Writer{
		file:   file,
		writer: csv.NewWriter(file),
		logger: logger,
	}, nil
}

// Write writes a record to the CSV file.
func (w *Writer) Write(record []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.writer.Write(record); err != nil {
		return fmt.Errorf("failed to write record to CSV: %w", err)
	}
	return nil
}

// Flush flushes any buffered data to the underlying file.
func (w *Writer) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.writer.Flush()
}

// Close closes the file.
func (w *Writer) Close() error {
	w.Flush()
	return w.file.Close()
}

func f(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteTradeList writes one row per matched open/close pair.
func WriteTradeList(filePath string, records []account.TradeRecord, logger *zap.Logger) error {
	w, err := NewWriter(filePath, logger)
	if err != nil {
		return err
	}
	defer w.Close()

	header := []string{"group_id", "strategy", "symbol", "direction",
		"open_time", "open_price", "close_time", "close_price",
		"volume", "profit", "commission"}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			strconv.FormatInt(r.GroupID, 10),
			r.Strategy,
			r.Symbol,
			string(r.Direction),
			r.OpenTime.Format(time.DateTime),
			f(r.OpenPrice),
			r.CloseTime.Format(time.DateTime),
			f(r.ClosePrice),
			f(r.Volume),
			f(r.Profit),
			f(r.Commission),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	logger.Info("trade list written", zap.String("path", filePath), zap.Int("rows", len(records)))
	return nil
}

// WriteDailyRecords writes one row per trading day, with per-strategy pnl
// columns in the given order.
func WriteDailyRecords(filePath string, records []account.DailyRecord, strategies []string, logger *zap.Logger) error {
	w, err := NewWriter(filePath, logger)
	if err != nil {
		return err
	}
	defer w.Close()

	header := []string{"date", "capital", "net", "max_capital", "rate",
		"commission", "occupy_money", "occupy_rate", "benchmark"}
	for _, s := range strategies {
		header = append(header, "pnl_"+s)
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			r.Date,
			f(r.Capital),
			f(r.Net),
			f(r.MaxCapital),
			f(r.Rate),
			f(r.Commission),
			f(r.OccupyMoney),
			f(r.OccupyRate),
			f(r.Benchmark),
		}
		for _, s := range strategies {
			row = append(row, f(r.StrategyPnl[s]))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	logger.Info("daily records written", zap.String("path", filePath), zap.Int("rows", len(records)))
	return nil
}
