package report

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDB struct {
	sql  string
	args []any
	err  error
}

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.sql = sql
	f.args = args
	return pgconn.CommandTag{}, f.err
}

func TestSaveSummary(t *testing.T) {
	db := &fakeDB{}
	store := NewStore(db)

	summary := Summary{
		Name:        "bt",
		RunID:       "run-1",
		StartDate:   "2018-01-02",
		EndDate:     "2018-01-31",
		TotalDays:   21,
		InitCapital: decimal.NewFromInt(1_000_000),
		FinalNet:    decimal.NewFromInt(1_050_000),
		SharpeRatio: 1.3,
	}
	require.NoError(t, store.SaveSummary(context.Background(), summary))

	assert.Contains(t, db.sql, "INSERT INTO backtest_summaries")
	require.Len(t, db.args, 31)
	assert.Equal(t, "bt", db.args[1])
	assert.Equal(t, "run-1", db.args[2])
	assert.Equal(t, 21, db.args[5])
	assert.Equal(t, 1.3, db.args[29])
}

func TestSaveSummary_ExecError(t *testing.T) {
	db := &fakeDB{err: errors.New("connection refused")}
	store := NewStore(db)

	err := store.SaveSummary(context.Background(), Summary{Name: "bt"})
	assert.Error(t, err)
}
