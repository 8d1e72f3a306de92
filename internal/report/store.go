package report

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// PgxIface is the subset of pgxpool.Pool the store needs, so tests can
// substitute a fake.
type PgxIface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// Store persists run summaries to PostgreSQL.
type Store struct {
	db PgxIface
}

// NewStore creates a new summary store.
func NewStore(db PgxIface) *Store {
	return &Store{db: db}
}

// SaveSummary inserts one run summary.
func (s *Store) SaveSummary(ctx context.Context, summary Summary) error {
	query := `
        INSERT INTO backtest_summaries (
            time, name, run_id, start_date, end_date, total_days,
            init_capital, final_capital, final_net, total_pnl,
            total_return_rate, annual_return_rate,
            total_trade_count, total_turnover, total_commission, total_slippage,
            winning_trades, losing_trades, win_rate,
            average_profit, average_loss, risk_reward_ratio, profit_factor,
            max_consecutive_wins, max_consecutive_losses,
            max_drawdown, max_drawdown_rate, max_drawdown_date, max_occupy_rate,
            sharpe_ratio, sortino_ratio
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
            $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28,
            $29, $30, $31
        );
    `
	_, err := s.db.Exec(ctx, query,
		time.Now(), summary.Name, summary.RunID, summary.StartDate, summary.EndDate, summary.TotalDays,
		summary.InitCapital, summary.FinalCapital, summary.FinalNet, summary.TotalPnl,
		summary.TotalReturnRate, summary.AnnualReturnRate,
		summary.TotalTradeCount, summary.TotalTurnover, summary.TotalCommission, summary.TotalSlippage,
		summary.WinningTrades, summary.LosingTrades, summary.WinRate,
		summary.AverageProfit, summary.AverageLoss, summary.RiskRewardRatio, summary.ProfitFactor,
		summary.MaxConsecutiveWins, summary.MaxConsecutiveLosses,
		summary.MaxDrawdown, summary.MaxDrawdownRate, summary.MaxDrawdownDate, summary.MaxOccupyRate,
		summary.SharpeRatio, summary.SortinoRatio,
	)
	return err
}
