// Package report derives performance statistics from a finished run.
package report

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/your-org/cta-backtest/internal/account"
	"github.com/your-org/cta-backtest/pkg/logger"
)

// Trading days per year used for annualization.
const tradingDaysPerYear = 240

// Summary holds the performance statistics of one run.
type Summary struct {
	Name  string `json:"name"`
	RunID string `json:"run_id"`

	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	TotalDays int    `json:"total_days"`

	InitCapital  decimal.Decimal `json:"init_capital"`
	FinalCapital decimal.Decimal `json:"final_capital"`
	FinalNet     decimal.Decimal `json:"final_net"`
	TotalPnl     decimal.Decimal `json:"total_pnl"`

	TotalReturnRate  float64 `json:"total_return_rate"`
	AnnualReturnRate float64 `json:"annual_return_rate"`

	TotalTradeCount int             `json:"total_trade_count"`
	TotalTurnover   decimal.Decimal `json:"total_turnover"`
	TotalCommission decimal.Decimal `json:"total_commission"`
	TotalSlippage   decimal.Decimal `json:"total_slippage"`

	WinningTrades        int             `json:"winning_trades"`
	LosingTrades         int             `json:"losing_trades"`
	WinRate              float64         `json:"win_rate"`
	AverageProfit        decimal.Decimal `json:"average_profit"`
	AverageLoss          decimal.Decimal `json:"average_loss"`
	RiskRewardRatio      float64         `json:"risk_reward_ratio"`
	ProfitFactor         float64         `json:"profit_factor"`
	MaxConsecutiveWins   int             `json:"max_consecutive_wins"`
	MaxConsecutiveLosses int             `json:"max_consecutive_losses"`

	MaxDrawdown     decimal.Decimal `json:"max_drawdown"`
	MaxDrawdownRate float64         `json:"max_drawdown_rate"`
	MaxDrawdownDate string          `json:"max_drawdown_date"`
	MaxOccupyRate   float64         `json:"max_occupy_rate"`

	SharpeRatio  float64 `json:"sharpe_ratio"`
	SortinoRatio float64 `json:"sortino_ratio"`
}

// Build computes the summary for one finished run.
func Build(name, runID string, acct *account.Accountant) (Summary, error) {
	trades := acct.TradeRecords()
	if len(trades) == 0 {
		return Summary{}, fmt.Errorf("no closed trades to analyze")
	}
	daily := acct.DailyRecords()

	s := Summary{
		Name:            name,
		RunID:           runID,
		TotalDays:       len(daily),
		InitCapital:     decimal.NewFromFloat(acct.InitCapital()),
		FinalCapital:    decimal.NewFromFloat(acct.CurCapital),
		FinalNet:        decimal.NewFromFloat(acct.NetCapital),
		TotalPnl:        decimal.NewFromFloat(acct.CurCapital - acct.InitCapital()),
		TotalTradeCount: acct.TotalTradeCount,
		TotalTurnover:   decimal.NewFromFloat(acct.TotalTurnover),
		TotalCommission: decimal.NewFromFloat(acct.TotalCommission),
		TotalSlippage:   decimal.NewFromFloat(acct.TotalSlippage),
		WinningTrades:   acct.WinningCount,
		LosingTrades:    acct.LosingCount,
		MaxOccupyRate:   acct.MaxOccupyRate,
	}
	if len(daily) > 0 {
		s.StartDate = daily[0].Date
		s.EndDate = daily[len(daily)-1].Date
	}

	if acct.InitCapital() != 0 {
		s.TotalReturnRate = (acct.NetCapital - acct.InitCapital()) / acct.InitCapital()
	}
	if s.TotalDays > 0 {
		s.AnnualReturnRate = s.TotalReturnRate / float64(s.TotalDays) * tradingDaysPerYear
	}

	if total := acct.WinningCount + acct.LosingCount; total > 0 {
		s.WinRate = float64(acct.WinningCount) / float64(total)
	}
	if acct.WinningCount > 0 {
		s.AverageProfit = decimal.NewFromFloat(acct.TotalWinning / float64(acct.WinningCount))
	}
	if acct.LosingCount > 0 {
		s.AverageLoss = decimal.NewFromFloat(acct.TotalLosing / float64(acct.LosingCount))
	}
	if !s.AverageLoss.IsZero() {
		s.RiskRewardRatio = s.AverageProfit.Div(s.AverageLoss.Abs()).InexactFloat64()
	}
	if acct.TotalLosing != 0 {
		s.ProfitFactor = acct.TotalWinning / math.Abs(acct.TotalLosing)
	}

	s.MaxConsecutiveWins, s.MaxConsecutiveLosses = streaks(trades)

	maxDrawdown := 0.0
	for _, d := range acct.DrawdownList {
		maxDrawdown = math.Min(maxDrawdown, d)
	}
	s.MaxDrawdown = decimal.NewFromFloat(maxDrawdown)
	s.MaxDrawdownRate = acct.DailyMaxDrawdownRate
	s.MaxDrawdownDate = acct.MaxDrawdownRateTime

	returns := dailyLogReturns(daily)
	s.SharpeRatio = calculateSharpeRatio(returns, 0.0) * math.Sqrt(tradingDaysPerYear)
	s.SortinoRatio = calculateSortinoRatio(returns, 0.0) * math.Sqrt(tradingDaysPerYear)

	return s, nil
}

// dailyLogReturns converts the daily net series into log returns, anchored
// at the initial capital.
func dailyLogReturns(daily []account.DailyRecord) []float64 {
	returns := make([]float64, 0, len(daily))
	for i, rec := range daily {
		var prev float64
		if i == 0 {
			if rec.Rate <= 0 {
				continue
			}
			prev = rec.Net / rec.Rate // initial capital
		} else {
			prev = daily[i-1].Net
		}
		if prev <= 0 || rec.Net <= 0 {
			continue
		}
		returns = append(returns, math.Log(rec.Net/prev))
	}
	return returns
}

func streaks(trades []account.TradeRecord) (maxWins, maxLosses int) {
	var wins, losses int
	for _, t := range trades {
		if t.Profit > 0 {
			wins++
			losses = 0
		} else {
			losses++
			wins = 0
		}
		if wins > maxWins {
			maxWins = wins
		}
		if losses > maxLosses {
			maxLosses = losses
		}
	}
	return maxWins, maxLosses
}

// Log writes the summary through the application logger, one figure per line.
func (s Summary) Log() {
	logger.Infof("---- %s (%s) ----", s.Name, s.RunID)
	logger.Infof("period:            %s .. %s (%d days)", s.StartDate, s.EndDate, s.TotalDays)
	logger.Infof("init capital:      %s", s.InitCapital.StringFixed(2))
	logger.Infof("final net:         %s", s.FinalNet.StringFixed(2))
	logger.Infof("total pnl:         %s", s.TotalPnl.StringFixed(2))
	logger.Infof("total return:      %.2f%%", s.TotalReturnRate*100)
	logger.Infof("annual return:     %.2f%%", s.AnnualReturnRate*100)
	logger.Infof("trades:            %d (win %d / lose %d, win rate %.2f%%)",
		s.TotalTradeCount, s.WinningTrades, s.LosingTrades, s.WinRate*100)
	logger.Infof("turnover:          %s", s.TotalTurnover.StringFixed(2))
	logger.Infof("commission:        %s", s.TotalCommission.StringFixed(2))
	logger.Infof("slippage:          %s", s.TotalSlippage.StringFixed(2))
	logger.Infof("avg profit/loss:   %s / %s", s.AverageProfit.StringFixed(2), s.AverageLoss.StringFixed(2))
	logger.Infof("profit factor:     %.2f", s.ProfitFactor)
	logger.Infof("max drawdown:      %s (%.2f%% at %s)", s.MaxDrawdown.StringFixed(2), s.MaxDrawdownRate, s.MaxDrawdownDate)
	logger.Infof("max occupy rate:   %.2f%%", s.MaxOccupyRate*100)
	logger.Infof("sharpe / sortino:  %.2f / %.2f", s.SharpeRatio, s.SortinoRatio)
	logger.Infof("streaks:           %d wins, %d losses", s.MaxConsecutiveWins, s.MaxConsecutiveLosses)
}

func calculateStandardDeviation(returns []float64, mean float64) float64 {
	if len(returns) == 0 {
		return 0.0
	}
	variance := 0.0
	for _, r := range returns {
		variance += math.Pow(r-mean, 2)
	}
	return math.Sqrt(variance / float64(len(returns)))
}

func calculateDownsideDeviation(returns []float64, target float64) float64 {
	if len(returns) == 0 {
		return 0.0
	}
	downsideVariance := 0.0
	downsideCount := 0
	for _, r := range returns {
		if r < target {
			downsideVariance += math.Pow(r-target, 2)
			downsideCount++
		}
	}
	if downsideCount == 0 {
		return 0.0
	}
	return math.Sqrt(downsideVariance / float64(downsideCount))
}

func calculateSharpeRatio(returns []float64, riskFreeRate float64) float64 {
	if len(returns) == 0 {
		return 0.0
	}
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	stdDev := calculateStandardDeviation(returns, mean)
	if stdDev == 0 {
		return 0.0
	}
	return (mean - riskFreeRate) / stdDev
}

func calculateSortinoRatio(returns []float64, riskFreeRate float64) float64 {
	if len(returns) == 0 {
		return 0.0
	}
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	downsideDev := calculateDownsideDeviation(returns, 0)
	if downsideDev == 0 {
		return 0.0
	}
	return (mean - riskFreeRate) / downsideDev
}
