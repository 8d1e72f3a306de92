// Package pnl computes the economics of a single matched open/close pair.
package pnl

import (
	"math"
	"time"
)

// CostParams are the per-symbol pricing parameters applied to a round trip.
// FixedCommission, when positive, overrides the proportional CommissionRate.
type CostParams struct {
	CommissionRate  float64
	FixedCommission float64
	Slippage        float64 // one-way slippage in price points
	Size            float64 // contract multiplier
}

// Result is the outcome of one matched open/close lot pair. Volume is signed:
// positive for closed long lots, negative for closed short lots. Results that
// stem from one closing trade spanning several lots share a GroupID.
type Result struct {
	Symbol     string
	Strategy   string
	OpenPrice  float64
	OpenTime   time.Time
	ClosePrice float64
	CloseTime  time.Time
	Volume     float64
	GroupID    int64

	Turnover   float64
	Commission float64
	Slippage   float64
	Pnl        float64
}

// NewResult prices a matched pair. The round trip carries slippage on both
// legs, hence the factor of two.
func NewResult(openPrice float64, openTime time.Time, closePrice float64, closeTime time.Time,
	volume float64, groupID int64, costs CostParams) Result {

	absVol := math.Abs(volume)
	turnover := (openPrice + closePrice) * costs.Size * absVol

	var commission float64
	if costs.FixedCommission > 0 {
		commission = costs.FixedCommission * absVol
	} else {
		commission = math.Abs(turnover * costs.CommissionRate)
	}
	slippage := costs.Slippage * 2 * costs.Size * absVol

	return Result{
		OpenPrice:  openPrice,
		OpenTime:   openTime,
		ClosePrice: closePrice,
		CloseTime:  closeTime,
		Volume:     volume,
		GroupID:    groupID,
		Turnover:   turnover,
		Commission: commission,
		Slippage:   slippage,
		Pnl:        (closePrice-openPrice)*volume*costs.Size - commission - slippage,
	}
}
