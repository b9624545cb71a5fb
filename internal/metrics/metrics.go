// Package metrics derives the financial indicators reported for contracts.
// Every endpoint that shows realized value, balance or savings goes through
// Compute so the numbers agree across the API.
package metrics

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

const percentPlaces = 2

type Metrics struct {
	RealizedValue      decimal.Decimal `json:"realized_value"`
	ContractBalance    decimal.Decimal `json:"contract_balance"`
	PercentRealized    decimal.Decimal `json:"percent_realized"`
	SavingsObtained    decimal.Decimal `json:"savings_obtained"`
	PercentSavings     decimal.Decimal `json:"percent_savings"`
	ReductionTargetMet bool            `json:"reduction_target_met"`
}

// Compute returns the derived fields of a contract. realized is the sum of the
// invoices billed through the contract's purchase orders.
func Compute(originalValue, reductionTargetPercent, realized decimal.Decimal) Metrics {
	m := Metrics{
		RealizedValue:   realized,
		ContractBalance: originalValue.Sub(realized),
		PercentRealized: decimal.Zero,
		PercentSavings:  decimal.Zero,
	}
	m.SavingsObtained = originalValue.Mul(reductionTargetPercent).Div(hundred).Round(percentPlaces)

	if originalValue.IsPositive() {
		m.PercentRealized = realized.Div(originalValue).Mul(hundred).Round(percentPlaces)
		m.PercentSavings = m.SavingsObtained.Div(originalValue).Mul(hundred).Round(percentPlaces)
	}
	m.ReductionTargetMet = m.ContractBalance.GreaterThanOrEqual(m.SavingsObtained)
	return m
}

// Portfolio is the fold of many contract metrics.
type Portfolio struct {
	Contracts            int             `json:"contracts"`
	TotalOriginalValue   decimal.Decimal `json:"total_original_value"`
	TotalRealized        decimal.Decimal `json:"total_realized"`
	TotalBalance         decimal.Decimal `json:"total_balance"`
	TotalSavings         decimal.Decimal `json:"total_savings"`
	MeanPercentRealized  decimal.Decimal `json:"mean_percent_realized"`
	MeanPercentSavings   decimal.Decimal `json:"mean_percent_savings"`
	ContractsMeetingGoal int             `json:"contracts_meeting_goal"`
}

// Add folds one contract into the portfolio. Percent means are kept as running
// sums and resolved by Finish.
func (p *Portfolio) Add(originalValue decimal.Decimal, m Metrics) {
	p.Contracts++
	p.TotalOriginalValue = p.TotalOriginalValue.Add(originalValue)
	p.TotalRealized = p.TotalRealized.Add(m.RealizedValue)
	p.TotalBalance = p.TotalBalance.Add(m.ContractBalance)
	p.TotalSavings = p.TotalSavings.Add(m.SavingsObtained)
	p.MeanPercentRealized = p.MeanPercentRealized.Add(m.PercentRealized)
	p.MeanPercentSavings = p.MeanPercentSavings.Add(m.PercentSavings)
	if m.ReductionTargetMet {
		p.ContractsMeetingGoal++
	}
}

// Finish turns the accumulated percent sums into simple per-contract means.
func (p *Portfolio) Finish() {
	if p.Contracts == 0 {
		p.MeanPercentRealized = decimal.Zero
		p.MeanPercentSavings = decimal.Zero
		return
	}
	n := decimal.NewFromInt(int64(p.Contracts))
	p.MeanPercentRealized = p.MeanPercentRealized.Div(n).Round(percentPlaces)
	p.MeanPercentSavings = p.MeanPercentSavings.Div(n).Round(percentPlaces)
}

// TargetMet reports whether the remaining balance across the portfolio still
// covers the savings every contract committed to.
func (p Portfolio) TargetMet() bool {
	return p.TotalBalance.GreaterThanOrEqual(p.TotalSavings)
}
