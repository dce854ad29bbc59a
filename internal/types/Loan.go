/*

This file contains the loan request/preview types produced by the loan term
calculator. Previews are recomputed on every input change and never persisted
beyond the latest value.

*/

package types

// LoanRequest is the user-entered side of a loan preview.
type LoanRequest struct {
	AmountEth       float64 `json:"amount_eth"`
	DepositEth      float64 `json:"deposit_eth"`
	TermYears       float64 `json:"term_years"`
	PaymentsPerYear int     `json:"payments_per_year"`
}

// LoanPreview is a fully specified amortized repayment schedule derived from
// a credit report snapshot plus a loan request. All monetary fields are ETH.
type LoanPreview struct {
	RequestedAmountEth        float64 `json:"requested_amount_eth"`
	DepositEth                float64 `json:"deposit_eth"`
	PrincipalEth              float64 `json:"principal_eth"`
	TermYears                 float64 `json:"term_years"`
	PaymentsPerYear           int     `json:"payments_per_year"`
	PeriodCount               int     `json:"period_count"`
	PeriodicPaymentEth        float64 `json:"periodic_payment_eth"`
	AdjustedAnnualInterestPct float64 `json:"adjusted_annual_interest_pct"`
	TotalRepayEth             float64 `json:"total_repay_eth"`
	LoanLimitEth              float64 `json:"loan_limit_eth"`
}

// LoanHint is the limit-only result returned when the request carries no
// usable amount or term. It is a distinct shape, not a zeroed schedule.
type LoanHint struct {
	LoanLimitEth      float64 `json:"loan_limit_eth"`
	BaseInterestPct   float64 `json:"base_interest_pct"`
	SuggestedRepayDays int    `json:"suggested_repay_days"`
}

// LoanQuote is the calculator's response: exactly one of Hint or Preview is
// set depending on whether the request was sufficient to amortize.
type LoanQuote struct {
	Hint    *LoanHint    `json:"hint,omitempty"`
	Preview *LoanPreview `json:"preview,omitempty"`
}
