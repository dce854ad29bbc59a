/*

This file contains the credit report, the top-level artifact of a wallet
analysis run. The report is plain data; any human-readable rendering is the
caller's concern.

*/

package types

import "time"

// CreditReport bundles everything one analysis run produced. When Fallback is
// true the wallet had no transaction history: the score is balance-only,
// Metrics and Stake are nil, and the nine-factor breakdown was never run.
type CreditReport struct {
	Address  string `json:"address"`
	Fallback bool   `json:"fallback"`

	Score   ScoreResult    `json:"score"`
	Metrics *WalletMetrics `json:"metrics,omitempty"`
	Stake   *StakeSnapshot `json:"stake,omitempty"`

	CurrentBalanceEth float64 `json:"current_balance_eth"`

	// Loan guidance derived from the score and peak balance. LoanLimitFiat is
	// nil when the price provider was unavailable; its absence never fails an
	// analysis.
	LoanLimitEth       float64  `json:"loan_limit_eth"`
	LoanLimitFiat      *float64 `json:"loan_limit_fiat,omitempty"`
	BaseInterestPct    float64  `json:"base_interest_pct"`
	SuggestedRepayDays int      `json:"suggested_repay_days"`

	GeneratedAt time.Time `json:"generated_at"`
}
