/*

This file contains the types for scoring wallets, and the configurable
parameters for the credit engine. Different parameter sets can exist for
different lending policies; the active set is loaded from the database when
one is configured, otherwise the compiled defaults are used.

*/

package types

// ScoringParameters holds all tunable coefficients, caps, and thresholds used
// by the credit engine for metric scoring, recency weighting, and loan-term
// derivation.
type ScoringParameters struct {
	// --- Factor Coefficients & Caps ---
	// Each factor is a capped linear function of one wallet metric. The nine
	// caps intentionally sum above 100; the final clamp absorbs the headroom.
	AgeCoefficient        float64 `json:"age_coefficient"`        // Points per year of wallet age.
	AgeCap                float64 `json:"age_cap"`                // Maximum contribution from wallet age.
	TxCountDivisor        float64 `json:"tx_count_divisor"`       // Transactions required per point.
	TxCountCap            float64 `json:"tx_count_cap"`           // Maximum contribution from activity volume.
	CounterpartyDivisor   float64 `json:"counterparty_divisor"`   // Unique counterparties required per point.
	CounterpartyCap       float64 `json:"counterparty_cap"`       // Maximum contribution from counterparty diversity.
	VolumeDivisor         float64 `json:"volume_divisor"`         // ETH of total volume required per point.
	VolumeCap             float64 `json:"volume_cap"`             // Maximum contribution from total volume.
	FlowRatioCoefficient  float64 `json:"flow_ratio_coefficient"` // Multiplier on the inflow/outflow ratio.
	FlowRatioCap          float64 `json:"flow_ratio_cap"`         // Maximum contribution from the flow ratio.
	PeakBalanceDivisor    float64 `json:"peak_balance_divisor"`   // ETH of peak balance required per point.
	PeakBalanceCap        float64 `json:"peak_balance_cap"`       // Maximum contribution from peak balance.
	CurrentBalanceDivisor float64 `json:"current_balance_divisor"`
	CurrentBalanceCap     float64 `json:"current_balance_cap"`
	GasEfficiencyDivisor  float64 `json:"gas_efficiency_divisor"` // Divisor applied to the raw gas-efficiency factor.
	GasEfficiencyCap      float64 `json:"gas_efficiency_cap"`
	ContractDivisor       float64 `json:"contract_divisor"` // Estimated contract interactions required per point.
	ContractCap           float64 `json:"contract_cap"`

	// --- Recency Multiplier ---
	// Applied to the raw factor sum based on days since the wallet's last
	// recorded transaction.
	RecencyFreshDays         float64 `json:"recency_fresh_days"`         // Activity within this window earns the fresh multiplier.
	RecencyFreshMultiplier   float64 `json:"recency_fresh_multiplier"`   // e.g. 1.08
	RecencyNormalDays        float64 `json:"recency_normal_days"`        // Up to this window the score is unchanged.
	RecencyNormalMultiplier  float64 `json:"recency_normal_multiplier"`  // e.g. 1.00
	RecencyStaleDays         float64 `json:"recency_stale_days"`         // Up to this window the stale multiplier applies.
	RecencyStaleMultiplier   float64 `json:"recency_stale_multiplier"`   // e.g. 0.95
	RecencyDormantMultiplier float64 `json:"recency_dormant_multiplier"` // Beyond the stale window. e.g. 0.85

	// --- Empty-History Fallback ---
	FallbackBalanceCoefficient float64 `json:"fallback_balance_coefficient"` // Points per ETH of balance when no history exists.

	// --- Contract Sampling ---
	ContractProbeLimit int `json:"contract_probe_limit"` // Maximum counterparties probed for deployed code.

	// --- Loan Terms ---
	LoanLimitFactor        float64 `json:"loan_limit_factor"`         // Loan limit as a fraction of peak observed balance.
	MaxBaseInterestPct     float64 `json:"max_base_interest_pct"`     // Base annual interest at score 0.
	MinBaseInterestPct     float64 `json:"min_base_interest_pct"`     // Floor for the base annual interest.
	InterestScoreDivisor   float64 `json:"interest_score_divisor"`    // Score points of discount per interest point.
	OverLimitPenaltyScale  float64 `json:"over_limit_penalty_scale"`  // Interest points added per 100% over the limit.
	OverLimitPenaltyCapPct float64 `json:"over_limit_penalty_cap"`    // Ceiling on the over-limit surcharge.
	LongTermThresholdYears float64 `json:"long_term_threshold_years"` // Terms beyond this incur the duration surcharge.
	LongTermSurchargePct   float64 `json:"long_term_surcharge_pct"`   // Flat surcharge for long terms.
	DefaultPaymentsPerYear int     `json:"default_payments_per_year"` // Used when the request leaves frequency unset.
	MinRepayDays           int     `json:"min_repay_days"`            // Floor for the suggested repayment window.
	RepayDaysBase          int     `json:"repay_days_base"`           // Base of the suggested repayment window before the score discount.
}

// ScoreComponents records the contribution of each factor to the raw score
// sum, retained for audit and report rendering.
type ScoreComponents struct {
	Age                   float64 `json:"age"`
	TxCount               float64 `json:"tx_count"`
	CounterpartyDiversity float64 `json:"counterparty_diversity"`
	TotalVolume           float64 `json:"total_volume"`
	FlowRatio             float64 `json:"flow_ratio"`
	PeakBalance           float64 `json:"peak_balance"`
	CurrentBalance        float64 `json:"current_balance"`
	GasEfficiency         float64 `json:"gas_efficiency"`
	ContractInteractions  float64 `json:"contract_interactions"`
}

// ScoreResult is the composed creditworthiness score. Value is always within
// [0,100]; Components and the multiplier reconstruct how it was reached.
type ScoreResult struct {
	Value             int             `json:"value"`
	Components        ScoreComponents `json:"components"`
	RawSum            float64         `json:"raw_sum"`
	RecencyMultiplier float64         `json:"recency_multiplier"`
}

// Breakdown returns the per-factor contributions keyed by factor name, in the
// shape report renderers consume.
func (c ScoreComponents) Breakdown() map[string]float64 {
	return map[string]float64{
		"age":                    c.Age,
		"tx_count":               c.TxCount,
		"counterparty_diversity": c.CounterpartyDiversity,
		"total_volume":           c.TotalVolume,
		"flow_ratio":             c.FlowRatio,
		"peak_balance":           c.PeakBalance,
		"current_balance":        c.CurrentBalance,
		"gas_efficiency":         c.GasEfficiency,
		"contract_interactions":  c.ContractInteractions,
	}
}
