/*

This file contains the default scoring parameters for the credit engine.

The coefficients and caps are calibrated so that a long-lived, active,
well-funded wallet saturates the factor sum slightly above 100 before the
recency multiplier; the final clamp absorbs the headroom.

*/

package config

import (
	"github.com/creditlens/wcs/internal/types"
)

// DefaultScoringParameters provides the baseline parameter set for the credit
// engine. These values are used if no active parameters are found in the
// database during initialization.
var DefaultScoringParameters = types.ScoringParameters{
	// --- Factor Coefficients & Caps ---
	// The nine caps sum to 104: intentional headroom before the recency
	// multiplier and the final [0,100] clamp.

	AgeCoefficient: 6, // 6 points per year of history.
	AgeCap:         14,
	// Rationale: age is the hardest metric to fake but the easiest to sit on;
	// capping at just over two years keeps dormant old wallets from coasting.

	TxCountDivisor: 20, // One point per 20 transactions.
	TxCountCap:     16,

	CounterpartyDivisor: 8, // One point per 8 unique counterparties.
	CounterpartyCap:     12,

	VolumeDivisor: 2, // One point per 2 ETH of lifetime volume.
	VolumeCap:     14,

	FlowRatioCoefficient: 6, // Net depositors are rewarded.
	FlowRatioCap:         12,
	// The ratio itself is deliberately uncapped before the multiplier: a huge
	// inflow with near-zero outflow saturates the cap, which is the intent.

	PeakBalanceDivisor: 0.7, // One point per 0.7 ETH of peak balance.
	PeakBalanceCap:     12,

	CurrentBalanceDivisor: 0.25, // One point per 0.25 ETH held right now.
	CurrentBalanceCap:     10,

	GasEfficiencyDivisor: 10, // Raw factor is 100/(gwei+1), contributed /10.
	GasEfficiencyCap:     6,

	ContractDivisor: 4, // One point per 4 estimated contract interactions.
	ContractCap:     8,

	// --- Recency Multiplier ---
	RecencyFreshDays:         30,
	RecencyFreshMultiplier:   1.08,
	RecencyNormalDays:        90,
	RecencyNormalMultiplier:  1.00,
	RecencyStaleDays:         180,
	RecencyStaleMultiplier:   0.95,
	RecencyDormantMultiplier: 0.85,

	// --- Empty-History Fallback ---
	FallbackBalanceCoefficient: 12, // score = min(100, balance * 12) with no history.

	// --- Contract Sampling ---
	ContractProbeLimit: 20, // Bounded code probes; ratio extrapolated beyond this.

	// --- Loan Terms ---
	LoanLimitFactor:        0.5, // Borrow up to half the peak observed balance.
	MaxBaseInterestPct:     22,  // Annual rate at score 0.
	MinBaseInterestPct:     2,   // Floor at perfect score.
	InterestScoreDivisor:   5,   // One interest point of discount per 5 score points.
	OverLimitPenaltyScale:  5,   // Convex surcharge for requests above the limit.
	OverLimitPenaltyCapPct: 10,
	LongTermThresholdYears: 2,
	LongTermSurchargePct:   1.0,
	DefaultPaymentsPerYear: 12,
	MinRepayDays:           7,
	RepayDaysBase:          20,
}
