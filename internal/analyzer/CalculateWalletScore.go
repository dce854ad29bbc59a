/*

This file contains the main function for composing a wallet's credit score.

*/

package analyzer

import (
	"errors"
	"fmt"
	"math"

	"github.com/creditlens/wcs/internal/logger"
	"github.com/creditlens/wcs/internal/types"
)

var ErrInvalidMetrics = errors.New("invalid wallet metrics")
var ErrInvalidScoringParameters = errors.New("invalid scoring parameters")

var scoreLogger = logger.GetForComponent("wallet_scorer")

// CalculateWalletScore composes the nine-factor credit score from aggregated
// wallet metrics. This is the non-empty-history path only: a wallet with no
// transactions gets CalculateFallbackScore instead.
//
// Each factor is a capped linear function of one metric; the raw sum is then
// scaled by the recency multiplier and clamped to [0,100]. Stake data is
// deliberately not an input: staking is reported alongside the score, not
// rewarded by it.
//
// Inputs:
//   - metrics: the aggregated wallet metrics for this analysis run.
//   - params: coefficients, caps, and recency thresholds.
//
// Output:
//   - A ScoreResult with the clamped value and per-factor contributions.
//   - An error if validation fails or a computation is not finite.
func CalculateWalletScore(metrics types.WalletMetrics, params types.ScoringParameters) (types.ScoreResult, error) {
	if err := ValidateWalletMetrics(metrics); err != nil {
		scoreLogger.Error().Err(err).Msg("Wallet metrics validation failed")
		return types.ScoreResult{}, errors.Join(ErrInvalidMetrics, err)
	}
	if err := ValidateScoringParameters(params); err != nil {
		scoreLogger.Error().Err(err).Msg("Scoring parameters validation failed")
		return types.ScoreResult{}, errors.Join(ErrInvalidScoringParameters, err)
	}

	components := types.ScoreComponents{
		Age:                   cappedContribution(metrics.AgeYears*params.AgeCoefficient, params.AgeCap),
		TxCount:               cappedContribution(float64(metrics.TxCount)/params.TxCountDivisor, params.TxCountCap),
		CounterpartyDiversity: cappedContribution(float64(metrics.UniqueCounterparties)/params.CounterpartyDivisor, params.CounterpartyCap),
		TotalVolume:           cappedContribution(metrics.TotalVolumeEth/params.VolumeDivisor, params.VolumeCap),
		FlowRatio:             cappedContribution(flowRatio(metrics.InflowEth, metrics.OutflowEth)*params.FlowRatioCoefficient, params.FlowRatioCap),
		PeakBalance:           cappedContribution(metrics.MaxObservedBalanceEth/params.PeakBalanceDivisor, params.PeakBalanceCap),
		CurrentBalance:        cappedContribution(metrics.CurrentBalanceEth/params.CurrentBalanceDivisor, params.CurrentBalanceCap),
		GasEfficiency:         cappedContribution(gasEfficiencyFactor(metrics.AvgGasGwei)/params.GasEfficiencyDivisor, params.GasEfficiencyCap),
		ContractInteractions:  cappedContribution(float64(metrics.ContractInteractionsEstimate)/params.ContractDivisor, params.ContractCap),
	}

	rawSum := components.Age + components.TxCount + components.CounterpartyDiversity +
		components.TotalVolume + components.FlowRatio + components.PeakBalance +
		components.CurrentBalance + components.GasEfficiency + components.ContractInteractions

	if math.IsNaN(rawSum) || math.IsInf(rawSum, 0) {
		scoreLogger.Error().Float64("rawSum", rawSum).Msg("Factor sum is not finite")
		return types.ScoreResult{}, errors.New("factor sum calculation resulted in NaN or Inf")
	}

	multiplier := recencyMultiplier(metrics.LastActiveDaysAgo, params)
	scaled := rawSum * multiplier
	clamped := math.Max(0, math.Min(100, scaled))

	result := types.ScoreResult{
		Value:             int(math.Round(clamped)),
		Components:        components,
		RawSum:            rawSum,
		RecencyMultiplier: multiplier,
	}

	scoreLogger.Debug().
		Float64("rawSum", rawSum).
		Float64("recencyMultiplier", multiplier).
		Float64("clamped", clamped).
		Int("value", result.Value).
		Msg("Wallet score composed")

	return result, nil
}

// CalculateFallbackScore produces the balance-only score for wallets with no
// transaction history. This is a distinct path with its own coefficient and
// cap semantics, not the nine-factor formula fed with zeros.
func CalculateFallbackScore(balanceEth float64, params types.ScoringParameters) (types.ScoreResult, error) {
	if math.IsNaN(balanceEth) || math.IsInf(balanceEth, 0) || balanceEth < 0 {
		return types.ScoreResult{}, errors.New("balance must be a non-negative finite value")
	}
	if params.FallbackBalanceCoefficient <= 0 {
		return types.ScoreResult{}, errors.Join(ErrInvalidScoringParameters, errors.New("FallbackBalanceCoefficient must be positive"))
	}

	raw := math.Min(100, balanceEth*params.FallbackBalanceCoefficient)
	result := types.ScoreResult{
		Value:             int(math.Round(raw)),
		RawSum:            raw,
		RecencyMultiplier: 1,
	}

	scoreLogger.Debug().
		Float64("balanceEth", balanceEth).
		Int("value", result.Value).
		Msg("Fallback balance-only score computed")

	return result, nil
}

// cappedContribution clamps a raw factor value to [0, cap].
func cappedContribution(raw, cap float64) float64 {
	if raw < 0 {
		return 0
	}
	return math.Min(raw, cap)
}

// flowRatio rewards net depositors. With no inflow the ratio is zero; with
// inflow and no outflow the inflow itself is used (the cap handles large
// values); otherwise the plain inflow/outflow quotient.
func flowRatio(inflow, outflow float64) float64 {
	switch {
	case inflow == 0:
		return 0
	case outflow == 0:
		return inflow
	default:
		return inflow / outflow
	}
}

// gasEfficiencyFactor maps average gas price to a raw efficiency factor. A
// wallet with no priced transactions gets the neutral factor 1.
func gasEfficiencyFactor(avgGasGwei float64) float64 {
	if avgGasGwei == 0 {
		return 1
	}
	return math.Max(0, 100/(avgGasGwei+1))
}

// recencyMultiplier selects the activity multiplier for days since the last
// recorded transaction.
func recencyMultiplier(lastActiveDaysAgo float64, params types.ScoringParameters) float64 {
	switch {
	case lastActiveDaysAgo <= params.RecencyFreshDays:
		return params.RecencyFreshMultiplier
	case lastActiveDaysAgo <= params.RecencyNormalDays:
		return params.RecencyNormalMultiplier
	case lastActiveDaysAgo <= params.RecencyStaleDays:
		return params.RecencyStaleMultiplier
	default:
		return params.RecencyDormantMultiplier
	}
}

// ValidateWalletMetrics checks that every metric is present, finite, and
// non-negative before scoring.
func ValidateWalletMetrics(m types.WalletMetrics) error {
	fields := []struct {
		value float64
		name  string
	}{
		{m.AgeYears, "AgeYears"},
		{m.TotalVolumeEth, "TotalVolumeEth"},
		{m.InflowEth, "InflowEth"},
		{m.OutflowEth, "OutflowEth"},
		{m.MaxObservedBalanceEth, "MaxObservedBalanceEth"},
		{m.CurrentBalanceEth, "CurrentBalanceEth"},
		{m.AvgGasGwei, "AvgGasGwei"},
		{m.LastActiveDaysAgo, "LastActiveDaysAgo"},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return fmt.Errorf("%s must be finite", f.name)
		}
		if f.value < 0 {
			return fmt.Errorf("%s cannot be negative", f.name)
		}
	}
	if m.TxCount < 0 {
		return errors.New("TxCount cannot be negative")
	}
	if m.TxCount == 0 {
		return errors.New("TxCount is zero; empty histories take the fallback path")
	}
	if m.UniqueCounterparties < 0 {
		return errors.New("UniqueCounterparties cannot be negative")
	}
	if m.ContractInteractionsEstimate < 0 {
		return errors.New("ContractInteractionsEstimate cannot be negative")
	}
	return nil
}

// ValidateScoringParameters checks the factor coefficients, caps, and recency
// settings are usable.
func ValidateScoringParameters(p types.ScoringParameters) error {
	positives := []struct {
		value float64
		name  string
	}{
		{p.AgeCoefficient, "AgeCoefficient"},
		{p.AgeCap, "AgeCap"},
		{p.TxCountDivisor, "TxCountDivisor"},
		{p.TxCountCap, "TxCountCap"},
		{p.CounterpartyDivisor, "CounterpartyDivisor"},
		{p.CounterpartyCap, "CounterpartyCap"},
		{p.VolumeDivisor, "VolumeDivisor"},
		{p.VolumeCap, "VolumeCap"},
		{p.FlowRatioCoefficient, "FlowRatioCoefficient"},
		{p.FlowRatioCap, "FlowRatioCap"},
		{p.PeakBalanceDivisor, "PeakBalanceDivisor"},
		{p.PeakBalanceCap, "PeakBalanceCap"},
		{p.CurrentBalanceDivisor, "CurrentBalanceDivisor"},
		{p.CurrentBalanceCap, "CurrentBalanceCap"},
		{p.GasEfficiencyDivisor, "GasEfficiencyDivisor"},
		{p.GasEfficiencyCap, "GasEfficiencyCap"},
		{p.ContractDivisor, "ContractDivisor"},
		{p.ContractCap, "ContractCap"},
		{p.RecencyFreshDays, "RecencyFreshDays"},
		{p.RecencyFreshMultiplier, "RecencyFreshMultiplier"},
		{p.RecencyNormalDays, "RecencyNormalDays"},
		{p.RecencyNormalMultiplier, "RecencyNormalMultiplier"},
		{p.RecencyStaleDays, "RecencyStaleDays"},
		{p.RecencyStaleMultiplier, "RecencyStaleMultiplier"},
		{p.RecencyDormantMultiplier, "RecencyDormantMultiplier"},
	}
	for _, f := range positives {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return fmt.Errorf("%s must be finite", f.name)
		}
		if f.value <= 0 {
			return fmt.Errorf("%s must be positive", f.name)
		}
	}
	if p.RecencyFreshDays >= p.RecencyNormalDays || p.RecencyNormalDays >= p.RecencyStaleDays {
		return errors.New("recency day thresholds must be strictly ascending")
	}
	return nil
}
