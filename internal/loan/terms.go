/*

This file contains the loan term calculator: the derivation of interest, loan
limit, and an amortized repayment schedule from a credit score snapshot and a
user request.

*/

package loan

import (
	"errors"
	"fmt"
	"math"

	"github.com/creditlens/wcs/internal/logger"
	"github.com/creditlens/wcs/internal/types"
)

var ErrInvalidInput = errors.New("invalid loan input")

var loanLogger = logger.GetForComponent("loan_calculator")

// minLimitEpsilon guards the over-limit penalty division when the loan limit
// is effectively zero.
const minLimitEpsilon = 0.0001

// LoanLimit derives the collateral-based borrowing cap from the wallet's peak
// observed balance.
func LoanLimit(maxObservedBalanceEth float64, params types.ScoringParameters) float64 {
	limit := maxObservedBalanceEth * params.LoanLimitFactor
	if limit < 0 || math.IsNaN(limit) {
		return 0
	}
	return limit
}

// BaseInterestPct maps a credit score to the base annual interest rate: the
// maximum rate discounted by score, floored at the minimum rate.
func BaseInterestPct(score int, params types.ScoringParameters) float64 {
	return math.Max(params.MinBaseInterestPct, params.MaxBaseInterestPct-float64(score)/params.InterestScoreDivisor)
}

// SuggestedRepayDays estimates a repayment window for limit-only hints: a
// fixed base plus one day per missing score point, floored.
func SuggestedRepayDays(score int, params types.ScoringParameters) int {
	days := int(math.Round(float64(params.RepayDaysBase) + float64(100-score)))
	if days < params.MinRepayDays {
		return params.MinRepayDays
	}
	return days
}

// Quote converts a loan request plus the current score and loan limit into
// either a limit-only hint (when the request carries no usable amount or
// term) or a fully amortized preview. The score/limit inputs come straight
// from a CreditReport; the calculator never re-derives them from rendered
// output.
func Quote(req types.LoanRequest, score int, loanLimitEth float64, params types.ScoringParameters) (types.LoanQuote, error) {
	if err := validateRequest(req, score, loanLimitEth); err != nil {
		return types.LoanQuote{}, err
	}

	frequency := req.PaymentsPerYear
	if frequency == 0 {
		frequency = params.DefaultPaymentsPerYear
	}

	baseInterest := BaseInterestPct(score, params)

	// Insufficient input: a distinct limit-only result, never a zeroed
	// schedule.
	if req.AmountEth <= 0 || req.TermYears == 0 {
		hint := types.LoanHint{
			LoanLimitEth:       loanLimitEth,
			BaseInterestPct:    baseInterest,
			SuggestedRepayDays: SuggestedRepayDays(score, params),
		}
		return types.LoanQuote{Hint: &hint}, nil
	}

	principal := math.Max(0, req.AmountEth-req.DepositEth)

	adjustedInterest := baseInterest
	if req.AmountEth > loanLimitEth {
		overshoot := (req.AmountEth - loanLimitEth) / math.Max(minLimitEpsilon, loanLimitEth)
		adjustedInterest += math.Min(params.OverLimitPenaltyCapPct, overshoot*params.OverLimitPenaltyScale)
	}
	if req.TermYears > params.LongTermThresholdYears {
		adjustedInterest += params.LongTermSurchargePct
	}

	periodCount := int(math.Round(req.TermYears * float64(frequency)))
	if periodCount < 1 {
		periodCount = 1
	}
	periodicRate := adjustedInterest / 100 / float64(frequency)

	var payment float64
	if periodicRate == 0 {
		payment = principal / float64(periodCount)
	} else {
		payment = principal * periodicRate / (1 - math.Pow(1+periodicRate, float64(-periodCount)))
	}
	if math.IsNaN(payment) || math.IsInf(payment, 0) {
		return types.LoanQuote{}, errors.New("periodic payment calculation resulted in NaN or Inf")
	}

	preview := types.LoanPreview{
		RequestedAmountEth:        req.AmountEth,
		DepositEth:                req.DepositEth,
		PrincipalEth:              principal,
		TermYears:                 req.TermYears,
		PaymentsPerYear:           frequency,
		PeriodCount:               periodCount,
		PeriodicPaymentEth:        payment,
		AdjustedAnnualInterestPct: adjustedInterest,
		TotalRepayEth:             payment * float64(periodCount),
		LoanLimitEth:              loanLimitEth,
	}

	loanLogger.Debug().
		Float64("amountEth", req.AmountEth).
		Float64("principalEth", principal).
		Float64("adjustedInterestPct", adjustedInterest).
		Int("periodCount", periodCount).
		Float64("periodicPaymentEth", payment).
		Float64("totalRepayEth", preview.TotalRepayEth).
		Msg("Loan preview computed")

	return types.LoanQuote{Preview: &preview}, nil
}

// validateRequest refuses malformed input with a specific message rather than
// defaulting anything to zero.
func validateRequest(req types.LoanRequest, score int, loanLimitEth float64) error {
	fields := []struct {
		value float64
		name  string
	}{
		{req.AmountEth, "amount"},
		{req.DepositEth, "deposit"},
		{req.TermYears, "term"},
		{loanLimitEth, "loan limit"},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return fmt.Errorf("%w: %s must be finite", ErrInvalidInput, f.name)
		}
	}
	if req.DepositEth < 0 {
		return fmt.Errorf("%w: deposit cannot be negative", ErrInvalidInput)
	}
	if req.TermYears < 0 {
		return fmt.Errorf("%w: term cannot be negative", ErrInvalidInput)
	}
	if req.PaymentsPerYear < 0 {
		return fmt.Errorf("%w: payment frequency cannot be negative", ErrInvalidInput)
	}
	if score < 0 || score > 100 {
		return fmt.Errorf("%w: score %d outside [0,100]", ErrInvalidInput, score)
	}
	if loanLimitEth < 0 {
		return fmt.Errorf("%w: loan limit cannot be negative", ErrInvalidInput)
	}
	return nil
}
