/*

This file contains the single-pass reduction of a wallet's transaction history
into the metrics the score composer consumes.

*/

package analyzer

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/creditlens/wcs/internal/logger"
	"github.com/creditlens/wcs/internal/types"
	"github.com/creditlens/wcs/internal/utils"
)

var ErrEmptyHistory = errors.New("transaction history is empty")
var ErrMalformedRecord = errors.New("transaction record is malformed")

var metricsLogger = logger.GetForComponent("metrics_aggregator")

const (
	hoursPerDay  = 24.0
	daysPerYear  = 365.0
)

// CalculateWalletMetrics reduces an ordered transaction history into wallet
// metrics. The input is sorted ascending by timestamp before any time-based
// metric is computed; external providers are not trusted to deliver order.
// The second return value is the counterparty set in first-seen order, for
// the contract sampler.
//
// Inputs:
//   - account: the analyzed wallet address.
//   - txs: the wallet's transaction records (must be non-empty; the empty
//     history fallback is a separate path owned by the engine).
//   - currentBalanceEth: the wallet's current balance.
//   - now: the analysis instant, injected for deterministic age/recency.
func CalculateWalletMetrics(account string, txs []types.TransactionRecord, currentBalanceEth float64, now time.Time) (types.WalletMetrics, []string, error) {
	if len(txs) == 0 {
		return types.WalletMetrics{}, nil, ErrEmptyHistory
	}
	if account == "" {
		return types.WalletMetrics{}, nil, errors.New("account address cannot be empty")
	}
	if math.IsNaN(currentBalanceEth) || math.IsInf(currentBalanceEth, 0) || currentBalanceEth < 0 {
		return types.WalletMetrics{}, nil, errors.New("current balance must be a non-negative finite value")
	}

	sorted := make([]types.TransactionRecord, len(txs))
	copy(sorted, txs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp < sorted[j].Timestamp
	})

	var (
		inflow      float64
		outflow     float64
		totalVolume float64
		balanceWalk float64
		maxBalance  float64
		gasSumGwei  float64
		gasCount    int
	)

	seen := make(map[string]struct{})
	counterparties := make([]string, 0, len(sorted))

	for i, tx := range sorted {
		if tx.Timestamp <= 0 {
			return types.WalletMetrics{}, nil, fmt.Errorf("%w: record %d has invalid timestamp %d", ErrMalformedRecord, i, tx.Timestamp)
		}

		valEth, err := utils.WeiToEth(tx.ValueWei)
		if err != nil {
			return types.WalletMetrics{}, nil, fmt.Errorf("%w: record %d value: %w", ErrMalformedRecord, i, err)
		}

		totalVolume += math.Abs(valEth)

		if tx.To != "" && strings.EqualFold(tx.To, account) {
			inflow += valEth
			balanceWalk += valEth
		}
		if tx.From != "" && strings.EqualFold(tx.From, account) {
			outflow += valEth
			balanceWalk -= valEth
		}
		// The walk may go negative (history only covers this chain's normal
		// transactions); the peak never does.
		if balanceWalk > maxBalance {
			maxBalance = balanceWalk
		}

		if tx.GasPriceWei != nil {
			gasGwei, err := utils.WeiToGwei(tx.GasPriceWei)
			if err != nil {
				return types.WalletMetrics{}, nil, fmt.Errorf("%w: record %d gas price: %w", ErrMalformedRecord, i, err)
			}
			gasSumGwei += gasGwei
			gasCount++
		}

		for _, addr := range []string{tx.From, tx.To} {
			if addr == "" || strings.EqualFold(addr, account) {
				continue
			}
			key := strings.ToLower(addr)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			counterparties = append(counterparties, key)
		}
	}

	first := sorted[0].Timestamp
	last := sorted[len(sorted)-1].Timestamp

	ageYears := math.Max(0, now.Sub(time.Unix(first, 0)).Hours()/hoursPerDay/daysPerYear)
	lastActiveDaysAgo := math.Max(0, now.Sub(time.Unix(last, 0)).Hours()/hoursPerDay)

	avgGasGwei := 0.0
	if gasCount > 0 {
		avgGasGwei = gasSumGwei / float64(gasCount)
	}

	metrics := types.WalletMetrics{
		AgeYears:              ageYears,
		TxCount:               len(sorted),
		UniqueCounterparties:  len(counterparties),
		TotalVolumeEth:        totalVolume,
		InflowEth:             inflow,
		OutflowEth:            outflow,
		MaxObservedBalanceEth: maxBalance,
		CurrentBalanceEth:     currentBalanceEth,
		AvgGasGwei:            avgGasGwei,
		LastActiveDaysAgo:     lastActiveDaysAgo,
	}

	metricsLogger.Debug().
		Str("account", account).
		Int("txCount", metrics.TxCount).
		Int("counterparties", metrics.UniqueCounterparties).
		Float64("ageYears", metrics.AgeYears).
		Float64("totalVolumeEth", metrics.TotalVolumeEth).
		Float64("inflowEth", metrics.InflowEth).
		Float64("outflowEth", metrics.OutflowEth).
		Float64("maxObservedBalanceEth", metrics.MaxObservedBalanceEth).
		Float64("avgGasGwei", metrics.AvgGasGwei).
		Float64("lastActiveDaysAgo", metrics.LastActiveDaysAgo).
		Msg("Wallet metrics aggregated")

	return metrics, counterparties, nil
}
