/*

This file contains the bounded counterparty sampler that estimates how many of
a wallet's counterparties are smart contracts.

*/

package analyzer

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/creditlens/wcs/internal/logger"
)

var ErrAllProbesFailed = errors.New("every contract code probe failed")

var samplerLogger = logger.GetForComponent("contract_sampler")

// CodeProber reports whether code is deployed at an address.
type CodeProber interface {
	HasCode(ctx context.Context, address string) (bool, error)
}

// EstimateContractInteractions probes up to probeLimit counterparties for
// deployed code and returns an estimate of how many of the full set are
// contracts. When the set fits inside the probe budget and every probe
// succeeds the estimate is the exact count; otherwise the observed hit ratio
// is extrapolated over the whole set. Probes run sequentially; ordering does
// not affect the result.
//
// Individual probe failures are skipped (the ratio is taken over addresses
// that actually answered), but a run where no probe succeeds fails visibly.
func EstimateContractInteractions(ctx context.Context, prober CodeProber, counterparties []string, probeLimit int) (int, error) {
	if prober == nil {
		return 0, errors.New("code prober is required")
	}
	if probeLimit <= 0 {
		return 0, fmt.Errorf("probe limit must be positive, got %d", probeLimit)
	}
	if len(counterparties) == 0 {
		return 0, nil
	}

	limit := probeLimit
	if len(counterparties) < limit {
		limit = len(counterparties)
	}

	hits := 0
	answered := 0
	for _, addr := range counterparties[:limit] {
		isContract, err := prober.HasCode(ctx, addr)
		if err != nil {
			samplerLogger.Warn().
				Str("address", addr).
				Err(err).
				Msg("Code probe failed, skipping address")
			continue
		}
		answered++
		if isContract {
			hits++
		}
	}

	if answered == 0 {
		return 0, fmt.Errorf("%w: attempted %d", ErrAllProbesFailed, limit)
	}

	estimate := hits
	if len(counterparties) > limit || answered < limit {
		ratio := float64(hits) / float64(answered)
		estimate = int(math.Round(ratio * float64(len(counterparties))))
	}

	samplerLogger.Debug().
		Int("counterparties", len(counterparties)).
		Int("probed", limit).
		Int("answered", answered).
		Int("hits", hits).
		Int("estimate", estimate).
		Msg("Contract interaction estimate computed")

	return estimate, nil
}
