/*

This file contains the externally supplied chain records the analyzer consumes:
normal transactions from the explorer and the staking contract position.

*/

package types

import (
	"math/big"
	"time"
)

// TransactionRecord is a single normal transaction as reported by the explorer.
// Values are kept in wei as big integers; conversion to ETH happens at the
// metrics boundary. An empty To address means contract creation.
type TransactionRecord struct {
	From        string   `json:"from"`
	To          string   `json:"to"`
	ValueWei    *big.Int `json:"value_wei"`
	GasPriceWei *big.Int `json:"gas_price_wei"`
	Timestamp   int64    `json:"timestamp"` // unix seconds
}

// StakeSnapshot is the staking contract's recorded position for a wallet at
// analysis time. UnlockTime of zero means no active stake.
type StakeSnapshot struct {
	AmountWei  *big.Int `json:"amount_wei"`
	AmountEth  float64  `json:"amount_eth"`
	UnlockTime int64    `json:"unlock_time"`
}

// Active reports whether the snapshot represents a live stake.
func (s StakeSnapshot) Active() bool {
	return s.AmountWei != nil && s.AmountWei.Sign() > 0
}

// UnlockAt returns the unlock moment, or the zero time when no lock is set.
func (s StakeSnapshot) UnlockAt() time.Time {
	if s.UnlockTime <= 0 {
		return time.Time{}
	}
	return time.Unix(s.UnlockTime, 0).UTC()
}
