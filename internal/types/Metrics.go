/*

This is a custom type for wallet metrics which contains all the state needed
for scoring a wallet. It is derived once per analysis run and never mutated.

*/

package types

// WalletMetrics is the reduction of a wallet's transaction history into the
// statistics the score composer consumes. All monetary fields are in ETH.
type WalletMetrics struct {
	AgeYears                     float64 `json:"age_years"`
	TxCount                      int     `json:"tx_count"`
	UniqueCounterparties         int     `json:"unique_counterparties"`
	TotalVolumeEth               float64 `json:"total_volume_eth"`
	InflowEth                    float64 `json:"inflow_eth"`
	OutflowEth                   float64 `json:"outflow_eth"`
	MaxObservedBalanceEth        float64 `json:"max_observed_balance_eth"` // peak of the running balance walk, floor 0
	CurrentBalanceEth            float64 `json:"current_balance_eth"`
	AvgGasGwei                   float64 `json:"avg_gas_gwei"`
	ContractInteractionsEstimate int     `json:"contract_interactions_estimate"`
	LastActiveDaysAgo            float64 `json:"last_active_days_ago"`
}
