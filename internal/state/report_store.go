// ./internal/state/report_store.go
package state

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/creditlens/wcs/internal/types"
	"github.com/rs/zerolog/log"
)

// ReportRow is one persisted analysis run, as returned by GetRecentReports.
type ReportRow struct {
	SnapshotID   int       `json:"snapshot_id"`
	Address      string    `json:"address"`
	Fallback     bool      `json:"fallback"`
	Score        int       `json:"score"`
	LoanLimitEth float64   `json:"loan_limit_eth"`
	GeneratedAt  time.Time `json:"generated_at"`
}

// SaveReportSnapshot records a completed credit report for auditing. The
// breakdown, metrics and stake are stored as JSONB so parameter changes never
// require a migration.
func SaveReportSnapshot(report types.CreditReport) (int, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	breakdown, err := json.Marshal(report.Score)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal score breakdown: %w", err)
	}

	var metricsBlob, stakeBlob []byte
	if report.Metrics != nil {
		metricsBlob, err = json.Marshal(report.Metrics)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal wallet metrics: %w", err)
		}
	}
	if report.Stake != nil {
		stakeBlob, err = json.Marshal(report.Stake)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal stake snapshot: %w", err)
		}
	}

	var snapshotID int
	err = DB.QueryRow(
		`INSERT INTO report_snapshots
			(wallet_address, fallback, score, score_breakdown, metrics, stake, loan_limit_eth, generated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING snapshot_id`,
		report.Address, report.Fallback, report.Score.Value, breakdown,
		nullableBlob(metricsBlob), nullableBlob(stakeBlob),
		report.LoanLimitEth, report.GeneratedAt,
	).Scan(&snapshotID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert report snapshot: %w", err)
	}

	log.Debug().Int("snapshot_id", snapshotID).Str("wallet", report.Address).
		Msg("Saved report snapshot")
	return snapshotID, nil
}

// GetRecentReports returns the most recent persisted reports, newest first.
// When address is non-empty the result is filtered to that wallet.
func GetRecentReports(address string, limit int) ([]ReportRow, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	query := `SELECT snapshot_id, wallet_address, fallback, score, loan_limit_eth, generated_at
		 FROM report_snapshots`
	args := []interface{}{}
	if address != "" {
		query += ` WHERE wallet_address = $1`
		args = append(args, address)
	}
	query += fmt.Sprintf(` ORDER BY generated_at DESC LIMIT %d`, limit)

	rows, err := DB.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query report snapshots: %w", err)
	}
	defer rows.Close()

	var out []ReportRow
	for rows.Next() {
		var r ReportRow
		if err := rows.Scan(&r.SnapshotID, &r.Address, &r.Fallback, &r.Score, &r.LoanLimitEth, &r.GeneratedAt); err != nil {
			return nil, fmt.Errorf("failed to scan report snapshot: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating report snapshots: %w", err)
	}
	return out, nil
}

func nullableBlob(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return b
}
