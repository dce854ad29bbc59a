// ./internal/state/proposal_store.go
package state

import (
	"fmt"
	"time"

	"github.com/creditlens/wcs/internal/types"
	"github.com/rs/zerolog/log"
)

// ProposalRow is one persisted signed proposal, as returned by
// GetRecentProposals. TxHash is empty when the proposal was packaged but
// never broadcast.
type ProposalRow struct {
	ProposalID int       `json:"proposal_id"`
	Borrower   string    `json:"borrower"`
	SignMethod string    `json:"sign_method"`
	TxHash     string    `json:"tx_hash,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// SaveProposalRecord records a packaged proposal. The payload column stores
// the exact signed bytes so the signature remains verifiable from the row.
func SaveProposalRecord(borrower string, pkg types.SignedProposal, txHash string) (int, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	var tx interface{}
	if txHash != "" {
		tx = txHash
	}

	var proposalID int
	err := DB.QueryRow(
		`INSERT INTO proposal_records (borrower, sign_method, payload, signature, tx_hash)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING proposal_id`,
		borrower, string(pkg.SignMethod), []byte(pkg.Payload), pkg.Signature, tx,
	).Scan(&proposalID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert proposal record: %w", err)
	}

	log.Debug().Int("proposal_id", proposalID).Str("borrower", borrower).
		Msg("Saved proposal record")
	return proposalID, nil
}

// MarkProposalPublished sets the broadcast transaction hash on an existing
// proposal record.
func MarkProposalPublished(proposalID int, txHash string) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	res, err := DB.Exec(
		`UPDATE proposal_records SET tx_hash = $1 WHERE proposal_id = $2`,
		txHash, proposalID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark proposal published: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("proposal record %d not found", proposalID)
	}
	return nil
}

// GetRecentProposals returns the most recent proposal records, newest first.
func GetRecentProposals(borrower string, limit int) ([]ProposalRow, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	query := `SELECT proposal_id, borrower, sign_method, COALESCE(tx_hash, ''), created_at
		 FROM proposal_records`
	args := []interface{}{}
	if borrower != "" {
		query += ` WHERE borrower = $1`
		args = append(args, borrower)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit)

	rows, err := DB.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query proposal records: %w", err)
	}
	defer rows.Close()

	var out []ProposalRow
	for rows.Next() {
		var r ProposalRow
		if err := rows.Scan(&r.ProposalID, &r.Borrower, &r.SignMethod, &r.TxHash, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan proposal record: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating proposal records: %w", err)
	}
	return out, nil
}
