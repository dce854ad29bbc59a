/*

This file contains the loan proposal payload and the signed package built
around it. The payload schema is fixed and versioned: monetary fields are
exact decimal strings so that re-serialization reproduces the signed bytes.

*/

package types

import "encoding/json"

// ProposalSchemaVersion identifies the payload layout. Bump on any field
// addition, removal, or re-typing; verifiers reject unknown versions.
const ProposalSchemaVersion = 1

// ProposalPayload is the canonical, order-stable record a borrower signs.
// Field order is the serialization order; monetary quantities and the term
// are decimal strings, never floats.
type ProposalPayload struct {
	SchemaVersion   int    `json:"schemaVersion"`
	Borrower        string `json:"borrower"`
	RequestedAmount string `json:"requestedAmount"`
	Deposit         string `json:"deposit"`
	Principal       string `json:"principal"`
	TermYears       string `json:"termYears"`
	PaymentsPerYear int    `json:"paymentsPerYear"`
	PeriodCount     int    `json:"periodCount"`
	PeriodicPayment string `json:"periodicPayment"`
	TotalRepay      string `json:"totalRepay"`
	AnnualInterest  string `json:"annualInterest"`
	Score           int    `json:"score"`
	LoanPool        string `json:"loanPool"`
	Nonce           int64  `json:"nonce"` // ms timestamp, freshness only
}

// SignMethod records which signing path produced the signature.
type SignMethod string

const (
	// SignMethodPersonal is the primary method: an EIP-191 personal-sign over
	// the raw payload bytes.
	SignMethodPersonal SignMethod = "personal_sign"
	// SignMethodHash is the fallback: a signature over the keccak hash of the
	// same payload bytes.
	SignMethodHash SignMethod = "eth_sign"
)

// SignedProposal is the publishable package. Payload carries the exact bytes
// the signature was computed over; embedding them as raw JSON keeps the
// package serialization byte-stable with respect to the signed content.
type SignedProposal struct {
	Payload    json.RawMessage `json:"payload"`
	Signature  string          `json:"signature"`
	SignMethod SignMethod      `json:"sign_method"`
}

// DecodePayload re-parses the signed bytes into the structured payload.
func (p SignedProposal) DecodePayload() (ProposalPayload, error) {
	var out ProposalPayload
	err := json.Unmarshal(p.Payload, &out)
	return out, err
}
