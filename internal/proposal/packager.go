/*

This file contains the proposal packager: it freezes a loan preview into the
canonical signable payload, obtains an off-chain signature over those exact
bytes, and produces the publishable package.

*/

package proposal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/creditlens/wcs/internal/logger"
	"github.com/creditlens/wcs/internal/types"
	"github.com/creditlens/wcs/internal/utils"
	"github.com/creditlens/wcs/internal/wallet"
)

var (
	ErrInvalidProposalInput = errors.New("invalid proposal input")
	ErrSigningUnavailable   = errors.New("all signing methods failed")
	ErrSignatureMismatch    = errors.New("signature does not match payload")
)

var packagerLogger = logger.GetForComponent("proposal_packager")

// Signer provides the two off-chain signing methods. The primary signs the
// raw message with the personal-sign prefix; the fallback signs its hash.
type Signer interface {
	SignText(ctx context.Context, msg []byte) ([]byte, error)
	SignHash(ctx context.Context, msg []byte) ([]byte, error)
}

// BuildPayload freezes a loan preview into the versioned payload schema.
// Monetary fields and the term are rendered as exact decimal strings so the
// serialized bytes are reproducible; nonce is a millisecond timestamp
// supplied by the caller (uniqueness only, not a security nonce).
func BuildPayload(preview types.LoanPreview, borrower string, score int, loanPool string, nonce int64) (types.ProposalPayload, error) {
	if !common.IsHexAddress(borrower) {
		return types.ProposalPayload{}, fmt.Errorf("%w: borrower %q is not a valid address", ErrInvalidProposalInput, borrower)
	}
	if !common.IsHexAddress(loanPool) {
		return types.ProposalPayload{}, fmt.Errorf("%w: loan pool %q is not a valid address", ErrInvalidProposalInput, loanPool)
	}
	if score < 0 || score > 100 {
		return types.ProposalPayload{}, fmt.Errorf("%w: score %d outside [0,100]", ErrInvalidProposalInput, score)
	}
	if preview.PeriodCount < 1 {
		return types.ProposalPayload{}, fmt.Errorf("%w: period count must be at least 1", ErrInvalidProposalInput)
	}

	var convErr error
	dec := func(value float64, name string) string {
		s, err := utils.FormatDecimal(value)
		if err != nil && convErr == nil {
			convErr = fmt.Errorf("%w: %s: %w", ErrInvalidProposalInput, name, err)
		}
		return s
	}

	payload := types.ProposalPayload{
		SchemaVersion:   types.ProposalSchemaVersion,
		Borrower:        common.HexToAddress(borrower).Hex(),
		RequestedAmount: dec(preview.RequestedAmountEth, "requested amount"),
		Deposit:         dec(preview.DepositEth, "deposit"),
		Principal:       dec(preview.PrincipalEth, "principal"),
		TermYears:       dec(preview.TermYears, "term"),
		PaymentsPerYear: preview.PaymentsPerYear,
		PeriodCount:     preview.PeriodCount,
		PeriodicPayment: dec(preview.PeriodicPaymentEth, "periodic payment"),
		TotalRepay:      dec(preview.TotalRepayEth, "total repay"),
		AnnualInterest:  dec(preview.AdjustedAnnualInterestPct, "annual interest"),
		Score:           score,
		LoanPool:        common.HexToAddress(loanPool).Hex(),
		Nonce:           nonce,
	}
	if convErr != nil {
		return types.ProposalPayload{}, convErr
	}

	return payload, nil
}

// Package serializes the payload once and signs those exact bytes: the
// personal-sign method first, then exactly one fallback over the hash of the
// same bytes. The signed bytes are embedded verbatim in the package so any
// later re-serialization reproduces them.
func Package(ctx context.Context, signer Signer, payload types.ProposalPayload) (types.SignedProposal, error) {
	if signer == nil {
		return types.SignedProposal{}, errors.New("signer is required")
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return types.SignedProposal{}, fmt.Errorf("failed to serialize proposal payload: %w", err)
	}

	method := types.SignMethodPersonal
	sig, primaryErr := signer.SignText(ctx, raw)
	if primaryErr != nil {
		packagerLogger.Warn().Err(primaryErr).Msg("Primary signing method failed, attempting hash fallback")
		method = types.SignMethodHash
		var fallbackErr error
		sig, fallbackErr = signer.SignHash(ctx, raw)
		if fallbackErr != nil {
			return types.SignedProposal{}, errors.Join(ErrSigningUnavailable, primaryErr, fallbackErr)
		}
	}

	pkg := types.SignedProposal{
		Payload:    json.RawMessage(raw),
		Signature:  hexutil.Encode(sig),
		SignMethod: method,
	}

	packagerLogger.Info().
		Str("method", string(method)).
		Int("payloadBytes", len(raw)).
		Msg("Loan proposal packaged and signed")

	return pkg, nil
}

// HexData renders the package as the hex-encoded transaction data used for
// on-chain publication. The package is marshaled compactly; the embedded
// payload bytes pass through unchanged.
func HexData(pkg types.SignedProposal) (string, error) {
	raw, err := json.Marshal(pkg)
	if err != nil {
		return "", fmt.Errorf("failed to serialize proposal package: %w", err)
	}
	return hexutil.Encode(raw), nil
}

// Verify recovers the signer from the package and checks it matches the
// borrower recorded inside the signed payload.
func Verify(pkg types.SignedProposal) error {
	payload, err := pkg.DecodePayload()
	if err != nil {
		return fmt.Errorf("%w: payload does not parse: %w", ErrSignatureMismatch, err)
	}

	sig, err := hexutil.Decode(pkg.Signature)
	if err != nil {
		return fmt.Errorf("%w: signature does not parse: %w", ErrSignatureMismatch, err)
	}

	var recovered common.Address
	switch pkg.SignMethod {
	case types.SignMethodPersonal:
		recovered, err = wallet.RecoverTextSigner(pkg.Payload, sig)
	case types.SignMethodHash:
		recovered, err = wallet.RecoverHashSigner(pkg.Payload, sig)
	default:
		return fmt.Errorf("%w: unknown sign method %q", ErrSignatureMismatch, pkg.SignMethod)
	}
	if err != nil {
		return errors.Join(ErrSignatureMismatch, err)
	}

	if recovered != common.HexToAddress(payload.Borrower) {
		return fmt.Errorf("%w: recovered %s, payload borrower %s", ErrSignatureMismatch, recovered.Hex(), payload.Borrower)
	}
	return nil
}
