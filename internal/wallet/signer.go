/*

This file contains the local secp256k1 signer used for loan proposals. The
primary method is an EIP-191 personal-sign over the raw payload bytes; the
fallback signs the keccak hash of the same bytes.

*/

package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/creditlens/wcs/internal/logger"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidKey       = errors.New("signer private key is invalid")
	ErrSigningFailed    = errors.New("message signing failed")
	ErrInvalidSignature = errors.New("signature is malformed")
)

var signerLogger = logger.GetForComponent("signer")

// KeySigner signs messages with an in-process secp256k1 key.
type KeySigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewKeySigner parses a hex-encoded private key (with or without 0x prefix).
func NewKeySigner(hexKey string) (*KeySigner, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if trimmed == "" {
		return nil, fmt.Errorf("%w: key is empty", ErrInvalidKey)
	}
	key, err := crypto.HexToECDSA(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	signer := &KeySigner{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}
	signerLogger.Info().Str("address", signer.address.Hex()).Msg("Signer initialized")
	return signer, nil
}

// Address returns the signer's account address.
func (s *KeySigner) Address() common.Address {
	return s.address
}

// SignText signs msg with the EIP-191 personal-message prefix. The returned
// signature uses the conventional 27/28 recovery id.
func (s *KeySigner) SignText(ctx context.Context, msg []byte) ([]byte, error) {
	return s.sign(accounts.TextHash(msg))
}

// SignHash signs the keccak hash of msg without any prefix, matching the
// legacy eth_sign fallback.
func (s *KeySigner) SignHash(ctx context.Context, msg []byte) ([]byte, error) {
	return s.sign(crypto.Keccak256(msg))
}

func (s *KeySigner) sign(digest []byte) ([]byte, error) {
	sig, err := crypto.Sign(digest, s.key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSigningFailed, err)
	}
	// crypto.Sign yields a 0/1 recovery id; wallets traditionally emit 27/28.
	sig[64] += 27
	return sig, nil
}

// RecoverTextSigner recovers the address that personal-signed msg.
func RecoverTextSigner(msg, sig []byte) (common.Address, error) {
	return recoverAddress(accounts.TextHash(msg), sig)
}

// RecoverHashSigner recovers the address that signed the keccak hash of msg.
func RecoverHashSigner(msg, sig []byte) (common.Address, error) {
	return recoverAddress(crypto.Keccak256(msg), sig)
}

func recoverAddress(digest, sig []byte) (common.Address, error) {
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("%w: length %d", ErrInvalidSignature, len(sig))
	}
	normalized := make([]byte, len(sig))
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}
	pub, err := crypto.SigToPub(digest, normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}
