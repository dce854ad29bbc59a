package proposal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/creditlens/wcs/internal/types"
	"github.com/creditlens/wcs/internal/wallet"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Well-known throwaway development key; its address plays the borrower.
const testKeyHex = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
const borrowerAddr = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
const loanPoolAddr = "0x5FbDB2315678afecb367f032d93F642f64180aa3"

func samplePreview() types.LoanPreview {
	return types.LoanPreview{
		RequestedAmountEth:        2,
		DepositEth:                0.5,
		PrincipalEth:              1.5,
		TermYears:                 1,
		PaymentsPerYear:           12,
		PeriodCount:               12,
		PeriodicPaymentEth:        0.13,
		AdjustedAnnualInterestPct: 12.5,
		TotalRepayEth:             1.56,
		LoanLimitEth:              3,
	}
}

func testSigner(t *testing.T) *wallet.KeySigner {
	t.Helper()
	signer, err := wallet.NewKeySigner(testKeyHex)
	require.NoError(t, err)
	return signer
}

func TestBuildPayloadRendersDecimalStrings(t *testing.T) {
	payload, err := BuildPayload(samplePreview(), borrowerAddr, 64, loanPoolAddr, 1_700_000_000_000)
	require.NoError(t, err)

	assert.Equal(t, types.ProposalSchemaVersion, payload.SchemaVersion)
	assert.Equal(t, borrowerAddr, payload.Borrower)
	assert.Equal(t, "2", payload.RequestedAmount)
	assert.Equal(t, "0.5", payload.Deposit)
	assert.Equal(t, "1.5", payload.Principal)
	assert.Equal(t, "1", payload.TermYears)
	assert.Equal(t, "0.13", payload.PeriodicPayment)
	assert.Equal(t, "1.56", payload.TotalRepay)
	assert.Equal(t, "12.5", payload.AnnualInterest)
	assert.Equal(t, 64, payload.Score)
	assert.Equal(t, int64(1_700_000_000_000), payload.Nonce)
}

func TestBuildPayloadMarshalIsByteStable(t *testing.T) {
	payload, err := BuildPayload(samplePreview(), borrowerAddr, 64, loanPoolAddr, 42)
	require.NoError(t, err)

	first, err := json.Marshal(payload)
	require.NoError(t, err)
	second, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(first, second))

	// Field names serialize in the fixed schema order.
	assert.True(t, strings.HasPrefix(string(first), `{"schemaVersion":1,"borrower":`))
}

func TestBuildPayloadNonceChangesBytes(t *testing.T) {
	a, err := BuildPayload(samplePreview(), borrowerAddr, 64, loanPoolAddr, 1)
	require.NoError(t, err)
	b, err := BuildPayload(samplePreview(), borrowerAddr, 64, loanPoolAddr, 2)
	require.NoError(t, err)

	rawA, _ := json.Marshal(a)
	rawB, _ := json.Marshal(b)
	assert.False(t, bytes.Equal(rawA, rawB))
}

func TestBuildPayloadRejectsInvalidInput(t *testing.T) {
	_, err := BuildPayload(samplePreview(), "not-an-address", 64, loanPoolAddr, 1)
	assert.ErrorIs(t, err, ErrInvalidProposalInput)

	_, err = BuildPayload(samplePreview(), borrowerAddr, 64, "nope", 1)
	assert.ErrorIs(t, err, ErrInvalidProposalInput)

	_, err = BuildPayload(samplePreview(), borrowerAddr, 101, loanPoolAddr, 1)
	assert.ErrorIs(t, err, ErrInvalidProposalInput)

	zeroPeriods := samplePreview()
	zeroPeriods.PeriodCount = 0
	_, err = BuildPayload(zeroPeriods, borrowerAddr, 64, loanPoolAddr, 1)
	assert.ErrorIs(t, err, ErrInvalidProposalInput)
}

func TestPackageSignsWithPersonalMethod(t *testing.T) {
	payload, err := BuildPayload(samplePreview(), borrowerAddr, 64, loanPoolAddr, 7)
	require.NoError(t, err)

	pkg, err := Package(context.Background(), testSigner(t), payload)
	require.NoError(t, err)
	assert.Equal(t, types.SignMethodPersonal, pkg.SignMethod)

	require.NoError(t, Verify(pkg))

	decoded, err := pkg.DecodePayload()
	require.NoError(t, err)
	assert.Equal(t, payload, decoded)
}

func TestPackageSerializationPreservesSignedBytes(t *testing.T) {
	payload, err := BuildPayload(samplePreview(), borrowerAddr, 64, loanPoolAddr, 7)
	require.NoError(t, err)

	pkg, err := Package(context.Background(), testSigner(t), payload)
	require.NoError(t, err)

	// A round trip through the package's own JSON form must not disturb the
	// payload bytes the signature covers.
	raw, err := json.Marshal(pkg)
	require.NoError(t, err)
	var restored types.SignedProposal
	require.NoError(t, json.Unmarshal(raw, &restored))

	assert.True(t, bytes.Equal(pkg.Payload, restored.Payload))
	require.NoError(t, Verify(restored))
}

type fallbackOnlySigner struct {
	inner *wallet.KeySigner
}

func (s fallbackOnlySigner) SignText(ctx context.Context, msg []byte) ([]byte, error) {
	return nil, errors.New("personal_sign unsupported")
}

func (s fallbackOnlySigner) SignHash(ctx context.Context, msg []byte) ([]byte, error) {
	return s.inner.SignHash(ctx, msg)
}

type brokenSigner struct{}

func (brokenSigner) SignText(ctx context.Context, msg []byte) ([]byte, error) {
	return nil, errors.New("personal_sign unsupported")
}

func (brokenSigner) SignHash(ctx context.Context, msg []byte) ([]byte, error) {
	return nil, errors.New("eth_sign unsupported")
}

func TestPackageFallsBackToHashSigning(t *testing.T) {
	payload, err := BuildPayload(samplePreview(), borrowerAddr, 64, loanPoolAddr, 7)
	require.NoError(t, err)

	pkg, err := Package(context.Background(), fallbackOnlySigner{inner: testSigner(t)}, payload)
	require.NoError(t, err)
	assert.Equal(t, types.SignMethodHash, pkg.SignMethod)
	require.NoError(t, Verify(pkg))
}

func TestPackageFailsWhenAllMethodsFail(t *testing.T) {
	payload, err := BuildPayload(samplePreview(), borrowerAddr, 64, loanPoolAddr, 7)
	require.NoError(t, err)

	_, err = Package(context.Background(), brokenSigner{}, payload)
	assert.ErrorIs(t, err, ErrSigningUnavailable)
}

func TestVerifyRejectsTamperedPayload(t *testing.T) {
	payload, err := BuildPayload(samplePreview(), borrowerAddr, 64, loanPoolAddr, 7)
	require.NoError(t, err)

	pkg, err := Package(context.Background(), testSigner(t), payload)
	require.NoError(t, err)

	tampered := pkg
	tampered.Payload = json.RawMessage(strings.Replace(string(pkg.Payload), `"score":64`, `"score":99`, 1))
	assert.ErrorIs(t, Verify(tampered), ErrSignatureMismatch)
}

func TestVerifyRejectsReserializedPayload(t *testing.T) {
	payload, err := BuildPayload(samplePreview(), borrowerAddr, 64, loanPoolAddr, 7)
	require.NoError(t, err)

	pkg, err := Package(context.Background(), testSigner(t), payload)
	require.NoError(t, err)

	// Round-tripping through a map re-sorts the keys, so the bytes no
	// longer match what was signed even though the values are identical.
	var generic map[string]any
	require.NoError(t, json.Unmarshal(pkg.Payload, &generic))
	reordered, err := json.Marshal(generic)
	require.NoError(t, err)
	require.NotEqual(t, string(pkg.Payload), string(reordered))

	pkg.Payload = json.RawMessage(reordered)
	assert.ErrorIs(t, Verify(pkg), ErrSignatureMismatch)
}

func TestVerifyRejectsWrongMethod(t *testing.T) {
	payload, err := BuildPayload(samplePreview(), borrowerAddr, 64, loanPoolAddr, 7)
	require.NoError(t, err)

	pkg, err := Package(context.Background(), testSigner(t), payload)
	require.NoError(t, err)

	pkg.SignMethod = types.SignMethodHash
	assert.ErrorIs(t, Verify(pkg), ErrSignatureMismatch)

	pkg.SignMethod = "unknown"
	assert.ErrorIs(t, Verify(pkg), ErrSignatureMismatch)
}

func TestHexData(t *testing.T) {
	payload, err := BuildPayload(samplePreview(), borrowerAddr, 64, loanPoolAddr, 7)
	require.NoError(t, err)

	pkg, err := Package(context.Background(), testSigner(t), payload)
	require.NoError(t, err)

	hexData, err := HexData(pkg)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(hexData, "0x"))

	raw, err := hexutil.Decode(hexData)
	require.NoError(t, err)

	var restored types.SignedProposal
	require.NoError(t, json.Unmarshal(raw, &restored))
	require.NoError(t, Verify(restored))
}
