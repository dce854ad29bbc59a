package engine

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/creditlens/wcs/internal/config"
	"github.com/creditlens/wcs/internal/proposal"
	"github.com/creditlens/wcs/internal/types"
	"github.com/creditlens/wcs/internal/wallet"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The analyzed wallet doubles as the signing identity so packaged proposals
// verify end to end.
const testKeyHex = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
const testWallet = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"

var fixedNow = time.Unix(1_700_000_000, 0)

type fakeHistory struct {
	txs []types.TransactionRecord
	err error
}

func (f *fakeHistory) TransactionHistory(ctx context.Context, address string) ([]types.TransactionRecord, error) {
	return f.txs, f.err
}

type fakeBalance struct {
	balance float64
	err     error
}

func (f *fakeBalance) BalanceEth(ctx context.Context, address string) (float64, error) {
	return f.balance, f.err
}

type fakeProber struct {
	contracts map[string]bool
}

func (f *fakeProber) HasCode(ctx context.Context, address string) (bool, error) {
	return f.contracts[address], nil
}

type fakeStake struct {
	snapshot types.StakeSnapshot
	err      error
	calls    int
}

func (f *fakeStake) Stake(ctx context.Context, address string) (types.StakeSnapshot, error) {
	f.calls++
	return f.snapshot, f.err
}

type fakePrice struct {
	price float64
	err   error
}

func (f *fakePrice) EthUsdPrice(ctx context.Context) (float64, error) {
	return f.price, f.err
}

type fakePublisher struct {
	hash  common.Hash
	err   error
	data  []byte
	to    common.Address
	calls int
}

func (f *fakePublisher) Publish(ctx context.Context, recipient common.Address, data []byte) (common.Hash, error) {
	f.calls++
	f.to = recipient
	f.data = data
	return f.hash, f.err
}

func ethWei(eth int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(eth), big.NewInt(1_000_000_000_000_000_000))
}

func sampleHistory() []types.TransactionRecord {
	day := int64(24 * 60 * 60)
	return []types.TransactionRecord{
		{
			From:      "0x1111111111111111111111111111111111111111",
			To:        testWallet,
			ValueWei:  ethWei(4),
			Timestamp: fixedNow.Unix() - 500*day,
		},
		{
			From:        testWallet,
			To:          "0x2222222222222222222222222222222222222222",
			ValueWei:    ethWei(1),
			GasPriceWei: big.NewInt(20_000_000_000),
			Timestamp:   fixedNow.Unix() - 20*day,
		},
	}
}

type testDeps struct {
	history   *fakeHistory
	balance   *fakeBalance
	prober    *fakeProber
	stake     *fakeStake
	price     *fakePrice
	publisher *fakePublisher
	signer    proposal.Signer
}

func defaultDeps(t *testing.T) *testDeps {
	t.Helper()
	signer, err := wallet.NewKeySigner(testKeyHex)
	require.NoError(t, err)
	return &testDeps{
		history: &fakeHistory{txs: sampleHistory()},
		balance: &fakeBalance{balance: 3},
		prober: &fakeProber{contracts: map[string]bool{
			"0x2222222222222222222222222222222222222222": true,
		}},
		stake: &fakeStake{snapshot: types.StakeSnapshot{
			AmountWei:  ethWei(2),
			AmountEth:  2,
			UnlockTime: fixedNow.Unix() + 1000,
		}},
		price:     &fakePrice{price: 2000},
		publisher: &fakePublisher{hash: common.HexToHash("0xabc123")},
		signer:    signer,
	}
}

func newTestEngine(t *testing.T, deps *testDeps) *Engine {
	t.Helper()
	eng, err := New(Config{
		History:   deps.history,
		Balance:   deps.balance,
		Prober:    deps.prober,
		Stake:     deps.stake,
		Price:     deps.price,
		Signer:    deps.signer,
		Publisher: deps.publisher,
		Params:    config.DefaultScoringParameters,
		Now:       func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	return eng
}

func TestNewRejectsMissingProviders(t *testing.T) {
	deps := defaultDeps(t)
	_, err := New(Config{
		Balance: deps.balance,
		Prober:  deps.prober,
		Stake:   deps.stake,
		Params:  config.DefaultScoringParameters,
	})
	assert.Error(t, err)
}

func TestNewRejectsInvalidParameters(t *testing.T) {
	deps := defaultDeps(t)
	params := config.DefaultScoringParameters
	params.AgeCoefficient = 0

	_, err := New(Config{
		History: deps.history,
		Balance: deps.balance,
		Prober:  deps.prober,
		Stake:   deps.stake,
		Params:  params,
	})
	assert.Error(t, err)
}

func TestAnalyzeFullPipeline(t *testing.T) {
	deps := defaultDeps(t)
	eng := newTestEngine(t, deps)

	report, err := eng.Analyze(context.Background(), testWallet)
	require.NoError(t, err)

	assert.False(t, report.Fallback)
	assert.Equal(t, "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266", report.Address)
	require.NotNil(t, report.Metrics)
	require.NotNil(t, report.Stake)
	assert.Equal(t, 2, report.Metrics.TxCount)
	assert.Equal(t, 1, report.Metrics.ContractInteractionsEstimate)
	assert.Equal(t, 3.0, report.CurrentBalanceEth)
	assert.Greater(t, report.Score.Value, 0)
	assert.Equal(t, fixedNow, report.GeneratedAt)

	// Peak balance 4 ETH halves into the loan limit, priced at 2000 USD/ETH.
	assert.InDelta(t, 2.0, report.LoanLimitEth, 1e-9)
	require.NotNil(t, report.LoanLimitFiat)
	assert.InDelta(t, 4000.0, *report.LoanLimitFiat, 1e-6)

	assert.Equal(t, 1, deps.stake.calls)
}

func TestAnalyzeFallbackWhenNoHistory(t *testing.T) {
	deps := defaultDeps(t)
	deps.history.txs = nil
	deps.balance.balance = 5
	eng := newTestEngine(t, deps)

	report, err := eng.Analyze(context.Background(), testWallet)
	require.NoError(t, err)

	assert.True(t, report.Fallback)
	assert.Nil(t, report.Metrics)
	assert.Nil(t, report.Stake)
	assert.Equal(t, 60, report.Score.Value)
	assert.Equal(t, 0.0, report.LoanLimitEth)
	assert.Nil(t, report.LoanLimitFiat)

	// The staking contract is never consulted on the fallback path.
	assert.Equal(t, 0, deps.stake.calls)
}

func TestAnalyzeAbortsWhenHistoryFails(t *testing.T) {
	deps := defaultDeps(t)
	deps.history.err = errors.New("explorer down")
	eng := newTestEngine(t, deps)

	_, err := eng.Analyze(context.Background(), testWallet)
	assert.ErrorIs(t, err, ErrDataUnavailable)
}

func TestAnalyzeAbortsWhenBalanceFails(t *testing.T) {
	deps := defaultDeps(t)
	deps.balance.err = errors.New("rpc down")
	eng := newTestEngine(t, deps)

	_, err := eng.Analyze(context.Background(), testWallet)
	assert.ErrorIs(t, err, ErrDataUnavailable)
}

func TestAnalyzeAbortsWhenStakeFails(t *testing.T) {
	deps := defaultDeps(t)
	deps.stake.err = errors.New("contract call reverted")
	eng := newTestEngine(t, deps)

	_, err := eng.Analyze(context.Background(), testWallet)
	assert.ErrorIs(t, err, ErrDataUnavailable)
}

func TestAnalyzeDegradesWithoutPrice(t *testing.T) {
	deps := defaultDeps(t)
	deps.price.err = errors.New("price api down")
	eng := newTestEngine(t, deps)

	report, err := eng.Analyze(context.Background(), testWallet)
	require.NoError(t, err)
	assert.Nil(t, report.LoanLimitFiat)
	assert.Greater(t, report.LoanLimitEth, 0.0)
}

func TestAnalyzeRejectsInvalidAddress(t *testing.T) {
	eng := newTestEngine(t, defaultDeps(t))

	_, err := eng.Analyze(context.Background(), "not-an-address")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestQuoteLoan(t *testing.T) {
	deps := defaultDeps(t)
	eng := newTestEngine(t, deps)

	report, err := eng.Analyze(context.Background(), testWallet)
	require.NoError(t, err)

	quote, err := eng.QuoteLoan(report, types.LoanRequest{AmountEth: 1, TermYears: 1, PaymentsPerYear: 12})
	require.NoError(t, err)
	require.NotNil(t, quote.Preview)
	assert.Equal(t, report.LoanLimitEth, quote.Preview.LoanLimitEth)

	hint, err := eng.QuoteLoan(report, types.LoanRequest{})
	require.NoError(t, err)
	require.NotNil(t, hint.Hint)

	_, err = eng.QuoteLoan(report, types.LoanRequest{AmountEth: 1, TermYears: -1})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestPackageAndPublishProposal(t *testing.T) {
	deps := defaultDeps(t)
	eng := newTestEngine(t, deps)

	report, err := eng.Analyze(context.Background(), testWallet)
	require.NoError(t, err)

	quote, err := eng.QuoteLoan(report, types.LoanRequest{AmountEth: 1, TermYears: 1, PaymentsPerYear: 12})
	require.NoError(t, err)
	require.NotNil(t, quote.Preview)

	loanPool := "0x5FbDB2315678afecb367f032d93F642f64180aa3"
	pkg, err := eng.PackageProposal(context.Background(), report, *quote.Preview, loanPool)
	require.NoError(t, err)
	require.NoError(t, proposal.Verify(pkg))

	payload, err := pkg.DecodePayload()
	require.NoError(t, err)
	assert.Equal(t, fixedNow.UnixMilli(), payload.Nonce)
	assert.Equal(t, report.Score.Value, payload.Score)

	txHash, err := eng.PublishProposal(context.Background(), pkg, loanPool)
	require.NoError(t, err)
	assert.Equal(t, deps.publisher.hash.Hex(), txHash)
	assert.Equal(t, common.HexToAddress(loanPool), deps.publisher.to)
	assert.NotEmpty(t, deps.publisher.data)
}

func TestPackageProposalWithoutSigner(t *testing.T) {
	deps := defaultDeps(t)
	deps.signer = nil
	eng := newTestEngine(t, deps)

	report, err := eng.Analyze(context.Background(), testWallet)
	require.NoError(t, err)

	_, err = eng.PackageProposal(context.Background(), report, types.LoanPreview{PeriodCount: 1}, testWallet)
	assert.ErrorIs(t, err, ErrSignerNotConfigured)
}

func TestPublishProposalFailureLeavesPackageValid(t *testing.T) {
	deps := defaultDeps(t)
	deps.publisher.err = errors.New("broadcast rejected")
	eng := newTestEngine(t, deps)

	report, err := eng.Analyze(context.Background(), testWallet)
	require.NoError(t, err)
	quote, err := eng.QuoteLoan(report, types.LoanRequest{AmountEth: 1, TermYears: 1, PaymentsPerYear: 12})
	require.NoError(t, err)

	pkg, err := eng.PackageProposal(context.Background(), report, *quote.Preview, testWallet)
	require.NoError(t, err)

	_, err = eng.PublishProposal(context.Background(), pkg, testWallet)
	assert.ErrorIs(t, err, ErrPublicationFailed)

	// The signed package is untouched by the failed broadcast.
	require.NoError(t, proposal.Verify(pkg))
}

func TestPublishProposalWithoutPublisher(t *testing.T) {
	deps := defaultDeps(t)
	deps.publisher = nil
	eng, err := New(Config{
		History: deps.history,
		Balance: deps.balance,
		Prober:  deps.prober,
		Stake:   deps.stake,
		Params:  config.DefaultScoringParameters,
		Now:     func() time.Time { return fixedNow },
	})
	require.NoError(t, err)

	_, err = eng.PublishProposal(context.Background(), types.SignedProposal{}, testWallet)
	assert.ErrorIs(t, err, ErrPublisherNotConfigured)
}

func TestPublishReport(t *testing.T) {
	deps := defaultDeps(t)
	eng := newTestEngine(t, deps)

	report, err := eng.Analyze(context.Background(), testWallet)
	require.NoError(t, err)

	txHash, err := eng.PublishReport(context.Background(), report)
	require.NoError(t, err)
	assert.Equal(t, deps.publisher.hash.Hex(), txHash)

	// The report publishes to the wallet itself.
	assert.Equal(t, common.HexToAddress(report.Address), deps.publisher.to)
}

func TestEngineAddressNormalization(t *testing.T) {
	eng := newTestEngine(t, defaultDeps(t))

	report, err := eng.Analyze(context.Background(), common.HexToAddress(testWallet).Hex())
	require.NoError(t, err)
	assert.Equal(t, "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266", report.Address)
}
