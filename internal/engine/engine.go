/*

This file contains the credit engine, the orchestrator that ties the data
fetchers, the analyzer, the loan calculator, and the proposal packager into
the operations the web layer exposes. The engine holds no session state:
every analysis runs the full pipeline and assembles its report completely
before returning it.

*/

package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/creditlens/wcs/internal/analyzer"
	"github.com/creditlens/wcs/internal/loan"
	"github.com/creditlens/wcs/internal/logger"
	"github.com/creditlens/wcs/internal/proposal"
	"github.com/creditlens/wcs/internal/state"
	"github.com/creditlens/wcs/internal/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// DEFAULT_SCORING_CONFIG_NAME names the parameter set loaded from the
	// state store when none is specified.
	DEFAULT_SCORING_CONFIG_NAME = "default_credit_policy"
)

var (
	// ErrDataUnavailable indicates a required external read failed. The
	// analysis aborts and no partial report is produced.
	ErrDataUnavailable = errors.New("required wallet data is unavailable")
	// ErrInvalidRequest indicates the caller's input could not be used.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrSignerNotConfigured indicates proposal packaging was requested on an
	// engine built without a signing key.
	ErrSignerNotConfigured = errors.New("no signer configured")
	// ErrPublisherNotConfigured indicates on-chain publication was requested
	// on an engine built without a transaction publisher.
	ErrPublisherNotConfigured = errors.New("no publisher configured")
	// ErrPublicationFailed indicates the broadcast failed. The signed package
	// and report remain valid.
	ErrPublicationFailed = errors.New("on-chain publication failed")
)

// HistoryProvider returns a wallet's full transaction history, oldest first.
// An empty slice with a nil error means the wallet has no history.
type HistoryProvider interface {
	TransactionHistory(ctx context.Context, address string) ([]types.TransactionRecord, error)
}

// BalanceProvider returns a wallet's current spendable balance in ETH.
type BalanceProvider interface {
	BalanceEth(ctx context.Context, address string) (float64, error)
}

// StakeProvider reads a wallet's position in the staking contract.
type StakeProvider interface {
	Stake(ctx context.Context, address string) (types.StakeSnapshot, error)
}

// PriceProvider returns the current ETH/USD price. It is optional: when it
// is absent or failing, reports simply omit the fiat loan limit.
type PriceProvider interface {
	EthUsdPrice(ctx context.Context) (float64, error)
}

// TxPublisher broadcasts a zero-value data-carrying transaction and returns
// its hash.
type TxPublisher interface {
	Publish(ctx context.Context, recipient common.Address, data []byte) (common.Hash, error)
}

// Config holds the dependencies for creating a new Engine instance.
type Config struct {
	History HistoryProvider
	Balance BalanceProvider
	Prober  analyzer.CodeProber
	Stake   StakeProvider

	// Optional dependencies. Price degrades the fiat conversion, Signer gates
	// proposal packaging, Publisher gates on-chain publication.
	Price     PriceProvider
	Signer    proposal.Signer
	Publisher TxPublisher

	Params types.ScoringParameters

	// Now overrides the clock, for tests. Defaults to time.Now.
	Now func() time.Time

	// PersistSnapshots enables audit writes to the state store. Requires
	// state.InitDB to have succeeded; writes are best-effort either way.
	PersistSnapshots bool
}

// Engine runs the wallet credit pipeline.
type Engine struct {
	logger    zerolog.Logger
	history   HistoryProvider
	balance   BalanceProvider
	prober    analyzer.CodeProber
	stake     StakeProvider
	price     PriceProvider
	signer    proposal.Signer
	publisher TxPublisher
	params    types.ScoringParameters
	now       func() time.Time
	persist   bool
}

// New creates an Engine with dependency injection, validating that every
// required provider is present and the parameter set is usable.
func New(cfg Config) (*Engine, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("engine configuration validation failed: %w", err)
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	e := &Engine{
		logger:    logger.GetForComponent("credit_engine"),
		history:   cfg.History,
		balance:   cfg.Balance,
		prober:    cfg.Prober,
		stake:     cfg.Stake,
		price:     cfg.Price,
		signer:    cfg.Signer,
		publisher: cfg.Publisher,
		params:    cfg.Params,
		now:       now,
		persist:   cfg.PersistSnapshots,
	}

	e.logger.Info().
		Bool("priceEnabled", e.price != nil).
		Bool("signerEnabled", e.signer != nil).
		Bool("publisherEnabled", e.publisher != nil).
		Msg("Credit engine created")
	return e, nil
}

func validateConfig(cfg Config) error {
	if cfg.History == nil {
		return fmt.Errorf("history provider cannot be nil")
	}
	if cfg.Balance == nil {
		return fmt.Errorf("balance provider cannot be nil")
	}
	if cfg.Prober == nil {
		return fmt.Errorf("code prober cannot be nil")
	}
	if cfg.Stake == nil {
		return fmt.Errorf("stake provider cannot be nil")
	}
	if err := analyzer.ValidateScoringParameters(cfg.Params); err != nil {
		return fmt.Errorf("scoring parameters are invalid: %w", err)
	}
	return nil
}

// Analyze runs the full credit pipeline for one wallet: history, balance,
// metrics, contract sampling, stake, score, and loan guidance. The report is
// assembled completely before it is returned; any required-data failure
// aborts the run with ErrDataUnavailable.
func (e *Engine) Analyze(ctx context.Context, address string) (types.CreditReport, error) {
	if !common.IsHexAddress(address) {
		return types.CreditReport{}, fmt.Errorf("%w: %q is not a valid address", ErrInvalidRequest, address)
	}
	address = strings.ToLower(common.HexToAddress(address).Hex())

	runID := uuid.New().String()
	runLogger := e.logger.With().Str("run_id", runID).Str("wallet", address).Logger()
	runLogger.Info().Msg("Starting wallet analysis")

	history, err := e.history.TransactionHistory(ctx, address)
	if err != nil {
		runLogger.Error().Err(err).Msg("Analysis aborted: failed to fetch transaction history")
		return types.CreditReport{}, errors.Join(ErrDataUnavailable, err)
	}

	balanceEth, err := e.balance.BalanceEth(ctx, address)
	if err != nil {
		runLogger.Error().Err(err).Msg("Analysis aborted: failed to fetch balance")
		return types.CreditReport{}, errors.Join(ErrDataUnavailable, err)
	}

	if len(history) == 0 {
		return e.fallbackReport(runLogger, address, balanceEth)
	}

	now := e.now()
	metrics, counterparties, err := analyzer.CalculateWalletMetrics(address, history, balanceEth, now)
	if err != nil {
		runLogger.Error().Err(err).Msg("Analysis aborted: failed to derive wallet metrics")
		return types.CreditReport{}, errors.Join(ErrDataUnavailable, err)
	}

	contracts, err := analyzer.EstimateContractInteractions(ctx, e.prober, counterparties, e.params.ContractProbeLimit)
	if err != nil {
		runLogger.Error().Err(err).Msg("Analysis aborted: contract sampling failed")
		return types.CreditReport{}, errors.Join(ErrDataUnavailable, err)
	}
	metrics.ContractInteractionsEstimate = contracts

	stakeSnapshot, err := e.stake.Stake(ctx, address)
	if err != nil {
		runLogger.Error().Err(err).Msg("Analysis aborted: failed to read staking contract")
		return types.CreditReport{}, errors.Join(ErrDataUnavailable, err)
	}

	score, err := analyzer.CalculateWalletScore(metrics, e.params)
	if err != nil {
		runLogger.Error().Err(err).Msg("Analysis aborted: score composition failed")
		return types.CreditReport{}, err
	}

	limitEth := loan.LoanLimit(metrics.MaxObservedBalanceEth, e.params)
	report := types.CreditReport{
		Address:            address,
		Fallback:           false,
		Score:              score,
		Metrics:            &metrics,
		Stake:              &stakeSnapshot,
		CurrentBalanceEth:  balanceEth,
		LoanLimitEth:       limitEth,
		LoanLimitFiat:      e.fiatLimit(ctx, runLogger, limitEth),
		BaseInterestPct:    loan.BaseInterestPct(score.Value, e.params),
		SuggestedRepayDays: loan.SuggestedRepayDays(score.Value, e.params),
		GeneratedAt:        now,
	}

	runLogger.Info().
		Int("score", score.Value).
		Int("txCount", metrics.TxCount).
		Float64("loanLimitEth", limitEth).
		Msg("Wallet analysis complete")

	e.persistReport(runLogger, report)
	return report, nil
}

// fallbackReport builds the balance-only report for wallets without history.
// The staking contract is never consulted on this path.
func (e *Engine) fallbackReport(runLogger zerolog.Logger, address string, balanceEth float64) (types.CreditReport, error) {
	score, err := analyzer.CalculateFallbackScore(balanceEth, e.params)
	if err != nil {
		runLogger.Error().Err(err).Msg("Analysis aborted: fallback score failed")
		return types.CreditReport{}, err
	}

	report := types.CreditReport{
		Address:            address,
		Fallback:           true,
		Score:              score,
		CurrentBalanceEth:  balanceEth,
		LoanLimitEth:       0,
		BaseInterestPct:    loan.BaseInterestPct(score.Value, e.params),
		SuggestedRepayDays: loan.SuggestedRepayDays(score.Value, e.params),
		GeneratedAt:        e.now(),
	}

	runLogger.Info().
		Int("score", score.Value).
		Float64("balanceEth", balanceEth).
		Msg("Wallet analysis complete (no history, balance-only score)")

	e.persistReport(runLogger, report)
	return report, nil
}

// fiatLimit converts the ETH loan limit to USD when a price provider is
// configured. Price failures degrade to a nil fiat limit, never an error.
func (e *Engine) fiatLimit(ctx context.Context, runLogger zerolog.Logger, limitEth float64) *float64 {
	if e.price == nil {
		return nil
	}
	price, err := e.price.EthUsdPrice(ctx)
	if err != nil {
		runLogger.Warn().Err(err).Msg("ETH price unavailable, omitting fiat loan limit")
		return nil
	}
	fiat := limitEth * price
	return &fiat
}

func (e *Engine) persistReport(runLogger zerolog.Logger, report types.CreditReport) {
	if !e.persist || !state.Ready() {
		return
	}
	if _, err := state.SaveReportSnapshot(report); err != nil {
		runLogger.Warn().Err(err).Msg("Failed to persist report snapshot")
	}
}

// QuoteLoan derives a loan quote from a previously produced report. The
// quote is either a preview (full amortization) or a hint, depending on the
// request.
func (e *Engine) QuoteLoan(report types.CreditReport, req types.LoanRequest) (types.LoanQuote, error) {
	quote, err := loan.Quote(req, report.Score.Value, report.LoanLimitEth, e.params)
	if err != nil {
		return types.LoanQuote{}, errors.Join(ErrInvalidRequest, err)
	}
	return quote, nil
}

// PackageProposal freezes a loan preview into a signed proposal for the
// report's wallet. The nonce is stamped from the engine clock in
// milliseconds.
func (e *Engine) PackageProposal(ctx context.Context, report types.CreditReport, preview types.LoanPreview, loanPool string) (types.SignedProposal, error) {
	if e.signer == nil {
		return types.SignedProposal{}, ErrSignerNotConfigured
	}

	nonce := e.now().UnixMilli()
	payload, err := proposal.BuildPayload(preview, report.Address, report.Score.Value, loanPool, nonce)
	if err != nil {
		return types.SignedProposal{}, errors.Join(ErrInvalidRequest, err)
	}

	pkg, err := proposal.Package(ctx, e.signer, payload)
	if err != nil {
		return types.SignedProposal{}, err
	}

	e.logger.Info().
		Str("wallet", report.Address).
		Str("signMethod", string(pkg.SignMethod)).
		Int64("nonce", nonce).
		Msg("Loan proposal packaged")

	e.persistProposal(report.Address, pkg)
	return pkg, nil
}

func (e *Engine) persistProposal(borrower string, pkg types.SignedProposal) {
	if !e.persist || !state.Ready() {
		return
	}
	if _, err := state.SaveProposalRecord(borrower, pkg, ""); err != nil {
		e.logger.Warn().Err(err).Msg("Failed to persist proposal record")
	}
}

// PublishProposal broadcasts a signed proposal as the data of a zero-value
// transaction to recipient. Failure leaves the package itself valid.
func (e *Engine) PublishProposal(ctx context.Context, pkg types.SignedProposal, recipient string) (string, error) {
	if e.publisher == nil {
		return "", ErrPublisherNotConfigured
	}
	if !common.IsHexAddress(recipient) {
		return "", fmt.Errorf("%w: %q is not a valid recipient address", ErrInvalidRequest, recipient)
	}

	data, err := json.Marshal(pkg)
	if err != nil {
		return "", fmt.Errorf("failed to serialize signed proposal: %w", err)
	}

	hash, err := e.publisher.Publish(ctx, common.HexToAddress(recipient), data)
	if err != nil {
		e.logger.Error().Err(err).Msg("Proposal broadcast failed; package remains valid")
		return "", errors.Join(ErrPublicationFailed, err)
	}

	e.logger.Info().Str("txHash", hash.Hex()).Msg("Proposal published on-chain")
	return hash.Hex(), nil
}

// PublishReport broadcasts a full credit report to the report's own wallet
// address, as a self-addressed zero-value transaction.
func (e *Engine) PublishReport(ctx context.Context, report types.CreditReport) (string, error) {
	if e.publisher == nil {
		return "", ErrPublisherNotConfigured
	}

	data, err := json.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("failed to serialize credit report: %w", err)
	}

	hash, err := e.publisher.Publish(ctx, common.HexToAddress(report.Address), data)
	if err != nil {
		e.logger.Error().Err(err).Msg("Report broadcast failed; report remains valid")
		return "", errors.Join(ErrPublicationFailed, err)
	}

	e.logger.Info().Str("txHash", hash.Hex()).Msg("Credit report published on-chain")
	return hash.Hex(), nil
}

// Params returns the parameter set the engine was built with.
func (e *Engine) Params() types.ScoringParameters {
	return e.params
}
