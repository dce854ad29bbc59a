/*

This file contains the transaction publisher: arbitrary payload bytes are
carried on-chain as the data field of a signed zero-value transaction.

*/

package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/creditlens/wcs/internal/logger"
)

var ErrBroadcastFailed = errors.New("transaction broadcast failed")

var publishLogger = logger.GetForComponent("tx_publisher")

// Publisher submits zero-value data-carrying transactions signed by the
// session key.
type Publisher struct {
	client  *ethclient.Client
	signer  *KeySigner
	chainID *big.Int
}

// NewPublisher creates a publisher bound to one chain and signer.
func NewPublisher(client *ethclient.Client, signer *KeySigner, chainID uint64) (*Publisher, error) {
	if client == nil {
		return nil, errors.New("eth client is required")
	}
	if signer == nil {
		return nil, errors.New("signer is required")
	}
	if chainID == 0 {
		return nil, errors.New("chain id must be set")
	}
	return &Publisher{
		client:  client,
		signer:  signer,
		chainID: new(big.Int).SetUint64(chainID),
	}, nil
}

// Publish sends a zero-value transaction to recipient with data as the
// transaction payload and returns the transaction hash. Gas is estimated
// against the current pending state; failures surface immediately, nothing
// is retried here.
func (p *Publisher) Publish(ctx context.Context, recipient common.Address, data []byte) (common.Hash, error) {
	from := p.signer.Address()

	nonce, err := p.client.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: nonce lookup: %w", ErrBroadcastFailed, err)
	}

	gasPrice, err := p.client.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: gas price: %w", ErrBroadcastFailed, err)
	}

	gasLimit, err := p.client.EstimateGas(ctx, ethereum.CallMsg{
		From: from,
		To:   &recipient,
		Data: data,
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: gas estimation: %w", ErrBroadcastFailed, err)
	}

	tx := ethtypes.NewTx(&ethtypes.LegacyTx{
		Nonce:    nonce,
		To:       &recipient,
		Value:    big.NewInt(0),
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})

	signed, err := ethtypes.SignTx(tx, ethtypes.LatestSignerForChainID(p.chainID), p.signer.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: signing: %w", ErrBroadcastFailed, err)
	}

	if err := p.client.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("%w: %w", ErrBroadcastFailed, err)
	}

	publishLogger.Info().
		Str("txHash", signed.Hash().Hex()).
		Str("recipient", recipient.Hex()).
		Int("dataBytes", len(data)).
		Msg("Payload published on-chain")

	return signed.Hash(), nil
}
