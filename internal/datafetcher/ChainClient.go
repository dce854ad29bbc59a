/*
This file wraps the Ethereum JSON-RPC client with the chain reads the engine
needs: current balance, deployed-code probes, and the staking contract's
recorded position.
*/

package datafetcher

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/creditlens/wcs/internal/logger"
	"github.com/creditlens/wcs/internal/types"
	"github.com/creditlens/wcs/internal/utils"
)

var chainLogger = logger.GetForComponent("chain_client")

var ErrChainRead = errors.New("chain read failed")
var ErrInvalidAddress = errors.New("address is not a valid hex address")

// stakingABIJSON is the read surface of the staking pool contract.
const stakingABIJSON = `[{"inputs":[{"internalType":"address","name":"user","type":"address"}],"name":"getStake","outputs":[{"internalType":"uint256","name":"amount","type":"uint256"},{"internalType":"uint256","name":"unlockTime","type":"uint256"}],"stateMutability":"view","type":"function"}]`

// ChainClient performs balance, code, and staking reads against one chain.
type ChainClient struct {
	client          *ethclient.Client
	stakingContract common.Address
	stakingABI      abi.ABI
}

// NewChainClient binds an RPC client to the staking contract address.
func NewChainClient(client *ethclient.Client, stakingContract string) (*ChainClient, error) {
	if client == nil {
		return nil, errors.New("eth client is required")
	}
	if !common.IsHexAddress(stakingContract) {
		return nil, fmt.Errorf("%w: staking contract %q", ErrInvalidAddress, stakingContract)
	}
	parsedABI, err := abi.JSON(strings.NewReader(stakingABIJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse staking ABI: %w", err)
	}
	return &ChainClient{
		client:          client,
		stakingContract: common.HexToAddress(stakingContract),
		stakingABI:      parsedABI,
	}, nil
}

// BalanceEth returns the wallet's current balance in ETH at the latest block.
func (c *ChainClient) BalanceEth(ctx context.Context, address string) (float64, error) {
	if !common.IsHexAddress(address) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	balWei, err := c.client.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return 0, fmt.Errorf("%w: balance of %s: %w", ErrChainRead, address, err)
	}
	balEth, err := utils.WeiToEth(balWei)
	if err != nil {
		return 0, fmt.Errorf("%w: balance of %s: %w", ErrChainRead, address, err)
	}
	return balEth, nil
}

// HasCode reports whether code is deployed at the address.
func (c *ChainClient) HasCode(ctx context.Context, address string) (bool, error) {
	if !common.IsHexAddress(address) {
		return false, fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	code, err := c.client.CodeAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return false, fmt.Errorf("%w: code at %s: %w", ErrChainRead, address, err)
	}
	return len(code) > 0, nil
}

// Stake reads the staking contract's recorded position for the wallet.
func (c *ChainClient) Stake(ctx context.Context, address string) (types.StakeSnapshot, error) {
	if !common.IsHexAddress(address) {
		return types.StakeSnapshot{}, fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}

	callData, err := c.stakingABI.Pack("getStake", common.HexToAddress(address))
	if err != nil {
		return types.StakeSnapshot{}, fmt.Errorf("%w: packing getStake: %w", ErrChainRead, err)
	}

	output, err := c.client.CallContract(ctx, ethereum.CallMsg{
		To:   &c.stakingContract,
		Data: callData,
	}, nil)
	if err != nil {
		return types.StakeSnapshot{}, fmt.Errorf("%w: getStake call: %w", ErrChainRead, err)
	}

	values, err := c.stakingABI.Unpack("getStake", output)
	if err != nil {
		return types.StakeSnapshot{}, fmt.Errorf("%w: decoding getStake: %w", ErrChainRead, err)
	}
	if len(values) != 2 {
		return types.StakeSnapshot{}, fmt.Errorf("%w: getStake returned %d values", ErrChainRead, len(values))
	}

	amountWei, ok := values[0].(*big.Int)
	if !ok {
		return types.StakeSnapshot{}, fmt.Errorf("%w: stake amount has unexpected type", ErrChainRead)
	}
	unlockTime, ok := values[1].(*big.Int)
	if !ok {
		return types.StakeSnapshot{}, fmt.Errorf("%w: unlock time has unexpected type", ErrChainRead)
	}

	amountEth, err := utils.WeiToEth(amountWei)
	if err != nil {
		return types.StakeSnapshot{}, fmt.Errorf("%w: stake amount: %w", ErrChainRead, err)
	}

	snapshot := types.StakeSnapshot{
		AmountWei:  amountWei,
		AmountEth:  amountEth,
		UnlockTime: unlockTime.Int64(),
	}

	chainLogger.Debug().
		Str("address", address).
		Float64("stakedEth", snapshot.AmountEth).
		Int64("unlockTime", snapshot.UnlockTime).
		Msg("Stake position read")

	return snapshot, nil
}
