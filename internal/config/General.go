package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
)

// AppConfig holds all application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// RPCURL is the Ethereum JSON-RPC endpoint used for balance, code, and
	// contract reads as well as transaction publication.
	RPCURL string
	// ChainID is the chain ID of the target network.
	ChainID uint64

	// ExplorerAPIURL is the Etherscan-compatible API base used for
	// transaction history retrieval.
	ExplorerAPIURL string
	// ExplorerAPIKey authenticates explorer requests.
	ExplorerAPIKey string

	// StakingContractAddress is the staking pool whose recorded position is
	// reported alongside the score. It doubles as the loan pool identifier in
	// signed proposals.
	StakingContractAddress string

	// SignerPrivateKey is the hex-encoded secp256k1 key used for proposal
	// signing and publication. Optional: without it the engine can analyze
	// and preview but not sign or publish.
	SignerPrivateKey string

	// PriceAPIURL is the fiat price endpoint. Optional: when empty or
	// unreachable, fiat rendering of the loan limit is simply unavailable.
	PriceAPIURL string
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	RPCURL, err = getEnv("ETH_RPC_URL")
	if err != nil {
		return err
	}

	ChainID, err = getEnvAsUint64("CHAIN_ID")
	if err != nil {
		return err
	}

	ExplorerAPIURL, err = getEnv("EXPLORER_API_URL")
	if err != nil {
		return err
	}

	ExplorerAPIKey, err = getEnv("EXPLORER_API_KEY")
	if err != nil {
		return err
	}

	StakingContractAddress, err = getEnv("STAKING_CONTRACT_ADDRESS")
	if err != nil {
		return err
	}

	// Optional settings.
	SignerPrivateKey = os.Getenv("SIGNER_PRIVATE_KEY")
	PriceAPIURL = os.Getenv("PRICE_API_URL")

	log.Debug().
		Uint64("ChainID", ChainID).
		Str("ExplorerAPIURL", ExplorerAPIURL).
		Str("StakingContract", StakingContractAddress).
		Bool("SignerConfigured", SignerPrivateKey != "").
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvAsUint64 retrieves an environment variable as uint64. Returns error if not set or invalid.
func getEnvAsUint64(key string) (uint64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid unsigned integer")
	}
	return value, nil
}
