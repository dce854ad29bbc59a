package main

import (
	"os"
	"strconv"

	"github.com/creditlens/wcs/internal/config"
	"github.com/creditlens/wcs/internal/datafetcher"
	"github.com/creditlens/wcs/internal/engine"
	"github.com/creditlens/wcs/internal/logger"
	"github.com/creditlens/wcs/internal/state"
	"github.com/creditlens/wcs/internal/wallet"
	"github.com/creditlens/wcs/internal/web"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// main is the entry point for the wallet credit service.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	// Load configuration from environment variables
	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"))
	log.Info().Msg("Wallet Credit Service Starting...")

	// Initialize the audit store when a database is configured. The service
	// runs fine without one: parameter persistence and history endpoints are
	// simply disabled.
	if os.Getenv("DB_HOST") != "" {
		dbCfg := state.DBConfig{
			Host: os.Getenv("DB_HOST"), Port: mustAtoi(os.Getenv("DB_PORT"), 5432),
			User: os.Getenv("DB_USER"), Password: os.Getenv("DB_PASSWORD"),
			DBName: os.Getenv("DB_NAME"), SSLMode: os.Getenv("DB_SSLMODE"),
		}
		if err := state.InitDB(dbCfg); err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize database")
		}
		defer state.CloseDB()
		if err := state.EnsureSchema(); err != nil {
			log.Fatal().Err(err).Msg("Failed to ensure database schema")
		}
	} else {
		log.Info().Msg("DB_HOST not set; running without the audit store")
	}

	// Load Scoring Parameters
	scoringParams := config.DefaultScoringParameters
	if state.Ready() {
		loaded, err := state.LoadActiveScoringParameters(engine.DEFAULT_SCORING_CONFIG_NAME)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to load active scoring parameters, using defaults and saving.")
			if _, err := state.SaveScoringParameters(scoringParams, engine.DEFAULT_SCORING_CONFIG_NAME); err != nil {
				log.Fatal().Err(err).Msg("Failed to save initial default scoring parameters.")
			}
		} else {
			scoringParams = loaded
		}
	}
	log.Info().Msg("Scoring parameters loaded successfully.")

	// --- 2. Data Provider Initialization ---
	ethClient, err := ethclient.Dial(config.RPCURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Ethereum RPC")
	}
	defer ethClient.Close()
	log.Info().Str("endpoint", config.RPCURL).Msg("Ethereum RPC connected")

	chainClient, err := datafetcher.NewChainClient(ethClient, config.StakingContractAddress)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize chain client")
	}

	explorerClient := datafetcher.NewExplorerClient(config.ExplorerAPIURL, config.ExplorerAPIKey)
	priceClient := datafetcher.NewPriceClient(config.PriceAPIURL)

	// --- 3. Signing Key (with Safety Switch) ---
	// Without a key the service analyzes and quotes but never signs or
	// broadcasts.
	engineConfig := engine.Config{
		History:          explorerClient,
		Balance:          chainClient,
		Prober:           chainClient,
		Stake:            chainClient,
		Price:            priceClient,
		Params:           scoringParams,
		PersistSnapshots: state.Ready(),
	}

	if config.SignerPrivateKey != "" {
		log.Warn().Msg("Signer key configured. Proposals can be signed and broadcast on-chain.")
		signer, err := wallet.NewKeySigner(config.SignerPrivateKey)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load signer key")
		}
		publisher, err := wallet.NewPublisher(ethClient, signer, config.ChainID)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize transaction publisher")
		}
		engineConfig.Signer = signer
		engineConfig.Publisher = publisher
		log.Info().Str("signer", signer.Address().Hex()).Msg("Signing wallet loaded")
	} else {
		log.Info().Msg("SIGNER_PRIVATE_KEY not set; running in read-only mode")
	}

	// --- 4. Create Engine Instance with Dependency Injection ---
	creditEngine, err := engine.New(engineConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create credit engine")
	}

	// --- 5. Serve ---
	webPort := os.Getenv("WEB_PORT")
	if webPort == "" {
		webPort = "8080"
	}

	webServer := web.NewWebServer(webPort, creditEngine)
	log.Info().Str("port", webPort).Str("url", "http://localhost:"+webPort).Msg("Starting credit service API")
	if err := webServer.Start(); err != nil {
		log.Fatal().Err(err).Msg("Web server stopped")
	}
}

// Helper to convert string to int with a default value
func mustAtoi(s string, defaultValue int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return i
}
