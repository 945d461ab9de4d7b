package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"voterchain-backend/api"
	"voterchain-backend/blockchain/ledger"
	"voterchain-backend/contract"
	"voterchain-backend/dedup"
	"voterchain-backend/integrity"
	"voterchain-backend/logger"
	"voterchain-backend/models"
	"voterchain-backend/pow"
	"voterchain-backend/storage"
	"voterchain-backend/store"
)

type Config struct {
	StorageDir      string
	Port            int
	StateID         string
	Difficulty      int
	MiningTimeout   time.Duration
	BiometricURL    string
	ConfidenceFloor float64
	Verbose         bool
}

func parseFlags() *Config {
	config := &Config{}

	flag.StringVar(&config.StorageDir, "storage", "data", "Directory for chain and voter storage")
	flag.IntVar(&config.Port, "port", 8080, "Server port")
	flag.StringVar(&config.StateID, "state", "ST01", "Jurisdiction id this node registers voters under")
	flag.IntVar(&config.Difficulty, "difficulty", pow.DefaultDifficulty, "Leading zero hex digits required of a proof")
	flag.DurationVar(&config.MiningTimeout, "mining-timeout", 30*time.Second, "Per-block mining deadline")
	flag.StringVar(&config.BiometricURL, "biometric-url", "", "Base URL of the biometric dedup service (empty disables the check)")
	flag.Float64Var(&config.ConfidenceFloor, "confidence-floor", 0.15, "Minimum biometric match confidence")
	flag.BoolVar(&config.Verbose, "verbose", false, "Enable debug logging")

	flag.Parse()

	if config.Difficulty < 1 || config.Difficulty > 16 {
		log.Fatal("difficulty must be between 1 and 16")
	}

	return config
}

// allowAllVerifier stands in when no biometric service is configured. It
// admits every claimed identity; registration dedup finds no matches.
type allowAllVerifier struct{}

func (allowAllVerifier) Verify(_ context.Context, _ []byte, claimedID string) (dedup.Decision, error) {
	return dedup.Decision{MatchedVoterID: claimedID, Confidence: 1}, nil
}

func main() {
	config := parseFlags()

	level := slog.LevelInfo
	if config.Verbose {
		level = slog.LevelDebug
	}
	logger.Init(level)

	if err := os.MkdirAll(config.StorageDir, 0755); err != nil {
		log.Fatalf("setup storage directory: %v", err)
	}

	chainStore, err := storage.New(config.StorageDir)
	if err != nil {
		log.Fatalf("open chain storage: %v", err)
	}

	solver := pow.NewSolver(config.Difficulty)
	led, err := restoreLedger(chainStore, solver, config.MiningTimeout)
	if err != nil {
		log.Fatalf("restore ledger: %v", err)
	}

	registry := contract.NewRegistry(led)
	if err := registry.Replay(led.FullChain()); err != nil {
		log.Fatalf("replay chain into registry: %v", err)
	}

	voters, err := store.Open(filepath.Join(config.StorageDir, "voters"))
	if err != nil {
		log.Fatalf("open voter store: %v", err)
	}
	defer voters.Close()

	auth, err := api.LoadOrGenerateAdminKey(config.StorageDir)
	if err != nil {
		log.Fatalf("load admin key: %v", err)
	}
	slog.Info("admin identity ready", "address", auth.Address())

	var biometric dedup.Verifier = allowAllVerifier{}
	if config.BiometricURL != "" {
		biometric = dedup.NewHTTPVerifier(config.BiometricURL, 10*time.Second)
	}

	verifier := integrity.NewVerifier(integrity.SourceFunc(func(voterID string) ([]models.Transaction, error) {
		return led.FindTransactionsFor(voterID), nil
	}))

	server := api.NewServer(api.Config{
		StateID:    config.StateID,
		Ledger:     led,
		Registry:   registry,
		Voters:     voters,
		Verifier:   verifier,
		Biometric:  biometric,
		Policy:     dedup.Policy{ConfidenceFloor: config.ConfidenceFloor},
		Auth:       auth,
		ChainStore: chainStore,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	serverChan := make(chan error, 1)
	go func() {
		serverChan <- server.Start(fmt.Sprintf(":%d", config.Port))
	}()

	select {
	case err := <-serverChan:
		log.Fatalf("server error: %v", err)
	case sig := <-sigChan:
		slog.Info("shutting down", "signal", sig.String())
		if err := chainStore.SaveChain(led.FullChain()); err != nil {
			slog.Error("final chain save failed", "error", err)
		}
	}
}

// restoreLedger loads the persisted chain if one exists, validating it
// before accepting it. A missing file starts a fresh chain from genesis.
func restoreLedger(chainStore *storage.ChainStorage, solver *pow.Solver, miningTimeout time.Duration) (*ledger.Ledger, error) {
	opts := []ledger.Option{
		ledger.WithStore(chainStore),
		ledger.WithMiningTimeout(miningTimeout),
	}

	blocks, err := chainStore.LoadChain()
	if err != nil {
		return nil, err
	}
	if blocks == nil {
		slog.Info("no persisted chain, starting from genesis")
		return ledger.New(solver, opts...), nil
	}

	led, err := ledger.NewFromChain(solver, blocks, opts...)
	if err != nil {
		return nil, err
	}
	slog.Info("chain restored", "blocks", len(blocks))
	return led, nil
}
