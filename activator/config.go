package activator

import (
	"fmt"
	"os"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/joho/godotenv"
)

// Config holds every environment-sourced setting the reconciler needs.
// Config files are explicitly out of scope; every field here is read
// from the process environment, optionally pre-loaded from a .env file
// for local development.
type Config struct {
	RPCEndpoint        string
	ProgramID          solana.PublicKey
	SignerKeypairPath  string
	PollInterval       time.Duration
	AccessPassInterval time.Duration
	MetricsAddr        string
	LogLevel           string
}

// LoadConfig reads configuration from the environment, loading a .env
// file first if one is present in the working directory.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()

	programIDStr := os.Getenv("DZ_PROGRAM_ID")
	if programIDStr == "" {
		return Config{}, fmt.Errorf("activator: DZ_PROGRAM_ID is required")
	}
	programID, err := solana.PublicKeyFromBase58(programIDStr)
	if err != nil {
		return Config{}, fmt.Errorf("activator: invalid DZ_PROGRAM_ID: %w", err)
	}

	rpcEndpoint := os.Getenv("DZ_RPC_ENDPOINT")
	if rpcEndpoint == "" {
		rpcEndpoint = "http://localhost:8899"
	}

	pollInterval := durationEnv("DZ_POLL_INTERVAL", 5*time.Second)
	sweepInterval := durationEnv("DZ_ACCESSPASS_SWEEP_INTERVAL", 30*time.Second)

	metricsAddr := os.Getenv("DZ_METRICS_ADDR")
	if metricsAddr == "" {
		metricsAddr = ":9090"
	}

	logLevel := os.Getenv("DZ_LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	return Config{
		RPCEndpoint:        rpcEndpoint,
		ProgramID:          programID,
		SignerKeypairPath:  os.Getenv("DZ_SIGNER_KEYPAIR"),
		PollInterval:       pollInterval,
		AccessPassInterval: sweepInterval,
		MetricsAddr:        metricsAddr,
		LogLevel:           logLevel,
	}, nil
}

func durationEnv(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
