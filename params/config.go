package params

import (
	"os"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

type Kernel struct {
	// Engine is the decision-engine address every commitment hash binds to.
	Engine common.Address

	KernelVersion        common.Address
	IssuanceVersion      common.Address
	TermsContractVersion common.Address

	// BlockTimeEstimate feeds the look-ahead expiry check: an order that
	// would expire before a transaction confirms already reads as expired.
	BlockTimeEstimate time.Duration
}

type Relayer struct {
	ListenAddr string
	DataDir    string
}

type Config struct {
	Kernel  Kernel
	Relayer Relayer
}

func Default() Config {
	return Config{
		Kernel: Kernel{
			Engine:               common.HexToAddress("0x00000000000000000000000000000000000000e1"),
			KernelVersion:        common.HexToAddress("0x0000000000000000000000000000000000000101"),
			IssuanceVersion:      common.HexToAddress("0x0000000000000000000000000000000000000102"),
			TermsContractVersion: common.HexToAddress("0x0000000000000000000000000000000000000103"),
			BlockTimeEstimate:    15 * time.Second,
		},
		Relayer: Relayer{
			ListenAddr: ":8080",
			DataDir:    "./data/orders",
		},
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	// Try to load .env file (optional - won't fail if not exists)
	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load() // loads .env from current directory
	}

	if engine := os.Getenv("KERNEL_ENGINE_ADDR"); engine != "" {
		cfg.Kernel.Engine = common.HexToAddress(engine)
	}
	if v := os.Getenv("KERNEL_VERSION_ADDR"); v != "" {
		cfg.Kernel.KernelVersion = common.HexToAddress(v)
	}
	if v := os.Getenv("ISSUANCE_VERSION_ADDR"); v != "" {
		cfg.Kernel.IssuanceVersion = common.HexToAddress(v)
	}
	if v := os.Getenv("TERMS_CONTRACT_VERSION_ADDR"); v != "" {
		cfg.Kernel.TermsContractVersion = common.HexToAddress(v)
	}
	if blockTime := os.Getenv("LEDGER_BLOCK_TIME_MS"); blockTime != "" {
		if ms, err := strconv.Atoi(blockTime); err == nil {
			cfg.Kernel.BlockTimeEstimate = time.Duration(ms) * time.Millisecond
		}
	}

	cfg.Relayer.ListenAddr = getEnv("RELAYER_LISTEN", cfg.Relayer.ListenAddr)
	cfg.Relayer.DataDir = getEnv("RELAYER_DATA_DIR", cfg.Relayer.DataDir)

	return cfg
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
