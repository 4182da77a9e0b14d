package params

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Kernel.BlockTimeEstimate != 15*time.Second {
		t.Errorf("default block time = %v, want 15s", cfg.Kernel.BlockTimeEstimate)
	}
	if cfg.Relayer.ListenAddr == "" {
		t.Error("default relayer listen address is empty")
	}
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("LEDGER_BLOCK_TIME_MS", "400")
	t.Setenv("RELAYER_LISTEN", ":9999")
	t.Setenv("KERNEL_ENGINE_ADDR", "0x00000000000000000000000000000000000000ff")

	cfg := LoadFromEnv("")
	if cfg.Kernel.BlockTimeEstimate != 400*time.Millisecond {
		t.Errorf("block time = %v, want 400ms", cfg.Kernel.BlockTimeEstimate)
	}
	if cfg.Relayer.ListenAddr != ":9999" {
		t.Errorf("listen addr = %q, want :9999", cfg.Relayer.ListenAddr)
	}
	if cfg.Kernel.Engine != common.HexToAddress("0x00000000000000000000000000000000000000ff") {
		t.Errorf("engine = %s", cfg.Kernel.Engine.Hex())
	}
}

func TestLoadFromEnvBadValuesKeepDefaults(t *testing.T) {
	t.Setenv("LEDGER_BLOCK_TIME_MS", "not-a-number")
	cfg := LoadFromEnv("")
	if cfg.Kernel.BlockTimeEstimate != Default().Kernel.BlockTimeEstimate {
		t.Errorf("bad block time did not fall back to default: %v", cfg.Kernel.BlockTimeEstimate)
	}
}
