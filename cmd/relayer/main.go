package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/openlend/debtkernel/params"
	"github.com/openlend/debtkernel/pkg/api"
	"github.com/openlend/debtkernel/pkg/storage"
	"github.com/openlend/debtkernel/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("") // "" means load from .env in current directory

	// Setup logging (write to both console and file)
	logFile := os.Getenv("LOG_FILE")
	if logFile == "" {
		logFile = "data/relayer.log"
	}

	logger, err := util.NewLoggerWithFile(logFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", logFile)

	// ---- Order store ----
	store, err := storage.NewOrderStore(cfg.Relayer.DataDir, logger)
	if err != nil {
		sugar.Fatalw("order_store_init_failed", "err", err, "data_dir", cfg.Relayer.DataDir)
	}
	defer store.Close()
	sugar.Infow("order_store_opened", "data_dir", cfg.Relayer.DataDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- API Server ----
	server := api.NewServer(store)

	go func() {
		sugar.Infow("relayer_starting",
			"addr", cfg.Relayer.ListenAddr,
			"engine", cfg.Kernel.Engine.Hex())
		if err := server.Start(cfg.Relayer.ListenAddr); err != nil {
			sugar.Fatalw("relayer_failed", "err", err)
		}
	}()

	<-ctx.Done()
	sugar.Info("relayer_shutting_down")
}
