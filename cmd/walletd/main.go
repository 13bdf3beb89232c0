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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"blink-wallet/go-backend/internal/adapters/rpc"
	"blink-wallet/go-backend/internal/config"
	"blink-wallet/go-backend/internal/credstore"
	"blink-wallet/go-backend/internal/custody"
	"blink-wallet/go-backend/internal/kvstore"
	"blink-wallet/go-backend/internal/platform/privacylog"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	rpcAddr := flag.String("rpc-addr", "", "JSON-RPC listen address (overrides config)")
	configPath := flag.String("config", "", "Path to config.yaml (optional)")
	dataDir := flag.String("data-dir", "", "Directory for wallet local data (overrides config)")
	demoMode := flag.Bool("demo-mode", false, "Store the key unencrypted (local development only)")
	flag.Parse()
	if *showVersion {
		fmt.Printf("walletd version=%s commit=%s build_date=%s\n", version, commit, buildDate)
		return
	}

	cfg := config.LoadFromPath(*configPath)
	if *rpcAddr != "" {
		cfg.RPC.Addr = *rpcAddr
	}
	if *dataDir != "" {
		cfg.Storage.DataDir = *dataDir
	}
	if *demoMode {
		cfg.Custody.DemoMode = true
	}

	logger := slog.New(privacylog.WrapHandler(slog.NewJSONHandler(os.Stderr, nil)))
	slog.SetDefault(logger)

	kv, err := kvstore.OpenFile(filepath.Join(cfg.Storage.DataDir, "wallet.json"))
	if err != nil {
		log.Fatalf("walletd failed to open wallet store: %v", err)
	}

	opts := []custody.Option{
		custody.WithLogger(logger),
		custody.WithMetrics(prometheus.DefaultRegisterer),
	}
	if cfg.Custody.DemoMode {
		logger.Warn("demo mode enabled, wallet key is stored unencrypted")
		opts = append(opts, custody.WithPolicy(custody.PlaintextDemoPolicy{}))
	}
	svc := custody.NewService(credstore.New(kv), opts...)

	srv := rpc.NewServer(cfg.RPC.Addr, svc,
		rpc.WithLogger(logger),
		rpc.WithToken(cfg.RPC.Token),
		rpc.WithRateLimit(cfg.RPC.RateLimitRPS, cfg.RPC.RateLimitBurst),
		rpc.WithMetricsHandler(promhttp.Handler()),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("walletd starting", slog.String("addr", cfg.RPC.Addr))
	if err := srv.Run(ctx); err != nil {
		log.Fatalf("walletd failed: %v", err)
	}
	logger.Info("walletd stopped")
}
