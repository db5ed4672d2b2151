// Polymirror — a copy-trading bot for Polymarket binary prediction markets.
//
// Architecture:
//
//	main.go             — entry point: loads config, starts engine, waits for SIGINT/SIGTERM
//	mirror/engine.go    — orchestrator: wires feeds → dedup ledger → policy → order placement
//	mirror/ledger.go    — fill dedup with FIFO eviction, shared by all feeds
//	mirror/policy.go    — pure pricing/sizing: fill → aggressive-limit mirror order
//	feed/chain.go       — scans the CTF exchange contract for the target's OrderFilled logs
//	feed/poller.go      — polls the Data-API for the target's recent trades
//	feed/push.go        — user WebSocket channel with auto-reconnect
//	feed/normalize.go   — reduces all three transports to one FillEvent shape
//	exchange/client.go  — REST client for the Polymarket CLOB API (sign + place orders)
//	exchange/auth.go    — L1 (EIP-712), L2 (HMAC), and CTF order signing
//	dataapi/client.go   — read-only Data-API client (trades, activity)
//	wallet/             — key custody, USDC balance, commission transfers
//	store/store.go      — JSON receipt journal (what was mirrored, skipped, failed)
//
// What it does:
//
//	Given a target wallet, the bot watches that wallet's fills through up to
//	three independent feeds, deduplicates them, and re-places each fill as an
//	aggressive limit order from its own wallet, scaled by a percentage or a
//	fixed size. Starting a session never replays the target's history: the
//	current trade page is marked seen before the first mirror order goes out.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/joho/godotenv"

	"polymirror/internal/config"
	"polymirror/internal/dataapi"
	"polymirror/internal/exchange"
	"polymirror/internal/mirror"
	"polymirror/internal/store"
	"polymirror/internal/wallet"
)

func main() {
	// Secrets come from .env in development; ignore absence in production.
	_ = godotenv.Load()

	cfgPath := "configs/config.yaml"
	if p := os.Getenv("POLY_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// Set up logger
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	ctx := context.Background()

	auth, err := exchange.NewAuth(*cfg)
	if err != nil {
		logger.Error("failed to set up wallet auth", "error", err)
		os.Exit(1)
	}
	client := exchange.NewClient(*cfg, auth, logger)

	// L2 credentials can be configured or derived from the wallet.
	if !auth.HasL2Credentials() && !cfg.DryRun {
		if _, err := client.DeriveAPIKey(ctx); err != nil {
			logger.Error("failed to derive API key", "error", err)
			os.Exit(1)
		}
	}

	deps := mirror.Deps{
		Placer: client,
		WSAuth: auth.WSAuthPayload(),
	}

	if cfg.API.DataAPIURL != "" {
		deps.Trades = dataapi.NewClient(cfg.API.DataAPIURL, logger)
	}

	if cfg.API.RPCURL != "" {
		rpc, err := ethclient.DialContext(ctx, cfg.API.RPCURL)
		if err != nil {
			logger.Error("failed to connect to RPC", "error", err, "url", cfg.API.RPCURL)
			os.Exit(1)
		}
		defer rpc.Close()
		deps.Chain = rpc

		w, err := wallet.New(cfg.Wallet.PrivateKey, rpc, int64(cfg.Wallet.ChainID), cfg.Feeds.USDCAddress)
		if err != nil {
			logger.Error("failed to set up wallet", "error", err)
			os.Exit(1)
		}
		deps.Payer = w

		usdc, uerr := w.USDCBalance(ctx)
		native, nerr := w.NativeBalance(ctx)
		if uerr == nil && nerr == nil {
			logger.Info("wallet ready", "address", w.Address().Hex(), "usdc", usdc, "pol", native)
		}
	}

	journal, err := store.Open(cfg.Store.DataDir)
	if err != nil {
		logger.Error("failed to open receipt store", "error", err)
		os.Exit(1)
	}
	defer journal.Close()
	deps.Receipts = journal

	eng := mirror.NewEngine(*cfg, deps, logger)
	if err := eng.Start(ctx); err != nil {
		logger.Error("failed to start mirror session", "error", err)
		os.Exit(1)
	}

	if cfg.DryRun {
		logger.Warn("DRY-RUN MODE — no real orders will be placed")
	}

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	eng.Stop()
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
