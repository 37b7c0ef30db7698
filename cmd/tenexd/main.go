// Command tenexd is the Nostr Integration Runtime daemon: it owns the
// relay worker, the event store, and the application data store, and
// exposes them over the JSON-RPC-over-Unix-socket control channel and
// the OpenAI-compatible HTTP API described in spec §6.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"github.com/tenex-chat/tenexd/internal/buildinfo"
	"github.com/tenex-chat/tenexd/internal/bus"
	"github.com/tenex-chat/tenexd/internal/config"
	"github.com/tenex-chat/tenexd/internal/datastore"
	"github.com/tenex-chat/tenexd/internal/eventstore"
	"github.com/tenex-chat/tenexd/internal/httpapi"
	"github.com/tenex-chat/tenexd/internal/preferences"
	"github.com/tenex-chat/tenexd/internal/relayworker"
	"github.com/tenex-chat/tenexd/internal/rpcserver"
	"github.com/tenex-chat/tenexd/internal/runtime"
	"github.com/tenex-chat/tenexd/internal/streambridge"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	if flag.NArg() > 0 {
		switch flag.Arg(0) {
		case "serve":
			runServe(logger, *configPath)
		case "init":
			dir := "."
			if flag.NArg() > 1 {
				dir = flag.Arg(1)
			}
			if err := runInit(os.Stdout, dir); err != nil {
				fmt.Fprintf(os.Stderr, "init failed: %v\n", err)
				os.Exit(1)
			}
		case "version":
			fmt.Println(buildinfo.String())
			for k, v := range buildinfo.BuildInfo() {
				fmt.Printf("  %-12s %s\n", k+":", v)
			}
		default:
			fmt.Fprintf(os.Stderr, "unknown command: %s\n", flag.Arg(0))
			os.Exit(1)
		}
		return
	}

	fmt.Println("tenexd - Nostr Integration Runtime")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve    Start the relay worker, JSON-RPC socket, and HTTP API")
	fmt.Println("  init     Write a default config.yaml and data directory")
	fmt.Println("  version  Show version")
	fmt.Println()
	fmt.Println("Flags:")
	flag.PrintDefaults()
}

func runServe(logger *slog.Logger, configPath string) {
	logger.Info("starting tenexd", "version", buildinfo.Version, "commit", buildinfo.GitCommit, "branch", buildinfo.GitBranch, "built", buildinfo.BuildTime)

	cfgPath, err := config.FindConfig(configPath)
	var cfg *config.Config
	if err != nil {
		logger.Warn("no config file found, using defaults", "error", err)
		cfg = config.Default()
	} else {
		cfg, err = config.Load(cfgPath)
		if err != nil {
			logger.Error("failed to load config", "path", cfgPath, "error", err)
			os.Exit(1)
		}
		logger.Info("config loaded", "path", cfgPath)
	}

	if cfg.LogLevel != "" {
		level, err := config.ParseLogLevel(cfg.LogLevel)
		if err != nil {
			logger.Error("invalid log_level in config", "error", err)
			os.Exit(1)
		}
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level:       level,
			ReplaceAttr: config.ReplaceLogLevelNames,
		}))
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Error("failed to create data directory", "path", cfg.DataDir, "error", err)
		os.Exit(1)
	}

	pidPath := filepath.Join(cfg.DataDir, "tenexd.pid")
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		logger.Warn("failed to write pid file", "path", pidPath, "error", err)
	}
	defer os.Remove(pidPath)

	dbPath := filepath.Join(cfg.DataDir, "tenexd.db")
	store, err := eventstore.Open(dbPath)
	if err != nil {
		logger.Error("failed to open event store", "path", dbPath, "error", err)
		os.Exit(1)
	}
	defer store.Close()
	logger.Info("event store opened", "path", dbPath)

	prefs, err := preferences.Load(cfg.DataDir)
	if err != nil {
		logger.Error("failed to load preferences", "error", err)
		os.Exit(1)
	}

	dataBus := bus.NewDataBus()
	data := datastore.New(dataBus, prefs)

	if err := data.RebuildFromStore(store); err != nil {
		logger.Error("failed to rebuild application data store from event store", "error", err)
		os.Exit(1)
	}

	workerCfg := relayworker.Config{
		RelayURLs:      cfg.Relays.URLs,
		ConnectTimeout: cfg.Relays.ConnectTimeout(),
		SendTimeout:    cfg.Relays.PublishTimeout(),
	}
	worker := relayworker.New(workerCfg, store, data, dataBus, logger)

	cmdHandle, cmdCh := bus.NewCommandChannel(256)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx, cmdCh)
	}()

	coord := runtime.New(cmdHandle, store, data, logger)
	wg.Add(1)
	go func() {
		defer wg.Done()
		coord.Run(ctx)
	}()

	var loggedIn bool
	var loggedInMu sync.Mutex
	setLoggedIn := func(v bool) {
		loggedInMu.Lock()
		loggedIn = v
		loggedInMu.Unlock()
	}
	isLoggedIn := func() bool {
		loggedInMu.Lock()
		defer loggedInMu.Unlock()
		return loggedIn
	}

	if privKey, err := cfg.Identity.ResolvePrivateKey(); err != nil {
		logger.Warn("no identity configured, relay worker will not connect", "error", err)
	} else {
		pubkey, err := nostr.GetPublicKey(privKey)
		if err != nil {
			logger.Error("invalid identity private key", "error", err)
			os.Exit(1)
		}

		connectCtx, connectCancel := context.WithTimeout(ctx, cfg.Relays.ConnectTimeout())
		reply := make(chan bus.ConnectResult, 1)
		if err := cmdHandle.Send(connectCtx, bus.Connect{PrivateKeyHex: privKey, UserPubkey: pubkey, Reply: reply}); err != nil {
			logger.Error("failed to enqueue connect command", "error", err)
		} else {
			select {
			case res := <-reply:
				if res.Err != nil {
					logger.Error("relay connect failed", "error", res.Err)
				} else {
					logger.Info("connected to relays", "pubkey", pubkey)
					setLoggedIn(true)
				}
			case <-connectCtx.Done():
				logger.Warn("relay connect timed out")
			}
		}
		connectCancel()
	}

	rpcSrv := rpcserver.New(cfg.Socket.Path, data, cmdHandle, dataBus, isLoggedIn, logger)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := rpcSrv.Serve(ctx); err != nil && ctx.Err() == nil {
			logger.Error("rpc server failed", "error", err)
		}
	}()

	streamBridge := streambridge.New(cfg.Stream.Path, dataBus.Publish, logger)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := streamBridge.Serve(ctx); err != nil && ctx.Err() == nil {
			logger.Error("stream bridge failed", "error", err)
		}
	}()

	httpSrv := httpapi.New(cfg.Listen.Address, cfg.Listen.Port, data, cmdHandle, dataBus, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := coord.Shutdown(shutdownCtx); err != nil {
			logger.Warn("runtime shutdown did not complete cleanly", "error", err)
		}
		_ = httpSrv.Shutdown(shutdownCtx)
		cancel()
	}()

	logger.Info("tenexd listening", "http", fmt.Sprintf("%s:%d", cfg.Listen.Address, cfg.Listen.Port), "socket", cfg.Socket.Path)
	if err := httpSrv.Start(ctx); err != nil && ctx.Err() == nil {
		logger.Error("http server failed", "error", err)
	}

	cancel()
	wg.Wait()
	logger.Info("tenexd stopped")
}
