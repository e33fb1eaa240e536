package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"

	"quick-chat/api"
	"quick-chat/auth"
	"quick-chat/hub"
	"quick-chat/internal"
	"quick-chat/repositories"
	"quick-chat/runtime/workers"
	"quick-chat/search"
	"quick-chat/services"
	"quick-chat/transport"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// Thin wrapper: call run() and translate its outcome into an OS exit
	// code, so every defer in run() executes before the process dies.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	logger := internal.LoggerFromString(config.LogLevel)
	ctx := context.Background()

	// 2. Database (BadgerDB)
	db, err := badger.Open(buildBadgerOpts(config, logger, ctx))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	blugeWriter, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to open bluge writer: %w", err)
	}
	defer func() {
		logger.Info("Closing Bluge...")
		_ = blugeWriter.Close()
	}()

	// 3. Repositories & directory index
	userRepository, err := repositories.NewUserRepository(db)
	if err != nil {
		return exitRuntime, fmt.Errorf("user repository init failed: %w", err)
	}
	defer func() { _ = userRepository.Close() }()

	chatRepository, err := repositories.NewChatRepository(db)
	if err != nil {
		return exitRuntime, fmt.Errorf("chat repository init failed: %w", err)
	}
	defer func() { _ = chatRepository.Close() }()

	messageRepository, err := repositories.NewMessageRepository(db, logger)
	if err != nil {
		return exitRuntime, fmt.Errorf("message repository init failed: %w", err)
	}
	defer func() { _ = messageRepository.Close() }()

	userIndex := search.NewUserIndex(logger, blugeWriter)

	// 4. Hub assembly
	registry := hub.NewRegistry()
	broadcaster := hub.NewBroadcaster(logger, registry, config.DeliveryTimeout)
	presence := hub.NewPresenceTracker(logger, registry, userRepository, broadcaster)
	chatHub := hub.NewHub(logger, registry, broadcaster, presence,
		chatRepository, messageRepository, userRepository)

	if logger.Enabled(ctx, slog.LevelDebug) {
		endpoint := "/inspect"
		logger.Info("Debug Badger inspector available",
			"url", fmt.Sprintf("http://localhost:%d%s", config.DebugPort, endpoint))
		internal.StartDebugServer(db, config.DebugPort, endpoint, internal.DefaultMapper, func() map[string]any {
			connections, users, groups := registry.Stats()
			return map[string]any{
				"connections": connections,
				"users":       users,
				"groups":      groups,
			}
		})
	}

	// 5. Services & HTTP surface
	tokens := auth.NewTokenManager(config.JWTSecret, config.AuthTokenDuration)
	authService := services.NewAuthService(logger, userRepository, tokens, userIndex)
	chatService := services.NewChatService(chatRepository, messageRepository, userRepository)
	directoryService := services.NewDirectoryService(userRepository, userIndex)
	wsHandler := transport.NewHandler(logger, chatHub, broadcaster, config.ConnectionBufferSize)

	router := api.NewRouter(logger, tokens, authService, chatService,
		directoryService, chatHub, broadcaster, userRepository, wsHandler, config.HistoryPageSize)

	// 6. Context & Signals
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 2)

	// 7. Background workers
	sup := workers.NewSupervisor(logger)
	sup.Add(
		workers.NewIndexerWorker(logger, userRepository, userIndex),
		workers.NewTelemetryWorker(logger, config.MetricInterval, registry),
	)
	go sup.Run(ctx)

	// 8. HTTP server
	address := config.Host + ":" + strconv.Itoa(config.Port)
	server := &http.Server{
		Addr:              address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 9. Wait for Stop or Error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		return exitRuntime, err
	}

	// 10. Final Cleanup (Graceful Shutdown)
	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", "error", err)
	}
	sup.Stop()
	logger.Info("Program stopped cleanly")

	return exitOK, nil
}

func buildBadgerOpts(config internal.Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)

	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG).
			WithBypassLockGuard(true)
	} else {
		options = options.WithLoggingLevel(badger.INFO)
	}

	return options
}
