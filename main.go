package main

import (
	"fmt"
	"log"
	"net/http"

	"keep/internal/api"
	branchStorage "keep/internal/branch/storage"
	commitStorage "keep/internal/commit/storage"
	"keep/internal/config"
	"keep/internal/content"
	"keep/internal/engine"
	"keep/internal/logging"
	"keep/internal/middleware"
	repoStorage "keep/internal/repo/storage"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load("config.json")
	if err != nil {
		log.Fatal("failed to load config:", err)
	}

	// Initialize logger
	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to initialize logger:", err)
	}
	defer logger.Sync()

	// Re-apply the log level when the config file changes on disk
	stopWatch, err := config.Watch("config.json", func(updated *config.Config) {
		if err := logger.SetLevel(updated.LogLevel); err != nil {
			logger.Warn("invalid log level in config", zap.String("level", updated.LogLevel))
			return
		}
		logger.Info("log level updated", zap.String("level", updated.LogLevel))
	})
	if err != nil {
		logger.Fatal("failed to watch config", zap.Error(err))
	}
	defer stopWatch()

	// Initialize BadgerDB
	db, err := badger.Open(badger.DefaultOptions(cfg.Database.Path))
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	// Initialize content store
	blobStore, err := content.NewBlobStore(db, content.DefaultOptions())
	if err != nil {
		logger.Fatal("failed to initialize content store", zap.Error(err))
	}

	// Initialize domain stores
	commitStore := commitStorage.NewStore(db)
	branchStore := branchStorage.NewStore(db)
	repoStore := repoStorage.NewStore(db, commitStore, branchStore, func() string {
		return uuid.New().String()
	})

	// Initialize engine and handlers
	eng := engine.New(db, blobStore, commitStore, branchStore, repoStore, logger.Logger)
	handler := api.NewHandler(eng)

	// Set up router
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthCheck)
	handler.Register(mux)

	// Apply middleware
	chained := middleware.Chain(
		mux,
		middleware.RequestID,
		middleware.Logger(logger),
		middleware.Recover(logger),
	)

	// Start server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Info("starting server", zap.String("address", addr))

	if err := http.ListenAndServe(addr, chained); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"healthy"}`))
}
