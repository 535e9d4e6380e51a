// Package wire provides dependency injection for the courier
// application. It creates singleton services with lazy initialization.
package wire

import (
	"log"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/example/courier/internal/adapters/llm"
	"github.com/example/courier/internal/adapters/smtp"
	"github.com/example/courier/internal/adapters/sqlite"
	"github.com/example/courier/internal/adapters/toolhttp"
	"github.com/example/courier/internal/app"
	"github.com/example/courier/internal/config"
	"github.com/example/courier/internal/db"
	"github.com/example/courier/internal/ports/primary"
	"github.com/example/courier/internal/ports/secondary"
)

var (
	cfg            config.Config
	logger         *slog.Logger
	flowService    primary.FlowService
	inboundService primary.InboundService
	directoryRepo  secondary.DirectoryProvider
	once           sync.Once
)

// Config returns the loaded configuration.
func Config() config.Config {
	once.Do(initServices)
	return cfg
}

// Logger returns the singleton structured logger.
func Logger() *slog.Logger {
	once.Do(initServices)
	return logger
}

// FlowService returns the singleton FlowService instance.
func FlowService() primary.FlowService {
	once.Do(initServices)
	return flowService
}

// InboundService returns the singleton InboundService instance.
func InboundService() primary.InboundService {
	once.Do(initServices)
	return inboundService
}

// Directory returns the singleton DirectoryProvider instance.
func Directory() secondary.DirectoryProvider {
	once.Do(initServices)
	return directoryRepo
}

// initServices initializes all services and their dependencies.
// This is called once via sync.Once.
func initServices() {
	logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))

	path, err := config.DefaultPath()
	if err != nil {
		log.Fatalf("failed to locate config: %v", err)
	}
	if env := os.Getenv("COURIER_CONFIG"); env != "" {
		path = env
	}
	cfg, err = config.Load(path)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	dbPath := cfg.DB.Path
	if dbPath == "" {
		dbPath, err = db.DefaultPath()
		if err != nil {
			log.Fatalf("failed to locate database: %v", err)
		}
	}
	database, err := db.Open(dbPath)
	if err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}

	// Secondary adapters.
	flowRepo := sqlite.NewFlowRepository(database)
	directoryRepo = sqlite.NewDirectoryRepository(database)
	processedRepo := sqlite.NewProcessedMessageRepository(database)
	mailer := smtp.NewSender(smtp.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		Hostname: cfg.SMTP.Hostname,
	})
	tools := toolhttp.NewGateway(cfg.Tools.Endpoint, time.Duration(cfg.Tools.TimeoutSeconds)*time.Second)
	completer, err := llm.NewCompleter(llm.Config{
		APIKey:       cfg.LLM.APIKey,
		BaseURL:      cfg.LLM.BaseURL,
		DefaultModel: cfg.LLM.Model,
	})
	if err != nil {
		log.Fatalf("failed to initialize model client: %v", err)
	}

	// Services (primary ports implementation).
	flowService = app.NewFlowEngine(flowRepo, directoryRepo, mailer, tools, completer, logger)
	inboundService = app.NewInboundService(directoryRepo, processedRepo, app.NewRouter(flowRepo), flowService, logger)
}
