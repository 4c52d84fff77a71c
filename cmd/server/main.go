package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/garyjia/sheet-import/internal/cellvalue"
	"github.com/garyjia/sheet-import/internal/config"
	"github.com/garyjia/sheet-import/internal/ingest"
	apihttp "github.com/garyjia/sheet-import/internal/interfaces/http"
	"github.com/garyjia/sheet-import/internal/lark"
	"github.com/garyjia/sheet-import/internal/parser"
	"github.com/garyjia/sheet-import/internal/repository"
	"github.com/garyjia/sheet-import/internal/storage"
	"github.com/garyjia/sheet-import/internal/token"
	"github.com/garyjia/sheet-import/internal/worker"
	"github.com/garyjia/sheet-import/pkg/database"
	"github.com/garyjia/sheet-import/pkg/utils"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML config file, empty for env only")
	flag.Parse()

	if *configPath != "" {
		if _, err := os.Stat(*configPath); os.IsNotExist(err) {
			*configPath = ""
		}
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
		Service:    "sheet-import",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server exited with error", zap.Error(err))
	}
	logger.Info("Server exited successfully")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting sheet import service",
		zap.String("addr", cfg.Server.Addr()),
		zap.String("storage", cfg.Storage.RootDir))

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	migrator := database.NewMigrator(db, logger)
	if cfg.Database.MigrationsDir != "" {
		err = migrator.RunMigrations(ctx, cfg.Database.MigrationsDir)
	} else {
		err = migrator.Run(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	codec, err := token.NewCodec(cfg.Token.SecretKey)
	if err != nil {
		return fmt.Errorf("failed to initialize token codec: %w", err)
	}

	fileRepo := repository.NewFileRepository(db.DB, logger)
	store, err := storage.NewFileStore(storage.Config{
		RootDir:       cfg.Storage.RootDir,
		UserFileLimit: cfg.Storage.UserFileLimit,
		MaxFileSize:   cfg.Storage.MaxFileSize,
	}, codec, fileRepo, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize file store: %w", err)
	}

	sheetParser := parser.New(parser.Config{ImageWorkers: cfg.Parser.ImageWorkers}, store.Disk(), logger.Named("parser"))

	var ingestService *ingest.Service
	if cfg.Lark.Enabled() {
		larkClient := lark.NewClient(lark.Config{
			AppID:      cfg.Lark.AppID,
			AppSecret:  cfg.Lark.AppSecret,
			BaseURL:    cfg.Lark.BaseURL,
			Timeout:    cfg.Lark.APITimeout,
			PageSize:   cfg.Lark.PageSize,
			MaxRetries: cfg.Lark.MaxRetries,
		}, logger.Named("lark"))

		uploaders := func(appToken string) cellvalue.Uploader {
			return lark.NewUploader(larkClient, appToken, cfg.Lark.MaxRetries, logger.Named("lark"))
		}
		ingestService = ingest.NewService(
			sheetParser,
			cellvalue.DefaultRegistry(),
			lark.NewBitableAPI(larkClient, logger.Named("lark")),
			uploaders,
			&http.Client{Timeout: cfg.Lark.APITimeout},
			logger.Named("ingest"),
		)
	} else {
		logger.Warn("Lark credentials not configured, translate route disabled")
	}

	workers := worker.NewManager(logger)
	workers.Register(worker.NewExpirySweeper(fileRepo, store, worker.SweeperConfig{
		TTL:       cfg.Storage.FileTTL,
		Interval:  cfg.Storage.SweepInterval,
		BatchSize: cfg.Storage.SweepBatch,
	}, logger))
	if err := workers.StartAll(ctx); err != nil {
		return fmt.Errorf("failed to start workers: %w", err)
	}
	defer workers.StopAll()

	server := apihttp.NewServer(apihttp.ServerConfig{
		Addr:            cfg.Server.Addr(),
		Mode:            cfg.Server.Mode,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		MaxChunkSize:    cfg.Server.MaxChunkSize,
	}, apihttp.Deps{
		Store:  store,
		Codec:  codec,
		Parser: sheetParser,
		Ingest: ingestService,
	}, logger)

	// blocks until a signal arrives or the listener fails
	return server.Start(ctx)
}
