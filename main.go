package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"momoguard/internal/config"
	"momoguard/internal/detector"
	"momoguard/internal/locales"
	"momoguard/internal/message_processor"
	"momoguard/internal/ocr"
	"momoguard/internal/perm_cache"
	"momoguard/internal/repository"
	"momoguard/internal/server"
	"momoguard/internal/service"
	"momoguard/internal/telegram_bot"
)

func main() {
	hashPassword := flag.String("hash-password", "", "print the argon2id hash of the given password and exit")
	flag.Parse()

	if *hashPassword != "" {
		hash, err := service.HashPassword(*hashPassword)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	_ = godotenv.Load()

	// Load configuration
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "configs/config.yml"
	}
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync() // Flushes buffer, if any
	}()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("momoguard stopped with error", zap.Error(err))
	}
	logger.Info("Application stopped.")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	// Context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var (
		recorder message_processor.EventRecorder
		events   repository.ModerationEventRepository
	)
	if cfg.Database.URL != "" {
		db, err := repository.NewPostgresDB(cfg.Database.URL, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()

		if err := repository.MigrateDB(db, cfg.Database.MigrationsPath, logger); err != nil {
			return err
		}
		events = repository.NewModerationEventRepository(db, logger)
		recorder = events
	} else {
		logger.Info("Database URL is empty, moderation events will not be stored")
	}

	var recognizer detector.TextRecognizer
	if cfg.Detector.UseOCR {
		recognizer = ocr.NewTesseract(cfg.Detector.OCRLanguage)
	}
	screenshots, err := detector.NewDetector(cfg.Detector.UseOCR, recognizer)
	if err != nil {
		return fmt.Errorf("failed to create detector: %w", err)
	}
	logger.Info("Screenshot detector ready", zap.Bool("ocr", screenshots.OCREnabled()))

	bot, err := telegram_bot.NewBot(cfg.Telegram.Token, cfg.Telegram.PollTimeoutSeconds, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize Telegram bot: %w", err)
	}

	perms := perm_cache.NewPermCache(bot, bot.ID(), logger)
	processor := message_processor.NewProcessor(
		bot,
		perms,
		screenshots,
		locales.Translator{},
		recorder,
		logger,
		message_processor.Options{
			BanDuration:       time.Duration(cfg.Moderation.BanDurationSeconds) * time.Second,
			OCRErrorsNonFatal: cfg.Detector.OCRErrorsNonFatal,
		},
	)

	var wg sync.WaitGroup
	if cfg.Server.Enabled {
		httpLog := logrus.New()
		if level, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
			httpLog.SetLevel(level)
		}

		srv := server.NewServer(server.Deps{
			Auth:       service.NewAuthService(cfg.Server.AdminUsername, cfg.Server.AdminPasswordHash, []byte(cfg.Server.JWTSecret), logger),
			Events:     events,
			Classifier: screenshots,
			Cache:      perms,
			JWTSecret:  []byte(cfg.Server.JWTSecret),
		}, httpLog)

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Run(ctx, cfg.Server.Port); err != nil {
				logger.Error("HTTP server failed", zap.Error(err))
				cancel()
			}
		}()
	}

	err = bot.Start(ctx, processor)
	cancel()
	wg.Wait()
	return err
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Log.Development {
		return zap.NewDevelopment()
	}
	level, err := zapcore.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Log.Level, err)
	}
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}
