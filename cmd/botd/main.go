package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"volume-bot-go/internal/api"
	"volume-bot-go/internal/config"
	"volume-bot-go/internal/engine"
	"volume-bot-go/internal/logger"
	"volume-bot-go/internal/models"
	"volume-bot-go/internal/reporter"
	"volume-bot-go/internal/store"
)

// reconcileInterval is how often persisted state is checked for zombie bots.
const reconcileInterval = time.Minute

func main() {
	configPath := flag.String("config", "config.json", "path to the config file")
	autostart := flag.Bool("autostart", false, "start every idle or stopped bot after boot")
	flag.Parse()

	// A default console logger covers the window before the config is
	// loaded.
	logger.InitLogger(models.LogConfig{Level: "info", Output: "console"})

	if err := godotenv.Load(); err != nil {
		logger.S().Info("no .env file found, reading from system environment")
	} else {
		logger.S().Info("loaded environment from .env")
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.S().Fatalf("loading config: %v", err)
	}

	logger.InitLogger(cfg.LogConfig)
	defer logger.S().Sync()

	if addr := os.Getenv("LISTEN_ADDR"); addr != "" {
		cfg.ListenAddr = addr
	}

	repo, err := store.NewBadgerStore(cfg.DBPath)
	if err != nil {
		logger.S().Fatalf("opening database at %s: %v", cfg.DBPath, err)
	}
	defer repo.Close()

	manager := engine.NewManager(repo, engine.Options{
		StopTimeout: time.Duration(cfg.StopTimeout) * time.Second,
		Log:         logger.S(),
	})

	// Bots persisted as running belong to a previous process and can no
	// longer have a live loop.
	if err := manager.Reconcile(); err != nil {
		logger.S().Fatalf("reconciling persisted state: %v", err)
	}
	if cfg.ReconcileOnly {
		logger.S().Info("reconcile finished, exiting")
		return
	}

	importBots(repo, cfg.Bots)

	if *autostart {
		startAll(manager, repo)
	}

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: api.NewServer(manager, repo, logger.S()).Handler(),
	}
	go func() {
		logger.S().Infow("control api listening", "addr", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.S().Fatalf("http server: %v", err)
		}
	}()

	reconcileTicker := time.NewTicker(reconcileInterval)
	defer reconcileTicker.Stop()
	go func() {
		for range reconcileTicker.C {
			if err := manager.Reconcile(); err != nil {
				logger.S().Errorw("periodic reconcile failed", "error", err)
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.S().Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.S().Warnw("http shutdown", "error", err)
	}

	manager.Shutdown()

	if err := reporter.PrintSummary(repo); err != nil {
		logger.S().Warnw("printing summary", "error", err)
	}
	logger.S().Info("all bots stopped, state saved")
}

// importBots loads bot definition files named in the config. Definitions
// carrying a known id update the stored copy; new ones are created idle with
// their full volume.
func importBots(repo store.Repository, paths []string) {
	for _, path := range paths {
		bot, err := config.LoadBotConfig(path)
		if err != nil {
			logger.S().Errorw("loading bot definition", "path", path, "error", err)
			continue
		}

		if bot.ID == "" {
			bot.ID = uuid.NewString()
			bot.Status = models.StatusIdle
			bot.RemainingVolume = bot.TotalOrderVolume
			bot.CreatedAt = time.Now()
		} else if existing, err := repo.GetBot(bot.ID); err == nil {
			// Keep the live progress; the file only refreshes parameters.
			bot.Status = existing.Status
			bot.RemainingVolume = existing.RemainingVolume
			bot.CompletedVolume = existing.CompletedVolume
			bot.TotalOrders = existing.TotalOrders
			bot.SuccessfulOrders = existing.SuccessfulOrders
			bot.CreatedAt = existing.CreatedAt
		} else {
			bot.Status = models.StatusIdle
			bot.RemainingVolume = bot.TotalOrderVolume
			bot.CreatedAt = time.Now()
		}

		if err := repo.SaveBot(bot); err != nil {
			logger.S().Errorw("saving bot definition", "path", path, "error", err)
			continue
		}
		logger.S().Infow("bot definition imported", "path", path, "bot_id", bot.ID, "symbol", bot.Symbol)
	}
}

func startAll(manager *engine.Manager, repo store.Repository) {
	bots, err := repo.ListBots()
	if err != nil {
		logger.S().Errorw("listing bots for autostart", "error", err)
		return
	}
	for _, bot := range bots {
		if bot.Status.Terminal() {
			continue
		}
		if err := manager.Start(bot.ID); err != nil {
			logger.S().Warnw("autostart failed", "bot_id", bot.ID, "error", err)
		}
	}
}
