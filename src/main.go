package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"RideLens/src/config"
	"RideLens/src/datapush"
	"RideLens/src/dataset"
	"RideLens/src/datasource/email"
	"RideLens/src/datasource/file"
	"RideLens/src/processor"
	"RideLens/src/server"
	"RideLens/src/storage"

	"github.com/robfig/cron"
)

func main() {
	jsonFolder := "./config"
	jsonFile := "config.json"
	columnsFile := "columns.json"
	cfg, cols, err := config.LoadConfig(jsonFolder, jsonFile, columnsFile)
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	logger, err := storage.NewLogger(cfg.LogName)
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}

	store, err := dataset.Load(cfg, cols)
	if err != nil {
		logger.Fatal("Failed to load dataset: " + err.Error())
		logger.Close()
		os.Exit(1)
	}
	logger.Info(fmt.Sprintf("Dataset loaded: %s (%d rows)", store.Path(), store.Frame().Nrow()))

	if cfg.Data.Watch {
		monitor, err := file.NewFileMonitor(cfg.Data.Dir, cfg.Data.File)
		if err != nil {
			logger.Error("Failed to start file monitor: " + err.Error())
		} else {
			go watchDatasetFile(monitor, store, logger)
		}
	}

	c := cron.New()

	if cfg.Email.Enabled {
		emailClient := email.NewEmailClient(
			cfg.Email.Server,
			cfg.Email.Username,
			cfg.Email.Password)
		handler := email.NewDatasetAttachmentHandler(cfg.Email.TargetSubject, cfg.Data.Dir, cfg.Data.File)

		interval := time.Duration(cfg.Email.CheckInterval).String()
		cronSpec := fmt.Sprintf("@every %s", interval)
		err = c.AddFunc(cronSpec, func() {
			logger.Info(fmt.Sprintf("Checking mailbox for dataset updates (interval: %v)...", interval))

			t1 := time.Now()
			newEmail, err := email.CheckAndProcessEmails(emailClient, cfg.Email.TargetSubject, logger)
			if err != nil {
				logger.Error("Mailbox check failed: " + err.Error())
				return
			}
			if newEmail == nil {
				return
			}

			if err := handler.Handle(newEmail, logger); err != nil {
				logger.Error(fmt.Sprintf("Failed to save attachment (UID:%d): %v", newEmail.UID, err))
				return
			}
			if err := store.Reload(); err != nil {
				logger.Error("Failed to reload dataset after mail update: " + err.Error())
				return
			}
			logger.Info(fmt.Sprintf("Dataset refreshed from mail in %v (%d rows)", time.Since(t1), store.Frame().Nrow()))
		})
		if err != nil {
			logger.Error("Failed to schedule mailbox check: " + err.Error())
			return
		}
	}

	if cfg.Push.Enabled {
		pusher := datapush.NewWebhookPusher(cfg.Push.WebhookURL)
		interval := time.Duration(cfg.Push.Interval).String()
		err = c.AddFunc(fmt.Sprintf("@every %s", interval), func() {
			m := processor.CalculateRideMetrics(store.Frame(), cols)
			if err := pusher.PushDailySummary(m, time.Now()); err != nil {
				logger.Error("Failed to push summary: " + err.Error())
				return
			}
			logger.Info("Pushed ride summary to webhook")
		})
		if err != nil {
			logger.Error("Failed to schedule summary push: " + err.Error())
			return
		}
	}

	// keep the log file bounded
	err = c.AddFunc("@every 1h", func() {
		if err := logger.CheckRotate(cfg.LogMaxSize); err != nil {
			logger.Error("Log rotation failed: " + err.Error())
		}
	})
	if err != nil {
		logger.Error("Failed to schedule log rotation: " + err.Error())
		return
	}

	c.Start()
	defer c.Stop()

	h := server.NewHandler(store, cols, logger)
	router := server.NewRouter(h, "./web")
	go func() {
		logger.Info("Dashboard listening on " + cfg.Server.Addr)
		if err := router.Run(cfg.Server.Addr); err != nil {
			logger.Fatal("HTTP server stopped: " + err.Error())
			os.Exit(1)
		}
	}()

	waitForShutdown(logger)
}

func watchDatasetFile(monitor *file.FileMonitor, store *dataset.Store, logger *storage.Logger) {
	defer monitor.Close()
	err := monitor.Watch(func(filePath string) {
		if err := store.Reload(); err != nil {
			logger.Error("Failed to reload dataset: " + err.Error())
			return
		}
		logger.Info(fmt.Sprintf("Dataset file changed, reloaded: %s (%d rows)", filePath, store.Frame().Nrow()))
	})
	if err != nil {
		logger.Error("File monitoring error: " + err.Error())
	}
}

func waitForShutdown(logger *storage.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	logger.Info("Received signal: " + sig.String() + ", shutting down...")
	logger.Close()
	os.Exit(0)
}
