package main

import (
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"quickbite/internal/config"
	"quickbite/internal/http/handlers"
	applog "quickbite/internal/log"
	"quickbite/internal/realtime"
	"quickbite/internal/repos"
	"quickbite/web"
)

func main() {
	cfg := config.Load()
	applog.SetLevel(cfg.LogLevel)

	// Optional file logging
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			applog.L().Warn("could not open log file", zap.String("path", cfg.LogFile), zap.Error(err))
		} else {
			defer f.Close()
			applog.SetOutput(io.MultiWriter(os.Stdout, f))
		}
	}
	logger := applog.L()
	logger.Info("config loaded", cfg.LogFields()...)

	db, err := repos.OpenDB(cfg.DBDSN)
	if err != nil {
		logger.Fatal("open database", zap.Error(err))
	}
	defer db.Close()

	hub := realtime.NewHub()
	var mirrors []realtime.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		kp := realtime.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer func() {
			if err := kp.Close(); err != nil {
				logger.Warn("kafka writer close", zap.Error(err))
			}
		}()
		mirrors = append(mirrors, kp)
		logger.Info("mirroring events to kafka", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}

	deps := handlers.NewDeps(db, cfg, hub, mirrors...)
	app := handlers.NewApp(deps, handlers.AppOptions{
		Views:        web.Engine(),
		Limits:       handlers.DefaultLimits(),
		CookieSecure: cfg.CookieSecure,
		AccessLog:    true,
	})

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		logger.Info("shutting down")
		if err := app.Shutdown(); err != nil {
			logger.Warn("shutdown", zap.Error(err))
		}
	}()

	logger.Info("listening", zap.String("port", cfg.Port))
	if err := app.Listen(":" + cfg.Port); err != nil {
		logger.Error("server stopped", zap.Error(err))
	}
}
