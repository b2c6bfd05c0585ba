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

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"mailwatch/internal/config"
	"mailwatch/internal/handlers"
	"mailwatch/internal/monitor"
	"mailwatch/internal/services/decoder"
	"mailwatch/internal/services/email"
	"mailwatch/internal/services/filter"
	"mailwatch/internal/services/notify"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the configuration file")
	flag.Parse()

	// Bootstrap logger for errors raised before the log file is known.
	bootstrap, _ := zap.NewProduction()

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootstrap.Fatal("Failed to load config", zap.Error(err))
	}

	logger, err := newLogger(cfg.Logging.File)
	if err != nil {
		bootstrap.Fatal("Failed to open log file", zap.Error(err))
	}
	defer func(logger *zap.Logger) {
		_ = logger.Sync() // Ignore sync errors for stdout/stderr
	}(logger)

	// Initialize services
	imapClient := email.NewClient(cfg.Email, cfg.Retry, logger)
	dec := decoder.New(logger)
	engine := filter.New(cfg.Filters, logger)
	dispatcher := notify.NewDispatcher(cfg.Notifications, logger)

	mon := monitor.New(monitor.NewIMAPConnector(imapClient), dec, engine, dispatcher, cfg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var srv *http.Server
	if cfg.Server.Enabled {
		router := mux.NewRouter()
		handlers.NewStatusHandler(mon, logger).Register(router)

		srv = &http.Server{
			Addr:         cfg.Server.Address,
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		}

		go func() {
			logger.Info("Starting status server", zap.String("address", cfg.Server.Address))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Status server failed", zap.Error(err))
			}
		}()
	}

	runErr := mon.Run(ctx)

	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Status server shutdown failed", zap.Error(err))
		}
	}

	// Best-effort drain: give in-flight notifications a moment, then
	// abandon whatever is still running.
	drained := make(chan struct{})
	go func() {
		dispatcher.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(5 * time.Second):
		logger.Warn("Abandoning in-flight notifications")
	}

	if runErr != nil {
		logger.Error("Exiting after fatal error", zap.Error(runErr))
		_ = logger.Sync()
		os.Exit(1)
	}

	logger.Info("Monitor exited")
}

// newLogger tees structured logs to the given file and to stdout.
func newLogger(path string) (*zap.Logger, error) {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logFile, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}

	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(logFile), zap.InfoLevel),
		zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.AddSync(os.Stdout), zap.InfoLevel),
	)

	return zap.New(core), nil
}
