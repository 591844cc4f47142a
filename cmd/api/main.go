package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/net/netutil"

	httpadapter "github.com/verilens/verilens/internal/adapters/http"
	"github.com/verilens/verilens/internal/bootstrap"
	"github.com/verilens/verilens/internal/config"
	"github.com/verilens/verilens/internal/observability/logging"
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("api", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer app.Close()

	router := httpadapter.NewRouter(app.AnalyzeUC, app.ResultsUC, app.Metrics, httpadapter.Config{
		RateLimitRPS:       cfg.APIRatePerSecond,
		RateLimitBurst:     cfg.APIRateBurst,
		MaxConcurrent:      cfg.APIMaxConnections,
		MaxUploadBytes:     cfg.MaxUploadBytes,
		HistoryDefaultSize: cfg.HistoryDefaultSize,
	}).Handler()

	server := &http.Server{
		Handler: router,
		// Analysis requests hold the connection through two model passes.
		ReadTimeout:  2 * time.Minute,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	listener, err := net.Listen("tcp", ":"+cfg.APIPort)
	if err != nil {
		logger.Error("listen failed", slog.String("port", cfg.APIPort), slog.Any("error", err))
		os.Exit(1)
	}
	listener = netutil.LimitListener(listener, cfg.APIMaxConnections)

	go func() {
		logger.Info("api listening", slog.String("port", cfg.APIPort))
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api shutdown failed", slog.Any("error", err))
	}
}
