package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eito54/grosoq/internal/adapters/http/api"
	"github.com/eito54/grosoq/internal/adapters/ocr"
	"github.com/eito54/grosoq/internal/adapters/repository"
	app "github.com/eito54/grosoq/internal/app"
	"github.com/eito54/grosoq/internal/config"
	"github.com/eito54/grosoq/internal/domain/model"
	"github.com/eito54/grosoq/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout       = 30 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
	writeSlack        = 10 * time.Second
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (.env -> defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// Use stderr for initialization errors since logger isn't available yet
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.InitWithFormat(cfg.LogFormat); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()
	loggerInstance := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	svc, err := buildService(ctx, cfg, loggerInstance)
	if err != nil {
		loggerInstance.Error(ctx, "failed to start service", logger.Error(err))
		os.Exit(1)
	}
	defer svc.Stop()

	srv := newHTTPServer(ctx, cfg, svc, loggerInstance)

	// Start the HTTP server
	go func() {
		loggerInstance.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			loggerInstance.Error(ctx, "HTTP server failed", logger.Error(err))
			stop()
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	loggerInstance.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		loggerInstance.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	loggerInstance.Info(ctx, "server stopped")
}

// buildService opens the configured store and starts the score service.
func buildService(ctx context.Context, cfg *config.Config, l logger.Logger) (*app.Service, error) {
	store, err := repository.Open(cfg.StoreBackend, cfg.DataDir, repository.WithLogger(l.Named("store")))
	if err != nil {
		return nil, err
	}

	if cfg.OCRAPIKey == "" {
		l.Warn(ctx, "ocr_api_key is empty; analyses will fail until it is set")
	}
	recognizer := ocr.NewClient(ocr.Config{
		APIKey:            cfg.OCRAPIKey,
		BaseURL:           cfg.OCRBaseURL,
		Model:             cfg.OCRModel,
		Referer:           cfg.OCRReferer,
		Title:             cfg.OCRTitle,
		Timeout:           cfg.OCRTimeout(),
		MaxRetries:        cfg.OCRMaxRetries,
		RequestsPerMinute: cfg.OCRRequestsPerMinute,
	}, ocr.WithLogger(l.Named("ocr")))

	notify := func(ctx context.Context, ledger model.Ledger, mode model.Mode) {
		l.Info(ctx, "scores updated", logger.String("mode", mode.String()), logger.Int("teams", len(ledger)))
	}

	svc := app.New(
		app.WithLogger(l.Named("service")),
		app.WithStore(store),
		app.WithRecognizer(recognizer),
		app.WithCacheTTL(cfg.CacheTTL()),
		app.WithPinnedTeam(cfg.PinnedTeam),
		app.WithNotifier(notify),
	)
	if err := svc.Start(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return svc, nil
}

// newHTTPServer registers the API routes for svc.
func newHTTPServer(ctx context.Context, cfg *config.Config, svc *app.Service, l logger.Logger) *http.Server {
	mux := http.NewServeMux()
	api.NewServer(svc, svc,
		api.WithMaxUploadBytes(cfg.MaxUploadBytes),
		api.WithLogger(l.Named("http")),
	).Register(ctx, mux)

	// An analysis may wait out every retry of the model call.
	writeTimeout := cfg.OCRTimeout()*time.Duration(cfg.OCRMaxRetries+1) + writeSlack

	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}
