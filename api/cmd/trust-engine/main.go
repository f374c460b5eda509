package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"trust-engine/api/internal/config"
	"trust-engine/api/internal/fusion"
	"trust-engine/api/internal/handle"
	"trust-engine/api/internal/httpserver"
	"trust-engine/api/internal/logger"
	"trust-engine/api/internal/metrics"
	"trust-engine/api/internal/moderation"
	"trust-engine/api/internal/moderation/gemini"
	"trust-engine/api/internal/notify"
	"trust-engine/api/internal/ocr"
	"trust-engine/api/internal/ocr/vision"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("trust-engine stopped", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	vis, err := vision.New(ctx, cfg.Vision.APIKey, cfg.Vision.Endpoint)
	if err != nil {
		return err
	}
	gem, err := gemini.New(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
	if err != nil {
		return err
	}
	defer func() { _ = gem.Close() }()

	deps := fusion.Deps{
		Extractor: ocr.NewAdapter(vis),
		Moderator: moderation.New(gem, log.Named("moderation")),
		Metrics:   m,
		Logger:    log.Named("fusion"),
	}
	tg, err := notify.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.AdminChatID)
	if err != nil {
		return err
	}
	if tg != nil {
		deps.Notifier = tg
	} else {
		log.Info("telegram admin alerts disabled")
	}
	svc := fusion.New(deps)

	h := handle.New(svc, handle.Options{
		Timeout:      cfg.Request.Timeout,
		MaxBodyBytes: cfg.Request.MaxBodyBytes,
		ImageDir:     cfg.Request.ImageDir,
		Logger:       log.Named("http"),
	})
	srv := httpserver.New(cfg.Addr(), httpserver.NewRouter(h, reg, log.Named("http")))

	errc := make(chan error, 1)
	go func() {
		log.Info("trust-engine listening", zap.String("addr", srv.Addr), zap.String("model", gem.GetModel()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}
