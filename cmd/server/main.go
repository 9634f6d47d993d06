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

	"github.com/Brownie44l1/xray-detect/internal/artifacts"
	"github.com/Brownie44l1/xray-detect/internal/config"
	"github.com/Brownie44l1/xray-detect/internal/handlers"
	"github.com/Brownie44l1/xray-detect/internal/logging"
	"github.com/Brownie44l1/xray-detect/internal/model"
	"github.com/Brownie44l1/xray-detect/internal/session"
	"github.com/labstack/echo/v4"
	"github.com/rcrowley/go-metrics"
)

func main() {
	cfg, err := config.Load(os.Getenv("XRAY_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(os.Stderr, cfg.Log.Level)

	names, err := artifacts.EnumerateModels(cfg.Models.Root)
	if err != nil {
		logger.Error("Failed to read model root", "root", cfg.Models.Root, "error", err)
		os.Exit(1)
	}

	onnxLoader := model.NewONNXLoader(model.ONNXOptions{
		LibraryPath: cfg.ONNX.LibraryPath,
		InputName:   cfg.ONNX.InputName,
		OutputName:  cfg.ONNX.OutputName,
	}, logger)
	defer func() {
		if err := onnxLoader.Close(); err != nil {
			logger.Warn("Failed to close ONNX environment", "error", err)
		}
	}()

	loader := model.NewCachingLoader(onnxLoader, cfg.CacheTTL(), logger)
	defer loader.Stop()

	sessions := session.NewStore(cfg.SessionTTL())

	registry := metrics.NewRegistry()
	metrics.NewRegisteredFunctionalGauge("sessions.active", registry, func() int64 {
		return int64(sessions.Count())
	})
	metrics.NewRegisteredFunctionalGauge("classifiers.cached", registry, func() int64 {
		return int64(loader.Len())
	})

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	handlers.New(handlers.Options{
		Root:           cfg.Models.Root,
		Loader:         loader,
		Sessions:       sessions,
		Registry:       registry,
		Logger:         logger,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
	}).Register(e)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)

	logger.Info("Server starting", "addr", addr, "root", cfg.Models.Root, "models", names)
	logger.Info("Endpoints:")
	logger.Info("  GET  /                                  - Dashboard")
	logger.Info("  GET  /health                            - Health check")
	logger.Info("  GET  /metrics                           - Prediction metrics")
	logger.Info("  GET  /api/models                        - List models")
	logger.Info("  GET  /api/models/:name                  - Report and artifacts")
	logger.Info("  POST /api/models/:name/predict          - Predict from image upload")
	logger.Info("  POST /api/models/:name/predict/vector   - Raw array prediction")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown failed", "error", err)
	}
}
