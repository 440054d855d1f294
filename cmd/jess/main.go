package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/vagangabrain/Optimised-jess/internal/config"
	"github.com/vagangabrain/Optimised-jess/internal/env"
	"github.com/vagangabrain/Optimised-jess/internal/logger"
	"github.com/vagangabrain/Optimised-jess/internal/predict"
	jesshttp "github.com/vagangabrain/Optimised-jess/internal/server/http"
)

func main() {
	var (
		flagConfigPath = flag.String("config", path.Join(config.DefaultConfigPath(), "config.yaml"), "Path to config file")
		flagHTTPPort   = flag.Int("http-port", 0, "HTTP port to listen on (overrides config)")
		flagURL        = flag.String("url", "", "Classify a single image URL and exit")
	)
	flag.Parse()

	environment := env.FromEnv()

	slog.SetDefault(
		logger.New(environment,
			logger.WithLogToFile(environment == env.Production),
			logger.WithLogFile("logs/jess.log"),
		),
	)

	client := newHTTPClient()

	cfg, err := config.LoadAndValidate(*flagConfigPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	predictor := predict.New(client, cfg)

	watcher, err := config.NewWatcher(*flagConfigPath, func(cfg *config.Config, err error) {
		if err != nil {
			slog.Error("Failed to reload config", "error", err)
			return
		}

		predictor.Apply(cfg)
		slog.Info("Prediction settings reloaded")
	})
	if err != nil {
		slog.Error("Failed to watch config", "error", err)
		os.Exit(1)
	}

	if *flagURL != "" {
		name, confidence, err := predictor.Predict(context.Background(), *flagURL)
		if err != nil {
			slog.Error("Prediction failed", "url", *flagURL, "error", err)
			os.Exit(1)
		}

		fmt.Printf("%s (%s)\n", name, confidence)
		return
	}

	port := watcher.Snapshot().Server.HTTPPort
	if *flagHTTPPort != 0 {
		port = *flagHTTPPort
	}

	mux := http.NewServeMux()
	api := humago.New(mux, huma.DefaultConfig("jess", "1.0.0"))
	jesshttp.NewPredictHandler(api, predictor)

	addr := fmt.Sprintf(":%d", port)
	slog.Info("Listening", "addr", addr, "config", *flagConfigPath)

	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("HTTP server failed", "error", err)
		os.Exit(1)
	}
}

// newHTTPClient builds the shared client used for artifact downloads and
// image fetches. Per-request total timeouts are applied by the callers
// through contexts; only the connect timeout lives here.
func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext:     (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
			MaxIdleConns:    100,
			IdleConnTimeout: 90 * time.Second,
		},
	}
}
