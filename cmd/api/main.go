package main

import (
	"log"
	"net/http"

	"go.uber.org/zap"

	"github.com/hamed0406/reconpipe/internal/config"
	"github.com/hamed0406/reconpipe/internal/httpapi"
	"github.com/hamed0406/reconpipe/internal/logging"
)

func main() {
	cfg := config.FromEnv(config.VariantResolve)
	fetch := config.FromEnv(config.VariantFetch)
	for _, c := range []config.Config{cfg, fetch} {
		if err := c.Validate(); err != nil {
			log.Fatal(err)
		}
	}
	logger, err := logging.NewLogger(logging.Options{Dir: cfg.LogDir, Level: cfg.LogLevel, Verbose: cfg.Verbose})
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	api := httpapi.NewServer(logger, cfg.MaxRuns, cfg, fetch)

	logger.Info("api_listen",
		zap.String("addr", cfg.Addr),
		zap.Int("max_runs", cfg.MaxRuns),
		zap.Duration("resolve_timeout", cfg.Timeout),
		zap.Duration("fetch_timeout", fetch.Timeout),
		zap.String("resolver", cfg.Resolver),
	)
	if err := http.ListenAndServe(cfg.Addr, api.Router()); err != nil {
		log.Fatal(err)
	}
}
