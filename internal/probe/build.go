package probe

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/hamed0406/reconpipe/internal/config"
)

// ForResolve builds the DNS fallback prober described by cfg.
func ForResolve(cfg config.Config, logger *zap.Logger) (*DNSProber, error) {
	r, err := NewResolver(cfg.Resolver, cfg.DNSServer, cfg.Timeout)
	if err != nil {
		return nil, err
	}
	return NewDNSProber(r, cfg.Timeout, logger), nil
}

// ForFetch builds the HTTP fetch prober described by cfg.
func ForFetch(cfg config.Config, logger *zap.Logger) (*HTTPProber, error) {
	headers, err := cfg.Headers()
	if err != nil {
		return nil, err
	}
	return NewHTTPProber(HTTPOptions{
		Method:          cfg.Method,
		Timeout:         cfg.Timeout,
		Headers:         headers,
		FollowRedirects: cfg.FollowRedirects,
		Proxy:           cfg.ProxyAddress,
		Logger:          logger,
	})
}

// ForDownload builds a Saver writing into cfg.OutputDir, creating it if needed.
func ForDownload(cfg config.Config, logger *zap.Logger) (*Saver, error) {
	cfg.Method = "GET"
	cfg.FollowRedirects = true
	fetch, err := ForFetch(cfg, logger)
	if err != nil {
		return nil, err
	}
	fetch.MaxBody = 64 << 20
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &Saver{Fetch: fetch, Dir: cfg.OutputDir}, nil
}
