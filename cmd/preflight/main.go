// cmd/preflight/main.go
package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/hamed0406/reconpipe/internal/config"
	"github.com/hamed0406/reconpipe/internal/domain"
	"github.com/hamed0406/reconpipe/internal/probe"
)

func main() {
	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		os.Exit(1)
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	cfg := config.FromEnv(config.VariantResolve)
	if err := cfg.Validate(); err != nil {
		var ce *domain.ConfigurationError
		if errors.As(err, &ce) {
			fail(fmt.Sprintf("%s: %s", ce.Field, ce.Reason))
		}
		fail(err.Error())
	}
	ok(fmt.Sprintf("timeout=%s concurrency=%d", cfg.Timeout, cfg.MaxConcurrency))

	switch cfg.Resolver {
	case "process":
		path, err := exec.LookPath("dig")
		if err != nil {
			fail("RECON_RESOLVER=process but dig is not on PATH.")
		}
		ok("dig found at " + path)
	case "dns":
		r, err := probe.NewDNSClientResolver(cfg.DNSServer, cfg.Timeout)
		if err != nil {
			fail("dns resolver: " + err.Error())
		}
		ok("nameserver " + r.Server)
	default:
		ok("resolver=native")
	}

	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		fail("LOG_DIR not creatable: " + err.Error())
	}
	f, err := os.CreateTemp(cfg.LogDir, ".preflight-*")
	if err != nil {
		fail("LOG_DIR not writable: " + err.Error())
	}
	f.Close()
	_ = os.Remove(f.Name())
	abs, _ := filepath.Abs(cfg.LogDir)
	ok("LOG_DIR=" + abs)

	if cfg.ProxyAddress == "" {
		warn("RECON_PROXY empty; fetch goes out directly.")
	} else {
		ok("RECON_PROXY=" + cfg.ProxyAddress)
	}
	if cfg.MaxRuns == 0 {
		warn("API_MAX_RUNS=0; the API accepts unlimited concurrent runs.")
	}

	ok("preflight passed")
}
