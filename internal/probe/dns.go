package probe

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/reconpipe/internal/domain"
)

// DNSProber resolves IPv4 addresses first and only falls back to IPv6 when the
// A lookup produced nothing. An error in either stage counts as "no results";
// the outcome is a Failure only when both stages errored.
type DNSProber struct {
	Resolver Resolver
	Timeout  time.Duration // per stage
	Logger   *zap.Logger
}

func NewDNSProber(r Resolver, timeout time.Duration, logger *zap.Logger) *DNSProber {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &DNSProber{Resolver: r, Timeout: timeout, Logger: logger}
}

func (d *DNSProber) Probe(ctx context.Context, target domain.Target) domain.Outcome {
	host := extractHost(string(target))

	v4, errA := d.stage(ctx, d.Resolver.LookupA, host)
	if len(v4) > 0 {
		return domain.Success(v4...)
	}

	v6, errAAAA := d.stage(ctx, d.Resolver.LookupAAAA, host)
	if len(v6) > 0 {
		return domain.Success(v6...)
	}

	if errA != nil && errAAAA != nil {
		err := multierr.Combine(
			fmt.Errorf("A: %w", errA),
			fmt.Errorf("AAAA: %w", errAAAA),
		)
		d.Logger.Debug("dns_lookup_failed", zap.String("host", host), zap.Error(err))
		return domain.Failure(err.Error())
	}
	return domain.Empty()
}

func (d *DNSProber) stage(ctx context.Context, lookup func(context.Context, string) ([]string, error), host string) ([]string, error) {
	cctx, cancel := context.WithTimeout(ctx, d.Timeout)
	defer cancel()
	return lookup(cctx, host)
}
