package probe

import (
	"context"
	"net/url"
	"strings"

	"github.com/hamed0406/reconpipe/internal/domain"
)

// Prober performs one multi-stage network operation against a single target.
// It never returns an error: transport problems are reported as a Failure
// outcome so that one target cannot affect another.
type Prober interface {
	Probe(ctx context.Context, target domain.Target) domain.Outcome
}

// ProberFunc adapts a plain function to Prober.
type ProberFunc func(ctx context.Context, target domain.Target) domain.Outcome

func (f ProberFunc) Probe(ctx context.Context, target domain.Target) domain.Outcome {
	return f(ctx, target)
}

// extractHost returns the hostname of a URL-looking target, or the target itself.
func extractHost(raw string) string {
	if !strings.Contains(raw, "://") {
		return strings.TrimSuffix(raw, ".")
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return raw
	}
	return u.Hostname()
}
