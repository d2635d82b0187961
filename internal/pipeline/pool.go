package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/reconpipe/internal/config"
	"github.com/hamed0406/reconpipe/internal/domain"
	"github.com/hamed0406/reconpipe/internal/probe"
)

type PoolConfig struct {
	Workers int
	Prober  probe.Prober
	Logger  *zap.Logger

	// HardTimeout, when positive, abandons a probe that has not returned in
	// time and reports it as a Failure. Probes are expected to honour their
	// own stage timeouts; this only guards against ones that do not.
	HardTimeout time.Duration
}

// Pool runs a Prober over a stream of targets with a fixed number of workers.
// Results are delivered in completion order.
type Pool struct {
	workers     int
	prober      probe.Prober
	logger      *zap.Logger
	hardTimeout time.Duration

	dispatched atomic.Int64
	succeeded  atomic.Int64
	empty      atomic.Int64
	failed     atomic.Int64

	interrupted atomic.Bool
}

// Stats counts the targets a pool has dispatched and their outcomes.
type Stats struct {
	Dispatched int64
	Succeeded  int64
	Empty      int64
	Failed     int64
}

func NewPool(cfg PoolConfig) (*Pool, error) {
	if cfg.Workers < 1 || cfg.Workers > config.MaxConcurrencyCeiling {
		return nil, domain.NewConfigError("max_concurrency", "must be between 1 and %d, got %d",
			config.MaxConcurrencyCeiling, cfg.Workers)
	}
	if cfg.Prober == nil {
		return nil, domain.NewConfigError("prober", "must not be nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Pool{
		workers:     cfg.Workers,
		prober:      cfg.Prober,
		logger:      cfg.Logger,
		hardTimeout: cfg.HardTimeout,
	}, nil
}

// Run starts the workers and returns the channel of results. The channel is
// closed once the input is exhausted (or ctx is cancelled) and every
// dispatched probe has reported.
//
// Cancelling ctx stops workers from taking new targets. Probes already running
// are not cancelled: they finish or hit their own timeout, and their results
// are still delivered. The caller must drain the returned channel.
//
// The producer closes in only after sending every target; on cancellation it
// should stop without closing, so a closed input always means exhausted.
func (p *Pool) Run(ctx context.Context, in <-chan domain.Target) <-chan domain.Result {
	out := make(chan domain.Result, p.workers)

	p.logger.Info("pool_started", zap.Int("workers", p.workers))

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go p.worker(ctx, i, in, out, &wg)
	}

	go func() {
		wg.Wait()
		close(out)
		s := p.Stats()
		p.logger.Info("pool_stopped",
			zap.Int64("dispatched", s.Dispatched),
			zap.Int64("succeeded", s.Succeeded),
			zap.Int64("empty", s.Empty),
			zap.Int64("failed", s.Failed),
		)
	}()
	return out
}

func (p *Pool) worker(ctx context.Context, id int, in <-chan domain.Target, out chan<- domain.Result, wg *sync.WaitGroup) {
	defer wg.Done()

	// probes outlive an interrupt so in-flight work can finish
	probeCtx := context.WithoutCancel(ctx)

	for {
		select {
		case <-ctx.Done():
			p.noteStopped(in)
			return
		case t, ok := <-in:
			if !ok {
				return
			}
			if ctx.Err() != nil {
				p.interrupted.Store(true)
				p.logger.Debug("target_not_dispatched", zap.String("target", string(t)))
				return
			}
			p.dispatched.Add(1)
			out <- p.execute(probeCtx, id, t)
		}
	}
}

// noteStopped records whether a cancelled worker left input behind. A closed
// input means every target was already handed out.
func (p *Pool) noteStopped(in <-chan domain.Target) {
	select {
	case t, ok := <-in:
		if !ok {
			return
		}
		p.logger.Debug("target_not_dispatched", zap.String("target", string(t)))
	default:
	}
	p.interrupted.Store(true)
}

func (p *Pool) execute(ctx context.Context, workerID int, t domain.Target) domain.Result {
	start := time.Now()
	var o domain.Outcome
	if p.hardTimeout > 0 {
		o = p.probeWithDeadline(ctx, t)
	} else {
		o = p.safeProbe(ctx, t)
	}
	d := time.Since(start)

	switch o.Kind {
	case domain.KindSuccess:
		p.succeeded.Add(1)
	case domain.KindEmpty:
		p.empty.Add(1)
	default:
		p.failed.Add(1)
	}

	p.logger.Debug("probe_done",
		zap.Int("worker_id", workerID),
		zap.String("target", string(t)),
		zap.Stringer("kind", o.Kind),
		zap.Duration("duration", d),
		zap.String("reason", o.Reason),
	)
	return domain.Result{Target: t, Outcome: o, Duration: d}
}

func (p *Pool) safeProbe(ctx context.Context, t domain.Target) (o domain.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("probe_panic", zap.String("target", string(t)), zap.Any("panic", r))
			o = domain.Failure(fmt.Sprintf("panic: %v", r))
		}
	}()
	return p.prober.Probe(ctx, t)
}

func (p *Pool) probeWithDeadline(ctx context.Context, t domain.Target) domain.Outcome {
	cctx, cancel := context.WithTimeout(ctx, p.hardTimeout)
	defer cancel()

	done := make(chan domain.Outcome, 1)
	go func() { done <- p.safeProbe(cctx, t) }()

	select {
	case o := <-done:
		return o
	case <-cctx.Done():
		p.logger.Warn("probe_abandoned", zap.String("target", string(t)), zap.Duration("after", p.hardTimeout))
		return domain.Failure(fmt.Sprintf("probe abandoned after %s", p.hardTimeout))
	}
}

// Interrupted reports whether cancellation stopped the pool before its input
// was exhausted. Only meaningful once the result channel is closed.
func (p *Pool) Interrupted() bool { return p.interrupted.Load() }

func (p *Pool) Stats() Stats {
	return Stats{
		Dispatched: p.dispatched.Load(),
		Succeeded:  p.succeeded.Load(),
		Empty:      p.empty.Load(),
		Failed:     p.failed.Load(),
	}
}
