package pipeline

import (
	"context"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/reconpipe/internal/domain"
)

// Sink consumes results in completion order. Close flushes anything buffered.
type Sink interface {
	Consume(r domain.Result) error
	Close() error
}

type Summary struct {
	Stats
	Elapsed time.Duration
}

// Run drains the pool's results into sink until the input is exhausted or ctx
// is cancelled, then closes the sink. A run cancelled before its input was
// exhausted returns domain.ErrInterrupted after everything already dispatched
// has been flushed; cancelling after the last dispatch is not an interrupt.
// Sink errors do not stop the run; the first one is returned at the end.
func Run(ctx context.Context, in <-chan domain.Target, pool *Pool, sink Sink) (Summary, error) {
	start := time.Now()

	var consumeErr error
	for res := range pool.Run(ctx, in) {
		if err := sink.Consume(res); err != nil && consumeErr == nil {
			consumeErr = err
			pool.logger.Warn("sink_error", zap.String("target", string(res.Target)), zap.Error(err))
		}
	}
	err := multierr.Combine(consumeErr, sink.Close())

	sum := Summary{Stats: pool.Stats(), Elapsed: time.Since(start)}
	if pool.Interrupted() {
		return sum, multierr.Append(domain.ErrInterrupted, err)
	}
	return sum, err
}
