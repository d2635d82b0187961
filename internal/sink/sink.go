package sink

import "github.com/hamed0406/reconpipe/internal/domain"

// Sink matches pipeline.Sink.
type Sink interface {
	Consume(domain.Result) error
	Close() error
}
