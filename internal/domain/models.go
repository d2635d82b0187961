package domain

import "time"

// Target is a domain name or URL submitted for probing.
type Target string

// Kind tags an Outcome.
type Kind int

const (
	KindSuccess Kind = iota
	KindEmpty
	KindFailure
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindEmpty:
		return "empty"
	case KindFailure:
		return "failure"
	default:
		return "unknown"
	}
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Outcome is the tagged result of one probe.
//
// Values holds the payload elements of a Success (resolved addresses, saved
// file paths). Response is set instead when the payload is an HTTP response.
// Reason is only meaningful for KindFailure.
type Outcome struct {
	Kind     Kind      `json:"kind"`
	Values   []string  `json:"values,omitempty"`
	Response *Response `json:"response,omitempty"`
	Reason   string    `json:"reason,omitempty"`
}

func Success(values ...string) Outcome {
	return Outcome{Kind: KindSuccess, Values: values}
}

func SuccessResponse(r *Response) Outcome {
	return Outcome{Kind: KindSuccess, Response: r}
}

func Empty() Outcome {
	return Outcome{Kind: KindEmpty}
}

func Failure(reason string) Outcome {
	return Outcome{Kind: KindFailure, Reason: reason}
}

// Result pairs a Target with its completed Outcome. It is handed to sinks by
// value and never mutated afterwards.
type Result struct {
	Target   Target        `json:"target"`
	Outcome  Outcome       `json:"outcome"`
	Duration time.Duration `json:"-"`
}

// Response is a fetched HTTP response as returned by the fetch prober.
type Response struct {
	URL         string            `json:"url"`
	StatusCode  int               `json:"status_code"`
	Headers     map[string]string `json:"headers"`
	Title       *string           `json:"title"`
	Body        string            `json:"body"`
	Truncated   bool              `json:"truncated,omitempty"` // Body was cut at the read limit
	RateLimited bool              `json:"-"`
	LatencyMS   float64           `json:"-"`
}
