package subpub

import (
	"io"
	"log/slog"

	"golang.org/x/time/rate"
)

// Option configures a Broker.
type Option func(*options)

type options struct {
	logger      *slog.Logger
	acceptLimit rate.Limit
	acceptBurst int
}

func defaultOptions() options {
	return options{
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		acceptLimit: rate.Inf,
		acceptBurst: 1,
	}
}

// WithLogger sets the logger of the broker and, with a connection_id
// attribute, of every connection it creates.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithAcceptRate throttles the accept loop to limit new sockets per second
// with the given burst. A non-positive limit leaves accepting unthrottled.
func WithAcceptRate(limit rate.Limit, burst int) Option {
	return func(o *options) {
		if limit <= 0 {
			o.acceptLimit = rate.Inf
			return
		}
		o.acceptLimit = limit
		if burst > 0 {
			o.acceptBurst = burst
		}
	}
}
