package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/bull/evidence-rag/internal/evidence"
)

const (
	// DefaultCallTimeout bounds a single model call so a stalled endpoint
	// cannot hold up the whole run.
	DefaultCallTimeout = 120 * time.Second

	// DefaultMaxRetries is how many times an unavailable endpoint is retried.
	DefaultMaxRetries = 3
)

// ErrRequestRejected marks an ErrModelUnavailable the endpoint will keep
// returning for the same request (4xx other than 429). It is never retried.
var ErrRequestRejected = errors.New("request rejected")

// RetryOptions configures the retrying completer.
type RetryOptions struct {
	MaxRetries      int
	CallTimeout     time.Duration
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func (o *RetryOptions) defaults() {
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = DefaultCallTimeout
	}
	if o.InitialInterval <= 0 {
		o.InitialInterval = 500 * time.Millisecond
	}
	if o.MaxInterval <= 0 {
		o.MaxInterval = 10 * time.Second
	}
}

// Retrying wraps a Completer with a per-call timeout and bounded exponential
// backoff on ErrModelUnavailable. Rejected requests and all other errors fail
// immediately.
type Retrying struct {
	next   Completer
	opts   RetryOptions
	logger *slog.Logger
}

// NewRetrying wraps next. A nil logger uses slog.Default().
func NewRetrying(next Completer, opts RetryOptions, logger *slog.Logger) *Retrying {
	opts.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Retrying{next: next, opts: opts, logger: logger}
}

// Complete validates the request and calls the wrapped completer with retry.
func (r *Retrying) Complete(ctx context.Context, req Request) (string, error) {
	if req.Prompt == "" {
		return "", fmt.Errorf("%w: instruction cannot be empty", evidence.ErrInvalidArgument)
	}
	if _, err := req.Schema.Definition(); err != nil {
		return "", err
	}

	var out string
	attempt := 0
	operation := func() error {
		attempt++
		callCtx, cancel := context.WithTimeout(ctx, r.opts.CallTimeout)
		defer cancel()

		resp, err := r.next.Complete(callCtx, req)
		if err == nil {
			out = resp
			return nil
		}

		// Parent cancellation is never retried.
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, evidence.ErrModelUnavailable) {
			err = fmt.Errorf("%w: call timed out after %s: %v", evidence.ErrModelUnavailable, r.opts.CallTimeout, err)
		}
		if errors.Is(err, ErrRequestRejected) {
			return backoff.Permanent(err)
		}
		if errors.Is(err, evidence.ErrModelUnavailable) {
			r.logger.Warn("Model call failed, retrying", "attempt", attempt, "schema", req.Schema, "error", err)
			return err
		}
		return backoff.Permanent(err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.opts.InitialInterval
	b.MaxInterval = r.opts.MaxInterval
	b.MaxElapsedTime = 0 // bounded by MaxRetries

	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.opts.MaxRetries)), ctx))
	if err != nil {
		return "", err
	}
	return out, nil
}
