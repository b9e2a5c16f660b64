package docintel

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
)

const (
	defaultPollInitial = 1 * time.Second
	defaultPollCap     = 10 * time.Second
	defaultPollTimeout = 3 * time.Minute
)

// PollOption configures polling behavior.
type PollOption func(*pollConfig)

type pollConfig struct {
	initial time.Duration
	cap     time.Duration
	timeout time.Duration
}

func defaultPollConfig() pollConfig {
	return pollConfig{
		initial: defaultPollInitial,
		cap:     defaultPollCap,
		timeout: defaultPollTimeout,
	}
}

// WithPollInterval overrides the initial poll interval.
func WithPollInterval(d time.Duration) PollOption {
	return func(c *pollConfig) {
		c.initial = d
	}
}

// WithPollCap overrides the maximum poll interval.
func WithPollCap(d time.Duration) PollOption {
	return func(c *pollConfig) {
		c.cap = d
	}
}

// WithPollTimeout overrides the default timeout (applied only if the parent
// context has no deadline).
func WithPollTimeout(d time.Duration) PollOption {
	return func(c *pollConfig) {
		c.timeout = d
	}
}

// PollResult polls GetResult until the operation succeeds, fails, or the
// context expires. Uses exponential backoff: 1s -> 2s -> 4s -> 10s (capped).
func PollResult(ctx context.Context, client Client, operationID string, opts ...PollOption) (*AnalyzeResult, error) {
	cfg := defaultPollConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.timeout)
		defer cancel()
	}

	interval := cfg.initial
	for {
		op, err := client.GetResult(ctx, operationID)
		if err != nil {
			return nil, eris.Wrap(err, fmt.Sprintf("docintel: poll operation %s", operationID))
		}

		switch op.Status {
		case StatusSucceeded:
			if op.Result == nil {
				return nil, eris.Errorf("docintel: operation %s succeeded with no result", operationID)
			}
			return op.Result, nil
		case StatusFailed:
			if op.Error != nil {
				return nil, eris.Errorf("docintel: operation %s failed: %s: %s", operationID, op.Error.Code, op.Error.Message)
			}
			return nil, eris.Errorf("docintel: operation %s failed", operationID)
		}

		select {
		case <-ctx.Done():
			return nil, eris.Wrap(ctx.Err(), fmt.Sprintf("docintel: poll operation %s timed out", operationID))
		case <-time.After(interval):
		}

		interval *= 2
		if interval > cfg.cap {
			interval = cfg.cap
		}
	}
}

// AnalyzeDocument submits a document and polls until the extraction result
// is available.
func AnalyzeDocument(ctx context.Context, client Client, document []byte, contentType string, opts ...PollOption) (*AnalyzeResult, error) {
	opID, err := client.Analyze(ctx, document, contentType)
	if err != nil {
		return nil, err
	}
	return PollResult(ctx, client, opID, opts...)
}
