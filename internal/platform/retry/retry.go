// Package retry provides the shared retry policy applied to catalog calls and
// sink flushes: bounded attempts, exponential backoff with jitter, and respect
// for server-provided rate-limit delays
package retry

import (
	"context"
	stderrs "errors"
	"time"

	"github.com/avast/retry-go/v4"

	perr "marquee/internal/platform/errors"
	"marquee/internal/platform/logger"
)

const (
	defaultAttempts  = 3
	defaultBaseDelay = 500 * time.Millisecond
	defaultMaxDelay  = 30 * time.Second
	defaultMaxJitter = 250 * time.Millisecond
)

// Hinted is implemented by errors that carry a server-provided minimum wait
// before the next attempt (e.g. a Retry-After header)
type Hinted interface {
	RetryAfter() time.Duration
}

// Policy bundles the retry knobs so both the catalog client and the batch
// writer apply the same semantics
type Policy struct {
	Attempts  uint          // total attempts including the first; <=0 -> 3
	BaseDelay time.Duration // backoff base; <=0 -> 500ms
	MaxDelay  time.Duration // backoff cap; <=0 -> 30s
	MaxJitter time.Duration // random jitter added per wait; <=0 -> 250ms
}

// Default returns the production policy (3 attempts, 500ms base)
func Default() Policy { return Policy{} }

func (p Policy) attempts() uint {
	if p.Attempts == 0 {
		return defaultAttempts
	}
	return p.Attempts
}

func (p Policy) baseDelay() time.Duration {
	if p.BaseDelay <= 0 {
		return defaultBaseDelay
	}
	return p.BaseDelay
}

func (p Policy) maxDelay() time.Duration {
	if p.MaxDelay <= 0 {
		return defaultMaxDelay
	}
	return p.MaxDelay
}

func (p Policy) maxJitter() time.Duration {
	if p.MaxJitter <= 0 {
		return defaultMaxJitter
	}
	return p.MaxJitter
}

// Do runs fn under the policy. Only errors perr.Retryable considers transient
// are retried; the last error is returned once attempts are exhausted.
// op labels the operation in retry logs
func (p Policy) Do(ctx context.Context, op string, fn func() error) error {
	return retry.Do(
		fn,
		retry.Context(ctx),
		retry.Attempts(p.attempts()),
		retry.Delay(p.baseDelay()),
		retry.MaxDelay(p.maxDelay()),
		retry.MaxJitter(p.maxJitter()),
		retry.DelayType(p.delay),
		retry.RetryIf(perr.Retryable),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.C(ctx).Warn().Str("op", op).Uint("attempt", n+1).Err(err).Msg("transient failure, retrying")
		}),
	)
}

// delay computes exponential backoff with jitter, bumped up to any
// server-provided Retry-After hint carried by the error
func (p Policy) delay(n uint, err error, config *retry.Config) time.Duration {
	d := retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)(n, err, config)
	var h Hinted
	if stderrs.As(err, &h) {
		if after := h.RetryAfter(); after > d {
			d = after
		}
	}
	return d
}
