// Package retry holds the backoff policy shared by the kafka consumer, the cluster
// loader and the websocket client.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/golang/glog"
)

const (
	InitialInterval = 1 * time.Second
	MaxInterval     = 60 * time.Second
	Multiplier      = 1.5
)

// NewPolicy returns an exponential backoff which stops only when ctx is done.
func NewPolicy(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = InitialInterval
	b.MaxInterval = MaxInterval
	b.Multiplier = Multiplier
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithContext(b, ctx)
}

// Backoff paces a loop that handles its own failures, e.g. fetch or dial.
type Backoff struct {
	name string
	b    backoff.BackOffContext
}

func New(ctx context.Context, name string) *Backoff {
	return &Backoff{name: name, b: NewPolicy(ctx)}
}

// Wait sleeps the next interval, returns false when ctx is done first.
func (r *Backoff) Wait() bool {
	d := r.b.NextBackOff()
	if d == backoff.Stop {
		return false
	}
	glog.V(5).Infof("%s: retry in %v", r.name, d)

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-r.b.Context().Done():
		return false
	}
}

// Reset starts over from InitialInterval, call it after a success.
func (r *Backoff) Reset() {
	r.b.Reset()
}

// Do runs op until it succeeds, returns a Permanent error, or ctx is done.
// The returned error is nil, the unwrapped permanent error, or ctx.Err().
func Do(ctx context.Context, name string, op func() error) error {
	return backoff.RetryNotify(op, NewPolicy(ctx), func(err error, d time.Duration) {
		glog.Warningf("%s: %v, retry in %v", name, err, d)
	})
}

// Permanent stops Do from retrying err.
func Permanent(err error) error {
	return backoff.Permanent(err)
}
