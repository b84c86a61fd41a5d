package geocoder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"restaurant-locator/geo"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var geocodeRequests = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "restaurant_geocode_requests_total",
		Help: "Geocoding lookups by provider and outcome",
	},
	[]string{"provider", "outcome"},
)

// Resolver applies a per-attempt timeout and a bounded retry to a Geocoder.
type Resolver struct {
	geocoder Geocoder
	log      *zap.Logger
	timeout  time.Duration
	retries  int
	backoff  time.Duration
}

type Option func(*Resolver)

// WithTimeout bounds each provider call.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) { r.timeout = d }
}

// WithRetries sets how many times a transient failure is retried.
func WithRetries(n int) Option {
	return func(r *Resolver) {
		if n >= 0 {
			r.retries = n
		}
	}
}

// WithBackoff sets the first retry delay; later delays grow exponentially.
func WithBackoff(d time.Duration) Option {
	return func(r *Resolver) { r.backoff = d }
}

func NewResolver(g Geocoder, log *zap.Logger, opts ...Option) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Resolver{
		geocoder: g,
		log:      log,
		timeout:  5 * time.Second,
		retries:  2,
		backoff:  200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Lookup returns the point for address or a typed error. Blank addresses fail
// with ErrNoResult without calling the provider.
func (r *Resolver) Lookup(ctx context.Context, address string) (geo.Point, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return geo.Point{}, fmt.Errorf("%w: empty address", ErrNoResult)
	}

	var p geo.Point
	op := func() error {
		var err error
		p, err = r.attempt(ctx, address)
		if err != nil && (!retryable(err) || ctx.Err() != nil) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		r.log.Debug("geocode attempt failed, retrying",
			zap.String("provider", r.geocoder.Name()),
			zap.Duration("wait", wait),
			zap.Error(err))
	}

	err := backoff.RetryNotify(op, r.policy(ctx), notify)
	if err == nil {
		geocodeRequests.WithLabelValues(r.geocoder.Name(), "ok").Inc()
		return p, nil
	}
	outcome := "error"
	if errors.Is(err, ErrNoResult) {
		outcome = "no_result"
	}
	geocodeRequests.WithLabelValues(r.geocoder.Name(), outcome).Inc()
	return geo.Point{}, err
}

// policy is an exponential backoff starting at r.backoff, capped at
// r.retries retries and stopped by ctx.
func (r *Resolver) policy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.backoff
	b.MaxElapsedTime = 0
	return backoff.WithMaxRetries(backoff.WithContext(b, ctx), uint64(r.retries))
}

func (r *Resolver) attempt(ctx context.Context, address string) (geo.Point, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	p, err := r.geocoder.Geocode(ctx, address)
	if err != nil {
		return geo.Point{}, err
	}
	if !p.Valid() {
		return geo.Point{}, fmt.Errorf("%w: provider returned %+v", ErrNoResult, p)
	}
	return p, nil
}

// Resolve returns the point for address, or nil when no location is
// available. Failures are logged and never surfaced.
func (r *Resolver) Resolve(ctx context.Context, address string) *geo.Point {
	p, err := r.Lookup(ctx, address)
	if err != nil {
		r.log.Warn("geocoding failed, no location for address",
			zap.String("provider", r.geocoder.Name()),
			zap.String("address", address),
			zap.Error(err))
		return nil
	}
	return &p
}

// ResolveQuery returns the "lat=<lat>&lng=<lng>" fragment for address.
func (r *Resolver) ResolveQuery(ctx context.Context, address string) (string, bool) {
	p := r.Resolve(ctx, address)
	if p == nil {
		return "", false
	}
	return p.Query(), true
}

func retryable(err error) bool {
	switch {
	case errors.Is(err, ErrNoResult), errors.Is(err, ErrRejected):
		return false
	case errors.Is(err, context.Canceled):
		return false
	default:
		// ErrUnavailable, attempt deadline, transport errors
		return true
	}
}
