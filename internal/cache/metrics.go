package cache

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// cacheOps counts store operations by backend, operation and outcome
	// (hit|miss|ok|stored|exists|error).
	cacheOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_operations_total",
			Help: "Total number of cache store operations.",
		},
		[]string{"backend", "op", "result"},
	)

	// cacheLat records operation latency in seconds by backend and operation.
	cacheLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cache_operation_duration_seconds",
			Help:    "Duration of cache store operations in seconds.",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"backend", "op"},
	)
)

func init() {
	prometheus.MustRegister(cacheOps, cacheLat)
}

// instrumented decorates a Store with Prometheus metrics.
type instrumented struct {
	Store
	backend string
}

// Instrument wraps s so every operation is counted and timed under backend.
func Instrument(s Store, backend string) Store {
	return &instrumented{Store: s, backend: backend}
}

// Unwrap returns the decorated store.
func (i *instrumented) Unwrap() Store { return i.Store }

func (i *instrumented) observe(op, result string, start time.Time) {
	cacheOps.WithLabelValues(i.backend, op, result).Inc()
	cacheLat.WithLabelValues(i.backend, op).Observe(time.Since(start).Seconds())
}

func (i *instrumented) Get(ctx context.Context, key string) (string, bool, error) {
	start := time.Now()
	v, ok, err := i.Store.Get(ctx, key)
	switch {
	case err != nil:
		i.observe("get", "error", start)
	case ok:
		i.observe("get", "hit", start)
	default:
		i.observe("get", "miss", start)
	}
	return v, ok, err
}

func (i *instrumented) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	start := time.Now()
	err := i.Store.Set(ctx, key, value, ttl)
	if err != nil {
		i.observe("set", "error", start)
	} else {
		i.observe("set", "ok", start)
	}
	return err
}

func (i *instrumented) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	start := time.Now()
	ok, err := i.Store.SetNX(ctx, key, value, ttl)
	switch {
	case err != nil:
		i.observe("setnx", "error", start)
	case ok:
		i.observe("setnx", "stored", start)
	default:
		i.observe("setnx", "exists", start)
	}
	return ok, err
}
