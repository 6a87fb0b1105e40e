package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"forensicvault/internal/blob"
	"forensicvault/internal/config"
	"forensicvault/pkg/deviceattrs"

	"github.com/prometheus/client_golang/prometheus"
)

// Runtime bundles a configured service with the resources it owns.
type Runtime struct {
	Service  *Service
	gatherer prometheus.Gatherer
	closers  []io.Closer
}

// Gatherer returns the Prometheus registry holding the service collectors,
// or nil unless the prometheus recorder is configured.
func (r *Runtime) Gatherer() prometheus.Gatherer {
	return r.gatherer
}

// Close releases the store and any other owned resources.
func (r *Runtime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

// Open builds a service from configuration: metrics and tracing, storage
// backend, content store, attribute resolver mode and identifier retry
// bound. Extra options are applied after the configured ones. Closing the
// runtime closes the store before metrics are dumped and spans flushed.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger, opts ...Option) (*Runtime, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	obs, err := openObservability(cfg.Observability, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("open observability: %w", err)
	}
	rt := &Runtime{gatherer: obs.gatherer, closers: obs.closers}
	store, err := OpenPersistentStore(ctx, cfg.Storage, NewDefaultRulesEngine(), logger)
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if c, ok := store.(io.Closer); ok {
		rt.closers = append(rt.closers, c)
	}
	blobs, err := blob.Open(ctx, cfg.Blob)
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	mode := deviceattrs.Permissive
	if cfg.DeviceAttributes.Strict {
		mode = deviceattrs.Strict
	}
	base := []Option{
		WithLogger(logger),
		WithBlobStore(blobs),
		WithAttributeResolver(deviceattrs.NewResolver(mode)),
		WithMaxGenerationAttempts(cfg.Identifiers.MaxAttempts),
	}
	base = append(base, obs.options...)
	rt.Service = NewService(store, append(base, opts...)...)
	return rt, nil
}
