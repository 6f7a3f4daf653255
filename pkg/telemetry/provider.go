package telemetry

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/tracelink/tracelink/pkg/config"
)

// Provider owns the tracer and the export pipeline for one process.
// It is built once at startup, handed to the components that trace, and
// shut down once on exit; nothing reaches for it as ambient global state.
type Provider struct {
	tracer    *Tracer
	processor *BatchProcessor

	// identity attributes stamped on every exported span
	resource []Attribute

	shutdownOnce sync.Once
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithResource sets the service identity attributes.
func WithResource(attrs ...Attribute) ProviderOption {
	return func(p *Provider) { p.resource = append(p.resource, attrs...) }
}

// NewProvider wires a tracer to exporter through a batch processor.
// A nil exporter produces a tracer whose spans are dropped on end,
// which is the testing configuration.
func NewProvider(exporter SpanExporter, opts ...ProviderOption) *Provider {
	p := &Provider{}
	for _, opt := range opts {
		opt(p)
	}
	if exporter != nil {
		p.processor = NewBatchProcessor(exporter)
	}
	p.tracer = &Tracer{provider: p, ids: newIDSource()}
	return p
}

// NewTelemetryProvider builds the production provider from configuration:
// OTLP over HTTP when an endpoint is set, plus the MySQL span archive when a
// DSN is set. With neither it falls back to dropping spans. The archive is
// returned separately so background tasks can flush it.
func NewTelemetryProvider(cfg config.Telemetry) (*Provider, *Archive) {
	exporters := make([]SpanExporter, 0, 2)
	var archive *Archive
	if cfg.Endpoint != "" {
		exporters = append(exporters, NewOTLPExporter(cfg))
	}
	if cfg.ArchiveDSN != "" {
		if archive = NewArchive(cfg.ArchiveDSN); archive != nil {
			exporters = append(exporters, archive)
		}
	}

	resource := WithResource(
		String("service.name", cfg.ServiceName),
		String("service.version", cfg.ServiceVersion),
		String("deployment.environment", cfg.Environment),
	)

	switch len(exporters) {
	case 0:
		logrus.Warn("tracelink has no exporter configured, spans will be dropped")
		return NewProvider(nil, resource), nil
	case 1:
		return NewProvider(exporters[0], resource), archive
	default:
		return NewProvider(multiExporter(exporters), resource), archive
	}
}

// Stats reports the pipeline counters: spans waiting, exported and dropped.
func (p *Provider) Stats() (pending int, exported, dropped uint64) {
	if p.processor == nil {
		return 0, 0, 0
	}
	return p.processor.QueueLen(), p.processor.Exported(), p.processor.Dropped()
}

// Tracer returns the process tracer.
func (p *Provider) Tracer() *Tracer {
	return p.tracer
}

// Resource returns the service identity attributes.
func (p *Provider) Resource() []Attribute {
	return p.resource
}

// ForceFlush synchronously drains the pending queue, bounded by ctx.
// A short-lived consumer instance must call this before returning or its
// buffered spans are permanently lost.
func (p *Provider) ForceFlush(ctx context.Context) error {
	if p.processor == nil {
		return nil
	}
	return p.processor.ForceFlush(ctx)
}

// Shutdown flushes and stops the pipeline. Safe to call more than once.
func (p *Provider) Shutdown(ctx context.Context) error {
	var err error
	p.shutdownOnce.Do(func() {
		if p.processor != nil {
			err = p.processor.Shutdown(ctx)
		}
	})
	return err
}
