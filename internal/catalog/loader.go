package catalog

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/aylaurquizo/KTPHackathon/internal/catalog"

// Result is the outcome of a load: the products and the name of the source that produced them.
type Result struct {
	Products []Product
	Source   string
}

// Loader walks its sources in order and keeps the first list a source returns. A source that fails,
// is unavailable, or reports ErrSourceEmpty hands over to the next one.
type Loader struct {
	sources  []Source
	logger   *zap.Logger
	onLoaded []func(Result)

	tracer      trace.Tracer
	resolutions metric.Int64Counter
	countsOK    bool
}

type loaderConfig struct {
	logger   *zap.Logger
	meter    metric.Meter
	tracer   trace.Tracer
	onLoaded []func(Result)
}

// LoaderOption customises a Loader.
type LoaderOption func(*loaderConfig)

// WithLogger sets the loader logger.
func WithLogger(logger *zap.Logger) LoaderOption {
	return func(cfg *loaderConfig) {
		cfg.logger = logger
	}
}

// WithMeter overrides the meter used for the resolution counter.
func WithMeter(m metric.Meter) LoaderOption {
	return func(cfg *loaderConfig) {
		cfg.meter = m
	}
}

// WithTracer overrides the tracer used for per-source spans.
func WithTracer(t trace.Tracer) LoaderOption {
	return func(cfg *loaderConfig) {
		cfg.tracer = t
	}
}

// WithOnLoaded registers a callback fired once per Load after a list has been chosen.
func WithOnLoaded(fn func(Result)) LoaderOption {
	return func(cfg *loaderConfig) {
		if fn != nil {
			cfg.onLoaded = append(cfg.onLoaded, fn)
		}
	}
}

// NewLoader builds a loader over sources. The built-in sample boxes are always the last resort,
// whether or not a SampleSource is listed.
func NewLoader(sources []Source, opts ...LoaderOption) *Loader {
	cfg := loaderConfig{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}
	if cfg.meter == nil {
		cfg.meter = otel.GetMeterProvider().Meter(instrumentationName)
	}
	if cfg.tracer == nil {
		cfg.tracer = otel.Tracer(instrumentationName)
	}

	l := &Loader{
		sources:  append([]Source(nil), sources...),
		logger:   cfg.logger.Named("catalog"),
		onLoaded: cfg.onLoaded,
		tracer:   cfg.tracer,
	}
	counter, err := cfg.meter.Int64Counter(
		"catalog.loader.resolutions",
		metric.WithDescription("Catalog source attempts by outcome"),
	)
	if err != nil {
		l.logger.Warn("catalog: unable to register resolution counter", zap.Error(err))
	} else {
		l.resolutions = counter
		l.countsOK = true
	}
	return l
}

// NewDefaultLoader wires the standard chain: hosted backend, local JSON file, sample boxes.
// boxes may be nil when no backend is configured.
func NewDefaultLoader(boxes BoxLister, fallbackFile string, opts ...LoaderOption) *Loader {
	return NewLoader([]Source{
		NewBackendSource(boxes),
		NewFileSource(fallbackFile),
		SampleSource{},
	}, opts...)
}

// Load resolves the product list. It never fails: when every source fails the sample boxes are used.
func (l *Loader) Load(ctx context.Context) Result {
	var result Result
	for _, src := range l.sources {
		products, ok := l.attempt(ctx, src)
		if ok {
			result = Result{Products: products, Source: src.Name()}
			break
		}
	}
	if result.Source == "" {
		result = Result{Products: SampleBoxes(), Source: SampleSource{}.Name()}
		l.count(ctx, result.Source, "ok")
	}

	l.logger.Info("catalog loaded",
		zap.String("source", result.Source),
		zap.Int("count", len(result.Products)),
	)
	for _, fn := range l.onLoaded {
		fn(Result{Products: Clone(result.Products), Source: result.Source})
	}
	return result
}

func (l *Loader) attempt(ctx context.Context, src Source) ([]Product, bool) {
	ctx, span := l.tracer.Start(ctx, "catalog.fetch "+src.Name())
	defer span.End()
	span.SetAttributes(attribute.String("catalog.source", src.Name()))

	products, err := src.Fetch(ctx)
	switch {
	case errors.Is(err, ErrSourceUnavailable):
		l.logger.Debug("catalog source skipped", zap.String("source", src.Name()))
		l.count(ctx, src.Name(), "unavailable")
		return nil, false
	case errors.Is(err, ErrSourceEmpty):
		l.logger.Info("catalog source empty", zap.String("source", src.Name()))
		l.count(ctx, src.Name(), "empty")
		return nil, false
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		l.logger.Warn("catalog source failed", zap.String("source", src.Name()), zap.Error(err))
		l.count(ctx, src.Name(), "error")
		return nil, false
	}
	if products == nil {
		products = []Product{}
	}

	span.SetAttributes(attribute.Int("catalog.count", len(products)))
	l.count(ctx, src.Name(), "ok")
	return products, true
}

func (l *Loader) count(ctx context.Context, source, outcome string) {
	if !l.countsOK {
		return
	}
	l.resolutions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("source", source),
		attribute.String("outcome", outcome),
	))
}
