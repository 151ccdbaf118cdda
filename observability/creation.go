package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/ioc/errors"
	"github.com/kbukum/ioc/logger"
)

const (
	statusOK    = "ok"
	statusError = "error"
)

type creationStartKey struct{}

// CreationObserver traces and measures every construction a registry runs.
// It implements registry.CreationListener; a nested construction becomes a
// child span of the construction that requested it.
type CreationObserver struct {
	tracer     trace.Tracer
	metrics    *Metrics
	registryID string
	log        *logger.Logger
}

// ObserverOption configures a CreationObserver.
type ObserverOption func(*CreationObserver)

// WithTracer sets the tracer spans are started on.
func WithTracer(t trace.Tracer) ObserverOption {
	return func(o *CreationObserver) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithMetrics sets the instruments constructions are recorded on. Without
// it no metrics are recorded.
func WithMetrics(m *Metrics) ObserverOption {
	return func(o *CreationObserver) { o.metrics = m }
}

// WithRegistryID tags spans with the ID of the observed registry.
func WithRegistryID(id string) ObserverOption {
	return func(o *CreationObserver) { o.registryID = id }
}

// WithObserverLogger sets the logger used for failed constructions.
func WithObserverLogger(l *logger.Logger) ObserverOption {
	return func(o *CreationObserver) {
		if l != nil {
			o.log = l
		}
	}
}

// NewCreationObserver creates an observer using the global tracer provider.
func NewCreationObserver(opts ...ObserverOption) *CreationObserver {
	o := &CreationObserver{
		tracer: Tracer(defaultTracerName),
		log:    logger.Get("observability"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// BeforeCreation starts the construction span for name.
func (o *CreationObserver) BeforeCreation(ctx context.Context, name string) context.Context {
	attrs := []attribute.KeyValue{attribute.String(AttrInstance, name)}
	if o.registryID != "" {
		attrs = append(attrs, attribute.String(AttrRegistryID, o.registryID))
	}
	ctx, _ = o.tracer.Start(ctx, SpanCreate,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
	if o.metrics != nil {
		o.metrics.RecordCreationStart(ctx)
	}
	return context.WithValue(ctx, creationStartKey{}, time.Now())
}

// AfterCreation ends the construction span and records its outcome.
func (o *CreationObserver) AfterCreation(ctx context.Context, name string, err error) {
	var elapsed time.Duration
	if start, ok := ctx.Value(creationStartKey{}).(time.Time); ok {
		elapsed = time.Since(start)
	}

	span := trace.SpanFromContext(ctx)
	status := statusOK
	if err != nil {
		status = statusError
		code := errorCode(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String(AttrErrorCode, code))
		if o.metrics != nil {
			o.metrics.RecordError(ctx, code, name)
		}
		o.log.Debug("construction failed", logger.ErrorFields(name, SpanCreate, err))
	}
	span.SetAttributes(
		attribute.String(AttrStatus, status),
		attribute.Int64(AttrDurationMs, elapsed.Milliseconds()),
	)
	span.End()

	if o.metrics != nil {
		o.metrics.RecordCreationEnd(ctx, name, status, elapsed)
	}
}

func errorCode(err error) string {
	if appErr, ok := errors.AsAppError(err); ok {
		return string(appErr.Code)
	}
	return string(errors.ErrCodeInternal)
}
