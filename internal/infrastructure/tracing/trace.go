package tracing

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/filedeck/internal/shared/id"
	"github.com/GriffinCanCode/filedeck/internal/shared/utils"
)

// Propagation headers
const (
	HeaderTraceID = "X-Trace-ID"
	HeaderSpanID  = "X-Span-ID"
)

const (
	defaultBuffer        = 1000
	defaultSlowThreshold = 2 * time.Second
)

// TraceID represents a unique trace identifier
type TraceID string

// SpanID represents a unique span identifier
type SpanID string

// Span represents a single operation in a trace
type Span struct {
	TraceID    TraceID
	SpanID     SpanID
	ParentID   SpanID
	Name       string
	StartTime  time.Time
	Duration   time.Duration
	Tags       map[string]string
	Error      error
	StatusCode int
}

// Option configures a Tracer
type Option func(*Tracer)

// WithSlowThreshold logs spans at info level once they take at least d.
// Zero disables slow span reporting.
func WithSlowThreshold(d time.Duration) Option {
	return func(t *Tracer) { t.slow = d }
}

// WithBuffer sets how many finished spans may wait for the collector
func WithBuffer(n int) Option {
	return func(t *Tracer) {
		if n > 0 {
			t.buffer = n
		}
	}
}

// Tracer collects finished spans and logs them. A nil *Tracer is valid and
// records nothing.
type Tracer struct {
	service string
	logger  *zap.Logger
	slow    time.Duration
	buffer  int
	spans   chan *Span

	closeOnce sync.Once
	done      chan struct{}
}

// New creates a tracer and starts its collector. Call Close to stop it.
func New(service string, logger *zap.Logger, opts ...Option) *Tracer {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tracer{
		service: service,
		logger:  logger.With(zap.String("service", service)),
		slow:    defaultSlowThreshold,
		buffer:  defaultBuffer,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.spans = make(chan *Span, t.buffer)

	go t.collect()

	return t
}

// NewTraceID returns a fresh trace identifier
func NewTraceID() TraceID {
	return TraceID(uuid.NewString())
}

// StartSpan creates a span, continuing the trace found in ctx if any. The
// returned context carries the new span as parent for nested spans.
func (t *Tracer) StartSpan(ctx context.Context, name string) (*Span, context.Context) {
	traceID := GetTraceID(ctx)
	if traceID == "" {
		traceID = NewTraceID()
	}

	span := &Span{
		TraceID:   traceID,
		SpanID:    SpanID(id.NewRequestID()),
		ParentID:  GetSpanID(ctx),
		Name:      name,
		StartTime: time.Now(),
		Tags:      make(map[string]string),
	}

	ctx = context.WithValue(ctx, traceIDKey, traceID)
	ctx = context.WithValue(ctx, spanIDKey, span.SpanID)
	return span, ctx
}

// Trace runs fn inside a span named name and submits it when fn returns
func (t *Tracer) Trace(ctx context.Context, name string, fn func(ctx context.Context, span *Span) error) error {
	if t == nil {
		return fn(ctx, &Span{Tags: make(map[string]string)})
	}
	span, ctx := t.StartSpan(ctx, name)
	err := fn(ctx, span)
	if err != nil {
		span.SetError(err)
	}
	span.Finish()
	t.Submit(span)
	return err
}

// Finish records the span duration
func (s *Span) Finish() {
	s.Duration = time.Since(s.StartTime)
}

// SetTag adds a tag to the span
func (s *Span) SetTag(key, value string) {
	s.Tags[key] = value
}

// SetError records an error in the span
func (s *Span) SetError(err error) {
	s.Error = err
	if s.StatusCode < 500 {
		s.StatusCode = 500
	}
}

// SetStatus sets the HTTP status code
func (s *Span) SetStatus(code int) {
	s.StatusCode = code
}

func (t *Tracer) collect() {
	defer close(t.done)
	for span := range t.spans {
		t.report(span)
	}
}

func (t *Tracer) report(span *Span) {
	fields := make([]zap.Field, 0, 6+len(span.Tags))
	fields = append(fields,
		zap.String("trace_id", string(span.TraceID)),
		zap.String("span_id", string(span.SpanID)),
		zap.String("operation", span.Name),
		zap.Duration("duration", span.Duration),
	)
	if span.StatusCode != 0 {
		fields = append(fields, zap.Int("status", span.StatusCode))
	}
	if span.ParentID != "" {
		fields = append(fields, zap.String("parent_id", string(span.ParentID)))
	}
	for k, v := range span.Tags {
		fields = append(fields, zap.String(k, v))
	}

	switch {
	case span.Error != nil:
		t.logger.Error("span completed with error", append(fields, zap.Error(span.Error))...)
	case t.slow > 0 && span.Duration >= t.slow:
		t.logger.Info("slow span", fields...)
	default:
		t.logger.Debug("span completed", fields...)
	}
}

// Submit sends a span to the collector, dropping it if the buffer is full
func (t *Tracer) Submit(span *Span) {
	if t == nil {
		return
	}
	select {
	case t.spans <- span:
	default:
		t.logger.Warn("span buffer full, dropping span",
			zap.String("trace_id", string(span.TraceID)),
			zap.String("operation", span.Name),
		)
	}
}

// Close drains pending spans and stops the collector. Submit must not be
// called after Close.
func (t *Tracer) Close() {
	if t == nil {
		return
	}
	t.closeOnce.Do(func() {
		close(t.spans)
	})
	<-t.done
}

type contextKey string

const (
	traceIDKey contextKey = "trace_id"
	spanIDKey  contextKey = "span_id"
)

// WithTraceID returns ctx carrying an existing trace ID
func WithTraceID(ctx context.Context, traceID TraceID) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// GetTraceID retrieves the trace ID from context
func GetTraceID(ctx context.Context) TraceID {
	if traceID, ok := ctx.Value(traceIDKey).(TraceID); ok {
		return traceID
	}
	return ""
}

// GetSpanID retrieves the span ID from context
func GetSpanID(ctx context.Context) SpanID {
	if spanID, ok := ctx.Value(spanIDKey).(SpanID); ok {
		return spanID
	}
	return ""
}

func withSpanID(ctx context.Context, spanID SpanID) context.Context {
	return context.WithValue(ctx, spanIDKey, spanID)
}

// Logger returns base annotated with the trace of ctx
func Logger(ctx context.Context, base *zap.Logger) *zap.Logger {
	if base == nil {
		base = zap.NewNop()
	}
	traceID := GetTraceID(ctx)
	if traceID == "" {
		return base
	}
	return base.With(zap.String("trace_id", string(traceID)))
}

// acceptTraceID reports whether an inbound header value is safe to reuse
func acceptTraceID(v string) bool {
	return v != "" && utils.ValidateID(v, "trace_id", true) == nil
}
