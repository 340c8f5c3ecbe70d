package observability

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// SpanEvent is a single timestamped event recorded on a span, including
// exceptions.
type SpanEvent struct {
	Name  string                 `json:"name"`
	At    time.Time              `json:"at"`
	Attrs map[string]interface{} `json:"attrs,omitempty"`
}

// Span is the durable, domain-shaped record of a completed (or
// in-flight) trace span. Every field named here is mandatory per the
// tracing contract; End is nil until the span closes.
type Span struct {
	TraceID string                 `json:"trace_id"`
	SpanID  string                 `json:"span_id"`
	Parent  string                 `json:"parent,omitempty"`
	Name    string                 `json:"name"`
	Layer   string                 `json:"layer"`
	Start   time.Time              `json:"start"`
	End     *time.Time             `json:"end,omitempty"`
	Attrs   map[string]interface{} `json:"attrs"`
	Events  []SpanEvent            `json:"events"`
	Status  string                 `json:"status"`
}

// spanRecorder is an in-process sdktrace.SpanExporter: it converts
// finished OTel spans into our Span shape and holds them in memory.
// There is no network dependency anywhere in this path.
type spanRecorder struct {
	mu    sync.Mutex
	spans []Span
}

func newSpanRecorder() *spanRecorder {
	return &spanRecorder{}
}

func (r *spanRecorder) ExportSpans(_ context.Context, spans []sdktrace.ReadOnlySpan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range spans {
		r.spans = append(r.spans, convertSpan(s))
	}
	return nil
}

func (r *spanRecorder) Shutdown(_ context.Context) error { return nil }

// Spans returns a snapshot copy of every span recorded so far.
func (r *spanRecorder) Spans() []Span {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Span, len(r.spans))
	copy(out, r.spans)
	return out
}

func convertSpan(s sdktrace.ReadOnlySpan) Span {
	start := s.StartTime()
	end := s.EndTime()

	attrs := make(map[string]interface{}, len(s.Attributes()))
	layer := ""
	for _, kv := range s.Attributes() {
		key := string(kv.Key)
		if key == "layer" {
			layer = kv.Value.AsString()
			continue
		}
		attrs[key] = kv.Value.AsInterface()
	}

	events := make([]SpanEvent, 0, len(s.Events()))
	status := "ok"
	for _, ev := range s.Events() {
		eAttrs := make(map[string]interface{}, len(ev.Attributes))
		for _, kv := range ev.Attributes {
			eAttrs[string(kv.Key)] = kv.Value.AsInterface()
		}
		events = append(events, SpanEvent{Name: ev.Name, At: ev.Time, Attrs: eAttrs})
		if ev.Name == "exception" {
			status = "error"
		}
	}
	if s.Status().Code == codes.Error {
		status = "error"
	}

	var parent string
	if s.Parent().IsValid() {
		parent = s.Parent().SpanID().String()
	}

	var endPtr *time.Time
	if !end.IsZero() {
		endPtr = &end
	}

	return Span{
		TraceID: s.SpanContext().TraceID().String(),
		SpanID:  s.SpanContext().SpanID().String(),
		Parent:  parent,
		Name:    s.Name(),
		Layer:   layer,
		Start:   start,
		End:     endPtr,
		Attrs:   attrs,
		Events:  events,
		Status:  status,
	}
}

// StartSpan begins a span tagged with layer (e.g. "savm", "netting",
// "arbitration") and the supplied attributes. The returned finish
// function must be called exactly once; passing a non-nil error
// records it as an exception event and forces status="error".
func (p *Provider) StartSpan(ctx context.Context, name, layer string, attrs map[string]string) (context.Context, func(err error)) {
	kv := make([]attribute.KeyValue, 0, len(attrs)+1)
	kv = append(kv, attribute.String("layer", layer))
	for k, v := range attrs {
		kv = append(kv, attribute.String(k, v))
	}

	ctx, span := p.Tracer().Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(kv...),
	)

	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}
