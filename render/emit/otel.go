package emit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelEmitter records one OpenTelemetry trace per render job.
//
// job_start opens a "render_job" span that stays open until job_done,
// job_abort or job_failed ends it. Every event in between becomes a span
// event on the job span, so a job of thousands of frames produces one span
// rather than thousands. Events of a job whose start was not seen are
// recorded as standalone spans named after the event.
//
// Attributes are namespaced filmstrip.*; Meta entries are added as
// attributes of their own. task_failed records an exception on the job span;
// job_failed sets the span status to Error.
//
// Usage:
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	otel.SetTracerProvider(tp)
//	emitter := emit.NewOTelEmitter(otel.Tracer("filmstrip"))
type OTelEmitter struct {
	tracer trace.Tracer

	mu   sync.Mutex
	jobs map[string]trace.Span
}

// NewOTelEmitter creates an emitter that records spans with tracer.
func NewOTelEmitter(tracer trace.Tracer) *OTelEmitter {
	return &OTelEmitter{
		tracer: tracer,
		jobs:   make(map[string]trace.Span),
	}
}

// Emit records the event.
func (o *OTelEmitter) Emit(event Event) {
	o.emit(context.Background(), event)
}

// EmitBatch records several events, stopping early if ctx is cancelled.
func (o *OTelEmitter) EmitBatch(ctx context.Context, events []Event) error {
	for _, event := range events {
		if err := ctx.Err(); err != nil {
			return err
		}
		o.emit(ctx, event)
	}
	return nil
}

// OpenJobs returns the number of job spans that have not ended yet.
func (o *OTelEmitter) OpenJobs() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.jobs)
}

func (o *OTelEmitter) emit(ctx context.Context, event Event) {
	switch event.Msg {
	case MsgJobStart:
		o.startJob(ctx, event)
	case MsgJobDone, MsgJobAbort, MsgJobFailed:
		o.endJob(ctx, event)
	default:
		o.mu.Lock()
		span, ok := o.jobs[event.JobID]
		o.mu.Unlock()
		if !ok {
			o.standalone(ctx, event)
			return
		}
		attrs := append(eventAttributes(event), metaAttributes(event.Meta)...)
		if msg, failed := errorText(event); failed {
			span.RecordError(errors.New(msg), trace.WithAttributes(attrs...))
			return
		}
		span.AddEvent(event.Msg, trace.WithAttributes(attrs...))
	}
}

func (o *OTelEmitter) startJob(ctx context.Context, event Event) {
	_, span := o.tracer.Start(ctx, "render_job",
		trace.WithAttributes(attribute.String("filmstrip.job_id", event.JobID)),
		trace.WithAttributes(metaAttributes(event.Meta)...))

	o.mu.Lock()
	prev := o.jobs[event.JobID]
	o.jobs[event.JobID] = span
	o.mu.Unlock()

	if prev != nil {
		prev.End()
	}
}

func (o *OTelEmitter) endJob(ctx context.Context, event Event) {
	o.mu.Lock()
	span, ok := o.jobs[event.JobID]
	delete(o.jobs, event.JobID)
	o.mu.Unlock()

	if !ok {
		o.standalone(ctx, event)
		return
	}
	finish(span, event)
}

// standalone records an event that has no open job span.
func (o *OTelEmitter) standalone(ctx context.Context, event Event) {
	_, span := o.tracer.Start(ctx, event.Msg, trace.WithAttributes(eventAttributes(event)...))
	finish(span, event)
}

func finish(span trace.Span, event Event) {
	span.SetAttributes(metaAttributes(event.Meta)...)
	span.SetAttributes(attribute.String("filmstrip.outcome", event.Msg))
	if msg, failed := errorText(event); failed {
		span.SetStatus(codes.Error, msg)
		span.RecordError(errors.New(msg))
	}
	span.End()
}

func errorText(event Event) (string, bool) {
	msg, ok := event.Meta["error"].(string)
	return msg, ok
}

// Flush forces export of buffered spans when the global provider supports it.
// Open job spans are not exported until they end.
func (o *OTelEmitter) Flush(ctx context.Context) error {
	type flusher interface {
		ForceFlush(context.Context) error
	}
	if f, ok := otel.GetTracerProvider().(flusher); ok {
		return f.ForceFlush(ctx)
	}
	return nil
}

func eventAttributes(event Event) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("filmstrip.job_id", event.JobID),
		attribute.Int("filmstrip.seq", event.Seq),
	}
	if event.TaskKey != "" {
		attrs = append(attrs, attribute.String("filmstrip.task_key", event.TaskKey))
	}
	return attrs
}

// metaAttributes converts Meta entries. Well-known keys are renamed into the
// filmstrip namespace; "error" is reported through the span status instead.
func metaAttributes(meta map[string]interface{}) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(meta))
	for key, value := range meta {
		switch key {
		case "error":
			continue
		case "duration_ms":
			key = "filmstrip.task.duration_ms"
		case "frames":
			key = "filmstrip.job.frames"
		case "role":
			key = "filmstrip.cache.role"
		}

		var kv attribute.KeyValue
		switch v := value.(type) {
		case string:
			kv = attribute.String(key, v)
		case int:
			kv = attribute.Int(key, v)
		case int64:
			kv = attribute.Int64(key, v)
		case float64:
			kv = attribute.Float64(key, v)
		case bool:
			kv = attribute.Bool(key, v)
		case time.Duration:
			kv = attribute.Int64(key, v.Milliseconds())
		default:
			kv = attribute.String(key, fmt.Sprint(v))
		}
		attrs = append(attrs, kv)
	}
	return attrs
}
