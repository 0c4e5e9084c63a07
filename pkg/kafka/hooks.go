package kafka

import (
	"context"
	"time"

	applogger "EconDash/pkg/logger"

	"github.com/segmentio/kafka-go"
)

// ConsumerHook observes message handling. BeforeHandle may replace the
// context; returning an error skips the handler for that attempt.
type ConsumerHook interface {
	BeforeHandle(ctx context.Context, km kafka.Message) (context.Context, error)
	AfterHandle(ctx context.Context, km kafka.Message, err error)
}

// NoopHook does nothing.
type NoopHook struct{}

func (NoopHook) BeforeHandle(ctx context.Context, _ kafka.Message) (context.Context, error) {
	return ctx, nil
}

func (NoopHook) AfterHandle(context.Context, kafka.Message, error) {}

type ctxKey string

const (
	ctxStartTime ctxKey = "kafka_hook_start_time"
	ctxTraceID   ctxKey = "kafka_hook_trace_id"
)

// TraceID returns the trace id a LoggingHook put in ctx, if any.
func TraceID(ctx context.Context) string {
	v, _ := ctx.Value(ctxTraceID).(string)
	return v
}

// ExtractTraceID tries to get trace id from Kafka headers.
func ExtractTraceID(msg kafka.Message) string {
	for _, h := range msg.Headers {
		if h.Key == "trace_id" && len(h.Value) > 0 {
			return string(h.Value)
		}
	}
	return ""
}

// LoggingHook logs every handled message with its outcome and latency.
type LoggingHook struct {
	Log *applogger.Logger
}

func (h LoggingHook) BeforeHandle(ctx context.Context, km kafka.Message) (context.Context, error) {
	ctx = context.WithValue(ctx, ctxStartTime, time.Now())
	if id := ExtractTraceID(km); id != "" {
		ctx = context.WithValue(ctx, ctxTraceID, id)
	}
	return ctx, nil
}

func (h LoggingHook) AfterHandle(ctx context.Context, km kafka.Message, err error) {
	fields := []applogger.Field{
		applogger.String("topic", km.Topic),
		applogger.Int("partition", km.Partition),
		applogger.Int64("offset", km.Offset),
	}
	if start, ok := ctx.Value(ctxStartTime).(time.Time); ok {
		fields = append(fields, applogger.Duration("took_ms", time.Since(start)))
	}
	if id := TraceID(ctx); id != "" {
		fields = append(fields, applogger.String("trace_id", id))
	}
	if err != nil {
		h.Log.Warn("kafka message failed", append(fields, applogger.Error(err))...)
		return
	}
	h.Log.Debug("kafka message handled", fields...)
}
