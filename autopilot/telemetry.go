package autopilot

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wippyai/autopilot-bridge/errors"
)

var tracer = otel.Tracer("autopilot.bridge")

var (
	remoteCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "autopilot_remote_calls_total",
		Help: "Remote operations invoked, by operation and outcome",
	}, []string{"operation", "outcome"})

	remoteCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "autopilot_remote_call_duration_seconds",
		Help:    "Wall time of remote operations including marshaling",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
	}, []string{"operation"})
)

func startCallSpan(ctx context.Context, sessionID, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs,
		attribute.String("autopilot.session", sessionID),
		attribute.String("autopilot.operation", op),
	)
	return tracer.Start(ctx, "autopilot."+op, trace.WithAttributes(attrs...))
}

// outcome labels a call result: ok, trap (the class raised) or error.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.KindOf(err) == errors.KindTrap:
		return "trap"
	default:
		return "error"
	}
}

func finishCall(span trace.Span, op string, start time.Time, err error) {
	out := outcome(err)
	remoteCalls.WithLabelValues(op, out).Inc()
	remoteCallDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())

	span.SetAttributes(attribute.String("autopilot.outcome", out))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
