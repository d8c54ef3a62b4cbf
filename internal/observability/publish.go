package observability

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// Publisher delivers JSON events to the message broker.
type Publisher interface {
	PublishJSON(ctx context.Context, routingKey string, message interface{}, headers map[string]string) error
}

var defaultPublisher Publisher

func SetPublisher(publisher Publisher) {
	defaultPublisher = publisher
}

func PublishEvent(ctx context.Context, routingKey string, message interface{}, headers map[string]string) error {
	if defaultPublisher == nil {
		return nil
	}

	err := defaultPublisher.PublishJSON(ctx, routingKey, message, headers)
	if err != nil {
		IncAMQPPublishError()
	}
	return err
}

// PublishDomainEvent wraps payload in a domain_events envelope and publishes
// it with the request and trace ids found in ctx.
func PublishDomainEvent(ctx context.Context, routingKey, eventName string, payload map[string]interface{}) error {
	return PublishEvent(ctx, routingKey, EventEnvelope{
		EventType: "domain_events",
		EventName: eventName,
		Payload:   payload,
	}, BuildHeaders(RequestIDFromContext(ctx), TraceIDFromContext(ctx)))
}

// TraceIDFromContext returns the active trace id or "".
func TraceIDFromContext(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}
