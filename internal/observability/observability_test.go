package observability

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

type recordingPublisher struct {
	routingKey string
	message    interface{}
	headers    map[string]string
	err        error
}

func (p *recordingPublisher) PublishJSON(_ context.Context, routingKey string, message interface{}, headers map[string]string) error {
	p.routingKey = routingKey
	p.message = message
	p.headers = headers
	return p.err
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestPublishDomainEventCarriesHeaders(t *testing.T) {
	pub := &recordingPublisher{}
	SetPublisher(pub)
	defer SetPublisher(nil)

	traceID := trace.TraceID{1, 2, 3}
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  trace.SpanID{1},
	}))
	ctx = WithRequestID(ctx, "req-1")

	err := PublishDomainEvent(ctx, "domain_events.posts", "post_created", map[string]interface{}{"post_id": 7})
	require.NoError(t, err)

	assert.Equal(t, "domain_events.posts", pub.routingKey)
	envelope, ok := pub.message.(EventEnvelope)
	require.True(t, ok)
	assert.Equal(t, "domain_events", envelope.EventType)
	assert.Equal(t, "post_created", envelope.EventName)
	assert.Equal(t, map[string]string{"x-request-id": "req-1", "trace_id": traceID.String()}, pub.headers)
}

func TestPublishEventCountsErrors(t *testing.T) {
	SetPublisher(&recordingPublisher{err: errors.New("closed")})
	defer SetPublisher(nil)

	before := counterValue(t, amqpPublishErrorsTotal)
	err := PublishEvent(context.Background(), "rk", EventEnvelope{}, nil)
	assert.Error(t, err)
	assert.Equal(t, before+1, counterValue(t, amqpPublishErrorsTotal))
}

func TestPublishEventWithoutPublisher(t *testing.T) {
	SetPublisher(nil)
	assert.NoError(t, PublishEvent(context.Background(), "rk", EventEnvelope{}, nil))
}

func TestBuildHeadersOmitsEmpty(t *testing.T) {
	assert.Empty(t, BuildHeaders("", ""))
	assert.Equal(t, map[string]string{"x-request-id": "r"}, BuildHeaders("r", ""))
}

func TestRequestIDFromRequest(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	assert.Empty(t, RequestIDFromRequest(req))

	req.Header.Set("X-Request-ID", "req-7")
	assert.Equal(t, "req-7", RequestIDFromRequest(req))
}
