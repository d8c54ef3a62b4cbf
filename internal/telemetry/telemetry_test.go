package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	routingKey string
	event      any
	err        error
}

func (p *capturePublisher) Publish(_ context.Context, routingKey string, event any) error {
	p.routingKey = routingKey
	p.event = event
	return p.err
}

func TestAuditEmitterBuildsEnvelope(t *testing.T) {
	pub := &capturePublisher{}
	e := NewAuditEmitter(pub, "audit.emi", "emi-service", "test")
	e.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

	e.Emit(context.Background(), "INFO", "chat created", "req-1", 42)

	require.Equal(t, "audit.emi", pub.routingKey)
	env, ok := pub.event.(AuditEnvelope)
	require.True(t, ok)
	assert.Equal(t, "audit_log", env.EventType)
	assert.Equal(t, "2024-05-01T12:00:00Z", env.OccurredAt)
	assert.Equal(t, "emi-service", env.Service)
	require.NotNil(t, env.UserID)
	assert.Equal(t, "42", *env.UserID)
	assert.Equal(t, AuditPayload{Level: "INFO", Text: "chat created"}, env.Payload)
}

func TestAuditEmitterAnonymousAndFailures(t *testing.T) {
	pub := &capturePublisher{err: errors.New("down")}
	e := NewAuditEmitter(pub, "audit.emi", "emi-service", "test")
	e.Emit(context.Background(), "WARN", "login failed", "", 0)

	env := pub.event.(AuditEnvelope)
	assert.Nil(t, env.UserID)
}

func TestNilAuditEmitterIsNoop(t *testing.T) {
	var e *AuditEmitter
	assert.NotPanics(t, func() { e.Emit(context.Background(), "INFO", "x", "", 1) })
}

func TestInitTracingDisabled(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), "emi-service", "")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
