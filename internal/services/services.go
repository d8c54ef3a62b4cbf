// Package services holds the use cases behind the HTTP API. Each method
// loads what it needs, applies the access rules and input validation, and
// hands the mutation to a repository. Errors returned are *apperr.Error.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"emi-service/internal/apperr"
	"emi-service/internal/observability"
	"emi-service/internal/telemetry"
)

var tracer = otel.Tracer("emi-service/services")

// finish ends span, flagging it only for unexpected failures.
func finish(span trace.Span, err error) {
	if err != nil && apperr.KindOf(err) == apperr.KindInternal {
		span.RecordError(err)
		span.SetStatus(codes.Error, "internal error")
	}
	span.End()
}

// storeErr passes typed errors through and hides anything else behind an
// Internal error carrying op.
func storeErr(op string, err error) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	return apperr.Internal(op, err)
}

// notifier fans a successful mutation out to the audit log and the domain
// event exchange. Both are best effort.
type notifier struct {
	audit *telemetry.AuditEmitter
}

func (n notifier) record(ctx context.Context, userID int64, text, routingKey, eventName string, payload map[string]interface{}) {
	n.audit.Emit(ctx, "INFO", text, observability.RequestIDFromContext(ctx), userID)
	if err := observability.PublishDomainEvent(ctx, routingKey, eventName, payload); err != nil {
		log.Warn().Err(err).Str("event", eventName).Msg("domain event publish failed")
	}
}

func utcNow() time.Time { return time.Now().UTC() }
