package commands

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/mistika/checkout/internal/checkout/metrics"
	"github.com/mistika/checkout/internal/telemetry"
)

type ObservableWebhookCommandHandler struct {
	handler WebhookCommandHandler
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewObservableWebhookCommandHandler(handler WebhookCommandHandler, logger *slog.Logger, metrics *metrics.Metrics) *ObservableWebhookCommandHandler {
	return &ObservableWebhookCommandHandler{
		handler: handler,
		logger:  logger,
		metrics: metrics,
	}
}

func (o *ObservableWebhookCommandHandler) Handle(ctx context.Context, cmd ProcessWebhookCommand) (ProcessWebhookResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "ProcessWebhookCommand.Handle")
	defer span.End()

	n := cmd.Notification
	telemetry.AddSpanAttributes(span,
		attribute.String("webhook.provider", n.Provider),
		attribute.String("webhook.event_id", n.EventID),
		attribute.String("webhook.topic", n.Topic),
		attribute.String("webhook.resource_id", n.ResourceID),
	)

	start := time.Now()
	result, err := o.handler.Handle(ctx, cmd)

	outcome := string(result.Outcome)
	if err != nil && outcome == "" {
		outcome = string(OutcomeFailed)
	}
	o.metrics.RecordWebhook(ctx, n.Topic, outcome, time.Since(start).Seconds())
	telemetry.AddSpanAttributes(span, attribute.String("webhook.outcome", outcome))

	if err != nil {
		telemetry.RecordSpanError(span, err)
		o.logger.ErrorContext(ctx, "webhook processing failed",
			"error", err,
			"event_id", n.EventID,
			"topic", n.Topic,
			"resource_id", n.ResourceID,
		)
		return result, err
	}

	o.logger.InfoContext(ctx, "webhook handled",
		"event_id", n.EventID,
		"topic", n.Topic,
		"resource_id", n.ResourceID,
		"outcome", outcome,
	)

	telemetry.SetSpanSuccess(span)
	return result, nil
}
