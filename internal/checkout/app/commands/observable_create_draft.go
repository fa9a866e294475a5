package commands

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/mistika/checkout/internal/checkout/domain"
	"github.com/mistika/checkout/internal/checkout/metrics"
	"github.com/mistika/checkout/internal/telemetry"
)

type ObservableDraftCommandHandler struct {
	handler DraftCommandHandler
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewObservableDraftCommandHandler(handler DraftCommandHandler, logger *slog.Logger, metrics *metrics.Metrics) *ObservableDraftCommandHandler {
	return &ObservableDraftCommandHandler{
		handler: handler,
		logger:  logger,
		metrics: metrics,
	}
}

func (o *ObservableDraftCommandHandler) Handle(ctx context.Context, cmd CreateDraftCommand) (*domain.OrderDraft, error) {
	ctx, span := telemetry.StartSpan(ctx, "CreateDraftCommand.Handle")
	defer span.End()

	start := time.Now()
	var success bool
	defer func() {
		o.metrics.RecordDraftCreationDuration(ctx, time.Since(start).Seconds())
		o.metrics.RecordDraftCreated(ctx, success)
	}()

	o.logger.InfoContext(ctx, "creating checkout draft",
		"customer_email", cmd.CustomerEmail,
		"amount_cents", cmd.AmountCents,
	)

	draft, err := o.handler.Handle(ctx, cmd)
	if err != nil {
		telemetry.RecordSpanError(span, err)
		o.logger.ErrorContext(ctx, "failed to create checkout draft",
			"error", err,
			"customer_email", cmd.CustomerEmail,
		)
		return nil, err
	}

	telemetry.AddSpanAttributes(span,
		attribute.String("draft.id", draft.ID),
		attribute.Int64("draft.amount_cents", draft.AmountCents),
		attribute.String("draft.currency", draft.Currency),
	)

	o.logger.InfoContext(ctx, "checkout draft created", "draft_id", draft.ID)

	success = true
	telemetry.SetSpanSuccess(span)

	return draft, nil
}
