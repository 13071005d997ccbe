package kafka

import (
	"context"

	"libris/pkg/logger"
	"libris/pkg/model"
)

// LoanEvents publishes loan lifecycle events fire-and-forget: delivery
// failures are logged and never fail the originating request.
type LoanEvents struct {
	producer *Producer
	log      *logger.Logger
}

func NewLoanEvents(producer *Producer, log *logger.Logger) *LoanEvents {
	return &LoanEvents{
		producer: producer,
		log:      log,
	}
}

func (e *LoanEvents) LoanCreated(ctx context.Context, loan *model.Loan) {
	e.publish(ctx, NewEvent(EventLoanCreated, loan))
}

func (e *LoanEvents) LoanReturned(ctx context.Context, loan *model.Loan) {
	e.publish(ctx, NewEvent(EventLoanReturned, loan))
}

func (e *LoanEvents) publish(ctx context.Context, event Event) {
	if err := e.producer.Publish(ctx, event); err != nil {
		e.log.Error("Failed to publish loan event",
			"event_type", event.Type,
			"loan_id", event.Loan.ID,
			"error", err,
		)
	}
}

func (e *LoanEvents) Close() error {
	return e.producer.Close()
}
