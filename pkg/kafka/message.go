package kafka

import (
	"time"

	"github.com/google/uuid"

	"libris/pkg/model"
)

type EventType string

const (
	EventLoanCreated  EventType = "loan.created"
	EventLoanReturned EventType = "loan.returned"
)

// Event is the wire shape of a loan lifecycle notification. Key is the
// loan id so all events for one loan land on the same partition.
type Event struct {
	ID         string      `json:"id"`
	Type       EventType   `json:"type"`
	OccurredAt time.Time   `json:"occurred_at"`
	Loan       *model.Loan `json:"loan"`
}

func NewEvent(eventType EventType, loan *model.Loan) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Loan:       loan,
	}
}
