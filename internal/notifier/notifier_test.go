package notifier

import (
	"context"
	"errors"
	"testing"

	"libris/pkg/logger"
	"libris/pkg/model"
)

type mockLedger struct {
	loans []*model.Loan
	err   error
}

func (m *mockLedger) GetAllLateLoans(ctx context.Context) ([]*model.Loan, error) {
	return m.loans, m.err
}

type mockSender struct {
	bodies     []string
	recipients [][]string
	err        error
}

func (m *mockSender) Send(body string, recipients []string) error {
	m.bodies = append(m.bodies, body)
	m.recipients = append(m.recipients, recipients)
	return m.err
}

func testLogger() *logger.Logger {
	return logger.New(logger.Config{
		Level:     "error",
		Format:    logger.JSON,
		AddSource: false,
		Service:   "test",
	})
}

func TestRun_SendsOneBatchedMessage(t *testing.T) {
	ledger := &mockLedger{loans: []*model.Loan{
		{ID: "1", CustomerEmail: "alice@example.com"},
		{ID: "2", CustomerEmail: "bob@example.com"},
		{ID: "3", CustomerEmail: "alice@example.com"},
	}}
	sender := &mockSender{}

	n := New(ledger, sender, "0 0 * * *", "You have a late loan.", testLogger())
	n.Run()

	if len(sender.bodies) != 1 {
		t.Fatalf("expected one send, got %d", len(sender.bodies))
	}
	if sender.bodies[0] != "You have a late loan." {
		t.Errorf("unexpected body: %q", sender.bodies[0])
	}

	// One recipient entry per late loan, duplicates included.
	got := sender.recipients[0]
	if len(got) != 3 {
		t.Fatalf("expected 3 recipients, got %v", got)
	}
	if got[0] != "alice@example.com" || got[1] != "bob@example.com" || got[2] != "alice@example.com" {
		t.Errorf("unexpected recipients: %v", got)
	}
}

func TestRun_NoLateLoansSkipsSend(t *testing.T) {
	sender := &mockSender{}

	n := New(&mockLedger{}, sender, "0 0 * * *", "msg", testLogger())
	n.Run()

	if len(sender.bodies) != 0 {
		t.Errorf("expected no send, got %d", len(sender.bodies))
	}
}

func TestRun_LedgerErrorSkipsSend(t *testing.T) {
	sender := &mockSender{}

	n := New(&mockLedger{err: errors.New("boom")}, sender, "0 0 * * *", "msg", testLogger())
	n.Run()

	if len(sender.bodies) != 0 {
		t.Errorf("expected no send, got %d", len(sender.bodies))
	}
}

func TestRun_SenderErrorDoesNotPanic(t *testing.T) {
	ledger := &mockLedger{loans: []*model.Loan{{ID: "1", CustomerEmail: "alice@example.com"}}}
	sender := &mockSender{err: errors.New("smtp down")}

	n := New(ledger, sender, "0 0 * * *", "msg", testLogger())
	n.Run()
}

func TestStart_RejectsInvalidSchedule(t *testing.T) {
	n := New(&mockLedger{}, &mockSender{}, "not a schedule", "msg", testLogger())
	if err := n.Start(); err == nil {
		t.Fatal("expected an error for an invalid cron expression")
	}
}
