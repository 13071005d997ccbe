// Package notifier mails customers holding late loans on a cron schedule.
package notifier

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"libris/pkg/logger"
	"libris/pkg/model"
)

// LoanLedger is the slice of the loan service the notifier needs.
type LoanLedger interface {
	GetAllLateLoans(ctx context.Context) ([]*model.Loan, error)
}

// Sender delivers one message body to a batch of recipients.
type Sender interface {
	Send(body string, recipients []string) error
}

type Notifier struct {
	ledger   LoanLedger
	sender   Sender
	schedule string
	message  string
	log      *logger.Logger

	cron *cron.Cron
}

func New(ledger LoanLedger, sender Sender, schedule, message string, log *logger.Logger) *Notifier {
	return &Notifier{
		ledger:   ledger,
		sender:   sender,
		schedule: schedule,
		message:  message,
		log:      log,
		cron:     cron.New(),
	}
}

// Start registers the notification job and begins the scheduler. The
// schedule is a standard five-field cron expression.
func (n *Notifier) Start() error {
	_, err := n.cron.AddFunc(n.schedule, n.Run)
	if err != nil {
		return err
	}
	n.cron.Start()
	n.log.Info("Late loan notifier started", "schedule", n.schedule)
	return nil
}

// Stop halts the scheduler and waits for a running job to finish.
func (n *Notifier) Stop() {
	ctx := n.cron.Stop()
	<-ctx.Done()
	n.log.Info("Late loan notifier stopped")
}

// Run executes one notification cycle: collect late loans, mail every
// affected customer in a single batched message. A customer with several
// late loans receives the message once per loan.
func (n *Notifier) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	loans, err := n.ledger.GetAllLateLoans(ctx)
	if err != nil {
		n.log.Error("Failed to collect late loans", "error", err)
		return
	}
	if len(loans) == 0 {
		n.log.Info("No late loans found")
		return
	}

	recipients := make([]string, 0, len(loans))
	for _, loan := range loans {
		recipients = append(recipients, loan.CustomerEmail)
	}

	if err := n.sender.Send(n.message, recipients); err != nil {
		n.log.Error("Failed to send late loan mail",
			"recipients", len(recipients),
			"error", err,
		)
		return
	}

	n.log.Info("Late loan notifications sent", "loans", len(loans))
}
