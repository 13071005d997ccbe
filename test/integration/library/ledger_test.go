package integrationtests

import (
	"context"
	"testing"
	"time"

	"libris/pkg/model"
)

func boolPtr(b bool) *bool { return &b }

func seedLoan(t *testing.T, loan *model.Loan) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := helper.GetCollection("Loans").InsertOne(ctx, loan); err != nil {
		t.Fatalf("failed to seed loan: %v", err)
	}
}

// testLateLoanQuery pins the overdue filter: loan_date at or before the
// cutoff, and returned anything but true. The boundary day counts.
func testLateLoanQuery(t *testing.T) {
	resetDatabase(t)

	base := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	cutoff := base.AddDate(0, 0, -4)

	seedLoan(t, &model.Loan{
		BookID:        "65f1a2b3c4d5e6f7a8b9c001",
		BookIsbn:      "978-0000000001",
		Customer:      "recent",
		CustomerEmail: "recent@example.com",
		LoanDate:      base.AddDate(0, 0, -3),
	})
	seedLoan(t, &model.Loan{
		BookID:        "65f1a2b3c4d5e6f7a8b9c002",
		BookIsbn:      "978-0000000002",
		Customer:      "boundary",
		CustomerEmail: "boundary@example.com",
		LoanDate:      base.AddDate(0, 0, -4),
	})
	seedLoan(t, &model.Loan{
		BookID:        "65f1a2b3c4d5e6f7a8b9c003",
		BookIsbn:      "978-0000000003",
		Customer:      "outstanding",
		CustomerEmail: "outstanding@example.com",
		LoanDate:      base.AddDate(0, 0, -5),
		Returned:      boolPtr(false),
	})
	seedLoan(t, &model.Loan{
		BookID:        "65f1a2b3c4d5e6f7a8b9c004",
		BookIsbn:      "978-0000000004",
		Customer:      "settled",
		CustomerEmail: "settled@example.com",
		LoanDate:      base.AddDate(0, 0, -5),
		Returned:      boolPtr(true),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	late, err := loanRepo.FindLate(ctx, cutoff)
	if err != nil {
		t.Fatalf("FindLate failed: %v", err)
	}

	if len(late) != 2 {
		t.Fatalf("expected 2 late loans, got %d", len(late))
	}
	// Oldest first.
	if late[0].Customer != "outstanding" || late[1].Customer != "boundary" {
		t.Errorf("unexpected late loans: %s, %s", late[0].Customer, late[1].Customer)
	}
}

// testActiveLoanLookup covers the three returned states: absent and
// false both count as active, true does not.
func testActiveLoanLookup(t *testing.T) {
	resetDatabase(t)

	const (
		settledBook     = "65f1a2b3c4d5e6f7a8b9c101"
		outstandingBook = "65f1a2b3c4d5e6f7a8b9c102"
		undecidedBook   = "65f1a2b3c4d5e6f7a8b9c103"
		untouchedBook   = "65f1a2b3c4d5e6f7a8b9c104"
	)

	seedLoan(t, &model.Loan{
		BookID:        settledBook,
		BookIsbn:      "978-0000000101",
		Customer:      "Fulano",
		CustomerEmail: "fulano@example.com",
		LoanDate:      time.Now().UTC(),
		Returned:      boolPtr(true),
	})
	seedLoan(t, &model.Loan{
		BookID:        outstandingBook,
		BookIsbn:      "978-0000000102",
		Customer:      "Ciclano",
		CustomerEmail: "ciclano@example.com",
		LoanDate:      time.Now().UTC(),
		Returned:      boolPtr(false),
	})
	seedLoan(t, &model.Loan{
		BookID:        undecidedBook,
		BookIsbn:      "978-0000000103",
		Customer:      "Beltrano",
		CustomerEmail: "beltrano@example.com",
		LoanDate:      time.Now().UTC(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cases := []struct {
		name   string
		bookID string
		want   bool
	}{
		{"returned true is not active", settledBook, false},
		{"returned false is active", outstandingBook, true},
		{"returned absent is active", undecidedBook, true},
		{"no loans at all", untouchedBook, false},
	}
	for _, tc := range cases {
		got, err := loanRepo.ExistsActiveByBook(ctx, tc.bookID)
		if err != nil {
			t.Fatalf("%s: ExistsActiveByBook failed: %v", tc.name, err)
		}
		if got != tc.want {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}
