package model

import (
	"time"
)

// Loan references its book by identifier only. BookIsbn is denormalized so
// ledger queries never have to join the catalog.
type Loan struct {
	ID            string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	BookID        string    `json:"book_id" bson:"book_id" validate:"required,mongodb"`
	BookIsbn      string    `json:"book_isbn" bson:"book_isbn" validate:"required,min=1,max=20"`
	Customer      string    `json:"customer" bson:"customer" validate:"required,min=1,max=120"`
	CustomerEmail string    `json:"customer_email" bson:"customer_email" validate:"required,email"`
	LoanDate      time.Time `json:"loan_date" bson:"loan_date" validate:"omitempty"`
	// Returned is tri-state: nil means not yet decided, false means
	// explicitly outstanding, true means returned.
	Returned  *bool     `json:"returned,omitempty" bson:"returned,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty" bson:"created_at" validate:"omitempty"`
}

// Active reports whether the loan still counts against its book, i.e.
// Returned is anything but true.
func (l *Loan) Active() bool {
	return l.Returned == nil || !*l.Returned
}

// LoanRequest is the payload for creating a loan. The book is addressed by
// isbn and resolved by the ledger before persisting.
type LoanRequest struct {
	Isbn          string `json:"isbn" validate:"required,min=1,max=20"`
	Customer      string `json:"customer" validate:"required,min=1,max=120"`
	CustomerEmail string `json:"customer_email" validate:"required,email"`
}

// LoanReturn is the PATCH payload flipping the returned flag.
type LoanReturn struct {
	Returned *bool `json:"returned" validate:"required"`
}

// LoanWithBook embeds the book record into a loan listing entry.
type LoanWithBook struct {
	Loan
	Book *Book `json:"book,omitempty"`
}

// LoanLock is an advisory lock document guarding the critical section
// around loan creation. Its _id is the book id, so inserting a second
// lock for the same book fails on the primary key.
type LoanLock struct {
	BookID    string    `bson:"_id"`
	CreatedAt time.Time `bson:"created_at"`
}
