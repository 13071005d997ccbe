package integrationtests

import (
	"fmt"
	"net/http"
	"testing"

	"libris/pkg/model"
	"libris/test/integration/testutil"
)

func createBook(t *testing.T, title, author, isbn string) *model.Book {
	t.Helper()

	resp := httpClient.POST(t, "/books", map[string]string{
		"title":  title,
		"author": author,
		"isbn":   isbn,
	})
	testutil.AssertStatusCode(t, resp, http.StatusCreated)

	var envelope struct {
		Data model.Book `json:"data"`
	}
	if err := resp.DecodeJSON(&envelope); err != nil {
		t.Fatalf("failed to decode created book: %v", err)
	}
	if envelope.Data.ID == "" {
		t.Fatal("created book has no id")
	}
	return &envelope.Data
}

func postLoan(t *testing.T, isbn, customer, email string) *testutil.Response {
	t.Helper()
	return httpClient.POST(t, "/loans", map[string]string{
		"isbn":           isbn,
		"customer":       customer,
		"customer_email": email,
	})
}

func decodeLoan(t *testing.T, resp *testutil.Response) *model.Loan {
	t.Helper()
	var envelope struct {
		Data model.Loan `json:"data"`
	}
	if err := resp.DecodeJSON(&envelope); err != nil {
		t.Fatalf("failed to decode loan: %v", err)
	}
	return &envelope.Data
}

// testLoanLifecycle walks a book through loan, conflicting loan, return
// and re-loan against the real database.
func testLoanLifecycle(t *testing.T) {
	resetDatabase(t)

	book := createBook(t, "The Go Programming Language", "Alan Donovan", "978-0134190440")

	resp := postLoan(t, book.Isbn, "Fulano", "fulano@example.com")
	testutil.AssertStatusCode(t, resp, http.StatusCreated)
	first := decodeLoan(t, resp)
	if first.BookID != book.ID {
		t.Errorf("expected loan book_id %s, got %s", book.ID, first.BookID)
	}
	if !first.Active() {
		t.Error("freshly created loan should be active")
	}

	// The book is out; a second loan must be rejected.
	resp = postLoan(t, book.Isbn, "Ciclano", "ciclano@example.com")
	testutil.AssertStatusCode(t, resp, http.StatusBadRequest)
	testutil.AssertErro(t, resp, "Book already loaned")

	resp = httpClient.PATCH(t, "/loans/"+first.ID, map[string]bool{"returned": true})
	testutil.AssertStatusCode(t, resp, http.StatusOK)
	returned := decodeLoan(t, resp)
	if returned.Returned == nil || !*returned.Returned {
		t.Error("expected returned flag to be true after PATCH")
	}

	// Returned loans stay returned.
	resp = httpClient.PATCH(t, "/loans/"+first.ID, map[string]bool{"returned": false})
	testutil.AssertStatusCode(t, resp, http.StatusBadRequest)
	testutil.AssertErro(t, resp, "Loan already returned")

	// With the book back on the shelf a new loan succeeds.
	resp = postLoan(t, book.Isbn, "Ciclano", "ciclano@example.com")
	testutil.AssertStatusCode(t, resp, http.StatusCreated)

	resp = httpClient.GET(t, "/loans?isbn="+book.Isbn)
	testutil.AssertStatusCode(t, resp, http.StatusOK)
	var listing struct {
		Data       []model.LoanWithBook `json:"data"`
		TotalCount int64                `json:"total_count"`
	}
	if err := resp.DecodeJSON(&listing); err != nil {
		t.Fatalf("failed to decode loan listing: %v", err)
	}
	if listing.TotalCount != 2 {
		t.Errorf("expected 2 loans for isbn %s, got %d", book.Isbn, listing.TotalCount)
	}
	for _, entry := range listing.Data {
		if entry.Book == nil || entry.Book.ID != book.ID {
			t.Errorf("expected loan %s to embed book %s", entry.ID, book.ID)
		}
	}

	resp = httpClient.GET(t, fmt.Sprintf("/books/%s/loans", book.ID))
	testutil.AssertStatusCode(t, resp, http.StatusOK)
	if err := resp.DecodeJSON(&listing); err != nil {
		t.Fatalf("failed to decode book loan history: %v", err)
	}
	if listing.TotalCount != 2 {
		t.Errorf("expected 2 loans in book history, got %d", listing.TotalCount)
	}

	resp = httpClient.GET(t, "/books/65f1a2b3c4d5e6f7a8b9c0ff/loans")
	testutil.AssertStatusCode(t, resp, http.StatusNotFound)
}

func testLoanForUnknownIsbn(t *testing.T) {
	resetDatabase(t)

	resp := postLoan(t, "000-0000000000", "Fulano", "fulano@example.com")
	testutil.AssertStatusCode(t, resp, http.StatusBadRequest)
	testutil.AssertErro(t, resp, "Book not found for passed isbn")
}
