package integrationtests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"sync"
	"testing"

	"libris/test/integration/testutil"
)

func testDuplicateIsbn(t *testing.T) {
	resetDatabase(t)

	createBook(t, "Clean Code", "Robert Martin", "978-0132350884")

	resp := httpClient.POST(t, "/books", map[string]string{
		"title":  "Clean Code, second copy",
		"author": "Robert Martin",
		"isbn":   "978-0132350884",
	})
	testutil.AssertStatusCode(t, resp, http.StatusBadRequest)
	testutil.AssertErro(t, resp, "Isbn already registered")

	if count := helper.CountDocuments(t, "Books"); count != 1 {
		t.Errorf("expected 1 book after duplicate rejection, got %d", count)
	}
}

// testConcurrentBookCreation races identical creates; the unique isbn
// index must let exactly one through.
func testConcurrentBookCreation(t *testing.T) {
	resetDatabase(t)

	const workers = 10
	payload := map[string]string{
		"title":  "The Mythical Man-Month",
		"author": "Fred Brooks",
		"isbn":   "978-0201835953",
	}

	statuses := raceRequests(t, workers, http.MethodPost, "/books", payload)

	created := 0
	for _, status := range statuses {
		switch status {
		case http.StatusCreated:
			created++
		case http.StatusBadRequest:
		default:
			t.Errorf("unexpected status %d from concurrent create", status)
		}
	}
	if created != 1 {
		t.Errorf("expected exactly 1 created book, got %d", created)
	}
	if count := helper.CountDocuments(t, "Books"); count != 1 {
		t.Errorf("expected 1 book document, got %d", count)
	}
}

// testConcurrentLoanCreation races loans for one book; the advisory lock
// and the transactional active-loan check must admit a single winner.
func testConcurrentLoanCreation(t *testing.T) {
	resetDatabase(t)

	book := createBook(t, "Designing Data-Intensive Applications", "Martin Kleppmann", "978-1449373320")

	const workers = 10
	payload := map[string]string{
		"isbn":           book.Isbn,
		"customer":       "Fulano",
		"customer_email": "fulano@example.com",
	}

	statuses := raceRequests(t, workers, http.MethodPost, "/loans", payload)

	created := 0
	for _, status := range statuses {
		switch status {
		case http.StatusCreated:
			created++
		case http.StatusBadRequest:
		default:
			t.Errorf("unexpected status %d from concurrent loan", status)
		}
	}
	if created != 1 {
		t.Errorf("expected exactly 1 created loan, got %d", created)
	}
	if count := helper.CountDocuments(t, "Loans"); count != 1 {
		t.Errorf("expected 1 loan document, got %d", count)
	}
}

// raceRequests fires the same request from n goroutines at once and
// collects the status codes. Failures are reported from the main
// goroutine only.
func raceRequests(t *testing.T, n int, method, path string, payload any) []int {
	t.Helper()

	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}

	var (
		wg       sync.WaitGroup
		start    = make(chan struct{})
		statuses = make(chan int, n)
		errs     = make(chan error, n)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start

			req, err := http.NewRequest(method, httpClient.BaseURL+path, bytes.NewReader(body))
			if err != nil {
				errs <- err
				return
			}
			req.Header.Set("Content-Type", "application/json")

			resp, err := httpClient.HTTPClient.Do(req)
			if err != nil {
				errs <- err
				return
			}
			resp.Body.Close()
			statuses <- resp.StatusCode
		}()
	}
	close(start)
	wg.Wait()
	close(statuses)
	close(errs)

	for err := range errs {
		t.Fatalf("concurrent request failed: %v", err)
	}

	collected := make([]int, 0, n)
	for status := range statuses {
		collected = append(collected, status)
	}
	return collected
}
