package service

import (
	"context"
	"errors"
	"testing"
	"time"

	bookserrors "libris/internal/books/errors"
	"libris/internal/books/validator"
	"libris/pkg/config"
	mongotx "libris/pkg/db/mongo"
	apperrors "libris/pkg/errors"
	"libris/pkg/logger"
	"libris/pkg/model"
)

// ────────────────────────────────────────────────
// Mock repository for testing
// ────────────────────────────────────────────────

type mockBookRepository struct {
	createFunc       func(ctx context.Context, book *model.Book) error
	findByIDFunc     func(ctx context.Context, id string) (*model.Book, error)
	findByIsbnFunc   func(ctx context.Context, isbn string) (*model.Book, error)
	existsByIsbnFunc func(ctx context.Context, isbn string) (bool, error)
	findFunc         func(ctx context.Context, filter *model.BookFilter, limit int, offset int64) ([]*model.Book, error)
	countFunc        func(ctx context.Context, filter *model.BookFilter) (int64, error)
	updateFunc       func(ctx context.Context, book *model.Book) error
	deleteFunc       func(ctx context.Context, id string) error
}

func (m *mockBookRepository) Create(ctx context.Context, book *model.Book) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, book)
	}
	return nil
}

func (m *mockBookRepository) FindByID(ctx context.Context, id string) (*model.Book, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, bookserrors.ErrNotFound
}

func (m *mockBookRepository) FindByIsbn(ctx context.Context, isbn string) (*model.Book, error) {
	if m.findByIsbnFunc != nil {
		return m.findByIsbnFunc(ctx, isbn)
	}
	return nil, bookserrors.ErrNotFound
}

func (m *mockBookRepository) ExistsByIsbn(ctx context.Context, isbn string) (bool, error) {
	if m.existsByIsbnFunc != nil {
		return m.existsByIsbnFunc(ctx, isbn)
	}
	return false, nil
}

func (m *mockBookRepository) Find(ctx context.Context, filter *model.BookFilter, limit int, offset int64) ([]*model.Book, error) {
	if m.findFunc != nil {
		return m.findFunc(ctx, filter, limit, offset)
	}
	return []*model.Book{}, nil
}

func (m *mockBookRepository) Count(ctx context.Context, filter *model.BookFilter) (int64, error) {
	if m.countFunc != nil {
		return m.countFunc(ctx, filter)
	}
	return 0, nil
}

func (m *mockBookRepository) Update(ctx context.Context, book *model.Book) error {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, book)
	}
	return nil
}

func (m *mockBookRepository) Delete(ctx context.Context, id string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return nil
}

func (m *mockBookRepository) EnsureIndexes(ctx context.Context) error {
	return nil
}

func (m *mockBookRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(nil)
}

func testConfig() *config.Config {
	return &config.Config{
		Log: logger.New(logger.Config{
			Level:     "error",
			Format:    logger.JSON,
			AddSource: false,
			Service:   "test",
		}),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
}

func newTestService(repo *mockBookRepository) BookService {
	cfg := testConfig()
	return NewBookService(repo, validator.NewBookValidator(cfg.Log), cfg)
}

// ────────────────────────────────────────────────
// Tests for Create()
// ────────────────────────────────────────────────

func TestCreate_DuplicateIsbnPrecheck(t *testing.T) {
	created := false
	repo := &mockBookRepository{
		existsByIsbnFunc: func(ctx context.Context, isbn string) (bool, error) {
			return true, nil
		},
		createFunc: func(ctx context.Context, book *model.Book) error {
			created = true
			return nil
		},
	}

	svc := newTestService(repo)
	err := svc.Create(context.Background(), &model.Book{
		Title:  "The Go Programming Language",
		Author: "Alan Donovan",
		Isbn:   "9780134190440",
	})

	appErr := apperrors.AsAppError(err)
	if appErr.Code != apperrors.CodeBusinessRule {
		t.Fatalf("expected business rule error, got %v", err)
	}
	if appErr.Erros[0] != "Isbn already registered" {
		t.Errorf("unexpected message: %q", appErr.Erros[0])
	}
	if created {
		t.Error("create should not run after the uniqueness pre-check fails")
	}
}

func TestCreate_DuplicateIsbnOnInsert(t *testing.T) {
	repo := &mockBookRepository{
		createFunc: func(ctx context.Context, book *model.Book) error {
			return bookserrors.ErrDuplicateIsbn
		},
	}

	svc := newTestService(repo)
	err := svc.Create(context.Background(), &model.Book{
		Title:  "The Go Programming Language",
		Author: "Alan Donovan",
		Isbn:   "9780134190440",
	})

	appErr := apperrors.AsAppError(err)
	if appErr.Code != apperrors.CodeBusinessRule {
		t.Fatalf("expected business rule error, got %v", err)
	}
	if appErr.Erros[0] != "Isbn already registered" {
		t.Errorf("unexpected message: %q", appErr.Erros[0])
	}
}

func TestCreate_SanitizesFields(t *testing.T) {
	var stored *model.Book
	repo := &mockBookRepository{
		createFunc: func(ctx context.Context, book *model.Book) error {
			stored = book
			return nil
		},
	}

	svc := newTestService(repo)
	err := svc.Create(context.Background(), &model.Book{
		Title:  "  The   Go  Programming Language ",
		Author: " Alan  Donovan ",
		Isbn:   "978-0-13-419044-0",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if stored.Title != "The Go Programming Language" {
		t.Errorf("title not normalized: %q", stored.Title)
	}
	if stored.Author != "Alan Donovan" {
		t.Errorf("author not normalized: %q", stored.Author)
	}
	if stored.Isbn != "9780134190440" {
		t.Errorf("isbn not normalized: %q", stored.Isbn)
	}
}

func TestCreate_ValidationFailure(t *testing.T) {
	called := false
	repo := &mockBookRepository{
		existsByIsbnFunc: func(ctx context.Context, isbn string) (bool, error) {
			called = true
			return false, nil
		},
	}

	svc := newTestService(repo)
	err := svc.Create(context.Background(), &model.Book{Isbn: "123"})

	appErr := apperrors.AsAppError(err)
	if appErr.Code != apperrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(appErr.Erros) != 2 {
		t.Errorf("expected messages for title and author, got %v", appErr.Erros)
	}
	if called {
		t.Error("repository should not be touched on validation failure")
	}
}

// ────────────────────────────────────────────────
// Tests for Update() / Delete()
// ────────────────────────────────────────────────

func TestUpdate_MissingID(t *testing.T) {
	touched := false
	repo := &mockBookRepository{
		updateFunc: func(ctx context.Context, book *model.Book) error {
			touched = true
			return nil
		},
	}

	svc := newTestService(repo)
	err := svc.Update(context.Background(), &model.Book{Title: "Title", Author: "Author"})

	if apperrors.AsAppError(err).Code != apperrors.CodeInvalidArgument {
		t.Fatalf("expected invalid argument error, got %v", err)
	}
	if touched {
		t.Error("repository should not be touched when id is missing")
	}
}

func TestDelete_MissingID(t *testing.T) {
	touched := false
	repo := &mockBookRepository{
		deleteFunc: func(ctx context.Context, id string) error {
			touched = true
			return nil
		},
	}

	svc := newTestService(repo)
	err := svc.Delete(context.Background(), &model.Book{})

	if apperrors.AsAppError(err).Code != apperrors.CodeInvalidArgument {
		t.Fatalf("expected invalid argument error, got %v", err)
	}
	if touched {
		t.Error("repository should not be touched when id is missing")
	}
}

func TestUpdate_NotFound(t *testing.T) {
	repo := &mockBookRepository{
		updateFunc: func(ctx context.Context, book *model.Book) error {
			return bookserrors.ErrNotFound
		},
	}

	svc := newTestService(repo)
	err := svc.Update(context.Background(), &model.Book{
		ID:     "65f1a2b3c4d5e6f7a8b9c0d1",
		Title:  "Title",
		Author: "Author",
	})

	if apperrors.AsAppError(err).Code != apperrors.CodeNotFound {
		t.Fatalf("expected not found error, got %v", err)
	}
}

// ────────────────────────────────────────────────
// Tests for GetByID() / GetByIsbn() / Find()
// ────────────────────────────────────────────────

func TestGetByID_NotFound(t *testing.T) {
	svc := newTestService(&mockBookRepository{})

	_, err := svc.GetByID(context.Background(), "65f1a2b3c4d5e6f7a8b9c0d1")
	if apperrors.AsAppError(err).Code != apperrors.CodeNotFound {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestGetByIsbn_Normalizes(t *testing.T) {
	var queried string
	repo := &mockBookRepository{
		findByIsbnFunc: func(ctx context.Context, isbn string) (*model.Book, error) {
			queried = isbn
			return &model.Book{ID: "1", Isbn: isbn}, nil
		},
	}

	svc := newTestService(repo)
	book, err := svc.GetByIsbn(context.Background(), " 978-0-13-419044-0 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if queried != "9780134190440" {
		t.Errorf("isbn not normalized before lookup: %q", queried)
	}
	if book == nil {
		t.Fatal("expected a book")
	}
}

func TestFind_PropagatesCountError(t *testing.T) {
	repo := &mockBookRepository{
		countFunc: func(ctx context.Context, filter *model.BookFilter) (int64, error) {
			return 0, errors.New("boom")
		},
		findFunc: func(ctx context.Context, filter *model.BookFilter, limit int, offset int64) ([]*model.Book, error) {
			return []*model.Book{{ID: "1"}}, nil
		},
	}

	svc := newTestService(repo)
	_, _, err := svc.Find(context.Background(), &model.BookFilter{}, 10, 0)
	if apperrors.AsAppError(err).Code != apperrors.CodeInternal {
		t.Fatalf("expected internal error, got %v", err)
	}
}

func TestFind_ReturnsBooksAndCount(t *testing.T) {
	repo := &mockBookRepository{
		countFunc: func(ctx context.Context, filter *model.BookFilter) (int64, error) {
			return 42, nil
		},
		findFunc: func(ctx context.Context, filter *model.BookFilter, limit int, offset int64) ([]*model.Book, error) {
			return []*model.Book{{ID: "1"}, {ID: "2"}}, nil
		},
	}

	svc := newTestService(repo)
	books, count, err := svc.Find(context.Background(), &model.BookFilter{Author: "Donovan"}, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 42 {
		t.Errorf("expected count 42, got %d", count)
	}
	if len(books) != 2 {
		t.Errorf("expected 2 books, got %d", len(books))
	}
}
