package service

import (
	"context"
	"errors"
	"sync"

	"go.mongodb.org/mongo-driver/mongo"

	bookserrors "libris/internal/books/errors"
	"libris/internal/books/repository"
	"libris/internal/books/validator"
	"libris/pkg/config"
	apperrors "libris/pkg/errors"
	"libris/pkg/model"
	"libris/pkg/sanitizer"
)

const msgDuplicateIsbn = "Isbn already registered"

type BookService interface {
	Create(ctx context.Context, book *model.Book) error
	GetByID(ctx context.Context, id string) (*model.Book, error)
	GetByIsbn(ctx context.Context, isbn string) (*model.Book, error)
	Find(ctx context.Context, filter *model.BookFilter, limit int, offset int64) ([]*model.Book, int64, error)
	Update(ctx context.Context, book *model.Book) error
	Delete(ctx context.Context, book *model.Book) error
}

type bookService struct {
	repo      repository.BookRepository
	validator *validator.BookValidator
	cfg       *config.Config
}

func NewBookService(
	repo repository.BookRepository,
	validator *validator.BookValidator,
	cfg *config.Config,
) BookService {
	return &bookService{
		repo:      repo,
		validator: validator,
		cfg:       cfg,
	}
}

func (s *bookService) Create(ctx context.Context, book *model.Book) error {
	s.sanitize(book)

	if err := s.validator.Validate(book); err != nil {
		s.cfg.Log.Warn("Book validation failed",
			"isbn", book.Isbn,
			"error", err,
		)
		return asValidationError(err)
	}

	err := s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		exists, err := s.repo.ExistsByIsbn(sessCtx, book.Isbn)
		if err != nil {
			return apperrors.Internal("Failed to check isbn uniqueness", err)
		}
		if exists {
			return apperrors.Business(msgDuplicateIsbn)
		}
		if err := s.repo.Create(sessCtx, book); err != nil {
			// The unique index can still reject a concurrent insert the
			// pre-check did not see.
			if errors.Is(err, bookserrors.ErrDuplicateIsbn) {
				return apperrors.Business(msgDuplicateIsbn)
			}
			return apperrors.Internal("Failed to create book", err)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to create book",
			"isbn", book.Isbn,
			"error", err,
		)
		return err
	}

	s.cfg.Log.Info("Book created successfully",
		"id", book.ID,
		"title", book.Title,
		"isbn", book.Isbn,
	)
	return nil
}

func (s *bookService) GetByID(ctx context.Context, id string) (*model.Book, error) {
	if id == "" {
		return nil, apperrors.InvalidArgument("Book id cannot be empty")
	}

	book, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, bookserrors.ErrNotFound) {
			return nil, apperrors.NotFound("Book")
		}
		if errors.Is(err, bookserrors.ErrInvalidID) {
			return nil, apperrors.NotFound("Book")
		}
		s.cfg.Log.Error("Failed to get book by id", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to retrieve book", err)
	}

	return book, nil
}

func (s *bookService) GetByIsbn(ctx context.Context, isbn string) (*model.Book, error) {
	isbn = sanitizer.NormalizeIsbn(isbn)
	if isbn == "" {
		return nil, apperrors.InvalidArgument("Isbn cannot be empty")
	}

	book, err := s.repo.FindByIsbn(ctx, isbn)
	if err != nil {
		if errors.Is(err, bookserrors.ErrNotFound) {
			return nil, apperrors.NotFound("Book")
		}
		s.cfg.Log.Error("Failed to get book by isbn", "isbn", isbn, "error", err)
		return nil, apperrors.Internal("Failed to retrieve book", err)
	}

	return book, nil
}

func (s *bookService) Find(ctx context.Context, filter *model.BookFilter, limit int, offset int64) ([]*model.Book, int64, error) {
	var count int64
	var books []*model.Book
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.Count(ctx, filter)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count books", "error", errCount)
			errCount = apperrors.Internal("Failed to count books", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		books, errFind = s.repo.Find(ctx, filter, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list books",
				"limit", limit,
				"offset", offset,
				"error", errFind,
			)
			errFind = apperrors.Internal("Failed to retrieve books", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}
	return books, count, nil
}

func (s *bookService) Update(ctx context.Context, book *model.Book) error {
	// Missing id is a caller defect; the write path must not be reached.
	if book.ID == "" {
		return apperrors.InvalidArgument("Book id is required for update")
	}

	s.sanitize(book)
	if err := s.validator.ValidateUpdate(&model.BookUpdate{Title: book.Title, Author: book.Author}); err != nil {
		s.cfg.Log.Warn("Book update validation failed", "id", book.ID, "error", err)
		return asValidationError(err)
	}

	if err := s.repo.Update(ctx, book); err != nil {
		if errors.Is(err, bookserrors.ErrNotFound) || errors.Is(err, bookserrors.ErrInvalidID) {
			return apperrors.NotFound("Book")
		}
		s.cfg.Log.Error("Failed to update book", "id", book.ID, "error", err)
		return apperrors.Internal("Failed to update book", err)
	}

	s.cfg.Log.Info("Book updated successfully", "id", book.ID, "title", book.Title)
	return nil
}

// Delete removes the book record. Existing loans keep their book
// reference; deletion is deliberately not guarded by the ledger.
func (s *bookService) Delete(ctx context.Context, book *model.Book) error {
	if book.ID == "" {
		return apperrors.InvalidArgument("Book id is required for delete")
	}

	if err := s.repo.Delete(ctx, book.ID); err != nil {
		if errors.Is(err, bookserrors.ErrNotFound) || errors.Is(err, bookserrors.ErrInvalidID) {
			return apperrors.NotFound("Book")
		}
		s.cfg.Log.Error("Failed to delete book", "id", book.ID, "error", err)
		return apperrors.Internal("Failed to delete book", err)
	}

	s.cfg.Log.Info("Book deleted successfully", "id", book.ID)
	return nil
}

func (s *bookService) sanitize(book *model.Book) {
	book.Title = sanitizer.NormalizeName(book.Title)
	book.Author = sanitizer.NormalizeName(book.Author)
	book.Isbn = sanitizer.NormalizeIsbn(book.Isbn)
}

func asValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		return apperrors.Validation(validationErrs.Messages())
	}
	return apperrors.Validation([]string{err.Error()})
}
