package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	loanserrors "libris/internal/loans/errors"
	"libris/internal/loans/repository"
	"libris/internal/loans/validator"
	"libris/pkg/config"
	apperrors "libris/pkg/errors"
	"libris/pkg/model"
	"libris/pkg/sanitizer"
)

const (
	// A loan is late once its loan date is at least this many days old.
	lateLoanDays = 4

	msgAlreadyLoaned    = "Book already loaned"
	msgAlreadyReturned  = "Loan already returned"
	msgBookNotFoundIsbn = "Book not found for passed isbn"
)

// BookCatalog is the slice of the catalog the ledger needs: resolving
// the book reference behind a loan.
type BookCatalog interface {
	GetByID(ctx context.Context, id string) (*model.Book, error)
	GetByIsbn(ctx context.Context, isbn string) (*model.Book, error)
}

// EventPublisher receives loan lifecycle notifications. Implementations
// must not fail the calling request; delivery is best effort.
type EventPublisher interface {
	LoanCreated(ctx context.Context, loan *model.Loan)
	LoanReturned(ctx context.Context, loan *model.Loan)
}

type LoanService interface {
	Create(ctx context.Context, req *model.LoanRequest) (*model.Loan, error)
	GetByID(ctx context.Context, id string) (*model.Loan, error)
	Update(ctx context.Context, loan *model.Loan) error
	Return(ctx context.Context, id string, returned bool) (*model.Loan, error)
	Find(ctx context.Context, isbn, customer string, limit int, offset int64) ([]*model.LoanWithBook, int64, error)
	GetLoansByBook(ctx context.Context, bookID string, limit int, offset int64) ([]*model.LoanWithBook, int64, error)
	GetAllLateLoans(ctx context.Context) ([]*model.Loan, error)
}

type loanService struct {
	repo      repository.LoanRepository
	lockRepo  repository.LoanLockRepository
	catalog   BookCatalog
	validator *validator.LoanValidator
	events    EventPublisher
	cfg       *config.Config
	now       func() time.Time
}

func NewLoanService(
	repo repository.LoanRepository,
	lockRepo repository.LoanLockRepository,
	catalog BookCatalog,
	validator *validator.LoanValidator,
	events EventPublisher,
	cfg *config.Config,
) LoanService {
	return &loanService{
		repo:      repo,
		lockRepo:  lockRepo,
		catalog:   catalog,
		validator: validator,
		events:    events,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *loanService) Create(ctx context.Context, req *model.LoanRequest) (*model.Loan, error) {
	s.sanitizeRequest(req)

	if err := s.validator.ValidateRequest(req); err != nil {
		s.cfg.Log.Warn("Loan validation failed",
			"isbn", req.Isbn,
			"error", err,
		)
		return nil, asValidationError(err)
	}

	book, err := s.catalog.GetByIsbn(ctx, req.Isbn)
	if err != nil {
		if apperrors.AsAppError(err).Code == apperrors.CodeNotFound {
			return nil, apperrors.Business(msgBookNotFoundIsbn)
		}
		s.cfg.Log.Error("Failed to resolve book for loan", "isbn", req.Isbn, "error", err)
		return nil, apperrors.Internal("Failed to resolve book", err)
	}

	// The advisory lock closes the race between the exists-check and the
	// insert; the transaction keeps both on one consistent snapshot.
	if err := s.lockRepo.Acquire(ctx, book.ID); err != nil {
		if errors.Is(err, loanserrors.ErrLockHeld) {
			return nil, apperrors.Business(msgAlreadyLoaned)
		}
		return nil, apperrors.Internal("Failed to acquire loan lock", err)
	}
	defer func() {
		if releaseErr := s.lockRepo.Release(ctx, book.ID); releaseErr != nil {
			s.cfg.Log.Warn("Failed to release loan lock", "book_id", book.ID, "error", releaseErr)
		}
	}()

	loan := &model.Loan{
		BookID:        book.ID,
		BookIsbn:      book.Isbn,
		Customer:      req.Customer,
		CustomerEmail: req.CustomerEmail,
		LoanDate:      s.today(),
	}

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		active, err := s.repo.ExistsActiveByBook(sessCtx, book.ID)
		if err != nil {
			return apperrors.Internal("Failed to check active loan", err)
		}
		if active {
			return apperrors.Business(msgAlreadyLoaned)
		}
		if err := s.repo.Create(sessCtx, loan); err != nil {
			return apperrors.Internal("Failed to create loan", err)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to create loan",
			"isbn", req.Isbn,
			"customer", req.Customer,
			"error", err,
		)
		return nil, err
	}

	if s.events != nil {
		s.events.LoanCreated(ctx, loan)
	}

	s.cfg.Log.Info("Loan created successfully",
		"id", loan.ID,
		"book_id", loan.BookID,
		"isbn", loan.BookIsbn,
		"customer", loan.Customer,
	)
	return loan, nil
}

func (s *loanService) GetByID(ctx context.Context, id string) (*model.Loan, error) {
	if id == "" {
		return nil, apperrors.InvalidArgument("Loan id cannot be empty")
	}

	loan, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, loanserrors.ErrNotFound) || errors.Is(err, loanserrors.ErrInvalidID) {
			return nil, apperrors.NotFound("Loan")
		}
		s.cfg.Log.Error("Failed to get loan by id", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to retrieve loan", err)
	}

	return loan, nil
}

func (s *loanService) Update(ctx context.Context, loan *model.Loan) error {
	// Missing id is a caller defect; the write path must not be reached.
	if loan.ID == "" {
		return apperrors.InvalidArgument("Loan id is required for update")
	}

	if err := s.repo.Update(ctx, loan); err != nil {
		if errors.Is(err, loanserrors.ErrNotFound) || errors.Is(err, loanserrors.ErrInvalidID) {
			return apperrors.NotFound("Loan")
		}
		s.cfg.Log.Error("Failed to update loan", "id", loan.ID, "error", err)
		return apperrors.Internal("Failed to update loan", err)
	}

	return nil
}

// Return flips the returned flag on an existing loan. There is no
// transition back: a returned book stays returned until a new loan is
// created for it.
func (s *loanService) Return(ctx context.Context, id string, returned bool) (*model.Loan, error) {
	loan, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	wasReturned := loan.Returned != nil && *loan.Returned
	if wasReturned && !returned {
		return nil, apperrors.Business(msgAlreadyReturned)
	}
	loan.Returned = &returned

	if err := s.Update(ctx, loan); err != nil {
		return nil, err
	}

	if s.events != nil && returned && !wasReturned {
		s.events.LoanReturned(ctx, loan)
	}

	s.cfg.Log.Info("Loan return updated", "id", loan.ID, "returned", returned)
	return loan, nil
}

func (s *loanService) Find(ctx context.Context, isbn, customer string, limit int, offset int64) ([]*model.LoanWithBook, int64, error) {
	isbn = sanitizer.NormalizeIsbn(isbn)
	customer = sanitizer.NormalizeName(customer)

	var count int64
	var loans []*model.Loan
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.CountByIsbnOrCustomer(ctx, isbn, customer)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count loans", "error", errCount)
			errCount = apperrors.Internal("Failed to count loans", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		loans, errFind = s.repo.FindByIsbnOrCustomer(ctx, isbn, customer, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list loans",
				"isbn", isbn,
				"customer", customer,
				"error", errFind,
			)
			errFind = apperrors.Internal("Failed to retrieve loans", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	result, err := s.withBooks(ctx, loans)
	if err != nil {
		return nil, 0, err
	}
	return result, count, nil
}

// GetLoansByBook pages the loan history of one book, newest first. The
// book must exist; every entry embeds the same book record.
func (s *loanService) GetLoansByBook(ctx context.Context, bookID string, limit int, offset int64) ([]*model.LoanWithBook, int64, error) {
	book, err := s.catalog.GetByID(ctx, bookID)
	if err != nil {
		return nil, 0, err
	}

	var count int64
	var loans []*model.Loan
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.CountByBook(ctx, bookID)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count loans by book", "book_id", bookID, "error", errCount)
			errCount = apperrors.Internal("Failed to count loans", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		loans, errFind = s.repo.FindByBook(ctx, bookID, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list loans by book", "book_id", bookID, "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve loans", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	result := make([]*model.LoanWithBook, 0, len(loans))
	for _, loan := range loans {
		result = append(result, &model.LoanWithBook{Loan: *loan, Book: book})
	}
	return result, count, nil
}

// GetAllLateLoans returns every loan at least lateLoanDays old that has
// not been returned. A loan exactly lateLoanDays old is included.
func (s *loanService) GetAllLateLoans(ctx context.Context) ([]*model.Loan, error) {
	cutoff := s.today().AddDate(0, 0, -lateLoanDays)

	loans, err := s.repo.FindLate(ctx, cutoff)
	if err != nil {
		s.cfg.Log.Error("Failed to query late loans", "cutoff", cutoff, "error", err)
		return nil, apperrors.Internal("Failed to retrieve late loans", err)
	}

	return loans, nil
}

// today is the current date at UTC midnight; loan dates carry no time
// component.
func (s *loanService) today() time.Time {
	return s.now().UTC().Truncate(24 * time.Hour)
}

func (s *loanService) sanitizeRequest(req *model.LoanRequest) {
	req.Isbn = sanitizer.NormalizeIsbn(req.Isbn)
	req.Customer = sanitizer.NormalizeName(req.Customer)
	req.CustomerEmail = sanitizer.NormalizeEmail(req.CustomerEmail)
}

// withBooks joins each loan to its book record. A loan whose book was
// deleted from the catalog keeps a nil book rather than failing the
// listing; any other catalog failure fails the whole call.
func (s *loanService) withBooks(ctx context.Context, loans []*model.Loan) ([]*model.LoanWithBook, error) {
	books := make(map[string]*model.Book)
	result := make([]*model.LoanWithBook, 0, len(loans))

	for _, loan := range loans {
		book, seen := books[loan.BookID]
		if !seen {
			var err error
			book, err = s.catalog.GetByID(ctx, loan.BookID)
			if err != nil {
				if apperrors.AsAppError(err).Code != apperrors.CodeNotFound {
					s.cfg.Log.Error("Failed to resolve book for loan listing",
						"book_id", loan.BookID,
						"error", err,
					)
					return nil, err
				}
				book = nil
			}
			books[loan.BookID] = book
		}
		result = append(result, &model.LoanWithBook{Loan: *loan, Book: book})
	}

	return result, nil
}

func asValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		return apperrors.Validation(validationErrs.Messages())
	}
	return apperrors.Validation([]string{err.Error()})
}
