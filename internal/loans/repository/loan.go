package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	loanserrors "libris/internal/loans/errors"
	"libris/pkg/config"
	mongotx "libris/pkg/db/mongo"
	"libris/pkg/model"
)

const (
	CollectionName = "Loans"
)

type LoanRepository interface {
	Create(ctx context.Context, loan *model.Loan) error
	FindByID(ctx context.Context, id string) (*model.Loan, error)
	Update(ctx context.Context, loan *model.Loan) error
	FindByIsbnOrCustomer(ctx context.Context, isbn, customer string, limit int, offset int64) ([]*model.Loan, error)
	CountByIsbnOrCustomer(ctx context.Context, isbn, customer string) (int64, error)
	FindByBook(ctx context.Context, bookID string, limit int, offset int64) ([]*model.Loan, error)
	CountByBook(ctx context.Context, bookID string) (int64, error)
	ExistsActiveByBook(ctx context.Context, bookID string) (bool, error)
	FindLate(ctx context.Context, cutoff time.Time) ([]*model.Loan, error)
	EnsureIndexes(ctx context.Context) error
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type mongoLoanRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoLoanRepository(cfg *config.Config) LoanRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoLoanRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

func (r *mongoLoanRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "book_id", Value: 1}, {Key: "returned", Value: 1}}},
		{Keys: bson.D{{Key: "book_isbn", Value: 1}}},
		{Keys: bson.D{{Key: "customer", Value: 1}}},
		{Keys: bson.D{{Key: "loan_date", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create loan indexes: %w", err)
	}
	return nil
}

func (r *mongoLoanRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func (r *mongoLoanRepository) Create(ctx context.Context, loan *model.Loan) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	loan.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	result, err := r.collection.InsertOne(ctx, loan)
	if err != nil {
		return fmt.Errorf("failed to create loan: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		loan.ID = oid.Hex()
	}
	return nil
}

func (r *mongoLoanRepository) FindByID(ctx context.Context, id string) (*model.Loan, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", loanserrors.ErrInvalidID, id)
	}

	var loan model.Loan
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&loan)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", loanserrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to find loan: %w", err)
	}

	return &loan, nil
}

// Update overwrites the mutable loan fields. The book reference and the
// loan date are fixed at creation.
func (r *mongoLoanRepository) Update(ctx context.Context, loan *model.Loan) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(loan.ID)
	if err != nil {
		return fmt.Errorf("%w: %s", loanserrors.ErrInvalidID, loan.ID)
	}

	update := bson.M{
		"$set": bson.M{
			"customer":       loan.Customer,
			"customer_email": loan.CustomerEmail,
			"returned":       loan.Returned,
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": objectID}, update)
	if err != nil {
		return fmt.Errorf("failed to update loan: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", loanserrors.ErrNotFound, loan.ID)
	}

	return nil
}

// buildDisjunctiveFilter matches loans whose book isbn equals isbn OR
// whose customer equals customer. Empty fields contribute no clause.
func buildDisjunctiveFilter(isbn, customer string) bson.M {
	var clauses []bson.M
	if isbn != "" {
		clauses = append(clauses, bson.M{"book_isbn": isbn})
	}
	if customer != "" {
		clauses = append(clauses, bson.M{"customer": customer})
	}

	switch len(clauses) {
	case 0:
		return bson.M{}
	case 1:
		return clauses[0]
	default:
		return bson.M{"$or": clauses}
	}
}

func (r *mongoLoanRepository) FindByIsbnOrCustomer(ctx context.Context, isbn, customer string, limit int, offset int64) ([]*model.Loan, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetLimit(int64(limit)).
		SetSkip(offset).
		SetSort(bson.D{{Key: "created_at", Value: -1}})

	cursor, err := r.collection.Find(ctx, buildDisjunctiveFilter(isbn, customer), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query loans: %w", err)
	}
	defer cursor.Close(ctx)

	var loans []*model.Loan
	if err = cursor.All(ctx, &loans); err != nil {
		return nil, fmt.Errorf("failed to decode loans: %w", err)
	}
	return loans, nil
}

func (r *mongoLoanRepository) CountByIsbnOrCustomer(ctx context.Context, isbn, customer string) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, buildDisjunctiveFilter(isbn, customer))
	if err != nil {
		return 0, fmt.Errorf("failed to count loans: %w", err)
	}
	return count, nil
}

func (r *mongoLoanRepository) FindByBook(ctx context.Context, bookID string, limit int, offset int64) ([]*model.Loan, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetLimit(int64(limit)).
		SetSkip(offset).
		SetSort(bson.D{{Key: "created_at", Value: -1}})

	cursor, err := r.collection.Find(ctx, bson.M{"book_id": bookID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query loans by book: %w", err)
	}
	defer cursor.Close(ctx)

	var loans []*model.Loan
	if err = cursor.All(ctx, &loans); err != nil {
		return nil, fmt.Errorf("failed to decode loans: %w", err)
	}
	return loans, nil
}

func (r *mongoLoanRepository) CountByBook(ctx context.Context, bookID string) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{"book_id": bookID})
	if err != nil {
		return 0, fmt.Errorf("failed to count loans by book: %w", err)
	}
	return count, nil
}

// ExistsActiveByBook reports whether the book has a loan that is not
// yet returned. A missing or false returned field both count as active.
func (r *mongoLoanRepository) ExistsActiveByBook(ctx context.Context, bookID string) (bool, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"book_id":  bookID,
		"returned": bson.M{"$ne": true},
	}

	count, err := r.collection.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to check active loan existence: %w", err)
	}
	return count > 0, nil
}

// FindLate returns every loan with loan_date at or before the cutoff
// that has not been returned. The notifier consumes the full set, so
// there is no pagination here.
func (r *mongoLoanRepository) FindLate(ctx context.Context, cutoff time.Time) ([]*model.Loan, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"loan_date": bson.M{"$lte": cutoff},
		"returned":  bson.M{"$ne": true},
	}

	opts := options.Find().SetSort(bson.D{{Key: "loan_date", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query late loans: %w", err)
	}
	defer cursor.Close(ctx)

	var loans []*model.Loan
	if err = cursor.All(ctx, &loans); err != nil {
		return nil, fmt.Errorf("failed to decode late loans: %w", err)
	}
	return loans, nil
}

func (r *mongoLoanRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
