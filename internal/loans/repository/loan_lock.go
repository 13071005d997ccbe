package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	loanserrors "libris/internal/loans/errors"
	"libris/pkg/config"
	"libris/pkg/model"
)

const (
	LockCollectionName = "Loan_locks"

	// Leaked locks (e.g. a crashed process) expire on their own.
	lockTTL = 60 * time.Second
)

// LoanLockRepository provides a per-book advisory lock around the loan
// creation critical section. The lock document's _id is the book id, so
// a second Acquire for the same book fails on the primary key.
type LoanLockRepository interface {
	Acquire(ctx context.Context, bookID string) error
	Release(ctx context.Context, bookID string) error
	EnsureIndexes(ctx context.Context) error
}

type mongoLoanLockRepository struct {
	collection *mongo.Collection
}

func NewLoanLockRepository(cfg *config.Config) LoanLockRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoLoanLockRepository{
		collection: db.Collection(LockCollectionName),
	}
}

func (r *mongoLoanLockRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "created_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(int32(lockTTL.Seconds())),
	})
	if err != nil {
		return fmt.Errorf("failed to create lock TTL index: %w", err)
	}
	return nil
}

func (r *mongoLoanLockRepository) Acquire(ctx context.Context, bookID string) error {
	lock := &model.LoanLock{
		BookID:    bookID,
		CreatedAt: time.Now().UTC(),
	}

	_, err := r.collection.InsertOne(ctx, lock)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: book %s", loanserrors.ErrLockHeld, bookID)
		}
		return fmt.Errorf("failed to acquire loan lock: %w", err)
	}

	return nil
}

func (r *mongoLoanLockRepository) Release(ctx context.Context, bookID string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": bookID})
	if err != nil {
		return fmt.Errorf("failed to release loan lock: %w", err)
	}
	return nil
}
