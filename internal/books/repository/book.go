package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	bookserrors "libris/internal/books/errors"
	"libris/pkg/config"
	mongotx "libris/pkg/db/mongo"
	"libris/pkg/model"
)

const (
	CollectionName = "Books"
)

type BookRepository interface {
	Create(ctx context.Context, book *model.Book) error
	FindByID(ctx context.Context, id string) (*model.Book, error)
	FindByIsbn(ctx context.Context, isbn string) (*model.Book, error)
	ExistsByIsbn(ctx context.Context, isbn string) (bool, error)
	Find(ctx context.Context, filter *model.BookFilter, limit int, offset int64) ([]*model.Book, error)
	Count(ctx context.Context, filter *model.BookFilter) (int64, error)
	Update(ctx context.Context, book *model.Book) error
	Delete(ctx context.Context, id string) error
	EnsureIndexes(ctx context.Context) error
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type mongoBookRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoBookRepository(cfg *config.Config) BookRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBookRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// EnsureIndexes installs the unique index on isbn. The service-level
// duplicate pre-check is only a courtesy; this index is the durable
// guarantee against concurrent duplicate inserts.
func (r *mongoBookRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "isbn", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create isbn index: %w", err)
	}
	return nil
}

// withTimeout wraps the context with a timeout unless we are already
// inside a transaction; wrapping a SessionContext would break the
// transaction semantics.
func (r *mongoBookRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func (r *mongoBookRepository) Create(ctx context.Context, book *model.Book) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	book.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	result, err := r.collection.InsertOne(ctx, book)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", bookserrors.ErrDuplicateIsbn, book.Isbn)
		}
		return fmt.Errorf("failed to create book: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		book.ID = oid.Hex()
	}
	return nil
}

func (r *mongoBookRepository) FindByID(ctx context.Context, id string) (*model.Book, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", bookserrors.ErrInvalidID, id)
	}

	var book model.Book
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&book)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", bookserrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to find book: %w", err)
	}

	return &book, nil
}

func (r *mongoBookRepository) FindByIsbn(ctx context.Context, isbn string) (*model.Book, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var book model.Book
	err := r.collection.FindOne(ctx, bson.M{"isbn": isbn}).Decode(&book)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: isbn %s", bookserrors.ErrNotFound, isbn)
		}
		return nil, fmt.Errorf("failed to find book by isbn: %w", err)
	}

	return &book, nil
}

func (r *mongoBookRepository) ExistsByIsbn(ctx context.Context, isbn string) (bool, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{"isbn": isbn}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to check isbn existence: %w", err)
	}
	return count > 0, nil
}

func (r *mongoBookRepository) Find(ctx context.Context, filter *model.BookFilter, limit int, offset int64) ([]*model.Book, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetLimit(int64(limit)).
		SetSkip(offset).
		SetSort(bson.D{{Key: "created_at", Value: -1}})

	cursor, err := r.collection.Find(ctx, buildBookFilter(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query books: %w", err)
	}
	defer cursor.Close(ctx)

	var books []*model.Book
	if err = cursor.All(ctx, &books); err != nil {
		return nil, fmt.Errorf("failed to decode books: %w", err)
	}
	return books, nil
}

func (r *mongoBookRepository) Count(ctx context.Context, filter *model.BookFilter) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, buildBookFilter(filter))
	if err != nil {
		return 0, fmt.Errorf("failed to count books: %w", err)
	}
	return count, nil
}

func (r *mongoBookRepository) Update(ctx context.Context, book *model.Book) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(book.ID)
	if err != nil {
		return fmt.Errorf("%w: %s", bookserrors.ErrInvalidID, book.ID)
	}

	// Isbn is assigned once at creation and never revised.
	update := bson.M{
		"$set": bson.M{
			"title":  book.Title,
			"author": book.Author,
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": objectID}, update)
	if err != nil {
		return fmt.Errorf("failed to update book: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", bookserrors.ErrNotFound, book.ID)
	}

	return nil
}

func (r *mongoBookRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", bookserrors.ErrInvalidID, id)
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": objectID})
	if err != nil {
		return fmt.Errorf("failed to delete book: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("%w: %s", bookserrors.ErrNotFound, id)
	}
	return nil
}

func (r *mongoBookRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}

// escapeRegexSpecialChars escapes regex metacharacters so user input
// cannot inject patterns into the title/author match.
func escapeRegexSpecialChars(s string) string {
	specialChars := regexp.MustCompile(`[.*+?^$()[\]{}|\\]`)
	return specialChars.ReplaceAllStringFunc(s, func(match string) string {
		return "\\" + match
	})
}

// buildBookFilter translates the non-empty filter fields into a query:
// title and author match case-insensitive substrings, isbn matches
// exactly.
func buildBookFilter(filter *model.BookFilter) bson.M {
	query := bson.M{}
	if filter == nil {
		return query
	}
	if filter.Title != "" {
		query["title"] = bson.M{"$regex": escapeRegexSpecialChars(filter.Title), "$options": "i"}
	}
	if filter.Author != "" {
		query["author"] = bson.M{"$regex": escapeRegexSpecialChars(filter.Author), "$options": "i"}
	}
	if filter.Isbn != "" {
		query["isbn"] = filter.Isbn
	}
	return query
}
