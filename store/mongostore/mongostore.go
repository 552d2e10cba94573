// Package mongostore implements store.Store on MongoDB.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/phillip/isaithondar-go/store"
)

const (
	colEvents    = "events"
	colExpenses  = "expenses"
	colUsers     = "users"
	colTemples   = "temples"
	colPathigams = "thevaram_pathigams"
)

type Store struct {
	client *mongo.Client
	db     *mongo.Database
	log    *zap.Logger
}

var _ store.Store = (*Store)(nil)

// Connect dials MongoDB, verifies the connection and makes sure indexes exist.
func Connect(ctx context.Context, uri, dbName string, log *zap.Logger) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	s := &Store{client: client, db: client.Database(dbName), log: log}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	log.Info("connected to MongoDB", zap.String("database", dbName))
	return s, nil
}

func (s *Store) col(name string) *mongo.Collection { return s.db.Collection(name) }

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	idx := map[string][]mongo.IndexModel{
		colEvents: {
			{Keys: bson.D{{Key: "date", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "temple", Value: 1}}},
			{Keys: bson.D{{Key: "created_by", Value: 1}}},
			{Keys: bson.D{{Key: "members_joined.user", Value: 1}}},
			{Keys: bson.D{{Key: "tags", Value: 1}}},
		},
		colExpenses: {
			{Keys: bson.D{{Key: "event", Value: 1}}},
			{Keys: bson.D{{Key: "paid_by", Value: 1}}},
			{Keys: bson.D{{Key: "date", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "reimbursed", Value: 1}}},
			{Keys: bson.D{{Key: "type", Value: 1}}},
		},
		colUsers: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		colTemples: {
			{Keys: bson.D{{Key: "location.city", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}}},
		},
		colPathigams: {
			{Keys: bson.D{{Key: "guru", Value: 1}}},
			{Keys: bson.D{{Key: "category", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}}},
		},
	}
	for name, specs := range idx {
		if _, err := s.col(name).Indexes().CreateMany(ctx, specs); err != nil {
			return fmt.Errorf("create indexes on %s: %w", name, err)
		}
	}
	return nil
}

// mapErr translates driver errors into store errors.
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return store.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return store.ErrDuplicate
	}
	return err
}

// sortDoc turns "-date,name" style keys into a bson sort document using the
// JSON-to-bson field map of the collection; unknown fields are dropped.
func sortDoc(spec store.Sort, fields map[string]string, def bson.D) bson.D {
	var d bson.D
	for _, k := range spec {
		dir := 1
		if strings.HasPrefix(k, "-") {
			dir = -1
			k = k[1:]
		}
		if f, ok := fields[k]; ok {
			d = append(d, bson.E{Key: f, Value: dir})
		}
	}
	if len(d) == 0 {
		return def
	}
	return d
}

func findOptions(page store.Page, sort bson.D) *options.FindOptions {
	opts := options.Find().SetSort(sort)
	if page.Limit > 0 {
		opts.SetLimit(int64(page.Limit)).SetSkip(page.Skip())
	}
	return opts
}

// list runs a paged find plus a count over the same filter.
func list[T any](ctx context.Context, col *mongo.Collection, filter bson.M, opts *options.FindOptions) ([]T, int64, error) {
	cursor, err := col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	out := []T{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, 0, err
	}
	total, err := col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// updateAndFetch applies $set and returns the document after the update.
func updateAndFetch[T any](ctx context.Context, col *mongo.Collection, filter bson.M, update bson.M) (*T, error) {
	var out T
	err := col.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&out)
	if err != nil {
		return nil, mapErr(err)
	}
	return &out, nil
}

func deleteOne(ctx context.Context, col *mongo.Collection, filter bson.M) error {
	res, err := col.DeleteOne(ctx, filter)
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func regex(q string) bson.M {
	return bson.M{"$regex": regexp.QuoteMeta(q), "$options": "i"}
}

func equalFold(q string) bson.M {
	return bson.M{"$regex": "^" + regexp.QuoteMeta(q) + "$", "$options": "i"}
}
