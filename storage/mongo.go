package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"go-storefront/models"
)

// Collection names
const (
	ColUsers    = "users"
	ColProducts = "products"
	ColOrders   = "orders"
)

// MongoCollection stores records as documents keyed by an ObjectID _id.
// Ids cross the API as hex strings.
type MongoCollection[T any, PT RecordPtr[T]] struct {
	col     *mongo.Collection
	timeout time.Duration
	now     func() time.Time
}

// NewMongoCollection wraps col; every call gets its own timeout
func NewMongoCollection[T any, PT RecordPtr[T]](col *mongo.Collection, timeout time.Duration) *MongoCollection[T, PT] {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &MongoCollection[T, PT]{col: col, timeout: timeout, now: time.Now}
}

// EnsureIndexes creates the indexes the storefront relies on
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := []struct {
		col    string
		keys   bson.D
		unique bool
	}{
		{ColUsers, bson.D{{Key: "email", Value: 1}}, true},
		{ColProducts, bson.D{{Key: "category", Value: 1}}, false},
		{ColProducts, bson.D{{Key: "position", Value: 1}}, false},
		{ColOrders, bson.D{{Key: "user", Value: 1}}, false},
	}
	for _, i := range indexes {
		model := mongo.IndexModel{Keys: i.keys}
		if i.unique {
			model.Options = options.Index().SetUnique(true)
		}
		if _, err := db.Collection(i.col).Indexes().CreateOne(ctx, model); err != nil {
			return fmt.Errorf("create index on %s: %w", i.col, err)
		}
	}
	return nil
}

// wrapError maps driver errors onto the package errors
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%v: %w", err, ErrDuplicate)
	}
	return err
}

// objectID parses a hex id. Ids that are not ObjectIDs cannot exist in Mongo.
func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%q: %w", id, ErrForeignID)
	}
	return oid, nil
}

// filter turns a Query into a bson filter, translating id to _id
func filter(q Query) (bson.M, error) {
	f := bson.M{}
	for key, value := range q {
		if key == "id" || key == "_id" {
			s, ok := value.(string)
			if !ok {
				return nil, fmt.Errorf("%v: %w", value, ErrForeignID)
			}
			oid, err := objectID(s)
			if err != nil {
				return nil, err
			}
			f["_id"] = oid
			continue
		}
		f[key] = value
	}
	return f, nil
}

func (c *MongoCollection[T, PT]) decode(raw bson.Raw) (T, error) {
	var rec T
	if err := bson.Unmarshal(raw, &rec); err != nil {
		return rec, fmt.Errorf("decode %s: %w", c.col.Name(), err)
	}
	id := raw.Lookup("_id")
	if oid, ok := id.ObjectIDOK(); ok {
		PT(&rec).SetID(oid.Hex())
	} else if s, ok := id.StringValueOK(); ok {
		PT(&rec).SetID(s)
	}
	return rec, nil
}

func encode(rec any) (bson.M, error) {
	raw, err := bson.Marshal(rec)
	if err != nil {
		return nil, err
	}
	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (c *MongoCollection[T, PT]) ctx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, c.timeout)
}

func (c *MongoCollection[T, PT]) Find(parent context.Context, q Query) ([]T, error) {
	f, err := filter(q)
	if err != nil {
		return nil, err
	}
	ctx, cancel := c.ctx(parent)
	defer cancel()

	cursor, err := c.col.Find(ctx, f)
	if err != nil {
		return nil, wrapError(err)
	}
	defer cursor.Close(ctx)

	records := []T{}
	for cursor.Next(ctx) {
		rec, err := c.decode(cursor.Current)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func (c *MongoCollection[T, PT]) FindOne(parent context.Context, q Query) (*T, error) {
	f, err := filter(q)
	if err != nil {
		return nil, err
	}
	ctx, cancel := c.ctx(parent)
	defer cancel()

	raw, err := c.col.FindOne(ctx, f).Raw()
	if err != nil {
		return nil, wrapError(err)
	}
	rec, err := c.decode(raw)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *MongoCollection[T, PT]) FindByID(ctx context.Context, id string) (*T, error) {
	return c.FindOne(ctx, Query{"_id": id})
}

func (c *MongoCollection[T, PT]) Create(parent context.Context, rec T) (*T, error) {
	ctx, cancel := c.ctx(parent)
	defer cancel()

	count, err := c.col.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, wrapError(err)
	}
	p := PT(&rec)
	p.Prepare(int(count), c.now())
	if err := p.Validate(); err != nil {
		return nil, err
	}
	doc, err := encode(rec)
	if err != nil {
		return nil, err
	}
	oid := primitive.NewObjectID()
	doc["_id"] = oid
	if _, err := c.col.InsertOne(ctx, doc); err != nil {
		return nil, wrapError(err)
	}
	p.SetID(oid.Hex())
	return &rec, nil
}

func (c *MongoCollection[T, PT]) FindByIDAndUpdate(parent context.Context, id string, patch Patch) (*T, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	current, err := c.FindByID(parent, id)
	if err != nil {
		return nil, err
	}
	merged, err := applyPatch(*current, patch)
	if err != nil {
		return nil, err
	}
	if err := PT(&merged).Validate(); err != nil {
		return nil, err
	}
	doc, err := encode(merged)
	if err != nil {
		return nil, err
	}

	set, unset := bson.M{}, bson.M{}
	for key := range patch {
		if immutableFields[key] {
			continue
		}
		if v, ok := doc[key]; ok {
			set[key] = v
		} else {
			unset[key] = ""
		}
	}
	update := bson.M{}
	if len(set) > 0 {
		update["$set"] = set
	}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	if len(update) == 0 {
		return &merged, nil
	}

	ctx, cancel := c.ctx(parent)
	defer cancel()
	res, err := c.col.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return nil, wrapError(err)
	}
	if res.MatchedCount == 0 {
		return nil, ErrNotFound
	}
	return &merged, nil
}

func (c *MongoCollection[T, PT]) FindByIDAndDelete(parent context.Context, id string) (*T, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	ctx, cancel := c.ctx(parent)
	defer cancel()

	raw, err := c.col.FindOneAndDelete(ctx, bson.M{"_id": oid}).Raw()
	if err != nil {
		return nil, wrapError(err)
	}
	rec, err := c.decode(raw)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *MongoCollection[T, PT]) Count(parent context.Context) (int, error) {
	ctx, cancel := c.ctx(parent)
	defer cancel()

	n, err := c.col.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, wrapError(err)
	}
	return int(n), nil
}

// Increment uses a single conditional $inc, so the stock check and the write
// cannot be split by another request.
func (c *MongoCollection[T, PT]) Increment(parent context.Context, id, field string, delta int) (*T, error) {
	if immutableFields[field] {
		return nil, &models.ValidationError{Field: field, Message: field + " cannot be changed"}
	}
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	ctx, cancel := c.ctx(parent)
	defer cancel()

	f := bson.M{"_id": oid}
	if delta < 0 {
		f[field] = bson.M{"$gte": -delta}
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	raw, err := c.col.FindOneAndUpdate(ctx, f, bson.M{"$inc": bson.M{field: delta}}, opts).Raw()
	if errors.Is(err, mongo.ErrNoDocuments) {
		n, cerr := c.col.CountDocuments(ctx, bson.M{"_id": oid})
		if cerr != nil {
			return nil, wrapError(cerr)
		}
		if n == 0 {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%s %s needs %d: %w", c.col.Name(), id, -delta, ErrInsufficient)
	}
	if err != nil {
		return nil, wrapError(err)
	}
	rec, err := c.decode(raw)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
