package recordstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const countersCollection = "counters"

// MongoStore keeps one collection per table. Keys come from a counters collection, referential
// integrity is checked from the schema and views are aggregation pipelines.
// It does not implement OrderWriter.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
	schema Schema
	log    *zap.Logger
}

func ConnectMongo(ctx context.Context, uri, database string, log *zap.Logger) (*MongoStore, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(100).
		SetMinPoolSize(5)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	log.Info("connected to mongodb", zap.String("db", database))
	return &MongoStore{client: client, db: client.Database(database), schema: DefaultSchema, log: log}, nil
}

// CreateIndexes adds a unique index on every table key and an index on every referencing field.
func (s *MongoStore) CreateIndexes(ctx context.Context) error {
	for _, t := range s.schema {
		if t.View {
			continue
		}
		indexes := []mongo.IndexModel{{
			Keys:    bson.D{{Key: t.Key, Value: 1}},
			Options: options.Index().SetUnique(true),
		}}
		for _, p := range s.schema.parents(t.Name) {
			indexes = append(indexes, mongo.IndexModel{Keys: bson.D{{Key: p.field, Value: 1}}})
		}
		if _, err := s.db.Collection(t.Name).Indexes().CreateMany(ctx, indexes); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", t.Name, err)
		}
	}
	return nil
}

func (s *MongoStore) Select(ctx context.Context, q Query) ([]Record, error) {
	const op = "select"
	t, err := s.schema.Table(q.Table)
	if err != nil {
		return nil, newError(op, q.Table, ErrInvalid, err)
	}

	collection, pipeline := s.source(t)
	if q.FilterField != "" {
		col, ok := t.Column(q.FilterField)
		if !ok {
			return nil, newError(op, t.Name, ErrInvalid, fmt.Errorf("unknown filter column %s", q.FilterField))
		}
		v, errCoerce := col.Coerce(q.FilterValue)
		if errCoerce != nil {
			return nil, newError(op, t.Name, ErrInvalid, errCoerce)
		}
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: bson.M{col.Name: toBSON(v)}}})
	}
	if q.OrderBy != "" {
		if _, ok := t.Column(q.OrderBy); !ok {
			return nil, newError(op, t.Name, ErrInvalid, fmt.Errorf("unknown order column %s", q.OrderBy))
		}
		pipeline = append(pipeline, bson.D{{Key: "$sort", Value: bson.D{{Key: q.OrderBy, Value: 1}}}})
	}
	pipeline = append(pipeline, bson.D{{Key: "$project", Value: bson.M{"_id": 0}}})

	cursor, err := s.db.Collection(collection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, newError(op, t.Name, ErrUnexpected, err)
	}
	defer cursor.Close(ctx)

	var records []Record
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, newError(op, t.Name, ErrUnexpected, err)
		}
		rec, err := fromDocument(t, doc)
		if err != nil {
			return nil, newError(op, t.Name, ErrUnexpected, err)
		}
		records = append(records, rec)
	}
	if err := cursor.Err(); err != nil {
		return nil, newError(op, t.Name, ErrUnexpected, err)
	}
	return records, nil
}

func (s *MongoStore) Create(ctx context.Context, table string, rec Record) (Record, error) {
	t, err := s.schema.writable(table)
	if err != nil {
		return nil, newError("create", table, ErrInvalid, err)
	}
	return s.insert(ctx, t, rec)
}

// CreateMany inserts records one by one and removes the ones already written if a later insert fails.
func (s *MongoStore) CreateMany(ctx context.Context, table string, recs []Record) ([]Record, error) {
	t, err := s.schema.writable(table)
	if err != nil {
		return nil, newError("create", table, ErrInvalid, err)
	}

	created := make([]Record, 0, len(recs))
	for _, rec := range recs {
		c, err := s.insert(ctx, t, rec)
		if err != nil {
			s.undo(t, created)
			return nil, err
		}
		created = append(created, c)
	}
	return created, nil
}

func (s *MongoStore) Update(ctx context.Context, table, keyField string, rec Record) (Record, error) {
	const op = "update"
	t, err := s.schema.writable(table)
	if err != nil {
		return nil, newError(op, table, ErrInvalid, err)
	}
	if _, ok := t.Column(keyField); !ok {
		return nil, newError(op, table, ErrInvalid, fmt.Errorf("unknown key column %s", keyField))
	}
	values, err := t.Normalize(rec)
	if err != nil {
		return nil, newError(op, table, ErrInvalid, err)
	}
	key, ok := values[keyField]
	if !ok || key == nil {
		return nil, newError(op, table, ErrInvalid, fmt.Errorf("missing key %s", keyField))
	}
	delete(values, keyField)
	if len(values) == 0 {
		return nil, newError(op, table, ErrInvalid, errors.New("nothing to update"))
	}
	if err := s.checkParents(ctx, op, t, values); err != nil {
		return nil, err
	}

	filter := bson.M{keyField: toBSON(key)}
	res, err := s.db.Collection(t.Name).UpdateOne(ctx, filter, bson.M{"$set": toDocument(values)})
	if err != nil {
		return nil, newError(op, table, ErrUnexpected, err)
	}
	if res.MatchedCount == 0 {
		return nil, newError(op, table, ErrNotFound, nil)
	}

	var doc bson.M
	if err := s.db.Collection(t.Name).FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, newError(op, table, ErrUnexpected, err)
	}
	updated, err := fromDocument(t, doc)
	if err != nil {
		return nil, newError(op, table, ErrUnexpected, err)
	}
	return updated, nil
}

func (s *MongoStore) Delete(ctx context.Context, table, keyField string, keyValue any) error {
	const op = "delete"
	t, err := s.schema.writable(table)
	if err != nil {
		return newError(op, table, ErrInvalid, err)
	}
	col, ok := t.Column(keyField)
	if !ok {
		return newError(op, table, ErrInvalid, fmt.Errorf("unknown key column %s", keyField))
	}
	key, err := col.Coerce(keyValue)
	if err != nil || key == nil {
		return newError(op, table, ErrInvalid, fmt.Errorf("bad key value %v", keyValue))
	}

	if keyField == t.Key {
		for _, dep := range t.Dependents {
			n, err := s.db.Collection(dep.Table).CountDocuments(ctx, bson.M{dep.Field: toBSON(key)})
			if err != nil {
				return newError(op, table, ErrUnexpected, err)
			}
			if n > 0 {
				return newError(op, table, ErrConstraint, fmt.Errorf("%d rows in %s reference %v", n, dep.Table, key))
			}
		}
	}

	res, err := s.db.Collection(t.Name).DeleteOne(ctx, bson.M{keyField: toBSON(key)})
	if err != nil {
		return newError(op, table, ErrUnexpected, err)
	}
	if res.DeletedCount == 0 {
		return newError(op, table, ErrNotFound, nil)
	}
	return nil
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) insert(ctx context.Context, t *Table, rec Record) (Record, error) {
	const op = "create"
	values, err := t.Normalize(rec)
	if err != nil {
		return nil, newError(op, t.Name, ErrInvalid, err)
	}
	if err := s.checkParents(ctx, op, t, values); err != nil {
		return nil, err
	}

	for _, d := range t.Defaults {
		if values[d] != nil {
			continue
		}
		col, _ := t.Column(d)
		switch {
		case d == t.Key:
			id, err := s.nextID(ctx, t.Name)
			if err != nil {
				return nil, newError(op, t.Name, ErrUnexpected, err)
			}
			values[d] = id
		case col.Type == Time:
			values[d] = time.Now().UTC().Truncate(time.Millisecond)
		}
	}

	doc := toDocument(values)
	doc["_id"] = toBSON(values[t.Key])
	if _, err := s.db.Collection(t.Name).InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, newError(op, t.Name, ErrInvalid, err)
		}
		return nil, newError(op, t.Name, ErrUnexpected, err)
	}
	return values, nil
}

func (s *MongoStore) undo(t *Table, created []Record) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, c := range created {
		if _, err := s.db.Collection(t.Name).DeleteOne(ctx, bson.M{t.Key: toBSON(c[t.Key])}); err != nil {
			s.log.Error("failed to undo insert", zap.String("table", t.Name), zap.Any("key", c[t.Key]), zap.Error(err))
		}
	}
}

// checkParents fails with ErrConstraint when a referencing field points at a missing row.
func (s *MongoStore) checkParents(ctx context.Context, op string, t *Table, values Record) error {
	for _, p := range s.schema.parents(t.Name) {
		v, ok := values[p.field]
		if !ok || v == nil {
			continue
		}
		n, err := s.db.Collection(p.table.Name).CountDocuments(ctx, bson.M{p.table.Key: toBSON(v)})
		if err != nil {
			return newError(op, t.Name, ErrUnexpected, err)
		}
		if n == 0 {
			return newError(op, t.Name, ErrConstraint, fmt.Errorf("%s %v does not exist in %s", p.field, v, p.table.Name))
		}
	}
	return nil
}

func (s *MongoStore) nextID(ctx context.Context, table string) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := s.db.Collection(countersCollection).FindOneAndUpdate(ctx,
		bson.M{"_id": table},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("next id for %s: %w", table, err)
	}
	return counter.Seq, nil
}

// source returns the collection and leading pipeline stages that produce rows of t.
func (s *MongoStore) source(t *Table) (string, mongo.Pipeline) {
	lookup := func(from, field, as string) bson.D {
		return bson.D{{Key: "$lookup", Value: bson.M{"from": from, "localField": field, "foreignField": field, "as": as}}}
	}
	unwind := func(path string) bson.D {
		return bson.D{{Key: "$unwind", Value: path}}
	}

	switch t.Name {
	case ViewOrders:
		return TableOrders, mongo.Pipeline{
			lookup(TableOrderDetails, "order_id", "d"),
			{{Key: "$project", Value: bson.M{
				"order_id": 1, "customer_id": 1, "user_id": 1, "order_date": 1,
				"total_cost": bson.M{"$sum": "$d.cost"},
			}}},
		}
	case ViewOrderDetails:
		return TableOrderDetails, mongo.Pipeline{
			lookup(TableProducts, "product_id", "p"),
			unwind("$p"),
			{{Key: "$project", Value: bson.M{
				"order_details_id": 1, "order_id": 1, "product_id": 1, "quantity": 1, "cost": 1,
				"product_name": "$p.product_name",
			}}},
		}
	case ViewRevenueByMonth:
		return TableOrderDetails, mongo.Pipeline{
			lookup(TableOrders, "order_id", "o"),
			unwind("$o"),
			{{Key: "$group", Value: bson.M{
				"_id": bson.M{
					"year":  bson.M{"$year": "$o.order_date"},
					"month": bson.M{"$month": "$o.order_date"},
				},
				"label":      bson.M{"$first": bson.M{"$dateToString": bson.M{"format": "%Y-%m", "date": "$o.order_date"}}},
				"total_cost": bson.M{"$sum": "$cost"},
			}}},
			{{Key: "$project", Value: bson.M{
				"year": "$_id.year", "month": "$_id.month", "label": 1, "total_cost": 1,
			}}},
		}
	case ViewRevenueByProduct:
		return TableOrderDetails, mongo.Pipeline{
			lookup(TableProducts, "product_id", "p"),
			unwind("$p"),
			{{Key: "$group", Value: bson.M{
				"_id":          "$product_id",
				"product_name": bson.M{"$first": "$p.product_name"},
				"total_cost":   bson.M{"$sum": "$cost"},
			}}},
			{{Key: "$project", Value: bson.M{"product_id": "$_id", "product_name": 1, "total_cost": 1}}},
		}
	}
	return t.Name, mongo.Pipeline{}
}

type parentRef struct {
	table *Table
	field string
}

// parents lists the tables that rows of the named table reference.
func (s Schema) parents(name string) []parentRef {
	var refs []parentRef
	for _, p := range s {
		for _, dep := range p.Dependents {
			if dep.Table == name {
				refs = append(refs, parentRef{table: p, field: dep.Field})
			}
		}
	}
	return refs
}

func toBSON(v any) any {
	if d, ok := v.(decimal.Decimal); ok {
		dec, err := primitive.ParseDecimal128(d.String())
		if err == nil {
			return dec
		}
	}
	return v
}

func toDocument(r Record) bson.M {
	doc := make(bson.M, len(r))
	for k, v := range r {
		doc[k] = toBSON(v)
	}
	return doc
}

func fromDocument(t *Table, doc bson.M) (Record, error) {
	rec := make(Record, len(doc))
	for k, v := range doc {
		col, ok := t.Column(k)
		if !ok {
			continue
		}
		switch bv := v.(type) {
		case primitive.Decimal128:
			v = bv.String()
		case primitive.DateTime:
			v = bv.Time().UTC()
		case int32:
			v = int64(bv)
		}
		cv, err := col.Coerce(v)
		if err != nil {
			return nil, err
		}
		rec[k] = cv
	}
	return rec, nil
}
