package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoDocument is the envelope stored per document. Fields live under data so that
// metadata never collides with user keys.
type mongoDocument struct {
	ID        string    `bson:"_id"`
	Data      bson.Raw  `bson:"data"`
	CreatedAt time.Time `bson:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

func (m mongoDocument) document() (Document, error) {
	data := map[string]interface{}{}
	if len(m.Data) > 0 {
		raw, err := bson.MarshalExtJSON(m.Data, false, false)
		if err != nil {
			return Document{}, unavailable("encode document "+m.ID, err)
		}
		if err := json.Unmarshal(raw, &data); err != nil {
			return Document{}, unavailable("decode document "+m.ID, err)
		}
	}
	return Document{ID: m.ID, Data: data, CreateTime: m.CreatedAt, UpdateTime: m.UpdatedAt}, nil
}

// MongoStore maps each collection to a MongoDB collection of the same name.
type MongoStore struct {
	db       *mongo.Database
	observer Observer
	now      func() time.Time
}

// NewMongoStore wraps db. observer may be nil.
func NewMongoStore(db *mongo.Database, observer Observer) *MongoStore {
	return &MongoStore{db: db, observer: observer, now: func() time.Time { return time.Now().UTC() }}
}

func (s *MongoStore) NewID() string { return newID() }

func (s *MongoStore) Set(ctx context.Context, collection, id string, fields Fields, opts ...SetOption) error {
	if err := checkRef(collection, id); err != nil {
		return err
	}
	defer observe(s.observer, "docstore.set."+collection, time.Now())
	o := applySetOptions(opts)
	now := s.now()

	var update bson.M
	if o.merge {
		ops, err := updateOperators(fields, now)
		if err != nil {
			return err
		}
		update = ops
	} else {
		data, err := apply(nil, fields, now, false)
		if err != nil {
			return err
		}
		update = bson.M{"$set": bson.M{"data": toBSON(data), "updatedAt": now}}
	}
	update["$setOnInsert"] = bson.M{"createdAt": now}

	_, err := s.db.Collection(collection).UpdateOne(ctx, bson.M{"_id": id}, update, options.Update().SetUpsert(true))
	if err != nil {
		return unavailable("set document", err)
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	if err := checkRef(collection, id); err != nil {
		return nil, err
	}
	defer observe(s.observer, "docstore.get."+collection, time.Now())

	var raw mongoDocument
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&raw)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, notFound(collection, id)
		}
		return nil, unavailable("get document", err)
	}
	doc, err := raw.document()
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *MongoStore) Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error) {
	if collection == "" {
		return nil, invalidArgument("collection required")
	}
	filter := bson.D{}
	for _, f := range filters {
		if err := f.validate(); err != nil {
			return nil, err
		}
		value, err := normalize(f.Value)
		if err != nil {
			return nil, err
		}
		// Mongo matches scalars against array elements, which covers array-contains.
		filter = append(filter, bson.E{Key: "data." + f.Field, Value: toBSON(value)})
	}
	defer observe(s.observer, "docstore.query."+collection, time.Now())

	cursor, err := s.db.Collection(collection).Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, unavailable("query documents", err)
	}
	defer cursor.Close(ctx) //nolint:errcheck

	docs := make([]Document, 0)
	for cursor.Next(ctx) {
		var raw mongoDocument
		if err := cursor.Decode(&raw); err != nil {
			return nil, unavailable("decode query result", err)
		}
		doc, err := raw.document()
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := cursor.Err(); err != nil {
		return nil, unavailable("iterate query", err)
	}
	return docs, nil
}

func (s *MongoStore) Update(ctx context.Context, collection, id string, fields Fields) error {
	if err := checkRef(collection, id); err != nil {
		return err
	}
	defer observe(s.observer, "docstore.update."+collection, time.Now())

	update, err := updateOperators(fields, s.now())
	if err != nil {
		return err
	}
	res, err := s.db.Collection(collection).UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return unavailable("update document", err)
	}
	if res.MatchedCount == 0 {
		return notFound(collection, id)
	}
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, collection, id string) error {
	if err := checkRef(collection, id); err != nil {
		return err
	}
	defer observe(s.observer, "docstore.delete."+collection, time.Now())

	if _, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return unavailable("delete document", err)
	}
	return nil
}

// updateOperators translates field transforms into $set, $addToSet and $pull.
func updateOperators(fields Fields, now time.Time) (bson.M, error) {
	set := bson.M{"updatedAt": now}
	addToSet := bson.M{}
	pull := bson.M{}
	for key, value := range fields {
		if key == "" {
			return nil, invalidArgument("empty field name")
		}
		path := "data." + key
		switch v := value.(type) {
		case serverTimestamp:
			set[path] = toBSON(timestampValue(now))
		case arrayUnion:
			values, err := normalizeAll(v.values)
			if err != nil {
				return nil, err
			}
			addToSet[path] = bson.M{"$each": toBSON(values)}
		case arrayRemove:
			values, err := normalizeAll(v.values)
			if err != nil {
				return nil, err
			}
			pull[path] = bson.M{"$in": toBSON(values)}
		default:
			n, err := normalize(value)
			if err != nil {
				return nil, err
			}
			set[path] = toBSON(n)
		}
	}
	update := bson.M{"$set": set}
	if len(addToSet) > 0 {
		update["$addToSet"] = addToSet
	}
	if len(pull) > 0 {
		update["$pull"] = pull
	}
	return update, nil
}

// toBSON stores integral JSON numbers as int64 so they decode back as plain integers.
func toBSON(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := bson.M{}
		for k, val := range t {
			out[k] = toBSON(val)
		}
		return out
	case []interface{}:
		out := bson.A{}
		for _, val := range t {
			out = append(out, toBSON(val))
		}
		return out
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1<<53 {
			return int64(t)
		}
		return t
	default:
		return v
	}
}
