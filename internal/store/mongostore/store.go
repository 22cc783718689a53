// Package mongostore はMongoDBを使ったstore.Databaseの実装を提供する。
// 既存のtourist-GuideデータベースとコレクションをそのままREST APIから扱う。
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/hitoshi/touristguide/internal/store"
)

// Store はMongoDBのデータベースをラップする。
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Open はMongoDBへ接続し、疎通を確認する。
func Open(ctx context.Context, uri, database string) (*Store, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1))

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &Store{client: client, db: client.Database(database)}, nil
}

// Collection は指定名のコレクションを返す。
func (s *Store) Collection(name string) store.Collection {
	return &collection{coll: s.db.Collection(name)}
}

// Ping はプライマリへの疎通を確認する。
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Close は接続を切断する。
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// EnsureUniqueIndexes はコレクションごとに複合ユニークインデックスを作成する。
// 同じ定義のインデックスが既にある場合は何もしない。
func (s *Store) EnsureUniqueIndexes(ctx context.Context, keys map[string][]string) error {
	for name, fields := range keys {
		index := bson.D{}
		for _, f := range fields {
			index = append(index, bson.E{Key: f, Value: 1})
		}
		_, err := s.db.Collection(name).Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys:    index,
			Options: options.Index().SetUnique(true),
		})
		if err != nil {
			return fmt.Errorf("failed to create unique index on %s %v: %w", name, fields, err)
		}
	}
	return nil
}

type collection struct {
	coll *mongo.Collection
}

func (c *collection) Find(ctx context.Context, q store.Query) ([]store.Document, error) {
	filter, ok := toFilter(q.Filter)
	if !ok {
		return []store.Document{}, nil
	}

	opts := options.Find()
	if q.Skip != 0 {
		opts.SetSkip(q.Skip)
	}
	if q.Limit > 0 {
		opts.SetLimit(q.Limit)
	}
	if q.SortField != "" {
		dir := 1
		if q.SortDesc {
			dir = -1
		}
		opts.SetSort(bson.D{{Key: q.SortField, Value: dir}})
	}

	cursor, err := c.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find documents in %s: %w", c.coll.Name(), err)
	}

	var raw []bson.M
	if err := cursor.All(ctx, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode documents from %s: %w", c.coll.Name(), err)
	}

	docs := make([]store.Document, 0, len(raw))
	for _, m := range raw {
		docs = append(docs, toDocument(m))
	}
	return docs, nil
}

func (c *collection) FindOne(ctx context.Context, f store.Filter) (store.Document, error) {
	filter, ok := toFilter(f)
	if !ok {
		return nil, nil
	}

	var m bson.M
	err := c.coll.FindOne(ctx, filter).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find document in %s: %w", c.coll.Name(), err)
	}

	return toDocument(m), nil
}

func (c *collection) InsertOne(ctx context.Context, doc store.Document) (*store.InsertResult, error) {
	res, err := c.coll.InsertOne(ctx, bson.M(doc.WithoutID()))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, store.ErrDuplicate
		}
		return nil, fmt.Errorf("failed to insert document into %s: %w", c.coll.Name(), err)
	}

	return &store.InsertResult{Acknowledged: true, InsertedID: idString(res.InsertedID)}, nil
}

func (c *collection) UpdateOne(ctx context.Context, f store.Filter, set store.Document) (*store.UpdateResult, error) {
	filter, ok := toFilter(f)
	if !ok {
		return &store.UpdateResult{Acknowledged: true}, nil
	}

	set = set.WithoutID()
	// 空の$setはサーバーエラーになるため、一致件数のみ返す
	if len(set) == 0 {
		n, err := c.coll.CountDocuments(ctx, filter, options.Count().SetLimit(1))
		if err != nil {
			return nil, fmt.Errorf("failed to count documents in %s: %w", c.coll.Name(), err)
		}
		return &store.UpdateResult{Acknowledged: true, MatchedCount: n}, nil
	}

	res, err := c.coll.UpdateOne(ctx, filter, bson.M{"$set": bson.M(set)})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, store.ErrDuplicate
		}
		return nil, fmt.Errorf("failed to update document in %s: %w", c.coll.Name(), err)
	}

	return &store.UpdateResult{
		Acknowledged:  true,
		MatchedCount:  res.MatchedCount,
		ModifiedCount: res.ModifiedCount,
	}, nil
}

// PushUnique は「同じキーの要素が無い」ことをフィルタに含めた$pushで追加する。
// 一致しなかった場合はドキュメントの有無で重複か不在かを判定する。
func (c *collection) PushUnique(ctx context.Context, id, arrayField, keyField string, elem store.Document) (*store.UpdateResult, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return &store.UpdateResult{Acknowledged: true}, nil
	}

	filter := bson.M{
		"_id":                       oid,
		arrayField + "." + keyField: bson.M{"$ne": elem[keyField]},
	}
	update := bson.M{"$push": bson.M{arrayField: bson.M(elem)}}

	res, err := c.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return nil, fmt.Errorf("failed to push into %s.%s: %w", c.coll.Name(), arrayField, err)
	}
	if res.MatchedCount > 0 {
		return &store.UpdateResult{Acknowledged: true, MatchedCount: res.MatchedCount, ModifiedCount: res.ModifiedCount}, nil
	}

	n, err := c.coll.CountDocuments(ctx, bson.M{"_id": oid}, options.Count().SetLimit(1))
	if err != nil {
		return nil, fmt.Errorf("failed to check document existence: %w", err)
	}
	if n > 0 {
		return nil, store.ErrDuplicate
	}

	return &store.UpdateResult{Acknowledged: true}, nil
}

func (c *collection) DeleteByID(ctx context.Context, id string) (*store.DeleteResult, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return &store.DeleteResult{Acknowledged: true}, nil
	}

	res, err := c.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return nil, fmt.Errorf("failed to delete document from %s: %w", c.coll.Name(), err)
	}

	return &store.DeleteResult{Acknowledged: true, DeletedCount: res.DeletedCount}, nil
}

func (c *collection) Count(ctx context.Context, f store.Filter) (int64, error) {
	filter, ok := toFilter(f)
	if !ok {
		return 0, nil
	}

	n, err := c.coll.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count documents in %s: %w", c.coll.Name(), err)
	}
	return n, nil
}

// toFilter はFilterをBSONのクエリに変換する。
// "_id"がObjectIDとして解釈できない場合はfalseを返し、呼び出し側は該当なしとして扱う。
func toFilter(f store.Filter) (bson.M, bool) {
	filter := bson.M{}
	for k, v := range f.Equals {
		if k == store.IDField {
			oid, err := primitive.ObjectIDFromHex(fmt.Sprint(v))
			if err != nil {
				return nil, false
			}
			filter[k] = oid
			continue
		}
		filter[k] = v
	}

	if f.Search != nil && f.Search.Value != "" {
		filter[f.Search.Field] = primitive.Regex{Pattern: regexp.QuoteMeta(f.Search.Value), Options: "i"}
	}

	return filter, true
}

func idString(id any) string {
	if oid, ok := id.(primitive.ObjectID); ok {
		return oid.Hex()
	}
	return fmt.Sprint(id)
}

// toDocument はBSON固有の型をJSONで表現できる値に変換する。
func toDocument(m bson.M) store.Document {
	doc := make(store.Document, len(m))
	for k, v := range m {
		doc[k] = normalize(v)
	}
	if id, ok := m[store.IDField]; ok {
		doc[store.IDField] = idString(id)
	}
	return doc
}

func normalize(v any) any {
	switch val := v.(type) {
	case bson.M:
		return map[string]any(toDocument(val))
	case map[string]any:
		return map[string]any(toDocument(bson.M(val)))
	case bson.D:
		out := make(map[string]any, len(val))
		for _, e := range val {
			out[e.Key] = normalize(e.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = normalize(e)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = normalize(e)
		}
		return out
	case primitive.ObjectID:
		return val.Hex()
	case primitive.DateTime:
		return val.Time().UTC()
	case primitive.Decimal128:
		return val.String()
	default:
		return v
	}
}

var (
	_ store.Database     = (*Store)(nil)
	_ store.IndexEnsurer = (*Store)(nil)
)
