package mongostore

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/hitoshi/touristguide/internal/store"
)

func TestToFilter_ConvertsObjectID(t *testing.T) {
	oid := primitive.NewObjectID()

	filter, ok := toFilter(store.ByID(oid.Hex()))
	if !ok {
		t.Fatal("expected valid filter")
	}
	if filter["_id"] != oid {
		t.Errorf("_id = %v, want %v", filter["_id"], oid)
	}
}

func TestToFilter_InvalidObjectID_NoMatch(t *testing.T) {
	if _, ok := toFilter(store.ByID("not-an-object-id")); ok {
		t.Error("expected invalid id to produce no-match")
	}
}

func TestToFilter_SearchIsQuotedCaseInsensitiveRegex(t *testing.T) {
	filter, ok := toFilter(store.Filter{
		Equals: map[string]any{"role": "Tourist"},
		Search: &store.Match{Field: "name", Value: "a.b"},
	})
	if !ok {
		t.Fatal("expected valid filter")
	}

	re, isRegex := filter["name"].(primitive.Regex)
	if !isRegex {
		t.Fatalf("name = %#v, want primitive.Regex", filter["name"])
	}
	if re.Pattern != `a\.b` || re.Options != "i" {
		t.Errorf("regex = %+v, want pattern a\\.b options i", re)
	}
	if filter["role"] != "Tourist" {
		t.Errorf("role = %v, want Tourist", filter["role"])
	}
}

func TestToDocument_NormalizesBSONTypes(t *testing.T) {
	oid := primitive.NewObjectID()
	when := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	doc := toDocument(bson.M{
		"_id":     oid,
		"created": primitive.NewDateTimeFromTime(when),
		"reviews": bson.A{bson.D{{Key: "userName", Value: "u1"}}},
		"guide":   bson.M{"ref": oid},
	})

	if doc.String("_id") != oid.Hex() {
		t.Errorf("_id = %v, want %s", doc["_id"], oid.Hex())
	}
	if got, ok := doc["created"].(time.Time); !ok || !got.Equal(when) {
		t.Errorf("created = %#v, want %v", doc["created"], when)
	}

	reviews, ok := doc["reviews"].([]any)
	if !ok || len(reviews) != 1 {
		t.Fatalf("reviews = %#v, want one element slice", doc["reviews"])
	}
	review, ok := reviews[0].(map[string]any)
	if !ok || review["userName"] != "u1" {
		t.Errorf("reviews[0] = %#v, want map with userName", reviews[0])
	}

	guide, ok := doc["guide"].(map[string]any)
	if !ok || guide["ref"] != oid.Hex() {
		t.Errorf("guide = %#v, want nested ObjectID as hex", doc["guide"])
	}
}

// ============================================================
// MongoDB結合テスト（TEST_MONGODB_URIが必要）
// ============================================================

func setupStore(t *testing.T) *Store {
	t.Helper()

	uri := os.Getenv("TEST_MONGODB_URI")
	if uri == "" {
		t.Skip("TEST_MONGODB_URI が未設定のためスキップ")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s, err := Open(ctx, uri, "tourist_guide_test")
	if err != nil {
		t.Skipf("テスト用MongoDBに接続できません（スキップ）: %v", err)
	}
	t.Cleanup(func() {
		_ = s.db.Drop(context.Background())
		_ = s.Close(context.Background())
	})

	if err := s.db.Drop(ctx); err != nil {
		t.Fatalf("クリーンアップに失敗: %v", err)
	}
	if err := s.EnsureUniqueIndexes(ctx, map[string][]string{"wishlist": {"packageId", "touristEmail"}}); err != nil {
		t.Fatalf("インデックス作成に失敗: %v", err)
	}

	return s
}

func TestStore_InsertOne_Duplicate(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	coll := s.Collection("wishlist")

	res, err := coll.InsertOne(ctx, store.Document{"packageId": "p1", "touristEmail": "a@x.com"})
	if err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	if _, err := primitive.ObjectIDFromHex(res.InsertedID); err != nil {
		t.Errorf("InsertedID %q is not an ObjectID hex", res.InsertedID)
	}

	_, err = coll.InsertOne(ctx, store.Document{"packageId": "p1", "touristEmail": "a@x.com"})
	if !errors.Is(err, store.ErrDuplicate) {
		t.Errorf("err = %v, want ErrDuplicate", err)
	}
}

func TestStore_PushUnique(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	coll := s.Collection("tourGuides")

	res, err := coll.InsertOne(ctx, store.Document{"name": "guide"})
	if err != nil {
		t.Fatalf("InsertOne failed: %v", err)
	}

	if _, err := coll.PushUnique(ctx, res.InsertedID, "reviews", "userName", store.Document{"userName": "u1"}); err != nil {
		t.Fatalf("first push failed: %v", err)
	}
	if _, err := coll.PushUnique(ctx, res.InsertedID, "reviews", "userName", store.Document{"userName": "u1"}); !errors.Is(err, store.ErrDuplicate) {
		t.Errorf("err = %v, want ErrDuplicate", err)
	}

	doc, err := coll.FindOne(ctx, store.ByID(res.InsertedID))
	if err != nil {
		t.Fatalf("FindOne failed: %v", err)
	}
	if reviews, _ := doc["reviews"].([]any); len(reviews) != 1 {
		t.Errorf("reviews = %v, want 1 element", doc["reviews"])
	}
}

func TestStore_Find_SkipLimit(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	coll := s.Collection("packages")

	for i := 0; i < 15; i++ {
		if _, err := coll.InsertOne(ctx, store.Document{"seq": i}); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}

	docs, err := coll.Find(ctx, store.Query{Skip: 10, Limit: 10, SortField: "seq"})
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if len(docs) != 5 {
		t.Errorf("len = %d, want 5", len(docs))
	}
}

func TestStore_UpdateOne(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	coll := s.Collection("bookings")

	res, err := coll.InsertOne(ctx, store.Document{"packageName": "Sundarbans", "status": "In Review"})
	if err != nil {
		t.Fatalf("InsertOne failed: %v", err)
	}

	upd, err := coll.UpdateOne(ctx, store.ByID(res.InsertedID), store.Document{"status": "Accepted"})
	if err != nil {
		t.Fatalf("UpdateOne failed: %v", err)
	}
	if !upd.Acknowledged || upd.MatchedCount != 1 || upd.ModifiedCount != 1 {
		t.Errorf("result = %+v, want acknowledged 1/1", upd)
	}

	// 同じ値での再更新は一致するが変更されない
	upd, err = coll.UpdateOne(ctx, store.ByID(res.InsertedID), store.Document{"status": "Accepted"})
	if err != nil {
		t.Fatalf("second UpdateOne failed: %v", err)
	}
	if upd.MatchedCount != 1 || upd.ModifiedCount != 0 {
		t.Errorf("result = %+v, want matched 1 modified 0", upd)
	}

	// 空の$setは一致件数のみ返す
	upd, err = coll.UpdateOne(ctx, store.ByID(res.InsertedID), store.Document{"_id": "ignored"})
	if err != nil {
		t.Fatalf("empty UpdateOne failed: %v", err)
	}
	if !upd.Acknowledged || upd.MatchedCount != 1 {
		t.Errorf("result = %+v, want acknowledged matched 1", upd)
	}

	doc, err := coll.FindOne(ctx, store.ByID(res.InsertedID))
	if err != nil {
		t.Fatalf("FindOne failed: %v", err)
	}
	if doc.String("status") != "Accepted" {
		t.Errorf("status = %q, want Accepted", doc.String("status"))
	}
}

func TestStore_UpdateOne_InvalidIDMatchesNothing(t *testing.T) {
	s := setupStore(t)

	upd, err := s.Collection("bookings").UpdateOne(context.Background(), store.ByID("not-an-object-id"), store.Document{"status": "Accepted"})
	if err != nil {
		t.Fatalf("UpdateOne failed: %v", err)
	}
	if !upd.Acknowledged || upd.MatchedCount != 0 {
		t.Errorf("result = %+v, want acknowledged with no match", upd)
	}
}
