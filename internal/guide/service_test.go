package guide

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/hitoshi/touristguide/internal/events"
	"github.com/hitoshi/touristguide/internal/model"
	"github.com/hitoshi/touristguide/internal/security"
	"github.com/hitoshi/touristguide/internal/store"
	"github.com/hitoshi/touristguide/internal/store/memstore"
)

type emitted struct {
	eventType, actor string
	data             map[string]any
}

type mockEmitter struct {
	mu     sync.Mutex
	events []emitted
}

func (m *mockEmitter) Emit(ctx context.Context, eventType, actor string, data map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, emitted{eventType, actor, data})
}

func newTestService(t *testing.T) (*Service, *mockEmitter) {
	t.Helper()
	em := &mockEmitter{}
	coll := memstore.New(model.UniqueKeys).Collection(model.CollectionTourGuides)
	return NewService(coll, security.NewTextSanitizer(), em), em
}

func TestCreate_InitializesReviews(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.Create(ctx, store.Document{"name": "Rahim", "_id": "client-chosen"})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if res.InsertedID == "client-chosen" {
		t.Error("client supplied _id should be ignored")
	}

	doc, err := svc.Get(ctx, res.InsertedID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if reviews, ok := doc["reviews"].([]any); !ok || len(reviews) != 0 {
		t.Errorf("reviews = %#v, want empty array", doc["reviews"])
	}
}

func TestAddReview_IdempotentPerUserName(t *testing.T) {
	svc, em := newTestService(t)
	ctx := context.Background()
	ins, _ := svc.Create(ctx, store.Document{"name": "Rahim"})

	res, err := svc.AddReview(ctx, ins.InsertedID, "a@x.com", store.Document{"userName": "Alice", "rating": 5})
	if err != nil {
		t.Fatalf("AddReview returned error: %v", err)
	}
	if res.ModifiedCount != 1 {
		t.Errorf("ModifiedCount = %d, want 1", res.ModifiedCount)
	}

	_, err = svc.AddReview(ctx, ins.InsertedID, "a@x.com", store.Document{"userName": "Alice", "rating": 1})
	if !errors.Is(err, store.ErrDuplicate) {
		t.Errorf("err = %v, want ErrDuplicate", err)
	}

	doc, _ := svc.Get(ctx, ins.InsertedID)
	if reviews, _ := doc["reviews"].([]any); len(reviews) != 1 {
		t.Errorf("reviews = %v, want 1 element", doc["reviews"])
	}

	if len(em.events) != 1 || em.events[0].eventType != events.TypeReviewAdded || em.events[0].actor != "a@x.com" {
		t.Errorf("events = %+v, want single review.added", em.events)
	}
}

func TestAddReview_SanitizesComment(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	ins, _ := svc.Create(ctx, store.Document{"name": "Rahim"})

	_, err := svc.AddReview(ctx, ins.InsertedID, "a@x.com", store.Document{
		"userName": "Alice",
		"comment":  `Great tour<script>alert(1)</script> <b>guide</b>`,
	})
	if err != nil {
		t.Fatalf("AddReview returned error: %v", err)
	}

	doc, _ := svc.Get(ctx, ins.InsertedID)
	reviews := doc["reviews"].([]any)
	review := reviews[0].(map[string]any)
	if review["comment"] != "Great tour guide" {
		t.Errorf("comment = %q, want %q", review["comment"], "Great tour guide")
	}
}

func TestAddReview_MissingGuide(t *testing.T) {
	svc, em := newTestService(t)

	res, err := svc.AddReview(context.Background(), "missing", "a@x.com", store.Document{"userName": "Alice"})
	if err != nil {
		t.Fatalf("AddReview returned error: %v", err)
	}
	if res.MatchedCount != 0 {
		t.Errorf("MatchedCount = %d, want 0", res.MatchedCount)
	}
	if len(em.events) != 0 {
		t.Errorf("events = %+v, want none", em.events)
	}
}

func TestAddReview_RequiresUserName(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.AddReview(context.Background(), "id", "a@x.com", store.Document{"rating": 5})

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidRequest {
		t.Errorf("err = %v, want INVALID_REQUEST", err)
	}
}

func TestList_Limit(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	for _, name := range []string{"a", "b", "c"} {
		svc.Create(ctx, store.Document{"name": name})
	}

	docs, err := svc.List(ctx, 2)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(docs) != 2 {
		t.Errorf("len = %d, want 2", len(docs))
	}
}
