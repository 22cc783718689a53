package story

import (
	"context"
	"strings"
	"testing"

	"github.com/hitoshi/touristguide/internal/model"
	"github.com/hitoshi/touristguide/internal/security"
	"github.com/hitoshi/touristguide/internal/store"
	"github.com/hitoshi/touristguide/internal/store/memstore"
)

func newTestService() *Service {
	coll := memstore.New(model.UniqueKeys).Collection(model.CollectionStories)
	return NewService(coll, security.NewContentSanitizer())
}

func TestCreate_SanitizesAndAddsExcerpt(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	ins, err := svc.Create(ctx, store.Document{
		"touristEmail": "a@x.com",
		"description":  `<p>Sunset at <strong>Cox's Bazar</strong></p><script>steal()</script>`,
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	doc, err := svc.Get(ctx, ins.InsertedID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if strings.Contains(doc.String("description"), "script") {
		t.Errorf("description = %q, want script removed", doc.String("description"))
	}
	if !strings.Contains(doc.String("description"), "<strong>") {
		t.Errorf("description = %q, want allowed tags kept", doc.String("description"))
	}
	if doc.String("excerpt") != "Sunset at Cox's Bazar" {
		t.Errorf("excerpt = %q", doc.String("excerpt"))
	}
}

func TestListAndCount_FilterByEmail(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	svc.Create(ctx, store.Document{"touristEmail": "a@x.com"})
	svc.Create(ctx, store.Document{"touristEmail": "a@x.com"})
	svc.Create(ctx, store.Document{"touristEmail": "b@x.com"})

	docs, err := svc.List(ctx, "a@x.com", 0)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(docs) != 2 {
		t.Errorf("len = %d, want 2", len(docs))
	}

	n, _ := svc.Count(ctx, "")
	if n != 3 {
		t.Errorf("count = %d, want 3", n)
	}
}
