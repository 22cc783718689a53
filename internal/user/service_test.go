package user

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/touristguide/internal/model"
	"github.com/hitoshi/touristguide/internal/store"
	"github.com/hitoshi/touristguide/internal/store/memstore"
)

func newTestService(t *testing.T) (*Service, store.Collection) {
	t.Helper()
	users := memstore.New(model.UniqueKeys).Collection(model.CollectionUsers)
	return NewService(users), users
}

func TestSignIn_InsertsOnceWithTouristRole(t *testing.T) {
	svc, users := newTestService(t)
	ctx := context.Background()

	res, err := svc.SignIn(ctx, store.Document{"email": "a@x.com", "name": "A", "role": "Admin"})
	if err != nil {
		t.Fatalf("SignIn returned error: %v", err)
	}
	if res == nil || res.InsertedID == "" {
		t.Fatalf("SignIn result = %+v, want inserted id", res)
	}

	res, err = svc.SignIn(ctx, store.Document{"email": "a@x.com"})
	if err != nil {
		t.Fatalf("second SignIn returned error: %v", err)
	}
	if res != nil {
		t.Errorf("second SignIn result = %+v, want nil", res)
	}

	n, _ := users.Count(ctx, store.Filter{})
	if n != 1 {
		t.Errorf("user count = %d, want 1", n)
	}

	doc, _ := users.FindOne(ctx, store.Eq("email", "a@x.com"))
	if doc.String("role") != string(model.RoleTourist) {
		t.Errorf("role = %q, want Tourist", doc.String("role"))
	}
}

func TestSignIn_RequiresEmail(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.SignIn(context.Background(), store.Document{"name": "A"})

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidRequest {
		t.Errorf("err = %v, want INVALID_REQUEST", err)
	}
}

func TestRoleOf(t *testing.T) {
	svc, users := newTestService(t)
	ctx := context.Background()

	users.InsertOne(ctx, store.Document{"email": "admin@x.com", "role": "Admin"})
	users.InsertOne(ctx, store.Document{"email": "legacy@x.com"})

	tests := []struct {
		email string
		role  model.Role
		found bool
	}{
		{"admin@x.com", model.RoleAdmin, true},
		{"legacy@x.com", model.RoleTourist, true},
		{"nobody@x.com", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			role, found, err := svc.RoleOf(ctx, tt.email)
			if err != nil {
				t.Fatalf("RoleOf returned error: %v", err)
			}
			if role != tt.role || found != tt.found {
				t.Errorf("RoleOf = (%q, %v), want (%q, %v)", role, found, tt.role, tt.found)
			}
		})
	}
}

func TestUpdateSelf_CannotChangeRoleOrEmail(t *testing.T) {
	svc, users := newTestService(t)
	ctx := context.Background()
	svc.SignIn(ctx, store.Document{"email": "a@x.com"})

	res, err := svc.UpdateSelf(ctx, "a@x.com", store.Document{
		"name":  "New Name",
		"role":  "Admin",
		"email": "b@x.com",
	})
	if err != nil {
		t.Fatalf("UpdateSelf returned error: %v", err)
	}
	if res.MatchedCount != 1 {
		t.Errorf("MatchedCount = %d, want 1", res.MatchedCount)
	}

	doc, _ := users.FindOne(ctx, store.Eq("email", "a@x.com"))
	if doc == nil {
		t.Fatal("user email should not change")
	}
	if doc.String("role") != "Tourist" {
		t.Errorf("role = %q, want Tourist", doc.String("role"))
	}
	if doc.String("name") != "New Name" {
		t.Errorf("name = %q, want New Name", doc.String("name"))
	}
}

func TestUpdateRole(t *testing.T) {
	svc, users := newTestService(t)
	ctx := context.Background()
	ins, _ := svc.SignIn(ctx, store.Document{"email": "g@x.com"})

	res, err := svc.UpdateRole(ctx, ins.InsertedID, store.Document{"role": "Tour Guide", "status": "accepted", "name": "ignored"})
	if err != nil {
		t.Fatalf("UpdateRole returned error: %v", err)
	}
	if res.ModifiedCount != 1 {
		t.Errorf("ModifiedCount = %d, want 1", res.ModifiedCount)
	}

	doc, _ := users.FindOne(ctx, store.ByID(ins.InsertedID))
	if doc.String("role") != "Tour Guide" || doc.String("status") != "accepted" {
		t.Errorf("doc = %v", doc)
	}
	if _, ok := doc["name"]; ok {
		t.Error("fields other than role/status should be ignored")
	}
}

func TestUpdateRole_Validation(t *testing.T) {
	svc, _ := newTestService(t)

	tests := []struct {
		name   string
		fields store.Document
		code   string
	}{
		{"unknown role", store.Document{"role": "Root"}, model.ErrCodeInvalidRole},
		{"non-string role", store.Document{"role": 1}, model.ErrCodeInvalidRole},
		{"empty body", store.Document{"name": "x"}, model.ErrCodeInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UpdateRole(context.Background(), "id", tt.fields)
			var apiErr *model.APIError
			if !errors.As(err, &apiErr) || apiErr.Code != tt.code {
				t.Errorf("err = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestListAndCount_FilterBySearchAndRole(t *testing.T) {
	svc, users := newTestService(t)
	ctx := context.Background()

	users.InsertOne(ctx, store.Document{"email": "1@x.com", "name": "Rahim Uddin", "role": "Tour Guide"})
	users.InsertOne(ctx, store.Document{"email": "2@x.com", "name": "Karim", "role": "Tourist"})
	users.InsertOne(ctx, store.Document{"email": "3@x.com", "name": "rahima", "role": "Tourist"})

	docs, err := svc.List(ctx, ListFilter{Search: "RAHIM"}, 0, 0)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(docs) != 2 {
		t.Errorf("len = %d, want 2", len(docs))
	}

	n, err := svc.Count(ctx, ListFilter{Role: "Tourist", Search: "rahim"})
	if err != nil {
		t.Fatalf("Count returned error: %v", err)
	}
	if n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
}
