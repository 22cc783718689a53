package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/touristguide/internal/store"
	"github.com/hitoshi/touristguide/internal/user"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// SignIn は初回サインイン時にユーザーを登録する。既存の場合は(nil, nil)。
	SignIn(ctx context.Context, doc store.Document) (*store.InsertResult, error)
	List(ctx context.Context, f user.ListFilter, skip, limit int64) ([]store.Document, error)
	Count(ctx context.Context, f user.ListFilter) (int64, error)
	Get(ctx context.Context, email string) (store.Document, error)
	// UpdateSelf は本人による更新。role・emailは変更できない。
	UpdateSelf(ctx context.Context, email string, fields store.Document) (*store.UpdateResult, error)
	// UpdateRole は管理者によるロール・ステータス変更。
	UpdateRole(ctx context.Context, id string, fields store.Document) (*store.UpdateResult, error)
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{service: service}
}

func userFilter(r *http.Request) user.ListFilter {
	q := r.URL.Query()
	return user.ListFilter{Role: q.Get("role"), Search: q.Get("search")}
}

// SignIn はユーザーを登録する。既に登録済みの場合は空のボディで200を返す。
// POST /user
func (h *UserHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	doc, err := decodeDocument(w, r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	res, err := h.service.SignIn(r.Context(), doc)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if res == nil {
		w.WriteHeader(http.StatusOK)
		return
	}

	writeJSON(w, res)
}

// List はユーザー一覧を返す。role・searchで絞り込み、page・sizeでページングする。
// GET /users
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	skip, limit := pageParams(r)

	docs, err := h.service.List(r.Context(), userFilter(r), skip, limit)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, docs)
}

// Count はユーザー数を返す。
// GET /users-total
func (h *UserHandler) Count(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.Count(r.Context(), userFilter(r))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeCount(w, n)
}

// Get はメールアドレスでユーザーを返す。
// GET /user/{email}
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	doc, err := h.service.Get(r.Context(), chi.URLParam(r, "email"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, doc)
}

// UpdateSelf は本人のユーザー情報を更新する。
// PATCH /users/update/{email}
func (h *UserHandler) UpdateSelf(w http.ResponseWriter, r *http.Request) {
	fields, err := decodeDocument(w, r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	res, err := h.service.UpdateSelf(r.Context(), chi.URLParam(r, "email"), fields)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, res)
}

// UpdateRole はIDで指定したユーザーのロール・ステータスを変更する。
// PATCH /users/{id}
func (h *UserHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	fields, err := decodeDocument(w, r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	res, err := h.service.UpdateRole(r.Context(), chi.URLParam(r, "id"), fields)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, res)
}
