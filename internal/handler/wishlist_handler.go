package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/touristguide/internal/middleware"
	"github.com/hitoshi/touristguide/internal/store"
)

// WishlistServiceInterface はウィッシュリストハンドラーが必要とするサービスインターフェース。
type WishlistServiceInterface interface {
	List(ctx context.Context) ([]store.Document, error)
	ListByEmail(ctx context.Context, email string, skip, limit int64) ([]store.Document, error)
	CountByEmail(ctx context.Context, email string) (int64, error)
	// Add は(packageId, touristEmail)が重複する場合store.ErrDuplicateを返す。
	Add(ctx context.Context, actor string, doc store.Document) (*store.InsertResult, error)
	Delete(ctx context.Context, id string) (*store.DeleteResult, error)
}

// WishlistHandler はウィッシュリストのHTTPハンドラー。
type WishlistHandler struct {
	service WishlistServiceInterface
}

// NewWishlistHandler はWishlistHandlerを生成する。
func NewWishlistHandler(service WishlistServiceInterface) *WishlistHandler {
	return &WishlistHandler{service: service}
}

// List は全件を返す。
// GET /wishlist
func (h *WishlistHandler) List(w http.ResponseWriter, r *http.Request) {
	docs, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, docs)
}

// ListByEmail は本人のウィッシュリストを返す。
// GET /wishlist/{email}?page=&size=
func (h *WishlistHandler) ListByEmail(w http.ResponseWriter, r *http.Request) {
	skip, limit := pageParams(r)

	docs, err := h.service.ListByEmail(r.Context(), chi.URLParam(r, "email"), skip, limit)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, docs)
}

// CountByEmail は本人のウィッシュリスト件数を返す。
// GET /wishlist-total/{email}
func (h *WishlistHandler) CountByEmail(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.CountByEmail(r.Context(), chi.URLParam(r, "email"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeCount(w, n)
}

// Add はウィッシュリストに追加する。既にあれば{message:"exist"}。
// POST /wishlist
func (h *WishlistHandler) Add(w http.ResponseWriter, r *http.Request) {
	doc, err := decodeDocument(w, r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	res, err := h.service.Add(r.Context(), middleware.ActorEmail(r.Context()), doc)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// Delete はIDで項目を削除する。
// DELETE /wishlist/{id}
func (h *WishlistHandler) Delete(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}
