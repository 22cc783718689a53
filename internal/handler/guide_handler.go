package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/touristguide/internal/middleware"
	"github.com/hitoshi/touristguide/internal/store"
)

// GuideServiceInterface はガイドハンドラーが必要とするサービスインターフェース。
type GuideServiceInterface interface {
	List(ctx context.Context, limit int64) ([]store.Document, error)
	Get(ctx context.Context, id string) (store.Document, error)
	Create(ctx context.Context, doc store.Document) (*store.InsertResult, error)
	// AddReview は同じuserNameのレビューが無い場合に限り追加する。
	AddReview(ctx context.Context, id, actor string, review store.Document) (*store.UpdateResult, error)
}

// GuideHandler はツアーガイドのHTTPハンドラー。
type GuideHandler struct {
	service GuideServiceInterface
}

// NewGuideHandler はGuideHandlerを生成する。
func NewGuideHandler(service GuideServiceInterface) *GuideHandler {
	return &GuideHandler{service: service}
}

// List はガイド一覧を返す。
// GET /tourGuides?limit=
func (h *GuideHandler) List(w http.ResponseWriter, r *http.Request) {
	docs, err := h.service.List(r.Context(), limitParam(r))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, docs)
}

// Get はガイドを1件返す。
// GET /tourGuides/{id}
func (h *GuideHandler) Get(w http.ResponseWriter, r *http.Request) {
	doc, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, doc)
}

// Create はガイドのプロフィールを登録する。
// POST /tourGuides
func (h *GuideHandler) Create(w http.ResponseWriter, r *http.Request) {
	doc, err := decodeDocument(w, r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	res, err := h.service.Create(r.Context(), doc)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// AddReview はガイドにレビューを追加する。同じuserNameのレビューがあれば{message:"exist"}。
// PATCH /addReview/{id}
func (h *GuideHandler) AddReview(w http.ResponseWriter, r *http.Request) {
	review, err := decodeDocument(w, r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	res, err := h.service.AddReview(r.Context(), chi.URLParam(r, "id"), middleware.ActorEmail(r.Context()), review)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}
