package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/touristguide/internal/store"
)

// StoryServiceInterface は旅行記ハンドラーが必要とするサービスインターフェース。
type StoryServiceInterface interface {
	List(ctx context.Context, email string, limit int64) ([]store.Document, error)
	Get(ctx context.Context, id string) (store.Document, error)
	Create(ctx context.Context, doc store.Document) (*store.InsertResult, error)
	Count(ctx context.Context, email string) (int64, error)
}

// StoryHandler は旅行記のHTTPハンドラー。
type StoryHandler struct {
	service StoryServiceInterface
}

// NewStoryHandler はStoryHandlerを生成する。
func NewStoryHandler(service StoryServiceInterface) *StoryHandler {
	return &StoryHandler{service: service}
}

// List は旅行記を返す。
// GET /stories?email=&limit=
func (h *StoryHandler) List(w http.ResponseWriter, r *http.Request) {
	docs, err := h.service.List(r.Context(), r.URL.Query().Get("email"), limitParam(r))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, docs)
}

// Get は旅行記を1件返す。
// GET /stories/{id}
func (h *StoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	doc, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, doc)
}

// Create は旅行記を登録する。
// POST /stories
func (h *StoryHandler) Create(w http.ResponseWriter, r *http.Request) {
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

// Count は旅行記の件数を返す。
// GET /stories-total?email=
func (h *StoryHandler) Count(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.Count(r.Context(), r.URL.Query().Get("email"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeCount(w, n)
}
