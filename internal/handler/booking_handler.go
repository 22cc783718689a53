package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/touristguide/internal/middleware"
	"github.com/hitoshi/touristguide/internal/store"
)

// BookingServiceInterface は予約ハンドラーが必要とするサービスインターフェース。
type BookingServiceInterface interface {
	ListAll(ctx context.Context, skip, limit int64) ([]store.Document, error)
	CountAll(ctx context.Context) (int64, error)
	ListByTourist(ctx context.Context, email string, skip, limit int64) ([]store.Document, error)
	CountByTourist(ctx context.Context, email string) (int64, error)
	ListAssigned(ctx context.Context, guideName string, skip, limit int64) ([]store.Document, error)
	CountAssigned(ctx context.Context, guideName string) (int64, error)
	// Add は(packageName, touristEmail)が重複する場合store.ErrDuplicateを返す。
	Add(ctx context.Context, actor string, doc store.Document) (*store.InsertResult, error)
	Delete(ctx context.Context, id string) (*store.DeleteResult, error)
	UpdateStatus(ctx context.Context, id string, fields store.Document) (*store.UpdateResult, error)
}

// BookingHandler は予約のHTTPハンドラー。
type BookingHandler struct {
	service BookingServiceInterface
}

// NewBookingHandler はBookingHandlerを生成する。
func NewBookingHandler(service BookingServiceInterface) *BookingHandler {
	return &BookingHandler{service: service}
}

// ListAll は全予約を返す。
// GET /bookings?page=&size=
func (h *BookingHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	skip, limit := pageParams(r)

	docs, err := h.service.ListAll(r.Context(), skip, limit)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, docs)
}

// CountAll は全予約数を返す。
// GET /bookings-total
func (h *BookingHandler) CountAll(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.CountAll(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeCount(w, n)
}

// ListByTourist は本人の予約を返す。
// GET /booking/{email}?page=&size=
func (h *BookingHandler) ListByTourist(w http.ResponseWriter, r *http.Request) {
	skip, limit := pageParams(r)

	docs, err := h.service.ListByTourist(r.Context(), chi.URLParam(r, "email"), skip, limit)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, docs)
}

// CountByTourist は本人の予約数を返す。
// GET /bookings-total/{email}
func (h *BookingHandler) CountByTourist(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.CountByTourist(r.Context(), chi.URLParam(r, "email"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeCount(w, n)
}

// ListAssigned はガイドの担当予約を返す。
// GET /assigned-tours/{name}?page=&size=
func (h *BookingHandler) ListAssigned(w http.ResponseWriter, r *http.Request) {
	skip, limit := pageParams(r)

	docs, err := h.service.ListAssigned(r.Context(), chi.URLParam(r, "name"), skip, limit)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, docs)
}

// CountAssigned はガイドの担当予約数を返す。
// GET /assigned-tours-total/{name}
func (h *BookingHandler) CountAssigned(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.CountAssigned(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeCount(w, n)
}

// Add は予約を作成する。既にあれば{message:"exist"}。
// POST /bookings
func (h *BookingHandler) Add(w http.ResponseWriter, r *http.Request) {
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

// Delete はIDで予約を削除する。
// DELETE /booking/{id}
func (h *BookingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// UpdateStatus は予約のステータス等を更新する。
// PATCH /booking/status/{id}
func (h *BookingHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	fields, err := decodeDocument(w, r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	res, err := h.service.UpdateStatus(r.Context(), chi.URLParam(r, "id"), fields)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}
