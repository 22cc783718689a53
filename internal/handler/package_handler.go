package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/touristguide/internal/store"
)

// PackageServiceInterface はパッケージハンドラーが必要とするサービスインターフェース。
type PackageServiceInterface interface {
	List(ctx context.Context, tourType string, limit int64) ([]store.Document, error)
	Get(ctx context.Context, id string) (store.Document, error)
	Create(ctx context.Context, doc store.Document) (*store.InsertResult, error)
	Count(ctx context.Context, tourType string) (int64, error)
}

// PackageHandler はツアーパッケージのHTTPハンドラー。
type PackageHandler struct {
	service PackageServiceInterface
}

// NewPackageHandler はPackageHandlerを生成する。
func NewPackageHandler(service PackageServiceInterface) *PackageHandler {
	return &PackageHandler{service: service}
}

// List はパッケージ一覧を返す。
// GET /packages?type=&limit=
func (h *PackageHandler) List(w http.ResponseWriter, r *http.Request) {
	docs, err := h.service.List(r.Context(), r.URL.Query().Get("type"), limitParam(r))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, docs)
}

// Get はパッケージを1件返す。
// GET /packages/{id}
func (h *PackageHandler) Get(w http.ResponseWriter, r *http.Request) {
	doc, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, doc)
}

// Create はパッケージを登録する。
// POST /packages
func (h *PackageHandler) Create(w http.ResponseWriter, r *http.Request) {
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

// Count はパッケージ数を返す。
// GET /packages-total?type=
func (h *PackageHandler) Count(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.Count(r.Context(), r.URL.Query().Get("type"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeCount(w, n)
}
