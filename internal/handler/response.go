// Package handler はHTTPハンドラーとルーティングを提供する。
//
// ハンドラーはパス・クエリパラメータをサービス呼び出しに変換し、
// ストアの結果（ドキュメント、挿入・更新・削除結果）をそのままJSONで返す。
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/touristguide/internal/middleware"
	"github.com/hitoshi/touristguide/internal/model"
	"github.com/hitoshi/touristguide/internal/store"
)

// maxBodyBytes はリクエストボディの上限。
const maxBodyBytes = 1 << 20

// existResponse は重複判定キーが既に存在する場合のレスポンス。
// 既存クライアントはステータスではなくmessageで分岐するため200で返す。
type existResponse struct {
	Message string `json:"message"`
}

// countResponse は件数のみを返すエンドポイントのレスポンス。
type countResponse struct {
	Count int64 `json:"count"`
}

// writeJSON は200でvをJSONとして書き込む。nilのドキュメントはnullになる。
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

func writeCount(w http.ResponseWriter, n int64) {
	writeJSON(w, countResponse{Count: n})
}

// decodeDocument はリクエストボディをJSONオブジェクトとして読み込む。
// 数値はjson.Numberのまま保持し、ストアへ精度を落とさずに渡す。
func decodeDocument(w http.ResponseWriter, r *http.Request) (store.Document, error) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()

	var doc store.Document
	if err := dec.Decode(&doc); err != nil {
		return nil, model.NewInvalidRequestError(fmt.Sprintf("malformed JSON body: %v", err))
	}
	if doc == nil {
		return nil, model.NewInvalidRequestError("body must be a JSON object")
	}
	return doc, nil
}

// pageParams はpage/sizeクエリパラメータをskip/limitに変換する。
func pageParams(r *http.Request) (skip, limit int64) {
	q := r.URL.Query()
	return store.PageFromValues(q.Get("page"), q.Get("size"))
}

// limitParam はlimitクエリパラメータを返す。
func limitParam(r *http.Request) int64 {
	return store.LimitFromValue(r.URL.Query().Get("limit"))
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPレスポンスに変換する。
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, store.ErrDuplicate) {
		writeJSON(w, existResponse{Message: "exist"})
		return
	}

	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidRequest, model.ErrCodeInvalidRole:
		return http.StatusBadRequest
	case model.ErrCodeUnauthenticated:
		return http.StatusUnauthorized
	case model.ErrCodeForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
