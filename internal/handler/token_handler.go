package handler

import (
	"net/http"

	"github.com/hitoshi/touristguide/internal/model"
)

// TokenIssuer は署名付きトークンを発行する。token.Serviceが実装する。
type TokenIssuer interface {
	Issue(email string) (string, error)
}

// TokenHandler はトークン発行のHTTPハンドラー。
type TokenHandler struct {
	issuer TokenIssuer
}

// NewTokenHandler はTokenHandlerを生成する。
func NewTokenHandler(issuer TokenIssuer) *TokenHandler {
	return &TokenHandler{issuer: issuer}
}

type tokenResponse struct {
	Token string `json:"token"`
}

// Issue はボディのemailを埋め込んだトークンを発行する。
// POST /jwt
func (h *TokenHandler) Issue(w http.ResponseWriter, r *http.Request) {
	body, err := decodeDocument(w, r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	email := body.String(model.FieldEmail)
	if email == "" {
		handleServiceError(w, r, model.NewInvalidRequestError("email is required"))
		return
	}

	signed, err := h.issuer.Issue(email)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, tokenResponse{Token: signed})
}
