// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthenticated = "UNAUTHENTICATED"
	ErrCodeForbidden       = "FORBIDDEN"
	ErrCodeInvalidRequest  = "INVALID_REQUEST"
	ErrCodeInvalidRole     = "INVALID_ROLE"
	ErrCodeInternal        = "INTERNAL_ERROR"
)

// 既存クライアントがmessageで分岐しているため、文言は変更しないこと。
const (
	MessageUnauthorizedAccess = "unauthorized access"
	MessageForbiddenAccess    = "forbidden access"
)

// NewUnauthenticatedError はトークン欠落・不正・期限切れ時のエラーを生成する。
// 失敗理由はレスポンスに含めない。
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthenticated,
		Message:  MessageUnauthorizedAccess,
		Category: "auth",
		Action:   "Sign in again to obtain a new token.",
	}
}

// NewForbiddenError はロール不一致・所有者不一致時のエラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  MessageForbiddenAccess,
		Category: "auth",
		Action:   "This resource is not available for your account.",
	}
}

// NewInvalidRequestError はリクエスト不正エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("invalid request: %s", reason),
		Category: "validation",
		Action:   "Check the request body and parameters.",
	}
}

// NewInvalidRoleError は未定義のロールが指定された場合のエラーを生成する。
func NewInvalidRoleError(role string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRole,
		Message:  fmt.Sprintf("unknown role: %s", role),
		Category: "validation",
		Action:   "Use one of Admin, Tour Guide or Tourist.",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "internal server error",
		Category: "system",
		Action:   "Please wait and try again later.",
	}
}
