// Package model はドメインモデルを定義する。
package model

// Role はユーザーに付与される粗い権限タグ。
type Role string

const (
	RoleAdmin     Role = "Admin"
	RoleTourGuide Role = "Tour Guide"
	// RoleTourist はロール未設定ユーザーの暗黙のロール。
	RoleTourist Role = "Tourist"
)

// Valid はロールが定義済みの値かどうかを返す。
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleTourGuide, RoleTourist:
		return true
	default:
		return false
	}
}

// ユーザードキュメントのフィールド名。
const (
	FieldEmail  = "email"
	FieldRole   = "role"
	FieldStatus = "status"
	FieldName   = "name"
)
