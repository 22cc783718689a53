// Package user はユーザー（利用者アカウント）のドメインロジックを提供する。
//
// サインイン時の登録、ロール参照（認可ゲートのロール確認に使う）、
// 管理者向けの一覧・ロール変更、本人による情報更新を扱う。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/touristguide/internal/model"
	"github.com/hitoshi/touristguide/internal/store"
)

// Service はユーザー管理のサービス層。
type Service struct {
	users store.Collection
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(users store.Collection) *Service {
	return &Service{users: users}
}

// SignIn は初回サインイン時にユーザーを登録する。
// ロールはクライアントの指定に関わらずTouristで作成する。
// 同じメールアドレスのユーザーが既に存在する場合は(nil, nil)を返す。
func (s *Service) SignIn(ctx context.Context, doc store.Document) (*store.InsertResult, error) {
	email := doc.String(model.FieldEmail)
	if email == "" {
		return nil, model.NewInvalidRequestError("email is required")
	}

	doc = doc.WithoutID()
	doc[model.FieldRole] = string(model.RoleTourist)

	res, err := s.users.InsertOne(ctx, doc)
	if errors.Is(err, store.ErrDuplicate) {
		slog.Debug("user already registered", slog.String("email", email))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to register user: %w", err)
	}
	return res, nil
}

// RoleOf はメールアドレスに対応するユーザーのロールを返す。
// ユーザーが存在しない場合はfound=false。ロール未設定のユーザーはTouristとして扱う。
func (s *Service) RoleOf(ctx context.Context, email string) (model.Role, bool, error) {
	doc, err := s.users.FindOne(ctx, store.Eq(model.FieldEmail, email))
	if err != nil {
		return "", false, fmt.Errorf("failed to find user: %w", err)
	}
	if doc == nil {
		return "", false, nil
	}

	role := model.Role(doc.String(model.FieldRole))
	if role == "" {
		role = model.RoleTourist
	}
	return role, true, nil
}

// ListFilter はユーザー一覧の絞り込み条件。
type ListFilter struct {
	Role   string // 完全一致
	Search string // nameの部分一致（大文字小文字を区別しない）
}

func (f ListFilter) toStoreFilter() store.Filter {
	var filter store.Filter
	if f.Role != "" {
		filter.Equals = map[string]any{model.FieldRole: f.Role}
	}
	if f.Search != "" {
		filter.Search = &store.Match{Field: model.FieldName, Value: f.Search}
	}
	return filter
}

// List はユーザー一覧を返す。
func (s *Service) List(ctx context.Context, f ListFilter, skip, limit int64) ([]store.Document, error) {
	docs, err := s.users.Find(ctx, store.Query{Filter: f.toStoreFilter(), Skip: skip, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return docs, nil
}

// Count は条件に一致するユーザー数を返す。
func (s *Service) Count(ctx context.Context, f ListFilter) (int64, error) {
	n, err := s.users.Count(ctx, f.toStoreFilter())
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

// Get はメールアドレスでユーザーを取得する。存在しない場合はnilを返す。
func (s *Service) Get(ctx context.Context, email string) (store.Document, error) {
	doc, err := s.users.FindOne(ctx, store.Eq(model.FieldEmail, email))
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return doc, nil
}

// UpdateSelf は本人によるユーザー情報の更新。
// role・email・_idは本人が変更できないため、更新内容から取り除く。
func (s *Service) UpdateSelf(ctx context.Context, email string, fields store.Document) (*store.UpdateResult, error) {
	set := fields.WithoutID()
	delete(set, model.FieldRole)
	delete(set, model.FieldEmail)

	res, err := s.users.UpdateOne(ctx, store.Eq(model.FieldEmail, email), set)
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return res, nil
}

// UpdateRole は管理者によるロール・ステータスの変更。
// role・status以外のフィールドは無視する。roleは定義済みの値のみ受け付ける。
func (s *Service) UpdateRole(ctx context.Context, id string, fields store.Document) (*store.UpdateResult, error) {
	set := store.Document{}
	if v, ok := fields[model.FieldRole]; ok {
		role, _ := v.(string)
		if !model.Role(role).Valid() {
			return nil, model.NewInvalidRoleError(fmt.Sprint(v))
		}
		set[model.FieldRole] = role
	}
	if v, ok := fields[model.FieldStatus]; ok {
		set[model.FieldStatus] = v
	}
	if len(set) == 0 {
		return nil, model.NewInvalidRequestError("role or status is required")
	}

	res, err := s.users.UpdateOne(ctx, store.ByID(id), set)
	if err != nil {
		return nil, fmt.Errorf("failed to update user role: %w", err)
	}
	if res.ModifiedCount > 0 {
		slog.Info("user role updated",
			slog.String("user_id", id),
			slog.Any("role", set[model.FieldRole]),
		)
	}
	return res, nil
}
