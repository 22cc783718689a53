// Package wishlist は観光客のウィッシュリストを扱う。
// (packageId, touristEmail)の組はストアの一意インデックスで重複を防ぐ。
package wishlist

import (
	"context"
	"errors"
	"fmt"

	"github.com/hitoshi/touristguide/internal/events"
	"github.com/hitoshi/touristguide/internal/model"
	"github.com/hitoshi/touristguide/internal/store"
)

// EventEmitter はドメインイベントを発行する。
type EventEmitter interface {
	Emit(ctx context.Context, eventType, actor string, data map[string]any)
}

// Service はウィッシュリストのサービス層。
type Service struct {
	items  store.Collection
	events EventEmitter
}

// NewService はServiceを生成する。
func NewService(items store.Collection, emitter EventEmitter) *Service {
	return &Service{items: items, events: emitter}
}

// List は全ユーザーのウィッシュリストを返す。
func (s *Service) List(ctx context.Context) ([]store.Document, error) {
	docs, err := s.items.Find(ctx, store.Query{})
	if err != nil {
		return nil, fmt.Errorf("failed to list wishlist: %w", err)
	}
	return docs, nil
}

// ListByEmail は観光客のウィッシュリストをskip/limitで返す。
func (s *Service) ListByEmail(ctx context.Context, email string, skip, limit int64) ([]store.Document, error) {
	docs, err := s.items.Find(ctx, store.Query{
		Filter: store.Eq(model.FieldTouristEmail, email),
		Skip:   skip,
		Limit:  limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list wishlist of %s: %w", email, err)
	}
	return docs, nil
}

// CountByEmail は観光客のウィッシュリスト件数を返す。
func (s *Service) CountByEmail(ctx context.Context, email string) (int64, error) {
	n, err := s.items.Count(ctx, store.Eq(model.FieldTouristEmail, email))
	if err != nil {
		return 0, fmt.Errorf("failed to count wishlist of %s: %w", email, err)
	}
	return n, nil
}

// Add はウィッシュリストに追加する。既に同じ組がある場合はstore.ErrDuplicate。
func (s *Service) Add(ctx context.Context, actor string, doc store.Document) (*store.InsertResult, error) {
	packageID := doc.String(model.FieldPackageID)
	email := doc.String(model.FieldTouristEmail)
	if packageID == "" || email == "" {
		return nil, model.NewInvalidRequestError("packageId and touristEmail are required")
	}

	res, err := s.items.InsertOne(ctx, doc.WithoutID())
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to add wishlist item: %w", err)
	}

	s.events.Emit(ctx, events.TypeWishlistAdded, actor, map[string]any{
		"wishlistId":   res.InsertedID,
		"packageId":    packageID,
		"touristEmail": email,
	})
	return res, nil
}

// Delete はIDでウィッシュリストの項目を削除する。
func (s *Service) Delete(ctx context.Context, id string) (*store.DeleteResult, error) {
	res, err := s.items.DeleteByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to delete wishlist item: %w", err)
	}
	return res, nil
}
