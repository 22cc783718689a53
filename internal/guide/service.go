// Package guide はツアーガイドのプロフィールとレビューを扱う。
package guide

import (
	"context"
	"errors"
	"fmt"

	"github.com/hitoshi/touristguide/internal/events"
	"github.com/hitoshi/touristguide/internal/model"
	"github.com/hitoshi/touristguide/internal/security"
	"github.com/hitoshi/touristguide/internal/store"
)

// EventEmitter はドメインイベントを発行する。events.Emitterが実装する。
type EventEmitter interface {
	Emit(ctx context.Context, eventType, actor string, data map[string]any)
}

// Service はツアーガイドのサービス層。
type Service struct {
	guides    store.Collection
	sanitizer security.Sanitizer
	events    EventEmitter
}

// NewService はServiceを生成する。
func NewService(guides store.Collection, sanitizer security.Sanitizer, emitter EventEmitter) *Service {
	return &Service{
		guides:    guides,
		sanitizer: sanitizer,
		events:    emitter,
	}
}

// List はガイド一覧を返す。limitが0以下の場合は全件。
func (s *Service) List(ctx context.Context, limit int64) ([]store.Document, error) {
	docs, err := s.guides.Find(ctx, store.Query{Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("failed to list tour guides: %w", err)
	}
	return docs, nil
}

// Get はIDでガイドを取得する。存在しない場合はnil。
func (s *Service) Get(ctx context.Context, id string) (store.Document, error) {
	doc, err := s.guides.FindOne(ctx, store.ByID(id))
	if err != nil {
		return nil, fmt.Errorf("failed to get tour guide: %w", err)
	}
	return doc, nil
}

// Create はガイドのプロフィールを登録する。
func (s *Service) Create(ctx context.Context, doc store.Document) (*store.InsertResult, error) {
	doc = doc.WithoutID()
	if _, ok := doc[model.FieldReviews]; !ok {
		doc[model.FieldReviews] = []any{}
	}

	res, err := s.guides.InsertOne(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("failed to create tour guide: %w", err)
	}
	return res, nil
}

// AddReview はガイドにレビューを追加する。同じuserNameのレビューが既にある場合は
// store.ErrDuplicateを返す。判定と追加はストアの条件付き更新で一度に行う。
// commentはタグを除去したプレーンテキストとして保存する。
func (s *Service) AddReview(ctx context.Context, id, actor string, review store.Document) (*store.UpdateResult, error) {
	userName := review.String(model.FieldUserName)
	if userName == "" {
		return nil, model.NewInvalidRequestError("userName is required")
	}

	review = review.WithoutID()
	if comment, ok := review[model.FieldComment].(string); ok {
		review[model.FieldComment] = s.sanitizer.Sanitize(comment)
	}

	res, err := s.guides.PushUnique(ctx, id, model.FieldReviews, model.FieldUserName, review)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to add review: %w", err)
	}

	if res.ModifiedCount > 0 {
		s.events.Emit(ctx, events.TypeReviewAdded, actor, map[string]any{
			"tourGuideId": id,
			"userName":    userName,
		})
	}
	return res, nil
}
