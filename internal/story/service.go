// Package story は観光客の旅行記を扱う。
// 本文（description）は許可リストでサニタイズし、一覧表示用の抜粋を保存時に作る。
package story

import (
	"context"
	"fmt"

	"github.com/hitoshi/touristguide/internal/model"
	"github.com/hitoshi/touristguide/internal/security"
	"github.com/hitoshi/touristguide/internal/store"
)

// Service は旅行記のサービス層。
type Service struct {
	stories   store.Collection
	sanitizer security.Sanitizer
}

// NewService はServiceを生成する。
func NewService(stories store.Collection, sanitizer security.Sanitizer) *Service {
	return &Service{stories: stories, sanitizer: sanitizer}
}

func emailFilter(email string) store.Filter {
	if email == "" {
		return store.Filter{}
	}
	return store.Eq(model.FieldTouristEmail, email)
}

// List は旅行記を返す。emailが空でなければ投稿者（touristEmail）で絞り込む。
func (s *Service) List(ctx context.Context, email string, limit int64) ([]store.Document, error) {
	docs, err := s.stories.Find(ctx, store.Query{Filter: emailFilter(email), Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("failed to list stories: %w", err)
	}
	return docs, nil
}

// Get はIDで旅行記を取得する。存在しない場合はnil。
func (s *Service) Get(ctx context.Context, id string) (store.Document, error) {
	doc, err := s.stories.FindOne(ctx, store.ByID(id))
	if err != nil {
		return nil, fmt.Errorf("failed to get story: %w", err)
	}
	return doc, nil
}

// Create は旅行記を登録する。
func (s *Service) Create(ctx context.Context, doc store.Document) (*store.InsertResult, error) {
	doc = doc.WithoutID()
	if desc, ok := doc[model.FieldDescription].(string); ok {
		clean := s.sanitizer.Sanitize(desc)
		doc[model.FieldDescription] = clean
		doc[model.FieldExcerpt] = security.Excerpt(clean, security.DefaultExcerptLength)
	}

	res, err := s.stories.InsertOne(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("failed to create story: %w", err)
	}
	return res, nil
}

// Count は旅行記の件数を返す。
func (s *Service) Count(ctx context.Context, email string) (int64, error) {
	n, err := s.stories.Count(ctx, emailFilter(email))
	if err != nil {
		return 0, fmt.Errorf("failed to count stories: %w", err)
	}
	return n, nil
}
