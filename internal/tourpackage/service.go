// Package tourpackage はツアーパッケージの検索と登録を扱う。
package tourpackage

import (
	"context"
	"fmt"

	"github.com/hitoshi/touristguide/internal/model"
	"github.com/hitoshi/touristguide/internal/store"
)

// Service はツアーパッケージのサービス層。
type Service struct {
	packages store.Collection
}

// NewService はServiceを生成する。
func NewService(packages store.Collection) *Service {
	return &Service{packages: packages}
}

func typeFilter(tourType string) store.Filter {
	if tourType == "" {
		return store.Filter{}
	}
	return store.Eq(model.FieldType, tourType)
}

// List はパッケージ一覧を返す。tourTypeが空でなければtypeの完全一致で絞り込む。
func (s *Service) List(ctx context.Context, tourType string, limit int64) ([]store.Document, error) {
	docs, err := s.packages.Find(ctx, store.Query{Filter: typeFilter(tourType), Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("failed to list packages: %w", err)
	}
	return docs, nil
}

// Get はIDでパッケージを取得する。存在しない場合はnil。
func (s *Service) Get(ctx context.Context, id string) (store.Document, error) {
	doc, err := s.packages.FindOne(ctx, store.ByID(id))
	if err != nil {
		return nil, fmt.Errorf("failed to get package: %w", err)
	}
	return doc, nil
}

// Create はパッケージを登録する。
func (s *Service) Create(ctx context.Context, doc store.Document) (*store.InsertResult, error) {
	res, err := s.packages.InsertOne(ctx, doc.WithoutID())
	if err != nil {
		return nil, fmt.Errorf("failed to create package: %w", err)
	}
	return res, nil
}

// Count はパッケージ数を返す。
func (s *Service) Count(ctx context.Context, tourType string) (int64, error) {
	n, err := s.packages.Count(ctx, typeFilter(tourType))
	if err != nil {
		return 0, fmt.Errorf("failed to count packages: %w", err)
	}
	return n, nil
}
