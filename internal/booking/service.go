// Package booking はツアー予約を扱う。
//
// 予約は(packageName, touristEmail)で重複を判定し、新規予約は"In Review"で作成される。
// 担当ガイド（guideName）ごとの一覧とステータス更新もここで扱う。
package booking

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

// Service は予約のサービス層。
type Service struct {
	bookings store.Collection
	events   EventEmitter
}

// NewService はServiceを生成する。
func NewService(bookings store.Collection, emitter EventEmitter) *Service {
	return &Service{bookings: bookings, events: emitter}
}

func (s *Service) find(ctx context.Context, f store.Filter, skip, limit int64) ([]store.Document, error) {
	docs, err := s.bookings.Find(ctx, store.Query{Filter: f, Skip: skip, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return docs, nil
}

func (s *Service) count(ctx context.Context, f store.Filter) (int64, error) {
	n, err := s.bookings.Count(ctx, f)
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return n, nil
}

// ListAll は全予約を返す（管理者用）。
func (s *Service) ListAll(ctx context.Context, skip, limit int64) ([]store.Document, error) {
	return s.find(ctx, store.Filter{}, skip, limit)
}

// CountAll は全予約数を返す。
func (s *Service) CountAll(ctx context.Context) (int64, error) {
	return s.count(ctx, store.Filter{})
}

// ListByTourist は観光客本人の予約を返す。
func (s *Service) ListByTourist(ctx context.Context, email string, skip, limit int64) ([]store.Document, error) {
	return s.find(ctx, store.Eq(model.FieldTouristEmail, email), skip, limit)
}

// CountByTourist は観光客本人の予約数を返す。
func (s *Service) CountByTourist(ctx context.Context, email string) (int64, error) {
	return s.count(ctx, store.Eq(model.FieldTouristEmail, email))
}

// ListAssigned はガイド名で担当予約を返す。
func (s *Service) ListAssigned(ctx context.Context, guideName string, skip, limit int64) ([]store.Document, error) {
	return s.find(ctx, store.Eq(model.FieldGuideName, guideName), skip, limit)
}

// CountAssigned はガイドの担当予約数を返す。
func (s *Service) CountAssigned(ctx context.Context, guideName string) (int64, error) {
	return s.count(ctx, store.Eq(model.FieldGuideName, guideName))
}

// Add は予約を作成する。statusが未指定の場合は"In Review"とする。
// 同じ(packageName, touristEmail)の予約がある場合はstore.ErrDuplicate。
func (s *Service) Add(ctx context.Context, actor string, doc store.Document) (*store.InsertResult, error) {
	packageName := doc.String(model.FieldPackageName)
	email := doc.String(model.FieldTouristEmail)
	if packageName == "" || email == "" {
		return nil, model.NewInvalidRequestError("packageName and touristEmail are required")
	}

	doc = doc.WithoutID()
	if doc.String(model.FieldStatus) == "" {
		doc[model.FieldStatus] = model.BookingStatusInReview
	}

	res, err := s.bookings.InsertOne(ctx, doc)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to add booking: %w", err)
	}

	s.events.Emit(ctx, events.TypeBookingCreated, actor, map[string]any{
		"bookingId":    res.InsertedID,
		"packageName":  packageName,
		"touristEmail": email,
		"guideName":    doc[model.FieldGuideName],
	})
	return res, nil
}

// Delete はIDで予約を削除する。
func (s *Service) Delete(ctx context.Context, id string) (*store.DeleteResult, error) {
	res, err := s.bookings.DeleteByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to delete booking: %w", err)
	}
	return res, nil
}

// UpdateStatus は予約のフィールド（主にstatus）を上書きする。
// 実際に変更された場合のみイベントを発行する。
func (s *Service) UpdateStatus(ctx context.Context, id string, fields store.Document) (*store.UpdateResult, error) {
	res, err := s.bookings.UpdateOne(ctx, store.ByID(id), fields.WithoutID())
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update booking status: %w", err)
	}

	if res.ModifiedCount > 0 {
		s.events.Emit(ctx, events.TypeBookingStatusChanged, "", map[string]any{
			"bookingId": id,
			"status":    fields[model.FieldStatus],
		})
	}
	return res, nil
}
