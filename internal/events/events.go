// Package events はドメインイベントの発行を提供する。
//
// 予約の作成・ステータス変更、ウィッシュリスト追加、レビュー追加を
// AMQPのtopic exchangeへ発行する。発行の失敗はログに残すのみで、
// リクエスト自体は失敗させない。
package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// イベント種別。AMQPのルーティングキーとしても使う。
const (
	TypeBookingCreated       = "booking.created"
	TypeBookingStatusChanged = "booking.status_changed"
	TypeWishlistAdded        = "wishlist.added"
	TypeReviewAdded          = "review.added"
)

// Event は発行されるドメインイベント。
type Event struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	OccurredAt time.Time      `json:"occurredAt"`
	Actor      string         `json:"actor,omitempty"`
	Data       map[string]any `json:"data"`
}

// Publisher はイベントを外部へ送出する。
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// NopPublisher は何もしないPublisher。AMQP_URL未設定時に使う。
type NopPublisher struct{}

// Publish は何もしない。
func (NopPublisher) Publish(ctx context.Context, e Event) error { return nil }

// Close は何もしない。
func (NopPublisher) Close() error { return nil }

// Emitter はイベントを組み立てて発行し、失敗をログに残す。
type Emitter struct {
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
	timeout   time.Duration
}

// NewEmitter はEmitterを生成する。publisherがnilの場合はNopPublisherを使う。
func NewEmitter(publisher Publisher, logger *slog.Logger) *Emitter {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Emitter{
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
		timeout:   5 * time.Second,
	}
}

// Emit はイベントを発行する。エラーは返さない。
// リクエストのキャンセルに引きずられないよう、発行は独立したタイムアウトで行う。
func (e *Emitter) Emit(ctx context.Context, eventType, actor string, data map[string]any) {
	ev := Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: e.now().UTC(),
		Actor:      actor,
		Data:       data,
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
	defer cancel()

	if err := e.publisher.Publish(pubCtx, ev); err != nil {
		e.logger.Warn("failed to publish event",
			slog.String("event_id", ev.ID),
			slog.String("event_type", ev.Type),
			slog.String("error", err.Error()),
		)
		return
	}

	e.logger.Debug("event published",
		slog.String("event_id", ev.ID),
		slog.String("event_type", ev.Type),
	)
}
