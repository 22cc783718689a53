package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// channel はamqp.Channelのうち発行に必要な操作。
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	IsClosed() bool
	Close() error
}

// connection はamqp.Connectionのうち生存確認と切断に必要な操作。
type connection interface {
	IsClosed() bool
	Close() error
}

// dialFunc はブローカーへ接続し、exchangeを宣言済みのチャネルを返す。
type dialFunc func(url, exchange string) (connection, channel, error)

// AMQPPublisher はtopic exchangeへJSONでイベントを発行する。
// amqp.Channelは並行利用できないため、発行はミューテックスで直列化する。
// ブローカーの再起動などで接続かチャネルが閉じていれば、次の発行時に再接続する。
type AMQPPublisher struct {
	mu       sync.Mutex
	url      string
	exchange string
	dial     dialFunc
	conn     connection
	ch       channel
}

// NewAMQPPublisher はブローカーへ接続し、durableなtopic exchangeを宣言する。
func NewAMQPPublisher(url, exchange string) (*AMQPPublisher, error) {
	p := &AMQPPublisher{url: url, exchange: exchange, dial: dialAMQP}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.connectLocked(); err != nil {
		return nil, err
	}
	return p, nil
}

func dialAMQP(url, exchange string) (connection, channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, fmt.Errorf("declare exchange: %w", err)
	}

	closed := conn.NotifyClose(make(chan *amqp.Error, 1))
	go func() {
		if err, ok := <-closed; ok && err != nil {
			slog.Warn("rabbitmq connection closed",
				slog.Int("code", err.Code),
				slog.String("reason", err.Reason),
			)
		}
	}()

	return conn, ch, nil
}

// Publish はイベント種別をルーティングキーとして発行する。
// 閉じた接続への発行は一度だけ再接続してやり直す。
func (p *AMQPPublisher) Publish(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.openLocked() {
		if err := p.connectLocked(); err != nil {
			return fmt.Errorf("reconnect rabbitmq: %w", err)
		}
		slog.Info("reconnected to rabbitmq", slog.String("exchange", p.exchange))
	}

	err = p.publishLocked(ctx, e, body)
	if errors.Is(err, amqp.ErrClosed) {
		if rerr := p.connectLocked(); rerr != nil {
			return fmt.Errorf("reconnect rabbitmq: %w", rerr)
		}
		err = p.publishLocked(ctx, e, body)
	}
	if err != nil {
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}
	return nil
}

func (p *AMQPPublisher) publishLocked(ctx context.Context, e Event, body []byte) error {
	return p.ch.PublishWithContext(ctx, p.exchange, e.Type, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    e.ID,
		Timestamp:    e.OccurredAt,
		Type:         e.Type,
		Body:         body,
	})
}

// openLocked は接続とチャネルがどちらも開いているかを返す。
func (p *AMQPPublisher) openLocked() bool {
	if p.ch == nil || p.ch.IsClosed() {
		return false
	}
	return p.conn == nil || !p.conn.IsClosed()
}

// connectLocked は既存の接続を閉じてから接続し直す。
func (p *AMQPPublisher) connectLocked() error {
	_ = p.closeLocked()
	if p.dial == nil {
		return errors.New("no dialer configured")
	}
	conn, ch, err := p.dial(p.url, p.exchange)
	if err != nil {
		return err
	}
	p.conn, p.ch = conn, ch
	return nil
}

func (p *AMQPPublisher) closeLocked() error {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		err := p.conn.Close()
		p.conn = nil
		return err
	}
	return nil
}

// Close はチャネルと接続を閉じる。
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeLocked()
}

var (
	_ Publisher = (*AMQPPublisher)(nil)
	_ Publisher = NopPublisher{}
)
