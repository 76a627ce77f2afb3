package notifier

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/mmeshcher/bidmarket-system/internal/model"
)

const (
	dispatchInterval = 5 * time.Second
	batchSize        = 20
	maxAttempts      = 5
)

// Queue описывает доступ к очереди уведомлений в хранилище.
type Queue interface {
	PendingNotifications(ctx context.Context, limit int) ([]model.Notification, error)
	MarkNotificationSent(ctx context.Context, id int64) error
	MarkNotificationFailed(ctx context.Context, id int64, maxAttempts int32) error
}

// Sender описывает доставку одного письма.
type Sender interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

// Dispatcher периодически забирает ожидающие уведомления из очереди
// и доставляет их через шлюз.
type Dispatcher struct {
	queue     Queue
	sender    Sender
	logger    *zap.Logger
	retryBase time.Duration
}

// NewDispatcher создаёт новый диспетчер уведомлений.
func NewDispatcher(queue Queue, sender Sender, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		queue:     queue,
		sender:    sender,
		logger:    logger,
		retryBase: 1 * time.Second,
	}
}

// Run запускает цикл доставки уведомлений до отмены контекста.
func (d *Dispatcher) Run(ctx context.Context) {
	if d.sender == nil {
		return
	}

	ticker := time.NewTicker(dispatchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.processBatch(ctx)
		}
	}
}

func (d *Dispatcher) processBatch(ctx context.Context) {
	pending, err := d.queue.PendingNotifications(ctx, batchSize)
	if err != nil {
		d.logger.Error("failed to load pending notifications", zap.Error(err))
		return
	}

	for _, n := range pending {
		if err := d.deliver(ctx, n); err != nil {
			d.logger.Warn("failed to deliver notification",
				zap.Int64("id", n.ID), zap.String("key", n.Key), zap.Error(err))
			if err := d.queue.MarkNotificationFailed(ctx, n.ID, maxAttempts); err != nil {
				d.logger.Error("failed to mark notification failed",
					zap.Int64("id", n.ID), zap.Error(err))
			}
			continue
		}

		if err := d.queue.MarkNotificationSent(ctx, n.ID); err != nil {
			d.logger.Error("failed to mark notification sent",
				zap.Int64("id", n.ID), zap.Error(err))
		}
	}
}

// deliver доставляет одно письмо с экспоненциальным backoff поверх повторов транспорта.
func (d *Dispatcher) deliver(ctx context.Context, n model.Notification) error {
	backoff := retry.WithMaxRetries(2, retry.NewExponential(d.retryBase))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := d.sender.Send(ctx, n.Recipient, n.Subject, n.Body); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}
