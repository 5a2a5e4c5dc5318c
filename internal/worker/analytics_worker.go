package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"bladi-assistant/internal/model"
	"bladi-assistant/internal/platform/rabbitmq"
)

const (
	consumerTag     = "analytics-worker"
	incrementBudget = 10 * time.Second
	retryDelay      = time.Second
)

var errMalformedEvent = errors.New("malformed turn event")

type AnalyticsStore interface {
	IncrementDaily(ctx context.Context, event model.TurnEvent) error
}

// acknowledger is the part of amqp.Delivery the worker settles through.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// AnalyticsWorker applies queued TurnEvents to the daily counters. Each
// delivery is acked only after its increment commits; store failures are
// requeued and only malformed payloads are dropped.
type AnalyticsWorker struct {
	conn       *amqp.Connection
	store      AnalyticsStore
	queueName  string
	logger     *slog.Logger
	retryDelay time.Duration

	ch     *amqp.Channel
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewAnalyticsWorker(conn *amqp.Connection, store AnalyticsStore, queueName string, logger *slog.Logger) *AnalyticsWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalyticsWorker{
		conn:       conn,
		store:      store,
		queueName:  queueName,
		logger:     logger.With("component", "analytics_worker", "queue", queueName),
		retryDelay: retryDelay,
	}
}

func (w *AnalyticsWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	ch, err := w.conn.Channel()
	if err != nil {
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	if _, err := rabbitmq.DeclareQueue(ch, w.queueName); err != nil {
		_ = ch.Close()
		return err
	}

	deliveries, err := ch.Consume(
		w.queueName,
		consumerTag,
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.ch = ch
	w.cancel = cancel

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		// Runs until Close cancels the consumer and the broker closes
		// deliveries, so an in-flight event is always settled first.
		for d := range deliveries {
			w.process(workerCtx, d.Body, d)
		}
	}()

	w.logger.Info("analytics worker started")
	return nil
}

// process applies one delivery and settles it.
func (w *AnalyticsWorker) process(ctx context.Context, body []byte, ack acknowledger) {
	incCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), incrementBudget)
	defer cancel()

	err := w.handle(incCtx, body)
	switch {
	case err == nil:
		_ = ack.Ack(false)
	case errors.Is(err, errMalformedEvent):
		w.logger.Error("dropping malformed turn event", "error", err)
		_ = ack.Nack(false, false)
	default:
		w.logger.Warn("apply turn event failed, requeueing", "error", err)
		if w.retryDelay > 0 {
			select {
			case <-time.After(w.retryDelay):
			case <-ctx.Done():
			}
		}
		_ = ack.Nack(false, true)
	}
}

func (w *AnalyticsWorker) handle(ctx context.Context, body []byte) error {
	var event model.TurnEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("%w: %v", errMalformedEvent, err)
	}
	if event.Date == "" {
		return fmt.Errorf("%w: no date", errMalformedEvent)
	}
	return w.store.IncrementDaily(ctx, event)
}

// Close stops consuming, waits for the in-flight event to settle, then
// releases the worker context. Unacked deliveries return to the queue.
func (w *AnalyticsWorker) Close() {
	if w.ch != nil {
		if err := w.ch.Cancel(consumerTag, false); err != nil {
			w.logger.Warn("cancel consumer failed, closing channel", "error", err)
			_ = w.ch.Close()
		}
	}
	w.wg.Wait()
	if w.cancel != nil {
		w.cancel()
	}
}
