package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"pdfshelf/internal/model"
)

// JobHandler processes one enrichment job. A non-nil error asks for a retry.
type JobHandler interface {
	HandleJob(ctx context.Context, job model.EnrichmentJob) error
}

// EnrichmentWorker consumes enrichment jobs with manual acknowledgement.
// A failed job is requeued once; a failed redelivery is dropped.
type EnrichmentWorker struct {
	conn      *amqp.Connection
	handler   JobHandler
	queueName string
	workers   int
	prefetch  int
	logger    logrus.FieldLogger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewEnrichmentWorker(conn *amqp.Connection, handler JobHandler, queueName string, workers, prefetch int, logger logrus.FieldLogger) *EnrichmentWorker {
	if workers <= 0 {
		workers = 1
	}
	if prefetch < workers {
		prefetch = workers
	}
	return &EnrichmentWorker{
		conn:      conn,
		handler:   handler,
		queueName: queueName,
		workers:   workers,
		prefetch:  prefetch,
		logger:    logger,
	}
}

func (w *EnrichmentWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	if _, err := ch.QueueDeclare(w.queueName, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("declare worker queue failed: %w", err)
	}
	if err := ch.Qos(w.prefetch, 0, false); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("set worker prefetch failed: %w", err)
	}

	deliveries, err := ch.Consume(w.queueName, "", false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	var consumers sync.WaitGroup
	for i := 0; i < w.workers; i++ {
		consumers.Add(1)
		go func() {
			defer consumers.Done()
			w.consume(workerCtx, deliveries)
		}()
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		consumers.Wait()
		_ = ch.Close()
	}()

	w.logger.WithFields(logrus.Fields{"queue": w.queueName, "workers": w.workers}).Info("enrichment worker started")
	return nil
}

func (w *EnrichmentWorker) consume(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			w.handle(ctx, d)
		}
	}
}

func (w *EnrichmentWorker) handle(ctx context.Context, d amqp.Delivery) {
	var job model.EnrichmentJob
	if err := json.Unmarshal(d.Body, &job); err != nil {
		w.logger.WithError(err).Warn("worker decode job failed")
		_ = d.Nack(false, false)
		return
	}

	log := w.logger.WithFields(logrus.Fields{
		"job_kind":    job.Kind,
		"document_id": job.DocumentID,
		"user_id":     job.UserID,
	})
	if err := w.handler.HandleJob(ctx, job); err != nil {
		requeue := !d.Redelivered && ctx.Err() == nil
		log.WithError(err).WithField("requeue", requeue).Warn("worker handle job failed")
		_ = d.Nack(false, requeue)
		return
	}
	_ = d.Ack(false)
}

func (w *EnrichmentWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
