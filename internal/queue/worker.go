package queue

import (
	"context"
	"errors"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/curtail/internal/interfaces"
)

// WorkerPool drives a consumer against a queue with N polling goroutines.
// The validation workers run with Concurrency > 1; the result sink runs a
// pool of one so job-store writes stay funneled through a single writer.
type WorkerPool struct {
	name         string
	queue        interfaces.Queue
	consumer     interfaces.QueueConsumer
	concurrency  int
	pollInterval time.Duration
	logger       arbor.ILogger
	ctx          context.Context
	cancel       context.CancelFunc
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(name string, queue interfaces.Queue, consumer interfaces.QueueConsumer, concurrency int, pollInterval time.Duration, logger arbor.ILogger) *WorkerPool {
	if concurrency <= 0 {
		concurrency = 1
	}
	if pollInterval <= 0 {
		pollInterval = 250 * time.Millisecond
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		name:         name,
		queue:        queue,
		consumer:     consumer,
		concurrency:  concurrency,
		pollInterval: pollInterval,
		logger:       logger,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start starts the polling goroutines
func (wp *WorkerPool) Start() error {
	wp.logger.Info().
		Str("pool", wp.name).
		Int("concurrency", wp.concurrency).
		Msg("Starting worker pool")

	for i := 0; i < wp.concurrency; i++ {
		go wp.worker(i)
	}
	return nil
}

// Stop gracefully stops the worker pool
func (wp *WorkerPool) Stop() error {
	wp.logger.Info().Str("pool", wp.name).Msg("Stopping worker pool")
	wp.cancel()
	return nil
}

// worker is the main polling loop
func (wp *WorkerPool) worker(workerID int) {
	// Stagger worker starts to spread polling across the interval
	stagger := (wp.pollInterval / time.Duration(wp.concurrency)) * time.Duration(workerID)
	if stagger > 0 {
		time.Sleep(stagger)
	}

	wp.logger.Debug().
		Str("pool", wp.name).
		Int("worker_id", workerID).
		Msg("Worker started")

	ticker := time.NewTicker(wp.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-wp.ctx.Done():
			wp.logger.Debug().
				Str("pool", wp.name).
				Int("worker_id", workerID).
				Msg("Worker stopped")
			return

		case <-ticker.C:
			// Drain until empty so a burst does not wait a tick per message
			for wp.processOne(workerID) {
			}
		}
	}
}

// processOne receives and processes a single message. Returns true when a
// message was handled and the queue may hold more.
func (wp *WorkerPool) processOne(workerID int) bool {
	body, ack, err := wp.queue.Receive(wp.ctx)
	if err != nil {
		if !errors.Is(err, interfaces.ErrNoMessage) {
			wp.logger.Warn().
				Err(err).
				Str("pool", wp.name).
				Int("worker_id", workerID).
				Msg("Error receiving message")
		}
		return false
	}

	if err := wp.consumer.Handle(wp.ctx, body); err != nil {
		// Leave the message unacked: it redelivers after the visibility
		// timeout and the queue's max receive count caps poison loops.
		wp.logger.Error().
			Err(err).
			Str("pool", wp.name).
			Int("worker_id", workerID).
			Msg("Message handling failed, leaving for redelivery")
		return true
	}

	if err := ack(); err != nil {
		wp.logger.Warn().
			Err(err).
			Str("pool", wp.name).
			Msg("Failed to ack message after successful processing")
	}
	return true
}
