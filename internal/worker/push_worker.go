package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"candypic/internal/config"
	"candypic/internal/domain"
	"candypic/internal/events"
	"candypic/internal/models"
	"candypic/internal/push"

	"github.com/rs/zerolog"
)

var ErrStopped = errors.New("push worker stopped")

const enqueueTimeout = 5 * time.Second

// PushWorker runs push jobs off the request path so chat flows never wait on delivery.
type PushWorker struct {
	dispatcher domain.PushDispatcher
	retry      RetryPolicy
	workers    int
	timeout    time.Duration
	link       string
	logger     *zerolog.Logger

	queue   chan models.PushJob
	mu      sync.RWMutex
	stopped bool
	pending sync.WaitGroup
	running sync.WaitGroup
}

func NewPushWorker(dispatcher domain.PushDispatcher, cfg config.PushConfig, retry RetryPolicy, logger *zerolog.Logger) *PushWorker {
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 3
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 500 * time.Millisecond
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = 10 * time.Second
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	size := cfg.QueueSize
	if size < 1 {
		size = 1
	}

	return &PushWorker{
		dispatcher: dispatcher,
		retry:      retry,
		workers:    workers,
		timeout:    cfg.Timeout,
		link:       cfg.Link,
		logger:     logger,
		queue:      make(chan models.PushJob, size),
	}
}

// Start launches the workers. They exit once Stop closes the queue and it drains.
func (w *PushWorker) Start() {
	w.logger.Info().Int("workers", w.workers).Msg("Push worker started")
	for i := 0; i < w.workers; i++ {
		w.running.Add(1)
		go func() {
			defer w.running.Done()
			for job := range w.queue {
				w.process(job)
				w.pending.Done()
			}
		}()
	}
}

// Enqueue blocks while the queue is full, until ctx is done.
func (w *PushWorker) Enqueue(ctx context.Context, job models.PushJob) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return ErrStopped
	}

	w.pending.Add(1)
	select {
	case w.queue <- job:
		return nil
	case <-ctx.Done():
		w.pending.Done()
		return fmt.Errorf("enqueue push for %s: %w", models.NormalizePhone(job.Phone), ctx.Err())
	}
}

// Wait blocks until every accepted job has been processed.
func (w *PushWorker) Wait() {
	w.pending.Wait()
}

// Stop refuses new jobs, drains the queue and waits for the workers.
func (w *PushWorker) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	close(w.queue)
	w.mu.Unlock()

	w.running.Wait()
	w.logger.Info().Msg("Push worker stopped")
}

func (w *PushWorker) process(job models.PushJob) {
	for attempt := 1; ; attempt++ {
		report, err := w.notify(job)
		if err == nil {
			w.logger.Info().
				Str("phone_key", report.PhoneKey).
				Int64("booking_id", job.Message.BookingID).
				Bool("queued", report.Queued).
				Int("sent", report.Sent()).
				Int("failed", report.Failed()).
				Msg("Push job done")
			return
		}
		if errors.Is(err, push.ErrInvalidPhone) || attempt >= w.retry.MaxRetries {
			w.logger.Error().Err(err).
				Int64("booking_id", job.Message.BookingID).
				Int("attempt", attempt).
				Msg("Push job failed")
			return
		}
		delay := w.retry.NextDelay(attempt)
		w.logger.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", delay).Msg("Push job retry")
		time.Sleep(delay)
	}
}

func (w *PushWorker) notify(job models.PushJob) (*models.DeliveryReport, error) {
	ctx := context.Background()
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}
	return w.dispatcher.Notify(ctx, job.Phone, job.Message)
}

// SubscribeAssignments queues an assignment push for every assignee added with a phone.
func (w *PushWorker) SubscribeAssignments(bus *events.EventBus) {
	bus.Subscribe(events.EventAssigneeAdded, func(event *events.Event) error {
		var payload events.AssignmentPayload
		if err := event.Decode(&payload); err != nil {
			return fmt.Errorf("decode assignment payload: %w", err)
		}
		if payload.Phone == "" {
			return nil
		}

		job, err := AssignmentJob(payload, w.link)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), enqueueTimeout)
		defer cancel()
		return w.Enqueue(ctx, job)
	})
}

// AssignmentJob builds the push job for a new assignee.
func AssignmentJob(payload events.AssignmentPayload, link string) (models.PushJob, error) {
	start, err := models.ParseDay(payload.Date)
	if err != nil {
		return models.PushJob{}, fmt.Errorf("assignment date: %w", err)
	}
	booking := &models.Booking{
		ID:          payload.BookingID,
		ClientName:  payload.ClientName,
		BookingDate: start,
		EventType:   payload.EventType,
	}
	if payload.EndDate != "" {
		end, err := models.ParseDay(payload.EndDate)
		if err != nil {
			return models.PushJob{}, fmt.Errorf("assignment end date: %w", err)
		}
		booking.BookingEndDate = &end
	}

	return models.PushJob{
		Phone:   payload.Phone,
		Message: models.AssignmentMessage(booking, link),
	}, nil
}
