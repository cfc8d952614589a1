// Package push resolves phones to registered devices and delivers notifications,
// holding them as pending rows until a device exists.
package push

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"candypic/internal/config"
	"candypic/internal/domain"
	"candypic/internal/google"
	"candypic/internal/metrics"
	"candypic/internal/models"

	"github.com/rs/zerolog"
)

var ErrInvalidPhone = errors.New("phone has no digits")

// Store is the slice of the booking store the dispatcher needs.
type Store interface {
	UpsertDevice(ctx context.Context, d *models.Device) error
	DevicesByPhone(ctx context.Context, phoneKey string) ([]models.Device, error)
	CreatePendingNotification(ctx context.Context, n *models.PendingNotification) error
	PendingByPhone(ctx context.Context, phoneKey string) ([]models.PendingNotification, error)
	ClaimPendingNotification(ctx context.Context, id int64) (bool, error)
}

type Dispatcher struct {
	store       Store
	sender      domain.PushSender
	link        string
	maxParallel int
	logger      *zerolog.Logger
}

func NewDispatcher(store Store, sender domain.PushSender, cfg config.PushConfig, logger *zerolog.Logger) *Dispatcher {
	maxParallel := cfg.MaxParallel
	if maxParallel < 1 {
		maxParallel = 1
	}
	return &Dispatcher{
		store:       store,
		sender:      sender,
		link:        cfg.Link,
		maxParallel: maxParallel,
		logger:      logger,
	}
}

// Notify delivers msg to every device registered for phone. With no devices
// the message is stored as pending and the report is marked Queued.
func (d *Dispatcher) Notify(ctx context.Context, phone string, msg models.PushMessage) (*models.DeliveryReport, error) {
	key := models.NormalizePhone(phone)
	if key == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPhone, phone)
	}
	report := &models.DeliveryReport{Phone: phone, PhoneKey: key}

	devices, err := d.store.DevicesByPhone(ctx, key)
	if err != nil {
		return nil, err
	}

	if len(devices) == 0 {
		pending := &models.PendingNotification{
			Phone:     phone,
			Title:     msg.Title,
			Body:      msg.Body,
			BookingID: msg.BookingID,
		}
		if err := d.store.CreatePendingNotification(ctx, pending); err != nil {
			return nil, err
		}
		metrics.IncPendingQueued()
		d.logger.Info().
			Str("phone_key", key).
			Int64("booking_id", msg.BookingID).
			Int64("pending_id", pending.ID).
			Msg("No device registered, notification queued")

		report.Queued = true
		report.PendingID = pending.ID
		return report, nil
	}

	if msg.Link == "" {
		msg.Link = d.link
	}
	report.Results = d.deliver(ctx, devices, msg)
	return report, nil
}

// RegisterDevice stores the device and flushes pending notifications for its
// phone. Each pending row is claimed before sending so it goes out once.
func (d *Dispatcher) RegisterDevice(ctx context.Context, device *models.Device) (*models.DeliveryReport, error) {
	if err := d.store.UpsertDevice(ctx, device); err != nil {
		return nil, err
	}
	report := &models.DeliveryReport{Phone: device.Phone, PhoneKey: device.PhoneKey}

	pending, err := d.store.PendingByPhone(ctx, device.PhoneKey)
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return report, nil
	}

	devices, err := d.store.DevicesByPhone(ctx, device.PhoneKey)
	if err != nil {
		return nil, err
	}

	for _, n := range pending {
		claimed, err := d.store.ClaimPendingNotification(ctx, n.ID)
		if err != nil {
			return report, err
		}
		if !claimed {
			continue
		}
		metrics.IncPendingFlushed()
		report.Flushed++

		msg := models.PushMessage{Title: n.Title, Body: n.Body, Link: d.link, BookingID: n.BookingID}
		report.Results = append(report.Results, d.deliver(ctx, devices, msg)...)
	}

	d.logger.Info().
		Str("phone_key", device.PhoneKey).
		Int("flushed", report.Flushed).
		Int("sent", report.Sent()).
		Int("failed", report.Failed()).
		Msg("Pending notifications flushed")
	return report, nil
}

// deliver sends to every device with at most maxParallel sends in flight.
// Results keep the order of devices.
func (d *Dispatcher) deliver(ctx context.Context, devices []models.Device, msg models.PushMessage) []models.DeliveryResult {
	results := make([]models.DeliveryResult, len(devices))
	sem := make(chan struct{}, d.maxParallel)
	var wg sync.WaitGroup

	for i, device := range devices {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, token string) {
			defer wg.Done()
			defer func() { <-sem }()

			err := d.sender.Send(ctx, token, msg)
			results[i] = models.DeliveryResult{Token: token, Err: err}
			metrics.IncPush(err == nil)
			if err != nil {
				d.logger.Warn().Err(err).
					Int64("booking_id", msg.BookingID).
					Str("token_suffix", tokenSuffix(token)).
					Bool("unregistered", google.IsUnregistered(err)).
					Msg("Push delivery failed")
			}
		}(i, device.PushToken)
	}

	wg.Wait()
	return results
}

func tokenSuffix(token string) string {
	if len(token) <= 6 {
		return token
	}
	return token[len(token)-6:]
}

// LogSender stands in for FCM when push is disabled.
type LogSender struct {
	Logger *zerolog.Logger
}

func (s LogSender) Send(_ context.Context, token string, msg models.PushMessage) error {
	s.Logger.Info().
		Str("token_suffix", tokenSuffix(token)).
		Str("title", msg.Title).
		Str("body", msg.Body).
		Msg("Push disabled, message logged")
	return nil
}
