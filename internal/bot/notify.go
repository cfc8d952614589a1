package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"candypic/internal/models"
)

// pushEnqueueTimeout bounds how long a webhook waits for room in the push queue.
const pushEnqueueTimeout = 5 * time.Second

var ErrIncompleteRecord = errors.New("record has no id or date")

// NotifyNewBooking posts an enquiry card for a booking inserted outside the chat.
// Pending bookings get Approve/Reject buttons.
func (b *Bot) NotifyNewBooking(ctx context.Context, record *models.Booking) error {
	if record == nil || record.ID == 0 || record.BookingDate.IsZero() {
		b.log(ctx).Warn().Msg("Notify payload without id or date, ignored")
		return ErrIncompleteRecord
	}
	if record.Status == "" {
		record.Status = models.StatusPending
	}

	clash, err := b.bookingService.FindClash(ctx, record)
	if err != nil {
		b.log(ctx).Warn().Err(err).Int64("booking_id", record.ID).Msg("Clash check failed")
	}

	chatID := b.config.Telegram.ChatID
	text := bookingCard(record, clash)
	if record.Status == models.StatusPending {
		_, err = b.tgService.SendWithInlineKeyboard(chatID, text, decisionKeyboard(record.ID))
	} else {
		_, err = b.tgService.SendMarkdown(chatID, text)
	}
	if err != nil {
		return fmt.Errorf("send enquiry card for booking %d: %w", record.ID, err)
	}

	b.log(ctx).Info().
		Int64("booking_id", record.ID).
		Str("status", string(record.Status)).
		Bool("clash", clash != nil).
		Msg("Enquiry card posted")
	return nil
}

// HandleBookingUpdate pushes to phones newly added to a booking and warns
// when a confirmed booking moves onto a taken date. Echoes of this service's
// own writes are skipped.
func (b *Bot) HandleBookingUpdate(ctx context.Context, record, old *models.Booking) error {
	if record == nil || record.ID == 0 {
		b.log(ctx).Warn().Msg("Booking update without id, ignored")
		return ErrIncompleteRecord
	}
	if isOwnWrite(record, old) {
		b.log(ctx).Debug().Int64("booking_id", record.ID).Msg("Own write echoed back, skipped")
		return nil
	}

	var previous models.PhoneList
	if old != nil {
		previous = old.AssignedPhones
	}
	added := record.AssignedPhones.Missing(previous)
	b.queueAssignmentPushes(ctx, record, added)

	dateChanged := old != nil && !old.BookingDate.IsZero() && !old.BookingDate.Equal(record.BookingDate.Time)
	if dateChanged && record.Status == models.StatusConfirmed {
		clash, err := b.bookingService.FindClash(ctx, record)
		if err != nil {
			b.log(ctx).Warn().Err(err).Int64("booking_id", record.ID).Msg("Clash check failed")
		} else if clash != nil {
			text := clashWarning(clash) + fmt.Sprintf("\n📅 *%s* moved to %s", esc(record.ClientName), record.DateRange())
			b.sendMarkdown(ctx, b.config.Telegram.ChatID, text)
		}
	}

	b.log(ctx).Info().
		Int64("booking_id", record.ID).
		Int("new_phones", len(added)).
		Bool("date_changed", dateChanged).
		Msg("Booking update handled")
	return nil
}

// isOwnWrite reports whether the change itself came from this service. Every
// bot write stamps updated_by and bumps version; other writers leave version
// alone, so a row still stamped from an earlier bot write is not an echo.
func isOwnWrite(record, old *models.Booking) bool {
	if record.UpdatedBy != models.UpdatedByBot {
		return false
	}
	if old == nil {
		return true
	}
	return record.Version > old.Version
}

// HandleDeviceRegistration stores the device and flushes anything queued for its phone.
func (b *Bot) HandleDeviceRegistration(ctx context.Context, device *models.Device) (*models.DeliveryReport, error) {
	if device == nil {
		return nil, errors.New("device record is empty")
	}
	report, err := b.dispatcher.RegisterDevice(ctx, device)
	if err != nil {
		return nil, err
	}
	b.log(ctx).Info().
		Str("phone_key", report.PhoneKey).
		Int("flushed", report.Flushed).
		Int("sent", report.Sent()).
		Int("failed", report.Failed()).
		Msg("Device registered")
	return report, nil
}

// SendDebug checks the chat transport end to end.
func (b *Bot) SendDebug(ctx context.Context) error {
	_, err := b.tgService.SendMessage(b.config.Telegram.ChatID, "🔧 Debug: webhook and chat transport are working.")
	if err != nil {
		return fmt.Errorf("send debug message: %w", err)
	}
	b.log(ctx).Info().Msg("Debug message sent")
	return nil
}

// queueAssignmentPushes hands one assignment push per phone to the push worker.
func (b *Bot) queueAssignmentPushes(ctx context.Context, booking *models.Booking, phones models.PhoneList) {
	if b.pushQueue == nil || len(phones) == 0 {
		return
	}
	msg := models.AssignmentMessage(booking, b.config.Push.Link)
	for _, phone := range phones {
		if models.NormalizePhone(phone) == "" {
			continue
		}
		enqueueCtx, cancel := context.WithTimeout(ctx, pushEnqueueTimeout)
		err := b.pushQueue.Enqueue(enqueueCtx, models.PushJob{Phone: phone, Message: msg})
		cancel()
		if err != nil {
			b.log(ctx).Error().Err(err).Int64("booking_id", booking.ID).Msg("Failed to queue assignment push")
		}
	}
}
