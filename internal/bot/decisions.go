package bot

import (
	"context"
	"errors"
	"fmt"

	"candypic/internal/database"
	"candypic/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// handleDecision applies approve or reject from an enquiry card. Only the
// first decision on a pending booking wins; later presses see the outcome.
func (b *Bot) handleDecision(ctx context.Context, cb *tgbotapi.CallbackQuery, idStr string, approve bool) {
	id, ok := parseID(idStr)
	if !ok {
		b.answer(ctx, cb.ID, "")
		return
	}

	chatID, messageID := cb.Message.Chat.ID, cb.Message.MessageID

	var (
		booking *models.Booking
		err     error
	)
	if approve {
		booking, err = b.bookingService.Approve(ctx, id)
	} else {
		booking, err = b.bookingService.Reject(ctx, id)
	}

	switch {
	case errors.Is(err, database.ErrAlreadyDecided):
		text := "Already decided"
		if booking != nil {
			text = "Already " + string(booking.Status)
		}
		b.answer(ctx, cb.ID, text)
		b.clearKeyboard(ctx, chatID, messageID)
		return
	case errors.Is(err, database.ErrBookingNotFound):
		b.answer(ctx, cb.ID, "Booking not found")
		b.clearKeyboard(ctx, chatID, messageID)
		return
	case err != nil:
		b.log(ctx).Error().Err(err).Int64("booking_id", id).Bool("approve", approve).Msg("Decision failed")
		b.answer(ctx, cb.ID, "Failed")
		b.send(ctx, chatID, errorMessage(err))
		return
	}

	outcome := "❌ *Rejected* by " + esc(operatorName(cb.From))
	answerText := "Rejected"
	if approve {
		outcome = "✅ *Approved* by " + esc(operatorName(cb.From))
		answerText = "Approved"
	}

	clash, err := b.bookingService.FindClash(ctx, booking)
	if err != nil {
		b.log(ctx).Warn().Err(err).Int64("booking_id", id).Msg("Clash check failed")
	}

	text := fmt.Sprintf("%s\n\n%s", bookingCard(booking, clash), outcome)
	if _, err := b.tgService.EditMessage(chatID, messageID, text, nil); err != nil {
		b.log(ctx).Warn().Err(err).Int("message_id", messageID).Msg("Failed to update enquiry card")
	}
	b.answer(ctx, cb.ID, answerText)

	b.log(ctx).Info().
		Int64("booking_id", id).
		Str("status", string(booking.Status)).
		Int64("operator", cb.From.ID).
		Msg("Booking decided")

	if approve {
		b.startAssignment(ctx, chatID, cb.From.ID, booking)
	}
}

func operatorName(u *tgbotapi.User) string {
	if u == nil {
		return "someone"
	}
	if u.UserName != "" {
		return "@" + u.UserName
	}
	if u.FirstName != "" {
		return u.FirstName
	}
	return fmt.Sprintf("user %d", u.ID)
}
