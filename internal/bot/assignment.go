package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"candypic/internal/conversation"
	"candypic/internal/database"
	"candypic/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func assignPromptText(booking *models.Booking) string {
	return fmt.Sprintf(
		"👥 *Assign team for %s* (%s)\nCurrently: %s\n\nReply to this message with a contact or a name. Tap Finish when done.",
		esc(booking.ClientName), booking.DateRange(), assigneesText(booking),
	)
}

func assignKeyboard(id int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("✅ Finish", cbAssignDone+strconv.FormatInt(id, 10)),
	))
}

// startAssignment opens the assignment loop for the operator who approved booking.
func (b *Bot) startAssignment(ctx context.Context, chatID, userID int64, booking *models.Booking) {
	prompt, err := b.tgService.SendWithInlineKeyboard(chatID, assignPromptText(booking), assignKeyboard(booking.ID))
	if err != nil {
		b.log(ctx).Error().Err(err).Int64("booking_id", booking.ID).Msg("Failed to send assignment prompt")
		return
	}

	b.saveState(ctx, &conversation.State{
		Key:             conversation.Key{ChatID: chatID, UserID: userID},
		Flow:            conversation.FlowAssign,
		Step:            conversation.StepCollecting,
		Fields:          conversation.Assignment{BookingID: booking.ID}.Fields(),
		PromptMessageID: prompt.MessageID,
	})
}

func (b *Bot) handleAssignmentMessage(ctx context.Context, msg *tgbotapi.Message, state *conversation.State) {
	chatID := msg.Chat.ID
	assignment, err := conversation.AssignmentFrom(state)
	if err != nil {
		b.log(ctx).Warn().Err(err).Msg("Dropping unreadable assignment state")
		_ = b.stateService.ClearState(ctx, state.Key)
		return
	}

	name, phone := contactOrName(msg)
	if problem := validateName(name); problem != "" {
		b.send(ctx, chatID, problem)
		return
	}
	if conversation.HasReserved(phone) {
		b.send(ctx, chatID, "⚠️ That phone number contains characters that can't be stored.")
		return
	}

	change, err := b.bookingService.AddAssignee(ctx, assignment.BookingID, name, phone)
	switch {
	case errors.Is(err, database.ErrDuplicateAssignee):
		b.send(ctx, chatID, fmt.Sprintf("⚠️ %s is already assigned to this booking.", name))
		b.repromptAssignment(ctx, state, assignment, change.Booking)
		return
	case errors.Is(err, database.ErrBookingNotFound):
		_ = b.stateService.ClearState(ctx, state.Key)
		b.clearKeyboard(ctx, chatID, state.PromptMessageID)
		b.send(ctx, chatID, errorMessage(err))
		return
	case err != nil:
		b.log(ctx).Error().Err(err).Int64("booking_id", assignment.BookingID).Msg("Failed to add assignee")
		b.send(ctx, chatID, errorMessage(err))
		return
	}

	reply := "✅ Added " + name
	if models.NormalizePhone(change.Phone) != "" {
		reply += " (" + change.Phone + "), notification on its way"
	}
	b.send(ctx, chatID, reply)

	assignment.Added = append(assignment.Added, name)
	b.repromptAssignment(ctx, state, assignment, change.Booking)
}

// repromptAssignment moves the Finish button to a fresh prompt so the loop can continue.
func (b *Bot) repromptAssignment(
	ctx context.Context,
	state *conversation.State,
	assignment conversation.Assignment,
	booking *models.Booking,
) {
	chatID := state.Key.ChatID
	b.clearKeyboard(ctx, chatID, state.PromptMessageID)

	prompt, err := b.tgService.SendWithInlineKeyboard(chatID, assignPromptText(booking), assignKeyboard(booking.ID))
	if err != nil {
		b.log(ctx).Error().Err(err).Int64("booking_id", booking.ID).Msg("Failed to send assignment prompt")
		return
	}

	state.Fields = assignment.Fields()
	state.PromptMessageID = prompt.MessageID
	b.saveState(ctx, state)
}

func (b *Bot) handleAssignDone(ctx context.Context, cb *tgbotapi.CallbackQuery, idStr string) {
	state := b.callbackState(ctx, cb, conversation.FlowAssign)
	if state == nil {
		b.answer(ctx, cb.ID, "This prompt is no longer active.")
		return
	}

	assignment, err := conversation.AssignmentFrom(state)
	id, ok := parseID(idStr)
	if err != nil || !ok || id != assignment.BookingID {
		b.answer(ctx, cb.ID, "")
		return
	}

	chatID := cb.Message.Chat.ID
	if err := b.stateService.ClearState(ctx, state.Key); err != nil {
		b.log(ctx).Warn().Err(err).Msg("Failed to clear assignment state")
	}
	b.clearKeyboard(ctx, chatID, cb.Message.MessageID)
	b.answer(ctx, cb.ID, "Done")

	booking, err := b.bookingService.GetBooking(ctx, id)
	if err != nil {
		b.send(ctx, chatID, errorMessage(err))
		return
	}
	b.sendMarkdown(ctx, chatID, fmt.Sprintf(
		"🏁 *Assignment complete* for %s (%s)\n👥 Team: %s",
		esc(booking.ClientName), booking.DateRange(), assigneesText(booking),
	))
}

// contactOrName reads a shared contact, or falls back to the message text as a bare name.
func contactOrName(msg *tgbotapi.Message) (name, phone string) {
	if msg.Contact != nil {
		name = strings.TrimSpace(msg.Contact.FirstName + " " + msg.Contact.LastName)
		return name, strings.TrimSpace(msg.Contact.PhoneNumber)
	}
	return strings.TrimSpace(msg.Text), ""
}
