package bot

import (
	"context"
	"time"

	"candypic/internal/conversation"
	"candypic/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	b.log(ctx).Info().Str("command", msg.Command()).Int64("chat_id", chatID).Int64("user_id", msg.From.ID).Msg("Command")

	switch msg.Command() {
	case "start", "help":
		b.sendMarkdown(ctx, chatID, helpText)
	case "newbooking":
		b.startWizard(ctx, msg)
	case "upcoming":
		b.handleUpcoming(ctx, chatID)
	case "cancel":
		b.handleCancel(ctx, msg)
	case "export":
		b.handleExport(ctx, chatID)
	}
}

func (b *Bot) today() models.Day {
	return models.DayOf(time.Now().In(b.config.Location()))
}

func (b *Bot) handleUpcoming(ctx context.Context, chatID int64) {
	bookings, err := b.bookingService.Upcoming(ctx, b.today(), b.config.Bot.UpcomingLimit)
	if err != nil {
		b.log(ctx).Error().Err(err).Msg("Failed to list upcoming bookings")
		b.send(ctx, chatID, errorMessage(err))
		return
	}
	b.sendMarkdown(ctx, chatID, upcomingList(bookings))
}

func (b *Bot) handleCancel(ctx context.Context, msg *tgbotapi.Message) {
	key := conversation.Key{ChatID: msg.Chat.ID, UserID: msg.From.ID}
	state, err := b.stateService.GetState(ctx, key)
	if err == nil && state != nil {
		b.clearKeyboard(ctx, key.ChatID, state.PromptMessageID)
	}
	if err := b.stateService.ClearState(ctx, key); err != nil {
		b.send(ctx, key.ChatID, errorMessage(err))
		return
	}
	b.send(ctx, key.ChatID, "👌 Cancelled.")
}
