// Package bot runs the chat side of the service: the booking wizard, the
// approve/reject flow, the assignment loop and the datastore webhook handlers.
//
// No flow keeps state in memory between updates. Everything needed to resume
// a flow is stored per (chat, operator) through the state manager.
package bot

import (
	"context"
	"strconv"
	"strings"
	"time"

	"candypic/internal/config"
	"candypic/internal/conversation"
	"candypic/internal/domain"
	"candypic/internal/logging"
	"candypic/internal/metrics"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

const updateTimeout = 30 * time.Second

const (
	cbApprove    = "approve_"
	cbReject     = "reject_"
	cbAssignDone = "assign_done_"
	cbWizardType = "wizard_type_"
	cbWizardTeam = "wizard_assignee_"
	cbWizardSkip = "wizard_assignee_skip"
	cbEndSame    = "wizard_end_same"
	cbEndDiff    = "wizard_end_diff"
)

type Bot struct {
	tgService      domain.TelegramService
	config         *config.Config
	stateService   domain.StateManager
	bookingService domain.BookingService
	dispatcher     domain.PushDispatcher
	pushQueue      domain.PushQueue
	logger         *zerolog.Logger
}

func NewBot(
	tgService domain.TelegramService,
	config *config.Config,
	stateService domain.StateManager,
	bookingService domain.BookingService,
	dispatcher domain.PushDispatcher,
	pushQueue domain.PushQueue,
	logger *zerolog.Logger,
) *Bot {
	return &Bot{
		tgService:      tgService,
		config:         config,
		stateService:   stateService,
		bookingService: bookingService,
		dispatcher:     dispatcher,
		pushQueue:      pushQueue,
		logger:         logger,
	}
}

// Start long-polls for updates until ctx is done. Used in polling mode; in
// webhook mode updates arrive through HandleUpdate instead.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.tgService.GetUpdatesChan(u)

	b.logger.Info().Str("username", b.tgService.GetSelf().UserName).Msg("Authorized on account")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info().Msg("Bot stopping...")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			updateCtx, cancel := context.WithTimeout(ctx, updateTimeout)
			updateCtx, _ = logging.WithRequest(updateCtx, b.logger, "chat")
			b.HandleUpdate(updateCtx, update)
			cancel()
		}
	}
}

// Stop stops receiving updates (best-effort).
func (b *Bot) Stop() {
	b.tgService.StopReceivingUpdates()
}

// HandleUpdate routes one chat update. Updates that are not part of a known
// flow are dropped without a reply.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	start := time.Now()
	defer func() { metrics.ObserveUpdate("chat", time.Since(start)) }()

	b.withRecovery(ctx, func() {
		switch {
		case update.CallbackQuery != nil:
			b.handleCallback(ctx, update.CallbackQuery)
		case update.Message != nil && update.Message.From != nil:
			b.handleMessage(ctx, update.Message)
		}
	})
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	state := b.flowState(ctx, msg)
	if state == nil {
		return
	}

	switch state.Flow {
	case conversation.FlowWizard:
		b.handleWizardMessage(ctx, msg, state)
	case conversation.FlowAssign:
		b.handleAssignmentMessage(ctx, msg, state)
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil || cb.From == nil {
		b.answer(ctx, cb.ID, "")
		return
	}
	data := cb.Data

	switch {
	case strings.HasPrefix(data, cbApprove):
		b.handleDecision(ctx, cb, strings.TrimPrefix(data, cbApprove), true)
	case strings.HasPrefix(data, cbReject):
		b.handleDecision(ctx, cb, strings.TrimPrefix(data, cbReject), false)
	case strings.HasPrefix(data, cbAssignDone):
		b.handleAssignDone(ctx, cb, strings.TrimPrefix(data, cbAssignDone))
	case strings.HasPrefix(data, "wizard_"):
		b.handleWizardCallback(ctx, cb)
	default:
		b.answer(ctx, cb.ID, "")
	}
}

// flowState returns the operator's state when msg continues it: the message
// must reply to the stored prompt, unless the chat is private.
func (b *Bot) flowState(ctx context.Context, msg *tgbotapi.Message) *conversation.State {
	key := conversation.Key{ChatID: msg.Chat.ID, UserID: msg.From.ID}
	state, err := b.stateService.GetState(ctx, key)
	if err != nil || state == nil {
		return nil
	}
	if msg.Chat.IsPrivate() {
		return state
	}
	if msg.ReplyToMessage != nil && msg.ReplyToMessage.MessageID == state.PromptMessageID {
		return state
	}
	b.log(ctx).Debug().Str("key", key.String()).Msg("Message is not a reply to the active prompt, ignored")
	return nil
}

// callbackState returns the state only when the button pressed sits on the stored prompt.
func (b *Bot) callbackState(ctx context.Context, cb *tgbotapi.CallbackQuery, flow conversation.Flow) *conversation.State {
	key := conversation.Key{ChatID: cb.Message.Chat.ID, UserID: cb.From.ID}
	state, err := b.stateService.GetState(ctx, key)
	if err != nil || state == nil {
		return nil
	}
	if state.Flow != flow || state.PromptMessageID != cb.Message.MessageID {
		return nil
	}
	return state
}

func (b *Bot) log(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return b.logger
}

func (b *Bot) send(ctx context.Context, chatID int64, text string) {
	if _, err := b.tgService.SendMessage(chatID, text); err != nil {
		b.log(ctx).Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send message")
	}
}

func (b *Bot) sendMarkdown(ctx context.Context, chatID int64, text string) {
	if _, err := b.tgService.SendMarkdown(chatID, text); err != nil {
		b.log(ctx).Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send message")
	}
}

func (b *Bot) answer(ctx context.Context, callbackID, text string) {
	if err := b.tgService.AnswerCallback(callbackID, text); err != nil {
		b.log(ctx).Warn().Err(err).Msg("Failed to answer callback")
	}
}

func (b *Bot) clearKeyboard(ctx context.Context, chatID int64, messageID int) {
	if messageID == 0 {
		return
	}
	if err := b.tgService.ClearInlineKeyboard(chatID, messageID); err != nil {
		b.log(ctx).Warn().Err(err).Int("message_id", messageID).Msg("Failed to clear keyboard")
	}
}

func parseID(s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	return id, err == nil && id > 0
}
