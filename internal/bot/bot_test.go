package bot

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"candypic/internal/config"
	"candypic/internal/conversation"
	"candypic/internal/database"
	"candypic/internal/domain"
	"candypic/internal/events"
	"candypic/internal/models"
	"candypic/internal/push"
	"candypic/internal/service"
	"candypic/internal/worker"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const groupChatID int64 = -1001234

type sentMessage struct {
	ChatID     int64
	MessageID  int
	Text       string
	Keyboard   *tgbotapi.InlineKeyboardMarkup
	ForceReply bool
}

type sentDocument struct {
	ChatID   int64
	FileName string
	Data     []byte
	Caption  string
}

type edit struct {
	ChatID    int64
	MessageID int
	Text      string
}

// fakeTelegram records outgoing messages and hands out increasing message ids.
type fakeTelegram struct {
	domain.TelegramService

	mu        sync.Mutex
	nextID    int
	sent      []sentMessage
	edits     []edit
	answers   []string
	cleared   []int
	documents []sentDocument
}

func (f *fakeTelegram) record(chatID int64, text string, kb *tgbotapi.InlineKeyboardMarkup, forceReply bool) tgbotapi.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.sent = append(f.sent, sentMessage{ChatID: chatID, MessageID: f.nextID, Text: text, Keyboard: kb, ForceReply: forceReply})
	return tgbotapi.Message{MessageID: f.nextID, Chat: &tgbotapi.Chat{ID: chatID}, Text: text}
}

func (f *fakeTelegram) SendMessage(chatID int64, text string) (tgbotapi.Message, error) {
	return f.record(chatID, text, nil, false), nil
}

func (f *fakeTelegram) SendMarkdown(chatID int64, text string) (tgbotapi.Message, error) {
	return f.record(chatID, text, nil, false), nil
}

func (f *fakeTelegram) SendWithInlineKeyboard(chatID int64, text string, kb tgbotapi.InlineKeyboardMarkup) (tgbotapi.Message, error) {
	return f.record(chatID, text, &kb, false), nil
}

func (f *fakeTelegram) SendForceReply(chatID int64, _ int, text, _ string) (tgbotapi.Message, error) {
	return f.record(chatID, text, nil, true), nil
}

func (f *fakeTelegram) EditMessage(chatID int64, messageID int, text string, _ *tgbotapi.InlineKeyboardMarkup) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, edit{ChatID: chatID, MessageID: messageID, Text: text})
	return tgbotapi.Message{MessageID: messageID, Chat: &tgbotapi.Chat{ID: chatID}, Text: text}, nil
}

func (f *fakeTelegram) ClearInlineKeyboard(_ int64, messageID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = append(f.cleared, messageID)
	return nil
}

func (f *fakeTelegram) AnswerCallback(_ string, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, text)
	return nil
}

func (f *fakeTelegram) SendDocument(chatID int64, fileName string, data []byte, caption string) (tgbotapi.Message, error) {
	f.mu.Lock()
	f.documents = append(f.documents, sentDocument{ChatID: chatID, FileName: fileName, Data: data, Caption: caption})
	f.mu.Unlock()
	return f.record(chatID, caption, nil, false), nil
}

func (f *fakeTelegram) last() sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return sentMessage{}
	}
	return f.sent[len(f.sent)-1]
}

func (f *fakeTelegram) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// countText counts sent messages containing substr.
func (f *fakeTelegram) countText(substr string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.sent {
		if strings.Contains(m.Text, substr) {
			n++
		}
	}
	return n
}

func (f *fakeTelegram) answered() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.answers...)
}

type fakeSender struct {
	mu   sync.Mutex
	sent []models.PushMessage
}

func (f *fakeSender) Send(_ context.Context, _ string, msg models.PushMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeSender) Sent() []models.PushMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.PushMessage(nil), f.sent...)
}

type harness struct {
	bot    *Bot
	db     *database.DB
	tg     *fakeTelegram
	sender *fakeSender
	worker *worker.PushWorker
	states *service.StateService
}

func newHarness(t *testing.T, team []config.TeamMember) *harness {
	t.Helper()
	logger := zerolog.Nop()

	db, err := database.NewDB(config.DatabaseConfig{Driver: config.DriverSQLite, Path: ":memory:"}, &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{
		Telegram: config.TelegramConfig{ChatID: groupChatID},
		Push:     config.PushConfig{Link: "/calendar", MaxParallel: 2, Workers: 1, QueueSize: 16},
		Bot:      config.BotConfig{UpcomingLimit: 10, Timezone: "UTC"},
		Team:     team,
	}

	bus := events.NewEventBus()
	bookings := service.NewBookingService(db, bus, &logger)
	states := service.NewStateService(database.NewConversationRepository(db, time.Hour, &logger), &logger)
	sender := &fakeSender{}
	dispatcher := push.NewDispatcher(db, sender, cfg.Push, &logger)

	w := worker.NewPushWorker(dispatcher, cfg.Push, worker.RetryPolicy{
		MaxRetries:   1,
		InitialDelay: time.Millisecond,
		MaxDelay:     time.Millisecond,
	}, &logger)
	w.SubscribeAssignments(bus)
	w.Start()
	t.Cleanup(w.Stop)

	tg := &fakeTelegram{}
	return &harness{
		bot:    NewBot(tg, cfg, states, bookings, dispatcher, w, &logger),
		db:     db,
		tg:     tg,
		sender: sender,
		worker: w,
		states: states,
	}
}

func (h *harness) state(t *testing.T, chatID int64, user *tgbotapi.User) *conversation.State {
	t.Helper()
	state, err := h.states.GetState(context.Background(), conversation.Key{ChatID: chatID, UserID: user.ID})
	require.NoError(t, err)
	return state
}

func (h *harness) bookingCount(t *testing.T) int {
	t.Helper()
	var n int
	require.NoError(t, h.db.Get(&n, "SELECT COUNT(*) FROM bookings"))
	return n
}

var (
	operator = &tgbotapi.User{ID: 42, FirstName: "Neha", UserName: "neha"}
	group    = &tgbotapi.Chat{ID: groupChatID, Type: "supergroup"}
	private  = &tgbotapi.Chat{ID: 42, Type: "private"}
)

func commandUpdate(chat *tgbotapi.Chat, from *tgbotapi.User, command string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 9000,
		From:      from,
		Chat:      chat,
		Text:      command,
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(command)}},
	}}
}

func textUpdate(chat *tgbotapi.Chat, from *tgbotapi.User, text string, replyTo int) tgbotapi.Update {
	msg := &tgbotapi.Message{MessageID: 9001, From: from, Chat: chat, Text: text}
	if replyTo != 0 {
		msg.ReplyToMessage = &tgbotapi.Message{MessageID: replyTo, Chat: chat}
	}
	return tgbotapi.Update{Message: msg}
}

func contactUpdate(chat *tgbotapi.Chat, from *tgbotapi.User, firstName, phone string, replyTo int) tgbotapi.Update {
	update := textUpdate(chat, from, "", replyTo)
	update.Message.Contact = &tgbotapi.Contact{FirstName: firstName, PhoneNumber: phone}
	return update
}

func callbackUpdate(chat *tgbotapi.Chat, from *tgbotapi.User, messageID int, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    from,
		Message: &tgbotapi.Message{MessageID: messageID, Chat: chat},
		Data:    data,
	}}
}

func TestStartAndHelp(t *testing.T) {
	h := newHarness(t, nil)

	h.bot.HandleUpdate(context.Background(), commandUpdate(private, operator, "/start"))

	assert.Contains(t, h.tg.last().Text, "/newbooking")
}

func TestWithRecoverySwallowsPanic(t *testing.T) {
	h := newHarness(t, nil)

	assert.NotPanics(t, func() {
		h.bot.withRecovery(context.Background(), func() { panic("boom") })
	})
}

func TestUnknownCallbackIsAnswered(t *testing.T) {
	h := newHarness(t, nil)

	h.bot.HandleUpdate(context.Background(), callbackUpdate(group, operator, 1, "something_else"))

	assert.Len(t, h.tg.answered(), 1)
	assert.Equal(t, 0, h.tg.count())
}

func TestParseID(t *testing.T) {
	id, ok := parseID("17")
	assert.True(t, ok)
	assert.Equal(t, int64(17), id)

	_, ok = parseID("0")
	assert.False(t, ok)
	_, ok = parseID("abc")
	assert.False(t, ok)
}
