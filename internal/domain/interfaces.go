package domain

import (
	"context"

	"candypic/internal/conversation"
	"candypic/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type BookingRepository interface {
	CreateBooking(ctx context.Context, booking *models.Booking) error
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	FindClash(ctx context.Context, date models.Day, excludeID int64) (*models.Booking, error)
	DecideBooking(ctx context.Context, id int64, status models.BookingStatus) (*models.Booking, error)
	UpdateAssignees(
		ctx context.Context,
		id int64,
		assignedTo string,
		phones models.PhoneList,
		status models.BookingStatus,
		expectedVersion int64,
	) error
	UpcomingBookings(ctx context.Context, from models.Day, limit int) ([]models.Booking, error)
}

type BookingService interface {
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	FindClash(ctx context.Context, booking *models.Booking) (*models.Booking, error)
	CreateBooking(ctx context.Context, booking *models.Booking) error
	Approve(ctx context.Context, id int64) (*models.Booking, error)
	Reject(ctx context.Context, id int64) (*models.Booking, error)
	AddAssignee(ctx context.Context, id int64, name, phone string) (*models.AssigneeChange, error)
	Upcoming(ctx context.Context, from models.Day, limit int) ([]models.Booking, error)
}

type StateRepository interface {
	GetState(ctx context.Context, key conversation.Key) (*conversation.State, error)
	SetState(ctx context.Context, state *conversation.State) error
	ClearState(ctx context.Context, key conversation.Key) error
}

type StateManager interface {
	GetState(ctx context.Context, key conversation.Key) (*conversation.State, error)
	SaveState(ctx context.Context, state *conversation.State) error
	ClearState(ctx context.Context, key conversation.Key) error
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// PushSender delivers one message to one device token.
type PushSender interface {
	Send(ctx context.Context, token string, msg models.PushMessage) error
}

type PushDispatcher interface {
	Notify(ctx context.Context, phone string, msg models.PushMessage) (*models.DeliveryReport, error)
	RegisterDevice(ctx context.Context, device *models.Device) (*models.DeliveryReport, error)
}

type PushQueue interface {
	Enqueue(ctx context.Context, job models.PushJob) error
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	GetSelf() tgbotapi.User
	StopReceivingUpdates()
}

type TelegramService interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	SendMessage(chatID int64, text string) (tgbotapi.Message, error)
	SendMarkdown(chatID int64, text string) (tgbotapi.Message, error)
	SendWithInlineKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) (tgbotapi.Message, error)
	SendForceReply(chatID int64, replyTo int, text, placeholder string) (tgbotapi.Message, error)
	EditMessage(chatID int64, messageID int, text string, keyboard *tgbotapi.InlineKeyboardMarkup) (tgbotapi.Message, error)
	ClearInlineKeyboard(chatID int64, messageID int) error
	AnswerCallback(callbackID, text string) error
	SendDocument(chatID int64, fileName string, data []byte, caption string) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	GetSelf() tgbotapi.User
	StopReceivingUpdates()
}
