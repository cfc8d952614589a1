package bot

import (
	"fmt"

	"candypic/internal/config"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Client adapts *tgbotapi.BotAPI to domain.TelegramSender.
type Client struct {
	*tgbotapi.BotAPI
}

// NewClient authorizes against the Bot API with the configured token.
func NewClient(cfg config.TelegramConfig) (*Client, error) {
	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("telegram authorize: %w", err)
	}
	api.Debug = cfg.Debug
	return &Client{BotAPI: api}, nil
}

func (c *Client) GetSelf() tgbotapi.User {
	return c.Self
}

func (c *Client) StopReceivingUpdates() {
	c.BotAPI.StopReceivingUpdates()
}
