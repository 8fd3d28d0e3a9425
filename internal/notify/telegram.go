package notify

import (
	"fmt"

	"repairhub/internal/config"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// TelegramNotifier sends provider alerts through a bot. It is outbound-only;
// no update polling is started.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	logger *zerolog.Logger
}

func NewTelegramNotifier(cfg config.TelegramConfig, logger *zerolog.Logger) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot api: %w", err)
	}
	bot.Debug = cfg.Debug

	logger.Info().Str("bot_username", bot.Self.UserName).Msg("telegram notifier ready")

	return &TelegramNotifier{bot: bot, logger: logger}, nil
}

func (n *TelegramNotifier) SendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}
