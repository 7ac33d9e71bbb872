// Package telegram delivers rendered posts to Telegram chats.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
)

type Sender struct {
	bot *bot.Bot
	log *slog.Logger
}

func NewSender(token string, log *slog.Logger) (*Sender, error) {
	b, err := bot.New(strings.TrimSpace(token))
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}

	return &Sender{bot: b, log: log}, nil
}

// Deliver sends one MarkdownV2 message to the chat. Link previews are
// disabled because each post message already carries its link.
func (s *Sender) Deliver(ctx context.Context, chatID int64, text string) error {
	_, err := s.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: tgmodels.ParseModeMarkdown,
		LinkPreviewOptions: &tgmodels.LinkPreviewOptions{
			IsDisabled: bot.True(),
		},
	})
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}

	return nil
}
