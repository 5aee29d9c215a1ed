package telegram

import (
	"context"
	"strings"

	"tgrelay/internal/domain"
)

// Forward delivers msg to target. Telegram messages are forwarded natively so
// the target sees the original author; anything else is re-sent as text.
func (c *Client) Forward(ctx context.Context, target int64, msg domain.Message) error {
	var err error
	if msg.Forwardable() {
		err = c.ForwardMessage(ctx, target, msg.ChatID, msg.ID)
	} else {
		err = c.SendMessage(ctx, target, formatCopy(msg))
	}
	if err != nil {
		return &domain.ForwardError{Target: target, MessageID: msg.ID, Err: err}
	}
	return nil
}

// Resolve returns the display name of chatID.
func (c *Client) Resolve(ctx context.Context, chatID int64) (string, error) {
	chat, err := c.GetChat(ctx, chatID)
	if err != nil {
		return "", &domain.ResolutionError{ChatID: chatID, Err: err}
	}
	return chat.DisplayName(), nil
}

func formatCopy(msg domain.Message) string {
	text := strings.TrimSpace(msg.Text)
	if msg.Link == "" {
		return text
	}
	if text == "" {
		return msg.Link
	}
	return text + "\n\n" + msg.Link
}
