package telegram

import (
	"fmt"
	"strings"
)

type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	Username  string `json:"username"`
}

type Chat struct {
	ID        int64  `json:"id"`
	Type      string `json:"type"`
	Title     string `json:"title"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// DisplayName is the chat title, or the person's name for private chats.
func (c Chat) DisplayName() string {
	if c.Title != "" {
		return c.Title
	}
	if name := strings.TrimSpace(c.FirstName + " " + c.LastName); name != "" {
		return name
	}
	if c.Username != "" {
		return "@" + c.Username
	}
	return fmt.Sprintf("%d", c.ID)
}

// IsGroup reports whether the chat is a group, supergroup or channel.
func (c Chat) IsGroup() bool {
	switch c.Type {
	case "group", "supergroup", "channel":
		return true
	}
	return false
}

type Message struct {
	MessageID    int64  `json:"message_id"`
	Chat         Chat   `json:"chat"`
	Date         int64  `json:"date"`
	Text         string `json:"text"`
	Caption      string `json:"caption"`
	MediaGroupID string `json:"media_group_id"`
}

// Body returns the text of a message, falling back to a media caption.
func (m Message) Body() string {
	if m.Text != "" {
		return m.Text
	}
	return m.Caption
}

type Update struct {
	UpdateID    int64    `json:"update_id"`
	Message     *Message `json:"message"`
	ChannelPost *Message `json:"channel_post"`
}

// Post returns whichever message the update carries.
func (u Update) Post() *Message {
	if u.ChannelPost != nil {
		return u.ChannelPost
	}
	return u.Message
}
