package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// APIError is a Bot API reply with ok=false.
type APIError struct {
	Method      string
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.Code, e.Description)
}

// ConnectionError means the bot could not reach or authenticate against the
// Bot API at startup.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("telegram connection: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

type Client struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
}

func NewClient(apiURL, botToken string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: fmt.Sprintf("%s/bot%s", strings.TrimRight(apiURL, "/"), botToken),
		timeout: timeout,
		client:  &http.Client{},
	}
}

// Connect verifies the token with getMe.
func (c *Client) Connect(ctx context.Context) (*User, error) {
	var me User
	if err := c.call(ctx, "getMe", nil, &me); err != nil {
		return nil, &ConnectionError{Err: err}
	}
	return &me, nil
}

func (c *Client) GetChat(ctx context.Context, chatID int64) (*Chat, error) {
	var chat Chat
	if err := c.call(ctx, "getChat", map[string]any{"chat_id": chatID}, &chat); err != nil {
		return nil, err
	}
	return &chat, nil
}

func (c *Client) ForwardMessage(ctx context.Context, to, from, messageID int64) error {
	return c.call(ctx, "forwardMessage", map[string]any{
		"chat_id":      to,
		"from_chat_id": from,
		"message_id":   messageID,
	}, nil)
}

func (c *Client) SendMessage(ctx context.Context, to int64, text string) error {
	return c.call(ctx, "sendMessage", map[string]any{
		"chat_id": to,
		"text":    text,
	}, nil)
}

// GetUpdates long-polls for new messages and channel posts.
func (c *Client) GetUpdates(ctx context.Context, offset int64, wait time.Duration) ([]Update, error) {
	ctx, cancel := context.WithTimeout(ctx, wait+c.timeout)
	defer cancel()

	var updates []Update
	err := c.post(ctx, "getUpdates", map[string]any{
		"offset":          offset,
		"timeout":         int(wait.Seconds()),
		"allowed_updates": []string{"message", "channel_post"},
	}, &updates)
	return updates, err
}

func (c *Client) call(ctx context.Context, method string, params, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.post(ctx, method, params, out)
}

func (c *Client) post(ctx context.Context, method string, params, out any) error {
	if params == nil {
		params = map[string]any{}
	}
	body, err := json.Marshal(params)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var apiResp struct {
		OK          bool            `json:"ok"`
		Result      json.RawMessage `json:"result"`
		ErrorCode   int             `json:"error_code"`
		Description string          `json:"description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return fmt.Errorf("telegram %s: HTTP %d: %w", method, resp.StatusCode, err)
	}

	if !apiResp.OK {
		code := apiResp.ErrorCode
		if code == 0 {
			code = resp.StatusCode
		}
		return &APIError{Method: method, Code: code, Description: apiResp.Description}
	}

	if out != nil {
		if err := json.Unmarshal(apiResp.Result, out); err != nil {
			return fmt.Errorf("telegram %s: decode result: %w", method, err)
		}
	}
	return nil
}
