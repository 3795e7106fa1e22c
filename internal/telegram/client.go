// Package telegram is a small Bot API client: outbound messages with inline
// keyboards, callback acknowledgements and a long-poll listener.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultBaseURL is the public Bot API endpoint.
const DefaultBaseURL = "https://api.telegram.org"

var (
	// ErrDisabled is returned when no bot token is configured.
	ErrDisabled = errors.New("telegram disabled")
	// ErrNoChat is returned by Notify before any chat is bound.
	ErrNoChat = errors.New("no chat bound")
)

// Button represents an inline keyboard button.
type Button struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

// Message is one outbound chat message. A zero ChatID means the bound chat.
type Message struct {
	ChatID   int64
	Text     string
	Markdown bool
	Keyboard [][]Button
}

// APIError is a Bot API response with ok=false.
type APIError struct {
	Method      string
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.Code, e.Description)
}

// Client talks to one bot. The notification chat can be bound at runtime
// by /start, so it is held atomically.
type Client struct {
	token   string
	baseURL string
	http    *http.Client
	chatID  atomic.Int64
}

// NewClient returns a client for token. chatID may be 0 when the chat is
// bound later.
func NewClient(token string, chatID int64) *Client {
	c := &Client{
		token:   token,
		baseURL: DefaultBaseURL,
		// Long polls hold the connection for up to the poll timeout.
		http: &http.Client{Timeout: 90 * time.Second},
	}
	c.chatID.Store(chatID)
	return c
}

// WithBaseURL points the client at another API host.
func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = u
	return c
}

// Enabled reports whether a token is configured.
func (c *Client) Enabled() bool { return c.token != "" }

// ChatID returns the bound chat or 0.
func (c *Client) ChatID() int64 { return c.chatID.Load() }

// BindChat sets the notification chat.
func (c *Client) BindChat(id int64) {
	if old := c.chatID.Swap(id); old != id {
		log.Info().Int64("chat_id", id).Msg("Telegram chat bound")
	}
}

type inlineKeyboard struct {
	InlineKeyboard [][]Button `json:"inline_keyboard"`
}

type sendMessageRequest struct {
	ChatID      int64           `json:"chat_id"`
	Text        string          `json:"text"`
	ParseMode   string          `json:"parse_mode,omitempty"`
	ReplyMarkup *inlineKeyboard `json:"reply_markup,omitempty"`
}

// Send posts m through sendMessage.
func (c *Client) Send(ctx context.Context, m Message) error {
	if !c.Enabled() {
		return ErrDisabled
	}
	if m.ChatID == 0 {
		m.ChatID = c.ChatID()
	}
	if m.ChatID == 0 {
		return ErrNoChat
	}
	req := sendMessageRequest{ChatID: m.ChatID, Text: m.Text}
	if m.Markdown {
		req.ParseMode = "Markdown"
	}
	if len(m.Keyboard) > 0 {
		req.ReplyMarkup = &inlineKeyboard{InlineKeyboard: m.Keyboard}
	}
	log.Debug().Int64("chat_id", m.ChatID).Str("text", m.Text).Msg("Telegram send")
	return c.call(ctx, "sendMessage", req, nil)
}

// Notify sends m to the bound chat and logs, rather than returns, transport
// failures. Delivery is best effort. The returned error is only for callers
// that count failures.
func (c *Client) Notify(ctx context.Context, m Message) error {
	err := c.Send(ctx, m)
	switch {
	case err == nil:
	case errors.Is(err, ErrDisabled), errors.Is(err, ErrNoChat):
		log.Debug().Err(err).Msg("Telegram notification skipped")
	default:
		log.Warn().Err(err).Msg("Telegram notification failed")
	}
	return err
}

// AnswerCallback acknowledges a button press so the client stops spinning.
func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string) error {
	if !c.Enabled() {
		return ErrDisabled
	}
	payload := map[string]string{"callback_query_id": callbackID}
	if text != "" {
		payload["text"] = text
	}
	return c.call(ctx, "answerCallbackQuery", payload, nil)
}

type apiResponse struct {
	Ok          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
	ErrorCode   int             `json:"error_code"`
}

// call POSTs payload as JSON to method and decodes result into out.
func (c *Client) call(ctx context.Context, method string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram %s: encode: %w", method, err)
	}
	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	defer resp.Body.Close()

	var r apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return fmt.Errorf("telegram %s: decode (status %d): %w", method, resp.StatusCode, err)
	}
	if !r.Ok {
		return &APIError{Method: method, Code: r.ErrorCode, Description: r.Description}
	}
	if out != nil {
		if err := json.Unmarshal(r.Result, out); err != nil {
			return fmt.Errorf("telegram %s: decode result: %w", method, err)
		}
	}
	return nil
}
