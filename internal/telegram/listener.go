package telegram

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Update represents a Telegram Update object (partial schema).
type Update struct {
	UpdateID      int            `json:"update_id"`
	Message       *IncomingMsg   `json:"message,omitempty"`
	CallbackQuery *CallbackQuery `json:"callback_query,omitempty"`
}

// IncomingMsg is the part of a Message the listener reads.
type IncomingMsg struct {
	Text string `json:"text"`
	Chat Chat   `json:"chat"`
	From User   `json:"from"`
}

type Chat struct {
	ID int64 `json:"id"`
}

type User struct {
	Username string `json:"username"`
}

// CallbackQuery is an inline button press.
type CallbackQuery struct {
	ID      string       `json:"id"`
	Data    string       `json:"data"`
	From    User         `json:"from"`
	Message *IncomingMsg `json:"message,omitempty"`
}

// Command is a slash command from the authorized chat.
type Command struct {
	ChatID   int64
	Username string
	Text     string
}

// Name returns the command word without the slash or any @botname suffix.
func (c Command) Name() string {
	fields := strings.Fields(c.Text)
	if len(fields) == 0 {
		return ""
	}
	name := strings.TrimPrefix(fields[0], "/")
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	return strings.ToLower(name)
}

// Args returns the whitespace separated arguments.
func (c Command) Args() []string {
	fields := strings.Fields(c.Text)
	if len(fields) < 2 {
		return nil
	}
	return fields[1:]
}

// Callback is a button press from the authorized chat.
type Callback struct {
	ID     string
	ChatID int64
	Data   string
}

// Reply is one message sent back to the chat that issued a command.
type Reply struct {
	Text     string
	Markdown bool
	Keyboard [][]Button
}

// CommandHandler processes a command and returns the replies to send.
type CommandHandler func(ctx context.Context, cmd Command) []Reply

// CallbackHandler processes a button press and returns the replies to send.
type CallbackHandler func(ctx context.Context, cb Callback) []Reply

// Listener long-polls getUpdates and dispatches commands and callbacks.
//
// Only the bound chat is served. While no chat is bound, /start from any
// chat binds it; everything else is ignored.
type Listener struct {
	client      *Client
	commands    CommandHandler
	callbacks   CallbackHandler
	PollTimeout int
	RetryDelay  time.Duration
}

// NewListener wires a listener with a 60s long poll.
func NewListener(c *Client, commands CommandHandler, callbacks CallbackHandler) *Listener {
	return &Listener{
		client:      c,
		commands:    commands,
		callbacks:   callbacks,
		PollTimeout: 60,
		RetryDelay:  5 * time.Second,
	}
}

// Run polls until ctx is cancelled. It runs blocking, so it should be called
// in a goroutine.
func (l *Listener) Run(ctx context.Context) {
	if !l.client.Enabled() {
		log.Warn().Msg("Telegram listener: token missing, disabled")
		return
	}
	log.Info().Int64("chat_id", l.client.ChatID()).Msg("Telegram listener started")

	offset := 0
	for ctx.Err() == nil {
		updates, err := l.poll(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Error().Err(err).Msg("Telegram listener poll failed")
			select {
			case <-ctx.Done():
			case <-time.After(l.RetryDelay):
			}
			continue
		}
		for _, u := range updates {
			offset = u.UpdateID + 1
			l.Handle(ctx, u)
		}
	}
	log.Info().Msg("Telegram listener stopped")
}

type getUpdatesRequest struct {
	Offset         int      `json:"offset"`
	Timeout        int      `json:"timeout"`
	AllowedUpdates []string `json:"allowed_updates"`
}

func (l *Listener) poll(ctx context.Context, offset int) ([]Update, error) {
	var updates []Update
	req := getUpdatesRequest{
		Offset:         offset,
		Timeout:        l.PollTimeout,
		AllowedUpdates: []string{"message", "callback_query"},
	}
	if err := l.client.call(ctx, "getUpdates", req, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// Handle dispatches a single update.
func (l *Listener) Handle(ctx context.Context, u Update) {
	switch {
	case u.Message != nil:
		l.handleMessage(ctx, u.Message)
	case u.CallbackQuery != nil:
		l.handleCallback(ctx, u.CallbackQuery)
	}
}

func (l *Listener) handleMessage(ctx context.Context, m *IncomingMsg) {
	text := strings.TrimSpace(m.Text)
	if !strings.HasPrefix(text, "/") {
		return
	}
	cmd := Command{ChatID: m.Chat.ID, Username: m.From.Username, Text: text}

	if l.client.ChatID() == 0 && cmd.Name() == "start" {
		l.client.BindChat(m.Chat.ID)
	}
	if !l.authorized(m.Chat.ID, m.From.Username, text) {
		return
	}

	log.Info().Str("command", cmd.Name()).Msg("Command received")
	l.reply(ctx, m.Chat.ID, l.commands(ctx, cmd))
}

func (l *Listener) handleCallback(ctx context.Context, q *CallbackQuery) {
	if q.Message == nil {
		return
	}
	chatID := q.Message.Chat.ID
	if !l.authorized(chatID, q.From.Username, q.Data) {
		return
	}
	if err := l.client.AnswerCallback(ctx, q.ID, ""); err != nil {
		log.Warn().Err(err).Msg("Callback acknowledgement failed")
	}

	log.Info().Str("data", q.Data).Msg("Callback received")
	if l.callbacks == nil {
		return
	}
	l.reply(ctx, chatID, l.callbacks(ctx, Callback{ID: q.ID, ChatID: chatID, Data: q.Data}))
}

// authorized drops traffic from any chat but the bound one. Unauthorized
// senders get no reply so the bot does not reveal itself.
func (l *Listener) authorized(chatID int64, username, text string) bool {
	if bound := l.client.ChatID(); bound != 0 && chatID == bound {
		return true
	}
	log.Warn().Str("user", username).Int64("chat_id", chatID).Str("text", text).
		Msg("Unauthorized access attempt")
	return false
}

func (l *Listener) reply(ctx context.Context, chatID int64, replies []Reply) {
	for _, r := range replies {
		m := Message{ChatID: chatID, Text: r.Text, Markdown: r.Markdown, Keyboard: r.Keyboard}
		if err := l.client.Send(ctx, m); err != nil {
			log.Warn().Err(err).Int64("chat_id", chatID).Msg("Reply failed")
		}
	}
}
