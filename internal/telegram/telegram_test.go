package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	method string
	body   map[string]interface{}
}

// fakeBot serves the Bot API methods the client uses and records every call.
type fakeBot struct {
	mu      sync.Mutex
	calls   []recorded
	updates [][]Update
	fail    bool
}

func (f *fakeBot) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	var body map[string]interface{}
	_ = json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	f.calls = append(f.calls, recorded{method: method, body: body})
	var batch []Update
	if method == "getUpdates" && len(f.updates) > 0 {
		batch, f.updates = f.updates[0], f.updates[1:]
	}
	fail := f.fail
	f.mu.Unlock()

	if fail {
		_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
		return
	}
	if method == "getUpdates" {
		if batch == nil {
			batch = []Update{}
		}
		result, _ := json.Marshal(batch)
		_, _ = w.Write([]byte(`{"ok":true,"result":` + string(result) + `}`))
		return
	}
	_, _ = w.Write([]byte(`{"ok":true,"result":true}`))
}

func (f *fakeBot) byMethod(method string) []recorded {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []recorded
	for _, c := range f.calls {
		if c.method == method {
			out = append(out, c)
		}
	}
	return out
}

func newTestClient(t *testing.T, chatID int64) (*Client, *fakeBot) {
	t.Helper()
	bot := &fakeBot{}
	srv := httptest.NewServer(bot)
	t.Cleanup(srv.Close)
	return NewClient("T0KEN", chatID).WithBaseURL(srv.URL), bot
}

func TestSend_PostsMarkdownAndKeyboard(t *testing.T) {
	c, bot := newTestClient(t, 42)

	err := c.Send(context.Background(), Message{
		Text:     "*hello*",
		Markdown: true,
		Keyboard: [][]Button{{{Text: "Hedge Now", CallbackData: "hedge_now_BTC"}}},
	})
	require.NoError(t, err)

	sent := bot.byMethod("sendMessage")
	require.Len(t, sent, 1)
	assert.Equal(t, float64(42), sent[0].body["chat_id"])
	assert.Equal(t, "*hello*", sent[0].body["text"])
	assert.Equal(t, "Markdown", sent[0].body["parse_mode"])

	markup := sent[0].body["reply_markup"].(map[string]interface{})
	rows := markup["inline_keyboard"].([]interface{})
	btn := rows[0].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "hedge_now_BTC", btn["callback_data"])
}

func TestSend_PlainTextOmitsParseMode(t *testing.T) {
	c, bot := newTestClient(t, 42)
	require.NoError(t, c.Send(context.Background(), Message{Text: "/hedge_now BTC"}))

	sent := bot.byMethod("sendMessage")
	require.Len(t, sent, 1)
	_, hasMode := sent[0].body["parse_mode"]
	assert.False(t, hasMode)
	_, hasMarkup := sent[0].body["reply_markup"]
	assert.False(t, hasMarkup)
}

func TestNotify_NoChatOrToken(t *testing.T) {
	c, bot := newTestClient(t, 0)
	assert.ErrorIs(t, c.Notify(context.Background(), Message{Text: "x"}), ErrNoChat)
	assert.Empty(t, bot.byMethod("sendMessage"))

	off := NewClient("", 42)
	assert.ErrorIs(t, off.Notify(context.Background(), Message{Text: "x"}), ErrDisabled)
}

func TestSend_APIError(t *testing.T) {
	c, bot := newTestClient(t, 42)
	bot.fail = true

	err := c.Send(context.Background(), Message{Text: "x"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 400, apiErr.Code)
	assert.Equal(t, "sendMessage", apiErr.Method)
}

func TestCommand_NameAndArgs(t *testing.T) {
	cmd := Command{Text: "/Monitor_Risk@HedgeBot btc 1.5 5%"}
	assert.Equal(t, "monitor_risk", cmd.Name())
	assert.Equal(t, []string{"btc", "1.5", "5%"}, cmd.Args())
	assert.Nil(t, Command{Text: "/help"}.Args())
}

func msgUpdate(id int, chat int64, text string) Update {
	return Update{UpdateID: id, Message: &IncomingMsg{Text: text, Chat: Chat{ID: chat}}}
}

func TestListener_StartBindsChatAndRejectsOthers(t *testing.T) {
	c, bot := newTestClient(t, 0)
	var seen []string
	l := NewListener(c, func(_ context.Context, cmd Command) []Reply {
		seen = append(seen, cmd.Name())
		return []Reply{{Text: "ok " + cmd.Name()}}
	}, nil)
	ctx := context.Background()

	l.Handle(ctx, msgUpdate(1, 7, "/help"))
	assert.Empty(t, seen, "commands before binding are ignored")

	l.Handle(ctx, msgUpdate(2, 7, "/start"))
	assert.Equal(t, int64(7), c.ChatID())

	l.Handle(ctx, msgUpdate(3, 8, "/start"))
	assert.Equal(t, int64(7), c.ChatID(), "a second chat cannot steal the binding")

	l.Handle(ctx, msgUpdate(4, 7, "not a command"))
	assert.Equal(t, []string{"start"}, seen)

	sent := bot.byMethod("sendMessage")
	require.Len(t, sent, 1)
	assert.Equal(t, float64(7), sent[0].body["chat_id"])
	assert.Equal(t, "ok start", sent[0].body["text"])
}

func TestListener_CallbackIsAcknowledgedAndDispatched(t *testing.T) {
	c, bot := newTestClient(t, 7)
	var got Callback
	l := NewListener(c, nil, func(_ context.Context, cb Callback) []Reply {
		got = cb
		return []Reply{{Text: "done"}}
	})

	l.Handle(context.Background(), Update{UpdateID: 1, CallbackQuery: &CallbackQuery{
		ID: "cb1", Data: "hedge_now_BTC", Message: &IncomingMsg{Chat: Chat{ID: 7}},
	}})

	assert.Equal(t, Callback{ID: "cb1", ChatID: 7, Data: "hedge_now_BTC"}, got)
	acks := bot.byMethod("answerCallbackQuery")
	require.Len(t, acks, 1)
	assert.Equal(t, "cb1", acks[0].body["callback_query_id"])
	require.Len(t, bot.byMethod("sendMessage"), 1)
}

func TestListener_RunAdvancesOffset(t *testing.T) {
	c, bot := newTestClient(t, 7)
	bot.updates = [][]Update{{msgUpdate(10, 7, "/help"), msgUpdate(11, 7, "/status")}}

	handled := make(chan string, 4)
	l := NewListener(c, func(_ context.Context, cmd Command) []Reply {
		handled <- cmd.Name()
		return nil
	}, nil)
	l.PollTimeout = 0

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()

	assert.Equal(t, "help", <-handled)
	assert.Equal(t, "status", <-handled)
	require.Eventually(t, func() bool {
		for _, call := range bot.byMethod("getUpdates") {
			if call.body["offset"] == float64(12) {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not stop")
	}
}
