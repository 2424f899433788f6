package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/xnyo/fokabot/internal/bancho"
	"github.com/xnyo/fokabot/internal/events"
	"github.com/xnyo/fokabot/internal/transport"
)

type staticChannels []string

func (c staticChannels) GetChannels(ctx context.Context) ([]bancho.Channel, error) {
	out := make([]bancho.Channel, len(c))
	for i, name := range c {
		out[i] = bancho.Channel{Name: name}
	}
	return out, nil
}

// chatServer scripts the server side of the session handshake.
type chatServer struct {
	*httptest.Server

	acceptAuth   bool
	acceptResume bool
	suspendToken string // when set, suspend+close right after ready

	mu       sync.Mutex
	conns    []*websocket.Conn
	messages []transport.Message
}

func newChatServer(t *testing.T) *chatServer {
	t.Helper()
	cs := &chatServer{acceptAuth: true, acceptResume: true}
	upgrader := websocket.Upgrader{}
	cs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		cs.mu.Lock()
		cs.conns = append(cs.conns, ws)
		cs.mu.Unlock()
		for {
			_, raw, err := ws.ReadMessage()
			if err != nil {
				return
			}
			m, err := transport.Decode(raw)
			if err != nil {
				continue
			}
			cs.mu.Lock()
			cs.messages = append(cs.messages, m)
			cs.mu.Unlock()
			cs.reply(ws, m)
		}
	}))
	t.Cleanup(cs.Close)
	return cs
}

func (cs *chatServer) reply(ws *websocket.Conn, m transport.Message) {
	write := func(out transport.Message) {
		raw, _ := out.Encode()
		cs.mu.Lock()
		_ = ws.WriteMessage(websocket.TextMessage, raw)
		cs.mu.Unlock()
	}
	switch m.Type {
	case "auth":
		if cs.acceptAuth {
			write(transport.Message{Type: "auth_success", Data: map[string]any{}})
		} else {
			write(transport.Message{Type: "auth_failure", Data: map[string]any{}})
		}
	case "resume":
		if cs.acceptResume {
			write(transport.Message{Type: "resume_success", Data: map[string]any{}})
		} else {
			write(transport.Message{Type: "resume_failure", Data: map[string]any{}})
		}
	case "subscribe":
		write(transport.Message{Type: "subscribed", Data: map[string]any{}})
	case "join_chat_channel":
		write(transport.Message{
			Type: "chat_channel_joined",
			Data: map[string]any{"name": m.Data["name"]},
		})
	}
}

func (cs *chatServer) url() string {
	return "ws" + strings.TrimPrefix(cs.URL, "http")
}

func (cs *chatServer) sent(msgType string) []transport.Message {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	var out []transport.Message
	for _, m := range cs.messages {
		if m.Type == msgType {
			out = append(out, m)
		}
	}
	return out
}

func (cs *chatServer) pushToLatest(t *testing.T, m transport.Message) {
	t.Helper()
	raw, err := m.Encode()
	if err != nil {
		t.Fatal(err)
	}
	cs.mu.Lock()
	ws := cs.conns[len(cs.conns)-1]
	err = ws.WriteMessage(websocket.TextMessage, raw)
	cs.mu.Unlock()
	if err != nil {
		t.Fatal(err)
	}
}

func (cs *chatServer) closeLatest() {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.conns[len(cs.conns)-1].Close()
}

func waitCond(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func startSession(t *testing.T, cs *chatServer, channels []string) (*Session, *events.Bus, context.CancelFunc) {
	t.Helper()
	ReconnectDelay = 20 * time.Millisecond
	bus := events.New(nil)
	conn := transport.New(cs.url(), 0, nil)
	s := New(conn, bus, staticChannels(channels), "token", nil)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = s.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		conn.Close()
	})
	return s, bus, cancel
}

func TestStartupReachesReady(t *testing.T) {
	cs := newChatServer(t)
	s, _, _ := startSession(t, cs, []string{"#osu", "#announce"})

	waitCond(t, "ready", s.Ready)
	if !s.InChannel("#osu") || !s.InChannel("#announce") {
		t.Errorf("joined = %v", s.JoinedChannels())
	}
	if got := len(cs.sent("join_chat_channel")); got != 2 {
		t.Errorf("join requests = %d, want 2", got)
	}
	if got := len(cs.sent("auth")); got != 1 {
		t.Errorf("auth requests = %d, want 1", got)
	}
}

func TestAuthFailureIsTerminal(t *testing.T) {
	cs := newChatServer(t)
	cs.acceptAuth = false
	ReconnectDelay = 20 * time.Millisecond
	bus := events.New(nil)
	conn := transport.New(cs.url(), 0, nil)
	s := New(conn, bus, staticChannels(nil), "bad-token", nil)
	defer conn.Close()

	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(context.Background()) }()
	select {
	case err := <-errCh:
		if err != ErrLoginFailed {
			t.Errorf("Run = %v, want ErrLoginFailed", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return on auth failure")
	}
}

func TestPingAnsweredWithPong(t *testing.T) {
	cs := newChatServer(t)
	s, _, _ := startSession(t, cs, []string{"#osu"})
	waitCond(t, "ready", s.Ready)

	cs.pushToLatest(t, transport.Message{Type: "ping", Data: map[string]any{}})
	waitCond(t, "pong", func() bool { return len(cs.sent("pong")) == 1 })
}

func TestChannelRemovedLeavesSet(t *testing.T) {
	cs := newChatServer(t)
	s, _, _ := startSession(t, cs, []string{"#osu"})
	waitCond(t, "ready", s.Ready)

	cs.pushToLatest(t, transport.Message{Type: "chat_channel_removed", Data: map[string]any{"name": "#osu"}})
	waitCond(t, "channel removed", func() bool { return !s.InChannel("#osu") })
}

func TestSuspendResumeFlushesQueue(t *testing.T) {
	cs := newChatServer(t)
	bus := events.New(nil)
	conn := transport.New(cs.url(), 0, nil)
	ReconnectDelay = 20 * time.Millisecond
	s := New(conn, bus, staticChannels([]string{"#osu"}), "token", nil)
	defer conn.Close()

	resumed := make(chan struct{}, 1)
	bus.On(events.Resumed, func(ctx context.Context, p events.Payload) {
		resumed <- struct{}{}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()
	waitCond(t, "ready", s.Ready)

	// The server suspends the session...
	cs.pushToLatest(t, transport.Message{Type: "suspend", Data: map[string]any{"token": "T"}})
	waitCond(t, "suspended", s.Suspended)

	// ...a message is enqueued while the writer is down...
	if err := conn.Send(transport.ChatMessage("queued while down", "#osu")); err != nil {
		t.Fatal(err)
	}

	// ...and the socket closes. The next connection must resume, not auth.
	authsBefore := len(cs.sent("auth"))
	cs.closeLatest()

	select {
	case <-resumed:
	case <-time.After(3 * time.Second):
		t.Fatal("resumed event never fired")
	}
	if got := len(cs.sent("resume")); got != 1 {
		t.Errorf("resume frames = %d, want 1", got)
	}
	if got := len(cs.sent("auth")); got != authsBefore {
		t.Errorf("auth frames grew to %d during resume", got)
	}
	if s.Suspended() {
		t.Error("still suspended after resume")
	}

	// The held message flushes through the new connection.
	waitCond(t, "queued chat message", func() bool {
		for _, m := range cs.sent("chat_message") {
			if m.Data["message"] == "queued while down" {
				return true
			}
		}
		return false
	})

	// Ready state survived the suspend (no reset happened).
	if !s.Ready() {
		t.Error("session lost ready state across suspend/resume")
	}
}

func TestUnexpectedDisconnectReconnectsAndResets(t *testing.T) {
	cs := newChatServer(t)
	s, _, _ := startSession(t, cs, []string{"#osu"})
	waitCond(t, "ready", s.Ready)

	// Kill the connection without a suspend: full re-login.
	cs.closeLatest()
	waitCond(t, "second auth", func() bool { return len(cs.sent("auth")) == 2 })
	waitCond(t, "ready again", s.Ready)
}
