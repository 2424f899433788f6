// Package session drives the bot's attachment to the chat server: the
// connect → authenticate → subscribe → join-all → ready lifecycle, the
// suspend/resume path, and the reconnect loop.
package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/xnyo/fokabot/internal/bancho"
	"github.com/xnyo/fokabot/internal/events"
	"github.com/xnyo/fokabot/internal/transport"
)

// ReconnectDelay is the fixed wait between reconnect attempts. A variable
// so tests can shorten it.
// TODO: exponential backoff with a bounded maximum.
var ReconnectDelay = 5 * time.Second

var (
	// ErrLoginFailed means the server rejected the auth token; retrying
	// with the same token is pointless.
	ErrLoginFailed = errors.New("session: authentication failed")
	// ErrResumeFailed means the server rejected the resume token.
	ErrResumeFailed = errors.New("session: resume failed")
)

// ChannelLister fetches the public channel list during startup.
// *bancho.Client implements it.
type ChannelLister interface {
	GetChannels(ctx context.Context) ([]bancho.Channel, error)
}

// Session is the singleton attachment to the chat server. Mutated only by
// its own event handlers and Run loop.
type Session struct {
	logger   *slog.Logger
	conn     *transport.Conn
	bus      *events.Bus
	channels ChannelLister
	token    string

	mu                sync.Mutex
	ready             bool
	suspended         bool
	resumeToken       string
	joinedChannels    map[string]struct{}
	loginChannelsLeft map[string]struct{}
}

// New creates a session and registers its event handlers on the bus.
func New(conn *transport.Conn, bus *events.Bus, channels ChannelLister, token string, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		logger:            logger,
		conn:              conn,
		bus:               bus,
		channels:          channels,
		token:             token,
		joinedChannels:    make(map[string]struct{}),
		loginChannelsLeft: make(map[string]struct{}),
	}
	s.registerHandlers()
	return s
}

// Ready reports whether the join-all phase has completed.
func (s *Session) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// Suspended reports whether the server has suspended the session.
func (s *Session) Suspended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.suspended
}

// JoinedChannels returns a snapshot of the joined channel set.
func (s *Session) JoinedChannels() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.joinedChannels))
	for name := range s.joinedChannels {
		out = append(out, name)
	}
	return out
}

// InChannel reports membership in one channel.
func (s *Session) InChannel(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.joinedChannels[strings.ToLower(name)]
	return ok
}

func (s *Session) registerHandlers() {
	s.bus.On(events.Msg("ping"), func(ctx context.Context, p events.Payload) {
		_ = s.conn.SendDirect(transport.Pong())
	})

	s.bus.On(events.Msg("suspend"), func(ctx context.Context, p events.Payload) {
		token := p.String("token")
		s.logger.Warn("session suspended by server")
		s.mu.Lock()
		s.suspended = true
		s.resumeToken = token
		s.mu.Unlock()
		// Stop producing outbound traffic but keep the queue: it is flushed
		// after the resume handshake on the next connection.
		s.conn.SuspendWriter()
	})

	s.bus.On(events.Msg("chat_channel_joined"), func(ctx context.Context, p events.Payload) {
		name := strings.ToLower(p.String("name"))
		s.mu.Lock()
		s.joinedChannels[name] = struct{}{}
		becameReady := false
		if !s.ready {
			delete(s.loginChannelsLeft, name)
			if len(s.loginChannelsLeft) == 0 {
				s.ready = true
				becameReady = true
			}
		}
		s.mu.Unlock()
		s.logger.Info("joined channel", "channel", name)
		if becameReady {
			s.logger.Info("all channels joined, session ready")
			s.bus.Trigger(ctx, events.Ready, nil)
		}
	})

	// New channels appearing after startup are joined immediately.
	s.bus.On(events.Msg("chat_channel_added"), func(ctx context.Context, p events.Payload) {
		name := p.String("name")
		if !s.Ready() || s.InChannel(name) {
			return
		}
		_ = s.conn.SendDirect(transport.JoinChatChannel(name))
	})

	leave := func(ctx context.Context, p events.Payload) {
		name := strings.ToLower(p.String("name"))
		s.mu.Lock()
		delete(s.joinedChannels, name)
		s.mu.Unlock()
	}
	s.bus.On(events.Msg("chat_channel_removed"), leave)
	s.bus.On(events.Msg("chat_channel_left"), leave)
}

// Run connects and serves until the context is cancelled or an unrecoverable
// auth/resume failure occurs. Unexpected disconnects re-enter the connect
// loop after a fixed backoff.
func (s *Session) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := s.serveOnce(ctx)
		switch {
		case errors.Is(err, ErrLoginFailed), errors.Is(err, ErrResumeFailed):
			return err
		case errors.Is(err, context.Canceled):
			return err
		case err != nil:
			s.logger.Warn("connection attempt failed", "error", err)
		}

		if !s.Suspended() {
			s.reset()
		}
		s.logger.Info("reconnecting", "delay", ReconnectDelay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(ReconnectDelay):
		}
	}
}

// serveOnce performs one full connection: dial, handshake, pump events until
// the connection dies.
func (s *Session) serveOnce(ctx context.Context) error {
	if err := s.conn.Connect(ctx); err != nil {
		return err
	}
	inbound := s.conn.Inbound()

	// Pump inbound frames onto the bus; the channel closes on disconnect.
	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		for msg := range inbound {
			s.bus.Trigger(ctx, events.Msg(msg.Type), events.Payload(msg.Data))
		}
		s.bus.Trigger(ctx, events.Disconnected, nil)
	}()

	s.bus.Trigger(ctx, events.Connected, nil)
	if err := s.handshake(ctx); err != nil {
		s.conn.SuspendWriter()
		<-pumpDone
		return err
	}

	select {
	case <-pumpDone:
		s.logger.Warn("connection lost")
		return nil
	case <-ctx.Done():
		s.conn.Close()
		<-pumpDone
		return ctx.Err()
	}
}

// handshake runs the auth or resume path on a fresh connection.
func (s *Session) handshake(ctx context.Context) error {
	s.mu.Lock()
	resumeToken := s.resumeToken
	s.mu.Unlock()

	if resumeToken != "" {
		return s.resume(ctx, resumeToken)
	}
	return s.login(ctx)
}

func (s *Session) login(ctx context.Context) error {
	authResult := s.waitFor(ctx, events.Msg("auth_success"), events.Msg("auth_failure"))
	if err := s.conn.SendDirect(transport.Auth(s.token)); err != nil {
		return err
	}
	fired, err := authResult()
	if err != nil {
		return err
	}
	if fired != events.Msg("auth_success") {
		return ErrLoginFailed
	}
	s.logger.Info("authenticated")

	subscribed := s.waitFor(ctx, events.Msg("subscribed"))
	if err := s.conn.SendDirect(transport.Subscribe("chat_channels", nil)); err != nil {
		return err
	}
	if _, err := subscribed(); err != nil {
		return err
	}

	channels, err := s.channels.GetChannels(ctx)
	if err != nil {
		return err
	}
	ready := s.waitFor(ctx, events.Ready)
	s.mu.Lock()
	for _, ch := range channels {
		s.loginChannelsLeft[strings.ToLower(ch.Name)] = struct{}{}
	}
	pending := len(s.loginChannelsLeft)
	if pending == 0 {
		// Nothing to join; the session is immediately ready.
		s.ready = true
		s.mu.Unlock()
		s.logger.Info("no channels to join, session ready")
		s.bus.Trigger(ctx, events.Ready, nil)
		s.conn.StartWriter()
		return nil
	}
	s.mu.Unlock()
	s.logger.Info("joining channels", "count", pending)
	for _, ch := range channels {
		if err := s.conn.SendDirect(transport.JoinChatChannel(ch.Name)); err != nil {
			return err
		}
	}
	if _, err := ready(); err != nil {
		return err
	}
	// The handshake is done: user-visible traffic may flow. Anything queued
	// while disconnected flushes now, in enqueue order.
	s.conn.StartWriter()
	return nil
}

func (s *Session) resume(ctx context.Context, token string) error {
	result := s.waitFor(ctx, events.Msg("resume_success"), events.Msg("resume_failure"))
	if err := s.conn.SendDirect(transport.Resume(token)); err != nil {
		return err
	}
	fired, err := result()
	if err != nil {
		return err
	}
	if fired != events.Msg("resume_success") {
		return ErrResumeFailed
	}
	s.mu.Lock()
	s.resumeToken = ""
	s.suspended = false
	s.mu.Unlock()
	s.logger.Info("session resumed", "queued_frames", s.conn.QueueLen())
	// Flush the queue that survived the suspension.
	s.conn.StartWriter()
	s.bus.Trigger(ctx, events.Resumed, nil)
	return nil
}

// waitFor arms a bus waiter before the caller sends the request that
// provokes the reply, avoiding the send/wait race. The returned func blocks
// for the first of the named events (or disconnect).
func (s *Session) waitFor(ctx context.Context, names ...string) func() (string, error) {
	wait := s.bus.Waiter(events.WaitFirst, append(names, events.Disconnected)...)
	return func() (string, error) {
		fired, err := wait(ctx)
		if err != nil {
			return "", err
		}
		if len(fired) == 0 || fired[0] == events.Disconnected {
			return "", errors.New("disconnected during handshake")
		}
		return fired[0], nil
	}
}

// reset clears the per-connection session state after a non-suspend
// disconnect.
func (s *Session) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = false
	s.joinedChannels = make(map[string]struct{})
	s.loginChannelsLeft = make(map[string]struct{})
}
