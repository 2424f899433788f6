// Package bot wires the whole process together: the transport, the event
// bus, the session, the command registry, the backend clients, the caches
// and the tournament engine live in one explicit container that is passed
// around by reference. Plugins register against the container at startup.
package bot

import (
	"context"
	"log/slog"
	"sync"

	"github.com/xnyo/fokabot/internal/bancho"
	"github.com/xnyo/fokabot/internal/beatconnect"
	"github.com/xnyo/fokabot/internal/cheesegull"
	"github.com/xnyo/fokabot/internal/commands"
	"github.com/xnyo/fokabot/internal/config"
	"github.com/xnyo/fokabot/internal/events"
	"github.com/xnyo/fokabot/internal/faq"
	"github.com/xnyo/fokabot/internal/kvstore"
	"github.com/xnyo/fokabot/internal/lets"
	"github.com/xnyo/fokabot/internal/misirlou"
	"github.com/xnyo/fokabot/internal/osuapi"
	"github.com/xnyo/fokabot/internal/privcache"
	"github.com/xnyo/fokabot/internal/ripple"
	"github.com/xnyo/fokabot/internal/session"
	"github.com/xnyo/fokabot/internal/tournament"
	"github.com/xnyo/fokabot/internal/transport"
)

// Bot is the process container.
type Bot struct {
	Config *config.Config
	Logger *slog.Logger

	Conn     *transport.Conn
	Bus      *events.Bus
	Session  *session.Session
	Commands *commands.Registry

	Ripple      *ripple.Client
	Bancho      *bancho.Client
	Lets        *lets.Client
	Cheesegull  *cheesegull.Client
	Beatconnect *beatconnect.Client
	OsuAPI      *osuapi.Client
	Misirlou    *misirlou.Client

	Store      *kvstore.Store
	Ingress    *kvstore.Ingress
	PrivCache  *privcache.Cache
	FAQ        *faq.Store
	Tournament *tournament.Engine

	// pending buffers user-visible outbound messages until the session is
	// ready; the writer queue then preserves their order.
	pendingMu sync.Mutex
	pending   []transport.Message
}

// New builds the container from configuration. The key/value store must
// already be connected; it is owned by the caller.
func New(cfg *config.Config, store *kvstore.Store, logger *slog.Logger) (*Bot, error) {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bot{
		Config: cfg,
		Logger: logger,
		Store:  store,
	}

	b.Bus = events.New(logger.With("component", "events"))
	b.Conn = transport.New(cfg.WSS, transport.DefaultQueueSize, logger.With("component", "transport"))
	b.Commands = commands.NewRegistry(cfg.CommandsPrefix, logger.With("component", "commands"))

	b.Ripple = ripple.New(cfg.RippleAPIBase, cfg.RippleAPIToken, logger.With("api", "ripple"))
	b.Bancho = bancho.New(cfg.BanchoAPIBase, cfg.BanchoAPIToken, logger.With("api", "bancho"))
	b.Lets = lets.New(cfg.LetsAPIBase, logger.With("api", "lets"))
	b.Cheesegull = cheesegull.New(cfg.CheesegullAPIBase, logger.With("api", "cheesegull"))
	b.Beatconnect = beatconnect.New(cfg.BeatconnectAPIBase, cfg.BeatconnectToken, logger.With("api", "beatconnect"))
	b.OsuAPI = osuapi.New(cfg.OsuAPIToken, logger.With("api", "osu"))
	b.Misirlou = misirlou.New(cfg.MisirlouAPIBase, cfg.MisirlouAPIToken, logger.With("api", "misirlou"))

	b.Session = session.New(b.Conn, b.Bus, b.Bancho, cfg.RippleAPIToken, logger.With("component", "session"))
	b.PrivCache = privcache.New(b.Ripple, logger.With("component", "privcache"))
	b.Ingress = kvstore.NewIngress(store)

	var err error
	if b.FAQ, err = faq.Open(cfg.TinyDBPath); err != nil {
		return nil, err
	}

	b.Tournament = tournament.New(
		b.Bancho, b.Misirlou, b.Bus, b.SendMessage,
		logger.With("component", "tournament"),
	)

	b.RegisterCoreHandlers()
	b.registerIngressHandlers()
	return b, nil
}

// SendMessage delivers a chat message to a channel or user. Messages sent
// before the session is ready are buffered and flushed, in order, on the
// ready event.
func (b *Bot) SendMessage(message, target string) {
	msg := transport.ChatMessage(message, target)
	if !b.Session.Ready() {
		b.pendingMu.Lock()
		// Re-check under the lock so a concurrent ready flush cannot strand
		// this message in the buffer.
		if !b.Session.Ready() {
			b.pending = append(b.pending, msg)
			b.pendingMu.Unlock()
			return
		}
		b.pendingMu.Unlock()
	}
	if err := b.Conn.Send(msg); err != nil {
		b.Logger.Error("cannot enqueue chat message", "target", target, "error", err)
	}
}

// flushPending drains the pre-ready buffer into the writer queue.
func (b *Bot) flushPending() {
	b.pendingMu.Lock()
	pending := b.pending
	b.pending = nil
	b.pendingMu.Unlock()
	for _, msg := range pending {
		if err := b.Conn.Send(msg); err != nil {
			b.Logger.Error("cannot flush buffered message", "error", err)
			return
		}
	}
}

// Run starts the session loop and blocks until it ends.
func (b *Bot) Run(ctx context.Context) error {
	return b.Session.Run(ctx)
}

// Close tears the transport down.
func (b *Bot) Close() {
	b.Conn.Close()
}
