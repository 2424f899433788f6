package bot

import (
	"context"
	"strings"

	"github.com/xnyo/fokabot/internal/commands"
	"github.com/xnyo/fokabot/internal/events"
	"github.com/xnyo/fokabot/internal/kvstore"
	"github.com/xnyo/fokabot/internal/osu"
	"github.com/xnyo/fokabot/internal/transport"
)

// RegisterCoreHandlers wires the container-level event handlers: chat
// message dispatch, the ready flush, and the tournament engine's feeds.
// New calls this; it is exported for harnesses that assemble a container
// by hand.
func (b *Bot) RegisterCoreHandlers() {
	b.Bus.On(events.Ready, func(ctx context.Context, p events.Payload) {
		b.flushPending()
	})
	b.Bus.On(events.Resumed, func(ctx context.Context, p events.Payload) {
		b.flushPending()
	})

	b.Bus.On(events.Msg("chat_message"), b.handleChatMessage)

	b.Bus.On(events.Msg("match_user_joined"), func(ctx context.Context, p events.Payload) {
		b.Tournament.HandleUserJoined(ctx, p)
	})
	b.Bus.On(events.Msg("match_update"), func(ctx context.Context, p events.Payload) {
		b.Tournament.HandleMatchUpdate(ctx, p)
	})
	b.Bus.On(events.Msg("lobby_match_removed"), func(ctx context.Context, p events.Payload) {
		b.Tournament.Forget(p.Int("id"))
	})
	b.Bus.On(events.TournamentMatchFull, func(ctx context.Context, p events.Payload) {
		b.Tournament.HandleMatchFull(ctx, p.Int("match_id"))
	})
	b.Bus.On(events.TournamentFirstRolled, func(ctx context.Context, p events.Payload) {
		b.Tournament.HandleFirstRolled(p.Int("match_id"))
	})
	b.Bus.On(events.TournamentBothRolled, func(ctx context.Context, p events.Payload) {
		b.Tournament.HandleBothRolled(p.Int("match_id"))
	})
}

// registerIngressHandlers binds the pub/sub channels other services use to
// reach the bot.
func (b *Bot) registerIngressHandlers() {
	type messageFrame struct {
		Recipient string `json:"recipient" validate:"required"`
		Message   string `json:"message" validate:"required"`
	}
	kvstore.Register(b.Ingress, "fokabot:message", func(ctx context.Context, f messageFrame) error {
		b.SendMessage(f.Message, f.Recipient)
		return nil
	})

	type joinFrame struct {
		Channel string `json:"channel" validate:"required"`
	}
	kvstore.Register(b.Ingress, "fokabot:join_channel", func(ctx context.Context, f joinFrame) error {
		b.Logger.Debug("joining channel via pubsub", "channel", f.Channel)
		return b.Conn.Send(transport.JoinChatChannel(f.Channel))
	})
}

// handleChatMessage routes one inbound chat message through the command
// registry and sends the replies to the derived recipient.
func (b *Bot) handleChatMessage(ctx context.Context, p events.Payload) {
	sender := p.Map("sender")
	recipient := p.Map("recipient")
	if sender == nil || recipient == nil {
		b.Logger.Warn("chat message with missing sender or recipient")
		return
	}
	// Never react to our own messages.
	if strings.EqualFold(sender.String("username"), b.Config.BotNickname) {
		return
	}

	r := &commands.Request{
		Sender: commands.User{
			ID:            sender.Int("user_id"),
			Username:      sender.String("username"),
			APIIdentifier: sender.String("api_identifier"),
			Type:          osu.ClientType(sender.Int("type")),
			Privileges:    osu.Privileges(sender.Int64("privileges")),
		},
		Recipient: commands.Channel{
			Name:        recipient.String("name"),
			DisplayName: recipient.String("display_name"),
		},
		PM:      p.Bool("pm"),
		Message: p.String("message"),
	}

	replies, matched := b.Commands.Dispatch(ctx, r)
	if !matched {
		return
	}
	for _, reply := range replies {
		if reply == "" {
			continue
		}
		b.SendMessage(reply, r.ReplyTarget())
	}
}

// TournamentPre is the regex gate restricting a pattern to registered
// tournament rooms.
func (b *Bot) TournamentPre(r *commands.Request) bool {
	if r.PM {
		return false
	}
	id, ok := commands.MatchID(r.Recipient.Name)
	return ok && b.Tournament.Tracks(id)
}
