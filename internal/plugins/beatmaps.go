package plugins

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/xnyo/fokabot/internal/bot"
	"github.com/xnyo/fokabot/internal/commands"
	"github.com/xnyo/fokabot/internal/events"
	"github.com/xnyo/fokabot/internal/osu"
	"github.com/xnyo/fokabot/internal/transport"
)

const featureNotice = "Hello! Ripple's chat bot here! I will provide download links " +
	"for unranked maps from beatconnect.io automatically! You can manually request " +
	"a download link for the currently playing map with the !b command. This feature works both " +
	"in multiplayer and spectator!"

// beatmapTracker remembers the last announced beatmap per channel key so a
// link is only posted when the map actually changes.
type beatmapTracker struct {
	mu   sync.Mutex
	last map[int]int // key (match id or spectator host id) → beatmap id
}

func newBeatmapTracker() *beatmapTracker {
	return &beatmapTracker{last: make(map[int]int)}
}

// changed records the beatmap and reports whether it differs from the last
// one seen for the key.
func (t *beatmapTracker) changed(key, beatmapID int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	prev := t.last[key]
	t.last[key] = beatmapID
	return prev != beatmapID
}

func (t *beatmapTracker) get(key int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last[key]
}

func (t *beatmapTracker) forget(key int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.last, key)
}

// Beatmaps registers the automatic download-link announcements for
// multiplayer matches and spectator sessions.
func Beatmaps(b *bot.Bot) error {
	multi := newBeatmapTracker()
	spect := newBeatmapTracker()

	// announce posts a download link when the map changed and is known to
	// the mirrors as unranked.
	announce := func(ctx context.Context, tracker *beatmapTracker, key, beatmapID int, name, channel string) {
		if beatmapID <= 0 {
			// The client is still switching maps.
			return
		}
		if !tracker.changed(key, beatmapID) {
			return
		}
		setID, err := unrankedSetID(ctx, b, beatmapID)
		if err != nil {
			b.Logger.Warn("beatmap set lookup failed", "beatmap_id", beatmapID, "error", err)
			return
		}
		if setID <= 0 {
			return
		}
		msg, err := downloadMessage(ctx, b, setID, name)
		if err != nil {
			b.Logger.Warn("download link lookup failed", "set_id", setID, "error", err)
			return
		}
		if msg != "" {
			b.SendMessage(msg, channel)
		}
	}

	// Subscribe to every match alive at startup, then to the lobby and
	// status update feeds.
	b.Bus.On(events.Ready, func(ctx context.Context, p events.Payload) {
		matches, err := b.Bancho.GetAllMatches(ctx)
		if err != nil {
			b.Logger.Error("cannot list matches for subscriptions", "error", err)
		}
		for _, m := range matches {
			_ = b.Conn.Send(transport.SubscribeMatch(m.ID))
		}
		_ = b.Conn.Send(transport.Subscribe("lobby", nil))
		_ = b.Conn.Send(transport.Subscribe("status_updates", nil))
	})

	b.Bus.On(events.Msg("lobby_match_added"), func(ctx context.Context, p events.Payload) {
		id := p.Int("id")
		b.Logger.Info("match added", "match", id)
		_ = b.Conn.Send(transport.SubscribeMatch(id))
		b.SendMessage(featureNotice, fmt.Sprintf("#multi_%d", id))
	})

	b.Bus.On(events.Msg("lobby_match_removed"), func(ctx context.Context, p events.Payload) {
		multi.forget(p.Int("id"))
	})

	b.Bus.On(events.Msg("chat_channel_added"), func(ctx context.Context, p events.Payload) {
		name := p.String("name")
		if strings.HasPrefix(name, "#spect_") {
			b.SendMessage(featureNotice, name)
		}
	})

	b.Bus.On(events.Msg("chat_channel_removed"), func(ctx context.Context, p events.Payload) {
		name := p.String("name")
		if id, ok := strings.CutPrefix(name, "#spect_"); ok {
			var hostID int
			if _, err := fmt.Sscanf(id, "%d", &hostID); err == nil {
				spect.forget(hostID)
			}
		}
	})

	b.Bus.On(events.Msg("match_update"), func(ctx context.Context, p events.Payload) {
		beatmap := p.Map("beatmap")
		if beatmap == nil {
			return
		}
		id := p.Int("id")
		announce(ctx, multi, id, beatmap.Int("id"), beatmap.String("name"), fmt.Sprintf("#multi_%d", id))
	})

	b.Bus.On(events.Msg("status_update"), func(ctx context.Context, p events.Payload) {
		client := p.Map("client")
		if client == nil {
			return
		}
		action := client.Map("action")
		if action == nil || !osu.Action(action.Int("id")).Playing() {
			return
		}
		hostID := client.Int("user_id")
		channel := fmt.Sprintf("#spect_%d", hostID)
		if !b.Session.InChannel(channel) {
			return
		}
		beatmap := action.Map("beatmap")
		if beatmap == nil {
			return
		}
		announce(ctx, spect, hostID, beatmap.Int("id"), action.String("text"), channel)
	})

	// Manual lookup for the currently playing map of the channel.
	b.Commands.MustRegister(&commands.Spec{
		Name: "b",
		Handler: func(ctx context.Context, r *commands.Request) ([]string, error) {
			var beatmapID int
			switch {
			case commands.MultiplayerOnly(r):
				beatmapID = multi.get(matchIDFromRequest(r))
			case commands.SpectatorOnly(r):
				var hostID int
				fmt.Sscanf(r.Recipient.Name, "#spect_%d", &hostID)
				beatmapID = spect.get(hostID)
			default:
				return nil, nil
			}
			if beatmapID <= 0 {
				return []string{"I don't know what beatmap is being played right now."}, nil
			}
			setID, err := setIDFor(ctx, b, beatmapID)
			if err != nil {
				return nil, err
			}
			if setID <= 0 {
				return []string{"I couldn't find that beatmap on any mirror."}, nil
			}
			msg, err := downloadMessage(ctx, b, setID, "")
			if err != nil {
				return nil, err
			}
			return []string{msg}, nil
		},
	})
	return nil
}

// setIDFor resolves a beatmap to its set id, mirror first, official API as
// fallback.
func setIDFor(ctx context.Context, b *bot.Bot, beatmapID int) (int, error) {
	info, err := b.Cheesegull.GetBeatmap(ctx, beatmapID)
	if err == nil && info != nil {
		return info.ParentSetID, nil
	}
	return b.OsuAPI.GetBeatmapSetID(ctx, beatmapID)
}

// unrankedSetID returns the set id only when the mirror reports the set as
// not ranked (ranked maps are downloadable in-game already). Unknown maps
// fall back to the official API.
func unrankedSetID(ctx context.Context, b *bot.Bot, beatmapID int) (int, error) {
	info, err := b.Cheesegull.GetBeatmap(ctx, beatmapID)
	if err != nil {
		return 0, err
	}
	if info == nil {
		return b.OsuAPI.GetBeatmapSetID(ctx, beatmapID)
	}
	set, err := b.Cheesegull.GetSet(ctx, info.ParentSetID)
	if err != nil {
		return 0, err
	}
	if set == nil {
		return b.OsuAPI.GetBeatmapSetID(ctx, beatmapID)
	}
	if osu.RankedStatus(set.RankedStatus) < osu.StatusRanked {
		return info.ParentSetID, nil
	}
	return 0, nil
}

// downloadMessage builds the chat line with the download links for a set:
// beatconnect when mirrored there, the storage mirror as fallback.
func downloadMessage(ctx context.Context, b *bot.Bot, setID int, name string) (string, error) {
	if name == "" {
		name = "this beatmap"
	}
	link, err := b.Beatconnect.DownloadLink(ctx, setID)
	if err != nil || link == "" {
		// Beatconnect is best-effort; fall back to the storage mirror.
		link = fmt.Sprintf("%s/d/%d", strings.TrimRight(b.Config.CheesegullAPIBase, "/"), setID)
	}
	return fmt.Sprintf("Download %s from [%s here]", name, link), nil
}
