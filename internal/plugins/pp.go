package plugins

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/xnyo/fokabot/internal/bot"
	"github.com/xnyo/fokabot/internal/commands"
	"github.com/xnyo/fokabot/internal/kvstore"
	"github.com/xnyo/fokabot/internal/osu"
)

// npRegex parses the /np action in every shape the client produces:
// beatmap-id vs set-id prefix, optional game-mode tag, optional mods,
// optional "|keys|" suffix, optional "~Relax~" suffix.
var npRegex = regexp.MustCompile(
	`^\x01ACTION is ` +
		`(?:(?:playing)|(?:listening to)|(?:watching)) ` +
		`\[https://osu\.ppy\.sh/(b|s)/(\d+) (.+)\]` +
		`(?: <(.+)>)?` +
		`((?: [+\-]\w+)*)` +
		`(?: \|\w+\|)?` +
		`( ~Relax~)?` +
		`\x01$`,
)

// PP registers the now-playing action and its follow-up commands.
func PP(b *bot.Bot) error {
	// ppReply renders the score-service response for the np context.
	ppReply := func(ctx context.Context, info *kvstore.NpInfo) ([]string, error) {
		resp, err := b.Lets.GetPP(ctx, info.BeatmapID, info.GameMode, info.Mods, info.Accuracy)
		if err != nil {
			return nil, err
		}
		return []string{resp.String()}, nil
	}

	// withNp loads the sender's np context, lets the handler mutate it,
	// stores it back, and answers with the pp line.
	withNp := func(mutate func(r *commands.Request, info *kvstore.NpInfo) error) commands.HandlerFunc {
		return func(ctx context.Context, r *commands.Request) ([]string, error) {
			info, err := b.Store.GetNp(ctx, r.Sender.APIIdentifier)
			if err != nil {
				return nil, err
			}
			if info == nil {
				return []string{"Please send me a song with /np first."}, nil
			}
			if err := mutate(r, info); err != nil {
				return nil, err
			}
			if err := b.Store.SetNp(ctx, r.Sender.APIIdentifier, *info); err != nil {
				return nil, err
			}
			return ppReply(ctx, info)
		}
	}

	np := func(ctx context.Context, r *commands.Request) ([]string, error) {
		m := npRegex.FindStringSubmatch(r.Message)
		if m == nil {
			b.Logger.Warn("np action did not match pattern", "message", r.Message)
			return nil, nil
		}
		idKind, idStr, _, modeTag, modsStr, relax := m[1], m[2], m[3], m[4], m[5], m[6]
		if idKind == "s" {
			// Set-id links only appear for ancient maps the service cannot
			// compute.
			return []string{"The map is too old"}, nil
		}
		beatmapID, err := strconv.Atoi(idStr)
		if err != nil {
			return nil, nil
		}
		mods := osu.ModsFromNP(modsStr)
		if relax != "" {
			mods |= osu.ModRelax
		}
		info := kvstore.NpInfo{
			BeatmapID: beatmapID,
			GameMode:  osu.GameModeFromNP(modeTag),
			Mods:      mods,
		}
		if err := b.Store.SetNp(ctx, r.Sender.APIIdentifier, info); err != nil {
			return nil, err
		}
		return ppReply(ctx, &info)
	}
	for _, name := range []string{"is playing", "is listening to", "is watching"} {
		b.Commands.MustRegister(&commands.Spec{
			Name:    name,
			Kind:    commands.KindAction,
			Filters: []commands.Filter{commands.PrivateOnly},
			Handler: np,
		})
	}

	b.Commands.MustRegister(&commands.Spec{
		Name:    "with",
		Filters: []commands.Filter{commands.PrivateOnly},
		Args: []commands.Arg{
			{Key: "mods", Schema: commands.Use(func(s string) (osu.Mod, error) {
				if strings.EqualFold(s, "relax") {
					return osu.ModRelax, nil
				}
				return osu.ModsFromShort(s), nil
			})},
		},
		Handler: withNp(func(r *commands.Request, info *kvstore.NpInfo) error {
			info.Mods = r.Args["mods"].(osu.Mod)
			return nil
		}),
	})

	b.Commands.MustRegister(&commands.Spec{
		Name:    "acc",
		Filters: []commands.Filter{commands.PrivateOnly},
		Args: []commands.Arg{
			{Key: "accuracy", Schema: commands.Use(func(s string) (float64, error) {
				acc, err := strconv.ParseFloat(s, 64)
				if err != nil || acc <= 0 || acc > 100 {
					return 0, fmt.Errorf("accuracy must be between 0 and 100")
				}
				return float64(int(acc*100+0.5)) / 100, nil
			})},
		},
		Handler: withNp(func(r *commands.Request, info *kvstore.NpInfo) error {
			acc := r.Float("accuracy")
			switch acc {
			case 100, 99, 98, 95:
				// The standard steps are pre-computed by the service.
				info.Accuracy = 0
			default:
				info.Accuracy = acc
			}
			return nil
		}),
	})

	b.Commands.MustRegister(&commands.Spec{
		Name:    "mode",
		Filters: []commands.Filter{commands.PrivateOnly},
		Args: []commands.Arg{
			{
				Key:     "game_mode",
				Schema:  commands.OneOf("std", "taiko", "ctb", "mania"),
				Example: "std/taiko/ctb/mania",
			},
		},
		Handler: withNp(func(r *commands.Request, info *kvstore.NpInfo) error {
			info.GameMode = osu.GameModeFromDB(r.String("game_mode"))
			return nil
		}),
	})

	b.Commands.MustRegister(&commands.Spec{
		Name: "last",
		Handler: func(ctx context.Context, r *commands.Request) ([]string, error) {
			reply, err := LastScoreMessage(ctx, b, r.Sender.Username, r.PM)
			if err != nil {
				return nil, err
			}
			return []string{reply}, nil
		},
	})
	return nil
}

// LastScoreMessage renders the "last score" line for a user. Shared with
// the internal HTTP API's last endpoint.
func LastScoreMessage(ctx context.Context, b *bot.Bot, username string, pm bool) (string, error) {
	scores, err := b.Ripple.RecentScores(ctx, username)
	if err != nil {
		return "", err
	}
	if len(scores) == 0 {
		return "You have no scores :(", nil
	}
	score := scores[0]

	var msg strings.Builder
	if !pm {
		fmt.Fprintf(&msg, "%s | ", username)
	}
	fmt.Fprintf(&msg, "[http://osu.ppy.sh/b/%d %s]", score.Beatmap.BeatmapID, score.Beatmap.SongName)
	fmt.Fprintf(&msg, " <%s>", osu.GameMode(score.PlayMode))
	if score.Mods != 0 {
		fmt.Fprintf(&msg, " +%s", osu.Mod(score.Mods))
	}
	fmt.Fprintf(&msg, " (%.2f%%, %s)", score.Accuracy, score.Rank)
	if score.FullCombo {
		msg.WriteString(" (FC)")
	} else {
		fmt.Fprintf(&msg, " | %dx/%dx", score.MaxCombo, score.Beatmap.MaxCombo)
	}
	fmt.Fprintf(&msg, " | %.2fpp", score.PP)
	stars := 0.0
	for _, v := range score.Beatmap.Difficulty2 {
		if v > 0 {
			stars = v
			break
		}
	}
	fmt.Fprintf(&msg, " | %.2f★", stars)
	return msg.String(), nil
}
