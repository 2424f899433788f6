package plugins

import (
	"context"
	"fmt"
	"time"

	"github.com/xnyo/fokabot/internal/bot"
	"github.com/xnyo/fokabot/internal/commands"
	"github.com/xnyo/fokabot/internal/osu"
)

// Mod registers the moderation commands.
func Mod(b *bot.Bot) error {
	b.Commands.MustRegister(&commands.Spec{
		Name:       "moderated",
		Privileges: osu.PrivilegeAdminChatMod,
		Filters:    []commands.Filter{commands.PublicOnly},
		Args: []commands.Arg{
			{
				Key:      "on",
				Schema:   commands.Use(func(s string) (bool, error) { return s == "on", nil }),
				Default:  true,
				Optional: true,
			},
		},
		Handler: func(ctx context.Context, r *commands.Request) ([]string, error) {
			on := r.Bool("on")
			if err := b.Bancho.Moderated(ctx, r.Recipient.Name, on); err != nil {
				return nil, err
			}
			state := "now"
			if !on {
				state = "no longer"
			}
			return []string{fmt.Sprintf("This channel is %s in moderated mode", state)}, nil
		},
	})

	b.Commands.MustRegister(&commands.Spec{
		Name:       "kick",
		Privileges: osu.PrivilegeAdminKickUsers,
		Args:       []commands.Arg{{Key: "username", Schema: commands.NonEmptyString}},
		Handler: func(ctx context.Context, r *commands.Request) ([]string, error) {
			username := r.String("username")
			client, err := resolveClient(ctx, b, username, false)
			if err != nil {
				return nil, err
			}
			kicked, err := b.Bancho.Kick(ctx, client.APIIdentifier)
			if err != nil {
				return nil, err
			}
			if !kicked {
				return []string{fmt.Sprintf("%s is not connected to bancho right now.", username)}, nil
			}
			return []string{fmt.Sprintf("%s has been kicked from the server.", username)}, nil
		},
	})

	b.Commands.MustRegister(&commands.Spec{
		Name:       "rtx",
		Privileges: osu.PrivilegeAdminChatMod,
		Args: []commands.Arg{
			{Key: "username", Schema: commands.NonEmptyString},
			{Key: "the_message", Schema: commands.NonEmptyString, Rest: true},
		},
		Handler: func(ctx context.Context, r *commands.Request) ([]string, error) {
			client, err := resolveClient(ctx, b, r.String("username"), true)
			if err != nil {
				return nil, err
			}
			sent, err := b.Bancho.RTX(ctx, client.APIIdentifier, r.String("the_message"))
			if err != nil {
				return nil, err
			}
			if !sent {
				return []string{"No such user."}, nil
			}
			return []string{":ok_hand:"}, nil
		},
	})

	// ban/unban/restrict all edit the same allowed flag.
	setAllowed := func(name string, allowed int, done string) {
		b.Commands.MustRegister(&commands.Spec{
			Name:       name,
			Privileges: osu.PrivilegeAdminBanUsers,
			Args:       []commands.Arg{{Key: "username", Schema: commands.NonEmptyString}},
			Handler: func(ctx context.Context, r *commands.Request) ([]string, error) {
				username := r.String("username")
				userID, err := resolveUserID(ctx, b, username)
				if err != nil {
					return nil, err
				}
				if err := b.Ripple.SetAllowed(ctx, userID, allowed); err != nil {
					return nil, err
				}
				return []string{fmt.Sprintf("(%s)[https://ripple.moe/u/%d] has been %s!", username, userID, done)}, nil
			},
		})
	}
	setAllowed("ban", 0, "banned")
	setAllowed("unban", 1, "unbanned")
	setAllowed("restrict", 2, "restricted")

	b.Commands.MustRegister(&commands.Spec{
		Name:       "silence",
		Privileges: osu.PrivilegeAdminSilenceUsers,
		Args: []commands.Arg{
			{Key: "username", Schema: commands.NonEmptyString},
			{Key: "how_many", Schema: commands.PositiveInt},
			{Key: "unit", Schema: commands.Use(osu.ParseSilenceUnit), Example: "s/m/h/d"},
			{Key: "reason", Schema: commands.NonEmptyString, Rest: true},
		},
		Handler: func(ctx context.Context, r *commands.Request) ([]string, error) {
			username := r.String("username")
			userID, err := resolveUserID(ctx, b, username)
			if err != nil {
				return nil, err
			}
			unit := r.Args["unit"].(osu.SilenceUnit)
			seconds := r.Int("how_many") * unit.Seconds()
			reason := r.String("reason")
			end := time.Now().UTC().Add(time.Duration(seconds) * time.Second)
			if err := b.Ripple.Silence(ctx, userID, end, reason); err != nil {
				return nil, err
			}
			return []string{fmt.Sprintf(
				"%s has been silenced for %d seconds for the following reason: '%s'",
				username, seconds, reason,
			)}, nil
		},
	})

	b.Commands.MustRegister(&commands.Spec{
		Name:       "removesilence",
		Privileges: osu.PrivilegeAdminSilenceUsers,
		Args:       []commands.Arg{{Key: "username", Schema: commands.NonEmptyString}},
		Handler: func(ctx context.Context, r *commands.Request) ([]string, error) {
			username := r.String("username")
			userID, err := resolveUserID(ctx, b, username)
			if err != nil {
				return nil, err
			}
			if err := b.Ripple.RemoveSilence(ctx, userID); err != nil {
				return nil, err
			}
			return []string{fmt.Sprintf("%s's silence removed", username)}, nil
		},
	})
	return nil
}
