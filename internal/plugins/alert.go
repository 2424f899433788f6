package plugins

import (
	"context"

	"github.com/xnyo/fokabot/internal/bot"
	"github.com/xnyo/fokabot/internal/commands"
	"github.com/xnyo/fokabot/internal/osu"
)

// Alert registers the admin notification commands.
func Alert(b *bot.Bot) error {
	b.Commands.MustRegister(&commands.Spec{
		Name:       "alert",
		Privileges: osu.PrivilegeAdminSendAlerts,
		Args:       []commands.Arg{{Key: "the_message", Schema: commands.NonEmptyString, Rest: true}},
		Handler: func(ctx context.Context, r *commands.Request) ([]string, error) {
			return nil, b.Bancho.MassAlert(ctx, r.String("the_message"))
		},
	})

	b.Commands.MustRegister(&commands.Spec{
		Name:       "alertuser",
		Privileges: osu.PrivilegeAdminSendAlerts,
		Args: []commands.Arg{
			{Key: "username", Schema: commands.NonEmptyString},
			{Key: "the_message", Schema: commands.NonEmptyString, Rest: true},
		},
		Handler: func(ctx context.Context, r *commands.Request) ([]string, error) {
			client, err := resolveClient(ctx, b, r.String("username"), false)
			if err != nil {
				return nil, err
			}
			return nil, b.Bancho.Alert(ctx, client.APIIdentifier, r.String("the_message"))
		},
	})
	return nil
}
