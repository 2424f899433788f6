package plugins

import (
	"context"
	"fmt"
	"time"

	"github.com/xnyo/fokabot/internal/bot"
	"github.com/xnyo/fokabot/internal/commands"
	"github.com/xnyo/fokabot/internal/osu"
)

// Version is the bot version reported by !system info.
const Version = "2.0.0"

// System registers the server-operations commands.
func System(b *bot.Bot) error {
	b.Commands.MustRegister(&commands.Spec{
		Name:       "system info",
		Privileges: osu.PrivilegeAdminManageServers,
		Handler: func(ctx context.Context, r *commands.Request) ([]string, error) {
			info, err := b.Bancho.GetSystemInfo(ctx)
			if err != nil {
				return nil, err
			}
			uptime := time.Duration(info.UptimeSeconds) * time.Second
			return []string{
				fmt.Sprintf(
					"Running delta v%s under Python %s (%s)",
					info.DeltaVersion, info.PythonVersion, info.InterpreterVersion,
				),
				fmt.Sprintf("Bancho Uptime: %s", uptime),
				fmt.Sprintf(
					"Running FokaBot v%s. Scores server: %s, v%s",
					Version, info.ScoresServer.Type, info.ScoresServer.Version,
				),
			}, nil
		},
	})

	b.Commands.MustRegister(&commands.Spec{
		Name:       "system shutdown",
		Privileges: osu.PrivilegeAdminManageServers,
		Handler: func(ctx context.Context, r *commands.Request) ([]string, error) {
			if err := b.Bancho.Shutdown(ctx); err != nil {
				return nil, err
			}
			return []string{"The server is shutting down gracefully."}, nil
		},
	})

	b.Commands.MustRegister(&commands.Spec{
		Name:       "system recycle",
		Privileges: osu.PrivilegeAdminManageServers,
		Handler: func(ctx context.Context, r *commands.Request) ([]string, error) {
			if err := b.Bancho.Recycle(ctx); err != nil {
				return nil, err
			}
			return []string{"The server is recycling itself."}, nil
		},
	})

	b.Commands.MustRegister(&commands.Spec{
		Name:       "system privcache purge",
		Privileges: osu.PrivilegeAdminManageServers,
		Handler: func(ctx context.Context, r *commands.Request) ([]string, error) {
			removed := b.PrivCache.Purge()
			return []string{fmt.Sprintf("Purged %d expired privilege cache entries.", removed)}, nil
		},
	})
	return nil
}
