package plugins

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/xnyo/fokabot/internal/bot"
	"github.com/xnyo/fokabot/internal/commands"
)

// General registers the always-on commands: !roll and !help.
func General(b *bot.Bot) error {
	b.Commands.MustRegister(&commands.Spec{
		Name: "roll",
		Args: []commands.Arg{
			{Key: "number", Schema: commands.PositiveInt, Default: 100, Optional: true},
		},
		Handler: func(ctx context.Context, r *commands.Request) ([]string, error) {
			value := rand.Intn(r.Int("number"))
			// Rolls in tournament rooms also feed the match state machine.
			if !r.PM {
				if matchID, ok := commands.MatchID(r.Recipient.Name); ok && b.Tournament.Tracks(matchID) {
					b.Tournament.HandleRoll(ctx, matchID, r.Sender.ID, value)
				}
			}
			return []string{fmt.Sprintf("%s rolls %d points!", r.Sender.Username, value)}, nil
		},
	})

	b.Commands.MustRegister(&commands.Spec{
		Name: "help",
		Handler: func(ctx context.Context, r *commands.Request) ([]string, error) {
			return []string{"Click (here)[https://ripple.moe/index.php?p=16&id=4] for FokaBot's full command list"}, nil
		},
	})
	return nil
}
