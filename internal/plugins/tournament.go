package plugins

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/xnyo/fokabot/internal/bot"
	"github.com/xnyo/fokabot/internal/commands"
	"github.com/xnyo/fokabot/internal/osu"
)

var (
	mapSelectionRegex = regexp.MustCompile(`(?i)^(NM|HD|HR|DT|FM|TB)(\d+)$`)
	confirmationRegex = regexp.MustCompile(`(?i)^(yes|no)$`)
)

// Tournament registers the match-creation command and the in-room regex
// handlers the engine listens on.
func Tournament(b *bot.Bot) error {
	b.Commands.MustRegister(&commands.Spec{
		Name:       "t create",
		Privileges: osu.PrivilegeUserTournamentStaff,
		Handler: func(ctx context.Context, r *commands.Request) ([]string, error) {
			created, err := b.Tournament.CreateMatches(ctx)
			if err != nil {
				return nil, err
			}
			plural := "es have"
			if len(created) == 1 {
				plural = " has"
			}
			return []string{fmt.Sprintf(
				"%d pending match%s been created (ids: %v).",
				len(created), plural, created,
			)}, nil
		},
	})

	b.Commands.MustRegister(&commands.Spec{
		Name: "t humanref",
		Handler: func(ctx context.Context, r *commands.Request) ([]string, error) {
			matchID, ok := commands.MatchID(r.Recipient.Name)
			if !ok || !b.Tournament.Tracks(matchID) {
				return nil, nil
			}
			return []string{"A human referee has been requested and will join as soon as possible."}, nil
		},
	})

	b.Commands.MustRegister(&commands.Spec{
		Kind:    commands.KindRegex,
		Pattern: mapSelectionRegex,
		Pre:     b.TournamentPre,
		Handler: func(ctx context.Context, r *commands.Request) ([]string, error) {
			matchID, _ := commands.MatchID(r.Recipient.Name)
			index, err := strconv.Atoi(r.RegexMatch[2])
			if err != nil {
				return nil, nil
			}
			return b.Tournament.HandleMapSelection(ctx, matchID, r.Sender.ID, r.RegexMatch[1], index), nil
		},
	})

	b.Commands.MustRegister(&commands.Spec{
		Kind:    commands.KindRegex,
		Pattern: confirmationRegex,
		Pre:     b.TournamentPre,
		Handler: func(ctx context.Context, r *commands.Request) ([]string, error) {
			matchID, _ := commands.MatchID(r.Recipient.Name)
			yes := strings.EqualFold(r.RegexMatch[1], "yes")
			return b.Tournament.HandleConfirmation(ctx, matchID, r.Sender.ID, yes), nil
		},
	})
	return nil
}
