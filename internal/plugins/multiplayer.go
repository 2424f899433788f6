package plugins

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/xnyo/fokabot/internal/backend"
	"github.com/xnyo/fokabot/internal/bancho"
	"github.com/xnyo/fokabot/internal/bot"
	"github.com/xnyo/fokabot/internal/commands"
	"github.com/xnyo/fokabot/internal/osu"
)

// Multiplayer registers the staff match-control commands.
func Multiplayer(b *bot.Bot) error {
	staff := osu.PrivilegeUserTournamentStaff
	mpOnly := []commands.Filter{commands.MultiplayerOnly}

	// Delayed-start countdowns, one per match, cancellable by !mp abort.
	var timersMu sync.Mutex
	timers := make(map[int]context.CancelFunc)

	b.Commands.MustRegister(&commands.Spec{
		Name:       "mp make",
		Privileges: staff,
		Args: []commands.Arg{
			{Key: "name", Schema: commands.NonEmptyString},
			{Key: "password", Schema: commands.StringValue, Optional: true},
		},
		Handler: func(ctx context.Context, r *commands.Request) ([]string, error) {
			password, _ := r.Args["password"].(string)
			matchID, err := b.Bancho.CreateMatch(ctx, r.String("name"), password, 0, osu.ModeStandard, bancho.Beatmap{
				MD5:      "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
				SongName: "No song",
			})
			if err != nil {
				return nil, err
			}
			return []string{fmt.Sprintf("Multiplayer match #%d created!", matchID)}, nil
		},
	})

	b.Commands.MustRegister(&commands.Spec{
		Name:       "mp join",
		Privileges: staff,
		Args:       []commands.Arg{{Key: "match_id", Schema: commands.PositiveInt}},
		Handler: func(ctx context.Context, r *commands.Request) ([]string, error) {
			matchID := r.Int("match_id")
			if err := b.Bancho.JoinMatch(ctx, r.Sender.APIIdentifier, matchID); err != nil {
				return nil, err
			}
			return []string{fmt.Sprintf("Making %s join match #%d", r.Sender.APIIdentifier, matchID)}, nil
		},
	})

	b.Commands.MustRegister(&commands.Spec{
		Name:       "mp close",
		Privileges: staff,
		Filters:    mpOnly,
		Handler: func(ctx context.Context, r *commands.Request) ([]string, error) {
			return nil, b.Bancho.DeleteMatch(ctx, matchIDFromRequest(r))
		},
	})

	b.Commands.MustRegister(&commands.Spec{
		Name:       "mp size",
		Privileges: staff,
		Filters:    mpOnly,
		Args: []commands.Arg{
			{Key: "slots", Schema: commands.IntRange(2, 16)},
		},
		Handler: func(ctx context.Context, r *commands.Request) ([]string, error) {
			slots := r.Int("slots")
			locks := make([]bancho.LockSlot, 16)
			for i := range locks {
				locks[i] = bancho.LockSlot{ID: i, Locked: i > slots-1}
			}
			if err := b.Bancho.Lock(ctx, matchIDFromRequest(r), locks); err != nil {
				return nil, err
			}
			return []string{"Match size changed"}, nil
		},
	})

	b.Commands.MustRegister(&commands.Spec{
		Name:       "mp move",
		Privileges: staff,
		Filters:    mpOnly,
		Args: []commands.Arg{
			{Key: "username", Schema: commands.NonEmptyString},
			{Key: "slot", Schema: commands.IntRange(0, 15)},
		},
		Handler: func(ctx context.Context, r *commands.Request) ([]string, error) {
			matchID := matchIDFromRequest(r)
			client, err := resolveMatchClient(ctx, b, r.String("username"), matchID)
			if err != nil {
				return nil, err
			}
			slot := r.Int("slot")
			if err := b.Bancho.MoveUser(ctx, matchID, client.APIIdentifier, slot); err != nil {
				return nil, err
			}
			return []string{fmt.Sprintf("%s moved to slot #%d", r.String("username"), slot)}, nil
		},
	})

	b.Commands.MustRegister(&commands.Spec{
		Name:       "mp host",
		Privileges: staff,
		Filters:    mpOnly,
		Args:       []commands.Arg{{Key: "username", Schema: commands.NonEmptyString}},
		Handler: func(ctx context.Context, r *commands.Request) ([]string, error) {
			matchID := matchIDFromRequest(r)
			client, err := resolveMatchClient(ctx, b, r.String("username"), matchID)
			if err != nil {
				return nil, err
			}
			if err := b.Bancho.TransferHost(ctx, matchID, client.APIIdentifier); err != nil {
				return nil, err
			}
			return []string{fmt.Sprintf("%s is now the host of this match.", r.String("username"))}, nil
		},
	})

	b.Commands.MustRegister(&commands.Spec{
		Name:       "mp clearhost",
		Privileges: staff,
		Filters:    mpOnly,
		Handler: func(ctx context.Context, r *commands.Request) ([]string, error) {
			if err := b.Bancho.ClearHost(ctx, matchIDFromRequest(r)); err != nil {
				return nil, err
			}
			return []string{"Host removed."}, nil
		},
	})

	b.Commands.MustRegister(&commands.Spec{
		Name:       "mp start",
		Privileges: staff,
		Filters:    mpOnly,
		Args: []commands.Arg{
			{Key: "seconds", Schema: commands.IntRange(0, 300), Default: 0, Optional: true},
			{Key: "force", Schema: commands.OneOf("force"), Default: "", Optional: true},
		},
		Handler: func(ctx context.Context, r *commands.Request) ([]string, error) {
			matchID := matchIDFromRequest(r)
			seconds := r.Int("seconds")
			force := r.String("force") == "force"
			channel := r.Recipient.Name

			timersMu.Lock()
			if _, running := timers[matchID]; running {
				timersMu.Unlock()
				return []string{"This match is starting soon."}, nil
			}
			timerCtx, cancel := context.WithCancel(context.Background())
			timers[matchID] = cancel
			timersMu.Unlock()

			go func() {
				defer func() {
					timersMu.Lock()
					delete(timers, matchID)
					timersMu.Unlock()
				}()
				for left := seconds; left > 0; left-- {
					if left%10 == 0 || left < 10 {
						b.SendMessage(fmt.Sprintf("Match starts in %d seconds.", left), channel)
					}
					select {
					case <-timerCtx.Done():
						b.SendMessage("Match timer start cancelled!", channel)
						return
					case <-time.After(time.Second):
					}
				}
				startCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
				defer done()
				err := b.Bancho.StartMatch(startCtx, matchID, force)
				var respErr *backend.ResponseError
				switch {
				case err == nil:
					b.SendMessage("Match started!", channel)
				case errors.As(err, &respErr) && respErr.Code == 409:
					b.SendMessage(
						"Cannot start the match. There may be not enough players ready, invalid teams or the match "+
							"may already be in progress. Use '!mp start x force' to start the match anyways.",
						channel,
					)
				case errors.As(err, &respErr):
					b.SendMessage(respErr.UserMessage(), channel)
				default:
					b.Logger.Error("match start failed", "match", matchID, "error", err)
				}
			}()

			if seconds > 0 {
				return []string{fmt.Sprintf(
					"Match starts in %d seconds. The match has been locked. "+
						"Please don't leave the match during the countdown "+
						"or you might receive a penality.", seconds,
				)}, nil
			}
			return nil, nil
		},
	})

	b.Commands.MustRegister(&commands.Spec{
		Name:       "mp abort",
		Privileges: staff,
		Filters:    mpOnly,
		Handler: func(ctx context.Context, r *commands.Request) ([]string, error) {
			matchID := matchIDFromRequest(r)
			timersMu.Lock()
			cancel, hadTimer := timers[matchID]
			timersMu.Unlock()
			if hadTimer {
				cancel()
			}
			err := b.Bancho.AbortMatch(ctx, matchID)
			var respErr *backend.ResponseError
			if errors.As(err, &respErr) && respErr.Code == 409 && hadTimer {
				// Match not in progress is fine when only a timer was armed.
				err = nil
			}
			if err != nil {
				return nil, err
			}
			return []string{"Match aborted!"}, nil
		},
	})

	b.Commands.MustRegister(&commands.Spec{
		Name:       "mp invite",
		Privileges: staff,
		Filters:    mpOnly,
		Args:       []commands.Arg{{Key: "username", Schema: commands.NonEmptyString}},
		Handler: func(ctx context.Context, r *commands.Request) ([]string, error) {
			username := r.String("username")
			userID, err := resolveUserID(ctx, b, username)
			if err != nil {
				return nil, err
			}
			if err := b.Bancho.Invite(ctx, matchIDFromRequest(r), userID); err != nil {
				return nil, err
			}
			return []string{fmt.Sprintf("%s has been invited to this match", username)}, nil
		},
	})

	b.Commands.MustRegister(&commands.Spec{
		Name:       "mp kick",
		Privileges: staff,
		Filters:    mpOnly,
		Args:       []commands.Arg{{Key: "username", Schema: commands.NonEmptyString}},
		Handler: func(ctx context.Context, r *commands.Request) ([]string, error) {
			matchID := matchIDFromRequest(r)
			client, err := resolveMatchClient(ctx, b, r.String("username"), matchID)
			if err != nil {
				return nil, err
			}
			if err := b.Bancho.MatchKick(ctx, matchID, client.APIIdentifier); err != nil {
				return nil, err
			}
			return []string{fmt.Sprintf("%s has been kicked from the match", r.String("username"))}, nil
		},
	})
	return nil
}
