package plugins

import (
	"context"
	"fmt"

	"github.com/xnyo/fokabot/internal/bancho"
	"github.com/xnyo/fokabot/internal/bot"
	"github.com/xnyo/fokabot/internal/commands"
	"github.com/xnyo/fokabot/internal/osu"
)

// resolveUserID maps a username to its user id, raising a user-facing error
// for unknown users.
func resolveUserID(ctx context.Context, b *bot.Bot, username string) (int, error) {
	userID, err := b.Ripple.WhatID(ctx, username)
	if err != nil {
		return 0, err
	}
	if userID == 0 {
		return 0, commands.GenericError(fmt.Sprintf("No such user (%s)", username))
	}
	return userID, nil
}

// resolveClient maps a username to a connected client, raising user-facing
// errors along the way.
func resolveClient(ctx context.Context, b *bot.Bot, username string, gameOnly bool) (*bancho.ConnectedClient, error) {
	userID, err := b.Ripple.WhatID(ctx, username)
	if err != nil {
		return nil, err
	}
	if userID == 0 {
		return nil, commands.GenericError("No such user.")
	}
	client, err := b.Bancho.GetClient(ctx, userID, gameOnly)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, commands.GenericError("This user is not connected right now")
	}
	return client, nil
}

// resolveMatchClient finds a user inside one multiplayer match.
func resolveMatchClient(ctx context.Context, b *bot.Bot, username string, matchID int) (*bancho.ConnectedClient, error) {
	info, err := b.Bancho.GetMatchInfo(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, commands.GenericError("No such multiplayer match.")
	}
	wanted := osu.SafeUsername(username)
	for _, slot := range info.Slots {
		if slot.User != nil && osu.SafeUsername(slot.User.Username) == wanted {
			return slot.User, nil
		}
	}
	return nil, commands.GenericError("That user is not in this match")
}

// matchIDFromRequest extracts the match id of the channel the command was
// typed in. Valid only behind the MultiplayerOnly filter.
func matchIDFromRequest(r *commands.Request) int {
	id, _ := commands.MatchID(r.Recipient.Name)
	return id
}
