// Package commands implements the command-dispatch engine: the registry
// mapping literal names, aliases, action names and regex patterns to
// handlers, the declarative argument binder, and the middleware runtime that
// turns handler results and failures into chat replies.
package commands

import (
	"context"
	"strings"

	"github.com/xnyo/fokabot/internal/osu"
)

// User describes the sender of an incoming chat message.
type User struct {
	ID            int
	Username      string
	APIIdentifier string
	Type          osu.ClientType
	Privileges    osu.Privileges
}

// Channel describes the recipient of an incoming chat message. DisplayName
// collapses per-instance channels: every "#multi_<id>" has display name
// "#multiplayer", every "#spect_<id>" has "#spectator".
type Channel struct {
	Name        string
	DisplayName string
}

// Request is the typed context a handler receives: the decoded incoming
// message plus everything the dispatch pipeline derived from it.
type Request struct {
	Sender    User
	Recipient Channel
	PM        bool
	Message   string

	// Tokens are the whitespace tokens following the matched command name.
	Tokens []string
	// Name is the literal name or alias the sender actually typed, used for
	// help rendering. Empty for regex handlers.
	Name string
	// Args holds the validated argument values after binding.
	Args map[string]any
	// RegexMatch holds the submatches for regex handlers.
	RegexMatch []string
}

// ReplyTarget is where handler replies go: the sender for private messages,
// the channel otherwise.
func (r *Request) ReplyTarget() string {
	if r.PM {
		return r.Sender.Username
	}
	return r.Recipient.Name
}

// String returns the named bound argument as a string.
func (r *Request) String(key string) string {
	s, _ := r.Args[key].(string)
	return s
}

// Int returns the named bound argument as an int.
func (r *Request) Int(key string) int {
	n, _ := r.Args[key].(int)
	return n
}

// Bool returns the named bound argument as a bool.
func (r *Request) Bool(key string) bool {
	b, _ := r.Args[key].(bool)
	return b
}

// Float returns the named bound argument as a float64.
func (r *Request) Float(key string) float64 {
	f, _ := r.Args[key].(float64)
	return f
}

// HandlerFunc is a leaf command handler. It returns zero or more reply lines
// for the derived recipient; a nil slice with nil error means silence.
type HandlerFunc func(ctx context.Context, r *Request) ([]string, error)

// Filter is a context predicate; a rejecting filter silences the command.
type Filter func(r *Request) bool

// PrivateOnly accepts only private messages.
func PrivateOnly(r *Request) bool { return r.PM }

// PublicOnly accepts only channel messages.
func PublicOnly(r *Request) bool { return !r.PM }

// MultiplayerOnly accepts only messages in multiplayer match channels.
func MultiplayerOnly(r *Request) bool {
	return !r.PM && r.Recipient.DisplayName == "#multiplayer"
}

// SpectatorOnly accepts only messages in spectator channels.
func SpectatorOnly(r *Request) bool {
	return !r.PM && r.Recipient.DisplayName == "#spectator"
}

// MatchID extracts the match id from a "#multi_<id>" channel name. ok is
// false when the name is not a multiplayer channel.
func MatchID(channelName string) (int, bool) {
	rest, found := strings.CutPrefix(channelName, "#multi_")
	if !found {
		return 0, false
	}
	id := 0
	for _, c := range rest {
		if c < '0' || c > '9' {
			return 0, false
		}
		id = id*10 + int(c-'0')
	}
	if rest == "" {
		return 0, false
	}
	return id, true
}
