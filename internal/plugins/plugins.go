// Package plugins holds the leaf command sets. Each plugin is an init
// function that registers its commands and event handlers against the bot
// container; BOT_PLUGINS selects which ones load.
package plugins

import (
	"fmt"

	"github.com/xnyo/fokabot/internal/bot"
)

// InitFunc wires one plugin into the container.
type InitFunc func(b *bot.Bot) error

var registry = map[string]InitFunc{
	"general":     General,
	"faq":         FAQ,
	"alert":       Alert,
	"mod":         Mod,
	"pp":          PP,
	"beatmaps":    Beatmaps,
	"multiplayer": Multiplayer,
	"system":      System,
	"tournament":  Tournament,
}

// Load initializes the named plugins, in order.
func Load(b *bot.Bot, names []string) error {
	for _, name := range names {
		init, ok := registry[name]
		if !ok {
			return fmt.Errorf("unknown plugin %q", name)
		}
		if err := init(b); err != nil {
			return fmt.Errorf("plugin %s: %w", name, err)
		}
		b.Logger.Info("plugin loaded", "plugin", name)
	}
	return nil
}
