package plugins

import (
	"context"
	"fmt"
	"strings"

	"github.com/xnyo/fokabot/internal/bot"
	"github.com/xnyo/fokabot/internal/commands"
)

// FAQ registers the canned-response commands backed by the on-disk store.
func FAQ(b *bot.Bot) error {
	b.Commands.MustRegister(&commands.Spec{
		Name: "faq",
		Args: []commands.Arg{{Key: "topic", Schema: commands.NonEmptyString}},
		Handler: func(ctx context.Context, r *commands.Request) ([]string, error) {
			response, ok := b.FAQ.Get(r.String("topic"))
			if !ok {
				return []string{"No such FAQ topic."}, nil
			}
			return []string{response}, nil
		},
	})

	b.Commands.MustRegister(&commands.Spec{
		Name: "modfaq",
		Args: []commands.Arg{
			{Key: "topic", Schema: commands.NonEmptyString},
			{Key: "new_response", Schema: commands.NonEmptyString, Rest: true},
		},
		Handler: func(ctx context.Context, r *commands.Request) ([]string, error) {
			topic := r.String("topic")
			if err := b.FAQ.Upsert(topic, r.String("new_response")); err != nil {
				return nil, err
			}
			return []string{fmt.Sprintf("FAQ topic '%s' updated!", topic)}, nil
		},
	})

	b.Commands.MustRegister(&commands.Spec{
		Name: "lsfaq",
		Handler: func(ctx context.Context, r *commands.Request) ([]string, error) {
			return []string{"Available FAQ topics: " + strings.Join(b.FAQ.Topics(), ", ")}, nil
		},
	})

	b.Commands.MustRegister(&commands.Spec{
		Name: "delfaq",
		Args: []commands.Arg{{Key: "topic", Schema: commands.NonEmptyString}},
		Handler: func(ctx context.Context, r *commands.Request) ([]string, error) {
			topic := r.String("topic")
			if err := b.FAQ.Delete(topic); err != nil {
				return nil, err
			}
			return []string{fmt.Sprintf("FAQ topic '%s' deleted!", topic)}, nil
		},
	})
	return nil
}
