package commands

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/xnyo/fokabot/internal/osu"
)

// ActionSentinel prefixes emote-style messages from the client.
const ActionSentinel = "\x01ACTION "

// Kind is the matching strategy of a registration.
type Kind int

const (
	// KindCommand matches "<prefix><name> ...".
	KindCommand Kind = iota
	// KindAction matches "\x01ACTION <name> ...".
	KindAction
	// KindRegex matches the whole message body against a pattern.
	KindRegex
)

// Spec is one immutable command registration.
type Spec struct {
	// Name is the canonical literal name; multi-word names ("mp make") are
	// matched as the longest token prefix. Unused for regex registrations.
	Name    string
	Aliases []string
	Kind    Kind

	// Pattern and Pre apply to KindRegex only. Pre gates whether the pattern
	// is even tried for a given message.
	Pattern *regexp.Regexp
	Pre     func(r *Request) bool

	Args       []Arg
	Filters    []Filter
	Privileges osu.Privileges
	Handler    HandlerFunc

	pipeline HandlerFunc
}

type trieNode struct {
	children map[string]*trieNode
	spec     *Spec
	typed    string // the name or alias this terminal was registered under
}

func newTrieNode() *trieNode {
	return &trieNode{children: make(map[string]*trieNode)}
}

func (n *trieNode) insert(name string, spec *Spec) error {
	cur := n
	for _, tok := range strings.Fields(strings.ToLower(name)) {
		next, ok := cur.children[tok]
		if !ok {
			next = newTrieNode()
			cur.children[tok] = next
		}
		cur = next
	}
	if cur.spec != nil {
		return fmt.Errorf("duplicate command name %q", name)
	}
	cur.spec = spec
	cur.typed = strings.ToLower(name)
	return nil
}

// lookup walks the trie over the message tokens and returns the deepest
// registered spec along with the tokens that follow the matched name.
func (n *trieNode) lookup(tokens []string) (*Spec, string, []string) {
	cur := n
	var spec *Spec
	var typed string
	rest := tokens
	for i, tok := range tokens {
		next, ok := cur.children[strings.ToLower(tok)]
		if !ok {
			break
		}
		cur = next
		if cur.spec != nil {
			spec = cur.spec
			typed = cur.typed
			rest = tokens[i+1:]
		}
	}
	if spec == nil {
		return nil, "", nil
	}
	return spec, typed, rest
}

// Registry maps message bodies to handlers. Registration happens at plugin
// load and is append-only afterwards; a message matches at most one handler,
// with literal and action lookup taking precedence over regex patterns.
type Registry struct {
	logger *slog.Logger
	prefix string

	commands *trieNode
	actions  *trieNode
	regexes  []*Spec
	names    map[string]struct{}
}

// NewRegistry creates a registry with the given command prefix ("!" by
// convention).
func NewRegistry(prefix string, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	if prefix == "" {
		prefix = "!"
	}
	return &Registry{
		logger:   logger,
		prefix:   prefix,
		commands: newTrieNode(),
		actions:  newTrieNode(),
		names:    make(map[string]struct{}),
	}
}

// Prefix returns the configured command prefix.
func (g *Registry) Prefix() string { return g.prefix }

// Register validates the spec, compiles its middleware pipeline and makes it
// matchable. Canonical names must be unique; each alias must resolve to
// exactly one canonical name.
func (g *Registry) Register(spec *Spec) error {
	if spec.Handler == nil {
		return fmt.Errorf("command %q has no handler", spec.Name)
	}
	if err := validateArgSpecs(spec.Args); err != nil {
		return fmt.Errorf("command %q: %w", spec.Name, err)
	}
	spec.pipeline = g.compile(spec)

	if spec.Kind == KindRegex {
		if spec.Pattern == nil {
			return fmt.Errorf("regex command with nil pattern")
		}
		g.regexes = append(g.regexes, spec)
		return nil
	}

	if spec.Name == "" {
		return fmt.Errorf("command with empty name")
	}
	canonical := strings.ToLower(spec.Name)
	if _, dup := g.names[canonical]; dup {
		return fmt.Errorf("duplicate command name %q", spec.Name)
	}
	root := g.commands
	if spec.Kind == KindAction {
		root = g.actions
	}
	if err := root.insert(spec.Name, spec); err != nil {
		return err
	}
	for _, alias := range spec.Aliases {
		if err := root.insert(alias, spec); err != nil {
			return err
		}
	}
	g.names[canonical] = struct{}{}
	return nil
}

// MustRegister is Register for plugin init paths, where a bad registration
// is a programming error.
func (g *Registry) MustRegister(spec *Spec) {
	if err := g.Register(spec); err != nil {
		panic(err)
	}
}

// Dispatch routes one incoming message. It returns the reply lines and
// whether any handler matched.
func (g *Registry) Dispatch(ctx context.Context, r *Request) ([]string, bool) {
	body := r.Message

	if rest, ok := strings.CutPrefix(body, g.prefix); ok {
		if spec, typed, tokens := g.commands.lookup(strings.Fields(rest)); spec != nil {
			r.Name, r.Tokens = typed, tokens
			return g.invoke(ctx, spec, r), true
		}
	} else if rest, ok := strings.CutPrefix(body, ActionSentinel); ok {
		if spec, typed, tokens := g.actions.lookup(strings.Fields(rest)); spec != nil {
			r.Name, r.Tokens = typed, tokens
			return g.invoke(ctx, spec, r), true
		}
	}

	for _, spec := range g.regexes {
		if spec.Pre != nil && !spec.Pre(r) {
			continue
		}
		m := spec.Pattern.FindStringSubmatch(body)
		if m == nil {
			continue
		}
		r.RegexMatch = m
		return g.invoke(ctx, spec, r), true
	}
	return nil, false
}

func (g *Registry) invoke(ctx context.Context, spec *Spec, r *Request) []string {
	replies, err := spec.pipeline(ctx, r)
	if err != nil {
		// The errors middleware translates every expected failure; anything
		// left is a bug in the pipeline itself.
		g.logger.Error("command pipeline leaked an error", "command", spec.Name, "error", err)
		return nil
	}
	return replies
}
