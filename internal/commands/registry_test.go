package commands

import (
	"context"
	"regexp"
	"testing"

	"github.com/xnyo/fokabot/internal/osu"
)

func newTestRequest(message string) *Request {
	return &Request{
		Sender:    User{ID: 1, Username: "alice", Privileges: osu.PrivilegeUserAllowed},
		Recipient: Channel{Name: "#osu", DisplayName: "#osu"},
		Message:   message,
	}
}

func echoHandler(reply string) HandlerFunc {
	return func(ctx context.Context, r *Request) ([]string, error) {
		return []string{reply}, nil
	}
}

func TestDispatchLiteralCommand(t *testing.T) {
	g := NewRegistry("!", nil)
	g.MustRegister(&Spec{Name: "hello", Handler: echoHandler("hi there")})

	replies, matched := g.Dispatch(context.Background(), newTestRequest("!hello"))
	if !matched {
		t.Fatal("command did not match")
	}
	if len(replies) != 1 || replies[0] != "hi there" {
		t.Errorf("replies = %v", replies)
	}
}

func TestDispatchMultiWordLongestPrefix(t *testing.T) {
	g := NewRegistry("!", nil)
	g.MustRegister(&Spec{Name: "mp", Handler: echoHandler("mp root")})
	g.MustRegister(&Spec{Name: "mp make", Handler: func(ctx context.Context, r *Request) ([]string, error) {
		if len(r.Tokens) != 1 || r.Tokens[0] != "myroom" {
			t.Errorf("tokens = %v", r.Tokens)
		}
		return []string{"made"}, nil
	}})
	g.MustRegister(&Spec{Name: "system privcache purge", Handler: echoHandler("purged")})

	replies, matched := g.Dispatch(context.Background(), newTestRequest("!mp make myroom"))
	if !matched || replies[0] != "made" {
		t.Fatalf("mp make: matched=%v replies=%v", matched, replies)
	}
	replies, matched = g.Dispatch(context.Background(), newTestRequest("!mp"))
	if !matched || replies[0] != "mp root" {
		t.Fatalf("mp: matched=%v replies=%v", matched, replies)
	}
	replies, matched = g.Dispatch(context.Background(), newTestRequest("!system privcache purge"))
	if !matched || replies[0] != "purged" {
		t.Fatalf("three words: matched=%v replies=%v", matched, replies)
	}
}

func TestDispatchAliasEquivalence(t *testing.T) {
	g := NewRegistry("!", nil)
	g.MustRegister(&Spec{Name: "hello", Aliases: []string{"hi"}, Handler: echoHandler("greetings")})

	a, _ := g.Dispatch(context.Background(), newTestRequest("!hello"))
	b, _ := g.Dispatch(context.Background(), newTestRequest("!hi"))
	if len(a) != 1 || len(b) != 1 || a[0] != b[0] {
		t.Errorf("alias output differs: %v vs %v", a, b)
	}
}

func TestDuplicateNamesRejected(t *testing.T) {
	g := NewRegistry("!", nil)
	g.MustRegister(&Spec{Name: "roll", Handler: echoHandler("x")})
	if err := g.Register(&Spec{Name: "ROLL", Handler: echoHandler("y")}); err == nil {
		t.Fatal("duplicate canonical name accepted")
	}
	if err := g.Register(&Spec{Name: "other", Aliases: []string{"roll"}, Handler: echoHandler("z")}); err == nil {
		t.Fatal("alias colliding with canonical name accepted")
	}
}

func TestDispatchAction(t *testing.T) {
	g := NewRegistry("!", nil)
	g.MustRegister(&Spec{Name: "is playing", Kind: KindAction, Handler: echoHandler("np!")})

	replies, matched := g.Dispatch(context.Background(),
		newTestRequest("\x01ACTION is playing [https://osu.ppy.sh/b/42 map]"))
	if !matched || replies[0] != "np!" {
		t.Fatalf("action: matched=%v replies=%v", matched, replies)
	}
	// A plain message must not hit the action trie.
	if _, matched := g.Dispatch(context.Background(), newTestRequest("is playing something")); matched {
		t.Fatal("action matched without sentinel")
	}
}

func TestDispatchRegexAfterLiteral(t *testing.T) {
	g := NewRegistry("!", nil)
	var preCalls int
	g.MustRegister(&Spec{
		Kind:    KindRegex,
		Pattern: regexp.MustCompile(`^(NM|HD|HR|DT|FM|TB)(\d+)$`),
		Pre: func(r *Request) bool {
			preCalls++
			return r.Recipient.Name == "#multi_5"
		},
		Handler: func(ctx context.Context, r *Request) ([]string, error) {
			return []string{r.RegexMatch[1] + "/" + r.RegexMatch[2]}, nil
		},
	})

	r := newTestRequest("NM1")
	r.Recipient = Channel{Name: "#multi_5", DisplayName: "#multiplayer"}
	replies, matched := g.Dispatch(context.Background(), r)
	if !matched || replies[0] != "NM/1" {
		t.Fatalf("regex: matched=%v replies=%v", matched, replies)
	}

	// pre returning false suppresses the pattern entirely.
	other := newTestRequest("NM1")
	if _, matched := g.Dispatch(context.Background(), other); matched {
		t.Fatal("regex matched although pre rejected")
	}
	if preCalls != 2 {
		t.Errorf("pre called %d times, want 2", preCalls)
	}
}

func TestDispatchAtMostOneHandler(t *testing.T) {
	g := NewRegistry("!", nil)
	var calls int
	g.MustRegister(&Spec{Name: "x", Handler: func(ctx context.Context, r *Request) ([]string, error) {
		calls++
		return nil, nil
	}})
	g.MustRegister(&Spec{
		Kind:    KindRegex,
		Pattern: regexp.MustCompile(`.*`),
		Handler: func(ctx context.Context, r *Request) ([]string, error) {
			calls++
			return nil, nil
		},
	})
	g.Dispatch(context.Background(), newTestRequest("!x"))
	if calls != 1 {
		t.Errorf("handlers run = %d, want 1 (literal wins over regex)", calls)
	}
}

func TestDispatchNoMatch(t *testing.T) {
	g := NewRegistry("!", nil)
	g.MustRegister(&Spec{Name: "hello", Handler: echoHandler("x")})
	if _, matched := g.Dispatch(context.Background(), newTestRequest("just chatting")); matched {
		t.Fatal("plain chatter matched a handler")
	}
	if _, matched := g.Dispatch(context.Background(), newTestRequest("!unknown")); matched {
		t.Fatal("unknown command matched a handler")
	}
}

func TestMatchID(t *testing.T) {
	tests := []struct {
		in   string
		id   int
		ok   bool
	}{
		{"#multi_17", 17, true},
		{"#multi_", 0, false},
		{"#multi_x", 0, false},
		{"#osu", 0, false},
	}
	for _, tt := range tests {
		id, ok := MatchID(tt.in)
		if id != tt.id || ok != tt.ok {
			t.Errorf("MatchID(%q) = %d, %v", tt.in, id, ok)
		}
	}
}
