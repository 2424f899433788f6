package commands

import (
	"context"
	"errors"
	"testing"

	"github.com/xnyo/fokabot/internal/backend"
	"github.com/xnyo/fokabot/internal/osu"
)

func TestSyntaxErrorRendersHelp(t *testing.T) {
	g := NewRegistry("!", nil)
	g.MustRegister(&Spec{
		Name: "alertuser",
		Args: []Arg{
			{Key: "username", Schema: StringValue},
			{Key: "the_message", Schema: StringValue, Rest: true},
		},
		Handler: echoHandler("sent"),
	})

	replies, matched := g.Dispatch(context.Background(), newTestRequest("!alertuser"))
	if !matched {
		t.Fatal("no match")
	}
	want := "Syntax: !alertuser <username> <the_message...>"
	if len(replies) != 1 || replies[0] != want {
		t.Errorf("replies = %v, want [%q]", replies, want)
	}
}

func TestSyntaxHelpUsesTypedAlias(t *testing.T) {
	g := NewRegistry("!", nil)
	g.MustRegister(&Spec{
		Name:    "alertuser",
		Aliases: []string{"au"},
		Args:    []Arg{{Key: "username", Schema: StringValue}},
		Handler: echoHandler("sent"),
	})
	replies, _ := g.Dispatch(context.Background(), newTestRequest("!au"))
	if replies[0] != "Syntax: !au <username>" {
		t.Errorf("replies = %v", replies)
	}
}

func TestProtectedRefusesWithoutBits(t *testing.T) {
	g := NewRegistry("!", nil)
	called := false
	g.MustRegister(&Spec{
		Name:       "alert",
		Privileges: osu.PrivilegeAdminSendAlerts,
		Args:       []Arg{{Key: "the_message", Schema: StringValue, Rest: true}},
		Handler: func(ctx context.Context, r *Request) ([]string, error) {
			called = true
			return nil, nil
		},
	})

	replies, matched := g.Dispatch(context.Background(), newTestRequest("!alert hello"))
	if !matched {
		t.Fatal("no match")
	}
	if len(replies) != 1 || replies[0] != PrivilegeRefusal {
		t.Errorf("replies = %v, want the refusal line", replies)
	}
	if called {
		t.Error("handler ran despite missing privileges")
	}
}

func TestProtectedAllowsWithBits(t *testing.T) {
	g := NewRegistry("!", nil)
	g.MustRegister(&Spec{
		Name:       "alert",
		Privileges: osu.PrivilegeAdminSendAlerts,
		Handler:    echoHandler("ok"),
	})
	r := newTestRequest("!alert")
	r.Sender.Privileges |= osu.PrivilegeAdminSendAlerts
	replies, _ := g.Dispatch(context.Background(), r)
	if len(replies) != 1 || replies[0] != "ok" {
		t.Errorf("replies = %v", replies)
	}
}

func TestFilterSilences(t *testing.T) {
	g := NewRegistry("!", nil)
	g.MustRegister(&Spec{
		Name:    "mp close",
		Filters: []Filter{MultiplayerOnly},
		Handler: echoHandler("closed"),
	})

	// In a PM: silence, not an error.
	r := newTestRequest("!mp close")
	r.PM = true
	replies, matched := g.Dispatch(context.Background(), r)
	if !matched {
		t.Fatal("no match")
	}
	if replies != nil {
		t.Errorf("replies = %v, want silence", replies)
	}

	// In a multiplayer channel: runs.
	r = newTestRequest("!mp close")
	r.Recipient = Channel{Name: "#multi_3", DisplayName: "#multiplayer"}
	replies, _ = g.Dispatch(context.Background(), r)
	if len(replies) != 1 || replies[0] != "closed" {
		t.Errorf("replies = %v", replies)
	}
}

func TestBackendResponseErrorSurfacesMessage(t *testing.T) {
	g := NewRegistry("!", nil)
	g.MustRegister(&Spec{Name: "x", Handler: func(ctx context.Context, r *Request) ([]string, error) {
		return nil, &backend.ResponseError{Code: 404, Data: map[string]any{"message": "No such user."}}
	}})
	replies, _ := g.Dispatch(context.Background(), newTestRequest("!x"))
	if len(replies) != 1 || replies[0] != "No such user." {
		t.Errorf("replies = %v", replies)
	}
}

func TestBackendResponseErrorWithoutMessage(t *testing.T) {
	g := NewRegistry("!", nil)
	g.MustRegister(&Spec{Name: "x", Handler: func(ctx context.Context, r *Request) ([]string, error) {
		return nil, &backend.ResponseError{Code: 500}
	}})
	replies, _ := g.Dispatch(context.Background(), newTestRequest("!x"))
	if len(replies) != 1 || replies[0] != "API Error: 500" {
		t.Errorf("replies = %v", replies)
	}
}

func TestGenericErrorSurfacedVerbatim(t *testing.T) {
	g := NewRegistry("!", nil)
	g.MustRegister(&Spec{Name: "x", Handler: func(ctx context.Context, r *Request) ([]string, error) {
		return nil, GenericError("This user is not connected right now")
	}})
	replies, _ := g.Dispatch(context.Background(), newTestRequest("!x"))
	if len(replies) != 1 || replies[0] != "This user is not connected right now" {
		t.Errorf("replies = %v", replies)
	}
}

func TestUnexpectedErrorIsContained(t *testing.T) {
	g := NewRegistry("!", nil)
	g.MustRegister(&Spec{Name: "x", Handler: func(ctx context.Context, r *Request) ([]string, error) {
		return nil, errors.New("database on fire")
	}})
	replies, _ := g.Dispatch(context.Background(), newTestRequest("!x"))
	if len(replies) != 1 || replies[0] != internalErrorReply {
		t.Errorf("replies = %v", replies)
	}
}

func TestPanicIsContained(t *testing.T) {
	g := NewRegistry("!", nil)
	g.MustRegister(&Spec{Name: "x", Handler: func(ctx context.Context, r *Request) ([]string, error) {
		panic("boom")
	}})
	replies, matched := g.Dispatch(context.Background(), newTestRequest("!x"))
	if !matched {
		t.Fatal("no match")
	}
	if len(replies) != 1 || replies[0] != internalErrorReply {
		t.Errorf("replies = %v", replies)
	}
}

func TestPipelineOrderProtectedBeforeArguments(t *testing.T) {
	// A privileged command with bad args must refuse, not print syntax help:
	// protected runs before arguments in the pipeline.
	g := NewRegistry("!", nil)
	g.MustRegister(&Spec{
		Name:       "silence",
		Privileges: osu.PrivilegeAdminChatMod,
		Args:       []Arg{{Key: "username", Schema: StringValue}},
		Handler:    echoHandler("done"),
	})
	replies, _ := g.Dispatch(context.Background(), newTestRequest("!silence"))
	if len(replies) != 1 || replies[0] != PrivilegeRefusal {
		t.Errorf("replies = %v, want refusal before syntax check", replies)
	}
}

func TestReplyTarget(t *testing.T) {
	r := newTestRequest("!x")
	if r.ReplyTarget() != "#osu" {
		t.Errorf("channel target = %q", r.ReplyTarget())
	}
	r.PM = true
	if r.ReplyTarget() != "alice" {
		t.Errorf("pm target = %q", r.ReplyTarget())
	}
}
