package commands

import (
	"reflect"
	"testing"
)

func TestBindArgsBasic(t *testing.T) {
	args := []Arg{
		{Key: "username", Schema: StringValue},
		{Key: "amount", Schema: IntValue},
	}
	got, err := BindArgs(args, []string{"alice", "5"})
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]any{"username": "alice", "amount": 5}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestBindArgsMissingRequired(t *testing.T) {
	args := []Arg{{Key: "username", Schema: StringValue}}
	if _, err := BindArgs(args, nil); err == nil {
		t.Fatal("expected SyntaxError")
	} else if _, ok := AsSyntaxError(err); !ok {
		t.Fatalf("error is %T, want *SyntaxError", err)
	}
}

func TestBindArgsOptionalDefault(t *testing.T) {
	args := []Arg{{Key: "number", Schema: PositiveInt, Default: 100, Optional: true}}
	got, err := BindArgs(args, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got["number"] != 100 {
		t.Errorf("number = %v, want 100", got["number"])
	}
}

func TestBindArgsOptionalValidatorRejectionFallsBack(t *testing.T) {
	args := []Arg{{Key: "number", Schema: PositiveInt, Default: 100, Optional: true}}
	got, err := BindArgs(args, []string{"-3"})
	if err != nil {
		t.Fatal(err)
	}
	if got["number"] != 100 {
		t.Errorf("number = %v, want default 100", got["number"])
	}
}

func TestBindArgsExcessTokens(t *testing.T) {
	args := []Arg{{Key: "a", Schema: StringValue}}
	if _, err := BindArgs(args, []string{"x", "y"}); err == nil {
		t.Fatal("expected SyntaxError for excess tokens")
	}
}

func TestBindArgsRestCoalesces(t *testing.T) {
	args := []Arg{
		{Key: "username", Schema: StringValue},
		{Key: "the_message", Schema: StringValue, Rest: true},
	}
	got, err := BindArgs(args, []string{"alice", "hello", "there", "friend"})
	if err != nil {
		t.Fatal(err)
	}
	if got["the_message"] != "hello there friend" {
		t.Errorf("rest = %q", got["the_message"])
	}
}

func TestBindArgsValidatorsRunInDeclarationOrder(t *testing.T) {
	var order []string
	track := func(name string) Validator {
		return func(raw string) (any, error) {
			order = append(order, name)
			return raw, nil
		}
	}
	args := []Arg{
		{Key: "a", Schema: track("a")},
		{Key: "b", Schema: track("b")},
		{Key: "c", Schema: track("c")},
	}
	if _, err := BindArgs(args, []string{"1", "2", "3"}); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(order, []string{"a", "b", "c"}) {
		t.Errorf("order = %v", order)
	}
}

func TestValidateArgSpecs(t *testing.T) {
	tests := []struct {
		name    string
		args    []Arg
		wantErr bool
	}{
		{"ok", []Arg{{Key: "a", Schema: StringValue}, {Key: "b", Schema: StringValue, Optional: true}}, false},
		{"required-after-optional", []Arg{{Key: "a", Schema: StringValue, Optional: true}, {Key: "b", Schema: StringValue}}, true},
		{"rest-not-last", []Arg{{Key: "a", Schema: StringValue, Rest: true}, {Key: "b", Schema: StringValue}}, true},
		{"rest-last", []Arg{{Key: "a", Schema: StringValue}, {Key: "b", Schema: StringValue, Rest: true}}, false},
		{"no-schema", []Arg{{Key: "a"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateArgSpecs(tt.args)
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRenderHelp(t *testing.T) {
	tests := []struct {
		name string
		cmd  string
		args []Arg
		want string
	}{
		{
			"required-only",
			"alertuser",
			[]Arg{
				{Key: "username", Schema: StringValue},
				{Key: "the_message", Schema: StringValue, Rest: true},
			},
			"Syntax: !alertuser <username> <the_message...>",
		},
		{
			"optional-tail",
			"cmd",
			[]Arg{
				{Key: "a", Schema: StringValue},
				{Key: "b", Schema: StringValue},
				{Key: "c", Schema: StringValue, Optional: true},
			},
			"Syntax: !cmd <a> <b> [<c>]",
		},
		{
			"no-args",
			"help",
			nil,
			"Syntax: !help",
		},
		{
			"example",
			"silence",
			[]Arg{{Key: "unit", Schema: StringValue, Example: "s/m/h/d"}},
			"Syntax: !silence <unit(s/m/h/d)>",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RenderHelp(tt.cmd, tt.args); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidators(t *testing.T) {
	if _, err := NonEmptyString("   "); err == nil {
		t.Error("NonEmptyString accepted blank input")
	}
	if v, err := IntRange(2, 16)("8"); err != nil || v != 8 {
		t.Errorf("IntRange(2,16)(8) = %v, %v", v, err)
	}
	if _, err := IntRange(2, 16)("17"); err == nil {
		t.Error("IntRange accepted out-of-range value")
	}
	if v, err := OneOf("on", "off")("ON"); err != nil || v != "on" {
		t.Errorf("OneOf = %v, %v", v, err)
	}
	if v, err := FloatValue("97.5"); err != nil || v != 97.5 {
		t.Errorf("FloatValue = %v, %v", v, err)
	}
}
