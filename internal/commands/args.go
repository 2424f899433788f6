package commands

import (
	"errors"
	"fmt"
	"strings"
)

// Arg declares one command parameter.
type Arg struct {
	Key     string
	Schema  Validator
	Default any
	// Optional args may be omitted; their Default is bound instead.
	Optional bool
	// Rest makes the arg consume every remaining token, joined by single
	// spaces. Only the last arg may set it.
	Rest bool
	// Example is shown in help rendering instead of nothing, e.g. "s/m/h/d".
	Example string
}

func (a Arg) String() string {
	var b strings.Builder
	b.WriteString(a.Key)
	if a.Default != nil {
		fmt.Fprintf(&b, "=%v", a.Default)
	}
	if a.Example != "" {
		fmt.Fprintf(&b, "(%s)", a.Example)
	}
	if a.Rest {
		b.WriteString("...")
	}
	return b.String()
}

// SyntaxError reports a user-caused argument mismatch. The runtime renders
// it as a one-line syntax help message. Extra overrides the rendered text.
type SyntaxError struct {
	Args  []Arg
	Extra string
}

func (e *SyntaxError) Error() string { return "invalid command syntax" }

// GenericError is a handler-raised failure whose text is sent to the user
// verbatim.
type GenericError string

func (e GenericError) Error() string { return string(e) }

// validateArgSpecs enforces the registration invariants: optional args after
// required ones, at most one rest arg and only in last position.
func validateArgSpecs(args []Arg) error {
	seenOptional := false
	for i, a := range args {
		if a.Key == "" {
			return fmt.Errorf("arg %d has no key", i)
		}
		if a.Schema == nil {
			return fmt.Errorf("arg %q has no schema", a.Key)
		}
		if a.Optional {
			seenOptional = true
		} else if seenOptional {
			return fmt.Errorf("required arg %q after optional args", a.Key)
		}
		if a.Rest && i != len(args)-1 {
			return fmt.Errorf("rest arg %q must be last", a.Key)
		}
	}
	return nil
}

// BindArgs validates tokens against the specs and returns the keyed value
// map. The rules, in order:
//   - a trailing Rest spec coalesces the remaining tokens into one string;
//   - each spec is paired with its token; a missing token is acceptable only
//     for optional specs, whose default is bound;
//   - a validator rejection on an optional spec also falls back to the
//     default; on a required spec it is a SyntaxError;
//   - excess tokens are a SyntaxError.
func BindArgs(args []Arg, tokens []string) (map[string]any, error) {
	values := make(map[string]any, len(args))
	if len(args) > 0 && args[len(args)-1].Rest {
		head := len(args) - 1
		if len(tokens) > head {
			tokens = append(append([]string{}, tokens[:head]...), strings.Join(tokens[head:], " "))
		}
	}
	if len(tokens) > len(args) {
		return nil, &SyntaxError{Args: args}
	}
	for i, a := range args {
		if i >= len(tokens) {
			if !a.Optional {
				return nil, &SyntaxError{Args: args}
			}
			values[a.Key] = a.Default
			continue
		}
		v, err := a.Schema(tokens[i])
		if err != nil || v == nil {
			if a.Optional {
				values[a.Key] = a.Default
				continue
			}
			return nil, &SyntaxError{Args: args}
		}
		values[a.Key] = v
	}
	return values, nil
}

// RenderHelp builds the one-line syntax message for a command invocation:
// required args in <...>, the optional tail bracketed as [<first> <later>].
func RenderHelp(name string, args []Arg) string {
	var parts []string
	closing := false
	for _, a := range args {
		if !closing && a.Optional {
			parts = append(parts, "[<"+a.String()+">")
			closing = true
		} else {
			parts = append(parts, "<"+a.String()+">")
		}
	}
	s := "Syntax: !" + name
	if len(parts) > 0 {
		s += " " + strings.Join(parts, " ")
	}
	if closing {
		s += "]"
	}
	return s
}

// AsSyntaxError extracts a *SyntaxError from an error chain.
func AsSyntaxError(err error) (*SyntaxError, bool) {
	var se *SyntaxError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
