package commands

import (
	"fmt"
	"strconv"
	"strings"
)

// Validator validates and transforms one raw argument token. A nil token
// (missing argument) never reaches a validator; the binder handles that case
// via the optional/default rules.
type Validator func(raw string) (any, error)

// StringValue accepts any token as-is.
func StringValue(raw string) (any, error) { return raw, nil }

// NonEmptyString accepts a token that is not blank after trimming.
func NonEmptyString(raw string) (any, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, fmt.Errorf("empty value")
	}
	return s, nil
}

// IntValue coerces the token to an int.
func IntValue(raw string) (any, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("not a number: %q", raw)
	}
	return n, nil
}

// PositiveInt coerces to an int greater than zero.
func PositiveInt(raw string) (any, error) {
	v, err := IntValue(raw)
	if err != nil {
		return nil, err
	}
	if v.(int) <= 0 {
		return nil, fmt.Errorf("must be positive: %d", v)
	}
	return v, nil
}

// IntRange coerces to an int within [lo, hi].
func IntRange(lo, hi int) Validator {
	return func(raw string) (any, error) {
		v, err := IntValue(raw)
		if err != nil {
			return nil, err
		}
		if n := v.(int); n < lo || n > hi {
			return nil, fmt.Errorf("out of range [%d, %d]: %d", lo, hi, n)
		}
		return v, nil
	}
}

// FloatValue coerces the token to a float64.
func FloatValue(raw string) (any, error) {
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("not a number: %q", raw)
	}
	return f, nil
}

// OneOf accepts only the listed tokens, case-insensitive, returning the
// canonical (listed) form.
func OneOf(allowed ...string) Validator {
	return func(raw string) (any, error) {
		for _, a := range allowed {
			if strings.EqualFold(raw, a) {
				return a, nil
			}
		}
		return nil, fmt.Errorf("must be one of %v: %q", allowed, raw)
	}
}

// Use builds a validator from any transform function.
func Use[T any](f func(string) (T, error)) Validator {
	return func(raw string) (any, error) {
		v, err := f(raw)
		if err != nil {
			return nil, err
		}
		return v, nil
	}
}
