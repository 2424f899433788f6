package commands

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"

	"github.com/xnyo/fokabot/internal/backend"
)

// PrivilegeRefusal is the fixed reply for a sender missing required bits.
const PrivilegeRefusal = "You don't have the required privileges to trigger this command."

// internalErrorReply is what the user sees for uncaught handler failures.
const internalErrorReply = "An unexpected error occurred. The incident has been logged."

// Middleware wraps a handler with one pipeline stage.
type Middleware func(next HandlerFunc) HandlerFunc

// compile assembles the runtime pipeline around the user handler. The order
// is contract: errors (outermost) → protected → filter → arguments → handler.
func (g *Registry) compile(s *Spec) HandlerFunc {
	h := s.Handler
	for _, mw := range []Middleware{
		argumentsMiddleware(s),
		filterMiddleware(s),
		protectedMiddleware(s),
		errorsMiddleware(g.logger, s),
	} {
		h = mw(h)
	}
	return h
}

// argumentsMiddleware binds r.Tokens against the declared specs. Commands
// declaring no args accept (and ignore) any trailing tokens.
func argumentsMiddleware(s *Spec) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		if len(s.Args) == 0 || s.Kind == KindRegex {
			return next
		}
		return func(ctx context.Context, r *Request) ([]string, error) {
			values, err := BindArgs(s.Args, r.Tokens)
			if err != nil {
				return nil, err
			}
			r.Args = values
			return next(ctx, r)
		}
	}
}

// filterMiddleware silences the command when any predicate rejects the
// context (e.g. a multiplayer-only command invoked in a PM).
func filterMiddleware(s *Spec) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		if len(s.Filters) == 0 {
			return next
		}
		return func(ctx context.Context, r *Request) ([]string, error) {
			for _, f := range s.Filters {
				if !f(r) {
					return nil, nil
				}
			}
			return next(ctx, r)
		}
	}
}

// protectedMiddleware gates on the sender's privilege bits.
func protectedMiddleware(s *Spec) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		if s.Privileges == 0 {
			return next
		}
		return func(ctx context.Context, r *Request) ([]string, error) {
			if !r.Sender.Privileges.Has(s.Privileges) {
				return []string{PrivilegeRefusal}, nil
			}
			return next(ctx, r)
		}
	}
}

// errorsMiddleware is the outermost stage: it converts the error taxonomy
// into user-facing reply lines and guarantees that no failure inside a
// handler ever propagates past the dispatcher.
func errorsMiddleware(logger *slog.Logger, s *Spec) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, r *Request) (replies []string, err error) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("command handler panicked",
						"command", s.Name,
						"panic", rec,
						"stack", string(debug.Stack()),
					)
					replies, err = []string{internalErrorReply}, nil
				}
			}()

			replies, err = next(ctx, r)
			if err == nil {
				return replies, nil
			}

			if se, ok := AsSyntaxError(err); ok {
				if se.Extra != "" {
					return []string{se.Extra}, nil
				}
				name := r.Name
				if name == "" {
					name = s.Name
				}
				return []string{RenderHelp(name, se.Args)}, nil
			}
			var respErr *backend.ResponseError
			if errors.As(err, &respErr) {
				return []string{respErr.UserMessage()}, nil
			}
			var fatalErr *backend.FatalError
			if errors.As(err, &fatalErr) {
				logger.Error("backend failure in command", "command", s.Name, "error", err)
				return []string{"General API error."}, nil
			}
			var generic GenericError
			if errors.As(err, &generic) {
				return []string{string(generic)}, nil
			}

			logger.Error("unhandled error in command",
				"command", s.Name,
				"error", err,
			)
			return []string{internalErrorReply}, nil
		}
	}
}
