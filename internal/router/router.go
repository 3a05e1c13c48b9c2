// Package router classifies inbound interactions and dispatches them to the
// auth flow or the navigation controller. It is the single place where raw
// callback data is interpreted; everything past it works with typed events.
package router

import (
	"context"
	"log/slog"

	"github.com/fadeni/school-diary-bot/internal/auth"
	"github.com/fadeni/school-diary-bot/internal/nav"
	"github.com/fadeni/school-diary-bot/internal/session"
	"github.com/fadeni/school-diary-bot/internal/view"
)

const msgDataDeleted = "Your data has been deleted. Use /start to begin again."

type Router struct {
	auth  *auth.Flow
	nav   *nav.Controller
	store *session.Store
	log   *slog.Logger
}

func New(authFlow *auth.Flow, navController *nav.Controller, store *session.Store, log *slog.Logger) *Router {
	return &Router{auth: authFlow, nav: navController, store: store, log: log}
}

// Text feeds a free-text message into the auth flow when it is awaiting
// input. Any other text is not ours to interpret: handled=false, caller
// drops it.
func (r *Router) Text(ctx context.Context, s *session.Session, text string) (view.View, bool) {
	if !r.auth.Awaiting(s) {
		return view.View{}, false
	}
	return r.auth.Input(ctx, s, text), true
}

// Callback decodes a navigation token and applies it. Unrecognized tokens
// are logged and dropped, never raised. The inert "ignore" token produces no
// view.
func (r *Router) Callback(ctx context.Context, s *session.Session, raw string) (view.View, bool) {
	ev, err := nav.DecodeToken(raw)
	if err != nil {
		r.log.WarnContext(ctx, "unrecognized callback token", "error", err, "user_id", s.UserID)
		return view.View{}, false
	}

	switch ev.(type) {
	case nav.Ignore:
		return view.View{}, false
	case nav.DeleteData:
		return r.deleteData(ctx, s), true
	default:
		return r.nav.Handle(ctx, s, ev), true
	}
}

// deleteData purges the persisted row and wipes the in-memory session.
// It is idempotent, so a stale button pressed after logout still confirms.
func (r *Router) deleteData(ctx context.Context, s *session.Session) view.View {
	if err := r.store.Purge(ctx, s.UserID); err != nil {
		r.log.ErrorContext(ctx, "failed to purge credentials", "error", err, "user_id", s.UserID)
	}
	s.Logout()
	r.log.InfoContext(ctx, "user data deleted", "user_id", s.UserID)
	return view.Text(msgDataDeleted)
}
