// Package auth drives the multi-step login conversation:
// logged-out -> username -> password -> optional SMS code -> authenticated.
package auth

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/fadeni/school-diary-bot/internal/diary"
	"github.com/fadeni/school-diary-bot/internal/session"
	"github.com/fadeni/school-diary-bot/internal/view"
)

const (
	msgAlreadyAuthorized = "You are already logged in. Use /schedule to view your schedule."
	msgEnterUsername     = "Please enter your login:"
	msgEnterPassword     = "Now enter your password:"
	msgEnterSMSCode      = "Enter the code from the SMS:"
	msgLoginFailed       = "Authorization failed. Try again with /login."
	msgInvalidCode       = "Invalid SMS code. Try again with /login."
	msgLoginSuccess      = "Authorization successful! Use /schedule to view your schedule."
	msgCancelled         = "Cancelled. Use /login to start over."
	msgNothingToCancel   = "Nothing to cancel."
	msgUseLogin          = "Please log in with /login first."
)

type Flow struct {
	store *session.Store
	diary diary.Service
	log   *slog.Logger
}

func New(store *session.Store, diarySvc diary.Service, log *slog.Logger) *Flow {
	return &Flow{store: store, diary: diarySvc, log: log}
}

// Awaiting reports whether the flow currently consumes free text for s.
func (f *Flow) Awaiting(s *session.Session) bool {
	switch s.AuthState {
	case session.AwaitingUsername, session.AwaitingPassword, session.AwaitingSMSCode:
		return true
	}
	return false
}

// Authenticated reports whether the user has a live session, restoring a
// persisted one if the in-memory session is cold.
func (f *Flow) Authenticated(ctx context.Context, s *session.Session) bool {
	if s.AuthState == session.Authenticated {
		return true
	}
	if h, ok := f.store.Restore(ctx, s.UserID); ok {
		s.Authenticate(h)
		return true
	}
	return false
}

// Start handles /login. If a persisted session restores, login is a no-op
// that reports status.
func (f *Flow) Start(ctx context.Context, s *session.Session) view.View {
	if s.AuthState == session.Authenticated {
		return view.Text(msgAlreadyAuthorized)
	}

	if h, ok := f.store.Restore(ctx, s.UserID); ok {
		s.Authenticate(h)
		return view.Text(msgAlreadyAuthorized)
	}

	s.ClearPending()
	s.AuthState = session.AwaitingUsername
	return view.Text(msgEnterUsername)
}

// Input feeds one free-text message into the flow.
func (f *Flow) Input(ctx context.Context, s *session.Session, text string) view.View {
	text = strings.TrimSpace(text)

	switch s.AuthState {
	case session.AwaitingUsername:
		return f.username(s, text)
	case session.AwaitingPassword:
		return f.password(ctx, s, text)
	case session.AwaitingSMSCode:
		return f.smsCode(ctx, s, text)
	default:
		return view.Text(msgUseLogin)
	}
}

// Cancel aborts the flow from any non-terminal state.
func (f *Flow) Cancel(s *session.Session) view.View {
	if !f.Awaiting(s) {
		return view.Text(msgNothingToCancel)
	}
	s.ClearPending()
	s.AuthState = session.LoggedOut
	return view.Text(msgCancelled)
}

func (f *Flow) username(s *session.Session, text string) view.View {
	if text == "" {
		return view.Text(msgEnterUsername)
	}
	s.Username = text
	s.AuthState = session.AwaitingPassword
	return view.Text(msgEnterPassword)
}

// password consumes the submitted password immediately; it is never stored
// on the session and never logged.
func (f *Flow) password(ctx context.Context, s *session.Session, password string) view.View {
	username := s.Username
	s.Username = ""

	attemptID := uuid.New().String()
	res, err := f.diary.ExchangeCredentials(ctx, username, password)
	if err != nil {
		f.log.WarnContext(ctx, "credential exchange failed", "error", err, "user_id", s.UserID, "attempt_id", attemptID)
		s.ClearPending()
		s.AuthState = session.LoggedOut
		return view.Text(msgLoginFailed)
	}

	if res.Challenge != nil {
		f.log.InfoContext(ctx, "second factor requested", "user_id", s.UserID, "attempt_id", attemptID)
		s.Challenge = res.Challenge
		s.AuthState = session.AwaitingSMSCode
		return view.Text(msgEnterSMSCode)
	}

	return f.finish(ctx, s, res.Token)
}

func (f *Flow) smsCode(ctx context.Context, s *session.Session, code string) view.View {
	challenge := s.Challenge
	s.Challenge = nil

	token, err := f.diary.SubmitChallenge(ctx, challenge, code)
	if err != nil {
		// wrong code and expired challenge are reported identically:
		// both require a fresh /login
		f.log.WarnContext(ctx, "sms verification failed", "error", err, "user_id", s.UserID)
		s.ClearPending()
		s.AuthState = session.LoggedOut
		return view.Text(msgInvalidCode)
	}

	return f.finish(ctx, s, token)
}

func (f *Flow) finish(ctx context.Context, s *session.Session, token string) view.View {
	if err := f.store.Persist(ctx, s.UserID, token); err != nil {
		// the session still works for this process lifetime, it just
		// will not survive a restart
		f.log.ErrorContext(ctx, "failed to persist token", "error", err, "user_id", s.UserID)
	}

	s.Authenticate(session.NewHandle(f.diary.BindToken(token)))
	f.log.InfoContext(ctx, "user authenticated", "user_id", s.UserID)
	return view.Text(msgLoginSuccess)
}
