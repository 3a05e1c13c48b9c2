// Package session owns the per-user conversation state: the login state
// machine position, the authenticated diary handle and the navigation stack.
// A Session lives in memory only; the encrypted token row managed by Store is
// the sole persistent trace of a user.
package session

import (
	"time"

	"github.com/fadeni/school-diary-bot/internal/diary"
)

type AuthState int

const (
	LoggedOut AuthState = iota
	AwaitingUsername
	AwaitingPassword
	AwaitingSMSCode
	Authenticated
)

func (s AuthState) String() string {
	switch s {
	case LoggedOut:
		return "logged_out"
	case AwaitingUsername:
		return "awaiting_username"
	case AwaitingPassword:
		return "awaiting_password"
	case AwaitingSMSCode:
		return "awaiting_sms_code"
	case Authenticated:
		return "authenticated"
	}
	return "unknown"
}

type Screen int

const (
	ScreenNone Screen = iota
	ScreenCalendar
	ScreenLessons
	ScreenLessonDetail
)

type (
	// NavState is the top of the view stack. Lessons keeps the order the
	// list was fetched in: lesson indexes in callback tokens are positions
	// in this exact slice, so it is never re-sorted, only replaced whole.
	NavState struct {
		Screen      Screen
		Year        int
		Month       time.Month
		Date        time.Time
		Lessons     []diary.Event
		LessonIndex int
	}

	Session struct {
		UserID    int64
		AuthState AuthState

		// Username is held only between the username and password steps of
		// the login flow. The password itself is never stored.
		Username  string
		Challenge *diary.Challenge

		Handle *Handle
		Nav    NavState

		LastSeen time.Time
	}
)

// ClearPending drops mid-login leftovers (entered username, SMS challenge).
func (s *Session) ClearPending() {
	s.Username = ""
	s.Challenge = nil
}

// Logout drops the authenticated handle and navigation state but keeps the
// session addressable. Used when a diary call reports an expired token.
func (s *Session) Logout() {
	s.ClearPending()
	s.Handle = nil
	s.Nav = NavState{}
	s.AuthState = LoggedOut
}

// Authenticate installs a fresh or restored handle.
func (s *Session) Authenticate(h *Handle) {
	s.ClearPending()
	s.Handle = h
	s.AuthState = Authenticated
}
