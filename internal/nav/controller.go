// Package nav interprets navigation events as transitions over the view
// stack: calendar -> lesson list -> lesson detail, with back edges rendered
// from cached state. Diary calls happen lazily, one per transition that
// actually needs fresh data.
package nav

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/fadeni/school-diary-bot/internal/diary"
	"github.com/fadeni/school-diary-bot/internal/session"
	"github.com/fadeni/school-diary-bot/internal/view"
)

const (
	msgChooseDate     = "Choose a date:"
	msgPleaseLogin    = "Please log in with /login first."
	msgSessionExpired = "Your session has expired. Please log in again with /login."
	msgTransient      = "Failed to reach the diary service. Please try again."
	msgNoLessons      = "No lessons on the selected date."
	msgLessonMissing  = "Lesson not found. Pick one from the list."
	msgNoStudent      = "Could not find a student attached to this account."
	msgNoMarks        = "No marks for the last month."

	marksLookback = 30 * 24 * time.Hour
)

type Controller struct {
	store *session.Store
	log   *slog.Logger
	now   func() time.Time
}

func New(store *session.Store, log *slog.Logger) *Controller {
	return &Controller{store: store, log: log, now: time.Now}
}

// OpenSchedule resets the stack to the current month's calendar. It is the
// entry transition and the target of back_to_schedule.
func (c *Controller) OpenSchedule(ctx context.Context, s *session.Session) view.View {
	if !c.ensureAuthenticated(ctx, s) {
		return view.Text(msgPleaseLogin)
	}

	now := c.now()
	s.Nav = session.NavState{Screen: session.ScreenCalendar, Year: now.Year(), Month: now.Month()}
	return view.View{Text: msgChooseDate, Keyboard: calendarKeyboard(s.Nav.Year, s.Nav.Month)}
}

// Handle applies one decoded navigation event to the session.
func (c *Controller) Handle(ctx context.Context, s *session.Session, ev Event) view.View {
	switch ev := ev.(type) {
	case OpenSchedule, BackToSchedule:
		return c.OpenSchedule(ctx, s)
	case MonthShift:
		return c.monthShift(ctx, s, ev)
	case PickDate:
		return c.pickDate(ctx, s, ev.Date)
	case PickLesson:
		return c.pickLesson(s, ev.Index)
	case BackToLessons:
		return c.backToLessons(s)
	default:
		c.log.WarnContext(ctx, "unhandled navigation event", "event", ev, "user_id", s.UserID)
		return view.View{}
	}
}

// monthShift is a pure view mutation: no diary call is made.
func (c *Controller) monthShift(ctx context.Context, s *session.Session, ev MonthShift) view.View {
	if !c.ensureAuthenticated(ctx, s) {
		return view.Text(msgPleaseLogin)
	}

	year, month := normalizeMonth(ev.Year, ev.Month)
	s.Nav = session.NavState{Screen: session.ScreenCalendar, Year: year, Month: month}
	return view.View{Text: msgChooseDate, Keyboard: calendarKeyboard(year, month)}
}

func (c *Controller) pickDate(ctx context.Context, s *session.Session, date time.Time) view.View {
	if !c.ensureAuthenticated(ctx, s) {
		return view.Text(msgPleaseLogin)
	}

	identity, err := s.Handle.Identity(ctx)
	if err != nil {
		return c.failure(ctx, s, err)
	}

	events, err := s.Handle.Client().Events(ctx, identity.PersonGUID, identity.Role, date, date)
	if err != nil {
		return c.failure(ctx, s, err)
	}

	lessons := make([]diary.Event, 0, len(events))
	for _, e := range events {
		if e.Complete() {
			lessons = append(lessons, e)
		}
	}

	s.Nav = session.NavState{
		Screen:  session.ScreenLessons,
		Year:    date.Year(),
		Month:   date.Month(),
		Date:    date,
		Lessons: lessons,
	}

	return lessonListView(date, lessons)
}

func (c *Controller) pickLesson(s *session.Session, index int) view.View {
	// a stale index (list already replaced, or detail reached some other
	// way) leaves the state exactly as it is
	if s.Nav.Screen != session.ScreenLessons || index < 0 || index >= len(s.Nav.Lessons) {
		return view.Text(msgLessonMissing)
	}

	s.Nav.Screen = session.ScreenLessonDetail
	s.Nav.LessonIndex = index
	return lessonDetailView(s.Nav.Lessons[index])
}

// backToLessons re-renders the cached lesson list without a re-fetch.
func (c *Controller) backToLessons(s *session.Session) view.View {
	if s.Nav.Screen != session.ScreenLessonDetail && s.Nav.Screen != session.ScreenLessons {
		return view.Text(msgLessonMissing)
	}

	s.Nav.Screen = session.ScreenLessons
	return lessonListView(s.Nav.Date, s.Nav.Lessons)
}

// Marks shows the first child's marks for the last month.
func (c *Controller) Marks(ctx context.Context, s *session.Session) view.View {
	if !c.ensureAuthenticated(ctx, s) {
		return view.Text(msgPleaseLogin)
	}

	identity, err := s.Handle.Identity(ctx)
	if err != nil {
		return c.failure(ctx, s, err)
	}

	to := c.now()
	marks, err := s.Handle.Client().Marks(ctx, identity.StudentID, identity.ProfileID, to.Add(-marksLookback), to)
	if err != nil {
		return c.failure(ctx, s, err)
	}

	if len(marks) == 0 {
		return view.Text(msgNoMarks)
	}
	return marksView(marks)
}

// ensureAuthenticated restores a persisted session when the in-memory one is
// not authenticated (cold start after restart or eviction).
func (c *Controller) ensureAuthenticated(ctx context.Context, s *session.Session) bool {
	if s.AuthState == session.Authenticated {
		return true
	}
	if h, ok := c.store.Restore(ctx, s.UserID); ok {
		s.Authenticate(h)
		return true
	}
	return false
}

// failure classifies a diary call error. Auth-class errors end the session;
// everything else leaves state untouched so the same action can be retried.
func (c *Controller) failure(ctx context.Context, s *session.Session, err error) view.View {
	switch {
	case errors.Is(err, diary.ErrUnauthorized):
		c.log.InfoContext(ctx, "diary token rejected, ending session", "user_id", s.UserID)
		s.Logout()
		return view.Text(msgSessionExpired)
	case errors.Is(err, session.ErrNoStudent):
		c.log.WarnContext(ctx, "no student identity", "user_id", s.UserID)
		return view.Text(msgNoStudent)
	default:
		c.log.ErrorContext(ctx, "diary call failed", "error", err, "user_id", s.UserID)
		return view.Text(msgTransient)
	}
}
