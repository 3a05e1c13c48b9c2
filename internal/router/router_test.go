package router

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/fadeni/school-diary-bot/internal/auth"
	"github.com/fadeni/school-diary-bot/internal/dal"
	"github.com/fadeni/school-diary-bot/internal/diary"
	"github.com/fadeni/school-diary-bot/internal/nav"
	"github.com/fadeni/school-diary-bot/internal/session"
)

type memRepo struct {
	rows map[int64][]byte
}

func (r *memRepo) FindCredential(_ context.Context, userID int64) (*dal.StoredCredential, error) {
	ciphertext, ok := r.rows[userID]
	if !ok {
		return nil, dal.ErrNotFound
	}
	return &dal.StoredCredential{UserID: userID, Ciphertext: ciphertext}, nil
}

func (r *memRepo) UpsertCredential(_ context.Context, userID int64, ciphertext []byte) error {
	r.rows[userID] = ciphertext
	return nil
}

func (r *memRepo) DeleteCredential(_ context.Context, userID int64) error {
	delete(r.rows, userID)
	return nil
}

type plainCipher struct{}

func (plainCipher) Encrypt(plaintext []byte) ([]byte, error) { return plaintext, nil }
func (plainCipher) Decrypt(data []byte) ([]byte, error)      { return data, nil }

// fakeDiary plays both the login service and the authenticated client.
type fakeDiary struct {
	events []diary.Event
}

func (d *fakeDiary) ExchangeCredentials(context.Context, string, string) (*diary.LoginResult, error) {
	return &diary.LoginResult{Token: "tok-1"}, nil
}

func (d *fakeDiary) SubmitChallenge(context.Context, *diary.Challenge, string) (string, error) {
	return "tok-1", nil
}

func (d *fakeDiary) BindToken(string) diary.Client { return d }

func (d *fakeDiary) Profiles(context.Context) ([]diary.Profile, error) {
	return []diary.Profile{{ID: 10}}, nil
}

func (d *fakeDiary) FamilyProfile(context.Context, int64) (*diary.FamilyProfile, error) {
	return &diary.FamilyProfile{
		Role:     "student",
		Children: []diary.Child{{ID: 100, PersonGUID: "guid-1"}},
	}, nil
}

func (d *fakeDiary) Events(context.Context, string, string, time.Time, time.Time) ([]diary.Event, error) {
	return d.events, nil
}

func (d *fakeDiary) Marks(context.Context, int64, int64, time.Time, time.Time) ([]diary.Mark, error) {
	return nil, nil
}

func newTestRouter(d *fakeDiary) (*Router, *auth.Flow, *memRepo) {
	log := slog.Default()
	repo := &memRepo{rows: make(map[int64][]byte)}
	store := session.NewStore(repo, plainCipher{}, d, log)
	authFlow := auth.New(store, d, log)
	controller := nav.New(store, log)
	return New(authFlow, controller, store, log), authFlow, repo
}

func eventsFixture() []diary.Event {
	start := time.Date(2025, 9, 1, 8, 30, 0, 0, time.UTC)
	return []diary.Event{
		{SubjectName: "Math", StartAt: start, FinishAt: start.Add(45 * time.Minute)},
		{SubjectName: "History", StartAt: start.Add(time.Hour), FinishAt: start.Add(time.Hour + 45*time.Minute)},
	}
}

func TestTextIgnoredOutsideLoginFlow(t *testing.T) {
	r, _, _ := newTestRouter(&fakeDiary{})
	s := &session.Session{UserID: 1}

	if _, handled := r.Text(context.Background(), s, "hello"); handled {
		t.Fatal("expected free text to be dropped outside the login flow")
	}
}

func TestUnrecognizedCallbackDropped(t *testing.T) {
	r, _, _ := newTestRouter(&fakeDiary{})
	s := &session.Session{UserID: 1}

	for _, raw := range []string{"bogus", "", "lesson_", "calendar_x_y"} {
		if _, handled := r.Callback(context.Background(), s, raw); handled {
			t.Fatalf("expected %q to be dropped", raw)
		}
	}
}

func TestIgnoreTokenIsInert(t *testing.T) {
	r, _, _ := newTestRouter(&fakeDiary{})
	s := &session.Session{UserID: 1}

	if _, handled := r.Callback(context.Background(), s, "ignore"); handled {
		t.Fatal("expected ignore token to produce no view")
	}
}

func TestFullConversation(t *testing.T) {
	d := &fakeDiary{events: eventsFixture()}
	r, authFlow, _ := newTestRouter(d)
	s := &session.Session{UserID: 1}
	ctx := context.Background()

	authFlow.Start(ctx, s)
	r.Text(ctx, s, "user")
	r.Text(ctx, s, "pass")
	if s.AuthState != session.Authenticated {
		t.Fatalf("expected Authenticated, got %s", s.AuthState)
	}

	v, handled := r.Callback(ctx, s, "view_schedule")
	if !handled || len(v.Keyboard) == 0 {
		t.Fatalf("expected calendar view, got %+v", v)
	}

	v, _ = r.Callback(ctx, s, "2025-09-01")
	if len(s.Nav.Lessons) != 2 {
		t.Fatalf("expected 2 lessons, got %d", len(s.Nav.Lessons))
	}

	v, _ = r.Callback(ctx, s, "lesson_1")
	if !strings.Contains(v.Text, "History") {
		t.Fatalf("expected History detail, got %q", v.Text)
	}

	v, _ = r.Callback(ctx, s, "back_to_lessons")
	if len(v.Keyboard) != 3 {
		t.Fatalf("expected 2 lesson rows + back row, got %d", len(v.Keyboard))
	}

	v, _ = r.Callback(ctx, s, "lesson_0")
	if !strings.Contains(v.Text, "Math") {
		t.Fatalf("expected Math detail, got %q", v.Text)
	}

	v, _ = r.Callback(ctx, s, "back_to_schedule")
	if s.Nav.Screen != session.ScreenCalendar {
		t.Fatalf("expected calendar, got %v", s.Nav.Screen)
	}
}

func TestDeleteDataWipesEverything(t *testing.T) {
	d := &fakeDiary{events: eventsFixture()}
	r, authFlow, repo := newTestRouter(d)
	s := &session.Session{UserID: 1}
	ctx := context.Background()

	authFlow.Start(ctx, s)
	r.Text(ctx, s, "user")
	r.Text(ctx, s, "pass")
	r.Callback(ctx, s, "view_schedule")

	v, handled := r.Callback(ctx, s, "delete_my_data")
	if !handled || v.Text != msgDataDeleted {
		t.Fatalf("unexpected view %+v", v)
	}
	if len(repo.rows) != 0 {
		t.Fatal("expected persisted row purged")
	}
	if s.AuthState != session.LoggedOut || s.Handle != nil || s.Nav.Screen != session.ScreenNone {
		t.Fatalf("expected clean session, got %+v", s)
	}

	// schedule now requires a fresh login
	v, _ = r.Callback(ctx, s, "view_schedule")
	if !strings.Contains(v.Text, "/login") {
		t.Fatalf("expected login prompt, got %q", v.Text)
	}
}
