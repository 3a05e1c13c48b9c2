package auth

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/fadeni/school-diary-bot/internal/dal"
	"github.com/fadeni/school-diary-bot/internal/diary"
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

type nopClient struct{}

func (nopClient) Profiles(context.Context) ([]diary.Profile, error) { return nil, nil }
func (nopClient) FamilyProfile(context.Context, int64) (*diary.FamilyProfile, error) {
	return nil, nil
}
func (nopClient) Events(context.Context, string, string, time.Time, time.Time) ([]diary.Event, error) {
	return nil, nil
}
func (nopClient) Marks(context.Context, int64, int64, time.Time, time.Time) ([]diary.Mark, error) {
	return nil, nil
}

type fakeDiary struct {
	result      *diary.LoginResult
	exchangeErr error
	token       string
	submitErr   error

	gotUsername string
	gotPassword string
	gotCode     string
}

func (d *fakeDiary) ExchangeCredentials(_ context.Context, username, password string) (*diary.LoginResult, error) {
	d.gotUsername, d.gotPassword = username, password
	if d.exchangeErr != nil {
		return nil, d.exchangeErr
	}
	return d.result, nil
}

func (d *fakeDiary) SubmitChallenge(_ context.Context, _ *diary.Challenge, code string) (string, error) {
	d.gotCode = code
	if d.submitErr != nil {
		return "", d.submitErr
	}
	return d.token, nil
}

func (d *fakeDiary) BindToken(string) diary.Client { return nopClient{} }

func newTestFlow(d *fakeDiary) (*Flow, *memRepo) {
	repo := &memRepo{rows: make(map[int64][]byte)}
	store := session.NewStore(repo, plainCipher{}, d, slog.Default())
	return New(store, d, slog.Default()), repo
}

func TestDirectLoginSuccess(t *testing.T) {
	d := &fakeDiary{result: &diary.LoginResult{Token: "tok-1"}}
	flow, repo := newTestFlow(d)
	s := &session.Session{UserID: 1}
	ctx := context.Background()

	flow.Start(ctx, s)
	if s.AuthState != session.AwaitingUsername {
		t.Fatalf("expected AwaitingUsername, got %s", s.AuthState)
	}

	flow.Input(ctx, s, "u")
	if s.AuthState != session.AwaitingPassword {
		t.Fatalf("expected AwaitingPassword, got %s", s.AuthState)
	}

	flow.Input(ctx, s, "p")
	if s.AuthState != session.Authenticated {
		t.Fatalf("expected Authenticated, got %s", s.AuthState)
	}
	if d.gotUsername != "u" || d.gotPassword != "p" {
		t.Fatalf("unexpected credentials %q/%q", d.gotUsername, d.gotPassword)
	}
	if s.Handle == nil {
		t.Fatal("expected diary handle")
	}
	if s.Username != "" {
		t.Fatal("pending username not cleared")
	}
	if string(repo.rows[1]) != "tok-1" {
		t.Fatal("expected token persisted")
	}
}

func TestLoginWithSMSSuccess(t *testing.T) {
	d := &fakeDiary{
		result: &diary.LoginResult{Challenge: &diary.Challenge{ID: "ch-1"}},
		token:  "tok-2",
	}
	flow, repo := newTestFlow(d)
	s := &session.Session{UserID: 1}
	ctx := context.Background()

	flow.Start(ctx, s)
	flow.Input(ctx, s, "u")
	flow.Input(ctx, s, "p")
	if s.AuthState != session.AwaitingSMSCode {
		t.Fatalf("expected AwaitingSMSCode, got %s", s.AuthState)
	}

	flow.Input(ctx, s, "1234")
	if s.AuthState != session.Authenticated {
		t.Fatalf("expected Authenticated, got %s", s.AuthState)
	}
	if d.gotCode != "1234" {
		t.Fatalf("unexpected code %q", d.gotCode)
	}
	if string(repo.rows[1]) != "tok-2" {
		t.Fatal("expected token persisted after sms verification")
	}
}

func TestWrongSMSCodeResetsWithoutRow(t *testing.T) {
	d := &fakeDiary{
		result:    &diary.LoginResult{Challenge: &diary.Challenge{ID: "ch-1"}},
		submitErr: diary.ErrInvalidCode,
	}
	flow, repo := newTestFlow(d)
	s := &session.Session{UserID: 1}
	ctx := context.Background()

	flow.Start(ctx, s)
	flow.Input(ctx, s, "u")
	flow.Input(ctx, s, "p")
	v := flow.Input(ctx, s, "0000")

	if s.AuthState != session.LoggedOut {
		t.Fatalf("expected LoggedOut, got %s", s.AuthState)
	}
	if len(repo.rows) != 0 {
		t.Fatal("expected no credential row written")
	}
	if s.Challenge != nil {
		t.Fatal("challenge not cleared")
	}
	if v.Text != msgInvalidCode {
		t.Fatalf("unexpected message %q", v.Text)
	}
}

func TestExchangeFailureResets(t *testing.T) {
	d := &fakeDiary{exchangeErr: diary.ErrBadCredentials}
	flow, _ := newTestFlow(d)
	s := &session.Session{UserID: 1}
	ctx := context.Background()

	flow.Start(ctx, s)
	flow.Input(ctx, s, "u")
	v := flow.Input(ctx, s, "wrong")

	if s.AuthState != session.LoggedOut {
		t.Fatalf("expected LoggedOut, got %s", s.AuthState)
	}
	if v.Text != msgLoginFailed {
		t.Fatalf("unexpected message %q", v.Text)
	}
}

func TestCancelClearsPending(t *testing.T) {
	d := &fakeDiary{}
	flow, _ := newTestFlow(d)
	s := &session.Session{UserID: 1}
	ctx := context.Background()

	flow.Start(ctx, s)
	flow.Input(ctx, s, "u")
	flow.Cancel(s)

	if s.AuthState != session.LoggedOut {
		t.Fatalf("expected LoggedOut, got %s", s.AuthState)
	}
	if s.Username != "" {
		t.Fatal("pending username not cleared")
	}

	if v := flow.Cancel(s); v.Text != msgNothingToCancel {
		t.Fatalf("unexpected message %q", v.Text)
	}
}

func TestEmptyUsernameReprompts(t *testing.T) {
	d := &fakeDiary{}
	flow, _ := newTestFlow(d)
	s := &session.Session{UserID: 1}
	ctx := context.Background()

	flow.Start(ctx, s)
	flow.Input(ctx, s, "   ")
	if s.AuthState != session.AwaitingUsername {
		t.Fatalf("expected AwaitingUsername, got %s", s.AuthState)
	}
}

func TestStartRestoresPersistedSession(t *testing.T) {
	d := &fakeDiary{}
	flow, repo := newTestFlow(d)
	repo.rows[1] = []byte("tok-old")
	s := &session.Session{UserID: 1}

	v := flow.Start(context.Background(), s)
	if s.AuthState != session.Authenticated {
		t.Fatalf("expected restored session, got %s", s.AuthState)
	}
	if v.Text != msgAlreadyAuthorized {
		t.Fatalf("unexpected message %q", v.Text)
	}
}

func TestStartWhenAuthenticatedIsNoOp(t *testing.T) {
	d := &fakeDiary{}
	flow, _ := newTestFlow(d)
	s := &session.Session{UserID: 1}
	s.Authenticate(session.NewHandle(nopClient{}))

	v := flow.Start(context.Background(), s)
	if s.AuthState != session.Authenticated {
		t.Fatalf("expected Authenticated, got %s", s.AuthState)
	}
	if v.Text != msgAlreadyAuthorized {
		t.Fatalf("unexpected message %q", v.Text)
	}
}

func TestInputErrorClassification(t *testing.T) {
	d := &fakeDiary{exchangeErr: errors.New("connection refused")}
	flow, _ := newTestFlow(d)
	s := &session.Session{UserID: 1}
	ctx := context.Background()

	flow.Start(ctx, s)
	flow.Input(ctx, s, "u")
	flow.Input(ctx, s, "p")

	// transport errors during the exchange also reset the flow: the user
	// restarts with /login either way
	if s.AuthState != session.LoggedOut {
		t.Fatalf("expected LoggedOut, got %s", s.AuthState)
	}
}
