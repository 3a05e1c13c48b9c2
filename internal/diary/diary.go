// Package diary talks to the remote school-diary service. The bot sees the
// service through two narrow interfaces: Service for the login exchange and
// Client for calls made with an issued token.
package diary

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrBadCredentials: the login/password pair was rejected.
	ErrBadCredentials = errors.New("bad credentials")
	// ErrInvalidCode: the SMS code was rejected or the challenge is no
	// longer valid. The two cases are indistinguishable to the caller.
	ErrInvalidCode = errors.New("invalid sms code")
	// ErrUnauthorized: the token bound to a Client is expired or revoked.
	ErrUnauthorized = errors.New("unauthorized")
)

type (
	// Challenge is the opaque handle of a pending SMS verification issued
	// by the credential exchange.
	Challenge struct {
		ID string
	}

	// LoginResult holds exactly one of Token or Challenge.
	LoginResult struct {
		Token     string
		Challenge *Challenge
	}

	Profile struct {
		ID int64
	}

	FamilyProfile struct {
		Role     string
		Children []Child
	}

	Child struct {
		ID         int64
		PersonGUID string
		Name       string
	}

	Event struct {
		SubjectName  string
		StartAt      time.Time
		FinishAt     time.Time
		RoomNumber   string
		LessonTheme  string
		Homework     []string
		HasMaterials bool
	}

	Mark struct {
		SubjectName string
		Value       string
		Date        time.Time
		Comment     string
	}

	Service interface {
		ExchangeCredentials(ctx context.Context, username, password string) (*LoginResult, error)
		SubmitChallenge(ctx context.Context, challenge *Challenge, code string) (string, error)
		BindToken(token string) Client
	}

	Client interface {
		Profiles(ctx context.Context) ([]Profile, error)
		FamilyProfile(ctx context.Context, profileID int64) (*FamilyProfile, error)
		Events(ctx context.Context, personGUID, role string, from, to time.Time) ([]Event, error)
		Marks(ctx context.Context, studentID, profileID int64, from, to time.Time) ([]Mark, error)
	}
)

// Complete reports whether the event carries enough data to be shown as a
// lesson. Records without a subject or timestamps are dropped from lists.
func (e Event) Complete() bool {
	return e.SubjectName != "" && !e.StartAt.IsZero() && !e.FinishAt.IsZero()
}
