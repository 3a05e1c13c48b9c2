package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/fadeni/school-diary-bot/internal/diary"
)

// ErrNoStudent: the account has no profile or no children attached (for
// example a teacher-role account); there is no schedule to show.
var ErrNoStudent = errors.New("no student attached to account")

type (
	// Identity is the resolved "whose schedule" answer: first profile,
	// first child. Accounts with several children always get the first
	// one; this mirrors the remote service's mobile client behavior.
	Identity struct {
		ProfileID  int64
		StudentID  int64
		PersonGUID string
		Role       string
	}

	// Handle is an authenticated diary client plus the student identity
	// cached after the first resolution. It is owned by exactly one
	// Session and never shared across users.
	Handle struct {
		client   diary.Client
		identity *Identity
	}
)

func NewHandle(client diary.Client) *Handle {
	return &Handle{client: client}
}

func (h *Handle) Client() diary.Client {
	return h.client
}

// Identity resolves profile -> family -> first child once and caches the
// result for the lifetime of the handle.
func (h *Handle) Identity(ctx context.Context) (*Identity, error) {
	if h.identity != nil {
		return h.identity, nil
	}

	profiles, err := h.client.Profiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("get profiles: %w", err)
	}
	if len(profiles) == 0 {
		return nil, ErrNoStudent
	}

	family, err := h.client.FamilyProfile(ctx, profiles[0].ID)
	if err != nil {
		return nil, fmt.Errorf("get family profile: %w", err)
	}
	if len(family.Children) == 0 {
		return nil, ErrNoStudent
	}

	child := family.Children[0]
	if child.PersonGUID == "" || child.ID == 0 {
		return nil, ErrNoStudent
	}

	h.identity = &Identity{
		ProfileID:  profiles[0].ID,
		StudentID:  child.ID,
		PersonGUID: child.PersonGUID,
		Role:       family.Role,
	}
	return h.identity, nil
}
