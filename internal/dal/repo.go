package dal

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

type (
	// StoredCredential is the single persisted row per user: the encrypted
	// diary token issued on the last successful login.
	StoredCredential struct {
		UserID     int64
		Ciphertext []byte
		UpdatedAt  time.Time
	}

	CredentialRepository interface {
		FindCredential(ctx context.Context, userID int64) (*StoredCredential, error)
		UpsertCredential(ctx context.Context, userID int64, ciphertext []byte) error
		DeleteCredential(ctx context.Context, userID int64) error
	}
)
