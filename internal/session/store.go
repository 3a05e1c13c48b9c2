package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/fadeni/school-diary-bot/internal/dal"
	"github.com/fadeni/school-diary-bot/internal/diary"
)

type (
	Cipher interface {
		Encrypt(plaintext []byte) ([]byte, error)
		Decrypt(data []byte) ([]byte, error)
	}

	TokenBinder interface {
		BindToken(token string) diary.Client
	}

	// Store owns the encrypted-token lifecycle: persist on login, restore
	// on demand, purge on deletion or on ciphertext that no longer
	// decrypts.
	Store struct {
		repo   dal.CredentialRepository
		cipher Cipher
		binder TokenBinder
		log    *slog.Logger
	}
)

func NewStore(repo dal.CredentialRepository, cipher Cipher, binder TokenBinder, log *slog.Logger) *Store {
	return &Store{repo: repo, cipher: cipher, binder: binder, log: log}
}

// Restore rebuilds an authenticated handle from the persisted row. Absent
// row, unreadable row and undecryptable ciphertext all come back as "no
// session"; an undecryptable row is purged so the user is forced through a
// clean re-login. The token is NOT validated against the remote service —
// an expired token surfaces on the first diary call.
func (s *Store) Restore(ctx context.Context, userID int64) (*Handle, bool) {
	cred, err := s.repo.FindCredential(ctx, userID)
	if err != nil {
		if !errors.Is(err, dal.ErrNotFound) {
			s.log.ErrorContext(ctx, "failed to read credential row", "error", err, "user_id", userID)
		}
		return nil, false
	}

	token, err := s.cipher.Decrypt(cred.Ciphertext)
	if err != nil {
		s.log.WarnContext(ctx, "stored token does not decrypt, purging row", "error", err, "user_id", userID)
		if err := s.repo.DeleteCredential(ctx, userID); err != nil {
			s.log.ErrorContext(ctx, "failed to purge corrupt credential row", "error", err, "user_id", userID)
		}
		return nil, false
	}

	if expiresAt, ok := tokenExpiry(string(token)); ok && expiresAt.Before(time.Now()) {
		s.log.InfoContext(ctx, "restored token is past its expiry claim", "user_id", userID, "expires_at", expiresAt)
	}

	return NewHandle(s.binder.BindToken(string(token))), true
}

// Persist encrypts and overwrites the user's row.
func (s *Store) Persist(ctx context.Context, userID int64, token string) error {
	ciphertext, err := s.cipher.Encrypt([]byte(token))
	if err != nil {
		return fmt.Errorf("encrypt token: %w", err)
	}
	if err := s.repo.UpsertCredential(ctx, userID, ciphertext); err != nil {
		return fmt.Errorf("persist credential: %w", err)
	}
	return nil
}

// Purge deletes the user's row. Absence is not an error.
func (s *Store) Purge(ctx context.Context, userID int64) error {
	if err := s.repo.DeleteCredential(ctx, userID); err != nil {
		return fmt.Errorf("purge credential: %w", err)
	}
	return nil
}

// tokenExpiry peeks at the exp claim of a diary token without verifying the
// signature. Diary tokens are JWTs signed by the remote service; the claim is
// used for logging only, never to gate the restore.
func tokenExpiry(token string) (time.Time, bool) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	expiresAt, err := parsed.Claims.GetExpirationTime()
	if err != nil || expiresAt == nil {
		return time.Time{}, false
	}
	return expiresAt.Time, true
}
