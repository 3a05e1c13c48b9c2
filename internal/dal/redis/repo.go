package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fadeni/school-diary-bot/internal/dal"
)

type Repository struct {
	client *redis.Client
	log    *slog.Logger
}

func NewRepository(client *redis.Client, log *slog.Logger) *Repository {
	return &Repository{client: client, log: log}
}

func (r *Repository) FindCredential(ctx context.Context, userID int64) (*dal.StoredCredential, error) {
	ciphertext, err := r.client.Get(ctx, credentialKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, dal.ErrNotFound
		}
		return nil, fmt.Errorf("find credential: %w", err)
	}

	var updatedAt time.Time
	val, err := r.client.Get(ctx, credentialUpdatedAtKey(userID)).Result()
	if err == nil {
		updatedAt, _ = time.Parse(time.RFC3339, val)
	}

	return &dal.StoredCredential{
		UserID:     userID,
		Ciphertext: ciphertext,
		UpdatedAt:  updatedAt,
	}, nil
}

func (r *Repository) UpsertCredential(ctx context.Context, userID int64, ciphertext []byte) error {
	if userID == 0 {
		return errors.New("user id is required")
	}
	if len(ciphertext) == 0 {
		return errors.New("ciphertext is required")
	}

	// SET is atomic per key; a concurrent reader sees either the old or the
	// new ciphertext, never a partial value.
	if err := r.client.Set(ctx, credentialKey(userID), ciphertext, 0).Err(); err != nil {
		return fmt.Errorf("upsert credential: %w", err)
	}
	if err := r.client.Set(ctx, credentialUpdatedAtKey(userID), time.Now().UTC().Format(time.RFC3339), 0).Err(); err != nil {
		r.log.WarnContext(ctx, "failed to store credential timestamp", "error", err, "user_id", userID)
	}

	return nil
}

func (r *Repository) DeleteCredential(ctx context.Context, userID int64) error {
	if err := r.client.Del(ctx, credentialKey(userID), credentialUpdatedAtKey(userID)).Err(); err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	return nil
}

func credentialKey(userID int64) string {
	return fmt.Sprintf("credentials:%d", userID)
}

func credentialUpdatedAtKey(userID int64) string {
	return fmt.Sprintf("credentials:%d:updated_at", userID)
}
