package sql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Masterminds/squirrel"

	"github.com/fadeni/school-diary-bot/internal/dal"
)

var qb = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question)

type (
	Client interface {
		ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
		QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	}

	Repository struct {
		client Client
		log    *slog.Logger
	}
)

func NewRepository(ctx context.Context, client Client, log *slog.Logger) (*Repository, error) {
	res := &Repository{client: client, log: log}
	if err := res.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return res, nil
}

func (r *Repository) FindCredential(ctx context.Context, userID int64) (*dal.StoredCredential, error) {
	query := qb.Select("user_id", "encrypted_token", "updated_at").
		From("credentials").
		Where(squirrel.Eq{"user_id": userID})

	sqlQuery, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var res dal.StoredCredential
	var updatedAt string
	err = r.client.QueryRowContext(ctx, sqlQuery, args...).Scan(&res.UserID, &res.Ciphertext, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, dal.ErrNotFound
		}
		return nil, fmt.Errorf("find credential: %w", err)
	}
	if res.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return &res, nil
}

func (r *Repository) UpsertCredential(ctx context.Context, userID int64, ciphertext []byte) error {
	if userID == 0 {
		return errors.New("user id is required")
	}
	if len(ciphertext) == 0 {
		return errors.New("ciphertext is required")
	}

	query := qb.Insert("credentials").
		Columns("user_id", "encrypted_token", "updated_at").
		Values(userID, ciphertext, time.Now().UTC().Format(time.RFC3339)).
		Suffix("ON CONFLICT (user_id) DO UPDATE SET encrypted_token = EXCLUDED.encrypted_token, updated_at = EXCLUDED.updated_at")

	sqlQuery, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if _, err = r.client.ExecContext(ctx, sqlQuery, args...); err != nil {
		return fmt.Errorf("upsert credential: %w", err)
	}

	return nil
}

func (r *Repository) DeleteCredential(ctx context.Context, userID int64) error {
	query := qb.Delete("credentials").
		Where(squirrel.Eq{"user_id": userID})

	sqlQuery, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if _, err = r.client.ExecContext(ctx, sqlQuery, args...); err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}

	return nil
}

func (r *Repository) initSchema(ctx context.Context) error {
	_, err := r.client.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS credentials (
			user_id INTEGER PRIMARY KEY,
			encrypted_token BLOB NOT NULL,
			updated_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create credentials table: %w", err)
	}
	return nil
}
