package session

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/fadeni/school-diary-bot/internal/dal"
)

func TestRestoreAbsentRow(t *testing.T) {
	store := NewStore(newFakeRepo(), &xorCipher{}, &fakeBinder{client: &fakeClient{}}, slog.Default())

	if _, ok := store.Restore(context.Background(), 1); ok {
		t.Fatal("expected no session for absent row")
	}
}

func TestPersistThenRestore(t *testing.T) {
	repo := newFakeRepo()
	binder := &fakeBinder{client: &fakeClient{}}
	store := NewStore(repo, &xorCipher{}, binder, slog.Default())
	ctx := context.Background()

	if err := store.Persist(ctx, 1, "tok-abc"); err != nil {
		t.Fatalf("persist: %v", err)
	}
	if string(repo.rows[1]) == "tok-abc" {
		t.Fatal("token stored in plaintext")
	}

	h, ok := store.Restore(ctx, 1)
	if !ok || h == nil {
		t.Fatal("expected restored handle")
	}
	if len(binder.bound) != 1 || binder.bound[0] != "tok-abc" {
		t.Fatalf("expected handle bound to recovered token, got %v", binder.bound)
	}
}

func TestRestoreDecryptFailurePurgesRow(t *testing.T) {
	repo := newFakeRepo()
	store := NewStore(repo, &xorCipher{failDecrypt: true}, &fakeBinder{client: &fakeClient{}}, slog.Default())
	ctx := context.Background()

	if err := store.Persist(ctx, 1, "tok-abc"); err != nil {
		t.Fatalf("persist: %v", err)
	}

	if _, ok := store.Restore(ctx, 1); ok {
		t.Fatal("expected no session on decrypt failure")
	}
	if _, err := repo.FindCredential(ctx, 1); !errors.Is(err, dal.ErrNotFound) {
		t.Fatalf("expected row purged, got %v", err)
	}
	// second restore: absent row, still no session
	if _, ok := store.Restore(ctx, 1); ok {
		t.Fatal("expected no session after purge")
	}
}

func TestPersistOverwrites(t *testing.T) {
	repo := newFakeRepo()
	binder := &fakeBinder{client: &fakeClient{}}
	store := NewStore(repo, &xorCipher{}, binder, slog.Default())
	ctx := context.Background()

	if err := store.Persist(ctx, 1, "old"); err != nil {
		t.Fatalf("persist: %v", err)
	}
	if err := store.Persist(ctx, 1, "new"); err != nil {
		t.Fatalf("persist again: %v", err)
	}

	if _, ok := store.Restore(ctx, 1); !ok {
		t.Fatal("expected restored handle")
	}
	if got := binder.bound[len(binder.bound)-1]; got != "new" {
		t.Fatalf("expected latest token, got %q", got)
	}
}

func TestPurgeIdempotent(t *testing.T) {
	repo := newFakeRepo()
	store := NewStore(repo, &xorCipher{}, &fakeBinder{client: &fakeClient{}}, slog.Default())
	ctx := context.Background()

	if err := store.Persist(ctx, 1, "tok"); err != nil {
		t.Fatalf("persist: %v", err)
	}
	if err := store.Purge(ctx, 1); err != nil {
		t.Fatalf("purge: %v", err)
	}
	if err := store.Purge(ctx, 1); err != nil {
		t.Fatalf("purge absent: %v", err)
	}
	if _, ok := store.Restore(ctx, 1); ok {
		t.Fatal("expected no session after purge")
	}
}
