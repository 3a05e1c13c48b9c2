package session

import (
	"context"
	"errors"
	"time"

	"github.com/fadeni/school-diary-bot/internal/dal"
	"github.com/fadeni/school-diary-bot/internal/diary"
)

type fakeRepo struct {
	rows map[int64][]byte
	err  error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{rows: make(map[int64][]byte)}
}

func (r *fakeRepo) FindCredential(_ context.Context, userID int64) (*dal.StoredCredential, error) {
	if r.err != nil {
		return nil, r.err
	}
	ciphertext, ok := r.rows[userID]
	if !ok {
		return nil, dal.ErrNotFound
	}
	return &dal.StoredCredential{UserID: userID, Ciphertext: ciphertext, UpdatedAt: time.Now()}, nil
}

func (r *fakeRepo) UpsertCredential(_ context.Context, userID int64, ciphertext []byte) error {
	if r.err != nil {
		return r.err
	}
	r.rows[userID] = ciphertext
	return nil
}

func (r *fakeRepo) DeleteCredential(_ context.Context, userID int64) error {
	delete(r.rows, userID)
	return nil
}

// xorCipher is a stand-in for the real AEAD: reversible, and failures are
// triggered explicitly via failDecrypt.
type xorCipher struct {
	failDecrypt bool
}

func (c *xorCipher) Encrypt(plaintext []byte) ([]byte, error) {
	res := make([]byte, len(plaintext))
	for i, b := range plaintext {
		res[i] = b ^ 0x5a
	}
	return res, nil
}

func (c *xorCipher) Decrypt(data []byte) ([]byte, error) {
	if c.failDecrypt {
		return nil, errors.New("decrypt token")
	}
	return c.Encrypt(data)
}

type fakeBinder struct {
	client diary.Client
	bound  []string
}

func (b *fakeBinder) BindToken(token string) diary.Client {
	b.bound = append(b.bound, token)
	return b.client
}

type fakeClient struct {
	profiles     []diary.Profile
	family       *diary.FamilyProfile
	events       []diary.Event
	marks        []diary.Mark
	err          error
	profileCalls int
	eventCalls   int
}

func (c *fakeClient) Profiles(context.Context) ([]diary.Profile, error) {
	c.profileCalls++
	if c.err != nil {
		return nil, c.err
	}
	return c.profiles, nil
}

func (c *fakeClient) FamilyProfile(context.Context, int64) (*diary.FamilyProfile, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.family, nil
}

func (c *fakeClient) Events(context.Context, string, string, time.Time, time.Time) ([]diary.Event, error) {
	c.eventCalls++
	if c.err != nil {
		return nil, c.err
	}
	return c.events, nil
}

func (c *fakeClient) Marks(context.Context, int64, int64, time.Time, time.Time) ([]diary.Mark, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.marks, nil
}
