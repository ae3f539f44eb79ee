package session

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parkgrid/internal/models"
	"parkgrid/internal/store"
)

type memKV struct {
	m map[string][]byte
}

func newMemKV() *memKV { return &memKV{m: make(map[string][]byte)} }

func (s *memKV) Get(key string) ([]byte, error) {
	v, ok := s.m[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return v, nil
}
func (s *memKV) Set(key string, value []byte) error { s.m[key] = value; return nil }
func (s *memKV) Delete(key string) error            { delete(s.m, key); return nil }
func (s *memKV) Close() error                       { return nil }

type stubAuth struct {
	user *models.UserRef
	err  error
}

func (a *stubAuth) Login(_ context.Context, _, _ string) (*models.UserRef, error) {
	return a.user, a.err
}

func testLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

func TestGate_RestoresPersistedSession(t *testing.T) {
	kv := newMemKV()
	data, err := json.Marshal(models.UserRef{ID: "u1", Username: "alice", Role: models.RoleAdmin, Token: "tok"})
	require.NoError(t, err)
	require.NoError(t, kv.Set(StorageKey, data))

	gate := New(kv, testLogger())

	user, err := gate.Require()
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "tok", gate.Token())
	assert.True(t, gate.RequireRole(models.RoleAdmin))
	assert.False(t, gate.RequireRole(models.RoleUser))
}

func TestGate_MalformedRecordMeansLoggedOut(t *testing.T) {
	kv := newMemKV()
	require.NoError(t, kv.Set(StorageKey, []byte("{not json")))

	gate := New(kv, testLogger())

	assert.Nil(t, gate.Current())
	_, err := gate.Require()
	assert.ErrorIs(t, err, ErrNoSession)

	// The bad record is discarded so the next start is clean.
	_, err = kv.Get(StorageKey)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestGate_RecordWithoutTokenIsDiscarded(t *testing.T) {
	kv := newMemKV()
	data, _ := json.Marshal(models.UserRef{ID: "u1", Username: "alice"})
	require.NoError(t, kv.Set(StorageKey, data))

	gate := New(kv, testLogger())
	assert.Nil(t, gate.Current())
}

func TestGate_LoginPersistsAndLogoutClears(t *testing.T) {
	kv := newMemKV()
	gate := New(kv, testLogger())

	auth := &stubAuth{user: &models.UserRef{ID: "u1", Username: "alice", Role: models.RoleUser, Token: "tok"}}
	user, err := gate.Login(context.Background(), auth, "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)

	stored, err := kv.Get(StorageKey)
	require.NoError(t, err)
	var record models.UserRef
	require.NoError(t, json.Unmarshal(stored, &record))
	assert.Equal(t, "tok", record.Token)

	gate.Logout()
	assert.Nil(t, gate.Current())
	_, err = kv.Get(StorageKey)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestGate_LoginFailureLeavesGateClosed(t *testing.T) {
	kv := newMemKV()
	gate := New(kv, testLogger())

	auth := &stubAuth{err: assert.AnError}
	_, err := gate.Login(context.Background(), auth, "alice", "wrong")
	assert.Error(t, err)
	assert.Nil(t, gate.Current())
}
