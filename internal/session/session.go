// Package session tracks the authenticated identity for the running client
// and gates actions that require a logged-in user or a specific role.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"parkgrid/internal/models"
	"parkgrid/internal/store"
)

// StorageKey is the key the session record is persisted under, mirroring the
// backend's login response shape {id, username, role, token}.
const StorageKey = "user"

// ErrNoSession is returned by Require when nobody is logged in.
var ErrNoSession = errors.New("no active session")

// Authenticator performs the credential exchange against the backend.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (*models.UserRef, error)
}

// Gate holds the current session, restored once at startup from the
// persistent store. A missing or malformed stored record means "not logged
// in", never a fatal error.
type Gate struct {
	mu      sync.RWMutex
	current *models.UserRef
	kv      store.KV
	logger  *zerolog.Logger
}

// New constructs a gate and restores any persisted session.
func New(kv store.KV, logger *zerolog.Logger) *Gate {
	g := &Gate{kv: kv, logger: logger}
	g.restore()
	return g
}

func (g *Gate) restore() {
	data, err := g.kv.Get(StorageKey)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			g.logger.Warn().Err(err).Msg("session restore failed, starting logged out")
		}
		return
	}

	var user models.UserRef
	if err := json.Unmarshal(data, &user); err != nil || user.ID == "" || user.Token == "" {
		g.logger.Warn().Msg("stored session record malformed, discarding")
		_ = g.kv.Delete(StorageKey)
		return
	}

	g.current = &user
	g.logger.Info().Str("username", user.Username).Msg("session restored")
}

// Current returns the logged-in user, or nil.
func (g *Gate) Current() *models.UserRef {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.current
}

// Token returns the bearer token of the current session, or "".
func (g *Gate) Token() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.current == nil {
		return ""
	}
	return g.current.Token
}

// Require returns the current user or ErrNoSession.
func (g *Gate) Require() (*models.UserRef, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.current == nil {
		return nil, ErrNoSession
	}
	return g.current, nil
}

// RequireRole reports whether the current user holds the given role. A
// missing session never panics; it simply fails the gate.
func (g *Gate) RequireRole(role models.Role) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.current != nil && g.current.Role == role
}

// Login exchanges credentials for a session and persists it.
func (g *Gate) Login(ctx context.Context, auth Authenticator, username, password string) (*models.UserRef, error) {
	user, err := auth.Login(ctx, username, password)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(user)
	if err != nil {
		return nil, err
	}
	if err := g.kv.Set(StorageKey, data); err != nil {
		g.logger.Warn().Err(err).Msg("session not persisted, continuing in memory")
	}

	g.mu.Lock()
	g.current = user
	g.mu.Unlock()

	g.logger.Info().Str("username", user.Username).Msg("logged in")
	return user, nil
}

// Logout clears the session and the persisted record.
func (g *Gate) Logout() {
	g.mu.Lock()
	g.current = nil
	g.mu.Unlock()

	if err := g.kv.Delete(StorageKey); err != nil {
		g.logger.Warn().Err(err).Msg("failed to clear persisted session")
	}
}
