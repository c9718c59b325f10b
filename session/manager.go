package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	ierrors "github.com/ispkit/selfcare/internal/errors"
	"github.com/ispkit/selfcare/store"
)

// Authenticator performs a silent re-login with cached credentials and
// returns a fresh bearer token. *crm.Client satisfies it.
type Authenticator interface {
	Reauthenticate(ctx context.Context, username, password string) (string, error)
}

// Manager is the single source of truth for the session record, persisted
// across process restarts through a store.KV.
type Manager struct {
	kv   store.KV
	log  zerolog.Logger
	now  func() time.Time
	lock sync.Mutex
}

// Option modifies a Manager.
type Option func(*Manager)

// WithNowTime sets the clock function (primarily for testing).
func WithNowTime(nowFunc func() time.Time) Option {
	return func(m *Manager) { m.now = nowFunc }
}

// New creates a session Manager over the given store.
func New(kv store.KV, log zerolog.Logger, options ...Option) (*Manager, error) {
	if kv == nil {
		return nil, errors.New("[session.New] kv store is required")
	}
	m := &Manager{
		kv:  kv,
		log: log.With().Str("component", "session").Logger(),
		now: time.Now,
	}
	for _, opt := range options {
		opt(m)
	}
	return m, nil
}

// Initialize loads the persisted session and clears it when structurally
// invalid. A missing session is a normal state, not an error.
func (m *Manager) Initialize() error {
	m.lock.Lock()
	defer m.lock.Unlock()

	raw, ok, err := m.kv.Get(sessionKey)
	if err != nil {
		return errors.Wrap(err, "[Manager.Initialize] read session")
	}
	if !ok {
		return nil
	}
	var s Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil || !s.valid() {
		m.log.Warn().Msg("persisted session invalid, clearing")
		if err := m.kv.Delete(sessionKey); err != nil {
			return errors.Wrap(err, "[Manager.Initialize] clear invalid session")
		}
	}
	return nil
}

// CreateOption adjusts session creation.
type CreateOption func(*createParams)

type createParams struct {
	password   string
	clientName string
}

// WithPassword caches the password for silent token regeneration. OTP
// logins omit it, giving up silent regeneration.
func WithPassword(password string) CreateOption {
	return func(p *createParams) { p.password = password }
}

// WithClientName records the tenant the session belongs to.
func WithClientName(name string) CreateOption {
	return func(p *createParams) { p.clientName = name }
}

// Create builds and persists a new session record, unconditionally
// overwriting any prior one, and caches credentials when a password was
// supplied.
func (m *Manager) Create(username, token string, options ...CreateOption) (*Session, error) {
	if username == "" || token == "" {
		return nil, errors.New("[Manager.Create] username and token are required")
	}
	var params createParams
	for _, opt := range options {
		opt(&params)
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	now := m.now()
	s := &Session{
		IsLoggedIn:       true,
		Username:         username,
		Token:            token,
		LastLoginTime:    now,
		LastActivityTime: now,
		ClientName:       params.clientName,
	}
	if err := m.persist(s); err != nil {
		return nil, errors.Wrap(err, "[Manager.Create]")
	}
	if err := m.kv.Set(usernameKey, username); err != nil {
		return nil, errors.Wrap(err, "[Manager.Create] store username")
	}
	if params.password != "" {
		if err := m.kv.Set(passwordKey, params.password); err != nil {
			return nil, errors.Wrap(err, "[Manager.Create] store password")
		}
	}
	m.log.Info().Str("username", username).Str("client", params.clientName).Msg("session created")
	return s, nil
}

// Current returns the persisted session re-read from the store, or nil when
// no valid session exists. It never returns an error for absence or
// corruption.
func (m *Manager) Current() (*Session, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.read(), nil
}

// Token returns the current bearer token, or "" when there is none.
func (m *Manager) Token() (string, error) {
	s, err := m.Current()
	if err != nil || s == nil {
		return "", err
	}
	return s.Token, nil
}

// Username returns the logged-in username, or "" when there is none.
func (m *Manager) Username() (string, error) {
	s, err := m.Current()
	if err != nil || s == nil {
		return "", err
	}
	return s.Username, nil
}

// UpdateToken replaces the token in place and bumps the activity timestamp.
func (m *Manager) UpdateToken(newToken string) error {
	if newToken == "" {
		return errors.New("[Manager.UpdateToken] empty token")
	}
	m.lock.Lock()
	defer m.lock.Unlock()

	s := m.read()
	if s == nil {
		return ierrors.ErrNoSession
	}
	s.Token = newToken
	s.LastActivityTime = m.now()
	return errors.Wrap(m.persist(s), "[Manager.UpdateToken]")
}

// UpdateActivityTime bumps LastActivityTime. A missing session is a no-op.
func (m *Manager) UpdateActivityTime() error {
	m.lock.Lock()
	defer m.lock.Unlock()

	s := m.read()
	if s == nil {
		return nil
	}
	s.LastActivityTime = m.now()
	return errors.Wrap(m.persist(s), "[Manager.UpdateActivityTime]")
}

// Clear removes the session record and cached credentials. Clearing an
// already-empty store is not an error.
func (m *Manager) Clear() error {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.clearLocked()
}

func (m *Manager) clearLocked() error {
	for _, key := range []string{sessionKey, usernameKey, passwordKey} {
		if err := m.kv.Delete(key); err != nil {
			return errors.Wrapf(err, "[Manager.Clear] delete %s", key)
		}
	}
	return nil
}

// Logout is a superset of Clear: it also removes the tenant selection,
// cached account/plan data and biometric/PIN unlock configuration. Partial
// failures on the side stores are logged and swallowed so logout always
// completes.
func (m *Manager) Logout() error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if err := m.clearLocked(); err != nil {
		return err
	}
	for _, key := range []string{tenantKey, baseURLKey, biometricKey, pinKey} {
		if err := m.kv.Delete(key); err != nil {
			m.log.Warn().Str("key", key).Err(err).Msg("logout: side store delete failed")
		}
	}
	cached, err := m.kv.Keys(cachePrefix)
	if err != nil {
		m.log.Warn().Err(err).Msg("logout: listing cached keys failed")
		return nil
	}
	for _, key := range cached {
		if err := m.kv.Delete(key); err != nil {
			m.log.Warn().Str("key", key).Err(err).Msg("logout: cached key delete failed")
		}
	}
	m.log.Info().Msg("logged out")
	return nil
}

// Regenerate silently re-authenticates with the cached credentials and
// persists the new token. It returns ErrNoCredentials when no password was
// cached (OTP logins) and never panics. Callers normally reach this through
// the token manager, which coalesces concurrent attempts.
func (m *Manager) Regenerate(ctx context.Context, authn Authenticator) (string, error) {
	username, password, err := m.credentials()
	if err != nil {
		return "", err
	}
	token, err := authn.Reauthenticate(ctx, username, password)
	if err != nil {
		m.log.Warn().Err(err).Msg("token regeneration failed")
		return "", errors.Wrap(err, "[Manager.Regenerate]")
	}
	if err := m.UpdateToken(token); err != nil {
		return "", errors.Wrap(err, "[Manager.Regenerate] persist token")
	}
	m.log.Info().Int("token_len", len(token)).Msg("token regenerated")
	return token, nil
}

func (m *Manager) credentials() (username, password string, err error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	username, ok, err := m.kv.Get(usernameKey)
	if err != nil {
		return "", "", errors.Wrap(err, "[Manager.credentials] read username")
	}
	if !ok || username == "" {
		return "", "", ierrors.ErrNoCredentials
	}
	password, ok, err = m.kv.Get(passwordKey)
	if err != nil {
		return "", "", errors.Wrap(err, "[Manager.credentials] read password")
	}
	if !ok || password == "" {
		return "", "", ierrors.ErrNoCredentials
	}
	return username, password, nil
}

// CheckBeforeCall decides what an authenticated call should do before it
// starts: proceed, attempt regeneration (token missing), or redirect to
// login (no session).
func (m *Manager) CheckBeforeCall() Check {
	s, _ := m.Current()
	switch {
	case s == nil:
		return Check{Valid: false, ShouldRedirect: true, Message: "no active session"}
	case s.Token == "":
		return Check{Valid: false, ShouldRedirect: false, Message: "token missing"}
	default:
		return Check{Valid: true}
	}
}

// Diagnose inspects the persisted session and credentials for structural
// problems without mutating anything. A missing token alone never
// recommends a reset: regeneration can repair it.
func (m *Manager) Diagnose() Diagnosis {
	m.lock.Lock()
	defer m.lock.Unlock()

	var d Diagnosis

	raw, ok, err := m.kv.Get(sessionKey)
	if err != nil {
		d.Issues = append(d.Issues, "session store unreadable")
		return d
	}
	if !ok {
		d.Issues = append(d.Issues, "no persisted session")
		return d
	}

	var s Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		d.NeedsReset = true
		d.Issues = append(d.Issues, "session record corrupt")
		return d
	}
	if s.Username == "" {
		d.NeedsReset = true
		d.Issues = append(d.Issues, "session missing username")
	}
	if !s.IsLoggedIn {
		d.NeedsReset = true
		d.Issues = append(d.Issues, "session not marked logged in")
	}
	if s.Token == "" {
		d.Issues = append(d.Issues, "token missing (repairable by regeneration)")
	}
	if storedUser, ok, _ := m.kv.Get(usernameKey); ok && storedUser != "" && s.Username != "" && storedUser != s.Username {
		d.NeedsReset = true
		d.Issues = append(d.Issues, "username mismatch between session and credentials")
	}
	return d
}

// Reset is the unconditional hard clear used when Diagnose recommends it:
// session, credentials and tenant selection all go.
func (m *Manager) Reset() error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if err := m.clearLocked(); err != nil {
		return errors.Wrap(err, "[Manager.Reset]")
	}
	for _, key := range []string{tenantKey, baseURLKey} {
		if err := m.kv.Delete(key); err != nil {
			return errors.Wrapf(err, "[Manager.Reset] delete %s", key)
		}
	}
	m.log.Info().Msg("session reset")
	return nil
}

// SaveTenantSelection persists which tenant this device talks to.
func (m *Manager) SaveTenantSelection(tenantID, baseURL string) error {
	if err := m.kv.Set(tenantKey, tenantID); err != nil {
		return errors.Wrap(err, "[Manager.SaveTenantSelection] tenant")
	}
	return errors.Wrap(m.kv.Set(baseURLKey, baseURL), "[Manager.SaveTenantSelection] base url")
}

// TenantSelection returns the persisted tenant id, or "" when none is set.
func (m *Manager) TenantSelection() (string, error) {
	id, _, err := m.kv.Get(tenantKey)
	return id, errors.Wrap(err, "[Manager.TenantSelection]")
}

// read returns the current valid session or nil. Corrupt or structurally
// invalid blobs read as "no session". Caller holds the lock.
func (m *Manager) read() *Session {
	raw, ok, err := m.kv.Get(sessionKey)
	if err != nil || !ok {
		return nil
	}
	var s Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil
	}
	if !s.valid() {
		return nil
	}
	return &s
}

// persist writes the session record. Caller holds the lock.
func (m *Manager) persist(s *Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return errors.Wrap(err, "marshal session")
	}
	return errors.Wrap(m.kv.Set(sessionKey, string(raw)), "write session")
}
