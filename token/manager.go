// Package token makes any single backend call resilient to an expired or
// invalid bearer token without the caller knowing tokens exist. The Manager
// guarantees at most one re-authentication is in flight per process:
// concurrent regeneration callers are coalesced onto the same underlying
// call and observe the same result.
package token

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/ispkit/selfcare/crm"
	ierrors "github.com/ispkit/selfcare/internal/errors"
	"github.com/ispkit/selfcare/session"
)

// DefaultMaxRetries is how many regenerate-and-retry cycles Do runs after
// the first attempt.
const DefaultMaxRetries = 1

// regenKey is the singleflight key: one logical session per process, so one
// coalescing slot.
const regenKey = "regenerate"

// Default regeneration rate limit: bursts are fine, sustained storms are not.
const (
	rateInterval = 2 * time.Second
	rateBurst    = 5
)

// RequestFunc is one authenticated backend call. It receives the current
// bearer token and must return the error unchanged on failure so it can be
// classified.
type RequestFunc func(ctx context.Context, token string) error

// Manager coordinates token regeneration and authenticated retries.
type Manager struct {
	sessions *session.Manager
	authn    session.Authenticator
	group    singleflight.Group
	limiter  *rate.Limiter
	log      zerolog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithRegenLimiter replaces the regeneration rate limiter. The default
// allows short bursts but stops a misclassification storm from hammering
// the login endpoint.
func WithRegenLimiter(l *rate.Limiter) Option {
	return func(m *Manager) { m.limiter = l }
}

// New builds a token Manager over the session manager and an authenticator
// (normally the tenant's *crm.Client).
func New(sessions *session.Manager, authn session.Authenticator, log zerolog.Logger, options ...Option) (*Manager, error) {
	if sessions == nil {
		return nil, errors.New("[token.New] session manager is required")
	}
	if authn == nil {
		return nil, errors.New("[token.New] authenticator is required")
	}
	m := &Manager{
		sessions: sessions,
		authn:    authn,
		limiter:  rate.NewLimiter(rate.Every(rateInterval), rateBurst),
		log:      log.With().Str("component", "token").Logger(),
	}
	for _, opt := range options {
		opt(m)
	}
	return m, nil
}

// Regenerate obtains a fresh bearer token using the cached credentials.
// Concurrent callers share one in-flight re-authentication and all receive
// its result; the slot is released only after the call fully settles. The
// flight is detached from the initiating context: once started it runs to
// completion even if the first caller cancels.
func (m *Manager) Regenerate(ctx context.Context) (string, error) {
	v, err, shared := m.group.Do(regenKey, func() (interface{}, error) {
		// Other callers may be coalesced onto this flight, so it must not
		// inherit any single caller's cancellation. The HTTP client's
		// timeout still bounds the call.
		flightCtx := context.WithoutCancel(ctx)
		if err := m.limiter.Wait(flightCtx); err != nil {
			return "", errors.Wrap(ierrors.ErrRegenThrottled, err.Error())
		}
		return m.sessions.Regenerate(flightCtx, m.authn)
	})
	if shared {
		m.log.Debug().Msg("regeneration coalesced onto in-flight call")
	}
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// DoOption adjusts a single Do call.
type DoOption func(*doParams)

type doParams struct {
	maxRetries int
}

// WithMaxRetries overrides the regenerate-and-retry bound for one call.
func WithMaxRetries(n int) DoOption {
	return func(p *doParams) {
		if n >= 0 {
			p.maxRetries = n
		}
	}
}

// Do runs fn with the current token and transparently repairs an expired
// token: on an auth-classified failure it regenerates once (bounded by the
// retry option) and retries fn with the new token. Non-auth failures are
// returned unchanged after the first attempt. A missing token fails
// immediately with ErrAuthRequired and clears the session; a failed
// regeneration clears the session and fails with ErrLoginAgain.
func (m *Manager) Do(ctx context.Context, fn RequestFunc, options ...DoOption) error {
	params := doParams{maxRetries: DefaultMaxRetries}
	for _, opt := range options {
		opt(&params)
	}

	for attempt := 0; attempt <= params.maxRetries; attempt++ {
		tok, err := m.sessions.Token()
		if err != nil {
			return errors.Wrap(err, "[Manager.Do] read token")
		}
		if tok == "" {
			if cerr := m.sessions.Clear(); cerr != nil {
				m.log.Warn().Err(cerr).Msg("session clear failed")
			}
			return ierrors.ErrAuthRequired
		}

		if err := m.sessions.UpdateActivityTime(); err != nil {
			m.log.Warn().Err(err).Msg("activity bump failed")
		}

		err = fn(ctx, tok)
		if err == nil {
			return nil
		}
		if !crm.IsAuthExpired(err) || attempt >= params.maxRetries {
			return err
		}

		m.log.Info().Int("attempt", attempt).Msg("auth failure, regenerating token")
		if _, rerr := m.Regenerate(ctx); rerr != nil {
			if cerr := m.sessions.Clear(); cerr != nil {
				m.log.Warn().Err(cerr).Msg("session clear failed")
			}
			return errors.Wrap(ierrors.ErrLoginAgain, rerr.Error())
		}
		// Regenerate persisted the new token; the next iteration rereads it.
	}
	return ierrors.ErrLoginAgain
}
