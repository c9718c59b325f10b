package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	ierrors "github.com/ispkit/selfcare/internal/errors"
	"github.com/ispkit/selfcare/session"
	"github.com/ispkit/selfcare/store/storefakes"
)

const (
	testUsername = "alice"
	testToken    = "tok1"
	testPassword = "password123"
	testTenant   = "dna-infotel"

	sessionKey = "selfcare.session"
)

type fixture struct {
	kv       *storefakes.FakeKV
	sessions *session.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	kv := storefakes.NewFakeKV()
	m, err := session.New(kv, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, m.Initialize())
	return &fixture{kv: kv, sessions: m}
}

type stubAuthenticator struct {
	token string
	err   error
	calls int
}

func (a *stubAuthenticator) Reauthenticate(ctx context.Context, username, password string) (string, error) {
	a.calls++
	if a.err != nil {
		return "", a.err
	}
	return a.token, nil
}

func TestCreateAndCurrent(t *testing.T) {
	f := newFixture(t)

	created, err := f.sessions.Create(testUsername, testToken,
		session.WithPassword(testPassword),
		session.WithClientName(testTenant),
	)
	require.NoError(t, err)
	require.True(t, created.IsLoggedIn)

	s, err := f.sessions.Current()
	require.NoError(t, err)
	require.NotNil(t, s)
	require.Equal(t, testUsername, s.Username)
	require.Equal(t, testToken, s.Token)
	require.Equal(t, testTenant, s.ClientName)
	require.False(t, s.LastLoginTime.IsZero())
}

func TestCreateRequiresUsernameAndToken(t *testing.T) {
	f := newFixture(t)

	_, err := f.sessions.Create("", testToken)
	require.Error(t, err)
	_, err = f.sessions.Create(testUsername, "")
	require.Error(t, err)
}

func TestCurrentIsIdempotent(t *testing.T) {
	f := newFixture(t)
	_, err := f.sessions.Create(testUsername, testToken)
	require.NoError(t, err)

	first, err := f.sessions.Current()
	require.NoError(t, err)
	second, err := f.sessions.Current()
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestCurrentWithNoSession(t *testing.T) {
	f := newFixture(t)

	s, err := f.sessions.Current()
	require.NoError(t, err)
	require.Nil(t, s)

	tok, err := f.sessions.Token()
	require.NoError(t, err)
	require.Empty(t, tok)

	name, err := f.sessions.Username()
	require.NoError(t, err)
	require.Empty(t, name)
}

func TestCorruptSessionReadsAsAbsent(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.kv.Set(sessionKey, "{not valid json"))

	s, err := f.sessions.Current()
	require.NoError(t, err)
	require.Nil(t, s)
}

func TestInitializeClearsInvalidSession(t *testing.T) {
	kv := storefakes.NewFakeKV()
	require.NoError(t, kv.Set(sessionKey, `{"username":"","isLoggedIn":false}`))

	m, err := session.New(kv, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, m.Initialize())

	_, ok, err := kv.Get(sessionKey)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestUpdateToken(t *testing.T) {
	nowTime := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	kv := storefakes.NewFakeKV()
	m, err := session.New(kv, zerolog.Nop(), session.WithNowTime(func() time.Time { return nowTime }))
	require.NoError(t, err)

	_, err = m.Create(testUsername, testToken)
	require.NoError(t, err)

	nowTime = nowTime.Add(time.Hour)
	require.NoError(t, m.UpdateToken("tok2"))

	s, err := m.Current()
	require.NoError(t, err)
	require.Equal(t, "tok2", s.Token)
	require.Equal(t, nowTime, s.LastActivityTime)
}

func TestUpdateTokenWithoutSession(t *testing.T) {
	f := newFixture(t)
	err := f.sessions.UpdateToken("tok2")
	require.ErrorIs(t, err, ierrors.ErrNoSession)
}

func TestRegenerateWithoutCredentials(t *testing.T) {
	f := newFixture(t)
	_, err := f.sessions.Create("bob", testToken) // no password cached
	require.NoError(t, err)

	authn := &stubAuthenticator{token: "tok2"}
	_, err = f.sessions.Regenerate(context.Background(), authn)
	require.ErrorIs(t, err, ierrors.ErrNoCredentials)
	require.Zero(t, authn.calls)
}

func TestRegenerateSuccess(t *testing.T) {
	f := newFixture(t)
	_, err := f.sessions.Create(testUsername, testToken, session.WithPassword(testPassword))
	require.NoError(t, err)

	authn := &stubAuthenticator{token: "tok2"}
	tok, err := f.sessions.Regenerate(context.Background(), authn)
	require.NoError(t, err)
	require.Equal(t, "tok2", tok)
	require.Equal(t, 1, authn.calls)

	s, err := f.sessions.Current()
	require.NoError(t, err)
	require.Equal(t, "tok2", s.Token)
}

func TestRegenerateBackendFailure(t *testing.T) {
	f := newFixture(t)
	_, err := f.sessions.Create(testUsername, testToken, session.WithPassword(testPassword))
	require.NoError(t, err)

	authn := &stubAuthenticator{err: errors.New("Invalid Username or Password")}
	_, err = f.sessions.Regenerate(context.Background(), authn)
	require.Error(t, err)

	// A failed regeneration leaves the old session record intact.
	s, err := f.sessions.Current()
	require.NoError(t, err)
	require.Equal(t, testToken, s.Token)
}

func TestCheckBeforeCall(t *testing.T) {
	f := newFixture(t)

	check := f.sessions.CheckBeforeCall()
	require.False(t, check.Valid)
	require.True(t, check.ShouldRedirect)
	require.Equal(t, "no active session", check.Message)

	// Session with an empty token: degraded, repairable, no redirect.
	require.NoError(t, f.kv.Set(sessionKey, `{"isLoggedIn":true,"username":"alice","token":""}`))
	check = f.sessions.CheckBeforeCall()
	require.False(t, check.Valid)
	require.False(t, check.ShouldRedirect)
	require.Equal(t, "token missing", check.Message)

	_, err := f.sessions.Create(testUsername, testToken)
	require.NoError(t, err)
	check = f.sessions.CheckBeforeCall()
	require.True(t, check.Valid)
	require.False(t, check.ShouldRedirect)
}

func TestDiagnose(t *testing.T) {
	t.Run("healthy session", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.sessions.Create(testUsername, testToken, session.WithPassword(testPassword))
		require.NoError(t, err)

		d := f.sessions.Diagnose()
		require.False(t, d.NeedsReset)
		require.Empty(t, d.Issues)
	})

	t.Run("missing token alone is repairable", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.kv.Set(sessionKey, `{"isLoggedIn":true,"username":"alice","token":""}`))

		d := f.sessions.Diagnose()
		require.False(t, d.NeedsReset)
		require.Len(t, d.Issues, 1)
	})

	t.Run("corrupt blob needs reset", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.kv.Set(sessionKey, "garbage"))

		d := f.sessions.Diagnose()
		require.True(t, d.NeedsReset)
	})

	t.Run("username mismatch needs reset", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.sessions.Create(testUsername, testToken, session.WithPassword(testPassword))
		require.NoError(t, err)
		require.NoError(t, f.kv.Set("selfcare.username", "someone-else"))

		d := f.sessions.Diagnose()
		require.True(t, d.NeedsReset)
	})

	t.Run("diagnose does not mutate", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.kv.Set(sessionKey, "garbage"))
		_ = f.sessions.Diagnose()

		raw, ok, err := f.kv.Get(sessionKey)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "garbage", raw)
	})
}

func TestClearIsIdempotent(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.sessions.Clear())
	require.NoError(t, f.sessions.Clear())
}

func TestLogoutClearsEverything(t *testing.T) {
	f := newFixture(t)
	_, err := f.sessions.Create(testUsername, testToken,
		session.WithPassword(testPassword),
		session.WithClientName(testTenant),
	)
	require.NoError(t, err)
	require.NoError(t, f.sessions.SaveTenantSelection(testTenant, "https://crm.example.com"))
	require.NoError(t, f.kv.Set("selfcare.biometric", "enabled"))
	require.NoError(t, f.kv.Set("selfcare.cache.account", `{"plan":"gold"}`))

	require.NoError(t, f.sessions.Logout())

	s, err := f.sessions.Current()
	require.NoError(t, err)
	require.Nil(t, s)

	for _, key := range []string{"selfcare.username", "selfcare.password", "selfcare.tenant", "selfcare.biometric", "selfcare.cache.account"} {
		_, ok, err := f.kv.Get(key)
		require.NoError(t, err)
		require.False(t, ok, "key %s should be gone", key)
	}
}

func TestLogoutWithoutSideStores(t *testing.T) {
	f := newFixture(t)
	_, err := f.sessions.Create(testUsername, testToken)
	require.NoError(t, err)
	require.NoError(t, f.sessions.Logout())
}

func TestReset(t *testing.T) {
	f := newFixture(t)
	_, err := f.sessions.Create(testUsername, testToken, session.WithPassword(testPassword))
	require.NoError(t, err)
	require.NoError(t, f.sessions.SaveTenantSelection(testTenant, "https://crm.example.com"))

	require.NoError(t, f.sessions.Reset())

	s, err := f.sessions.Current()
	require.NoError(t, err)
	require.Nil(t, s)

	id, err := f.sessions.TenantSelection()
	require.NoError(t, err)
	require.Empty(t, id)
}
