package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/ispkit/selfcare/session"
	"github.com/ispkit/selfcare/store/storefakes"
)

func TestMonitorRecordActivity(t *testing.T) {
	nowTime := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	kv := storefakes.NewFakeKV()
	m, err := session.New(kv, zerolog.Nop(), session.WithNowTime(func() time.Time { return nowTime }))
	require.NoError(t, err)
	_, err = m.Create(testUsername, testToken)
	require.NoError(t, err)

	mon := session.NewMonitor(m, time.Minute, zerolog.Nop())
	nowTime = nowTime.Add(30 * time.Minute)
	mon.RecordActivity()

	s, err := m.Current()
	require.NoError(t, err)
	require.Equal(t, nowTime, s.LastActivityTime)
}

func TestSessionsDoNotExpireByAge(t *testing.T) {
	// Time-based expiry is reserved, not active: a session logged in long
	// ago is still valid until explicit logout.
	old := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	kv := storefakes.NewFakeKV()
	m, err := session.New(kv, zerolog.Nop(), session.WithNowTime(func() time.Time { return old }))
	require.NoError(t, err)
	_, err = m.Create(testUsername, testToken)
	require.NoError(t, err)

	s, err := m.Current()
	require.NoError(t, err)
	require.NotNil(t, s)

	check := m.CheckBeforeCall()
	require.True(t, check.Valid)
}

func TestMonitorStartStop(t *testing.T) {
	kv := storefakes.NewFakeKV()
	m, err := session.New(kv, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	mon := session.NewMonitor(m, 10*time.Millisecond, zerolog.Nop())
	mon.Start(ctx)
	time.Sleep(30 * time.Millisecond)
	mon.Stop()
	cancel()
	mon.Stop() // idempotent
}
