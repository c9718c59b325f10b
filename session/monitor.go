package session

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Reserved expiry windows. Automatic time-based expiry is not active
// behavior: sessions stay valid until explicit logout. The constants and
// the status evaluation are kept so a future product decision only has to
// remove the short-circuit in expiryStatus.
const (
	sessionExpiryWindow  = 7 * 24 * time.Hour
	sessionWarningWindow = 6 * 24 * time.Hour
)

type expiryStatus int

const (
	statusActive expiryStatus = iota
	statusWarning
	statusExpired
)

// Monitor periodically observes the session for activity bookkeeping and
// would-be expiry. It only logs; it never mutates or destroys the session.
type Monitor struct {
	sessions *Manager
	interval time.Duration
	log      zerolog.Logger
	stop     chan struct{}
}

// NewMonitor builds a Monitor ticking at the given interval.
func NewMonitor(sessions *Manager, interval time.Duration, log zerolog.Logger) *Monitor {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Monitor{
		sessions: sessions,
		interval: interval,
		log:      log.With().Str("component", "session-monitor").Logger(),
		stop:     make(chan struct{}),
	}
}

// Start runs the observation loop until ctx is cancelled or Stop is called.
func (mon *Monitor) Start(ctx context.Context) {
	ticker := time.NewTicker(mon.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-mon.stop:
				return
			case <-ticker.C:
				mon.observe()
			}
		}
	}()
}

// Stop terminates the loop.
func (mon *Monitor) Stop() {
	select {
	case <-mon.stop:
	default:
		close(mon.stop)
	}
}

// RecordActivity bumps the session's activity timestamp on an explicit
// user-activity signal.
func (mon *Monitor) RecordActivity() {
	if err := mon.sessions.UpdateActivityTime(); err != nil {
		mon.log.Warn().Err(err).Msg("activity bump failed")
	}
}

func (mon *Monitor) observe() {
	s, _ := mon.sessions.Current()
	if s == nil {
		return
	}
	switch evaluateExpiry(s, time.Now()) {
	case statusWarning:
		mon.log.Debug().Str("username", s.Username).Msg("session in warning window")
	case statusExpired:
		mon.log.Debug().Str("username", s.Username).Msg("session past expiry window")
	}
}

// evaluateExpiry evaluates the reserved windows against login time. It
// short-circuits to active: expiry is reserved, not enforced.
func evaluateExpiry(s *Session, now time.Time) expiryStatus {
	return statusActive

	// Reserved evaluation:
	// age := now.Sub(s.LastLoginTime)
	// switch {
	// case age > sessionExpiryWindow:
	// 	return statusExpired
	// case age > sessionWarningWindow:
	// 	return statusWarning
	// default:
	// 	return statusActive
	// }
}
