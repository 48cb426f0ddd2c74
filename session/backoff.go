package session

import "time"

const (
	// DefaultRefreshInterval is the status refresh period outside over-quota periods
	DefaultRefreshInterval = 2 * time.Second
	// DefaultBackoffCeiling caps the over-quota retry delay
	DefaultBackoffCeiling = 64 * time.Second
)

// Backoff computes the wait between status reports. Delay grows as 2^attempt
// units while any transfer is over quota.
type Backoff struct {
	Refresh time.Duration
	Ceiling time.Duration
	// Unit scales the exponential delay. Zero means one second.
	Unit time.Duration
}

// NewBackoff returns a Backoff, substituting defaults for zero values
func NewBackoff(refresh, ceiling time.Duration) Backoff {
	return Backoff{Refresh: refresh, Ceiling: ceiling}.withDefaults()
}

func (b Backoff) withDefaults() Backoff {
	if b.Refresh <= 0 {
		b.Refresh = DefaultRefreshInterval
	}
	if b.Ceiling <= 0 {
		b.Ceiling = DefaultBackoffCeiling
	}
	if b.Unit <= 0 {
		b.Unit = time.Second
	}
	return b
}

// Delay returns min(2^attempt units, Ceiling)
func (b Backoff) Delay(attempt int) time.Duration {
	b = b.withDefaults()
	if attempt < 0 {
		attempt = 0
	}
	// Stop shifting well before overflow; the ceiling applies anyway
	if attempt > 30 {
		return b.Ceiling
	}
	delay := time.Duration(1<<uint(attempt)) * b.Unit
	if delay > b.Ceiling || delay <= 0 {
		return b.Ceiling
	}
	return delay
}

// NewMonitor starts a fresh attempt counter
func (b Backoff) NewMonitor() *Monitor {
	return &Monitor{backoff: b.withDefaults()}
}

// Monitor tracks consecutive over-quota observations
type Monitor struct {
	backoff Backoff
	attempt int
}

// Next returns the wait before the following report. An over-quota observation
// advances the counter; anything else resets it and yields the refresh interval.
func (m *Monitor) Next(overQuota bool) time.Duration {
	if !overQuota {
		m.attempt = 0
		return m.backoff.Refresh
	}
	m.attempt++
	return m.backoff.Delay(m.attempt)
}

// Attempt returns the current over-quota attempt number
func (m *Monitor) Attempt() int {
	return m.attempt
}
