package wsfeed

import (
	"time"
)

// livenessWatchdog detects a feed that stopped pushing heartbeats. It is armed on every Subscribed
// entry; until the first beat arrives it never expires.
type livenessWatchdog struct {
	timeout  time.Duration
	lastSeen time.Time
	fired    bool
}

func newLivenessWatchdog(timeout time.Duration) *livenessWatchdog {
	return &livenessWatchdog{timeout: timeout}
}

func (w *livenessWatchdog) Arm() {
	w.lastSeen = time.Time{}
	w.fired = false
}

func (w *livenessWatchdog) Beat(at time.Time) {
	w.lastSeen = at
}

// Check reports true exactly once per arming, when more than timeout elapsed since the last beat.
func (w *livenessWatchdog) Check(now time.Time) bool {
	if w.fired || w.lastSeen.IsZero() {
		return false
	}
	if now.Sub(w.lastSeen) <= w.timeout {
		return false
	}
	w.fired = true
	return true
}

func (w *livenessWatchdog) LastSeen() time.Time {
	return w.lastSeen
}
