package wsfeed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWatchdogNeverFiresBeforeTheFirstBeat(t *testing.T) {
	w := newLivenessWatchdog(time.Second)
	w.Arm()

	assert.False(t, w.Check(time.Now().Add(time.Hour)))
	assert.True(t, w.LastSeen().IsZero())
}

func TestWatchdogFiresOncePerArming(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	w := newLivenessWatchdog(10 * time.Second)
	w.Arm()
	w.Beat(start)

	assert.False(t, w.Check(start.Add(5*time.Second)))
	assert.False(t, w.Check(start.Add(10*time.Second)), "exactly the timeout is not expired")
	assert.True(t, w.Check(start.Add(10*time.Second+time.Millisecond)))
	assert.False(t, w.Check(start.Add(time.Minute)), "fires only once")

	w.Arm()
	assert.False(t, w.Check(start.Add(time.Hour)))
	w.Beat(start.Add(time.Hour))
	assert.True(t, w.Check(start.Add(time.Hour+11*time.Second)))
}

func TestWatchdogBeatsPostponeExpiry(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	w := newLivenessWatchdog(10 * time.Second)
	w.Arm()

	for i := 0; i < 5; i++ {
		at := start.Add(time.Duration(i) * 8 * time.Second)
		w.Beat(at)
		assert.False(t, w.Check(at.Add(9*time.Second)))
	}
	assert.Equal(t, start.Add(32*time.Second), w.LastSeen())
}
