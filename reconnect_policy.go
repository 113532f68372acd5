package wsfeed

import (
	"math"
	"time"
)

// BackoffCalculator computes the wait before the next attempt given the consecutive failures so far.
type BackoffCalculator func(attempts int) time.Duration

// ReconnectPolicy decides what to do after a failed reconnect attempt.
type ReconnectPolicy interface {
	// Next is called with the number of consecutive failed attempts, starting at 1. It returns the
	// delay before the next attempt, or retry=false to give up for good.
	Next(failures int) (delay time.Duration, retry bool)
}

// FixedDelayPolicy waits Delay between attempts and gives up after MaxAttempts failures.
type FixedDelayPolicy struct {
	Delay       time.Duration
	MaxAttempts int
}

func (p FixedDelayPolicy) Next(failures int) (time.Duration, bool) {
	if failures >= p.MaxAttempts {
		return 0, false
	}
	return p.Delay, true
}

// BackoffPolicy computes the delay with Calculator and gives up after MaxAttempts failures.
type BackoffPolicy struct {
	Calculator  BackoffCalculator
	MaxAttempts int
	// MaxDelay caps the calculated delay when positive.
	MaxDelay time.Duration
}

func (p BackoffPolicy) Next(failures int) (time.Duration, bool) {
	if failures >= p.MaxAttempts {
		return 0, false
	}
	delay := p.Calculator(failures)
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay, true
}

func ExponentialBackoff(attempts int) float64 {
	return (math.Pow(2.0, float64(attempts)) - 1) / 2
}

func ExponentialBackoffSeconds(attempts int) time.Duration {
	return time.Duration(ExponentialBackoff(attempts) * float64(time.Second))
}
