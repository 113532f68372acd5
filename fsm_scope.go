package wsfeed

import (
	"time"
)

type registration struct {
	handle Handle
	kind   SignalKind
	id     ListenerID
}

// stateScope owns every resource acquired by the entry action of one state: signal listeners on the
// current handle, timers and tickers. release frees all of them and is called before the next state
// is entered.
type stateScope struct {
	epoch     uint64
	listeners []registration
	timers    []*time.Timer
	stops     []chan struct{}
}

func newStateScope(epoch uint64) *stateScope {
	return &stateScope{epoch: epoch}
}

func (s *stateScope) listen(h Handle, kind SignalKind, listener SignalListener) {
	id := h.On(kind, listener)
	s.listeners = append(s.listeners, registration{handle: h, kind: kind, id: id})
}

func (s *stateScope) after(d time.Duration, fire func()) {
	s.timers = append(s.timers, time.AfterFunc(d, fire))
}

func (s *stateScope) every(d time.Duration, fire func()) {
	ticker := time.NewTicker(d)
	stop := make(chan struct{})

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				fire()
			}
		}
	}()

	s.stops = append(s.stops, stop)
}

// active returns the amount of resources not yet released.
func (s *stateScope) active() int {
	return len(s.listeners) + len(s.timers) + len(s.stops)
}

func (s *stateScope) release() {
	for _, r := range s.listeners {
		r.handle.Off(r.kind, r.id)
	}
	for _, t := range s.timers {
		t.Stop()
	}
	for _, stop := range s.stops {
		close(stop)
	}

	s.listeners = nil
	s.timers = nil
	s.stops = nil
}
