package wsfeed

import (
	"time"
)

type frameKind byte

const (
	dataFrame frameKind = iota + 1
	pingFrame
	pongFrame
)

type frame struct {
	kind frameKind
	data []byte
}

// replyPingWithPong answers a server ping. Pongs are dropped rather than stalling the reader when the
// write queue is full; the server pings again.
func (w *wsHandle) replyPingWithPong(appData []byte) {
	select {
	case w.send <- frame{kind: pongFrame, data: appData}:
	case <-w.closeChan:
	default:
		w.logger.Warnln("write queue full, dropping pong")
	}
}

// keepAlive sends a ping every interval until the handle is closed.
func (w *wsHandle) keepAlive(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.closeChan:
			return
		case <-ticker.C:
			select {
			case w.send <- frame{kind: pingFrame}:
			case <-w.closeChan:
				return
			}
		}
	}
}
