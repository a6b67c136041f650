// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package server

import (
	"log"
	"sync"

	"golang.org/x/net/websocket"

	"github.com/maruel/thermvid/report"
)

// Event is a job state change sent on /stream.
type Event struct {
	Job       string        `json:"job"`
	Recording string        `json:"recording"`
	Kind      report.Kind   `json:"kind"`
	Frame     int           `json:"frame"`
	Total     int           `json:"total"`
	State     report.Status `json:"state"`
	Error     string        `json:"error,omitempty"`
}

// feed is a ring of the most recent events.
type feed struct {
	cond   *sync.Cond
	events [256]Event
	seq    int // Number of events ever published.
	closed bool
}

func newFeed() *feed {
	return &feed{cond: sync.NewCond(&sync.Mutex{})}
}

func (f *feed) publish(e Event) {
	f.cond.L.Lock()
	defer f.cond.L.Unlock()
	f.events[f.seq%len(f.events)] = e
	f.seq++
	f.cond.Broadcast()
}

func (f *feed) close() {
	f.cond.L.Lock()
	defer f.cond.L.Unlock()
	f.closed = true
	f.cond.Broadcast()
}

// stream sends the buffered events then each new one as a JSON websocket
// message.
func (f *feed) stream(w *websocket.Conn) {
	log.Printf("websocket from %s", w.Request().RemoteAddr)
	defer w.Close()
	f.cond.L.Lock()
	defer f.cond.L.Unlock()
	next := f.seq - len(f.events)
	if next < 0 {
		next = 0
	}
	for !f.closed {
		for ; next < f.seq; next++ {
			if f.seq-next > len(f.events) {
				// Too slow; skip what was overwritten.
				next = f.seq - len(f.events)
			}
			e := f.events[next%len(f.events)]
			f.cond.L.Unlock()
			// Do the actual I/O without the lock.
			err := websocket.JSON.Send(w, &e)
			f.cond.L.Lock()
			// To break out of the loop, the lock must be held.
			if err != nil {
				log.Printf("websocket err: %s", err)
				return
			}
		}
		if !f.closed {
			f.cond.Wait()
		}
	}
}
