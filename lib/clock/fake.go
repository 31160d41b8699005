// Copyright 2026 The Spyglass Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sync"
	"time"
)

// Fake is a Clock with manually advanced time. Tickers fire only on
// Advance, so tests never wait on wall-clock time.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
}

type fakeTicker struct {
	ch       chan time.Time
	interval time.Duration
	next     time.Time
	stopped  bool
}

// NewFake returns a Fake starting at the given instant.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

// Now returns the fake current time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// NewTicker returns a ticker that fires when Advance crosses its
// interval boundaries. Ticks are dropped if the channel is full,
// matching time.Ticker's capacity-1 behavior.
func (f *Fake) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive ticker interval")
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	ticker := &fakeTicker{
		ch:       make(chan time.Time, 1),
		interval: d,
		next:     f.now.Add(d),
	}
	f.tickers = append(f.tickers, ticker)
	return &Ticker{
		C: ticker.ch,
		stopFunc: func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			ticker.stopped = true
		},
	}
}

// Advance moves the fake time forward, firing any tickers whose
// intervals elapse.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.now = f.now.Add(d)
	for _, ticker := range f.tickers {
		if ticker.stopped {
			continue
		}
		for !ticker.next.After(f.now) {
			select {
			case ticker.ch <- ticker.next:
			default:
			}
			ticker.next = ticker.next.Add(ticker.interval)
		}
	}
}
