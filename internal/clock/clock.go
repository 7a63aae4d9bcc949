// Package clock provides the logical day key used for all quota reset and
// cache expiry decisions. Day boundaries are detected by comparing keys for
// inequality, never by elapsed-time arithmetic.
package clock

import (
	"sync"
	"time"
)

// DayKeeper supplies the current calendar day as an opaque key.
type DayKeeper interface {
	Today() string
}

const dayKeyLayout = "2006-01-02"

// System reports the current UTC calendar date, matching the day keys the
// web client derives from ISO timestamps.
type System struct{}

func (System) Today() string {
	return time.Now().UTC().Format(dayKeyLayout)
}

// Fixed is a settable DayKeeper for tests.
type Fixed struct {
	mu  sync.Mutex
	day string
}

func NewFixed(day string) *Fixed {
	return &Fixed{day: day}
}

func (f *Fixed) Today() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.day
}

func (f *Fixed) Set(day string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.day = day
}
