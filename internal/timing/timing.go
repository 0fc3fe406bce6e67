package timing

import (
	"fmt"
	"sync"
	"time"
)

// Tracker records how long the steps of a run take.
type Tracker struct {
	mu    sync.Mutex
	start time.Time
	order []string
	steps map[string]time.Duration
}

func NewTracker() *Tracker {
	return &Tracker{start: time.Now(), steps: map[string]time.Duration{}}
}

// Start begins timing step. Calling the returned func stops it; repeated
// steps accumulate.
func (t *Tracker) Start(step string) func() {
	begin := time.Now()
	return func() {
		d := time.Since(begin)
		t.mu.Lock()
		defer t.mu.Unlock()
		if _, ok := t.steps[step]; !ok {
			t.order = append(t.order, step)
		}
		t.steps[step] += d
	}
}

// Steps returns the recorded steps in the order they first finished.
func (t *Tracker) Steps() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string{}, t.order...)
}

func (t *Tracker) Duration(step string) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.steps[step]
}

// Milliseconds returns every step duration in milliseconds.
func (t *Tracker) Milliseconds() map[string]int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]int64, len(t.steps))
	for k, v := range t.steps {
		out[k] = v.Milliseconds()
	}
	return out
}

// Total is the time since the tracker was created.
func (t *Tracker) Total() time.Duration {
	return time.Since(t.start)
}

// Format renders d as HH:MM:SS.
func Format(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}
