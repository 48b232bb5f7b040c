// Package stagetrack records wall-clock durations of named pipeline stages.
package stagetrack

import (
	"sync"
	"time"
)

// Tracker accumulates elapsed milliseconds per stage name. Durations are
// recorded even when the wrapped action fails; a stage run twice under the
// same name keeps the last measurement.
type Tracker struct {
	mu        sync.Mutex
	durations map[string]int64
	now       func() time.Time
}

// New returns an empty tracker.
func New() *Tracker {
	return &Tracker{
		durations: make(map[string]int64),
		now:       time.Now,
	}
}

// Run executes fn under the given stage name, recording its elapsed time
// whether or not it fails, and returns fn's error unchanged.
func (t *Tracker) Run(name string, fn func() error) error {
	start := t.now()
	err := fn()
	t.record(name, start)
	return err
}

// RunResult is Run for actions that produce a value.
func RunResult[T any](t *Tracker, name string, fn func() (T, error)) (T, error) {
	start := t.now()
	result, err := fn()
	t.record(name, start)
	return result, err
}

func (t *Tracker) record(name string, start time.Time) {
	elapsed := t.now().Sub(start).Milliseconds()
	t.mu.Lock()
	t.durations[name] = elapsed
	t.mu.Unlock()
}

// Snapshot returns a copy of all recorded stage durations in milliseconds.
func (t *Tracker) Snapshot() map[string]int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]int64, len(t.durations))
	for name, ms := range t.durations {
		out[name] = ms
	}
	return out
}
