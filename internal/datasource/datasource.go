// Package datasource defines the lifecycle shared by every component that feeds data into a store:
// the stream processor, the polling processor, and the file data source.
package datasource

import (
	"errors"
	"sync"
)

// ErrClosed is the last error of a data source that was closed before it was initialized.
var ErrClosed = errors.New("data source was closed before it was initialized")

// State is the lifecycle state of a data source.
type State string

const (
	// StateStarting means the data source has not yet received a full data set.
	StateStarting State = "STARTING"
	// StateInitialized means a full data set has been stored. This state is permanent.
	StateInitialized State = "INITIALIZED"
	// StateFailed means the data source gave up before it was initialized. This state is permanent.
	StateFailed State = "FAILED"
)

// DataSource is implemented by every data source.
type DataSource interface {
	// Start begins receiving data in the background. The returned channel is closed exactly once, either
	// when the data source is initialized or when it has permanently failed; it never times out.
	Start() <-chan struct{}
	// IsInitialized returns true if the data source has stored a full data set.
	IsInitialized() bool
	// State returns the current lifecycle state.
	State() State
	// LastError returns the most recent error reported by the data source, or nil.
	LastError() error
	// Close permanently stops the data source. It is safe to call more than once.
	Close() error
}

// Status holds the lifecycle state of one data source and its ready signal. It is safe for concurrent
// use.
type Status struct {
	state     State
	lastError error
	ready     chan struct{}
	readyOnce sync.Once
	lock      sync.RWMutex
}

// NewStatus creates a Status in StateStarting.
func NewStatus() *Status {
	return &Status{state: StateStarting, ready: make(chan struct{})}
}

// Ready returns the channel that is closed when the state leaves StateStarting.
func (s *Status) Ready() <-chan struct{} {
	return s.ready
}

// SetInitialized moves to StateInitialized and signals readiness. It returns true only for the call
// that made the transition. A data source that has already failed stays failed.
func (s *Status) SetInitialized() bool {
	s.lock.Lock()
	changed := s.state == StateStarting
	if changed {
		s.state = StateInitialized
	}
	s.lock.Unlock()
	if changed {
		s.signalReady()
	}
	return changed
}

// SetFailed moves to StateFailed and signals readiness, unless the data source was already initialized.
// The error is recorded either way.
func (s *Status) SetFailed(err error) {
	s.lock.Lock()
	s.lastError = err
	failed := s.state == StateStarting
	if failed {
		s.state = StateFailed
	}
	s.lock.Unlock()
	if failed {
		s.signalReady()
	}
}

// SetError records an error without changing the state.
func (s *Status) SetError(err error) {
	s.lock.Lock()
	s.lastError = err
	s.lock.Unlock()
}

// State returns the current state.
func (s *Status) State() State {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.state
}

// IsInitialized is shorthand for State() == StateInitialized.
func (s *Status) IsInitialized() bool {
	return s.State() == StateInitialized
}

// LastError returns the most recently recorded error.
func (s *Status) LastError() error {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.lastError
}

func (s *Status) signalReady() {
	s.readyOnce.Do(func() { close(s.ready) })
}
