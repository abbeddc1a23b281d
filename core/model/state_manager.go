// Package model provides the lifecycle, persistence and interface
// definitions shared by scigp estimators.
package model

import (
	"go.uber.org/atomic"

	scigperrors "github.com/YuminosukeSato/scigp/pkg/errors"
)

// StateManager publishes an immutable fitted snapshot of type T.
//
// A model is TRAINED exactly when a snapshot is published. Readers load
// the snapshot once per call and use it without locks; Fit builds a new
// snapshot off to the side and publishes it with a single atomic store,
// so a concurrent reader sees either the previous model or the new one.
// Snapshots must not be mutated after Publish.
type StateManager[T any] struct {
	current atomic.Pointer[T]
	fits    atomic.Int64
}

// NewStateManager returns a manager in the UNTRAINED state.
func NewStateManager[T any]() *StateManager[T] {
	return &StateManager[T]{}
}

// Load returns the published snapshot and whether one exists.
func (s *StateManager[T]) Load() (*T, bool) {
	snap := s.current.Load()
	return snap, snap != nil
}

// Require returns the published snapshot or a NotFittedError.
func (s *StateManager[T]) Require(modelName, method string) (*T, error) {
	snap := s.current.Load()
	if snap == nil {
		return nil, scigperrors.NewNotFittedError(modelName, method)
	}
	return snap, nil
}

// Publish atomically replaces the snapshot.
func (s *StateManager[T]) Publish(snap *T) {
	s.current.Store(snap)
	s.fits.Inc()
}

// Reset returns to UNTRAINED and discards the snapshot.
func (s *StateManager[T]) Reset() {
	s.current.Store(nil)
}

// IsFitted reports whether a snapshot is published.
func (s *StateManager[T]) IsFitted() bool {
	return s.current.Load() != nil
}

// State reports the lifecycle state.
func (s *StateManager[T]) State() EstimatorState {
	if s.IsFitted() {
		return Fitted
	}
	return NotFitted
}

// Generation counts successful publications.
func (s *StateManager[T]) Generation() int64 {
	return s.fits.Load()
}

// ModelState summarises a model for debugging and CLI output.
type ModelState struct {
	Fitted    bool                   `json:"fitted"`
	NFeatures int                    `json:"n_features,omitempty"`
	NSamples  int                    `json:"n_samples,omitempty"`
	Params    map[string]interface{} `json:"params,omitempty"`
}
