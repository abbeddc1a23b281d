package model

import (
	scigperrors "github.com/YuminosukeSato/scigp/pkg/errors"
)

// EstimatorState はモデルの学習状態を表す
type EstimatorState int

const (
	// NotFitted はモデルが未学習の状態
	NotFitted EstimatorState = iota
	// Fitted はモデルが学習済みの状態
	Fitted
)

func (s EstimatorState) String() string {
	if s == Fitted {
		return "TRAINED"
	}
	return "UNTRAINED"
}

// BaseEstimator carries the fitted flag for small single-owner components
// such as preprocessing filters. State is exported so that gob can encode
// the embedding struct.
type BaseEstimator struct {
	State EstimatorState
}

// IsFitted はモデルが学習済みかどうかを返す
func (e *BaseEstimator) IsFitted() bool {
	return e.State == Fitted
}

// SetFitted はモデルを学習済み状態に設定する
func (e *BaseEstimator) SetFitted() {
	e.State = Fitted
}

// Reset はモデルを初期状態にリセットする
func (e *BaseEstimator) Reset() {
	e.State = NotFitted
}

// RequireFitted returns a NotFittedError naming name and method.
func (e *BaseEstimator) RequireFitted(name, method string) error {
	if !e.IsFitted() {
		return scigperrors.NewNotFittedError(name, method)
	}
	return nil
}
