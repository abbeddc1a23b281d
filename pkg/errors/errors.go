// Package errors はscigp全体のエラー型と警告システムを提供します。
// すべてのエラーは cockroachdb/errors でスタックトレースが付与され、
// zerolog 用の構造化フィールドを出力できます。
package errors

import (
	"fmt"
	"log"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ===========================================================================
//
//	グローバル警告ハンドリング
//
// ===========================================================================
var (
	warningMutex   sync.Mutex
	warningHandler = func(w error) {
		log.Printf("scigp-warning: %v\n", w)
	}
	// pkg/log が SetupLogger で差し込む（循環importを避けるため遅延初期化）
	zerologWarnFunc func(warning error)
)

// SetWarningHandler replaces the fallback handler used by Warn when no
// structured logger has been installed.
//
//	errors.SetWarningHandler(func(w error) {})  // silence warnings
func SetWarningHandler(handler func(w error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	warningHandler = handler
}

// SetZerologWarnFunc installs the structured warning sink. Passing nil
// restores the fallback handler.
func SetZerologWarnFunc(warnFunc func(warning error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	zerologWarnFunc = warnFunc
}

// Warn reports a non-fatal condition. Warnings never change numeric results.
func Warn(w error) {
	warningMutex.Lock()
	defer warningMutex.Unlock()

	if zerologWarnFunc != nil {
		zerologWarnFunc(w)
		return
	}
	if warningHandler != nil {
		warningHandler(w)
	}
}

// ===========================================================================
//
//	警告型
//
// ===========================================================================

// ConditioningWarning is raised when the covariance matrix factorised fine
// but its condition number estimate is large enough that the inverse may
// have lost most of its significant digits.
type ConditioningWarning struct {
	Operation string
	Condition float64
	Threshold float64
}

func (w *ConditioningWarning) Error() string {
	return fmt.Sprintf("%s: covariance matrix is ill-conditioned (condition number %.3g exceeds %.3g). Consider increasing the noise level.",
		w.Operation, w.Condition, w.Threshold)
}

// MarshalZerologObject はzerologのイベントに構造化された警告情報を追加します。
func (w *ConditioningWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("operation", w.Operation).
		Float64("condition", w.Condition).
		Float64("threshold", w.Threshold).
		Str("type", "ConditioningWarning")
}

// NewConditioningWarning は新しいConditioningWarningを作成します。
func NewConditioningWarning(operation string, condition, threshold float64) *ConditioningWarning {
	return &ConditioningWarning{Operation: operation, Condition: condition, Threshold: threshold}
}

// RegularizationWarning is raised when a fit is retried with a larger noise
// level after the covariance matrix failed to factorise.
type RegularizationWarning struct {
	Operation string
	Attempt   int
	OldNoise  float64
	NewNoise  float64
}

func (w *RegularizationWarning) Error() string {
	return fmt.Sprintf("%s: covariance matrix not positive definite, retrying with noise %.3g (was %.3g, attempt %d)",
		w.Operation, w.NewNoise, w.OldNoise, w.Attempt)
}

// MarshalZerologObject はzerologのイベントに構造化された警告情報を追加します。
func (w *RegularizationWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("operation", w.Operation).
		Int("attempt", w.Attempt).
		Float64("old_noise", w.OldNoise).
		Float64("new_noise", w.NewNoise).
		Str("type", "RegularizationWarning")
}

// NewRegularizationWarning は新しいRegularizationWarningを作成します。
func NewRegularizationWarning(operation string, attempt int, oldNoise, newNoise float64) *RegularizationWarning {
	return &RegularizationWarning{Operation: operation, Attempt: attempt, OldNoise: oldNoise, NewNoise: newNoise}
}

// ===========================================================================
//
//	構造化されたエラー型
//
// ===========================================================================

// NotFittedError はモデルが未学習の状態で予測系のメソッドを呼び出した場合のエラーです。
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("scigp: %s: this model is not fitted yet. Call Fit() before using %s()", e.ModelName, e.Method)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *NotFittedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model_name", e.ModelName).
		Str("method", e.Method).
		Str("type", "NotFittedError")
}

// NewNotFittedError は新しいNotFittedErrorを作成し、スタックトレースを付与します。
func NewNotFittedError(modelName, method string) error {
	return errors.WithStack(&NotFittedError{ModelName: modelName, Method: method})
}

// ConfigurationError reports a model or kernel option that cannot be used,
// such as a negative noise level or an unknown kernel type.
type ConfigurationError struct {
	Component string
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("scigp: %s: invalid configuration '%s': %s (got: %v)", e.Component, e.ParamName, e.Reason, e.Value)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ConfigurationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("component", e.Component).
		Str("param_name", e.ParamName).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "ConfigurationError")
}

// NewConfigurationError は新しいConfigurationErrorを作成し、スタックトレースを付与します。
func NewConfigurationError(component, param, reason string, value interface{}) error {
	return errors.WithStack(&ConfigurationError{Component: component, ParamName: param, Reason: reason, Value: value})
}

// NumericalError reports a numerical failure that makes the result
// meaningless, most commonly a non-positive pivot during Cholesky
// factorisation. Pivot is -1 when the failure is not tied to a pivot.
type NumericalError struct {
	Op     string
	Reason string
	Pivot  int
	Value  float64
	Err    error
}

func (e *NumericalError) Error() string {
	if e.Pivot >= 0 {
		return fmt.Sprintf("scigp: %s: %s at pivot %d (value %.6g)", e.Op, e.Reason, e.Pivot, e.Value)
	}
	return fmt.Sprintf("scigp: %s: %s", e.Op, e.Reason)
}

func (e *NumericalError) Unwrap() error {
	return e.Err
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *NumericalError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Str("reason", e.Reason).
		Int("pivot", e.Pivot).
		Float64("value", e.Value).
		Str("type", "NumericalError")
}

// NewPivotError creates a NumericalError for a failed factorisation step.
func NewPivotError(op string, pivot int, value float64) error {
	return errors.WithStack(&NumericalError{
		Op:     op,
		Reason: "matrix is not positive definite",
		Pivot:  pivot,
		Value:  value,
		Err:    ErrNotPositiveDefinite,
	})
}

// NewNumericalError creates a NumericalError that is not tied to a pivot.
func NewNumericalError(op, reason string, err error) error {
	return errors.WithStack(&NumericalError{Op: op, Reason: reason, Pivot: -1, Err: err})
}

// DataError reports an input row that a kernel or filter could not process.
// Index is the row index, or -1 for a query that is not a training row.
type DataError struct {
	Op    string
	Index int
	Err   error
}

func (e *DataError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("scigp: %s: row %d: %v", e.Op, e.Index, e.Err)
	}
	return fmt.Sprintf("scigp: %s: %v", e.Op, e.Err)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *DataError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Int("index", e.Index).
		Str("type", "DataError")
	if e.Err != nil {
		event.Str("cause", e.Err.Error())
	}
}

// NewDataError は新しいDataErrorを作成し、スタックトレースを付与します。
func NewDataError(op string, index int, err error) error {
	return errors.WithStack(&DataError{Op: op, Index: index, Err: err})
}

// DimensionError は入力データの次元が期待値と異なる場合のエラーです。
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0 for rows, 1 for columns/features
}

func (e *DimensionError) axisName() string {
	if e.Axis == 0 {
		return "rows"
	}
	return "features"
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("scigp: %s: dimension mismatch on axis %d (%s). Expected %d, got %d", e.Op, e.Axis, e.axisName(), e.Expected, e.Got)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *DimensionError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Int("axis", e.Axis).
		Str("axis_name", e.axisName()).
		Str("type", "DimensionError")
}

// NewDimensionError は新しいDimensionErrorを作成し、スタックトレースを付与します。
func NewDimensionError(op string, expected, got, axis int) error {
	return errors.WithStack(&DimensionError{Op: op, Expected: expected, Got: got, Axis: axis})
}

// ValidationError は入力値（重み、信頼水準など）の検証に失敗した場合のエラーです。
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("scigp: validation failed for parameter '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ValidationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param_name", e.ParamName).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "ValidationError")
}

// NewValidationError は新しいValidationErrorを作成し、スタックトレースを付与します。
func NewValidationError(param, reason string, value interface{}) error {
	return errors.WithStack(&ValidationError{ParamName: param, Reason: reason, Value: value})
}

// ValueError は引数の値が不適切な場合に発生するエラーです。
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("scigp: %s: %s", e.Op, e.Message)
}

// NewValueError は新しいValueErrorを作成し、スタックトレースを付与します。
func NewValueError(op, message string) error {
	return errors.WithStack(&ValueError{Op: op, Message: message})
}

// ModelError は機械学習モデルに関する一般的なエラーです。
type ModelError struct {
	Op   string
	Kind string
	Err  error
}

func (e *ModelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("scigp: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("scigp: %s: %s", e.Op, e.Kind)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// NewModelError は新しいModelErrorを作成し、スタックトレースを付与します。
func NewModelError(op, kind string, err error) error {
	return errors.WithStack(&ModelError{Op: op, Kind: kind, Err: err})
}

// NumericalInstabilityError reports NaN or Inf values found in an
// intermediate result.
type NumericalInstabilityError struct {
	Operation string
	Values    []float64
	Iteration int
}

func (e *NumericalInstabilityError) Error() string {
	valStr := ""
	for i, v := range e.Values {
		if i > 0 {
			valStr += ", "
		}
		if i >= 5 {
			valStr += "..."
			break
		}
		valStr += fmt.Sprintf("%.6g", v)
	}
	return fmt.Sprintf("scigp: numerical instability detected in %s at step %d. Values: [%s]",
		e.Operation, e.Iteration, valStr)
}

// NewNumericalInstabilityError は新しいNumericalInstabilityErrorを作成します。
func NewNumericalInstabilityError(operation string, values []float64, iteration int) error {
	return errors.WithStack(&NumericalInstabilityError{Operation: operation, Values: values, Iteration: iteration})
}

// ===========================================================================
//
//	cockroachdb/errors ラッパー関数
//
// ===========================================================================

// Is はエラーが特定のターゲットエラーかどうかを判定します。
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As はエラーが特定の型にキャスト可能かどうかを判定します。
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap は既存のエラーをメッセージ付きでラップします。
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf は既存のエラーをフォーマット文字列でラップします。
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New は新しいエラーを作成します。
func New(message string) error {
	return errors.New(message)
}

// Newf は新しいフォーマット済みエラーを作成します。
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack はエラーにスタックトレースを付与します。
func WithStack(err error) error {
	return errors.WithStack(err)
}

// ===========================================================================
//
//	共通エラー変数
//
// ===========================================================================

var (
	// ErrEmptyData は空のデータが渡された場合のエラーです。
	ErrEmptyData = New("empty data")

	// ErrNotPositiveDefinite is wrapped by every pivot failure.
	ErrNotPositiveDefinite = New("matrix is not positive definite")

	// ErrDegenerateTransform marks a target transform that cannot be inverted.
	ErrDegenerateTransform = New("degenerate target transform")
)
