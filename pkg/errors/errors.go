// Package errors はプロジェクト全体のエラーハンドリングと警告システムを提供します。
// 学習パイプラインと推論サービスの双方が同じエラー分類（データ取得、スキーマ、
// レジストリ、モデル）を共有し、errors.Is / errors.As で判定できるようにします。
package errors

import (
	"fmt"
	"log"
	"strings"
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
		// デフォルトのハンドラは標準エラー出力にログを出す
		log.Printf("greentaxi-warning: %v\n", w)
	}
	// zerologロガー（循環importを避けるため遅延初期化）
	zerologWarnFunc func(warning error)
)

// SetZerologWarnFunc はzerolog警告関数を設定します（循環importを避けるため）。
// nil を渡すと従来のハンドラに戻ります。
func SetZerologWarnFunc(warnFunc func(warning error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	zerologWarnFunc = warnFunc
}

// Warn は警告を発生させます。
// zerologが設定されている場合は構造化ログとして出力し、そうでなければ従来のハンドラを使用します。
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

// IllConditionedWarning は計画行列の条件数が大きく、最小二乗解の精度が
// 保証できない場合に発生する警告です。解は返されます。
type IllConditionedWarning struct {
	Op        string
	Condition float64
}

func (w *IllConditionedWarning) Error() string {
	return fmt.Sprintf("%s: design matrix is ill-conditioned (condition number %.3g); results may be inaccurate", w.Op, w.Condition)
}

// MarshalZerologObject はzerologのイベントに構造化された警告情報を追加します。
func (w *IllConditionedWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("operation", w.Op).
		Float64("condition", w.Condition).
		Str("type", "IllConditionedWarning")
}

// NewIllConditionedWarning は新しいIllConditionedWarningを作成します。
func NewIllConditionedWarning(op string, condition float64) *IllConditionedWarning {
	return &IllConditionedWarning{Op: op, Condition: condition}
}

// ===========================================================================
//
//	構造化されたエラー型（モデル）
//
// ===========================================================================

// NotFittedError はモデルが未学習の状態で `Predict` などを呼び出した場合のエラーです。
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("greentaxi: %s: this model is not fitted yet. Call Fit() before using %s()", e.ModelName, e.Method)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *NotFittedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model_name", e.ModelName).
		Str("method", e.Method).
		Str("type", "NotFittedError")
}

// NewNotFittedError は新しいNotFittedErrorを作成し、スタックトレースを付与します。
func NewNotFittedError(modelName, method string) error {
	err := &NotFittedError{ModelName: modelName, Method: method}
	return errors.WithStack(err)
}

// DimensionError は入力データの次元が期待値と異なる場合のエラーです。
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0 for rows, 1 for columns/features
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("greentaxi: %s: dimension mismatch on axis %d (%s). Expected %d, got %d", e.Op, e.Axis, e.axisName(), e.Expected, e.Got)
}

func (e *DimensionError) axisName() string {
	if e.Axis == 0 {
		return "rows"
	}
	return "features"
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
	err := &DimensionError{Op: op, Expected: expected, Got: got, Axis: axis}
	return errors.WithStack(err)
}

// ValidationError は入力パラメータの検証に失敗した場合のエラーです。
// `ValueError`よりも具体的なバリデーションロジックの失敗を示します。
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("greentaxi: validation failed for parameter '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
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
	err := &ValidationError{ParamName: param, Reason: reason, Value: value}
	return errors.WithStack(err)
}

// ValueError は引数の値が不適切または不正な場合に発生するエラーです。
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("greentaxi: %s: %s", e.Op, e.Message)
}

// NewValueError は新しいValueErrorを作成し、スタックトレースを付与します。
func NewValueError(op, message string) error {
	err := &ValueError{Op: op, Message: message}
	return errors.WithStack(err)
}

// ModelError は機械学習モデルに関する一般的なエラーです。
// 推論サービスではモデル読み込みや推論の失敗として 500 に対応します。
type ModelError struct {
	Op   string
	Kind string
	Err  error
}

func (e *ModelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("greentaxi: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("greentaxi: %s: %s", e.Op, e.Kind)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// NewModelError は新しいModelErrorを作成し、スタックトレースを付与します。
func NewModelError(op, kind string, err error) error {
	modelErr := &ModelError{Op: op, Kind: kind, Err: err}
	return errors.WithStack(modelErr)
}

// ===========================================================================
//
//	データ・レジストリのエラー型
//
// ===========================================================================

// SchemaError は読み込んだデータに必須カラムが存在しない場合のエラーです。
type SchemaError struct {
	Source  string
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("greentaxi: %s: missing required columns [%s]", e.Source, strings.Join(e.Missing, ", "))
}

func (e *SchemaError) Is(target error) bool {
	return target == ErrSchema
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *SchemaError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("source", e.Source).
		Strs("missing", e.Missing).
		Str("type", "SchemaError")
}

// NewSchemaError は新しいSchemaErrorを作成し、スタックトレースを付与します。
func NewSchemaError(source string, missing []string) error {
	return errors.WithStack(&SchemaError{Source: source, Missing: missing})
}

// DownloadError はデータセットの取得に失敗した場合のエラーです。
// StatusCode が 0 の場合は接続レベルの失敗を表します。
type DownloadError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *DownloadError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("greentaxi: download %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("greentaxi: download %s: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

func (e *DownloadError) Is(target error) bool {
	return target == ErrDataUnavailable
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *DownloadError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("url", e.URL).
		Int("status_code", e.StatusCode).
		Str("type", "DownloadError")
}

// NewDownloadError は新しいDownloadErrorを作成し、スタックトレースを付与します。
func NewDownloadError(url string, statusCode int, err error) error {
	return errors.WithStack(&DownloadError{URL: url, StatusCode: statusCode, Err: err})
}

// RegistryError はトラッキング／モデルレジストリへの操作が失敗した場合のエラーです。
// Code には MLflow の error_code（RESOURCE_DOES_NOT_EXIST 等）が入ります。
type RegistryError struct {
	Op         string
	StatusCode int
	Code       string
	Message    string
	Err        error
}

func (e *RegistryError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "greentaxi: registry %s", e.Op)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if e.Code != "" {
		fmt.Fprintf(&b, ": %s", e.Code)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *RegistryError) Unwrap() error {
	return e.Err
}

func (e *RegistryError) Is(target error) bool {
	switch target {
	case ErrRegistry:
		return true
	case ErrNotFound:
		return e.Code == CodeResourceDoesNotExist
	case ErrAlreadyExists:
		return e.Code == CodeResourceAlreadyExists
	}
	return false
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *RegistryError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Int("status_code", e.StatusCode).
		Str("error_code", e.Code).
		Str("type", "RegistryError")
}

// NewRegistryError は新しいRegistryErrorを作成し、スタックトレースを付与します。
func NewRegistryError(op string, statusCode int, code, message string) error {
	return errors.WithStack(&RegistryError{Op: op, StatusCode: statusCode, Code: code, Message: message})
}

// WrapRegistryError は下位のエラーをRegistryErrorとしてラップします。
// 既にRegistryErrorを含む場合はそのまま返します。
func WrapRegistryError(op string, err error) error {
	if err == nil {
		return nil
	}
	var re *RegistryError
	if errors.As(err, &re) {
		return err
	}
	return errors.WithStack(&RegistryError{Op: op, Err: err})
}

// MLflow の error_code
const (
	CodeResourceDoesNotExist  = "RESOURCE_DOES_NOT_EXIST"
	CodeResourceAlreadyExists = "RESOURCE_ALREADY_EXISTS"
	CodeInvalidParameterValue = "INVALID_PARAMETER_VALUE"
)

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

// CombineErrors は二つのエラーをまとめます。どちらかが nil の場合はもう一方を返します。
func CombineErrors(err, other error) error {
	return errors.CombineErrors(err, other)
}

// ===========================================================================
//
//	共通エラー変数
//
// ===========================================================================

var (
	// ErrEmptyData は空のデータが渡された場合のエラーです。
	ErrEmptyData = New("empty data")

	// ErrSingularMatrix は特異行列の場合のエラーです。
	ErrSingularMatrix = New("singular matrix")

	// ErrDataUnavailable はデータセットが取得できない場合のエラーです。
	ErrDataUnavailable = New("dataset unavailable")

	// ErrSchema は必須カラムが欠けている場合のエラーです。
	ErrSchema = New("schema mismatch")

	// ErrRegistry はトラッキング／レジストリ操作の失敗を表します。
	ErrRegistry = New("registry failure")

	// ErrNotFound は要求したリソースが存在しない場合のエラーです。
	ErrNotFound = New("not found")

	// ErrAlreadyExists はリソースが既に存在する場合のエラーです。
	ErrAlreadyExists = New("already exists")
)
