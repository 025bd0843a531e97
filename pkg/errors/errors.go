// Package errors はallocgo全体のエラーハンドリングと警告システムを提供します。
// モデルアーティファクトの検証エラー、入力レコードのスキーマエラー、木の走査エラー、
// それらを包む予測エラーを構造化された形で表現します。
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
		// デフォルトのハンドラは標準エラー出力にログを出す
		log.Printf("allocgo-Warning: %v\n", w)
	}
	// zerologロガー（循環importを避けるため遅延初期化）
	zerologWarnFunc func(warning error)
)

// SetWarningHandler はライブラリ全体の警告ハンドラを設定します。
//
// 例:
//
//	errors.SetWarningHandler(func(w error) {
//	    // 警告を無視する
//	})
func SetWarningHandler(handler func(w error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	warningHandler = handler
}

// SetZerologWarnFunc はzerolog警告関数を設定します（循環importを避けるため）。
// nilを渡すと従来のハンドラに戻ります。
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
//	アーティファクト読み込み時の警告型
//
// ===========================================================================

// UnreachableNodeWarning はルートから到達できないノードが木に含まれている場合の警告です。
// 評価結果には影響しませんが、学習側のエクスポートが壊れている兆候です。
type UnreachableNodeWarning struct {
	Tree  int
	Nodes []int
}

func (w *UnreachableNodeWarning) Error() string {
	return fmt.Sprintf("tree %d has %d node(s) unreachable from the root: %v", w.Tree, len(w.Nodes), w.Nodes)
}

// MarshalZerologObject はzerologのイベントに構造化された警告情報を追加します。
func (w *UnreachableNodeWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Int("tree", w.Tree).
		Ints("nodes", w.Nodes).
		Str("type", "UnreachableNodeWarning")
}

// NewUnreachableNodeWarning は新しいUnreachableNodeWarningを作成します。
func NewUnreachableNodeWarning(tree int, nodes []int) *UnreachableNodeWarning {
	return &UnreachableNodeWarning{Tree: tree, Nodes: nodes}
}

// UnknownImportanceFeatureWarning はfeature_importanceにスキーマ外の特徴量名がある場合の警告です。
type UnknownImportanceFeatureWarning struct {
	Feature string
}

func (w *UnknownImportanceFeatureWarning) Error() string {
	return fmt.Sprintf("feature_importance references '%s', which is not an expanded feature of the schema", w.Feature)
}

// NewUnknownImportanceFeatureWarning は新しいUnknownImportanceFeatureWarningを作成します。
func NewUnknownImportanceFeatureWarning(feature string) *UnknownImportanceFeatureWarning {
	return &UnknownImportanceFeatureWarning{Feature: feature}
}

// BaseScoreOverrideWarning は明示的に渡されたベーススコアがアーティファクト内の値と異なる場合の警告です。
type BaseScoreOverrideWarning struct {
	Artifact float64
	Supplied float64
}

func (w *BaseScoreOverrideWarning) Error() string {
	return fmt.Sprintf("supplied base score %g overrides artifact base_score %g", w.Supplied, w.Artifact)
}

// MarshalZerologObject はzerologのイベントに構造化された警告情報を追加します。
func (w *BaseScoreOverrideWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Float64("artifact", w.Artifact).
		Float64("supplied", w.Supplied).
		Str("type", "BaseScoreOverrideWarning")
}

// NewBaseScoreOverrideWarning は新しいBaseScoreOverrideWarningを作成します。
func NewBaseScoreOverrideWarning(artifact, supplied float64) *BaseScoreOverrideWarning {
	return &BaseScoreOverrideWarning{Artifact: artifact, Supplied: supplied}
}

// ===========================================================================
//
//	構造化されたエラー型
//
// ===========================================================================

// ArtifactError はモデルアーティファクトが不正または矛盾している場合のエラーです。
// アーティファクト全体が拒否され、部分的に読み込まれることはありません。
type ArtifactError struct {
	Field  string // 違反箇所（例: "trees[3].nodes[7].left_child"）
	Reason string
}

func (e *ArtifactError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("allocgo: invalid artifact: %s", e.Reason)
	}
	return fmt.Sprintf("allocgo: invalid artifact: %s: %s", e.Field, e.Reason)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ArtifactError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("field", e.Field).
		Str("reason", e.Reason).
		Str("type", "ArtifactError")
}

// NewArtifactError は新しいArtifactErrorを作成し、スタックトレースを付与します。
func NewArtifactError(field, reason string) error {
	return errors.WithStack(&ArtifactError{Field: field, Reason: reason})
}

// NewArtifactErrorf はフォーマット済みの理由でArtifactErrorを作成します。
func NewArtifactErrorf(field, format string, args ...interface{}) error {
	return errors.WithStack(&ArtifactError{Field: field, Reason: fmt.Sprintf(format, args...)})
}

// SchemaError は入力レコードがスキーマ検証に失敗した場合のエラーです。
// 該当リクエストのみが拒否され、アーティファクトは他のリクエストで引き続き使用できます。
type SchemaError struct {
	Feature string
	Reason  string
	Value   interface{}
}

func (e *SchemaError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("allocgo: invalid record: feature '%s': %s", e.Feature, e.Reason)
	}
	return fmt.Sprintf("allocgo: invalid record: feature '%s': %s (got: %v)", e.Feature, e.Reason, e.Value)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *SchemaError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("feature", e.Feature).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "SchemaError")
}

// NewSchemaError は新しいSchemaErrorを作成し、スタックトレースを付与します。
func NewSchemaError(feature, reason string, value interface{}) error {
	return errors.WithStack(&SchemaError{Feature: feature, Reason: reason, Value: value})
}

// TraversalError は評価時に木の破損が検出された場合のエラーです。
// 読み込み時の検証が網羅的であれば到達しないため、バグの兆候として扱います。
type TraversalError struct {
	Tree   int
	Node   int
	Reason string
}

func (e *TraversalError) Error() string {
	return fmt.Sprintf("allocgo: tree %d: node %d: %s", e.Tree, e.Node, e.Reason)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *TraversalError) MarshalZerologObject(event *zerolog.Event) {
	event.Int("tree", e.Tree).
		Int("node", e.Node).
		Str("reason", e.Reason).
		Str("type", "TraversalError")
}

// NewTraversalError は新しいTraversalErrorを作成し、スタックトレースを付与します。
func NewTraversalError(tree, node int, reason string) error {
	return errors.WithStack(&TraversalError{Tree: tree, Node: node, Reason: reason})
}

// PredictionError は呼び出し元に返される予測失敗のエラーです。
// 最初に発生したSchemaError/TraversalErrorなどを包みます。
type PredictionError struct {
	Op   string
	Tree int // 関係する木のインデックス（木に無関係な場合は-1）
	Err  error
}

func (e *PredictionError) Error() string {
	if e.Tree >= 0 {
		return fmt.Sprintf("allocgo: %s: prediction failed at tree %d: %v", e.Op, e.Tree, e.Err)
	}
	return fmt.Sprintf("allocgo: %s: prediction failed: %v", e.Op, e.Err)
}

func (e *PredictionError) Unwrap() error {
	return e.Err
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *PredictionError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Int("tree", e.Tree).
		AnErr("cause", e.Err).
		Str("type", "PredictionError")
}

// NewPredictionError は新しいPredictionErrorを作成し、スタックトレースを付与します。
// tree には関係する木のインデックス、木に無関係な場合は-1を渡します。
func NewPredictionError(op string, tree int, err error) error {
	return errors.WithStack(&PredictionError{Op: op, Tree: tree, Err: err})
}

// ValueError は引数の値が不適切または不正な場合に発生するエラーです。
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("allocgo: %s: %s", e.Op, e.Message)
}

// NewValueError は新しいValueErrorを作成し、スタックトレースを付与します。
func NewValueError(op, message string) error {
	return errors.WithStack(&ValueError{Op: op, Message: message})
}

// DimensionError は入力データの次元が期待値と異なる場合のエラーです。
type DimensionError struct {
	Op       string
	Expected int
	Got      int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("allocgo: %s: dimension mismatch. Expected %d, got %d", e.Op, e.Expected, e.Got)
}

// NewDimensionError は新しいDimensionErrorを作成し、スタックトレースを付与します。
func NewDimensionError(op string, expected, got int) error {
	return errors.WithStack(&DimensionError{Op: op, Expected: expected, Got: got})
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

// IsArtifactError はエラーチェーンにArtifactErrorが含まれるかを判定します。
func IsArtifactError(err error) bool {
	var target *ArtifactError
	return errors.As(err, &target)
}

// IsSchemaError はエラーチェーンにSchemaErrorが含まれるかを判定します。
func IsSchemaError(err error) bool {
	var target *SchemaError
	return errors.As(err, &target)
}

// IsTraversalError はエラーチェーンにTraversalErrorが含まれるかを判定します。
func IsTraversalError(err error) bool {
	var target *TraversalError
	return errors.As(err, &target)
}

// ===========================================================================
//
//	共通エラー変数
//
// ===========================================================================

var (
	// ErrEmptyData は空のデータが渡された場合のエラーです。
	ErrEmptyData = New("empty data")

	// ErrNoModel はレジストリにモデルがまだ読み込まれていない場合のエラーです。
	ErrNoModel = New("no model loaded")
)
