// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// エラー分類名。CLIの出力とログで使用する。
const (
	ErrClassFetch = "FetchError"
	ErrClassParse = "ParseError"
	ErrClassWrite = "WriteError"
)

// FetchError はフィード取得の通信失敗または非成功ステータスを表す。
type FetchError struct {
	URL        string
	StatusCode int // 通信自体が失敗した場合は0
	Err        error
}

// Error はerrorインターフェースを実装する。
func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected HTTP status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

// Unwrap は原因となったエラーを返す。
func (e *FetchError) Unwrap() error { return e.Err }

// Class はエラー分類名を返す。
func (e *FetchError) Class() string { return ErrClassFetch }

// ParseError はレスポンスボディがRSS/Atomとして解析できないことを表す。
type ParseError struct {
	URL string
	Err error
}

// Error はerrorインターフェースを実装する。
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse feed %s: %v", e.URL, e.Err)
}

// Unwrap は原因となったエラーを返す。
func (e *ParseError) Unwrap() error { return e.Err }

// Class はエラー分類名を返す。
func (e *ParseError) Class() string { return ErrClassParse }

// WriteError はレポートファイルの作成・書き込み失敗を表す。
type WriteError struct {
	Path string
	Err  error
}

// Error はerrorインターフェースを実装する。
func (e *WriteError) Error() string {
	return fmt.Sprintf("write report %s: %v", e.Path, e.Err)
}

// Unwrap は原因となったエラーを返す。
func (e *WriteError) Unwrap() error { return e.Err }

// Class はエラー分類名を返す。
func (e *WriteError) Class() string { return ErrClassWrite }

// ErrorClass はエラーチェーンから分類名を取り出す。
// 分類できないエラーは "Error" を返す。
func ErrorClass(err error) string {
	var classed interface{ Class() string }
	if errors.As(err, &classed) {
		return classed.Class()
	}
	return "Error"
}

// APIError はダッシュボードに表示する統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: feed, validation, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeFetchFailed    = "FETCH_FAILED"
	ErrCodeParseFailed    = "PARSE_FAILED"
	ErrCodeWriteFailed    = "WRITE_FAILED"
	ErrCodeInvalidFilter  = "INVALID_FILTER"
	ErrCodeReportNotFound = "REPORT_NOT_FOUND"
	ErrCodeRateLimited    = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal       = "INTERNAL_ERROR"
)

// NewFetchFailedError はフィード取得失敗エラーを生成する。
func NewFetchFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeFetchFailed,
		Message:  fmt.Sprintf("DailyMedフィードの取得に失敗しました: %s", reason),
		Category: "feed",
		Action:   "しばらく待ってから再度「Generate report」を実行してください。",
	}
}

// NewParseFailedError はフィード解析失敗エラーを生成する。
func NewParseFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeParseFailed,
		Message:  fmt.Sprintf("フィードの解析に失敗しました: %s", reason),
		Category: "feed",
		Action:   "フィードURLが有効なRSSを返しているか確認してください。",
	}
}

// NewInvalidFilterError は絞り込み条件が不正な場合のエラーを生成する。
func NewInvalidFilterError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidFilter,
		Message:  fmt.Sprintf("無効な絞り込み条件です: %s", reason),
		Category: "validation",
		Action:   "日付は YYYY-MM-DD 形式で入力してください。",
	}
}

// NewReportNotFoundError は生成済みレポートが存在しない場合のエラーを生成する。
func NewReportNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeReportNotFound,
		Message:  "まだレポートが生成されていません。",
		Category: "validation",
		Action:   "先に「Generate report」を実行してください。",
	}
}

// NewRateLimitedError はレポート生成の回数制限を超えた場合のエラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "レポート生成のリクエストが多すぎます。",
		Category: "system",
		Action:   "Retry-Afterに示された秒数が経過してから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// ToAPIError はパイプラインのエラーを表示用のAPIErrorに変換する。
func ToAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return NewFetchFailedError(fetchErr.Error())
	}
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return NewParseFailedError(parseErr.Error())
	}
	var writeErr *WriteError
	if errors.As(err, &writeErr) {
		return &APIError{
			Code:     ErrCodeWriteFailed,
			Message:  writeErr.Error(),
			Category: "system",
			Action:   "出力先のディレクトリに書き込み権限があるか確認してください。",
		}
	}
	return NewInternalError()
}
