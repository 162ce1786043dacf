// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, presence, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidIdentity = "INVALID_IDENTITY"
	ErrCodeInvalidPeriod   = "INVALID_PERIOD"
	ErrCodeInvalidLimit    = "INVALID_LIMIT"
	ErrCodeUserNotFound    = "USER_NOT_FOUND"
	ErrCodeCleanupDisabled = "CLEANUP_DISABLED"
	ErrCodeStorageFailure  = "STORAGE_FAILURE"
)

// NewInvalidIdentityError は識別子のないイベントに対するエラーを生成する。
func NewInvalidIdentityError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidIdentity,
		Message:  "ユーザーIDもセッションIDも指定されていません。",
		Category: "validation",
		Action:   "認証済みユーザーのIDまたはセッションIDを指定してください。",
	}
}

// NewInvalidPeriodError は無効な期間指定に対するエラーを生成する。
func NewInvalidPeriodError(minutes int) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPeriod,
		Message:  fmt.Sprintf("無効な期間指定です: %d分", minutes),
		Category: "validation",
		Action:   "minutesには1以上の整数を指定してください。",
	}
}

// NewMalformedPeriodError は数値として解釈できない期間指定に対するエラーを生成する。
// 拒否した入力値をそのままメッセージに含める。
func NewMalformedPeriodError(value string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPeriod,
		Message:  fmt.Sprintf("無効な期間指定です: %s", value),
		Category: "validation",
		Action:   "minutesには1以上の整数を指定してください。",
	}
}

// NewInvalidLimitError は無効な取得件数指定に対するエラーを生成する。
func NewInvalidLimitError(limit int) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidLimit,
		Message:  fmt.Sprintf("無効な取得件数です: %d", limit),
		Category: "validation",
		Action:   "limitには1以上の整数を指定してください。",
	}
}

// NewUserNotFoundError はアクティビティ未登録ユーザーに対するエラーを生成する。
func NewUserNotFoundError(userID string) *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  fmt.Sprintf("指定されたユーザーのアクティビティが見つかりません: %s", userID),
		Category: "presence",
		Action:   "ユーザーIDを確認してください。",
	}
}

// NewStorageFailureError はデータストア起因の内部エラーを生成する。
// 呼び出し元には詳細を漏らさず、カテゴリと対処方法のみを返す。
func NewStorageFailureError() *APIError {
	return &APIError{
		Code:     ErrCodeStorageFailure,
		Message:  "データストアへのアクセスに失敗しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewCleanupDisabledError はクリーンアップ無効時の実行エラーを生成する。
func NewCleanupDisabledError() *APIError {
	return &APIError{
		Code:     ErrCodeCleanupDisabled,
		Message:  "クリーンアップが無効化されています。",
		Category: "system",
		Action:   "CLEANUP_AFTER_DAYSを設定するか、--daysオプションで保持日数を指定してください。",
	}
}
