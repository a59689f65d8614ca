// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
	"strings"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, conflict, not_found, network, storage, config, validation
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeAuthenticationFailed  = "AUTHENTICATION_FAILED"
	ErrCodeDuplicateRelationship = "DUPLICATE_RELATIONSHIP"
	ErrCodeRatingNotAllowed      = "RATING_NOT_ALLOWED"
	ErrCodeRelationshipNotFound  = "RELATIONSHIP_NOT_FOUND"
	ErrCodeProfileNotFound       = "PROFILE_NOT_FOUND"
	ErrCodeDocumentNotFound      = "DOCUMENT_NOT_FOUND"
	ErrCodeRemoteConflict        = "REMOTE_CONFLICT"
	ErrCodeNetworkError          = "NETWORK_ERROR"
	ErrCodeStorageError          = "STORAGE_ERROR"
	ErrCodeConfigurationError    = "CONFIGURATION_ERROR"
	ErrCodeInvalidStars          = "INVALID_STARS"
	ErrCodeInvalidPlan           = "INVALID_PLAN"
	ErrCodeInvalidProfile        = "INVALID_PROFILE"
)

// IsCode はerrが指定コードのAPIErrorかどうかを判定する。
func IsCode(err error, code string) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}

// NewAuthenticationError は認証失敗エラーを生成する。
// プロバイダーが資格情報を拒否した場合にのみ使用する
// （トランスポート障害はNewNetworkErrorで区別する）。
func NewAuthenticationError() *APIError {
	return &APIError{
		Code:     ErrCodeAuthenticationFailed,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度ログインしてください。",
	}
}

// NewDuplicateRelationshipError は単一アクティブコーチ不変条件の違反エラーを生成する。
func NewDuplicateRelationshipError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateRelationship,
		Message:  "すでに申請中または契約中のコーチがいます。",
		Category: "conflict",
		Action:   "現在のコーチとの関係を終了してから、新しいリクエストを送ってください。",
	}
}

// NewRatingNotAllowedError は評価権限がない場合のエラーを生成する。
func NewRatingNotAllowedError() *APIError {
	return &APIError{
		Code:     ErrCodeRatingNotAllowed,
		Message:  "このコーチを評価するには契約中である必要があります。",
		Category: "conflict",
		Action:   "コーチとの契約が成立してから評価してください。",
	}
}

// NewRelationshipNotFoundError はRelationshipが見つからない場合のエラーを生成する。
// 多くの場合、別のアクターが先に承諾/辞退したことを意味する。
func NewRelationshipNotFoundError(relationshipID string) *APIError {
	return &APIError{
		Code:     ErrCodeRelationshipNotFound,
		Message:  fmt.Sprintf("指定されたリクエストが見つかりません: %s", relationshipID),
		Category: "not_found",
		Action:   "一覧を再読み込みしてください。すでに処理済みの可能性があります。",
	}
}

// NewProfileNotFoundError はプロフィールが見つからない場合のエラーを生成する。
func NewProfileNotFoundError(identityID string) *APIError {
	return &APIError{
		Code:     ErrCodeProfileNotFound,
		Message:  fmt.Sprintf("プロフィールが見つかりません: %s", identityID),
		Category: "not_found",
		Action:   "プロフィール設定を完了してください。",
	}
}

// NewDocumentNotFoundError は参照先ドキュメントが存在しない場合のエラーを生成する。
func NewDocumentNotFoundError(documentID string) *APIError {
	return &APIError{
		Code:     ErrCodeDocumentNotFound,
		Message:  fmt.Sprintf("指定されたデータが見つかりません: %s", documentID),
		Category: "not_found",
		Action:   "画面を再読み込みしてください。",
	}
}

// NewRemoteConflictError はリモートストア側の競合エラーを生成する。
// 別のアクターが先に同じデータを変更したことを意味する。
func NewRemoteConflictError(detail string) *APIError {
	return &APIError{
		Code:     ErrCodeRemoteConflict,
		Message:  fmt.Sprintf("データが競合しました: %s", detail),
		Category: "conflict",
		Action:   "画面を再読み込みしてから、再度お試しください。",
	}
}

// NewNetworkError はトランスポート障害エラーを生成する。
// 同一操作の再実行で回復可能（リトライは呼び出し側の判断）。
func NewNetworkError(detail string) *APIError {
	return &APIError{
		Code:     ErrCodeNetworkError,
		Message:  fmt.Sprintf("サーバーとの通信に失敗しました: %s", detail),
		Category: "network",
		Action:   "通信環境を確認し、しばらく待ってから再度お試しください。",
	}
}

// NewStorageError はローカルストレージ障害エラーを生成する。
func NewStorageError(detail string) *APIError {
	return &APIError{
		Code:     ErrCodeStorageError,
		Message:  fmt.Sprintf("端末内ストレージの操作に失敗しました: %s", detail),
		Category: "storage",
		Action:   "端末の空き容量と権限を確認してください。",
	}
}

// NewConfigurationError は必須設定の欠落エラーを生成する。
// 起動時に致命的であり、未定義のIDのまま続行してはならない。
func NewConfigurationError(missing []string) *APIError {
	return &APIError{
		Code:     ErrCodeConfigurationError,
		Message:  fmt.Sprintf("必須の設定が不足しています: %s", strings.Join(missing, ", ")),
		Category: "config",
		Action:   "環境変数または.envファイルを確認してください。",
	}
}

// NewInvalidStarsError は星の数が範囲外の場合のエラーを生成する。
func NewInvalidStarsError(stars int) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidStars,
		Message:  fmt.Sprintf("星の数が無効です: %d", stars),
		Category: "validation",
		Action:   "星は1から5の範囲で指定してください。",
	}
}

// NewInvalidPlanError はトレーニングプランの入力不備エラーを生成する。
func NewInvalidPlanError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPlan,
		Message:  fmt.Sprintf("プランの内容が不足しています: %s", reason),
		Category: "validation",
		Action:   "タイトルとエクササイズ内容を入力してください。",
	}
}

// NewInvalidProfileError はプロフィール入力の不備エラーを生成する。
func NewInvalidProfileError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidProfile,
		Message:  fmt.Sprintf("プロフィールの内容が無効です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}
