// Package model はドメインモデルを定義する。
package model

import "time"

// Role はアプリケーション上の役割を表す。
// ダッシュボードの振り分けに使用するUX上の区分であり、
// セキュリティ境界ではない（実際の認可はバックエンドのアクセスルールが担う）。
type Role string

const (
	// RoleUser は一般ユーザー（コーチを雇う側）を表す。
	RoleUser Role = "user"
	// RoleCoach はコーチ（クライアントを受け持つ側）を表す。
	RoleCoach Role = "coach"
)

// IsValid は既知の役割かどうかを返す。
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleCoach
}

// Identity は認証プロバイダー上のアカウントを表す。
// サインアップ時に作成され、このレイヤーから削除されることはない。
type Identity struct {
	ID        string    `json:"$id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"$createdAt"`
}

// Session は認証プロバイダー上のログインセッションを表す。
// プロセスごとに「現在のセッション」は高々1つ。
// 有効期限はプロバイダー側が所有する。
type Session struct {
	ID        string    `json:"$id"`
	UserID    string    `json:"userId"`
	Provider  string    `json:"provider"`
	Secret    string    `json:"secret"`
	ExpiresAt time.Time `json:"expire"`
	CreatedAt time.Time `json:"$createdAt"`
}

// Profile はIdentityの表示属性と役割別属性を保持する可変ドキュメント。
// ドキュメントIDはアカウントIDと一致し、userId属性にも同じ値を持つ
// （コーチ検索はuserId属性への等価クエリで行われる）。
type Profile struct {
	ID     string `json:"$id"`
	UserID string `json:"userId"`
	Role   Role   `json:"role"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
	Bio    string `json:"bio"`

	// 一般ユーザーのみ
	Goals string `json:"goals"`

	// コーチのみ
	Certifications string  `json:"certifications"`
	HourlyPrice    float64 `json:"hourlyPrice"`
	AvgRating      float64 `json:"avgRating"`
}
