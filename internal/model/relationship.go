// Package model はドメインモデルを定義する。
package model

import "time"

// RelationshipStatus はユーザーとコーチのペアリングのライフサイクル状態を表す。
type RelationshipStatus string

const (
	// StatusRequested はユーザーが雇用リクエストを送った初期状態。
	StatusRequested RelationshipStatus = "requested"
	// StatusActive はコーチがリクエストを承諾した状態。
	StatusActive RelationshipStatus = "active"
	// StatusEnded は終了状態（終端）。ドキュメントの削除もendedと同義に扱う。
	StatusEnded RelationshipStatus = "ended"
)

// Relationship はユーザーとコーチのペアリングレコードを表す。
// 不変条件: 同一ユーザーIDに対して、status != ended のRelationshipは
// 高々1件しか存在しない（作成前にRelationship Service側で検査する。
// ストレージ層は保証しない）。
type Relationship struct {
	ID        string             `json:"$id"`
	UserID    string             `json:"userId"`
	CoachID   string             `json:"coachId"`
	Status    RelationshipStatus `json:"status"`
	CreatedAt time.Time          `json:"$createdAt"`
}

// Rating はユーザーからコーチへの評価を表す。追記専用であり、
// activeなRelationshipが存在するペアに対してのみ作成される。
type Rating struct {
	ID        string    `json:"$id"`
	UserID    string    `json:"userId"`
	CoachID   string    `json:"coachId"`
	Stars     int       `json:"stars"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
}

// WorkoutPlan はコーチがクライアントに割り当てるトレーニングプランを表す。
type WorkoutPlan struct {
	ID        string    `json:"$id"`
	ClientID  string    `json:"clientId"`
	CoachID   string    `json:"coachId"`
	Title     string    `json:"title"`
	Exercises string    `json:"exercises"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"createdAt"`
}
