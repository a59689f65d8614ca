// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizerService はユーザーが入力する自由記述テキスト
// （自己紹介、評価コメント、プランのメモ）をサニタイズし、
// 他のユーザーの画面に表示される際のXSSリスクからユーザーを保護する。
// bluemondayライブラリのポリシーでHTMLタグを一切許可しない。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService はユーザー入力テキストのサニタイズ機能のインターフェースを定義する。
// ドキュメント保存前に使用される。
type ContentSanitizerService interface {
	// Sanitize は入力テキストからHTMLマークアップを全て除去して返す。
	// 自由記述フィールドはプレーンテキストとして表示されるため、
	// タグは許可せず、scriptやon*イベント属性も含めて全て除去する。
	// 前後の空白はトリムされる。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのStrictPolicyを保持し、スレッドセーフにサニタイズ処理を行う。
type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
// StrictPolicyは全ての要素と属性を除去し、テキストノードのみを残す。
func NewContentSanitizer() *contentSanitizer {
	return &contentSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は入力テキストからHTMLマークアップを全て除去して返す。
func (s *contentSanitizer) Sanitize(raw string) string {
	return strings.TrimSpace(s.policy.Sanitize(raw))
}
