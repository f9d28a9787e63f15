// Package security はアプリケーションのセキュリティ機能を提供する。
//
// 投稿のタイトルと本文はプレーンテキストとして扱うため、
// 保存前にbluemondayのStrictPolicyで全てのHTMLタグを除去する。
package security

import (
	"html"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer は利用者入力のテキストをサニタイズするインターフェース。
// 投稿の作成・タイトル更新時に使用される。
type TextSanitizer interface {
	// Sanitize はHTMLタグを全て除去したプレーンテキストを返す。
	// script, styleタグは中身ごと除去する。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// textSanitizer はTextSanitizerの実装。
// bluemondayのポリシーはスレッドセーフなので共有して使う。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はStrictPolicyを使うTextSanitizerを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize はタグを除去し、bluemondayがエスケープした文字参照を元に戻す。
// 出力はHTMLではなくテキストとして保存されるため、"&" などはそのまま残す。
func (s *textSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	return html.UnescapeString(s.policy.Sanitize(raw))
}

// compile-time interface check
var _ TextSanitizer = (*textSanitizer)(nil)
