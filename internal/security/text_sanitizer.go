// Package security は利用者入力の無害化機能を提供する。
//
// 問い合わせフォームなど公開エンドポイントから受け取った文字列は
// 管理画面でそのまま表示されるため、保存前にプレーンテキストへ落とす。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer はHTMLを含みうる入力をプレーンテキストに変換するインターフェース。
type TextSanitizer interface {
	// Line は1行の入力（氏名、件名など）を無害化する。
	// 全てのタグを除去し、改行を含む連続空白を1つの空白に畳み、前後の空白を削る。
	Line(raw string) string

	// Multiline は複数行の入力（本文）を無害化する。
	// 全てのタグを除去し、改行は保持したまま各行の末尾空白と前後の空行を削る。
	Multiline(raw string) string
}

// textSanitizer はTextSanitizerの実装。
// bluemondayのStrictPolicyは全タグを除去し、並行利用に対して安全である。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerの新しいインスタンスを生成する。
func NewTextSanitizer() TextSanitizer {
	return &textSanitizer{policy: bluemonday.StrictPolicy()}
}

// strip はタグを除去し、StrictPolicyがエスケープした実体参照を元に戻す。
// 出力はHTMLではなくプレーンテキストとして扱われる前提。
func (s *textSanitizer) strip(raw string) string {
	return html.UnescapeString(s.policy.Sanitize(raw))
}

func (s *textSanitizer) Line(raw string) string {
	return strings.Join(strings.Fields(s.strip(raw)), " ")
}

func (s *textSanitizer) Multiline(raw string) string {
	text := strings.ReplaceAll(raw, "\r\n", "\n")
	lines := strings.Split(s.strip(text), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.Trim(strings.Join(lines, "\n"), "\n ")
}
