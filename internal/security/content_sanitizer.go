// Package security はユーザー投稿コンテンツの安全化を提供する。
//
// 旅行記（stories）の本文はHTMLを許可リストでサニタイズし、
// ガイドへのレビューコメントはすべてのタグを除去したプレーンテキストとして保存する。
package security

import (
	"net/url"

	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer はユーザー入力のHTMLを安全な文字列に変換する。
// 同一入力に対して常に同一出力を返す（冪等）。
type Sanitizer interface {
	Sanitize(raw string) string
}

// policySanitizer はbluemondayのポリシーを保持する。ポリシーはスレッドセーフ。
type policySanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer は旅行記本文用のサニタイザーを生成する。
// ポリシーの内容:
//   - 許可タグ: p, br, h2, h3, ul, ol, li, blockquote, strong, em, a, img
//   - script, iframe, styleおよびon*イベント属性は除去
//   - imgのsrc属性: httpsスキームのみ許可
//   - aタグ: target="_blank" と rel="noopener noreferrer" を自動付与
func NewContentSanitizer() Sanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"p", "br", "h2", "h3", "ul", "ol", "li",
		"blockquote", "strong", "em",
	)

	p.AllowAttrs("href").OnElements("a")
	p.AllowRelativeURLs(false)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	// 旅行写真はホスティングサービスのhttps URLのみ
	p.AllowAttrs("src", "alt").OnElements("img")
	p.AllowURLSchemeWithCustomPolicy("https", func(u *url.URL) bool {
		return u.Host != ""
	})

	return &policySanitizer{policy: p}
}

// NewTextSanitizer はすべてのタグを除去するサニタイザーを生成する。
// レビューコメントなど、HTMLを表示しないフィールドに使う。
func NewTextSanitizer() Sanitizer {
	return &policySanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize はポリシーに従ってHTMLをサニタイズする。
func (s *policySanitizer) Sanitize(raw string) string {
	return s.policy.Sanitize(raw)
}
