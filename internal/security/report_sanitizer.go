package security

import (
	"github.com/microcosm-cc/bluemonday"
)

// ReportSanitizer はMarkdownから変換したレポートHTMLをダッシュボード表示前にサニタイズする。
// フィードのタイトルやリンクは外部由来のため、変換後のHTMLをそのまま信頼しない。
type ReportSanitizer struct {
	policy *bluemonday.Policy
}

// NewReportSanitizer はレポート表示用の許可リストポリシーを構築する。
// ポリシーの内容:
//   - 許可タグ: h1〜h3, p, ul, ol, li, code, pre, strong, em, hr, a
//   - aタグ: http/httpsの絶対URLのみ、target="_blank" と rel="noopener noreferrer" を付与
//   - script, iframe, style および on* 属性は許可リストに含めないことで除去される
func NewReportSanitizer() *ReportSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"h1", "h2", "h3",
		"p", "ul", "ol", "li",
		"code", "pre", "strong", "em", "hr",
	)

	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("http", "https")
	p.AllowRelativeURLs(false)
	p.RequireParseableURLs(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	return &ReportSanitizer{policy: p}
}

// Sanitize はHTMLを許可リストに従ってサニタイズする。
// 同一入力に対して常に同一出力を返す。
func (s *ReportSanitizer) Sanitize(rawHTML string) string {
	return s.policy.Sanitize(rawHTML)
}
