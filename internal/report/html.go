package report

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/yuin/goldmark"
)

// Sanitizer は変換後のHTMLを表示前に無害化する。
// security.ReportSanitizerが実装する。
type Sanitizer interface {
	Sanitize(rawHTML string) string
}

var markdownRenderer = goldmark.New()

// RenderHTML はMarkdownのレポートをHTMLに変換し、sanitizerで無害化して返す。
// 生のHTMLはgoldmarkの既定設定により出力されない。
func RenderHTML(markdown string, sanitizer Sanitizer) (template.HTML, error) {
	var buf bytes.Buffer
	if err := markdownRenderer.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	// サニタイズ済みの出力のみをtemplate.HTMLとして扱う
	return template.HTML(sanitizer.Sanitize(buf.String())), nil
}
