// Package report はウォッチリスト一致結果からインパクトレポートを生成し、保存する。
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/hitoshi/labelwatch/internal/model"
)

// レポートに出力する固定文言。
const (
	reportTitle     = "LabelWatch Impact Report"
	sourceLabel     = "FDA DailyMed label updates"
	demoSourceLabel = "bundled demo sample (no network)"
	noMatchesNotice = "_No watchlist matches in the trailing window._"
	missingValue    = "missing"
	unknownValue    = "unknown"
)

// Meta はレポート本文以外の付帯情報。
type Meta struct {
	GeneratedAt time.Time
	WindowDays  int
	// Demo がtrueの場合は出典をデモ用サンプルと表記する。
	Demo bool
}

func (m Meta) source() string {
	if m.Demo {
		return demoSourceLabel
	}
	return sourceLabel
}

// Build は一致結果からMarkdownのレポートを生成する。
// 同じ入力に対しては常に同じ文字列を返す。
// 一致がない場合も見出しと「一致なし」の文言を含むレポートを返す。
func Build(matches []model.MatchResult, meta Meta) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", reportTitle)
	fmt.Fprintf(&b, "Generated: %s\n\n", meta.GeneratedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Source: %s, last %d days.\n\n", meta.source(), meta.WindowDays)
	fmt.Fprintf(&b, "## Watchlist Matches (%d)\n", len(matches))

	if len(matches) == 0 {
		fmt.Fprintf(&b, "\n%s\n", noMatchesNotice)
		return b.String()
	}

	for _, m := range matches {
		fmt.Fprintf(&b, "\n### %s\n\n", escape(m.Item.Title))
		fmt.Fprintf(&b, "- Set ID: %s\n", identifierField(m.Item.Identifier))
		fmt.Fprintf(&b, "- Version: %s\n", orDefault(m.Item.Version, unknownValue))
		fmt.Fprintf(&b, "- Published: %s\n", publishedField(m.Item.PublishedAt))
		fmt.Fprintf(&b, "- Link: %s\n", linkField(m.Item.Link))
		fmt.Fprintf(&b, "- Matched: %s\n", escape(strings.Join(m.Matched, ", ")))
	}

	return b.String()
}

// markdownSpecial はタイトル中でエスケープが必要な文字。
const markdownSpecial = "\\`*_[]<>#&"

// lineBreaks は見出しや箇条書きを分断しないよう空白に置き換える文字。
var lineBreaks = strings.NewReplacer("\r", " ", "\n", " ", "\t", " ")

// escape はMarkdownとして解釈される文字をバックスラッシュでエスケープする。
// 改行とタブは空白に置き換える。それ以外の空白はそのまま残す。
func escape(s string) string {
	s = lineBreaks.Replace(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if strings.ContainsRune(markdownSpecial, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func identifierField(setid string) string {
	if setid == "" || strings.ContainsRune(setid, '`') {
		return orDefault(escape(setid), missingValue)
	}
	return "`" + setid + "`"
}

func publishedField(t time.Time) string {
	if t.IsZero() {
		return unknownValue
	}
	return t.UTC().Format(time.DateOnly)
}

// linkField はリンクを自動リンク記法で出力する。
// 自動リンクにできない文字を含む場合はエスケープしたテキストとして出力する。
func linkField(link string) string {
	absolute := strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://")
	if !absolute || strings.ContainsAny(link, " <>\t\n") {
		return escape(link)
	}
	return "<" + link + ">"
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
