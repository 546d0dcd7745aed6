package report

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gingfrederik/docx"

	"github.com/hitoshi/labelwatch/internal/model"
)

// 文字色（16進RGB）。
const (
	colorMuted = "808080"
	colorLink  = "0000FF"
	colorMatch = "008000"
)

// BuildDocx はMarkdownと同じ内容のWord文書をpathに保存する。
// Writeと同じく一時ファイルからのリネームで保存する。
func BuildDocx(matches []model.MatchResult, meta Meta, path string) error {
	return writeAtomic(path, func(tmpName string) error {
		return newDocx(matches, meta).Save(tmpName)
	})
}

// DocxBytes はWord文書をバイト列として返す。ダッシュボードのダウンロードで使用する。
func DocxBytes(matches []model.MatchResult, meta Meta) ([]byte, error) {
	tmp, err := os.CreateTemp("", "labelwatch-*.docx")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	name := tmp.Name()
	tmp.Close()
	defer os.Remove(name)

	if err := newDocx(matches, meta).Save(name); err != nil {
		return nil, fmt.Errorf("save docx: %w", err)
	}

	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read docx: %w", err)
	}
	return data, nil
}

func newDocx(matches []model.MatchResult, meta Meta) *docx.File {
	f := docx.NewFile()

	run := f.AddParagraph().AddText(reportTitle)
	run.Size(20)

	run = f.AddParagraph().AddText("Generated: " + meta.GeneratedAt.UTC().Format(time.RFC3339))
	run.Size(10)
	run.Color(colorMuted)

	f.AddParagraph().AddText(fmt.Sprintf("Source: %s, last %d days.", meta.source(), meta.WindowDays))
	f.AddParagraph()

	run = f.AddParagraph().AddText(fmt.Sprintf("Watchlist Matches (%d)", len(matches)))
	run.Size(16)

	if len(matches) == 0 {
		f.AddParagraph().AddText("No watchlist matches in the trailing window.")
		return f
	}

	for _, m := range matches {
		f.AddParagraph()

		run = f.AddParagraph().AddText(m.Item.Title)
		run.Size(14)

		run = f.AddParagraph().AddText(fmt.Sprintf("Set ID: %s | Version: %s | Published: %s",
			orDefault(m.Item.Identifier, missingValue),
			orDefault(m.Item.Version, unknownValue),
			publishedField(m.Item.PublishedAt),
		))
		run.Size(10)
		run.Color(colorMuted)

		run = f.AddParagraph().AddText(m.Item.Link)
		run.Size(10)
		run.Color(colorLink)

		run = f.AddParagraph().AddText("Matched: " + strings.Join(m.Matched, ", "))
		run.Color(colorMatch)
	}

	return f
}
