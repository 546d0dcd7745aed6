// Package watchlist はフィード記事をウォッチリストと期間で絞り込む。
package watchlist

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hitoshi/labelwatch/internal/model"
)

// ErrEmptyEntry はウォッチリストに空の語が含まれる場合のエラー。
var ErrEmptyEntry = errors.New("watchlist entry must not be empty")

// Normalize はウォッチリストの各語の前後空白を取り除く。
// 空の語が含まれる場合はエラーを返す。
func Normalize(entries []string) ([]string, error) {
	normalized := make([]string, 0, len(entries))
	for i, entry := range entries {
		trimmed := strings.TrimSpace(entry)
		if trimmed == "" {
			return nil, fmt.Errorf("watchlist entry %d: %w", i, ErrEmptyEntry)
		}
		normalized = append(normalized, trimmed)
	}
	return normalized, nil
}

// Filter はタイトルにウォッチリストの語を含み、かつ公開日時が
// now から windowDays 日以内の記事を返す。
//
// 照合は大文字小文字を区別しない部分文字列一致。
// ちょうど windowDays 日前の記事は含む。公開日時がない記事は除外する。
// 結果はフィードの順序を保ち、同じ記事は一度だけ現れる。
func Filter(items []model.FeedItem, watchlist []string, windowDays int, now time.Time) []model.MatchResult {
	results := []model.MatchResult{}
	if len(watchlist) == 0 {
		return results
	}

	terms := lowerTerms(watchlist)
	start := cutoff(now, windowDays)

	for _, item := range items {
		if !item.HasPublishedAt() {
			continue
		}
		if item.PublishedAt.Before(start) {
			continue
		}

		matched := matchTerms(strings.ToLower(item.Title), terms)
		if len(matched) == 0 {
			continue
		}
		results = append(results, model.MatchResult{Item: item, Matched: matched})
	}

	return results
}

// cutoff は期間の始点（now の windowDays 日前）を返す。
// 暦日で計算するので windowDays が大きくても桁あふれしない。
func cutoff(now time.Time, windowDays int) time.Time {
	return now.UTC().AddDate(0, 0, -windowDays)
}

type term struct {
	original string
	lower    string
}

// lowerTerms は照合用に小文字化した語を、大文字小文字を無視した重複を除いて返す。
func lowerTerms(watchlist []string) []term {
	seen := make(map[string]struct{}, len(watchlist))
	terms := make([]term, 0, len(watchlist))
	for _, entry := range watchlist {
		lower := strings.ToLower(strings.TrimSpace(entry))
		if lower == "" {
			continue
		}
		if _, ok := seen[lower]; ok {
			continue
		}
		seen[lower] = struct{}{}
		terms = append(terms, term{original: strings.TrimSpace(entry), lower: lower})
	}
	return terms
}

func matchTerms(title string, terms []term) []string {
	var matched []string
	for _, t := range terms {
		if strings.Contains(title, t.lower) {
			matched = append(matched, t.original)
		}
	}
	return matched
}

// Refinement はダッシュボードで指定する追加の絞り込み条件。
// ゼロ値の項目は条件として使わない。
type Refinement struct {
	// Keyword はタイトルに含まれるべき語。
	Keyword string
	// Manufacturer はタイトル末尾の [製造販売業者] などに含まれるべき語。
	Manufacturer string
	// From, To はラベル日付の範囲（日付単位、両端を含む）。
	// ラベル日付は更新日があれば更新日、なければ公開日。
	From time.Time
	To   time.Time
}

// IsZero は条件が何も指定されていないかを返す。
func (r Refinement) IsZero() bool {
	return strings.TrimSpace(r.Keyword) == "" &&
		strings.TrimSpace(r.Manufacturer) == "" &&
		r.From.IsZero() && r.To.IsZero()
}

// Validate は日付範囲の整合性を確認する。
func (r Refinement) Validate() error {
	if !r.From.IsZero() && !r.To.IsZero() && r.To.Before(r.From) {
		return fmt.Errorf("date range end %s is before start %s",
			r.To.Format(time.DateOnly), r.From.Format(time.DateOnly))
	}
	return nil
}

// Refine はFilterの結果にさらに条件を適用する。順序は保たれる。
func Refine(matches []model.MatchResult, r Refinement) []model.MatchResult {
	if r.IsZero() {
		return matches
	}

	keyword := strings.ToLower(strings.TrimSpace(r.Keyword))
	manufacturer := strings.ToLower(strings.TrimSpace(r.Manufacturer))
	from := dayStart(r.From)
	to := dayStart(r.To)

	refined := make([]model.MatchResult, 0, len(matches))
	for _, m := range matches {
		title := strings.ToLower(m.Item.Title)
		if keyword != "" && !strings.Contains(title, keyword) {
			continue
		}
		if manufacturer != "" && !strings.Contains(title, manufacturer) {
			continue
		}

		day := dayStart(m.Item.LabelDate())
		if !from.IsZero() && day.Before(from) {
			continue
		}
		if !to.IsZero() && day.After(to) {
			continue
		}
		refined = append(refined, m)
	}
	return refined
}

// dayStart はUTCでの日付の0時を返す。ゼロ値はゼロ値のまま返す。
func dayStart(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
