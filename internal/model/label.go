// Package model はドメインモデルを定義する。
package model

import "time"

// FeedItem はDailyMed RSSから取得したラベル更新1件を表す。
// パース後は変更しない。
type FeedItem struct {
	Title string
	Link  string
	// PublishedAt は公開日時。取得できなかった場合はゼロ値。
	PublishedAt time.Time
	// Identifier はリンクから抽出したsetid。抽出できなかった場合は空文字列。
	Identifier string
	// Version はリンクから抽出したSPLバージョン。存在しない場合は空文字列。
	Version string
	// UpdatedDate はdescriptionの "Updated Date:" に記載された生の文字列。
	UpdatedDate string
	// UpdatedAt はUpdatedDateを解析した日時。解析できなかった場合はゼロ値。
	UpdatedAt time.Time
}

// HasPublishedAt は公開日時が取得できているかを返す。
func (i FeedItem) HasPublishedAt() bool {
	return !i.PublishedAt.IsZero()
}

// LabelDate は日付範囲の絞り込みに使う日時を返す。
// 更新日があれば更新日、なければ公開日。
func (i FeedItem) LabelDate() time.Time {
	if !i.UpdatedAt.IsZero() {
		return i.UpdatedAt
	}
	return i.PublishedAt
}

// MatchResult はウォッチリストに一致したフィード記事と、一致した語の組。
type MatchResult struct {
	Item FeedItem
	// Matched は一致したウォッチリストの語。ウォッチリストの順序で重複なし。
	Matched []string
}

// Report は1回の実行で生成されたインパクトレポート。
// Demo はデモ用のサンプルフィードから生成した場合にtrue。
type Report struct {
	ID          string
	GeneratedAt time.Time
	WindowDays  int
	TotalItems  int
	Matches     []MatchResult
	Markdown    string
	Demo        bool
}
