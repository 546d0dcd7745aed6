// Package feed はDailyMedのラベル更新RSSを取得し、FeedItemに変換する。
package feed

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/labelwatch/internal/metrics"
	"github.com/hitoshi/labelwatch/internal/model"
)

// DefaultMaxBodySize はレスポンスボディの既定上限（10MiB）。
const DefaultMaxBodySize int64 = 10 << 20

// スキップ理由。メトリクスのラベルとログに使用する。
const (
	skipMissingTitle = "missing_title"
	skipMissingLink  = "missing_link"
)

// URLGuard はフィードURLの検証と安全なHTTPクライアントの提供を抽象化する。
// security.FetchGuardが実装する。
type URLGuard interface {
	ValidateURL(rawURL string) error
	Client() *http.Client
}

// Source は固定のRSSエンドポイントに対して1回のGETを行い、記事列を返す。
// キャッシュもリトライも行わない。
type Source struct {
	feedURL     string
	guard       URLGuard
	metrics     metrics.MetricsCollector
	logger      *slog.Logger
	maxBodySize int64
}

// NewSource はSourceの新しいインスタンスを生成する。
// maxBodySizeが0以下の場合はDefaultMaxBodySizeを使用する。
func NewSource(
	feedURL string,
	guard URLGuard,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	maxBodySize int64,
) *Source {
	if maxBodySize <= 0 {
		maxBodySize = DefaultMaxBodySize
	}
	return &Source{
		feedURL:     feedURL,
		guard:       guard,
		metrics:     collector,
		logger:      logger,
		maxBodySize: maxBodySize,
	}
}

// URL は取得対象のフィードURLを返す。
func (s *Source) URL() string {
	return s.feedURL
}

// FetchItems はフィードを取得してFeedItemの列を返す。
// 通信失敗・非2xxステータスは*model.FetchError、
// RSS/Atomとして解析できないボディは*model.ParseErrorを返す。
// タイトルまたはリンクが欠けた記事はスキップし、取得全体は失敗させない。
func (s *Source) FetchItems(ctx context.Context) ([]model.FeedItem, error) {
	start := time.Now()

	if err := s.guard.ValidateURL(s.feedURL); err != nil {
		s.metrics.RecordFetchFailure("invalid_url")
		return nil, &model.FetchError{URL: s.feedURL, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.feedURL, nil)
	if err != nil {
		s.metrics.RecordFetchFailure("invalid_url")
		return nil, &model.FetchError{URL: s.feedURL, Err: err}
	}
	req.Header.Set("User-Agent", "LabelWatch/1.0 (+FDA label watchlist)")
	req.Header.Set("Accept", "application/rss+xml, application/xml, text/xml, */*")

	resp, err := s.guard.Client().Do(req)
	if err != nil {
		s.logger.Error("feed request failed",
			slog.String("feed_url", s.feedURL),
			slog.String("error", err.Error()),
		)
		s.metrics.RecordFetchFailure("transport")
		return nil, &model.FetchError{URL: s.feedURL, Err: err}
	}
	defer resp.Body.Close()

	s.metrics.RecordHTTPStatus(resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.logger.Warn("feed returned non-success status",
			slog.String("feed_url", s.feedURL),
			slog.Int("http_status", resp.StatusCode),
		)
		s.metrics.RecordFetchFailure("status")
		return nil, &model.FetchError{
			URL:        s.feedURL,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("HTTP %s", resp.Status),
		}
	}

	// 上限+1バイトまで読み、超過を検出する
	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBodySize+1))
	if err != nil {
		s.metrics.RecordFetchFailure("read_body")
		return nil, &model.FetchError{URL: s.feedURL, Err: fmt.Errorf("read body: %w", err)}
	}
	if int64(len(body)) > s.maxBodySize {
		s.metrics.RecordFetchFailure("too_large")
		return nil, &model.FetchError{
			URL: s.feedURL,
			Err: fmt.Errorf("response body exceeds %d bytes", s.maxBodySize),
		}
	}

	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		s.logger.Error("feed parse failed",
			slog.String("feed_url", s.feedURL),
			slog.String("error", err.Error()),
		)
		s.metrics.RecordParseFailure()
		return nil, &model.ParseError{URL: s.feedURL, Err: err}
	}

	duration := time.Since(start)
	s.metrics.RecordFetchSuccess()
	s.metrics.RecordFetchLatency(duration)

	items := s.convertItems(parsed.Items)

	s.logger.Info("feed fetched",
		slog.String("feed_url", s.feedURL),
		slog.Int("http_status", resp.StatusCode),
		slog.Int("entries_total", len(parsed.Items)),
		slog.Int("items_total", len(items)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return items, nil
}

// convertItems はgofeedの記事をmodel.FeedItemに変換する。
// 元のフィード順（新しい順）を保持する。
func (s *Source) convertItems(entries []*gofeed.Item) []model.FeedItem {
	items := make([]model.FeedItem, 0, len(entries))

	for i, entry := range entries {
		if entry == nil {
			continue
		}

		title := strings.TrimSpace(entry.Title)
		link := strings.TrimSpace(entry.Link)

		// LinkがなくGUIDがURL形式の場合はGUIDをLinkとして使用
		if link == "" && (strings.HasPrefix(entry.GUID, "http://") || strings.HasPrefix(entry.GUID, "https://")) {
			link = strings.TrimSpace(entry.GUID)
		}

		if title == "" {
			s.skip(i, skipMissingTitle, link)
			continue
		}
		if link == "" {
			s.skip(i, skipMissingLink, title)
			continue
		}

		setid, version := ParseLabelLink(link)
		if setid == "" {
			s.logger.Warn("identifier missing",
				slog.String("title", title),
				slog.String("link", link),
			)
			s.metrics.RecordIdentifierMissing()
		}

		updatedDate := UpdatedDate(PlainText(entry.Description))

		item := model.FeedItem{
			Title:       title,
			Link:        link,
			Identifier:  setid,
			Version:     version,
			UpdatedDate: updatedDate,
		}
		if t, ok := ParseLabelDate(updatedDate); ok {
			item.UpdatedAt = t
		}

		switch {
		case entry.PublishedParsed != nil:
			item.PublishedAt = *entry.PublishedParsed
		case entry.UpdatedParsed != nil:
			item.PublishedAt = *entry.UpdatedParsed
		default:
			item.PublishedAt = item.UpdatedAt
		}

		items = append(items, item)
	}

	return items
}

func (s *Source) skip(index int, reason, hint string) {
	s.logger.Warn("feed entry skipped",
		slog.Int("index", index),
		slog.String("reason", reason),
		slog.String("hint", hint),
	)
	s.metrics.RecordItemSkipped(reason)
}
