// Package impact はフィード取得・ウォッチリスト照合・レポート生成を1回の実行として束ねる。
package impact

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/labelwatch/internal/metrics"
	"github.com/hitoshi/labelwatch/internal/model"
	"github.com/hitoshi/labelwatch/internal/report"
	"github.com/hitoshi/labelwatch/internal/watchlist"
)

// FeedSource はラベル更新フィードの取得元。feed.Sourceが実装する。
type FeedSource interface {
	FetchItems(ctx context.Context) ([]model.FeedItem, error)
	URL() string
}

// Options は1回のレポート生成の入力。グローバルな状態は持たない。
type Options struct {
	Watchlist  []string
	WindowDays int
	// Refinement はダッシュボードからの追加条件。ゼロ値なら適用しない。
	Refinement watchlist.Refinement
	// Now は基準時刻を返す。nilの場合はtime.Nowを使用する。
	Now func() time.Time
	// Demo がtrueの場合はデモ用の取得元を使う。
	Demo bool
}

// Service はレポート生成パイプラインを実行する。
type Service struct {
	source  FeedSource
	demo    FeedSource
	metrics metrics.MetricsCollector
	logger  *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(source FeedSource, collector metrics.MetricsCollector, logger *slog.Logger) *Service {
	return &Service{
		source:  source,
		metrics: collector,
		logger:  logger,
	}
}

// WithDemoSource はOptions.Demo指定時に使う取得元を設定する。
func (s *Service) WithDemoSource(source FeedSource) *Service {
	s.demo = source
	return s
}

// Generate はフィードを取得し、照合結果からレポートを生成する。
// 取得・解析の失敗は*model.FetchError / *model.ParseErrorとしてそのまま返す。
func (s *Service) Generate(ctx context.Context, opts Options) (*model.Report, error) {
	runID := uuid.NewString()
	start := time.Now()

	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	terms, err := watchlist.Normalize(opts.Watchlist)
	if err != nil {
		return nil, fmt.Errorf("normalize watchlist: %w", err)
	}
	if opts.WindowDays < 1 {
		return nil, fmt.Errorf("window days must be at least 1, got %d", opts.WindowDays)
	}
	if err := opts.Refinement.Validate(); err != nil {
		return nil, fmt.Errorf("refinement: %w", err)
	}

	source := s.source
	if opts.Demo {
		if s.demo == nil {
			return nil, errors.New("demo source is not configured")
		}
		source = s.demo
	}

	items, err := source.FetchItems(ctx)
	if err != nil {
		s.logger.Error("report generation failed",
			slog.String("run_id", runID),
			slog.String("feed_url", source.URL()),
			slog.String("error_class", model.ErrorClass(err)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	generatedAt := now().UTC()
	matches := watchlist.Filter(items, terms, opts.WindowDays, generatedAt)
	filtered := len(matches)
	matches = watchlist.Refine(matches, opts.Refinement)

	markdown := report.Build(matches, report.Meta{
		GeneratedAt: generatedAt,
		WindowDays:  opts.WindowDays,
		Demo:        opts.Demo,
	})

	s.metrics.RecordMatches(len(matches))

	s.logger.Info("report generated",
		slog.String("run_id", runID),
		slog.String("feed_url", source.URL()),
		slog.Bool("demo", opts.Demo),
		slog.Int("items_total", len(items)),
		slog.Int("watchlist_size", len(terms)),
		slog.Int("window_days", opts.WindowDays),
		slog.Int("matches", len(matches)),
		slog.Int("matches_before_refine", filtered),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return &model.Report{
		ID:          runID,
		GeneratedAt: generatedAt,
		WindowDays:  opts.WindowDays,
		Demo:        opts.Demo,
		TotalItems:  len(items),
		Matches:     matches,
		Markdown:    markdown,
	}, nil
}

// SaveOptions はレポートの保存先。空のパスは出力しない。
type SaveOptions struct {
	MarkdownPath string
	DocxPath     string
}

// Save は生成済みレポートをファイルに保存する。
// 失敗した場合は*model.WriteErrorを返し、書き込み失敗メトリクスを記録する。
func (s *Service) Save(r *model.Report, opts SaveOptions) error {
	if opts.MarkdownPath != "" {
		if err := report.Write(r.Markdown, opts.MarkdownPath); err != nil {
			return s.writeFailed(r, err)
		}
		s.logger.Info("report written",
			slog.String("run_id", r.ID),
			slog.String("path", opts.MarkdownPath),
			slog.Int("matches", len(r.Matches)),
		)
	}

	if opts.DocxPath != "" {
		meta := report.Meta{GeneratedAt: r.GeneratedAt, WindowDays: r.WindowDays, Demo: r.Demo}
		if err := report.BuildDocx(r.Matches, meta, opts.DocxPath); err != nil {
			return s.writeFailed(r, err)
		}
		s.logger.Info("report written",
			slog.String("run_id", r.ID),
			slog.String("path", opts.DocxPath),
			slog.String("format", "docx"),
		)
	}

	return nil
}

func (s *Service) writeFailed(r *model.Report, err error) error {
	s.metrics.RecordReportWriteFailure()
	s.logger.Error("report write failed",
		slog.String("run_id", r.ID),
		slog.String("error", err.Error()),
	)
	return err
}
