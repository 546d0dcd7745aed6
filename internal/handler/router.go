package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/labelwatch/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger      *slog.Logger
	RateLimiter *middleware.RateLimiter
	CSRFConfig  middleware.CSRFConfig

	// ダッシュボード
	Dashboard *DashboardHandler

	// Prometheusスクレイプ用ハンドラー
	MetricsHandler http.Handler
}

// NewRouter はダッシュボードのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Logging → Recovery → SecurityHeaders → CSRF(画面ルートのみ) → RateLimit(/generateのみ)
//
// /health と /metrics はCSRFの対象外とする。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())

	// --- 監視用のルート ---
	r.Get("/health", deps.Dashboard.Health)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// --- 画面のルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

		r.Get("/", deps.Dashboard.Index)
		// POST /generate - レポート生成（専用レート制限を追加）
		r.With(deps.RateLimiter.Middleware()).Post("/generate", deps.Dashboard.Generate)

		r.Get("/report.md", deps.Dashboard.DownloadMarkdown)
		r.Get("/report.docx", deps.Dashboard.DownloadDocx)
	})

	return r
}
