// Package app はCLIのサブコマンドとサーバーの組み立てを行う。
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/labelwatch/internal/config"
	"github.com/hitoshi/labelwatch/internal/feed"
	"github.com/hitoshi/labelwatch/internal/handler"
	"github.com/hitoshi/labelwatch/internal/impact"
	"github.com/hitoshi/labelwatch/internal/logger"
	"github.com/hitoshi/labelwatch/internal/metrics"
	"github.com/hitoshi/labelwatch/internal/middleware"
	"github.com/hitoshi/labelwatch/internal/model"
	"github.com/hitoshi/labelwatch/internal/security"
)

// 終了コード
const (
	ExitOK    = 0
	ExitError = 1
	ExitUsage = 2
)

// runtime はサブコマンドに渡す実行環境。
// テストでは出力先とフィード取得のガードを差し替える。
type runtime struct {
	ctx    context.Context
	stdout io.Writer
	stderr io.Writer
	// newGuard はフィード取得に使うURLガードを生成する。
	newGuard func(timeout time.Duration) feed.URLGuard
}

func defaultGuard(timeout time.Duration) feed.URLGuard {
	return security.NewFetchGuard(timeout)
}

// exitCode はkongのExitフックからRunへ終了コードを戻すための値。
type exitCode int

// Run はアプリケーションのメインエントリーポイント。
// argsにはos.Args[1:]を渡す。戻り値はプロセスの終了コード。
func Run(args []string, stdout, stderr io.Writer) int {
	return run(&runtime{
		ctx:      context.Background(),
		stdout:   stdout,
		stderr:   stderr,
		newGuard: defaultGuard,
	}, args)
}

func run(rt *runtime, args []string) (code int) {
	// --help などでkongが終了を要求した場合はpanicで抜けて終了コードに変換する
	defer func() {
		if r := recover(); r != nil {
			c, ok := r.(exitCode)
			if !ok {
				panic(r)
			}
			code = int(c)
		}
	}()

	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("labelwatch"),
		kong.Description("Cross-references FDA DailyMed label updates against a drug watchlist."),
		kong.Writers(rt.stdout, rt.stderr),
		kong.Exit(func(c int) { panic(exitCode(c)) }),
	)
	if err != nil {
		fmt.Fprintf(rt.stderr, "Error: %v\n", err)
		return ExitUsage
	}

	kctx, err := parser.Parse(args)
	if err != nil {
		fmt.Fprintf(rt.stderr, "Error: %v\n", err)
		return ExitUsage
	}

	if err := kctx.Run(rt); err != nil {
		fmt.Fprintf(rt.stderr, "%s: %v\n", model.ErrorClass(err), err)
		return ExitError
	}
	return ExitOK
}

// loadConfig は--configの指定があればそのファイルを、なければLABELWATCH_WATCHLIST_FILEを読む。
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFrom(path)
	}
	return config.Load()
}

// pipeline はレポート生成に必要な依存関係を組み立てる。
// デモ用の取得元は埋め込みのサンプルRSSを返し、通信しない。
func pipeline(rt *runtime, cfg *config.Config, collector metrics.MetricsCollector, log *slog.Logger) *impact.Service {
	source := feed.NewSource(cfg.FeedURL, rt.newGuard(cfg.FetchTimeout), collector, log, cfg.FetchMaxSize)
	demo := feed.NewSource(feed.DemoFeedURL, feed.NewDemoGuard(nil), collector, log, cfg.FetchMaxSize)
	return impact.NewService(source, collector, log).WithDemoSource(demo)
}

// Run はフィードを1回取得し、レポートをファイルに書き出す。
func (c *ReportCmd) Run(rt *runtime) error {
	cfg, err := loadConfig(c.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if c.Output != "" {
		cfg.OutputPath = c.Output
	}
	if c.WindowDays != 0 {
		cfg.WindowDays = c.WindowDays
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := logger.SetupDefault(rt.stderr, logger.ParseLevel(cfg.LogLevel))
	log.Info("starting report",
		slog.String("feed_url", cfg.FeedURL),
		slog.Int("watchlist_size", len(cfg.Watchlist)),
		slog.Int("window_days", cfg.WindowDays),
		slog.String("output", cfg.OutputPath),
		slog.Bool("demo", c.Demo),
	)

	collector := metrics.NewCollector(prometheus.NewRegistry())
	svc := pipeline(rt, cfg, collector, log)

	r, err := svc.Generate(rt.ctx, impact.Options{
		Watchlist:  cfg.Watchlist,
		WindowDays: cfg.WindowDays,
		Demo:       c.Demo,
	})
	if err != nil {
		return err
	}

	if err := svc.Save(r, impact.SaveOptions{MarkdownPath: cfg.OutputPath, DocxPath: c.Docx}); err != nil {
		return err
	}

	fmt.Fprintf(rt.stdout, "Wrote %s (%d watchlist matches out of %d feed items)\n", cfg.OutputPath, len(r.Matches), r.TotalItems)
	if c.Docx != "" {
		fmt.Fprintf(rt.stdout, "Wrote %s\n", c.Docx)
	}
	return nil
}

// Run はダッシュボードサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func (c *ServeCmd) Run(rt *runtime) error {
	cfg, err := loadConfig(c.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if c.Port != "" {
		cfg.ServerPort = c.Port
	}

	log := logger.SetupDefault(rt.stderr, logger.ParseLevel(cfg.LogLevel))

	server, cleanup := newServer(rt, cfg, log, c.Demo)
	defer cleanup()

	ctx, stop := signal.NotifyContext(rt.ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("dashboard server starting",
			slog.String("addr", server.Addr),
			slog.String("feed_url", cfg.FeedURL),
			slog.Int("watchlist_size", len(cfg.Watchlist)),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down dashboard server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("dashboard server stopped gracefully")
	return nil
}

// newServer は全依存関係をワイヤリングしたHTTPサーバーを返す。
// 戻り値の関数でレートリミッターのバックグラウンド処理を停止する。
func newServer(rt *runtime, cfg *config.Config, log *slog.Logger, demo bool) (*http.Server, func()) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	svc := pipeline(rt, cfg, collector, log)

	dashboard := handler.NewDashboardHandler(svc, security.NewReportSanitizer(), handler.DashboardConfig{
		FeedURL:            cfg.FeedURL,
		Watchlist:          cfg.Watchlist,
		WindowDays:         cfg.WindowDays,
		SectionsOfInterest: cfg.SectionsOfInterest,
		Demo:               demo,
	}, log)

	limiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig(cfg.RateLimitGenerate), log)

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:         log,
		RateLimiter:    limiter,
		CSRFConfig:     middleware.CSRFConfig{CookieSecure: cfg.CookieSecure},
		Dashboard:      dashboard,
		MetricsHandler: metrics.Handler(reg),
	})

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// 生成はフィード取得を同期的に待つため、取得タイムアウトに余裕を持たせる
		WriteTimeout: cfg.FetchTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return server, limiter.Stop
}

// Run は/healthエンドポイントにHTTPリクエストを送り、結果を返す。
func (c *HealthcheckCmd) Run(_ *runtime) error {
	return checkHealth(fmt.Sprintf("http://localhost:%s/health", c.Port))
}

func checkHealth(url string) error {
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	return nil
}
