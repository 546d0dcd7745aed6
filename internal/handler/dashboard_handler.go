package handler

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/labelwatch/internal/impact"
	"github.com/hitoshi/labelwatch/internal/middleware"
	"github.com/hitoshi/labelwatch/internal/model"
	"github.com/hitoshi/labelwatch/internal/report"
	"github.com/hitoshi/labelwatch/internal/watchlist"
)

//go:embed templates/dashboard.html
var templateFS embed.FS

var dashboardTemplate = template.Must(template.ParseFS(templateFS, "templates/dashboard.html"))

const (
	markdownFilename = "labelwatch_impact_report.md"
	docxFilename     = "labelwatch_impact_report.docx"
	docxContentType  = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

	// maxWindowDays はフォームから指定できる期間の上限。
	maxWindowDays = 365
)

// ReportGenerator はダッシュボードが必要とするレポート生成インターフェース。
// impact.Serviceが実装する。
type ReportGenerator interface {
	Generate(ctx context.Context, opts impact.Options) (*model.Report, error)
}

// DashboardConfig はダッシュボードに表示するウォッチリスト設定。
type DashboardConfig struct {
	FeedURL            string
	Watchlist          []string
	WindowDays         int
	SectionsOfInterest []string
	// Demo はフォームのデモデータ指定の初期値。
	Demo bool
	// Now は基準時刻を返す。nilの場合はtime.Nowを使用する。
	Now func() time.Time
}

// DashboardHandler はダッシュボード画面とレポートのダウンロードを提供する。
// 保持する状態は直近に生成したレポートのみ。
type DashboardHandler struct {
	generator ReportGenerator
	sanitizer report.Sanitizer
	config    DashboardConfig
	logger    *slog.Logger

	mu      sync.RWMutex
	current *model.Report
}

// NewDashboardHandler はDashboardHandlerを生成する。
func NewDashboardHandler(generator ReportGenerator, sanitizer report.Sanitizer, config DashboardConfig, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{
		generator: generator,
		sanitizer: sanitizer,
		config:    config,
		logger:    logger,
	}
}

// formValues はフォームの入力値。エラー時に再表示する。
type formValues struct {
	WindowDays   string
	Keyword      string
	Manufacturer string
	From         string
	To           string
	Demo         bool
}

type reportView struct {
	ID          string
	GeneratedAt string
	TotalItems  int
	MatchCount  int
	Demo        bool
	HTML        template.HTML
}

type pageData struct {
	FeedURL            string
	Watchlist          []string
	SectionsOfInterest []string
	MaxWindowDays      int
	CSRFField          string
	CSRFToken          string
	Form               formValues
	Error              *model.APIError
	Report             *reportView
}

// Index はダッシュボード画面を表示する。
// GET /
func (h *DashboardHandler) Index(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, h.defaultForm(), nil)
}

// Generate はレポート生成パイプラインを同期的に実行する。
// 成功時は画面へリダイレクトし、失敗時はエラーを画面に表示する。
// POST /generate
func (h *DashboardHandler) Generate(w http.ResponseWriter, r *http.Request) {
	form := formValues{
		WindowDays:   strings.TrimSpace(r.PostFormValue("window_days")),
		Keyword:      strings.TrimSpace(r.PostFormValue("keyword")),
		Manufacturer: strings.TrimSpace(r.PostFormValue("manufacturer")),
		From:         strings.TrimSpace(r.PostFormValue("from")),
		To:           strings.TrimSpace(r.PostFormValue("to")),
		Demo:         r.PostFormValue("demo") != "",
	}

	opts, apiErr := h.parseOptions(form)
	if apiErr != nil {
		h.render(w, r, http.StatusBadRequest, form, apiErr)
		return
	}

	rep, err := h.generator.Generate(r.Context(), opts)
	if err != nil {
		apiErr := model.ToAPIError(err)
		status := statusForError(err)
		h.logger.Warn("dashboard report generation failed",
			slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
			slog.String("error_class", model.ErrorClass(err)),
			slog.String("code", apiErr.Code),
			slog.Int("status", status),
		)
		h.render(w, r, status, form, apiErr)
		return
	}

	h.mu.Lock()
	h.current = rep
	h.mu.Unlock()

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// DownloadMarkdown は直近のレポートをMarkdownでダウンロードさせる。
// GET /report.md
func (h *DashboardHandler) DownloadMarkdown(w http.ResponseWriter, r *http.Request) {
	rep := h.Current()
	if rep == nil {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewReportNotFoundError())
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+markdownFilename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(rep.Markdown))
}

// DownloadDocx は直近のレポートをWord形式でダウンロードさせる。
// GET /report.docx
func (h *DashboardHandler) DownloadDocx(w http.ResponseWriter, r *http.Request) {
	rep := h.Current()
	if rep == nil {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewReportNotFoundError())
		return
	}

	data, err := report.DocxBytes(rep.Matches, report.Meta{GeneratedAt: rep.GeneratedAt, WindowDays: rep.WindowDays, Demo: rep.Demo})
	if err != nil {
		h.logger.Error("docx rendering failed",
			slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
			slog.String("run_id", rep.ID),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}

	w.Header().Set("Content-Type", docxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+docxFilename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// Health は死活監視用のエンドポイント。
// GET /health
func (h *DashboardHandler) Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// Current は直近に生成したレポートを返す。未生成の場合はnil。
func (h *DashboardHandler) Current() *model.Report {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

func (h *DashboardHandler) defaultForm() formValues {
	return formValues{WindowDays: strconv.Itoa(h.config.WindowDays), Demo: h.config.Demo}
}

// parseOptions はフォームの入力値を検証し、生成オプションに変換する。
func (h *DashboardHandler) parseOptions(form formValues) (impact.Options, *model.APIError) {
	opts := impact.Options{
		Watchlist:  h.config.Watchlist,
		WindowDays: h.config.WindowDays,
		Now:        h.config.Now,
		Demo:       form.Demo,
	}

	if form.WindowDays != "" {
		days, err := strconv.Atoi(form.WindowDays)
		if err != nil || days < 1 || days > maxWindowDays {
			return opts, model.NewInvalidFilterError("期間は1から" + strconv.Itoa(maxWindowDays) + "の整数で指定してください")
		}
		opts.WindowDays = days
	}

	from, err := parseDate(form.From)
	if err != nil {
		return opts, model.NewInvalidFilterError("from: " + form.From)
	}
	to, err := parseDate(form.To)
	if err != nil {
		return opts, model.NewInvalidFilterError("to: " + form.To)
	}

	opts.Refinement = watchlist.Refinement{
		Keyword:      form.Keyword,
		Manufacturer: form.Manufacturer,
		From:         from,
		To:           to,
	}
	if err := opts.Refinement.Validate(); err != nil {
		return opts, model.NewInvalidFilterError(err.Error())
	}
	return opts, nil
}

// parseDate はYYYY-MM-DD形式の日付を解析する。空文字列はゼロ値。
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation(time.DateOnly, s, time.UTC)
}

// statusForError はパイプラインのエラーをHTTPステータスに変換する。
// 上流フィードの失敗は502、それ以外は500。
func statusForError(err error) int {
	var fetchErr *model.FetchError
	var parseErr *model.ParseError
	switch {
	case errors.As(err, &fetchErr), errors.As(err, &parseErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *DashboardHandler) render(w http.ResponseWriter, r *http.Request, status int, form formValues, apiErr *model.APIError) {
	data := pageData{
		FeedURL:            h.config.FeedURL,
		Watchlist:          h.config.Watchlist,
		SectionsOfInterest: h.config.SectionsOfInterest,
		MaxWindowDays:      maxWindowDays,
		CSRFField:          middleware.CSRFFieldName,
		CSRFToken:          middleware.CSRFTokenFromContext(r.Context()),
		Form:               form,
		Error:              apiErr,
	}

	if rep := h.Current(); rep != nil {
		rendered, err := report.RenderHTML(rep.Markdown, h.sanitizer)
		if err != nil {
			h.logger.Error("report rendering failed",
				slog.String("run_id", rep.ID),
				slog.String("error", err.Error()),
			)
			middleware.WriteInternalServerError(w)
			return
		}
		data.Report = &reportView{
			ID:          rep.ID,
			GeneratedAt: rep.GeneratedAt.Format(time.RFC3339),
			TotalItems:  rep.TotalItems,
			MatchCount:  len(rep.Matches),
			Demo:        rep.Demo,
			HTML:        rendered,
		}
	}

	var buf bytes.Buffer
	if err := dashboardTemplate.Execute(&buf, data); err != nil {
		h.logger.Error("template execution failed", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
