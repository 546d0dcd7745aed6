package app

// CLI はlabelwatchのコマンド体系。
// サブコマンドを省略した場合はreportとして実行する。
type CLI struct {
	Report      ReportCmd      `cmd:"" default:"withargs" help:"Fetch the DailyMed feed once and write the impact report."`
	Serve       ServeCmd       `cmd:"" help:"Start the dashboard server."`
	Healthcheck HealthcheckCmd `cmd:"" help:"Probe the /health endpoint of a running server."`
}

// ReportCmd はレポートを1回生成してファイルに書き出す。
type ReportCmd struct {
	Output     string `short:"o" placeholder:"PATH" help:"Markdown output path (default: output/impact_report.md)."`
	WindowDays int    `name:"window-days" placeholder:"N" help:"Trailing window in days (default: 7)."`
	Docx       string `placeholder:"PATH" help:"Also write a Word rendition of the report to PATH."`
	Config     string `short:"c" placeholder:"FILE" help:"YAML watchlist file."`
	Demo       bool   `help:"Use the bundled sample feed instead of DailyMed (no network)."`
}

// ServeCmd はダッシュボードサーバーを起動する。
type ServeCmd struct {
	Port   string `short:"p" help:"Listen port (default: SERVER_PORT or 8080)."`
	Config string `short:"c" placeholder:"FILE" help:"YAML watchlist file."`
	Demo   bool   `help:"Check the demo data option on the dashboard by default."`
}

// HealthcheckCmd は稼働中のサーバーの/healthを確認する。
// distroless環境でのDockerヘルスチェック用。
type HealthcheckCmd struct {
	Port string `short:"p" env:"SERVER_PORT" default:"8080" help:"Port of the running server."`
}
