package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFeedURL はDailyMedのラベル更新RSS。
const DefaultFeedURL = "https://dailymed.nlm.nih.gov/dailymed/rss.cfm"

// DefaultOutputPath はCLIがレポートを書き出す既定のパス。
const DefaultOutputPath = "output/impact_report.md"

// DefaultWatchlist は既定で監視する医薬品名。
var DefaultWatchlist = []string{
	"sildenafil",
	"tramadol",
	"bupropion",
	"escitalopram",
	"anastrozole",
	"buprenorphine",
	"tamsulosin",
	"nortriptyline",
	"magnesium sulfate",
	"bumetanide",
}

// DefaultSectionsOfInterest はレポート利用者が注目するラベルのセクション。
// 照合には使用しない。
var DefaultSectionsOfInterest = []string{
	"Warnings and Precautions",
	"Dosage and Administration",
	"Dosage",
	"Warnings",
}

// Config はアプリケーション全体の設定を保持する。
// 起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Watchlist
	FeedURL            string
	Watchlist          []string
	WindowDays         int
	SectionsOfInterest []string
	WatchlistFile      string

	// Output
	OutputPath string

	// Fetch
	FetchTimeout time.Duration
	FetchMaxSize int64

	// Server
	ServerPort        string
	RateLimitGenerate int
	CookieSecure      bool

	// Logging
	LogLevel string
}

// watchlistFile はYAMLのウォッチリストファイルの構造。
// 未指定の項目は既定値を上書きしない。
type watchlistFile struct {
	FeedURL            string   `yaml:"feed_url"`
	WindowDays         int      `yaml:"window_days"`
	Watchlist          []string `yaml:"watchlist"`
	SectionsOfInterest []string `yaml:"sections_of_interest"`
}

// Load は環境変数からConfigを読み込む。
// LABELWATCH_WATCHLIST_FILEが設定されている場合はそのファイルも読み込む。
func Load() (*Config, error) {
	return LoadFrom(os.Getenv("LABELWATCH_WATCHLIST_FILE"))
}

// LoadFrom は既定値、ウォッチリストファイル、環境変数の順に設定を重ねて読み込む。
// watchlistPathが空の場合はファイルを読まない。
func LoadFrom(watchlistPath string) (*Config, error) {
	cfg := &Config{
		FeedURL:            DefaultFeedURL,
		Watchlist:          append([]string(nil), DefaultWatchlist...),
		WindowDays:         7,
		SectionsOfInterest: append([]string(nil), DefaultSectionsOfInterest...),
		WatchlistFile:      watchlistPath,
	}

	if watchlistPath != "" {
		if err := cfg.applyFile(watchlistPath); err != nil {
			return nil, err
		}
	}

	cfg.FeedURL = getEnvString("LABELWATCH_FEED_URL", cfg.FeedURL)
	cfg.Watchlist = getEnvList("LABELWATCH_WATCHLIST", cfg.Watchlist)
	cfg.WindowDays = getEnvInt("LABELWATCH_WINDOW_DAYS", cfg.WindowDays)
	cfg.OutputPath = getEnvString("LABELWATCH_OUTPUT_PATH", DefaultOutputPath)
	cfg.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", 30*time.Second)
	cfg.FetchMaxSize = getEnvInt64("FETCH_MAX_SIZE", 10485760)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.RateLimitGenerate = getEnvInt("RATE_LIMIT_GENERATE", 6)
	cfg.CookieSecure = getEnvBool("COOKIE_SECURE", false)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate は設定値の整合性を確認する。
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.FeedURL) == "" {
		problems = append(problems, "feed URL must not be empty")
	}
	for i, entry := range c.Watchlist {
		if strings.TrimSpace(entry) == "" {
			problems = append(problems, fmt.Sprintf("watchlist entry %d is empty", i))
		}
	}
	if c.WindowDays < 1 {
		problems = append(problems, fmt.Sprintf("window days must be at least 1, got %d", c.WindowDays))
	}
	if c.RateLimitGenerate < 1 {
		problems = append(problems, fmt.Sprintf("generate rate limit must be at least 1, got %d", c.RateLimitGenerate))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) applyFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open watchlist file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var wf watchlistFile
	if err := yaml.NewDecoder(f).Decode(&wf); err != nil {
		// 空のファイルは既定値のまま扱う
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decode watchlist file %s: %w", path, err)
	}

	if wf.FeedURL != "" {
		c.FeedURL = wf.FeedURL
	}
	if wf.WindowDays != 0 {
		c.WindowDays = wf.WindowDays
	}
	if wf.Watchlist != nil {
		c.Watchlist = wf.Watchlist
	}
	if wf.SectionsOfInterest != nil {
		c.SectionsOfInterest = wf.SectionsOfInterest
	}
	return nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// getEnvList はカンマ区切りの環境変数を読み込む。各要素の前後空白は取り除く。
func getEnvList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	parts := strings.Split(v, ",")
	list := make([]string, 0, len(parts))
	for _, p := range parts {
		list = append(list, strings.TrimSpace(p))
	}
	return list
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
