package report

import (
	"strings"
	"testing"
	"time"

	"github.com/yuin/goldmark"
	"golang.org/x/net/html"

	"github.com/hitoshi/labelwatch/internal/model"
)

var testMeta = Meta{
	GeneratedAt: time.Date(2026, 10, 17, 8, 30, 0, 0, time.UTC),
	WindowDays:  7,
}

func sampleMatches() []model.MatchResult {
	return []model.MatchResult{
		{
			Item: model.FeedItem{
				Title:       "VIAGRA (sildenafil citrate) tablet, film coated [Viatris Specialty LLC]",
				Link:        "https://dailymed.nlm.nih.gov/dailymed/lookup.cfm?setid=0b0be196-0c62-461c-94f4-9a35339b4501&version=12",
				PublishedAt: time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC),
				Identifier:  "0b0be196-0c62-461c-94f4-9a35339b4501",
				Version:     "12",
			},
			Matched: []string{"sildenafil"},
		},
		{
			Item: model.FeedItem{
				Title:       "TRAMADOL HYDROCHLORIDE tablet",
				Link:        "https://dailymed.nlm.nih.gov/dailymed/search.cfm?query=tramadol",
				PublishedAt: time.Date(2026, 10, 14, 5, 0, 0, 0, time.UTC),
			},
			Matched: []string{"tramadol"},
		},
	}
}

func TestBuild_Golden(t *testing.T) {
	want := `# LabelWatch Impact Report

Generated: 2026-10-17T08:30:00Z

Source: FDA DailyMed label updates, last 7 days.

## Watchlist Matches (2)

### VIAGRA (sildenafil citrate) tablet, film coated \[Viatris Specialty LLC\]

- Set ID: ` + "`0b0be196-0c62-461c-94f4-9a35339b4501`" + `
- Version: 12
- Published: 2026-10-15
- Link: <https://dailymed.nlm.nih.gov/dailymed/lookup.cfm?setid=0b0be196-0c62-461c-94f4-9a35339b4501&version=12>
- Matched: sildenafil

### TRAMADOL HYDROCHLORIDE tablet

- Set ID: missing
- Version: unknown
- Published: 2026-10-14
- Link: <https://dailymed.nlm.nih.gov/dailymed/search.cfm?query=tramadol>
- Matched: tramadol
`

	got := Build(sampleMatches(), testMeta)
	if got != want {
		t.Errorf("Build() mismatch\n--- got ---\n%s\n--- want ---\n%s", got, want)
	}
}

func TestBuild_NoMatches(t *testing.T) {
	got := Build(nil, testMeta)

	for _, want := range []string{
		"# LabelWatch Impact Report",
		"Generated: 2026-10-17T08:30:00Z",
		"## Watchlist Matches (0)",
		"_No watchlist matches in the trailing window._",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("一致なしのレポートに %q が含まれていない:\n%s", want, got)
		}
	}
	if strings.Contains(got, "### ") {
		t.Error("一致なしのレポートにエントリ見出しが含まれている")
	}
}

// 生成日時の行以外は同じ入力から同じ出力になる
func TestBuild_IdempotentExceptTimestamp(t *testing.T) {
	first := Build(sampleMatches(), testMeta)
	later := testMeta
	later.GeneratedAt = testMeta.GeneratedAt.Add(3 * time.Hour)
	second := Build(sampleMatches(), later)

	if first == second {
		t.Fatal("生成日時が異なれば出力も異なるべき")
	}

	a := strings.Split(first, "\n")
	b := strings.Split(second, "\n")
	if len(a) != len(b) {
		t.Fatalf("行数が異なる: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] && !strings.HasPrefix(a[i], "Generated: ") {
			t.Errorf("line %d differs: %q vs %q", i, a[i], b[i])
		}
	}

	if again := Build(sampleMatches(), testMeta); again != first {
		t.Error("同じ入力で出力が変わった")
	}
}

func TestEscape(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"plain title", "plain title"},
		{"a*b_c", `a\*b\_c`},
		{"[Teva]", `\[Teva\]`},
		{"<script>", `\<script\>`},
		{"#1 & `x`", "\\#1 \\& \\`x\\`"},
		{`back\slash`, `back\\slash`},
		{"multi\n  line", "multi   line"},
		{"tab\there\r\n", "tab here  "},
		{"double  space", "double  space"},
		{"NBSP\u00a0kept", "NBSP\u00a0kept"},
	}

	for _, tt := range tests {
		if got := escape(tt.input); got != tt.want {
			t.Errorf("escape(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

// parsedEntry はレンダリング結果から読み戻したエントリ。
type parsedEntry struct {
	title string
	setid string
	link  string
}

// parseRendered はgoldmarkでHTMLに変換し、見出し・コード・リンクを読み戻す。
func parseRendered(t *testing.T, markdown string) []parsedEntry {
	t.Helper()

	var buf strings.Builder
	if err := goldmark.Convert([]byte(markdown), &buf); err != nil {
		t.Fatalf("goldmark.Convert() がエラーを返した: %v", err)
	}

	var entries []parsedEntry
	var current *parsedEntry
	var inH3, inCode bool

	z := html.NewTokenizer(strings.NewReader(buf.String()))
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return entries
		case html.StartTagToken:
			tok := z.Token()
			switch tok.Data {
			case "h3":
				entries = append(entries, parsedEntry{})
				current = &entries[len(entries)-1]
				inH3 = true
			case "code":
				inCode = true
			case "a":
				if current != nil {
					for _, attr := range tok.Attr {
						if attr.Key == "href" {
							current.link = attr.Val
						}
					}
				}
			}
		case html.EndTagToken:
			switch z.Token().Data {
			case "h3":
				inH3 = false
			case "code":
				inCode = false
			}
		case html.TextToken:
			if current == nil {
				continue
			}
			text := string(z.Text())
			if inH3 {
				current.title += text
			}
			if inCode {
				current.setid += text
			}
		}
	}
}

func TestBuild_RoundTrip(t *testing.T) {
	matches := []model.MatchResult{
		{
			Item: model.FeedItem{
				Title:       `BUPROPION* [Teva] <XL> _150_ #2 & \ backslash`,
				Link:        "https://dailymed.nlm.nih.gov/dailymed/lookup.cfm?setid=5c1d2a3e-9b7f-4e21-8a64-1f2e3d4c5b6a&version=3",
				PublishedAt: time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC),
				Identifier:  "5c1d2a3e-9b7f-4e21-8a64-1f2e3d4c5b6a",
				Version:     "3",
			},
			Matched: []string{"bupropion"},
		},
	}
	for _, title := range []string{
		"VIAGRA  (sildenafil) tablet",
		"TRAMADOL\u00a0HCl [Amneal]",
	} {
		matches = append(matches, model.MatchResult{
			Item: model.FeedItem{
				Title:       title,
				Link:        "https://dailymed.nlm.nih.gov/dailymed/search.cfm?query=whitespace",
				PublishedAt: time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC),
			},
			Matched: []string{"whitespace"},
		})
	}
	matches = append(matches, sampleMatches()...)

	entries := parseRendered(t, Build(matches, testMeta))

	if len(entries) != len(matches) {
		t.Fatalf("len(entries) = %d, want %d", len(entries), len(matches))
	}
	for i, m := range matches {
		if entries[i].title != m.Item.Title {
			t.Errorf("[%d] title = %q, want %q", i, entries[i].title, m.Item.Title)
		}
		if entries[i].setid != m.Item.Identifier {
			t.Errorf("[%d] setid = %q, want %q", i, entries[i].setid, m.Item.Identifier)
		}
		if entries[i].link != m.Item.Link {
			t.Errorf("[%d] link = %q, want %q", i, entries[i].link, m.Item.Link)
		}
	}
}
