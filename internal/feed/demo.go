package feed

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"net/http"
	"text/template"
	"time"
)

// DemoFeedURL はデモモードで使うフィードURL。実際には通信しない。
const DemoFeedURL = "https://demo.labelwatch.invalid/dailymed/rss.xml"

//go:embed demo_feed.xml
var demoFeedXML string

var demoFeedTemplate = template.Must(template.New("demo_feed").Parse(demoFeedXML))

// DemoGuard は埋め込みのサンプルRSSを返すURLGuard。
// 記事の日付は取得時点からの相対日数で生成するため、常に期間内の記事を含む。
type DemoGuard struct {
	now func() time.Time
}

// NewDemoGuard はDemoGuardを生成する。nowがnilの場合はtime.Nowを使用する。
func NewDemoGuard(now func() time.Time) *DemoGuard {
	if now == nil {
		now = time.Now
	}
	return &DemoGuard{now: now}
}

// ValidateURL はDemoFeedURL以外を拒否する。
func (g *DemoGuard) ValidateURL(rawURL string) error {
	if rawURL != DemoFeedURL {
		return fmt.Errorf("demo mode serves only %s", DemoFeedURL)
	}
	return nil
}

// Client はサンプルRSSを返すHTTPクライアントを返す。
func (g *DemoGuard) Client() *http.Client {
	return &http.Client{Transport: demoTransport{now: g.now}}
}

type demoTransport struct {
	now func() time.Time
}

func (t demoTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var buf bytes.Buffer
	if err := demoFeedTemplate.Execute(&buf, demoDates{now: t.now().UTC()}); err != nil {
		return nil, fmt.Errorf("render demo feed: %w", err)
	}

	return &http.Response{
		Status:     "200 OK",
		StatusCode: http.StatusOK,
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
		Header:     http.Header{"Content-Type": {"application/rss+xml; charset=utf-8"}},
		Body:          io.NopCloser(&buf),
		ContentLength: int64(buf.Len()),
		Request:       req,
	}, nil
}

// demoDates はテンプレートに日付を埋め込む。
type demoDates struct {
	now time.Time
}

// DaysAgo はdays日前の日時をRSSの日付形式で返す。
func (d demoDates) DaysAgo(days int) string {
	return d.now.AddDate(0, 0, -days).Format("Mon, 02 Jan 2006 15:04:05 GMT")
}
