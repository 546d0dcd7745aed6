package feed

import (
	"maps"
	"net/url"
	"path"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/html"
)

// updatedDatePrefix はDailyMedのdescriptionに含まれる更新日の接頭辞。
// 例: "Updated Date: Fri, 13 Feb 2026 00:00:00 EST"
const updatedDatePrefix = "Updated Date:"

// ParseLabelLink はDailyMedのリンクからsetidとバージョンを抽出する。
//
//	https://dailymed.nlm.nih.gov/dailymed/lookup.cfm?setid=<setid>&version=<n>
//	https://dailymed.nlm.nih.gov/dailymed/services/v2/spls/<setid>.xml
//
// 抽出できない場合は空文字列を返し、エラーにはしない。
// setidがUUID形式の場合は小文字の正規形に揃える。
func ParseLabelLink(link string) (setid, version string) {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return "", ""
	}

	query := u.Query()
	setid = strings.TrimSpace(query.Get("setid"))
	if setid == "" {
		setid = querySetID(query)
	}

	if setid == "" {
		setid = setidFromPath(u.Path)
	}

	if setid != "" {
		if id, err := uuid.Parse(setid); err == nil {
			setid = id.String()
		}
	}

	if v := strings.TrimSpace(query.Get("version")); v != "" {
		if _, err := strconv.Atoi(v); err == nil {
			version = v
		}
	}

	return setid, version
}

// querySetID は大文字小文字を無視してsetidパラメータを探す。
// 複数ある場合はキーの辞書順で最初の空でない値を返す。
func querySetID(query url.Values) string {
	keys := slices.Sorted(maps.Keys(query))
	for _, key := range keys {
		if !strings.EqualFold(key, "setid") {
			continue
		}
		for _, v := range query[key] {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}

// setidFromPath は /setid/<id> または /spls/<id>[.xml|.json] 形式のパスからsetidを取り出す。
func setidFromPath(p string) string {
	segments := strings.Split(strings.Trim(p, "/"), "/")
	for i := 0; i+1 < len(segments); i++ {
		switch strings.ToLower(segments[i]) {
		case "setid", "spls":
			next := segments[i+1]
			return strings.TrimSuffix(next, path.Ext(next))
		}
	}
	return ""
}

// PlainText はdescriptionのHTML断片からテキストのみを取り出し、空白を正規化する。
func PlainText(fragment string) string {
	if fragment == "" {
		return ""
	}

	var parts []string
	z := html.NewTokenizer(strings.NewReader(fragment))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
		case html.TextToken:
			parts = append(parts, string(z.Text()))
		}
	}
}

// UpdatedDate はdescriptionのテキストから "Updated Date:" 以降の文字列を返す。
// 含まれない場合は空文字列を返す。
func UpdatedDate(text string) string {
	idx := strings.Index(text, updatedDatePrefix)
	if idx < 0 {
		return ""
	}
	return strings.TrimSpace(text[idx+len(updatedDatePrefix):])
}

// zoneOffsets はDailyMedの日付に現れるタイムゾーン略称とUTCからのオフセット（時間）。
var zoneOffsets = map[string]int{
	"UTC": 0,
	"GMT": 0,
	"EST": -5,
	"EDT": -4,
	"CST": -6,
	"CDT": -5,
	"PST": -8,
	"PDT": -7,
}

// labelDateLayouts はDailyMedの更新日に現れる日付形式。
var labelDateLayouts = []string{
	"Mon, 02 Jan 2006 15:04:05",
	"Mon, 2 Jan 2006 15:04:05",
	"2006-01-02",
	"Jan 2, 2006",
	"2 Jan 2006",
}

// ParseLabelDate はDailyMedの日付文字列をtime.Timeに変換する。
// 末尾のタイムゾーン略称（EST/EDT等）は固定オフセットとして解釈する。
// 解析できない場合はfalseを返す。
func ParseLabelDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	loc := time.UTC
	if i := strings.LastIndexByte(s, ' '); i > 0 {
		if offset, ok := zoneOffsets[strings.ToUpper(s[i+1:])]; ok {
			loc = time.FixedZone(strings.ToUpper(s[i+1:]), offset*60*60)
			s = strings.TrimSpace(s[:i])
		}
	}

	for _, layout := range labelDateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
