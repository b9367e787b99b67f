package sheets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"yt-monthly-report/internal/analytics"
	"yt-monthly-report/internal/models"
	"yt-monthly-report/shared/retry"
)

// fakeSpreadsheet implements the handful of Sheets endpoints the Writer uses, keeping tab
// contents in memory.
type fakeSpreadsheet struct {
	mu        sync.Mutex
	tabs      map[string]int64
	values    map[string][][]interface{}
	nextID    int64
	requests  []*sheets.Request
	throttled int
}

func newFakeSpreadsheet() *fakeSpreadsheet {
	return &fakeSpreadsheet{
		tabs:   map[string]int64{"Sheet1": 0},
		values: map[string][][]interface{}{},
		nextID: 100,
	}
}

func unquoteRange(r string) string {
	if i := strings.LastIndex(r, "!"); i > 0 {
		r = r[:i]
	}
	r = strings.TrimSuffix(strings.TrimPrefix(r, "'"), "'")
	return strings.ReplaceAll(r, "''", "'")
}

func (f *fakeSpreadsheet) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")

	if f.throttled > 0 {
		f.throttled--
		w.WriteHeader(http.StatusTooManyRequests)
		writeJSON(w, map[string]interface{}{"error": map[string]interface{}{
			"code": 429, "message": "Rate limit",
			"errors": []interface{}{map[string]interface{}{"reason": "rateLimitExceeded", "message": "Rate limit"}},
		}})
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/v4/spreadsheets/sheet-1")

	switch {
	case path == "" && r.Method == http.MethodGet:
		var list []interface{}
		for title, id := range f.tabs {
			list = append(list, map[string]interface{}{"properties": map[string]interface{}{"title": title, "sheetId": id}})
		}
		writeJSON(w, map[string]interface{}{"sheets": list})

	case path == ":batchUpdate":
		var req sheets.BatchUpdateSpreadsheetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var replies []interface{}
		for _, rq := range req.Requests {
			f.requests = append(f.requests, rq)
			if rq.AddSheet != nil {
				id := f.nextID
				f.nextID++
				f.tabs[rq.AddSheet.Properties.Title] = id
				replies = append(replies, map[string]interface{}{"addSheet": map[string]interface{}{
					"properties": map[string]interface{}{"title": rq.AddSheet.Properties.Title, "sheetId": id},
				}})
				continue
			}
			replies = append(replies, map[string]interface{}{})
		}
		writeJSON(w, map[string]interface{}{"spreadsheetId": "sheet-1", "replies": replies})

	case path == "/values:batchGet":
		var ranges []interface{}
		for _, rng := range r.URL.Query()["ranges"] {
			ranges = append(ranges, map[string]interface{}{"range": rng, "values": f.values[unquoteRange(rng)]})
		}
		writeJSON(w, map[string]interface{}{"spreadsheetId": "sheet-1", "valueRanges": ranges})

	case strings.HasPrefix(path, "/values/") && strings.HasSuffix(path, ":clear"):
		title := unquoteRange(strings.TrimSuffix(strings.TrimPrefix(path, "/values/"), ":clear"))
		delete(f.values, title)
		writeJSON(w, map[string]interface{}{"spreadsheetId": "sheet-1"})

	case strings.HasPrefix(path, "/values/") && r.Method == http.MethodPut:
		if r.URL.Query().Get("valueInputOption") != "RAW" {
			http.Error(w, "expected RAW input", http.StatusBadRequest)
			return
		}
		var vr sheets.ValueRange
		if err := json.NewDecoder(r.Body).Decode(&vr); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.values[unquoteRange(strings.TrimPrefix(path, "/values/"))] = vr.Values
		writeJSON(w, map[string]interface{}{"spreadsheetId": "sheet-1"})

	default:
		http.NotFound(w, r)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	_ = json.NewEncoder(w).Encode(v)
}

func newTestWriter(t *testing.T, fake *fakeSpreadsheet) *Writer {
	t.Helper()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	w, err := NewWriter(context.Background(), server.Client(), "sheet-1", "Monthly Trends",
		option.WithEndpoint(server.URL+"/"))
	require.NoError(t, err)
	w.retry = retry.Config{MaxRetries: 0}
	w.now = func() time.Time { return time.Date(2025, 10, 3, 6, 0, 0, 0, time.UTC) }
	return w
}

func TestWriterURL(t *testing.T) {
	w := newTestWriter(t, newFakeSpreadsheet())
	assert.Equal(t, "https://docs.google.com/spreadsheets/d/sheet-1", w.URL())
}

func TestWriteMonthlyReportAndReadBack(t *testing.T) {
	fake := newFakeSpreadsheet()
	w := newTestWriter(t, fake)
	ctx := context.Background()

	report := sampleReport(september2025, true)
	require.NoError(t, w.WriteMonthlyReport(ctx, report, ""))

	id, ok := fake.tabs["September 2025"]
	require.True(t, ok, "tab created")
	assert.Equal(t, int64(100), id)
	require.NotEmpty(t, fake.values["September 2025"])

	var formatted bool
	for _, rq := range fake.requests {
		if rq.RepeatCell != nil && rq.RepeatCell.Range.SheetId == id {
			formatted = true
		}
	}
	assert.True(t, formatted)

	reports, err := w.ReadPriorReports(ctx, []models.Month{august2025, september2025})
	require.NoError(t, err)
	require.Len(t, reports, 1, "August has no tab")
	assert.Equal(t, september2025, reports[0].Month)
	assert.Equal(t, report.BackCatalog, reports[0].BackCatalog)
	assert.Equal(t, report.ChannelTotal(), reports[0].ChannelTotal())
}

func TestWriteMonthlyReportReusesTab(t *testing.T) {
	fake := newFakeSpreadsheet()
	fake.tabs["September 2025"] = 0
	fake.values["September 2025"] = [][]interface{}{{"stale"}}
	w := newTestWriter(t, fake)

	require.NoError(t, w.WriteMonthlyReport(context.Background(), sampleReport(september2025, false), ""))

	assert.Len(t, fake.tabs, 2)
	assert.Equal(t, "YouTube Analytics Report", fake.values["September 2025"][0][0])
	for _, rq := range fake.requests {
		assert.Nil(t, rq.AddSheet)
	}
}

func TestReadPriorReportsSkipsUnreadableTabs(t *testing.T) {
	fake := newFakeSpreadsheet()
	fake.tabs["August 2025"] = 5
	fake.values["August 2025"] = [][]interface{}{{"hand-edited notes"}}
	w := newTestWriter(t, fake)
	ctx := context.Background()
	require.NoError(t, w.WriteMonthlyReport(ctx, sampleReport(september2025, true), ""))

	reports, err := w.ReadPriorReports(ctx, []models.Month{august2025, september2025})
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, september2025, reports[0].Month)
}

func TestReadPriorReportsNoTabs(t *testing.T) {
	w := newTestWriter(t, newFakeSpreadsheet())

	reports, err := w.ReadPriorReports(context.Background(), []models.Month{august2025})
	require.NoError(t, err)
	assert.Empty(t, reports)
}

func TestWriteTrends(t *testing.T) {
	fake := newFakeSpreadsheet()
	w := newTestWriter(t, fake)

	trend, err := analytics.BuildTrend(sampleReport(september2025, true), []*models.MonthlyReport{sampleReport(august2025, true)})
	require.NoError(t, err)
	require.NoError(t, w.WriteTrends(context.Background(), trend))

	id, ok := fake.tabs["Monthly Trends"]
	require.True(t, ok)

	var update *sheets.UpdateCellsRequest
	for _, rq := range fake.requests {
		if rq.UpdateCells != nil {
			update = rq.UpdateCells
		}
	}
	require.NotNil(t, update)
	assert.Equal(t, id, update.Start.SheetId)
	assert.Equal(t, "userEnteredValue", update.Fields)
	assert.Len(t, update.Rows, len(TrendRows(trend)))
	require.NotNil(t, update.Rows[0].Values[2].UserEnteredValue.StringValue)
	assert.Equal(t, "Aug 2025", *update.Rows[0].Values[2].UserEnteredValue.StringValue)
}

func TestWriterRetriesRateLimits(t *testing.T) {
	fake := newFakeSpreadsheet()
	fake.throttled = 2
	w := newTestWriter(t, fake)
	w.retry = retry.Config{MaxRetries: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, Multiplier: 1}

	require.NoError(t, w.WriteMonthlyReport(context.Background(), sampleReport(september2025, true), ""))
	assert.Equal(t, 0, fake.throttled)
}

func TestWriterGivesUpAfterRetries(t *testing.T) {
	fake := newFakeSpreadsheet()
	fake.throttled = 10
	w := newTestWriter(t, fake)
	w.retry = retry.Config{MaxRetries: 1, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, Multiplier: 1}

	err := w.WriteMonthlyReport(context.Background(), sampleReport(september2025, true), "")
	assert.Error(t, err)
}
