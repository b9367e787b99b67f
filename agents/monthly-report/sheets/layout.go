package sheets

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"google.golang.org/api/sheets/v4"

	"yt-monthly-report/internal/models"
)

// Row labels in the Category column of a monthly tab. They are also what read-back keys on.
const (
	labelHeader      = "Category"
	labelNewVideo    = "New Video"
	labelNewTotal    = "New Videos Total"
	labelBackCatalog = "Back Catalog"
	labelChannel     = "Channel Total"
	labelInsights    = "Insights"

	channelPrefix = "Channel ID: "
	dateLayout    = "2006-01-02"
)

// Monthly tab columns.
const (
	colCategory = iota
	colVideoID
	colTitle
	colPublished
	colViews
	colWatchTime
	colSubscribers
	colRevenue
	monthlyColumns
)

// monthlyHeaderRow is the zero-based row index of the table header on a monthly tab.
const monthlyHeaderRow = 5

var monthlyHeader = []interface{}{
	labelHeader, "Video ID", "Title", "Published",
	string(models.MetricViews), string(models.MetricWatchTime), string(models.MetricSubscribers), string(models.MetricRevenue),
}

// MonthlyValues renders a report as the cell grid of its monthly tab.
func MonthlyValues(report *models.MonthlyReport, generatedAt time.Time, insights string) [][]interface{} {
	start, end := report.Month.DateRange()

	rows := [][]interface{}{
		{"YouTube Analytics Report"},
		{channelPrefix + report.ChannelID},
		{fmt.Sprintf("Reporting Period: %s to %s", start, end)},
		{"Generated on: " + generatedAt.Format("2006-01-02 15:04:05")},
		{""},
		monthlyHeader,
	}

	for _, v := range report.NewVideos {
		rows = append(rows, metricCells(labelNewVideo, v.VideoID, v.Title, v.PublishedAt.In(models.ReportingLocation).Format(dateLayout), v.Metrics))
	}
	rows = append(rows,
		metricCells(labelNewTotal, int64(len(report.NewVideos)), "", "", report.NewVideosTotal()),
		metricCells(labelBackCatalog, int64(report.BackCatalog.VideoCount), "", "", report.BackCatalog.Metrics),
		metricCells(labelChannel, "", "", "", report.ChannelTotal()),
	)

	if insights != "" {
		rows = append(rows, []interface{}{""}, []interface{}{labelInsights}, []interface{}{insights})
	}

	return rows
}

func metricCells(label string, id interface{}, title, published string, m models.Metrics) []interface{} {
	var revenue interface{} = ""
	if m.EstimatedRevenue != nil {
		revenue = *m.EstimatedRevenue
	}
	return []interface{}{label, id, title, published, m.Views, m.WatchTimeMinutes, m.SubscribersGained, revenue}
}

// ParseMonthlyValues rebuilds a MonthlyReport from a monthly tab read with unformatted values.
func ParseMonthlyValues(month models.Month, rows [][]interface{}) (*models.MonthlyReport, error) {
	report := &models.MonthlyReport{Month: month, NewVideos: []models.VideoMetric{}}

	header := -1
	for i, row := range rows {
		label := cellString(row, colCategory)
		if strings.HasPrefix(label, channelPrefix) {
			report.ChannelID = strings.TrimPrefix(label, channelPrefix)
		}
		if label == labelHeader {
			header = i
			break
		}
	}
	if header < 0 {
		return nil, errors.Errorf("tab %q has no report table", month)
	}

	foundBack := false
table:
	for i := header + 1; i < len(rows); i++ {
		row := rows[i]
		switch cellString(row, colCategory) {
		case labelNewVideo:
			metrics, err := parseMetricCells(row)
			if err != nil {
				return nil, errors.Wrapf(err, "row %d", i+1)
			}
			v := models.VideoMetric{
				VideoID: cellString(row, colVideoID),
				Title:   cellString(row, colTitle),
				Metrics: metrics,
			}
			if published := cellString(row, colPublished); published != "" {
				t, err := time.ParseInLocation(dateLayout, published, models.ReportingLocation)
				if err != nil {
					return nil, errors.Wrapf(err, "row %d: bad publish date", i+1)
				}
				v.PublishedAt = t
			}
			report.NewVideos = append(report.NewVideos, v)

		case labelBackCatalog:
			metrics, err := parseMetricCells(row)
			if err != nil {
				return nil, errors.Wrapf(err, "row %d", i+1)
			}
			count, _, err := cellNumber(row, colVideoID)
			if err != nil {
				return nil, errors.Wrapf(err, "row %d: bad video count", i+1)
			}
			report.BackCatalog = models.BackCatalogSummary{VideoCount: int(count), Metrics: metrics}
			report.RevenueAvailable = metrics.EstimatedRevenue != nil
			foundBack = true

		case labelChannel:
			break table
		}
	}

	if !foundBack {
		return nil, errors.Errorf("tab %q has no %s row", month, labelBackCatalog)
	}
	return report, nil
}

func parseMetricCells(row []interface{}) (models.Metrics, error) {
	var m models.Metrics
	for _, c := range []struct {
		col int
		dst *int64
	}{
		{colViews, &m.Views},
		{colWatchTime, &m.WatchTimeMinutes},
		{colSubscribers, &m.SubscribersGained},
	} {
		v, ok, err := cellNumber(row, c.col)
		if err != nil {
			return m, err
		}
		if ok {
			*c.dst = int64(v)
		}
	}

	revenue, ok, err := cellNumber(row, colRevenue)
	if err != nil {
		return m, err
	}
	if ok {
		m.EstimatedRevenue = models.Float(revenue)
	}
	return m, nil
}

func cellString(row []interface{}, col int) string {
	if col >= len(row) || row[col] == nil {
		return ""
	}
	if s, ok := row[col].(string); ok {
		return s
	}
	return fmt.Sprint(row[col])
}

// cellNumber reads a numeric cell. Blank cells report ok=false; formatted strings such as
// "1,200" or "$3.50" are accepted.
func cellNumber(row []interface{}, col int) (float64, bool, error) {
	if col >= len(row) || row[col] == nil {
		return 0, false, nil
	}
	switch v := row[col].(type) {
	case float64:
		return v, true, nil
	case int64:
		return float64(v), true, nil
	case int:
		return float64(v), true, nil
	case string:
		s := strings.NewReplacer(",", "", "$", "", "%", "").Replace(strings.TrimSpace(v))
		if s == "" {
			return 0, false, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false, errors.Wrapf(err, "column %s", columnLetter(col))
		}
		return f, true, nil
	}
	return 0, false, errors.Errorf("column %s: unexpected %T", columnLetter(col), row[col])
}

// Trends tab layout: a values block, one blank row, then a percent-change block.
const (
	trendLabelColumns = 2
	changeTitle       = "Month-over-Month Change (%)"
)

// trendBlockRows is the number of rows in one block: header plus one row per series.
func trendBlockRows(t *models.Trend) int {
	return 1 + len(t.Series)
}

// changeHeaderRow is the zero-based row index of the percent-change block header.
func changeHeaderRow(t *models.Trend) int {
	return trendBlockRows(t) + 2
}

// TrendRows renders the trend as typed cells for an UpdateCells request.
func TrendRows(t *models.Trend) []*sheets.RowData {
	header := []*sheets.CellData{stringCell(labelHeader), stringCell("Metric")}
	for _, m := range t.Months {
		header = append(header, stringCell(m.Short()))
	}
	header = append(header, stringCell("Trend"))

	firstData := columnLetter(trendLabelColumns)
	lastData := columnLetter(trendLabelColumns + len(t.Months) - 1)

	rows := []*sheets.RowData{{Values: header}}
	for i, s := range t.Series {
		rowNum := i + 2
		cells := []*sheets.CellData{stringCell(string(s.Category)), stringCell(string(s.Metric))}
		for _, r := range s.Rows {
			cells = append(cells, numberCell(r.Value))
		}
		cells = append(cells, formulaCell(fmt.Sprintf("=SPARKLINE(%s%d:%s%d)", firstData, rowNum, lastData, rowNum)))
		rows = append(rows, &sheets.RowData{Values: cells})
	}

	rows = append(rows, &sheets.RowData{}, &sheets.RowData{Values: []*sheets.CellData{stringCell(changeTitle)}})

	changeStart := changeHeaderRow(t)
	rows = append(rows, &sheets.RowData{Values: header})
	for i, s := range t.Series {
		rowNum := changeStart + i + 2
		cells := []*sheets.CellData{stringCell(string(s.Category)), stringCell(string(s.Metric))}
		for _, r := range s.Rows {
			cells = append(cells, numberCell(r.PercentChange))
		}
		cells = append(cells, formulaCell(fmt.Sprintf(`=SPARKLINE(%s%d:%s%d,{"charttype","column";"negcolor","red"})`, firstData, rowNum, lastData, rowNum)))
		rows = append(rows, &sheets.RowData{Values: cells})
	}

	return rows
}

func stringCell(s string) *sheets.CellData {
	return &sheets.CellData{UserEnteredValue: &sheets.ExtendedValue{StringValue: &s}}
}

func numberCell(v *float64) *sheets.CellData {
	if v == nil {
		return &sheets.CellData{}
	}
	n := *v
	return &sheets.CellData{UserEnteredValue: &sheets.ExtendedValue{NumberValue: &n}}
}

func formulaCell(f string) *sheets.CellData {
	return &sheets.CellData{UserEnteredValue: &sheets.ExtendedValue{FormulaValue: &f}}
}

// columnLetter converts a zero-based column index to A1 notation (0 → A, 26 → AA).
func columnLetter(col int) string {
	letters := ""
	for col >= 0 {
		letters = string(rune('A'+col%26)) + letters
		col = col/26 - 1
	}
	return letters
}

// quoteTitle quotes a tab title for use in an A1 range.
func quoteTitle(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}
