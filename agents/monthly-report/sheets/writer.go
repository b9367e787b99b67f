package sheets

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"yt-monthly-report/internal/models"
	"yt-monthly-report/shared/retry"
)

// Writer renders reports and trends into one spreadsheet and reads earlier months back.
type Writer struct {
	service       *sheets.Service
	spreadsheetID string
	trendsTab     string
	retry         retry.Config
	now           func() time.Time
}

// NewWriter creates a Sheets service on the authenticated httpClient.
func NewWriter(ctx context.Context, httpClient *http.Client, spreadsheetID, trendsTab string, opts ...option.ClientOption) (*Writer, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)

	service, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Sheets service")
	}

	return &Writer{
		service:       service,
		spreadsheetID: spreadsheetID,
		trendsTab:     trendsTab,
		retry:         retry.DefaultConfig(),
		now:           time.Now,
	}, nil
}

// URL returns the spreadsheet's browser URL.
func (w *Writer) URL() string {
	return "https://docs.google.com/spreadsheets/d/" + w.spreadsheetID
}

func (w *Writer) call(ctx context.Context, fn func(context.Context) error) error {
	return retry.Do(ctx, w.retry, retry.IsRetryable, fn)
}

// tabs maps tab titles to sheet IDs.
func (w *Writer) tabs(ctx context.Context) (map[string]int64, error) {
	var resp *sheets.Spreadsheet
	err := w.call(ctx, func(ctx context.Context) error {
		var err error
		resp, err = w.service.Spreadsheets.Get(w.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list sheet tabs")
	}

	tabs := make(map[string]int64, len(resp.Sheets))
	for _, s := range resp.Sheets {
		if s.Properties != nil {
			tabs[s.Properties.Title] = s.Properties.SheetId
		}
	}
	return tabs, nil
}

// ensureTab returns the sheet ID of title, creating the tab if it does not exist.
func (w *Writer) ensureTab(ctx context.Context, title string) (int64, error) {
	tabs, err := w.tabs(ctx)
	if err != nil {
		return 0, err
	}
	if id, ok := tabs[title]; ok {
		return id, nil
	}

	var resp *sheets.BatchUpdateSpreadsheetResponse
	err = w.call(ctx, func(ctx context.Context) error {
		var err error
		resp, err = w.service.Spreadsheets.BatchUpdate(w.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
			Requests: []*sheets.Request{{
				AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{Title: title}},
			}},
		}).Context(ctx).Do()
		return err
	})
	if err != nil {
		return 0, errors.Wrapf(err, "failed to create sheet %q", title)
	}
	if len(resp.Replies) == 0 || resp.Replies[0].AddSheet == nil || resp.Replies[0].AddSheet.Properties == nil {
		return 0, errors.Errorf("no properties returned for new sheet %q", title)
	}

	log.Infof("Created new sheet: %s", title)
	return resp.Replies[0].AddSheet.Properties.SheetId, nil
}

func (w *Writer) clear(ctx context.Context, title string) error {
	return w.call(ctx, func(ctx context.Context) error {
		_, err := w.service.Spreadsheets.Values.Clear(w.spreadsheetID, quoteTitle(title), &sheets.ClearValuesRequest{}).Context(ctx).Do()
		return err
	})
}

func (w *Writer) batchUpdate(ctx context.Context, requests []*sheets.Request) error {
	return w.call(ctx, func(ctx context.Context) error {
		_, err := w.service.Spreadsheets.BatchUpdate(w.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
			Requests: requests,
		}).Context(ctx).Do()
		return err
	})
}

// WriteMonthlyReport replaces the contents of the report month's tab. insights may be empty.
func (w *Writer) WriteMonthlyReport(ctx context.Context, report *models.MonthlyReport, insights string) error {
	title := report.Month.String()

	sheetID, err := w.ensureTab(ctx, title)
	if err != nil {
		return err
	}
	if err := w.clear(ctx, title); err != nil {
		return errors.Wrapf(err, "failed to clear sheet %q", title)
	}

	values := MonthlyValues(report, w.now(), insights)
	err = w.call(ctx, func(ctx context.Context) error {
		_, err := w.service.Spreadsheets.Values.Update(w.spreadsheetID, quoteTitle(title)+"!A1", &sheets.ValueRange{
			Values: values,
		}).ValueInputOption("RAW").Context(ctx).Do()
		return err
	})
	if err != nil {
		return errors.Wrapf(err, "failed to write sheet %q", title)
	}

	if err := w.batchUpdate(ctx, monthlyFormatRequests(sheetID, report)); err != nil {
		return errors.Wrapf(err, "failed to format sheet %q", title)
	}

	log.Infof("Monthly report written to sheet: %s (%d new videos)", title, len(report.NewVideos))
	return nil
}

// ReadPriorReports reads back the monthly tabs that exist for months. Tabs that cannot be
// parsed are skipped with a warning; the result is in the order of months.
func (w *Writer) ReadPriorReports(ctx context.Context, months []models.Month) ([]*models.MonthlyReport, error) {
	tabs, err := w.tabs(ctx)
	if err != nil {
		return nil, err
	}

	var present []models.Month
	var ranges []string
	for _, m := range months {
		if _, ok := tabs[m.String()]; ok {
			present = append(present, m)
			ranges = append(ranges, quoteTitle(m.String()))
		}
	}
	if len(ranges) == 0 {
		return nil, nil
	}

	var resp *sheets.BatchGetValuesResponse
	err = w.call(ctx, func(ctx context.Context) error {
		var err error
		resp, err = w.service.Spreadsheets.Values.BatchGet(w.spreadsheetID).
			Ranges(ranges...).
			ValueRenderOption("UNFORMATTED_VALUE").
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to read prior months")
	}

	var reports []*models.MonthlyReport
	for i, vr := range resp.ValueRanges {
		if i >= len(present) {
			break
		}
		report, err := ParseMonthlyValues(present[i], vr.Values)
		if err != nil {
			log.Warnf("Skipping sheet %q: %v", present[i], err)
			continue
		}
		reports = append(reports, report)
	}

	log.Debugf("Read %d prior months back from the spreadsheet", len(reports))
	return reports, nil
}

// WriteTrends replaces the trends tab with values, percent changes and sparklines.
func (w *Writer) WriteTrends(ctx context.Context, trend *models.Trend) error {
	sheetID, err := w.ensureTab(ctx, w.trendsTab)
	if err != nil {
		return err
	}
	if err := w.clear(ctx, w.trendsTab); err != nil {
		return errors.Wrapf(err, "failed to clear sheet %q", w.trendsTab)
	}

	requests := []*sheets.Request{{
		UpdateCells: &sheets.UpdateCellsRequest{
			Start: &sheets.GridCoordinate{
				SheetId:         sheetID,
				ForceSendFields: []string{"SheetId", "RowIndex", "ColumnIndex"},
			},
			Rows:   TrendRows(trend),
			Fields: "userEnteredValue",
		},
	}}
	requests = append(requests, trendFormatRequests(sheetID, trend)...)

	if err := w.batchUpdate(ctx, requests); err != nil {
		return errors.Wrapf(err, "failed to write sheet %q", w.trendsTab)
	}

	log.Infof("Trends written to sheet: %s (%d months)", w.trendsTab, trend.Len())
	return nil
}
