package sheets

import (
	"google.golang.org/api/sheets/v4"

	"yt-monthly-report/internal/models"
)

const (
	integerPattern  = "#,##0"
	currencyPattern = "$#,##0.00"
	percentPattern  = `0.0"%"`
)

// gridRange always sends its indices: sheet 0 and row/column 0 are meaningful values that
// omitempty would otherwise drop.
func gridRange(sheetID int64, startRow, endRow, startCol, endCol int) *sheets.GridRange {
	return &sheets.GridRange{
		SheetId:          sheetID,
		StartRowIndex:    int64(startRow),
		EndRowIndex:      int64(endRow),
		StartColumnIndex: int64(startCol),
		EndColumnIndex:   int64(endCol),
		ForceSendFields:  []string{"SheetId", "StartRowIndex", "StartColumnIndex"},
	}
}

func boldRows(sheetID int64, startRow, endRow, cols int) *sheets.Request {
	return &sheets.Request{
		RepeatCell: &sheets.RepeatCellRequest{
			Range: gridRange(sheetID, startRow, endRow, 0, cols),
			Cell: &sheets.CellData{
				UserEnteredFormat: &sheets.CellFormat{TextFormat: &sheets.TextFormat{Bold: true}},
			},
			Fields: "userEnteredFormat.textFormat.bold",
		},
	}
}

func numberFormat(r *sheets.GridRange, formatType, pattern string) *sheets.Request {
	return &sheets.Request{
		RepeatCell: &sheets.RepeatCellRequest{
			Range: r,
			Cell: &sheets.CellData{
				UserEnteredFormat: &sheets.CellFormat{
					NumberFormat: &sheets.NumberFormat{Type: formatType, Pattern: pattern},
				},
			},
			Fields: "userEnteredFormat.numberFormat",
		},
	}
}

func freezeRows(sheetID int64, rows int) *sheets.Request {
	return &sheets.Request{
		UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
			Properties: &sheets.SheetProperties{
				SheetId:         sheetID,
				GridProperties:  &sheets.GridProperties{FrozenRowCount: int64(rows)},
				ForceSendFields: []string{"SheetId"},
			},
			Fields: "gridProperties.frozenRowCount",
		},
	}
}

func autoResize(sheetID int64, cols int) *sheets.Request {
	return &sheets.Request{
		AutoResizeDimensions: &sheets.AutoResizeDimensionsRequest{
			Dimensions: &sheets.DimensionRange{
				SheetId:         sheetID,
				Dimension:       "COLUMNS",
				StartIndex:      0,
				EndIndex:        int64(cols),
				ForceSendFields: []string{"SheetId", "StartIndex"},
			},
		},
	}
}

// monthlyFormatRequests styles a monthly tab written from MonthlyValues.
func monthlyFormatRequests(sheetID int64, report *models.MonthlyReport) []*sheets.Request {
	firstData := monthlyHeaderRow + 1
	// New video rows plus the three summary rows.
	lastData := firstData + len(report.NewVideos) + 3
	summaryStart := lastData - 3

	return []*sheets.Request{
		boldRows(sheetID, 0, 1, monthlyColumns),
		boldRows(sheetID, monthlyHeaderRow, monthlyHeaderRow+1, monthlyColumns),
		boldRows(sheetID, summaryStart, lastData, monthlyColumns),
		numberFormat(gridRange(sheetID, firstData, lastData, colViews, colRevenue), "NUMBER", integerPattern),
		numberFormat(gridRange(sheetID, firstData, lastData, colRevenue, colRevenue+1), "CURRENCY", currencyPattern),
		freezeRows(sheetID, monthlyHeaderRow+1),
		autoResize(sheetID, monthlyColumns),
	}
}

// trendFormatRequests styles the trends tab written from TrendRows.
func trendFormatRequests(sheetID int64, t *models.Trend) []*sheets.Request {
	cols := trendLabelColumns + len(t.Months) + 1
	changeHeader := changeHeaderRow(t)
	changeEnd := changeHeader + trendBlockRows(t)
	firstMonth := trendLabelColumns
	lastMonth := trendLabelColumns + len(t.Months)

	requests := []*sheets.Request{
		boldRows(sheetID, 0, 1, cols),
		boldRows(sheetID, changeHeader-1, changeHeader+1, cols),
		freezeRows(sheetID, 1),
		numberFormat(gridRange(sheetID, changeHeader+1, changeEnd, firstMonth, lastMonth), "NUMBER", percentPattern),
	}

	for i, s := range t.Series {
		row := 1 + i
		pattern, formatType := integerPattern, "NUMBER"
		if s.Metric == models.MetricRevenue {
			pattern, formatType = currencyPattern, "CURRENCY"
		}
		requests = append(requests, numberFormat(gridRange(sheetID, row, row+1, firstMonth, lastMonth), formatType, pattern))
	}

	return append(requests, autoResize(sheetID, cols))
}
