package analytics

import (
	"sort"

	"github.com/pkg/errors"

	"yt-monthly-report/internal/models"
)

// MaxPriorMonths is how many months before the current one a trend covers.
const MaxPriorMonths = 12

// PercentChange returns (current - previous) / previous * 100, or nil when either value is
// missing or previous is zero.
func PercentChange(previous, current *float64) *float64 {
	if previous == nil || current == nil || *previous == 0 {
		return nil
	}
	return models.Float((*current - *previous) / *previous * 100)
}

// BuildTrend folds the current report and up to MaxPriorMonths prior reports into a trend,
// oldest month first. Priors may arrive in any order and may have gaps; a month whose
// calendar predecessor is absent gets a nil percent change. Nothing is padded.
func BuildTrend(current *models.MonthlyReport, prior []*models.MonthlyReport) (*models.Trend, error) {
	if current == nil {
		return nil, errors.Wrap(ErrInvalidRange, "current report is required")
	}
	if len(prior) > MaxPriorMonths {
		return nil, errors.Wrapf(ErrInvalidRange, "got %d prior months, at most %d allowed", len(prior), MaxPriorMonths)
	}

	reports := make([]*models.MonthlyReport, 0, len(prior)+1)
	seen := make(map[models.Month]bool, len(prior))
	for _, p := range prior {
		if p == nil {
			return nil, errors.Wrap(ErrInvalidRange, "nil prior report")
		}
		if !p.Month.Before(current.Month) {
			return nil, errors.Wrapf(ErrInvalidRange, "prior month %s is not before %s", p.Month, current.Month)
		}
		if p.Month.MonthsBetween(current.Month) > MaxPriorMonths {
			return nil, errors.Wrapf(ErrInvalidRange, "prior month %s is more than %d months before %s", p.Month, MaxPriorMonths, current.Month)
		}
		if seen[p.Month] {
			return nil, errors.Wrapf(ErrInvalidRange, "duplicate prior month %s", p.Month)
		}
		seen[p.Month] = true
		reports = append(reports, p)
	}
	reports = append(reports, current)

	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].Month.Before(reports[j].Month)
	})

	trend := &models.Trend{Months: make([]models.Month, len(reports))}
	for i, r := range reports {
		trend.Months[i] = r.Month
	}

	for _, category := range models.Categories {
		for _, metric := range models.TrackedMetrics {
			trend.Series = append(trend.Series, buildSeries(reports, category, metric))
		}
	}

	return trend, nil
}

func buildSeries(reports []*models.MonthlyReport, category models.Category, metric models.MetricName) models.TrendSeries {
	series := models.TrendSeries{
		Category: category,
		Metric:   metric,
		Rows:     make([]models.TrendRow, len(reports)),
	}

	for i, r := range reports {
		row := models.TrendRow{
			Month:    r.Month,
			Category: category,
			Metric:   metric,
			Value:    categoryMetrics(r, category).Value(metric),
		}
		if i > 0 && reports[i-1].Month == r.Month.Prev() {
			row.PercentChange = PercentChange(series.Rows[i-1].Value, row.Value)
		}
		series.Rows[i] = row
	}

	return series
}

func categoryMetrics(r *models.MonthlyReport, category models.Category) models.Metrics {
	if category == models.CategoryBackCatalog {
		return r.BackCatalog.Metrics
	}
	return r.NewVideosTotal()
}
