package analytics

import (
	"sort"

	"github.com/pkg/errors"

	"yt-monthly-report/internal/models"
)

// Aggregate partitions per-video records for month into videos published that month and the
// back catalog.
//
// The back-catalog row is derived as totals minus the new-video sum so that the two always add
// up to the channel totals, even when records only cover the top videos. A nil totals means the
// Analytics API had no rows for the month.
func Aggregate(month models.Month, channelID string, records []models.VideoMetric, totals *models.Metrics) (*models.MonthlyReport, error) {
	if totals == nil {
		return nil, errors.Wrapf(ErrDataUnavailable, "no channel totals for %s", month)
	}

	report := &models.MonthlyReport{
		Month:            month,
		ChannelID:        channelID,
		NewVideos:        []models.VideoMetric{},
		RevenueAvailable: totals.EstimatedRevenue != nil,
	}

	var backCount int
	for _, rec := range records {
		if month.Contains(rec.PublishedAt) {
			report.NewVideos = append(report.NewVideos, copyVideo(rec))
			continue
		}
		backCount++
	}

	sort.SliceStable(report.NewVideos, func(i, j int) bool {
		a, b := report.NewVideos[i], report.NewVideos[j]
		if !a.PublishedAt.Equal(b.PublishedAt) {
			return a.PublishedAt.Before(b.PublishedAt)
		}
		return a.VideoID < b.VideoID
	})

	report.BackCatalog = models.BackCatalogSummary{
		VideoCount: backCount,
		Metrics:    totals.Sub(report.NewVideosTotal()),
	}

	return report, nil
}

// copyVideo detaches the revenue pointer from the caller's record.
func copyVideo(v models.VideoMetric) models.VideoMetric {
	if v.EstimatedRevenue != nil {
		v.EstimatedRevenue = models.Float(*v.EstimatedRevenue)
	}
	return v
}
