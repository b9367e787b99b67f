package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yt-monthly-report/internal/models"
)

var september2025 = models.Month{Year: 2025, Month: time.September}

func video(id string, published time.Time, views, minutes, subs int64, revenue *float64) models.VideoMetric {
	return models.VideoMetric{
		VideoID:     id,
		Title:       "Video " + id,
		PublishedAt: published,
		Metrics: models.Metrics{
			Views:             views,
			WatchTimeMinutes:  minutes,
			SubscribersGained: subs,
			EstimatedRevenue:  revenue,
		},
	}
}

func TestAggregatePartitionsByPublishDate(t *testing.T) {
	records := []models.VideoMetric{
		video("old1", time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC), 5000, 9000, 20, models.Float(40)),
		video("late", time.Date(2025, 9, 30, 23, 59, 59, 0, models.ReportingLocation), 300, 600, 3, models.Float(2.5)),
		video("early", time.Date(2025, 9, 1, 0, 0, 0, 0, models.ReportingLocation), 700, 1400, 7, models.Float(5.5)),
		video("next", time.Date(2025, 10, 1, 0, 0, 0, 0, models.ReportingLocation), 10, 20, 0, models.Float(0)),
		video("prev", time.Date(2025, 8, 31, 23, 59, 59, 0, models.ReportingLocation), 90, 100, 1, models.Float(1)),
	}
	totals := &models.Metrics{Views: 10000, WatchTimeMinutes: 20000, SubscribersGained: 50, EstimatedRevenue: models.Float(100)}

	report, err := Aggregate(september2025, "UC123", records, totals)
	require.NoError(t, err)

	require.Len(t, report.NewVideos, 2)
	assert.Equal(t, "early", report.NewVideos[0].VideoID)
	assert.Equal(t, "late", report.NewVideos[1].VideoID, "a video published on the last day of the month is new")
	assert.Equal(t, 3, report.BackCatalog.VideoCount)
	assert.Equal(t, "UC123", report.ChannelID)
	assert.True(t, report.RevenueAvailable)

	assert.Equal(t, int64(9000), report.BackCatalog.Views)
	assert.Equal(t, int64(18000), report.BackCatalog.WatchTimeMinutes)
	assert.Equal(t, int64(40), report.BackCatalog.SubscribersGained)
	require.NotNil(t, report.BackCatalog.EstimatedRevenue)
	assert.InDelta(t, 92.0, *report.BackCatalog.EstimatedRevenue, 1e-9)
}

func TestAggregateSumsToChannelTotals(t *testing.T) {
	tests := []struct {
		name    string
		records []models.VideoMetric
		totals  models.Metrics
	}{
		{
			name:    "No videos at all",
			records: nil,
			totals:  models.Metrics{Views: 120, WatchTimeMinutes: 300, SubscribersGained: 2},
		},
		{
			name: "Only back catalog",
			records: []models.VideoMetric{
				video("a", time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), 100, 200, 1, models.Float(1.25)),
			},
			totals: models.Metrics{Views: 150, WatchTimeMinutes: 260, SubscribersGained: 4, EstimatedRevenue: models.Float(3.75)},
		},
		{
			name: "Mixed with truncated per-video rows",
			records: []models.VideoMetric{
				video("a", time.Date(2025, 9, 12, 0, 0, 0, 0, time.UTC), 400, 800, 6, models.Float(3)),
				video("b", time.Date(2025, 9, 20, 0, 0, 0, 0, time.UTC), 100, 150, 1, models.Float(0.5)),
				video("c", time.Date(2022, 5, 20, 0, 0, 0, 0, time.UTC), 900, 1000, 2, models.Float(7)),
			},
			totals: models.Metrics{Views: 5000, WatchTimeMinutes: 9000, SubscribersGained: 30, EstimatedRevenue: models.Float(60.25)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			totals := tt.totals
			report, err := Aggregate(september2025, "UC123", tt.records, &totals)
			require.NoError(t, err)

			sum := report.ChannelTotal()
			assert.Equal(t, tt.totals.Views, sum.Views)
			assert.Equal(t, tt.totals.WatchTimeMinutes, sum.WatchTimeMinutes)
			assert.Equal(t, tt.totals.SubscribersGained, sum.SubscribersGained)
			if tt.totals.EstimatedRevenue == nil {
				assert.Nil(t, sum.EstimatedRevenue)
			} else {
				require.NotNil(t, sum.EstimatedRevenue)
				assert.InDelta(t, *tt.totals.EstimatedRevenue, *sum.EstimatedRevenue, 1e-9)
			}
		})
	}
}

func TestAggregateNoNewVideos(t *testing.T) {
	totals := &models.Metrics{Views: 42, WatchTimeMinutes: 84, SubscribersGained: 1, EstimatedRevenue: models.Float(0.42)}
	records := []models.VideoMetric{
		video("old", time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), 42, 84, 1, models.Float(0.42)),
	}

	report, err := Aggregate(september2025, "UC123", records, totals)
	require.NoError(t, err)

	assert.NotNil(t, report.NewVideos)
	assert.Empty(t, report.NewVideos)
	assert.Equal(t, totals.Views, report.BackCatalog.Views)
	assert.Equal(t, totals.WatchTimeMinutes, report.BackCatalog.WatchTimeMinutes)
	assert.Equal(t, totals.SubscribersGained, report.BackCatalog.SubscribersGained)
	require.NotNil(t, report.BackCatalog.EstimatedRevenue)
	assert.InDelta(t, 0.42, *report.BackCatalog.EstimatedRevenue, 1e-9)
}

func TestAggregateMissingRevenueStaysNull(t *testing.T) {
	t.Run("Channel revenue unavailable", func(t *testing.T) {
		totals := &models.Metrics{Views: 1000, WatchTimeMinutes: 2000, SubscribersGained: 10}
		records := []models.VideoMetric{
			video("new", time.Date(2025, 9, 5, 0, 0, 0, 0, time.UTC), 100, 200, 1, nil),
		}

		report, err := Aggregate(september2025, "UC123", records, totals)
		require.NoError(t, err)

		assert.False(t, report.RevenueAvailable)
		assert.Nil(t, report.BackCatalog.EstimatedRevenue)
		assert.Nil(t, report.NewVideosTotal().EstimatedRevenue)
		assert.Equal(t, int64(900), report.BackCatalog.Views)
	})

	t.Run("One new video without revenue", func(t *testing.T) {
		totals := &models.Metrics{Views: 1000, WatchTimeMinutes: 2000, SubscribersGained: 10, EstimatedRevenue: models.Float(10)}
		records := []models.VideoMetric{
			video("a", time.Date(2025, 9, 5, 0, 0, 0, 0, time.UTC), 100, 200, 1, models.Float(1)),
			video("b", time.Date(2025, 9, 6, 0, 0, 0, 0, time.UTC), 100, 200, 1, nil),
		}

		report, err := Aggregate(september2025, "UC123", records, totals)
		require.NoError(t, err)

		assert.True(t, report.RevenueAvailable)
		assert.Nil(t, report.NewVideosTotal().EstimatedRevenue)
		assert.Nil(t, report.BackCatalog.EstimatedRevenue)
	})

	t.Run("Zero revenue is not missing", func(t *testing.T) {
		totals := &models.Metrics{Views: 10, EstimatedRevenue: models.Float(0)}

		report, err := Aggregate(september2025, "UC123", nil, totals)
		require.NoError(t, err)

		require.NotNil(t, report.BackCatalog.EstimatedRevenue)
		assert.Equal(t, 0.0, *report.BackCatalog.EstimatedRevenue)
	})
}

func TestAggregateDataUnavailable(t *testing.T) {
	_, err := Aggregate(september2025, "UC123", []models.VideoMetric{
		video("a", time.Date(2025, 9, 5, 0, 0, 0, 0, time.UTC), 1, 1, 0, nil),
	}, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDataUnavailable)
}

func TestAggregateDoesNotShareRevenuePointers(t *testing.T) {
	rev := models.Float(3)
	totals := &models.Metrics{Views: 10, EstimatedRevenue: models.Float(5)}
	records := []models.VideoMetric{
		video("a", time.Date(2025, 9, 5, 0, 0, 0, 0, time.UTC), 5, 5, 0, rev),
	}

	report, err := Aggregate(september2025, "UC123", records, totals)
	require.NoError(t, err)

	*rev = 1000
	assert.Equal(t, 3.0, *report.NewVideos[0].EstimatedRevenue)
}
