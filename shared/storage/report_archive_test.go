package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yt-monthly-report/internal/models"
)

func report(year int, month time.Month, views int64) *models.MonthlyReport {
	m := models.Month{Year: year, Month: month}
	return &models.MonthlyReport{
		Month:            m,
		ChannelID:        "UC123",
		RevenueAvailable: true,
		NewVideos: []models.VideoMetric{{
			VideoID:     "v1",
			Title:       "Upload",
			PublishedAt: m.Start().Add(36 * time.Hour),
			Metrics:     models.Metrics{Views: views, EstimatedRevenue: models.Float(1.5)},
		}},
		BackCatalog: models.BackCatalogSummary{
			VideoCount: 3,
			Metrics:    models.Metrics{Views: views * 10, EstimatedRevenue: models.Float(12)},
		},
	}
}

func TestReportArchiveSaveAndReload(t *testing.T) {
	dir := t.TempDir()

	archive, err := NewReportArchive(dir, 13)
	require.NoError(t, err)
	assert.Equal(t, 0, archive.Count())

	aug := report(2025, time.August, 100)
	sep := report(2025, time.September, 200)
	require.NoError(t, archive.Save(sep))
	require.NoError(t, archive.Save(aug))

	reopened, err := NewReportArchive(dir, 13)
	require.NoError(t, err)
	assert.Equal(t, 2, reopened.Count())

	got := reopened.Load("UC123", []models.Month{aug.Month, {Year: 2025, Month: time.July}, sep.Month})
	require.Len(t, got, 2)
	assert.Equal(t, aug.Month, got[0].Month)
	assert.Equal(t, sep.Month, got[1].Month)
	assert.Equal(t, sep.BackCatalog, got[1].BackCatalog)
	assert.True(t, sep.NewVideos[0].PublishedAt.Equal(got[1].NewVideos[0].PublishedAt))
	require.NotNil(t, got[1].NewVideos[0].EstimatedRevenue)
	assert.Equal(t, 1.5, *got[1].NewVideos[0].EstimatedRevenue)

	_, err = os.Stat(filepath.Join(dir, archiveFileName+".tmp"))
	assert.True(t, os.IsNotExist(err), "temporary file is renamed away")
}

func TestReportArchiveReplacesMonth(t *testing.T) {
	archive, err := NewReportArchive(t.TempDir(), 13)
	require.NoError(t, err)

	require.NoError(t, archive.Save(report(2025, time.September, 200)))
	require.NoError(t, archive.Save(report(2025, time.September, 250)))

	assert.Equal(t, 1, archive.Count())
	got := archive.Load("UC123", []models.Month{{Year: 2025, Month: time.September}})
	require.Len(t, got, 1)
	assert.Equal(t, int64(250), got[0].NewVideos[0].Views)
}

func TestReportArchivePrunesOldestMonths(t *testing.T) {
	archive, err := NewReportArchive(t.TempDir(), 3)
	require.NoError(t, err)

	start := models.Month{Year: 2024, Month: time.November}
	for i := 0; i < 5; i++ {
		m := start.AddMonths(i)
		require.NoError(t, archive.Save(report(m.Year, m.Month, int64(i))))
	}

	assert.Equal(t, 3, archive.Count())
	assert.Empty(t, archive.Load("UC123", []models.Month{start, start.AddMonths(1)}))
	assert.Len(t, archive.Load("UC123", start.AddMonths(5).Trailing(3)), 3)
}

func TestReportArchiveKeepsChannelsApart(t *testing.T) {
	dir := t.TempDir()
	archive, err := NewReportArchive(dir, 2)
	require.NoError(t, err)

	ours := report(2025, time.August, 100)
	other := report(2025, time.August, 777)
	other.ChannelID = "UC_OTHER"
	require.NoError(t, archive.Save(ours))
	require.NoError(t, archive.Save(other))
	require.NoError(t, archive.Save(report(2025, time.September, 200)))
	require.NoError(t, archive.Save(report(2025, time.October, 300)))

	reopened, err := NewReportArchive(dir, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, reopened.Count(), "pruning is per channel")

	got := reopened.Load("UC_OTHER", []models.Month{{Year: 2025, Month: time.August}, {Year: 2025, Month: time.September}})
	require.Len(t, got, 1)
	assert.Equal(t, int64(777), got[0].NewVideos[0].Views)

	got = reopened.Load("UC123", []models.Month{{Year: 2025, Month: time.August}, {Year: 2025, Month: time.September}})
	require.Len(t, got, 1)
	assert.Equal(t, "UC123", got[0].ChannelID)
	assert.Equal(t, int64(200), got[0].NewVideos[0].Views)

	assert.Empty(t, reopened.Load("UC_NEW", []models.Month{{Year: 2025, Month: time.September}}))
}

func TestReportArchiveRejectsNil(t *testing.T) {
	archive, err := NewReportArchive(t.TempDir(), 3)
	require.NoError(t, err)
	assert.Error(t, archive.Save(nil))

	noChannel := report(2025, time.August, 1)
	noChannel.ChannelID = ""
	assert.Error(t, archive.Save(noChannel))
}

func TestReportArchiveCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, archiveFileName), []byte("{not json"), 0644))

	_, err := NewReportArchive(dir, 3)
	assert.Error(t, err)
}
