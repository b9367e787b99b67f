package youtube

import (
	"math"

	"github.com/pkg/errors"
	"google.golang.org/api/youtubeanalytics/v2"

	"yt-monthly-report/internal/models"
)

// parseRow maps one Analytics result row onto Metrics using the column headers. The first
// return value is the video ID when the query had a video dimension. Revenue stays nil when
// the column is absent.
func parseRow(headers []*youtubeanalytics.ResultTableColumnHeader, row []interface{}) (string, models.Metrics, error) {
	var (
		videoID string
		metrics models.Metrics
	)

	if len(row) != len(headers) {
		return "", metrics, errors.Errorf("row has %d values for %d columns", len(row), len(headers))
	}

	for i, header := range headers {
		if header == nil {
			continue
		}
		switch header.Name {
		case dimensionVideo:
			id, ok := row[i].(string)
			if !ok {
				return "", metrics, errors.Errorf("video column holds %T, want string", row[i])
			}
			videoID = id
		case metricViews, metricWatchTime, metricSubscribers, metricRevenue:
			v, err := number(row[i])
			if err != nil {
				return "", metrics, errors.Wrapf(err, "column %s", header.Name)
			}
			switch header.Name {
			case metricViews:
				metrics.Views = int64(math.Round(v))
			case metricWatchTime:
				metrics.WatchTimeMinutes = int64(math.Round(v))
			case metricSubscribers:
				metrics.SubscribersGained = int64(math.Round(v))
			case metricRevenue:
				metrics.EstimatedRevenue = models.Float(v)
			}
		}
	}

	return videoID, metrics, nil
}

func number(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int64:
		return float64(n), nil
	case int:
		return float64(n), nil
	default:
		return 0, errors.Errorf("unexpected value %v (%T)", v, v)
	}
}
