package models

import "time"

// Metrics holds the tracked analytics values for a video or a group of videos.
// EstimatedRevenue is nil when revenue could not be read, which is not the same as zero.
type Metrics struct {
	Views             int64    `json:"views"`
	WatchTimeMinutes  int64    `json:"watch_time_minutes"`
	SubscribersGained int64    `json:"subscribers_gained"`
	EstimatedRevenue  *float64 `json:"estimated_revenue,omitempty"`
}

// Add returns m + o. Revenue stays nil unless both sides carry it.
func (m Metrics) Add(o Metrics) Metrics {
	return Metrics{
		Views:             m.Views + o.Views,
		WatchTimeMinutes:  m.WatchTimeMinutes + o.WatchTimeMinutes,
		SubscribersGained: m.SubscribersGained + o.SubscribersGained,
		EstimatedRevenue:  addRevenue(m.EstimatedRevenue, o.EstimatedRevenue),
	}
}

// Sub returns m - o with the same revenue rule as Add.
func (m Metrics) Sub(o Metrics) Metrics {
	var neg *float64
	if o.EstimatedRevenue != nil {
		neg = Float(-*o.EstimatedRevenue)
	}
	return Metrics{
		Views:             m.Views - o.Views,
		WatchTimeMinutes:  m.WatchTimeMinutes - o.WatchTimeMinutes,
		SubscribersGained: m.SubscribersGained - o.SubscribersGained,
		EstimatedRevenue:  addRevenue(m.EstimatedRevenue, neg),
	}
}

func addRevenue(a, b *float64) *float64 {
	if a == nil || b == nil {
		return nil
	}
	return Float(*a + *b)
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

// VideoMetric is one video's analytics for one reporting month.
type VideoMetric struct {
	VideoID     string    `json:"video_id"`
	Title       string    `json:"title"`
	PublishedAt time.Time `json:"published_at"`
	Metrics
}

// URL returns the watch page for the video.
func (v VideoMetric) URL() string {
	return "https://www.youtube.com/watch?v=" + v.VideoID
}
