package models

// BackCatalogSummary is the rolled-up performance of every video not published in the report month.
type BackCatalogSummary struct {
	VideoCount int `json:"video_count"`
	Metrics
}

// MonthlyReport is the aggregation of new vs. back-catalog performance for one month.
type MonthlyReport struct {
	Month            Month              `json:"month"`
	ChannelID        string             `json:"channel_id"`
	NewVideos        []VideoMetric      `json:"new_videos"`
	BackCatalog      BackCatalogSummary `json:"back_catalog"`
	RevenueAvailable bool               `json:"revenue_available"`
}

// NewVideosTotal sums the new-video rows. Revenue is nil when the channel revenue was
// unavailable or any new video is missing it.
func (r *MonthlyReport) NewVideosTotal() Metrics {
	total := Metrics{}
	if r.RevenueAvailable {
		total.EstimatedRevenue = Float(0)
	}
	for _, v := range r.NewVideos {
		total = total.Add(v.Metrics)
	}
	return total
}

// ChannelTotal returns the channel-wide totals for the month.
func (r *MonthlyReport) ChannelTotal() Metrics {
	return r.NewVideosTotal().Add(r.BackCatalog.Metrics)
}
