package models

// Category names the row group a trend series is computed over.
type Category string

const (
	CategoryNewVideos   Category = "New Videos"
	CategoryBackCatalog Category = "Back Catalog"
)

// MetricName names one tracked metric.
type MetricName string

const (
	MetricViews       MetricName = "Views"
	MetricWatchTime   MetricName = "Watch Time (minutes)"
	MetricSubscribers MetricName = "Subscribers Gained"
	MetricRevenue     MetricName = "Estimated Revenue"
)

// Categories and TrackedMetrics fix the order series appear in.
var (
	Categories     = []Category{CategoryNewVideos, CategoryBackCatalog}
	TrackedMetrics = []MetricName{MetricViews, MetricWatchTime, MetricSubscribers, MetricRevenue}
)

// Value extracts the named metric. Unknown names and missing revenue yield nil.
func (m Metrics) Value(name MetricName) *float64 {
	switch name {
	case MetricViews:
		return Float(float64(m.Views))
	case MetricWatchTime:
		return Float(float64(m.WatchTimeMinutes))
	case MetricSubscribers:
		return Float(float64(m.SubscribersGained))
	case MetricRevenue:
		if m.EstimatedRevenue == nil {
			return nil
		}
		return Float(*m.EstimatedRevenue)
	}
	return nil
}

// TrendRow is one metric's value and month-over-month change for one month.
type TrendRow struct {
	Month         Month      `json:"month"`
	Category      Category   `json:"category"`
	Metric        MetricName `json:"metric"`
	Value         *float64   `json:"value,omitempty"`
	PercentChange *float64   `json:"percent_change,omitempty"`
}

// TrendSeries holds one TrendRow per trend month for a (category, metric) pair.
type TrendSeries struct {
	Category Category   `json:"category"`
	Metric   MetricName `json:"metric"`
	Rows     []TrendRow `json:"rows"`
}

// Trend is the rolling month-over-month table, oldest month first.
type Trend struct {
	Months []Month       `json:"months"`
	Series []TrendSeries `json:"series"`
}

// Len returns the number of months covered.
func (t *Trend) Len() int {
	return len(t.Months)
}

// Rows flattens the trend month by month, oldest first.
func (t *Trend) Rows() []TrendRow {
	rows := make([]TrendRow, 0, len(t.Months)*len(t.Series))
	for i := range t.Months {
		for _, s := range t.Series {
			rows = append(rows, s.Rows[i])
		}
	}
	return rows
}

// Find returns the series for category and metric, or nil.
func (t *Trend) Find(category Category, metric MetricName) *TrendSeries {
	for i := range t.Series {
		if t.Series[i].Category == category && t.Series[i].Metric == metric {
			return &t.Series[i]
		}
	}
	return nil
}
