package youtube

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
	"google.golang.org/api/youtubeanalytics/v2"

	"yt-monthly-report/internal/analytics"
	"yt-monthly-report/internal/models"
	"yt-monthly-report/shared/config"
	"yt-monthly-report/shared/retry"
)

const (
	// analyticsPageSize is the largest page the Analytics API allows for the video dimension.
	analyticsPageSize = 200
	// dataBatchSize is the largest ID list videos.list accepts.
	dataBatchSize = 50
	// videoFilterBatchSize bounds the IDs in one video== analytics filter.
	videoFilterBatchSize = 200
	// maxUploadPages bounds the uploads playlist walk.
	maxUploadPages = 40

	metadataTTL = 24 * time.Hour
)

const (
	metricViews       = "views"
	metricWatchTime   = "estimatedMinutesWatched"
	metricSubscribers = "subscribersGained"
	metricRevenue     = "estimatedRevenue"
	dimensionVideo    = "video"
)

// MonthData is everything fetched for one channel and month.
type MonthData struct {
	Records      []models.VideoMetric
	Totals       *models.Metrics
	ContentOwner string
}

// Client wraps the YouTube Data and Analytics APIs.
type Client struct {
	data      *youtube.Service
	analytics *youtubeanalytics.Service
	config    *config.YouTubeConfig
	limiter   *rate.Limiter
	retry     retry.Config
	metadata  *cache.Cache
}

type videoMeta struct {
	Title       string
	PublishedAt time.Time
}

// NewClient builds both services on the authenticated httpClient. Extra options are appended,
// which lets tests point the services at a local endpoint.
func NewClient(ctx context.Context, httpClient *http.Client, cfg *config.YouTubeConfig, opts ...option.ClientOption) (*Client, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)

	data, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create YouTube service")
	}

	analyticsService, err := youtubeanalytics.NewService(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create YouTube Analytics service")
	}

	limit := rate.Inf
	if cfg.QuotaDelay > 0 {
		limit = rate.Every(cfg.QuotaDelay)
	}

	return &Client{
		data:      data,
		analytics: analyticsService,
		config:    cfg,
		limiter:   rate.NewLimiter(limit, 1),
		retry:     retry.DefaultConfig(),
		metadata:  cache.New(metadataTTL, time.Hour),
	}, nil
}

// call paces fn through the quota limiter and retries rate-limit and server errors.
func (c *Client) call(ctx context.Context, fn func(context.Context) error) error {
	return retry.Do(ctx, c.retry, retry.IsRetryable, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		return fn(ctx)
	})
}

// FetchMonth collects channel totals and per-video metrics for month. It returns an error
// wrapping analytics.ErrDataUnavailable when the Analytics API has no rows for the month.
func (c *Client) FetchMonth(ctx context.Context, channelID string, month models.Month) (*MonthData, error) {
	owner := c.contentOwner(ctx, channelID)
	q := newReportQuery(channelID, owner, month)

	totals, withRevenue, err := c.channelTotals(ctx, q)
	if err != nil {
		return nil, err
	}

	records, err := c.videoMetrics(ctx, q, withRevenue)
	if err != nil {
		return nil, err
	}
	log.Debugf("Fetched analytics for %d videos", len(records))

	uploads, err := c.uploadsInMonth(ctx, channelID, month)
	if err != nil {
		log.Warnf("Could not list uploads for %s, new videos without views may be missing: %v", month, err)
	}

	if missing := missingUploads(records, uploads); len(missing) > 0 {
		extra, err := c.videoMetricsByID(ctx, q, withRevenue, missing)
		if err != nil {
			return nil, err
		}
		log.Debugf("Fetched analytics for %d of %d uploads outside the per-video query", len(extra), len(missing))
		records = append(records, extra...)
	}
	records = mergeUploads(records, uploads, withRevenue)

	if err := c.fillMetadata(ctx, records); err != nil {
		return nil, err
	}

	return &MonthData{
		Records:      records,
		Totals:       totals,
		ContentOwner: owner,
	}, nil
}

// contentOwner returns the CMS content owner linked to the channel, or "" if there is none or
// it could not be read. Revenue for partner channels is only visible through the owner.
func (c *Client) contentOwner(ctx context.Context, channelID string) string {
	var resp *youtube.ChannelListResponse
	err := c.call(ctx, func(ctx context.Context) error {
		var err error
		resp, err = c.data.Channels.List([]string{"contentOwnerDetails"}).Id(channelID).Context(ctx).Do()
		return err
	})
	if err != nil {
		log.Warnf("Error getting content owner ID: %v", err)
		return ""
	}

	if len(resp.Items) > 0 && resp.Items[0].ContentOwnerDetails != nil && resp.Items[0].ContentOwnerDetails.ContentOwner != "" {
		return resp.Items[0].ContentOwnerDetails.ContentOwner
	}

	log.Info("No content owner found for this channel. Revenue metrics may be unavailable.")
	return ""
}

// reportQuery holds the scope of every Analytics query in one run.
// videos, when set, limits a per-video query to those IDs.
type reportQuery struct {
	ids       string
	filters   string
	startDate string
	endDate   string
	videos    []string
}

func (q reportQuery) filter() string {
	if len(q.videos) == 0 {
		return q.filters
	}
	videos := "video==" + strings.Join(q.videos, ",")
	if q.filters == "" {
		return videos
	}
	return videos + ";" + q.filters
}

func newReportQuery(channelID, owner string, month models.Month) reportQuery {
	start, end := month.DateRange()
	q := reportQuery{startDate: start, endDate: end}
	if owner != "" {
		q.ids = "contentOwner==" + owner
		q.filters = "channel==" + channelID
	} else {
		q.ids = "channel==" + channelID
	}
	return q
}

func metricList(withRevenue bool) string {
	metrics := []string{metricViews, metricWatchTime, metricSubscribers}
	if withRevenue {
		metrics = append(metrics, metricRevenue)
	}
	return strings.Join(metrics, ",")
}

func (c *Client) runQuery(ctx context.Context, q reportQuery, withRevenue bool, byVideo bool, startIndex int64) (*youtubeanalytics.QueryResponse, error) {
	var resp *youtubeanalytics.QueryResponse
	err := c.call(ctx, func(ctx context.Context) error {
		call := c.analytics.Reports.Query().
			Ids(q.ids).
			StartDate(q.startDate).
			EndDate(q.endDate).
			Metrics(metricList(withRevenue)).
			Context(ctx)
		if filter := q.filter(); filter != "" {
			call = call.Filters(filter)
		}
		if byVideo {
			call = call.Dimensions(dimensionVideo).
				Sort("-" + metricViews).
				MaxResults(analyticsPageSize).
				StartIndex(startIndex)
		}
		var err error
		resp, err = call.Do()
		return err
	})
	return resp, err
}

// channelTotals fetches the month's channel-wide totals. If revenue is refused the query is
// repeated without it and the second return value is false.
func (c *Client) channelTotals(ctx context.Context, q reportQuery) (*models.Metrics, bool, error) {
	withRevenue := !c.config.SkipRevenue

	resp, err := c.runQuery(ctx, q, withRevenue, false, 0)
	if err != nil && withRevenue && isPermissionDenied(err) {
		log.Warnf("Revenue metrics unavailable for this channel, continuing without them: %v", err)
		withRevenue = false
		resp, err = c.runQuery(ctx, q, false, false, 0)
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "failed to query channel totals")
	}

	if len(resp.Rows) == 0 {
		return nil, false, errors.Wrapf(analytics.ErrDataUnavailable, "no analytics rows between %s and %s", q.startDate, q.endDate)
	}

	_, totals, err := parseRow(resp.ColumnHeaders, resp.Rows[0])
	if err != nil {
		return nil, false, errors.Wrap(err, "failed to parse channel totals")
	}
	return &totals, withRevenue, nil
}

// videoMetrics pages through per-video analytics, most viewed first, up to MaxVideos.
func (c *Client) videoMetrics(ctx context.Context, q reportQuery, withRevenue bool) ([]models.VideoMetric, error) {
	var records []models.VideoMetric

	for startIndex := int64(1); ; startIndex += analyticsPageSize {
		resp, err := c.runQuery(ctx, q, withRevenue, true, startIndex)
		if err != nil {
			return nil, errors.Wrap(err, "failed to query per-video analytics")
		}

		for _, row := range resp.Rows {
			videoID, metrics, err := parseRow(resp.ColumnHeaders, row)
			if err != nil {
				return nil, errors.Wrap(err, "failed to parse per-video analytics")
			}
			records = append(records, models.VideoMetric{VideoID: videoID, Metrics: metrics})
			if c.config.MaxVideos > 0 && len(records) >= c.config.MaxVideos {
				log.Warnf("Stopped at %d videos (youtube.max_videos); uploads from the month are queried separately", len(records))
				return records, nil
			}
		}

		if len(resp.Rows) < analyticsPageSize {
			return records, nil
		}
	}
}

// videoMetricsByID queries analytics for the given videos only. Videos with no row are left out.
func (c *Client) videoMetricsByID(ctx context.Context, q reportQuery, withRevenue bool, videoIDs []string) ([]models.VideoMetric, error) {
	var records []models.VideoMetric

	for i := 0; i < len(videoIDs); i += videoFilterBatchSize {
		end := i + videoFilterBatchSize
		if end > len(videoIDs) {
			end = len(videoIDs)
		}
		batch := q
		batch.videos = videoIDs[i:end]

		resp, err := c.runQuery(ctx, batch, withRevenue, true, 1)
		if err != nil {
			return nil, errors.Wrap(err, "failed to query analytics for uploads")
		}
		for _, row := range resp.Rows {
			videoID, metrics, err := parseRow(resp.ColumnHeaders, row)
			if err != nil {
				return nil, errors.Wrap(err, "failed to parse analytics for uploads")
			}
			records = append(records, models.VideoMetric{VideoID: videoID, Metrics: metrics})
		}
	}
	return records, nil
}

// uploadsInMonth walks the channel's uploads playlist, newest first, and returns the IDs and
// publish times of videos published in month.
func (c *Client) uploadsInMonth(ctx context.Context, channelID string, month models.Month) (map[string]time.Time, error) {
	var channels *youtube.ChannelListResponse
	err := c.call(ctx, func(ctx context.Context) error {
		var err error
		channels, err = c.data.Channels.List([]string{"contentDetails"}).Id(channelID).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get channel details")
	}
	if len(channels.Items) == 0 || channels.Items[0].ContentDetails == nil || channels.Items[0].ContentDetails.RelatedPlaylists == nil {
		return nil, errors.Errorf("channel %s has no uploads playlist", channelID)
	}
	playlistID := channels.Items[0].ContentDetails.RelatedPlaylists.Uploads

	uploads := make(map[string]time.Time)
	pageToken := ""
	for page := 0; page < maxUploadPages; page++ {
		var resp *youtube.PlaylistItemListResponse
		err := c.call(ctx, func(ctx context.Context) error {
			call := c.data.PlaylistItems.List([]string{"contentDetails"}).
				PlaylistId(playlistID).
				MaxResults(dataBatchSize).
				Context(ctx)
			if pageToken != "" {
				call = call.PageToken(pageToken)
			}
			var err error
			resp, err = call.Do()
			return err
		})
		if err != nil {
			return uploads, errors.Wrap(err, "failed to list uploads")
		}

		reachedOlder := false
		for _, item := range resp.Items {
			if item.ContentDetails == nil {
				continue
			}
			publishedAt, err := time.Parse(time.RFC3339, item.ContentDetails.VideoPublishedAt)
			if err != nil {
				continue
			}
			if month.Contains(publishedAt) {
				uploads[item.ContentDetails.VideoId] = publishedAt
			} else if publishedAt.Before(month.Start()) {
				reachedOlder = true
			}
		}

		if reachedOlder || resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}

	return uploads, nil
}

// missingUploads returns the IDs of uploads with no record, sorted.
func missingUploads(records []models.VideoMetric, uploads map[string]time.Time) []string {
	seen := make(map[string]bool, len(records))
	for _, r := range records {
		seen[r.VideoID] = true
	}
	var missing []string
	for id := range uploads {
		if !seen[id] {
			missing = append(missing, id)
		}
	}
	sort.Strings(missing)
	return missing
}

// mergeUploads adds a zero-metric record for every upload the Analytics API had no row for.
func mergeUploads(records []models.VideoMetric, uploads map[string]time.Time, withRevenue bool) []models.VideoMetric {
	seen := make(map[string]bool, len(records))
	for _, r := range records {
		seen[r.VideoID] = true
	}
	for id, publishedAt := range uploads {
		if seen[id] {
			continue
		}
		rec := models.VideoMetric{VideoID: id, PublishedAt: publishedAt}
		if withRevenue {
			rec.EstimatedRevenue = models.Float(0)
		}
		records = append(records, rec)
	}
	return records
}

// fillMetadata sets title and publish time on each record from videos.list, using the cache.
func (c *Client) fillMetadata(ctx context.Context, records []models.VideoMetric) error {
	var missing []string
	for _, r := range records {
		if _, ok := c.metadata.Get(r.VideoID); !ok {
			missing = append(missing, r.VideoID)
		}
	}

	for i := 0; i < len(missing); i += dataBatchSize {
		end := i + dataBatchSize
		if end > len(missing) {
			end = len(missing)
		}
		batch := missing[i:end]

		var resp *youtube.VideoListResponse
		err := c.call(ctx, func(ctx context.Context) error {
			var err error
			resp, err = c.data.Videos.List([]string{"snippet"}).Id(strings.Join(batch, ",")).Context(ctx).Do()
			return err
		})
		if err != nil {
			return errors.Wrap(err, "failed to get video details")
		}

		for _, item := range resp.Items {
			if item.Snippet == nil {
				continue
			}
			meta := videoMeta{Title: item.Snippet.Title}
			if publishedAt, err := time.Parse(time.RFC3339, item.Snippet.PublishedAt); err == nil {
				meta.PublishedAt = publishedAt
			}
			c.metadata.Set(item.Id, meta, cache.DefaultExpiration)
		}
	}

	for i := range records {
		cached, ok := c.metadata.Get(records[i].VideoID)
		if !ok {
			log.Debugf("No metadata for video %s (deleted or private?)", records[i].VideoID)
			continue
		}
		meta := cached.(videoMeta)
		records[i].Title = meta.Title
		if !meta.PublishedAt.IsZero() {
			records[i].PublishedAt = meta.PublishedAt
		}
	}
	return nil
}

// isPermissionDenied reports a 403 that is not a rate limit, which the Analytics API returns
// when the caller may not see monetary metrics.
func isPermissionDenied(err error) bool {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == http.StatusForbidden && !retry.IsRetryable(err)
}
