package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"google.golang.org/genai"

	"yt-monthly-report/internal/models"
	"yt-monthly-report/shared/config"
)

const (
	topVideosInPrompt = 5
	maxTitleLength    = 80
)

type Analyzer struct {
	client *genai.Client
	model  string
}

// NewAnalyzer creates a Gemini client. httpClient may be nil; baseURL overrides the API endpoint
// when set.
func NewAnalyzer(ctx context.Context, cfg *config.AIConfig, httpClient *http.Client, baseURL string) (*Analyzer, error) {
	clientConfig := &genai.ClientConfig{
		APIKey:     cfg.GeminiAPIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if baseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Gemini client")
	}

	return &Analyzer{client: client, model: cfg.Model}, nil
}

// MonthlyInsights asks the model for a headline plus highlights and concerns about the month.
func (a *Analyzer) MonthlyInsights(ctx context.Context, report *models.MonthlyReport, trend *models.Trend) (*models.Insights, error) {
	if report == nil {
		return nil, errors.New("report cannot be nil")
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{genai.NewPartFromText(buildInsightsPrompt(report, trend))}, genai.RoleUser),
	}

	result, err := a.client.Models.GenerateContent(ctx, a.model, contents, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to generate insights for %s", report.Month)
	}

	responseText := result.Text()
	if responseText == "" {
		return nil, errors.Errorf("empty insights response for %s", report.Month)
	}

	return parseInsightsResponse(responseText)
}

func buildInsightsPrompt(report *models.MonthlyReport, trend *models.Trend) string {
	newTotal := report.NewVideosTotal()
	channel := report.ChannelTotal()

	var b strings.Builder
	fmt.Fprintf(&b, `You are an analyst summarizing a YouTube channel's monthly performance for its owner.

MONTH: %s

CHANNEL TOTALS:
%s

NEW VIDEOS PUBLISHED THIS MONTH (%d):
%s

BACK CATALOG (%d older videos):
%s
`,
		report.Month,
		describeMetrics(channel),
		len(report.NewVideos),
		describeMetrics(newTotal),
		report.BackCatalog.VideoCount,
		describeMetrics(report.BackCatalog.Metrics),
	)

	if top := topVideos(report.NewVideos, topVideosInPrompt); len(top) > 0 {
		b.WriteString("\nTOP NEW VIDEOS BY VIEWS:\n")
		for _, v := range top {
			fmt.Fprintf(&b, "- %s (published %s): %d views, %d watch minutes\n",
				truncateString(v.Title, maxTitleLength), v.PublishedAt.Format("2006-01-02"), v.Views, v.WatchTimeMinutes)
		}
	}

	if changes := latestChanges(trend); changes != "" {
		b.WriteString("\nCHANGE VERSUS PREVIOUS MONTH:\n")
		b.WriteString(changes)
	}

	b.WriteString(`
INSTRUCTIONS:
1. Compare how new uploads performed against the back catalog
2. Point out notable month-over-month changes, if any are listed
3. Keep each point to one sentence and quote concrete numbers
4. Do not speculate about causes that the data does not show

Please provide your analysis in the following JSON format:
{
  "headline": "One sentence summarizing the month",
  "highlights": ["Up to three positive observations"],
  "concerns": ["Up to three observations that need attention"]
}`)

	return b.String()
}

func describeMetrics(m models.Metrics) string {
	revenue := "not available"
	if m.EstimatedRevenue != nil {
		revenue = fmt.Sprintf("$%.2f", *m.EstimatedRevenue)
	}
	return fmt.Sprintf("Views: %d\nWatch time (minutes): %d\nSubscribers gained: %d\nEstimated revenue: %s",
		m.Views, m.WatchTimeMinutes, m.SubscribersGained, revenue)
}

func topVideos(videos []models.VideoMetric, n int) []models.VideoMetric {
	sorted := make([]models.VideoMetric, len(videos))
	copy(sorted, videos)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Views > sorted[j].Views })
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// latestChanges lists the percent changes of the trend's last month.
func latestChanges(trend *models.Trend) string {
	if trend == nil || trend.Len() < 2 {
		return ""
	}

	var b strings.Builder
	last := trend.Len() - 1
	for _, s := range trend.Series {
		change := s.Rows[last].PercentChange
		if change == nil {
			continue
		}
		fmt.Fprintf(&b, "- %s %s: %+.1f%%\n", s.Category, s.Metric, *change)
	}
	return b.String()
}

func parseInsightsResponse(response string) (*models.Insights, error) {
	startIdx := strings.Index(response, "{")
	endIdx := strings.LastIndex(response, "}")

	if startIdx == -1 || endIdx <= startIdx {
		// Plain prose is still usable as a headline.
		log.Warn("Insights response was not JSON, using it verbatim")
		return &models.Insights{Headline: strings.TrimSpace(response)}, nil
	}

	var insights models.Insights
	if err := json.Unmarshal([]byte(response[startIdx:endIdx+1]), &insights); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal insights JSON %q", response[startIdx:endIdx+1])
	}
	if strings.TrimSpace(insights.Headline) == "" {
		return nil, errors.New("insights headline is required but was empty")
	}

	return &insights, nil
}

// truncateString shortens s to maxLength runes.
func truncateString(s string, maxLength int) string {
	runes := []rune(s)
	if len(runes) <= maxLength {
		return s
	}
	return string(runes[:maxLength]) + "..."
}
