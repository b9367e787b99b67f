package monthlyreport

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"yt-monthly-report/agents/monthly-report/sheets"
	"yt-monthly-report/agents/monthly-report/youtube"
	"yt-monthly-report/internal/analytics"
	"yt-monthly-report/internal/models"
	"yt-monthly-report/shared/ai"
	"yt-monthly-report/shared/auth"
	"yt-monthly-report/shared/config"
	"yt-monthly-report/shared/email"
	"yt-monthly-report/shared/scheduler"
	"yt-monthly-report/shared/storage"
)

// Fetcher pulls one month of analytics for a channel.
type Fetcher interface {
	FetchMonth(ctx context.Context, channelID string, month models.Month) (*youtube.MonthData, error)
}

// ReportStore persists reports and trends and reads earlier months back.
type ReportStore interface {
	WriteMonthlyReport(ctx context.Context, report *models.MonthlyReport, insights string) error
	ReadPriorReports(ctx context.Context, months []models.Month) ([]*models.MonthlyReport, error)
	WriteTrends(ctx context.Context, trend *models.Trend) error
	URL() string
}

// Archive is the local fallback for prior months.
type Archive interface {
	Save(report *models.MonthlyReport) error
	Load(channelID string, months []models.Month) []*models.MonthlyReport
	Count() int
}

type InsightGenerator interface {
	MonthlyInsights(ctx context.Context, report *models.MonthlyReport, trend *models.Trend) (*models.Insights, error)
}

type Notifier interface {
	SendMonthlySummary(summary *email.MonthlySummary) error
}

// ReportMetrics represents the metrics collected during one report run
type ReportMetrics struct {
	Month             string `json:"month"`
	NewVideos         int    `json:"new_videos"`
	BackCatalogVideos int    `json:"back_catalog_videos"`
	PriorMonths       int    `json:"prior_months"`
	RevenueAvailable  bool   `json:"revenue_available"`
	InsightsAdded     bool   `json:"insights_added"`
	Archived          bool   `json:"archived"`
	EmailSent         bool   `json:"email_sent"`
}

// GetSummary implements the scheduler.Metrics interface
func (m ReportMetrics) GetSummary() string {
	summary := fmt.Sprintf("%s: %d new videos, %d back catalog videos, trend over %d months",
		m.Month, m.NewVideos, m.BackCatalogVideos, m.PriorMonths+1)
	if !m.RevenueAvailable {
		summary += ", revenue unavailable"
	}
	if m.EmailSent {
		summary += ", email sent"
	}
	return summary
}

// MonthlyReportAgent implements the scheduler.Agent interface
type MonthlyReportAgent struct {
	config *config.Config
	month  *models.Month
	now    func() time.Time

	fetcher  Fetcher
	store    ReportStore
	archive  Archive
	insights InsightGenerator
	notifier Notifier
}

// NewMonthlyReportAgent creates an agent for month, or for the previous calendar month at run
// time when month is nil.
func NewMonthlyReportAgent(cfg *config.Config, month *models.Month) *MonthlyReportAgent {
	return &MonthlyReportAgent{
		config: cfg,
		month:  month,
		now:    time.Now,
	}
}

func (a *MonthlyReportAgent) Name() string {
	return "YouTube Monthly Report"
}

func (a *MonthlyReportAgent) Initialize() error {
	log.Infof("Initializing %s...", a.Name())
	ctx := context.Background()

	if a.fetcher == nil || a.store == nil {
		httpClient, err := auth.NewHTTPClient(ctx, &a.config.YouTube)
		if err != nil {
			return errors.Wrap(err, "failed to authenticate with Google")
		}

		if a.fetcher == nil {
			client, err := youtube.NewClient(ctx, httpClient, &a.config.YouTube)
			if err != nil {
				return errors.Wrap(err, "failed to create YouTube client")
			}
			a.fetcher = client
			log.Info("YouTube client initialized")
		}

		if a.store == nil {
			sheetID, err := config.SheetID(a.config.Report.SheetURL)
			if err != nil {
				return err
			}
			writer, err := sheets.NewWriter(ctx, httpClient, sheetID, a.config.Report.TrendsTab)
			if err != nil {
				return errors.Wrap(err, "failed to create sheet writer")
			}
			a.store = writer
			log.Info("Sheet writer initialized")
		}
	}

	if a.archive == nil {
		archive, err := storage.NewReportArchive(a.config.Report.ArchiveDir, analytics.MaxPriorMonths+1)
		if err != nil {
			return errors.Wrap(err, "failed to open report archive")
		}
		a.archive = archive
		log.Infof("Report archive initialized (%d months archived)", archive.Count())
	}

	if a.insights == nil && a.config.AI.Enabled {
		analyzer, err := ai.NewAnalyzer(ctx, &a.config.AI, nil, "")
		if err != nil {
			return errors.Wrap(err, "failed to create AI analyzer")
		}
		a.insights = analyzer
		log.Info("AI analyzer initialized")
	}

	if a.notifier == nil && a.config.Email.Enabled() {
		a.notifier = email.NewSender(&a.config.Email)
		log.Info("Email sender initialized")
	}

	return nil
}

// TargetMonth is the month this run reports on.
func (a *MonthlyReportAgent) TargetMonth() models.Month {
	if a.month != nil {
		return *a.month
	}
	return models.MonthOf(a.now()).Prev()
}

func (a *MonthlyReportAgent) RunOnce(ctx context.Context, events *scheduler.AgentEvents) error {
	startTime := time.Now()
	month := a.TargetMonth()
	channelID := a.config.YouTube.ChannelID

	logger := log.WithFields(log.Fields{
		"run_id":  uuid.New().String(),
		"month":   month.Key(),
		"channel": channelID,
	})
	metrics := ReportMetrics{Month: month.String()}

	critical := func(err error) error {
		if events != nil && events.OnCriticalFailure != nil {
			events.OnCriticalFailure(err, time.Since(startTime))
		}
		return err
	}
	partial := func(err error) {
		if events != nil && events.OnPartialFailure != nil {
			events.OnPartialFailure(err, time.Since(startTime))
		}
		logger.Warnf("Warning: %v", err)
	}

	start, end := month.DateRange()
	logger.Infof("Fetching analytics for %s to %s...", start, end)
	data, err := a.fetcher.FetchMonth(ctx, channelID, month)
	if err != nil {
		return critical(errors.Wrapf(err, "failed to fetch analytics for %s", month))
	}

	report, err := analytics.Aggregate(month, channelID, data.Records, data.Totals)
	if err != nil {
		return critical(errors.Wrap(err, "failed to aggregate analytics"))
	}
	metrics.NewVideos = len(report.NewVideos)
	metrics.BackCatalogVideos = report.BackCatalog.VideoCount
	metrics.RevenueAvailable = report.RevenueAvailable
	if !report.RevenueAvailable {
		logger.Warn("Revenue data unavailable for this channel; revenue columns left empty")
	}
	logger.Infof("Aggregated %d new videos and %d back catalog videos", metrics.NewVideos, metrics.BackCatalogVideos)

	prior := a.priorReports(ctx, channelID, month, logger, partial)
	metrics.PriorMonths = len(prior)

	trend, err := analytics.BuildTrend(report, prior)
	if err != nil {
		return critical(errors.Wrap(err, "failed to build trend"))
	}

	var insights *models.Insights
	if a.insights != nil {
		logger.Info("Generating insights...")
		insights, err = a.insights.MonthlyInsights(ctx, report, trend)
		if err != nil {
			partial(errors.Wrap(err, "failed to generate insights"))
			insights = nil
		} else {
			metrics.InsightsAdded = true
		}
	}

	if err := a.store.WriteMonthlyReport(ctx, report, insights.Text()); err != nil {
		return critical(errors.Wrap(err, "failed to write monthly report"))
	}
	if err := a.store.WriteTrends(ctx, trend); err != nil {
		return critical(errors.Wrap(err, "failed to write trends"))
	}

	if err := a.archive.Save(report); err != nil {
		partial(errors.Wrap(err, "failed to archive report"))
	} else {
		metrics.Archived = true
	}

	if a.notifier != nil {
		summary := &email.MonthlySummary{
			Report:      report,
			Trend:       trend,
			Insights:    insights,
			SheetURL:    a.store.URL(),
			GeneratedAt: a.now(),
		}
		if err := a.notifier.SendMonthlySummary(summary); err != nil {
			partial(errors.Wrap(err, "failed to send email summary"))
		} else {
			metrics.EmailSent = true
		}
	}

	if events != nil && events.OnSuccess != nil {
		events.OnSuccess(metrics, time.Since(startTime))
	}

	logger.Infof("Report complete: %s", a.store.URL())
	return nil
}

// priorReports collects up to config.Report.TrendMonths of channelID's months before month,
// preferring the spreadsheet and filling gaps from the archive. Read failures degrade to the
// archive. Tabs written for another channel are ignored.
func (a *MonthlyReportAgent) priorReports(ctx context.Context, channelID string, month models.Month, logger *log.Entry, partial func(error)) []*models.MonthlyReport {
	months := month.Trailing(a.config.Report.TrendMonths)
	if len(months) == 0 {
		return nil
	}

	fromSheet, err := a.store.ReadPriorReports(ctx, months)
	if err != nil {
		partial(errors.Wrap(err, "failed to read prior months from the spreadsheet"))
		fromSheet = nil
	}

	found := make(map[models.Month]bool, len(fromSheet))
	reports := make([]*models.MonthlyReport, 0, len(months))
	fromSheetCount := 0
	for _, r := range fromSheet {
		if r.ChannelID != "" && r.ChannelID != channelID {
			logger.Warnf("Ignoring tab %s: it belongs to channel %s", r.Month, r.ChannelID)
			continue
		}
		if !found[r.Month] {
			fromSheetCount++
			found[r.Month] = true
			reports = append(reports, r)
		}
	}

	var missing []models.Month
	for _, m := range months {
		if !found[m] {
			missing = append(missing, m)
		}
	}
	archived := a.archive.Load(channelID, missing)
	reports = append(reports, archived...)

	sort.Slice(reports, func(i, j int) bool {
		return reports[i].Month.Before(reports[j].Month)
	})

	logger.Infof("Found %d prior months (%d from the spreadsheet, %d from the archive)",
		len(reports), fromSheetCount, len(archived))
	return reports
}
