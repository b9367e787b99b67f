package email

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"yt-monthly-report/internal/models"
	"yt-monthly-report/shared/config"
)

// MonthlySummary is everything the notification email shows about one run.
type MonthlySummary struct {
	Report      *models.MonthlyReport
	Trend       *models.Trend
	Insights    *models.Insights
	SheetURL    string
	GeneratedAt time.Time
}

// ChangeRow is one series' latest month-over-month change.
type ChangeRow struct {
	Category models.Category
	Metric   models.MetricName
	Value    *float64
	Change   *float64
}

// Changes lists each trend series' value and change for the report month.
func (s *MonthlySummary) Changes() []ChangeRow {
	if s.Trend == nil || s.Trend.Len() == 0 {
		return nil
	}
	last := s.Trend.Len() - 1
	rows := make([]ChangeRow, 0, len(s.Trend.Series))
	for _, series := range s.Trend.Series {
		r := series.Rows[last]
		rows = append(rows, ChangeRow{Category: series.Category, Metric: series.Metric, Value: r.Value, Change: r.PercentChange})
	}
	return rows
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type Sender struct {
	config *config.EmailConfig
	send   sendFunc
}

func NewSender(cfg *config.EmailConfig) *Sender {
	return &Sender{
		config: cfg,
		send:   smtp.SendMail,
	}
}

// SendMonthlySummary emails the month's totals, trend changes and a link to the spreadsheet.
func (s *Sender) SendMonthlySummary(summary *MonthlySummary) error {
	if summary == nil || summary.Report == nil {
		return errors.New("summary cannot be nil")
	}

	subject := fmt.Sprintf("YouTube Monthly Report - %s (%s views)",
		summary.Report.Month, formatCount(summary.Report.ChannelTotal().Views))

	body, err := generateEmailBody(summary)
	if err != nil {
		return errors.Wrap(err, "failed to generate email body")
	}

	return s.SendHTML(subject, body)
}

// SendHTML sends an email with custom HTML content
func (s *Sender) SendHTML(subject, htmlBody string) error {
	auth := smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.SMTPServer)

	to := []string{s.config.ToEmail}
	msg := []byte(fmt.Sprintf(`To: %s
From: %s
Subject: %s
MIME-Version: 1.0
Content-Type: text/html; charset=UTF-8

%s`, s.config.ToEmail, s.config.FromEmail, subject, htmlBody))

	addr := fmt.Sprintf("%s:%d", s.config.SMTPServer, s.config.SMTPPort)
	return errors.Wrap(s.send(addr, auth, s.config.FromEmail, to, msg), "failed to send email")
}

// formatCount renders n with thousands separators.
func formatCount(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

func formatMoney(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("$%.2f", *v)
}

func formatValue(metric models.MetricName, v *float64) string {
	if v == nil {
		return "n/a"
	}
	if metric == models.MetricRevenue {
		return formatMoney(v)
	}
	return formatCount(int64(*v))
}

func formatChange(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%+.1f%%", *v)
}

var emailTemplate = template.Must(template.New("email").Funcs(template.FuncMap{
	"count":  formatCount,
	"money":  formatMoney,
	"value":  formatValue,
	"change": formatChange,
	"up": func(v *float64) bool {
		return v != nil && *v > 0
	},
	"down": func(v *float64) bool {
		return v != nil && *v < 0
	},
}).Parse(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>YouTube Monthly Report</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 800px; margin: 0 auto; padding: 20px; }
        .header { background-color: #FF0000; color: white; padding: 20px; border-radius: 8px; margin-bottom: 20px; text-align: center; }
        .summary { background-color: #f8f9fa; padding: 15px; border-radius: 8px; margin-bottom: 20px; }
        .insights { background-color: #E8F5E8; padding: 15px; border-radius: 8px; margin-bottom: 20px; border-left: 4px solid #4CAF50; }
        .metric { display: inline-block; margin: 10px 15px 10px 0; }
        .metric-label { font-weight: bold; color: #666; }
        .metric-value { font-size: 18px; color: #2196F3; }
        table { border-collapse: collapse; width: 100%; margin-bottom: 20px; }
        th, td { text-align: left; padding: 6px 8px; border-bottom: 1px solid #ddd; }
        .up { color: #4CAF50; font-weight: bold; }
        .down { color: #F44336; font-weight: bold; }
        .footer { text-align: center; color: #666; font-size: 12px; margin-top: 30px; border-top: 1px solid #ddd; padding-top: 15px; }
    </style>
</head>
<body>
    <div class="header">
        <h1>📊 YouTube Monthly Report</h1>
        <h2>{{.Report.Month}}</h2>
        <p>Channel {{.Report.ChannelID}}</p>
    </div>

    {{with .Report.ChannelTotal}}
    <div class="summary">
        <h3>Channel Totals</h3>
        <div class="metric"><div class="metric-label">Views</div><div class="metric-value">{{count .Views}}</div></div>
        <div class="metric"><div class="metric-label">Watch Time (minutes)</div><div class="metric-value">{{count .WatchTimeMinutes}}</div></div>
        <div class="metric"><div class="metric-label">Subscribers Gained</div><div class="metric-value">{{count .SubscribersGained}}</div></div>
        <div class="metric"><div class="metric-label">Estimated Revenue</div><div class="metric-value">{{money .EstimatedRevenue}}</div></div>
    </div>
    {{end}}

    {{if .Insights}}
    <div class="insights">
        <h3>💡 {{.Insights.Headline}}</h3>
        {{if .Insights.Highlights}}<ul>{{range .Insights.Highlights}}<li>{{.}}</li>{{end}}</ul>{{end}}
        {{if .Insights.Concerns}}<p><strong>Watch out:</strong></p><ul>{{range .Insights.Concerns}}<li>{{.}}</li>{{end}}</ul>{{end}}
    </div>
    {{end}}

    <h3>🎬 New Videos ({{len .Report.NewVideos}})</h3>
    {{if .Report.NewVideos}}
    <table>
        <tr><th>Title</th><th>Published</th><th>Views</th><th>Watch Time</th><th>Revenue</th></tr>
        {{range .Report.NewVideos}}
        <tr>
            <td><a href="{{.URL}}">{{if .Title}}{{.Title}}{{else}}{{.VideoID}}{{end}}</a></td>
            <td>{{.PublishedAt.Format "Jan 2"}}</td>
            <td>{{count .Views}}</td>
            <td>{{count .WatchTimeMinutes}}</td>
            <td>{{money .EstimatedRevenue}}</td>
        </tr>
        {{end}}
    </table>
    {{else}}
    <p>No videos were published this month.</p>
    {{end}}

    <p><strong>Back catalog:</strong> {{.Report.BackCatalog.VideoCount}} videos, {{count .Report.BackCatalog.Views}} views</p>

    {{with .Changes}}
    <h3>📈 Month-over-Month</h3>
    <table>
        <tr><th>Category</th><th>Metric</th><th>Value</th><th>Change</th></tr>
        {{range .}}
        <tr>
            <td>{{.Category}}</td>
            <td>{{.Metric}}</td>
            <td>{{value .Metric .Value}}</td>
            <td{{if up .Change}} class="up"{{else if down .Change}} class="down"{{end}}>{{change .Change}}</td>
        </tr>
        {{end}}
    </table>
    {{end}}

    <div class="footer">
        {{if .SheetURL}}<p><a href="{{.SheetURL}}" style="color: #2196F3; text-decoration: none;">Open the full report in Google Sheets</a></p>{{end}}
        <p>Generated by YouTube Monthly Report • {{.GeneratedAt.Format "January 2, 2006 at 3:04 PM MST"}}</p>
    </div>
</body>
</html>
`))

func generateEmailBody(summary *MonthlySummary) (string, error) {
	var buf bytes.Buffer
	if err := emailTemplate.Execute(&buf, summary); err != nil {
		return "", err
	}
	return buf.String(), nil
}
