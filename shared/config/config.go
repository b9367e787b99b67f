package config

import (
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	sheetURLPrefix = "https://docs.google.com/spreadsheets/d/"

	// MaxTrendMonths is the largest number of prior months a trend may look back.
	MaxTrendMonths = 12
)

var sheetIDPattern = regexp.MustCompile(`/d/([a-zA-Z0-9-_]+)`)

type Config struct {
	YouTube    YouTubeConfig    `yaml:"youtube"`
	Report     ReportConfig     `yaml:"report"`
	AI         AIConfig         `yaml:"ai"`
	Email      EmailConfig      `yaml:"email"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Log        LogConfig        `yaml:"log"`
	Schedule   string           `yaml:"schedule" env:"REPORT_SCHEDULE"`
}

type YouTubeConfig struct {
	ClientID        string        `yaml:"client_id" env:"GOOGLE_CLIENT_ID"`
	ClientSecret    string        `yaml:"client_secret" env:"GOOGLE_CLIENT_SECRET"`
	CredentialsFile string        `yaml:"credentials_file" env:"GOOGLE_CREDENTIALS_FILE"`
	TokenFile       string        `yaml:"token_file" env:"GOOGLE_TOKEN_FILE"`
	ChannelID       string        `yaml:"channel_id" env:"YOUTUBE_CHANNEL_ID"`
	QuotaDelay      time.Duration `yaml:"quota_delay" env:"YOUTUBE_QUOTA_DELAY"`
	MaxVideos       int           `yaml:"max_videos" env:"YOUTUBE_MAX_VIDEOS"`
	SkipRevenue     bool          `yaml:"skip_revenue" env:"YOUTUBE_SKIP_REVENUE"`
}

type ReportConfig struct {
	SheetURL    string `yaml:"sheet_url" env:"REPORT_SHEET_URL"`
	TrendMonths int    `yaml:"trend_months" env:"REPORT_TREND_MONTHS"`
	TrendsTab   string `yaml:"trends_tab"`
	ArchiveDir  string `yaml:"archive_dir" env:"REPORT_ARCHIVE_DIR"`
}

type AIConfig struct {
	Enabled      bool   `yaml:"enabled" env:"AI_INSIGHTS_ENABLED"`
	GeminiAPIKey string `yaml:"gemini_api_key" env:"GEMINI_API_KEY"`
	Model        string `yaml:"model"`
}

type EmailConfig struct {
	SMTPServer string `yaml:"smtp_server"`
	SMTPPort   int    `yaml:"smtp_port"`
	Username   string `yaml:"username" env:"EMAIL_USERNAME"`
	Password   string `yaml:"password" env:"EMAIL_PASSWORD"`
	FromEmail  string `yaml:"from_email"`
	ToEmail    string `yaml:"to_email"`
}

// Enabled reports whether a notification email should be sent after each run.
func (e EmailConfig) Enabled() bool {
	return e.SMTPServer != "" && e.ToEmail != ""
}

type MonitoringConfig struct {
	HealthPort int `yaml:"health_port" env:"HEALTH_PORT"`
}

type LogConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL"`
	File  string `yaml:"file" env:"LOG_FILE"`
	Debug bool   `yaml:"debug"`
}

// Override adjusts a loaded config before validation, e.g. from command-line flags.
type Override func(*Config)

// Load reads the YAML config, applies environment variables (including a .env file), then
// overrides, fills defaults and validates. path falls back to $CONFIG_FILE and then
// config.yaml; only the implicit config.yaml may be absent.
func Load(path string, overrides ...Override) (*Config, error) {
	_ = godotenv.Load()

	explicit := path != ""
	if !explicit {
		path = os.Getenv("CONFIG_FILE")
		explicit = path != ""
	}
	if path == "" {
		path = "config.yaml"
	}

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, errors.Wrapf(err, "failed to parse config file %s", path)
		}
	case os.IsNotExist(err) && !explicit:
		// Flags and environment carry everything for one-off runs.
	default:
		return nil, errors.Wrapf(err, "failed to read config file %s", path)
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse environment")
	}

	for _, o := range overrides {
		o(&cfg)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.YouTube.TokenFile == "" {
		c.YouTube.TokenFile = "token.json"
	}
	if c.YouTube.QuotaDelay == 0 {
		c.YouTube.QuotaDelay = time.Second
	}
	if c.YouTube.MaxVideos == 0 {
		c.YouTube.MaxVideos = 1000
	}
	if c.Report.TrendMonths == 0 {
		c.Report.TrendMonths = MaxTrendMonths
	}
	if c.Report.TrendsTab == "" {
		c.Report.TrendsTab = "Monthly Trends"
	}
	if c.Report.ArchiveDir == "" {
		c.Report.ArchiveDir = "data"
	}
	if c.AI.Model == "" {
		c.AI.Model = "gemini-2.5-flash"
	}
	if c.Email.SMTPPort == 0 {
		c.Email.SMTPPort = 587
	}
	if c.Monitoring.HealthPort == 0 {
		c.Monitoring.HealthPort = 8080
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.File == "" {
		c.Log.File = "youtube_analytics.log"
	}
	if c.Schedule == "" {
		c.Schedule = "0 0 6 3 * *" // 06:00 on the 3rd, once last month's numbers settle
	}
}

func (c *Config) validate() error {
	if c.YouTube.ChannelID == "" {
		return errors.New("YouTube channel ID is required (set --channel_id, YOUTUBE_CHANNEL_ID or youtube.channel_id)")
	}
	if c.YouTube.CredentialsFile != "" {
		if _, err := os.Stat(c.YouTube.CredentialsFile); err != nil {
			return errors.Errorf("credentials file not found: %s", c.YouTube.CredentialsFile)
		}
	} else if c.YouTube.ClientID == "" || c.YouTube.ClientSecret == "" {
		return errors.New("OAuth credentials are required (set --credentials, or GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET)")
	}
	if _, err := SheetID(c.Report.SheetURL); err != nil {
		return err
	}
	if c.Report.TrendMonths < 0 || c.Report.TrendMonths > MaxTrendMonths {
		return errors.Errorf("report.trend_months must be between 0 and %d, got %d", MaxTrendMonths, c.Report.TrendMonths)
	}
	if c.YouTube.MaxVideos < 0 {
		return errors.Errorf("youtube.max_videos must not be negative, got %d", c.YouTube.MaxVideos)
	}
	if c.AI.Enabled && c.AI.GeminiAPIKey == "" {
		return errors.New("Gemini API key is required when AI insights are enabled (set GEMINI_API_KEY or ai.gemini_api_key)")
	}
	if c.Email.Enabled() {
		if c.Email.Username == "" {
			return errors.New("Email username is required (set EMAIL_USERNAME or email.username)")
		}
		if c.Email.Password == "" {
			return errors.New("Email password is required (set EMAIL_PASSWORD or email.password)")
		}
	}
	return nil
}

// SheetID extracts the spreadsheet ID from a Google Sheets URL.
func SheetID(sheetURL string) (string, error) {
	if !strings.HasPrefix(sheetURL, sheetURLPrefix) {
		return "", errors.Errorf("sheet URL must be a valid Google Sheets URL starting with %s", sheetURLPrefix)
	}
	matches := sheetIDPattern.FindStringSubmatch(sheetURL)
	if matches == nil {
		return "", errors.Errorf("invalid Google Sheet URL: %s", sheetURL)
	}
	return matches[1], nil
}
