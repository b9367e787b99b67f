package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	monthlyreport "yt-monthly-report/agents/monthly-report"
	"yt-monthly-report/internal/models"
	"yt-monthly-report/shared/config"
	"yt-monthly-report/shared/logging"
	"yt-monthly-report/shared/scheduler"
)

type options struct {
	configFile  string
	channelID   string
	month       string
	sheetURL    string
	credentials string
	debug       bool
}

// overrides applies only the flags that were given, so config file and environment values
// survive otherwise.
func (o *options) overrides() config.Override {
	return func(cfg *config.Config) {
		if o.channelID != "" {
			cfg.YouTube.ChannelID = o.channelID
		}
		if o.sheetURL != "" {
			cfg.Report.SheetURL = o.sheetURL
		}
		if o.credentials != "" {
			cfg.YouTube.CredentialsFile = o.credentials
		}
		if o.debug {
			cfg.Log.Debug = true
		}
	}
}

// setup loads configuration and logging. The returned cleanup closes the log file.
func (o *options) setup() (*config.Config, func(), error) {
	cfg, err := config.Load(o.configFile, o.overrides())
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to load configuration")
	}

	closer, err := logging.Setup(cfg.Log.Level, cfg.Log.Debug, cfg.Log.File)
	if err != nil {
		log.Warnf("Logging to stdout only: %v", err)
	}
	return cfg, func() { _ = closer.Close() }, nil
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "yt-report",
		Short: "Build a monthly YouTube analytics report in Google Sheets",
		Long: `Fetches a channel's analytics for one month, splits performance between videos
published that month and the back catalog, and writes the month plus a rolling
month-over-month trend with sparklines to a Google Sheet.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var month *models.Month
			if opts.month != "" {
				m, err := models.ParseMonth(opts.month)
				if err != nil {
					return err
				}
				month = &m
			}

			cfg, cleanup, err := opts.setup()
			if err != nil {
				return err
			}
			defer cleanup()

			agent := monthlyreport.NewMonthlyReportAgent(cfg, month)
			if err := agent.Initialize(); err != nil {
				return errors.Wrap(err, "failed to initialize agent")
			}

			log.Infof("Generating report for %s", agent.TargetMonth())
			return scheduler.New(cfg, agent).RunOnce(cmd.Context())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "path to config.yaml (default ./config.yaml or $CONFIG_FILE)")
	flags.StringVar(&opts.channelID, "channel_id", "", "YouTube channel ID")
	flags.StringVar(&opts.sheetURL, "sheet_url", "", "Google Sheets URL to write the report to")
	flags.StringVar(&opts.credentials, "credentials", "", "OAuth client secrets JSON file")
	flags.BoolVar(&opts.debug, "debug", false, "enable debug logging")
	root.Flags().StringVar(&opts.month, "month", "", "month to report on as MM/YYYY (default: previous month)")

	root.AddCommand(&cobra.Command{
		Use:   "schedule",
		Short: "Run resident, reporting on the previous month on the configured cron schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, cleanup, err := opts.setup()
			if err != nil {
				return err
			}
			defer cleanup()

			agent := monthlyreport.NewMonthlyReportAgent(cfg, nil)
			log.Info("Starting scheduler...")
			err = scheduler.New(cfg, agent).Start(cmd.Context())
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	})

	return root
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		log.Errorf("%v", err)
		cancel()
		os.Exit(1)
	}
}
