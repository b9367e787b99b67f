package scheduler

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"yt-monthly-report/shared/config"
	"yt-monthly-report/shared/monitoring"
)

// Metrics defines the common interface for agent metrics
type Metrics interface {
	// GetSummary returns a human-readable summary of the run
	GetSummary() string
}

// AgentEvents provides callbacks for monitoring agent execution
type AgentEvents struct {
	OnSuccess         func(metrics Metrics, duration time.Duration)
	OnPartialFailure  func(err error, duration time.Duration)
	OnCriticalFailure func(err error, duration time.Duration)
}

// Agent defines the interface that all agents must implement
type Agent interface {
	Name() string
	RunOnce(ctx context.Context, events *AgentEvents) error
	Initialize() error
}

// Scheduler manages the execution of agents on a schedule
type Scheduler struct {
	config  *config.Config
	monitor *monitoring.Monitor
	agent   Agent
	cron    *cron.Cron
}

func New(cfg *config.Config, agent Agent) *Scheduler {
	return &Scheduler{
		config:  cfg,
		monitor: monitoring.NewMonitor(),
		agent:   agent,
		// Prevent overlapping runs
		cron: cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
	}
}

// Monitor exposes the run monitor backing the health endpoints.
func (s *Scheduler) Monitor() *monitoring.Monitor {
	return s.monitor
}

func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.agent.Initialize(); err != nil {
		return errors.Wrap(err, "failed to initialize agent")
	}

	healthServer := monitoring.NewHealthServer(s.monitor, strconv.Itoa(s.config.Monitoring.HealthPort))
	healthServer.Start(ctx)

	_, err := s.cron.AddFunc(s.config.Schedule, func() {
		if err := s.RunOnce(ctx); err != nil {
			log.Errorf("Error running scheduled job for %s: %v", s.agent.Name(), err)
		}
	})
	if err != nil {
		return errors.Wrap(err, "failed to add cron job")
	}

	log.Infof("Scheduler started for %s with schedule: %s", s.agent.Name(), s.config.Schedule)
	s.cron.Start()

	<-ctx.Done()
	log.Infof("Scheduler stopped for %s", s.agent.Name())
	<-s.cron.Stop().Done()
	return ctx.Err()
}

func (s *Scheduler) RunOnce(ctx context.Context) error {
	startTime := time.Now()
	agentName := s.agent.Name()

	log.Infof("Starting %s run...", agentName)

	events := &AgentEvents{
		OnSuccess: func(metrics Metrics, duration time.Duration) {
			s.monitor.RecordSuccess(metrics.GetSummary(), duration)
		},
		OnPartialFailure: func(err error, duration time.Duration) {
			s.monitor.RecordPartialFailure(errors.Wrapf(err, "%s partial failure", agentName), duration)
		},
		OnCriticalFailure: func(err error, duration time.Duration) {
			s.monitor.RecordCriticalFailure(errors.Wrapf(err, "%s critical failure", agentName), duration)
		},
	}

	if err := s.agent.RunOnce(ctx, events); err != nil {
		duration := time.Since(startTime)
		s.monitor.RecordCriticalFailure(errors.Wrapf(err, "%s failed", agentName), duration)
		return errors.Wrapf(err, "%s run failed", agentName)
	}

	return nil
}
