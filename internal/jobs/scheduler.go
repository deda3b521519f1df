// Package jobs runs background work on a cron schedule.
package jobs

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/robfig/cron/v3"
)

// Scheduler is a cron-like job scheduler
type Scheduler struct {
	cron *cron.Cron
}

// cronLogger adapts the logger to the cron logger interface
type cronLogger struct {
	logger *log.Logger
}

// Info logs routine messages about cron's operation.
func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

// Error logs an error condition.
func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, "err", err)...)
}

// NewScheduler returns a new Scheduler
func NewScheduler(logger *log.Logger) *Scheduler {
	cl := cronLogger{logger.WithPrefix("cron")}
	return &Scheduler{
		cron: cron.New(cron.WithLogger(cl), cron.WithChain(cron.SkipIfStillRunning(cl))),
	}
}

// AddFunc schedules fn on spec
func (s *Scheduler) AddFunc(spec string, fn func()) error {
	_, err := s.cron.AddFunc(spec, fn)
	return err
}

// Start starts the Scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Shutdown stops the Scheduler and waits up to 30s for running jobs
func (s *Scheduler) Shutdown() {
	ctx, cancel := context.WithTimeout(s.cron.Stop(), 30*time.Second)
	defer cancel()
	<-ctx.Done()
}
