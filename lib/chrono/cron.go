package chrono

import (
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// CronAPI is the interface that anything depending on things to happen on a cron job should use.
type CronAPI interface {
	Cron(spec string, callback func()) error
}

// StandardCron is the standard implementation of CronAPI using `github.com/robfig/cron/v3`
type StandardCron struct {
	cron *cron.Cron
}

// NewStandardCron schedules jobs in the clock's location so that
// day-boundary schedules line up with the storefront day.
func NewStandardCron(clock API) StandardCron {
	cronner := cron.New(
		cron.WithLogger(cronLogger{}),
		cron.WithLocation(clock.Location()),
	)
	cronner.Start()

	return StandardCron{
		cron: cronner,
	}
}

func (s StandardCron) Cron(spec string, callback func()) error {
	_, err := s.cron.AddFunc(spec, callback)
	return err
}

type cronLogger struct{}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	slog.Debug(fmt.Sprintf("cron: %s", msg), keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	args := append([]any{"err", err}, keysAndValues...)
	slog.Error(fmt.Sprintf("cron: %s", msg), args...)
}
