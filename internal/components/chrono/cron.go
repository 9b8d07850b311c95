package chrono

import (
	"fmt"
	"univer-schedule/internal/components/telemetry"

	"github.com/robfig/cron/v3"
)

const report_cron_job = "cron.job"

// CronAPI runs callbacks on cron specs.
//
// note: fault injection point
type CronAPI interface {
	Cron(spec string, callback func()) error
	Stop()
}

// StandardCron schedules jobs in the clock's location. A job whose previous
// run is still going is skipped and a panicking job is reported instead of
// taking the process down.
type StandardCron struct {
	cron *cron.Cron
}

func NewStandardCron(tel telemetry.API, clock API) StandardCron {
	logger := cronLogger{tel: telemetry.NewScopedAPI("cron", tel)}
	scheduler := cron.New(
		cron.WithLogger(logger),
		cron.WithLocation(clock.Location()),
		cron.WithChain(
			cron.Recover(logger),
			cron.SkipIfStillRunning(logger),
		),
	)
	scheduler.Start()
	return StandardCron{cron: scheduler}
}

func (s StandardCron) Cron(spec string, callback func()) error {
	_, err := s.cron.AddFunc(spec, callback)
	if err != nil {
		return fmt.Errorf("parse cron spec %q: %w", spec, err)
	}
	return nil
}

// Stop blocks until the running jobs returned.
func (s StandardCron) Stop() {
	<-s.cron.Stop().Done()
}

// cronLogger forwards robfig/cron's logr style output to telemetry. Info is
// chatty (every wake up) so it only goes to debug.
type cronLogger struct {
	tel telemetry.API
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.tel.ReportDebug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.tel.ReportBroken(report_cron_job, append([]any{msg, err}, keysAndValues...)...)
}
