package scheduler

import (
	"context"
	"fmt"

	"github.com/berfenger/solarcharger/internal/core/domain"
	"github.com/berfenger/solarcharger/internal/core/port"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/reugn/go-quartz/job"
	"github.com/reugn/go-quartz/quartz"
	"go.uber.org/zap"
)

const EQUALIZATION_JOB = "equalization"

// BatteryTypes reports the chemistry of every battery slot.
type BatteryTypes interface {
	BatteryType(battery int) domain.BatteryType
}

// EqualizationScheduler asks the supervisor to equalize every wet battery on a cron schedule.
type EqualizationScheduler struct {
	scheduler   quartz.Scheduler
	rootContext *actor.RootContext
	supervisor  *actor.PID
	batteries   BatteryTypes
	telemetry   port.TelemetrySink
	logger      *zap.Logger
}

func NewEqualizationScheduler(rootContext *actor.RootContext, supervisor *actor.PID, batteries BatteryTypes,
	telemetry port.TelemetrySink, logger *zap.Logger) *EqualizationScheduler {
	return &EqualizationScheduler{
		scheduler:   quartz.NewStdScheduler(),
		rootContext: rootContext,
		supervisor:  supervisor,
		batteries:   batteries,
		telemetry:   telemetry,
		logger:      logger.Named("equalization"),
	}
}

// Start schedules the job with a quartz cron expression, seconds first.
func (s *EqualizationScheduler) Start(ctx context.Context, cronExpression string) error {
	trigger, err := quartz.NewCronTrigger(cronExpression)
	if err != nil {
		return fmt.Errorf("equalization cron %q: %w", cronExpression, err)
	}
	equalizeJob := job.NewFunctionJob(func(_ context.Context) (int, error) {
		return s.RequestEqualization(), nil
	})
	s.scheduler.Start(ctx)
	if err := s.scheduler.ScheduleJob(quartz.NewJobDetail(equalizeJob, quartz.NewJobKey(EQUALIZATION_JOB)), trigger); err != nil {
		s.scheduler.Stop()
		return err
	}
	s.logger.Info("equalization scheduled", zap.String("cron", cronExpression))
	return nil
}

// RequestEqualization sends one request per wet battery and returns how many were sent.
func (s *EqualizationScheduler) RequestEqualization() int {
	requested := 0
	for i := 0; i < domain.NUM_BATS; i++ {
		if s.batteries.BatteryType(i) != domain.BatteryTypeWet {
			continue
		}
		s.rootContext.Send(s.supervisor, domain.EqualizationRequest{Battery: i})
		requested++
	}
	s.logger.Info("equalization requested", zap.Int("batteries", requested))
	if requested > 0 {
		s.telemetry.Send(domain.DIAG_TAG_CHARGER, fmt.Sprintf("scheduled equalization of %d batteries", requested))
	}
	return requested
}

func (s *EqualizationScheduler) Stop() {
	s.scheduler.Stop()
}
