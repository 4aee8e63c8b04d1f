package maintenance

import (
	"context"
	"time"

	"github.com/ngspreakleap/kalyan-linebot-go/internal/logger"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/metrics"
)

// Job is a task that runs at most once per Interval.
type Job struct {
	Name     string
	Interval time.Duration
	Timeout  time.Duration // 0 = bounded by ctx only
	Run      func(ctx context.Context) error

	Store   Store
	Metrics *metrics.Metrics
	Logger  *logger.Logger

	now func() time.Time
}

func (j *Job) clock() time.Time {
	if j.now != nil {
		return j.now()
	}
	return time.Now()
}

// RunIfDue runs the job when its interval has passed since the last
// successful run and records the new run time. It reports whether the job ran.
func (j *Job) RunIfDue(ctx context.Context) (bool, error) {
	log := j.Logger.WithField("job", j.Name)

	state, err := j.Store.Load(ctx)
	if err != nil {
		log.WithError(err).Warn("Failed to load maintenance state; running anyway")
	}
	now := j.clock()
	if err == nil && !IsDue(state.Last(j.Name), j.Interval, now) {
		return false, nil
	}

	runCtx, cancel := ctx, context.CancelFunc(func() {})
	if j.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, j.Timeout)
	}
	defer cancel()

	start := time.Now()
	runErr := j.Run(runCtx)
	status := "success"
	if runErr != nil {
		status = "error"
	}
	j.Metrics.RecordJob(j.Name, status, time.Since(start).Seconds())
	if runErr != nil {
		return true, runErr
	}

	if err := j.Store.Update(ctx, func(s *State) { s.mark(j.Name, now) }); err != nil {
		log.WithError(err).Warn("Failed to save maintenance state")
	}
	log.WithField("duration_ms", time.Since(start).Milliseconds()).Info("Maintenance job completed")
	return true, nil
}

// Loop checks the job every tick until ctx is canceled. The first check
// happens immediately.
func (j *Job) Loop(ctx context.Context, tick time.Duration) {
	log := j.Logger.WithField("job", j.Name)
	log.Debug("Maintenance job started")
	defer log.Debug("Maintenance job stopped")

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		if _, err := j.RunIfDue(ctx); err != nil && ctx.Err() == nil {
			log.WithError(err).Error("Maintenance job failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
