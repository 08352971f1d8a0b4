// Package schedule runs the process's periodic background work.
//
// One shared gocron scheduler owns every recurring job (layout checkpoint,
// cache sweep) so subsystems do not maintain timers of their own. Jobs are
// registered by unique name before Start and run one full interval after
// it; the injected clock lets tests step time deterministically.
//
// Example Usage:
//
//	sched, err := schedule.New(logger, nil)
//	if err != nil {
//		return err
//	}
//	sched.Every("layout-checkpoint", cfg.CheckpointInterval, checkpoint)
//	sched.Every("cache-sweep", cfg.SweepInterval, func() { cache.Sweep() })
//	sched.Start()
//	defer sched.Stop()
package schedule
