package worker

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/scanomatic/som/domain"
)

// Simulated pretends to work for Duration, reporting progress every Step.
type Simulated struct {
	Duration time.Duration
	Step     time.Duration
}

func (s Simulated) Run(ctx context.Context, job domain.Job, r Reporter) error {
	step := s.Step
	if step <= 0 {
		step = time.Second
	}
	if s.Duration <= 0 {
		return r.Progress(1)
	}
	start := time.Now()
	ticker := time.NewTicker(step)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.WithFields(log.Fields{"jobID": job.ID}).Info("simulated job cancelled")
			return ctx.Err()
		case <-ticker.C:
			p := float64(time.Since(start)) / float64(s.Duration)
			if p >= 1 {
				return r.Progress(1)
			}
			if err := r.Progress(p); err != nil {
				// a stop lands between the tick and the report
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return err
			}
		}
	}
}
