package coordinator

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/scanomatic/som/domain"
	"github.com/scanomatic/som/worker"
)

// launch starts w for an admitted job. caller holds c.mu.
func (c *Coordinator) launch(w worker.Worker, job domain.Job) {
	ctx, cancel := context.WithCancel(context.Background())
	c.running[job.ID] = &execution{cancel: cancel}
	rep := &reporter{c: c, id: job.ID, started: c.now()}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()
		err := w.Run(ctx, job, rep)
		if ferr := c.Finish(job.ID, err); ferr != nil {
			// already finished through the API, or the record was evicted
			log.WithFields(log.Fields{"jobID": job.ID}).WithError(ferr).Debug("worker exit not recorded")
		}
	}()
}

// reporter turns worker reports into coordinator calls and keeps run time, which excludes
// time spent paused.
type reporter struct {
	c  *Coordinator
	id string

	mu      sync.Mutex
	started time.Time
	paused  time.Time
	idle    time.Duration
}

func (r *reporter) runTime() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.c.now()
	idle := r.idle
	if !r.paused.IsZero() {
		idle += now.Sub(r.paused)
	}
	return (now.Sub(r.started) - idle).Seconds()
}

func (r *reporter) Progress(progress float64) error {
	return r.c.ReportProgress(r.id, progress, r.runTime())
}

func (r *reporter) Pause() error {
	if err := r.c.Pause(r.id); err != nil {
		return err
	}
	r.mu.Lock()
	r.paused = r.c.now()
	r.mu.Unlock()
	return nil
}

func (r *reporter) Resume() error {
	if err := r.c.Resume(r.id); err != nil {
		return err
	}
	r.mu.Lock()
	if !r.paused.IsZero() {
		r.idle += r.c.now().Sub(r.paused)
		r.paused = time.Time{}
	}
	r.mu.Unlock()
	return nil
}

func (r *reporter) SetLogFile(path string) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	r.c.store.SetLogFile(r.id, path)
}

var _ worker.Reporter = (*reporter)(nil)
