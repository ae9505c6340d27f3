package coordinator

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/scanomatic/som/common/stats"
	"github.com/scanomatic/som/domain"
)

// Reason recorded when a worker exits because its context was cancelled.
const ReasonStopped = "stopped"

// How long a single power switch call may take.
const PowerSwitchTimeout = 30 * time.Second

// StopResult answers a stop request. A refusal always has a Reason.
type StopResult struct {
	Accepted bool
	Reason   string
}

func refuse(format string, args ...interface{}) StopResult {
	return StopResult{Reason: domain.NewInvalidStateError(format, args...).Error()}
}

// RequestStop asks a Running or Paused job to stop. The job moves to Stopping and its worker
// context is cancelled; the worker still decides when it exits.
func (c *Coordinator) RequestStop(id string) StopResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	res := c.requestStop(id)
	if res.Accepted {
		c.stat.Counter(stats.CoordStopAcceptedCounter).Inc(1)
	} else {
		c.stat.Counter(stats.CoordStopRefusedCounter).Inc(1)
		log.WithFields(log.Fields{"jobID": id, "reason": res.Reason}).Info("stop refused")
	}
	return res
}

func (c *Coordinator) requestStop(id string) StopResult {
	job, err := c.store.Get(id)
	if err != nil {
		return StopResult{Reason: err.Error()}
	}
	switch job.State {
	case domain.Stopping:
		return refuse("job %s is already stopping", id)
	case domain.Done, domain.Failed:
		return refuse("job %s has already finished (%s)", id, job.State)
	case domain.Queued:
		return refuse("job %s is still queued, remove it from the queue instead", id)
	}
	if _, err := c.store.Transition(id, domain.Stopping); err != nil {
		return StopResult{Reason: err.Error()}
	}
	c.emit(Event{Kind: EventTransition, JobID: id, Type: job.Type, From: job.State, To: domain.Stopping})
	if ex, ok := c.running[id]; ok {
		ex.cancel()
	}
	log.WithFields(log.Fields{"jobID": id}).Info("stop accepted")
	return StopResult{Accepted: true}
}

// ReportProgress records a worker's progress and seconds of run time.
func (c *Coordinator) ReportProgress(id string, progress, runTime float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.UpdateProgress(id, progress, runTime)
}

func (c *Coordinator) Pause(id string) error {
	return c.move(id, domain.Paused)
}

func (c *Coordinator) Resume(id string) error {
	return c.move(id, domain.Running)
}

func (c *Coordinator) move(id string, to domain.JobState) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	job, err := c.store.Get(id)
	if err != nil {
		return err
	}
	if job.State == domain.Queued {
		// Queued -> Running is the scheduler's decision alone
		return domain.NewIllegalTransitionError(id, job.State, to)
	}
	if _, err := c.store.Transition(id, to); err != nil {
		return err
	}
	c.emit(Event{Kind: EventTransition, JobID: id, Type: job.Type, From: job.State, To: to})
	return nil
}

// Finish records a worker's exit: Done when runErr is nil, Failed otherwise. The job's lock is
// released whether or not the worker released it, queued dependents of a failed job are failed,
// and a scheduling pass hands freed scanners to waiting jobs.
func (c *Coordinator) Finish(id string, runErr error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	job, err := c.store.Get(id)
	if err != nil {
		return err
	}
	if !job.State.Active() {
		if job.State.Terminal() {
			return domain.NewIllegalTransitionError(id, job.State, terminalFor(runErr))
		}
		return domain.NewInvalidStateError("job %s is %s and has no worker to finish", id, job.State)
	}

	if runErr == nil {
		if _, err := c.store.Transition(id, domain.Done); err != nil {
			return err
		}
		c.stat.Counter(stats.CoordJobsDoneCounter).Inc(1)
		c.emit(Event{Kind: EventTransition, JobID: id, Type: job.Type, From: job.State, To: domain.Done})
		log.WithFields(log.Fields{"jobID": id, "type": job.Type}).Info("job done")
	} else {
		reason := runErr.Error()
		if errors.Is(runErr, context.Canceled) {
			reason = ReasonStopped
		}
		if _, err := c.store.Fail(id, reason); err != nil {
			return err
		}
		c.stat.Counter(stats.CoordJobsFailedCounter).Inc(1)
		c.emit(Event{Kind: EventTransition, JobID: id, Type: job.Type, From: job.State, To: domain.Failed, Reason: reason})
		log.WithFields(log.Fields{"jobID": id, "type": job.Type, "reason": reason}).Info("job failed")
	}

	if ex, ok := c.running[id]; ok {
		ex.cancel()
		delete(c.running, id)
	}
	c.releaseLock(id)
	if runErr != nil {
		c.cascade(id, "failed")
	}
	c.schedule()
	return nil
}

func terminalFor(runErr error) domain.JobState {
	if runErr == nil {
		return domain.Done
	}
	return domain.Failed
}

// releaseLock frees the job's scanner and powers it down. caller holds c.mu.
func (c *Coordinator) releaseLock(id string) {
	freed, err := c.locks.Release(id)
	if err != nil || freed == "" {
		return
	}
	if res, err := c.registry.Get(freed); err == nil && res.Powered {
		c.registry.SetPower(freed, false)
		c.switchPower(freed, false)
	}
}

// RemoveFromQueue deletes a job that has not started. Jobs waiting on it can never run and are failed.
func (c *Coordinator) RemoveFromQueue(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.removeQueued(id)
}

func (c *Coordinator) removeQueued(id string) error {
	job, err := c.store.Remove(id)
	if err != nil {
		return err
	}
	c.stat.Counter(stats.CoordJobsRemovedCounter).Inc(1)
	c.emit(Event{Kind: EventRemoved, JobID: id, Type: job.Type, From: domain.Queued})
	log.WithFields(log.Fields{"jobID": id, "type": job.Type}).Info("job removed from queue")
	c.cascade(id, "was removed from the queue")
	c.updateStats()
	return nil
}

// FlushQueue removes every queued job and returns how many were removed.
func (c *Coordinator) FlushQueue() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	queued := c.store.ListByState(domain.Queued)
	removed := 0
	// newest first so dependents go before the jobs they wait on
	for i := len(queued) - 1; i >= 0; i-- {
		if err := c.removeQueued(queued[i].ID); err == nil {
			removed++
		}
	}
	return removed
}

// SetScannerPower switches a scanner on or off on behalf of the job that owns it.
func (c *Coordinator) SetScannerPower(jobID, resourceID string, on bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.store.Get(jobID); err != nil {
		return err
	}
	res, err := c.registry.Get(resourceID)
	if err != nil {
		return err
	}
	if res.Owner == nil {
		return domain.NewInvalidStateError("scanner %s is not owned by job %s", resourceID, jobID)
	}
	if res.Owner.JobID != jobID {
		return domain.NewAlreadyOwnedError("scanner %s is owned by job %s", resourceID, res.Owner.JobID)
	}
	if err := c.registry.SetPower(resourceID, on); err != nil {
		return err
	}
	c.switchPower(resourceID, on)
	return nil
}

// switchPower drives the power switch off the coordinator lock. caller holds c.mu.
func (c *Coordinator) switchPower(resourceID string, on bool) {
	if c.power == nil {
		return
	}
	if c.closing {
		log.WithFields(log.Fields{"scanner": resourceID, "on": on}).Warn("shutting down, power switch skipped")
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), PowerSwitchTimeout)
		defer cancel()
		if err := c.power.SetPower(ctx, resourceID, on); err != nil {
			log.WithFields(log.Fields{"scanner": resourceID, "on": on}).WithError(err).Error("power switch failed")
		}
	}()
}

// AcquireLock takes the caller-named lock key for holder. Refusals carry no reason.
func (c *Coordinator) AcquireLock(key, holder string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	ok := c.locks.AcquireKey(key, holder)
	if !ok {
		c.stat.Counter(stats.CoordKeyLockRefusedCounter).Inc(1)
	}
	return ok
}

func (c *Coordinator) ReleaseLock(key, holder string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.locks.ReleaseKey(key, holder)
}
