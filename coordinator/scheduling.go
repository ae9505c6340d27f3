package coordinator

import (
	"github.com/luci/go-render/render"
	log "github.com/sirupsen/logrus"

	"github.com/scanomatic/som/common/stats"
	"github.com/scanomatic/som/domain"
	"github.com/scanomatic/som/jobs"
)

// Reasons recorded on queued jobs passed over by a scheduling pass.
const (
	BlockedBusy = "Busy"
	BlockedHost = "waiting for host resources"
)

type SubmitRequest struct {
	Type    domain.JobType
	Content domain.Content
	// Explicit upstream job id. When empty the upstream is derived from content paths.
	DependsOn string
	Label     string
}

// Submit queues a new job and runs a scheduling pass, so the returned job may already be Running.
func (c *Coordinator) Submit(req SubmitRequest) (domain.Job, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if req.Content == nil {
		return domain.Job{}, domain.NewInvalidRequestError("missing content_model for %s", req.Type)
	}
	if scan, ok := req.Content.(*domain.ScanContent); ok {
		if _, err := c.registry.Get(scan.Scanner); err != nil {
			return domain.Job{}, err
		}
	}
	dependsOn := req.DependsOn
	if dependsOn == "" {
		dependsOn = c.deriveUpstream(req.Type, req.Content)
	}
	job, err := c.store.Create(req.Type, req.Content, jobs.CreateOptions{
		Label:     req.Label,
		DependsOn: dependsOn,
	})
	if err != nil {
		return domain.Job{}, err
	}

	c.stat.Counter(stats.CoordJobsSubmittedCounter).Inc(1)
	c.emit(Event{Kind: EventSubmitted, JobID: job.ID, Type: job.Type, To: domain.Queued})
	log.WithFields(log.Fields{
		"jobID":     job.ID,
		"type":      job.Type,
		"dependsOn": dependsOn,
		"content":   render.Render(job.Content),
	}).Info("job submitted")

	c.schedule()
	return c.store.Get(job.ID)
}

// deriveUpstream finds the newest job of the upstream type that writes what this job reads.
// Failed candidates are skipped so a resubmitted upstream is picked up instead.
func (c *Coordinator) deriveUpstream(t domain.JobType, content domain.Content) string {
	upType, ok := domain.Upstream(t)
	if !ok {
		return ""
	}
	consumes := content.Consumes()
	if consumes == "" {
		return ""
	}
	up, found := c.store.FindLatest(upType, func(j domain.Job) bool {
		return j.State != domain.Failed && j.Content.Produces() == consumes
	})
	if !found {
		return ""
	}
	return up.ID
}

// schedule is one pass over the queue, oldest first. caller holds c.mu.
func (c *Coordinator) schedule() {
	if c.closing {
		return
	}
	defer c.stat.Latency(stats.CoordSchedulePassLatency_ms).Time().Stop()

	// scanners found busy this pass; later scans for them wait their turn
	busy := map[string]bool{}
	for _, queued := range c.store.ListByState(domain.Queued) {
		// an earlier cascade in this pass may have failed it
		job, err := c.store.Get(queued.ID)
		if err != nil || job.State != domain.Queued {
			continue
		}
		if job.DependsOn != "" {
			up, err := c.store.Get(job.DependsOn)
			switch {
			case err != nil:
				// Evicted from history, so it finished. Failures cascade before eviction.
			case up.State == domain.Failed:
				c.failDependent(job.ID, domain.NewDependencyFailedError(up.ID, "upstream job %s failed", up.ID))
				continue
			case up.State != domain.Done:
				c.store.SetBlocked(job.ID, "waiting on "+up.ID)
				continue
			}
		}

		if scan, ok := job.Content.(*domain.ScanContent); ok {
			if busy[scan.Scanner] {
				c.store.SetBlocked(job.ID, BlockedBusy)
				continue
			}
			if err := c.locks.Acquire(job.ID, scan.Scanner); err != nil {
				busy[scan.Scanner] = true
				if domain.IsBusy(err) {
					c.stat.Counter(stats.CoordLockBusyCounter).Inc(1)
					c.store.SetBlocked(job.ID, BlockedBusy)
					continue
				}
				log.WithFields(log.Fields{"jobID": job.ID, "scanner": scan.Scanner}).WithError(err).Error("cannot lock scanner")
				c.failJob(job.ID, err.Error())
				continue
			}
		} else if !c.hostAllows() {
			c.store.SetBlocked(job.ID, BlockedHost)
			continue
		}
		c.admit(job)
	}
	c.updateStats()
}

func (c *Coordinator) hostAllows() bool {
	if !c.gateOnHost || c.host == nil {
		return true
	}
	if c.host.Ready(true) {
		return true
	}
	for _, j := range c.store.ListAll() {
		if j.State.Active() {
			return false
		}
	}
	return true
}

func (c *Coordinator) admit(job domain.Job) {
	running, err := c.store.Transition(job.ID, domain.Running)
	if err != nil {
		log.WithFields(log.Fields{"jobID": job.ID}).WithError(err).Error("cannot admit job")
		c.locks.Release(job.ID)
		return
	}
	c.stat.Counter(stats.CoordJobsAdmittedCounter).Inc(1)
	c.emit(Event{Kind: EventTransition, JobID: job.ID, Type: job.Type, From: domain.Queued, To: domain.Running})
	log.WithFields(log.Fields{
		"jobID":    job.ID,
		"type":     job.Type,
		"resource": running.Resource,
	}).Info("job admitted")

	if w, ok := c.workers[job.Type]; ok {
		c.launch(w, running)
	}
}

// failJob fails a queued or active job and cascades to its dependents. caller holds c.mu.
func (c *Coordinator) failJob(id, reason string) {
	job, err := c.store.Get(id)
	if err != nil {
		return
	}
	failed, err := c.store.Fail(id, reason)
	if err != nil {
		log.WithFields(log.Fields{"jobID": id}).WithError(err).Error("cannot fail job")
		return
	}
	c.stat.Counter(stats.CoordJobsFailedCounter).Inc(1)
	c.emit(Event{Kind: EventTransition, JobID: id, Type: failed.Type, From: job.State, To: domain.Failed, Reason: reason})
	c.cascade(id, "failed")
}

func (c *Coordinator) failDependent(id string, cause error) {
	c.stat.Counter(stats.CoordDependencyFailedCounter).Inc(1)
	log.WithFields(log.Fields{"jobID": id}).Info(cause.Error())
	c.failJob(id, cause.Error())
}

// cascade fails every queued job waiting on upstream, transitively.
func (c *Coordinator) cascade(upstream, what string) {
	for _, dep := range c.store.Dependents(upstream) {
		c.failDependent(dep.ID, domain.NewDependencyFailedError(upstream, "upstream job %s %s", upstream, what))
	}
}
