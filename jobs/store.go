// Package jobs is the in-memory table of job records and the enforcement point of the job
// state machine.
//
// A Store is not safe for concurrent use; the coordinator serializes access to it.
package jobs

import (
	"time"

	lru "github.com/hashicorp/golang-lru"
	uuid "github.com/nu7hatch/gouuid"
	log "github.com/sirupsen/logrus"

	"github.com/scanomatic/som/domain"
)

// Number of finished jobs kept for status reads and dependency checks.
const DefaultHistorySize = 1000

type CreateOptions struct {
	Label     string
	DependsOn string
	LogFile   string
}

type Store struct {
	order   []string
	records map[string]*domain.Job
	// Terminal job ids, oldest first. Evicted ids are dropped from records.
	history *lru.Cache
	now     func() time.Time
}

func NewStore(historySize int) (*Store, error) {
	if historySize <= 0 {
		historySize = DefaultHistorySize
	}
	s := &Store{
		records: map[string]*domain.Job{},
		now:     time.Now,
	}
	history, err := lru.NewWithEvict(historySize, s.evict)
	if err != nil {
		return nil, err
	}
	s.history = history
	return s, nil
}

func (s *Store) evict(key interface{}, _ interface{}) {
	id := key.(string)
	log.WithFields(log.Fields{"jobID": id}).Debug("dropping finished job from history")
	s.drop(id)
}

func (s *Store) drop(id string) {
	delete(s.records, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func generateJobId() string {
	// uuid.NewV4 only fails if the system random source does.
	for {
		if id, err := uuid.NewV4(); err == nil {
			return id.String()
		}
	}
}

// Create adds a Queued job with a fresh id.
func (s *Store) Create(t domain.JobType, content domain.Content, opts CreateOptions) (domain.Job, error) {
	if content == nil {
		return domain.Job{}, domain.NewInvalidRequestError("missing content_model for %s", t)
	}
	if content.JobType() != t {
		return domain.Job{}, domain.NewInvalidRequestError("%s content given for a %s job", content.JobType(), t)
	}
	if err := content.Validate(); err != nil {
		return domain.Job{}, err
	}
	if opts.DependsOn != "" {
		if _, ok := s.records[opts.DependsOn]; !ok {
			return domain.Job{}, domain.NewNotFoundError("upstream job %s not found", opts.DependsOn)
		}
	}

	id := generateJobId()
	for _, ok := s.records[id]; ok; _, ok = s.records[id] {
		id = generateJobId()
	}
	label := opts.Label
	if label == "" {
		label = id
	}
	job := &domain.Job{
		ID:        id,
		Type:      t,
		State:     domain.Queued,
		Progress:  domain.UnknownProgress,
		Label:     label,
		Content:   content,
		LogFile:   opts.LogFile,
		DependsOn: opts.DependsOn,
		Created:   s.now(),
	}
	s.records[id] = job
	s.order = append(s.order, id)
	return *job, nil
}

func (s *Store) Get(id string) (domain.Job, error) {
	job, ok := s.records[id]
	if !ok {
		return domain.Job{}, domain.NewNotFoundError("job %s not found", id)
	}
	return *job, nil
}

// UpdateProgress records a worker report. Only Running and Paused jobs accept reports.
func (s *Store) UpdateProgress(id string, progress, runTime float64) error {
	job, ok := s.records[id]
	if !ok {
		return domain.NewNotFoundError("job %s not found", id)
	}
	if job.State != domain.Running && job.State != domain.Paused {
		return domain.NewInvalidStateError("job %s is %s, progress is only accepted while running or paused", id, job.State)
	}
	job.Progress = domain.NormalizeProgress(progress)
	if runTime >= 0 {
		job.RunTime = runTime
	}
	return nil
}

// Transition moves a job to target, or fails with IllegalTransition and changes nothing.
func (s *Store) Transition(id string, target domain.JobState) (domain.Job, error) {
	job, ok := s.records[id]
	if !ok {
		return domain.Job{}, domain.NewNotFoundError("job %s not found", id)
	}
	if !domain.ValidTransition(job.State, target) {
		log.WithFields(log.Fields{
			"jobID": id,
			"from":  job.State,
			"to":    target,
		}).Info("rejected illegal transition")
		return *job, domain.NewIllegalTransitionError(id, job.State, target)
	}
	from := job.State
	job.State = target
	switch {
	case from == domain.Queued && target == domain.Running:
		job.Started = s.now()
		job.Blocked = ""
	case target.Terminal():
		job.Finished = s.now()
		job.Blocked = ""
		s.history.Add(id, nil)
	}
	return *job, nil
}

// Fail transitions to Failed and records why.
func (s *Store) Fail(id string, reason string) (domain.Job, error) {
	job, err := s.Transition(id, domain.Failed)
	if err != nil {
		return job, err
	}
	rec := s.records[id]
	rec.Reason = reason
	return *rec, nil
}

// Remove deletes a job that never left the queue.
func (s *Store) Remove(id string) (domain.Job, error) {
	job, ok := s.records[id]
	if !ok {
		return domain.Job{}, domain.NewNotFoundError("job %s not found", id)
	}
	if job.State != domain.Queued {
		return *job, domain.NewInvalidStateError("job %s is %s, only queued jobs can be removed", id, job.State)
	}
	removed := *job
	s.drop(id)
	return removed, nil
}

func (s *Store) ListByState(state domain.JobState) []domain.Job {
	var out []domain.Job
	for _, id := range s.order {
		if job := s.records[id]; job.State == state {
			out = append(out, *job)
		}
	}
	return out
}

func (s *Store) ListAll() []domain.Job {
	out := make([]domain.Job, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.records[id])
	}
	return out
}

// Dependents returns the queued jobs waiting on upstream, in insertion order.
func (s *Store) Dependents(upstream string) []domain.Job {
	var out []domain.Job
	for _, id := range s.order {
		if job := s.records[id]; job.State == domain.Queued && job.DependsOn == upstream {
			out = append(out, *job)
		}
	}
	return out
}

// FindLatest returns the most recently created job of type t matching pred.
func (s *Store) FindLatest(t domain.JobType, pred func(domain.Job) bool) (domain.Job, bool) {
	for i := len(s.order) - 1; i >= 0; i-- {
		job := s.records[s.order[i]]
		if job.Type == t && pred(*job) {
			return *job, true
		}
	}
	return domain.Job{}, false
}

func (s *Store) SetBlocked(id, why string) {
	if job, ok := s.records[id]; ok {
		job.Blocked = why
	}
}

func (s *Store) SetResource(id, resourceID string) {
	if job, ok := s.records[id]; ok {
		job.Resource = resourceID
	}
}

func (s *Store) SetLogFile(id, path string) {
	if job, ok := s.records[id]; ok {
		job.LogFile = path
	}
}

func (s *Store) Len() int {
	return len(s.order)
}
