// Package locks grants jobs exclusive ownership of scanner resources, and collaborators
// exclusive ownership of caller-named keys.
//
// All resource ownership changes go through Manager; the registry is never written directly.
// Like the registry and the job store it wraps, a Manager relies on its caller to serialize access.
package locks

import (
	log "github.com/sirupsen/logrus"

	"github.com/scanomatic/som/domain"
	"github.com/scanomatic/som/jobs"
	"github.com/scanomatic/som/resources"
)

type Manager struct {
	registry *resources.Registry
	store    *jobs.Store
	// key -> holder, for caller-named locks.
	keys map[string]string
}

func NewManager(registry *resources.Registry, store *jobs.Store) *Manager {
	return &Manager{registry: registry, store: store, keys: map[string]string{}}
}

// Acquire gives jobID the lock on resourceID. A nil error means granted.
// Busy means another job holds it and the caller should try again on a later pass.
func (m *Manager) Acquire(jobID, resourceID string) error {
	job, err := m.store.Get(jobID)
	if err != nil {
		return err
	}
	res, err := m.registry.Get(resourceID)
	if err != nil {
		return err
	}
	if job.Resource != "" && job.Resource != resourceID {
		return domain.NewInvalidStateError("job %s already holds %s", jobID, job.Resource)
	}
	if res.Owner != nil && res.Owner.JobID != jobID {
		return domain.NewBusyError("resource %s is held by job %s", resourceID, res.Owner.JobID)
	}
	if err := m.registry.SetOwner(resourceID, job.Owner()); err != nil {
		return err
	}
	m.store.SetResource(jobID, resourceID)
	log.WithFields(log.Fields{"jobID": jobID, "resource": resourceID}).Info("lock granted")
	return nil
}

// Release frees whatever jobID holds and returns the freed resource id. Releasing a job that
// holds nothing is a no-op returning "".
func (m *Manager) Release(jobID string) (string, error) {
	job, err := m.store.Get(jobID)
	if err != nil {
		return "", err
	}
	if job.Resource == "" {
		return "", nil
	}
	resourceID := job.Resource
	if res, err := m.registry.Get(resourceID); err == nil && res.Owner != nil && res.Owner.JobID == jobID {
		m.registry.SetOwner(resourceID, nil)
	}
	m.store.SetResource(jobID, "")
	log.WithFields(log.Fields{"jobID": jobID, "resource": resourceID}).Info("lock released")
	return resourceID, nil
}

// Holders maps each owned resource to its owning job.
func (m *Manager) Holders() map[string]string {
	out := map[string]string{}
	for _, r := range m.registry.List() {
		if r.Owner != nil {
			out[r.ID] = r.Owner.JobID
		}
	}
	return out
}

// AcquireKey locks an arbitrary caller-named key. Re-acquiring by the current holder succeeds.
// Anonymous holders are refused.
func (m *Manager) AcquireKey(key, holder string) bool {
	if key == "" || holder == "" {
		return false
	}
	if cur, ok := m.keys[key]; ok && cur != holder {
		return false
	}
	m.keys[key] = holder
	return true
}

// ReleaseKey frees key if holder holds it.
func (m *Manager) ReleaseKey(key, holder string) bool {
	if holder == "" {
		return false
	}
	cur, ok := m.keys[key]
	if !ok || cur != holder {
		return false
	}
	delete(m.keys, key)
	return true
}

func (m *Manager) KeyHolder(key string) (string, bool) {
	h, ok := m.keys[key]
	return h, ok
}
