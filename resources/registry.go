// Package resources tracks the scanner devices jobs compete for: power state and current owner.
//
// A Registry is not safe for concurrent use. The coordinator serializes access to it and is
// the only writer of ownership, through the lock manager.
package resources

import (
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/scanomatic/som/domain"
)

type Registry struct {
	order []string
	byID  map[string]*domain.Resource
}

func NewRegistry(rs ...domain.Resource) *Registry {
	reg := &Registry{byID: map[string]*domain.Resource{}}
	for _, r := range rs {
		reg.Add(r)
	}
	return reg
}

// Add registers a discovered device. Re-adding a known id replaces its name and power
// state but keeps its owner.
func (r *Registry) Add(res domain.Resource) {
	if cur, ok := r.byID[res.ID]; ok {
		cur.Name = res.Name
		cur.Powered = res.Powered
		return
	}
	c := res.Copy()
	r.byID[res.ID] = &c
	r.order = append(r.order, res.ID)
}

// List returns a snapshot of every resource in discovery order.
func (r *Registry) List() []domain.Resource {
	out := make([]domain.Resource, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id].Copy())
	}
	return out
}

func (r *Registry) Get(id string) (domain.Resource, error) {
	res, ok := r.byID[id]
	if !ok {
		return domain.Resource{}, domain.NewNotFoundError("resource %s not found", id)
	}
	return res.Copy(), nil
}

// SetOwner claims the resource for owner, or frees it when owner is nil.
// A claim fails with AlreadyOwned when another job holds the resource. Freeing always succeeds.
func (r *Registry) SetOwner(id string, owner *domain.Owner) error {
	res, ok := r.byID[id]
	if !ok {
		return domain.NewNotFoundError("resource %s not found", id)
	}
	if owner == nil {
		if res.Owner != nil {
			log.WithFields(log.Fields{"resource": id, "jobID": res.Owner.JobID}).Debug("resource freed")
		}
		res.Owner = nil
		return nil
	}
	if res.Owner != nil && res.Owner.JobID != owner.JobID {
		return domain.NewAlreadyOwnedError("resource %s is owned by job %s", id, res.Owner.JobID)
	}
	o := *owner
	res.Owner = &o
	return nil
}

// SetPower records the power state. It does not touch ownership.
func (r *Registry) SetPower(id string, on bool) error {
	res, ok := r.byID[id]
	if !ok {
		return domain.NewNotFoundError("resource %s not found", id)
	}
	res.Powered = on
	return nil
}

func (r *Registry) Free() []domain.Resource {
	var out []domain.Resource
	for _, id := range r.order {
		if res := r.byID[id]; res.Free() {
			out = append(out, res.Copy())
		}
	}
	return out
}

// Find returns resources whose id equals query or whose name contains it, ignoring case.
func (r *Registry) Find(query string) []domain.Resource {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	var out []domain.Resource
	for _, id := range r.order {
		res := r.byID[id]
		if strings.ToLower(res.ID) == q || strings.Contains(strings.ToLower(res.Name), q) {
			out = append(out, res.Copy())
		}
	}
	return out
}

func (r *Registry) Len() int {
	return len(r.order)
}
