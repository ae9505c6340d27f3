package domain

import (
	"github.com/davecgh/go-spew/spew"
)

// Owner identifies the job holding a resource. Email is informational.
type Owner struct {
	JobID string `json:"job_id"`
	Email string `json:"email,omitempty"`
}

// Resource is one exclusively lockable scanner device. A nil Owner means free.
type Resource struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Powered bool   `json:"powered"`
	Owner   *Owner `json:"owner,omitempty"`
}

func (r Resource) Free() bool {
	return r.Owner == nil
}

// Copy returns a Resource that shares no pointers with r.
func (r Resource) Copy() Resource {
	if r.Owner != nil {
		o := *r.Owner
		r.Owner = &o
	}
	return r
}

func (r Resource) String() string {
	return spew.Sprintf("%s(%s) powered:%t owner:%v", r.Name, r.ID, r.Powered, r.Owner)
}
