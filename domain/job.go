// Package domain holds the records shared by the coordinator and its clients:
// jobs, their typed content, scanner resources, the job state machine and the
// error taxonomy.
package domain

import (
	"math"
	"strings"
	"time"
)

type JobType string

const (
	Scan     JobType = "Scan"
	Compile  JobType = "Compile"
	Analysis JobType = "Analysis"
	Features JobType = "Features"
)

var JobTypes = []JobType{Scan, Compile, Analysis, Features}

// ParseJobType accepts any casing of a known job type.
func ParseJobType(s string) (JobType, error) {
	for _, t := range JobTypes {
		if strings.EqualFold(string(t), strings.TrimSpace(s)) {
			return t, nil
		}
	}
	return "", NewInvalidRequestError("unknown job type %q", s)
}

// NeedsResource is true for job types that hold an exclusive scanner lock while running.
func (t JobType) NeedsResource() bool {
	return t == Scan
}

type JobState string

const (
	Queued   JobState = "Queued"
	Running  JobState = "Running"
	Paused   JobState = "Paused"
	Stopping JobState = "Stopping"
	Done     JobState = "Done"
	Failed   JobState = "Failed"
)

var JobStates = []JobState{Queued, Running, Paused, Stopping, Done, Failed}

func (s JobState) Terminal() bool {
	return s == Done || s == Failed
}

// Active jobs have been admitted and have not yet terminated.
func (s JobState) Active() bool {
	return s == Running || s == Paused || s == Stopping
}

// UnknownProgress is reported in place of a fraction when a worker has not said how far it got.
const UnknownProgress = -1.0

// NormalizeProgress keeps progress within [0,1] or the unknown sentinel.
func NormalizeProgress(p float64) float64 {
	switch {
	case math.IsNaN(p) || p < 0:
		return UnknownProgress
	case p > 1:
		return 1
	}
	return p
}

// Job is one pipeline execution unit. Values handed out by the coordinator are copies;
// mutating them has no effect on the coordinator's records.
type Job struct {
	ID       string   `json:"id"`
	Type     JobType  `json:"type"`
	State    JobState `json:"state"`
	Progress float64  `json:"progress"`
	// Seconds spent Running, as last reported by the worker.
	RunTime float64 `json:"runTime"`
	Label   string  `json:"label"`
	Content Content `json:"content_model"`
	LogFile string  `json:"log_file,omitempty"`

	// Upstream job id this job waits on, captured at creation.
	DependsOn string `json:"depends_on,omitempty"`
	// Resource id of the lock held, if any.
	Resource string `json:"resource,omitempty"`
	// Why a queued job was passed over in the last scheduling pass.
	Blocked string `json:"blocked,omitempty"`
	// Why a job failed.
	Reason string `json:"reason,omitempty"`

	Created  time.Time `json:"created"`
	Started  time.Time `json:"started,omitempty"`
	Finished time.Time `json:"finished,omitempty"`
}

// Owner returns the identity this job presents when it claims a resource.
func (j Job) Owner() *Owner {
	return &Owner{JobID: j.ID, Email: ContentEmail(j.Content)}
}

// ETA is the estimated remaining minutes, see EstimateRemaining.
func (j Job) ETA() (float64, bool) {
	return EstimateRemaining(j.Progress, j.RunTime)
}
