package api

import (
	"encoding/json"
	"time"

	"github.com/scanomatic/som/coordinator"
	"github.com/scanomatic/som/domain"
)

// Wire shapes shared by the server and api/client.

// Result answers every write. Reason is set when Success is false.
type Result struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
	ID      string `json:"id,omitempty"`
	Removed *int   `json:"removed,omitempty"`
}

// LockResult deliberately has no reason.
type LockResult struct {
	Success bool `json:"success"`
}

type ScannerOwner struct {
	Email string `json:"email"`
	JobID string `json:"job_id"`
}

type ScannerStatus struct {
	Name  string        `json:"scanner_name"`
	ID    string        `json:"scanner_id"`
	Power bool          `json:"power"`
	Owner *ScannerOwner `json:"owner,omitempty"`
}

type ScannersResponse struct {
	Scanners []ScannerStatus `json:"scanners"`
}

type FreeScannersResponse struct {
	Scanners map[string]string `json:"scanners"`
}

type ScannerResponse struct {
	Scanner ScannerStatus `json:"scanner"`
}

type JobStatus struct {
	ID       string         `json:"id"`
	Type     domain.JobType `json:"type"`
	Running  bool           `json:"running"`
	Stopping bool           `json:"stopping"`
	Paused   bool           `json:"paused"`
	Progress float64        `json:"progress"`
	RunTime  float64        `json:"runTime"`
	Label    string         `json:"label"`
	LogFile  string         `json:"log_file,omitempty"`
	// minutes, -1 when unknown
	ETA float64 `json:"eta"`
}

type JobsResponse struct {
	Jobs []JobStatus `json:"jobs"`
}

type QueueEntry struct {
	ID      string          `json:"id"`
	Type    domain.JobType  `json:"type"`
	Status  domain.JobState `json:"status"`
	Blocked string          `json:"blocked,omitempty"`
	Content json.RawMessage `json:"content_model"`
}

type QueueResponse struct {
	Queue []QueueEntry `json:"queue"`
}

// Job is domain.Job with its content left encoded, so clients can decode it without knowing
// the type first.
type Job struct {
	ID        string          `json:"id"`
	Type      domain.JobType  `json:"type"`
	State     domain.JobState `json:"state"`
	Progress  float64         `json:"progress"`
	RunTime   float64         `json:"runTime"`
	Label     string          `json:"label"`
	Content   json.RawMessage `json:"content_model"`
	LogFile   string          `json:"log_file,omitempty"`
	DependsOn string          `json:"depends_on,omitempty"`
	Resource  string          `json:"resource,omitempty"`
	Blocked   string          `json:"blocked,omitempty"`
	Reason    string          `json:"reason,omitempty"`
	Created   time.Time       `json:"created"`
	Started   time.Time       `json:"started"`
	Finished  time.Time       `json:"finished"`
}

type HistoryResponse struct {
	Events []coordinator.Event `json:"events"`
}

type SubmitRequest struct {
	Type      string          `json:"type"`
	Content   json.RawMessage `json:"content_model"`
	DependsOn string          `json:"depends_on,omitempty"`
	Label     string          `json:"label,omitempty"`
}

type ProgressRequest struct {
	Progress float64 `json:"progress"`
	RunTime  float64 `json:"runTime"`
}

type FinishRequest struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
}

type PowerRequest struct {
	JobID string `json:"job_id"`
	Power bool   `json:"power"`
}

func scannerStatus(r domain.Resource) ScannerStatus {
	s := ScannerStatus{Name: r.Name, ID: r.ID, Power: r.Powered}
	if r.Owner != nil {
		s.Owner = &ScannerOwner{Email: r.Owner.Email, JobID: r.Owner.JobID}
	}
	return s
}

func jobStatus(j domain.Job) JobStatus {
	eta, ok := j.ETA()
	if !ok {
		eta = -1
	}
	return JobStatus{
		ID:       j.ID,
		Type:     j.Type,
		Running:  j.State == domain.Running,
		Stopping: j.State == domain.Stopping,
		Paused:   j.State == domain.Paused,
		Progress: j.Progress,
		RunTime:  j.RunTime,
		Label:    j.Label,
		LogFile:  j.LogFile,
		ETA:      eta,
	}
}

func queueEntry(j domain.Job) (QueueEntry, error) {
	raw, err := json.Marshal(j.Content)
	if err != nil {
		return QueueEntry{}, err
	}
	return QueueEntry{ID: j.ID, Type: j.Type, Status: j.State, Blocked: j.Blocked, Content: raw}, nil
}

func jobView(j domain.Job) (Job, error) {
	raw, err := json.Marshal(j.Content)
	if err != nil {
		return Job{}, err
	}
	return Job{
		ID:        j.ID,
		Type:      j.Type,
		State:     j.State,
		Progress:  j.Progress,
		RunTime:   j.RunTime,
		Label:     j.Label,
		Content:   raw,
		LogFile:   j.LogFile,
		DependsOn: j.DependsOn,
		Resource:  j.Resource,
		Blocked:   j.Blocked,
		Reason:    j.Reason,
		Created:   j.Created,
		Started:   j.Started,
		Finished:  j.Finished,
	}, nil
}
