// Package worker runs admitted jobs. A Worker is handed a context that is cancelled when the
// job is asked to stop or the coordinator shuts down; it is expected to notice, clean up and
// return in bounded time. Nothing here kills work outright.
package worker

import (
	"context"

	"github.com/scanomatic/som/domain"
)

type Worker interface {
	// Run performs job and returns nil on success. Return ctx.Err() when giving up because ctx
	// was cancelled.
	Run(ctx context.Context, job domain.Job, r Reporter) error
}

// Reporter carries a running job's reports back to the coordinator. It is meant for the one
// goroutine running the job.
type Reporter interface {
	// Progress is a fraction in [0,1], or domain.UnknownProgress.
	Progress(progress float64) error
	Pause() error
	Resume() error
	SetLogFile(path string)
}

// Func adapts a function to Worker.
type Func func(ctx context.Context, job domain.Job, r Reporter) error

func (f Func) Run(ctx context.Context, job domain.Job, r Reporter) error {
	return f(ctx, job, r)
}
