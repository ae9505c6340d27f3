package somctl

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/scanomatic/som/domain"
)

const defaultWatchInterval = 3 * time.Second

type watchCmd struct {
	interval time.Duration
}

func (c *watchCmd) registerFlags() *cobra.Command {
	r := &cobra.Command{
		Use:   "watch <job id>",
		Short: "Poll a job until it finishes, printing progress and ETA",
		Args:  cobra.ExactArgs(1),
	}
	r.Flags().DurationVar(&c.interval, "interval", defaultWatchInterval, "time between polls")
	return r
}

func (c *watchCmd) run(cl *simpleCLIClient, cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	limiter := rate.NewLimiter(rate.Every(c.interval), 1)
	for {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
		job, err := cl.dial().Job(ctx, args[0])
		if err != nil {
			return err
		}
		eta, ok := domain.EstimateRemaining(job.Progress, job.RunTime)
		if !ok {
			eta = -1
		}
		if err := cl.print(job, func(w io.Writer) {
			line := fmt.Sprintf("%s\t%s\t%s\teta %s", job.ID, job.State, formatProgress(job.Progress), formatETA(eta))
			if job.Blocked != "" {
				line += "\t(" + job.Blocked + ")"
			}
			if job.Reason != "" {
				line += "\t" + job.Reason
			}
			fmt.Fprintln(w, line)
		}); err != nil {
			return err
		}
		if job.State.Terminal() {
			return nil
		}
	}
}
