package somctl

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type statusCmd struct{}

func (c *statusCmd) registerFlags() *cobra.Command {
	return &cobra.Command{
		Use:   "status {server|scanners [query]|jobs|queue}",
		Short: "Show server, scanner, job or queue status",
		Args:  cobra.RangeArgs(1, 2),
	}
}

func (c *statusCmd) run(cl *simpleCLIClient, cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	api := cl.dial()
	switch args[0] {
	case "server":
		st, err := api.ServerStatus(ctx)
		if err != nil {
			return err
		}
		return cl.print(st, func(w io.Writer) {
			fmt.Fprintf(w, "uptime:\t%s\n", st.ServerUpTime)
			fmt.Fprintf(w, "cpu ok:\t%v\n", st.ResourceCPU)
			fmt.Fprintf(w, "memory ok:\t%v\n", st.ResourceMem)
			fmt.Fprintf(w, "queued:\t%d\n", st.QueueLength)
			fmt.Fprintf(w, "active jobs:\t%d\n", st.NumberOfJobs)
		})

	case "scanners":
		if len(args) == 2 && args[1] == "free" {
			free, err := api.FreeScanners(ctx)
			if err != nil {
				return err
			}
			return cl.print(free, func(w io.Writer) {
				fmt.Fprintln(w, "ID\tNAME")
				for id, name := range free {
					fmt.Fprintf(w, "%s\t%s\n", id, name)
				}
			})
		}
		if len(args) == 2 {
			s, err := api.Scanner(ctx, args[1])
			if err != nil {
				return err
			}
			return cl.print(s, func(w io.Writer) {
				fmt.Fprintf(w, "%s\t%s\tpower=%v\t%s\n", s.ID, s.Name, s.Power, ownerOf(s.Owner))
			})
		}
		all, err := api.Scanners(ctx)
		if err != nil {
			return err
		}
		return cl.print(all, func(w io.Writer) {
			fmt.Fprintln(w, "ID\tNAME\tPOWER\tOWNER")
			for _, s := range all {
				fmt.Fprintf(w, "%s\t%s\t%v\t%s\n", s.ID, s.Name, s.Power, ownerOf(s.Owner))
			}
		})

	case "jobs":
		jobs, err := api.Jobs(ctx)
		if err != nil {
			return err
		}
		return cl.print(jobs, func(w io.Writer) {
			fmt.Fprintln(w, "ID\tTYPE\tLABEL\tSTATE\tPROGRESS\tETA")
			for _, j := range jobs {
				state := "running"
				switch {
				case j.Stopping:
					state = "stopping"
				case j.Paused:
					state = "paused"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", j.ID, j.Type, j.Label, state, formatProgress(j.Progress), formatETA(j.ETA))
			}
		})

	case "queue":
		queue, err := api.Queue(ctx)
		if err != nil {
			return err
		}
		return cl.print(queue, func(w io.Writer) {
			fmt.Fprintln(w, "ID\tTYPE\tSTATUS\tBLOCKED")
			for _, q := range queue {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", q.ID, q.Type, q.Status, q.Blocked)
			}
		})
	}
	return errors.Errorf("unknown status %q, want server, scanners, jobs or queue", args[0])
}
