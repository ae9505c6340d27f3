package somctl

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/scanomatic/som/api"
)

var errLockHeld = errors.New("lock held by someone else")

type lockCmd struct {
	op      string
	owner   string
	wait    bool
	timeout time.Duration
}

func (c *simpleCLIClient) lockCmd() *cobra.Command {
	r := &cobra.Command{
		Use:   "lock",
		Short: "Acquire or release a named lock, e.g. a project directory",
	}
	r.AddCommand(c.wrap(&lockCmd{op: "acquire"}))
	r.AddCommand(c.wrap(&lockCmd{op: "release"}))
	return r
}

func (c *lockCmd) registerFlags() *cobra.Command {
	r := &cobra.Command{
		Use:   c.op + " <key>",
		Short: c.op + " the lock named key",
		Args:  cobra.ExactArgs(1),
	}
	host, _ := os.Hostname()
	r.Flags().StringVar(&c.owner, "owner", fmt.Sprintf("%s-%d", host, os.Getpid()), "lock holder name")
	if c.op == "acquire" {
		r.Flags().BoolVar(&c.wait, "wait", false, "retry with backoff until the lock is free")
		r.Flags().DurationVar(&c.timeout, "timeout", 5*time.Minute, "give up waiting after this long")
	}
	return r
}

func (c *lockCmd) run(cl *simpleCLIClient, cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	key := args[0]
	try := func() error {
		var ok bool
		var err error
		if c.op == "acquire" {
			ok, err = cl.dial().AcquireLock(ctx, key, c.owner)
		} else {
			ok, err = cl.dial().ReleaseLock(ctx, key, c.owner)
		}
		if err != nil {
			return err
		}
		if !ok {
			return errLockHeld
		}
		return nil
	}

	var err error
	if c.wait {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = 200 * time.Millisecond
		b.MaxInterval = 10 * time.Second
		b.MaxElapsedTime = c.timeout
		err = backoff.RetryNotify(try, backoff.WithContext(b, ctx), func(err error, next time.Duration) {
			log.WithFields(log.Fields{"key": key, "next": next}).WithError(err).Info("lock busy, retrying")
		})
	} else {
		err = try()
	}

	res := api.LockResult{Success: err == nil}
	if perr := cl.print(res, func(w io.Writer) {
		if res.Success {
			fmt.Fprintf(w, "%sd %s as %s\n", c.op, key, c.owner)
		}
	}); perr != nil {
		return perr
	}
	if err != nil {
		return errors.Wrapf(err, "%s %s", c.op, key)
	}
	return nil
}
