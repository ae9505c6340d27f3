package somctl

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/scanomatic/som/api"
)

func ownerOf(o *api.ScannerOwner) string {
	if o == nil {
		return "-"
	}
	if o.Email == "" {
		return o.JobID
	}
	return fmt.Sprintf("%s (%s)", o.JobID, o.Email)
}

type submitCmd struct {
	dependsOn   string
	label       string
	contentFile string
}

func (c *submitCmd) registerFlags() *cobra.Command {
	r := &cobra.Command{
		Use:   "submit <type> [content-json]",
		Short: "Submit a Scan, Compile, Analysis or Features job",
		Example: `  somctl submit scan '{"project_name":"plates","scanner":"1"}'
  somctl submit compile --content compile.json`,
		Args: cobra.RangeArgs(1, 2),
	}
	r.Flags().StringVar(&c.dependsOn, "depends_on", "", "upstream job id, derived from paths when empty")
	r.Flags().StringVar(&c.label, "label", "", "job label, defaults to the job id")
	r.Flags().StringVar(&c.contentFile, "content", "", "read the content model from this file, - for stdin")
	return r
}

func (c *submitCmd) run(cl *simpleCLIClient, cmd *cobra.Command, args []string) error {
	var content []byte
	switch {
	case len(args) == 2:
		content = []byte(args[1])
	case c.contentFile == "-":
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return errors.Wrap(err, "reading content from stdin")
		}
		content = b
	case c.contentFile != "":
		b, err := os.ReadFile(c.contentFile)
		if err != nil {
			return errors.Wrap(err, "reading content")
		}
		content = b
	default:
		return errors.New("a content model must be given as an argument or with --content")
	}
	if !json.Valid(content) {
		return errors.New("content model is not valid JSON")
	}

	id, err := cl.dial().Submit(cmd.Context(), api.SubmitRequest{
		Type:      args[0],
		Content:   content,
		DependsOn: c.dependsOn,
		Label:     c.label,
	})
	if err != nil {
		return err
	}
	return cl.print(api.Result{Success: true, ID: id}, func(w io.Writer) {
		fmt.Fprintln(w, id)
	})
}

type stopCmd struct{}

func (c *stopCmd) registerFlags() *cobra.Command {
	return &cobra.Command{
		Use:   "stop <job id>",
		Short: "Ask a running job to stop",
		Args:  cobra.ExactArgs(1),
	}
}

func (c *stopCmd) run(cl *simpleCLIClient, cmd *cobra.Command, args []string) error {
	res, err := cl.dial().Stop(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if err := cl.print(res, func(w io.Writer) {
		if res.Success {
			fmt.Fprintf(w, "stopping %s\n", args[0])
		}
	}); err != nil {
		return err
	}
	if !res.Success {
		return errors.Errorf("stop refused: %s", res.Reason)
	}
	return nil
}

type removeCmd struct {
	all bool
}

func (c *removeCmd) registerFlags() *cobra.Command {
	r := &cobra.Command{
		Use:   "remove [job id]",
		Short: "Remove a job from the queue, or every queued job with --all",
		Args:  cobra.MaximumNArgs(1),
	}
	r.Flags().BoolVar(&c.all, "all", false, "flush the whole queue")
	return r
}

func (c *removeCmd) run(cl *simpleCLIClient, cmd *cobra.Command, args []string) error {
	if c.all {
		if len(args) != 0 {
			return errors.New("--all takes no job id")
		}
		n, err := cl.dial().Flush(cmd.Context())
		if err != nil {
			return err
		}
		return cl.print(api.Result{Success: true, Removed: &n}, func(w io.Writer) {
			fmt.Fprintf(w, "removed %d jobs\n", n)
		})
	}
	if len(args) != 1 {
		return errors.New("a job id must be provided")
	}
	if err := cl.dial().Remove(cmd.Context(), args[0]); err != nil {
		return err
	}
	return cl.print(api.Result{Success: true, ID: args[0]}, func(w io.Writer) {
		fmt.Fprintf(w, "removed %s\n", args[0])
	})
}
