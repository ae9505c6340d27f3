package worker

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/scanomatic/som/domain"
)

// Environment handed to every command.
const (
	EnvJobID      = "SOM_JOB_ID"
	EnvJobType    = "SOM_JOB_TYPE"
	EnvJobContent = "SOM_JOB_CONTENT"
)

// How long a command has to exit after SIGINT before it is killed.
const DefaultGrace = 10 * time.Second

// Command runs an external program for each job. The program reports on stdout, one per line:
//
//	progress 0.25
//	pause
//	resume
//
// Everything it prints, on either stream, is also written to <LogDir>/<job id>.log.
type Command struct {
	Argv   []string
	LogDir string
	Grace  time.Duration
	// Extra environment, KEY=value.
	Env []string
}

func (c Command) Run(ctx context.Context, job domain.Job, r Reporter) error {
	if len(c.Argv) == 0 {
		return domain.NewInvalidRequestError("no command configured for %s jobs", job.Type)
	}
	content, err := json.Marshal(job.Content)
	if err != nil {
		return errors.Wrapf(err, "encoding content of job %s", job.ID)
	}

	cmd := exec.CommandContext(ctx, c.Argv[0], c.Argv[1:]...)
	cmd.Env = append(os.Environ(), c.Env...)
	cmd.Env = append(cmd.Env,
		EnvJobID+"="+job.ID,
		EnvJobType+"="+string(job.Type),
		EnvJobContent+"="+string(content),
	)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGINT)
	}
	cmd.WaitDelay = c.Grace
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = DefaultGrace
	}

	var logOut io.Writer = io.Discard
	if c.LogDir != "" {
		if err := os.MkdirAll(c.LogDir, 0755); err != nil {
			return errors.Wrapf(err, "creating log dir %s", c.LogDir)
		}
		path := filepath.Join(c.LogDir, job.ID+".log")
		f, err := os.Create(path)
		if err != nil {
			return errors.Wrapf(err, "creating log for job %s", job.ID)
		}
		defer f.Close()
		logOut = f
		r.SetLogFile(path)
	}
	cmd.Stderr = logOut
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return errors.Wrap(err, "stdout pipe")
	}

	if err := cmd.Start(); err != nil {
		return errors.Wrapf(err, "starting %s", c.Argv[0])
	}
	log.WithFields(log.Fields{
		"jobID": job.ID,
		"pid":   cmd.Process.Pid,
		"argv":  c.Argv,
	}).Info("command started")

	// stdout must be drained before Wait, whatever the line lengths
	reader := bufio.NewReader(stdout)
	for {
		line, rerr := reader.ReadString('\n')
		if line != "" {
			line = strings.TrimRight(line, "\r\n")
			io.WriteString(logOut, line+"\n")
			report(r, job.ID, line)
		}
		if rerr != nil {
			if rerr != io.EOF {
				log.WithFields(log.Fields{"jobID": job.ID}).WithError(rerr).Warn("reading command output")
				io.Copy(logOut, stdout)
			}
			break
		}
	}

	err = cmd.Wait()
	if ctx.Err() != nil {
		log.WithFields(log.Fields{"jobID": job.ID}).WithError(err).Info("command stopped")
		return ctx.Err()
	}
	if err != nil {
		return errors.Wrapf(err, "%s", filepath.Base(c.Argv[0]))
	}
	return nil
}

func report(r Reporter, jobID, line string) {
	kind, value, ok := parseLine(line)
	if !ok {
		return
	}
	var err error
	switch kind {
	case "progress":
		err = r.Progress(value)
	case "pause":
		err = r.Pause()
	case "resume":
		err = r.Resume()
	}
	if err != nil {
		log.WithFields(log.Fields{"jobID": jobID, "line": line}).WithError(err).Warn("report rejected")
	}
}

// parseLine recognizes a report line. Anything else is plain output.
func parseLine(line string) (kind string, value float64, ok bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", 0, false
	}
	switch strings.ToLower(fields[0]) {
	case "progress":
		if len(fields) != 2 {
			return "", 0, false
		}
		v, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return "", 0, false
		}
		return "progress", v, true
	case "pause", "resume":
		if len(fields) != 1 {
			return "", 0, false
		}
		return strings.ToLower(fields[0]), 0, true
	}
	return "", 0, false
}
