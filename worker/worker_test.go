package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scanomatic/som/domain"
)

type fakeReporter struct {
	mu       sync.Mutex
	progress []float64
	calls    []string
	logFile  string
	onReport chan float64
}

func (f *fakeReporter) Progress(p float64) error {
	f.mu.Lock()
	f.progress = append(f.progress, p)
	f.calls = append(f.calls, "progress")
	f.mu.Unlock()
	if f.onReport != nil {
		f.onReport <- p
	}
	return nil
}

func (f *fakeReporter) Pause() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "pause")
	return nil
}

func (f *fakeReporter) Resume() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "resume")
	return nil
}

func (f *fakeReporter) SetLogFile(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logFile = path
}

func testJob() domain.Job {
	return domain.Job{
		ID:      "job-1",
		Type:    domain.Compile,
		State:   domain.Running,
		Content: &domain.CompileContent{Path: "/data/p1"},
	}
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		line  string
		kind  string
		value float64
		ok    bool
	}{
		{"progress 0.25", "progress", 0.25, true},
		{"  PROGRESS 1 ", "progress", 1, true},
		{"progress", "", 0, false},
		{"progress half", "", 0, false},
		{"progress 0.1 0.2", "", 0, false},
		{"pause", "pause", 0, true},
		{"resume", "resume", 0, true},
		{"pause now", "", 0, false},
		{"Resume", "resume", 0, true},
		{"resume later", "", 0, false},
		{"Compiling image 3 of 20", "", 0, false},
		{"", "", 0, false},
	}
	for _, tt := range tests {
		kind, value, ok := parseLine(tt.line)
		assert.Equal(t, tt.ok, ok, tt.line)
		assert.Equal(t, tt.kind, kind, tt.line)
		assert.Equal(t, tt.value, value, tt.line)
	}
}

func TestCommandReportsAndLogs(t *testing.T) {
	dir := t.TempDir()
	script := `echo "progress 0.5"; echo "pause"; echo "resume"; echo "job $SOM_JOB_ID $SOM_JOB_TYPE"; echo "$SOM_JOB_CONTENT"; echo oops >&2`
	c := Command{Argv: []string{"/bin/sh", "-c", script}, LogDir: dir}
	r := &fakeReporter{}

	require.NoError(t, c.Run(context.Background(), testJob(), r))

	assert.Equal(t, []float64{0.5}, r.progress)
	assert.Equal(t, []string{"progress", "pause", "resume"}, r.calls)
	assert.Equal(t, filepath.Join(dir, "job-1.log"), r.logFile)

	out, err := os.ReadFile(r.logFile)
	require.NoError(t, err)
	assert.Contains(t, string(out), "progress 0.5\n")
	assert.Contains(t, string(out), "job job-1 Compile\n")
	assert.Contains(t, string(out), `{"path":"/data/p1"}`)
	assert.Contains(t, string(out), "oops\n")
}

func TestCommandLongLines(t *testing.T) {
	dir := t.TempDir()
	script := `head -c 71680 /dev/zero | tr '\0' x; echo; head -c 204800 /dev/zero | tr '\0' y | fold -w 100; echo "progress 0.9"`
	c := Command{Argv: []string{"/bin/sh", "-c", script}, LogDir: dir}
	r := &fakeReporter{}

	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background(), testJob(), r) }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("command output was not drained")
	}
	assert.Equal(t, []float64{0.9}, r.progress)

	info, err := os.Stat(r.logFile)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(71680+204800))
}

func TestCommandFailure(t *testing.T) {
	c := Command{Argv: []string{"/bin/sh", "-c", "exit 2"}}
	err := c.Run(context.Background(), testJob(), &fakeReporter{})
	require.Error(t, err)
	assert.False(t, errors.Is(err, context.Canceled))
	assert.Contains(t, err.Error(), "exit status 2")

	err = Command{}.Run(context.Background(), testJob(), &fakeReporter{})
	assert.True(t, domain.IsInvalidRequest(err))
}

func TestCommandInterrupted(t *testing.T) {
	script := `trap 'exit 3' INT; echo "progress 0.1"; while true; do sleep 0.05; done`
	c := Command{Argv: []string{"/bin/sh", "-c", script}, Grace: 2 * time.Second}
	r := &fakeReporter{onReport: make(chan float64, 1)}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- c.Run(ctx, testJob(), r) }()

	select {
	case p := <-r.onReport:
		assert.Equal(t, 0.1, p)
	case <-time.After(5 * time.Second):
		t.Fatal("no progress from command")
	}
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("command did not exit after SIGINT")
	}
}

func TestSimulated(t *testing.T) {
	r := &fakeReporter{}
	s := Simulated{Duration: 20 * time.Millisecond, Step: 2 * time.Millisecond}
	require.NoError(t, s.Run(context.Background(), testJob(), r))
	require.NotEmpty(t, r.progress)
	assert.Equal(t, 1.0, r.progress[len(r.progress)-1])
	for i := 1; i < len(r.progress); i++ {
		assert.GreaterOrEqual(t, r.progress[i], r.progress[i-1])
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Simulated{Duration: time.Hour}.Run(ctx, testJob(), &fakeReporter{})
	assert.ErrorIs(t, err, context.Canceled)

	r = &fakeReporter{}
	require.NoError(t, Simulated{}.Run(context.Background(), testJob(), r))
	assert.Equal(t, []float64{1}, r.progress)
}
