package somd

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scanomatic/som/api"
	"github.com/scanomatic/som/api/client"
	"github.com/scanomatic/som/config"
	"github.com/scanomatic/som/domain"
)

func TestRunServesUntilCancelled(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		Addr:             "127.0.0.1:0",
		MaxConns:         8,
		TickRate:         5 * time.Millisecond,
		HistorySize:      10,
		NumberOfScanners: 2,
		JournalPath:      filepath.Join(dir, "journal.db"),
		LogDir:           filepath.Join(dir, "logs"),
		Workers: map[string]config.WorkerConfig{
			"compile": {Type: config.WorkerSimulate, Duration: 20 * time.Millisecond, Step: 2 * time.Millisecond},
		},
		Host: config.HostConfig{Interval: time.Hour},
	}

	ctx, cancel := context.WithCancel(context.Background())
	addrs := make(chan net.Addr, 1)
	done := make(chan error, 1)
	go func() { done <- Run(ctx, cfg, func(a net.Addr) { addrs <- a }) }()

	var addr net.Addr
	select {
	case addr = <-addrs:
	case err := <-done:
		t.Fatalf("daemon exited early: %v", err)
	}
	cl := client.NewWithClient(addr.String(), http.DefaultClient)

	scanners, err := cl.Scanners(ctx)
	require.NoError(t, err)
	assert.Len(t, scanners, 2)

	id, err := cl.Submit(ctx, api.SubmitRequest{Type: "compile", Content: json.RawMessage(`{"path":"/data/p1"}`)})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		job, err := cl.Job(ctx, id)
		return err == nil && job.State == domain.Done
	}, 5*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		events, err := cl.History(ctx, id, 0)
		return err == nil && len(events) == 3
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("daemon did not stop")
	}
}

func TestRunBadConfig(t *testing.T) {
	cfg := &config.Config{
		Addr:    "127.0.0.1:0",
		Workers: map[string]config.WorkerConfig{"scan": {Type: "robot"}},
	}
	assert.Error(t, Run(context.Background(), cfg, nil))

	cfg = &config.Config{Addr: "127.0.0.1:0", JournalPath: filepath.Join(t.TempDir(), "missing", "dir", "j.db")}
	assert.Error(t, Run(context.Background(), cfg, nil))
}
