package journal

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scanomatic/som/common/stats"
	"github.com/scanomatic/som/coordinator"
	"github.com/scanomatic/som/domain"
)

func openTemp(t *testing.T) (*Journal, string) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j, path
}

func TestHistoryRoundTrip(t *testing.T) {
	j, _ := openTemp(t)
	at := time.UnixMilli(1700000000123)
	j.Observe(coordinator.Event{Time: at, Kind: coordinator.EventSubmitted, JobID: "a", Type: domain.Scan, To: domain.Queued})
	j.Observe(coordinator.Event{Time: at, Kind: coordinator.EventSubmitted, JobID: "b", Type: domain.Compile, To: domain.Queued})
	j.Observe(coordinator.Event{Time: at.Add(time.Second), Kind: coordinator.EventTransition, JobID: "a", Type: domain.Scan, From: domain.Queued, To: domain.Running})
	j.Observe(coordinator.Event{Time: at.Add(2 * time.Second), Kind: coordinator.EventTransition, JobID: "a", Type: domain.Scan, From: domain.Running, To: domain.Failed, Reason: "stopped"})

	got, err := j.History(context.Background(), "a", 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, coordinator.EventSubmitted, got[0].Kind)
	assert.True(t, got[0].Time.Equal(at))
	assert.Equal(t, domain.Queued, got[1].From)
	assert.Equal(t, domain.Running, got[1].To)
	assert.Equal(t, "stopped", got[2].Reason)
	assert.Equal(t, domain.Scan, got[2].Type)

	got, err = j.History(context.Background(), "a", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)

	got, err = j.History(context.Background(), "nope", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReopenKeepsEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, j.Append(context.Background(), coordinator.Event{Time: time.Now(), Kind: coordinator.EventRemoved, JobID: "x", Type: domain.Features}))
	require.NoError(t, j.Close())

	j, err = Open(path, nil)
	require.NoError(t, err)
	defer j.Close()
	got, err := j.History(context.Background(), "x", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, coordinator.EventRemoved, got[0].Kind)
}

func TestWriteErrorsAreCounted(t *testing.T) {
	stat := stats.DefaultStatsReceiver()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"), stat)
	require.NoError(t, err)
	require.NoError(t, j.Close())

	j.Observe(coordinator.Event{Time: time.Now(), Kind: coordinator.EventSubmitted, JobID: "a"})
	stats.StatsOk("", stat, t, map[string]stats.Rule{
		"journal/" + stats.JournalWriteErrCounter: {Checker: stats.Int64EqTest, Value: 1},
	})

	_, err = j.History(context.Background(), "a", 0)
	assert.Error(t, err)
	assert.False(t, errors.Is(err, context.Canceled))
}

func TestJournalAsListener(t *testing.T) {
	j, _ := openTemp(t)
	c, err := coordinator.New(coordinator.Config{
		Resources: []domain.Resource{{ID: "s1", Name: "Scanner 1"}},
		Listeners: []coordinator.Listener{j},
		TickRate:  time.Millisecond,
	}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- c.Run(ctx) }()

	job, err := c.Submit(coordinator.SubmitRequest{Type: domain.Scan, Content: &domain.ScanContent{ProjectName: "p", Scanner: "s1"}})
	require.NoError(t, err)
	assert.True(t, c.RequestStop(job.ID).Accepted)
	require.NoError(t, c.Finish(job.ID, context.Canceled))

	cancel()
	require.NoError(t, <-done)

	got, err := j.History(context.Background(), job.ID, 0)
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, domain.Stopping, got[2].To)
	assert.Equal(t, domain.Failed, got[3].To)
	assert.Equal(t, coordinator.ReasonStopped, got[3].Reason)
}
