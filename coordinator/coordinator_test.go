package coordinator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/scanomatic/som/common/stats"
	"github.com/scanomatic/som/domain"
	"github.com/scanomatic/som/worker"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func makeCoordinator(t *testing.T, cfg Config) (*Coordinator, stats.StatsReceiver) {
	if cfg.Resources == nil {
		cfg.Resources = []domain.Resource{
			{ID: "s1", Name: "Scanner 1"},
			{ID: "s2", Name: "Scanner 2"},
		}
	}
	stat := stats.DefaultStatsReceiver()
	c, err := New(cfg, stat)
	require.NoError(t, err)
	return c, stat
}

func scanReq(scanner string) SubmitRequest {
	return SubmitRequest{Type: domain.Scan, Content: &domain.ScanContent{ProjectName: "proj", Scanner: scanner, Email: "lab@x.org"}}
}

func compileReq(path string) SubmitRequest {
	return SubmitRequest{Type: domain.Compile, Content: &domain.CompileContent{Path: path}}
}

func analysisReq(compilation string) SubmitRequest {
	return SubmitRequest{Type: domain.Analysis, Content: &domain.AnalysisContent{Compilation: compilation, OutputDirectory: "analysis"}}
}

func state(t *testing.T, c *Coordinator, id string) domain.JobState {
	j, err := c.Job(id)
	require.NoError(t, err)
	return j.State
}

func TestResourceContention(t *testing.T) {
	c, stat := makeCoordinator(t, Config{})

	a, err := c.Submit(scanReq("s1"))
	require.NoError(t, err)
	b, err := c.Submit(scanReq("s1"))
	require.NoError(t, err)

	assert.Equal(t, domain.Running, a.State)
	assert.Equal(t, "s1", a.Resource)
	assert.Equal(t, domain.Queued, b.State)
	assert.Equal(t, BlockedBusy, b.Blocked)
	assert.Equal(t, map[string]string{"s1": a.ID}, c.Holders())

	res := c.FindResources("s1")
	require.Len(t, res, 1)
	assert.Equal(t, "lab@x.org", res[0].Owner.Email)

	require.NoError(t, c.Finish(a.ID, nil))
	assert.Equal(t, domain.Done, state(t, c, a.ID))

	b, _ = c.Job(b.ID)
	assert.Equal(t, domain.Running, b.State)
	assert.Empty(t, b.Blocked)
	assert.Equal(t, map[string]string{"s1": b.ID}, c.Holders())

	stats.StatsOk("", stat, t, map[string]stats.Rule{
		"coordinator/" + stats.CoordJobsSubmittedCounter: {Checker: stats.Int64EqTest, Value: 2},
		"coordinator/" + stats.CoordJobsAdmittedCounter:  {Checker: stats.Int64EqTest, Value: 2},
		"coordinator/" + stats.CoordJobsDoneCounter:      {Checker: stats.Int64EqTest, Value: 1},
		"coordinator/" + stats.CoordLockBusyCounter:      {Checker: stats.Int64EqTest, Value: 1},
		"coordinator/" + stats.CoordActiveJobsGauge:      {Checker: stats.Int64EqTest, Value: 1},
	})
}

func TestScansOnDifferentScannersRunTogether(t *testing.T) {
	c, _ := makeCoordinator(t, Config{})
	a, _ := c.Submit(scanReq("s1"))
	b, _ := c.Submit(scanReq("s2"))
	assert.Equal(t, domain.Running, a.State)
	assert.Equal(t, domain.Running, b.State)
	assert.Empty(t, c.FreeResources())
}

func TestFIFOPerScanner(t *testing.T) {
	c, _ := makeCoordinator(t, Config{})
	a, _ := c.Submit(scanReq("s1"))
	b, _ := c.Submit(scanReq("s1"))
	d, _ := c.Submit(scanReq("s1"))

	require.NoError(t, c.Finish(a.ID, errors.New("lamp broke")))
	assert.Equal(t, domain.Running, state(t, c, b.ID))
	assert.Equal(t, domain.Queued, state(t, c, d.ID))
}

func TestNonScanJobsAdmittedImmediately(t *testing.T) {
	c, _ := makeCoordinator(t, Config{})
	a, err := c.Submit(compileReq("/data/p1"))
	require.NoError(t, err)
	b, err := c.Submit(compileReq("/data/p2"))
	require.NoError(t, err)
	assert.Equal(t, domain.Running, a.State)
	assert.Equal(t, domain.Running, b.State)
	assert.Empty(t, a.Resource)
}

func TestDependencyCascade(t *testing.T) {
	c, stat := makeCoordinator(t, Config{})
	comp, err := c.Submit(compileReq("/data/p1"))
	require.NoError(t, err)
	ana, err := c.Submit(analysisReq("/data/p1/p1.project.compilation"))
	require.NoError(t, err)
	feat, err := c.Submit(SubmitRequest{Type: domain.Features, Content: &domain.FeaturesContent{AnalysisDirectory: "/data/p1/analysis"}})
	require.NoError(t, err)

	assert.Equal(t, comp.ID, ana.DependsOn, "upstream derived from paths")
	assert.Equal(t, ana.ID, feat.DependsOn)
	assert.Equal(t, domain.Queued, ana.State)
	assert.Equal(t, "waiting on "+comp.ID, ana.Blocked)

	require.NoError(t, c.Finish(comp.ID, errors.New("bad fixture")))

	ana, _ = c.Job(ana.ID)
	assert.Equal(t, domain.Failed, ana.State)
	assert.True(t, ana.Started.IsZero(), "never ran")
	assert.Contains(t, ana.Reason, comp.ID)

	feat, _ = c.Job(feat.ID)
	assert.Equal(t, domain.Failed, feat.State, "cascade is transitive")
	assert.Contains(t, feat.Reason, ana.ID)

	stats.StatsOk("", stat, t, map[string]stats.Rule{
		"coordinator/" + stats.CoordDependencyFailedCounter: {Checker: stats.Int64EqTest, Value: 2},
		"coordinator/" + stats.CoordJobsFailedCounter:       {Checker: stats.Int64EqTest, Value: 3},
	})
}

func TestDependencyDoneAdmitsDownstream(t *testing.T) {
	c, _ := makeCoordinator(t, Config{})
	comp, _ := c.Submit(compileReq("/data/p1"))
	ana, _ := c.Submit(analysisReq("/data/p1/p1.project.compilation"))
	other, _ := c.Submit(analysisReq("/data/p2/p2.project.compilation"))

	assert.Empty(t, other.DependsOn, "no compile writes /data/p2")
	assert.Equal(t, domain.Running, other.State)

	require.NoError(t, c.Finish(comp.ID, nil))
	assert.Equal(t, domain.Running, state(t, c, ana.ID))

	// a finished upstream is still recorded, and is already satisfied
	again, err := c.Submit(analysisReq("/data/p1/p1.project.compilation"))
	require.NoError(t, err)
	assert.Equal(t, comp.ID, again.DependsOn)
	assert.Equal(t, domain.Running, again.State)
}

func TestExplicitDependencyOnFailedJob(t *testing.T) {
	c, _ := makeCoordinator(t, Config{})
	comp, _ := c.Submit(compileReq("/data/p1"))
	require.NoError(t, c.Finish(comp.ID, errors.New("boom")))

	req := analysisReq("/elsewhere/x.project.compilation")
	req.DependsOn = comp.ID
	ana, err := c.Submit(req)
	require.NoError(t, err)
	assert.Equal(t, domain.Failed, ana.State)
	assert.Contains(t, ana.Reason, comp.ID)

	req.DependsOn = "missing"
	_, err = c.Submit(req)
	assert.True(t, domain.IsNotFound(err))
}

func TestStopProtocol(t *testing.T) {
	c, stat := makeCoordinator(t, Config{})
	j, _ := c.Submit(compileReq("/data/p1"))
	require.Equal(t, domain.Running, j.State)

	res := c.RequestStop(j.ID)
	assert.True(t, res.Accepted)
	assert.Empty(t, res.Reason)
	assert.Equal(t, domain.Stopping, state(t, c, j.ID))

	res = c.RequestStop(j.ID)
	assert.False(t, res.Accepted)
	assert.NotEmpty(t, res.Reason)
	assert.Contains(t, res.Reason, "already stopping")

	require.NoError(t, c.Finish(j.ID, context.Canceled))
	j, _ = c.Job(j.ID)
	assert.Equal(t, domain.Failed, j.State)
	assert.Equal(t, ReasonStopped, j.Reason)

	res = c.RequestStop(j.ID)
	assert.False(t, res.Accepted)
	assert.Contains(t, res.Reason, "already finished")

	stats.StatsOk("", stat, t, map[string]stats.Rule{
		"coordinator/" + stats.CoordStopAcceptedCounter: {Checker: stats.Int64EqTest, Value: 1},
		"coordinator/" + stats.CoordStopRefusedCounter:  {Checker: stats.Int64EqTest, Value: 2},
	})
}

func TestStopRefusals(t *testing.T) {
	c, _ := makeCoordinator(t, Config{})
	res := c.RequestStop("nope")
	assert.False(t, res.Accepted)
	assert.Contains(t, res.Reason, "not found")

	c.Submit(scanReq("s1"))
	queued, _ := c.Submit(scanReq("s1"))
	res = c.RequestStop(queued.ID)
	assert.False(t, res.Accepted)
	assert.Contains(t, res.Reason, "queued")
	assert.Equal(t, domain.Queued, state(t, c, queued.ID))
}

func TestStoppingJobCanStillFinishDone(t *testing.T) {
	c, _ := makeCoordinator(t, Config{})
	j, _ := c.Submit(scanReq("s1"))
	require.NoError(t, c.Pause(j.ID))
	assert.True(t, c.RequestStop(j.ID).Accepted)
	require.NoError(t, c.Finish(j.ID, nil))
	assert.Equal(t, domain.Done, state(t, c, j.ID))
	assert.Empty(t, c.Holders())
}

func TestUnknownJobLeavesStateUnchanged(t *testing.T) {
	c, _ := makeCoordinator(t, Config{})
	c.Submit(scanReq("s1"))
	c.Submit(scanReq("s1"))
	c.Submit(compileReq("/data/p1"))
	before := c.Jobs()
	holders := c.Holders()

	_, err := c.Job("nope")
	assert.True(t, domain.IsNotFound(err))
	assert.True(t, domain.IsNotFound(c.ReportProgress("nope", 0.5, 10)))
	assert.True(t, domain.IsNotFound(c.Pause("nope")))
	assert.True(t, domain.IsNotFound(c.Resume("nope")))
	assert.True(t, domain.IsNotFound(c.Finish("nope", nil)))
	assert.True(t, domain.IsNotFound(c.RemoveFromQueue("nope")))
	assert.True(t, domain.IsNotFound(c.SetScannerPower("nope", "s1", true)))
	assert.False(t, c.RequestStop("nope").Accepted)

	assert.Equal(t, before, c.Jobs())
	assert.Equal(t, holders, c.Holders())
}

func TestProgressReports(t *testing.T) {
	c, _ := makeCoordinator(t, Config{})
	j, _ := c.Submit(compileReq("/data/p1"))

	require.NoError(t, c.ReportProgress(j.ID, 0.5, 100))
	j, _ = c.Job(j.ID)
	eta, ok := j.ETA()
	require.True(t, ok)
	assert.InDelta(t, 1.6666, eta, 1e-3)

	require.NoError(t, c.Pause(j.ID))
	assert.True(t, domain.IsIllegalTransition(c.Pause(j.ID)))
	require.NoError(t, c.ReportProgress(j.ID, 0.6, 110))
	require.NoError(t, c.Resume(j.ID))

	c.Submit(scanReq("s1"))
	c.Submit(scanReq("s1"))
	q := c.Queue()
	require.Len(t, q, 1)
	assert.True(t, domain.IsInvalidState(c.ReportProgress(q[0].ID, 0.1, 1)))
	assert.True(t, domain.IsIllegalTransition(c.Resume(q[0].ID)), "only the scheduler admits")
	assert.True(t, domain.IsInvalidState(c.Finish(q[0].ID, nil)))

	require.NoError(t, c.Finish(j.ID, nil))
	assert.True(t, domain.IsInvalidState(c.ReportProgress(j.ID, 0.9, 120)))
	assert.True(t, domain.IsIllegalTransition(c.Finish(j.ID, nil)))
}

func TestRemoveFromQueueCascades(t *testing.T) {
	c, stat := makeCoordinator(t, Config{})
	c.Submit(scanReq("s1"))
	scan, _ := c.Submit(scanReq("s1"))
	comp, _ := c.Submit(compileReq("/data/p1"))
	ana, _ := c.Submit(analysisReq("/data/p1/p1.project.compilation"))
	req := analysisReq("/data/p2/p2.project.compilation")
	req.DependsOn = scan.ID
	waiting, err := c.Submit(req)
	require.NoError(t, err)
	require.Equal(t, domain.Queued, waiting.State)

	assert.True(t, domain.IsInvalidState(c.RemoveFromQueue(comp.ID)), "already running")
	require.NoError(t, c.RemoveFromQueue(scan.ID))
	_, err = c.Job(scan.ID)
	assert.True(t, domain.IsNotFound(err))

	waiting, _ = c.Job(waiting.ID)
	assert.Equal(t, domain.Failed, waiting.State)
	assert.Contains(t, waiting.Reason, "removed")
	assert.Equal(t, domain.Queued, state(t, c, ana.ID), "its upstream is still running")

	stats.StatsOk("", stat, t, map[string]stats.Rule{
		"coordinator/" + stats.CoordJobsRemovedCounter: {Checker: stats.Int64EqTest, Value: 1},
	})
}

func TestFlushQueue(t *testing.T) {
	c, _ := makeCoordinator(t, Config{})
	running, _ := c.Submit(scanReq("s1"))
	c.Submit(scanReq("s1"))
	c.Submit(scanReq("s1"))

	assert.Equal(t, 2, c.FlushQueue())
	assert.Empty(t, c.Queue())
	assert.Equal(t, domain.Running, state(t, c, running.ID))
	assert.Equal(t, 0, c.FlushQueue())
}

type recordingPower struct {
	mu    sync.Mutex
	calls []string
}

func (p *recordingPower) SetPower(ctx context.Context, id string, on bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if on {
		p.calls = append(p.calls, id+":on")
	} else {
		p.calls = append(p.calls, id+":off")
	}
	return nil
}

func (p *recordingPower) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

func TestScannerPowerOnlyByOwner(t *testing.T) {
	power := &recordingPower{}
	c, _ := makeCoordinator(t, Config{Power: power})
	a, _ := c.Submit(scanReq("s1"))
	b, _ := c.Submit(scanReq("s2"))

	require.NoError(t, c.SetScannerPower(a.ID, "s1", true))
	assert.True(t, domain.IsAlreadyOwned(c.SetScannerPower(b.ID, "s1", false)))
	assert.True(t, domain.IsNotFound(c.SetScannerPower(a.ID, "s9", true)))
	res := c.FindResources("s1")
	assert.True(t, res[0].Powered)

	// releasing powers the scanner down
	require.NoError(t, c.Finish(a.ID, nil))
	res = c.FindResources("s1")
	assert.False(t, res[0].Powered)
	assert.True(t, res[0].Free())
	assert.True(t, domain.IsInvalidState(c.SetScannerPower(a.ID, "s1", true)))

	require.Eventually(t, func() bool { return len(power.Calls()) == 2 }, time.Second, 5*time.Millisecond)
	assert.ElementsMatch(t, []string{"s1:on", "s1:off"}, power.Calls())
}

func TestKeyedLocks(t *testing.T) {
	c, stat := makeCoordinator(t, Config{})
	assert.True(t, c.AcquireLock("/data/p1", "analysis-client"))
	assert.False(t, c.AcquireLock("/data/p1", "other"))
	assert.False(t, c.ReleaseLock("/data/p1", "other"))
	assert.True(t, c.ReleaseLock("/data/p1", "analysis-client"))
	assert.True(t, c.AcquireLock("/data/p1", "other"))
	assert.Empty(t, c.Holders(), "keyed locks never touch scanners")

	stats.StatsOk("", stat, t, map[string]stats.Rule{
		"coordinator/" + stats.CoordKeyLockRefusedCounter: {Checker: stats.Int64EqTest, Value: 1},
	})
}

func TestServerStatus(t *testing.T) {
	c, _ := makeCoordinator(t, Config{Host: &fakeHost{cpu: false, mem: true}})
	c.Submit(scanReq("s1"))
	c.Submit(scanReq("s1"))
	c.Submit(compileReq("/data/p1"))

	st := c.ServerStatus()
	assert.Equal(t, "Not Running", st.ServerUpTime)
	assert.False(t, st.ResourceCPU)
	assert.True(t, st.ResourceMem)
	assert.Equal(t, 1, st.QueueLength)
	assert.Equal(t, 2, st.NumberOfJobs)

	base := time.Unix(1000, 0)
	c.startedAt = base
	c.now = func() time.Time { return base.Add(time.Hour + 2*time.Minute + 3456*time.Millisecond) }
	assert.Equal(t, "1h, 2m, 3.46s", c.ServerStatus().ServerUpTime)
}

func TestFormatUptime(t *testing.T) {
	assert.Equal(t, "0h, 0m, 0.00s", FormatUptime(0))
	assert.Equal(t, "0h, 1m, 5.50s", FormatUptime(65500*time.Millisecond))
	assert.Equal(t, "26h, 0m, 0.00s", FormatUptime(26*time.Hour))
}

type fakeHost struct {
	mu       sync.Mutex
	cpu, mem bool
	ready    bool
}

func (h *fakeHost) Status() (bool, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cpu, h.mem
}

func (h *fakeHost) Ready(consume bool) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	r := h.ready
	if consume {
		h.ready = false
	}
	return r
}

func TestHostGate(t *testing.T) {
	host := &fakeHost{}
	c, _ := makeCoordinator(t, Config{Host: host, GateOnHost: true})

	// nothing active: the first job always goes
	first, _ := c.Submit(compileReq("/data/p1"))
	assert.Equal(t, domain.Running, first.State)

	second, _ := c.Submit(compileReq("/data/p2"))
	assert.Equal(t, domain.Queued, second.State)
	assert.Equal(t, BlockedHost, second.Blocked)

	// scans are not gated
	scan, _ := c.Submit(scanReq("s1"))
	assert.Equal(t, domain.Running, scan.State)

	host.mu.Lock()
	host.ready = true
	host.mu.Unlock()
	c.step()
	assert.Equal(t, domain.Running, state(t, c, second.ID))
}

func TestListenerReceivesEvents(t *testing.T) {
	var mu sync.Mutex
	var got []Event
	l := ListenerFunc(func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, ev)
	})
	c, _ := makeCoordinator(t, Config{Listeners: []Listener{l}, TickRate: time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- c.Run(ctx) }()

	j, _ := c.Submit(compileReq("/data/p1"))
	require.NoError(t, c.Finish(j.ID, nil))

	cancel()
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 3)
	assert.Equal(t, EventSubmitted, got[0].Kind)
	assert.Equal(t, domain.Running, got[1].To)
	assert.Equal(t, domain.Done, got[2].To)
	for _, ev := range got {
		assert.Equal(t, j.ID, ev.JobID)
		assert.False(t, ev.Time.IsZero())
	}
}

func TestRunTwice(t *testing.T) {
	c, _ := makeCoordinator(t, Config{TickRate: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- c.Run(ctx) }()
	require.Eventually(t, func() bool { return c.ServerStatus().ServerUpTime != "Not Running" }, time.Second, time.Millisecond)

	assert.Error(t, c.Run(context.Background()))
	cancel()
	require.NoError(t, <-done)
}

func TestInProcessWorkerStop(t *testing.T) {
	started := make(chan string, 2)
	w := worker.Func(func(ctx context.Context, job domain.Job, r worker.Reporter) error {
		if err := r.Progress(0.25); err != nil {
			return err
		}
		r.SetLogFile("/tmp/" + job.ID + ".log")
		started <- job.ID
		<-ctx.Done()
		return ctx.Err()
	})
	c, _ := makeCoordinator(t, Config{
		Workers:  map[domain.JobType]worker.Worker{domain.Scan: w},
		TickRate: time.Millisecond,
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- c.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	a, _ := c.Submit(scanReq("s1"))
	b, _ := c.Submit(scanReq("s1"))
	assert.Equal(t, a.ID, <-started)

	a, _ = c.Job(a.ID)
	assert.Equal(t, 0.25, a.Progress)
	assert.True(t, strings.HasSuffix(a.LogFile, a.ID+".log"))

	require.True(t, c.RequestStop(a.ID).Accepted)
	require.Eventually(t, func() bool { return state(t, c, a.ID) == domain.Failed }, time.Second, time.Millisecond)
	a, _ = c.Job(a.ID)
	assert.Equal(t, ReasonStopped, a.Reason)

	// the freed scanner goes to the next scan
	assert.Equal(t, b.ID, <-started)
	assert.Equal(t, domain.Running, state(t, c, b.ID))
}

func TestInProcessWorkerCompletes(t *testing.T) {
	c, _ := makeCoordinator(t, Config{
		Workers: map[domain.JobType]worker.Worker{
			domain.Compile: worker.Simulated{Duration: 5 * time.Millisecond, Step: time.Millisecond},
		},
	})
	j, _ := c.Submit(compileReq("/data/p1"))
	require.Eventually(t, func() bool { return state(t, c, j.ID) == domain.Done }, time.Second, time.Millisecond)

	j, _ = c.Job(j.ID)
	assert.Equal(t, 1.0, j.Progress)
	assert.False(t, j.Finished.Before(j.Started))
}

func TestShutdownCancelsWorkers(t *testing.T) {
	w := worker.Func(func(ctx context.Context, job domain.Job, r worker.Reporter) error {
		<-ctx.Done()
		return ctx.Err()
	})
	c, _ := makeCoordinator(t, Config{Workers: map[domain.JobType]worker.Worker{domain.Compile: w}, TickRate: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- c.Run(ctx) }()

	j, _ := c.Submit(compileReq("/data/p1"))
	queued, _ := c.Submit(analysisReq("/data/p1/p1.project.compilation"))
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, domain.Failed, state(t, c, j.ID))
	assert.Equal(t, domain.Failed, state(t, c, queued.ID), "dependent of a failed job")
}
