package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/davecgh/go-spew/spew"
	log "github.com/sirupsen/logrus"

	"github.com/scanomatic/som/common/stats"
	"github.com/scanomatic/som/domain"
	"github.com/scanomatic/som/jobs"
	"github.com/scanomatic/som/locks"
	"github.com/scanomatic/som/resources"
	"github.com/scanomatic/som/worker"
)

// How often queued jobs are re-examined when nothing else triggers a pass.
const DefaultTickRate = 250 * time.Millisecond

const DefaultEventBuffer = 1024

// HostChecker reports whether the host has spare CPU and memory. Implementations must answer
// from cached state without blocking.
type HostChecker interface {
	Status() (cpuOK, memOK bool)
	// Ready is true once enough consecutive checks have passed; consume resets the count.
	Ready(consume bool) bool
}

// PowerSwitch drives scanner power outlets.
type PowerSwitch interface {
	SetPower(ctx context.Context, resourceID string, on bool) error
}

type Config struct {
	Resources   []domain.Resource
	HistorySize int
	TickRate    time.Duration
	// In-process workers by job type. Types without one are driven through Finish and friends.
	Workers map[domain.JobType]worker.Worker
	Host    HostChecker
	// Hold non-Scan jobs while the host is short of CPU or memory and other jobs are active.
	GateOnHost  bool
	Power       PowerSwitch
	Listeners   []Listener
	EventBuffer int
}

type Coordinator struct {
	mu       sync.Mutex
	registry *resources.Registry
	store    *jobs.Store
	locks    *locks.Manager

	workers    map[domain.JobType]worker.Worker
	host       HostChecker
	gateOnHost bool
	power      PowerSwitch
	listeners  []Listener
	events     chan Event
	tickRate   time.Duration
	stat       stats.StatsReceiver

	// in-process executions by job id
	running map[string]*execution
	wg      sync.WaitGroup

	startedAt time.Time
	// set once shutdown begins; no new goroutines are started after that
	closing bool
	now     func() time.Time
}

type execution struct {
	cancel context.CancelFunc
}

func New(cfg Config, stat stats.StatsReceiver) (*Coordinator, error) {
	store, err := jobs.NewStore(cfg.HistorySize)
	if err != nil {
		return nil, err
	}
	if stat == nil {
		stat = stats.NilStatsReceiver()
	}
	if cfg.TickRate <= 0 {
		cfg.TickRate = DefaultTickRate
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = DefaultEventBuffer
	}
	registry := resources.NewRegistry(cfg.Resources...)
	workers := map[domain.JobType]worker.Worker{}
	for t, w := range cfg.Workers {
		workers[t] = w
	}
	c := &Coordinator{
		registry:   registry,
		store:      store,
		locks:      locks.NewManager(registry, store),
		workers:    workers,
		host:       cfg.Host,
		gateOnHost: cfg.GateOnHost,
		power:      cfg.Power,
		listeners:  cfg.Listeners,
		events:     make(chan Event, cfg.EventBuffer),
		tickRate:   cfg.TickRate,
		stat:       stat.Scope("coordinator"),
		running:    map[string]*execution{},
		now:        time.Now,
	}
	log.WithFields(log.Fields{
		"scanners": registry.Len(),
		"workers":  len(workers),
		"tickRate": cfg.TickRate,
	}).Info("coordinator created")
	return c, nil
}

// Run periodically schedules and delivers events until ctx is cancelled, then cancels every
// in-process worker and waits for them to report back.
func (c *Coordinator) Run(ctx context.Context) error {
	c.mu.Lock()
	if !c.startedAt.IsZero() {
		c.mu.Unlock()
		return fmt.Errorf("coordinator already running since %s", c.startedAt)
	}
	c.startedAt = c.now()
	c.mu.Unlock()

	stop, dispatched := make(chan struct{}), make(chan struct{})
	go func() {
		defer close(dispatched)
		c.dispatch(stop)
	}()

	ticker := time.NewTicker(c.tickRate)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			close(stop)
			<-dispatched
			log.Info("coordinator stopped")
			return nil
		case <-ticker.C:
			c.step()
		}
	}
}

func (c *Coordinator) step() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.schedule()
}

func (c *Coordinator) shutdown() {
	c.mu.Lock()
	c.closing = true
	for id, ex := range c.running {
		log.WithFields(log.Fields{"jobID": id}).Info("cancelling worker for shutdown")
		ex.cancel()
	}
	c.mu.Unlock()
	c.wg.Wait()
}

func (c *Coordinator) Job(id string) (domain.Job, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Get(id)
}

func (c *Coordinator) Jobs() []domain.Job {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.ListAll()
}

func (c *Coordinator) JobsByState(state domain.JobState) []domain.Job {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.ListByState(state)
}

// ActiveJobs are Running, Paused or Stopping, in submission order.
func (c *Coordinator) ActiveJobs() []domain.Job {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []domain.Job
	for _, j := range c.store.ListAll() {
		if j.State.Active() {
			out = append(out, j)
		}
	}
	return out
}

func (c *Coordinator) Queue() []domain.Job {
	return c.JobsByState(domain.Queued)
}

func (c *Coordinator) Resources() []domain.Resource {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registry.List()
}

func (c *Coordinator) FreeResources() []domain.Resource {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registry.Free()
}

func (c *Coordinator) FindResources(query string) []domain.Resource {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registry.Find(query)
}

// Holders maps each locked scanner to the job holding it.
func (c *Coordinator) Holders() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.locks.Holders()
}

type ServerStatus struct {
	ResourceCPU  bool   `json:"ResourceCPU"`
	ResourceMem  bool   `json:"ResourceMem"`
	ServerUpTime string `json:"ServerUpTime"`
	QueueLength  int    `json:"QueueLength"`
	NumberOfJobs int    `json:"NumberOfJobs"`
}

func (c *Coordinator) ServerStatus() ServerStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := ServerStatus{ResourceCPU: true, ResourceMem: true, ServerUpTime: "Not Running"}
	if c.host != nil {
		st.ResourceCPU, st.ResourceMem = c.host.Status()
	}
	if !c.startedAt.IsZero() {
		st.ServerUpTime = FormatUptime(c.now().Sub(c.startedAt))
	}
	for _, j := range c.store.ListAll() {
		switch {
		case j.State == domain.Queued:
			st.QueueLength++
		case j.State.Active():
			st.NumberOfJobs++
		}
	}
	return st
}

// FormatUptime renders d as "1h, 2m, 3.45s".
func FormatUptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := int(d / time.Hour)
	m := int((d % time.Hour) / time.Minute)
	s := (d % time.Minute).Seconds()
	return fmt.Sprintf("%dh, %dm, %.2fs", h, m, s)
}

// caller holds c.mu
func (c *Coordinator) updateStats() {
	queued, active := 0, 0
	for _, j := range c.store.ListAll() {
		switch {
		case j.State == domain.Queued:
			queued++
		case j.State.Active():
			active++
		}
	}
	c.stat.Gauge(stats.CoordQueuedJobsGauge).Update(int64(queued))
	c.stat.Gauge(stats.CoordActiveJobsGauge).Update(int64(active))
	c.stat.Gauge(stats.CoordFreeScannersGauge).Update(int64(len(c.registry.Free())))
	if !c.startedAt.IsZero() {
		c.stat.Gauge(stats.CoordUptimeGauge_ms).Update(int64(c.now().Sub(c.startedAt) / time.Millisecond))
	}
}

func (c *Coordinator) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return spew.Sprintf("scanners: %v\njobs: %d running: %d", c.registry.List(), c.store.Len(), len(c.running))
}
