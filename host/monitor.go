// Package host checks whether the machine has CPU and memory to spare for another job.
//
// A Monitor probes periodically and caches the answer, so the coordinator can read it under
// its own lock without blocking on the OS.
package host

import (
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/scanomatic/som/common/stats"
)

const DefaultInterval = 2 * time.Second

type Thresholds struct {
	// Memory passes when more than this percentage is free.
	MemoryMinimumPercent float64
	// CPU passes when more than this percentage of total capacity is idle
	CPUTotalPercentFree float64
	// and at least this many CPUs are idle.
	CPUFreeCount int
	// Consecutive passing checks before Ready reports true.
	ChecksPassNeeded int
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		MemoryMinimumPercent: 30,
		CPUTotalPercentFree:  30,
		CPUFreeCount:         1,
		ChecksPassNeeded:     3,
	}
}

// Sample is one reading of the host.
type Sample struct {
	CPUs  int
	Load1 float64
	// bytes
	TotalMem     uint64
	AvailableMem uint64
}

// Probe reads the host. DefaultProbe is the OS-backed one.
type Probe func() (Sample, error)

func CheckCPU(s Sample, th Thresholds) bool {
	if s.CPUs <= 0 {
		return true
	}
	idle := float64(s.CPUs) - s.Load1
	if idle < 0 {
		idle = 0
	}
	// free percentage summed over all cpus, 0 to 100*CPUs
	totalFree := idle * 100
	return idle >= float64(th.CPUFreeCount) && totalFree > th.CPUTotalPercentFree
}

func CheckMemory(s Sample, th Thresholds) bool {
	if s.TotalMem == 0 {
		return true
	}
	return freeMemPercent(s) > th.MemoryMinimumPercent
}

func freeMemPercent(s Sample) float64 {
	if s.TotalMem == 0 {
		return 100
	}
	return float64(s.AvailableMem) / float64(s.TotalMem) * 100
}

type Monitor struct {
	th    Thresholds
	probe Probe
	stat  stats.StatsReceiver

	mu     sync.Mutex
	cpuOK  bool
	memOK  bool
	passes int

	sched gocron.Scheduler
}

// NewMonitor starts out reporting both resources available and not Ready.
func NewMonitor(th Thresholds, probe Probe, stat stats.StatsReceiver) *Monitor {
	if probe == nil {
		probe = DefaultProbe
	}
	if stat == nil {
		stat = stats.NilStatsReceiver()
	}
	return &Monitor{th: th, probe: probe, stat: stat.Scope("host"), cpuOK: true, memOK: true}
}

// Check probes once and updates the cached status. A failed probe counts as a failed check.
func (m *Monitor) Check() {
	s, err := m.probe()
	cpuOK, memOK := false, false
	if err != nil {
		log.WithError(err).Warn("host probe failed")
	} else {
		cpuOK, memOK = CheckCPU(s, m.th), CheckMemory(s, m.th)
		m.stat.Gauge(stats.HostFreeMemGauge).Update(int64(freeMemPercent(s)))
	}
	if !cpuOK {
		m.stat.Counter(stats.HostCPUFailCounter).Inc(1)
	}
	if !memOK {
		m.stat.Counter(stats.HostMemFailCounter).Inc(1)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if cpuOK != m.cpuOK || memOK != m.memOK {
		log.WithFields(log.Fields{"cpuOK": cpuOK, "memOK": memOK, "sample": s}).Info("host status changed")
	}
	m.cpuOK, m.memOK = cpuOK, memOK
	if cpuOK && memOK {
		m.passes++
	} else {
		m.passes = 0
	}
}

func (m *Monitor) Status() (cpuOK, memOK bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cpuOK, m.memOK
}

// Ready is true once ChecksPassNeeded consecutive checks have passed. consume starts the count
// over, so a burst of admissions waits for the host to settle between them.
func (m *Monitor) Ready(consume bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.passes < m.th.ChecksPassNeeded {
		return false
	}
	if consume {
		m.passes = 0
	}
	return true
}

// Start checks once, then every interval until Stop.
func (m *Monitor) Start(interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultInterval
	}
	s, err := gocron.NewScheduler()
	if err != nil {
		return errors.Wrap(err, "creating host check scheduler")
	}
	if _, err := s.NewJob(gocron.DurationJob(interval), gocron.NewTask(m.Check)); err != nil {
		s.Shutdown()
		return errors.Wrap(err, "scheduling host check")
	}
	m.Check()
	s.Start()
	m.sched = s
	log.WithFields(log.Fields{"interval": interval, "thresholds": m.th}).Info("host monitor started")
	return nil
}

func (m *Monitor) Stop() error {
	if m.sched == nil {
		return nil
	}
	err := m.sched.Shutdown()
	m.sched = nil
	return errors.Wrap(err, "stopping host check scheduler")
}
