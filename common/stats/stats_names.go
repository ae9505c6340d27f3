package stats

// Names of the coordinator's instruments, scoped under "coordinator".
const (
	// jobs accepted by Submit
	CoordJobsSubmittedCounter = "jobsSubmittedCounter"

	// jobs moved from Queued to Running
	CoordJobsAdmittedCounter = "jobsAdmittedCounter"

	// jobs that reached Done
	CoordJobsDoneCounter = "jobsDoneCounter"

	// jobs that reached Failed for any reason, including dependency failures
	CoordJobsFailedCounter = "jobsFailedCounter"

	// queued jobs failed because their upstream job failed or was removed
	CoordDependencyFailedCounter = "dependencyFailedCounter"

	// jobs removed from the queue before running
	CoordJobsRemovedCounter = "jobsRemovedCounter"

	CoordStopAcceptedCounter = "stopAcceptedCounter"
	CoordStopRefusedCounter  = "stopRefusedCounter"

	// scheduling passes that found a scan job's scanner held by another job
	CoordLockBusyCounter = "lockBusyCounter"

	// keyed lock requests refused
	CoordKeyLockRefusedCounter = "keyLockRefusedCounter"

	// events not delivered to listeners because the event buffer was full
	CoordEventsDroppedCounter = "eventsDroppedCounter"

	CoordQueuedJobsGauge   = "queuedJobsGauge"
	CoordActiveJobsGauge   = "activeJobsGauge"
	CoordFreeScannersGauge = "freeScannersGauge"

	// milliseconds the coordinator has been running
	CoordUptimeGauge_ms = "uptimeGauge_ms"

	// time spent in one scheduling pass
	CoordSchedulePassLatency_ms = "schedulePassLatency_ms"

	// time spent serving an HTTP request, scoped by route
	APIRequestLatency_ms = "requestLatency_ms"
	APIRequestCounter    = "requestCounter"

	// host checks that failed, scoped under "host"
	HostCPUFailCounter = "cpuFailCounter"
	HostMemFailCounter = "memFailCounter"
	HostFreeMemGauge   = "freeMemPercentGauge"

	// journal write failures
	JournalWriteErrCounter = "writeErrCounter"
)
