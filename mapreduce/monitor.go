package mapreduce

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

const (
	// MonitorLogInterval is interval between each status update from the monitor
	MonitorLogInterval = time.Second * 10
	// RoundStuckTimeout is the amount of time without progress after which
	// the monitor reports a stuck round
	RoundStuckTimeout = time.Minute * 10
)

// A StatusWriter is responsible for conveying the current state of a round.
// The details of how this is done is left up to the implementation.
type StatusWriter interface {
	// WriteStatus sends a notification about the current state of a round.
	WriteStatus(status RoundStatus)
}

// RoundStatus represents the current state of a round
type RoundStatus struct {
	Round           string    // Name of the round
	LastUpdate      time.Time // Last time the round made any kind of progress
	FilesRead       int       // Total # of input files fully read
	DocumentsMapped int       // Total # of documents mapped
	DocumentsFailed int       // Total # of documents skipped due to map errors
	Emissions       int       // Total # of key/value pairs emitted by mappers
	KeysGrouped     int       // # of distinct keys seen by the shuffle
	KeysReduced     int       // Total # of keys reduced
	RecordsWritten  int       // Total # of output records written
	RoundComplete   bool      // True if the round has finished
}

// The Monitor counts progress of a round and emits a RoundStatus at a
// regular interval. Counters may be updated from any goroutine.
type Monitor struct {
	round        string
	statusWriter StatusWriter       // Sends status notifications
	clock        clockwork.Clock    // Emits events at an interval
	logger       logrus.FieldLogger // Log events

	filesRead       int64
	documentsMapped int64
	documentsFailed int64
	emissions       int64
	keysGrouped     int64
	keysReduced     int64
	recordsWritten  int64
	lastUpdate      int64 // UnixNano of last progress

	done    chan struct{}
	stopped sync.WaitGroup
	once    sync.Once
}

// NewMonitor returns a new instance of Monitor
//
// * round - Name of the round being monitored
// * statusWriter - Sends status notifications
// * clock - Emits events at an interval
// * logger - Log events
func NewMonitor(round string, statusWriter StatusWriter, clock clockwork.Clock, logger logrus.FieldLogger) *Monitor {
	monitor := new(Monitor)
	monitor.round = round
	monitor.statusWriter = statusWriter
	monitor.clock = clock
	monitor.logger = logger.WithField("component", "monitor")
	monitor.done = make(chan struct{})
	monitor.touch()
	return monitor
}

func (monitor *Monitor) touch() {
	atomic.StoreInt64(&monitor.lastUpdate, monitor.clock.Now().UnixNano())
}

// FileRead records a fully read input file
func (monitor *Monitor) FileRead() {
	atomic.AddInt64(&monitor.filesRead, 1)
	monitor.touch()
}

// DocumentMapped records a mapped document and the number of pairs it emitted
func (monitor *Monitor) DocumentMapped(emissions int) {
	atomic.AddInt64(&monitor.documentsMapped, 1)
	atomic.AddInt64(&monitor.emissions, int64(emissions))
	monitor.touch()
}

// DocumentFailed records a document that was skipped
func (monitor *Monitor) DocumentFailed() {
	atomic.AddInt64(&monitor.documentsFailed, 1)
	monitor.touch()
}

// KeyGrouped records a new distinct key in the shuffle
func (monitor *Monitor) KeyGrouped() {
	atomic.AddInt64(&monitor.keysGrouped, 1)
}

// KeyReduced records a reduced key
func (monitor *Monitor) KeyReduced() {
	atomic.AddInt64(&monitor.keysReduced, 1)
	monitor.touch()
}

// RecordsWritten records output records that were persisted
func (monitor *Monitor) RecordsWritten(count int) {
	atomic.AddInt64(&monitor.recordsWritten, int64(count))
	monitor.touch()
}

// Status returns a snapshot of the counters
func (monitor *Monitor) Status() RoundStatus {
	return RoundStatus{
		Round:           monitor.round,
		LastUpdate:      time.Unix(0, atomic.LoadInt64(&monitor.lastUpdate)),
		FilesRead:       int(atomic.LoadInt64(&monitor.filesRead)),
		DocumentsMapped: int(atomic.LoadInt64(&monitor.documentsMapped)),
		DocumentsFailed: int(atomic.LoadInt64(&monitor.documentsFailed)),
		Emissions:       int(atomic.LoadInt64(&monitor.emissions)),
		KeysGrouped:     int(atomic.LoadInt64(&monitor.keysGrouped)),
		KeysReduced:     int(atomic.LoadInt64(&monitor.keysReduced)),
		RecordsWritten:  int(atomic.LoadInt64(&monitor.recordsWritten)),
	}
}

// Run launches its own goroutine. It will write the round status at every
// MonitorLogInterval until Stop is called.
func (monitor *Monitor) Run() {
	monitor.stopped.Add(1)
	go func() {
		defer monitor.stopped.Done()
		defer CatchFatalError(monitor.logger)()
		ticker := monitor.clock.After(MonitorLogInterval)
		for {
			select {
			case <-monitor.done:
				return
			case <-ticker:
				status := monitor.Status()
				if monitor.clock.Since(status.LastUpdate) > RoundStuckTimeout {
					monitor.logger.WithField("lastUpdate", status.LastUpdate).Error("Stuck round detected")
				}
				monitor.statusWriter.WriteStatus(status)
				ticker = monitor.clock.After(MonitorLogInterval)
			}
		}
	}()
}

// Stop ends periodic reporting and writes a final status.
func (monitor *Monitor) Stop(complete bool) {
	monitor.once.Do(func() {
		close(monitor.done)
		monitor.stopped.Wait()
		status := monitor.Status()
		status.RoundComplete = complete
		monitor.statusWriter.WriteStatus(status)
	})
}
