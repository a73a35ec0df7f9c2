package nodes

import (
	"sync"

	"github.com/ringlink/ringlink/internal/logging"
	"github.com/ringlink/ringlink/internal/metrics"
)

// LogReporter is the Reporter used when no controller framework is
// attached: driver values and commands are logged, and node counts are
// mirrored into metrics so the bridge is observable on its own.
type LogReporter struct {
	logger  *logging.Logger
	metrics *metrics.Metrics

	mu     sync.Mutex
	counts map[string]int
}

func NewLogReporter(m *metrics.Metrics) *LogReporter {
	return &LogReporter{
		logger:  logging.NewLogger(),
		metrics: m,
		counts:  make(map[string]int),
	}
}

func (r *LogReporter) AddNode(address, name, kind string) error {
	r.logger.Info("node registered", "address", address, "name", name, "kind", kind)
	if r.metrics != nil {
		r.mu.Lock()
		r.counts[kind]++
		count := r.counts[kind]
		r.mu.Unlock()
		r.metrics.SetNodesKnown(kind, count)
	}
	return nil
}

func (r *LogReporter) SetDriver(address string, driver Driver, value float64) {
	r.logger.Debug("driver update", "address", address, "driver", string(driver), "value", value)
}

func (r *LogReporter) SendCommand(address string, cmd Command) {
	r.logger.Info("node command out", "address", address, "cmd", string(cmd))
}
