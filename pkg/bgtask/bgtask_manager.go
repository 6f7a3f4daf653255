package bgtask

import (
	"github.com/tracelink/tracelink/pkg/telemetry"
)

// BgTaskManager manages background periodical tasks.
// Includes:
// - Flush the span archive inserter
// - Log export pipeline counters
type BgTaskManager struct {
	bgTasks  []BgTask
	provider *telemetry.Provider
	archive  *telemetry.Archive
}

type BgTask interface {
	Start()
	Stop()
}

func NewBgTaskManager(provider *telemetry.Provider, archive *telemetry.Archive) *BgTaskManager {
	m := &BgTaskManager{
		bgTasks:  make([]BgTask, 0),
		provider: provider,
		archive:  archive,
	}
	m.addSummaryTask()
	if archive != nil {
		m.addArchiveFlushTask()
	}
	return m
}

func (m *BgTaskManager) StartAll() {
	for _, task := range m.bgTasks {
		task.Start()
	}
}

func (m *BgTaskManager) StopAll() {
	for _, task := range m.bgTasks {
		task.Stop()
	}
}
