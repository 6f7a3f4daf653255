package bgtask

import (
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// ArchiveFlushTask pushes the bulk inserter's buffered rows to MySQL
// periodically, so archived spans don't sit in memory between batches.
type ArchiveFlushTask struct {
	m *BgTaskManager
	c *cron.Cron
}

func (m *BgTaskManager) addArchiveFlushTask() {
	m.bgTasks = append(m.bgTasks, &ArchiveFlushTask{m: m})
}

func (t *ArchiveFlushTask) Start() {
	t.c = cron.New()
	_, err := t.c.AddFunc("@every 30s", t.m.archive.Flush)
	if err != nil {
		logrus.WithError(err).Error("tracelink couldn't schedule the archive flush task")
		return
	}
	t.c.Start()
}

func (t *ArchiveFlushTask) Stop() {
	if t.c != nil {
		t.c.Stop()
	}
}
