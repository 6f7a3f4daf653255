package bgtask

import (
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// SummaryTask logs the export pipeline counters periodically, so a stalled
// or dropping pipeline shows up in the service log.
type SummaryTask struct {
	m *BgTaskManager
	c *cron.Cron
}

func (m *BgTaskManager) addSummaryTask() {
	m.bgTasks = append(m.bgTasks, &SummaryTask{m: m})
}

func (t *SummaryTask) Start() {
	t.c = cron.New()
	_, err := t.c.AddFunc("@every 1m", t.run)
	if err != nil {
		logrus.WithError(err).Error("tracelink couldn't schedule the summary task")
		return
	}
	t.c.Start()
}

func (t *SummaryTask) Stop() {
	if t.c != nil {
		t.c.Stop()
	}
}

func (t *SummaryTask) run() {
	pending, exported, dropped := t.m.provider.Stats()
	logrus.WithFields(logrus.Fields{
		"pending":  pending,
		"exported": exported,
		"dropped":  dropped,
	}).Info("span pipeline summary")
}
