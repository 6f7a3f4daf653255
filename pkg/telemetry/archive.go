package telemetry

import (
	"context"

	_ "github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"
	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

// Archive is a secondary span sink that bulk-inserts ended spans into MySQL,
// so traces stay queryable after the telemetry backend's retention window.
type Archive struct {
	conn     sqlx.SqlConn
	inserter *sqlx.BulkInserter
}

// NewArchive opens the archive on dsn. Returns nil when the table or the
// inserter can't be prepared; the caller treats a nil archive as disabled.
func NewArchive(dsn string) *Archive {
	db := sqlx.NewMysql(dsn)

	if err := createSpanTable(db); err != nil {
		logrus.WithError(err).Error("tracelink couldn't create table t_Span")
		return nil
	}

	inserter, err := newSpanInserter(db)
	if err != nil {
		logrus.WithError(err).Error("tracelink couldn't open table t_Span")
		return nil
	}

	return &Archive{conn: db, inserter: inserter}
}

func createSpanTable(db sqlx.SqlConn) error {
	_, err := db.Exec("CREATE TABLE IF NOT EXISTS `t_Span` " +
		"(trace_id VARCHAR(32), " +
		"span_id VARCHAR(16), " +
		"parent_span_id VARCHAR(16), " +
		"name VARCHAR(128), " +
		"kind VARCHAR(16), " +
		"status VARCHAR(8), " +
		"start_time BIGINT, " +
		"end_time BIGINT)")
	return err
}

func newSpanInserter(db sqlx.SqlConn) (*sqlx.BulkInserter, error) {
	return sqlx.NewBulkInserter(db, "INSERT INTO `t_Span` "+
		"(trace_id, "+
		"span_id, "+
		"parent_span_id, "+
		"name, "+
		"kind, "+
		"status, "+
		"start_time, "+
		"end_time) "+
		"VALUES (?,?,?,?,?,?,?,?)")
}

func (a *Archive) ExportSpans(_ context.Context, spans []*Span) error {
	if a == nil {
		return nil
	}
	for _, span := range spans {
		parentID := ""
		if span.Parent().IsValid() {
			parentID = span.Parent().SpanID().String()
		}
		code, _ := span.Status()
		err := a.inserter.Insert(
			span.SpanContext().TraceID().String(),
			span.SpanContext().SpanID().String(),
			parentID,
			span.Name(),
			span.Kind().String(),
			code.String(),
			span.StartTime().UnixNano(),
			span.EndTime().UnixNano())
		if err != nil {
			logrus.WithError(err).WithField("span", span.Name()).Warn("tracelink couldn't archive span")
		}
	}
	return nil
}

// Flush pushes whatever the bulk inserter holds to the database.
func (a *Archive) Flush() {
	if a == nil {
		return
	}
	a.inserter.Flush()
}

func (a *Archive) Shutdown(context.Context) error {
	a.Flush()
	return nil
}

// CountSpans reports the archived span count for one trace, for tooling.
func (a *Archive) CountSpans(traceID string) int {
	if a == nil {
		return 0
	}
	var count int
	err := a.conn.QueryRow(&count, "SELECT COUNT(*) FROM `t_Span` WHERE trace_id = ?", traceID)
	if err != nil {
		logrus.WithError(err).Error("tracelink couldn't count archived spans")
		return 0
	}
	return count
}
