// Package journal keeps an audit trail of coordinator events in SQLite. It is written to and
// read from but never replayed into a coordinator.
package journal

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/scanomatic/som/common/stats"
	"github.com/scanomatic/som/coordinator"
	"github.com/scanomatic/som/domain"
)

const DefaultHistoryLimit = 100

// bound on a single insert, so a stuck disk cannot stall event dispatch forever
const writeTimeout = 5 * time.Second

type Journal struct {
	db   *sql.DB
	stat stats.StatsReceiver
}

func Open(path string, stat stats.StatsReceiver) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening journal %s", path)
	}
	// one writer; sqlite serializes them anyway
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS events (
  seq INTEGER PRIMARY KEY AUTOINCREMENT,
  at INTEGER NOT NULL,
  kind TEXT NOT NULL,
  job_id TEXT NOT NULL,
  job_type TEXT NOT NULL,
  from_state TEXT NOT NULL DEFAULT '',
  to_state TEXT NOT NULL DEFAULT '',
  reason TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS events_job ON events (job_id, seq);
`); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "creating journal schema in %s", path)
	}
	if stat == nil {
		stat = stats.NilStatsReceiver()
	}
	log.WithFields(log.Fields{"path": path}).Info("journal opened")
	return &Journal{db: db, stat: stat.Scope("journal")}, nil
}

func (j *Journal) Close() error { return j.db.Close() }

// Observe records ev. Write errors are logged and counted, never returned to the coordinator.
func (j *Journal) Observe(ev coordinator.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := j.Append(ctx, ev); err != nil {
		j.stat.Counter(stats.JournalWriteErrCounter).Inc(1)
		log.WithFields(log.Fields{"jobID": ev.JobID, "kind": ev.Kind}).WithError(err).Error("journal write failed")
	}
}

func (j *Journal) Append(ctx context.Context, ev coordinator.Event) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO events (at, kind, job_id, job_type, from_state, to_state, reason)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.Time.UnixMilli(),
		string(ev.Kind),
		ev.JobID,
		string(ev.Type),
		string(ev.From),
		string(ev.To),
		ev.Reason,
	)
	return errors.Wrapf(err, "appending %s event for job %s", ev.Kind, ev.JobID)
}

// History returns up to limit events for jobID, oldest first.
func (j *Journal) History(ctx context.Context, jobID string, limit int) ([]coordinator.Event, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT at, kind, job_id, job_type, from_state, to_state, reason
       FROM events WHERE job_id = ? ORDER BY seq ASC LIMIT ?`, jobID, limit)
	if err != nil {
		return nil, errors.Wrapf(err, "reading history of job %s", jobID)
	}
	defer rows.Close()

	out := []coordinator.Event{}
	for rows.Next() {
		var (
			atMs                            int64
			kind, id, typ, from, to, reason string
		)
		if err := rows.Scan(&atMs, &kind, &id, &typ, &from, &to, &reason); err != nil {
			return nil, errors.Wrap(err, "scanning journal row")
		}
		out = append(out, coordinator.Event{
			Time:   time.UnixMilli(atMs),
			Kind:   coordinator.EventKind(kind),
			JobID:  id,
			Type:   domain.JobType(typ),
			From:   domain.JobState(from),
			To:     domain.JobState(to),
			Reason: reason,
		})
	}
	return out, errors.Wrap(rows.Err(), "iterating journal rows")
}

var _ coordinator.Listener = (*Journal)(nil)
