package events

import (
	"context"
	"database/sql"
)

// Log appends events to the event_log table.
type Log struct {
	db     *sql.DB
	siteID string
}

func NewLog(db *sql.DB, siteID string) *Log { return &Log{db: db, siteID: siteID} }

func (l *Log) Publish(ctx context.Context, e Event) error {
	data := string(e.Data)
	if data == "" {
		data = "{}"
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO event_log (site_id, typ, event_key, data, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		l.siteID, e.Type, e.Key, data, e.CreatedAt.UnixMilli())
	return err
}
