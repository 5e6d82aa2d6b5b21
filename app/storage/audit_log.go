// Package storage keeps audit records in a sql database. It is an optional sink next to the json-lines log,
// used by the web api to show recent decisions. Records of different communities share a table, split by gid.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/umputun/dc-spam/app/storage/engine"
	"github.com/umputun/dc-spam/lib/spamcheck"
)

// AuditLog is a storage for audit records, thread-safe
type AuditLog struct {
	*engine.SQL
	engine.RWLocker
}

// auditRow is a db representation of spamcheck.Record
type auditRow struct {
	ID              int64     `db:"id"`
	GID             string    `db:"gid"`
	Timestamp       time.Time `db:"timestamp"`
	UserID          int64     `db:"user_id"`
	UserName        string    `db:"user_name"`
	AccountAgeDays  int       `db:"account_age_days"`
	JoinAgeMinutes  *float64  `db:"join_age_minutes"`
	MessageCount    int       `db:"message_count"`
	MessageLength   int       `db:"message_length"`
	NumURLs         int       `db:"num_urls"`
	SpamScore       int       `db:"spam_score"`
	Triggers        string    `db:"triggers"` // json array
	SimilarityScore float64   `db:"similarity_score"`
	ChannelID       int64     `db:"channel_id"`
	Action          string    `db:"action"`
	DeletedIDs      string    `db:"deleted_ids"` // json array
	MessageText     string    `db:"message_text"`
	ShadowMode      bool      `db:"shadow_mode"`
}

// audit log commands
const (
	CmdCreateAuditTable engine.DBCmd = iota + 100
	CmdCreateAuditIndexes
	CmdAddAuditRecord
)

var auditQueries = engine.NewQueryMap().
	Add(CmdCreateAuditTable, engine.Query{
		Sqlite: `CREATE TABLE IF NOT EXISTS audit_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			gid TEXT NOT NULL DEFAULT '',
			timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
			user_id INTEGER,
			user_name TEXT,
			account_age_days INTEGER,
			join_age_minutes REAL,
			message_count INTEGER,
			message_length INTEGER,
			num_urls INTEGER,
			spam_score INTEGER,
			triggers TEXT,
			similarity_score REAL,
			channel_id INTEGER,
			action TEXT,
			deleted_ids TEXT,
			message_text TEXT,
			shadow_mode BOOLEAN
		)`,
		Postgres: `CREATE TABLE IF NOT EXISTS audit_log (
			id SERIAL PRIMARY KEY,
			gid TEXT NOT NULL DEFAULT '',
			timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			user_id BIGINT,
			user_name TEXT,
			account_age_days INTEGER,
			join_age_minutes DOUBLE PRECISION,
			message_count INTEGER,
			message_length INTEGER,
			num_urls INTEGER,
			spam_score INTEGER,
			triggers TEXT,
			similarity_score DOUBLE PRECISION,
			channel_id BIGINT,
			action TEXT,
			deleted_ids TEXT,
			message_text TEXT,
			shadow_mode BOOLEAN
		)`,
	}).
	AddSame(CmdCreateAuditIndexes, `
		CREATE INDEX IF NOT EXISTS idx_audit_log_gid_ts ON audit_log(gid, timestamp DESC);
		CREATE INDEX IF NOT EXISTS idx_audit_log_action ON audit_log(gid, action)`).
	AddSame(CmdAddAuditRecord, `INSERT INTO audit_log (gid, timestamp, user_id, user_name, account_age_days,
		join_age_minutes, message_count, message_length, num_urls, spam_score, triggers, similarity_score, channel_id,
		action, deleted_ids, message_text, shadow_mode) VALUES (:gid, :timestamp, :user_id, :user_name,
		:account_age_days, :join_age_minutes, :message_count, :message_length, :num_urls, :spam_score, :triggers,
		:similarity_score, :channel_id, :action, :deleted_ids, :message_text, :shadow_mode)`)

// NewAuditLog creates a new AuditLog storage
func NewAuditLog(ctx context.Context, db *engine.SQL) (*AuditLog, error) {
	if db == nil {
		return nil, fmt.Errorf("no db provided")
	}
	res := &AuditLog{SQL: db, RWLocker: db.MakeLock()}
	cfg := engine.TableConfig{
		Name:          "audit_log",
		CreateTable:   CmdCreateAuditTable,
		CreateIndexes: CmdCreateAuditIndexes,
		QueriesMap:    auditQueries,
	}
	if err := engine.InitTable(ctx, db, cfg); err != nil {
		return nil, fmt.Errorf("failed to init audit_log table: %w", err)
	}
	return res, nil
}

// Write adds a new audit record
func (a *AuditLog) Write(ctx context.Context, rec spamcheck.Record) error {
	row, err := a.toRow(rec)
	if err != nil {
		return err
	}
	query, err := auditQueries.Pick(a.Type(), CmdAddAuditRecord)
	if err != nil {
		return fmt.Errorf("failed to get insert query: %w", err)
	}

	a.Lock()
	defer a.Unlock()
	if _, err := a.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("failed to insert audit record for user %d: %w", rec.UserID, err)
	}
	return nil
}

// Read returns up to limit most recent audit records, newest first
func (a *AuditLog) Read(ctx context.Context, limit int) ([]spamcheck.Record, error) {
	a.RLock()
	defer a.RUnlock()

	var rows []auditRow
	query := a.Adopt(`SELECT * FROM audit_log WHERE gid = ? ORDER BY timestamp DESC, id DESC LIMIT ?`)
	if err := a.SelectContext(ctx, &rows, query, a.GID(), limit); err != nil {
		return nil, fmt.Errorf("failed to get audit records: %w", err)
	}

	res := make([]spamcheck.Record, 0, len(rows))
	for _, r := range rows {
		rec, err := r.record()
		if err != nil {
			return nil, fmt.Errorf("failed to decode audit record %d: %w", r.ID, err)
		}
		res = append(res, rec)
	}
	return res, nil
}

// Count returns the number of records per action
func (a *AuditLog) Count(ctx context.Context) (map[string]int, error) {
	a.RLock()
	defer a.RUnlock()

	var rows []struct {
		Action string `db:"action"`
		Count  int    `db:"cnt"`
	}
	query := a.Adopt(`SELECT action, COUNT(*) AS cnt FROM audit_log WHERE gid = ? GROUP BY action`)
	if err := a.SelectContext(ctx, &rows, query, a.GID()); err != nil {
		return nil, fmt.Errorf("failed to count audit records: %w", err)
	}
	res := make(map[string]int, len(rows))
	for _, r := range rows {
		res[r.Action] = r.Count
	}
	return res, nil
}

func (a *AuditLog) toRow(rec spamcheck.Record) (auditRow, error) {
	ts, err := time.Parse(time.RFC3339Nano, rec.Timestamp)
	if err != nil {
		return auditRow{}, fmt.Errorf("invalid record timestamp %q: %w", rec.Timestamp, err)
	}
	triggers, err := json.Marshal(nonNil(rec.Triggers))
	if err != nil {
		return auditRow{}, fmt.Errorf("failed to marshal triggers: %w", err)
	}
	deleted, err := json.Marshal(nonNil(rec.DeletedMessageIDs))
	if err != nil {
		return auditRow{}, fmt.Errorf("failed to marshal deleted ids: %w", err)
	}
	return auditRow{
		GID:             a.GID(),
		Timestamp:       ts.UTC(),
		UserID:          rec.UserID,
		UserName:        rec.UserName,
		AccountAgeDays:  rec.AccountAgeDays,
		JoinAgeMinutes:  rec.JoinAgeMinutes,
		MessageCount:    rec.MessageCount,
		MessageLength:   rec.MessageLength,
		NumURLs:         rec.NumURLs,
		SpamScore:       rec.SpamScore,
		Triggers:        string(triggers),
		SimilarityScore: rec.SimilarityScore,
		ChannelID:       rec.ChannelID,
		Action:          rec.Action,
		DeletedIDs:      string(deleted),
		MessageText:     rec.MessageText,
		ShadowMode:      rec.ShadowMode,
	}, nil
}

func (r auditRow) record() (spamcheck.Record, error) {
	res := spamcheck.Record{
		Timestamp:         r.Timestamp.UTC().Format(time.RFC3339Nano),
		UserID:            r.UserID,
		UserName:          r.UserName,
		AccountAgeDays:    r.AccountAgeDays,
		JoinAgeMinutes:    r.JoinAgeMinutes,
		MessageCount:      r.MessageCount,
		MessageLength:     r.MessageLength,
		NumURLs:           r.NumURLs,
		SpamScore:         r.SpamScore,
		SimilarityScore:   r.SimilarityScore,
		ChannelID:         r.ChannelID,
		Action:            r.Action,
		MessageText:       r.MessageText,
		ShadowMode:        r.ShadowMode,
		Triggers:          []string{},
		DeletedMessageIDs: []int64{},
	}
	if err := json.Unmarshal([]byte(r.Triggers), &res.Triggers); err != nil {
		return spamcheck.Record{}, fmt.Errorf("triggers: %w", err)
	}
	if err := json.Unmarshal([]byte(r.DeletedIDs), &res.DeletedMessageIDs); err != nil {
		return spamcheck.Record{}, fmt.Errorf("deleted ids: %w", err)
	}
	return res, nil
}

func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}
