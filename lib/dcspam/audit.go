package dcspam

import (
	"time"
	"unicode/utf8"

	"github.com/umputun/dc-spam/lib/spamcheck"
)

//go:generate moq --out mocks/auditor.go --pkg mocks --skip-ensure --with-resets . Auditor

// audit record actions
const (
	AuditLoggedOnly      = "logged_only"
	AuditShadowSpam      = "spam_detected_shadow"
	AuditDeleted         = "deleted_spam"
	AuditDeleteForbidden = "delete_failed_missing_permissions"
)

// Auditor receives an audit record for every scored message.
// Emit has no return value, delivery failures are the auditor's concern.
type Auditor interface {
	Emit(rec spamcheck.Record)
}

// AuditorFunc is a function implementing Auditor
type AuditorFunc func(rec spamcheck.Record)

// Emit calls f(rec)
func (f AuditorFunc) Emit(rec spamcheck.Record) { f(rec) }

// auditAction maps decision and enforcement outcome to audit action
func auditAction(dec Decision, enf *Enforcement) string {
	switch dec.Action {
	case ActionFlaggedShadow:
		return AuditShadowSpam
	case ActionEnforced:
		if enf.Forbidden() {
			return AuditDeleteForbidden
		}
		return AuditDeleted
	default:
		return AuditLoggedOnly
	}
}

// newRecord makes an audit record for a scored message
func (d *Detector) newRecord(msg spamcheck.Message, count int, f Features, dec Decision, enf *Enforcement,
	now time.Time) spamcheck.Record {

	res := spamcheck.Record{
		Timestamp:         now.UTC().Format(time.RFC3339Nano),
		UserID:            msg.UserID,
		UserName:          msg.UserName,
		MessageCount:      count,
		MessageLength:     utf8.RuneCountInString(msg.Text),
		NumURLs:           f.NumURLs,
		SpamScore:         dec.Score,
		Triggers:          append([]string{}, dec.Triggers...),
		SimilarityScore:   f.SimilarityScore,
		ChannelID:         msg.ChannelID,
		Action:            auditAction(dec, enf),
		DeletedMessageIDs: enf.DeletedIDs(),
		MessageText:       msg.Text,
		ShadowMode:        d.Mode == ModeShadow,
	}
	if !msg.AccountCreated.IsZero() {
		res.AccountAgeDays = int(now.Sub(msg.AccountCreated).Hours() / 24)
	}
	if msg.JoinedAt != nil {
		joinAge := now.Sub(*msg.JoinedAt).Minutes()
		res.JoinAgeMinutes = &joinAge
	}
	return res
}
