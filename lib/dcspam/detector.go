// Package dcspam implements the spam detection engine for community chat messages.
// Messages are normalized, compared with the author's recent messages from other channels,
// scored by a set of weighted triggers and, in active mode, removed together with matched priors.
package dcspam

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/umputun/dc-spam/lib/spamcheck"
)

// Mode is an operating mode of the detector.
type Mode string

// enum of operating modes
const (
	ModeShadow Mode = "shadow" // detect and log, never remove
	ModeActive Mode = "active" // detect, log and remove
)

// ParseMode converts a string to Mode, case-insensitive
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeShadow:
		return ModeShadow, nil
	case ModeActive:
		return ModeActive, nil
	}
	return "", fmt.Errorf("unknown mode %q, expected %q or %q", s, ModeShadow, ModeActive)
}

// Weights is a set of trigger weights added to the score. Zero weight disables the trigger.
type Weights struct {
	FirstMessage int // author's first message
	URL          int // at least one url
	Invite       int // community invite link
	CrossChannel int // similar message posted to another channel recently
	RecentJoin   int // author joined recently
	NewAccount   int // author's account is new
}

// Config is a set of parameters for Detector.
type Config struct {
	Mode                Mode          // shadow or active
	MonitorCount        int           // number of first messages per user to score
	HistoryRetention    time.Duration // how long messages are kept for cross-channel comparison
	SimilarityThreshold float64       // minimal similarity of two messages to count as a repeat, 0.0 - 1.0
	RecentJoin          time.Duration // join age below which the author is a recent joiner
	NewAccountAge       time.Duration // account age below which the account is new
	ScoreThreshold      int           // minimal score to consider a message spam
	Weights             Weights
	InviteDomains       []string      // invite link markers, matched as substrings
	RemovalConcurrency  int           // max parallel removals of prior messages
	RemovalTimeout      time.Duration // timeout of a single removal, if not set - no timeout
	RecordsSize         int           // number of recent audit records to keep in memory
}

// DefaultConfig returns config with default values
func DefaultConfig() Config {
	return Config{
		Mode:                ModeShadow,
		MonitorCount:        3,
		HistoryRetention:    5 * time.Minute,
		SimilarityThreshold: 0.85,
		RecentJoin:          10 * time.Minute,
		NewAccountAge:       7 * 24 * time.Hour,
		ScoreThreshold:      8,
		Weights:             Weights{FirstMessage: 2, URL: 3, Invite: 3, CrossChannel: 5},
		InviteDomains:       []string{"discord.gg/", "discord.com/invite/", "discordapp.com/invite/"},
		RemovalConcurrency:  4,
		RemovalTimeout:      10 * time.Second,
		RecordsSize:         100,
	}
}

// Validate checks the config and returns all found problems
func (c Config) Validate() error {
	var errs *multierror.Error
	if c.Mode != ModeShadow && c.Mode != ModeActive {
		errs = multierror.Append(errs, fmt.Errorf("invalid mode %q", c.Mode))
	}
	if c.MonitorCount < 1 {
		errs = multierror.Append(errs, fmt.Errorf("monitor count must be positive, got %d", c.MonitorCount))
	}
	if c.HistoryRetention <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("history retention must be positive, got %v", c.HistoryRetention))
	}
	if c.SimilarityThreshold <= 0 || c.SimilarityThreshold > 1 {
		errs = multierror.Append(errs, fmt.Errorf("similarity threshold must be in (0, 1], got %v", c.SimilarityThreshold))
	}
	if c.RecentJoin < 0 {
		errs = multierror.Append(errs, fmt.Errorf("recent join window can't be negative, got %v", c.RecentJoin))
	}
	if c.NewAccountAge < 0 {
		errs = multierror.Append(errs, fmt.Errorf("new account age can't be negative, got %v", c.NewAccountAge))
	}
	if c.ScoreThreshold < 1 {
		errs = multierror.Append(errs, fmt.Errorf("score threshold must be positive, got %d", c.ScoreThreshold))
	}
	w := c.Weights
	for name, v := range map[string]int{"first-message": w.FirstMessage, "url": w.URL, "invite": w.Invite,
		"cross-channel": w.CrossChannel, "recent-join": w.RecentJoin, "new-account": w.NewAccount} {
		if v < 0 {
			errs = multierror.Append(errs, fmt.Errorf("weight %s can't be negative, got %d", name, v))
		}
	}
	return errs.ErrorOrNil()
}

// Detector is a spam detector, thread-safe.
// Messages of the same user are evaluated one at a time, different users are evaluated in parallel.
type Detector struct {
	Config
	store         ActivityStore
	enforcer      *enforcer
	auditor       Auditor
	records       *spamcheck.LastRecords
	inviteDomains []string // lowercased
}

// Result is an outcome of checking a single message.
type Result struct {
	Scored      bool              `json:"scored"` // false for empty messages and messages beyond the monitoring window
	Count       int               `json:"count"`  // lifetime message number of the author, 0 if not counted
	Features    Features          `json:"features"`
	Decision    Decision          `json:"decision"`
	Enforcement *Enforcement      `json:"-"` // set only if removal was attempted
	Record      *spamcheck.Record `json:"record,omitempty"`
}

// NewDetector makes a new Detector with the given config and activity store.
// If store is nil, an in-memory store with the configured retention is used.
func NewDetector(cfg Config, store ActivityStore) *Detector {
	if store == nil {
		store = NewActivity(cfg.HistoryRetention)
	}
	res := &Detector{
		Config:   cfg,
		store:    store,
		enforcer: &enforcer{concurrency: cfg.RemovalConcurrency, timeout: cfg.RemovalTimeout},
		records:  spamcheck.NewLastRecords(cfg.RecordsSize),
	}
	for _, d := range cfg.InviteDomains {
		if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
			res.inviteDomains = append(res.inviteDomains, d)
		}
	}
	return res
}

// WithRemover sets the platform remover used in active mode
func (d *Detector) WithRemover(r Remover) *Detector {
	d.enforcer.remover = r
	return d
}

// WithAuditor sets the audit sink
func (d *Detector) WithAuditor(a Auditor) *Detector {
	d.auditor = a
	return d
}

// Check evaluates a message. The message is counted, compared with the author's recent history,
// scored and, if it is spam in active mode, removed together with all matched prior messages.
// Every scored message produces an audit record.
func (d *Detector) Check(ctx context.Context, msg spamcheck.Message) Result {
	now := msg.Received
	if now.IsZero() {
		now = time.Now()
	}

	text := Normalize(msg.Text)
	if text == "" {
		log.Printf("[DEBUG] skip message without comparable text %s", msg.String())
		return Result{}
	}

	unlock := d.store.Lock(msg.UserID)
	count := d.store.RecordAndGetCount(msg.UserID)
	if count > d.MonitorCount {
		unlock()
		return Result{Count: count}
	}
	history := d.store.RecentHistory(msg.UserID, now)
	features := d.extractFeatures(msg, text, count, history, now)
	decision := Decide(d.Config, features)
	// appended before enforcement, so a concurrent message of the same user sees this one
	d.store.Append(msg.UserID, spamcheck.HistoryEntry{MsgID: msg.ID, ChannelID: msg.ChannelID, Time: now, Text: text})
	unlock()

	res := Result{Scored: true, Count: count, Features: features, Decision: decision}
	if decision.Action == ActionEnforced {
		enf := d.enforcer.enforce(ctx, msg, features.Matched)
		res.Enforcement = &enf
	}

	rec := d.newRecord(msg, count, features, decision, res.Enforcement, now)
	res.Record = &rec
	d.records.Push(rec)
	if d.auditor != nil {
		d.auditor.Emit(rec)
	}

	if decision.IsSpam() {
		log.Printf("[INFO] spam detected (%s), score %d, triggers %v, %s", rec.Action, decision.Score,
			decision.Triggers, msg.String())
	}
	log.Printf("[DEBUG] checks: %s", spamcheck.ChecksToString(decision.Checks))
	return res
}

// Evaluate scores a message as if it was the count-th message of its author with no recent history.
// It doesn't change any state and doesn't remove anything, used for dry-run checks.
func (d *Detector) Evaluate(msg spamcheck.Message, count int) (Result, error) {
	if count < 1 {
		return Result{}, errors.New("message count must be positive")
	}
	text := Normalize(msg.Text)
	if text == "" {
		return Result{}, nil
	}
	now := msg.Received
	if now.IsZero() {
		now = time.Now()
	}
	features := d.extractFeatures(msg, text, count, nil, now)
	decision := Decide(d.Config, features)
	return Result{Scored: true, Count: count, Features: features, Decision: decision}, nil
}

// LastRecords returns up to n most recent audit records, oldest first
func (d *Detector) LastRecords(n int) []spamcheck.Record {
	return d.records.Last(n)
}
