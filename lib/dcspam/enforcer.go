package dcspam

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/umputun/dc-spam/lib/spamcheck"
)

//go:generate moq --out mocks/remover.go --pkg mocks --skip-ensure --with-resets . Remover

// removal errors reported by Remover implementations
var (
	ErrNotFound  = errors.New("message not found")
	ErrForbidden = errors.New("missing permissions")
)

var errNoRemover = errors.New("remover not set")

// Remover deletes messages on the platform. Implementations should wrap ErrNotFound and ErrForbidden
// for the matching platform failures.
type Remover interface {
	RemoveMessage(ctx context.Context, channelID, msgID int64) error
}

// Removal is an outcome of a single removal attempt.
type Removal struct {
	MsgID     int64 `json:"msg_id"`
	ChannelID int64 `json:"channel_id"`
	Err       error `json:"-"`
}

// Removed returns true if the message was removed
func (r Removal) Removed() bool { return r.Err == nil }

func (r Removal) String() string {
	if r.Err != nil {
		return fmt.Sprintf("{msg:%d, channel:%d, failed: %v}", r.MsgID, r.ChannelID, r.Err)
	}
	return fmt.Sprintf("{msg:%d, channel:%d, removed}", r.MsgID, r.ChannelID)
}

// Enforcement is a result of enforcement for a single message.
type Enforcement struct {
	Current Removal   // removal of the message itself
	Prior   []Removal // removals of matched prior messages, in match order
}

// DeletedIDs returns ids of all removed messages, current message first
func (e *Enforcement) DeletedIDs() []int64 {
	res := []int64{}
	if e == nil {
		return res
	}
	if e.Current.Removed() {
		res = append(res, e.Current.MsgID)
	}
	for _, r := range e.Prior {
		if r.Removed() {
			res = append(res, r.MsgID)
		}
	}
	return res
}

// Forbidden returns true if the current message could not be removed due to missing permissions
func (e *Enforcement) Forbidden() bool {
	return e != nil && errors.Is(e.Current.Err, ErrForbidden)
}

// enforcer removes spam messages with per-item failure isolation. No retries.
type enforcer struct {
	remover     Remover
	concurrency int
	timeout     time.Duration
}

// enforce removes the current message and then all matched prior messages.
// Each removal is attempted exactly once, failures are recorded and never abort other attempts.
func (e *enforcer) enforce(ctx context.Context, msg spamcheck.Message, matched []spamcheck.HistoryEntry) Enforcement {
	res := Enforcement{Current: e.remove(ctx, msg.ChannelID, msg.ID), Prior: make([]Removal, len(matched))}
	if !res.Current.Removed() {
		log.Printf("[WARN] can't remove message %d from channel %d: %v", msg.ID, msg.ChannelID, res.Current.Err)
	}
	if len(matched) == 0 {
		return res
	}

	p := pool.New().WithMaxGoroutines(max(1, e.concurrency))
	for i, h := range matched {
		p.Go(func() {
			res.Prior[i] = e.remove(ctx, h.ChannelID, h.MsgID)
		})
	}
	p.Wait()

	for _, r := range res.Prior {
		if !r.Removed() {
			log.Printf("[DEBUG] can't remove prior message %d from channel %d: %v", r.MsgID, r.ChannelID, r.Err)
		}
	}
	return res
}

func (e *enforcer) remove(ctx context.Context, channelID, msgID int64) Removal {
	res := Removal{MsgID: msgID, ChannelID: channelID}
	if e.remover == nil {
		res.Err = errNoRemover
		return res
	}
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	if err := e.remover.RemoveMessage(ctx, channelID, msgID); err != nil {
		res.Err = err
	}
	return res
}
