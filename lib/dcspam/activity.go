package dcspam

import (
	"sync"
	"time"

	cache "github.com/go-pkgz/expirable-cache/v3"

	"github.com/umputun/dc-spam/lib/spamcheck"
)

const activityShards = 64

// ActivityStore keeps per-user message counters and recent history.
// All calls for a given user are expected to run inside the critical section returned by Lock.
type ActivityStore interface {
	Lock(userID int64) (unlock func())                                  // enter per-user critical section
	RecordAndGetCount(userID int64) int                                 // increment and return lifetime counter
	RecentHistory(userID int64, now time.Time) []spamcheck.HistoryEntry // pruned history, oldest first
	Append(userID int64, entry spamcheck.HistoryEntry)                  // append entry to history
}

// Activity is an in-memory ActivityStore, thread-safe.
// Counters are kept for the process lifetime in a sharded map, history is kept in a ttl cache
// with ttl equal to the retention window, so users who stopped posting don't hold memory.
type Activity struct {
	retention time.Duration
	shards    [activityShards]activityShard
	history   cache.Cache[int64, []spamcheck.HistoryEntry]
}

type activityShard struct {
	lock  sync.Mutex
	users map[int64]*userActivity
}

type userActivity struct {
	lock  sync.Mutex
	count int // guarded by the shard lock
}

// ActivityStats is a snapshot of activity store size.
type ActivityStats struct {
	Users       int `json:"users"`        // users with a counter
	WithHistory int `json:"with_history"` // users with retained history
}

// NewActivity makes an in-memory activity store keeping history for the retention window.
func NewActivity(retention time.Duration) *Activity {
	res := &Activity{
		retention: retention,
		history:   cache.NewCache[int64, []spamcheck.HistoryEntry]().WithTTL(retention),
	}
	for i := range res.shards {
		res.shards[i].users = make(map[int64]*userActivity)
	}
	return res
}

// Lock locks the user record and returns unlock function.
// Must not be called again for the same user before unlock.
func (a *Activity) Lock(userID int64) (unlock func()) {
	u := a.user(userID)
	u.lock.Lock()
	return u.lock.Unlock
}

// RecordAndGetCount increments lifetime counter of the user and returns the new value.
// The counter is never decremented or reset.
func (a *Activity) RecordAndGetCount(userID int64) int {
	sh := a.shard(userID)
	sh.lock.Lock()
	defer sh.lock.Unlock()
	u, ok := sh.users[userID]
	if !ok {
		u = &userActivity{}
		sh.users[userID] = u
	}
	u.count++
	return u.count
}

// RecentHistory returns user's history entries younger than the retention window, oldest first.
// Older entries are discarded. The returned slice is a copy and safe to use after unlock.
func (a *Activity) RecentHistory(userID int64, now time.Time) []spamcheck.HistoryEntry {
	entries, ok := a.history.Get(userID)
	if !ok || len(entries) == 0 {
		return []spamcheck.HistoryEntry{}
	}

	res := make([]spamcheck.HistoryEntry, 0, len(entries))
	for _, e := range entries {
		if now.Sub(e.Time) < a.retention {
			res = append(res, e)
		}
	}

	switch {
	case len(res) == 0:
		a.history.Invalidate(userID)
	case len(res) != len(entries):
		a.history.Set(userID, append([]spamcheck.HistoryEntry(nil), res...), a.retention)
	}
	return res
}

// Append adds entry to the end of user's history.
func (a *Activity) Append(userID int64, entry spamcheck.HistoryEntry) {
	entries, _ := a.history.Get(userID)
	upd := make([]spamcheck.HistoryEntry, 0, len(entries)+1)
	upd = append(upd, entries...)
	upd = append(upd, entry)
	a.history.Set(userID, upd, a.retention)
}

// Prune drops history entries older than the retention window for all users and returns
// the number of discarded entries. Counters are not affected.
// It takes per-user locks, so it must not be called from inside a critical section.
func (a *Activity) Prune(now time.Time) (removed int) {
	for _, userID := range a.history.Keys() {
		unlock := a.Lock(userID)
		entries, _ := a.history.Get(userID)
		kept := a.RecentHistory(userID, now)
		removed += len(entries) - len(kept)
		unlock()
	}
	a.history.DeleteExpired()
	return removed
}

// Stats returns the number of tracked users and users with retained history.
func (a *Activity) Stats() ActivityStats {
	res := ActivityStats{WithHistory: a.history.Len()}
	for i := range a.shards {
		a.shards[i].lock.Lock()
		res.Users += len(a.shards[i].users)
		a.shards[i].lock.Unlock()
	}
	return res
}

// user returns user record, creating it if missing
func (a *Activity) user(userID int64) *userActivity {
	sh := a.shard(userID)
	sh.lock.Lock()
	defer sh.lock.Unlock()
	u, ok := sh.users[userID]
	if !ok {
		u = &userActivity{}
		sh.users[userID] = u
	}
	return u
}

func (a *Activity) shard(userID int64) *activityShard {
	return &a.shards[uint64(userID)%activityShards]
}
