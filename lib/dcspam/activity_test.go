package dcspam

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/dc-spam/lib/spamcheck"
)

func TestActivity_RecordAndGetCount(t *testing.T) {
	a := NewActivity(time.Minute)
	for i := 1; i <= 5; i++ {
		assert.Equal(t, i, a.RecordAndGetCount(1))
	}
	assert.Equal(t, 1, a.RecordAndGetCount(2), "counters are per user")
	assert.Equal(t, 6, a.RecordAndGetCount(1))
	assert.Equal(t, ActivityStats{Users: 2}, a.Stats())
}

func TestActivity_History(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	a := NewActivity(5 * time.Minute)

	assert.Empty(t, a.RecentHistory(1, t0), "no history for unknown user")

	a.Append(1, spamcheck.HistoryEntry{MsgID: 10, ChannelID: 100, Time: t0, Text: "first"})
	a.Append(1, spamcheck.HistoryEntry{MsgID: 11, ChannelID: 101, Time: t0.Add(4 * time.Minute), Text: "second"})
	a.Append(2, spamcheck.HistoryEntry{MsgID: 20, ChannelID: 100, Time: t0, Text: "other user"})

	res := a.RecentHistory(1, t0.Add(time.Minute))
	require.Len(t, res, 2)
	assert.Equal(t, int64(10), res[0].MsgID, "oldest first")
	assert.Equal(t, int64(11), res[1].MsgID)

	// exactly at the retention boundary the entry is gone
	res = a.RecentHistory(1, t0.Add(5*time.Minute))
	require.Len(t, res, 1)
	assert.Equal(t, int64(11), res[0].MsgID)

	// pruned entry doesn't come back
	res = a.RecentHistory(1, t0.Add(time.Minute))
	require.Len(t, res, 1)

	res = a.RecentHistory(1, t0.Add(10*time.Minute))
	assert.Empty(t, res)
	assert.Equal(t, 1, a.Stats().WithHistory, "only user 2 has history")
}

func TestActivity_RecentHistoryReturnsCopy(t *testing.T) {
	t0 := time.Now()
	a := NewActivity(time.Minute)
	a.Append(1, spamcheck.HistoryEntry{MsgID: 1, Time: t0, Text: "orig"})
	res := a.RecentHistory(1, t0)
	require.Len(t, res, 1)
	res[0].Text = "changed"
	assert.Equal(t, "orig", a.RecentHistory(1, t0)[0].Text)
}

func TestActivity_Prune(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	a := NewActivity(5 * time.Minute)
	a.RecordAndGetCount(1)
	a.RecordAndGetCount(2)
	a.Append(1, spamcheck.HistoryEntry{MsgID: 1, Time: t0})
	a.Append(1, spamcheck.HistoryEntry{MsgID: 2, Time: t0.Add(4 * time.Minute)})
	a.Append(2, spamcheck.HistoryEntry{MsgID: 3, Time: t0})

	assert.Equal(t, 0, a.Prune(t0.Add(time.Minute)))
	assert.Equal(t, 2, a.Prune(t0.Add(6*time.Minute)))
	assert.Equal(t, ActivityStats{Users: 2, WithHistory: 1}, a.Stats())
	assert.Equal(t, 1, a.Prune(t0.Add(10*time.Minute)))
	assert.Equal(t, ActivityStats{Users: 2, WithHistory: 0}, a.Stats(), "counters survive pruning")
	assert.Equal(t, 2, a.RecordAndGetCount(1))
}

func TestActivity_Concurrent(t *testing.T) {
	a := NewActivity(time.Minute)
	const workers = 100

	var mu sync.Mutex
	seen := map[int]bool{}
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := a.Lock(1)
			n := a.RecordAndGetCount(1)
			a.Append(1, spamcheck.HistoryEntry{MsgID: int64(n), Time: time.Now()})
			unlock()
			mu.Lock()
			seen[n] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers, "every message got a distinct count")
	for i := 1; i <= workers; i++ {
		assert.True(t, seen[i], "count %d assigned", i)
	}
	assert.Len(t, a.RecentHistory(1, time.Now()), workers, "no appends lost")
}
