package dcspam

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/dc-spam/lib/dcspam/mocks"
	"github.com/umputun/dc-spam/lib/spamcheck"
)

var t0 = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func newMsg(id, channel, user int64, text string, at time.Time) spamcheck.Message {
	return spamcheck.Message{ID: id, ChannelID: channel, GuildID: 1, UserID: user, UserName: fmt.Sprintf("user%d", user),
		Text: text, Sent: at, Received: at, AccountCreated: at.Add(-100 * 24 * time.Hour)}
}

func newTestDetector(mode Mode) (*Detector, *mocks.RemoverMock, *mocks.AuditorMock) {
	cfg := DefaultConfig()
	cfg.Mode = mode
	rm := &mocks.RemoverMock{RemoveMessageFunc: func(ctx context.Context, channelID, msgID int64) error { return nil }}
	au := &mocks.AuditorMock{EmitFunc: func(rec spamcheck.Record) {}}
	return NewDetector(cfg, nil).WithRemover(rm).WithAuditor(au), rm, au
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.Mode = "loud"
	cfg.MonitorCount = 0
	cfg.SimilarityThreshold = 1.5
	cfg.Weights.URL = -1
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid mode")
	assert.Contains(t, err.Error(), "monitor count")
	assert.Contains(t, err.Error(), "similarity threshold")
	assert.Contains(t, err.Error(), "weight url")
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("Active")
	require.NoError(t, err)
	assert.Equal(t, ModeActive, m)
	m, err = ParseMode(" shadow ")
	require.NoError(t, err)
	assert.Equal(t, ModeShadow, m)
	_, err = ParseMode("enforce")
	assert.Error(t, err)
}

func TestDetector_Check_FirstMessageWithURL(t *testing.T) {
	d, rm, au := newTestDetector(ModeActive)
	res := d.Check(context.Background(), newMsg(1, 10, 7, "check out https://example.com", t0))

	assert.True(t, res.Scored)
	assert.Equal(t, 1, res.Count)
	assert.Equal(t, 5, res.Decision.Score)
	assert.Equal(t, []string{TriggerFirstMessage, TriggerURL}, res.Decision.Triggers)
	assert.Equal(t, ActionLoggedOnly, res.Decision.Action)
	assert.Nil(t, res.Enforcement)
	assert.Empty(t, rm.RemoveMessageCalls())

	require.Len(t, au.EmitCalls(), 1)
	rec := au.EmitCalls()[0].Rec
	assert.Equal(t, AuditLoggedOnly, rec.Action)
	assert.Equal(t, 5, rec.SpamScore)
	assert.Equal(t, 1, rec.NumURLs)
	assert.Equal(t, []int64{}, rec.DeletedMessageIDs)
	assert.False(t, rec.ShadowMode)
}

func TestDetector_Check_CrossChannel(t *testing.T) {
	text := "FREE NITRO at https://x.com"

	t.Run("shadow", func(t *testing.T) {
		d, rm, au := newTestDetector(ModeShadow)
		r1 := d.Check(context.Background(), newMsg(1, 10, 7, text, t0))
		assert.Equal(t, ActionLoggedOnly, r1.Decision.Action)
		r2 := d.Check(context.Background(), newMsg(2, 20, 7, text, t0.Add(30*time.Second)))
		assert.Equal(t, 8, r2.Decision.Score)
		assert.Equal(t, []string{TriggerURL, TriggerCrossChannel}, r2.Decision.Triggers)
		assert.Equal(t, ActionFlaggedShadow, r2.Decision.Action)
		assert.Nil(t, r2.Enforcement)
		assert.Empty(t, rm.RemoveMessageCalls(), "nothing removed in shadow mode")

		require.Len(t, au.EmitCalls(), 2)
		rec := au.EmitCalls()[1].Rec
		assert.Equal(t, AuditShadowSpam, rec.Action)
		assert.True(t, rec.ShadowMode)
		assert.Equal(t, []int64{}, rec.DeletedMessageIDs)
		assert.InDelta(t, 1.0, rec.SimilarityScore, 0.0001)
	})

	t.Run("active", func(t *testing.T) {
		d, rm, au := newTestDetector(ModeActive)
		d.Check(context.Background(), newMsg(1, 10, 7, text, t0))
		r2 := d.Check(context.Background(), newMsg(2, 20, 7, text, t0.Add(30*time.Second)))
		assert.Equal(t, ActionEnforced, r2.Decision.Action)
		require.NotNil(t, r2.Enforcement)

		calls := rm.RemoveMessageCalls()
		require.Len(t, calls, 2)
		assert.Equal(t, int64(2), calls[0].MsgID)
		assert.Equal(t, int64(20), calls[0].ChannelID)
		assert.Equal(t, int64(1), calls[1].MsgID)
		assert.Equal(t, int64(10), calls[1].ChannelID)

		rec := au.EmitCalls()[1].Rec
		assert.Equal(t, AuditDeleted, rec.Action)
		assert.Equal(t, []int64{2, 1}, rec.DeletedMessageIDs)
	})

	t.Run("same channel repeat is not cross-channel", func(t *testing.T) {
		d, rm, _ := newTestDetector(ModeActive)
		d.Check(context.Background(), newMsg(1, 10, 7, text, t0))
		r2 := d.Check(context.Background(), newMsg(2, 10, 7, text, t0.Add(30*time.Second)))
		assert.False(t, r2.Features.CrossChannelRepeat)
		assert.Equal(t, ActionLoggedOnly, r2.Decision.Action)
		assert.Empty(t, rm.RemoveMessageCalls())
	})

	t.Run("other users don't match", func(t *testing.T) {
		d, _, _ := newTestDetector(ModeActive)
		d.Check(context.Background(), newMsg(1, 10, 7, text, t0))
		r2 := d.Check(context.Background(), newMsg(2, 20, 8, text, t0.Add(30*time.Second)))
		assert.False(t, r2.Features.CrossChannelRepeat)
		assert.Equal(t, 1, r2.Count)
	})
}

func TestDetector_Check_RetentionExpired(t *testing.T) {
	d, rm, _ := newTestDetector(ModeActive)
	text := "FREE NITRO at https://x.com"
	d.Check(context.Background(), newMsg(1, 10, 7, text, t0))
	res := d.Check(context.Background(), newMsg(2, 20, 7, text, t0.Add(6*time.Minute)))
	assert.False(t, res.Features.CrossChannelRepeat)
	assert.Equal(t, 3, res.Decision.Score)
	assert.Equal(t, ActionLoggedOnly, res.Decision.Action)
	assert.Empty(t, rm.RemoveMessageCalls())
}

func TestDetector_Check_PartialRemovalFailure(t *testing.T) {
	d, rm, au := newTestDetector(ModeActive)
	rm.RemoveMessageFunc = func(ctx context.Context, channelID, msgID int64) error {
		if msgID == 1 {
			return fmt.Errorf("delete %d: %w", msgID, ErrNotFound)
		}
		return nil
	}
	text := "claim your reward https://x.com"

	d.Check(context.Background(), newMsg(1, 10, 7, text, t0))
	d.Check(context.Background(), newMsg(2, 20, 7, "unrelated chatter", t0.Add(10*time.Second)))
	res := d.Check(context.Background(), newMsg(3, 30, 7, text, t0.Add(20*time.Second)))
	assert.Equal(t, ActionEnforced, res.Decision.Action)
	require.Len(t, res.Features.Matched, 1)

	assert.Len(t, rm.RemoveMessageCalls(), 2)
	rec := au.EmitCalls()[2].Rec
	assert.Equal(t, AuditDeleted, rec.Action)
	assert.Equal(t, []int64{3}, rec.DeletedMessageIDs, "failed prior not listed")
}

func TestDetector_Check_Forbidden(t *testing.T) {
	d, rm, au := newTestDetector(ModeActive)
	rm.RemoveMessageFunc = func(ctx context.Context, channelID, msgID int64) error {
		if msgID == 2 {
			return fmt.Errorf("delete: %w", ErrForbidden)
		}
		return nil
	}
	text := "FREE NITRO at https://x.com"
	d.Check(context.Background(), newMsg(1, 10, 7, text, t0))
	d.Check(context.Background(), newMsg(2, 20, 7, text, t0.Add(time.Second)))
	rec := au.EmitCalls()[1].Rec
	assert.Equal(t, AuditDeleteForbidden, rec.Action)
	assert.Equal(t, []int64{1}, rec.DeletedMessageIDs)
}

func TestDetector_Check_MonitoringWindow(t *testing.T) {
	d, _, au := newTestDetector(ModeActive)
	for i := 1; i <= 3; i++ {
		res := d.Check(context.Background(), newMsg(int64(i), 10, 7, fmt.Sprintf("message %d", i), t0))
		assert.True(t, res.Scored)
		assert.Equal(t, i, res.Count)
	}
	res := d.Check(context.Background(), newMsg(4, 20, 7, "message 1", t0))
	assert.False(t, res.Scored)
	assert.Equal(t, 4, res.Count)
	assert.Nil(t, res.Record)
	assert.Len(t, au.EmitCalls(), 3, "no record beyond the monitoring window")
	assert.Len(t, d.LastRecords(10), 3)
}

func TestDetector_Check_EmptyText(t *testing.T) {
	d, _, au := newTestDetector(ModeActive)
	res := d.Check(context.Background(), newMsg(1, 10, 7, "!!! 🎉 ???", t0))
	assert.False(t, res.Scored)
	assert.Zero(t, res.Count)
	assert.Empty(t, au.EmitCalls())

	res = d.Check(context.Background(), newMsg(2, 10, 7, "hello", t0))
	assert.Equal(t, 1, res.Count, "empty message not counted")
}

func TestDetector_Check_Record(t *testing.T) {
	d, _, au := newTestDetector(ModeShadow)
	joined := t0.Add(-90 * time.Second)
	msg := newMsg(1, 10, 7, "Привет https://a.com", t0)
	msg.AccountCreated = t0.Add(-50 * time.Hour)
	msg.JoinedAt = &joined
	d.Check(context.Background(), msg)

	require.Len(t, au.EmitCalls(), 1)
	rec := au.EmitCalls()[0].Rec
	assert.Equal(t, "2024-05-01T10:00:00Z", rec.Timestamp)
	assert.Equal(t, int64(7), rec.UserID)
	assert.Equal(t, "user7", rec.UserName)
	assert.Equal(t, 2, rec.AccountAgeDays)
	require.NotNil(t, rec.JoinAgeMinutes)
	assert.InDelta(t, 1.5, *rec.JoinAgeMinutes, 0.0001)
	assert.Equal(t, 1, rec.MessageCount)
	assert.Equal(t, 20, rec.MessageLength, "length in runes")
	assert.Equal(t, int64(10), rec.ChannelID)
	assert.Equal(t, "Привет https://a.com", rec.MessageText)

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"join_age_minutes":1.5`)
	assert.Contains(t, string(data), `"log_shadow_mode":true`)
}

func TestDetector_Check_ConcurrentSameUser(t *testing.T) {
	d, rm, au := newTestDetector(ModeActive)
	const n = 3
	var wg sync.WaitGroup
	results := make([]Result, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = d.Check(context.Background(), newMsg(int64(i+1), int64(10*(i+1)), 7, "FREE NITRO at https://x.com", t0))
		}()
	}
	wg.Wait()

	counts := map[int]bool{}
	enforced := 0
	for _, r := range results {
		counts[r.Count] = true
		if r.Decision.Action == ActionEnforced {
			enforced++
		}
	}
	assert.Equal(t, map[int]bool{1: true, 2: true, 3: true}, counts, "distinct counts")
	assert.Equal(t, n-1, enforced, "every message after the first sees its predecessors")
	assert.Len(t, au.EmitCalls(), n)
	assert.NotEmpty(t, rm.RemoveMessageCalls())
}

func TestDetector_Evaluate(t *testing.T) {
	d, rm, au := newTestDetector(ModeActive)
	res, err := d.Evaluate(spamcheck.Message{Text: "join discord.gg/abc https://x.com"}, 1)
	require.NoError(t, err)
	assert.True(t, res.Scored)
	assert.Equal(t, 8, res.Decision.Score)
	assert.Equal(t, ActionEnforced, res.Decision.Action)
	assert.Empty(t, rm.RemoveMessageCalls())
	assert.Empty(t, au.EmitCalls())
	assert.Empty(t, d.LastRecords(10))

	res, err = d.Evaluate(spamcheck.Message{Text: "???"}, 1)
	require.NoError(t, err)
	assert.False(t, res.Scored)

	_, err = d.Evaluate(spamcheck.Message{Text: "hi"}, 0)
	assert.Error(t, err)
}

func TestDetector_CustomStore(t *testing.T) {
	store := NewActivity(time.Minute)
	d := NewDetector(DefaultConfig(), store)
	d.Check(context.Background(), newMsg(1, 10, 7, "hello", t0))
	assert.Equal(t, ActivityStats{Users: 1, WithHistory: 1}, store.Stats())
}
