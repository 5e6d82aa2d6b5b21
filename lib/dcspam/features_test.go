package dcspam

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/dc-spam/lib/spamcheck"
)

func TestCountURLs(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"no links here", 0},
		{"see https://example.com", 1},
		{"HTTP://EXAMPLE.COM and http://b.org/x?y=1", 2},
		{"see https://a.com and www.b.org, http://c", 3},
		{"https://a.com/https://b.com", 1},
		{"example.com without scheme", 0},
		{"discord.gg/abc", 0},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, countURLs(tt.text))
		})
	}
}

func TestHasInvite(t *testing.T) {
	domains := []string{"discord.gg/", "discord.com/invite/"}
	assert.True(t, hasInvite("join discord.gg/abc", domains))
	assert.True(t, hasInvite("JOIN https://DISCORD.COM/INVITE/abc", domains))
	assert.False(t, hasInvite("discord.gg is a domain", domains))
	assert.False(t, hasInvite("join discord.gg/abc", nil))
	assert.False(t, hasInvite("anything", []string{""}), "empty domain never matches")
}

func TestDetector_extractFeatures(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	cfg := DefaultConfig()
	cfg.SimilarityThreshold = 0.5
	d := NewDetector(cfg, nil)

	t.Run("message signals", func(t *testing.T) {
		joined := now.Add(-5 * time.Minute)
		msg := spamcheck.Message{ChannelID: 1, Text: "Join https://discord.gg/abc now", JoinedAt: &joined,
			AccountCreated: now.Add(-24 * time.Hour)}
		f := d.extractFeatures(msg, Normalize(msg.Text), 1, nil, now)
		assert.Equal(t, 1, f.NumURLs)
		assert.True(t, f.HasInvite)
		assert.True(t, f.IsFirstMessage)
		assert.True(t, f.IsRecentJoin)
		assert.True(t, f.IsNewAccount)
		assert.False(t, f.CrossChannelRepeat)
		assert.Empty(t, f.Matched)
		assert.Zero(t, f.SimilarityScore)
	})

	t.Run("unknown join and account times", func(t *testing.T) {
		msg := spamcheck.Message{ChannelID: 1, Text: "hello"}
		f := d.extractFeatures(msg, "hello", 2, nil, now)
		assert.False(t, f.IsFirstMessage)
		assert.False(t, f.IsRecentJoin)
		assert.False(t, f.IsNewAccount)
	})

	t.Run("old join and account", func(t *testing.T) {
		joined := now.Add(-20 * time.Minute)
		msg := spamcheck.Message{ChannelID: 1, Text: "hello", JoinedAt: &joined, AccountCreated: now.Add(-30 * 24 * time.Hour)}
		f := d.extractFeatures(msg, "hello", 1, nil, now)
		assert.False(t, f.IsRecentJoin)
		assert.False(t, f.IsNewAccount)
	})

	t.Run("cross-channel matches", func(t *testing.T) {
		history := []spamcheck.HistoryEntry{
			{MsgID: 1, ChannelID: 1, Time: now.Add(-time.Minute), Text: "a b c d"}, // same channel, ignored
			{MsgID: 2, ChannelID: 2, Time: now.Add(-time.Minute), Text: "a b c e"}, // 3/5
			{MsgID: 3, ChannelID: 3, Time: now.Add(-time.Minute), Text: "a b c d"}, // identical
			{MsgID: 4, ChannelID: 4, Time: now.Add(-time.Minute), Text: "x y z"},   // unrelated
		}
		msg := spamcheck.Message{ChannelID: 1, Text: "A b, c d!"}
		f := d.extractFeatures(msg, Normalize(msg.Text), 3, history, now)
		assert.True(t, f.CrossChannelRepeat)
		require.Len(t, f.Matched, 2)
		assert.Equal(t, int64(2), f.Matched[0].MsgID)
		assert.Equal(t, int64(3), f.Matched[1].MsgID)
		assert.InDelta(t, 1.0, f.SimilarityScore, 0.0001, "max similarity among matches")
	})

	t.Run("below threshold", func(t *testing.T) {
		history := []spamcheck.HistoryEntry{{MsgID: 2, ChannelID: 2, Time: now, Text: "a b x y"}}
		f := d.extractFeatures(spamcheck.Message{ChannelID: 1, Text: "a b c d"}, "a b c d", 2, history, now)
		assert.False(t, f.CrossChannelRepeat)
		assert.Empty(t, f.Matched)
		assert.Zero(t, f.SimilarityScore)
	})
}
