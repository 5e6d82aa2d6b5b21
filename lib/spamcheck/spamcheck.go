// Package spamcheck defines the data shared between the spam engine and its clients:
// inbound messages, per-user history entries, evaluated triggers and audit records.
package spamcheck

import (
	"fmt"
	"strings"
	"time"
)

// Message is an inbound community message, immutable once created by the platform layer.
type Message struct {
	ID             int64      `json:"id"`              // message id
	ChannelID      int64      `json:"channel_id"`      // channel the message was posted to
	GuildID        int64      `json:"guild_id"`        // community (guild) id
	UserID         int64      `json:"user_id"`         // author id
	UserName       string     `json:"user_name"`       // author display name, used for logging and audit only
	AccountCreated time.Time  `json:"account_created"` // author account creation time
	JoinedAt       *time.Time `json:"joined_at"`       // author join time, nil if unknown
	Text           string     `json:"text"`            // raw message text
	Sent           time.Time  `json:"sent"`            // channel-scoped send time
	Received       time.Time  `json:"received"`        // arrival time, engine clock
}

func (m *Message) String() string {
	return fmt.Sprintf("{id:%d, channel:%d, user:%q (%d), text:%q}", m.ID, m.ChannelID, m.UserName, m.UserID, m.Text)
}

// HistoryEntry is a retained message of a user, used for cross-channel comparison.
type HistoryEntry struct {
	MsgID     int64     `json:"msg_id"`
	ChannelID int64     `json:"channel_id"`
	Time      time.Time `json:"time"`
	Text      string    `json:"text"` // normalized text
}

// Response is a result of a single trigger evaluation.
type Response struct {
	Name      string `json:"name"`      // name of the trigger
	Triggered bool   `json:"triggered"` // true if the condition holds
	Weight    int    `json:"weight"`    // weight added to the score if triggered
	Details   string `json:"details"`   // details of the evaluation
}

func (r *Response) String() string {
	state := "clean"
	if r.Triggered {
		state = fmt.Sprintf("triggered(+%d)", r.Weight)
	}
	return fmt.Sprintf("%s: %s, %s", r.Name, state, r.Details)
}

// ChecksToString converts a slice of checks to a string
func ChecksToString(checks []Response) string {
	elems := []string{}
	for _, r := range checks {
		elems = append(elems, "{"+r.String()+"}")
	}
	return fmt.Sprintf("[%s] ", strings.Join(elems, ", "))
}

// Record is an audit record emitted for every scored message. Serialized as one json object per line.
type Record struct {
	Timestamp         string   `json:"timestamp"` // UTC, RFC3339
	UserID            int64    `json:"user_id"`
	UserName          string   `json:"username"`
	AccountAgeDays    int      `json:"account_age_days"`
	JoinAgeMinutes    *float64 `json:"join_age_minutes"` // null if join time unknown
	MessageCount      int      `json:"message_count"`
	MessageLength     int      `json:"message_length"` // in runes
	NumURLs           int      `json:"num_urls"`
	SpamScore         int      `json:"spam_score"`
	Triggers          []string `json:"triggers"`
	SimilarityScore   float64  `json:"similarity_score"`
	ChannelID         int64    `json:"channel_id"`
	Action            string   `json:"action"`
	DeletedMessageIDs []int64  `json:"deleted_message_ids"`
	MessageText       string   `json:"message_text"`
	ShadowMode        bool     `json:"log_shadow_mode"`
}
