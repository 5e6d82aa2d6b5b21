package dcspam

import (
	"regexp"
	"strings"
	"time"

	"github.com/umputun/dc-spam/lib/spamcheck"
)

// urlRe matches http(s) and bare www urls, each url consumed up to the next whitespace
var urlRe = regexp.MustCompile(`(?i)https?://\S+|www\.\S+`)

// Features is a set of signals derived from a single message and the author's activity.
type Features struct {
	NumURLs            int                      `json:"num_urls"`
	HasInvite          bool                     `json:"has_invite"`
	IsFirstMessage     bool                     `json:"is_first_message"`
	IsRecentJoin       bool                     `json:"is_recent_join"`
	IsNewAccount       bool                     `json:"is_new_account"`
	CrossChannelRepeat bool                     `json:"cross_channel_repeat"`
	SimilarityScore    float64                  `json:"similarity_score"` // max similarity among matches, 0 if no match
	Matched            []spamcheck.HistoryEntry `json:"matched"`          // all matched prior messages from other channels
}

// countURLs returns the number of urls in the text
func countURLs(text string) int {
	return len(urlRe.FindAllStringIndex(text, -1))
}

// hasInvite checks if the text contains any of invite domains, case-insensitive.
// domains expected to be lowercased.
func hasInvite(text string, domains []string) bool {
	lower := strings.ToLower(text)
	for _, d := range domains {
		if d != "" && strings.Contains(lower, d) {
			return true
		}
	}
	return false
}

// extractFeatures computes the feature set for msg with normalized text, assigned lifetime count
// and pruned history of the author. It doesn't modify anything.
func (d *Detector) extractFeatures(msg spamcheck.Message, text string, count int,
	history []spamcheck.HistoryEntry, now time.Time) Features {

	res := Features{
		NumURLs:        countURLs(msg.Text),
		HasInvite:      hasInvite(msg.Text, d.inviteDomains),
		IsFirstMessage: count == 1,
		IsRecentJoin:   msg.JoinedAt != nil && now.Sub(*msg.JoinedAt) < d.RecentJoin,
		IsNewAccount:   !msg.AccountCreated.IsZero() && now.Sub(msg.AccountCreated) < d.NewAccountAge,
		Matched:        []spamcheck.HistoryEntry{},
	}

	for _, h := range history {
		if h.ChannelID == msg.ChannelID {
			continue // same-channel repeats are not cross-channel spam
		}
		sim := Similarity(h.Text, text)
		if sim < d.SimilarityThreshold {
			continue
		}
		res.Matched = append(res.Matched, h)
		res.CrossChannelRepeat = true
		if sim > res.SimilarityScore {
			res.SimilarityScore = sim
		}
	}
	return res
}
