package dcspam

import (
	"fmt"

	"github.com/umputun/dc-spam/lib/spamcheck"
)

// trigger names, as they appear in audit records
const (
	TriggerFirstMessage = "first_message"
	TriggerURL          = "url_present"
	TriggerInvite       = "invite_present"
	TriggerCrossChannel = "cross_channel_repeat"
	TriggerRecentJoin   = "recent_join"
	TriggerNewAccount   = "new_account"
)

// Action is an outcome of the decision policy.
type Action int

// enum of decision actions
const (
	ActionNone          Action = iota // not scored, beyond monitoring window
	ActionLoggedOnly                  // score below threshold
	ActionFlaggedShadow               // spam in shadow mode, logged only
	ActionEnforced                    // spam in active mode, removal requested
)

func (a Action) String() string {
	switch a {
	case ActionLoggedOnly:
		return "logged_only"
	case ActionFlaggedShadow:
		return "flagged_shadow"
	case ActionEnforced:
		return "enforced"
	default:
		return "none"
	}
}

// Decision is a result of scoring a feature set.
type Decision struct {
	Score    int                  `json:"score"`
	Triggers []string             `json:"triggers"` // names of triggered checks with non-zero weight
	Checks   []spamcheck.Response `json:"checks"`   // all evaluated checks
	Action   Action               `json:"action"`
}

// IsSpam returns true if the score reached the threshold
func (d Decision) IsSpam() bool {
	return d.Action == ActionFlaggedShadow || d.Action == ActionEnforced
}

// Decide computes the spam score of a feature set and classifies it with mode-aware thresholding.
// Pure function of features and config; monitoring window is handled by the caller.
func Decide(cfg Config, f Features) Decision {
	checks := []spamcheck.Response{
		{Name: TriggerFirstMessage, Triggered: f.IsFirstMessage, Weight: cfg.Weights.FirstMessage,
			Details: fmt.Sprintf("first message: %v", f.IsFirstMessage)},
		{Name: TriggerURL, Triggered: f.NumURLs > 0, Weight: cfg.Weights.URL,
			Details: fmt.Sprintf("urls: %d", f.NumURLs)},
		{Name: TriggerInvite, Triggered: f.HasInvite, Weight: cfg.Weights.Invite,
			Details: fmt.Sprintf("invite link: %v", f.HasInvite)},
		{Name: TriggerCrossChannel, Triggered: f.CrossChannelRepeat, Weight: cfg.Weights.CrossChannel,
			Details: fmt.Sprintf("matches: %d, similarity: %0.2f/%0.2f", len(f.Matched), f.SimilarityScore, cfg.SimilarityThreshold)},
		{Name: TriggerRecentJoin, Triggered: f.IsRecentJoin, Weight: cfg.Weights.RecentJoin,
			Details: fmt.Sprintf("recent join: %v", f.IsRecentJoin)},
		{Name: TriggerNewAccount, Triggered: f.IsNewAccount, Weight: cfg.Weights.NewAccount,
			Details: fmt.Sprintf("new account: %v", f.IsNewAccount)},
	}

	res := Decision{Triggers: []string{}, Checks: checks}
	for _, c := range checks {
		if !c.Triggered || c.Weight == 0 {
			continue
		}
		res.Score += c.Weight
		res.Triggers = append(res.Triggers, c.Name)
	}

	switch {
	case res.Score < cfg.ScoreThreshold:
		res.Action = ActionLoggedOnly
	case cfg.Mode == ModeShadow:
		res.Action = ActionFlaggedShadow
	default:
		res.Action = ActionEnforced
	}
	return res
}
