// Package events connects the spam detector to Discord. It listens to the gateway, filters and converts
// incoming messages, passes them to the detector and provides the message remover used in active mode.
package events

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/gateway"
	"github.com/diamondburned/arikawa/v3/state"

	"github.com/umputun/dc-spam/lib/dcspam"
	"github.com/umputun/dc-spam/lib/spamcheck"
)

//go:generate moq --out mocks/checker.go --pkg mocks --with-resets --skip-ensure . Checker

// Checker is a spam detector checking a single message
type Checker interface {
	Check(ctx context.Context, msg spamcheck.Message) dcspam.Result
}

// Observer collects stats of processed messages, optional
type Observer interface {
	Observe(res dcspam.Result)
	Ignored()
}

// DiscordListener listens to Discord gateway and sends guild messages to the checker
type DiscordListener struct {
	Checker  Checker
	Observer Observer
	Guilds   []int64 // allowed guild ids, all guilds if empty

	state  *state.State
	selfID atomic.Uint64 // bot's own user id, set on ready
	ctx    context.Context
}

// intents required to see guild messages with their content and author membership
const intents = gateway.IntentGuilds | gateway.IntentGuildMessages | gateway.IntentGuildMembers |
	gateway.IntentMessageContent

// NewDiscordListener makes a listener with a gateway state for the given bot token.
// Handlers are registered here, the gateway is opened by Do.
func NewDiscordListener(token string, checker Checker) *DiscordListener {
	if !strings.HasPrefix(token, "Bot ") {
		token = "Bot " + token
	}
	res := &DiscordListener{Checker: checker}
	res.state = state.NewWithIntents(token, intents)
	res.state.AddHandler(res.onReady)
	res.state.AddHandler(res.onMessage)
	return res
}

// Remover returns message remover backed by the listener's REST client
func (l *DiscordListener) Remover() *Remover {
	return NewRemover(func(ctx context.Context, chID discord.ChannelID, msgID discord.MessageID) error {
		return l.state.WithContext(ctx).DeleteMessage(chID, msgID, "spam")
	})
}

// Do opens the gateway and blocks until ctx is canceled
func (l *DiscordListener) Do(ctx context.Context) error {
	if l.state == nil {
		return fmt.Errorf("listener is not initialized")
	}
	if len(l.Guilds) > 0 {
		log.Printf("[INFO] start discord listener for guilds %v", l.Guilds)
	} else {
		log.Printf("[INFO] start discord listener for all guilds")
	}

	l.ctx = ctx
	if err := l.state.Open(ctx); err != nil {
		return fmt.Errorf("failed to open gateway: %w", err)
	}

	<-ctx.Done()
	if err := l.state.Close(); err != nil {
		log.Printf("[WARN] failed to close gateway: %v", err)
	}
	log.Printf("[INFO] discord listener stopped")
	return ctx.Err()
}

func (l *DiscordListener) onReady(e *gateway.ReadyEvent) {
	l.selfID.Store(uint64(e.User.ID))
	log.Printf("[INFO] logged in as %s", userName(e.User))
}

func (l *DiscordListener) onMessage(e *gateway.MessageCreateEvent) {
	if reason := l.skipReason(e); reason != "" {
		log.Printf("[DEBUG] ignore message %d, %s", e.ID, reason)
		if l.Observer != nil {
			l.Observer.Ignored()
		}
		return
	}

	ctx := l.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	res := l.Checker.Check(ctx, toMessage(e, time.Now()))
	if l.Observer != nil {
		l.Observer.Observe(res)
	}
}

// skipReason returns non-empty reason if the message should not be checked
func (l *DiscordListener) skipReason(e *gateway.MessageCreateEvent) string {
	switch {
	case e.Author.Bot:
		return "bot author"
	case !e.GuildID.IsValid():
		return "direct message"
	case uint64(e.Author.ID) == l.selfID.Load():
		return "own message"
	case len(l.Guilds) > 0 && !l.allowedGuild(e.GuildID):
		return fmt.Sprintf("guild %d is not monitored", e.GuildID)
	}
	return ""
}

func (l *DiscordListener) allowedGuild(id discord.GuildID) bool {
	for _, g := range l.Guilds {
		if discord.GuildID(g) == id {
			return true
		}
	}
	return false
}

// toMessage converts gateway event to the detector's message
func toMessage(e *gateway.MessageCreateEvent, received time.Time) spamcheck.Message {
	res := spamcheck.Message{
		ID:             int64(e.ID),
		ChannelID:      int64(e.ChannelID),
		GuildID:        int64(e.GuildID),
		UserID:         int64(e.Author.ID),
		UserName:       userName(e.Author),
		AccountCreated: e.Author.ID.Time(),
		Text:           e.Content,
		Received:       received,
	}
	if e.Timestamp.IsValid() {
		res.Sent = e.Timestamp.Time()
	}
	if e.Member != nil && e.Member.Joined.IsValid() {
		joined := e.Member.Joined.Time()
		res.JoinedAt = &joined
	}
	return res
}

// userName returns name#discriminator for legacy accounts and plain username otherwise
func userName(u discord.User) string {
	if u.Discriminator == "" || u.Discriminator == "0" {
		return u.Username
	}
	return u.Username + "#" + u.Discriminator
}
