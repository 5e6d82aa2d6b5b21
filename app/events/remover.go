package events

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/utils/httputil"

	"github.com/umputun/dc-spam/lib/dcspam"
)

// DeleteFunc deletes a single message on Discord
type DeleteFunc func(ctx context.Context, chID discord.ChannelID, msgID discord.MessageID) error

// Remover implements dcspam.Remover for Discord, REST failures are mapped to dcspam removal errors
type Remover struct {
	del DeleteFunc
}

// NewRemover makes a remover with the given delete function
func NewRemover(del DeleteFunc) *Remover {
	return &Remover{del: del}
}

// RemoveMessage deletes the message from the channel
func (r *Remover) RemoveMessage(ctx context.Context, channelID, msgID int64) error {
	err := r.del(ctx, discord.ChannelID(channelID), discord.MessageID(msgID))
	if err == nil {
		return nil
	}

	var httpErr *httputil.HTTPError
	if errors.As(err, &httpErr) {
		switch httpErr.Status {
		case http.StatusNotFound:
			return fmt.Errorf("can't delete message %d: %w", msgID, dcspam.ErrNotFound)
		case http.StatusForbidden:
			return fmt.Errorf("can't delete message %d: %w", msgID, dcspam.ErrForbidden)
		}
	}
	return fmt.Errorf("can't delete message %d: %w", msgID, err)
}
