package events

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/utils/httputil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/dc-spam/lib/dcspam"
)

func TestRemover_RemoveMessage(t *testing.T) {
	tbl := []struct {
		name      string
		err       error
		notFound  bool
		forbidden bool
	}{
		{name: "removed"},
		{name: "not found", err: &httputil.HTTPError{Status: http.StatusNotFound}, notFound: true},
		{name: "forbidden", err: &httputil.HTTPError{Status: http.StatusForbidden}, forbidden: true},
		{name: "server error", err: &httputil.HTTPError{Status: http.StatusInternalServerError}},
		{name: "network error", err: errors.New("connection reset")},
	}

	for _, tt := range tbl {
		t.Run(tt.name, func(t *testing.T) {
			var gotCh discord.ChannelID
			var gotMsg discord.MessageID
			r := NewRemover(func(ctx context.Context, chID discord.ChannelID, msgID discord.MessageID) error {
				gotCh, gotMsg = chID, msgID
				return tt.err
			})

			err := r.RemoveMessage(context.Background(), 123, 456)
			assert.Equal(t, discord.ChannelID(123), gotCh)
			assert.Equal(t, discord.MessageID(456), gotMsg)
			if tt.err == nil {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.notFound, errors.Is(err, dcspam.ErrNotFound))
			assert.Equal(t, tt.forbidden, errors.Is(err, dcspam.ErrForbidden))
			assert.Contains(t, err.Error(), "can't delete message 456")
		})
	}
}
