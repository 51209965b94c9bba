// Package ws streams real-time market and account events from the
// exchange's subscription feed.
package ws

import (
	"strings"

	"github.com/polyclob/polyclob/pkg/errors"
)

// Channels the feed serves. Everything except "user" is public.
var validChannels = []string{"book", "price", "trade", "ticker", "user"}

// Config describes one subscription before a connection exists.
type Config struct {
	URL           string
	Channels      []string
	AssetIDs      []string
	Authenticated bool
}

// Validate rejects configurations the feed would silently ignore:
// missing URL, no channels, or a channel name outside the whitelist.
// The "user" channel additionally requires authentication.
func (c Config) Validate() error {
	if c.URL == "" {
		return errors.New(errors.CodeConfigError, "websocket url is required")
	}
	if len(c.Channels) == 0 {
		return errors.New(errors.CodeConfigError, "at least one channel must be specified")
	}
	for _, ch := range c.Channels {
		if !isValidChannel(ch) {
			return errors.Newf(errors.CodeConfigError,
				"invalid channel %q, valid channels are: %s", ch, strings.Join(validChannels, ", "))
		}
		if ch == "user" && !c.Authenticated {
			return errors.New(errors.CodeConfigError, "user channel requires authentication")
		}
	}
	return nil
}

func isValidChannel(ch string) bool {
	for _, v := range validChannels {
		if ch == v {
			return true
		}
	}
	return false
}
