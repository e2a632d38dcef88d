// Package slack implements the telegraph Adapter for Slack using the Web API.
package slack

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/couchlog/couchlog/internal/telegraph"
	slackapi "github.com/slack-go/slack"
)

// maxRetries is the max number of retries for rate-limited API calls.
const maxRetries = 3

// slackClient abstracts the Slack API methods we use, enabling test mocks.
type slackClient interface {
	AuthTest() (*slackapi.AuthTestResponse, error)
	PostMessage(channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// Adapter implements telegraph.Adapter for Slack. Send-only: Couchlog
// announces events, it does not take commands.
type Adapter struct {
	client    slackClient
	botToken  string
	channelID string
}

// AdapterOpts holds parameters for creating a Slack Adapter.
type AdapterOpts struct {
	BotToken  string // xoxb-... Slack bot token
	ChannelID string // channel to post to
	// For testing: inject a mock client instead of the real Slack API.
	Client slackClient
}

// New creates a Slack Adapter.
func New(opts AdapterOpts) (*Adapter, error) {
	if opts.Client == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("slack: bot token is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("slack: channel id is required")
	}
	return &Adapter{
		client:    opts.Client,
		botToken:  opts.BotToken,
		channelID: opts.ChannelID,
	}, nil
}

// Connect verifies the token with an auth test.
func (a *Adapter) Connect() error {
	if a.client == nil {
		a.client = slackapi.New(a.botToken)
	}
	if _, err := a.client.AuthTest(); err != nil {
		return fmt.Errorf("slack: auth test: %w", err)
	}
	return nil
}

// Send posts the message to the configured channel, retrying on rate
// limits.
func (a *Adapter) Send(msg telegraph.OutboundMessage) error {
	if a.client == nil {
		return fmt.Errorf("slack: not connected")
	}

	options := []slackapi.MsgOption{slackapi.MsgOptionText(msg.Text, false)}
	if msg.Event != nil {
		options = append(options, slackapi.MsgOptionAttachments(toAttachment(msg.Event)))
	}

	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		_, _, err = a.client.PostMessage(a.channelID, options...)
		if err == nil {
			return nil
		}
		wait, limited := rateLimitDelay(err)
		if !limited {
			break
		}
		log.Printf("slack: rate limited, retrying in %s", wait)
		time.Sleep(wait)
	}
	return fmt.Errorf("slack: post message: %w", err)
}

// Close is a no-op; the Web API client holds no connection.
func (a *Adapter) Close() error { return nil }

// toAttachment converts a telegraph event to a Slack attachment.
func toAttachment(ev *telegraph.Event) slackapi.Attachment {
	att := slackapi.Attachment{
		Title: ev.Title,
		Text:  ev.Body,
		Color: ev.Color,
	}
	for _, f := range ev.Fields {
		att.Fields = append(att.Fields, slackapi.AttachmentField{
			Title: f.Name,
			Value: f.Value,
			Short: f.Short,
		})
	}
	return att
}

// rateLimitDelay extracts the retry-after delay from a rate limit error.
func rateLimitDelay(err error) (time.Duration, bool) {
	var rle *slackapi.RateLimitedError
	if errors.As(err, &rle) {
		return rle.RetryAfter, true
	}
	return 0, false
}
