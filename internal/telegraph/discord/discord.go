// Package discord implements the telegraph Adapter for Discord.
package discord

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/couchlog/couchlog/internal/telegraph"
)

// session abstracts the discordgo.Session methods we use, enabling test mocks.
type session interface {
	Open() error
	Close() error
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Adapter implements telegraph.Adapter for Discord. Send-only.
type Adapter struct {
	sess      session
	botToken  string
	channelID string
}

// AdapterOpts holds parameters for creating a Discord Adapter.
type AdapterOpts struct {
	BotToken  string
	ChannelID string
	// For testing: inject a mock session instead of a real gateway session.
	Session session
}

// New creates a Discord Adapter.
func New(opts AdapterOpts) (*Adapter, error) {
	if opts.Session == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("discord: bot token is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("discord: channel id is required")
	}
	return &Adapter{
		sess:      opts.Session,
		botToken:  opts.BotToken,
		channelID: opts.ChannelID,
	}, nil
}

// Connect opens the gateway session.
func (a *Adapter) Connect() error {
	if a.sess == nil {
		s, err := discordgo.New("Bot " + a.botToken)
		if err != nil {
			return fmt.Errorf("discord: create session: %w", err)
		}
		a.sess = s
	}
	if err := a.sess.Open(); err != nil {
		return fmt.Errorf("discord: open session: %w", err)
	}
	return nil
}

// Send posts the message to the configured channel, as an embed when the
// message carries a structured event.
func (a *Adapter) Send(msg telegraph.OutboundMessage) error {
	if a.sess == nil {
		return fmt.Errorf("discord: not connected")
	}
	if msg.Event == nil {
		if _, err := a.sess.ChannelMessageSend(a.channelID, msg.Text); err != nil {
			return fmt.Errorf("discord: send message: %w", err)
		}
		return nil
	}
	if _, err := a.sess.ChannelMessageSendEmbed(a.channelID, toEmbed(msg.Event)); err != nil {
		return fmt.Errorf("discord: send embed: %w", err)
	}
	return nil
}

// Close shuts down the gateway session.
func (a *Adapter) Close() error {
	if a.sess == nil {
		return nil
	}
	if err := a.sess.Close(); err != nil {
		return fmt.Errorf("discord: close session: %w", err)
	}
	return nil
}

// toEmbed converts a telegraph event to a Discord embed.
func toEmbed(ev *telegraph.Event) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       ev.Title,
		Description: ev.Body,
		Color:       parseColor(ev.Color),
	}
	for _, f := range ev.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  f.Value,
			Inline: f.Short,
		})
	}
	return embed
}

// parseColor converts a "#rrggbb" hint to Discord's integer color.
func parseColor(hex string) int {
	hex = strings.TrimPrefix(hex, "#")
	n, err := strconv.ParseInt(hex, 16, 32)
	if err != nil {
		return 0
	}
	return int(n)
}
