package discord

import (
	"fmt"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/couchlog/couchlog/internal/telegraph"
)

// mockSession implements session for tests.
type mockSession struct {
	openErr error
	sendErr error

	opened   bool
	closed   bool
	messages []string
	embeds   []*discordgo.MessageEmbed
}

func (m *mockSession) Open() error {
	if m.openErr != nil {
		return m.openErr
	}
	m.opened = true
	return nil
}

func (m *mockSession) Close() error {
	m.closed = true
	return nil
}

func (m *mockSession) ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	if m.sendErr != nil {
		return nil, m.sendErr
	}
	m.messages = append(m.messages, content)
	return &discordgo.Message{Content: content}, nil
}

func (m *mockSession) ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	if m.sendErr != nil {
		return nil, m.sendErr
	}
	m.embeds = append(m.embeds, embed)
	return &discordgo.Message{}, nil
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(AdapterOpts{ChannelID: "123"}); err == nil {
		t.Error("expected error without token")
	}
	if _, err := New(AdapterOpts{BotToken: "tok"}); err == nil {
		t.Error("expected error without channel")
	}
	if _, err := New(AdapterOpts{Session: &mockSession{}, ChannelID: "123"}); err != nil {
		t.Errorf("injected session should not need a token: %v", err)
	}
}

func TestConnect_OpensSession(t *testing.T) {
	mock := &mockSession{}
	a, _ := New(AdapterOpts{Session: mock, ChannelID: "123"})
	if err := a.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if !mock.opened {
		t.Error("session not opened")
	}
}

func TestConnect_OpenFailure(t *testing.T) {
	mock := &mockSession{openErr: fmt.Errorf("gateway unreachable")}
	a, _ := New(AdapterOpts{Session: mock, ChannelID: "123"})
	if err := a.Connect(); err == nil {
		t.Fatal("expected error")
	}
}

func TestSend_PlainText(t *testing.T) {
	mock := &mockSession{}
	a, _ := New(AdapterOpts{Session: mock, ChannelID: "123"})
	a.Connect()

	if err := a.Send(telegraph.OutboundMessage{Text: "hello"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(mock.messages) != 1 || mock.messages[0] != "hello" {
		t.Errorf("messages = %v", mock.messages)
	}
	if len(mock.embeds) != 0 {
		t.Errorf("embeds = %d, want 0 for plain text", len(mock.embeds))
	}
}

func TestSend_EventBecomesEmbed(t *testing.T) {
	mock := &mockSession{}
	a, _ := New(AdapterOpts{Session: mock, ChannelID: "123"})
	a.Connect()

	err := a.Send(telegraph.OutboundMessage{
		Text:  "alice finished Heat",
		Event: &telegraph.Event{Title: "alice finished Heat", Body: "Watched for 1h 43m.", Color: "#36a64f"},
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(mock.embeds) != 1 {
		t.Fatalf("embeds = %d, want 1", len(mock.embeds))
	}
	e := mock.embeds[0]
	if e.Title != "alice finished Heat" || e.Description != "Watched for 1h 43m." {
		t.Errorf("embed = %+v", e)
	}
	if e.Color != 0x36a64f {
		t.Errorf("color = %#x, want 0x36a64f", e.Color)
	}
}

func TestSend_NotConnected(t *testing.T) {
	a, _ := New(AdapterOpts{BotToken: "tok", ChannelID: "123"})
	if err := a.Send(telegraph.OutboundMessage{Text: "hi"}); err == nil {
		t.Fatal("expected error before Connect")
	}
}

func TestClose(t *testing.T) {
	mock := &mockSession{}
	a, _ := New(AdapterOpts{Session: mock, ChannelID: "123"})
	a.Connect()
	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !mock.closed {
		t.Error("session not closed")
	}
}

func TestParseColor(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"#36a64f", 0x36a64f},
		{"36a64f", 0x36a64f},
		{"", 0},
		{"not-a-color", 0},
	}
	for _, c := range cases {
		if got := parseColor(c.in); got != c.want {
			t.Errorf("parseColor(%q) = %#x, want %#x", c.in, got, c.want)
		}
	}
}
