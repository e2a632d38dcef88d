// Package telegraph bridges Couchlog watch events to chat platforms
// (Slack, Discord, etc.).
package telegraph

// Adapter is the interface that platform-specific implementations must
// satisfy. Each adapter handles connection management and message
// delivery for a single chat platform.
type Adapter interface {
	// Connect establishes a connection to the chat platform.
	Connect() error

	// Send delivers an outbound message to the platform.
	Send(msg OutboundMessage) error

	// Close gracefully shuts down the adapter connection.
	Close() error
}

// OutboundMessage represents a message to be sent to the chat platform.
type OutboundMessage struct {
	Text  string // plain fallback text
	Event *Event // structured event attachment, optional
}

// Event represents a Couchlog event formatted for display in chat.
type Event struct {
	Title  string  // event headline (e.g. "Alice finished Heat")
	Body   string  // detail text
	Color  string  // sidebar color hint (e.g. "#36a64f")
	Fields []Field // key-value metadata pairs
}

// Field is a key-value pair displayed in an event attachment.
type Field struct {
	Name  string
	Value string
	Short bool // hint: render side-by-side with another field
}
