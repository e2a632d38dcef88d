package telegraph

import "sync"

// MockAdapter is an in-memory Adapter for tests.
type MockAdapter struct {
	mu sync.Mutex

	ConnectErr error
	SendErr    error

	Connected bool
	Closed    bool
	Sent      []OutboundMessage
}

// Connect records the connection attempt.
func (m *MockAdapter) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ConnectErr != nil {
		return m.ConnectErr
	}
	m.Connected = true
	return nil
}

// Send records the message.
func (m *MockAdapter) Send(msg OutboundMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendErr != nil {
		return m.SendErr
	}
	m.Sent = append(m.Sent, msg)
	return nil
}

// Close records the shutdown.
func (m *MockAdapter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// SentMessages returns a copy of everything sent so far.
func (m *MockAdapter) SentMessages() []OutboundMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]OutboundMessage, len(m.Sent))
	copy(out, m.Sent)
	return out
}
