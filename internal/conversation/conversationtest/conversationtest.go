// Package conversationtest provides helpers for engine tests.
package conversationtest

import (
	"context"
	"strings"
	"sync"

	"dispatch_bot_backend/internal/conversation"
	"dispatch_bot_backend/internal/domain"
	"dispatch_bot_backend/internal/session"
	"dispatch_bot_backend/platform/logger"
)

// Sent is one recorded outbound message.
type Sent struct {
	To  string
	Msg conversation.Message
}

// Messenger records every message instead of delivering it.
type Messenger struct {
	mu   sync.Mutex
	sent []Sent
}

// Send implements conversation.Messenger.
func (m *Messenger) Send(_ context.Context, to string, msg conversation.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, Sent{To: to, Msg: msg})
	return nil
}

// To returns the messages sent to one address.
func (m *Messenger) To(addr string) []conversation.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []conversation.Message
	for _, s := range m.sent {
		if s.To == addr {
			out = append(out, s.Msg)
		}
	}
	return out
}

// All returns every recorded message.
func (m *Messenger) All() []Sent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Sent(nil), m.sent...)
}

// Last returns the text (or prompt body) of the last message to addr.
func (m *Messenger) Last(addr string) string {
	msgs := m.To(addr)
	if len(msgs) == 0 {
		return ""
	}
	return TextOf(msgs[len(msgs)-1])
}

// Contains reports whether any message to addr contains substr.
func (m *Messenger) Contains(addr, substr string) bool {
	for _, msg := range m.To(addr) {
		if strings.Contains(TextOf(msg), substr) {
			return true
		}
	}
	return false
}

// Reset forgets recorded messages.
func (m *Messenger) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = nil
}

// TextOf flattens a message to searchable text.
func TextOf(msg conversation.Message) string {
	var b strings.Builder
	b.WriteString(msg.Text)
	if msg.Prompt != nil {
		b.WriteString(msg.Prompt.Title)
		b.WriteString("\n")
		b.WriteString(msg.Prompt.Body)
		for _, o := range msg.Prompt.Options {
			b.WriteString("\n[" + o.ID + "] " + o.Label)
		}
	}
	return b.String()
}

// Turn builds a text turn.
func Turn(out conversation.Messenger, id domain.Identity, sess *session.Session, text string) *conversation.Turn {
	ev := conversation.Event{MessageID: "m", Sender: id.Address, Type: conversation.TypeText, Text: text}
	return conversation.NewTurn(ev, id, sess, out, logger.Discard())
}

// ButtonTurn builds a button-press turn.
func ButtonTurn(out conversation.Messenger, id domain.Identity, sess *session.Session, buttonID string) *conversation.Turn {
	ev := conversation.Event{MessageID: "m", Sender: id.Address, Type: conversation.TypeButton, ButtonID: buttonID}
	return conversation.NewTurn(ev, id, sess, out, logger.Discard())
}

// MediaTurn builds an image turn whose payload is data.
func MediaTurn(out conversation.Messenger, id domain.Identity, sess *session.Session, mime string, data []byte) *conversation.Turn {
	ev := conversation.Event{
		MessageID: "m",
		Sender:    id.Address,
		Type:      conversation.TypeImage,
		Media: &conversation.Media{
			MimeType: mime,
			Filename: "upload",
			Fetch:    func(context.Context) ([]byte, error) { return data, nil },
		},
	}
	return conversation.NewTurn(ev, id, sess, out, logger.Discard())
}

// Customer returns an identity for a registered customer.
func Customer(addr string, c *domain.Client) domain.Identity {
	if c != nil {
		c.Address = addr
	}
	return domain.Identity{Role: domain.RoleCustomer, Address: addr, Client: c}
}

// Agent returns an agent identity.
func Agent(addr string, id int64, name string) domain.Identity {
	return domain.Identity{Role: domain.RoleAgent, Address: addr, Agent: &domain.Staff{ID: id, Name: name, Address: addr, Status: domain.StaffAvailable}}
}

// Technician returns a technician identity.
func Technician(addr string, id int64, name, location string) domain.Identity {
	return domain.Identity{Role: domain.RoleTechnician, Address: addr, Technician: &domain.Staff{ID: id, Name: name, Address: addr, Status: domain.StaffAvailable, Location: location}}
}
