// Package orders implements the transport-order and order-sequence state
// machines on top of the object pool and the topology model facade.
package orders

import "github.com/opentcs-go/kernel/internal/objectpool"

// MessageType classifies a Message's severity.
type MessageType string

const (
	MessageInfo    MessageType = "INFO"
	MessageWarning MessageType = "WARNING"
	MessageError   MessageType = "ERROR"
)

// Message is an immutable notification published through the kernel.
type Message struct {
	ID         int
	Name       string
	Properties map[string]string

	Body      string
	Type      MessageType
	Timestamp int64 // unix millis
}

func (m *Message) ObjectID() int      { return m.ID }
func (m *Message) ObjectName() string { return m.Name }
func (m *Message) Kind() string       { return "Message" }

func (m *Message) Clone() objectpool.Entity {
	cp := *m
	if m.Properties != nil {
		cp.Properties = make(map[string]string, len(m.Properties))
		for k, v := range m.Properties {
			cp.Properties[k] = v
		}
	}
	return &cp
}
