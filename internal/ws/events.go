package ws

import (
	"encoding/json"
	"time"
)

// Event names carried on the wire. Every frame is an Envelope whose Data
// payload depends on the event.
const (
	EventRegister       = "register"
	EventPrivateMessage = "private_message"
	EventMessageAck     = "message_ack"
)

// Envelope is the frame format of the real-time channel: a named event plus
// its JSON payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// RegisterPayload binds the connection to a user identity. No response is
// sent.
type RegisterPayload struct {
	UserID string `json:"userId"`
}

// PrivateMessagePayload is a client's send request. ConversationID is
// optional; when absent the conversation is resolved by the (from, to) pair.
type PrivateMessagePayload struct {
	From           string `json:"from"`
	To             string `json:"to"`
	Content        string `json:"content"`
	ConversationID string `json:"conversationId,omitempty"`
}

// MessagePayload is the server push delivered to the recipient's registered
// connection. Timestamp is the canonical server-side write time.
type MessagePayload struct {
	From           string    `json:"from"`
	To             string    `json:"to"`
	Content        string    `json:"content"`
	Timestamp      time.Time `json:"timestamp"`
	ConversationID string    `json:"conversationId"`
}

// AckPayload answers every private_message submission on the sender's own
// connection: either the persisted message's metadata or the failure reason.
type AckPayload struct {
	OK             bool      `json:"ok"`
	Error          string    `json:"error,omitempty"`
	ConversationID string    `json:"conversationId,omitempty"`
	Timestamp      time.Time `json:"timestamp,omitzero"`
}
