// Package ws implements the real-time private-messaging gateway: one
// long-lived websocket per client carrying named JSON events, an in-memory
// session registry for targeted push delivery, and persistence of every
// message through the conversation store.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"classroom/internal/auth"
	"classroom/internal/data"

	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// ConversationStore is the narrow slice of the document store the gateway
// depends on: point get, equality-filtered query, message append and the
// metadata merge-update.
type ConversationStore interface {
	GetConversation(ctx context.Context, id string) (*data.Conversation, error)
	FindConversation(ctx context.Context, owner, student string) (*data.Conversation, error)
	AppendMessage(ctx context.Context, convID bson.ObjectID, from, to, content string, sentAt time.Time) (*data.Message, error)
	TouchConversation(ctx context.Context, convID bson.ObjectID, lastMessage string, at time.Time) error
}

// TokenVerifier validates the bearer token presented at upgrade time.
type TokenVerifier interface {
	VerifyToken(token string) (*auth.Claims, error)
}

// Gateway accepts websocket connections, binds them to user identities via
// register events, persists outgoing messages and forwards them to the
// recipient's live connection when one is registered.
type Gateway struct {
	registry *SessionRegistry
	convs    ConversationStore
	verifier TokenVerifier
	upgrader websocket.Upgrader

	// Bound applied to each store call so a stalled store cannot wedge a
	// connection's event loop forever.
	storeTimeout time.Duration
}

// storeCtx returns a fresh per-call context. Each store call gets its own
// budget; a slow call never eats into the next one's.
func (g *Gateway) storeCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), g.storeTimeout)
}

// NewGateway wires a gateway over the given registry, store and verifier.
func NewGateway(registry *SessionRegistry, convs ConversationStore, verifier TokenVerifier) *Gateway {
	return &Gateway{
		registry: registry,
		convs:    convs,
		verifier: verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// In production, restrict to configured origins.
				return true
			},
		},
		storeTimeout: 5 * time.Second,
	}
}

// ServeHTTP upgrades the request and runs the connection's event loop until
// the transport closes. Browsers cannot set headers on websocket dials, so
// the token is accepted from the query string as well as the Authorization
// header.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer"))
	}
	claims, err := g.verifier.VerifyToken(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	wsConn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		return
	}

	c := newConn(wsConn)
	log.Printf("ws: connection %s established", c.id)
	defer func() {
		// Exactly one unregister per disconnect. No-op if this connection
		// never identified itself or was replaced by a newer registration.
		g.registry.Unregister(c)
		c.close()
		log.Printf("ws: connection %s closed (%d users connected)", c.id, g.registry.Len())
	}()

	// One logical handler per inbound event, run to completion before the
	// next read: per-connection submission order is preserved end to end.
	for {
		_, raw, err := wsConn.ReadMessage()
		if err != nil {
			return
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			log.Printf("ws: connection %s sent malformed frame: %v", c.id, err)
			continue
		}

		switch env.Event {
		case EventRegister:
			g.handleRegister(c, c.id, claims.UserID, env.Data)
		case EventPrivateMessage:
			var p PrivateMessagePayload
			if err := json.Unmarshal(env.Data, &p); err != nil {
				g.nack(c, "", "malformed private_message payload")
				continue
			}
			g.handlePrivateMessage(c, p)
		default:
			log.Printf("ws: connection %s sent unknown event %q", c.id, env.Event)
		}
	}
}

// handleRegister binds the connection to the identity carried by the verified
// token. The payload's userId is informational only: a client cannot register
// as someone else. Identification is not required before sending, only before
// receiving pushes.
func (g *Gateway) handleRegister(h Handle, connID, userID string, raw json.RawMessage) {
	var p RegisterPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		log.Printf("ws: connection %s sent invalid register payload", connID)
		return
	}
	if p.UserID != "" && p.UserID != userID {
		log.Printf("ws: connection %s announced user %s but is authenticated as %s", connID, p.UserID, userID)
	}
	g.registry.Register(userID, h)
	log.Printf("ws: user %s registered on connection %s", userID, connID)
}

// handlePrivateMessage runs the send pipeline: resolve conversation, persist,
// refresh conversation metadata, ack the sender, then best-effort push to the
// recipient's live connection. Failures are logged and answered with a
// negative ack; nothing here ever crashes the gateway and nothing retries.
func (g *Gateway) handlePrivateMessage(sender Handle, p PrivateMessagePayload) {
	if p.From == "" || p.To == "" || p.Content == "" {
		g.nack(sender, p.ConversationID, "from, to and content are required")
		return
	}

	// Resolve the conversation. Explicit id wins; otherwise the unique
	// (owner, student) pair is looked up. The messaging path never creates
	// conversations — that belongs to enrollment.
	var (
		conv *data.Conversation
		err  error
	)
	resolveCtx, cancel := g.storeCtx()
	if p.ConversationID != "" {
		conv, err = g.convs.GetConversation(resolveCtx, p.ConversationID)
	} else {
		conv, err = g.convs.FindConversation(resolveCtx, p.From, p.To)
	}
	cancel()
	if err != nil {
		log.Printf("ws: resolve conversation %s -> %s: %v", p.From, p.To, err)
		if errors.Is(err, data.ErrNotFound) {
			g.nack(sender, p.ConversationID, "conversation not found")
		} else {
			g.nack(sender, p.ConversationID, "store unavailable")
		}
		return
	}

	// Canonical timestamp: server clock at write time.
	sentAt := time.Now().UTC()

	appendCtx, cancel := g.storeCtx()
	_, err = g.convs.AppendMessage(appendCtx, conv.ID, p.From, p.To, p.Content, sentAt)
	cancel()
	if err != nil {
		log.Printf("ws: persist message in %s: %v", conv.ID.Hex(), err)
		g.nack(sender, conv.ID.Hex(), "failed to persist message")
		return
	}

	// Merge-write of the denormalized metadata. Not transactional with the
	// append above; a failure here aborts the remaining steps but the
	// message itself stays persisted.
	touchCtx, cancel := g.storeCtx()
	err = g.convs.TouchConversation(touchCtx, conv.ID, p.Content, sentAt)
	cancel()
	if err != nil {
		log.Printf("ws: update conversation %s metadata: %v", conv.ID.Hex(), err)
		g.nack(sender, conv.ID.Hex(), "failed to update conversation")
		return
	}

	ack := AckPayload{OK: true, ConversationID: conv.ID.Hex(), Timestamp: sentAt}
	if err := sender.Push(EventMessageAck, ack); err != nil {
		log.Printf("ws: ack to sender failed: %v", err)
	}

	// Live delivery only if the recipient is registered right now. The
	// recipient may disconnect between lookup and push; a failed push is
	// tolerated as a no-op plus registry cleanup, never an error to the
	// sender's flow — the message is already durably stored.
	if h, ok := g.registry.Lookup(p.To); ok {
		out := MessagePayload{
			From:           p.From,
			To:             p.To,
			Content:        p.Content,
			Timestamp:      sentAt,
			ConversationID: conv.ID.Hex(),
		}
		if err := h.Push(EventPrivateMessage, out); err != nil {
			log.Printf("ws: delivery to %s failed: %v", p.To, err)
			g.registry.Unregister(h)
		}
	}
}

func (g *Gateway) nack(sender Handle, conversationID, reason string) {
	ack := AckPayload{OK: false, Error: reason, ConversationID: conversationID}
	if err := sender.Push(EventMessageAck, ack); err != nil {
		log.Printf("ws: nack to sender failed: %v", err)
	}
}
