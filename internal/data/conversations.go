package data

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ConversationsStore is the adapter between the messaging gateway and the
// document store. It owns both the conversations collection and the messages
// collection (the per-conversation ordered history), and exposes only the
// operations the gateway and the HTTP read path actually use: point get,
// equality-filtered query, merge-style metadata update and message append.
type ConversationsStore struct {
	convs *mongo.Collection
	msgs  *mongo.Collection
}

// NewConversationsStore returns a ConversationsStore over the two collections.
func NewConversationsStore(convs, msgs *mongo.Collection) *ConversationsStore {
	return &ConversationsStore{convs: convs, msgs: msgs}
}

// CreateConversation creates the unique conversation for an (owner, student)
// pair. Called from the enrollment flow only; the messaging path never
// auto-creates. If the pair already has a conversation the existing one is
// returned unchanged.
func (s *ConversationsStore) CreateConversation(ctx context.Context, owner, student string) (*Conversation, error) {
	now := time.Now().UTC()

	// Upsert on the unique (owner, student) index so concurrent enrollments
	// cannot produce a second document for the same pair.
	update := bson.M{
		"$setOnInsert": bson.M{
			"owner":      owner,
			"student":    student,
			"created_at": now,
			"updated_at": now,
		},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var conv Conversation
	filter := bson.M{"owner": owner, "student": student}
	if err := s.convs.FindOneAndUpdate(ctx, filter, update, opts).Decode(&conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// GetConversation fetches a conversation by its hex id. A malformed or
// unknown id both surface as ErrNotFound; the caller treats absence as the
// abort case, not a crash.
func (s *ConversationsStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	var conv Conversation
	if err := s.convs.FindOne(ctx, bson.M{"_id": oid}).Decode(&conv); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &conv, nil
}

// FindConversation resolves the conversation for (owner, student) by the two
// equality filters, taking the first match. The unique index makes multiple
// matches impossible, so no tie-break is needed.
func (s *ConversationsStore) FindConversation(ctx context.Context, owner, student string) (*Conversation, error) {
	var conv Conversation
	filter := bson.M{"owner": owner, "student": student}
	if err := s.convs.FindOne(ctx, filter).Decode(&conv); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &conv, nil
}

// AppendMessage persists one message into the conversation's history.
// Write-once: messages are never mutated or removed afterwards. sentAt is the
// canonical server-side timestamp assigned by the caller at write time.
func (s *ConversationsStore) AppendMessage(ctx context.Context, convID bson.ObjectID, from, to, content string, sentAt time.Time) (*Message, error) {
	msg := &Message{
		ConversationID: convID,
		From:           from,
		To:             to,
		Content:        content,
		SentAt:         sentAt,
	}

	result, err := s.msgs.InsertOne(ctx, msg)
	if err != nil {
		return nil, err
	}
	msg.ID = result.InsertedID.(bson.ObjectID)
	return msg, nil
}

// TouchConversation merge-writes the denormalized metadata after a send. Only
// last_message and updated_at change; owner and student are never touched.
func (s *ConversationsStore) TouchConversation(ctx context.Context, convID bson.ObjectID, lastMessage string, at time.Time) error {
	res, err := s.convs.UpdateOne(ctx, bson.M{"_id": convID}, bson.M{
		"$set": bson.M{"last_message": lastMessage, "updated_at": at},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ListMessages reads a conversation's full history ordered by sent_at
// ascending. An empty history yields an empty slice, not an error.
func (s *ConversationsStore) ListMessages(ctx context.Context, convID bson.ObjectID) ([]*Message, error) {
	opts := options.Find().SetSort(bson.M{"sent_at": 1})

	cursor, err := s.msgs.Find(ctx, bson.M{"conversation_id": convID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	messages := []*Message{}
	if err = cursor.All(ctx, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// ListByOwner returns an instructor's conversations, most recently active
// first. Backs the instructor chat overview.
func (s *ConversationsStore) ListByOwner(ctx context.Context, owner string) ([]*Conversation, error) {
	opts := options.Find().SetSort(bson.M{"updated_at": -1})

	cursor, err := s.convs.Find(ctx, bson.M{"owner": owner}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	convs := []*Conversation{}
	if err = cursor.All(ctx, &convs); err != nil {
		return nil, err
	}
	return convs, nil
}

// ListForStudent returns a student's conversations, most recently active
// first.
func (s *ConversationsStore) ListForStudent(ctx context.Context, student string) ([]*Conversation, error) {
	opts := options.Find().SetSort(bson.M{"updated_at": -1})

	cursor, err := s.convs.Find(ctx, bson.M{"student": student}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	convs := []*Conversation{}
	if err = cursor.All(ctx, &convs); err != nil {
		return nil, err
	}
	return convs, nil
}
