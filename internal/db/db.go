// Package db manages MongoDB connections and collections.
package db

import (
	"context" // For connection timeout/cancellation
	"fmt"     // Error formatting
	"time"    // Duration for timeouts

	"go.mongodb.org/mongo-driver/v2/bson"           // Index filter documents
	"go.mongodb.org/mongo-driver/v2/mongo"          // MongoDB driver
	"go.mongodb.org/mongo-driver/v2/mongo/options"  // MongoDB options
	"go.mongodb.org/mongo-driver/v2/mongo/readpref" // MongoDB read preference
)

// Client wraps mongo.Client and exposes collections.
type Client struct {
	// client is the underlying MongoDB connection (thread-safe, can be reused)
	client *mongo.Client

	// db is reference to the "classroom_db" database within MongoDB.
	// All collections (users, classrooms, conversations, messages,
	// lessons, lesson_status) are accessed via this db reference.
	db *mongo.Database
}

// New connects to MongoDB and returns a Client.
func New(ctx context.Context, mongoURI string) (*Client, error) {
	// SetConnectTimeout: fail fast if MongoDB is unreachable
	opts := options.Client().
		ApplyURI(mongoURI).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Ping MongoDB to verify the connection actually works
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	// Lazy-loaded: actual DB not created until first write
	db := client.Database("classroom_db")

	return &Client{
		client: client,
		db:     db,
	}, nil
}

// UsersCollection returns the users collection.
func (c *Client) UsersCollection() *mongo.Collection {
	return c.db.Collection("users")
}

// ClassroomsCollection returns the classrooms collection.
func (c *Client) ClassroomsCollection() *mongo.Collection {
	return c.db.Collection("classrooms")
}

// ConversationsCollection returns the conversations collection.
func (c *Client) ConversationsCollection() *mongo.Collection {
	return c.db.Collection("conversations")
}

// MessagesCollection returns the messages collection. Messages belong to a
// conversation; conversation_id plays the role of the sub-collection key.
func (c *Client) MessagesCollection() *mongo.Collection {
	return c.db.Collection("messages")
}

// LessonsCollection returns the lessons collection.
func (c *Client) LessonsCollection() *mongo.Collection {
	return c.db.Collection("lessons")
}

// LessonStatusCollection returns the lesson_status collection tracking
// per-student completion of assigned lessons.
func (c *Client) LessonStatusCollection() *mongo.Collection {
	return c.db.Collection("lesson_status")
}

// Close disconnects from MongoDB.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// CreateIndexes creates the indexes backing the query paths.
func (c *Client) CreateIndexes(ctx context.Context) error {
	// ===== USERS COLLECTION INDEXES =====
	// Unique index on phone: one account per phone number, so access-code
	// lookups by phone stay point queries.
	// Email is unique only where present; brand-new instructor records are
	// created from a bare phone number before any email is known.
	usersIndexes := []mongo.IndexModel{
		{
			Keys:    map[string]int{"phone": 1},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: map[string]int{"email": 1},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"email": bson.M{"$gt": ""}}),
		},
	}
	if _, err := c.UsersCollection().Indexes().CreateMany(ctx, usersIndexes); err != nil {
		return fmt.Errorf("failed to create users indexes: %w", err)
	}

	// ===== CLASSROOMS COLLECTION INDEX =====
	// One default classroom per instructor; enrollment upserts by owner.
	classroomsIndex := mongo.IndexModel{
		Keys:    map[string]int{"owner": 1},
		Options: options.Index().SetUnique(true),
	}
	if _, err := c.ClassroomsCollection().Indexes().CreateOne(ctx, classroomsIndex); err != nil {
		return fmt.Errorf("failed to create classrooms index: %w", err)
	}

	// ===== CONVERSATIONS COLLECTION INDEX =====
	// One conversation per (owner, student) pair. The unique index backs the
	// equality-filter lookup the messaging path performs and enforces the
	// one-conversation-per-pair rule at the storage level.
	conversationsIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "owner", Value: 1}, {Key: "student", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := c.ConversationsCollection().Indexes().CreateOne(ctx, conversationsIndex); err != nil {
		return fmt.Errorf("failed to create conversations index: %w", err)
	}

	// ===== MESSAGES COLLECTION INDEX =====
	// Composite index: (conversation_id, sent_at ascending)
	// Used by ListMessages to read a conversation's history in order.
	messagesIndex := mongo.IndexModel{
		Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "sent_at", Value: 1}},
	}
	if _, err := c.MessagesCollection().Indexes().CreateOne(ctx, messagesIndex); err != nil {
		return fmt.Errorf("failed to create messages index: %w", err)
	}

	// ===== LESSONS / LESSON_STATUS INDEXES =====
	lessonsIndex := mongo.IndexModel{
		Keys: map[string]int{"owner": 1},
	}
	if _, err := c.LessonsCollection().Indexes().CreateOne(ctx, lessonsIndex); err != nil {
		return fmt.Errorf("failed to create lessons index: %w", err)
	}

	statusIndexes := []mongo.IndexModel{
		{
			// One status row per (lesson, student) assignment.
			Keys:    bson.D{{Key: "lesson_id", Value: 1}, {Key: "student_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			// Student dashboard reads all statuses for one student.
			Keys: map[string]int{"student_id": 1},
		},
	}
	if _, err := c.LessonStatusCollection().Indexes().CreateMany(ctx, statusIndexes); err != nil {
		return fmt.Errorf("failed to create lesson_status indexes: %w", err)
	}

	return nil
}
