package data

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ClassroomsStore performs classroom DB operations.
type ClassroomsStore struct {
	coll *mongo.Collection
}

// NewClassroomsStore returns a ClassroomsStore using the provided collection.
func NewClassroomsStore(coll *mongo.Collection) *ClassroomsStore {
	return &ClassroomsStore{coll: coll}
}

// AddStudent adds a student id to the instructor's default classroom,
// creating the classroom on first enrollment. The membership write uses
// $addToSet, MongoDB's atomic array-union, so repeated enrollment of the same
// student stays idempotent.
func (s *ClassroomsStore) AddStudent(ctx context.Context, owner, studentID string) (*Classroom, error) {
	now := time.Now().UTC()

	update := bson.M{
		"$addToSet": bson.M{"students": studentID},
		"$set":      bson.M{"updated_at": now},
		"$setOnInsert": bson.M{
			"owner":       owner,
			"name":        "Default Classroom",
			"description": "This is your default classroom",
			"created_at":  now,
		},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var room Classroom
	if err := s.coll.FindOneAndUpdate(ctx, bson.M{"owner": owner}, update, opts).Decode(&room); err != nil {
		return nil, err
	}
	return &room, nil
}

// GetByOwner fetches an instructor's classroom.
func (s *ClassroomsStore) GetByOwner(ctx context.Context, owner string) (*Classroom, error) {
	var room Classroom
	if err := s.coll.FindOne(ctx, bson.M{"owner": owner}).Decode(&room); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &room, nil
}

// RemoveStudent pulls a student id out of every classroom it appears in.
// Called when an instructor deletes a student record.
func (s *ClassroomsStore) RemoveStudent(ctx context.Context, studentID string) error {
	_, err := s.coll.UpdateMany(ctx, bson.M{"students": studentID}, bson.M{
		"$pull": bson.M{"students": studentID},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	})
	return err
}
