package data

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// LessonsStore performs lesson and lesson-status DB operations. Lessons are
// owned by instructors; each assignment seeds a lesson_status row per student
// so completion can be flipped with a single point update later.
type LessonsStore struct {
	lessons  *mongo.Collection
	statuses *mongo.Collection
}

// NewLessonsStore returns a LessonsStore over the two collections.
func NewLessonsStore(lessons, statuses *mongo.Collection) *LessonsStore {
	return &LessonsStore{lessons: lessons, statuses: statuses}
}

// CreateLesson inserts a lesson and one pending status row per assigned
// student. The status seeding is best-effort sequential; there is no
// cross-collection transaction, mirroring the rest of the write paths.
func (s *LessonsStore) CreateLesson(ctx context.Context, owner, title, description string, studentIDs []string) (*Lesson, error) {
	now := time.Now().UTC()
	lesson := &Lesson{
		Owner:       owner,
		Title:       title,
		Description: description,
		Students:    studentIDs,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	result, err := s.lessons.InsertOne(ctx, lesson)
	if err != nil {
		return nil, err
	}
	lesson.ID = result.InsertedID.(bson.ObjectID)

	if len(studentIDs) > 0 {
		rows := make([]interface{}, 0, len(studentIDs))
		for _, sid := range studentIDs {
			rows = append(rows, &LessonStatus{
				LessonID:  lesson.ID,
				StudentID: sid,
			})
		}
		if _, err := s.statuses.InsertMany(ctx, rows); err != nil {
			return nil, err
		}
	}

	return lesson, nil
}

// ListByOwner returns an instructor's lessons, newest first.
func (s *LessonsStore) ListByOwner(ctx context.Context, owner string) ([]*Lesson, error) {
	opts := options.Find().SetSort(bson.M{"created_at": -1})

	cursor, err := s.lessons.Find(ctx, bson.M{"owner": owner}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	lessons := []*Lesson{}
	if err = cursor.All(ctx, &lessons); err != nil {
		return nil, err
	}
	return lessons, nil
}

// ListForStudent joins a student's status rows with their lessons. Two linear
// queries and an in-memory join keep this simple: statuses by student, then
// lessons by $in on the collected ids.
func (s *LessonsStore) ListForStudent(ctx context.Context, studentID string) ([]*StudentLesson, error) {
	cursor, err := s.statuses.Find(ctx, bson.M{"student_id": studentID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	statuses := []*LessonStatus{}
	if err = cursor.All(ctx, &statuses); err != nil {
		return nil, err
	}
	if len(statuses) == 0 {
		return []*StudentLesson{}, nil
	}

	ids := make([]bson.ObjectID, 0, len(statuses))
	byLesson := make(map[bson.ObjectID]*LessonStatus, len(statuses))
	for _, st := range statuses {
		ids = append(ids, st.LessonID)
		byLesson[st.LessonID] = st
	}

	lcursor, err := s.lessons.Find(ctx, bson.M{"_id": bson.M{"$in": ids}},
		options.Find().SetSort(bson.M{"created_at": -1}))
	if err != nil {
		return nil, err
	}
	defer lcursor.Close(ctx)

	lessons := []*Lesson{}
	if err = lcursor.All(ctx, &lessons); err != nil {
		return nil, err
	}

	joined := make([]*StudentLesson, 0, len(lessons))
	for _, l := range lessons {
		st := byLesson[l.ID]
		if st == nil {
			continue
		}
		joined = append(joined, &StudentLesson{Lesson: l, Done: st.Done, DoneAt: st.DoneAt})
	}
	return joined, nil
}

// MarkDone flips a student's status for one lesson to done. ErrNotFound when
// the lesson was never assigned to this student.
func (s *LessonsStore) MarkDone(ctx context.Context, lessonID bson.ObjectID, studentID string) error {
	res, err := s.statuses.UpdateOne(ctx,
		bson.M{"lesson_id": lessonID, "student_id": studentID},
		bson.M{"$set": bson.M{"done": true, "done_at": time.Now().UTC()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
