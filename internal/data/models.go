package data

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// User roles.
const (
	RoleInstructor = "INSTRUCTOR"
	RoleStudent    = "STUDENT"
)

// User maps to the users collection. The access code is transient: it is set
// when a login (or invitation) code is issued and cleared once consumed. The
// password hash is only present for students who completed account setup.
type User struct {
	ID           bson.ObjectID `bson:"_id,omitempty" json:"id"`
	Phone        string        `bson:"phone" json:"phone"`
	Email        string        `bson:"email,omitempty" json:"email"`
	Name         string        `bson:"name" json:"name"`
	Role         string        `bson:"role" json:"role"`
	Verified     bool          `bson:"verified" json:"verified"`
	AccessCode   string        `bson:"access_code,omitempty" json:"-"`
	CodeIssuedAt time.Time     `bson:"code_issued_at,omitempty" json:"-"`
	PasswordHash string        `bson:"password_hash,omitempty" json:"-"`
	CreatedAt    time.Time     `bson:"created_at" json:"createdAt"`
	UpdatedAt    time.Time     `bson:"updated_at" json:"updatedAt"`
}

// Classroom maps to the classrooms collection. Each instructor owns one
// default classroom; students holds the member user ids (hex strings) and is
// only ever mutated with atomic array updates.
type Classroom struct {
	ID          bson.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string        `bson:"name" json:"name"`
	Description string        `bson:"description" json:"description"`
	Owner       string        `bson:"owner" json:"owner"`
	Students    []string      `bson:"students" json:"students"`
	CreatedAt   time.Time     `bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time     `bson:"updated_at" json:"updatedAt"`
}

// Conversation pairs one instructor (owner) and one student. LastMessage is a
// denormalized cache of the newest message content, refreshed on every send.
type Conversation struct {
	ID          bson.ObjectID `bson:"_id,omitempty" json:"id"`
	Owner       string        `bson:"owner" json:"owner"`
	Student     string        `bson:"student" json:"student"`
	LastMessage string        `bson:"last_message,omitempty" json:"lastMessage"`
	CreatedAt   time.Time     `bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time     `bson:"updated_at" json:"updatedAt"`
}

// Message is one element of a conversation's ordered history. Immutable once
// written; ordering is by sent_at ascending.
type Message struct {
	ID             bson.ObjectID `bson:"_id,omitempty" json:"id"`
	ConversationID bson.ObjectID `bson:"conversation_id" json:"conversationId"`
	From           string        `bson:"from" json:"from"`
	To             string        `bson:"to" json:"to"`
	Content        string        `bson:"content" json:"content"`
	SentAt         time.Time     `bson:"sent_at" json:"timestamp"`
}

// Lesson maps to the lessons collection (owner is the instructor user id,
// students the assigned student user ids).
type Lesson struct {
	ID          bson.ObjectID `bson:"_id,omitempty" json:"id"`
	Owner       string        `bson:"owner" json:"owner"`
	Title       string        `bson:"title" json:"title"`
	Description string        `bson:"description" json:"description"`
	Students    []string      `bson:"students" json:"students"`
	CreatedAt   time.Time     `bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time     `bson:"updated_at" json:"updatedAt"`
}

// LessonStatus tracks one student's completion of one assigned lesson.
type LessonStatus struct {
	ID        bson.ObjectID `bson:"_id,omitempty" json:"id"`
	LessonID  bson.ObjectID `bson:"lesson_id" json:"lessonId"`
	StudentID string        `bson:"student_id" json:"studentId"`
	Done      bool          `bson:"done" json:"done"`
	DoneAt    time.Time     `bson:"done_at,omitempty" json:"doneAt,omitempty"`
}

// StudentLesson is the joined view returned to students: the lesson plus the
// student's own completion status.
type StudentLesson struct {
	Lesson *Lesson   `json:"lesson"`
	Done   bool      `json:"done"`
	DoneAt time.Time `json:"doneAt,omitempty"`
}
