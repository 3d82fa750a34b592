package main

import (
	"context"
	"time"

	"classroom/internal/auth"
	"classroom/internal/data"
	"classroom/internal/middleware"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// The handlers depend on narrow store interfaces rather than the concrete
// Mongo-backed stores so tests can substitute in-memory fakes.

type usersStore interface {
	UpsertAccessCodeByPhone(ctx context.Context, phone, code string) (*data.User, error)
	SetAccessCodeByEmail(ctx context.Context, email, code string) (*data.User, error)
	ClearAccessCode(ctx context.Context, id bson.ObjectID) error
	CreateStudent(ctx context.Context, name, phone, email string) (*data.User, error)
	GetByPhone(ctx context.Context, phone string) (*data.User, error)
	GetByEmail(ctx context.Context, email string) (*data.User, error)
	GetByID(ctx context.Context, id bson.ObjectID) (*data.User, error)
	ListByIDs(ctx context.Context, ids []string) ([]*data.User, error)
	UpdateProfile(ctx context.Context, id bson.ObjectID, name, email string) (*data.User, error)
	SetPassword(ctx context.Context, id bson.ObjectID, hash string) error
	Delete(ctx context.Context, id bson.ObjectID) error
}

type classroomsStore interface {
	AddStudent(ctx context.Context, owner, studentID string) (*data.Classroom, error)
	GetByOwner(ctx context.Context, owner string) (*data.Classroom, error)
	RemoveStudent(ctx context.Context, studentID string) error
}

type conversationsStore interface {
	CreateConversation(ctx context.Context, owner, student string) (*data.Conversation, error)
	GetConversation(ctx context.Context, id string) (*data.Conversation, error)
	ListMessages(ctx context.Context, convID bson.ObjectID) ([]*data.Message, error)
	ListByOwner(ctx context.Context, owner string) ([]*data.Conversation, error)
	ListForStudent(ctx context.Context, student string) ([]*data.Conversation, error)
}

type lessonsStore interface {
	CreateLesson(ctx context.Context, owner, title, description string, studentIDs []string) (*data.Lesson, error)
	ListByOwner(ctx context.Context, owner string) ([]*data.Lesson, error)
	ListForStudent(ctx context.Context, studentID string) ([]*data.StudentLesson, error)
	MarkDone(ctx context.Context, lessonID bson.ObjectID, studentID string) error
}

type smsSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

type emailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// Access codes older than this are rejected at validation time.
const accessCodeTTL = 10 * time.Minute

// Server holds the API's dependencies and implements all HTTP handlers.
type Server struct {
	users      usersStore
	classrooms classroomsStore
	convs      conversationsStore
	lessons    lessonsStore
	sms        smsSender
	email      emailSender
	auth       *auth.JWTManager
	limiter    *middleware.LimiterStore
}

// newServer returns a ready-to-use Server wired with stores, notification
// sinks and the token manager.
func newServer(users usersStore, classrooms classroomsStore, convs conversationsStore, lessons lessonsStore, sms smsSender, email emailSender, authMgr *auth.JWTManager, limiter *middleware.LimiterStore) *Server {
	return &Server{
		users:      users,
		classrooms: classrooms,
		convs:      convs,
		lessons:    lessons,
		sms:        sms,
		email:      email,
		auth:       authMgr,
		limiter:    limiter,
	}
}
