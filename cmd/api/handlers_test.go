package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"classroom/internal/auth"
	"classroom/internal/data"
	"classroom/internal/middleware"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// ===== in-memory fakes for the store interfaces =====

type fakeUsers struct {
	users map[bson.ObjectID]*data.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: map[bson.ObjectID]*data.User{}}
}

func (f *fakeUsers) add(u *data.User) *data.User {
	if u.ID.IsZero() {
		u.ID = bson.NewObjectID()
	}
	f.users[u.ID] = u
	return u
}

func (f *fakeUsers) findBy(pred func(*data.User) bool) *data.User {
	for _, u := range f.users {
		if pred(u) {
			return u
		}
	}
	return nil
}

func (f *fakeUsers) UpsertAccessCodeByPhone(_ context.Context, phone, code string) (*data.User, error) {
	u := f.findBy(func(u *data.User) bool { return u.Phone == phone })
	if u == nil {
		u = f.add(&data.User{Phone: phone, Role: data.RoleInstructor})
	}
	u.AccessCode = code
	u.CodeIssuedAt = time.Now().UTC()
	return u, nil
}

func (f *fakeUsers) SetAccessCodeByEmail(_ context.Context, email, code string) (*data.User, error) {
	u := f.findBy(func(u *data.User) bool { return u.Email == email })
	if u == nil {
		return nil, data.ErrNotFound
	}
	u.AccessCode = code
	u.CodeIssuedAt = time.Now().UTC()
	return u, nil
}

func (f *fakeUsers) ClearAccessCode(_ context.Context, id bson.ObjectID) error {
	u, ok := f.users[id]
	if !ok {
		return data.ErrNotFound
	}
	u.AccessCode = ""
	u.Verified = true
	return nil
}

func (f *fakeUsers) CreateStudent(_ context.Context, name, phone, email string) (*data.User, error) {
	if f.findBy(func(u *data.User) bool { return u.Phone == phone || u.Email == email }) != nil {
		return nil, data.ErrAlreadyExists
	}
	return f.add(&data.User{Name: name, Phone: phone, Email: email, Role: data.RoleStudent}), nil
}

func (f *fakeUsers) GetByPhone(_ context.Context, phone string) (*data.User, error) {
	if u := f.findBy(func(u *data.User) bool { return u.Phone == phone }); u != nil {
		return u, nil
	}
	return nil, data.ErrNotFound
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*data.User, error) {
	if u := f.findBy(func(u *data.User) bool { return u.Email == email }); u != nil {
		return u, nil
	}
	return nil, data.ErrNotFound
}

func (f *fakeUsers) GetByID(_ context.Context, id bson.ObjectID) (*data.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, data.ErrNotFound
}

func (f *fakeUsers) ListByIDs(_ context.Context, ids []string) ([]*data.User, error) {
	out := []*data.User{}
	for _, id := range ids {
		oid, err := bson.ObjectIDFromHex(id)
		if err != nil {
			continue
		}
		if u, ok := f.users[oid]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeUsers) UpdateProfile(_ context.Context, id bson.ObjectID, name, email string) (*data.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, data.ErrNotFound
	}
	if name != "" {
		u.Name = name
	}
	if email != "" {
		u.Email = email
	}
	return u, nil
}

func (f *fakeUsers) SetPassword(_ context.Context, id bson.ObjectID, hash string) error {
	u, ok := f.users[id]
	if !ok {
		return data.ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (f *fakeUsers) Delete(_ context.Context, id bson.ObjectID) error {
	if _, ok := f.users[id]; !ok {
		return data.ErrNotFound
	}
	delete(f.users, id)
	return nil
}

type fakeClassrooms struct {
	rooms map[string]*data.Classroom // by owner
}

func newFakeClassrooms() *fakeClassrooms {
	return &fakeClassrooms{rooms: map[string]*data.Classroom{}}
}

func (f *fakeClassrooms) AddStudent(_ context.Context, owner, studentID string) (*data.Classroom, error) {
	room, ok := f.rooms[owner]
	if !ok {
		room = &data.Classroom{ID: bson.NewObjectID(), Owner: owner, Name: "Default Classroom"}
		f.rooms[owner] = room
	}
	for _, sid := range room.Students {
		if sid == studentID {
			return room, nil
		}
	}
	room.Students = append(room.Students, studentID)
	return room, nil
}

func (f *fakeClassrooms) GetByOwner(_ context.Context, owner string) (*data.Classroom, error) {
	if room, ok := f.rooms[owner]; ok {
		return room, nil
	}
	return nil, data.ErrNotFound
}

func (f *fakeClassrooms) RemoveStudent(_ context.Context, studentID string) error {
	for _, room := range f.rooms {
		kept := room.Students[:0]
		for _, sid := range room.Students {
			if sid != studentID {
				kept = append(kept, sid)
			}
		}
		room.Students = kept
	}
	return nil
}

type fakeConvs struct {
	convs map[string]*data.Conversation // by hex id
	msgs  map[string][]*data.Message    // by conv hex id
}

func newFakeConvs() *fakeConvs {
	return &fakeConvs{convs: map[string]*data.Conversation{}, msgs: map[string][]*data.Message{}}
}

func (f *fakeConvs) CreateConversation(_ context.Context, owner, student string) (*data.Conversation, error) {
	for _, c := range f.convs {
		if c.Owner == owner && c.Student == student {
			return c, nil
		}
	}
	c := &data.Conversation{ID: bson.NewObjectID(), Owner: owner, Student: student}
	f.convs[c.ID.Hex()] = c
	return c, nil
}

func (f *fakeConvs) GetConversation(_ context.Context, id string) (*data.Conversation, error) {
	if c, ok := f.convs[id]; ok {
		return c, nil
	}
	return nil, data.ErrNotFound
}

func (f *fakeConvs) ListMessages(_ context.Context, convID bson.ObjectID) ([]*data.Message, error) {
	msgs := f.msgs[convID.Hex()]
	if msgs == nil {
		msgs = []*data.Message{}
	}
	return msgs, nil
}

func (f *fakeConvs) ListByOwner(_ context.Context, owner string) ([]*data.Conversation, error) {
	out := []*data.Conversation{}
	for _, c := range f.convs {
		if c.Owner == owner {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeConvs) ListForStudent(_ context.Context, student string) ([]*data.Conversation, error) {
	out := []*data.Conversation{}
	for _, c := range f.convs {
		if c.Student == student {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeLessons struct {
	lessons  []*data.Lesson
	statuses []*data.LessonStatus
}

func (f *fakeLessons) CreateLesson(_ context.Context, owner, title, description string, studentIDs []string) (*data.Lesson, error) {
	l := &data.Lesson{ID: bson.NewObjectID(), Owner: owner, Title: title, Description: description, Students: studentIDs}
	f.lessons = append(f.lessons, l)
	for _, sid := range studentIDs {
		f.statuses = append(f.statuses, &data.LessonStatus{ID: bson.NewObjectID(), LessonID: l.ID, StudentID: sid})
	}
	return l, nil
}

func (f *fakeLessons) ListByOwner(_ context.Context, owner string) ([]*data.Lesson, error) {
	out := []*data.Lesson{}
	for _, l := range f.lessons {
		if l.Owner == owner {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeLessons) ListForStudent(_ context.Context, studentID string) ([]*data.StudentLesson, error) {
	out := []*data.StudentLesson{}
	for _, st := range f.statuses {
		if st.StudentID != studentID {
			continue
		}
		for _, l := range f.lessons {
			if l.ID == st.LessonID {
				out = append(out, &data.StudentLesson{Lesson: l, Done: st.Done, DoneAt: st.DoneAt})
			}
		}
	}
	return out, nil
}

func (f *fakeLessons) MarkDone(_ context.Context, lessonID bson.ObjectID, studentID string) error {
	for _, st := range f.statuses {
		if st.LessonID == lessonID && st.StudentID == studentID {
			st.Done = true
			st.DoneAt = time.Now().UTC()
			return nil
		}
	}
	return data.ErrNotFound
}

type sentSMS struct{ to, body string }

type fakeSMS struct{ sent []sentSMS }

func (f *fakeSMS) SendSMS(_ context.Context, to, body string) error {
	f.sent = append(f.sent, sentSMS{to: to, body: body})
	return nil
}

type sentEmail struct{ to, subject, body string }

type fakeEmail struct{ sent []sentEmail }

func (f *fakeEmail) SendEmail(_ context.Context, to, subject, body string) error {
	f.sent = append(f.sent, sentEmail{to: to, subject: subject, body: body})
	return nil
}

// ===== test harness =====

type testEnv struct {
	srv        *Server
	handler    http.Handler
	users      *fakeUsers
	classrooms *fakeClassrooms
	convs      *fakeConvs
	lessons    *fakeLessons
	sms        *fakeSMS
	email      *fakeEmail
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	users := newFakeUsers()
	classrooms := newFakeClassrooms()
	convs := newFakeConvs()
	lessons := &fakeLessons{}
	sms := &fakeSMS{}
	email := &fakeEmail{}

	limiter := middleware.NewLimiterStore(600, 100, time.Minute)
	t.Cleanup(limiter.Stop)

	srv := newServer(users, classrooms, convs, lessons, sms, email,
		auth.NewJWTManager("test-secret", time.Hour), limiter)

	return &testEnv{
		srv:        srv,
		handler:    srv.routes(http.NotFoundHandler()),
		users:      users,
		classrooms: classrooms,
		convs:      convs,
		lessons:    lessons,
		sms:        sms,
		email:      email,
	}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) tokenFor(t *testing.T, u *data.User) string {
	t.Helper()
	token, _, err := e.srv.auth.GenerateToken(u.ID.Hex(), u.Phone, u.Role)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return token
}

// ===== tests =====

func TestCreateAccessCode_SendsSMSAndStoresCode(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/auth/access-code", "", map[string]string{"phone": "+15551234567"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	u := env.users.findBy(func(u *data.User) bool { return u.Phone == "+15551234567" })
	if u == nil {
		t.Fatal("expected user record to be created")
	}
	if u.Role != data.RoleInstructor {
		t.Fatalf("new phone signups default to instructor, got %s", u.Role)
	}
	if u.AccessCode == "" {
		t.Fatal("expected access code to be stored")
	}

	if len(env.sms.sent) != 1 || env.sms.sent[0].to != "+15551234567" {
		t.Fatalf("expected one SMS to the phone, got %+v", env.sms.sent)
	}
	if !strings.Contains(env.sms.sent[0].body, u.AccessCode) {
		t.Fatalf("SMS body %q does not carry the code %q", env.sms.sent[0].body, u.AccessCode)
	}
}

func TestValidateAccessCode_IssuesTokenAndClearsCode(t *testing.T) {
	env := newTestEnv(t)
	u := env.users.add(&data.User{
		Phone: "+15551234567", Role: data.RoleInstructor,
		AccessCode: "123456", CodeIssuedAt: time.Now().UTC(),
	})

	rec := env.do(t, http.MethodPost, "/auth/validate", "", map[string]string{
		"phone": "+15551234567", "accessCode": "123456",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Token  string `json:"token"`
		UserID string `json:"userId"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	claims, err := env.srv.auth.VerifyToken(resp.Token)
	if err != nil {
		t.Fatalf("issued token does not verify: %v", err)
	}
	if claims.UserID != u.ID.Hex() || claims.Role != data.RoleInstructor {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	// The code is one-time.
	if u.AccessCode != "" || !u.Verified {
		t.Fatalf("expected code cleared and user verified, got %+v", u)
	}
	rec = env.do(t, http.MethodPost, "/auth/validate", "", map[string]string{
		"phone": "+15551234567", "accessCode": "123456",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected replayed code to be rejected, got %d", rec.Code)
	}
}

func TestValidateAccessCode_WrongOrExpiredCode(t *testing.T) {
	env := newTestEnv(t)
	env.users.add(&data.User{
		Phone: "+15551230000", Role: data.RoleInstructor,
		AccessCode: "123456", CodeIssuedAt: time.Now().UTC(),
	})

	rec := env.do(t, http.MethodPost, "/auth/validate", "", map[string]string{
		"phone": "+15551230000", "accessCode": "999999",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong code, got %d", rec.Code)
	}

	stale := env.users.add(&data.User{
		Phone: "+15551231111", Role: data.RoleInstructor,
		AccessCode: "654321", CodeIssuedAt: time.Now().UTC().Add(-time.Hour),
	})
	rec = env.do(t, http.MethodPost, "/auth/validate", "", map[string]string{
		"phone": stale.Phone, "accessCode": "654321",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for expired code, got %d", rec.Code)
	}
}

func TestAddStudent_EnrollsAndCreatesConversation(t *testing.T) {
	env := newTestEnv(t)
	instructor := env.users.add(&data.User{Phone: "+15550000001", Role: data.RoleInstructor, Verified: true})
	token := env.tokenFor(t, instructor)

	rec := env.do(t, http.MethodPost, "/instructor/students", token, map[string]string{
		"name": "Bob", "phone": "+15550000002", "email": "bob@example.com",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	student := env.users.findBy(func(u *data.User) bool { return u.Email == "bob@example.com" })
	if student == nil || student.Role != data.RoleStudent {
		t.Fatalf("expected student record, got %+v", student)
	}

	room, err := env.classrooms.GetByOwner(context.Background(), instructor.ID.Hex())
	if err != nil || len(room.Students) != 1 || room.Students[0] != student.ID.Hex() {
		t.Fatalf("student not in classroom: %+v err=%v", room, err)
	}

	// Enrollment owns conversation creation; the messaging path relies on it.
	convs, _ := env.convs.ListByOwner(context.Background(), instructor.ID.Hex())
	if len(convs) != 1 || convs[0].Student != student.ID.Hex() {
		t.Fatalf("expected one conversation for the pair, got %+v", convs)
	}

	// Invitation email carries the student's access code.
	if len(env.email.sent) != 1 || env.email.sent[0].to != "bob@example.com" {
		t.Fatalf("expected invitation email, got %+v", env.email.sent)
	}
	if student.AccessCode == "" || !strings.Contains(env.email.sent[0].body, student.AccessCode) {
		t.Fatalf("invitation body %q does not carry code %q", env.email.sent[0].body, student.AccessCode)
	}

	// Duplicate enrollment is rejected.
	rec = env.do(t, http.MethodPost, "/instructor/students", token, map[string]string{
		"name": "Bob 2", "phone": "+15550000002", "email": "bob2@example.com",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate phone, got %d", rec.Code)
	}
}

func TestInstructorRoutes_RequireRole(t *testing.T) {
	env := newTestEnv(t)
	student := env.users.add(&data.User{Phone: "+15550000009", Role: data.RoleStudent})
	token := env.tokenFor(t, student)

	rec := env.do(t, http.MethodGet, "/instructor/students", token, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for student on instructor route, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/instructor/students", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
}

func TestGetMessages_ParticipantsOnlyAscending(t *testing.T) {
	env := newTestEnv(t)
	instructor := env.users.add(&data.User{Phone: "+15550000001", Role: data.RoleInstructor})
	student := env.users.add(&data.User{Phone: "+15550000002", Email: "s@example.com", Role: data.RoleStudent})
	outsider := env.users.add(&data.User{Phone: "+15550000003", Role: data.RoleStudent})

	conv, _ := env.convs.CreateConversation(context.Background(), instructor.ID.Hex(), student.ID.Hex())
	base := time.Now().UTC().Add(-time.Minute)
	env.convs.msgs[conv.ID.Hex()] = []*data.Message{
		{ConversationID: conv.ID, From: instructor.ID.Hex(), To: student.ID.Hex(), Content: "first", SentAt: base},
		{ConversationID: conv.ID, From: student.ID.Hex(), To: instructor.ID.Hex(), Content: "second", SentAt: base.Add(time.Second)},
	}

	path := fmt.Sprintf("/chat/messages?conversationId=%s", conv.ID.Hex())

	rec := env.do(t, http.MethodGet, path, env.tokenFor(t, student), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Data []struct {
			Content string `json:"content"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Data) != 2 || resp.Data[0].Content != "first" || resp.Data[1].Content != "second" {
		t.Fatalf("expected ascending history, got %+v", resp.Data)
	}

	rec = env.do(t, http.MethodGet, path, env.tokenFor(t, outsider), nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-participant, got %d", rec.Code)
	}
}

func TestStudentLessonFlow(t *testing.T) {
	env := newTestEnv(t)
	instructor := env.users.add(&data.User{Phone: "+15550000001", Role: data.RoleInstructor})
	student := env.users.add(&data.User{Phone: "+15550000002", Role: data.RoleStudent})

	rec := env.do(t, http.MethodPost, "/instructor/lessons", env.tokenFor(t, instructor), map[string]any{
		"title":       "Fractions",
		"description": "Intro to fractions",
		"studentIds":  []string{student.ID.Hex()},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	studentToken := env.tokenFor(t, student)
	rec = env.do(t, http.MethodGet, "/student/lessons", studentToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Data []struct {
			Lesson struct {
				ID string `json:"id"`
			} `json:"lesson"`
			Done bool `json:"done"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Data) != 1 || resp.Data[0].Done {
		t.Fatalf("expected one pending lesson, got %+v", resp.Data)
	}

	rec = env.do(t, http.MethodPut, "/student/lessons/"+resp.Data[0].Lesson.ID, studentToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 marking done, got %d: %s", rec.Code, rec.Body.String())
	}
	if !env.lessons.statuses[0].Done {
		t.Fatal("expected status row to be flipped to done")
	}
}

func TestSetupAccountAndLogin(t *testing.T) {
	env := newTestEnv(t)
	student := env.users.add(&data.User{
		Phone: "+15550000002", Email: "s@example.com", Role: data.RoleStudent,
		AccessCode: "222333", CodeIssuedAt: time.Now().UTC(),
	})

	rec := env.do(t, http.MethodPost, "/auth/setup", "", map[string]string{
		"email": "s@example.com", "accessCode": "222333",
		"name": "Sam", "password": "correct-horse",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if student.PasswordHash == "" || student.Name != "Sam" {
		t.Fatalf("setup did not persist profile: %+v", student)
	}

	rec = env.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "s@example.com", "password": "correct-horse",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected login to succeed, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "s@example.com", "password": "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong password, got %d", rec.Code)
	}
}
