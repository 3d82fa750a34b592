// Package data provides DB models and stores.
package data

import (
	"context"
	"time"

	"classroom/internal/normalize"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// UsersStore performs user DB operations.
type UsersStore struct {
	// coll is reference to "users" collection in MongoDB
	coll *mongo.Collection
}

// NewUsersStore returns a UsersStore using the provided collection.
func NewUsersStore(coll *mongo.Collection) *UsersStore {
	return &UsersStore{coll: coll}
}

// UpsertAccessCodeByPhone stores a fresh access code for the phone number,
// creating the user record if it does not exist yet. Brand-new records default
// to the instructor role; students are always created through enrollment.
func (u *UsersStore) UpsertAccessCodeByPhone(ctx context.Context, phone, code string) (*User, error) {
	phone = normalize.Phone(phone)
	now := time.Now().UTC()

	// FindOneAndUpdate with upsert keeps "create or refresh the code" a
	// single round trip to the store.
	update := bson.M{
		"$set": bson.M{
			"access_code":    code,
			"code_issued_at": now,
			"updated_at":     now,
		},
		"$setOnInsert": bson.M{
			"phone":      phone,
			"name":       "",
			"email":      "",
			"role":       RoleInstructor,
			"verified":   false,
			"created_at": now,
		},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var user User
	if err := u.coll.FindOneAndUpdate(ctx, bson.M{"phone": phone}, update, opts).Decode(&user); err != nil {
		return nil, err
	}
	return &user, nil
}

// SetAccessCodeByEmail stores a fresh access code for an existing user looked
// up by email. Unlike the phone variant this never creates a record: only
// enrolled students log in by email.
func (u *UsersStore) SetAccessCodeByEmail(ctx context.Context, email, code string) (*User, error) {
	email = normalize.Email(email)
	now := time.Now().UTC()

	update := bson.M{
		"$set": bson.M{
			"access_code":    code,
			"code_issued_at": now,
			"updated_at":     now,
		},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var user User
	err := u.coll.FindOneAndUpdate(ctx, bson.M{"email": email}, update, opts).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// ClearAccessCode consumes the one-time code: blanks it out and marks the
// user verified.
func (u *UsersStore) ClearAccessCode(ctx context.Context, id bson.ObjectID) error {
	now := time.Now().UTC()
	res, err := u.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set":   bson.M{"verified": true, "updated_at": now},
		"$unset": bson.M{"access_code": "", "code_issued_at": ""},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateStudent inserts a student record created through instructor
// enrollment. Duplicate phone or email surfaces as ErrAlreadyExists via the
// unique indexes.
func (u *UsersStore) CreateStudent(ctx context.Context, name, phone, email string) (*User, error) {
	now := time.Now().UTC()
	user := &User{
		Phone:     normalize.Phone(phone),
		Email:     normalize.Email(email),
		Name:      name,
		Role:      RoleStudent,
		CreatedAt: now,
		UpdatedAt: now,
	}

	result, err := u.coll.InsertOne(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrAlreadyExists
		}
		return nil, err
	}

	// MongoDB auto-generates the _id field; extract it and set on the struct
	user.ID = result.InsertedID.(bson.ObjectID)
	return user, nil
}

// GetByPhone finds a user by normalized phone number.
func (u *UsersStore) GetByPhone(ctx context.Context, phone string) (*User, error) {
	var user User
	err := u.coll.FindOne(ctx, bson.M{"phone": normalize.Phone(phone)}).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetByEmail finds a user by normalized email.
func (u *UsersStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	err := u.coll.FindOne(ctx, bson.M{"email": normalize.Email(email)}).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetByID finds a user by ObjectID.
func (u *UsersStore) GetByID(ctx context.Context, id bson.ObjectID) (*User, error) {
	var user User
	err := u.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// ListByIDs returns the users whose hex ids appear in ids, in store order.
// Unknown ids are silently skipped.
func (u *UsersStore) ListByIDs(ctx context.Context, ids []string) ([]*User, error) {
	oids := make([]bson.ObjectID, 0, len(ids))
	for _, id := range ids {
		oid, err := bson.ObjectIDFromHex(id)
		if err != nil {
			continue
		}
		oids = append(oids, oid)
	}
	if len(oids) == 0 {
		return []*User{}, nil
	}

	cursor, err := u.coll.Find(ctx, bson.M{"_id": bson.M{"$in": oids}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	users := []*User{}
	if err = cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// UpdateProfile edits the mutable profile fields of a user.
func (u *UsersStore) UpdateProfile(ctx context.Context, id bson.ObjectID, name, email string) (*User, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if name != "" {
		set["name"] = name
	}
	if email != "" {
		set["email"] = normalize.Email(email)
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var user User
	err := u.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrAlreadyExists
		}
		return nil, err
	}
	return &user, nil
}

// SetPassword stores the bcrypt hash produced during student account setup.
func (u *UsersStore) SetPassword(ctx context.Context, id bson.ObjectID, hash string) error {
	res, err := u.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"password_hash": hash, "updated_at": time.Now().UTC()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a user document. Only the instructor student-management
// surface calls this.
func (u *UsersStore) Delete(ctx context.Context, id bson.ObjectID) error {
	res, err := u.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
