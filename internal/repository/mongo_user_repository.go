package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/txxdx/devcamper-api/internal/model"
)

// userDocument is the BSON shape of a user in the "users" collection.
type userDocument struct {
	ID                  bson.ObjectID `bson:"_id,omitempty"`
	Name                string        `bson:"name"`
	Email               string        `bson:"email"`
	Password            string        `bson:"password"`
	Role                string        `bson:"role"`
	ResetPasswordToken  string        `bson:"resetPasswordToken,omitempty"`
	ResetPasswordExpire *time.Time    `bson:"resetPasswordExpire,omitempty"`
	CreatedAt           time.Time     `bson:"createdAt"`
	UpdatedAt           time.Time     `bson:"updatedAt"`
}

func (d userDocument) toModel() model.User {
	return model.User{
		ID:                     d.ID.Hex(),
		Name:                   d.Name,
		Email:                  d.Email,
		PasswordHash:           d.Password,
		Role:                   d.Role,
		ResetPasswordTokenHash: d.ResetPasswordToken,
		ResetPasswordExpire:    d.ResetPasswordExpire,
		CreatedAt:              d.CreatedAt,
		UpdatedAt:              d.UpdatedAt,
	}
}

// MongoUserRepo stores users in the MongoDB "users" collection.
type MongoUserRepo struct{ coll *mongo.Collection }

func NewMongoUserRepo(db *mongo.Database) *MongoUserRepo {
	return &MongoUserRepo{coll: db.Collection("users")}
}

var _ UserStore = (*MongoUserRepo)(nil)

// EnsureIndexes creates the unique email index and the reset token lookup index.
func (r *MongoUserRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "resetPasswordToken", Value: 1}}, Options: options.Index().SetSparse(true)},
	})
	if err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}
	return nil
}

func (r *MongoUserRepo) Create(ctx context.Context, u model.User) (model.User, error) {
	now := time.Now().UTC()
	doc := userDocument{
		Name:      u.Name,
		Email:     normalizeEmail(u.Email),
		Password:  u.PasswordHash,
		Role:      u.Role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	res, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return model.User{}, ErrEmailExists
		}
		return model.User{}, fmt.Errorf("insert user: %w", err)
	}
	if oid, ok := res.InsertedID.(bson.ObjectID); ok {
		doc.ID = oid
	}
	return doc.toModel(), nil
}

func (r *MongoUserRepo) GetByID(ctx context.Context, id string) (model.User, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return model.User{}, ErrNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *MongoUserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	return r.findOne(ctx, bson.M{"email": normalizeEmail(email)})
}

func (r *MongoUserRepo) UpdateDetails(ctx context.Context, id, name, email string) (model.User, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return model.User{}, ErrNotFound
	}
	update := bson.M{"$set": bson.M{"name": name, "email": normalizeEmail(email), "updatedAt": time.Now().UTC()}}
	return r.findOneAndUpdate(ctx, bson.M{"_id": oid}, update)
}

func (r *MongoUserRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{
		"$set":   bson.M{"password": passwordHash, "updatedAt": time.Now().UTC()},
		"$unset": bson.M{"resetPasswordToken": "", "resetPasswordExpire": ""},
	})
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoUserRepo) SetResetToken(ctx context.Context, id, tokenHash string, expires time.Time) error {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{
		"$set": bson.M{"resetPasswordToken": tokenHash, "resetPasswordExpire": expires.UTC()},
	})
	if err != nil {
		return fmt.Errorf("set reset token: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoUserRepo) ClearResetToken(ctx context.Context, id string) error {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	_, err = r.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{
		"$unset": bson.M{"resetPasswordToken": "", "resetPasswordExpire": ""},
	})
	if err != nil {
		return fmt.Errorf("clear reset token: %w", err)
	}
	return nil
}

// ConsumeResetToken relies on findOneAndUpdate being atomic per document.
func (r *MongoUserRepo) ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (model.User, error) {
	return r.findOneAndUpdate(ctx, consumeResetFilter(tokenHash, now), consumeResetUpdate(passwordHash, now))
}

// consumeResetFilter matches only an unexpired token.
func consumeResetFilter(tokenHash string, now time.Time) bson.M {
	return bson.M{"resetPasswordToken": tokenHash, "resetPasswordExpire": bson.M{"$gt": now.UTC()}}
}

// consumeResetUpdate sets the new hash and removes the token in the same write.
func consumeResetUpdate(passwordHash string, now time.Time) bson.M {
	return bson.M{
		"$set":   bson.M{"password": passwordHash, "updatedAt": now.UTC()},
		"$unset": bson.M{"resetPasswordToken": "", "resetPasswordExpire": ""},
	}
}

func (r *MongoUserRepo) findOne(ctx context.Context, filter bson.M) (model.User, error) {
	var doc userDocument
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, fmt.Errorf("find user: %w", err)
	}
	return doc.toModel(), nil
}

func (r *MongoUserRepo) findOneAndUpdate(ctx context.Context, filter, update bson.M) (model.User, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc userDocument
	if err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return model.User{}, ErrNotFound
		}
		if mongo.IsDuplicateKeyError(err) {
			return model.User{}, ErrEmailExists
		}
		return model.User{}, fmt.Errorf("update user: %w", err)
	}
	return doc.toModel(), nil
}
