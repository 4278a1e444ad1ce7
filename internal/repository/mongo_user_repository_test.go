package repository

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/txxdx/devcamper-api/internal/database"
	"github.com/txxdx/devcamper-api/internal/model"
)

func TestUserDocument_FieldNamesAndModel(t *testing.T) {
	id := bson.NewObjectID()
	now := time.Now().UTC().Truncate(time.Millisecond)
	doc := userDocument{ID: id, Name: "Ann", Email: "ann@example.com", Password: "hash", Role: "user", CreatedAt: now, UpdatedAt: now}

	raw, err := bson.Marshal(doc)
	require.NoError(t, err)
	var m bson.M
	require.NoError(t, bson.Unmarshal(raw, &m))
	assert.Equal(t, "hash", m["password"])
	assert.NotContains(t, m, "resetPasswordToken")
	assert.NotContains(t, m, "resetPasswordExpire")

	u := doc.toModel()
	assert.Equal(t, id.Hex(), u.ID)
	assert.Equal(t, "hash", u.PasswordHash)
	assert.Nil(t, u.ResetPasswordExpire)
}

func TestConsumeReset_FilterAndUpdateShape(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))

	filter := consumeResetFilter("digest", now)
	assert.Equal(t, "digest", filter["resetPasswordToken"])
	assert.Equal(t, bson.M{"$gt": now.UTC()}, filter["resetPasswordExpire"])

	update := consumeResetUpdate("newhash", now)
	assert.Equal(t, bson.M{"password": "newhash", "updatedAt": now.UTC()}, update["$set"])
	assert.Equal(t, bson.M{"resetPasswordToken": "", "resetPasswordExpire": ""}, update["$unset"])
}

// newMongoRepo connects to MONGO_TEST_URI and returns a repo on a throwaway
// database that is dropped when the test ends.
func newMongoRepo(t *testing.T) *MongoUserRepo {
	t.Helper()
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}
	ctx := context.Background()
	client, db, err := database.OpenMongo(ctx, uri, fmt.Sprintf("devcamper_test_%d", time.Now().UnixNano()))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})
	repo := NewMongoUserRepo(db)
	require.NoError(t, repo.EnsureIndexes(ctx))
	return repo
}

func TestMongoUserRepo_DuplicateEmail(t *testing.T) {
	repo := newMongoRepo(t)
	ctx := context.Background()

	ann, err := repo.Create(ctx, model.User{Name: "Ann", Email: "ann@example.com", PasswordHash: "h", Role: model.RoleUser})
	require.NoError(t, err)
	_, err = repo.Create(ctx, model.User{Name: "Ann2", Email: "ANN@example.com", PasswordHash: "h", Role: model.RoleUser})
	assert.ErrorIs(t, err, ErrEmailExists)

	bob, err := repo.Create(ctx, model.User{Name: "Bob", Email: "bob@example.com", PasswordHash: "h", Role: model.RoleUser})
	require.NoError(t, err)
	_, err = repo.UpdateDetails(ctx, bob.ID, "Bob", ann.Email)
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestMongoUserRepo_ConsumeResetToken(t *testing.T) {
	repo := newMongoRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	u, err := repo.Create(ctx, model.User{Name: "Ann", Email: "ann@example.com", PasswordHash: "old", Role: model.RoleUser})
	require.NoError(t, err)
	require.NoError(t, repo.SetResetToken(ctx, u.ID, "digest", now.Add(10*time.Minute)))

	got, err := repo.ConsumeResetToken(ctx, "digest", "new", now)
	require.NoError(t, err)
	assert.Equal(t, "new", got.PasswordHash)
	assert.Empty(t, got.ResetPasswordTokenHash)
	assert.Nil(t, got.ResetPasswordExpire)

	_, err = repo.ConsumeResetToken(ctx, "digest", "again", now)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.SetResetToken(ctx, u.ID, "stale", now.Add(-time.Minute)))
	_, err = repo.ConsumeResetToken(ctx, "stale", "late", now)
	assert.ErrorIs(t, err, ErrNotFound)

	stored, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "new", stored.PasswordHash)
}
