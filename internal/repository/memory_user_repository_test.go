package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txxdx/devcamper-api/internal/model"
)

func TestMemoryUserRepo_CreateAndLookup(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepo()

	a, err := repo.Create(ctx, model.User{Name: "Ann", Email: "Ann@Example.com", PasswordHash: "h", Role: model.RoleUser})
	require.NoError(t, err)
	assert.Equal(t, "1", a.ID)

	_, err = repo.Create(ctx, model.User{Name: "Ann2", Email: "ann@example.com"})
	assert.ErrorIs(t, err, ErrEmailExists)

	got, err := repo.GetByEmail(ctx, " ANN@example.com")
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	_, err = repo.GetByID(ctx, "99")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryUserRepo_UpdateDetailsCollision(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepo()
	a, _ := repo.Create(ctx, model.User{Name: "Ann", Email: "ann@example.com"})
	_, _ = repo.Create(ctx, model.User{Name: "Bob", Email: "bob@example.com"})

	_, err := repo.UpdateDetails(ctx, a.ID, "Ann", "bob@example.com")
	assert.ErrorIs(t, err, ErrEmailExists)

	u, err := repo.UpdateDetails(ctx, a.ID, "Annie", "annie@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Annie", u.Name)
	assert.Equal(t, "annie@example.com", u.Email)
}

func TestMemoryUserRepo_ResetTokenLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepo()
	a, _ := repo.Create(ctx, model.User{Name: "Ann", Email: "ann@example.com", PasswordHash: "old"})
	now := time.Now()

	require.NoError(t, repo.SetResetToken(ctx, a.ID, "digest", now.Add(10*time.Minute)))

	// Expired from the point of view of a later clock.
	_, err := repo.ConsumeResetToken(ctx, "digest", "new", now.Add(11*time.Minute))
	assert.ErrorIs(t, err, ErrNotFound)

	u, err := repo.ConsumeResetToken(ctx, "digest", "new", now)
	require.NoError(t, err)
	assert.Equal(t, "new", u.PasswordHash)
	assert.Empty(t, u.ResetPasswordTokenHash)
	assert.Nil(t, u.ResetPasswordExpire)

	_, err = repo.ConsumeResetToken(ctx, "digest", "newer", now)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryUserRepo_ConsumeResetTokenOnceUnderContention(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepo()
	a, _ := repo.Create(ctx, model.User{Name: "Ann", Email: "ann@example.com"})
	require.NoError(t, repo.SetResetToken(ctx, a.ID, "digest", time.Now().Add(time.Minute)))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.ConsumeResetToken(ctx, "digest", "new", time.Now()); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestMemoryUserRepo_UpdatePasswordClearsReset(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepo()
	a, _ := repo.Create(ctx, model.User{Name: "Ann", Email: "ann@example.com"})
	require.NoError(t, repo.SetResetToken(ctx, a.ID, "digest", time.Now().Add(time.Minute)))

	require.NoError(t, repo.UpdatePassword(ctx, a.ID, "new"))
	u, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "new", u.PasswordHash)
	assert.False(t, u.HasPendingReset(time.Now()))

	assert.NoError(t, repo.ClearResetToken(ctx, "missing"))
	assert.ErrorIs(t, repo.UpdatePassword(ctx, "missing", "x"), ErrNotFound)
}

func TestMemoryUserRepo_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMemoryUserRepo().GetByEmail(ctx, "ann@example.com")
	assert.ErrorIs(t, err, context.Canceled)
}
