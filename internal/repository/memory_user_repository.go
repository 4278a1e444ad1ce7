package repository

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/txxdx/devcamper-api/internal/model"
)

// MemoryUserRepo keeps users in process memory.  It backs DB_DRIVER=memory
// for local development and the package tests; data is lost on restart and
// not shared between replicas.
type MemoryUserRepo struct {
	mu     sync.Mutex
	nextID uint64
	byID   map[string]model.User
}

func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{byID: make(map[string]model.User)}
}

var _ UserStore = (*MemoryUserRepo)(nil)

func (r *MemoryUserRepo) Create(ctx context.Context, u model.User) (model.User, error) {
	if err := ctx.Err(); err != nil {
		return model.User{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	u.Email = normalizeEmail(u.Email)
	if r.emailTaken(u.Email, "") {
		return model.User{}, ErrEmailExists
	}
	r.nextID++
	u.ID = strconv.FormatUint(r.nextID, 10)
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	r.byID[u.ID] = u
	return u, nil
}

func (r *MemoryUserRepo) GetByID(ctx context.Context, id string) (model.User, error) {
	if err := ctx.Err(); err != nil {
		return model.User{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return u, nil
}

func (r *MemoryUserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	if err := ctx.Err(); err != nil {
		return model.User{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	email = normalizeEmail(email)
	for _, u := range r.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, ErrNotFound
}

func (r *MemoryUserRepo) UpdateDetails(ctx context.Context, id, name, email string) (model.User, error) {
	if err := ctx.Err(); err != nil {
		return model.User{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return model.User{}, ErrNotFound
	}
	email = normalizeEmail(email)
	if r.emailTaken(email, id) {
		return model.User{}, ErrEmailExists
	}
	u.Name, u.Email, u.UpdatedAt = name, email, time.Now().UTC()
	r.byID[id] = u
	return u, nil
}

func (r *MemoryUserRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return r.mutate(ctx, id, func(u *model.User) {
		u.PasswordHash = passwordHash
		u.ResetPasswordTokenHash, u.ResetPasswordExpire = "", nil
	})
}

func (r *MemoryUserRepo) SetResetToken(ctx context.Context, id, tokenHash string, expires time.Time) error {
	exp := expires.UTC()
	return r.mutate(ctx, id, func(u *model.User) {
		u.ResetPasswordTokenHash, u.ResetPasswordExpire = tokenHash, &exp
	})
}

func (r *MemoryUserRepo) ClearResetToken(ctx context.Context, id string) error {
	err := r.mutate(ctx, id, func(u *model.User) {
		u.ResetPasswordTokenHash, u.ResetPasswordExpire = "", nil
	})
	if err == ErrNotFound {
		return nil
	}
	return err
}

func (r *MemoryUserRepo) ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (model.User, error) {
	if err := ctx.Err(); err != nil {
		return model.User{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, u := range r.byID {
		if u.ResetPasswordTokenHash == tokenHash && u.HasPendingReset(now) {
			u.PasswordHash = passwordHash
			u.ResetPasswordTokenHash, u.ResetPasswordExpire = "", nil
			u.UpdatedAt = now.UTC()
			r.byID[id] = u
			return u, nil
		}
	}
	return model.User{}, ErrNotFound
}

func (r *MemoryUserRepo) mutate(ctx context.Context, id string, fn func(*model.User)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	fn(&u)
	u.UpdatedAt = time.Now().UTC()
	r.byID[id] = u
	return nil
}

// emailTaken reports whether another user than exceptID owns email.
// Callers hold mu.
func (r *MemoryUserRepo) emailTaken(email, exceptID string) bool {
	for id, u := range r.byID {
		if id != exceptID && u.Email == email {
			return true
		}
	}
	return false
}
