// Package repofake provides in-memory repositories for tests.
package repofake

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/vasapolrittideah/taskdash-api/services/auth-service/internal/model"
	"github.com/vasapolrittideah/taskdash-api/services/auth-service/internal/repository"
)

// UserRepository is an in-memory repository.UserRepository.
type UserRepository struct {
	mu     sync.RWMutex
	users  map[bson.ObjectID]model.User
	emails map[string]bson.ObjectID

	// Err, when set, is returned by every method.
	Err error
}

var _ repository.UserRepository = (*UserRepository)(nil)

func NewUserRepository() *UserRepository {
	return &UserRepository{
		users:  make(map[bson.ObjectID]model.User),
		emails: make(map[string]bson.ObjectID),
	}
}

func (r *UserRepository) CreateUser(_ context.Context, user *model.User) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Err != nil {
		return nil, r.Err
	}
	if _, ok := r.emails[user.Email]; ok {
		return nil, repository.ErrDuplicateEmail
	}

	now := time.Now().UTC()
	user.ID = bson.NewObjectID()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.ApplyDefaults()

	r.users[user.ID] = *user
	r.emails[user.Email] = user.ID

	return user, nil
}

func (r *UserRepository) GetUser(_ context.Context, id string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.Err != nil {
		return nil, r.Err
	}

	user, ok := r.lookup(id)
	if !ok {
		return nil, repository.ErrUserNotFound
	}

	return &user, nil
}

func (r *UserRepository) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.Err != nil {
		return nil, r.Err
	}

	objectID, ok := r.emails[email]
	if !ok {
		return nil, repository.ErrUserNotFound
	}

	user := r.users[objectID]
	return &user, nil
}

func (r *UserRepository) SetRefreshToken(_ context.Context, id, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Err != nil {
		return r.Err
	}

	user, ok := r.lookup(id)
	if !ok {
		return repository.ErrUserNotFound
	}

	user.RefreshToken = token
	user.UpdatedAt = time.Now().UTC()
	r.users[user.ID] = user

	return nil
}

func (r *UserRepository) SwapRefreshToken(_ context.Context, id, current, next string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Err != nil {
		return false, r.Err
	}

	user, ok := r.lookup(id)
	if !ok {
		return false, repository.ErrUserNotFound
	}
	if current == "" || user.RefreshToken != current {
		return false, nil
	}

	user.RefreshToken = next
	user.UpdatedAt = time.Now().UTC()
	r.users[user.ID] = user

	return true, nil
}

func (r *UserRepository) ClearRefreshToken(ctx context.Context, id string) error {
	return r.SetRefreshToken(ctx, id, "")
}

// StoredRefreshToken returns the refresh token currently stored for id.
func (r *UserRepository) StoredRefreshToken(id string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, _ := r.lookup(id)
	return user.RefreshToken
}

func (r *UserRepository) lookup(id string) (model.User, bool) {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return model.User{}, false
	}

	user, ok := r.users[objectID]
	return user, ok
}
