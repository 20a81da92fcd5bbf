package usecase_test

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/matthewhartstonge/argon2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/vasapolrittideah/taskdash-api/services/auth-service/internal/config"
	"github.com/vasapolrittideah/taskdash-api/services/auth-service/internal/model"
	"github.com/vasapolrittideah/taskdash-api/services/auth-service/internal/repository/repofake"
	"github.com/vasapolrittideah/taskdash-api/services/auth-service/internal/usecase"
	"github.com/vasapolrittideah/taskdash-api/shared/auth"
	"github.com/vasapolrittideah/taskdash-api/shared/provider"
	"github.com/vasapolrittideah/taskdash-api/shared/security"
)

func testTokenConfig() config.TokenConfig {
	return config.TokenConfig{
		AccessTokenSecret:     "access-secret",
		AccessTokenExpiresIn:  15 * time.Minute,
		RefreshTokenSecret:    "refresh-secret",
		RefreshTokenExpiresIn: 24 * time.Hour,
		Issuer:                "taskdash-auth",
		Audience:              "taskdash",
	}
}

func newTokenUsecase(
	repo *repofake.UserRepository,
	cfg config.TokenConfig,
	notifier usecase.SecurityNotifier,
) usecase.TokenUsecase {
	logger := zerolog.Nop()
	return usecase.NewTokenUsecase(repo, auth.NewJWTAuthenticator(cfg.Audience, cfg.Issuer), cfg, notifier, &logger)
}

func cheapHasher() security.PasswordHasher {
	cfg := argon2.DefaultConfig()
	cfg.MemoryCost = 1024
	cfg.TimeCost = 1
	cfg.Parallelism = 1
	return security.NewArgon2HasherWithConfig(cfg)
}

func createUser(t *testing.T, repo *repofake.UserRepository, name, email string) *model.User {
	t.Helper()

	user, err := repo.CreateUser(context.Background(), &model.User{Name: name, Email: email})
	require.NoError(t, err)

	return user
}

type recordingNotifier struct {
	mu    sync.Mutex
	users []string
	err   error
}

func (n *recordingNotifier) RefreshTokenReused(_ context.Context, user *model.User) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.users = append(n.users, user.ID.Hex())
	return n.err
}

func (n *recordingNotifier) calls() []string {
	n.mu.Lock()
	defer n.mu.Unlock()

	return append([]string(nil), n.users...)
}

type fakeImage struct {
	data     []byte
	openErr  error
	removed  int
	openings int
}

func newFakeImage(data string) *fakeImage {
	return &fakeImage{data: []byte(data)}
}

func (f *fakeImage) Open() (io.ReadCloser, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	f.openings++
	return io.NopCloser(bytes.NewReader(f.data)), nil
}

func (f *fakeImage) Filename() string    { return "face-test.png" }
func (f *fakeImage) ContentType() string { return "image/png" }

func (f *fakeImage) Remove() error {
	f.removed++
	return nil
}

type fakeRecognizer struct {
	enrollResult *provider.EnrollResult
	enrollErr    error
	matchUserID  string
	matchErr     error

	enrolledUserID string
	received       []byte
}

func (r *fakeRecognizer) Enroll(_ context.Context, userID string, image provider.Image) (*provider.EnrollResult, error) {
	r.enrolledUserID = userID
	r.received, _ = io.ReadAll(image.Content)
	if r.enrollErr != nil {
		return nil, r.enrollErr
	}
	return r.enrollResult, nil
}

func (r *fakeRecognizer) Authenticate(_ context.Context, image provider.Image) (string, error) {
	r.received, _ = io.ReadAll(image.Content)
	if r.matchErr != nil {
		return "", r.matchErr
	}
	return r.matchUserID, nil
}
