package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/vasapolrittideah/taskdash-api/services/auth-service/internal/repository"
	"github.com/vasapolrittideah/taskdash-api/shared/provider"
)

var (
	ErrImageRequired  = errors.New("image is required")
	ErrUserIDRequired = errors.New("user id is required")
)

// PendingImage is a captured face image waiting to be relayed. Remove is called once the
// use case is done with it, whatever the outcome.
type PendingImage interface {
	Open() (io.ReadCloser, error)
	Filename() string
	ContentType() string
	Remove() error
}

// FaceUsecase enrolls faces with the recognition service and signs users in by face.
type FaceUsecase interface {
	Register(ctx context.Context, userID string, image PendingImage) (*provider.EnrollResult, error)
	Login(ctx context.Context, image PendingImage) (*LoginResult, error)
}

type faceUsecase struct {
	userRepo   repository.UserRepository
	recognizer provider.Recognizer
	tokens     TokenUsecase
	logger     *zerolog.Logger
}

func NewFaceUsecase(
	userRepo repository.UserRepository,
	recognizer provider.Recognizer,
	tokens TokenUsecase,
	logger *zerolog.Logger,
) FaceUsecase {
	return &faceUsecase{
		userRepo:   userRepo,
		recognizer: recognizer,
		tokens:     tokens,
		logger:     logger,
	}
}

func (u *faceUsecase) Register(
	ctx context.Context,
	userID string,
	image PendingImage,
) (*provider.EnrollResult, error) {
	if image == nil {
		return nil, ErrImageRequired
	}
	defer u.discard(image)

	if strings.TrimSpace(userID) == "" {
		return nil, ErrUserIDRequired
	}

	if _, err := u.userRepo.GetUser(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}

		return nil, err
	}

	var result *provider.EnrollResult
	err := u.relay(image, func(img provider.Image) error {
		var err error
		result, err = u.recognizer.Enroll(ctx, userID, img)
		return err
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (u *faceUsecase) Login(ctx context.Context, image PendingImage) (*LoginResult, error) {
	if image == nil {
		return nil, ErrImageRequired
	}
	defer u.discard(image)

	var userID string
	err := u.relay(image, func(img provider.Image) error {
		var err error
		userID, err = u.recognizer.Authenticate(ctx, img)
		return err
	})
	if err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, provider.ErrFaceNotRecognized
	}

	user, err := u.userRepo.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			u.logger.Warn().Str("user_id", userID).Msg("recognition service matched an unknown user")
			return nil, ErrUserNotFound
		}

		return nil, err
	}

	tokens, err := u.tokens.Issue(ctx, user)
	if err != nil {
		return nil, err
	}
	user.RefreshToken = tokens.RefreshToken

	return &LoginResult{User: user, Tokens: tokens}, nil
}

func (u *faceUsecase) relay(image PendingImage, call func(provider.Image) error) error {
	content, err := image.Open()
	if err != nil {
		return fmt.Errorf("failed to open pending upload: %w", err)
	}
	defer content.Close()

	return call(provider.Image{
		Filename:    image.Filename(),
		ContentType: image.ContentType(),
		Content:     content,
	})
}

func (u *faceUsecase) discard(image PendingImage) {
	if err := image.Remove(); err != nil {
		u.logger.Error().Err(err).Str("file", image.Filename()).Msg("failed to remove pending upload")
	}
}
