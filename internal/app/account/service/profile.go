package service

import (
	"context"
	"github.com/Miraines/MoonyAndStarry/account-service/internal/adapters/transport/http/dto"
	customErrors "github.com/Miraines/MoonyAndStarry/account-service/internal/domain/account/errors"
	"github.com/Miraines/MoonyAndStarry/account-service/internal/domain/account/media"
	"github.com/Miraines/MoonyAndStarry/account-service/internal/domain/account/model"
	"github.com/Miraines/MoonyAndStarry/account-service/internal/domain/account/password"
	repo "github.com/Miraines/MoonyAndStarry/account-service/internal/domain/account/repo"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"strings"
)

type ProfileService interface {
	// Register создаёт пользователя. avatarPath обязателен, coverPath может быть пустым.
	Register(ctx context.Context, in dto.RegisterDTO, avatarPath, coverPath string) (model.PublicUser, error)
	UpdateCredentials(ctx context.Context, userID uuid.UUID, in dto.UpdateCredentialsDTO) (model.PublicUser, error)
	UpdateAvatar(ctx context.Context, userID uuid.UUID, avatarPath string) (model.PublicUser, error)
	CurrentUser(ctx context.Context, userID uuid.UUID) (model.PublicUser, error)
}

type profileService struct {
	userRepo repo.UserRepo
	media    media.Store
	hasher   password.Hasher
	v        *validator.Validate
	log      *zap.Logger
}

func NewProfileService(
	ur repo.UserRepo,
	ms media.Store,
	h password.Hasher,
	v *validator.Validate,
	log *zap.Logger,
) ProfileService {
	return &profileService{
		userRepo: ur, media: ms, hasher: h, v: v, log: log,
	}
}

func (p *profileService) Register(ctx context.Context, in dto.RegisterDTO, avatarPath, coverPath string) (model.PublicUser, error) {
	in = in.Trimmed()
	if err := p.v.Struct(in); err != nil {
		return model.PublicUser{}, invalidInput(err)
	}
	username := strings.ToLower(in.Username)
	email := strings.ToLower(in.Email)

	// быстрая проверка; окончательно уникальность гарантирует индекс в БД
	taken, err := p.userRepo.ExistsByUsernameOrEmail(ctx, username, email, uuid.Nil)
	if err != nil {
		return model.PublicUser{}, wrapInternal(err, "Register")
	}
	if taken {
		return model.PublicUser{}, customErrors.NewAlreadyExists("username or email already exists")
	}

	if avatarPath == "" {
		return model.PublicUser{}, customErrors.NewInvalidArgument("avatar is required")
	}

	passwordHash, err := p.hasher.Hash(in.Password)
	if err != nil {
		return model.PublicUser{}, wrapInternal(err, "Register")
	}

	avatarURL, err := p.media.Upload(ctx, avatarPath)
	if err != nil {
		return model.PublicUser{}, customErrors.WrapUploadFailed(err, "avatar")
	}
	var coverURL string
	if coverPath != "" {
		if coverURL, err = p.media.Upload(ctx, coverPath); err != nil {
			p.discard(ctx, avatarURL)
			return model.PublicUser{}, customErrors.WrapUploadFailed(err, "cover image")
		}
	}

	id, err := p.userRepo.CreateUser(ctx, model.User{
		ID:            uuid.New(),
		Username:      username,
		Email:         email,
		FullName:      in.FullName,
		PasswordHash:  passwordHash,
		AvatarURL:     avatarURL,
		CoverImageURL: coverURL,
	})
	if err != nil {
		p.discard(ctx, avatarURL, coverURL)
		if customErrors.IsAlreadyExists(err) {
			return model.PublicUser{}, err
		}
		return model.PublicUser{}, wrapInternal(err, "Register")
	}

	created, err := p.userRepo.GetUserByID(ctx, id)
	if err != nil {
		return model.PublicUser{}, wrapInternal(err, "Register")
	}
	return created.Public(), nil
}

func (p *profileService) UpdateCredentials(ctx context.Context, userID uuid.UUID, in dto.UpdateCredentialsDTO) (model.PublicUser, error) {
	in = in.Trimmed()
	if err := p.v.Struct(in); err != nil {
		return model.PublicUser{}, invalidInput(err)
	}
	username := strings.ToLower(in.Username)
	email := strings.ToLower(in.Email)

	current, err := p.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return model.PublicUser{}, err
	}

	if username != current.Username {
		taken, err := p.userRepo.ExistsByUsernameOrEmail(ctx, username, "", userID)
		if err != nil {
			return model.PublicUser{}, wrapInternal(err, "UpdateCredentials")
		}
		if taken {
			return model.PublicUser{}, customErrors.NewAlreadyExists("username already exists")
		}
	}
	if email != current.Email {
		taken, err := p.userRepo.ExistsByUsernameOrEmail(ctx, "", email, userID)
		if err != nil {
			return model.PublicUser{}, wrapInternal(err, "UpdateCredentials")
		}
		if taken {
			return model.PublicUser{}, customErrors.NewAlreadyExists("email already exists")
		}
	}

	updated, err := p.userRepo.UpdateCredentials(ctx, userID, username, in.FullName, email)
	if err != nil {
		return model.PublicUser{}, err
	}
	return updated.Public(), nil
}

func (p *profileService) UpdateAvatar(ctx context.Context, userID uuid.UUID, avatarPath string) (model.PublicUser, error) {
	if avatarPath == "" {
		return model.PublicUser{}, customErrors.NewInvalidArgument("avatar file is missing")
	}

	current, err := p.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return model.PublicUser{}, err
	}

	url, err := p.media.Upload(ctx, avatarPath)
	if err != nil {
		return model.PublicUser{}, customErrors.WrapUploadFailed(err, "avatar")
	}

	updated, err := p.userRepo.UpdateAvatar(ctx, userID, url)
	if err != nil {
		p.discard(ctx, url)
		return model.PublicUser{}, err
	}

	if current.AvatarURL != "" && current.AvatarURL != url {
		p.discard(ctx, current.AvatarURL)
	}
	return updated.Public(), nil
}

func (p *profileService) CurrentUser(ctx context.Context, userID uuid.UUID) (model.PublicUser, error) {
	user, err := p.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return model.PublicUser{}, err
	}
	return user.Public(), nil
}

// discard удаляет файлы с медиа-хоста. Ошибки только логируются.
func (p *profileService) discard(ctx context.Context, urls ...string) {
	ctx = context.WithoutCancel(ctx)
	for _, url := range urls {
		if url == "" {
			continue
		}
		if err := p.media.Delete(ctx, url); err != nil {
			p.log.Warn("media cleanup failed", zap.String("url", url), zap.Error(err))
		}
	}
}
