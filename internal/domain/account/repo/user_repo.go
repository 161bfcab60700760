package repo

import (
	"context"
	"github.com/Miraines/MoonyAndStarry/account-service/internal/domain/account/model"
	"github.com/google/uuid"
)

type UserRepo interface {
	CreateUser(ctx context.Context, u model.User) (uuid.UUID, error)

	GetUserByID(ctx context.Context, id uuid.UUID) (model.User, error)

	GetUserByEmail(ctx context.Context, email string) (model.User, error)

	GetUserByUsername(ctx context.Context, username string) (model.User, error)

	// ExistsByUsernameOrEmail: занят ли username или email другим пользователем
	// (не excludeID). Пустые аргументы игнорируются.
	ExistsByUsernameOrEmail(ctx context.Context, username, email string, excludeID uuid.UUID) (bool, error)

	UpdateCredentials(ctx context.Context, id uuid.UUID, username, fullName, email string) (model.User, error)

	UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error

	UpdateAvatar(ctx context.Context, id uuid.UUID, url string) (model.User, error)

	SetRefreshToken(ctx context.Context, id uuid.UUID, tokenHash string) error

	ClearRefreshToken(ctx context.Context, id uuid.UUID) error

	// RotateRefreshToken меняет хеш refresh-токена, только пока он
	// всё ещё равен oldHash.
	RotateRefreshToken(ctx context.Context, id uuid.UUID, oldHash, newHash string) error
}
