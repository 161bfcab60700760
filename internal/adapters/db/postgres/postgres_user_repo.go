package postgres

import (
	"context"
	"errors"
	customErrors "github.com/Miraines/MoonyAndStarry/account-service/internal/domain/account/errors"
	"github.com/Miraines/MoonyAndStarry/account-service/internal/domain/account/model"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"strings"
)

type PostgresUserRepo struct {
	db *gorm.DB
}

func NewPostgresUserRepo(db *gorm.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// conflictField называет уникальную колонку нарушения, если драйвер
// её сообщает.
func conflictField(err error) string {
	msg := err.Error()
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		msg = pgErr.ConstraintName + " " + pgErr.Detail
	}
	switch {
	case strings.Contains(msg, "username"):
		return "username already exists"
	case strings.Contains(msg, "email"):
		return "email already exists"
	default:
		return "username or email already exists"
	}
}

func (p *PostgresUserRepo) CreateUser(ctx context.Context, user model.User) (uuid.UUID, error) {
	res := p.db.WithContext(ctx).Create(&user)
	if err := res.Error; err != nil {
		if isUniqueViolation(err) {
			return uuid.Nil, customErrors.NewAlreadyExists(conflictField(err))
		}
		return uuid.Nil, customErrors.WrapInternal(err, "CreateUser")
	}
	return user.ID, nil
}

func (p *PostgresUserRepo) first(ctx context.Context, op, query string, args ...any) (model.User, error) {
	var u model.User
	res := p.db.WithContext(ctx).Where(query, args...).First(&u)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return model.User{}, customErrors.ErrNotFound
	}
	if err := res.Error; err != nil {
		return model.User{}, customErrors.WrapInternal(err, op)
	}
	return u, nil
}

func (p *PostgresUserRepo) GetUserByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	return p.first(ctx, "GetUserByID", "id = ?", id)
}

func (p *PostgresUserRepo) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	return p.first(ctx, "GetUserByEmail", "email = ?", strings.ToLower(email))
}

func (p *PostgresUserRepo) GetUserByUsername(ctx context.Context, username string) (model.User, error) {
	return p.first(ctx, "GetUserByUsername", "username = ?", strings.ToLower(username))
}

func (p *PostgresUserRepo) ExistsByUsernameOrEmail(ctx context.Context, username, email string, excludeID uuid.UUID) (bool, error) {
	username, email = strings.ToLower(username), strings.ToLower(email)
	if username == "" && email == "" {
		return false, nil
	}

	q := p.db.WithContext(ctx).Model(&model.User{})
	switch {
	case username != "" && email != "":
		q = q.Where("username = ? OR email = ?", username, email)
	case username != "":
		q = q.Where("username = ?", username)
	default:
		q = q.Where("email = ?", email)
	}
	if excludeID != uuid.Nil {
		q = q.Where("id <> ?", excludeID)
	}

	var n int64
	if err := q.Count(&n).Error; err != nil {
		return false, customErrors.WrapInternal(err, "ExistsByUsernameOrEmail")
	}
	return n > 0, nil
}

// update выполняет один UPDATE строки и перечитывает её.
func (p *PostgresUserRepo) update(ctx context.Context, op string, id uuid.UUID, fields map[string]any) (model.User, error) {
	var out model.User
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.User{}).Where("id = ?", id).Updates(fields)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return customErrors.ErrNotFound
		}
		return tx.Where("id = ?", id).First(&out).Error
	})
	switch {
	case err == nil:
		return out, nil
	case errors.Is(err, customErrors.ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return model.User{}, customErrors.ErrNotFound
	case isUniqueViolation(err):
		return model.User{}, customErrors.NewAlreadyExists(conflictField(err))
	default:
		return model.User{}, customErrors.WrapInternal(err, op)
	}
}

func (p *PostgresUserRepo) UpdateCredentials(ctx context.Context, id uuid.UUID, username, fullName, email string) (model.User, error) {
	return p.update(ctx, "UpdateCredentials", id, map[string]any{
		"username":  strings.ToLower(username),
		"full_name": fullName,
		"email":     strings.ToLower(email),
	})
}

func (p *PostgresUserRepo) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	_, err := p.update(ctx, "UpdatePasswordHash", id, map[string]any{"password_hash": hash})
	return err
}

func (p *PostgresUserRepo) UpdateAvatar(ctx context.Context, id uuid.UUID, url string) (model.User, error) {
	return p.update(ctx, "UpdateAvatar", id, map[string]any{"avatar_url": url})
}

func (p *PostgresUserRepo) SetRefreshToken(ctx context.Context, id uuid.UUID, tokenHash string) error {
	_, err := p.update(ctx, "SetRefreshToken", id, map[string]any{"refresh_token_hash": tokenHash})
	return err
}

func (p *PostgresUserRepo) ClearRefreshToken(ctx context.Context, id uuid.UUID) error {
	_, err := p.update(ctx, "ClearRefreshToken", id, map[string]any{"refresh_token_hash": nil})
	return err
}

func (p *PostgresUserRepo) RotateRefreshToken(ctx context.Context, id uuid.UUID, oldHash, newHash string) error {
	res := p.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ? AND refresh_token_hash = ?", id, oldHash).
		Update("refresh_token_hash", newHash)
	if err := res.Error; err != nil {
		return customErrors.WrapInternal(err, "RotateRefreshToken")
	}
	if res.RowsAffected == 0 {
		return customErrors.ErrInvalidToken
	}
	return nil
}
