package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"github.com/Miraines/MoonyAndStarry/account-service/internal/adapters/transport/http/dto"
	customErrors "github.com/Miraines/MoonyAndStarry/account-service/internal/domain/account/errors"
	"github.com/Miraines/MoonyAndStarry/account-service/internal/domain/account/jwt"
	"github.com/Miraines/MoonyAndStarry/account-service/internal/domain/account/model"
	"github.com/Miraines/MoonyAndStarry/account-service/internal/domain/account/password"
	repo "github.com/Miraines/MoonyAndStarry/account-service/internal/domain/account/repo"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"time"
)

type SessionService interface {
	Login(context.Context, dto.LoginDTO) (model.LoginResult, error)
	Logout(context.Context, model.Identity) error
	Refresh(ctx context.Context, refreshToken string) (model.TokenPair, error)
	ChangePassword(ctx context.Context, userID uuid.UUID, in dto.ChangePasswordDTO) error
	// Authenticate превращает access-токен в личность его владельца.
	Authenticate(ctx context.Context, accessToken string) (model.Identity, error)
}

type sessionService struct {
	userRepo  repo.UserRepo
	tokenRepo repo.TokenRepo
	jwtUtil   jwt.JWTUtil
	hasher    password.Hasher
	v         *validator.Validate
	log       *zap.Logger
}

func NewSessionService(
	ur repo.UserRepo,
	tr repo.TokenRepo,
	jm jwt.JWTUtil,
	h password.Hasher,
	v *validator.Validate,
	log *zap.Logger,
) SessionService {
	return &sessionService{
		userRepo: ur, tokenRepo: tr, jwtUtil: jm, hasher: h, v: v, log: log,
	}
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func (s *sessionService) findByLogin(ctx context.Context, in dto.LoginDTO) (model.User, error) {
	if in.Username != "" {
		user, err := s.userRepo.GetUserByUsername(ctx, in.Username)
		if err == nil || in.Email == "" || !customErrors.IsNotFound(err) {
			return user, err
		}
	}
	return s.userRepo.GetUserByEmail(ctx, in.Email)
}

func (s *sessionService) Login(ctx context.Context, in dto.LoginDTO) (model.LoginResult, error) {
	in = in.Trimmed()
	if err := s.v.Struct(in); err != nil {
		return model.LoginResult{}, invalidInput(err)
	}

	user, err := s.findByLogin(ctx, in)
	switch {
	case customErrors.IsNotFound(err):
		return model.LoginResult{}, customErrors.ErrNotFound
	case err != nil:
		return model.LoginResult{}, wrapInternal(err, "Login")
	}

	ok, err := s.hasher.Verify(in.Password, user.PasswordHash)
	if err != nil {
		return model.LoginResult{}, wrapInternal(err, "Login")
	}
	if !ok {
		return model.LoginResult{}, customErrors.ErrInvalidCredentials
	}

	pair, err := s.issueTokens(user)
	if err != nil {
		return model.LoginResult{}, err
	}
	if err := s.userRepo.SetRefreshToken(ctx, user.ID, hashToken(pair.RefreshToken)); err != nil {
		return model.LoginResult{}, wrapInternal(err, "StoreRefresh")
	}

	return model.LoginResult{User: user.Public(), Tokens: pair}, nil
}

func (s *sessionService) Logout(ctx context.Context, id model.Identity) error {
	if id.TokenID != "" {
		// парсер принимает токен ещё jwt.Leeway после exp
		if err := s.tokenRepo.RevokeAccess(ctx, id.TokenID, id.ExpiresAt.Add(jwt.Leeway)); err != nil {
			return wrapInternal(err, "RevokeAccess")
		}
	}
	if err := s.userRepo.ClearRefreshToken(ctx, id.User.ID); err != nil {
		if customErrors.IsNotFound(err) {
			return customErrors.ErrUnauthenticated
		}
		return wrapInternal(err, "Logout")
	}
	return nil
}

func (s *sessionService) Refresh(ctx context.Context, raw string) (model.TokenPair, error) {
	if raw == "" {
		return model.TokenPair{}, customErrors.ErrUnauthenticated
	}

	claims, err := s.jwtUtil.ValidateRefreshToken(raw)
	if err != nil {
		return model.TokenPair{}, customErrors.ErrInvalidToken
	}
	uid, err := uuid.Parse(claims.Subject)
	if err != nil {
		return model.TokenPair{}, customErrors.ErrInvalidToken
	}

	user, err := s.userRepo.GetUserByID(ctx, uid)
	switch {
	case customErrors.IsNotFound(err):
		return model.TokenPair{}, customErrors.ErrInvalidToken
	case err != nil:
		return model.TokenPair{}, wrapInternal(err, "Refresh")
	}

	// токен должен совпадать с тем, что лежит у пользователя: иначе он
	// отозван logout-ом или уже был обменян
	presented := hashToken(raw)
	if user.RefreshTokenHash == nil ||
		subtle.ConstantTimeCompare([]byte(*user.RefreshTokenHash), []byte(presented)) != 1 {
		s.log.Warn("refresh token reuse", zap.String("user_id", uid.String()), zap.String("jti", claims.ID))
		return model.TokenPair{}, customErrors.ErrInvalidToken
	}

	pair, err := s.issueTokens(user)
	if err != nil {
		return model.TokenPair{}, err
	}
	if err := s.userRepo.RotateRefreshToken(ctx, uid, presented, hashToken(pair.RefreshToken)); err != nil {
		if errors.Is(err, customErrors.ErrInvalidToken) {
			return model.TokenPair{}, customErrors.ErrInvalidToken
		}
		return model.TokenPair{}, wrapInternal(err, "Refresh")
	}
	return pair, nil
}

func (s *sessionService) ChangePassword(ctx context.Context, userID uuid.UUID, in dto.ChangePasswordDTO) error {
	if err := s.v.Struct(in); err != nil {
		return invalidInput(err)
	}

	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	ok, err := s.hasher.Verify(in.OldPassword, user.PasswordHash)
	if err != nil {
		return wrapInternal(err, "ChangePassword")
	}
	if !ok {
		return customErrors.ErrInvalidCredentials
	}

	hash, err := s.hasher.Hash(in.NewPassword)
	if err != nil {
		return wrapInternal(err, "ChangePassword")
	}
	if err := s.userRepo.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return wrapInternal(err, "ChangePassword")
	}
	return nil
}

func (s *sessionService) Authenticate(ctx context.Context, raw string) (model.Identity, error) {
	if raw == "" {
		return model.Identity{}, customErrors.ErrUnauthenticated
	}

	claims, err := s.jwtUtil.ValidateAccessToken(raw)
	if err != nil {
		return model.Identity{}, customErrors.ErrUnauthenticated
	}

	revoked, err := s.tokenRepo.IsAccessRevoked(ctx, claims.ID)
	if err != nil {
		// денайлист недоступен: не пускаем
		s.log.Error("access denylist lookup failed", zap.Error(err))
		return model.Identity{}, customErrors.ErrUnauthenticated
	}
	if revoked {
		return model.Identity{}, customErrors.ErrUnauthenticated
	}

	uid, err := uuid.Parse(claims.Subject)
	if err != nil {
		return model.Identity{}, customErrors.ErrUnauthenticated
	}
	user, err := s.userRepo.GetUserByID(ctx, uid)
	switch {
	case customErrors.IsNotFound(err):
		return model.Identity{}, customErrors.ErrUnauthenticated
	case err != nil:
		return model.Identity{}, wrapInternal(err, "Authenticate")
	}

	return model.Identity{
		User:      user.Public(),
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (s *sessionService) issueTokens(user model.User) (model.TokenPair, error) {
	at, atExp, _, err := s.jwtUtil.GenerateAccessToken(user.ID, user.Username, user.Email)
	if err != nil {
		return model.TokenPair{}, wrapInternal(err, "GenerateAccessToken")
	}
	rt, rtExp, jti, err := s.jwtUtil.GenerateRefreshToken(user.ID)
	if err != nil {
		return model.TokenPair{}, wrapInternal(err, "GenerateRefreshToken")
	}

	now := time.Now()
	return model.TokenPair{
		AccessToken:     at,
		RefreshToken:    rt,
		AccessTTL:       atExp.Sub(now),
		RefreshTTL:      rtExp.Sub(now),
		UserId:          user.ID,
		RefreshTokenJTI: jti,
	}, nil
}
