package service_test

import (
	"context"
	"errors"
	"github.com/Miraines/MoonyAndStarry/account-service/internal/app/account/jwt"
	apppassword "github.com/Miraines/MoonyAndStarry/account-service/internal/app/account/password"
	appsvc "github.com/Miraines/MoonyAndStarry/account-service/internal/app/account/service"
	authErrors "github.com/Miraines/MoonyAndStarry/account-service/internal/domain/account/errors"
	"github.com/Miraines/MoonyAndStarry/account-service/internal/domain/account/model"
	"github.com/Miraines/MoonyAndStarry/account-service/internal/infra/config"
	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"strings"
	"sync"
	"testing"
	"time"
)

/* ──────────────────────────────── stubs ──────────────────────────────── */

type userRepoStub struct {
	mu    sync.Mutex
	users map[uuid.UUID]model.User
}

func newUserRepoStub() *userRepoStub {
	return &userRepoStub{users: make(map[uuid.UUID]model.User)}
}

func (u *userRepoStub) taken(username, email string, exclude uuid.UUID) bool {
	for id, v := range u.users {
		if id == exclude {
			continue
		}
		if (username != "" && v.Username == username) || (email != "" && v.Email == email) {
			return true
		}
	}
	return false
}

func (u *userRepoStub) CreateUser(_ context.Context, m model.User) (uuid.UUID, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.taken(m.Username, m.Email, uuid.Nil) {
		return uuid.Nil, authErrors.ErrAlreadyExists
	}
	m.CreatedAt = time.Now()
	m.UpdatedAt = m.CreatedAt
	u.users[m.ID] = m
	return m.ID, nil
}

func (u *userRepoStub) GetUserByID(_ context.Context, id uuid.UUID) (model.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	v, ok := u.users[id]
	if !ok {
		return model.User{}, authErrors.ErrNotFound
	}
	return v, nil
}

func (u *userRepoStub) find(match func(model.User) bool) (model.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, v := range u.users {
		if match(v) {
			return v, nil
		}
	}
	return model.User{}, authErrors.ErrNotFound
}

func (u *userRepoStub) GetUserByEmail(_ context.Context, email string) (model.User, error) {
	return u.find(func(v model.User) bool { return v.Email == strings.ToLower(email) })
}

func (u *userRepoStub) GetUserByUsername(_ context.Context, username string) (model.User, error) {
	return u.find(func(v model.User) bool { return v.Username == strings.ToLower(username) })
}

func (u *userRepoStub) ExistsByUsernameOrEmail(_ context.Context, username, email string, exclude uuid.UUID) (bool, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.taken(username, email, exclude), nil
}

func (u *userRepoStub) mutate(id uuid.UUID, fn func(*model.User) error) (model.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	v, ok := u.users[id]
	if !ok {
		return model.User{}, authErrors.ErrNotFound
	}
	if err := fn(&v); err != nil {
		return model.User{}, err
	}
	v.UpdatedAt = time.Now()
	u.users[id] = v
	return v, nil
}

func (u *userRepoStub) UpdateCredentials(_ context.Context, id uuid.UUID, username, fullName, email string) (model.User, error) {
	return u.mutate(id, func(v *model.User) error {
		if u.taken(username, email, id) {
			return authErrors.ErrAlreadyExists
		}
		v.Username, v.FullName, v.Email = username, fullName, email
		return nil
	})
}

func (u *userRepoStub) UpdatePasswordHash(_ context.Context, id uuid.UUID, hash string) error {
	_, err := u.mutate(id, func(v *model.User) error { v.PasswordHash = hash; return nil })
	return err
}

func (u *userRepoStub) UpdateAvatar(_ context.Context, id uuid.UUID, url string) (model.User, error) {
	return u.mutate(id, func(v *model.User) error { v.AvatarURL = url; return nil })
}

func (u *userRepoStub) SetRefreshToken(_ context.Context, id uuid.UUID, hash string) error {
	_, err := u.mutate(id, func(v *model.User) error { v.RefreshTokenHash = &hash; return nil })
	return err
}

func (u *userRepoStub) ClearRefreshToken(_ context.Context, id uuid.UUID) error {
	_, err := u.mutate(id, func(v *model.User) error { v.RefreshTokenHash = nil; return nil })
	return err
}

func (u *userRepoStub) RotateRefreshToken(_ context.Context, id uuid.UUID, oldHash, newHash string) error {
	_, err := u.mutate(id, func(v *model.User) error {
		if v.RefreshTokenHash == nil || *v.RefreshTokenHash != oldHash {
			return authErrors.ErrInvalidToken
		}
		v.RefreshTokenHash = &newHash
		return nil
	})
	return err
}

type tokenRepoStub struct {
	accessRevoked map[string]bool
	revokedUntil  map[string]time.Time
	err           error
}

func (t *tokenRepoStub) RevokeAccess(_ context.Context, jti string, until time.Time) error {
	if t.err != nil {
		return t.err
	}
	t.accessRevoked[jti] = true
	t.revokedUntil[jti] = until
	return nil
}

func (t *tokenRepoStub) IsAccessRevoked(_ context.Context, jti string) (bool, error) {
	if t.err != nil {
		return true, t.err
	}
	return t.accessRevoked[jti], nil
}

type mediaStub struct {
	mu        sync.Mutex
	uploaded  map[string]string
	deleted   []string
	failOn    map[string]bool
	deleteErr error
	n         int
}

func newMediaStub() *mediaStub {
	return &mediaStub{uploaded: map[string]string{}, failOn: map[string]bool{}}
}

func (m *mediaStub) Upload(_ context.Context, path string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn[path] {
		return "", errors.New("media host unavailable")
	}
	m.n++
	url := "https://cdn.test/" + uuid.NewString() + "-" + path
	m.uploaded[url] = path
	return url, nil
}

func (m *mediaStub) Delete(_ context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, url)
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.uploaded, url)
	return nil
}

/* ───────────────────────────── helpers ───────────────────────────── */

var fastParams = &argon2id.Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

type fixture struct {
	users   *userRepoStub
	tokens  *tokenRepoStub
	media   *mediaStub
	util    *jwt.JwtUtilImpl
	session appsvc.SessionService
	profile appsvc.ProfileService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	util, err := jwt.NewJWTUtil(&config.Config{
		AccessTokenSecret:  "access-secret",
		RefreshTokenSecret: "refresh-secret",
		AccessTokenTTL:     time.Minute,
		RefreshTokenTTL:    time.Hour,
		Issuer:             "test",
		Audience:           "test",
	})
	if err != nil {
		t.Fatal(err)
	}

	f := &fixture{
		users:  newUserRepoStub(),
		tokens: &tokenRepoStub{accessRevoked: map[string]bool{}, revokedUntil: map[string]time.Time{}},
		media:  newMediaStub(),
		util:   util,
	}
	hasher := apppassword.NewArgon2Hasher("pepper", fastParams)
	v := appsvc.NewValidator()
	f.session = appsvc.NewSessionService(f.users, f.tokens, util, hasher, v, zap.NewNop())
	f.profile = appsvc.NewProfileService(f.users, f.media, hasher, v, zap.NewNop())
	return f
}
