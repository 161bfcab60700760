package http

import (
	"bytes"
	"context"
	"encoding/json"
	"github.com/Miraines/MoonyAndStarry/account-service/internal/adapters/transport/http/dto"
	authErrors "github.com/Miraines/MoonyAndStarry/account-service/internal/domain/account/errors"
	"github.com/Miraines/MoonyAndStarry/account-service/internal/domain/account/model"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"
)

/* ───────────────────────────── stub services ───────────────────────────── */

var alice = model.PublicUser{ID: uuid.New(), Username: "alice", Email: "alice@x.com", AvatarURL: "https://cdn/a.png"}

type stubSession struct {
	loginErr   error
	refreshErr error
	gotRefresh string
	loggedOut  bool
}

func (s *stubSession) Login(_ context.Context, in dto.LoginDTO) (model.LoginResult, error) {
	if s.loginErr != nil {
		return model.LoginResult{}, s.loginErr
	}
	return model.LoginResult{User: alice, Tokens: model.TokenPair{
		AccessToken: "acc", RefreshToken: "ref", AccessTTL: time.Minute, RefreshTTL: time.Hour, UserId: alice.ID,
	}}, nil
}

func (s *stubSession) Logout(_ context.Context, id model.Identity) error {
	s.loggedOut = id.User.ID == alice.ID
	return nil
}

func (s *stubSession) Refresh(_ context.Context, raw string) (model.TokenPair, error) {
	s.gotRefresh = raw
	if s.refreshErr != nil {
		return model.TokenPair{}, s.refreshErr
	}
	return model.TokenPair{AccessToken: "acc2", RefreshToken: "ref2", AccessTTL: time.Minute, RefreshTTL: time.Hour}, nil
}

func (s *stubSession) ChangePassword(_ context.Context, _ uuid.UUID, in dto.ChangePasswordDTO) error {
	if in.OldPassword != "old" {
		return authErrors.ErrInvalidCredentials
	}
	return nil
}

func (s *stubSession) Authenticate(_ context.Context, tok string) (model.Identity, error) {
	if tok != "good" {
		return model.Identity{}, authErrors.ErrUnauthenticated
	}
	return model.Identity{User: alice, TokenID: "jti"}, nil
}

type stubProfile struct {
	registerErr error
	avatarPath  string
	coverPath   string
	avatarBody  string
}

func (p *stubProfile) Register(_ context.Context, in dto.RegisterDTO, avatarPath, coverPath string) (model.PublicUser, error) {
	p.avatarPath, p.coverPath = avatarPath, coverPath
	if avatarPath != "" {
		b, _ := os.ReadFile(avatarPath)
		p.avatarBody = string(b)
	}
	if p.registerErr != nil {
		return model.PublicUser{}, p.registerErr
	}
	if avatarPath == "" {
		return model.PublicUser{}, authErrors.NewInvalidArgument("avatar is required")
	}
	return model.PublicUser{ID: uuid.New(), Username: strings.ToLower(in.Username), Email: in.Email}, nil
}

func (p *stubProfile) UpdateCredentials(_ context.Context, _ uuid.UUID, in dto.UpdateCredentialsDTO) (model.PublicUser, error) {
	u := alice
	u.Username, u.FullName, u.Email = in.Username, in.FullName, in.Email
	return u, nil
}

func (p *stubProfile) UpdateAvatar(_ context.Context, _ uuid.UUID, path string) (model.PublicUser, error) {
	if path == "" {
		return model.PublicUser{}, authErrors.NewInvalidArgument("avatar file is missing")
	}
	return alice, nil
}

func (p *stubProfile) CurrentUser(context.Context, uuid.UUID) (model.PublicUser, error) {
	return alice, nil
}

/* ───────────────────────────── helpers ───────────────────────────── */

func newRouter(t *testing.T, s *stubSession, p *stubProfile) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewHandler(s, p, "", t.TempDir(), 1<<20, zap.NewNop())
	h.Register(r.Group("/api/v1/users"))
	return r
}

func do(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func jsonReq(method, path string, body any) *http.Request {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func multipartReq(t *testing.T, path string, fields map[string]string, files map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for field, content := range files {
		fw, err := mw.CreateFormFile(field, field+".png")
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func cookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

/* ───────────────────────────── tests ───────────────────────────── */

func TestHandler_Register(t *testing.T) {
	p := &stubProfile{}
	r := newRouter(t, &stubSession{}, p)

	w := do(r, multipartReq(t, "/api/v1/users/register",
		map[string]string{"username": "Alice", "fullName": "Alice L", "email": "alice@x.com", "password": "pw"},
		map[string]string{"avatar": "avatar-bytes", "coverImage": "cover-bytes"},
	))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Contains(t, w.Body.String(), `"username":"alice"`)
	require.NotContains(t, w.Body.String(), "password")
	require.Equal(t, "avatar-bytes", p.avatarBody)
	require.NotEmpty(t, p.coverPath)

	_, err := os.Stat(p.avatarPath)
	require.True(t, os.IsNotExist(err), "temp upload must be removed after the request")
}

func TestHandler_RegisterMissingAvatar(t *testing.T) {
	r := newRouter(t, &stubSession{}, &stubProfile{})

	w := do(r, multipartReq(t, "/api/v1/users/register",
		map[string]string{"username": "alice", "fullName": "A", "email": "alice@x.com", "password": "pw"}, nil))
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_RegisterConflict(t *testing.T) {
	r := newRouter(t, &stubSession{}, &stubProfile{registerErr: authErrors.NewAlreadyExists("username or email already exists")})

	w := do(r, multipartReq(t, "/api/v1/users/register",
		map[string]string{"username": "alice", "fullName": "A", "email": "alice@x.com", "password": "pw"},
		map[string]string{"avatar": "x"}))
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestHandler_RegisterUploadFailed(t *testing.T) {
	r := newRouter(t, &stubSession{}, &stubProfile{registerErr: authErrors.ErrUploadFailed})

	w := do(r, multipartReq(t, "/api/v1/users/register",
		map[string]string{"username": "alice", "fullName": "A", "email": "alice@x.com", "password": "pw"},
		map[string]string{"avatar": "x"}))
	require.Equal(t, http.StatusBadGateway, w.Code)
}

func TestHandler_Login(t *testing.T) {
	r := newRouter(t, &stubSession{}, &stubProfile{})

	w := do(r, jsonReq(http.MethodPost, "/api/v1/users/login", map[string]string{"username": "alice", "password": "pw"}))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		User         model.PublicUser `json:"user"`
		AccessToken  string           `json:"accessToken"`
		RefreshToken string           `json:"refreshToken"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "acc", body.AccessToken)
	require.Equal(t, "ref", body.RefreshToken)
	require.Equal(t, alice.ID, body.User.ID)

	access := cookie(w, "access_token")
	require.NotNil(t, access)
	require.Equal(t, "acc", access.Value)
	require.True(t, access.HttpOnly)
	require.True(t, access.Secure)
	require.Equal(t, 60, access.MaxAge)

	refresh := cookie(w, "refresh_token")
	require.NotNil(t, refresh)
	require.Equal(t, http.SameSiteStrictMode, refresh.SameSite)
}

func TestHandler_LoginErrors(t *testing.T) {
	cases := map[error]int{
		authErrors.ErrInvalidCredentials:           http.StatusUnauthorized,
		authErrors.ErrNotFound:                     http.StatusNotFound,
		authErrors.NewInvalidArgument("password"):  http.StatusBadRequest,
		authErrors.WrapInternal(os.ErrClosed, "x"): http.StatusInternalServerError,
	}
	for err, code := range cases {
		r := newRouter(t, &stubSession{loginErr: err}, &stubProfile{})
		w := do(r, jsonReq(http.MethodPost, "/api/v1/users/login", map[string]string{"username": "a", "password": "b"}))
		require.Equal(t, code, w.Code, err.Error())
		require.Nil(t, cookie(w, "access_token"))
	}
}

func TestHandler_LoginMalformedJSON(t *testing.T) {
	r := newRouter(t, &stubSession{}, &stubProfile{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/login", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	require.Equal(t, http.StatusBadRequest, do(r, req).Code)
}

func TestHandler_RefreshSources(t *testing.T) {
	s := &stubSession{}
	r := newRouter(t, s, &stubProfile{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh-token", nil)
	req.AddCookie(&http.Cookie{Name: "refresh_token", Value: "from-cookie"})
	w := do(r, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "from-cookie", s.gotRefresh)
	require.Equal(t, "ref2", cookie(w, "refresh_token").Value)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh-token", nil)
	req.Header.Set("X-Refresh-Token", "from-header")
	require.Equal(t, http.StatusOK, do(r, req).Code)
	require.Equal(t, "from-header", s.gotRefresh)

	require.Equal(t, http.StatusOK, do(r, jsonReq(http.MethodPost, "/api/v1/users/refresh-token", map[string]string{"refreshToken": "from-body"})).Code)
	require.Equal(t, "from-body", s.gotRefresh)
}

func TestHandler_RefreshRejected(t *testing.T) {
	r := newRouter(t, &stubSession{refreshErr: authErrors.ErrInvalidToken}, &stubProfile{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh-token", nil)
	require.Equal(t, http.StatusUnauthorized, do(r, req).Code)
}

func TestHandler_AuthRequired(t *testing.T) {
	r := newRouter(t, &stubSession{}, &stubProfile{})

	for _, path := range []string{"/logout", "/change-password", "/update-credential", "/update-avatar"} {
		w := do(r, httptest.NewRequest(http.MethodPost, "/api/v1/users"+path, nil))
		require.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
	w := do(r, httptest.NewRequest(http.MethodGet, "/api/v1/users/current-user", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandler_Logout(t *testing.T) {
	s := &stubSession{}
	r := newRouter(t, s, &stubProfile{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/logout", nil)
	req.Header.Set("Authorization", "Bearer good")
	w := do(r, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, s.loggedOut)
	require.Equal(t, -1, cookie(w, "access_token").MaxAge)
	require.Equal(t, -1, cookie(w, "refresh_token").MaxAge)
}

func TestHandler_ChangePassword(t *testing.T) {
	r := newRouter(t, &stubSession{}, &stubProfile{})

	req := jsonReq(http.MethodPost, "/api/v1/users/change-password", map[string]string{"oldPassword": "old", "newPassword": "new"})
	req.AddCookie(&http.Cookie{Name: "access_token", Value: "good"})
	require.Equal(t, http.StatusOK, do(r, req).Code)

	req = jsonReq(http.MethodPost, "/api/v1/users/change-password", map[string]string{"oldPassword": "bad", "newPassword": "new"})
	req.AddCookie(&http.Cookie{Name: "access_token", Value: "good"})
	require.Equal(t, http.StatusUnauthorized, do(r, req).Code)
}

func TestHandler_UpdateCredentials(t *testing.T) {
	r := newRouter(t, &stubSession{}, &stubProfile{})

	req := jsonReq(http.MethodPost, "/api/v1/users/update-credential", map[string]string{"username": "alicia", "fullName": "A", "email": "a@x.com"})
	req.Header.Set("Authorization", "Bearer good")
	w := do(r, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"username":"alicia"`)
}

func TestHandler_UpdateAvatar(t *testing.T) {
	r := newRouter(t, &stubSession{}, &stubProfile{})

	req := multipartReq(t, "/api/v1/users/update-avatar", nil, map[string]string{"avatar": "new"})
	req.Header.Set("Authorization", "Bearer good")
	require.Equal(t, http.StatusOK, do(r, req).Code)

	req = multipartReq(t, "/api/v1/users/update-avatar", nil, nil)
	req.Header.Set("Authorization", "Bearer good")
	require.Equal(t, http.StatusBadRequest, do(r, req).Code)
}

func TestHandler_CurrentUser(t *testing.T) {
	r := newRouter(t, &stubSession{}, &stubProfile{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/current-user", nil)
	req.Header.Set("Authorization", "Bearer good")
	w := do(r, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), alice.ID.String())
}

func TestHandler_LoginLogsIdentifierDigest(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(&stubSession{}, &stubProfile{}, "", t.TempDir(), 1<<20, zap.New(core)).Register(r.Group("/api/v1/users"))

	for _, body := range []map[string]string{
		{"username": "alice", "password": "pw"},
		{"username": "bob", "password": "pw"},
		{"email": "alice@x.com", "password": "pw"},
	} {
		require.Equal(t, http.StatusOK, do(r, jsonReq(http.MethodPost, "/api/v1/users/login", body)).Code)
	}

	entries := logs.FilterMessage("/login").All()
	require.Len(t, entries, 3)
	seen := map[string]bool{}
	for _, e := range entries {
		user, _ := e.ContextMap()["user"].(string)
		require.NotEqual(t, digest(""), user)
		require.NotContains(t, user, "alice")
		seen[user] = true
	}
	require.Len(t, seen, 3)
	require.Equal(t, digest("alice"), entries[0].ContextMap()["user"])
}
