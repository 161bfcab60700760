package http

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"github.com/Miraines/MoonyAndStarry/account-service/internal/adapters/transport/http/dto"
	"github.com/Miraines/MoonyAndStarry/account-service/internal/adapters/transport/http/middleware"
	appsvc "github.com/Miraines/MoonyAndStarry/account-service/internal/app/account/service"
	authErrors "github.com/Miraines/MoonyAndStarry/account-service/internal/domain/account/errors"
	"github.com/Miraines/MoonyAndStarry/account-service/internal/domain/account/model"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"io"
	"net/http"
)

type Handler struct {
	session      appsvc.SessionService
	profile      appsvc.ProfileService
	cookieDomain string
	uploadDir    string
	maxUpload    int64
	log          *zap.Logger
}

func NewHandler(
	session appsvc.SessionService,
	profile appsvc.ProfileService,
	cookieDomain, uploadDir string,
	maxUpload int64,
	log *zap.Logger,
) *Handler {
	return &Handler{
		session:      session,
		profile:      profile,
		cookieDomain: cookieDomain,
		uploadDir:    uploadDir,
		maxUpload:    maxUpload,
		log:          log,
	}
}

// Register вешает ручки пользователей на rg.
func (h *Handler) Register(rg *gin.RouterGroup) {
	auth := middleware.RequireAuth(h.session)

	rg.POST("/register", middleware.SaveUploads(h.uploadDir, h.maxUpload, "avatar", "coverImage"), h.register)
	rg.POST("/login", h.login)
	rg.POST("/refresh-token", h.refresh)

	rg.POST("/logout", auth, h.logout)
	rg.POST("/change-password", auth, h.changePassword)
	rg.POST("/update-credential", auth, h.updateCredentials)
	rg.POST("/update-avatar", auth, middleware.SaveUploads(h.uploadDir, h.maxUpload, "avatar"), h.updateAvatar)
	rg.GET("/current-user", auth, h.currentUser)
}

func digest(v string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(v)))
}

func (h *Handler) register(c *gin.Context) {
	var body dto.RegisterDTO
	if err := c.ShouldBind(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.log.Info("/register", zap.String("user", digest(body.Email)))

	user, err := h.profile.Register(
		c.Request.Context(),
		body,
		middleware.UploadedPath(c, "avatar"),
		middleware.UploadedPath(c, "coverImage"),
	)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *Handler) login(c *gin.Context) {
	var body dto.LoginDTO
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	login := body.Email
	if body.Username != "" {
		login = body.Username
	}
	h.log.Info("/login",
		zap.String("user", digest(login)),
		zap.Bool("by_username", body.Username != ""),
	)

	res, err := h.session.Login(c.Request.Context(), body)
	if err != nil {
		h.handleError(c, err)
		return
	}
	h.setTokenCookies(c, res.Tokens)
	c.JSON(http.StatusOK, gin.H{
		"user":         res.User,
		"accessToken":  res.Tokens.AccessToken,
		"refreshToken": res.Tokens.RefreshToken,
		"expiresIn":    int(res.Tokens.AccessTTL.Seconds()),
	})
}

func refreshTokenFrom(c *gin.Context) (string, error) {
	if tok, err := c.Cookie(middleware.RefreshCookie); err == nil && tok != "" {
		return tok, nil
	}
	if tok := c.GetHeader("X-Refresh-Token"); tok != "" {
		return tok, nil
	}
	var body dto.RefreshDTO
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return body.RefreshToken, nil
}

func (h *Handler) refresh(c *gin.Context) {
	raw, err := refreshTokenFrom(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pair, err := h.session.Refresh(c.Request.Context(), raw)
	if err != nil {
		h.handleError(c, err)
		return
	}
	h.setTokenCookies(c, pair)
	c.JSON(http.StatusOK, gin.H{
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
		"expiresIn":    int(pair.AccessTTL.Seconds()),
	})
}

func (h *Handler) logout(c *gin.Context) {
	id, _ := middleware.IdentityFrom(c)
	h.log.Info("/logout", zap.String("user_id", id.User.ID.String()))

	if err := h.session.Logout(c.Request.Context(), id); err != nil {
		h.handleError(c, err)
		return
	}
	h.clearTokenCookies(c)
	c.JSON(http.StatusOK, gin.H{})
}

func (h *Handler) changePassword(c *gin.Context) {
	var body dto.ChangePasswordDTO
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, _ := middleware.IdentityFrom(c)

	if err := h.session.ChangePassword(c.Request.Context(), id.User.ID, body); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

func (h *Handler) updateCredentials(c *gin.Context) {
	var body dto.UpdateCredentialsDTO
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, _ := middleware.IdentityFrom(c)

	user, err := h.profile.UpdateCredentials(c.Request.Context(), id.User.ID, body)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *Handler) updateAvatar(c *gin.Context) {
	id, _ := middleware.IdentityFrom(c)

	user, err := h.profile.UpdateAvatar(c.Request.Context(), id.User.ID, middleware.UploadedPath(c, "avatar"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *Handler) currentUser(c *gin.Context) {
	id, _ := middleware.IdentityFrom(c)

	user, err := h.profile.CurrentUser(c.Request.Context(), id.User.ID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *Handler) setTokenCookies(c *gin.Context, pair model.TokenPair) {
	// Access
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(
		middleware.AccessCookie,
		pair.AccessToken,
		int(pair.AccessTTL.Seconds()),
		"/",
		h.cookieDomain,
		true, // secure
		true, // httpOnly
	)

	// Refresh
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(
		middleware.RefreshCookie,
		pair.RefreshToken,
		int(pair.RefreshTTL.Seconds()),
		"/",
		h.cookieDomain,
		true,
		true,
	)
}

func (h *Handler) clearTokenCookies(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AccessCookie, "", -1, "/", h.cookieDomain, true, true)
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.RefreshCookie, "", -1, "/", h.cookieDomain, true, true)
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case authErrors.IsInvalidArgument(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case authErrors.IsInvalidCredentials(err):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
	case authErrors.IsInvalidToken(err):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
	case authErrors.IsUnauthenticated(err):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized request"})
	case authErrors.IsAlreadyExists(err):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case authErrors.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": "user does not exist"})
	case authErrors.IsUploadFailed(err):
		_ = c.Error(err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "media upload failed"})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
