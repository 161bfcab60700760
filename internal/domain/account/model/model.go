package model

import (
	"github.com/google/uuid"
	"time"
)

type User struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey"`
	Username         string    `gorm:"not null;uniqueIndex"`
	Email            string    `gorm:"not null;uniqueIndex"`
	FullName         string    `gorm:"not null"`
	PasswordHash     string    `gorm:"not null"`
	AvatarURL        string    `gorm:"not null"`
	CoverImageURL    string    `gorm:"not null;default:''"`
	RefreshTokenHash *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (User) TableName() string {
	return "users"
}

// PublicUser: публичное представление User. Хеш пароля и refresh-токен
// сюда не попадают никогда.
type PublicUser struct {
	ID            uuid.UUID `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	FullName      string    `json:"fullName"`
	AvatarURL     string    `json:"avatar"`
	CoverImageURL string    `json:"coverImage"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func (u User) Public() PublicUser {
	return PublicUser{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		FullName:      u.FullName,
		AvatarURL:     u.AvatarURL,
		CoverImageURL: u.CoverImageURL,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

// Identity прикрепляется к запросу после успешной аутентификации.
type Identity struct {
	User      PublicUser
	TokenID   string
	ExpiresAt time.Time
}

type TokenPair struct {
	AccessToken     string
	RefreshToken    string
	AccessTTL       time.Duration
	RefreshTTL      time.Duration
	UserId          uuid.UUID
	RefreshTokenJTI string
}

type LoginResult struct {
	User   PublicUser
	Tokens TokenPair
}
