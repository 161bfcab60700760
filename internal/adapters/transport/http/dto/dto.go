package dto

import "strings"

type RegisterDTO struct {
	Username string `form:"username" json:"username" validate:"notblank,max=32"`
	FullName string `form:"fullName" json:"fullName" validate:"notblank,max=128"`
	Email    string `form:"email"    json:"email"    validate:"notblank,email,max=254"`
	Password string `form:"password" json:"password" validate:"notblank,max=128"`
}

func (d RegisterDTO) Trimmed() RegisterDTO {
	d.Username = strings.TrimSpace(d.Username)
	d.FullName = strings.TrimSpace(d.FullName)
	d.Email = strings.TrimSpace(d.Email)
	return d
}

type LoginDTO struct {
	Username string `json:"username" validate:"required_without=Email"`
	Email    string `json:"email"    validate:"required_without=Username"`
	Password string `json:"password" validate:"notblank"`
}

func (d LoginDTO) Trimmed() LoginDTO {
	d.Username = strings.TrimSpace(d.Username)
	d.Email = strings.TrimSpace(d.Email)
	return d
}

type RefreshDTO struct {
	RefreshToken string `json:"refreshToken"`
}

type ChangePasswordDTO struct {
	OldPassword string `json:"oldPassword" validate:"notblank"`
	NewPassword string `json:"newPassword" validate:"notblank,max=128"`
}

type UpdateCredentialsDTO struct {
	Username string `json:"username" validate:"notblank,max=32"`
	FullName string `json:"fullName" validate:"notblank,max=128"`
	Email    string `json:"email"    validate:"notblank,email,max=254"`
}

func (d UpdateCredentialsDTO) Trimmed() UpdateCredentialsDTO {
	d.Username = strings.TrimSpace(d.Username)
	d.FullName = strings.TrimSpace(d.FullName)
	d.Email = strings.TrimSpace(d.Email)
	return d
}
