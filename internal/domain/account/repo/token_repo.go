package repo

import (
	"context"
	"time"
)

type TokenRepo interface {
	// RevokeAccess запрещает токен jti до момента until.
	RevokeAccess(ctx context.Context, jti string, until time.Time) error

	IsAccessRevoked(ctx context.Context, jti string) (bool, error)
}
