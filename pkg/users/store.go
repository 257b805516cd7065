package users

import (
	"context"
	"errors"
)

var (
	ErrNotFound  = errors.New("users: not found")
	ErrDuplicate = errors.New("users: username already exists")
)

// Store is the credential store the token issuer consults at login. The
// gateway core treats it as an external collaborator: lookup and creation
// only, password comparison happens in the caller.
type Store interface {
	FindByUsername(ctx context.Context, username string) (User, error)
	FindByID(ctx context.Context, id int64) (User, error)
	Create(ctx context.Context, username, passwordHash, role string) (User, error)
}
