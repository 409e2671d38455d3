package auth

import (
	"errors"

	"github.com/go-chi/chi/v5"
)

type LoginResult struct {
	UserId      string
	AccessToken string
}

type NewUserArgs struct {
	Username     string
	Email        string
	Password     string
	Role         string
	SupervisorId *string
}

type IdentityProvider interface {
	AuthMiddleware() chi.Middlewares

	AllowDirectSignup() bool

	LoginWithEmail(email, password string) (LoginResult, error)

	LoginWithToken(accessToken string) (LoginResult, error)

	CreateUser(args NewUserArgs) (string, error)
}

var ErrUserEmailAlreadyExists = errors.New("email is already in use")
var ErrUsernameAlreadyExists = errors.New("username is already in use")
