package auth

import (
	"context"
	"fmt"

	"vehicle_vault/vault/schema"

	"github.com/Nerzal/gocloak/v13"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// KeycloakIdentityProvider delegates credential checks to a Keycloak
// realm. User rows (role, supervisor link, share policy) still live in
// the local database; Keycloak only owns the credentials, and logins
// are exchanged for the same local JWT the basic provider issues so
// the middleware stack is identical for both providers.
type KeycloakIdentityProvider struct {
	client *gocloak.GoCloak

	realm        string
	clientId     string
	clientSecret string

	adminUsername string
	adminPassword string

	jwtManager *JwtManager
	db         *gorm.DB
}

type KeycloakArgs struct {
	ServerUrl     string
	Realm         string
	ClientId      string
	ClientSecret  string
	AdminUsername string
	AdminPassword string
}

func NewKeycloakIdentityProvider(args KeycloakArgs, db *gorm.DB) IdentityProvider {
	return &KeycloakIdentityProvider{
		client:        gocloak.NewClient(args.ServerUrl),
		realm:         args.Realm,
		clientId:      args.ClientId,
		clientSecret:  args.ClientSecret,
		adminUsername: args.AdminUsername,
		adminPassword: args.AdminPassword,
		jwtManager:    NewJwtManager(),
		db:            db,
	}
}

func (auth *KeycloakIdentityProvider) AuthMiddleware() chi.Middlewares {
	return chi.Middlewares{auth.jwtManager.Verifier(), auth.jwtManager.Authenticator()}
}

func (auth *KeycloakIdentityProvider) AllowDirectSignup() bool {
	return false
}

func (auth *KeycloakIdentityProvider) localLogin(email string) (LoginResult, error) {
	var user schema.User
	result := auth.db.Find(&user, "email = ?", email)
	if result.Error != nil {
		return LoginResult{}, schema.NewDbError("locating user for email", result.Error)
	}
	if result.RowsAffected != 1 {
		return LoginResult{}, fmt.Errorf("no user found with email %v", email)
	}

	token, err := auth.jwtManager.CreateUserJwt(user.Id)
	if err != nil {
		return LoginResult{}, fmt.Errorf("login failed: %w", err)
	}

	return LoginResult{UserId: user.Id, AccessToken: token}, nil
}

func (auth *KeycloakIdentityProvider) LoginWithEmail(email, password string) (LoginResult, error) {
	ctx := context.Background()

	_, err := auth.client.Login(ctx, auth.clientId, auth.clientSecret, auth.realm, email, password)
	if err != nil {
		return LoginResult{}, fmt.Errorf("keycloak login failed: %w", err)
	}

	return auth.localLogin(email)
}

func (auth *KeycloakIdentityProvider) LoginWithToken(accessToken string) (LoginResult, error) {
	ctx := context.Background()

	info, err := auth.client.GetUserInfo(ctx, accessToken, auth.realm)
	if err != nil {
		return LoginResult{}, fmt.Errorf("keycloak token verification failed: %w", err)
	}
	if info.Email == nil {
		return LoginResult{}, fmt.Errorf("keycloak token carries no email claim")
	}

	return auth.localLogin(*info.Email)
}

func (auth *KeycloakIdentityProvider) CreateUser(args NewUserArgs) (string, error) {
	if err := schema.CheckValidRole(args.Role); err != nil {
		return "", err
	}
	if schema.IsSubordinateRole(args.Role) && args.SupervisorId == nil {
		return "", fmt.Errorf("role %v requires a supervising admin", args.Role)
	}

	ctx := context.Background()

	adminToken, err := auth.client.LoginAdmin(ctx, auth.adminUsername, auth.adminPassword, auth.realm)
	if err != nil {
		return "", fmt.Errorf("keycloak admin login failed: %w", err)
	}

	keycloakId, err := auth.client.CreateUser(ctx, adminToken.AccessToken, auth.realm, gocloak.User{
		Username: gocloak.StringP(args.Username),
		Email:    gocloak.StringP(args.Email),
		Enabled:  gocloak.BoolP(true),
	})
	if err != nil {
		return "", fmt.Errorf("error creating keycloak user: %w", err)
	}

	err = auth.client.SetPassword(ctx, adminToken.AccessToken, keycloakId, auth.realm, args.Password, false)
	if err != nil {
		return "", fmt.Errorf("error setting keycloak user password: %w", err)
	}

	newUser := schema.User{
		Id:           uuid.New().String(),
		Username:     args.Username,
		Email:        args.Email,
		Role:         args.Role,
		SupervisorId: args.SupervisorId,
	}

	result := auth.db.Create(&newUser)
	if result.Error != nil {
		return "", schema.NewDbError("creating new user entry", result.Error)
	}

	return newUser.Id, nil
}
