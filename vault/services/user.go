package services

import (
	"fmt"
	"net/http"

	"vehicle_vault/vault/auth"
	"vehicle_vault/vault/schema"
	"vehicle_vault/vault/utils"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

type UserService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
}

func (s *UserService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Post("/signup", s.Signup)
		r.Post("/login", s.LoginWithEmail)
		r.Post("/login-with-token", s.LoginWithToken)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)

		r.Get("/list", s.List)
		r.Get("/info", s.Info)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)
		r.Use(auth.AdminOrAbove(s.db))

		r.Post("/create", s.CreateUser)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)
		r.Use(auth.RootAdminOnly(s.db))

		r.Post("/{user_id}/share-policy", s.SetSharePolicy)
	})

	return r
}

type signupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signupResponse struct {
	UserId string `json:"user_id"`
}

func (s *UserService) Signup(w http.ResponseWriter, r *http.Request) {
	var params signupRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if !s.userAuth.AllowDirectSignup() {
		http.Error(w, "direct signup is not supported for this identity provider", http.StatusUnauthorized)
		return
	}

	userId, err := s.userAuth.CreateUser(auth.NewUserArgs{
		Username: params.Username, Email: params.Email, Password: params.Password, Role: schema.RoleAdmin,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	utils.WriteJsonResponse(w, signupResponse{UserId: userId})
}

type loginWithEmailRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	UserId      string `json:"user_id"`
	AccessToken string `json:"access_token"`
}

func (s *UserService) LoginWithEmail(w http.ResponseWriter, r *http.Request) {
	var params loginWithEmailRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	login, err := s.userAuth.LoginWithEmail(params.Email, params.Password)
	if err != nil {
		http.Error(w, fmt.Sprintf("login failed: %v", err), http.StatusUnauthorized)
		return
	}

	utils.WriteJsonResponse(w, loginResponse{UserId: login.UserId, AccessToken: login.AccessToken})
}

type loginWithTokenRequest struct {
	AccessToken string `json:"access_token"`
}

func (s *UserService) LoginWithToken(w http.ResponseWriter, r *http.Request) {
	var params loginWithTokenRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	login, err := s.userAuth.LoginWithToken(params.AccessToken)
	if err != nil {
		http.Error(w, fmt.Sprintf("login failed: %v", err), http.StatusUnauthorized)
		return
	}

	utils.WriteJsonResponse(w, loginResponse{UserId: login.UserId, AccessToken: login.AccessToken})
}

type createUserRequest struct {
	Username     string  `json:"username"`
	Email        string  `json:"email"`
	Password     string  `json:"password"`
	Role         string  `json:"role"`
	SupervisorId *string `json:"supervisor_id,omitempty"`
}

// CreateUser lets an admin create its own subordinates and org/root
// admins create any role.
func (s *UserService) CreateUser(w http.ResponseWriter, r *http.Request) {
	caller, err := auth.PrincipalFromRequest(r, s.db)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	var params createUserRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if caller.Role == schema.RoleAdmin {
		if !schema.IsSubordinateRole(params.Role) {
			http.Error(w, "admins may only create auditors and field agents", http.StatusUnauthorized)
			return
		}
		// An admin's subordinates are always supervised by that admin.
		params.SupervisorId = &caller.Id
	}

	userId, err := s.userAuth.CreateUser(auth.NewUserArgs{
		Username: params.Username, Email: params.Email, Password: params.Password,
		Role: params.Role, SupervisorId: params.SupervisorId,
	})
	if err != nil {
		http.Error(w, fmt.Sprintf("error creating user: %v", err), http.StatusBadRequest)
		return
	}

	utils.WriteJsonResponse(w, signupResponse{UserId: userId})
}

type sharePolicyRequest struct {
	CanShare  bool     `json:"can_share"`
	TargetIds []string `json:"target_ids"`
}

// SetSharePolicy replaces an admin's sharing flag and allow-list. An
// empty allow-list with the flag set means the admin may share with any
// admin.
func (s *UserService) SetSharePolicy(w http.ResponseWriter, r *http.Request) {
	userId := chi.URLParam(r, "user_id")

	var params sharePolicyRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	err := s.db.Transaction(func(txn *gorm.DB) error {
		user, err := schema.GetUser(userId, txn, false)
		if err != nil {
			return err
		}
		if user.Role != schema.RoleAdmin {
			return fmt.Errorf("share policy applies to admins, user %v has role %v", userId, user.Role)
		}

		user.CanShare = params.CanShare
		if result := txn.Save(&user); result.Error != nil {
			return schema.NewDbError("updating user share flag", result.Error)
		}

		if result := txn.Where("user_id = ?", userId).Delete(&schema.UserShareTarget{}); result.Error != nil {
			return schema.NewDbError("clearing share target allow-list", result.Error)
		}

		for _, targetId := range params.TargetIds {
			target, err := schema.GetUser(targetId, txn, false)
			if err != nil {
				return err
			}
			if target.Role != schema.RoleAdmin {
				return fmt.Errorf("share target %v must be an admin, has role %v", targetId, target.Role)
			}

			link := schema.UserShareTarget{UserId: userId, TargetId: targetId}
			if result := txn.Create(&link); result.Error != nil {
				return schema.NewDbError("creating share target entry", result.Error)
			}
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error updating share policy: %v", err), http.StatusBadRequest)
		return
	}

	utils.WriteSuccess(w)
}

type UserInfo struct {
	Id           string  `json:"id"`
	Username     string  `json:"username"`
	Email        string  `json:"email"`
	Role         string  `json:"role"`
	SupervisorId *string `json:"supervisor_id,omitempty"`
	CanShare     bool    `json:"can_share"`
}

func convertToUserInfo(user *schema.User) UserInfo {
	return UserInfo{
		Id:           user.Id,
		Username:     user.Username,
		Email:        user.Email,
		Role:         user.Role,
		SupervisorId: user.SupervisorId,
		CanShare:     user.CanShare,
	}
}

// List returns all users for org and root admins, and an admin's own
// chain (itself plus its subordinates) for everyone else.
func (s *UserService) List(w http.ResponseWriter, r *http.Request) {
	user, err := auth.PrincipalFromRequest(r, s.db)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	var users []schema.User
	var result *gorm.DB
	if schema.IsTopDownRole(user.Role) {
		result = s.db.Find(&users)
	} else if user.Role == schema.RoleAdmin {
		result = s.db.Where("id = ?", user.Id).Or("supervisor_id = ?", user.Id).Find(&users)
	} else {
		users = []schema.User{user}
	}

	if result != nil && result.Error != nil {
		err := schema.NewDbError("retrieving list of users", result.Error)
		http.Error(w, fmt.Sprintf("error listing users: %v", err), http.StatusBadRequest)
		return
	}

	infos := make([]UserInfo, 0, len(users))
	for _, u := range users {
		infos = append(infos, convertToUserInfo(&u))
	}
	utils.WriteJsonResponse(w, infos)
}

func (s *UserService) Info(w http.ResponseWriter, r *http.Request) {
	user, err := auth.PrincipalFromRequest(r, s.db)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	utils.WriteJsonResponse(w, convertToUserInfo(&user))
}
