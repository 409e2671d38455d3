package services

import (
	"errors"
	"fmt"
	"net/http"

	"vehicle_vault/vault/auth"
	"vehicle_vault/vault/quota"
	"vehicle_vault/vault/schema"
	"vehicle_vault/vault/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type QuotaService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
	enforcer *quota.Enforcer
}

func (s *QuotaService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)

		r.Get("/", s.SelfReport)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)
		r.Use(auth.RootAdminOnly(s.db))

		r.Get("/{user_id}", s.Report)
		r.Post("/limit", s.SetLimit)
		r.Delete("/limit/{user_id}", s.DeactivateLimit)
		r.Post("/role-default", s.SetRoleDefault)
	})

	return r
}

func (s *QuotaService) writeReport(w http.ResponseWriter, user schema.User) {
	report, err := s.enforcer.Report(user)
	if err != nil {
		if errors.Is(err, quota.ErrRoleQuotaMissing) {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		http.Error(w, fmt.Sprintf("error computing quota report: %v", err), http.StatusBadRequest)
		return
	}

	utils.WriteJsonResponse(w, report)
}

func (s *QuotaService) SelfReport(w http.ResponseWriter, r *http.Request) {
	user, err := auth.PrincipalFromRequest(r, s.db)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	s.writeReport(w, user)
}

func (s *QuotaService) Report(w http.ResponseWriter, r *http.Request) {
	userId := chi.URLParam(r, "user_id")

	user, err := schema.GetUser(userId, s.db, false)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, schema.ErrNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}

	s.writeReport(w, user)
}

type setLimitRequest struct {
	UserId        string `json:"user_id"`
	RecordCeiling int64  `json:"record_ceiling"`
	Description   string `json:"description"`
}

// SetLimit installs an individual ceiling override, replacing any
// previous override for the user.
func (s *QuotaService) SetLimit(w http.ResponseWriter, r *http.Request) {
	caller, err := auth.PrincipalFromRequest(r, s.db)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	var params setLimitRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}
	if params.RecordCeiling < 0 {
		http.Error(w, "'record_ceiling' must not be negative", http.StatusBadRequest)
		return
	}

	newLimit := schema.StorageLimit{
		Id:            uuid.New().String(),
		UserId:        params.UserId,
		RecordCeiling: params.RecordCeiling,
		Description:   params.Description,
		SetById:       caller.Id,
		Active:        true,
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		exists, err := schema.UserExists(txn, params.UserId)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("no user with id %v: %w", params.UserId, schema.ErrNotFound)
		}

		result := txn.Model(&schema.StorageLimit{}).Where("user_id = ?", params.UserId).Update("active", false)
		if result.Error != nil {
			return schema.NewDbError("deactivating previous storage limits", result.Error)
		}

		if result := txn.Create(&newLimit); result.Error != nil {
			return schema.NewDbError("creating storage limit entry", result.Error)
		}

		return nil
	})

	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, schema.ErrNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, fmt.Sprintf("error setting storage limit: %v", err), status)
		return
	}

	utils.WriteJsonResponse(w, map[string]string{"limit_id": newLimit.Id})
}

// DeactivateLimit soft-deletes a user's override, reverting the user to
// the role default.
func (s *QuotaService) DeactivateLimit(w http.ResponseWriter, r *http.Request) {
	userId := chi.URLParam(r, "user_id")

	result := s.db.Model(&schema.StorageLimit{}).Where("user_id = ?", userId).Update("active", false)
	if result.Error != nil {
		err := schema.NewDbError("deactivating storage limits", result.Error)
		http.Error(w, fmt.Sprintf("error deactivating storage limit: %v", err), http.StatusBadRequest)
		return
	}

	utils.WriteSuccess(w)
}

type setRoleDefaultRequest struct {
	Role          string `json:"role"`
	RecordCeiling int64  `json:"record_ceiling"`
}

func (s *QuotaService) SetRoleDefault(w http.ResponseWriter, r *http.Request) {
	var params setRoleDefaultRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if err := schema.CheckValidRole(params.Role); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if params.RecordCeiling < 0 {
		http.Error(w, "'record_ceiling' must not be negative", http.StatusBadRequest)
		return
	}

	result := s.db.Save(&schema.RoleQuota{Role: params.Role, RecordCeiling: params.RecordCeiling})
	if result.Error != nil {
		err := schema.NewDbError("updating role quota", result.Error)
		http.Error(w, fmt.Sprintf("error updating role default: %v", err), http.StatusBadRequest)
		return
	}

	utils.WriteSuccess(w)
}
