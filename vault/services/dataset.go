package services

import (
	"errors"
	"fmt"
	"net/http"

	"vehicle_vault/vault/access"
	"vehicle_vault/vault/auth"
	"vehicle_vault/vault/ingest"
	"vehicle_vault/vault/quota"
	"vehicle_vault/vault/schema"
	"vehicle_vault/vault/utils"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

type DatasetService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
	resolver *access.Resolver
	ingestor *ingest.Ingestor
}

func (s *DatasetService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)

		r.Get("/list", s.List)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)
		r.Use(auth.AdminOrAbove(s.db))

		r.Post("/upload", s.Upload)
		r.Delete("/{dataset_id}", s.Delete)

		r.Post("/{dataset_id}/shares/{user_id}", s.Share)
		r.Delete("/{dataset_id}/shares/{user_id}", s.Unshare)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)
		r.Use(auth.OrgAdminOrAbove(s.db))

		r.Post("/{dataset_id}/assignees/{user_id}", s.AddAssignee)
		r.Delete("/{dataset_id}/assignees/{user_id}", s.RemoveAssignee)
	})

	return r
}

type uploadRequest struct {
	Filename       string                 `json:"filename"`
	AssignedToId   *string                `json:"assigned_to_id,omitempty"`
	CoAssigneeIds  []string               `json:"co_assignee_ids,omitempty"`
	ShareTargetIds []string               `json:"share_target_ids,omitempty"`
	Records        []schema.VehicleRecord `json:"records"`
}

type uploadResponse struct {
	DatasetId     string `json:"dataset_id"`
	Status        string `json:"status"`
	RecordCount   int64  `json:"record_count"`
	FailedBatches int64  `json:"failed_batches"`
}

// Upload is the entry point for the ingestion pipeline collaborator:
// it receives parsed rows plus assignment metadata, never the source
// spreadsheet itself.
func (s *DatasetService) Upload(w http.ResponseWriter, r *http.Request) {
	uploader, err := auth.PrincipalFromRequest(r, s.db)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	var params uploadRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}
	if params.Filename == "" {
		http.Error(w, "'filename' field missing", http.StatusBadRequest)
		return
	}

	dataset, err := s.ingestor.IngestDataset(r.Context(), uploader, ingest.Upload{
		Filename:       params.Filename,
		AssignedToId:   params.AssignedToId,
		CoAssigneeIds:  params.CoAssigneeIds,
		ShareTargetIds: params.ShareTargetIds,
	}, params.Records)

	if err != nil {
		var exceeded quota.QuotaExceededError
		switch {
		case errors.As(err, &exceeded):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, quota.ErrRoleQuotaMissing):
			http.Error(w, err.Error(), http.StatusInternalServerError)
		case errors.Is(err, access.ErrAccessDenied):
			http.Error(w, err.Error(), http.StatusForbidden)
		default:
			http.Error(w, fmt.Sprintf("error ingesting dataset: %v", err), http.StatusBadRequest)
		}
		return
	}

	utils.WriteJsonResponse(w, uploadResponse{
		DatasetId:     dataset.Id,
		Status:        dataset.Status,
		RecordCount:   dataset.RecordCount,
		FailedBatches: dataset.FailedBatches,
	})
}

type DatasetInfo struct {
	DatasetId   string `json:"dataset_id"`
	Filename    string `json:"filename"`
	Status      string `json:"status"`
	RecordCount int64  `json:"record_count"`
	Tier        string `json:"tier"`
	OwnData     bool   `json:"own_data"`
	UploadedAt  string `json:"uploaded_at"`
}

// List returns the caller's accessible datasets with filenames already
// masked by the visibility engine. Denied datasets are filtered out,
// never masked.
func (s *DatasetService) List(w http.ResponseWriter, r *http.Request) {
	user, err := auth.PrincipalFromRequest(r, s.db)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	datasets, err := s.resolver.AccessibleDatasets(user)
	if err != nil {
		http.Error(w, fmt.Sprintf("error listing datasets: %v", err), http.StatusBadRequest)
		return
	}

	subject, _ := access.SubjectAdminId(user)

	infos := make([]DatasetInfo, 0, len(datasets))
	for _, dataset := range datasets {
		tier := access.DecideTier(user, dataset)
		if tier == access.Denied {
			continue
		}
		infos = append(infos, DatasetInfo{
			DatasetId:   dataset.Id,
			Filename:    access.FilenameFor(user, dataset),
			Status:      dataset.Status,
			RecordCount: dataset.RecordCount,
			Tier:        tier.String(),
			OwnData:     access.PrimaryOwnerId(dataset) == subject,
			UploadedAt:  dataset.UploadedAt.Format("2006-01-02 15:04:05"),
		})
	}

	utils.WriteJsonResponse(w, infos)
}

// canManage reports whether the caller may delete or re-share a
// dataset: org and root admins always, otherwise only the primary
// owner.
func canManage(user schema.User, dataset schema.Dataset) bool {
	if schema.IsTopDownRole(user.Role) {
		return true
	}
	return access.PrimaryOwnerId(dataset) == user.Id
}

func (s *DatasetService) Delete(w http.ResponseWriter, r *http.Request) {
	user, err := auth.PrincipalFromRequest(r, s.db)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	datasetId := chi.URLParam(r, "dataset_id")

	dataset, err := schema.GetDataset(datasetId, s.db, false)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, schema.ErrNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}

	if !canManage(user, dataset) {
		http.Error(w, fmt.Sprintf("user %v may not delete dataset %v", user.Id, datasetId), http.StatusForbidden)
		return
	}

	if err := s.ingestor.DeleteDataset(datasetId); err != nil {
		http.Error(w, fmt.Sprintf("error deleting dataset: %v", err), http.StatusBadRequest)
		return
	}

	utils.WriteSuccess(w)
}

// Share grants another admin restricted access to an admin-uploaded
// dataset. Top-down datasets use co-assignees instead.
func (s *DatasetService) Share(w http.ResponseWriter, r *http.Request) {
	user, err := auth.PrincipalFromRequest(r, s.db)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	datasetId, targetId := chi.URLParam(r, "dataset_id"), chi.URLParam(r, "user_id")

	err = s.db.Transaction(func(txn *gorm.DB) error {
		dataset, err := schema.GetDataset(datasetId, txn, false)
		if err != nil {
			return err
		}

		if schema.IsTopDownRole(dataset.UploaderRole) {
			return fmt.Errorf("dataset %v is a top-down assignment, use co-assignees instead of shares", datasetId)
		}
		if !canManage(user, dataset) {
			return fmt.Errorf("user %v may not share dataset %v: %w", user.Id, datasetId, access.ErrAccessDenied)
		}
		if user.Role == schema.RoleAdmin {
			if !user.CanShare {
				return fmt.Errorf("admin %v is not permitted to share datasets: %w", user.Id, access.ErrAccessDenied)
			}
			if len(user.ShareTargets) > 0 {
				allowed := false
				for _, t := range user.ShareTargets {
					if t.TargetId == targetId {
						allowed = true
						break
					}
				}
				if !allowed {
					return fmt.Errorf("admin %v may not share with %v: %w", user.Id, targetId, access.ErrAccessDenied)
				}
			}
		}

		target, err := schema.GetUser(targetId, txn, false)
		if err != nil {
			return err
		}
		if target.Role != schema.RoleAdmin {
			return fmt.Errorf("share target %v must be an admin, has role %v", targetId, target.Role)
		}

		link := schema.DatasetShare{DatasetId: datasetId, UserId: targetId}
		if result := txn.Create(&link); result.Error != nil {
			return schema.NewDbError("creating dataset share entry", result.Error)
		}

		return nil
	})

	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, access.ErrAccessDenied) {
			status = http.StatusForbidden
		}
		http.Error(w, fmt.Sprintf("error sharing dataset: %v", err), status)
		return
	}

	s.resolver.Invalidate(targetId)
	utils.WriteSuccess(w)
}

func (s *DatasetService) Unshare(w http.ResponseWriter, r *http.Request) {
	user, err := auth.PrincipalFromRequest(r, s.db)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	datasetId, targetId := chi.URLParam(r, "dataset_id"), chi.URLParam(r, "user_id")

	err = s.db.Transaction(func(txn *gorm.DB) error {
		dataset, err := schema.GetDataset(datasetId, txn, false)
		if err != nil {
			return err
		}
		if !canManage(user, dataset) {
			return fmt.Errorf("user %v may not unshare dataset %v: %w", user.Id, datasetId, access.ErrAccessDenied)
		}

		result := txn.Delete(&schema.DatasetShare{DatasetId: datasetId, UserId: targetId})
		if result.Error != nil {
			return schema.NewDbError("deleting dataset share entry", result.Error)
		}
		return nil
	})

	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, access.ErrAccessDenied) {
			status = http.StatusForbidden
		}
		http.Error(w, fmt.Sprintf("error unsharing dataset: %v", err), status)
		return
	}

	s.resolver.Invalidate(targetId)
	utils.WriteSuccess(w)
}

func (s *DatasetService) AddAssignee(w http.ResponseWriter, r *http.Request) {
	datasetId, userId := chi.URLParam(r, "dataset_id"), chi.URLParam(r, "user_id")

	err := s.db.Transaction(func(txn *gorm.DB) error {
		dataset, err := schema.GetDataset(datasetId, txn, false)
		if err != nil {
			return err
		}
		if !schema.IsTopDownRole(dataset.UploaderRole) {
			return fmt.Errorf("dataset %v is an admin upload, use shares instead of co-assignees", datasetId)
		}

		target, err := schema.GetUser(userId, txn, false)
		if err != nil {
			return err
		}
		if target.Role != schema.RoleAdmin {
			return fmt.Errorf("co-assignee %v must be an admin, has role %v", userId, target.Role)
		}

		link := schema.DatasetAssignee{DatasetId: datasetId, UserId: userId}
		if result := txn.Create(&link); result.Error != nil {
			return schema.NewDbError("creating dataset assignee entry", result.Error)
		}
		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error adding co-assignee: %v", err), http.StatusBadRequest)
		return
	}

	s.resolver.Invalidate(userId)
	utils.WriteSuccess(w)
}

func (s *DatasetService) RemoveAssignee(w http.ResponseWriter, r *http.Request) {
	datasetId, userId := chi.URLParam(r, "dataset_id"), chi.URLParam(r, "user_id")

	result := s.db.Delete(&schema.DatasetAssignee{DatasetId: datasetId, UserId: userId})
	if result.Error != nil {
		err := schema.NewDbError("deleting dataset assignee entry", result.Error)
		http.Error(w, fmt.Sprintf("error removing co-assignee: %v", err), http.StatusBadRequest)
		return
	}

	s.resolver.Invalidate(userId)
	utils.WriteSuccess(w)
}
