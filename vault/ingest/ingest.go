package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"vehicle_vault/vault/access"
	"vehicle_vault/vault/quota"
	"vehicle_vault/vault/schema"
	"vehicle_vault/vault/search"
	"vehicle_vault/vault/storage"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const defaultBatchSize = 500

type Upload struct {
	Filename       string
	AssignedToId   *string
	CoAssigneeIds  []string
	ShareTargetIds []string
}

// Ingestor is the edge between the upload pipeline and the core: it
// admits a dataset against the uploader's quota, snapshots provenance,
// writes the row blob, and bulk-inserts index entries. Datasets are
// immutable once ingested; a re-upload creates a new dataset.
type Ingestor struct {
	db        *gorm.DB
	blobs     *storage.BlobResolver
	enforcer  *quota.Enforcer
	resolver  *access.Resolver
	batchSize int
}

func NewIngestor(db *gorm.DB, blobs *storage.BlobResolver, enforcer *quota.Enforcer, resolver *access.Resolver) *Ingestor {
	return &Ingestor{db: db, blobs: blobs, enforcer: enforcer, resolver: resolver, batchSize: defaultBatchSize}
}

// IngestDataset validates the assignment shape for the uploader's role,
// checks quota, then ingests. Index insertion is best effort: a failed
// batch is logged and counted without aborting the remaining batches,
// and the dataset lands in the partial terminal state instead of
// failing the whole ingest.
func (ing *Ingestor) IngestDataset(ctx context.Context, uploader schema.User, upload Upload, records []schema.VehicleRecord) (schema.Dataset, error) {
	if schema.IsSubordinateRole(uploader.Role) {
		return schema.Dataset{}, fmt.Errorf("role %v cannot upload datasets: %w", uploader.Role, access.ErrAccessDenied)
	}

	if err := ing.validateAssignment(uploader, upload); err != nil {
		return schema.Dataset{}, err
	}

	if err := ing.enforcer.CheckIngest(uploader, int64(len(records))); err != nil {
		return schema.Dataset{}, err
	}

	dataset := schema.Dataset{
		Id:           uuid.New().String(),
		Filename:     upload.Filename,
		UploadedAt:   time.Now().UTC(),
		UploaderId:   uploader.Id,
		UploaderRole: uploader.Role,
		AssignedToId: upload.AssignedToId,
		RecordCount:  int64(len(records)),
		Status:       schema.DatasetProcessing,
	}

	err := ing.db.Transaction(func(txn *gorm.DB) error {
		if result := txn.Create(&dataset); result.Error != nil {
			return schema.NewDbError("creating dataset entry", result.Error)
		}

		for _, userId := range upload.CoAssigneeIds {
			link := schema.DatasetAssignee{DatasetId: dataset.Id, UserId: userId}
			if result := txn.Create(&link); result.Error != nil {
				return schema.NewDbError("creating dataset assignee entry", result.Error)
			}
		}

		for _, userId := range upload.ShareTargetIds {
			link := schema.DatasetShare{DatasetId: dataset.Id, UserId: userId}
			if result := txn.Create(&link); result.Error != nil {
				return schema.NewDbError("creating dataset share entry", result.Error)
			}
		}

		return nil
	})
	if err != nil {
		return schema.Dataset{}, err
	}

	blobPath, err := ing.blobs.WriteRows(dataset, records)
	if err != nil {
		ing.markStatus(&dataset, schema.DatasetFailed, 0, 0)
		return dataset, err
	}
	dataset.BlobPath = blobPath

	indexed, failedBatches := ing.insertIndexEntries(ctx, dataset.Id, records)

	status := schema.DatasetCompleted
	if failedBatches > 0 {
		status = schema.DatasetPartial
	}
	if indexed == 0 && len(records) > 0 {
		status = schema.DatasetFailed
	}
	ing.markStatus(&dataset, status, indexed, failedBatches)

	ing.resolver.InvalidateAll()

	slog.Info("dataset ingested",
		"dataset_id", dataset.Id, "uploader_id", uploader.Id, "status", status,
		"records", len(records), "indexed", indexed, "failed_batches", failedBatches)

	return dataset, nil
}

func (ing *Ingestor) validateAssignment(uploader schema.User, upload Upload) error {
	if schema.IsTopDownRole(uploader.Role) {
		if upload.AssignedToId == nil {
			return fmt.Errorf("uploads by %v must designate an assigned admin", uploader.Role)
		}
		if len(upload.ShareTargetIds) != 0 {
			return fmt.Errorf("share targets are only valid for admin uploads")
		}
		if err := ing.checkAdminIds(append([]string{*upload.AssignedToId}, upload.CoAssigneeIds...)); err != nil {
			return err
		}
		return nil
	}

	// Admin upload: the uploader is the primary owner.
	if upload.AssignedToId != nil {
		return fmt.Errorf("admin uploads cannot designate an assigned admin")
	}
	if len(upload.CoAssigneeIds) != 0 {
		return fmt.Errorf("co-assignees are only valid for org or root admin uploads")
	}

	if len(upload.ShareTargetIds) == 0 {
		return nil
	}
	if !uploader.CanShare {
		return fmt.Errorf("admin %v is not permitted to share datasets: %w", uploader.Id, access.ErrAccessDenied)
	}
	if len(uploader.ShareTargets) > 0 {
		allowed := make(map[string]struct{}, len(uploader.ShareTargets))
		for _, t := range uploader.ShareTargets {
			allowed[t.TargetId] = struct{}{}
		}
		for _, target := range upload.ShareTargetIds {
			if _, ok := allowed[target]; !ok {
				return fmt.Errorf("admin %v may not share with %v: %w", uploader.Id, target, access.ErrAccessDenied)
			}
		}
	}
	return ing.checkAdminIds(upload.ShareTargetIds)
}

func (ing *Ingestor) checkAdminIds(userIds []string) error {
	for _, userId := range userIds {
		user, err := schema.GetUser(userId, ing.db, false)
		if err != nil {
			return err
		}
		if user.Role != schema.RoleAdmin {
			return fmt.Errorf("user %v has role %v, datasets can only be assigned or shared to admins", userId, user.Role)
		}
	}
	return nil
}

// insertIndexEntries bulk inserts the searchable keys in fixed size
// batches. Ids are normalized the same way queries are, so matching is
// case insensitive without per-query folding.
func (ing *Ingestor) insertIndexEntries(ctx context.Context, datasetId string, records []schema.VehicleRecord) (int64, int64) {
	var indexed, failedBatches int64

	for start := 0; start < len(records); start += ing.batchSize {
		end := start + ing.batchSize
		if end > len(records) {
			end = len(records)
		}

		batch := make([]schema.IndexEntry, 0, end-start)
		for row := start; row < end; row++ {
			batch = append(batch, schema.IndexEntry{
				Id:             uuid.New().String(),
				RegistrationId: search.NormalizeQuery(records[row].RegistrationId),
				ChassisId:      search.NormalizeQuery(records[row].ChassisId),
				DatasetId:      datasetId,
				RowNumber:      int64(row),
			})
		}

		result := ing.db.WithContext(ctx).Create(&batch)
		if result.Error != nil {
			failedBatches++
			slog.Error("index batch insertion failed",
				"dataset_id", datasetId, "batch_start", start, "error", result.Error)
			continue
		}
		indexed += int64(len(batch))
	}

	return indexed, failedBatches
}

func (ing *Ingestor) markStatus(dataset *schema.Dataset, status string, recordCount, failedBatches int64) {
	dataset.Status = status
	dataset.RecordCount = recordCount
	dataset.FailedBatches = failedBatches

	result := ing.db.Model(&schema.Dataset{}).Where("id = ?", dataset.Id).Updates(map[string]interface{}{
		"status":         status,
		"record_count":   recordCount,
		"failed_batches": failedBatches,
		"blob_path":      dataset.BlobPath,
	})
	if result.Error != nil {
		slog.Error("error updating dataset status", "dataset_id", dataset.Id, "status", status, "error", result.Error)
	}
}

// DeleteDataset removes the dataset row, its index entries en masse,
// its link rows, and its blob, then invalidates the accessible set
// cache.
func (ing *Ingestor) DeleteDataset(datasetId string) error {
	err := ing.db.Transaction(func(txn *gorm.DB) error {
		if result := txn.Where("dataset_id = ?", datasetId).Delete(&schema.IndexEntry{}); result.Error != nil {
			return schema.NewDbError("deleting index entries", result.Error)
		}
		if result := txn.Where("dataset_id = ?", datasetId).Delete(&schema.DatasetAssignee{}); result.Error != nil {
			return schema.NewDbError("deleting dataset assignees", result.Error)
		}
		if result := txn.Where("dataset_id = ?", datasetId).Delete(&schema.DatasetShare{}); result.Error != nil {
			return schema.NewDbError("deleting dataset shares", result.Error)
		}
		if result := txn.Delete(&schema.Dataset{Id: datasetId}); result.Error != nil {
			return schema.NewDbError("deleting dataset", result.Error)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := ing.blobs.DeleteRows(datasetId); err != nil {
		slog.Error("error deleting dataset blob", "dataset_id", datasetId, "error", err)
	}

	ing.resolver.InvalidateAll()
	return nil
}
