package schema

import (
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("not found")

type DbError struct {
	action string
	err    error
}

func NewDbError(action string, err error) error {
	slog.Error("sql error", "action", action, "error", err)
	return DbError{action: action, err: err}
}

func (e DbError) Error() string {
	return fmt.Sprintf("sql error while %v: %v", e.action, e.err)
}

func (e DbError) Unwrap() error {
	return e.err
}

func GetUser(userId string, db *gorm.DB, loadShareTargets bool) (User, error) {
	var user User

	var result *gorm.DB = db
	if loadShareTargets {
		result = result.Preload("ShareTargets")
	}
	result = result.First(&user, "id = ?", userId)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return user, fmt.Errorf("no user with id %v: %w", userId, ErrNotFound)
		}
		return user, NewDbError("retrieving user by id", result.Error)
	}

	return user, nil
}

func GetDataset(datasetId string, db *gorm.DB, loadLinks bool) (Dataset, error) {
	var dataset Dataset

	var result *gorm.DB = db
	if loadLinks {
		result = result.Preload("Assignees").Preload("Shares").Preload("Uploader")
	}
	result = result.First(&dataset, "id = ?", datasetId)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return dataset, fmt.Errorf("no dataset with id %v: %w", datasetId, ErrNotFound)
		}
		return dataset, NewDbError("retrieving dataset by id", result.Error)
	}

	return dataset, nil
}

func GetIndexEntry(entryId string, db *gorm.DB) (IndexEntry, error) {
	var entry IndexEntry

	result := db.Preload("Dataset").Preload("Dataset.Assignees").Preload("Dataset.Shares").First(&entry, "id = ?", entryId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return entry, fmt.Errorf("no index entry with id %v: %w", entryId, ErrNotFound)
		}
		return entry, NewDbError("retrieving index entry by id", result.Error)
	}

	return entry, nil
}

func UserExists(db *gorm.DB, userId string) (bool, error) {
	var user User
	result := db.First(&user, "id = ?", userId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, NewDbError("checking if user exists", result.Error)
	}
	return true, nil
}

func DatasetExists(db *gorm.DB, datasetId string) (bool, error) {
	var dataset Dataset
	result := db.First(&dataset, "id = ?", datasetId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, NewDbError("checking if dataset exists", result.Error)
	}
	return true, nil
}

// ActiveStorageLimit returns the active per-user ceiling override, or
// nil when the user falls back to the role default.
func ActiveStorageLimit(db *gorm.DB, userId string) (*StorageLimit, error) {
	var limit StorageLimit
	result := db.First(&limit, "user_id = ? AND active = ?", userId, true)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, NewDbError("retrieving storage limit", result.Error)
	}
	return &limit, nil
}

func GetRoleQuota(db *gorm.DB, role string) (*RoleQuota, error) {
	var quota RoleQuota
	result := db.First(&quota, "role = ?", role)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, NewDbError("retrieving role quota", result.Error)
	}
	return &quota, nil
}
