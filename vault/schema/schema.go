package schema

import "time"

type User struct {
	Id string `gorm:"primaryKey"`

	Username string `gorm:"uniqueIndex"`
	Email    string `gorm:"uniqueIndex"`
	Password []byte

	Role string

	// Set for auditors and field agents, nil for admin tier roles.
	SupervisorId *string
	Supervisor   *User `gorm:"foreignKey:SupervisorId;constraint:OnDelete:SET NULL;"`

	CanShare     bool
	ShareTargets []UserShareTarget `gorm:"foreignKey:UserId;constraint:OnDelete:CASCADE;"`

	Datasets []Dataset `gorm:"foreignKey:UploaderId"`
}

// UserShareTarget is an allow-list row: the admin UserId may share
// datasets with the admin TargetId. An admin with CanShare set and no
// rows may share with any admin.
type UserShareTarget struct {
	UserId   string `gorm:"primaryKey"`
	TargetId string `gorm:"primaryKey"`

	Target *User `gorm:"foreignKey:TargetId"`
}

type Dataset struct {
	Id string `gorm:"primaryKey"`

	Filename   string
	UploadedAt time.Time

	UploaderId string
	Uploader   *User
	// Role of the uploader at ingest time. Snapshotted so that later
	// role changes never retroactively alter access to old datasets.
	UploaderRole string

	// Designated admin for uploads made by an org or root admin.
	AssignedToId *string
	AssignedTo   *User `gorm:"foreignKey:AssignedToId"`

	RecordCount   int64
	Status        string
	FailedBatches int64

	BlobPath string

	Assignees []DatasetAssignee `gorm:"constraint:OnDelete:CASCADE;"`
	Shares    []DatasetShare    `gorm:"constraint:OnDelete:CASCADE;"`
}

// DatasetAssignee grants a co-assigned admin restricted access to a
// top-down dataset.
type DatasetAssignee struct {
	DatasetId string `gorm:"primaryKey"`
	UserId    string `gorm:"primaryKey"`

	User *User
}

// DatasetShare grants a share-target admin restricted access to an
// admin-uploaded dataset.
type DatasetShare struct {
	DatasetId string `gorm:"primaryKey"`
	UserId    string `gorm:"primaryKey"`

	User *User
}

// IndexEntry holds the two searchable keys for one spreadsheet row plus
// the back reference into the owning dataset's blob. Entries are created
// in bulk at ingest and deleted in bulk with the dataset; they are never
// updated. Duplicate (registration, chassis) pairs are permitted both
// across and within datasets.
type IndexEntry struct {
	Id string `gorm:"primaryKey"`

	RegistrationId string `gorm:"index"`
	ChassisId      string `gorm:"index"`

	DatasetId string `gorm:"index"`
	Dataset   *Dataset

	RowNumber int64
}

// StorageLimit is a per-user override of the role default record
// ceiling. Deactivated limits are kept for audit and revert the user to
// the role default.
type StorageLimit struct {
	Id string `gorm:"primaryKey"`

	UserId string `gorm:"index"`
	User   *User

	RecordCeiling int64
	Description   string

	SetById string
	Active  bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

type RoleQuota struct {
	Role          string `gorm:"primaryKey"`
	RecordCeiling int64
}

// VehicleRecord is one full row of an ingested spreadsheet. It lives in
// the dataset blob, not in the database; only the registration and
// chassis ids are indexed.
type VehicleRecord struct {
	RegistrationId string `json:"registration_id"`
	ChassisId      string `json:"chassis_id"`
	EngineId       string `json:"engine_id"`
	CustomerName   string `json:"customer_name"`
	Make           string `json:"make"`

	Model              string  `json:"model,omitempty"`
	SaleAmount         float64 `json:"sale_amount,omitempty"`
	SaleDate           string  `json:"sale_date,omitempty"`
	CustomerPhone      string  `json:"customer_phone,omitempty"`
	CustomerAddress    string  `json:"customer_address,omitempty"`
	DealerName         string  `json:"dealer_name,omitempty"`
	ConfirmationStatus string  `json:"confirmation_status,omitempty"`
}
