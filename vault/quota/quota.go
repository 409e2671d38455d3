package quota

import (
	"errors"
	"fmt"

	"vehicle_vault/vault/schema"

	"gorm.io/gorm"
)

// ErrRoleQuotaMissing indicates no default ceiling is configured for a
// role and the user has no individual override. This is a server side
// configuration fault and fails closed: it never degrades to an
// unlimited allowance.
var ErrRoleQuotaMissing = errors.New("no record ceiling configured for role")

type QuotaExceededError struct {
	Ceiling   int64
	Used      int64
	Shortfall int64
}

func (e QuotaExceededError) Error() string {
	return fmt.Sprintf("record ceiling exceeded: ceiling %d, used %d, upload exceeds by %d", e.Ceiling, e.Used, e.Shortfall)
}

type Report struct {
	Ceiling   int64 `json:"ceiling"`
	Used      int64 `json:"used"`
	Remaining int64 `json:"remaining"`
}

type Enforcer struct {
	db *gorm.DB
}

func NewEnforcer(db *gorm.DB) *Enforcer {
	return &Enforcer{db: db}
}

// Ceiling resolves the record ceiling for a user: an active individual
// override always wins, otherwise the role default applies.
func (e *Enforcer) Ceiling(user schema.User) (int64, error) {
	limit, err := schema.ActiveStorageLimit(e.db, user.Id)
	if err != nil {
		return 0, err
	}
	if limit != nil {
		return limit.RecordCeiling, nil
	}

	roleQuota, err := schema.GetRoleQuota(e.db, user.Role)
	if err != nil {
		return 0, err
	}
	if roleQuota == nil {
		return 0, fmt.Errorf("role %v: %w", user.Role, ErrRoleQuotaMissing)
	}

	return roleQuota.RecordCeiling, nil
}

// Usage sums the record counts of the user's own completed and partial
// datasets. Failed datasets hold no usable rows and do not count.
func (e *Enforcer) Usage(user schema.User) (int64, error) {
	var used int64
	result := e.db.Model(&schema.Dataset{}).
		Where("uploader_id = ?", user.Id).
		Where("status IN ?", []string{schema.DatasetCompleted, schema.DatasetPartial}).
		Select("COALESCE(SUM(record_count), 0)").
		Scan(&used)
	if result.Error != nil {
		return 0, schema.NewDbError("summing dataset record counts", result.Error)
	}
	return used, nil
}

// CheckIngest admits or rejects an upload of recordCount rows. A
// rejection reports ceiling, usage, and shortfall so the caller can
// decide whether to trim the upload.
func (e *Enforcer) CheckIngest(user schema.User, recordCount int64) error {
	ceiling, err := e.Ceiling(user)
	if err != nil {
		return err
	}

	used, err := e.Usage(user)
	if err != nil {
		return err
	}

	if used+recordCount > ceiling {
		return QuotaExceededError{Ceiling: ceiling, Used: used, Shortfall: used + recordCount - ceiling}
	}

	return nil
}

// Report returns the user's ceiling, usage, and remaining headroom.
// Remaining is clamped at zero for users already over a lowered ceiling.
func (e *Enforcer) Report(user schema.User) (Report, error) {
	ceiling, err := e.Ceiling(user)
	if err != nil {
		return Report{}, err
	}

	used, err := e.Usage(user)
	if err != nil {
		return Report{}, err
	}

	remaining := ceiling - used
	if remaining < 0 {
		remaining = 0
	}

	return Report{Ceiling: ceiling, Used: used, Remaining: remaining}, nil
}
