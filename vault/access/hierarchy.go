package access

import (
	"time"

	"vehicle_vault/vault/cache"
	"vehicle_vault/vault/schema"

	"gorm.io/gorm"
)

const allActiveKey = "all-active"

func subjectKey(subjectId string) string {
	return "subject:" + subjectId
}

// Resolver computes the set of datasets a principal may access. Results
// are memoized per subject admin (a subordinate shares its supervisor's
// set) for the cache TTL; callers that mutate sharing, assignment, or
// dataset lifecycle must invalidate.
type Resolver struct {
	db    *gorm.DB
	cache *cache.Cache[[]schema.Dataset]
}

func NewResolver(db *gorm.DB, ttl time.Duration, clock cache.Clock) *Resolver {
	return &Resolver{db: db, cache: cache.New[[]schema.Dataset](ttl, clock)}
}

// AccessibleDatasets returns every non-failed dataset the principal may
// see. Root and org admins see all active datasets. An admin sees its
// own uploads, top-down uploads assigned to it (directly or as a
// co-assignee), and admin uploads shared with it. Auditors and field
// agents see their supervising admin's set; a subordinate with no
// supervisor sees nothing.
func (r *Resolver) AccessibleDatasets(user schema.User) ([]schema.Dataset, error) {
	if user.Role == schema.RoleRootAdmin || user.Role == schema.RoleOrgAdmin {
		return r.allActive()
	}

	subject, ok := SubjectAdminId(user)
	if !ok {
		return nil, nil
	}

	if datasets, ok := r.cache.Get(subjectKey(subject)); ok {
		return datasets, nil
	}

	var datasets []schema.Dataset
	result := r.db.
		Preload("Assignees").Preload("Shares").
		Where("status <> ?", schema.DatasetFailed).
		Where(
			r.db.Where("uploader_id = ?", subject).
				Or("assigned_to_id = ?", subject).
				Or("id IN (?)", r.db.Model(&schema.DatasetAssignee{}).Select("dataset_id").Where("user_id = ?", subject)).
				Or("id IN (?)", r.db.Model(&schema.DatasetShare{}).Select("dataset_id").Where("user_id = ?", subject)),
		).
		Find(&datasets)
	if result.Error != nil {
		return nil, schema.NewDbError("resolving accessible datasets", result.Error)
	}

	r.cache.Set(subjectKey(subject), datasets)
	return datasets, nil
}

func (r *Resolver) allActive() ([]schema.Dataset, error) {
	if datasets, ok := r.cache.Get(allActiveKey); ok {
		return datasets, nil
	}

	var datasets []schema.Dataset
	result := r.db.
		Preload("Assignees").Preload("Shares").
		Where("status <> ?", schema.DatasetFailed).
		Find(&datasets)
	if result.Error != nil {
		return nil, schema.NewDbError("resolving active datasets", result.Error)
	}

	r.cache.Set(allActiveKey, datasets)
	return datasets, nil
}

// Invalidate drops the cached set for one subject admin along with the
// root tier set.
func (r *Resolver) Invalidate(subjectId string) {
	r.cache.Invalidate(subjectKey(subjectId))
	r.cache.Invalidate(allActiveKey)
}

func (r *Resolver) InvalidateAll() {
	r.cache.InvalidateAll()
}
