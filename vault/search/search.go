package search

import (
	"context"
	"fmt"

	"vehicle_vault/vault/access"
	"vehicle_vault/vault/schema"
	"vehicle_vault/vault/storage"

	"gorm.io/gorm"
)

const (
	minQueryChars   = 3
	defaultPageSize = 25
	maxPageSize     = 100
)

const shortQueryMessage = "enter at least 3 characters of a registration or chassis id"

type Request struct {
	Query     string
	FieldHint string
	Page      int
	PageSize  int
}

type Row struct {
	EntryId        string `json:"entry_id"`
	RegistrationId string `json:"registration_id"`
	ChassisId      string `json:"chassis_id"`
	DatasetId      string `json:"dataset_id"`
	Filename       string `json:"filename"`
	OwnData        bool   `json:"own_data"`
}

type Result struct {
	Rows     []Row  `json:"rows"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
	Total    int64  `json:"total"`
	Message  string `json:"message,omitempty"`
}

type Detail struct {
	EntryId   string               `json:"entry_id"`
	DatasetId string               `json:"dataset_id"`
	Filename  string               `json:"filename"`
	Tier      string               `json:"tier"`
	RowNumber int64                `json:"row_number"`
	Record    schema.VehicleRecord `json:"record"`
}

// Searcher runs the two phase query. Phase 1 touches only the index
// table and returns a paginated list with provenance and masked
// filenames; Phase 2 fetches one full row through the blob layer on
// demand.
type Searcher struct {
	db       *gorm.DB
	resolver *access.Resolver
	blobs    *storage.BlobResolver
}

func NewSearcher(db *gorm.DB, resolver *access.Resolver, blobs *storage.BlobResolver) *Searcher {
	return &Searcher{db: db, resolver: resolver, blobs: blobs}
}

// Search is Phase 1. Queries shorter than 3 significant characters
// return an empty page with a guidance message rather than an error;
// search is exploratory and user facing. Results are ordered own data
// first, then registration id ascending, with the owner test going
// through access.PrimaryOwnerId so the priority rule cannot drift from
// the access rule.
func (s *Searcher) Search(ctx context.Context, user schema.User, req Request) (Result, error) {
	page, pageSize := normalizePaging(req.Page, req.PageSize)
	res := Result{Rows: []Row{}, Page: page, PageSize: pageSize}

	normalized := NormalizeQuery(req.Query)
	if len(normalized) < minQueryChars {
		res.Message = shortQueryMessage
		return res, nil
	}

	fieldHint := req.FieldHint
	if fieldHint == "" {
		fieldHint = schema.FieldHintAny
	}
	if err := schema.CheckValidFieldHint(fieldHint); err != nil {
		res.Message = err.Error()
		return res, nil
	}

	datasets, err := s.resolver.AccessibleDatasets(user)
	if err != nil {
		return Result{}, err
	}

	subject, _ := access.SubjectAdminId(user)

	byId := make(map[string]schema.Dataset, len(datasets))
	ownIds := make([]string, 0)
	otherIds := make([]string, 0)
	for _, d := range datasets {
		if access.DecideTier(user, d) == access.Denied {
			continue
		}
		byId[d.Id] = d
		if owner := access.PrimaryOwnerId(d); owner != "" && owner == subject {
			ownIds = append(ownIds, d.Id)
		} else {
			otherIds = append(otherIds, d.Id)
		}
	}

	if len(byId) == 0 {
		return res, nil
	}

	ownTotal, err := s.countMatches(ctx, ownIds, normalized, fieldHint)
	if err != nil {
		return Result{}, err
	}
	otherTotal, err := s.countMatches(ctx, otherIds, normalized, fieldHint)
	if err != nil {
		return Result{}, err
	}
	res.Total = ownTotal + otherTotal

	// Own data sorts before everything else across the whole result
	// set, so a page is drawn from the own partition first and spills
	// into the rest once the own partition is exhausted.
	offset := int64(page) * int64(pageSize)
	var entries []schema.IndexEntry
	if offset < ownTotal {
		entries, err = s.fetchMatches(ctx, ownIds, normalized, fieldHint, offset, pageSize)
		if err != nil {
			return Result{}, err
		}
	}
	if len(entries) < pageSize {
		otherOffset := offset - ownTotal
		if otherOffset < 0 {
			otherOffset = 0
		}
		if otherOffset < otherTotal {
			more, err := s.fetchMatches(ctx, otherIds, normalized, fieldHint, otherOffset, pageSize-len(entries))
			if err != nil {
				return Result{}, err
			}
			entries = append(entries, more...)
		}
	}

	for _, entry := range entries {
		dataset, ok := byId[entry.DatasetId]
		if !ok {
			continue
		}
		res.Rows = append(res.Rows, Row{
			EntryId:        entry.Id,
			RegistrationId: entry.RegistrationId,
			ChassisId:      entry.ChassisId,
			DatasetId:      entry.DatasetId,
			Filename:       access.FilenameFor(user, dataset),
			OwnData:        access.PrimaryOwnerId(dataset) == subject,
		})
	}

	return res, nil
}

// Detail is Phase 2. The entry's dataset is re-verified against the
// caller's accessible set before anything is fetched; a client supplied
// entry id is a capability check, not just a lookup. Denied field
// visibility is a hard 403-equivalent, never a stripped record.
func (s *Searcher) Detail(ctx context.Context, user schema.User, entryId string) (Detail, error) {
	entry, err := schema.GetIndexEntry(entryId, s.db)
	if err != nil {
		return Detail{}, err
	}

	datasets, err := s.resolver.AccessibleDatasets(user)
	if err != nil {
		return Detail{}, err
	}

	var dataset schema.Dataset
	found := false
	for _, d := range datasets {
		if d.Id == entry.DatasetId {
			dataset = d
			found = true
			break
		}
	}
	if !found {
		return Detail{}, fmt.Errorf("dataset %v is not accessible: %w", entry.DatasetId, access.ErrAccessDenied)
	}

	record, err := s.blobs.FetchRow(ctx, dataset, entry.RowNumber)
	if err != nil {
		return Detail{}, err
	}

	visible, tier := access.VisibleRecord(user, dataset, record)
	if tier == access.Denied {
		return Detail{}, fmt.Errorf("record in dataset %v: %w", dataset.Id, access.ErrAccessDenied)
	}

	return Detail{
		EntryId:   entry.Id,
		DatasetId: dataset.Id,
		Filename:  access.FilenameFor(user, dataset),
		Tier:      tier.String(),
		RowNumber: entry.RowNumber,
		Record:    visible,
	}, nil
}

func normalizePaging(page, pageSize int) (int, int) {
	if page < 0 {
		page = 0
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

// matchQuery builds the index condition for the normalized query. Full
// plate tokens use the anchored region/last-4 pattern; everything else
// is substring search against the hinted fields.
func (s *Searcher) matchQuery(datasetIds []string, normalized, fieldHint string) *gorm.DB {
	query := s.db.Model(&schema.IndexEntry{}).Where("dataset_id IN ?", datasetIds)

	if plate, ok := plateLikePattern(normalized); ok && fieldHint != schema.FieldHintChassis {
		return query.Where("registration_id LIKE ?", plate)
	}

	pattern := "%" + normalized + "%"
	switch fieldHint {
	case schema.FieldHintRegistration:
		return query.Where("registration_id LIKE ?", pattern)
	case schema.FieldHintChassis:
		return query.Where("chassis_id LIKE ?", pattern)
	default:
		return query.Where("registration_id LIKE ? OR chassis_id LIKE ?", pattern, pattern)
	}
}

func (s *Searcher) countMatches(ctx context.Context, datasetIds []string, normalized, fieldHint string) (int64, error) {
	if len(datasetIds) == 0 {
		return 0, nil
	}

	var count int64
	result := s.matchQuery(datasetIds, normalized, fieldHint).WithContext(ctx).Count(&count)
	if result.Error != nil {
		return 0, schema.NewDbError("counting index matches", result.Error)
	}
	return count, nil
}

func (s *Searcher) fetchMatches(ctx context.Context, datasetIds []string, normalized, fieldHint string, offset int64, limit int) ([]schema.IndexEntry, error) {
	if len(datasetIds) == 0 || limit <= 0 {
		return nil, nil
	}

	var entries []schema.IndexEntry
	result := s.matchQuery(datasetIds, normalized, fieldHint).
		WithContext(ctx).
		Order("registration_id ASC, id ASC").
		Offset(int(offset)).
		Limit(limit).
		Find(&entries)
	if result.Error != nil {
		return nil, schema.NewDbError("querying index matches", result.Error)
	}
	return entries, nil
}
