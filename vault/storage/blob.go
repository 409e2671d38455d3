package storage

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"vehicle_vault/vault/schema"
)

// ErrBlobUnavailable marks a transient blob layer failure. Callers may
// retry; it is never collapsed into a not-found answer.
var ErrBlobUnavailable = errors.New("blob storage unavailable")

var ErrRowNotFound = errors.New("row not found in dataset blob")

const defaultFetchTimeout = 10 * time.Second

// BlobResolver maps a dataset to its blob location and fetches single
// rows on demand. Fetches are deliberately per-row: blob reads stay
// proportional to user attention, not to result set size.
type BlobResolver struct {
	store   Storage
	timeout time.Duration
}

func NewBlobResolver(store Storage) *BlobResolver {
	return &BlobResolver{store: store, timeout: defaultFetchTimeout}
}

// FetchRow reads exactly one row of a dataset's JSON-lines blob. A
// storage failure surfaces as ErrBlobUnavailable; a row number past the
// end of the blob as ErrRowNotFound.
func (b *BlobResolver) FetchRow(ctx context.Context, dataset schema.Dataset, rowNumber int64) (schema.VehicleRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	blobPath := dataset.BlobPath
	if blobPath == "" {
		blobPath = DatasetRowsPath(dataset.Id)
	}

	reader, err := b.store.Read(blobPath)
	if err != nil {
		return schema.VehicleRecord{}, fmt.Errorf("opening blob for dataset %v: %v: %w", dataset.Id, err, ErrBlobUnavailable)
	}
	defer reader.Close()

	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var row int64
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return schema.VehicleRecord{}, fmt.Errorf("blob read for dataset %v cancelled: %v: %w", dataset.Id, err, ErrBlobUnavailable)
		}

		if row == rowNumber {
			var rec schema.VehicleRecord
			if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
				return schema.VehicleRecord{}, fmt.Errorf("decoding row %d of dataset %v: %v: %w", rowNumber, dataset.Id, err, ErrBlobUnavailable)
			}
			return rec, nil
		}
		row++
	}

	if err := scanner.Err(); err != nil {
		return schema.VehicleRecord{}, fmt.Errorf("reading blob for dataset %v: %v: %w", dataset.Id, err, ErrBlobUnavailable)
	}

	return schema.VehicleRecord{}, fmt.Errorf("dataset %v has no row %d: %w", dataset.Id, rowNumber, ErrRowNotFound)
}

// WriteRows writes the full rows of a dataset as a JSON-lines blob and
// returns the blob path.
func (b *BlobResolver) WriteRows(dataset schema.Dataset, records []schema.VehicleRecord) (string, error) {
	var buf []byte
	for _, rec := range records {
		line, err := json.Marshal(rec)
		if err != nil {
			return "", fmt.Errorf("encoding row for dataset %v: %w", dataset.Id, err)
		}
		buf = append(buf, line...)
		buf = append(buf, '\n')
	}

	path := DatasetRowsPath(dataset.Id)
	if err := b.store.Write(path, bytes.NewReader(buf)); err != nil {
		return "", fmt.Errorf("writing blob for dataset %v: %v: %w", dataset.Id, err, ErrBlobUnavailable)
	}

	return path, nil
}

// DeleteRows removes a dataset's blob directory.
func (b *BlobResolver) DeleteRows(datasetId string) error {
	if err := b.store.Delete(DatasetPath(datasetId)); err != nil {
		return fmt.Errorf("deleting blob for dataset %v: %v: %w", datasetId, err, ErrBlobUnavailable)
	}
	return nil
}
