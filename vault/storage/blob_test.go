package storage

import (
	"context"
	"testing"

	"vehicle_vault/vault/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecords(n int) []schema.VehicleRecord {
	records := make([]schema.VehicleRecord, 0, n)
	for i := 0; i < n; i++ {
		records = append(records, schema.VehicleRecord{
			RegistrationId: "MH12AB000" + string(rune('0'+i)),
			ChassisId:      "CHS000" + string(rune('0'+i)),
			CustomerName:   "customer",
			Make:           "maruti",
			CustomerPhone:  "9876543210",
		})
	}
	return records
}

func TestBlobRoundTrip(t *testing.T) {
	blobs := NewBlobResolver(NewSharedDisk(t.TempDir()))
	dataset := schema.Dataset{Id: "d-1"}

	records := testRecords(3)
	path, err := blobs.WriteRows(dataset, records)
	require.NoError(t, err)
	assert.Equal(t, DatasetRowsPath(dataset.Id), path)

	dataset.BlobPath = path
	for i, want := range records {
		got, err := blobs.FetchRow(context.Background(), dataset, int64(i))
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestBlobRowPastEnd(t *testing.T) {
	blobs := NewBlobResolver(NewSharedDisk(t.TempDir()))
	dataset := schema.Dataset{Id: "d-1"}

	path, err := blobs.WriteRows(dataset, testRecords(2))
	require.NoError(t, err)
	dataset.BlobPath = path

	_, err = blobs.FetchRow(context.Background(), dataset, 2)
	assert.ErrorIs(t, err, ErrRowNotFound)
}

func TestBlobMissingIsUnavailable(t *testing.T) {
	blobs := NewBlobResolver(NewSharedDisk(t.TempDir()))

	// A missing blob is a storage level fault, never a silent not-found.
	_, err := blobs.FetchRow(context.Background(), schema.Dataset{Id: "d-gone"}, 0)
	assert.ErrorIs(t, err, ErrBlobUnavailable)
	assert.NotErrorIs(t, err, ErrRowNotFound)
}

func TestBlobDelete(t *testing.T) {
	blobs := NewBlobResolver(NewSharedDisk(t.TempDir()))
	dataset := schema.Dataset{Id: "d-1"}

	path, err := blobs.WriteRows(dataset, testRecords(1))
	require.NoError(t, err)
	dataset.BlobPath = path

	require.NoError(t, blobs.DeleteRows(dataset.Id))

	_, err = blobs.FetchRow(context.Background(), dataset, 0)
	assert.ErrorIs(t, err, ErrBlobUnavailable)
}
