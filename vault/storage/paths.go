package storage

import "path/filepath"

func DatasetPath(datasetId string) string {
	return filepath.Join("datasets", datasetId)
}

// DatasetRowsPath is the JSON-lines blob holding the full rows of a
// dataset, addressed by row number.
func DatasetRowsPath(datasetId string) string {
	return filepath.Join(DatasetPath(datasetId), "rows.jsonl")
}
