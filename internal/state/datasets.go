package state

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/leapstack-labs/leapdq/pkg/core"
)

// SaveDataset stores the uploaded payload for a source, replacing any
// previous upload. Reruns re-parse these bytes so every run of an uploaded
// source sees identical input.
func (s *SQLStore) SaveDataset(ds *core.RawDataset) error {
	if s.db == nil {
		return errNotOpened
	}

	if ds.UploadedAt.IsZero() {
		ds.UploadedAt = time.Now().UTC()
	}

	_, err := s.exec(
		`INSERT INTO datasets (source_id, content_type, content, uploaded_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (source_id) DO UPDATE SET
		     content_type = excluded.content_type,
		     content      = excluded.content,
		     uploaded_at  = excluded.uploaded_at`,
		ds.SourceID, string(ds.ContentType), ds.Content, encodeTime(ds.UploadedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save dataset: %w", err)
	}

	return nil
}

// GetDataset retrieves the uploaded payload for a source. Returns (nil, nil)
// when nothing has been uploaded; generated sources never have one.
func (s *SQLStore) GetDataset(sourceID string) (*core.RawDataset, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	var (
		ds          core.RawDataset
		contentType string
		uploadedAt  string
	)
	err := s.queryRow(
		`SELECT source_id, content_type, content, uploaded_at FROM datasets WHERE source_id = ?`,
		sourceID,
	).Scan(&ds.SourceID, &contentType, &ds.Content, &uploadedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get dataset: %w", err)
	}

	ds.ContentType = core.ContentType(contentType)
	if ds.UploadedAt, err = decodeTime(uploadedAt); err != nil {
		return nil, err
	}

	return &ds, nil
}
