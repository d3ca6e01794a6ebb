package ingest

import (
	"bytes"
	"fmt"

	"github.com/leapstack-labs/leapdq/pkg/core"
)

// Ingest produces the Bronze dataset for a source. When a raw upload
// exists it is re-parsed; otherwise the domain generator runs with the
// source's seed. Both paths return errors wrapping core.ErrIngestion
// so the pipeline can mark the Bronze layer failed.
func Ingest(source *core.DataSource, raw *core.RawDataset) (*core.Dataset, error) {
	if raw != nil {
		return parseUpload(raw)
	}
	return Generate(source.Domain, source.Seed, source.RecordCount)
}

func parseUpload(raw *core.RawDataset) (*core.Dataset, error) {
	if len(bytes.TrimSpace(raw.Content)) == 0 {
		return nil, fmt.Errorf("%w: uploaded file is empty", core.ErrIngestion)
	}
	switch raw.ContentType {
	case core.ContentTypeCSV:
		return ParseCSV(raw.Content)
	case core.ContentTypeJSON:
		return ParseJSON(raw.Content)
	default:
		return nil, fmt.Errorf("%w: unsupported content type %q", core.ErrIngestion, raw.ContentType)
	}
}
