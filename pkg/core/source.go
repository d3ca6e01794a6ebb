package core

import (
	"strings"
	"time"
)

// Domain identifies the business domain a data source belongs to. The domain
// selects which quality rules apply to the source's datasets.
type Domain string

// Known domains.
const (
	DomainInsurance Domain = "insurance"
	DomainBanking   Domain = "banking"
	DomainCustom    Domain = "custom"
)

// Valid reports whether d is a known domain.
func (d Domain) Valid() bool {
	return d == DomainInsurance || d == DomainBanking || d == DomainCustom
}

// ParseDomain converts a string to a Domain value.
// Returns the domain and true if valid, or DomainCustom and false if invalid.
func ParseDomain(s string) (Domain, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "insurance":
		return DomainInsurance, true
	case "banking":
		return DomainBanking, true
	case "custom":
		return DomainCustom, true
	default:
		return DomainCustom, false
	}
}

// DataSource is a registered dataset owner. Immutable after registration
// except for RecordCount, which is refreshed after each successful Bronze
// ingestion, and DeletedAt, which marks a soft delete.
//
// A source is never hard-deleted while pipeline runs reference it.
type DataSource struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Domain      Domain     `json:"domain"`
	Description string     `json:"description,omitempty"`
	Seed        int64      `json:"seed"`
	RecordCount int        `json:"record_count"`
	CreatedAt   time.Time  `json:"created_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

// Deleted reports whether the source has been soft-deleted.
func (s *DataSource) Deleted() bool { return s.DeletedAt != nil }

// ContentType declares the format of an uploaded dataset payload.
type ContentType string

// Supported upload formats.
const (
	ContentTypeCSV  ContentType = "csv"
	ContentTypeJSON ContentType = "json"
)

// Valid reports whether c is a supported content type.
func (c ContentType) Valid() bool {
	return c == ContentTypeCSV || c == ContentTypeJSON
}

// RawDataset is an uploaded payload bound to a source. Reruns re-parse the
// stored bytes so every run of an uploaded source sees identical input.
type RawDataset struct {
	SourceID    string      `json:"source_id"`
	ContentType ContentType `json:"content_type"`
	Content     []byte      `json:"-"`
	UploadedAt  time.Time   `json:"uploaded_at"`
}
