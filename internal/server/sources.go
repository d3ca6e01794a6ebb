package server

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/leapstack-labs/leapdq/internal/ingest"
	"github.com/leapstack-labs/leapdq/pkg/core"
)

// maxUploadBytes caps dataset uploads.
const maxUploadBytes = 32 << 20

type createSourceRequest struct {
	Name        string `json:"name"`
	Domain      string `json:"domain"`
	Description string `json:"description"`
	Seed        int64  `json:"seed"`
	RecordCount int    `json:"record_count"`
}

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	includeDeleted := r.URL.Query().Get("include_deleted") == "true"

	sources, err := s.store.ListSources(includeDeleted)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if sources == nil {
		sources = []*core.DataSource{}
	}
	writeJSON(w, http.StatusOK, sources)
}

func (s *Server) handleCreateSource(w http.ResponseWriter, r *http.Request) {
	var req createSourceRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if strings.TrimSpace(req.Name) == "" {
		s.writeError(w, r, fmt.Errorf("%w: source name is required", core.ErrInvalid))
		return
	}
	domain, ok := core.ParseDomain(req.Domain)
	if !ok && req.Domain != "" {
		s.writeError(w, r, fmt.Errorf("%w: unknown domain %q", core.ErrInvalid, req.Domain))
		return
	}
	if req.RecordCount > ingest.MaxGenerateRecords {
		s.writeError(w, r, fmt.Errorf("%w: record count %d exceeds maximum %d",
			core.ErrInvalid, req.RecordCount, ingest.MaxGenerateRecords))
		return
	}

	count := req.RecordCount
	if count <= 0 {
		count = ingest.DefaultGenerateRecords
	}

	src := &core.DataSource{
		Name:        strings.TrimSpace(req.Name),
		Domain:      domain,
		Description: req.Description,
		Seed:        req.Seed,
		RecordCount: count,
	}
	if err := s.store.CreateSource(src); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.Info("source registered", "source_id", src.ID, "name", src.Name, "domain", src.Domain)
	writeJSON(w, http.StatusCreated, src)
}

func (s *Server) handleGetSource(w http.ResponseWriter, r *http.Request) {
	src, err := s.store.GetSource(chi.URLParam(r, "sourceID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, src)
}

func (s *Server) handleDeleteSource(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sourceID")
	if err := s.store.DeleteSource(id); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.Info("source deleted", "source_id", id)
	w.WriteHeader(http.StatusNoContent)
}

type sourceDataResponse struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
	Total   int              `json:"total"`
}

// handleSourceData previews the source's Bronze input: the stored upload
// re-parsed, or the domain generator's output for the source's seed.
func (s *Server) handleSourceData(w http.ResponseWriter, r *http.Request) {
	src, err := s.store.GetSource(chi.URLParam(r, "sourceID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	raw, err := s.store.GetDataset(src.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	ds, err := ingest.Ingest(src, raw)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	limit := queryInt(r, "limit", 50)
	n := ds.Len()
	if limit < n {
		n = limit
	}

	rows := make([]map[string]any, 0, n)
	for _, row := range ds.Rows[:n] {
		rows = append(rows, row.Values)
	}
	writeJSON(w, http.StatusOK, sourceDataResponse{Columns: ds.Columns, Rows: rows, Total: ds.Len()})
}

// handleUpload attaches a dataset payload to a source, replacing any
// previous upload. The payload is stored as received and parsed at run
// time, so a bad file fails the run's Bronze layer, not the upload.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	src, err := s.store.GetSource(chi.URLParam(r, "sourceID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: malformed multipart request: %v", core.ErrInvalid, err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: missing file field", core.ErrInvalid))
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("failed to read upload: %w", err))
		return
	}

	ct, err := uploadContentType(r.FormValue("type"), header.Filename)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	ds := &core.RawDataset{SourceID: src.ID, ContentType: ct, Content: content}
	if err := s.store.SaveDataset(ds); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.Info("dataset uploaded",
		"source_id", src.ID,
		"content_type", ct,
		"bytes", len(content))
	writeJSON(w, http.StatusOK, ds)
}

// uploadContentType resolves the declared payload format from an explicit
// form value or the upload's file extension.
func uploadContentType(explicit, filename string) (core.ContentType, error) {
	if explicit != "" {
		ct := core.ContentType(strings.ToLower(explicit))
		if !ct.Valid() {
			return "", fmt.Errorf("%w: unsupported content type %q", core.ErrInvalid, explicit)
		}
		return ct, nil
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return core.ContentTypeCSV, nil
	case ".json":
		return core.ContentTypeJSON, nil
	}
	return "", fmt.Errorf("%w: cannot infer content type of %q, pass type=csv or type=json", core.ErrInvalid, filename)
}
