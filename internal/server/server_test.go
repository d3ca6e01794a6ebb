package server

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapdq/internal/alert"
	"github.com/leapstack-labs/leapdq/internal/pipeline"
	"github.com/leapstack-labs/leapdq/internal/state"
	"github.com/leapstack-labs/leapdq/internal/testutil"
	"github.com/leapstack-labs/leapdq/pkg/core"
	"github.com/leapstack-labs/leapdq/pkg/rules"
)

func setupServer(t *testing.T) (*Server, *state.SQLStore, *rules.Registry) {
	t.Helper()

	logger := testutil.NewTestLogger(t)
	store := state.NewStore(logger)
	require.NoError(t, store.Open(":memory:"))
	require.NoError(t, store.Migrate())
	t.Cleanup(func() { _ = store.Close() })

	registry := rules.NewRegistry()

	engine, err := pipeline.New(pipeline.Config{Store: store, Registry: registry, Logger: logger})
	require.NoError(t, err)

	evaluator, err := alert.NewEvaluator(alert.Config{Store: store})
	require.NoError(t, err)

	srv, err := New(Config{Store: store, Engine: engine, Registry: registry, Alerts: evaluator, Logger: logger})
	require.NoError(t, err)
	return srv, store, registry
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func doRaw(h http.Handler, method, path, contentType string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), "body: %s", rec.Body.String())
}

func assertError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()

	require.Equal(t, status, rec.Code, "body: %s", rec.Body.String())
	var body errorBody
	decodeBody(t, rec, &body)
	assert.Equal(t, code, body.Error.Code)
	assert.NotEmpty(t, body.Error.Message)
}

func multipartBody(t *testing.T, filename string, content []byte, fields map[string]string) (io.Reader, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestNew_RequiresStore(t *testing.T) {
	_, err := New(Config{Engine: &pipeline.Engine{}})
	require.ErrorIs(t, err, core.ErrInvalid)
}

func TestNew_RequiresEngine(t *testing.T) {
	store := state.NewStore(nil)
	require.NoError(t, store.Open(":memory:"))
	require.NoError(t, store.Migrate())
	defer store.Close()

	_, err := New(Config{Store: store})
	require.ErrorIs(t, err, core.ErrInvalid)
}

func TestHealthz(t *testing.T) {
	srv, _, _ := setupServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestErrorEnvelope_NotFound(t *testing.T) {
	srv, _, _ := setupServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/v1/sources/ghost", nil)
	assertError(t, rec, http.StatusNotFound, "not_found")
}

func TestErrorEnvelope_MalformedBody(t *testing.T) {
	srv, _, _ := setupServer(t)

	rec := doRaw(srv.Handler(), http.MethodPost, "/api/v1/sources", "application/json", strings.NewReader("{nope"))
	assertError(t, rec, http.StatusBadRequest, "invalid_input")
}
