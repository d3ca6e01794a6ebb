// Package ingest is the Bronze layer: it turns uploaded CSV or JSON
// payloads and seeded synthetic generators into normalized datasets.
package ingest

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/leapstack-labs/leapdq/pkg/core"
)

// ParseCSV parses a CSV payload with a header row. Cell values are
// inferred as int64, float64, bool or string; empty cells become nil.
func ParseCSV(data []byte) (*core.Dataset, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: read CSV header: %v", core.ErrIngestion, err)
	}

	ds := &core.Dataset{}
	seen := make(map[string]struct{}, len(header))
	for i, h := range header {
		if i == 0 {
			// Strip the UTF-8 BOM spreadsheet exports tend to carry.
			h = strings.TrimPrefix(h, "\uFEFF")
		}
		name := normalizeHeader(h)
		if name == "" {
			return nil, fmt.Errorf("%w: empty column name at position %d", core.ErrIngestion, i+1)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w: duplicate column %q", core.ErrIngestion, name)
		}
		seen[name] = struct{}{}
		ds.Columns = append(ds.Columns, name)
	}

	for {
		record, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("%w: read CSV row %d: %v", core.ErrIngestion, len(ds.Rows)+2, err)
		}
		values := make(map[string]any, len(ds.Columns))
		for i, col := range ds.Columns {
			values[col] = inferValue(record[i])
		}
		ds.Rows = append(ds.Rows, core.Row{ID: core.RowID(len(ds.Rows)), Values: values})
	}
	return ds, nil
}

// inferValue converts a CSV cell to its most specific type. The
// inference order matters: "1" is an integer, not a bool.
func inferValue(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	switch s {
	case "true", "True", "TRUE":
		return true
	case "false", "False", "FALSE":
		return false
	}
	return s
}

// ParseJSON parses a JSON array of objects. Column order follows the
// key order of the first object, with keys first seen in later
// objects appended.
func ParseJSON(data []byte) (*core.Dataset, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", core.ErrIngestion, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return nil, fmt.Errorf("%w: JSON payload must be an array of objects", core.ErrIngestion)
	}

	ds := &core.Dataset{}
	seen := make(map[string]struct{})
	for dec.More() {
		values, order, err := decodeObject(dec)
		if err != nil {
			return nil, fmt.Errorf("%w: JSON element %d: %v", core.ErrIngestion, len(ds.Rows)+1, err)
		}
		for _, k := range order {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				ds.Columns = append(ds.Columns, k)
			}
		}
		ds.Rows = append(ds.Rows, core.Row{ID: core.RowID(len(ds.Rows)), Values: values})
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", core.ErrIngestion, err)
	}
	return ds, nil
}

// decodeObject reads one object from the decoder, preserving key
// order.
func decodeObject(dec *json.Decoder) (map[string]any, []string, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, nil, fmt.Errorf("array element is not an object")
	}

	values := make(map[string]any)
	var order []string
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("object key is not a string")
		}
		key = normalizeHeader(key)

		var raw any
		if err := dec.Decode(&raw); err != nil {
			return nil, nil, fmt.Errorf("value for %q: %w", key, err)
		}
		values[key] = normalizeJSONValue(raw)
		order = append(order, key)
	}
	if _, err := dec.Token(); err != nil {
		return nil, nil, err
	}
	return values, order, nil
}

// normalizeJSONValue converts decoded JSON values to the dataset's
// value types: json.Number becomes int64 when integral, float64
// otherwise. Nested containers are normalized recursively.
func normalizeJSONValue(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := strconv.ParseInt(string(val), 10, 64); err == nil {
			return i
		}
		f, _ := val.Float64()
		return f
	case []any:
		for i := range val {
			val[i] = normalizeJSONValue(val[i])
		}
		return val
	case map[string]any:
		for k := range val {
			val[k] = normalizeJSONValue(val[k])
		}
		return val
	default:
		return v
	}
}

// normalizeHeader trims whitespace and applies Unicode NFC so that
// visually identical column names compare equal.
func normalizeHeader(h string) string {
	return norm.NFC.String(strings.TrimSpace(h))
}
