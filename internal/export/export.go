// Package export materializes Gold datasets into external sinks. Sinks
// implement pipeline.Exporter and run only after a run's quality score is
// committed; a sink failure is an observability concern, never pipeline
// state.
package export

import (
	"fmt"
	"strconv"
	"strings"
)

// safeName reduces a source name to [a-z0-9_] so it can serve as a file
// stem or a SQL table suffix.
func safeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "unnamed"
	}
	return b.String()
}

// formatValue renders one typed cell as text. nil becomes the empty
// string, mirroring how absent cells parse on the way in.
func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}
