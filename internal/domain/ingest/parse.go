package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/gabriel-vasile/mimetype"
	"github.com/goccy/go-yaml"
	toml "github.com/pelletier/go-toml/v2"

	"github.com/inthisone/dashcore/internal/shared/types"
)

// Structured parses raw bytes into the document form widgets consume. The
// hint wins when present (json, yaml, toml, csv, text); otherwise the format
// is resolved from the served media type, then sniffed from the content.
// Sniffing recognizes json and csv; yaml and toml need an explicit hint.
// Returns the payload and the resolved format name.
//
// A document that is a bare numeric series comes back wrapped with its
// statistical digest so table and chart widgets render summaries without
// recomputing them.
func Structured(raw []byte, mediaType, hint string) (interface{}, string, error) {
	format := resolveFormat(raw, mediaType, hint)

	var payload interface{}
	switch format {
	case "json":
		if err := sonic.Unmarshal(raw, &payload); err != nil {
			return nil, format, fmt.Errorf("%w: json: %v", types.ErrParseFailed, err)
		}
	case "yaml", "yml":
		format = "yaml"
		if err := yaml.Unmarshal(raw, &payload); err != nil {
			return nil, format, fmt.Errorf("%w: yaml: %v", types.ErrParseFailed, err)
		}
	case "toml":
		doc := map[string]interface{}{}
		if err := toml.Unmarshal(raw, &doc); err != nil {
			return nil, format, fmt.Errorf("%w: toml: %v", types.ErrParseFailed, err)
		}
		payload = doc
	case "csv":
		doc, err := parseCSV(raw)
		if err != nil {
			return nil, format, fmt.Errorf("%w: csv: %v", types.ErrParseFailed, err)
		}
		payload = doc
	case "text":
		text := string(raw)
		payload = map[string]interface{}{
			"text":       text,
			"line_count": strings.Count(text, "\n") + 1,
		}
	default:
		return nil, format, fmt.Errorf("%w: unknown parser hint %q", types.ErrParseFailed, hint)
	}

	if series, ok := numericSeries(payload); ok {
		payload = map[string]interface{}{
			"series": payload,
			"digest": Digest(series),
		}
	}

	return payload, format, nil
}

func resolveFormat(raw []byte, mediaType, hint string) string {
	if hint != "" {
		return strings.ToLower(strings.TrimSpace(hint))
	}

	mt := mediaType
	if i := strings.Index(mt, ";"); i >= 0 {
		mt = mt[:i]
	}
	switch strings.ToLower(strings.TrimSpace(mt)) {
	case "application/json", "text/json":
		return "json"
	case "application/yaml", "application/x-yaml", "text/yaml", "text/x-yaml":
		return "yaml"
	case "application/toml", "text/toml":
		return "toml"
	case "text/csv":
		return "csv"
	}

	detected := mimetype.Detect(raw)
	switch {
	case detected.Is("application/json"):
		return "json"
	case detected.Is("text/csv"):
		return "csv"
	}
	return "text"
}

// parseCSV decodes a headered CSV into column names plus row maps. Short rows
// pad with empty strings; long rows drop the surplus cells.
func parseCSV(raw []byte) (interface{}, error) {
	reader := csv.NewReader(bytes.NewReader(raw))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return map[string]interface{}{
			"columns":   []interface{}{},
			"rows":      []interface{}{},
			"row_count": 0,
		}, nil
	}

	columns := make([]interface{}, len(records[0]))
	for i, c := range records[0] {
		columns[i] = c
	}

	rows := make([]interface{}, 0, len(records)-1)
	for _, record := range records[1:] {
		row := map[string]interface{}{}
		for i := range columns {
			if i < len(record) {
				row[columns[i].(string)] = record[i]
			} else {
				row[columns[i].(string)] = ""
			}
		}
		rows = append(rows, row)
	}

	return map[string]interface{}{
		"columns":   columns,
		"rows":      rows,
		"row_count": len(rows),
	}, nil
}

// numericSeries reports whether the payload is a non-empty flat array of
// numbers
func numericSeries(payload interface{}) ([]float64, bool) {
	arr, ok := payload.([]interface{})
	if !ok || len(arr) == 0 {
		return nil, false
	}
	series := make([]float64, 0, len(arr))
	for _, v := range arr {
		f, ok := asFloat(v)
		if !ok {
			return nil, false
		}
		series = append(series, f)
	}
	return series, true
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
