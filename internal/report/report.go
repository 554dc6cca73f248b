// Package report renders visibility reports for people and spreadsheets.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/saturnRangs/ObservingSatellites/internal/visibility"
)

// ErrUnknownFormat is returned for format names Encode does not support.
var ErrUnknownFormat = errors.New("unknown report format")

// Format names an output encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCSV  Format = "csv"
	FormatText Format = "text"
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
)

var contentTypes = map[Format]string{
	FormatJSON: "application/json",
	FormatYAML: "application/yaml",
	FormatCSV:  "text/csv; charset=utf-8",
	FormatText: "text/plain; charset=utf-8",
	FormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	FormatPDF:  "application/pdf",
}

// Formats lists the supported formats in a stable order.
func Formats() []Format {
	return []Format{FormatJSON, FormatYAML, FormatCSV, FormatText, FormatXLSX, FormatPDF}
}

// ParseFormat resolves a case-insensitive format name. "" means JSON and
// "table"/"txt" are accepted for text.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatJSON, nil
	case "table", "txt":
		return FormatText, nil
	case "yml":
		return FormatYAML, nil
	default:
		if _, ok := contentTypes[f]; ok {
			return f, nil
		}
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// ContentType returns the MIME type for f.
func ContentType(f Format) string {
	if ct, ok := contentTypes[f]; ok {
		return ct
	}
	return "application/octet-stream"
}

// Extension returns the file extension for f, without the dot.
func (f Format) Extension() string {
	if f == FormatText {
		return "txt"
	}
	return string(f)
}

// Encode writes r to w in format f.
func Encode(w io.Writer, f Format, r *visibility.Report) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	case FormatCSV:
		return writeCSV(w, r)
	case FormatText:
		return writeText(w, r)
	case FormatXLSX:
		return writeXLSX(w, r)
	case FormatPDF:
		return writePDF(w, r)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, string(f))
	}
}

// peakObjects indexes the visible object names by entry time.
func peakObjects(r *visibility.Report) map[int64][]string {
	m := make(map[int64][]string, len(r.Peaks))
	for _, p := range r.Peaks {
		m[p.Time.Unix()] = p.Objects
	}
	return m
}
