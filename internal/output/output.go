// Package output renders extraction results as text, JSON, CSV or YAML.
package output

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/stmtgrid/internal/extract"
)

// Format is an output format name.
type Format string

// Supported formats.
const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatYAML Format = "yaml"
)

// Formats lists the supported formats in display order.
var Formats = []Format{FormatText, FormatJSON, FormatCSV, FormatYAML}

// ParseFormat parses a format name. The empty string means text.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatText, nil
	case FormatText, FormatJSON, FormatCSV, FormatYAML:
		return f, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported output format %q", s)
	}
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatYAML:
		return "application/yaml"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Document is one extracted file in a batch. Err is set instead of Result
// when the file failed.
type Document struct {
	File   string          `json:"file" yaml:"file"`
	Result *extract.Result `json:"result,omitempty" yaml:"result,omitempty"`
	Error  string          `json:"error,omitempty" yaml:"error,omitempty"`
	Code   string          `json:"code,omitempty" yaml:"code,omitempty"`
}

// NewDocument builds a batch entry from the outcome of one file.
func NewDocument(file string, res *extract.Result, err error) Document {
	d := Document{File: file, Result: res}
	if err != nil {
		d.Result = nil
		d.Error = err.Error()
		d.Code = extract.Code(err)
	}
	return d
}

// Write renders a single result.
func Write(w io.Writer, f Format, res *extract.Result) error {
	if res == nil {
		return errors.New("nil result")
	}
	switch f {
	case FormatJSON:
		return writeJSON(w, res)
	case FormatYAML:
		return writeYAML(w, res)
	case FormatCSV:
		cw := csv.NewWriter(w)
		writeRows(cw, nil, res)
		cw.Flush()
		return cw.Error()
	default:
		return writeText(w, res)
	}
}

// WriteBatch renders several documents. CSV records are prefixed with the
// file name; text output gets a "# file" heading per document.
func WriteBatch(w io.Writer, f Format, docs []Document) error {
	switch f {
	case FormatJSON:
		return writeJSON(w, struct {
			Documents []Document `json:"documents"`
		}{docs})
	case FormatYAML:
		return writeYAML(w, struct {
			Documents []Document `yaml:"documents"`
		}{docs})
	case FormatCSV:
		cw := csv.NewWriter(w)
		for _, d := range docs {
			if d.Result == nil {
				continue
			}
			writeRows(cw, []string{d.File}, d.Result)
		}
		cw.Flush()
		return cw.Error()
	default:
		for i, d := range docs {
			if i > 0 {
				if _, err := io.WriteString(w, "\n"); err != nil {
					return err
				}
			}
			if _, err := fmt.Fprintf(w, "# %s\n", d.File); err != nil {
				return err
			}
			if d.Error != "" {
				if _, err := fmt.Fprintf(w, "error (%s): %s\n", d.Code, d.Error); err != nil {
					return err
				}
				continue
			}
			if d.Result == nil {
				continue
			}
			if err := writeText(w, d.Result); err != nil {
				return err
			}
		}
		return nil
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// writeRows writes one CSV record per structured row.
func writeRows(cw *csv.Writer, prefix []string, res *extract.Result) {
	for _, row := range res.StructuredRows {
		rec := make([]string, 0, len(prefix)+len(row))
		rec = append(rec, prefix...)
		rec = append(rec, row...)
		_ = cw.Write(rec)
	}
}

// writeText writes the full text followed by the structured rows, one per
// line with cells separated by tabs.
func writeText(w io.Writer, res *extract.Result) error {
	var b strings.Builder
	b.WriteString(res.FullText)
	if !strings.HasSuffix(res.FullText, "\n") {
		b.WriteString("\n")
	}
	if len(res.StructuredRows) > 0 {
		b.WriteString("\n## rows (")
		b.WriteString(strconv.Itoa(len(res.StructuredRows)))
		b.WriteString(", ")
		b.WriteString(string(res.Path))
		b.WriteString(")\n")
		for _, row := range res.StructuredRows {
			b.WriteString(strings.Join(row, "\t"))
			b.WriteString("\n")
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}
