package editor

import (
	"bytes"
	"encoding/csv"
	"strings"

	"appletree/internal/model"
)

type table struct{}

// Table bodies are CSV. A body that is not valid CSV is kept as is.
func Table() Kind { return table{} }

func (table) Name() string              { return model.TypeTable }
func (table) ImageRefs(string) []string { return nil }

func (table) RewriteImageRefs(body string, _ map[string]string) (string, error) {
	return body, nil
}

func (table) Normalize(body string) string {
	rows, err := Rows(body)
	if err != nil {
		return body
	}
	out, err := FormatRows(rows)
	if err != nil {
		return body
	}
	return out
}

// Rows parses a table body. Rows may have different lengths.
func Rows(body string) ([][]string, error) {
	if strings.TrimSpace(body) == "" {
		return [][]string{}, nil
	}
	r := csv.NewReader(strings.NewReader(body))
	r.FieldsPerRecord = -1
	return r.ReadAll()
}

func FormatRows(rows [][]string) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return "", err
	}
	return buf.String(), nil
}
