// Package records loads record collections from CSV or JSON files.
//
// Columns named like a well-known field (title, author, translator,
// publisher, place, language) populate Record.Fields; every other column is
// kept in Record.Extra so it can be addressed as custom:<column>.
package records

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ritzau/translation-network/pkg/logging"
	"github.com/ritzau/translation-network/pkg/model"
)

// ErrUnsupportedFormat is returned for files that are neither CSV nor JSON.
var ErrUnsupportedFormat = errors.New("unsupported record file format")

var knownFields = map[string]string{
	model.FieldTitle:      model.FieldTitle,
	model.FieldAuthor:     model.FieldAuthor,
	model.FieldTranslator: model.FieldTranslator,
	model.FieldPublisher:  model.FieldPublisher,
	model.FieldPlace:      model.FieldPlace,
	model.FieldLanguage:   model.FieldLanguage,
}

// LoadFile reads records from path, choosing the parser by extension.
func LoadFile(path string) ([]model.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening records: %w", err)
	}
	defer f.Close()

	var recs []model.Record
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		recs, err = ParseCSV(f)
	case ".json":
		recs, err = ParseJSON(f)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}

	logging.Debug("loaded records", "path", path, "records", len(recs))
	return recs, nil
}

// ParseCSV reads a header row followed by one record per row.
func ParseCSV(r io.Reader) ([]model.Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return []model.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading csv header: %w", err)
	}

	recs := make([]model.Record, 0)
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv line %d: %w", line, err)
		}

		rec := newRecord()
		for i, column := range header {
			if i < len(row) {
				assign(rec, column, row[i])
			}
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// ParseJSON reads an array of flat objects. String values are taken as is,
// arrays of strings are joined with "; " and other scalars are formatted.
func ParseJSON(r io.Reader) ([]model.Record, error) {
	var rows []map[string]any
	if err := json.NewDecoder(r).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decoding json records: %w", err)
	}

	recs := make([]model.Record, 0, len(rows))
	for _, row := range rows {
		rec := newRecord()
		for column, value := range row {
			assign(rec, column, stringify(value))
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func newRecord() model.Record {
	return model.Record{
		Fields: make(map[string]string),
		Extra:  make(map[string]string),
	}
}

func assign(rec model.Record, column, value string) {
	name := strings.TrimSpace(column)
	if field, ok := knownFields[strings.ToLower(name)]; ok {
		rec.Fields[field] = value
		return
	}
	if name != "" {
		rec.Extra[name] = value
	}
}

func stringify(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if s := stringify(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "; ")
	default:
		return fmt.Sprint(v)
	}
}
