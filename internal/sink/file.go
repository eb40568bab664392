package sink

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"harvester/internal/logger"
	"harvester/internal/models"
)

// Manifest describes a table written by FileSink.
type Manifest struct {
	Kinds          map[string]int `json:"kinds"`
	Table          string         `json:"table"`
	Platform       string         `json:"platform"`
	IDField        string         `json:"id_field"`
	FirstCreatedAt string         `json:"first_created_at"`
	LastCreatedAt  string         `json:"last_created_at"`
	SavedAt        string         `json:"saved_at"`
	Columns        []string       `json:"columns"`
	Records        int            `json:"records"`
}

// FileSink writes <dir>/<table>.jsonl and <dir>/<table>.manifest.json. Each JSONL row
// carries the record id under the table's IDField, matching the manifest.
type FileSink struct {
	log *logger.Logger
	now func() time.Time
	dir string
}

// NewFileSink creates dir if needed.
func NewFileSink(dir string, log *logger.Logger) (*FileSink, error) {
	if log == nil {
		log = logger.Discard()
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	return &FileSink{dir: dir, log: log, now: time.Now}, nil
}

// Path returns the JSONL path used for the named table.
func (s *FileSink) Path(table string) string {
	return filepath.Join(s.dir, table+".jsonl")
}

// ManifestPath returns the manifest path belonging to a JSONL table file.
func ManifestPath(jsonlPath string) string {
	return strings.TrimSuffix(jsonlPath, ".jsonl") + ".manifest.json"
}

// ReadManifest reads a manifest written by FileSink.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", path, err)
	}

	return &m, nil
}

// LoadFile reads a JSONL table file. The id key is taken from the manifest next to
// it; without a manifest it is "id".
func LoadFile(path string) ([]models.Record, error) {
	idField := ""

	m, err := ReadManifest(ManifestPath(path))

	switch {
	case err == nil:
		idField = m.IDField
	case !errors.Is(err, os.ErrNotExist):
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := ReadJSONL(f, idField)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	return records, nil
}

// Save writes the table. An existing file of the same name is replaced.
func (s *FileSink) Save(ctx context.Context, table *models.Table) error {
	if err := checkTableName(table.Name); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := writeAtomic(s.Path(table.Name), func(w io.Writer) error {
		return WriteJSONL(w, table.IDField, table.Records)
	}); err != nil {
		return fmt.Errorf("write table %s: %w", table.Name, err)
	}

	manifest := summarize(table)
	manifest.SavedAt = s.now().UTC().Format(time.RFC3339)

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	path := ManifestPath(s.Path(table.Name))
	if err := writeAtomic(path, func(w io.Writer) error {
		_, err := w.Write(data)

		return err
	}); err != nil {
		return fmt.Errorf("write manifest %s: %w", table.Name, err)
	}

	s.log.Info("table saved", "table", table.Name, "records", table.Len(), "path", s.Path(table.Name))

	return nil
}

// Close is a no-op.
func (s *FileSink) Close() error {
	return nil
}

// WriteJSONL writes one JSON object per record, keys in column order, with the id
// under idField ("id" when empty).
func WriteJSONL(w io.Writer, idField string, records []models.Record) error {
	if idField == "" {
		idField = models.Columns[0]
	}

	bw := bufio.NewWriter(w)

	for i := range records {
		row, err := encodeRow(&records[i], idField)
		if err != nil {
			return fmt.Errorf("encode record %s: %w", records[i].ID, err)
		}

		bw.Write(row)
		bw.WriteByte('\n')
	}

	return bw.Flush()
}

func encodeRow(rec *models.Record, idField string) ([]byte, error) {
	var plain bytes.Buffer

	enc := json.NewEncoder(&plain)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(rec); err != nil {
		return nil, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(plain.Bytes(), &fields); err != nil {
		return nil, err
	}

	var row bytes.Buffer

	row.WriteByte('{')

	for i, col := range models.Columns {
		value, ok := fields[col]
		if !ok {
			continue
		}

		key := col
		if i == 0 {
			key = idField
		}

		if row.Len() > 1 {
			row.WriteByte(',')
		}

		name, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}

		row.Write(name)
		row.WriteByte(':')
		row.Write(value)
		delete(fields, col)
	}

	for _, key := range slices.Sorted(maps.Keys(fields)) {
		name, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}

		row.WriteByte(',')
		row.Write(name)
		row.WriteByte(':')
		row.Write(fields[key])
	}

	row.WriteByte('}')

	return row.Bytes(), nil
}

// ReadJSONL reads records written by WriteJSONL with the same idField. Blank lines
// are skipped.
func ReadJSONL(r io.Reader, idField string) ([]models.Record, error) {
	if idField == "" {
		idField = models.Columns[0]
	}

	var records []models.Record

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	line := 0
	for scanner.Scan() {
		line++

		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var rec models.Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		if idField != models.Columns[0] {
			var keyed map[string]json.RawMessage
			if err := json.Unmarshal(raw, &keyed); err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}

			if v, ok := keyed[idField]; ok {
				if err := json.Unmarshal(v, &rec.ID); err != nil {
					return nil, fmt.Errorf("line %d: %s: %w", line, idField, err)
				}
			}
		}

		records = append(records, rec)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

func summarize(t *models.Table) Manifest {
	m := Manifest{
		Kinds:    map[string]int{},
		Table:    t.Name,
		Platform: t.Platform,
		IDField:  t.IDField,
		Columns:  columns(t),
		Records:  t.Len(),
	}

	for i, r := range t.Records {
		m.Kinds[string(r.Kind)]++

		if i == 0 {
			m.FirstCreatedAt = r.CreatedAt
		}

		m.LastCreatedAt = r.CreatedAt
	}

	return m
}

// writeAtomic writes to a temporary file in the target directory and renames it over path.
func writeAtomic(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}

	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()

		return err
	}

	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), path)
}
