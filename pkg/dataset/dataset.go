// Package dataset persists crawl results as the pretty-printed JSON files the
// companion app reads at render time.
package dataset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"time"
)

// TimeLayout is the ISO-8601 form used for lastUpdated stamps.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// Timestamp formats t the way lastUpdated is written.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// Layout selects the on-disk shape of a dataset.
type Layout int

const (
	// LayoutArray writes the records as a bare JSON array.
	LayoutArray Layout = iota
	// LayoutEnvelope writes {lastUpdated, [totalCount], <Key>: records}.
	LayoutEnvelope
)

// Dataset is an ordered sequence of records plus its last-updated stamp.
type Dataset struct {
	Layout Layout
	// Key names the records field of an envelope.
	Key string
	// WithCount adds totalCount to an envelope.
	WithCount bool
	// Records is any JSON-encodable slice.
	Records interface{}
	// Base carries top-level fields of an envelope that must survive a rewrite.
	Base *Record

	LastUpdated string
}

// Len returns the number of records.
func (d *Dataset) Len() int {
	v := reflect.ValueOf(d.Records)
	if v.Kind() != reflect.Slice {
		return 0
	}
	return v.Len()
}

// Writer stamps and writes datasets.
type Writer struct {
	// Now defaults to time.Now.
	Now func() time.Time
}

// Write stamps ds.LastUpdated with the current instant and replaces the file
// at path with the serialized dataset. The destination directory is created
// when missing. The file is written to a sibling temp file first and renamed
// over path, so readers never observe a partial document.
func (w *Writer) Write(path string, ds *Dataset) error {
	now := time.Now
	if w != nil && w.Now != nil {
		now = w.Now
	}
	ds.LastUpdated = Timestamp(now())

	data, err := Encode(ds)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating dataset directory %s: %w", dir, err)
	}

	return writeFileAtomic(path, data)
}

// Encode serializes ds with 2-space indentation, without HTML escaping.
func Encode(ds *Dataset) ([]byte, error) {
	records := ds.Records
	if isNilSlice(records) {
		records = json.RawMessage("[]")
	}

	var v interface{} = records
	if ds.Layout == LayoutEnvelope {
		env := Record{}
		if ds.Base != nil {
			env.fields = append(env.fields, ds.Base.fields...)
		}
		if err := env.Set("lastUpdated", ds.LastUpdated); err != nil {
			return nil, err
		}
		if ds.WithCount {
			if err := env.Set("totalCount", ds.Len()); err != nil {
				return nil, err
			}
		}
		key := ds.Key
		if key == "" {
			key = "records"
		}
		if err := env.Set(key, records); err != nil {
			return nil, err
		}
		v = env
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encoding dataset: %w", err)
	}
	return buf.Bytes(), nil
}

func isNilSlice(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Slice && rv.IsNil()
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck
		return fmt.Errorf("writing %s: %w", tmpPath, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close() //nolint:errcheck
		return fmt.Errorf("chmod %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
