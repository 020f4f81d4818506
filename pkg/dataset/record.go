package dataset

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// Field is one key of a Record with its raw JSON value.
type Field struct {
	Key   string
	Value json.RawMessage
}

// Record is a JSON object that remembers the order of its keys, so records
// read from an existing dataset are written back the way they were found.
type Record struct {
	fields []Field
}

func (r *Record) UnmarshalJSON(data []byte) error {
	res := gjson.ParseBytes(data)
	if !gjson.ValidBytes(data) || !res.IsObject() {
		return errors.New("dataset: record is not a JSON object")
	}
	r.fields = r.fields[:0]
	res.ForEach(func(key, value gjson.Result) bool {
		r.fields = append(r.fields, Field{Key: key.String(), Value: json.RawMessage(value.Raw)})
		return true
	})
	return nil
}

func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		if len(f.Value) == 0 {
			buf.WriteString("null")
		} else {
			buf.Write(f.Value)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Keys returns the keys in order.
func (r *Record) Keys() []string {
	keys := make([]string, len(r.fields))
	for i, f := range r.fields {
		keys[i] = f.Key
	}
	return keys
}

// Raw returns the raw value stored under key.
func (r *Record) Raw(key string) (json.RawMessage, bool) {
	for _, f := range r.fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// String returns the value of key when it is a JSON string.
func (r *Record) String(key string) string {
	raw, ok := r.Raw(key)
	if !ok {
		return ""
	}
	res := gjson.ParseBytes(raw)
	if res.Type != gjson.String {
		return ""
	}
	return res.Str
}

// Set replaces the value of key in place, or appends key when absent.
func (r *Record) Set(key string, v interface{}) error {
	raw, err := marshalNoEscape(v)
	if err != nil {
		return fmt.Errorf("dataset: set %q: %w", key, err)
	}
	for i := range r.fields {
		if r.fields[i].Key == key {
			r.fields[i].Value = raw
			return nil
		}
	}
	r.fields = append(r.fields, Field{Key: key, Value: raw})
	return nil
}

// Delete removes key, reporting whether it was present.
func (r *Record) Delete(key string) bool {
	for i := range r.fields {
		if r.fields[i].Key == key {
			r.fields = append(r.fields[:i], r.fields[i+1:]...)
			return true
		}
	}
	return false
}

func marshalNoEscape(v interface{}) (json.RawMessage, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return json.RawMessage(bytes.TrimRight(buf.Bytes(), "\n")), nil
}
