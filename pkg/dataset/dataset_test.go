package dataset

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var fixedNow = func() time.Time { return time.Date(2026, 4, 5, 6, 7, 8, 9_000_000, time.FixedZone("KST", 9*3600)) }

type entry struct {
	Title string `json:"title"`
	Link  string `json:"link"`
}

func TestTimestamp(t *testing.T) {
	if got := Timestamp(fixedNow()); got != "2026-04-04T21:07:08.009Z" {
		t.Fatalf("unexpected timestamp %s", got)
	}
}

func TestWrite_ZeroEntries(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	w := &Writer{Now: fixedNow}

	array := &Dataset{Layout: LayoutArray}
	if err := w.Write(filepath.Join(dir, "quest.json"), array); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(filepath.Join(dir, "quest.json"))
	if string(data) != "[]\n" {
		t.Fatalf("expected an empty array, got %q", data)
	}
	if array.LastUpdated != "2026-04-04T21:07:08.009Z" {
		t.Fatalf("expected the stamp on the dataset, got %q", array.LastUpdated)
	}

	env := &Dataset{Layout: LayoutEnvelope, Key: "pets", WithCount: true}
	if err := w.Write(filepath.Join(dir, "petData.json"), env); err != nil {
		t.Fatal(err)
	}
	data, _ = os.ReadFile(filepath.Join(dir, "petData.json"))
	want := "{\n  \"lastUpdated\": \"2026-04-04T21:07:08.009Z\",\n  \"totalCount\": 0,\n  \"pets\": []\n}\n"
	if string(data) != want {
		t.Fatalf("unexpected envelope:\n%s", data)
	}
}

func TestEncode_NoHTMLEscape(t *testing.T) {
	ds := &Dataset{Layout: LayoutArray, Records: []entry{{Title: "<b>공지</b> & 안내", Link: "https://b.example/?a=1&wr_id=2"}}}
	data, err := Encode(ds)
	if err != nil {
		t.Fatal(err)
	}
	s := string(data)
	if !strings.Contains(s, `"<b>공지</b> & 안내"`) || !strings.Contains(s, `a=1&wr_id=2`) {
		t.Fatalf("expected unescaped HTML, got %s", s)
	}
	if !strings.HasPrefix(s, "[\n  {\n    \"title\"") {
		t.Fatalf("expected 2-space indentation, got %s", s)
	}
}

func TestWrite_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notices.json")
	records := []entry{{Title: "a", Link: "l"}}

	first := &Writer{Now: fixedNow}
	if err := first.Write(path, &Dataset{Layout: LayoutArray, Records: records}); err != nil {
		t.Fatal(err)
	}
	a, _ := os.ReadFile(path)

	later := &Writer{Now: func() time.Time { return fixedNow().Add(time.Hour) }}
	if err := later.Write(path, &Dataset{Layout: LayoutArray, Records: records}); err != nil {
		t.Fatal(err)
	}
	b, _ := os.ReadFile(path)
	if string(a) != string(b) {
		t.Fatalf("identical records must produce identical array files:\n%s\n%s", a, b)
	}

	leftovers, _ := filepath.Glob(filepath.Join(filepath.Dir(path), ".*.tmp"))
	if len(leftovers) != 0 {
		t.Fatalf("temp files left behind: %v", leftovers)
	}
}

func TestRecord_PreservesOrder(t *testing.T) {
	var r Record
	if err := json.Unmarshal([]byte(`{"z":1,"a":{"n":[1,2]},"m":"x"}`), &r); err != nil {
		t.Fatal(err)
	}
	if err := r.Set("a", "replaced"); err != nil {
		t.Fatal(err)
	}
	if err := r.Set("new", true); err != nil {
		t.Fatal(err)
	}
	if !r.Delete("z") || r.Delete("missing") {
		t.Fatal("unexpected Delete result")
	}
	out, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `{"a":"replaced","m":"x","new":true}` {
		t.Fatalf("unexpected record %s", out)
	}
	if r.String("m") != "x" || r.String("new") != "" {
		t.Fatal("String must only return JSON strings")
	}

	if err := json.Unmarshal([]byte(`[1]`), &r); err == nil {
		t.Fatal("expected a non-object to be rejected")
	}
}

func TestCharacters_CleanAndRewrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "characters.json")
	src := `{"version":3,"lastUpdated":"2020-01-01T00:00:00.000Z","characters":[` +
		`{"name":"kai","colorImages":["a.gif"],"weapons":[{"name":"axe","image":"axe.png"}],"url":"u"},` +
		`{"name":"plain"}]}`
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	chars, err := LoadCharacters(path)
	if err != nil {
		t.Fatal(err)
	}
	if n := chars.Clean(); n != 1 {
		t.Fatalf("expected 1 cleaned record, got %d", n)
	}
	if err := (&Writer{Now: fixedNow}).Write(path, chars.Dataset()); err != nil {
		t.Fatal(err)
	}

	data, _ := os.ReadFile(path)
	var doc struct {
		Version     int               `json:"version"`
		LastUpdated string            `json:"lastUpdated"`
		Characters  []json.RawMessage `json:"characters"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatal(err)
	}
	if doc.Version != 3 || doc.LastUpdated != "2026-04-04T21:07:08.009Z" || len(doc.Characters) != 2 {
		t.Fatalf("unexpected document %s", data)
	}
	if strings.Contains(string(data), "colorImages") || strings.Contains(string(data), "weapons") {
		t.Fatalf("enrichment fields left in %s", data)
	}
	if strings.Index(string(data), `"version"`) > strings.Index(string(data), `"lastUpdated"`) {
		t.Fatalf("top-level order changed: %s", data)
	}
}

func TestLoadCharacters_Errors(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadCharacters(filepath.Join(dir, "none.json")); err == nil {
		t.Fatal("expected missing file error")
	}
	path := filepath.Join(dir, "bad.json")
	os.WriteFile(path, []byte(`{"items":[]}`), 0o644)
	if _, err := LoadCharacters(path); err == nil {
		t.Fatal("expected error without a characters array")
	}
}
