package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stoneage-light/stoneage/pkg/storage"
)

func newTestServer(t *testing.T, db *storage.DB, user, pass string) (*httptest.Server, string) {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"notices.json": `[{"id":1,"title":"a"}]`,
		"petData.json": `{"lastUpdated":"x","totalCount":0,"pets":[]}`,
		"notes.txt":    "ignored",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	ts := httptest.NewServer(New(dir, db, user, pass, nil).Handler())
	t.Cleanup(ts.Close)
	return ts, dir
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestListDatasets(t *testing.T) {
	ts, _ := newTestServer(t, nil, "", "")
	code, body := get(t, ts.URL+"/api/datasets")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	var infos []DatasetInfo
	if err := json.Unmarshal([]byte(body), &infos); err != nil {
		t.Fatal(err)
	}
	if len(infos) != 2 || infos[0].Name != "notices" || infos[1].Name != "petData" {
		t.Fatalf("unexpected datasets %+v", infos)
	}
}

func TestGetDataset(t *testing.T) {
	ts, _ := newTestServer(t, nil, "", "")
	tests := []struct {
		path string
		code int
	}{
		{"/api/datasets/notices", http.StatusOK},
		{"/api/datasets/notices.json", http.StatusOK},
		{"/api/datasets/missing", http.StatusNotFound},
		{"/api/datasets/..%2Fsecret", http.StatusNotFound},
		{"/api/datasets/.hidden", http.StatusNotFound},
	}
	for _, tt := range tests {
		code, body := get(t, ts.URL+tt.path)
		if code != tt.code {
			t.Errorf("%s: expected %d, got %d", tt.path, tt.code, code)
		}
		if tt.code == http.StatusOK && body != `[{"id":1,"title":"a"}]` {
			t.Errorf("%s: unexpected body %s", tt.path, body)
		}
	}
}

func TestChangesRequireDB(t *testing.T) {
	ts, _ := newTestServer(t, nil, "", "")
	if code, _ := get(t, ts.URL+"/api/changes"); code != http.StatusNotFound {
		t.Fatalf("expected 404 without a database, got %d", code)
	}
}

func TestChanges(t *testing.T) {
	db, err := storage.Open(filepath.Join(t.TempDir(), "h.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	ents, _ := storage.BuildEntries("notices", []storage.EntryItem{{Link: "https://b.example/?wr_id=1", Title: "one"}})
	changes, err := db.UpsertFeedEntries(context.Background(), storage.NewRunID(), "notices", ents)
	if err != nil {
		t.Fatal(err)
	}
	if err := db.LogChanges(context.Background(), changes); err != nil {
		t.Fatal(err)
	}

	ts, _ := newTestServer(t, db, "", "")
	code, body := get(t, ts.URL+"/api/changes?limit=5")
	if code != http.StatusOK || !strings.Contains(body, `"ChangeType":"added"`) {
		t.Fatalf("unexpected response %d %s", code, body)
	}
	if code, _ := get(t, ts.URL+"/api/changes?limit=abc"); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a bad limit, got %d", code)
	}
	if code, body := get(t, ts.URL+"/api/stats"); code != http.StatusOK || !strings.Contains(body, `"Feed":"notices"`) {
		t.Fatalf("unexpected stats response %d %s", code, body)
	}
}

func TestBasicAuth(t *testing.T) {
	ts, _ := newTestServer(t, nil, "admin", "secret")
	if code, _ := get(t, ts.URL+"/api/datasets"); code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}
	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/datasets", nil)
	req.SetBasicAuth("admin", "secret")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with credentials, got %d", resp.StatusCode)
	}
}

func TestMetrics(t *testing.T) {
	ts, _ := newTestServer(t, nil, "", "")
	get(t, ts.URL+"/api/datasets")
	code, body := get(t, ts.URL+"/metrics")
	if code != http.StatusOK || !strings.Contains(body, "stoneage_server_requests_total") {
		t.Fatalf("expected request counter in metrics, got %d", code)
	}
}
