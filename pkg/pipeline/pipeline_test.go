package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stoneage-light/stoneage/pkg/crawler"
	"github.com/stoneage-light/stoneage/pkg/dataset"
	"github.com/stoneage-light/stoneage/pkg/storage"
)

const origin = "https://board.example"

type mapFetcher map[string]string

func (m mapFetcher) Fetch(_ context.Context, rawURL string) (*crawler.Page, error) {
	body, ok := m[rawURL]
	if !ok {
		return nil, fmt.Errorf("GET %s: HTTP 404", rawURL)
	}
	return crawler.NewPage(rawURL, body)
}

func noSleep(context.Context, time.Duration) error { return nil }

func noticeListing(ids ...int) string {
	var b strings.Builder
	b.WriteString("<html><body><ul>")
	for _, id := range ids {
		fmt.Fprintf(&b, `<li><a href="/bbs/board.php?bo_table=notice&wr_id=%d">notice %d</a></li>`, id, id)
	}
	b.WriteString(`<li><a href="/bbs/board.php?bo_table=free&wr_id=9">free board</a></li>`)
	b.WriteString("</ul></body></html>")
	return b.String()
}

func noticeDetail(id int) string {
	return fmt.Sprintf(`<html><body><time>2026-01-0%d</time><section class="bo_v_atc"><div class="view-content"><p>body %d</p></div></section></body></html>`, id, id)
}

func newRunner(t *testing.T, f crawler.Fetcher) *Runner {
	t.Helper()
	return &Runner{
		Fetcher:   f,
		OutputDir: t.TempDir(),
		Writer:    &dataset.Writer{Now: func() time.Time { return time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC) }},
		Sleep:     noSleep,
	}
}

func TestArticleJob_WritesNotices(t *testing.T) {
	feed := crawler.NoticesFeed(origin, "/bbs/board.php")
	f := mapFetcher{
		feed.ListURL: noticeListing(1, 2),
		origin + "/bbs/board.php?bo_table=notice&wr_id=1": noticeDetail(1),
		origin + "/bbs/board.php?bo_table=notice&wr_id=2": noticeDetail(2),
	}
	r := newRunner(t, f)

	res, err := r.Run(context.Background(), ArticleJob(feed, 1, NoticesFile))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Count != 2 || res.LastUpdated != "2026-02-03T04:05:06.000Z" {
		t.Fatalf("unexpected result %+v", res)
	}

	data, err := os.ReadFile(filepath.Join(r.OutputDir, NoticesFile))
	if err != nil {
		t.Fatal(err)
	}
	var got []crawler.DetailRecord
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("output is not a JSON array: %v", err)
	}
	if len(got) != 2 || got[0].ID != 1 || got[1].Date != "2026-01-02" || got[1].ContentHTML != "<p>body 2</p>" {
		t.Fatalf("unexpected records %+v", got)
	}
}

func TestArticleJob_IsolatesFailingDetail(t *testing.T) {
	feed := crawler.NoticesFeed(origin, "/bbs/board.php")
	f := mapFetcher{
		feed.ListURL: noticeListing(1, 2),
		origin + "/bbs/board.php?bo_table=notice&wr_id=2": noticeDetail(2),
	}
	r := newRunner(t, f)
	res, err := r.Run(context.Background(), ArticleJob(feed, 1, NoticesFile))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Count != 2 {
		t.Fatalf("expected the failing entry to be kept, got %d records", res.Count)
	}

	r.Policy = crawler.AbortOnFailure
	if _, err := r.Run(context.Background(), ArticleJob(feed, 1, "strict.json")); err == nil {
		t.Fatal("expected fail-fast run to fail")
	}
	if _, err := os.Stat(filepath.Join(r.OutputDir, "strict.json")); !os.IsNotExist(err) {
		t.Fatal("a failed run must not write its dataset")
	}
}

func TestListingJob_ZeroEntries(t *testing.T) {
	feed := crawler.QuestsFeed(origin, "/bbs/board.php", false)
	r := newRunner(t, mapFetcher{})
	res, err := r.Run(context.Background(), ListingJob(feed, 2, QuestsFile))
	if err != nil {
		t.Fatalf("failing pages must not fail the run: %v", err)
	}
	data, err := os.ReadFile(res.Path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(string(data)) != "[]" {
		t.Fatalf("expected empty array, got %s", data)
	}
}

func TestRun_RecordsHistory(t *testing.T) {
	db, err := storage.Open(filepath.Join(t.TempDir(), "h.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	feed := crawler.NoticesFeed(origin, "/bbs/board.php")
	f := mapFetcher{
		feed.ListURL: noticeListing(1),
		origin + "/bbs/board.php?bo_table=notice&wr_id=1": noticeDetail(1),
		origin + "/bbs/board.php?bo_table=notice&wr_id=2": noticeDetail(2),
	}
	r := newRunner(t, f)
	r.DB = db

	var calls []bool
	r.OnChanges = func(_ string, _ []storage.Change, first bool) { calls = append(calls, first) }

	res, err := r.Run(context.Background(), ArticleJob(feed, 1, NoticesFile))
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsFirstRun || len(res.Changes) != 1 {
		t.Fatalf("expected first run with one added entry, got %+v", res)
	}

	f[feed.ListURL] = noticeListing(1, 2)
	res, err = r.Run(context.Background(), ArticleJob(feed, 1, NoticesFile))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsFirstRun || len(res.Changes) != 1 || res.Changes[0].ChangeType != storage.ChangeAdded {
		t.Fatalf("expected one added change, got %+v", res.Changes)
	}

	logged, err := db.ListRecentChanges(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(logged) != 1 {
		t.Fatalf("first run changes must not be logged, got %v", logged)
	}
	if len(calls) != 2 || !calls[0] || calls[1] {
		t.Fatalf("unexpected OnChanges calls %v", calls)
	}
}

func TestRunAll_ContinuesAfterFailure(t *testing.T) {
	tmp := t.TempDir()
	r := newRunner(t, mapFetcher{})
	jobs := []Job{
		CleanCharactersJob(filepath.Join(tmp, "missing.json")),
		ListingJob(crawler.QuestsFeed(origin, "/bbs/board.php", false), 1, QuestsFile),
	}
	results, err := r.RunAll(context.Background(), jobs)
	if err == nil {
		t.Fatal("expected the missing character file to be reported")
	}
	if len(results) != 1 || results[0].Feed != "quests" {
		t.Fatalf("expected the second job to run, got %v", results)
	}
}

func TestCleanCharactersJob(t *testing.T) {
	path := filepath.Join(t.TempDir(), "characters.json")
	src := `{"lastUpdated":"old","version":2,"characters":[{"name":"a","url":"https://x/a","colorImages":["1.gif"],"weapons":[]},{"name":"b"}]}`
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	r := newRunner(t, mapFetcher{})
	if _, err := r.Run(context.Background(), CleanCharactersJob(path)); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	if strings.Contains(out, "colorImages") || strings.Contains(out, "weapons") {
		t.Fatalf("enrichment fields not removed: %s", out)
	}
	if strings.Index(out, `"lastUpdated"`) > strings.Index(out, `"version"`) {
		t.Fatalf("top-level key order changed: %s", out)
	}
	if !strings.Contains(out, `"lastUpdated": "2026-02-03T04:05:06.000Z"`) {
		t.Fatalf("lastUpdated not restamped: %s", out)
	}
}

func TestPetLink(t *testing.T) {
	got := petLink(origin+"/bbs/board.php?bo_table=pets", "12")
	if got != origin+"/bbs/board.php?bo_table=pets&wr_id=12" {
		t.Fatalf("unexpected pet link %s", got)
	}
}

type recordingLock struct {
	events []string
	onLock func()
}

func (l *recordingLock) Lock() error {
	l.events = append(l.events, "lock")
	if l.onLock != nil {
		l.onLock()
	}
	return nil
}

func (l *recordingLock) Unlock() error {
	l.events = append(l.events, "unlock")
	return nil
}

func TestRun_LocksOnlyAroundHistory(t *testing.T) {
	db, err := storage.Open(filepath.Join(t.TempDir(), "h.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	feed := crawler.QuestsFeed(origin, "/bbs/board.php", false)
	r := newRunner(t, mapFetcher{feed.PageURL(1): `<div id="bo_list"><a href="?bo_table=quests&wr_id=3">quest 3</a></div>`})
	r.DB = db

	path := filepath.Join(r.OutputDir, QuestsFile)
	lock := &recordingLock{onLock: func() {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("dataset must be written before the history lock is taken: %v", err)
		}
	}}
	r.Lock = lock

	for i := 0; i < 2; i++ {
		if _, err := r.Run(context.Background(), ListingJob(feed, 1, QuestsFile)); err != nil {
			t.Fatal(err)
		}
	}
	want := []string{"lock", "unlock", "lock", "unlock"}
	if strings.Join(lock.events, ",") != strings.Join(want, ",") {
		t.Fatalf("expected %v, got %v", want, lock.events)
	}

	r.DB = nil
	if _, err := r.Run(context.Background(), ListingJob(feed, 1, QuestsFile)); err != nil {
		t.Fatal(err)
	}
	if len(lock.events) != 4 {
		t.Fatalf("a run without history must not lock, got %v", lock.events)
	}
}

func TestSite_SameSite(t *testing.T) {
	s := Site{Origin: origin, BoardPath: "/bbs/board.php"}
	for _, f := range []crawler.Feed{s.NoticesFeed(), s.PatchNotesFeed(), s.QuestsFeed(true), s.PetsFeed()} {
		if f.SameSiteOnly {
			t.Fatalf("%s: same-site filtering must be off by default", f.Name)
		}
	}
	s.SameSite = true
	if !s.NoticesFeed().SameSiteOnly || !s.QuestsFeed(false).SameSiteOnly {
		t.Fatal("SameSite must reach the feeds")
	}
}
