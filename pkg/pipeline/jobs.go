package pipeline

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/stoneage-light/stoneage/pkg/crawler"
	"github.com/stoneage-light/stoneage/pkg/dataset"
	"github.com/stoneage-light/stoneage/pkg/storage"
)

// Output files read by the app.
const (
	NoticesFile      = "notices.json"
	PatchNotesFile   = "patchnotes.json"
	QuestsFile       = "quest.json"
	QuestContentFile = "questWithContent.json"
	PetsFile         = "petData.json"
)

// Output is what a job's crawl produced: the dataset to write and the
// entries to snapshot in the history.
type Output struct {
	Dataset *dataset.Dataset
	Items   []storage.EntryItem
}

// Job is one dataset produced by one crawl.
type Job struct {
	Feed string
	// File is relative to the runner's output directory, unless Path is set.
	File  string
	Path  string
	Crawl func(ctx context.Context, r *Runner) (*Output, error)
}

// QuestContent is a quest with its detail body.
type QuestContent struct {
	Idx     int    `json:"idx"`
	Title   string `json:"title"`
	Link    string `json:"link"`
	Content string `json:"content"`
}

// ArticleJob lists feed and reads every entry's detail page. It produces
// [{id, title, link, date, contentHtml}].
func ArticleJob(feed crawler.Feed, pages int, file string) Job {
	return Job{
		Feed: feed.Name,
		File: file,
		Crawl: func(ctx context.Context, r *Runner) (*Output, error) {
			entries, err := (&crawler.ListCrawler{Fetcher: r.Fetcher, Feed: feed, Sleep: r.Sleep, Log: r.Log}).Crawl(ctx, pages)
			if err != nil {
				return nil, err
			}
			r.log().Infof("[%s] %d entries listed", feed.Name, len(entries))

			records, err := (&crawler.DetailCrawler{Fetcher: r.Fetcher, Feed: feed, Policy: r.Policy, Sleep: r.Sleep, Log: r.Log}).Crawl(ctx, entries)
			if err != nil {
				return nil, err
			}
			items := make([]storage.EntryItem, 0, len(records))
			for _, rec := range records {
				items = append(items, storage.EntryItem{Link: rec.Link, EntryID: rec.ID, Title: rec.Title, Date: rec.Date, Content: rec.ContentHTML})
			}
			return &Output{Dataset: &dataset.Dataset{Layout: dataset.LayoutArray, Records: records}, Items: items}, nil
		},
	}
}

// ListingJob lists feed without visiting detail pages. It produces [{title, link}].
func ListingJob(feed crawler.Feed, pages int, file string) Job {
	return Job{
		Feed: feed.Name,
		File: file,
		Crawl: func(ctx context.Context, r *Runner) (*Output, error) {
			entries, err := (&crawler.ListCrawler{Fetcher: r.Fetcher, Feed: feed, Sleep: r.Sleep, Log: r.Log}).Crawl(ctx, pages)
			if err != nil {
				return nil, err
			}
			items := make([]storage.EntryItem, 0, len(entries))
			for i, e := range entries {
				items = append(items, storage.EntryItem{Link: e.Link, EntryID: crawler.EntryID(e.Link, i+1), Title: e.Title})
			}
			return &Output{Dataset: &dataset.Dataset{Layout: dataset.LayoutArray, Records: entries}, Items: items}, nil
		},
	}
}

// QuestContentJob lists quests and attaches each one's body. A quest whose
// page cannot be read keeps an empty content.
func QuestContentJob(feed crawler.Feed, pages int, file string) Job {
	return Job{
		Feed: feed.Name + "-content",
		File: file,
		Crawl: func(ctx context.Context, r *Runner) (*Output, error) {
			entries, err := (&crawler.ListCrawler{Fetcher: r.Fetcher, Feed: feed, Sleep: r.Sleep, Log: r.Log}).Crawl(ctx, pages)
			if err != nil {
				return nil, err
			}
			records, err := (&crawler.DetailCrawler{Fetcher: r.Fetcher, Feed: feed, Policy: r.Policy, Sleep: r.Sleep, Log: r.Log}).Crawl(ctx, entries)
			if err != nil {
				return nil, err
			}
			quests := make([]QuestContent, 0, len(records))
			items := make([]storage.EntryItem, 0, len(records))
			for i, rec := range records {
				quests = append(quests, QuestContent{Idx: i + 1, Title: rec.Title, Link: rec.Link, Content: rec.ContentHTML})
				items = append(items, storage.EntryItem{Link: rec.Link, EntryID: rec.ID, Title: rec.Title, Content: rec.ContentHTML})
			}
			return &Output{Dataset: &dataset.Dataset{Layout: dataset.LayoutArray, Records: quests}, Items: items}, nil
		},
	}
}

// PetsJob crawls the pet gallery into {lastUpdated, totalCount, pets}.
func PetsJob(feed crawler.Feed, pages int, file string) Job {
	return Job{
		Feed: feed.Name,
		File: file,
		Crawl: func(ctx context.Context, r *Runner) (*Output, error) {
			pets, err := (&crawler.PetCrawler{Fetcher: r.Fetcher, Feed: feed, Sleep: r.Sleep, Log: r.Log}).Crawl(ctx, pages)
			if err != nil {
				return nil, err
			}
			items := make([]storage.EntryItem, 0, len(pets))
			for _, p := range pets {
				content, _ := json.Marshal(p)
				items = append(items, storage.EntryItem{Link: petLink(feed.ListURL, p.ID), Title: p.Name, Content: string(content)})
			}
			ds := &dataset.Dataset{Layout: dataset.LayoutEnvelope, Key: "pets", WithCount: true, Records: pets}
			return &Output{Dataset: ds, Items: items}, nil
		},
	}
}

// petLink gives each pet a stable identity within the gallery.
func petLink(listURL, id string) string {
	u, err := url.Parse(listURL)
	if err != nil {
		return listURL + "&wr_id=" + id
	}
	q := u.Query()
	q.Set("wr_id", id)
	u.RawQuery = q.Encode()
	return u.String()
}

// CharactersJob enriches the character file at path in place.
func CharactersJob(path string, enricher *crawler.CharacterEnricher) Job {
	return Job{
		Feed: crawler.CharacterFeedName,
		Path: path,
		Crawl: func(ctx context.Context, r *Runner) (*Output, error) {
			chars, err := dataset.LoadCharacters(path)
			if err != nil {
				return nil, err
			}
			e := *enricher
			if e.Fetcher == nil {
				e.Fetcher = r.Fetcher
			}
			if e.Sleep == nil {
				e.Sleep = r.Sleep
			}
			if e.Log == nil {
				e.Log = r.Log
			}
			res, err := e.Enrich(ctx, chars.Characters)
			if err != nil {
				return nil, err
			}
			r.log().Infof("[%s] %d enriched, %d failed", crawler.CharacterFeedName, res.Enriched, res.Failed)
			return &Output{Dataset: chars.Dataset(), Items: characterItems(chars.Characters)}, nil
		},
	}
}

// CleanCharactersJob strips enrichment fields from the character file at path.
func CleanCharactersJob(path string) Job {
	return Job{
		Feed: crawler.CharacterFeedName,
		Path: path,
		Crawl: func(ctx context.Context, r *Runner) (*Output, error) {
			chars, err := dataset.LoadCharacters(path)
			if err != nil {
				return nil, err
			}
			n := chars.Clean()
			r.log().Infof("[%s] cleaned %d of %d records", crawler.CharacterFeedName, n, len(chars.Characters))
			return &Output{Dataset: chars.Dataset(), Items: characterItems(chars.Characters)}, nil
		},
	}
}

func characterItems(records []dataset.Record) []storage.EntryItem {
	items := make([]storage.EntryItem, 0, len(records))
	for _, rec := range records {
		link := rec.String("url")
		if link == "" {
			continue
		}
		var content strings.Builder
		for _, key := range []string{dataset.FieldColorImages, dataset.FieldWeapons} {
			if raw, ok := rec.Raw(key); ok {
				content.Write(raw)
			}
		}
		items = append(items, storage.EntryItem{Link: link, Title: rec.String("name"), Content: content.String()})
	}
	return items
}

// Site is where the boards live and how many pages each feed spans.
type Site struct {
	Origin    string
	BoardPath string

	NoticePages    int
	PatchNotePages int
	QuestPages     int
	PetPages       int

	// SameSite keeps only listing links on the board's registrable domain.
	SameSite bool
}

func (s Site) feed(f crawler.Feed) crawler.Feed {
	f.SameSiteOnly = s.SameSite
	return f
}

func (s Site) NoticesFeed() crawler.Feed {
	return s.feed(crawler.NoticesFeed(s.Origin, s.BoardPath))
}

func (s Site) PatchNotesFeed() crawler.Feed {
	return s.feed(crawler.PatchNotesFeed(s.Origin, s.BoardPath))
}

func (s Site) QuestsFeed(withContent bool) crawler.Feed {
	return s.feed(crawler.QuestsFeed(s.Origin, s.BoardPath, withContent))
}

func (s Site) PetsFeed() crawler.Feed {
	return s.feed(crawler.PetsFeed(s.Origin, s.BoardPath))
}

// ListingJobs are the board feeds refreshed by a scheduled crawl.
func (s Site) ListingJobs() []Job {
	return []Job{
		ArticleJob(s.NoticesFeed(), s.NoticePages, NoticesFile),
		ArticleJob(s.PatchNotesFeed(), s.PatchNotePages, PatchNotesFile),
		ListingJob(s.QuestsFeed(false), s.QuestPages, QuestsFile),
		PetsJob(s.PetsFeed(), s.PetPages, PetsFile),
	}
}
