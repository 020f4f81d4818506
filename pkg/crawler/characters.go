package crawler

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stoneage-light/stoneage/pkg/dataset"
)

// CharacterFeedName labels character enrichment in logs and metrics.
const CharacterFeedName = "characters"

type Weapon struct {
	Name  string `json:"name"`
	Image string `json:"image"`
}

// CharacterEnricher visits each character's reference page and attaches its
// recolor images and weapon table.
type CharacterEnricher struct {
	Fetcher Fetcher
	Delay   time.Duration
	Sleep   SleepFunc
	Log     Logger
}

// EnrichResult summarizes an enrichment run.
type EnrichResult struct {
	Enriched int
	Failed   int
}

// Enrich updates records in place, by position. A character whose page
// cannot be read gets empty collections instead of stale data.
func (e *CharacterEnricher) Enrich(ctx context.Context, records []dataset.Record) (EnrichResult, error) {
	log := orNop(e.Log)
	sleep := orSleep(e.Sleep)

	var res EnrichResult
	for i := range records {
		rec := &records[i]
		name := rec.String("name")
		log.Infof("[%s] %d/%d - %s", CharacterFeedName, i+1, len(records), name)

		colors, weapons, err := e.enrichOne(ctx, rec.String("url"))
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			log.Warnf("[%s] %s failed: %v", CharacterFeedName, name, err)
			detailsFetched.WithLabelValues(CharacterFeedName, "error").Inc()
			colors, weapons = []string{}, []Weapon{}
			res.Failed++
		} else {
			detailsFetched.WithLabelValues(CharacterFeedName, "ok").Inc()
			log.Debugf("[%s] %s: %d color images, %d weapons", CharacterFeedName, name, len(colors), len(weapons))
			res.Enriched++
		}

		if err := rec.Set(dataset.FieldColorImages, colors); err != nil {
			return res, err
		}
		if err := rec.Set(dataset.FieldWeapons, weapons); err != nil {
			return res, err
		}

		if i < len(records)-1 {
			if err := sleep(ctx, e.Delay); err != nil {
				return res, err
			}
		}
	}
	return res, nil
}

func (e *CharacterEnricher) enrichOne(ctx context.Context, pageURL string) ([]string, []Weapon, error) {
	if pageURL == "" {
		return nil, nil, errors.New("character has no url")
	}
	page, err := e.Fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, nil, err
	}
	return ExtractColorImages(page), ExtractWeapons(page), nil
}

// ExtractColorImages returns the unique absolute URLs of recolor images.
func ExtractColorImages(page *Page) []string {
	images := []string{}
	seen := make(map[string]struct{})
	page.Doc.Find(`img[src*="color_character"], img[src*=".gif"]`).Each(func(_ int, img *goquery.Selection) {
		src, _ := img.Attr("src")
		if src == "" || !(strings.Contains(src, "gif") || strings.Contains(src, "color")) {
			return
		}
		abs, err := page.Resolve(src)
		if err != nil {
			return
		}
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		images = append(images, abs)
	})
	return images
}

// ExtractWeapons reads name/image pairs from the rows of the first table,
// skipping its header row.
func ExtractWeapons(page *Page) []Weapon {
	weapons := []Weapon{}
	page.Doc.Find("table").First().Find("tr").Each(func(i int, row *goquery.Selection) {
		if i == 0 {
			return
		}
		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}
		name := strings.TrimSpace(cells.Eq(0).Text())
		src, _ := cells.Eq(1).Find("img").First().Attr("src")
		if name == "" || src == "" {
			return
		}
		abs, err := page.Resolve(src)
		if err != nil {
			return
		}
		weapons = append(weapons, Weapon{Name: name, Image: abs})
	})
	return weapons
}
