package crawler

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

type ElementStats struct {
	Water int `json:"water"`
	Fire  int `json:"fire"`
	Wind  int `json:"wind"`
	Earth int `json:"earth"`
}

type Stats struct {
	Attack   float64 `json:"attack"`
	Defense  float64 `json:"defense"`
	Agility  float64 `json:"agility"`
	Vitality float64 `json:"vitality"`
}

type Pet struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Source       string       `json:"source"`
	ImageLink    string       `json:"imageLink"`
	ElementStats ElementStats `json:"elementStats"`
	BaseStats    Stats        `json:"baseStats"`
	GrowthStats  Stats        `json:"growthStats"`
	Rideable     string       `json:"rideable"`
	TotalGrowth  string       `json:"totalGrowth"`
	Grade        string       `json:"grade"`
}

var (
	baseStatPatterns = []*regexp.Regexp{
		regexp.MustCompile(`초기치[:\s]*(\d+)[:\s]*(\d+)[:\s]*(\d+)[:\s]*(\d+)`),
		regexp.MustCompile(`공격력[:\s]*(\d+)[^\d]*방어력[:\s]*(\d+)[^\d]*순발력[:\s]*(\d+)[^\d]*내구력[:\s]*(\d+)`),
		regexp.MustCompile(`(?:초기치|공격력)[^0-9]*(\d+)[^0-9]*(\d+)[^0-9]*(\d+)[^0-9]*(\d+)`),
	}
	growthPattern      = regexp.MustCompile(`성장률[^0-9]*([0-9.]+)[^0-9]*([0-9.]+)[^0-9]*([0-9.]+)[^0-9]*([0-9.]+)`)
	rideablePattern    = regexp.MustCompile(`탑승(가능|불가)`)
	totalGrowthPattern = regexp.MustCompile(`총성장률[:\s]*([0-9.]+)`)
	// Longer alternatives first so "영웅등급" wins over "영웅".
	gradePattern = regexp.MustCompile(`(1등급|2등급|3등급|4등급|5등급|일반등급|일반페트|일반|고급등급|고급페트|고급|희귀등급|희귀페트|희귀|영웅등급|영웅페트|영웅|전설등급|전설페트|전설)`)
)

// PetCrawler walks the pet gallery pages.
type PetCrawler struct {
	Fetcher Fetcher
	Feed    Feed
	Sleep   SleepFunc
	Log     Logger
}

func (c *PetCrawler) Crawl(ctx context.Context, pages int) ([]Pet, error) {
	loop := PageLoop[Pet]{
		Feed:    c.Feed.Name,
		Fetcher: c.Fetcher,
		URLFor:  c.Feed.PageURL,
		Extract: func(page *Page, pageNum int) ([]Pet, error) { return ExtractPets(page, pageNum, c.Log) },
		Delay:   c.Feed.PageDelay,
		Sleep:   c.Sleep,
		Log:     c.Log,
	}
	pets, err := loop.Run(ctx, pages)
	if pets == nil {
		pets = []Pet{}
	}
	return pets, err
}

// ExtractPets reads every .pets_item of a gallery page.
func ExtractPets(page *Page, pageNum int, log Logger) ([]Pet, error) {
	gallery := page.Doc.Find("#bo_gallery")
	if gallery.Length() == 0 {
		return nil, fmt.Errorf("#bo_gallery: %w", ErrContainerMissing)
	}

	pets := []Pet{}
	gallery.Find(".pets_item").Each(func(i int, item *goquery.Selection) {
		pet, err := extractPet(page, item, pageNum, i)
		if err != nil {
			orNop(log).Warnf("[pets] page %d item %d: %v", pageNum, i+1, err)
			return
		}
		pets = append(pets, pet)
	})
	return pets, nil
}

func extractPet(page *Page, item *goquery.Selection, pageNum, index int) (Pet, error) {
	pet := Pet{}

	if src, ok := item.Find(".pets_header img").First().Attr("src"); ok && src != "" {
		abs, err := page.Resolve(src)
		if err != nil {
			return pet, fmt.Errorf("image %q: %w", src, err)
		}
		pet.ImageLink = abs
	}

	title := item.Find(".pets_title a").First()
	if title.Length() > 0 {
		if href, ok := title.Attr("href"); ok {
			if abs, err := page.Resolve(href); err == nil {
				if u, err := url.Parse(abs); err == nil {
					pet.ID = u.Query().Get("wr_id")
				}
			}
		}
		pet.Name = strings.TrimSpace(title.Find("strong").First().Text())
	}
	if pet.ID == "" {
		pet.ID = fmt.Sprintf("%d-%d", pageNum, index+1)
	}

	pet.Source = strings.TrimSpace(item.Find(".detail_pets").First().Text())
	pet.ElementStats = countElements(item.Find(".pets_stat").First())

	text := item.Text()
	for _, re := range baseStatPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			pet.BaseStats = statsFrom(m[1:])
			break
		}
	}
	if m := growthPattern.FindStringSubmatch(text); m != nil {
		pet.GrowthStats = statsFrom(m[1:])
	}
	if m := rideablePattern.FindStringSubmatch(text); m != nil {
		pet.Rideable = "탑승" + m[1]
	}
	if m := totalGrowthPattern.FindStringSubmatch(text); m != nil {
		pet.TotalGrowth = m[1]
	}
	if m := gradePattern.FindStringSubmatch(text); m != nil {
		pet.Grade = m[1]
	}
	return pet, nil
}

// countElements counts colored spans in the second div of every dd.
func countElements(stat *goquery.Selection) ElementStats {
	var es ElementStats
	if stat.Length() == 0 {
		return es
	}
	stat.Find("dd").Each(func(_ int, dd *goquery.Selection) {
		divs := dd.Find("div")
		if divs.Length() < 2 {
			return
		}
		divs.Eq(1).Find("span").Each(func(_ int, span *goquery.Selection) {
			switch {
			case span.HasClass("color_bg2"):
				es.Water++
			case span.HasClass("color_bg3"):
				es.Fire++
			case span.HasClass("color_bg4"):
				es.Wind++
			case span.HasClass("color_bg"):
				es.Earth++
			}
		})
	})
	return es
}

func statsFrom(m []string) Stats {
	f := func(s string) float64 {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		return v
	}
	return Stats{Attack: f(m[0]), Defense: f(m[1]), Agility: f(m[2]), Vitality: f(m[3])}
}
