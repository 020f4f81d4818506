package crawler

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Feed describes one board of the forum: where its listing lives, which
// links count as entries and how detail pages are read.
type Feed struct {
	Name      string
	ListURL   string
	Paginated bool

	// Container scopes link extraction. RequireContainer turns its absence
	// into a page failure.
	Container        string
	RequireContainer bool

	// Markers must all appear in the absolute link.
	Markers       []string
	MinTitleRunes int
	Require       []string
	Exclude       []string
	// SameSiteOnly drops links outside the registrable domain of the
	// listing page.
	SameSiteOnly bool

	DateSelectors []string
	Content       []ContentStrategy

	PageDelay  time.Duration
	EntryDelay time.Duration
}

// BoardURL builds the listing URL of a gnuboard table.
func BoardURL(origin, boardPath, table string) string {
	u, err := url.Parse(strings.TrimRight(origin, "/") + "/" + strings.TrimLeft(boardPath, "/"))
	if err != nil {
		return fmt.Sprintf("%s%s?bo_table=%s", origin, boardPath, table)
	}
	q := u.Query()
	q.Set("bo_table", table)
	u.RawQuery = q.Encode()
	return u.String()
}

var articleContent = []ContentStrategy{
	{Selector: "section.bo_v_atc", Narrow: ".view-content"},
	{Selector: "#bo_v_atc", Narrow: ".view-content"},
	{Selector: ".bo_v_atc", Narrow: ".view-content"},
}

var questContent = []ContentStrategy{
	{Selector: ".view-content", Outer: true},
	{Selector: "#bo_v_atc", Outer: true},
	{Selector: "#bo_v_con", Outer: true},
	{Selector: ".bo_v_con", Outer: true},
	{Selector: "#nt_body", Outer: true},
	{Selector: ".content", Outer: true},
	{Selector: ".post-content", Outer: true},
}

func NoticesFeed(origin, boardPath string) Feed {
	return Feed{
		Name:          "notices",
		ListURL:       BoardURL(origin, boardPath, "notice"),
		Container:     "ul li",
		Markers:       []string{"notice", "wr_id="},
		MinTitleRunes: 1,
		DateSelectors: []string{"time"},
		Content:       articleContent,
		PageDelay:     500 * time.Millisecond,
		EntryDelay:    500 * time.Millisecond,
	}
}

func PatchNotesFeed(origin, boardPath string) Feed {
	return Feed{
		Name:          "patchnotes",
		ListURL:       BoardURL(origin, boardPath, "patchnote"),
		Container:     "ul li",
		Markers:       []string{"patchnote", "wr_id="},
		MinTitleRunes: 1,
		Require:       []string{"패치노트"},
		DateSelectors: []string{"time"},
		Content:       articleContent,
		PageDelay:     500 * time.Millisecond,
		EntryDelay:    500 * time.Millisecond,
	}
}

// QuestsFeed lists quests. withContent selects the slower pacing used when
// every detail page is fetched too.
func QuestsFeed(origin, boardPath string, withContent bool) Feed {
	f := Feed{
		Name:             "quests",
		ListURL:          BoardURL(origin, boardPath, "quests"),
		Paginated:        true,
		Container:        "#bo_list",
		RequireContainer: true,
		Markers:          []string{"wr_id"},
		MinTitleRunes:    2,
		Exclude:          []string{"[공지]"},
		Content:          questContent,
		PageDelay:        1000 * time.Millisecond,
		EntryDelay:       1500 * time.Millisecond,
	}
	if withContent {
		f.PageDelay = 2000 * time.Millisecond
	}
	return f
}

func PetsFeed(origin, boardPath string) Feed {
	return Feed{
		Name:      "pets",
		ListURL:   BoardURL(origin, boardPath, "pets"),
		Paginated: true,
		PageDelay: 1000 * time.Millisecond,
	}
}
