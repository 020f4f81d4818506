package dataset

import (
	"encoding/json"
	"fmt"
	"os"
)

// Characters is the character dataset: a top-level object whose
// "characters" array holds free-form records addressed by position.
type Characters struct {
	doc        Record
	Characters []Record
}

// LoadCharacters reads the character dataset at path.
func LoadCharacters(path string) (*Characters, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading characters dataset: %w", err)
	}
	c := &Characters{}
	if err := json.Unmarshal(data, &c.doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	raw, ok := c.doc.Raw("characters")
	if !ok {
		return nil, fmt.Errorf("parsing %s: no characters array", path)
	}
	if err := json.Unmarshal(raw, &c.Characters); err != nil {
		return nil, fmt.Errorf("parsing %s characters: %w", path, err)
	}
	if c.Characters == nil {
		c.Characters = []Record{}
	}
	return c, nil
}

// Dataset returns the envelope to hand to a Writer. Top-level fields other
// than lastUpdated and characters keep their position.
func (c *Characters) Dataset() *Dataset {
	return &Dataset{
		Layout:  LayoutEnvelope,
		Key:     "characters",
		Records: c.Characters,
		Base:    &c.doc,
	}
}

// Enrichment field names.
const (
	FieldColorImages = "colorImages"
	FieldWeapons     = "weapons"
)

// Clean strips enrichment fields from every character and returns how many
// records changed.
func (c *Characters) Clean() int {
	n := 0
	for i := range c.Characters {
		a := c.Characters[i].Delete(FieldColorImages)
		b := c.Characters[i].Delete(FieldWeapons)
		if a || b {
			n++
		}
	}
	return n
}
