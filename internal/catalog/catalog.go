// Package catalog provides the read-only menu of orderable items and the
// match data the intent resolver uses to recognize them in transcripts.
package catalog

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// Item is an orderable menu entry. Items are immutable once a Catalog is built.
type Item struct {
	ID       string
	Name     string // canonical name, used in spoken confirmations
	Price    float64
	Category string

	// Keywords are phrases matched as substrings of a normalized transcript.
	// New stores them in NormalizeText form. Their 4-character prefix is
	// matched as well.
	Keywords []string

	// Patterns are hand-authored synonym and mispronunciation rules.
	Patterns []*regexp.Regexp
}

// Errors returned when building a catalog.
var (
	ErrEmptyCatalog = errors.New("catalog has no items")
	ErrDuplicateID  = errors.New("duplicate catalog item id")
	ErrMissingField = errors.New("catalog item is missing a required field")
)

// Catalog is an immutable, ordered list of items.
type Catalog struct {
	items []Item
	byID  map[string]int
}

// New validates items and builds a Catalog. The input slice is copied.
func New(items []Item) (*Catalog, error) {
	if len(items) == 0 {
		return nil, ErrEmptyCatalog
	}

	c := &Catalog{
		items: make([]Item, 0, len(items)),
		byID:  make(map[string]int, len(items)),
	}
	for _, it := range items {
		if it.ID == "" || it.Name == "" {
			return nil, fmt.Errorf("%w: id=%q name=%q", ErrMissingField, it.ID, it.Name)
		}
		if _, dup := c.byID[it.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, it.ID)
		}

		cp := it
		cp.Keywords = make([]string, 0, len(it.Keywords))
		for _, kw := range it.Keywords {
			kw = NormalizeText(kw)
			if kw != "" {
				cp.Keywords = append(cp.Keywords, kw)
			}
		}
		cp.Patterns = append([]*regexp.Regexp(nil), it.Patterns...)
		if len(cp.Keywords) == 0 && len(cp.Patterns) == 0 {
			return nil, fmt.Errorf("%w: item %s has no keywords or patterns", ErrMissingField, it.ID)
		}

		c.byID[cp.ID] = len(c.items)
		c.items = append(c.items, cp)
	}
	return c, nil
}

// NormalizeText lower-cases text, strips punctuation and collapses
// whitespace. Hyphens and underscores separate words ("peri-peri" becomes
// "peri peri"). Keywords and transcripts go through the same function so
// they compare equal.
func NormalizeText(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		switch {
		case r == '-' || r == '_':
			b.WriteRune(' ')
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
		default:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// MustNew is like New but panics on error. Intended for built-in menus.
func MustNew(items []Item) *Catalog {
	c, err := New(items)
	if err != nil {
		panic(err)
	}
	return c
}

// Items returns the catalog items in menu order. The returned slice is a
// copy; the items share their keyword and pattern slices with the catalog
// and must not be modified.
func (c *Catalog) Items() []Item {
	return append([]Item(nil), c.items...)
}

// Lookup returns the item with the given id.
func (c *Catalog) Lookup(id string) (Item, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Item{}, false
	}
	return c.items[i], true
}

// Len returns the number of items.
func (c *Catalog) Len() int {
	return len(c.items)
}
