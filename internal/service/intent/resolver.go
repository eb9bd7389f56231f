// Package intent maps final transcripts to catalog items and quantities.
package intent

import (
	"strconv"
	"strings"

	"voice-ordering-service/internal/catalog"
)

// PrefixLen is the keyword prefix length that still counts as a match when
// recognition cut a word short ("choc" for "chocolate corn").
const PrefixLen = 4

// DefaultMaxQuantity caps a single spoken quantity. Utterances asking for
// more resolve to no intents.
const DefaultMaxQuantity = 20

// Intent is one recognized catalog item with the quantity to add.
type Intent struct {
	Item            catalog.Item
	Quantity        int
	MatchConfidence float64
}

var quantityWords = map[string]int{
	"one":   1,
	"two":   2,
	"three": 3,
	"four":  4,
	"five":  5,
}

// Options configures a Resolver.
type Options struct {
	MaxQuantity int // larger quantities reject the utterance; 0 means DefaultMaxQuantity
}

// Resolver is stateless and safe for concurrent use.
type Resolver struct {
	catalog     *catalog.Catalog
	maxQuantity int
}

// NewResolver creates a resolver over cat.
func NewResolver(cat *catalog.Catalog, opts Options) *Resolver {
	limit := opts.MaxQuantity
	if limit <= 0 {
		limit = DefaultMaxQuantity
	}
	return &Resolver{catalog: cat, maxQuantity: limit}
}

// Resolve returns one intent per matched catalog item, in catalog order, all
// carrying the single quantity found in the transcript (1 if none). A
// quantity outside 1..MaxQuantity yields no intents rather than a guess. The
// returned confidence is acousticConfidence, independent of match quality.
// No match is not an error: the slice is empty.
func (r *Resolver) Resolve(transcript string, acousticConfidence float64) ([]Intent, float64) {
	confidence := clamp01(acousticConfidence)
	text := Normalize(transcript)
	if text == "" {
		return nil, confidence
	}

	quantity, ok := ExtractQuantity(text)
	switch {
	case !ok:
		quantity = 1
	case quantity < 1 || quantity > r.maxQuantity:
		return nil, confidence
	}

	var intents []Intent
	for _, item := range r.catalog.Items() {
		if !Matches(item, text) {
			continue
		}
		intents = append(intents, Intent{
			Item:            item,
			Quantity:        quantity,
			MatchConfidence: confidence,
		})
	}
	return intents, confidence
}

// Normalize puts a transcript in the form catalog keywords are stored in.
func Normalize(text string) string {
	return catalog.NormalizeText(text)
}

// Matches reports whether normalized text mentions item through a keyword,
// a keyword prefix or a pattern.
func Matches(item catalog.Item, text string) bool {
	for _, kw := range item.Keywords {
		if strings.Contains(text, kw) {
			return true
		}
		if prefix := keywordPrefix(kw); prefix != "" && strings.Contains(text, prefix) {
			return true
		}
	}
	for _, p := range item.Patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

func keywordPrefix(kw string) string {
	runes := []rune(kw)
	if len(runes) <= PrefixLen {
		return ""
	}
	return string(runes[:PrefixLen])
}

// ExtractQuantity returns the first quantity token in normalized text: a
// digit sequence or a number word from "one" to "five". The value is not
// range-checked.
func ExtractQuantity(text string) (int, bool) {
	for _, tok := range strings.Fields(text) {
		if n, ok := quantityWords[tok]; ok {
			return n, true
		}
		if n, err := strconv.Atoi(tok); err == nil {
			return n, true
		}
	}
	return 0, false
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
