package catalog

import "regexp"

// Default returns the built-in menu used when no menu file is configured.
func Default() *Catalog {
	return MustNew([]Item{
		{
			ID:       "choco-corn",
			Name:     "Chocolate Corn Delight",
			Price:    4.50,
			Category: "sweet",
			Keywords: []string{"chocolate corn", "choco corn"},
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`\bchalk(y|o)?\s*corn\b`),
				regexp.MustCompile(`\bchoc(k|c)?(o|a)?lat(e)?\b`),
			},
		},
		{
			ID:       "butter-corn",
			Name:     "Classic Butter Corn",
			Price:    3.00,
			Category: "classic",
			Keywords: []string{"butter corn", "classic corn"},
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`\bbuddy\s*corn\b`),
				regexp.MustCompile(`\bbutter(ed)?\b`),
			},
		},
		{
			ID:       "cheese-corn",
			Name:     "Cheesy Corn Blast",
			Price:    4.00,
			Category: "savory",
			Keywords: []string{"cheese corn", "cheesy corn"},
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`\bche(e)?s(e|y)\b`),
			},
		},
		{
			ID:       "masala-corn",
			Name:     "Spicy Masala Corn",
			Price:    3.50,
			Category: "savory",
			Keywords: []string{"masala corn", "spicy corn"},
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`\bmas(s)?ala\b`),
				regexp.MustCompile(`\bmuscle\s*a\s*corn\b`),
			},
		},
		{
			ID:       "caramel-corn",
			Name:     "Caramel Corn Crunch",
			Price:    4.25,
			Category: "sweet",
			Keywords: []string{"caramel corn"},
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`\b(c|k)ar(a|e)?mel\b`),
			},
		},
		{
			ID:       "peri-peri-corn",
			Name:     "Peri Peri Corn",
			Price:    3.75,
			Category: "savory",
			Keywords: []string{"peri peri", "piri piri"},
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`\bperry\s*perry\b`),
			},
		},
		{
			ID:       "mint-lemonade",
			Name:     "Mint Lemonade",
			Price:    2.50,
			Category: "drinks",
			Keywords: []string{"lemonade", "mint lemon"},
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`\blemon\s*aid\b`),
			},
		},
		{
			ID:       "cold-coffee",
			Name:     "Cold Coffee",
			Price:    3.25,
			Category: "drinks",
			Keywords: []string{"cold coffee", "iced coffee"},
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`\bcoffee\b`),
			},
		},
	})
}
