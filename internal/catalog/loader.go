package catalog

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

type menuFile struct {
	Items []menuItem `yaml:"items"`
}

type menuItem struct {
	ID       string   `yaml:"id"`
	Name     string   `yaml:"name"`
	Price    float64  `yaml:"price"`
	Category string   `yaml:"category"`
	Keywords []string `yaml:"keywords"`
	Patterns []string `yaml:"patterns"`
}

// Load reads a YAML menu file. Environment variables in the file are expanded.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading menu file: %w", err)
	}
	return Parse([]byte(os.ExpandEnv(string(data))))
}

// Parse builds a Catalog from YAML menu data.
//
//	items:
//	  - id: choco-corn
//	    name: Chocolate Corn Delight
//	    price: 4.5
//	    category: sweet
//	    keywords: [chocolate corn]
//	    patterns: ['choc\w*\s+corn']
func Parse(data []byte) (*Catalog, error) {
	var mf menuFile
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("parsing menu: %w", err)
	}

	items := make([]Item, 0, len(mf.Items))
	for _, mi := range mf.Items {
		patterns := make([]*regexp.Regexp, 0, len(mi.Patterns))
		for _, p := range mi.Patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				return nil, fmt.Errorf("item %s: compiling pattern %q: %w", mi.ID, p, err)
			}
			patterns = append(patterns, re)
		}
		items = append(items, Item{
			ID:       mi.ID,
			Name:     mi.Name,
			Price:    mi.Price,
			Category: mi.Category,
			Keywords: mi.Keywords,
			Patterns: patterns,
		})
	}
	return New(items)
}
