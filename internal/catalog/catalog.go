// Package catalog holds the per-category reference data: search terms,
// average tickets, fallback review themes, preview colors and services,
// plus the theme keyword dictionary and franchise brand list.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"slices"
	"strings"

	"outreach_backend/platform/apperr"

	"gopkg.in/yaml.v3"
)

//go:embed categories.yaml
var defaultYAML []byte

type Colors struct {
	Primary string `yaml:"primary"`
	Accent  string `yaml:"accent"`
}

type Service struct {
	Name string `yaml:"name"`
	Desc string `yaml:"desc"`
}

type Category struct {
	Key        string    `yaml:"key"`
	SearchTerm string    `yaml:"search_term"`
	AvgTicket  int       `yaml:"avg_ticket"`
	Themes     []string  `yaml:"themes"`
	Colors     Colors    `yaml:"colors"`
	Services   []Service `yaml:"services"`
}

// Label is the human form of the key: "fence_deck" becomes "Fence Deck".
func (c Category) Label() string {
	words := strings.Fields(strings.ReplaceAll(c.Key, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

type ThemeKeyword struct {
	Keyword string `yaml:"keyword"`
	Theme   string `yaml:"theme"`
}

type Catalog struct {
	DefaultAvgTicket     int            `yaml:"default_avg_ticket"`
	DefaultThemes        []string       `yaml:"default_themes"`
	DefaultColors        Colors         `yaml:"default_colors"`
	FallbackServicesFrom string         `yaml:"fallback_services_from"`
	ThemeKeywords        []ThemeKeyword `yaml:"theme_keywords"`
	FranchiseKeywords    []string       `yaml:"franchise_keywords"`
	Categories           []Category     `yaml:"categories"`
}

// Default returns the embedded catalog.
func Default() *Catalog {
	c, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded category catalog is invalid: %v", err))
	}
	return c
}

// Load reads a catalog override from path. An empty path yields the embedded default.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindConfig, "read category catalog", err)
	}
	return Parse(data)
}

// Parse decodes and validates a catalog document.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, apperr.Wrap(apperr.KindConfig, "parse category catalog", err)
	}
	if len(c.Categories) == 0 {
		return nil, apperr.Config("category catalog has no categories")
	}
	seen := make(map[string]bool, len(c.Categories))
	for _, cat := range c.Categories {
		if cat.Key == "" || cat.SearchTerm == "" {
			return nil, apperr.Config("category entries need key and search_term")
		}
		if seen[cat.Key] {
			return nil, apperr.Config(fmt.Sprintf("category %q listed twice", cat.Key))
		}
		seen[cat.Key] = true
	}
	if c.DefaultAvgTicket <= 0 {
		c.DefaultAvgTicket = 600
	}
	return &c, nil
}

// Get looks up a category by key.
func (c *Catalog) Get(key string) (Category, bool) {
	i := slices.IndexFunc(c.Categories, func(cat Category) bool { return cat.Key == key })
	if i < 0 {
		return Category{}, false
	}
	return c.Categories[i], true
}

// Keys lists category keys in catalog order.
func (c *Catalog) Keys() []string {
	keys := make([]string, 0, len(c.Categories))
	for _, cat := range c.Categories {
		keys = append(keys, cat.Key)
	}
	return keys
}

// AvgTicket returns the category's average ticket, or the default.
func (c *Catalog) AvgTicket(key string) int {
	if cat, ok := c.Get(key); ok && cat.AvgTicket > 0 {
		return cat.AvgTicket
	}
	return c.DefaultAvgTicket
}

// FallbackThemes returns the category's fixed themes, or the default list.
func (c *Catalog) FallbackThemes(key string) []string {
	if cat, ok := c.Get(key); ok && len(cat.Themes) > 0 {
		return slices.Clone(cat.Themes)
	}
	return slices.Clone(c.DefaultThemes)
}

// ColorsFor returns the preview colors for a category.
func (c *Catalog) ColorsFor(key string) Colors {
	if cat, ok := c.Get(key); ok && cat.Colors.Primary != "" {
		return cat.Colors
	}
	return c.DefaultColors
}

// ServicesFor returns the service list for a category, falling back to the
// configured fallback category.
func (c *Catalog) ServicesFor(key string) []Service {
	if cat, ok := c.Get(key); ok && len(cat.Services) > 0 {
		return cat.Services
	}
	if cat, ok := c.Get(c.FallbackServicesFrom); ok {
		return cat.Services
	}
	return nil
}

// IsFranchise reports whether a business name contains a known franchise brand.
func (c *Catalog) IsFranchise(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range c.FranchiseKeywords {
		if kw != "" && strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
