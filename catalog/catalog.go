// Package catalog is the static list of grid templates the marketplace
// offers. The catalog ships embedded in the binary; a replacement can be
// loaded from YAML for tests or private deployments.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"xdao.co/gridstore/pointer"
)

//go:embed templates.yaml
var embedded []byte

var (
	ErrInvalidCatalog = errors.New("catalog: invalid")
	// ErrLiveSource is returned by Source.Value for templates whose value is
	// read from a profile at selection time.
	ErrLiveSource = errors.New("catalog: value is read live from a profile")
)

type Category string

const (
	CategoryAll          Category = "all"
	CategoryMinimal      Category = "minimal"
	CategoryCreative     Category = "creative"
	CategoryProfessional Category = "professional"
	CategoryGaming       Category = "gaming"
	CategorySocial       Category = "social"
	CategoryCommunity    Category = "community"
)

type CategoryInfo struct {
	ID   Category `yaml:"id" json:"id"`
	Name string   `yaml:"name" json:"name"`
	Icon string   `yaml:"icon" json:"icon"`
}

type Grid struct {
	Columns int    `yaml:"columns" json:"columns"`
	Rows    int    `yaml:"rows" json:"rows"`
	Gap     string `yaml:"gap" json:"gap"`
}

type SourceKind int

const (
	SourceNone SourceKind = iota
	SourceRaw
	SourceLocator
	SourceProfile
)

func (k SourceKind) String() string {
	switch k {
	case SourceRaw:
		return "raw"
	case SourceLocator:
		return "locator"
	case SourceProfile:
		return "profile"
	default:
		return "none"
	}
}

// Source says where a template's grid value comes from. Exactly one of
// RawValue, Locator or Profile is set; Hash only accompanies Locator.
type Source struct {
	RawValue string `yaml:"raw_value,omitempty" json:"rawValue,omitempty"`
	Locator  string `yaml:"locator,omitempty" json:"locator,omitempty"`
	Hash     string `yaml:"hash,omitempty" json:"hash,omitempty"`
	Profile  string `yaml:"profile,omitempty" json:"profile,omitempty"`
}

func (s Source) Kind() SourceKind {
	switch {
	case s.RawValue != "":
		return SourceRaw
	case s.Locator != "":
		return SourceLocator
	case s.Profile != "":
		return SourceProfile
	default:
		return SourceNone
	}
}

// Value returns the encoded value to write. Raw values are returned as
// stored; locator sources are encoded now. Profile sources have no static
// value and return ErrLiveSource.
func (s Source) Value() ([]byte, error) {
	switch s.Kind() {
	case SourceRaw:
		return pointer.ParseHex(s.RawValue)
	case SourceLocator:
		var hash []byte
		if s.Hash != "" {
			h, err := pointer.ParseHash(s.Hash)
			if err != nil {
				return nil, err
			}
			hash = h
		}
		return pointer.Encode(s.Locator, hash)
	case SourceProfile:
		return nil, ErrLiveSource
	default:
		return nil, fmt.Errorf("%w: template has no source", ErrInvalidCatalog)
	}
}

func (s Source) validate() error {
	n := 0
	for _, v := range []string{s.RawValue, s.Locator, s.Profile} {
		if v != "" {
			n++
		}
	}
	if n != 1 {
		return fmt.Errorf("want exactly one of raw_value, locator, profile; got %d", n)
	}
	if s.Hash != "" && s.Locator == "" {
		return errors.New("hash without locator")
	}
	if s.Profile != "" && !common.IsHexAddress(s.Profile) {
		return fmt.Errorf("profile %q is not an address", s.Profile)
	}
	if s.Kind() == SourceRaw {
		if _, err := pointer.DecodeHex(s.RawValue); err != nil {
			return err
		}
		return nil
	}
	if s.Kind() == SourceLocator {
		_, err := s.Value()
		return err
	}
	return nil
}

type Template struct {
	ID             string   `yaml:"id" json:"id"`
	Name           string   `yaml:"name" json:"name"`
	Description    string   `yaml:"description" json:"description"`
	Author         string   `yaml:"author" json:"author"`
	Category       Category `yaml:"category" json:"category"`
	Preview        string   `yaml:"preview" json:"preview"`
	Grid           Grid     `yaml:"grid" json:"grid"`
	Featured       bool     `yaml:"featured" json:"featured"`
	ProfileLink    string   `yaml:"profile_link,omitempty" json:"profileLink,omitempty"`
	ProfileAddress string   `yaml:"profile_address,omitempty" json:"profileAddress,omitempty"`
	Tags           []string `yaml:"tags,omitempty" json:"tags,omitempty"`
	Source         Source   `yaml:"source" json:"source"`
}

// Community reports whether the template belongs to a community profile,
// either by category or because its value is read from a profile.
func (t Template) Community() bool {
	return t.Category == CategoryCommunity || t.Source.Kind() == SourceProfile
}

// Address returns the profile the template is tied to, if any.
func (t Template) Address() (common.Address, bool) {
	a := t.ProfileAddress
	if a == "" {
		a = t.Source.Profile
	}
	if !common.IsHexAddress(a) {
		return common.Address{}, false
	}
	return common.HexToAddress(a), true
}

func (t Template) clone() Template {
	t.Tags = append([]string(nil), t.Tags...)
	return t
}

type document struct {
	Categories []CategoryInfo `yaml:"categories"`
	Templates  []Template     `yaml:"templates"`
}

type Catalog struct {
	categories []CategoryInfo
	templates  []Template
	byID       map[string]int
}

// Parse reads and validates a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}

	known := make(map[Category]bool, len(doc.Categories))
	for _, c := range doc.Categories {
		if c.ID == "" || c.ID == CategoryAll {
			return nil, fmt.Errorf("%w: category id %q is reserved or empty", ErrInvalidCatalog, c.ID)
		}
		known[c.ID] = true
	}

	c := &Catalog{categories: doc.Categories, byID: make(map[string]int, len(doc.Templates))}
	for i, t := range doc.Templates {
		if t.ID == "" {
			return nil, fmt.Errorf("%w: template %d has no id", ErrInvalidCatalog, i)
		}
		if _, dup := c.byID[t.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate template id %q", ErrInvalidCatalog, t.ID)
		}
		if !known[t.Category] {
			return nil, fmt.Errorf("%w: template %q: unknown category %q", ErrInvalidCatalog, t.ID, t.Category)
		}
		if err := t.Source.validate(); err != nil {
			return nil, fmt.Errorf("%w: template %q: %v", ErrInvalidCatalog, t.ID, err)
		}
		if t.ProfileAddress != "" && !common.IsHexAddress(t.ProfileAddress) {
			return nil, fmt.Errorf("%w: template %q: profile_address %q is not an address", ErrInvalidCatalog, t.ID, t.ProfileAddress)
		}
		c.byID[t.ID] = len(c.templates)
		c.templates = append(c.templates, t)
	}
	return c, nil
}

// LoadFile parses the catalog at path.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

var (
	defaultOnce sync.Once
	defaultCat  *Catalog
)

// Default returns the embedded catalog.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Parse(embedded)
		if err != nil {
			panic(err)
		}
		defaultCat = c
	})
	return defaultCat
}

func (c *Catalog) All() []Template {
	out := make([]Template, len(c.templates))
	for i, t := range c.templates {
		out[i] = t.clone()
	}
	return out
}

func (c *Catalog) ByID(id string) (Template, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Template{}, false
	}
	return c.templates[i].clone(), true
}

// Featured returns featured templates in catalog order, at most limit of
// them when limit > 0.
func (c *Catalog) Featured(limit int) []Template {
	var out []Template
	for _, t := range c.templates {
		if !t.Featured {
			continue
		}
		out = append(out, t.clone())
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Categories lists the catalog categories, led by the synthetic "all".
func (c *Catalog) Categories() []CategoryInfo {
	out := make([]CategoryInfo, 0, len(c.categories)+1)
	out = append(out, CategoryInfo{ID: CategoryAll, Name: "All Templates", Icon: "Grid3X3"})
	return append(out, c.categories...)
}

// Community returns the templates tied to a community profile.
func (c *Catalog) Community() []Template {
	var out []Template
	for _, t := range c.templates {
		if t.Community() {
			out = append(out, t.clone())
		}
	}
	return out
}

// Query selects templates. Zero fields match everything.
type Query struct {
	Category Category
	// Search matches case-insensitively against name, description and author.
	Search string
	// Tag matches case-insensitively against the template's tags.
	Tag string
}

func (q Query) Match(t Template) bool {
	if q.Category != "" && q.Category != CategoryAll && t.Category != q.Category {
		return false
	}
	if s := strings.ToLower(strings.TrimSpace(q.Search)); s != "" {
		if !strings.Contains(strings.ToLower(t.Name), s) &&
			!strings.Contains(strings.ToLower(t.Description), s) &&
			!strings.Contains(strings.ToLower(t.Author), s) {
			return false
		}
	}
	if tag := strings.TrimSpace(q.Tag); tag != "" {
		found := false
		for _, have := range t.Tags {
			if strings.EqualFold(have, tag) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Filter returns the templates of ts that match q, in order. It is used on
// templates whose tags were enriched after loading.
func Filter(ts []Template, q Query) []Template {
	var out []Template
	for _, t := range ts {
		if q.Match(t) {
			out = append(out, t)
		}
	}
	return out
}

func (c *Catalog) Filter(q Query) []Template {
	return Filter(c.All(), q)
}

// UniqueTags merges tag lists into one without duplicates, sorted
// case-insensitively. Blank tags are dropped.
func UniqueTags(lists ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, l := range lists {
		for _, tag := range l {
			if strings.TrimSpace(tag) == "" || seen[tag] {
				continue
			}
			seen[tag] = true
			out = append(out, tag)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := strings.ToLower(out[i]), strings.ToLower(out[j])
		if a != b {
			return a < b
		}
		return out[i] < out[j]
	})
	return out
}
