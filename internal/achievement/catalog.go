package achievement

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

var ErrInvalidCatalog = errors.New("invalid achievement catalog")

var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Source binds a criteria field to the collection (and attribute, for sum and
// streak criteria) it is computed from.
type Source struct {
	Collection string `json:"collection" yaml:"collection"`
	Attribute  string `json:"attribute,omitempty" yaml:"attribute,omitempty"`
}

type FieldSpec struct {
	Field  string
	Type   CriteriaType
	Source Source
}

// Catalog is the read-only set of achievement definitions, ordered by
// SortOrder then ID.
type Catalog struct {
	definitions []Definition
	byID        map[string]int
	fields      []FieldSpec
}

type catalogFile struct {
	Sources      map[string]Source `yaml:"sources"`
	Achievements []Definition      `yaml:"achievements"`
}

// LoadCatalog reads a YAML catalog from path, or the built-in catalog when
// path is empty.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return ParseCatalog(defaultCatalogYAML)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return ParseCatalog(data)
}

func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalogYAML)
}

func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	return NewCatalog(f.Achievements, f.Sources)
}

func NewCatalog(defs []Definition, sources map[string]Source) (*Catalog, error) {
	c := &Catalog{
		definitions: make([]Definition, len(defs)),
		byID:        make(map[string]int, len(defs)),
	}
	copy(c.definitions, defs)
	sort.SliceStable(c.definitions, func(i, j int) bool {
		a, b := c.definitions[i], c.definitions[j]
		if a.SortOrder != b.SortOrder {
			return a.SortOrder < b.SortOrder
		}
		return a.ID < b.ID
	})

	fieldTypes := make(map[string]CriteriaType)
	for i, d := range c.definitions {
		if err := validateDefinition(d); err != nil {
			return nil, err
		}
		if _, dup := c.byID[d.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrInvalidCatalog, d.ID)
		}
		c.byID[d.ID] = i

		if t, seen := fieldTypes[d.CriteriaField]; seen {
			if t != d.CriteriaType {
				return nil, fmt.Errorf("%w: field %q used as both %s and %s", ErrInvalidCatalog, d.CriteriaField, t, d.CriteriaType)
			}
			continue
		}
		fieldTypes[d.CriteriaField] = d.CriteriaType

		src, ok := sources[d.CriteriaField]
		if !ok {
			return nil, fmt.Errorf("%w: field %q has no source", ErrInvalidCatalog, d.CriteriaField)
		}
		if err := validateSource(d.CriteriaField, d.CriteriaType, src); err != nil {
			return nil, err
		}
		c.fields = append(c.fields, FieldSpec{Field: d.CriteriaField, Type: d.CriteriaType, Source: src})
	}

	sort.Slice(c.fields, func(i, j int) bool { return c.fields[i].Field < c.fields[j].Field })
	return c, nil
}

func validateDefinition(d Definition) error {
	switch {
	case d.ID == "":
		return fmt.Errorf("%w: achievement without id", ErrInvalidCatalog)
	case d.Name == "":
		return fmt.Errorf("%w: %s: name is required", ErrInvalidCatalog, d.ID)
	case !d.Category.Valid():
		return fmt.Errorf("%w: %s: unknown category %q", ErrInvalidCatalog, d.ID, d.Category)
	case !d.CriteriaType.Valid():
		return fmt.Errorf("%w: %s: unknown criteria type %q", ErrInvalidCatalog, d.ID, d.CriteriaType)
	case d.CriteriaField == "":
		return fmt.Errorf("%w: %s: criteria field is required", ErrInvalidCatalog, d.ID)
	case !(d.CriteriaTarget > 0):
		return fmt.Errorf("%w: %s: criteria target must be positive", ErrInvalidCatalog, d.ID)
	case d.Points <= 0:
		return fmt.Errorf("%w: %s: points must be positive", ErrInvalidCatalog, d.ID)
	}
	return nil
}

func validateSource(field string, t CriteriaType, src Source) error {
	if !identRe.MatchString(src.Collection) {
		return fmt.Errorf("%w: field %q: bad collection name %q", ErrInvalidCatalog, field, src.Collection)
	}
	if t == CriteriaCount {
		return nil
	}
	if !identRe.MatchString(src.Attribute) {
		return fmt.Errorf("%w: field %q: %s criteria needs an attribute, got %q", ErrInvalidCatalog, field, t, src.Attribute)
	}
	return nil
}

// Definitions returns a copy in catalog order.
func (c *Catalog) Definitions() []Definition {
	out := make([]Definition, len(c.definitions))
	copy(out, c.definitions)
	return out
}

func (c *Catalog) Get(id string) (Definition, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Definition{}, false
	}
	return c.definitions[i], true
}

// Fields returns one entry per distinct criteria field.
func (c *Catalog) Fields() []FieldSpec {
	out := make([]FieldSpec, len(c.fields))
	copy(out, c.fields)
	return out
}

func (c *Catalog) Len() int {
	return len(c.definitions)
}
