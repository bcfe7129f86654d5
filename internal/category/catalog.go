package category

import "strings"

// Fallback is the category assigned when neither the rule pass nor the
// predictor produces a result.
const Fallback = "personal"

// LabelPrefix is prepended to the title-cased category name to form the
// remote Gmail label, e.g. "Cloudidian/Work".
const LabelPrefix = "Cloudidian/"

// Category is one entry of the static catalog.
type Category struct {
	Name        string
	Color       string
	Description string
	Keywords    []string
	LabelName   string
}

// Catalog is an immutable, ordered set of categories. Order is the
// catalog's declaration order, not rule priority; rule priority lives in
// the classifier.
type Catalog struct {
	ordered []Category
	byName  map[string]Category
}

// Default returns the built-in catalog.
func Default() *Catalog {
	return New([]Category{
		{Name: "work", Color: "#4285f4", Keywords: []string{"meeting", "project", "deadline", "report", "team", "office"}},
		{Name: "personal", Color: "#34a853", Keywords: []string{"family", "friend", "dinner", "party", "birthday"}},
		{Name: "promotion", Color: "#fbbc04", Keywords: []string{"sale", "discount", "offer", "deal", "promo", "coupon"}},
		{Name: "spam", Color: "#ea4335", Keywords: []string{"lottery", "winner", "urgent", "verify", "click here", "congratulations"}},
		{Name: "finance", Color: "#ab47bc", Keywords: []string{"invoice", "payment", "transaction", "bank", "credit", "debit"}},
		{Name: "security", Color: "#000000", Keywords: []string{"password", "security", "alert", "verify", "authentication", "login"}},
	})
}

// New builds a catalog from the given categories, filling in derived
// fields (description, label name) where they are empty.
func New(categories []Category) *Catalog {
	c := &Catalog{
		ordered: make([]Category, 0, len(categories)),
		byName:  make(map[string]Category, len(categories)),
	}
	for _, cat := range categories {
		if cat.Description == "" {
			cat.Description = titleCase(cat.Name) + " emails"
		}
		if cat.LabelName == "" {
			cat.LabelName = LabelPrefix + titleCase(cat.Name)
		}
		c.ordered = append(c.ordered, cat)
		c.byName[cat.Name] = cat
	}
	return c
}

// All returns the categories in declaration order. Callers must not
// mutate the returned slice.
func (c *Catalog) All() []Category {
	return c.ordered
}

// ByName looks up a category by its unique name.
func (c *Catalog) ByName(name string) (Category, bool) {
	cat, ok := c.byName[name]
	return cat, ok
}

// Len returns the number of categories.
func (c *Catalog) Len() int {
	return len(c.ordered)
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
